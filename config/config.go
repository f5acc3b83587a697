// Package config handles rhino.toml engine configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/blang/semver"
	"github.com/hashicorp/go-multierror"

	"github.com/mozilla/rhino-sub008/vm"
)

// FileName is the name of the configuration file.
const FileName = "rhino.toml"

// Config represents a rhino.toml configuration.
type Config struct {
	Engine   Engine          `toml:"engine"`
	Features map[string]bool `toml:"features"`
	Limits   Limits          `toml:"limits"`

	// Dir is the directory containing the rhino.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine selects the language profile and execution strategy.
type Engine struct {
	LanguageVersion   string `toml:"language_version"`
	OptimizationLevel int    `toml:"optimization_level"`
	Strict            bool   `toml:"strict"`
	StackStyle        string `toml:"stack_style"`
	MaxStackDepth     int    `toml:"max_stack_depth"`
}

// Limits bounds script execution.
type Limits struct {
	InterruptInterval int    `toml:"interrupt_interval"`
	Timeout           string `toml:"timeout"` // Go duration, e.g. "5s"
}

// Default returns the configuration used when no rhino.toml exists.
func Default() *Config {
	return &Config{
		Engine: Engine{
			LanguageVersion: "ecmascript",
			StackStyle:      "rhino",
			MaxStackDepth:   vm.DefaultMaxStackDepth,
		},
		Features: map[string]bool{},
		Limits: Limits{
			InterruptInterval: vm.DefaultInterruptInterval,
		},
	}
}

// Parse decodes and validates configuration data. Keys missing from data
// keep their defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses a rhino.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a rhino.toml file, then
// loads it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks every setting and reports all problems together.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if _, err := ParseLanguageVersion(c.Engine.LanguageVersion); err != nil {
		errs = multierror.Append(errs, err)
	}
	if l := c.Engine.OptimizationLevel; l < -1 || l > 9 {
		errs = multierror.Append(errs, fmt.Errorf("engine.optimization_level %d is outside [-1, 9]", l))
	}
	if _, err := vm.ParseStackStyle(c.Engine.StackStyle); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("engine.stack_style: %w", err))
	}
	if c.Engine.MaxStackDepth < 0 {
		errs = multierror.Append(errs, fmt.Errorf("engine.max_stack_depth must not be negative"))
	}
	for _, name := range sortedNames(c.Features) {
		if _, ok := vm.ParseFeature(name); !ok {
			errs = multierror.Append(errs, fmt.Errorf("features: unknown feature %q", name))
		}
	}
	if c.Limits.InterruptInterval < 0 {
		errs = multierror.Append(errs, fmt.Errorf("limits.interrupt_interval must not be negative"))
	}
	if _, err := c.Timeout(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func sortedNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Timeout returns the configured evaluation timeout; zero means none.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Limits.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Limits.Timeout)
	if err != nil {
		return 0, fmt.Errorf("limits.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("limits.timeout must not be negative")
	}
	return d, nil
}

// ParseLanguageVersion accepts "1.0" to "1.8", "es6", "ecmascript" or
// "default", or a numeric version such as 180.
func ParseLanguageVersion(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "ecmascript", "latest":
		return vm.VersionECMAScript, nil
	case "es6", "es2015":
		return vm.VersionES6, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if vm.IsValidLanguageVersion(n) {
			return n, nil
		}
		return 0, fmt.Errorf("unsupported language version %d", n)
	}
	v, err := semver.ParseTolerant(s)
	if err != nil {
		return 0, fmt.Errorf("invalid language version %q: %w", s, err)
	}
	n := int(v.Major*100 + v.Minor*10)
	if v.Major != 1 || v.Patch != 0 || !vm.IsValidLanguageVersion(n) {
		return 0, fmt.Errorf("unsupported language version %q", s)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Applying
// ---------------------------------------------------------------------------

// Apply copies the settings onto a factory. The configuration must be
// valid.
func (c *Config) Apply(fy *vm.Factory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	fy.LanguageVersion, _ = ParseLanguageVersion(c.Engine.LanguageVersion)
	fy.OptimizationLevel = c.Engine.OptimizationLevel
	fy.StackStyle, _ = vm.ParseStackStyle(c.Engine.StackStyle)
	if c.Engine.MaxStackDepth > 0 {
		fy.MaxStackDepth = c.Engine.MaxStackDepth
	}
	if c.Limits.InterruptInterval > 0 {
		fy.InterruptInterval = c.Limits.InterruptInterval
	}
	for _, name := range sortedNames(c.Features) {
		f, _ := vm.ParseFeature(name)
		fy.OverrideFeature(f, c.Features[name])
	}
	return nil
}
