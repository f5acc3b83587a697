// Rhino CLI - runs, disassembles and formats script files
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	rhino "github.com/mozilla/rhino-sub008"
	"github.com/mozilla/rhino-sub008/config"
	"github.com/mozilla/rhino-sub008/vm"
)

var log = commonlog.GetLogger("rhino.cli")

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rhino: %v\n", err)
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every sub-command.
type options struct {
	verbose   int
	configDir string
	level     int
	version   string
	style     string
	strict    bool
	timeout   string
	features  []string

	stdin io.Reader
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdin: stdin}
	cmd := &cobra.Command{
		Use:   "rhino",
		Short: "Run and inspect scripts",
		Long: "Rhino compiles and runs scripts written in the ECMAScript dialects of the\n" +
			"engine. Settings come from the nearest rhino.toml, searched upwards from\n" +
			"--config-dir, and can be overridden with flags.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(opts.verbose, nil)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringVar(&opts.configDir, "config-dir", ".", "directory to search upwards for "+config.FileName)
	flags.IntVarP(&opts.level, "level", "O", 0, "optimization level, -1 interprets the syntax tree")
	flags.StringVar(&opts.version, "language-version", "", "language version, e.g. 1.8, es6 or ecmascript")
	flags.StringVar(&opts.style, "stack-style", "", "script stack style: rhino, mozilla or v8")
	flags.BoolVar(&opts.strict, "strict", false, "compile every script as strict code")
	flags.StringVar(&opts.timeout, "timeout", "", "interrupt scripts after this duration, e.g. 5s")
	flags.StringArrayVar(&opts.features, "feature", nil, "override a feature flag, e.g. strict_vars=true")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newDisasmCmd(opts))
	cmd.AddCommand(newFmtCmd())
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// config loads the nearest rhino.toml and applies the flags that were
// set on the command line.
func (o *options) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FindAndLoad(o.configDir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	} else {
		log.Infof("using %s", cfg.Dir)
	}

	flags := cmd.Flags()
	if flags.Changed("level") {
		cfg.Engine.OptimizationLevel = o.level
	}
	if flags.Changed("language-version") {
		cfg.Engine.LanguageVersion = o.version
	}
	if flags.Changed("stack-style") {
		cfg.Engine.StackStyle = o.style
	}
	if flags.Changed("strict") {
		cfg.Engine.Strict = o.strict
	}
	if flags.Changed("timeout") {
		cfg.Limits.Timeout = o.timeout
	}
	for _, f := range o.features {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("--feature %q: want name=bool", f)
		}
		on, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("--feature %q: %w", f, err)
		}
		if cfg.Features == nil {
			cfg.Features = map[string]bool{}
		}
		cfg.Features[name] = on
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// factory builds an engine factory from the effective configuration.
// Warnings go to the command's error stream.
func (o *options) factory(cmd *cobra.Command) (*vm.Factory, *config.Config, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	fy, err := rhino.NewFactory(cfg)
	if err != nil {
		return nil, nil, err
	}
	stderr := cmd.ErrOrStderr()
	fy.WarningReporter = func(cx *vm.Context, msg string) {
		fmt.Fprintf(stderr, "warning: %s\n", msg)
	}
	return fy, cfg, nil
}

// readSource reads a script file; "-" reads standard input.
func (o *options) readSource(path string) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(o.stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), path, nil
}
