package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mozilla/rhino-sub008/vm"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[engine]
language_version = "1.7"
optimization_level = 9
strict = true
stack_style = "v8"
max_stack_depth = 500

[features]
strict_vars = true
parent_proto_properties = false

[limits]
interrupt_interval = 64
timeout = "2s"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Engine.LanguageVersion != "1.7" {
		t.Errorf("language_version = %q, want 1.7", c.Engine.LanguageVersion)
	}
	if c.Engine.OptimizationLevel != 9 || !c.Engine.Strict {
		t.Errorf("engine = %+v", c.Engine)
	}
	if len(c.Features) != 2 || !c.Features["strict_vars"] {
		t.Errorf("features = %v", c.Features)
	}
	if d, err := c.Timeout(); err != nil || d != 2*time.Second {
		t.Errorf("timeout = %v, %v", d, err)
	}
	if !filepath.IsAbs(c.Dir) {
		t.Errorf("Dir = %q, want an absolute path", c.Dir)
	}

	fy := vm.NewFactory()
	if err := c.Apply(fy); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if fy.LanguageVersion != vm.Version170 {
		t.Errorf("factory version = %d, want 170", fy.LanguageVersion)
	}
	if fy.OptimizationLevel != 9 || fy.StackStyle != vm.StackStyleV8 || fy.MaxStackDepth != 500 || fy.InterruptInterval != 64 {
		t.Errorf("factory = %+v", fy)
	}
	cx := fy.NewContext()
	if !cx.HasFeature(vm.FeatureStrictVars) {
		t.Error("strict_vars override not applied")
	}
	if cx.HasFeature(vm.FeatureParentProtoProperties) {
		t.Error("parent_proto_properties override not applied")
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("[engine]\noptimization_level = -1\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Engine.LanguageVersion != "ecmascript" || c.Engine.StackStyle != "rhino" {
		t.Errorf("engine defaults = %+v", c.Engine)
	}
	if c.Engine.MaxStackDepth != vm.DefaultMaxStackDepth || c.Limits.InterruptInterval != vm.DefaultInterruptInterval {
		t.Errorf("limit defaults = %+v %+v", c.Engine, c.Limits)
	}
	if d, _ := c.Timeout(); d != 0 {
		t.Errorf("timeout = %v, want none", d)
	}
}

func TestParseReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
[engine]
language_version = "2.5"
optimization_level = 12
stack_style = "java"

[features]
no_such_flag = true

[limits]
timeout = "soon"
`))
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{
		`unsupported language version "2.5"`,
		"engine.optimization_level 12 is outside [-1, 9]",
		`unknown stack style "java"`,
		`unknown feature "no_such_flag"`,
		"limits.timeout",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error lacks %q:\n%v", want, err)
		}
	}
}

func TestParseUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[engine]\noptimisation_level = 1\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown keys: engine.optimisation_level") {
		t.Errorf("err = %v", err)
	}
}

func TestParseLanguageVersion(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", vm.VersionECMAScript},
		{"ECMAScript", vm.VersionECMAScript},
		{"es6", vm.VersionES6},
		{"1.0", vm.Version100},
		{"1.8", vm.Version180},
		{"1.5.0", vm.Version150},
		{"160", vm.Version160},
	}
	for _, tt := range tests {
		got, err := ParseLanguageVersion(tt.in)
		if err != nil {
			t.Errorf("ParseLanguageVersion(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLanguageVersion(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"1.9", "1.7.1", "2.0", "175", "abc"} {
		if _, err := ParseLanguageVersion(bad); err == nil {
			t.Errorf("ParseLanguageVersion(%q) succeeded", bad)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[engine]\nstrict = true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil || !c.Engine.Strict {
		t.Fatalf("FindAndLoad = %+v", c)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if c != nil {
		t.Error("expected nil config when no rhino.toml exists")
	}
}

func TestEncodeParses(t *testing.T) {
	c := Default()
	c.Engine.OptimizationLevel = 3
	c.Features["strict_mode"] = true
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Encode()) failed: %v\n%s", err, data)
	}
	if back.Engine.OptimizationLevel != 3 || !back.Features["strict_mode"] {
		t.Errorf("decoded = %+v", back)
	}
}
