package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mozilla/rhino-sub008/config"
	"github.com/mozilla/rhino-sub008/vm"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func TestRunPrintsResult(t *testing.T) {
	dir := t.TempDir()
	lib := writeFile(t, dir, "lib.js", "function double(x) { return x * 2; }")
	entry := writeFile(t, dir, "main.js", "print('start', 1); double(21)")

	for _, level := range []string{"-1", "0", "9"} {
		out, _, err := execute(t, "", "--config-dir", dir, "-O", level, "run", "-p", lib, entry)
		if err != nil {
			t.Fatalf("level %s: %v", level, err)
		}
		if out != "start 1\n42\n" {
			t.Errorf("level %s: output = %q, want %q", level, out, "start 1\n42\n")
		}
	}
}

func TestRunStdin(t *testing.T) {
	out, _, err := execute(t, "[1, 2].concat([3]).join('-')", "--config-dir", t.TempDir(), "run", "-p", "-")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1-2-3\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRunReportsUncaughtException(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boom.js", "function f() {\n  throw new TypeError('bad');\n}\nf();\n")

	_, stderr, err := execute(t, "", "--config-dir", dir, "run", path)
	var ex *vm.Exception
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want an exception", err)
	}
	if !strings.HasPrefix(err.Error(), "uncaught TypeError: bad") {
		t.Errorf("err = %q", err.Error())
	}
	if !strings.Contains(stderr, "boom.js:2 (f)") {
		t.Errorf("stderr lacks the script stack:\n%s", stderr)
	}
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "spin.js", "for (;;) {}")

	_, _, err := execute(t, "", "--config-dir", dir, "--timeout", "50ms", "run", path)
	var ie *vm.InterruptedError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want an interrupt", err)
	}
}

func TestRunUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.FileName, "[engine]\nstrict = true\n")
	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, sub, "assign.js", "undeclared = 1")

	_, _, err := execute(t, "", "--config-dir", sub, "run", path)
	if err == nil || !strings.Contains(err.Error(), "ReferenceError") {
		t.Errorf("err = %v, want a ReferenceError from strict code", err)
	}

	// the flag wins over the file
	if _, _, err := execute(t, "", "--config-dir", sub, "--strict=false", "run", path); err != nil {
		t.Errorf("--strict=false: %v", err)
	}
}

func TestRunFeatureWarnings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "warn.js", "function f() { leaked = 1; } f();")

	_, stderr, err := execute(t, "", "--config-dir", dir, "--feature", "strict_vars=true", "run", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "warning: Assignment to undeclared variable leaked") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunFlagErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "1")
	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"--feature", "strict_vars", "run", path}, "want name=bool"},
		{[]string{"--feature", "no_such_feature=true", "run", path}, "no_such_feature"},
		{[]string{"-O", "12", "run", path}, "optimization"},
		{[]string{"--stack-style", "java", "run", path}, "java"},
		{[]string{"run"}, "requires at least 1 arg"},
		{[]string{"run", filepath.Join(dir, "missing.js")}, "missing.js"},
	}
	for _, tt := range tests {
		_, _, err := execute(t, "", append([]string{"--config-dir", dir}, tt.args...)...)
		if err == nil || !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("%v: err = %v, want %q", tt.args, err, tt.msg)
		}
	}
}

// ---------------------------------------------------------------------------
// disasm
// ---------------------------------------------------------------------------

func TestDisasm(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "d.js", "var x = 1;\nx + 2;\n")

	out, _, err := execute(t, "", "--config-dir", dir, "disasm", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"; " + path, "SET_GLOBAL x", "GET_GLOBAL x", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}

	out, _, err = execute(t, "", "--config-dir", dir, "-O", "-1", "disasm", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "var x = 1;\nx + 2;\n") {
		t.Errorf("tree listing = %q", out)
	}
}

func TestDisasmSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.js", "var = ;")
	_, _, err := execute(t, "", "--config-dir", dir, "disasm", path)
	if err == nil || !strings.Contains(err.Error(), "bad.js") {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// fmt
// ---------------------------------------------------------------------------

func TestFormatIdempotent(t *testing.T) {
	input := "// leading\nvar a=1,b\nif(a){b=a+1}else b=0 /* tail */\nfunction f(x){return x*2}\n"
	formatted, err := Format(input, "in.js")
	if err != nil {
		t.Fatalf("first format failed: %v", err)
	}
	again, err := Format(formatted, "in.js")
	if err != nil {
		t.Fatalf("second format failed: %v", err)
	}
	if formatted != again {
		t.Errorf("not idempotent.\nFirst:\n%s\nSecond:\n%s", formatted, again)
	}
	for _, want := range []string{"// leading", "/* tail */", "var a = 1, b;", "return x * 2;"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted source lacks %q:\n%s", want, formatted)
		}
	}
	if !strings.HasSuffix(formatted, "}\n") || strings.HasSuffix(formatted, "\n\n") {
		t.Errorf("formatted source must end with one newline: %q", formatted)
	}
}

func TestFmtWriteAndList(t *testing.T) {
	dir := t.TempDir()
	messy := writeFile(t, dir, "messy.js", "x=1")
	clean := writeFile(t, dir, "clean.js", "y = 2;\n")

	out, _, err := execute(t, "", "fmt", "-l", messy, clean)
	if err != nil {
		t.Fatal(err)
	}
	if out != messy+"\n" {
		t.Errorf("list = %q, want only %s", out, messy)
	}

	if _, _, err := execute(t, "", "fmt", "-w", messy); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(messy)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x = 1;\n" {
		t.Errorf("rewritten file = %q", data)
	}
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.FileName, "[engine]\nlanguage_version = \"1.8\"\n\n[limits]\ntimeout = \"2s\"\n")

	out, _, err := execute(t, "", "--config-dir", dir, "-O", "5", "--feature", "strict_mode=true", "config")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Parse([]byte(out))
	if err != nil {
		t.Fatalf("printed configuration does not parse: %v\n%s", err, out)
	}
	if cfg.Engine.LanguageVersion != "1.8" || cfg.Engine.OptimizationLevel != 5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Limits.Timeout != "2s" || !cfg.Features["strict_mode"] {
		t.Errorf("limits = %+v, features = %v", cfg.Limits, cfg.Features)
	}
}
