// Package rhino is the embedding API of the script engine. It wires the
// compiler into vm factories, caches compilations and offers one-call
// helpers for compiling and evaluating source text.
//
// A typical embedding:
//
//	fy, _ := rhino.NewFactory(nil)
//	cx, exit := fy.Enter()
//	defer exit()
//	v, err := rhino.Evaluate(cx, "1 + 2", "calc.js")
package rhino

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/config"
	"github.com/mozilla/rhino-sub008/vm"
)

// NewFactory creates a factory whose Contexts compile with a caching
// Compiler and follow cfg. A nil cfg selects the defaults.
func NewFactory(cfg *config.Config) (*vm.Factory, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	fy := vm.NewFactory()
	if err := cfg.Apply(fy); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	fy.Compiler = NewCompiler(cfg.Engine.Strict)
	return fy, nil
}

// Script is a compiled script, bound to no Context. It may be executed in
// any number of Contexts, including concurrently on different goroutines.
type Script struct {
	exe vm.Executable
}

// Name returns the source name of the script.
func (s *Script) Name() string { return s.exe.ScriptName() }

// Executable returns the compiled form.
func (s *Script) Executable() vm.Executable { return s.exe }

// Identity returns the content hash and instance id of the compiled form.
func (s *Script) Identity() vm.Identity { return s.exe.Identity() }

// ID renders the content hash in hex.
func (s *Script) ID() string {
	h := s.exe.Identity().Hash
	return hex.EncodeToString(h[:])
}

// Exec runs the script in cx with scope as its top-level scope; a nil
// scope selects the global scope of cx.
func (s *Script) Exec(cx *vm.Context, scope *vm.Scope) (vm.Value, error) {
	return cx.Exec(s.exe, scope)
}

// Listing renders the compiled form: a bytecode listing, or the
// regenerated source of a retained syntax tree.
func (s *Script) Listing() string {
	switch e := s.exe.(type) {
	case *vm.Code:
		return e.Disassemble()
	case *vm.TreeScript:
		return ast.ToSource(e.Program)
	}
	return ""
}

// Compile compiles source with the compiler of cx's factory at cx's
// language version and optimization level.
func Compile(cx *vm.Context, source, sourceName string) (*Script, error) {
	exe, err := cx.CompileString(source, sourceName)
	if err != nil {
		return nil, err
	}
	return &Script{exe: exe}, nil
}

// Evaluate compiles source and runs it in the global scope of cx.
func Evaluate(cx *vm.Context, source, sourceName string) (vm.Value, error) {
	s, err := Compile(cx, source, sourceName)
	if err != nil {
		return nil, err
	}
	return s.Exec(cx, nil)
}

// EvaluateContext is Evaluate with cancellation: when ctx is cancelled or
// its deadline passes, the evaluation stops with a *vm.InterruptedError
// after running pending finally blocks.
func EvaluateContext(ctx context.Context, cx *vm.Context, source, sourceName string) (vm.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, &vm.InterruptedError{Reason: err.Error()}
	}
	cx.SetGoContext(ctx)
	defer cx.SetGoContext(nil)
	return Evaluate(cx, source, sourceName)
}
