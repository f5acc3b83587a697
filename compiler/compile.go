package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

var log = commonlog.GetLogger("rhino.compiler")

// Generate compiles a resolved program to bytecode. Levels above zero
// enable the per-Context feedback caches of the interpreter.
func Generate(prog *ast.Program, level int) (code *vm.Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			code, err = nil, b.err
		}
	}()
	code = &vm.Code{
		SourceName: prog.SourceName,
		Strict:     prog.Strict,
		Eval:       prog.Eval,
		Optimized:  level > 0,
		Level:      level,
	}
	g := newCodegen(prog, code, level)
	g.compileProgram()
	return g.finish(), nil
}

// Compile parses, resolves and compiles source. Level -1 keeps the
// resolved tree for the AST interpreter; any other level produces
// bytecode.
func Compile(source string, opts Options, level int) (vm.Executable, error) {
	prog, err := Parse(source, opts)
	if err != nil {
		return nil, err
	}
	if err := Resolve(prog, opts); err != nil {
		return nil, err
	}
	if level < 0 {
		log.Debugf("%s: retained syntax tree for interpretation", prog.SourceName)
		return vm.NewTreeScript(prog), nil
	}
	code, err := Generate(prog, level)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: compiled %d bytes of bytecode at level %d", prog.SourceName, len(code.Bytecode), level)
	return code, nil
}

// Compiler plugs the compiler into a vm.Factory. Feature queries go to
// the compiling Context, so parsing follows its language version and
// overrides.
type Compiler struct {
	// KeepComments retains comments in the parsed tree.
	KeepComments bool
}

// Compile implements vm.Compiler.
func (c Compiler) Compile(cx *vm.Context, source string, opts vm.CompileOptions) (vm.Executable, error) {
	return Compile(source, Options{
		Version:      cx.LanguageVersion(),
		Strict:       opts.Strict,
		KeepComments: c.KeepComments,
		SourceName:   opts.SourceName,
		Features:     cx,
		Eval:         opts.Eval,
	}, opts.Level)
}
