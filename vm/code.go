package vm

import (
	"errors"
	"sort"
	"sync"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Executables
// ---------------------------------------------------------------------------

// Executable is a compiled script: bytecode (*Code) or an annotated
// syntax tree (*TreeScript). Executables are immutable and may run in
// several Contexts at once.
type Executable interface {
	// ScriptName returns the source name given at compile time.
	ScriptName() string
	// OptimizationLevel returns the level the executable was compiled at.
	OptimizationLevel() int
	// Identity returns the content hash and instance id.
	Identity() Identity

	run(cx *Context, scope *Scope, this Value) (Value, error)
}

// RegionKind distinguishes catch and finally handlers.
type RegionKind uint8

const (
	RegionCatch RegionKind = iota
	RegionFinally
)

func (k RegionKind) String() string {
	if k == RegionFinally {
		return "finally"
	}
	return "catch"
}

// TryRegion maps a bytecode range to its handler. Regions are listed
// innermost first. On entry to the handler the operand stack and the
// scope chain are cut back to the depths recorded here.
type TryRegion struct {
	Start, End int // [Start, End)
	Handler    int
	Kind       RegionKind
	StackDepth int
	ScopeDepth int
	Index      int // completion slot of finally regions
}

// LineEntry records that instructions from PC on belong to Line.
type LineEntry struct {
	PC   int
	Line int
}

// Code is the bytecode form of a script, eval code or function body.
type Code struct {
	Name       string // function name; empty for scripts
	SourceName string
	Source     string // function source text for toString

	Bytecode   []byte
	Constants  []Value // numbers and flat strings only
	Names      []string
	Functions  []*Code
	Scopes     []*ast.ScopeInfo
	TryRegions []TryRegion
	Lines      []LineEntry

	// Info is the frame layout of a function; nil for scripts and eval code.
	Info *ast.FunctionInfo

	Length   int
	Strict   bool
	Arrow    bool
	Accessor bool
	Eval     bool

	// Optimized enables per-Context feedback caches.
	Optimized  bool
	Level      int
	ArithSites int
	PropSites  int
	CallSites  int
	NumFinally int

	idOnce sync.Once
	id     Identity
}

// ScriptName implements Executable.
func (c *Code) ScriptName() string { return c.SourceName }

// OptimizationLevel implements Executable.
func (c *Code) OptimizationLevel() int { return c.Level }

// LineAt returns the source line of the instruction at pc.
func (c *Code) LineAt(pc int) int {
	i := sort.Search(len(c.Lines), func(i int) bool { return c.Lines[i].PC > pc })
	if i == 0 {
		if len(c.Lines) > 0 {
			return c.Lines[0].Line
		}
		return 0
	}
	return c.Lines[i-1].Line
}

func (c *Code) run(cx *Context, scope *Scope, this Value) (Value, error) {
	return cx.runCode(c, nil, scope, this)
}

// ---------------------------------------------------------------------------
// Running executables
// ---------------------------------------------------------------------------

// ErrNoCompiler is returned when source must be compiled but the factory
// has no Compiler.
var ErrNoCompiler = errors.New("vm: factory has no compiler")

// Exec runs e with scope as its top-level scope. A nil scope selects the
// global scope, initializing the standard objects if needed.
func (cx *Context) Exec(e Executable, scope *Scope) (Value, error) {
	if scope == nil {
		if cx.realm == nil {
			if _, err := cx.InitStandardObjects(InitOptions{}); err != nil {
				return nil, err
			}
		}
		scope = cx.realm.GlobalScope
	}
	outer := cx.realm
	if r := scope.Realm(); r != nil {
		cx.realm = r
	}
	cx.running++
	defer func() {
		cx.running--
		cx.realm = outer
		if cx.running == 0 {
			cx.pending = nil
			cx.interruptFlag.Store(false)
			cx.unwinding = 0
			cx.ticks = 0
		}
	}()

	v, err := e.run(cx, scope, scope.Global())
	if err == nil && cx.running == 1 && cx.pending != nil {
		// a finally block ended with return, break or continue after the
		// interrupt was raised; the evaluation still fails
		err = cx.pending
	}
	if err != nil {
		if ex, ok := cx.asException(err); ok {
			return nil, ex
		}
		return nil, err
	}
	return v, nil
}

// CompileString compiles source with the factory's compiler at the
// Context's optimization level.
func (cx *Context) CompileString(source, sourceName string) (Executable, error) {
	return cx.compile(source, CompileOptions{SourceName: sourceName, Level: cx.optLevel})
}

func (cx *Context) compile(source string, opts CompileOptions) (Executable, error) {
	c := cx.factory.Compiler
	if c == nil {
		return nil, ErrNoCompiler
	}
	e, err := c.Compile(cx, source, opts)
	if err != nil {
		return nil, err
	}
	if cx.debugger != nil {
		cx.debugger.OnCompiled(e, source)
	}
	return e, nil
}

// EvaluateString compiles and runs source in the global scope.
func (cx *Context) EvaluateString(source, sourceName string) (Value, error) {
	e, err := cx.CompileString(source, sourceName)
	if err != nil {
		return nil, err
	}
	return cx.Exec(e, nil)
}

// ---------------------------------------------------------------------------
// eval
// ---------------------------------------------------------------------------

// directEval runs eval code in the caller's scope. Non-string arguments
// are returned unchanged.
func (cx *Context) directEval(args []Value, scope *Scope, this Value, strict bool, level int) (Value, error) {
	if len(args) == 0 {
		return Undefined, nil
	}
	src, ok := args[0].(*String)
	if !ok {
		return args[0], nil
	}
	name := "eval"
	if frames := cx.captureStack(); len(frames) > 0 {
		name = frames[0].SourceName
	}
	e, err := cx.compile(src.String(), CompileOptions{SourceName: name, Eval: true, Strict: strict, Level: level})
	if err != nil {
		if ex, ok := cx.asException(err); ok {
			return nil, ex
		}
		return nil, err
	}
	return e.run(cx, scope, this)
}

// indirectEval implements calls to eval other than direct eval calls: the
// code runs sloppy in the global scope.
func (cx *Context) indirectEval(args []Value) (Value, error) {
	g := cx.currentRealm().GlobalScope
	return cx.directEval(args, g, g.Global(), false, cx.optLevel)
}
