package compiler

import (
	"math"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile resolved syntax trees to bytecode
// ---------------------------------------------------------------------------

// codegen compiles one script, eval program or function body. Nested
// functions get their own codegen; only the source text is shared.
type codegen struct {
	prog  *ast.Program
	code  *vm.Code
	b     *vm.BytecodeBuilder
	level int

	strict  bool
	program bool // expression statements update the completion value

	consts map[constKey]int
	names  map[string]int
	scopes map[*ast.ScopeInfo]int

	depth      int // operand stack depth
	scopeDepth int // frames pushed above the activation's base scope
	targets    *jumpTarget
}

type constKey struct {
	str   bool
	s     string
	nbits uint64
}

// jumpTarget is a statement that break or continue may leave to.
type jumpTarget struct {
	parent    *jumpTarget
	labels    []string
	loop      bool // target of unlabeled continue
	breakable bool // target of unlabeled break

	brk        *vm.Label
	brkDepth   int
	brkScopes  int
	cont       *vm.Label
	contDepth  int
	contScopes int
}

func newCodegen(prog *ast.Program, code *vm.Code, level int) *codegen {
	return &codegen{
		prog:   prog,
		code:   code,
		b:      vm.NewBytecodeBuilder(),
		level:  level,
		strict: code.Strict,
		consts: make(map[constKey]int),
		names:  make(map[string]int),
		scopes: make(map[*ast.ScopeInfo]int),
	}
}

// tooLarge aborts code generation when an index outgrows its operand.
func (c *codegen) tooLarge(pos ast.Position, what string) {
	panic(bailout{err: newSyntaxError(c.prog.Source, c.prog.SourceName, pos, "program too large: too many "+what)})
}

func (c *codegen) finish() *vm.Code {
	c.code.Bytecode = c.b.Bytes()
	return c.code
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

// emit appends an instruction and applies its fixed stack effect.
func (c *codegen) emit(op vm.Opcode, operands ...int) {
	c.b.Emit(op, operands...)
	if eff := op.Info().StackEffect; eff != vm.VariableEffect {
		c.depth += eff
	}
}

func (c *codegen) jump(op vm.Opcode, l *vm.Label, extra ...int) {
	c.b.EmitJump(op, l, extra...)
	if eff := op.Info().StackEffect; eff != vm.VariableEffect {
		c.depth += eff
	}
}

func (c *codegen) label() *vm.Label { return c.b.NewLabel() }

func (c *codegen) mark(l *vm.Label) { c.b.Mark(l) }

// line records that code from the current position on belongs to the
// line of n.
func (c *codegen) line(n ast.Node) {
	c.lineAt(n.Span().Start.Line)
}

func (c *codegen) lineAt(line int) {
	pc := c.b.Len()
	lines := c.code.Lines
	if k := len(lines) - 1; k >= 0 && lines[k].PC == pc {
		lines[k].Line = line
		return
	}
	c.code.Lines = append(lines, vm.LineEntry{PC: pc, Line: line})
}

func (c *codegen) name(s string) int {
	if i, ok := c.names[s]; ok {
		return i
	}
	i := len(c.code.Names)
	if i > 0xFFFF {
		c.tooLarge(c.prog.SpanVal.Start, "names")
	}
	c.code.Names = append(c.code.Names, s)
	c.names[s] = i
	return i
}

func (c *codegen) constant(k constKey, v vm.Value) int {
	if i, ok := c.consts[k]; ok {
		return i
	}
	i := len(c.code.Constants)
	if i > 0xFFFF {
		c.tooLarge(c.prog.SpanVal.Start, "constants")
	}
	c.code.Constants = append(c.code.Constants, v)
	c.consts[k] = i
	return i
}

func (c *codegen) stringConst(s string) int {
	return c.constant(constKey{str: true, s: s}, vm.NewString(s))
}

func (c *codegen) scope(info *ast.ScopeInfo) int {
	if i, ok := c.scopes[info]; ok {
		return i
	}
	i := len(c.code.Scopes)
	c.code.Scopes = append(c.code.Scopes, info)
	c.scopes[info] = i
	return i
}

func (c *codegen) pushScope(info *ast.ScopeInfo) {
	c.emit(vm.OpPushScope, c.scope(info))
	c.scopeDepth++
}

func (c *codegen) popScope() {
	c.emit(vm.OpPopScope)
	c.scopeDepth--
}

func (c *codegen) number(f float64) {
	if f == math.Trunc(f) && !(f == 0 && math.Signbit(f)) {
		switch {
		case f >= math.MinInt8 && f <= math.MaxInt8:
			c.emit(vm.OpInt8, int(f))
			return
		case f >= math.MinInt32 && f <= math.MaxInt32:
			c.emit(vm.OpInt32, int(f))
			return
		}
	}
	c.emit(vm.OpConst, c.constant(constKey{nbits: math.Float64bits(f)}, vm.Number(f)))
}

func (c *codegen) arithSite() int {
	s := c.code.ArithSites
	c.code.ArithSites++
	return s
}

func (c *codegen) propSite() int {
	s := c.code.PropSites
	c.code.PropSites++
	return s
}

func (c *codegen) callSite() int {
	s := c.code.CallSites
	c.code.CallSites++
	return s
}

// throwError emits an unconditional error. It stands in for an
// expression, so the stack is accounted as if a value were pushed.
func (c *codegen) throwError(kind vm.ErrorKind, msg string) {
	c.emit(vm.OpThrowError, int(kind), c.stringConst(msg))
	c.depth++
}

// ---------------------------------------------------------------------------
// Programs and functions
// ---------------------------------------------------------------------------

// compileProgram compiles top-level script or eval code.
func (c *codegen) compileProgram() {
	prog := c.prog
	c.program = true
	if len(prog.Body) > 0 {
		c.line(prog.Body[0])
	} else {
		c.lineAt(prog.SpanVal.Start.Line)
	}
	if prog.Eval {
		c.pushScope(prog.Scope)
	}
	for _, name := range prog.VarNames {
		c.emit(vm.OpDeclareVar, c.name(name))
	}
	c.hoistFunctions(prog.FuncDecls)
	if !prog.Eval {
		for _, d := range vm.TopLevelLexicals(prog.Body) {
			for _, decl := range d.Decls {
				c.emit(vm.OpDeclareLexical, c.name(decl.Name.Name), int(d.Kind))
			}
		}
	}
	c.stmts(prog.Body)
	c.emit(vm.OpPushResult)
	c.emit(vm.OpReturn)
}

// compileFunction compiles the body of lit into c.code.
func (c *codegen) compileFunction(lit *ast.FunctionLiteral) {
	c.lineAt(lit.SpanVal.Start.Line)
	c.hoistFunctions(lit.Info.FuncDecls)
	c.stmts(lit.Body)
	c.emit(vm.OpUndefined)
	c.emit(vm.OpReturn)
}

// function compiles a nested function literal and returns its template
// index.
func (c *codegen) function(lit *ast.FunctionLiteral) int {
	name := ""
	if lit.Name != nil {
		name = lit.Name.Name
	}
	code := &vm.Code{
		Name:       name,
		SourceName: c.code.SourceName,
		Source:     lit.Source,
		Info:       lit.Info,
		Length:     len(lit.Params),
		Strict:     lit.Info.Strict,
		Arrow:      lit.Kind == ast.ArrowFunction,
		Accessor:   lit.Kind == ast.GetterFunction || lit.Kind == ast.SetterFunction,
		Optimized:  c.code.Optimized,
		Level:      c.level,
	}
	sub := newCodegen(c.prog, code, c.level)
	sub.compileFunction(lit)
	sub.finish()

	i := len(c.code.Functions)
	if i > 0xFFFF {
		c.tooLarge(lit.SpanVal.Start, "functions")
	}
	c.code.Functions = append(c.code.Functions, code)
	return i
}

// hoistFunctions instantiates hoisted declarations on entry to a body or
// block.
func (c *codegen) hoistFunctions(decls []*ast.FunctionDecl) {
	for _, fd := range decls {
		c.emit(vm.OpClosure, c.function(fd.Func))
		b := fd.Func.Name.Binding
		if b.Kind == ast.BindStatic {
			c.local(vm.OpInitLocal, fd.Func.Name, b.Depth, b.Slot)
			continue
		}
		c.emit(vm.OpDeclareFunc, c.name(fd.Func.Name.Name))
	}
}

// local emits a slot instruction.
func (c *codegen) local(op vm.Opcode, id *ast.Identifier, depth, slot int) {
	if depth > 0xFF {
		c.tooLarge(id.SpanVal.Start, "nested scopes")
	}
	c.emit(op, depth, slot)
}

// ---------------------------------------------------------------------------
// Bindings
// ---------------------------------------------------------------------------

func (c *codegen) loadName(id *ast.Identifier) {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		c.local(vm.OpGetLocal, id, b.Depth, b.Slot)
	case ast.BindGlobal:
		c.emit(vm.OpGetGlobal, c.name(id.Name))
	default:
		c.emit(vm.OpGetName, c.name(id.Name))
	}
}

func (c *codegen) typeofName(id *ast.Identifier) {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		c.local(vm.OpGetLocal, id, b.Depth, b.Slot)
		c.emit(vm.OpTypeof)
	case ast.BindGlobal:
		c.emit(vm.OpTypeofGlobal, c.name(id.Name))
	default:
		c.emit(vm.OpTypeofName, c.name(id.Name))
	}
}

// storeName assigns the value on top of the stack, leaving it there.
func (c *codegen) storeName(id *ast.Identifier) {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		c.local(vm.OpSetLocal, id, b.Depth, b.Slot)
	case ast.BindGlobal:
		c.emit(vm.OpSetGlobal, c.name(id.Name))
	default:
		c.emit(vm.OpSetName, c.name(id.Name))
	}
}

// initBinding pops the value on top of the stack into a let or const
// binding.
func (c *codegen) initBinding(id *ast.Identifier) {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		c.local(vm.OpInitLocal, id, b.Depth, b.Slot)
	case ast.BindGlobal:
		c.emit(vm.OpInitGlobal, c.name(id.Name))
	default:
		c.emit(vm.OpSetName, c.name(id.Name))
		c.emit(vm.OpPop)
	}
}

// storeAnnexB copies the block function on top of the stack to the var of
// the same name, resolved from outside the block frame.
func (c *codegen) storeAnnexB(id *ast.Identifier) {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		c.local(vm.OpSetLocal, id, b.Depth+1, b.Slot)
	case ast.BindGlobal:
		c.emit(vm.OpSetGlobal, c.name(id.Name))
	default:
		c.emit(vm.OpSetNameOuter, c.name(id.Name))
	}
}
