package vm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// TreeScript: the interpreted form (optimization level -1)
// ---------------------------------------------------------------------------

// TreeScript is an executable that evaluates the resolved syntax tree
// directly. It shares every operator and object-model operation with the
// bytecode interpreter.
type TreeScript struct {
	Program *ast.Program

	idOnce sync.Once
	id     Identity
}

// NewTreeScript wraps a resolved program.
func NewTreeScript(prog *ast.Program) *TreeScript {
	return &TreeScript{Program: prog}
}

// ScriptName implements Executable.
func (t *TreeScript) ScriptName() string { return t.Program.SourceName }

// OptimizationLevel implements Executable.
func (t *TreeScript) OptimizationLevel() int { return -1 }

// Identity implements Executable.
func (t *TreeScript) Identity() Identity {
	t.idOnce.Do(func() {
		p := t.Program
		form := treeForm{SourceName: p.SourceName, Source: ast.ToSource(p), Strict: p.Strict, Eval: p.Eval}
		t.id = Identity{Hash: hashForm(form), Instance: uuid.New()}
	})
	return t.id
}

func (t *TreeScript) run(cx *Context, scope *Scope, this Value) (Value, error) {
	prog := t.Program
	w := &walker{
		cx:      cx,
		script:  t,
		scope:   scope,
		this:    this,
		strict:  prog.Strict,
		global:  scope.globalScope(),
		program: true,
		result:  Undefined,
	}
	w.act = cx.pushActivation(&Activation{sourceName: prog.SourceName, scope: scope})
	unwinding := cx.unwinding
	v, err := w.runProgram(prog)
	cx.unwinding = unwinding
	cx.popActivation(w.act, err)
	return v, err
}

// callTree runs the body of a function created by the AST interpreter.
func (cx *Context) callTree(fn *Object, this Value, args []Value) (Value, error) {
	t := fn.fn.tree
	lit := t.lit
	scope := cx.newFunctionFrame(fn, lit.Info, args)
	w := &walker{
		cx:     cx,
		script: t.script,
		fn:     fn,
		scope:  scope,
		this:   this,
		strict: lit.Info.Strict,
		global: scope.globalScope(),
	}
	w.act = cx.pushActivation(&Activation{
		fn:         fn,
		sourceName: t.script.Program.SourceName,
		line:       lit.SpanVal.Start.Line,
		scope:      scope,
	})
	unwinding := cx.unwinding
	v, err := w.runFunction(lit)
	cx.unwinding = unwinding
	cx.popActivation(w.act, err)
	return v, err
}

// ---------------------------------------------------------------------------
// Walker state and completions
// ---------------------------------------------------------------------------

type controlKind uint8

const (
	ctlNormal controlKind = iota
	ctlBreak
	ctlContinue
	ctlReturn
)

// control is the abrupt completion of a statement other than a throw,
// which travels as an error.
type control struct {
	kind  controlKind
	label string
	value Value
}

var normal = control{}

type walker struct {
	cx     *Context
	script *TreeScript
	fn     *Object
	act    *Activation
	scope  *Scope
	global *Scope
	this   Value
	strict bool

	// Top-level code tracks the completion value of expression
	// statements.
	program bool
	result  Value
}

// mark records the current source position for stack traces and the
// debugger.
func (w *walker) mark(n ast.Node) {
	w.act.line = n.Span().Start.Line
	w.act.scope = w.scope
}

// backEdge polls for interrupts at the end of a loop iteration.
func (w *walker) backEdge() error {
	if w.cx.unwinding == 0 {
		return w.cx.poll()
	}
	return nil
}

func (w *walker) runProgram(prog *ast.Program) (Value, error) {
	cx := w.cx
	if prog.Eval {
		w.scope = newFrame(w.scope, prog.Scope)
	}
	for _, name := range prog.VarNames {
		if err := cx.declareVar(w.scope, name, prog.Eval); err != nil {
			return nil, err
		}
	}
	if err := w.hoistFunctions(prog.FuncDecls, prog.Eval); err != nil {
		return nil, err
	}
	if !prog.Eval {
		for _, d := range TopLevelLexicals(prog.Body) {
			for _, decl := range d.Decls {
				if err := cx.declareLexical(w.global, decl.Name.Name, d.Kind); err != nil {
					return nil, err
				}
			}
		}
	}
	ctl, err := w.stmts(prog.Body)
	if err != nil {
		return nil, err
	}
	if ctl.kind == ctlReturn {
		return ctl.value, nil
	}
	return w.result, nil
}

func (w *walker) runFunction(lit *ast.FunctionLiteral) (Value, error) {
	if err := w.hoistFunctions(lit.Info.FuncDecls, false); err != nil {
		return nil, err
	}
	ctl, err := w.stmts(lit.Body)
	if err != nil {
		return nil, err
	}
	if ctl.kind == ctlReturn {
		return ctl.value, nil
	}
	return Undefined, nil
}

// hoistFunctions instantiates hoisted function declarations: into their
// frame slot when statically bound, otherwise on the variable object.
func (w *walker) hoistFunctions(decls []*ast.FunctionDecl, eval bool) error {
	for _, fd := range decls {
		fn := w.cx.newTreeFunction(w.script, fd.Func, w.scope, w.this)
		b := fd.Func.Name.Binding
		if b.Kind == ast.BindStatic {
			w.scope.up(b.Depth).slots[b.Slot] = fn
			continue
		}
		if err := w.cx.declareFunction(w.scope, fd.Func.Name.Name, fn, eval); err != nil {
			return err
		}
	}
	return nil
}

// TopLevelLexicals returns the let and const declarations directly in a
// program body, looking through labels.
func TopLevelLexicals(body []ast.Stmt) []*ast.VarDecl {
	var out []*ast.VarDecl
	for _, s := range body {
		for {
			l, ok := s.(*ast.LabeledStmt)
			if !ok {
				break
			}
			s = l.Body
		}
		if d, ok := s.(*ast.VarDecl); ok && d.Kind.IsLexical() {
			out = append(out, d)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (w *walker) stmts(list []ast.Stmt) (control, error) {
	for _, s := range list {
		ctl, err := w.stmt(s)
		if err != nil || ctl.kind != ctlNormal {
			return ctl, err
		}
	}
	return normal, nil
}

func (w *walker) stmt(s ast.Stmt) (control, error) {
	cx := w.cx
	w.mark(s)
	switch s := s.(type) {
	case *ast.ExprStmt:
		v, err := w.expr(s.X)
		if err != nil {
			return normal, err
		}
		if w.program {
			w.result = v
		}
		return normal, nil

	case *ast.VarDecl:
		for _, d := range s.Decls {
			if d.Init == nil {
				if s.Kind.IsLexical() {
					if err := w.initBinding(d.Name, Undefined); err != nil {
						return normal, err
					}
				}
				continue
			}
			v, err := w.expr(d.Init)
			if err != nil {
				return normal, err
			}
			if s.Kind.IsLexical() {
				err = w.initBinding(d.Name, v)
			} else {
				err = w.assignName(d.Name, v)
			}
			if err != nil {
				return normal, err
			}
		}
		return normal, nil

	case *ast.FunctionDecl:
		if s.AnnexB == nil {
			return normal, nil
		}
		v, err := w.loadName(s.Func.Name, false)
		if err != nil {
			return normal, err
		}
		return normal, w.assignAnnexB(s.AnnexB, v)

	case *ast.BlockStmt:
		return w.block(s)

	case *ast.EmptyStmt:
		return normal, nil

	case *ast.IfStmt:
		t, err := w.expr(s.Test)
		if err != nil {
			return normal, err
		}
		if ToBoolean(t) {
			return w.stmt(s.Cons)
		}
		if s.Alt != nil {
			return w.stmt(s.Alt)
		}
		return normal, nil

	case *ast.ForStmt:
		return w.forStmt(s, nil)
	case *ast.ForInStmt:
		return w.forInStmt(s, nil)
	case *ast.WhileStmt:
		return w.whileStmt(s, nil)
	case *ast.DoWhileStmt:
		return w.doWhileStmt(s, nil)

	case *ast.BreakStmt:
		return control{kind: ctlBreak, label: s.Label}, nil
	case *ast.ContinueStmt:
		return control{kind: ctlContinue, label: s.Label}, nil

	case *ast.ReturnStmt:
		v := Value(Undefined)
		if s.Arg != nil {
			var err error
			if v, err = w.expr(s.Arg); err != nil {
				return normal, err
			}
		}
		return control{kind: ctlReturn, value: v}, nil

	case *ast.ThrowStmt:
		v, err := w.expr(s.Arg)
		if err != nil {
			return normal, err
		}
		return normal, cx.throwValue(v)

	case *ast.TryStmt:
		return w.tryStmt(s)

	case *ast.SwitchStmt:
		return w.switchStmt(s)

	case *ast.LabeledStmt:
		return w.labeled(s, nil)

	case *ast.WithStmt:
		v, err := w.expr(s.Object)
		if err != nil {
			return normal, err
		}
		o, err := cx.ToObject(v)
		if err != nil {
			return normal, err
		}
		saved := w.scope
		w.scope = newWithScope(saved, o)
		ctl, err := w.stmt(s.Body)
		w.scope = saved
		return ctl, err

	case *ast.DebuggerStmt:
		cx.debuggerStatement()
		return normal, nil
	}
	panic("vm: unexpected statement in tree interpreter")
}

func (w *walker) block(s *ast.BlockStmt) (control, error) {
	if s.Scope == nil {
		return w.stmts(s.Body)
	}
	saved := w.scope
	w.scope = newFrame(saved, s.Scope)
	ctl, err := w.blockBody(s.FuncDecls, s.Body)
	w.scope = saved
	return ctl, err
}

func (w *walker) blockBody(funcs []*ast.FunctionDecl, body []ast.Stmt) (control, error) {
	if err := w.hoistFunctions(funcs, false); err != nil {
		return normal, err
	}
	return w.stmts(body)
}

// labeled runs a labeled statement. Consecutive labels are collected so
// that a loop sees every label naming it.
func (w *walker) labeled(s *ast.LabeledStmt, labels []string) (control, error) {
	labels = append(labels, s.Label)
	var ctl control
	var err error
	switch body := s.Body.(type) {
	case *ast.LabeledStmt:
		ctl, err = w.labeled(body, labels)
	case *ast.ForStmt:
		w.mark(body)
		ctl, err = w.forStmt(body, labels)
	case *ast.ForInStmt:
		w.mark(body)
		ctl, err = w.forInStmt(body, labels)
	case *ast.WhileStmt:
		w.mark(body)
		ctl, err = w.whileStmt(body, labels)
	case *ast.DoWhileStmt:
		w.mark(body)
		ctl, err = w.doWhileStmt(body, labels)
	default:
		ctl, err = w.stmt(body)
	}
	if err == nil && ctl.kind == ctlBreak && ctl.label == s.Label {
		return normal, nil
	}
	return ctl, err
}

// loopBody interprets the completion of one loop iteration. It reports
// whether the loop ends, and the completion to propagate when it does.
func loopBody(ctl control, labels []string) (bool, control) {
	switch ctl.kind {
	case ctlNormal:
		return false, normal
	case ctlContinue:
		if ctl.label == "" || hasLabel(labels, ctl.label) {
			return false, normal
		}
	case ctlBreak:
		if ctl.label == "" {
			return true, normal
		}
	}
	return true, ctl
}

func hasLabel(labels []string, l string) bool {
	for _, x := range labels {
		if x == l {
			return true
		}
	}
	return false
}

func (w *walker) test(e ast.Expr) (bool, error) {
	v, err := w.expr(e)
	if err != nil {
		return false, err
	}
	return ToBoolean(v), nil
}

func (w *walker) whileStmt(s *ast.WhileStmt, labels []string) (control, error) {
	for {
		w.mark(s)
		ok, err := w.test(s.Test)
		if err != nil || !ok {
			return normal, err
		}
		ctl, err := w.stmt(s.Body)
		if err != nil {
			return normal, err
		}
		if done, out := loopBody(ctl, labels); done {
			return out, nil
		}
		if err := w.backEdge(); err != nil {
			return normal, err
		}
	}
}

func (w *walker) doWhileStmt(s *ast.DoWhileStmt, labels []string) (control, error) {
	for {
		ctl, err := w.stmt(s.Body)
		if err != nil {
			return normal, err
		}
		if done, out := loopBody(ctl, labels); done {
			return out, nil
		}
		w.mark(s)
		ok, err := w.test(s.Test)
		if err != nil || !ok {
			return normal, err
		}
		if err := w.backEdge(); err != nil {
			return normal, err
		}
	}
}

func (w *walker) forStmt(s *ast.ForStmt, labels []string) (control, error) {
	saved := w.scope
	defer func() { w.scope = saved }()
	if s.Scope != nil {
		w.scope = newFrame(saved, s.Scope)
	}
	switch init := s.Init.(type) {
	case *ast.VarDecl:
		if _, err := w.stmt(init); err != nil {
			return normal, err
		}
	case ast.Expr:
		if _, err := w.expr(init); err != nil {
			return normal, err
		}
	}
	for {
		if s.Test != nil {
			w.mark(s)
			ok, err := w.test(s.Test)
			if err != nil || !ok {
				return normal, err
			}
		}
		ctl, err := w.stmt(s.Body)
		if err != nil {
			return normal, err
		}
		if done, out := loopBody(ctl, labels); done {
			return out, nil
		}
		if s.Scope != nil {
			// Closures of one iteration keep their own bindings.
			w.scope = w.scope.clone()
		}
		if s.Update != nil {
			w.mark(s)
			if _, err := w.expr(s.Update); err != nil {
				return normal, err
			}
		}
		if err := w.backEdge(); err != nil {
			return normal, err
		}
	}
}

func (w *walker) forInStmt(s *ast.ForInStmt, labels []string) (control, error) {
	cx := w.cx
	obj, err := w.expr(s.Right)
	if err != nil {
		return normal, err
	}
	var it *iterValue
	if s.Of {
		it, err = cx.forOfIterator(obj)
	} else {
		it, err = cx.forInIterator(obj)
	}
	if err != nil {
		return normal, err
	}
	saved := w.scope
	defer func() { w.scope = saved }()
	for {
		v, ok, err := cx.iterNext(it)
		if err != nil || !ok {
			return normal, err
		}
		if s.Scope != nil {
			w.scope = newFrame(saved, s.Scope)
		}
		switch left := s.Left.(type) {
		case *ast.VarDecl:
			if left.Kind.IsLexical() {
				err = w.initBinding(left.Decls[0].Name, v)
			} else {
				err = w.assignName(left.Decls[0].Name, v)
			}
		case ast.Expr:
			err = w.assignTo(left, v)
		}
		if err != nil {
			return normal, err
		}
		ctl, err := w.stmt(s.Body)
		w.scope = saved
		if err != nil {
			return normal, err
		}
		if done, out := loopBody(ctl, labels); done {
			return out, nil
		}
		if err := w.backEdge(); err != nil {
			return normal, err
		}
		w.mark(s)
	}
}

func (w *walker) switchStmt(s *ast.SwitchStmt) (control, error) {
	d, err := w.expr(s.Disc)
	if err != nil {
		return normal, err
	}
	saved := w.scope
	defer func() { w.scope = saved }()
	if s.Scope != nil {
		w.scope = newFrame(saved, s.Scope)
	}
	if err := w.hoistFunctions(s.FuncDecls, false); err != nil {
		return normal, err
	}
	start := -1
	for i, c := range s.Cases {
		if c.Test == nil {
			continue
		}
		v, err := w.expr(c.Test)
		if err != nil {
			return normal, err
		}
		if StrictEquals(d, v) {
			start = i
			break
		}
	}
	if start < 0 {
		for i, c := range s.Cases {
			if c.Test == nil {
				start = i
			}
		}
	}
	if start < 0 {
		return normal, nil
	}
	for _, c := range s.Cases[start:] {
		ctl, err := w.stmts(c.Body)
		if err != nil {
			return normal, err
		}
		switch {
		case ctl.kind == ctlBreak && ctl.label == "":
			return normal, nil
		case ctl.kind != ctlNormal:
			return ctl, nil
		}
	}
	return normal, nil
}

// tryStmt runs a try statement. The finally block runs on every exit;
// its own abrupt completion replaces the pending one. Interrupts skip the
// catch block.
func (w *walker) tryStmt(s *ast.TryStmt) (control, error) {
	cx := w.cx
	saved := w.scope
	ctl, err := w.block(s.Block)
	w.scope = saved
	if err != nil && s.Handler != nil && !isInterrupt(err) {
		ex, _ := cx.asException(err)
		if s.CatchScope != nil {
			w.scope = newFrame(saved, s.CatchScope)
			w.scope.slots[0] = ex.Value
		}
		w.mark(s.Handler)
		ctl, err = w.block(s.Handler)
		w.scope = saved
	}
	if s.Finalizer == nil {
		return ctl, err
	}
	interrupted := err != nil && isInterrupt(err)
	if interrupted {
		cx.unwinding++
	}
	w.mark(s.Finalizer)
	fctl, ferr := w.block(s.Finalizer)
	if interrupted {
		cx.unwinding--
	}
	w.scope = saved
	if ferr != nil || fctl.kind != ctlNormal {
		return fctl, ferr
	}
	return ctl, err
}

// ---------------------------------------------------------------------------
// Bindings
// ---------------------------------------------------------------------------

func (w *walker) loadName(id *ast.Identifier, typeofMode bool) (Value, error) {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		s := w.scope.up(b.Depth)
		v := s.slots[b.Slot]
		if isHole(v) {
			return nil, w.cx.tdzError(id.Name)
		}
		return v, nil
	case ast.BindGlobal:
		return w.cx.getGlobal(w.global, id.Name, typeofMode)
	}
	return w.cx.getName(w.scope, id.Name, typeofMode)
}

func (w *walker) assignName(id *ast.Identifier, v Value) error {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		s := w.scope.up(b.Depth)
		return w.cx.setSlot(s, b.Slot, b.Decl, id.Name, v, w.strict)
	case ast.BindGlobal:
		return w.cx.setGlobal(w.global, id.Name, v, w.strict)
	}
	return w.cx.setName(w.scope, id.Name, v, w.strict)
}

// initBinding initializes a let or const binding.
func (w *walker) initBinding(id *ast.Identifier, v Value) error {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		w.scope.up(b.Depth).slots[b.Slot] = v
		return nil
	case ast.BindGlobal:
		w.global.initLexical(id.Name, v)
		return nil
	}
	return w.cx.setName(w.scope, id.Name, v, w.strict)
}

// assignAnnexB copies a block function to the var of the same name. The
// binding was resolved from outside the block frame.
func (w *walker) assignAnnexB(id *ast.Identifier, v Value) error {
	b := id.Binding
	switch b.Kind {
	case ast.BindStatic:
		s := w.scope.up(b.Depth + 1)
		return w.cx.setSlot(s, b.Slot, b.Decl, id.Name, v, w.strict)
	case ast.BindGlobal:
		return w.cx.setGlobal(w.global, id.Name, v, w.strict)
	}
	return w.cx.setName(w.scope.parent, id.Name, v, w.strict)
}

// assignTo stores v into an assignment target.
func (w *walker) assignTo(target ast.Expr, v Value) error {
	switch t := target.(type) {
	case *ast.Identifier:
		return w.assignName(t, v)
	case *ast.MemberExpr:
		o, err := w.expr(t.Object)
		if err != nil {
			return err
		}
		return w.cx.setValue(o, t.Property, v, w.strict)
	case *ast.IndexExpr:
		o, err := w.expr(t.Object)
		if err != nil {
			return err
		}
		k, err := w.expr(t.Index)
		if err != nil {
			return err
		}
		return w.cx.setElem(o, k, v, w.strict)
	}
	return w.cx.newError(ErrorReference, "Invalid assignment left-hand side.")
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (w *walker) exprs(list []ast.Expr) ([]Value, error) {
	out := make([]Value, len(list))
	for i, e := range list {
		v, err := w.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (w *walker) expr(e ast.Expr) (Value, error) {
	cx := w.cx
	switch e := e.(type) {
	case *ast.Identifier:
		return w.loadName(e, false)
	case *ast.NumberLiteral:
		return Number(e.Value), nil
	case *ast.StringLiteral:
		return NewString(e.Value), nil
	case *ast.BoolLiteral:
		return BoolValue(e.Value), nil
	case *ast.NullLiteral:
		return Null, nil
	case *ast.ThisExpr:
		return w.this, nil
	case *ast.RegExpLiteral:
		re, err := cx.NewRegExp(e.Pattern, e.Flags)
		if err != nil {
			return nil, err
		}
		return re, nil

	case *ast.TemplateLiteral:
		s := NewString(e.Cooked[0])
		for i, x := range e.Exprs {
			v, err := w.expr(x)
			if err != nil {
				return nil, err
			}
			str, err := cx.ToString(v)
			if err != nil {
				return nil, err
			}
			s = Concat(Concat(s, str), NewString(e.Cooked[i+1]))
		}
		return s, nil

	case *ast.ArrayLiteral:
		arr := NewArray(w.global.realm.ArrayPrototype, nil)
		for _, x := range e.Elements {
			if x == nil {
				arrayPush(arr, hole)
				continue
			}
			v, err := w.expr(x)
			if err != nil {
				return nil, err
			}
			arrayPush(arr, v)
		}
		return arr, nil

	case *ast.ObjectLiteral:
		return w.objectLiteral(e)

	case *ast.FunctionLiteral:
		return cx.newTreeFunction(w.script, e, w.scope, w.this), nil

	case *ast.UnaryExpr:
		return w.unary(e)

	case *ast.UpdateExpr:
		return w.update(e)

	case *ast.BinaryExpr:
		a, err := w.expr(e.X)
		if err != nil {
			return nil, err
		}
		b, err := w.expr(e.Y)
		if err != nil {
			return nil, err
		}
		return cx.binaryOp(e.Op, a, b)

	case *ast.LogicalExpr:
		a, err := w.expr(e.X)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case ast.OpAnd:
			if !ToBoolean(a) {
				return a, nil
			}
		case ast.OpOr:
			if ToBoolean(a) {
				return a, nil
			}
		default:
			if !IsNullish(a) {
				return a, nil
			}
		}
		return w.expr(e.Y)

	case *ast.ConditionalExpr:
		ok, err := w.test(e.Test)
		if err != nil {
			return nil, err
		}
		if ok {
			return w.expr(e.Cons)
		}
		return w.expr(e.Alt)

	case *ast.AssignExpr:
		return w.assign(e)

	case *ast.CallExpr:
		return w.call(e)

	case *ast.NewExpr:
		fv, err := w.expr(e.Callee)
		if err != nil {
			return nil, err
		}
		args, err := w.exprs(e.Args)
		if err != nil {
			return nil, err
		}
		w.act.State = StateSuspended
		v, err := cx.constructValue(fv, args, CalleeDescription(e.Callee))
		w.act.State = StateRunning
		return v, err

	case *ast.MemberExpr:
		o, err := w.expr(e.Object)
		if err != nil {
			return nil, err
		}
		return cx.getValue(o, e.Property)

	case *ast.IndexExpr:
		o, err := w.expr(e.Object)
		if err != nil {
			return nil, err
		}
		k, err := w.expr(e.Index)
		if err != nil {
			return nil, err
		}
		return cx.getElem(o, k)

	case *ast.SequenceExpr:
		var v Value = Undefined
		for _, x := range e.List {
			var err error
			if v, err = w.expr(x); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	panic("vm: unexpected expression in tree interpreter")
}

func (w *walker) objectLiteral(e *ast.ObjectLiteral) (Value, error) {
	cx := w.cx
	o := NewObject(w.global.realm.ObjectPrototype, "Object")
	for _, p := range e.Properties {
		key := p.Key
		if p.Computed != nil {
			k, err := w.expr(p.Computed)
			if err != nil {
				return nil, err
			}
			if key, err = cx.ToPropertyKey(k); err != nil {
				return nil, err
			}
		}
		if p.Kind != ast.PropertyInit {
			fn := cx.newTreeFunction(w.script, p.Value.(*ast.FunctionLiteral), w.scope, w.this)
			cx.initAccessor(o, key, fn, p.Kind == ast.PropertySet)
			continue
		}
		v, err := w.expr(p.Value)
		if err != nil {
			return nil, err
		}
		if p.Computed != nil {
			o.DefineOwnProperty(key, DataDescriptor(v, FlagsDefault))
		} else {
			cx.initProperty(o, key, v)
		}
	}
	return o, nil
}

func (w *walker) unary(e *ast.UnaryExpr) (Value, error) {
	cx := w.cx
	switch e.Op {
	case ast.OpTypeof:
		if id, ok := e.X.(*ast.Identifier); ok {
			v, err := w.loadName(id, true)
			if err != nil {
				return nil, err
			}
			return typeofValue(v), nil
		}
	case ast.OpDelete:
		return w.delete(e.X)
	}
	v, err := w.expr(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpTypeof:
		return typeofValue(v), nil
	case ast.OpVoid:
		return Undefined, nil
	case ast.OpNot:
		return BoolValue(!ToBoolean(v)), nil
	case ast.OpNeg:
		return cx.negate(v)
	case ast.OpPlus:
		n, err := cx.ToNumber(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case ast.OpBitNot:
		return cx.bitNot(v)
	}
	panic("vm: unexpected unary operator")
}

func (w *walker) delete(x ast.Expr) (Value, error) {
	cx := w.cx
	switch t := x.(type) {
	case *ast.Identifier:
		if t.Binding.Kind == ast.BindStatic {
			return False, nil
		}
		ok, err := cx.deleteName(w.scope, t.Name)
		return BoolValue(ok), err
	case *ast.MemberExpr:
		o, err := w.expr(t.Object)
		if err != nil {
			return nil, err
		}
		ok, err := cx.deleteValue(o, t.Property, w.strict)
		return BoolValue(ok), err
	case *ast.IndexExpr:
		o, err := w.expr(t.Object)
		if err != nil {
			return nil, err
		}
		k, err := w.expr(t.Index)
		if err != nil {
			return nil, err
		}
		key, err := cx.ToPropertyKey(k)
		if err != nil {
			return nil, err
		}
		ok, err := cx.deleteValue(o, key, w.strict)
		return BoolValue(ok), err
	}
	if _, err := w.expr(x); err != nil {
		return nil, err
	}
	return True, nil
}

// reference is an evaluated assignment target.
type reference struct {
	id  *ast.Identifier
	obj Value
	key string
}

func (w *walker) reference(target ast.Expr) (reference, error) {
	switch t := target.(type) {
	case *ast.Identifier:
		return reference{id: t}, nil
	case *ast.MemberExpr:
		o, err := w.expr(t.Object)
		return reference{obj: o, key: t.Property}, err
	case *ast.IndexExpr:
		o, err := w.expr(t.Object)
		if err != nil {
			return reference{}, err
		}
		k, err := w.expr(t.Index)
		if err != nil {
			return reference{}, err
		}
		key, err := w.cx.ToPropertyKey(k)
		return reference{obj: o, key: key}, err
	}
	return reference{}, w.cx.newError(ErrorReference, "Invalid assignment left-hand side.")
}

func (w *walker) getRef(r reference) (Value, error) {
	if r.id != nil {
		return w.loadName(r.id, false)
	}
	return w.cx.getValue(r.obj, r.key)
}

func (w *walker) putRef(r reference, v Value) error {
	if r.id != nil {
		return w.assignName(r.id, v)
	}
	return w.cx.setValue(r.obj, r.key, v, w.strict)
}

func (w *walker) assign(e *ast.AssignExpr) (Value, error) {
	cx := w.cx
	if e.Op == ast.OpAssign {
		switch t := e.Target.(type) {
		case *ast.Identifier:
			v, err := w.expr(e.Value)
			if err != nil {
				return nil, err
			}
			return v, w.assignName(t, v)
		case *ast.IndexExpr:
			// The key is converted after the value is evaluated.
			o, err := w.expr(t.Object)
			if err != nil {
				return nil, err
			}
			k, err := w.expr(t.Index)
			if err != nil {
				return nil, err
			}
			v, err := w.expr(e.Value)
			if err != nil {
				return nil, err
			}
			return v, cx.setElem(o, k, v, w.strict)
		}
	}
	ref, err := w.reference(e.Target)
	if err != nil {
		return nil, err
	}
	if e.Op == ast.OpAssign {
		v, err := w.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return v, w.putRef(ref, v)
	}
	old, err := w.getRef(ref)
	if err != nil {
		return nil, err
	}
	rhs, err := w.expr(e.Value)
	if err != nil {
		return nil, err
	}
	v, err := cx.binaryOp(e.Op, old, rhs)
	if err != nil {
		return nil, err
	}
	return v, w.putRef(ref, v)
}

func (w *walker) update(e *ast.UpdateExpr) (Value, error) {
	ref, err := w.reference(e.X)
	if err != nil {
		return nil, err
	}
	old, err := w.getRef(ref)
	if err != nil {
		return nil, err
	}
	n, err := w.cx.ToNumber(old)
	if err != nil {
		return nil, err
	}
	next := n + 1
	if e.Op == ast.OpDec {
		next = n - 1
	}
	if err := w.putRef(ref, next); err != nil {
		return nil, err
	}
	if e.Prefix {
		return next, nil
	}
	return n, nil
}

func (w *walker) call(e *ast.CallExpr) (Value, error) {
	cx := w.cx
	var fv, this Value = nil, Undefined
	var err error
	switch c := e.Callee.(type) {
	case *ast.MemberExpr:
		if this, err = w.expr(c.Object); err != nil {
			return nil, err
		}
		fv, err = cx.getValue(this, c.Property)
	case *ast.IndexExpr:
		if this, err = w.expr(c.Object); err != nil {
			return nil, err
		}
		var k Value
		if k, err = w.expr(c.Index); err != nil {
			return nil, err
		}
		fv, err = cx.getElem(this, k)
	case *ast.Identifier:
		if c.Binding.Kind == ast.BindDynamic || c.Binding.Kind == ast.BindUnresolved {
			fv, this, err = cx.getNameThis(w.scope, c.Name)
		} else {
			fv, err = w.loadName(c, false)
		}
	default:
		fv, err = w.expr(e.Callee)
	}
	if err != nil {
		return nil, err
	}
	args, err := w.exprs(e.Args)
	if err != nil {
		return nil, err
	}
	w.act.State = StateSuspended
	defer func() { w.act.State = StateRunning }()
	if e.DirectEval {
		if fo, ok := fv.(*Object); ok && fo == w.global.realm.Eval {
			return cx.directEval(args, w.scope, w.this, w.strict, -1)
		}
	}
	return cx.callValue(fv, this, args, CalleeDescription(e.Callee))
}

// CalleeDescription renders the callee of a call or new expression for
// "is not a function" errors. Function literals are not described.
func CalleeDescription(e ast.Expr) string {
	switch e.(type) {
	case *ast.FunctionLiteral, *ast.ObjectLiteral, *ast.ArrayLiteral:
		return ""
	}
	return ast.ToSource(e)
}
