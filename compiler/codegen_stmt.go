package compiler

import (
	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *codegen) stmts(list []ast.Stmt) {
	for _, s := range list {
		c.stmt(s)
	}
}

func (c *codegen) stmt(s ast.Stmt) {
	c.line(s)
	switch s := s.(type) {
	case *ast.ExprStmt:
		c.expr(s.X)
		if c.program {
			c.emit(vm.OpSetResult)
		} else {
			c.emit(vm.OpPop)
		}

	case *ast.VarDecl:
		c.varDecl(s)

	case *ast.FunctionDecl:
		if s.AnnexB != nil {
			c.loadName(s.Func.Name)
			c.storeAnnexB(s.AnnexB)
			c.emit(vm.OpPop)
		}

	case *ast.BlockStmt:
		c.block(s)

	case *ast.EmptyStmt:

	case *ast.IfStmt:
		c.expr(s.Test)
		alt := c.label()
		c.jump(vm.OpJumpIfFalse, alt)
		c.stmt(s.Cons)
		if s.Alt == nil {
			c.mark(alt)
			break
		}
		end := c.label()
		c.jump(vm.OpJump, end)
		c.mark(alt)
		c.stmt(s.Alt)
		c.mark(end)

	case *ast.ForStmt:
		c.forStmt(s, nil)
	case *ast.ForInStmt:
		c.forInStmt(s, nil)
	case *ast.WhileStmt:
		c.whileStmt(s, nil)
	case *ast.DoWhileStmt:
		c.doWhileStmt(s, nil)

	case *ast.BreakStmt:
		t := c.breakTarget(s.Label)
		c.jump(vm.OpLeave, t.brk, t.brkDepth, t.brkScopes)
	case *ast.ContinueStmt:
		t := c.continueTarget(s.Label)
		c.jump(vm.OpLeave, t.cont, t.contDepth, t.contScopes)

	case *ast.ReturnStmt:
		if s.Arg != nil {
			c.expr(s.Arg)
		} else {
			c.emit(vm.OpUndefined)
		}
		c.emit(vm.OpReturn)

	case *ast.ThrowStmt:
		c.expr(s.Arg)
		c.emit(vm.OpThrow)

	case *ast.TryStmt:
		c.tryStmt(s)

	case *ast.SwitchStmt:
		c.switchStmt(s)

	case *ast.LabeledStmt:
		c.labeled(s, nil)

	case *ast.WithStmt:
		c.expr(s.Object)
		c.emit(vm.OpPushWith)
		c.scopeDepth++
		c.stmt(s.Body)
		c.popScope()

	case *ast.DebuggerStmt:
		c.emit(vm.OpDebugger)

	default:
		panic("compiler: unexpected statement in code generator")
	}
}

func (c *codegen) varDecl(s *ast.VarDecl) {
	for _, d := range s.Decls {
		if d.Init == nil {
			if s.Kind.IsLexical() {
				c.emit(vm.OpUndefined)
				c.initBinding(d.Name)
			}
			continue
		}
		c.expr(d.Init)
		if s.Kind.IsLexical() {
			c.initBinding(d.Name)
		} else {
			c.storeName(d.Name)
			c.emit(vm.OpPop)
		}
	}
}

func (c *codegen) block(s *ast.BlockStmt) {
	if s.Scope == nil {
		c.stmts(s.Body)
		return
	}
	c.pushScope(s.Scope)
	c.hoistFunctions(s.FuncDecls)
	c.stmts(s.Body)
	c.popScope()
}

// ---------------------------------------------------------------------------
// Jump targets
// ---------------------------------------------------------------------------

// pushTarget opens a break (and possibly continue) target at the current
// stack and scope depth.
func (c *codegen) pushTarget(labels []string, loop, breakable bool) *jumpTarget {
	t := &jumpTarget{
		parent:     c.targets,
		labels:     labels,
		loop:       loop,
		breakable:  breakable,
		brk:        c.label(),
		brkDepth:   c.depth,
		brkScopes:  c.scopeDepth,
		cont:       c.label(),
		contDepth:  c.depth,
		contScopes: c.scopeDepth,
	}
	c.targets = t
	return t
}

func (c *codegen) popTarget() {
	c.targets = c.targets.parent
}

func (c *codegen) breakTarget(label string) *jumpTarget {
	for t := c.targets; t != nil; t = t.parent {
		if label == "" && t.breakable || label != "" && hasLabel(t.labels, label) {
			return t
		}
	}
	panic("compiler: break outside of a breakable statement")
}

func (c *codegen) continueTarget(label string) *jumpTarget {
	for t := c.targets; t != nil; t = t.parent {
		if t.loop && (label == "" || hasLabel(t.labels, label)) {
			return t
		}
	}
	panic("compiler: continue outside of a loop")
}

func hasLabel(labels []string, l string) bool {
	for _, x := range labels {
		if x == l {
			return true
		}
	}
	return false
}

// labeled compiles a labeled statement. Consecutive labels are collected
// so that a loop sees every label naming it.
func (c *codegen) labeled(s *ast.LabeledStmt, labels []string) {
	labels = append(labels, s.Label)
	switch body := s.Body.(type) {
	case *ast.LabeledStmt:
		c.labeled(body, labels)
		return
	case *ast.ForStmt:
		c.line(body)
		c.forStmt(body, labels)
		return
	case *ast.ForInStmt:
		c.line(body)
		c.forInStmt(body, labels)
		return
	case *ast.WhileStmt:
		c.line(body)
		c.whileStmt(body, labels)
		return
	case *ast.DoWhileStmt:
		c.line(body)
		c.doWhileStmt(body, labels)
		return
	}
	t := c.pushTarget(labels, false, false)
	c.stmt(s.Body)
	c.popTarget()
	c.mark(t.brk)
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (c *codegen) whileStmt(s *ast.WhileStmt, labels []string) {
	t := c.pushTarget(labels, true, true)
	c.mark(t.cont)
	c.line(s)
	c.expr(s.Test)
	c.jump(vm.OpJumpIfFalse, t.brk)
	c.stmt(s.Body)
	c.jump(vm.OpJump, t.cont)
	c.popTarget()
	c.mark(t.brk)
}

func (c *codegen) doWhileStmt(s *ast.DoWhileStmt, labels []string) {
	t := c.pushTarget(labels, true, true)
	top := c.label()
	c.mark(top)
	c.stmt(s.Body)
	c.mark(t.cont)
	c.line(s)
	c.expr(s.Test)
	c.jump(vm.OpJumpIfFalse, t.brk)
	c.jump(vm.OpJump, top)
	c.popTarget()
	c.mark(t.brk)
}

func (c *codegen) forStmt(s *ast.ForStmt, labels []string) {
	t := c.pushTarget(labels, true, true)
	exit := c.label()
	if s.Scope != nil {
		c.pushScope(s.Scope)
		t.contScopes = c.scopeDepth
	}
	switch init := s.Init.(type) {
	case *ast.VarDecl:
		c.stmt(init)
	case ast.Expr:
		c.expr(init)
		c.emit(vm.OpPop)
	}
	head := c.label()
	c.mark(head)
	if s.Test != nil {
		c.line(s)
		c.expr(s.Test)
		c.jump(vm.OpJumpIfFalse, exit)
	}
	c.stmt(s.Body)
	c.mark(t.cont)
	if s.Scope != nil {
		// Closures of one iteration keep their own bindings.
		c.emit(vm.OpCloneScope)
	}
	if s.Update != nil {
		c.line(s)
		c.expr(s.Update)
		c.emit(vm.OpPop)
	}
	c.jump(vm.OpJump, head)
	c.mark(exit)
	if s.Scope != nil {
		c.popScope()
	}
	c.popTarget()
	c.mark(t.brk)
}

func (c *codegen) forInStmt(s *ast.ForInStmt, labels []string) {
	c.expr(s.Right)
	if s.Of {
		c.emit(vm.OpForOfStart)
	} else {
		c.emit(vm.OpForInStart)
	}
	// The iterator stays on the stack for the whole loop.
	t := c.pushTarget(labels, true, true)
	t.brkDepth = c.depth - 1
	done := c.label()

	head := c.label()
	c.mark(head)
	c.line(s)
	c.jump(vm.OpIterNext, done)
	c.depth++
	if s.Scope != nil {
		c.pushScope(s.Scope)
	}
	switch left := s.Left.(type) {
	case *ast.VarDecl:
		id := left.Decls[0].Name
		if left.Kind.IsLexical() {
			c.initBinding(id)
		} else {
			c.storeName(id)
			c.emit(vm.OpPop)
		}
	case ast.Expr:
		c.storeTo(left)
		c.emit(vm.OpPop)
	}
	c.stmt(s.Body)
	if s.Scope != nil {
		c.popScope()
	}
	c.mark(t.cont)
	c.jump(vm.OpJump, head)
	c.mark(done)
	c.emit(vm.OpPop)
	c.popTarget()
	c.mark(t.brk)
}

// storeTo assigns the value on top of the stack to an assignment target
// evaluated afterwards, leaving the value.
func (c *codegen) storeTo(target ast.Expr) {
	switch t := target.(type) {
	case *ast.Identifier:
		c.storeName(t)
	case *ast.MemberExpr:
		c.expr(t.Object)
		c.emit(vm.OpSwap)
		c.emit(vm.OpSetProp, c.name(t.Property), c.propSite())
	case *ast.IndexExpr:
		c.expr(t.Object)
		c.expr(t.Index)
		// v o k -> o k v
		c.emit(vm.OpRot3)
		c.emit(vm.OpRot3)
		c.emit(vm.OpSetElem)
	default:
		c.emit(vm.OpPop)
		c.throwError(vm.ErrorReference, invalidTarget)
	}
}

const invalidTarget = "Invalid assignment left-hand side."

// ---------------------------------------------------------------------------
// switch and try
// ---------------------------------------------------------------------------

func (c *codegen) switchStmt(s *ast.SwitchStmt) {
	c.expr(s.Disc)
	t := c.pushTarget(nil, false, true)
	t.brkDepth = c.depth - 1
	if s.Scope != nil {
		c.pushScope(s.Scope)
		c.hoistFunctions(s.FuncDecls)
	}
	entries := make([]*vm.Label, len(s.Cases))
	def := -1
	for i, cs := range s.Cases {
		entries[i] = c.label()
		if cs.Test == nil {
			def = i
			continue
		}
		c.emit(vm.OpDup)
		c.expr(cs.Test)
		c.emit(vm.OpStrictEq)
		c.jump(vm.OpJumpIfTrue, entries[i])
	}
	exit := c.label()
	if def >= 0 {
		c.jump(vm.OpJump, entries[def])
	} else {
		c.jump(vm.OpJump, exit)
	}
	for i, cs := range s.Cases {
		c.mark(entries[i])
		c.stmts(cs.Body)
	}
	c.mark(exit)
	if s.Scope != nil {
		c.popScope()
	}
	c.emit(vm.OpPop)
	c.popTarget()
	c.mark(t.brk)
}

// tryStmt lays out
//
//	block; JUMP end; catch: handler; end: NORMAL_COMPLETION; finally: finalizer; END_FINALLY
//
// with a catch region over the block and a finally region over both.
func (c *codegen) tryStmt(s *ast.TryStmt) {
	depth, scopes := c.depth, c.scopeDepth
	start := c.b.Len()
	c.block(s.Block)
	blockEnd := c.b.Len()

	if s.Handler != nil {
		end := c.label()
		c.jump(vm.OpJump, end)
		handler := c.b.Len()
		c.code.TryRegions = append(c.code.TryRegions, vm.TryRegion{
			Start: start, End: blockEnd, Handler: handler, Kind: vm.RegionCatch,
			StackDepth: depth, ScopeDepth: scopes,
		})
		c.depth++ // the exception
		c.line(s.Handler)
		if s.CatchScope != nil {
			c.pushScope(s.CatchScope)
			c.emit(vm.OpInitLocal, 0, 0)
			c.block(s.Handler)
			c.popScope()
		} else {
			c.emit(vm.OpPop)
			c.block(s.Handler)
		}
		c.mark(end)
	}

	if s.Finalizer == nil {
		return
	}
	idx := c.code.NumFinally
	c.code.NumFinally++
	c.code.TryRegions = append(c.code.TryRegions, vm.TryRegion{
		Start: start, End: c.b.Len(), Kind: vm.RegionFinally,
		StackDepth: depth, ScopeDepth: scopes, Index: idx,
	})
	region := len(c.code.TryRegions) - 1
	c.emit(vm.OpNormalCompletion, idx)
	c.code.TryRegions[region].Handler = c.b.Len()
	c.line(s.Finalizer)
	c.block(s.Finalizer)
	c.emit(vm.OpEndFinally, idx)
}
