package compiler

import (
	"fmt"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Scope resolver: static pass assigning identifiers to frame slots
// ---------------------------------------------------------------------------

// Resolve annotates every identifier in prog with its binding, lays out
// the frames of functions and blocks, and records hoisted declarations.
// References are static when the path to the declaring frame crosses no
// with scope and no function containing a sloppy direct eval.
func Resolve(prog *ast.Program, opts Options) (err error) {
	r := &resolver{prog: prog, opts: opts}
	defer func() {
		if rec := recover(); rec != nil {
			b, ok := rec.(bailout)
			if !ok {
				panic(rec)
			}
			err = b.err
		}
	}()
	r.program()
	return nil
}

type scopeType int

const (
	scopeProgram scopeType = iota
	scopeFunction
	scopeBlock
	scopeCatch
	scopeWith
	scopeEval
)

// scope is the resolver's view of one lexical scope. Only scopes with a
// frame exist at run time; the rest are folded into their parent.
type scope struct {
	parent  *scope
	typ     scopeType
	info    *ast.ScopeInfo
	frame   bool
	fn      *ast.FunctionInfo // function scopes
	arrow   bool
	dynamic bool // contains a sloppy direct eval
	strict  bool
}

type resolver struct {
	prog  *ast.Program
	opts  Options
	scope *scope

	// Program-level declarations that live on the global object or in
	// the global lexical environment.
	globalLexical map[string]ast.DeclKind
	globalVars    map[string]bool
}

func (r *resolver) errorf(pos ast.Position, format string, args ...interface{}) {
	panic(bailout{err: newSyntaxError(r.prog.Source, r.prog.SourceName, pos, fmt.Sprintf(format, args...))})
}

func (r *resolver) push(s *scope) {
	s.parent = r.scope
	if s.parent != nil && !s.strict {
		s.strict = s.parent.strict
	}
	r.scope = s
}

func (r *resolver) pop() {
	r.scope = r.scope.parent
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

func (r *resolver) program() {
	prog := r.prog
	r.globalLexical = make(map[string]ast.DeclKind)
	r.globalVars = make(map[string]bool)

	s := &scope{typ: scopeProgram, strict: prog.Strict}
	if prog.Eval {
		// Eval code always gets a frame for its lexical declarations, and
		// for its vars too when strict.
		s.typ = scopeEval
		s.info = ast.NewScopeInfo(ast.ScopeEval)
		s.frame = true
		s.dynamic = !prog.Strict && containsDirectEval(prog.Body)
		prog.Scope = s.info
	}
	r.push(s)

	r.hoistVars(prog.Body, func(id *ast.Identifier) {
		r.declareVar(s, id)
	})
	prog.FuncDecls = r.declareLexical(s, prog.Body, true)
	r.stmts(prog.Body)

	r.pop()
}

// declareVar declares a var-scoped name in the function or program
// scope s.
func (r *resolver) declareVar(s *scope, id *ast.Identifier) {
	if s.info == nil || (s.typ == scopeEval && !s.strict) {
		if k, ok := r.globalLexical[id.Name]; ok && s.typ == scopeProgram {
			r.errorf(id.SpanVal.Start, "redeclaration of %s %s", k, id.Name)
		}
		if !r.globalVars[id.Name] {
			r.globalVars[id.Name] = true
			r.prog.VarNames = append(r.prog.VarNames, id.Name)
		}
		return
	}
	r.declare(s, id, ast.DeclVar)
	if s.fn != nil {
		s.fn.VarNames = appendUnique(s.fn.VarNames, id.Name)
	}
}

// declare adds name to the frame of s, enforcing redeclaration rules.
func (r *resolver) declare(s *scope, id *ast.Identifier, kind ast.DeclKind) int {
	info := s.info
	if slot, ok := info.Lookup(id.Name); ok {
		prev := info.Decls[slot]
		switch {
		case prev == ast.DeclSelf:
			info.Decls[slot] = kind
		case kind.IsLexical() || prev.IsLexical():
			r.errorf(id.SpanVal.Start, "redeclaration of %s %s", redeclKind(prev, kind), id.Name)
		case kind == ast.DeclFunction && prev == ast.DeclFunction && s.typ != scopeFunction && s.strict:
			r.errorf(id.SpanVal.Start, "redeclaration of function %s", id.Name)
		case kind == ast.DeclFunction && prev != ast.DeclParam:
			info.Decls[slot] = kind
		}
		return slot
	}
	slot, _ := info.Declare(id.Name, kind)
	return slot
}

func redeclKind(prev, kind ast.DeclKind) ast.DeclKind {
	if prev.IsLexical() {
		return prev
	}
	return kind
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}

// ---------------------------------------------------------------------------
// Hoisting
// ---------------------------------------------------------------------------

// hoistVars reports every var declaration in stmts, descending into nested
// statements but not into functions. Sloppy block-level function
// declarations also produce a var.
func (r *resolver) hoistVars(stmts []ast.Stmt, declare func(*ast.Identifier)) {
	for _, s := range stmts {
		r.hoistVarsStmt(s, declare, true)
	}
}

func (r *resolver) hoistVarsStmt(s ast.Stmt, declare func(*ast.Identifier), top bool) {
	switch s := s.(type) {
	case *ast.VarDecl:
		if s.Kind == ast.DeclVar {
			for _, d := range s.Decls {
				declare(d.Name)
			}
		}
	case *ast.FunctionDecl:
		if !top && !r.scope.strict {
			declare(&ast.Identifier{SpanVal: s.Func.Name.SpanVal, Name: s.Func.Name.Name})
		}
	case *ast.BlockStmt:
		for _, x := range s.Body {
			r.hoistVarsStmt(x, declare, false)
		}
	case *ast.IfStmt:
		r.hoistVarsStmt(s.Cons, declare, false)
		if s.Alt != nil {
			r.hoistVarsStmt(s.Alt, declare, false)
		}
	case *ast.ForStmt:
		if d, ok := s.Init.(*ast.VarDecl); ok {
			r.hoistVarsStmt(d, declare, false)
		}
		r.hoistVarsStmt(s.Body, declare, false)
	case *ast.ForInStmt:
		if d, ok := s.Left.(*ast.VarDecl); ok {
			r.hoistVarsStmt(d, declare, false)
		}
		r.hoistVarsStmt(s.Body, declare, false)
	case *ast.WhileStmt:
		r.hoistVarsStmt(s.Body, declare, false)
	case *ast.DoWhileStmt:
		r.hoistVarsStmt(s.Body, declare, false)
	case *ast.TryStmt:
		r.hoistVarsStmt(s.Block, declare, false)
		if s.Handler != nil {
			r.hoistVarsStmt(s.Handler, declare, false)
		}
		if s.Finalizer != nil {
			r.hoistVarsStmt(s.Finalizer, declare, false)
		}
	case *ast.SwitchStmt:
		for _, c := range s.Cases {
			for _, x := range c.Body {
				r.hoistVarsStmt(x, declare, false)
			}
		}
	case *ast.LabeledStmt:
		r.hoistVarsStmt(s.Body, declare, top)
	case *ast.WithStmt:
		r.hoistVarsStmt(s.Body, declare, false)
	}
}

// declareLexical declares the let/const bindings and function declarations
// that appear directly in stmts. At function level, function declarations
// are var-scoped. It returns the function declarations to initialize on
// entry.
func (r *resolver) declareLexical(s *scope, stmts []ast.Stmt, fnLevel bool) []*ast.FunctionDecl {
	var funcs []*ast.FunctionDecl
	for _, stmt := range stmts {
		for {
			l, ok := stmt.(*ast.LabeledStmt)
			if !ok {
				break
			}
			stmt = l.Body
		}
		switch d := stmt.(type) {
		case *ast.VarDecl:
			if d.Kind == ast.DeclVar {
				continue
			}
			for _, decl := range d.Decls {
				if d.Kind == ast.DeclConst && decl.Init == nil {
					r.errorf(decl.SpanVal.Start, "missing = in const declaration")
				}
				r.declareLexicalName(s, decl.Name, d.Kind)
			}
		case *ast.FunctionDecl:
			funcs = append(funcs, d)
			if fnLevel && s.info == nil {
				// Program level: a property of the global object.
				r.declareVar(s, d.Func.Name)
				continue
			}
			if fnLevel && s.typ == scopeEval && !s.strict {
				r.declareVar(s, d.Func.Name)
				continue
			}
			r.declare(s, d.Func.Name, ast.DeclFunction)
		}
	}
	return funcs
}

func (r *resolver) declareLexicalName(s *scope, id *ast.Identifier, kind ast.DeclKind) {
	if s.info == nil {
		if _, ok := r.globalLexical[id.Name]; ok || r.globalVars[id.Name] {
			r.errorf(id.SpanVal.Start, "redeclaration of %s %s", kind, id.Name)
		}
		r.globalLexical[id.Name] = kind
		return
	}
	r.declare(s, id, kind)
}

// containsDirectEval reports whether stmts call eval directly, not
// counting nested functions.
func containsDirectEval(stmts []ast.Stmt) bool {
	found := false
	for _, s := range stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.FunctionLiteral:
				return false
			case *ast.CallExpr:
				if id, ok := n.Callee.(*ast.Identifier); ok && id.Name == "eval" {
					found = true
				}
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Reference resolution
// ---------------------------------------------------------------------------

// resolveFrom binds id by walking outward from s.
func (r *resolver) resolveFrom(s *scope, id *ast.Identifier) {
	depth := 0
	dynamic := false
	for ; s != nil; s = s.parent {
		if s.typ == scopeWith {
			dynamic = true
			continue
		}
		if s.info != nil {
			slot, ok := s.info.Lookup(id.Name)
			if !ok && id.Name == "arguments" && s.typ == scopeFunction && !s.arrow {
				slot = r.argumentsSlot(s)
				ok = true
			}
			if ok {
				if dynamic {
					id.Binding = ast.Binding{Kind: ast.BindDynamic}
				} else {
					id.Binding = ast.Binding{Kind: ast.BindStatic, Depth: depth, Slot: slot, Decl: s.info.Decls[slot]}
				}
				return
			}
		}
		if s.dynamic {
			dynamic = true
		}
		if s.typ == scopeEval {
			// Free names of eval code are looked up in the caller's scope.
			dynamic = true
		}
		if s.frame {
			depth++
		}
	}
	if dynamic {
		id.Binding = ast.Binding{Kind: ast.BindDynamic}
		return
	}
	id.Binding = ast.Binding{Kind: ast.BindGlobal}
}

// argumentsSlot declares the arguments object binding of function scope s.
func (r *resolver) argumentsSlot(s *scope) int {
	if s.fn.ArgumentsSlot >= 0 {
		return s.fn.ArgumentsSlot
	}
	slot, _ := s.info.Declare("arguments", ast.DeclArguments)
	s.fn.ArgumentsSlot = slot
	return slot
}

func (r *resolver) ref(id *ast.Identifier) {
	r.resolveFrom(r.scope, id)
}

// functionScope returns the nearest enclosing non-arrow function scope,
// or nil at program level.
func (r *resolver) functionScope() *scope {
	for s := r.scope; s != nil; s = s.parent {
		if s.typ == scopeFunction && !s.arrow {
			return s
		}
	}
	return nil
}

// varScope returns the scope that receives var declarations.
func (r *resolver) varScope() *scope {
	for s := r.scope; s != nil; s = s.parent {
		if s.typ == scopeFunction || s.typ == scopeProgram || s.typ == scopeEval {
			return s
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (r *resolver) stmts(list []ast.Stmt) {
	for _, s := range list {
		r.stmt(s)
	}
}

func (r *resolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		for _, d := range s.Decls {
			if d.Init != nil {
				r.expr(d.Init)
			}
			if s.Kind == ast.DeclVar {
				r.checkVarConflict(d.Name)
			}
			r.ref(d.Name)
		}
	case *ast.FunctionDecl:
		r.function(s.Func)
		r.ref(s.Func.Name)
	case *ast.ExprStmt:
		r.expr(s.X)
	case *ast.BlockStmt:
		s.Scope, s.FuncDecls = r.block(s.Body, nil)
	case *ast.EmptyStmt, *ast.DebuggerStmt, *ast.BreakStmt, *ast.ContinueStmt:
	case *ast.IfStmt:
		r.expr(s.Test)
		r.stmt(s.Cons)
		if s.Alt != nil {
			r.stmt(s.Alt)
		}
	case *ast.ForStmt:
		r.forStmt(s)
	case *ast.ForInStmt:
		r.forInStmt(s)
	case *ast.WhileStmt:
		r.expr(s.Test)
		r.stmt(s.Body)
	case *ast.DoWhileStmt:
		r.stmt(s.Body)
		r.expr(s.Test)
	case *ast.ReturnStmt:
		if s.Arg != nil {
			r.expr(s.Arg)
		}
	case *ast.ThrowStmt:
		r.expr(s.Arg)
	case *ast.TryStmt:
		r.tryStmt(s)
	case *ast.SwitchStmt:
		r.expr(s.Disc)
		var all []ast.Stmt
		for _, c := range s.Cases {
			all = append(all, c.Body...)
		}
		s.Scope, s.FuncDecls = r.block(all, func() {
			for _, c := range s.Cases {
				if c.Test != nil {
					r.expr(c.Test)
				}
				r.stmts(c.Body)
			}
		})
	case *ast.LabeledStmt:
		r.stmt(s.Body)
	case *ast.WithStmt:
		r.expr(s.Object)
		r.push(&scope{typ: scopeWith})
		r.stmt(s.Body)
		r.pop()
	default:
		panic(fmt.Sprintf("resolver: unexpected statement %T", s))
	}
}

// block resolves a statement list in a new block scope. The scope gets a
// frame only when it declares something. walk overrides the default
// traversal of body.
func (r *resolver) block(body []ast.Stmt, walk func()) (*ast.ScopeInfo, []*ast.FunctionDecl) {
	s := &scope{typ: scopeBlock, info: ast.NewScopeInfo(ast.ScopeBlock)}
	r.push(s)
	funcs := r.declareLexical(s, body, false)
	s.frame = s.info.Len() > 0
	if !s.strict {
		// Annex B: a sloppy block function is also assigned to the
		// function-scoped var of the same name when its declaration is
		// evaluated.
		for _, fd := range funcs {
			fd.AnnexB = &ast.Identifier{SpanVal: fd.Func.Name.SpanVal, Name: fd.Func.Name.Name}
			r.resolveFrom(s.parent, fd.AnnexB)
		}
	}
	if walk != nil {
		walk()
	} else {
		r.stmts(body)
	}
	r.pop()
	if !s.frame {
		return nil, funcs
	}
	return s.info, funcs
}

// checkVarConflict rejects a var that would be hoisted across a lexical
// declaration of the same name.
func (r *resolver) checkVarConflict(id *ast.Identifier) {
	for s := r.scope; s != nil; s = s.parent {
		if s.typ != scopeBlock {
			return
		}
		if slot, ok := s.info.Lookup(id.Name); ok && s.info.Decls[slot].IsLexical() {
			r.errorf(id.SpanVal.Start, "redeclaration of %s %s", s.info.Decls[slot], id.Name)
		}
	}
}

func (r *resolver) forStmt(s *ast.ForStmt) {
	d, lexical := s.Init.(*ast.VarDecl)
	lexical = lexical && d.Kind.IsLexical()
	if lexical {
		sc := &scope{typ: scopeBlock, info: ast.NewScopeInfo(ast.ScopeBlock), frame: true}
		r.push(sc)
		for _, decl := range d.Decls {
			r.declare(sc, decl.Name, d.Kind)
		}
		s.Scope = sc.info
	}
	switch init := s.Init.(type) {
	case *ast.VarDecl:
		r.stmt(init)
	case ast.Expr:
		r.expr(init)
	}
	if s.Test != nil {
		r.expr(s.Test)
	}
	if s.Update != nil {
		r.expr(s.Update)
	}
	r.stmt(s.Body)
	if lexical {
		r.pop()
	}
}

func (r *resolver) forInStmt(s *ast.ForInStmt) {
	r.expr(s.Right)
	d, isDecl := s.Left.(*ast.VarDecl)
	lexical := isDecl && d.Kind.IsLexical()
	if lexical {
		sc := &scope{typ: scopeBlock, info: ast.NewScopeInfo(ast.ScopeBlock), frame: true}
		r.push(sc)
		r.declare(sc, d.Decls[0].Name, d.Kind)
		s.Scope = sc.info
	}
	switch left := s.Left.(type) {
	case *ast.VarDecl:
		r.stmt(left)
	case ast.Expr:
		r.expr(left)
	}
	r.stmt(s.Body)
	if lexical {
		r.pop()
	}
}

func (r *resolver) tryStmt(s *ast.TryStmt) {
	r.stmt(s.Block)
	if s.Handler != nil {
		if s.Param != nil {
			sc := &scope{typ: scopeCatch, info: ast.NewScopeInfo(ast.ScopeCatch), frame: true}
			r.push(sc)
			r.declare(sc, s.Param, ast.DeclCatch)
			s.CatchScope = sc.info
			r.ref(s.Param)
			r.stmt(s.Handler)
			r.pop()
		} else {
			r.stmt(s.Handler)
		}
	}
	if s.Finalizer != nil {
		r.stmt(s.Finalizer)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (r *resolver) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.Identifier:
		r.ref(e)
	case *ast.NumberLiteral, *ast.StringLiteral, *ast.BoolLiteral, *ast.NullLiteral, *ast.RegExpLiteral:
	case *ast.ThisExpr:
		if fs := r.functionScope(); fs != nil {
			fs.fn.UsesThis = true
		}
	case *ast.TemplateLiteral:
		for _, x := range e.Exprs {
			r.expr(x)
		}
	case *ast.ArrayLiteral:
		for _, x := range e.Elements {
			if x != nil {
				r.expr(x)
			}
		}
	case *ast.ObjectLiteral:
		for _, p := range e.Properties {
			if p.Computed != nil {
				r.expr(p.Computed)
			}
			r.expr(p.Value)
		}
	case *ast.FunctionLiteral:
		r.function(e)
	case *ast.UnaryExpr:
		r.expr(e.X)
	case *ast.UpdateExpr:
		r.expr(e.X)
	case *ast.BinaryExpr:
		r.expr(e.X)
		r.expr(e.Y)
	case *ast.LogicalExpr:
		r.expr(e.X)
		r.expr(e.Y)
	case *ast.AssignExpr:
		r.expr(e.Target)
		r.expr(e.Value)
	case *ast.ConditionalExpr:
		r.expr(e.Test)
		r.expr(e.Cons)
		r.expr(e.Alt)
	case *ast.CallExpr:
		if id, ok := e.Callee.(*ast.Identifier); ok && id.Name == "eval" {
			e.DirectEval = true
		}
		r.expr(e.Callee)
		for _, a := range e.Args {
			r.expr(a)
		}
	case *ast.NewExpr:
		r.expr(e.Callee)
		for _, a := range e.Args {
			r.expr(a)
		}
	case *ast.MemberExpr:
		r.expr(e.Object)
	case *ast.IndexExpr:
		r.expr(e.Object)
		r.expr(e.Index)
	case *ast.SequenceExpr:
		for _, x := range e.List {
			r.expr(x)
		}
	default:
		panic(fmt.Sprintf("resolver: unexpected expression %T", e))
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func (r *resolver) function(fn *ast.FunctionLiteral) {
	info := &ast.FunctionInfo{
		Scope:         ast.NewScopeInfo(ast.ScopeFunction),
		ArgumentsSlot: -1,
		SelfSlot:      -1,
		Strict:        fn.Strict,
		HasEval:       containsDirectEval(fn.Body),
	}
	fn.Info = info
	s := &scope{
		typ:    scopeFunction,
		info:   info.Scope,
		frame:  true,
		fn:     info,
		arrow:  fn.Kind == ast.ArrowFunction,
		strict: fn.Strict,
	}
	s.dynamic = info.HasEval && !fn.Strict
	info.Scope.Dynamic = s.dynamic
	r.push(s)

	for _, p := range fn.Params {
		slot, _ := info.Scope.Declare(p.Name, ast.DeclParam)
		info.ParamSlots = append(info.ParamSlots, slot)
		p.Binding = ast.Binding{Kind: ast.BindStatic, Slot: slot, Decl: ast.DeclParam}
	}
	r.hoistVars(fn.Body, func(id *ast.Identifier) {
		r.declareVar(s, id)
	})
	info.FuncDecls = r.declareLexical(s, fn.Body, true)

	if fn.Name != nil && fn.Kind == ast.FunctionExpression {
		if _, ok := info.Scope.Lookup(fn.Name.Name); !ok {
			slot, _ := info.Scope.Declare(fn.Name.Name, ast.DeclSelf)
			info.SelfSlot = slot
			fn.Name.Binding = ast.Binding{Kind: ast.BindStatic, Slot: slot, Decl: ast.DeclSelf}
		}
	}
	if !s.arrow {
		// A var or function named arguments is initialized with the
		// arguments object unless a parameter shadows it.
		if slot, ok := info.Scope.Lookup("arguments"); ok && info.Scope.Decls[slot] == ast.DeclVar {
			info.ArgumentsSlot = slot
		}
		if info.HasEval {
			if _, ok := info.Scope.Lookup("arguments"); !ok {
				r.argumentsSlot(s)
			}
		}
	} else if info.HasEval {
		if fs := r.functionScope(); fs != nil && fs != s {
			if _, ok := fs.info.Lookup("arguments"); !ok {
				r.argumentsSlot(fs)
			}
		}
	}

	r.stmts(fn.Body)
	r.pop()
}
