package ast

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Source regeneration
// ---------------------------------------------------------------------------

// ToSource renders n as canonical, re-parseable source text. Formatting is
// fixed per node kind: four-space indentation, one statement per line,
// blocks open on the line of their header.
func ToSource(n Node) string {
	return ToSourceWithComments(n, nil)
}

// ToSourceWithComments renders n and re-emits the comments attached to it
// and its descendants.
func ToSourceWithComments(n Node, comments *CommentMap) string {
	p := &printer{comments: comments}
	switch n := n.(type) {
	case *Program:
		if comments == nil {
			p.comments = n.Comments
		}
		p.stmtList(n.Body)
		p.trailingComments(n)
	case Stmt:
		p.stmt(n)
	case Expr:
		p.expr(n, PrecLowest)
	}
	return strings.TrimRight(p.buf.String(), "\n")
}

type printer struct {
	buf      strings.Builder
	indent   int
	comments *CommentMap
	noIn     bool // in a for-statement initializer, where in needs parentheses
}

func (p *printer) write(s string) {
	p.buf.WriteString(s)
}

func (p *printer) newline() {
	p.buf.WriteByte('\n')
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

// line starts a fresh indented line unless the buffer is empty.
func (p *printer) line() {
	if p.buf.Len() > 0 {
		p.newline()
	} else {
		for i := 0; i < p.indent; i++ {
			p.buf.WriteString("    ")
		}
	}
}

func (p *printer) leadingComments(n Node) {
	for _, c := range p.comments.leading(n) {
		p.write(c.Text)
		p.line()
	}
}

func (p *printer) trailingComments(n Node) {
	for _, c := range p.comments.trailing(n) {
		p.line()
		p.write(c.Text)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *printer) stmtList(list []Stmt) {
	for _, s := range list {
		p.line()
		p.stmt(s)
	}
}

// body prints a nested statement. Blocks stay on the header line; other
// statements go on their own indented line.
func (p *printer) body(s Stmt) {
	if b, ok := s.(*BlockStmt); ok {
		p.write(" ")
		p.block(b)
		return
	}
	p.indent++
	p.newline()
	p.stmt(s)
	p.indent--
}

func (p *printer) block(b *BlockStmt) {
	p.write("{")
	p.indent++
	p.stmtList(b.Body)
	p.trailingComments(b)
	p.indent--
	if len(b.Body) > 0 || len(p.comments.trailing(b)) > 0 {
		p.newline()
	}
	p.write("}")
}

func (p *printer) stmt(s Stmt) {
	p.leadingComments(s)
	switch s := s.(type) {
	case *VarDecl:
		p.varDecl(s)
		p.write(";")
	case *FunctionDecl:
		p.function(s.Func)
	case *ExprStmt:
		if startsAmbiguously(s.X) {
			p.write("(")
			p.expr(s.X, PrecLowest)
			p.write(")")
		} else {
			p.expr(s.X, PrecLowest)
		}
		p.write(";")
	case *BlockStmt:
		p.block(s)
	case *EmptyStmt:
		p.write(";")
	case *IfStmt:
		p.write("if (")
		p.expr(s.Test, PrecLowest)
		p.write(")")
		cons := s.Cons
		if inner, ok := cons.(*IfStmt); ok && s.Alt != nil && inner.Alt == nil {
			cons = &BlockStmt{SpanVal: inner.SpanVal, Body: []Stmt{inner}}
		}
		p.body(cons)
		if s.Alt != nil {
			if _, ok := cons.(*BlockStmt); ok {
				p.write(" ")
			} else {
				p.newline()
			}
			p.write("else")
			if _, ok := s.Alt.(*IfStmt); ok {
				p.write(" ")
				p.stmt(s.Alt)
			} else {
				p.body(s.Alt)
			}
		}
	case *ForStmt:
		p.write("for (")
		p.noIn = true
		switch init := s.Init.(type) {
		case *VarDecl:
			p.varDecl(init)
		case Expr:
			p.expr(init, PrecLowest)
		}
		p.noIn = false
		p.write(";")
		if s.Test != nil {
			p.write(" ")
			p.expr(s.Test, PrecLowest)
		}
		p.write(";")
		if s.Update != nil {
			p.write(" ")
			p.expr(s.Update, PrecLowest)
		}
		p.write(")")
		p.body(s.Body)
	case *ForInStmt:
		p.write("for (")
		switch left := s.Left.(type) {
		case *VarDecl:
			p.varDecl(left)
		case Expr:
			p.expr(left, PrecCall)
		}
		if s.Of {
			p.write(" of ")
			p.expr(s.Right, PrecAssign)
		} else {
			p.write(" in ")
			p.expr(s.Right, PrecLowest)
		}
		p.write(")")
		p.body(s.Body)
	case *WhileStmt:
		p.write("while (")
		p.expr(s.Test, PrecLowest)
		p.write(")")
		p.body(s.Body)
	case *DoWhileStmt:
		p.write("do")
		p.body(s.Body)
		if _, ok := s.Body.(*BlockStmt); ok {
			p.write(" ")
		} else {
			p.newline()
		}
		p.write("while (")
		p.expr(s.Test, PrecLowest)
		p.write(");")
	case *BreakStmt:
		p.write("break")
		if s.Label != "" {
			p.write(" " + s.Label)
		}
		p.write(";")
	case *ContinueStmt:
		p.write("continue")
		if s.Label != "" {
			p.write(" " + s.Label)
		}
		p.write(";")
	case *ReturnStmt:
		p.write("return")
		if s.Arg != nil {
			p.write(" ")
			p.expr(s.Arg, PrecLowest)
		}
		p.write(";")
	case *ThrowStmt:
		p.write("throw ")
		p.expr(s.Arg, PrecLowest)
		p.write(";")
	case *TryStmt:
		p.write("try ")
		p.block(s.Block)
		if s.Handler != nil {
			p.write(" catch ")
			if s.Param != nil {
				p.write("(" + s.Param.Name + ") ")
			}
			p.block(s.Handler)
		}
		if s.Finalizer != nil {
			p.write(" finally ")
			p.block(s.Finalizer)
		}
	case *SwitchStmt:
		p.write("switch (")
		p.expr(s.Disc, PrecLowest)
		p.write(") {")
		p.indent++
		for _, c := range s.Cases {
			p.newline()
			if c.Test != nil {
				p.write("case ")
				p.expr(c.Test, PrecLowest)
				p.write(":")
			} else {
				p.write("default:")
			}
			p.indent++
			p.stmtList(c.Body)
			p.indent--
		}
		p.trailingComments(s)
		p.indent--
		p.newline()
		p.write("}")
	case *LabeledStmt:
		p.write(s.Label + ":")
		p.body(s.Body)
	case *WithStmt:
		p.write("with (")
		p.expr(s.Object, PrecLowest)
		p.write(")")
		p.body(s.Body)
	case *DebuggerStmt:
		p.write("debugger;")
	default:
		p.write(fmt.Sprintf("/* unknown statement %T */", s))
	}
}

func (p *printer) varDecl(d *VarDecl) {
	p.write(d.Kind.String())
	for i, decl := range d.Decls {
		if i > 0 {
			p.write(",")
		}
		p.write(" " + decl.Name.Name)
		if decl.Init != nil {
			p.write(" = ")
			p.expr(decl.Init, PrecAssign)
		}
	}
}

// startsAmbiguously reports whether an expression statement would begin
// with a token the parser reads as a declaration or block.
func startsAmbiguously(e Expr) bool {
	for {
		switch x := e.(type) {
		case *ObjectLiteral:
			return true
		case *FunctionLiteral:
			return x.Kind != ArrowFunction
		case *BinaryExpr:
			e = x.X
		case *LogicalExpr:
			e = x.X
		case *AssignExpr:
			e = x.Target
		case *ConditionalExpr:
			e = x.Test
		case *CallExpr:
			e = x.Callee
		case *MemberExpr:
			e = x.Object
		case *IndexExpr:
			e = x.Object
		case *SequenceExpr:
			e = x.List[0]
		case *UpdateExpr:
			if x.Prefix {
				return false
			}
			e = x.X
		case *Identifier:
			return x.Name == "let"
		default:
			return false
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *SequenceExpr:
		return PrecSequence
	case *AssignExpr:
		return PrecAssign
	case *FunctionLiteral:
		if e.Kind == ArrowFunction {
			return PrecAssign
		}
		return PrecPrimary
	case *ConditionalExpr:
		return PrecCondition
	case *LogicalExpr:
		return e.Op.Precedence()
	case *BinaryExpr:
		return e.Op.Precedence()
	case *UnaryExpr:
		return PrecUnary
	case *UpdateExpr:
		if e.Prefix {
			return PrecUnary
		}
		return PrecPostfix
	case *CallExpr, *NewExpr, *MemberExpr, *IndexExpr:
		return PrecCall
	}
	return PrecPrimary
}

func (p *printer) expr(e Expr, min int) {
	if exprPrec(e) < min || p.noIn && isInExpr(e) {
		saved := p.noIn
		p.noIn = false
		p.write("(")
		p.exprInner(e)
		p.write(")")
		p.noIn = saved
		return
	}
	p.exprInner(e)
}

func isInExpr(e Expr) bool {
	b, ok := e.(*BinaryExpr)
	return ok && b.Op == OpIn
}

func (p *printer) exprInner(e Expr) {
	switch e := e.(type) {
	case *Identifier:
		p.write(e.Name)
	case *NumberLiteral:
		p.write(NumberToString(e.Value))
	case *StringLiteral:
		p.write(Quote(e.Value))
	case *BoolLiteral:
		if e.Value {
			p.write("true")
		} else {
			p.write("false")
		}
	case *NullLiteral:
		p.write("null")
	case *ThisExpr:
		p.write("this")
	case *RegExpLiteral:
		p.write("/" + e.Pattern + "/" + e.Flags)
	case *TemplateLiteral:
		p.write("`")
		for i, raw := range e.Raw {
			p.write(raw)
			if i < len(e.Exprs) {
				p.write("${")
				p.expr(e.Exprs[i], PrecLowest)
				p.write("}")
			}
		}
		p.write("`")
	case *ArrayLiteral:
		p.write("[")
		for i, el := range e.Elements {
			if i > 0 {
				p.write(", ")
			}
			if el != nil {
				p.expr(el, PrecAssign)
			}
		}
		if n := len(e.Elements); n > 0 && e.Elements[n-1] == nil {
			p.write(",")
		}
		p.write("]")
	case *ObjectLiteral:
		p.objectLiteral(e)
	case *FunctionLiteral:
		p.function(e)
	case *UnaryExpr:
		p.write(e.Op.String())
		if e.Op == OpTypeof || e.Op == OpVoid || e.Op == OpDelete {
			p.write(" ")
			p.expr(e.X, PrecUnary)
			return
		}
		sub := &printer{comments: p.comments, indent: p.indent}
		sub.expr(e.X, PrecUnary)
		text := sub.buf.String()
		if (e.Op == OpNeg || e.Op == OpPlus) && strings.HasPrefix(text, e.Op.String()) {
			p.write(" ")
		}
		p.write(text)
	case *UpdateExpr:
		if e.Prefix {
			p.write(e.Op.String())
			p.expr(e.X, PrecUnary)
		} else {
			p.expr(e.X, PrecPostfix)
			p.write(e.Op.String())
		}
	case *BinaryExpr:
		p.binary(e.Op, e.X, e.Y)
	case *LogicalExpr:
		p.binary(e.Op, e.X, e.Y)
	case *AssignExpr:
		p.expr(e.Target, PrecCall)
		if e.Op == OpAssign {
			p.write(" = ")
		} else {
			p.write(" " + e.Op.String() + "= ")
		}
		p.expr(e.Value, PrecAssign)
	case *ConditionalExpr:
		p.expr(e.Test, PrecNullish)
		p.write(" ? ")
		p.expr(e.Cons, PrecAssign)
		p.write(" : ")
		p.expr(e.Alt, PrecAssign)
	case *CallExpr:
		p.expr(e.Callee, PrecCall)
		p.args(e.Args)
	case *NewExpr:
		p.write("new ")
		if containsCall(e.Callee) {
			p.write("(")
			p.expr(e.Callee, PrecLowest)
			p.write(")")
		} else {
			p.expr(e.Callee, PrecCall)
		}
		p.args(e.Args)
	case *MemberExpr:
		p.memberObject(e.Object)
		p.write("." + e.Property)
	case *IndexExpr:
		p.memberObject(e.Object)
		p.write("[")
		p.expr(e.Index, PrecLowest)
		p.write("]")
	case *SequenceExpr:
		for i, x := range e.List {
			if i > 0 {
				p.write(", ")
			}
			p.expr(x, PrecAssign)
		}
	default:
		p.write(fmt.Sprintf("/* unknown expression %T */", e))
	}
}

func (p *printer) binary(op Op, x, y Expr) {
	prec := op.Precedence()
	left, right := prec, prec+1
	if op.RightAssociative() {
		left, right = prec+1, prec
	}
	if op == OpExp {
		left = PrecPostfix
	}
	if mixesNullish(op, x) {
		left = PrecPrimary
	}
	if mixesNullish(op, y) {
		right = PrecPrimary
	}
	p.expr(x, left)
	p.write(" " + op.String() + " ")
	p.expr(y, right)
}

// mixesNullish reports whether child would combine ?? with && or ||
// without parentheses, which the grammar forbids.
func mixesNullish(op Op, child Expr) bool {
	l, ok := child.(*LogicalExpr)
	if !ok {
		return false
	}
	if op == OpNullish {
		return l.Op == OpAnd || l.Op == OpOr
	}
	if op == OpAnd || op == OpOr {
		return l.Op == OpNullish
	}
	return false
}

func (p *printer) memberObject(obj Expr) {
	if n, ok := obj.(*NumberLiteral); ok {
		s := NumberToString(n.Value)
		if !strings.ContainsAny(s, ".eIN") {
			p.write("(" + s + ")")
			return
		}
	}
	p.expr(obj, PrecCall)
}

func containsCall(e Expr) bool {
	for {
		switch x := e.(type) {
		case *CallExpr:
			return true
		case *MemberExpr:
			e = x.Object
		case *IndexExpr:
			e = x.Object
		default:
			return false
		}
	}
}

func (p *printer) args(args []Expr) {
	p.write("(")
	for i, a := range args {
		if i > 0 {
			p.write(", ")
		}
		p.expr(a, PrecAssign)
	}
	p.write(")")
}

func (p *printer) objectLiteral(o *ObjectLiteral) {
	if len(o.Properties) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	for i, prop := range o.Properties {
		if i > 0 {
			p.write(", ")
		}
		switch prop.Kind {
		case PropertyGet, PropertySet:
			if prop.Kind == PropertyGet {
				p.write("get ")
			} else {
				p.write("set ")
			}
			p.propertyKey(prop)
			if fn, ok := prop.Value.(*FunctionLiteral); ok {
				p.params(fn.Params)
				p.write(" ")
				p.functionBody(fn)
			}
		default:
			p.propertyKey(prop)
			p.write(": ")
			p.expr(prop.Value, PrecAssign)
		}
	}
	p.write("}")
}

func (p *printer) propertyKey(prop *Property) {
	if prop.Computed != nil {
		p.write("[")
		p.expr(prop.Computed, PrecAssign)
		p.write("]")
		return
	}
	if IsIdentifierName(prop.Key) || isCanonicalNumber(prop.Key) {
		p.write(prop.Key)
		return
	}
	p.write(Quote(prop.Key))
}

func (p *printer) function(fn *FunctionLiteral) {
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	if fn.Kind == ArrowFunction {
		p.params(fn.Params)
		p.write(" => ")
		if fn.ExprBody && len(fn.Body) == 1 {
			if ret, ok := fn.Body[0].(*ReturnStmt); ok && ret.Arg != nil {
				if startsAmbiguously(ret.Arg) {
					p.write("(")
					p.expr(ret.Arg, PrecLowest)
					p.write(")")
				} else {
					p.expr(ret.Arg, PrecAssign)
				}
				return
			}
		}
		p.functionBody(fn)
		return
	}
	p.write("function")
	if fn.Name != nil {
		p.write(" " + fn.Name.Name)
	}
	p.params(fn.Params)
	p.write(" ")
	p.functionBody(fn)
}

func (p *printer) params(params []*Identifier) {
	p.write("(")
	for i, id := range params {
		if i > 0 {
			p.write(", ")
		}
		p.write(id.Name)
	}
	p.write(")")
}

func (p *printer) functionBody(fn *FunctionLiteral) {
	p.write("{")
	p.indent++
	p.stmtList(fn.Body)
	p.trailingComments(fn)
	p.indent--
	if len(fn.Body) > 0 || len(p.comments.trailing(fn)) > 0 {
		p.newline()
	}
	p.write("}")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Quote renders s as a double-quoted string literal. Lone surrogates
// (stored in generalized UTF-8) are written as \u escapes.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := DecodeRune(s[i:])
		i += size
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		default:
			switch {
			case r == 0x2028 || r == 0x2029 || IsSurrogate(r):
				fmt.Fprintf(&b, `\u%04X`, r)
			case r < 0x20 || r == 0x7f:
				fmt.Fprintf(&b, `\x%02X`, r)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// IsIdentifierName reports whether s can be written as a bare property
// name.
func IsIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '$' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func isCanonicalNumber(s string) bool {
	if s == "" || s[0] == '-' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s == "0" || s[0] != '0'
}
