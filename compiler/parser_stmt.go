package compiler

import (
	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// Statement lists and directives
// ---------------------------------------------------------------------------

// parseSourceElements parses statements up to end, honoring a leading
// "use strict" directive. It reports whether the list is strict.
func (p *Parser) parseSourceElements(end TokenType) ([]ast.Stmt, bool) {
	var body []ast.Stmt
	directives := true
	for !p.is(end) {
		if p.is(TokenEOF) {
			p.errorf("missing } in compound statement")
		}
		tok := p.tok
		stmt := p.parseStatement()
		body = append(body, stmt)
		if !directives {
			continue
		}
		es, ok := stmt.(*ast.ExprStmt)
		if !ok || tok.Type != TokenString {
			directives = false
			continue
		}
		if _, ok := es.X.(*ast.StringLiteral); !ok || es.X.Span().Start != tok.Pos {
			directives = false
			continue
		}
		if tok.Literal == `"use strict"` || tok.Literal == `'use strict'` {
			p.strict = true
		}
	}
	return body, p.strict
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatement parses one statement and attaches preceding comments.
func (p *Parser) parseStatement() ast.Stmt {
	leading := p.takeComments(p.tok.Pos.Offset)
	chain := p.fn.chain
	p.fn.chain = nil
	s := p.parseStatementInner(chain)
	if p.comments != nil {
		p.comments.AddLeading(s, leading...)
	}
	return s
}

// parseSubStatement parses the body of an if, loop, with or label, where
// lexical declarations are not allowed.
func (p *Parser) parseSubStatement() ast.Stmt {
	if p.is(TokenConst) || p.isLexicalLet() {
		p.errorf("lexical declaration cannot appear in a single-statement context")
	}
	return p.parseStatement()
}

func (p *Parser) parseStatementInner(chain []int) ast.Stmt {
	start := p.tok.Pos
	switch p.tok.Type {
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.next()
		return &ast.EmptyStmt{SpanVal: p.span(start)}
	case TokenVar:
		p.next()
		decl := p.parseVarDeclarations(start, ast.DeclVar)
		p.consumeSemicolon()
		decl.SpanVal = p.span(start)
		return decl
	case TokenConst:
		if !p.hasFeature(vm.FeatureBlockScope) {
			p.errorf("const declarations are not supported in this language version")
		}
		p.next()
		decl := p.parseVarDeclarations(start, ast.DeclConst)
		p.consumeSemicolon()
		decl.SpanVal = p.span(start)
		return decl
	case TokenFunction:
		fn := p.parseFunction(ast.FunctionDeclaration)
		return &ast.FunctionDecl{SpanVal: fn.SpanVal, Func: fn}
	case TokenIf:
		return p.parseIf()
	case TokenFor:
		p.markLoop(chain)
		return p.parseFor()
	case TokenWhile:
		p.markLoop(chain)
		p.next()
		test := p.parseCondition("while")
		body := p.parseLoopBody()
		return &ast.WhileStmt{SpanVal: p.span(start), Test: test, Body: body}
	case TokenDo:
		p.markLoop(chain)
		p.next()
		body := p.parseLoopBody()
		if !p.is(TokenWhile) {
			p.errorf("missing while after do-loop body")
		}
		p.next()
		test := p.parseCondition("loop")
		if p.is(TokenSemicolon) {
			p.next()
		}
		return &ast.DoWhileStmt{SpanVal: p.span(start), Body: body, Test: test}
	case TokenContinue:
		return p.parseContinue()
	case TokenBreak:
		return p.parseBreak()
	case TokenReturn:
		return p.parseReturn()
	case TokenThrow:
		p.next()
		if p.tok.NewlineBefore {
			p.errorf("line terminator is not allowed between the throw keyword and the throw expression")
		}
		arg := p.parseExpression()
		p.consumeSemicolon()
		return &ast.ThrowStmt{SpanVal: p.span(start), Arg: arg}
	case TokenTry:
		return p.parseTry()
	case TokenSwitch:
		return p.parseSwitch()
	case TokenWith:
		if p.strict {
			p.errorf("with statements are not allowed in strict mode")
		}
		p.next()
		obj := p.parseCondition("with-statement object")
		body := p.parseSubStatement()
		return &ast.WithStmt{SpanVal: p.span(start), Object: obj, Body: body}
	case TokenDebugger:
		p.next()
		p.consumeSemicolon()
		return &ast.DebuggerStmt{SpanVal: p.span(start)}
	}

	if p.isLexicalLet() {
		p.next()
		decl := p.parseVarDeclarations(start, ast.DeclLet)
		p.consumeSemicolon()
		decl.SpanVal = p.span(start)
		return decl
	}

	// Expression statement or labeled statement.
	x := p.parseExpression()
	if id, ok := x.(*ast.Identifier); ok && p.is(TokenColon) && id.SpanVal.Start == start {
		return p.parseLabeled(id, chain)
	}
	p.consumeSemicolon()
	return &ast.ExprStmt{SpanVal: p.span(start), X: x}
}

// isLexicalLet reports whether the current let token starts a declaration.
func (p *Parser) isLexicalLet() bool {
	if !p.isIdent("let") || !p.hasFeature(vm.FeatureBlockScope) {
		return false
	}
	if p.strict {
		return true
	}
	next, _ := p.peekType()
	return next == TokenIdentifier || next == TokenLBracket || next == TokenLBrace || next == TokenReserved
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.tok.Pos
	p.expect(TokenLBrace, "")
	var body []ast.Stmt
	for !p.is(TokenRBrace) {
		if p.is(TokenEOF) {
			p.errorf("missing } in compound statement")
		}
		body = append(body, p.parseStatement())
	}
	trailing := p.takeComments(p.tok.Pos.Offset)
	p.next()
	b := &ast.BlockStmt{SpanVal: p.span(start), Body: body}
	if p.comments != nil {
		p.comments.AddTrailing(b, trailing...)
	}
	return b
}

// parseVarDeclarations parses the declarator list after var/let/const.
func (p *Parser) parseVarDeclarations(start ast.Position, kind ast.DeclKind) *ast.VarDecl {
	decl := &ast.VarDecl{Kind: kind}
	for {
		dstart := p.tok.Pos
		name := p.parseBindingIdentifier()
		if kind != ast.DeclVar && name.Name == "let" {
			p.failAt(name.SpanVal.Start, "let is disallowed as a lexically bound name")
		}
		var init ast.Expr
		if p.is(TokenAssign) {
			p.next()
			init = p.parseAssign()
		}
		decl.Decls = append(decl.Decls, &ast.VarDeclarator{SpanVal: p.span(dstart), Name: name, Init: init})
		if !p.is(TokenComma) {
			break
		}
		p.next()
	}
	decl.SpanVal = p.span(start)
	return decl
}

// parseCondition parses a parenthesized expression.
func (p *Parser) parseCondition(what string) ast.Expr {
	p.expect(TokenLParen, "before "+what+" condition")
	saved := p.noIn
	p.noIn = false
	x := p.parseExpression()
	p.noIn = saved
	p.expect(TokenRParen, "after "+what+" condition")
	return x
}

func (p *Parser) parseIf() ast.Stmt {
	start := p.tok.Pos
	p.next()
	test := p.parseCondition("if")
	cons := p.parseSubStatement()
	var alt ast.Stmt
	if p.is(TokenElse) {
		p.next()
		alt = p.parseSubStatement()
	}
	return &ast.IfStmt{SpanVal: p.span(start), Test: test, Cons: cons, Alt: alt}
}

// ---------------------------------------------------------------------------
// Loops and jumps
// ---------------------------------------------------------------------------

func (p *Parser) markLoop(chain []int) {
	for _, i := range chain {
		p.fn.labels[i].loop = true
	}
}

func (p *Parser) parseLoopBody() ast.Stmt {
	p.fn.loops++
	p.fn.breakable++
	body := p.parseSubStatement()
	p.fn.loops--
	p.fn.breakable--
	return body
}

func (p *Parser) parseFor() ast.Stmt {
	start := p.tok.Pos
	p.next()
	p.expect(TokenLParen, "after for")

	var init ast.Node
	if !p.is(TokenSemicolon) {
		p.noIn = true
		dstart := p.tok.Pos
		switch {
		case p.is(TokenVar):
			p.next()
			init = p.parseVarDeclarations(dstart, ast.DeclVar)
		case p.is(TokenConst):
			if !p.hasFeature(vm.FeatureBlockScope) {
				p.errorf("const declarations are not supported in this language version")
			}
			p.next()
			init = p.parseVarDeclarations(dstart, ast.DeclConst)
		case p.isLexicalLet():
			p.next()
			init = p.parseVarDeclarations(dstart, ast.DeclLet)
		default:
			init = p.parseExpression()
		}
		p.noIn = false
	}

	if p.is(TokenIn) || (p.isIdent("of") && init != nil) {
		of := !p.is(TokenIn)
		if of && !p.hasFeature(vm.FeatureForOf) {
			p.errorf("for-of loops are not supported in this language version")
		}
		switch left := init.(type) {
		case *ast.VarDecl:
			if len(left.Decls) != 1 {
				p.errorf("invalid for/in left-hand side")
			}
			if left.Decls[0].Init != nil && (of || p.strict || left.Kind != ast.DeclVar) {
				p.errorf("for-in loop variable declaration may not have an initializer")
			}
		case ast.Expr:
			p.checkAssignTarget(left, "invalid for/in left-hand side")
		}
		p.next()
		var right ast.Expr
		if of {
			right = p.parseAssign()
		} else {
			right = p.parseExpression()
		}
		p.expect(TokenRParen, "after for-loop control")
		body := p.parseLoopBody()
		return &ast.ForInStmt{SpanVal: p.span(start), Left: init, Right: right, Body: body, Of: of}
	}

	if d, ok := init.(*ast.VarDecl); ok && d.Kind == ast.DeclConst {
		for _, decl := range d.Decls {
			if decl.Init == nil {
				p.failAt(decl.SpanVal.Start, "missing = in const declaration")
			}
		}
	}

	p.expect(TokenSemicolon, "after for-loop initializer")
	var test, update ast.Expr
	if !p.is(TokenSemicolon) {
		test = p.parseExpression()
	}
	p.expect(TokenSemicolon, "after for-loop condition")
	if !p.is(TokenRParen) {
		update = p.parseExpression()
	}
	p.expect(TokenRParen, "after for-loop control")
	body := p.parseLoopBody()
	return &ast.ForStmt{SpanVal: p.span(start), Init: init, Test: test, Update: update, Body: body}
}

// jumpLabel parses the optional label of break or continue.
func (p *Parser) jumpLabel() string {
	if p.tok.NewlineBefore {
		return ""
	}
	name, ok := p.identifierName()
	if !ok {
		return ""
	}
	p.next()
	return name
}

func (p *Parser) findLabel(name string) (labelState, bool) {
	for i := len(p.fn.labels) - 1; i >= 0; i-- {
		if p.fn.labels[i].name == name {
			return p.fn.labels[i], true
		}
	}
	return labelState{}, false
}

func (p *Parser) parseBreak() ast.Stmt {
	start := p.tok.Pos
	p.next()
	label := p.jumpLabel()
	if label != "" {
		if _, ok := p.findLabel(label); !ok {
			p.failAt(start, "undefined label")
		}
	} else if p.fn.breakable == 0 {
		p.failAt(start, "unlabelled break must be inside loop or switch")
	}
	p.consumeSemicolon()
	return &ast.BreakStmt{SpanVal: p.span(start), Label: label}
}

func (p *Parser) parseContinue() ast.Stmt {
	start := p.tok.Pos
	p.next()
	label := p.jumpLabel()
	if p.fn.loops == 0 {
		p.failAt(start, "continue must be inside loop")
	}
	if label != "" {
		l, ok := p.findLabel(label)
		if !ok {
			p.failAt(start, "undefined label")
		}
		if !l.loop {
			p.failAt(start, "continue can only use labels of iteration statements")
		}
	}
	p.consumeSemicolon()
	return &ast.ContinueStmt{SpanVal: p.span(start), Label: label}
}

func (p *Parser) parseReturn() ast.Stmt {
	start := p.tok.Pos
	if !p.fn.isFunction {
		p.errorf("invalid return")
	}
	p.next()
	var arg ast.Expr
	if !p.is(TokenSemicolon) && !p.is(TokenRBrace) && !p.is(TokenEOF) && !p.tok.NewlineBefore {
		arg = p.parseExpression()
	}
	p.consumeSemicolon()
	return &ast.ReturnStmt{SpanVal: p.span(start), Arg: arg}
}

func (p *Parser) parseLabeled(id *ast.Identifier, chain []int) ast.Stmt {
	if _, ok := p.findLabel(id.Name); ok {
		p.failAt(id.SpanVal.Start, "duplicate label")
	}
	p.next() // ':'
	p.fn.labels = append(p.fn.labels, labelState{name: id.Name})
	p.fn.chain = append(chain, len(p.fn.labels)-1)
	var body ast.Stmt
	if p.is(TokenFunction) {
		if p.strict {
			p.errorf("functions cannot be labelled in strict mode")
		}
		body = p.parseStatement()
	} else {
		body = p.parseSubStatement()
	}
	p.fn.chain = nil
	p.fn.labels = p.fn.labels[:len(p.fn.labels)-1]
	return &ast.LabeledStmt{SpanVal: p.span(id.SpanVal.Start), Label: id.Name, Body: body}
}

// ---------------------------------------------------------------------------
// Try and switch
// ---------------------------------------------------------------------------

func (p *Parser) parseTry() ast.Stmt {
	start := p.tok.Pos
	p.next()
	if !p.is(TokenLBrace) {
		p.errorf("missing { before try block")
	}
	s := &ast.TryStmt{Block: p.parseBlock()}
	if p.is(TokenCatch) {
		p.next()
		if p.is(TokenLParen) {
			p.next()
			s.Param = p.parseBindingIdentifier()
			p.expect(TokenRParen, "after catch parameter")
		}
		if !p.is(TokenLBrace) {
			p.errorf("missing { before catch-block body")
		}
		s.Handler = p.parseBlock()
	}
	if p.is(TokenFinally) {
		p.next()
		if !p.is(TokenLBrace) {
			p.errorf("missing { before finally-block body")
		}
		s.Finalizer = p.parseBlock()
	}
	if s.Handler == nil && s.Finalizer == nil {
		p.errorf("try without catch or finally")
	}
	s.SpanVal = p.span(start)
	return s
}

func (p *Parser) parseSwitch() ast.Stmt {
	start := p.tok.Pos
	p.next()
	disc := p.parseCondition("switch")
	p.expect(TokenLBrace, "before switch body")
	s := &ast.SwitchStmt{Disc: disc}
	p.fn.breakable++
	hasDefault := false
	for !p.is(TokenRBrace) {
		cstart := p.tok.Pos
		c := &ast.SwitchCase{}
		switch p.tok.Type {
		case TokenCase:
			p.next()
			c.Test = p.parseExpression()
		case TokenDefault:
			if hasDefault {
				p.errorf("double default label in the switch statement")
			}
			hasDefault = true
			p.next()
		default:
			p.errorf("invalid switch statement")
		}
		p.expect(TokenColon, "after case expression")
		for !p.is(TokenCase) && !p.is(TokenDefault) && !p.is(TokenRBrace) {
			if p.is(TokenEOF) {
				p.errorf("missing } in compound statement")
			}
			c.Body = append(c.Body, p.parseStatement())
		}
		c.SpanVal = p.span(cstart)
		s.Cases = append(s.Cases, c)
	}
	p.fn.breakable--
	trailing := p.takeComments(p.tok.Pos.Offset)
	p.next()
	s.SpanVal = p.span(start)
	if p.comments != nil {
		p.comments.AddTrailing(s, trailing...)
	}
	return s
}
