package compiler

import (
	"fmt"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// parseExpression parses a comma-separated expression.
func (p *Parser) parseExpression() ast.Expr {
	start := p.tok.Pos
	x := p.parseAssign()
	if !p.is(TokenComma) {
		return x
	}
	seq := &ast.SequenceExpr{List: []ast.Expr{x}}
	for p.is(TokenComma) {
		p.next()
		seq.List = append(seq.List, p.parseAssign())
	}
	seq.SpanVal = p.span(start)
	return seq
}

// withIn parses f with the in operator enabled.
func (p *Parser) withIn(f func() ast.Expr) ast.Expr {
	saved := p.noIn
	p.noIn = false
	x := f()
	p.noIn = saved
	return x
}

// parseAssign parses an assignment expression, including arrow functions.
func (p *Parser) parseAssign() ast.Expr {
	start := p.tok.Pos
	if p.hasFeature(vm.FeatureArrowFunctions) {
		if fn := p.tryArrow(); fn != nil {
			return fn
		}
	}

	target := p.parseConditional()
	op, ok := assignOps[p.tok.Type]
	if !ok {
		return target
	}
	if op == ast.OpExp && !p.hasFeature(vm.FeatureExponentOperator) {
		p.errorf("syntax error")
	}
	p.checkAssignTarget(target, "invalid assignment left-hand side")
	p.next()
	value := p.parseAssign()
	return &ast.AssignExpr{SpanVal: p.span(start), Op: op, Target: target, Value: value}
}

// checkAssignTarget rejects expressions that cannot be assigned to.
func (p *Parser) checkAssignTarget(x ast.Expr, msg string) {
	switch t := x.(type) {
	case *ast.Identifier:
		if p.strict && (t.Name == "eval" || t.Name == "arguments") {
			p.failAt(t.SpanVal.Start, fmt.Sprintf("%s is not a valid identifier for this use in strict mode", t.Name))
		}
		return
	case *ast.MemberExpr, *ast.IndexExpr:
		return
	}
	p.failAt(x.Span().Start, msg)
}

func (p *Parser) parseConditional() ast.Expr {
	start := p.tok.Pos
	test := p.parseBinary(ast.PrecNullish)
	if !p.is(TokenQuestion) {
		return test
	}
	p.next()
	cons := p.withIn(p.parseAssign)
	p.expect(TokenColon, "in conditional expression")
	alt := p.parseAssign()
	return &ast.ConditionalExpr{SpanVal: p.span(start), Test: test, Cons: cons, Alt: alt}
}

// parseBinary parses binary operators of at least minPrec by precedence
// climbing.
func (p *Parser) parseBinary(minPrec int) ast.Expr {
	start := p.tok.Pos
	left := p.parseUnary()
	for {
		op, ok := binaryOps[p.tok.Type]
		if !ok || (op == ast.OpIn && p.noIn) {
			return left
		}
		prec := op.Precedence()
		if prec < minPrec {
			return left
		}
		switch op {
		case ast.OpExp:
			if !p.hasFeature(vm.FeatureExponentOperator) {
				p.errorf("syntax error")
			}
			if _, unary := left.(*ast.UnaryExpr); unary && !p.parens[left] {
				p.errorf("unparenthesized unary expression can't appear on the left-hand side of '**'")
			}
		case ast.OpNullish:
			if !p.hasFeature(vm.FeatureNullishCoalescing) {
				p.errorf("syntax error")
			}
		}
		p.next()
		var right ast.Expr
		if op.RightAssociative() {
			right = p.parseBinary(prec)
		} else {
			right = p.parseBinary(prec + 1)
		}
		if p.mixesNullish(op, left) || p.mixesNullish(op, right) {
			p.failAt(start, "cannot mix ?? with && or || without parentheses")
		}
		switch op {
		case ast.OpAnd, ast.OpOr, ast.OpNullish:
			left = &ast.LogicalExpr{SpanVal: p.span(start), Op: op, X: left, Y: right}
		default:
			left = &ast.BinaryExpr{SpanVal: p.span(start), Op: op, X: left, Y: right}
		}
	}
}

func (p *Parser) mixesNullish(op ast.Op, x ast.Expr) bool {
	l, ok := x.(*ast.LogicalExpr)
	if !ok || p.parens[x] {
		return false
	}
	if op == ast.OpNullish {
		return l.Op == ast.OpAnd || l.Op == ast.OpOr
	}
	return (op == ast.OpAnd || op == ast.OpOr) && l.Op == ast.OpNullish
}

var unaryOps = map[TokenType]ast.Op{
	TokenBang:   ast.OpNot,
	TokenMinus:  ast.OpNeg,
	TokenPlus:   ast.OpPlus,
	TokenTilde:  ast.OpBitNot,
	TokenTypeof: ast.OpTypeof,
	TokenVoid:   ast.OpVoid,
	TokenDelete: ast.OpDelete,
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.tok.Pos
	if op, ok := unaryOps[p.tok.Type]; ok {
		p.next()
		x := p.parseUnary()
		if op == ast.OpDelete && p.strict {
			if _, isIdent := x.(*ast.Identifier); isIdent {
				p.failAt(start, "applying the 'delete' operator to an unqualified name is deprecated")
			}
		}
		return &ast.UnaryExpr{SpanVal: p.span(start), Op: op, X: x}
	}
	if p.is(TokenInc) || p.is(TokenDec) {
		op := ast.OpInc
		if p.is(TokenDec) {
			op = ast.OpDec
		}
		p.next()
		x := p.parseUnary()
		p.checkAssignTarget(x, "invalid increment operand")
		return &ast.UpdateExpr{SpanVal: p.span(start), Op: op, Prefix: true, X: x}
	}

	x := p.parseLeftHandSide()
	if (p.is(TokenInc) || p.is(TokenDec)) && !p.tok.NewlineBefore {
		op := ast.OpInc
		if p.is(TokenDec) {
			op = ast.OpDec
		}
		p.checkAssignTarget(x, "invalid increment operand")
		p.next()
		return &ast.UpdateExpr{SpanVal: p.span(start), Op: op, X: x}
	}
	return x
}

// parseLeftHandSide parses member accesses, calls and new expressions.
func (p *Parser) parseLeftHandSide() ast.Expr {
	var x ast.Expr
	if p.is(TokenNew) {
		x = p.parseNew()
	} else {
		x = p.parsePrimary()
	}
	return p.parseSuffixes(x, true)
}

func (p *Parser) parseNew() ast.Expr {
	start := p.tok.Pos
	p.next()
	var callee ast.Expr
	if p.is(TokenNew) {
		callee = p.parseNew()
	} else {
		callee = p.parsePrimary()
	}
	callee = p.parseSuffixes(callee, false)
	var args []ast.Expr
	if p.is(TokenLParen) {
		args = p.parseArguments()
	}
	return &ast.NewExpr{SpanVal: p.span(start), Callee: callee, Args: args}
}

func (p *Parser) parseSuffixes(x ast.Expr, allowCall bool) ast.Expr {
	start := x.Span().Start
	for {
		switch p.tok.Type {
		case TokenDot:
			p.next()
			if p.tok.Type != TokenIdentifier && !p.tok.Type.IsKeyword() {
				p.errorf("missing name after . operator")
			}
			name := p.tok.Value
			p.next()
			x = &ast.MemberExpr{SpanVal: p.span(start), Object: x, Property: name}
		case TokenLBracket:
			p.next()
			index := p.withIn(p.parseExpression)
			p.expect(TokenRBracket, "in index expression")
			x = &ast.IndexExpr{SpanVal: p.span(start), Object: x, Index: index}
		case TokenLParen:
			if !allowCall {
				return x
			}
			args := p.parseArguments()
			x = &ast.CallExpr{SpanVal: p.span(start), Callee: x, Args: args}
		case TokenTemplate, TokenTemplateHead:
			p.errorf("tagged templates are not supported")
		default:
			return x
		}
	}
}

func (p *Parser) parseArguments() []ast.Expr {
	p.expect(TokenLParen, "")
	var args []ast.Expr
	saved := p.noIn
	p.noIn = false
	for !p.is(TokenRParen) {
		args = append(args, p.parseAssign())
		if !p.is(TokenComma) {
			break
		}
		p.next()
	}
	p.noIn = saved
	p.expect(TokenRParen, "after argument list")
	return args
}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() ast.Expr {
	start := p.tok.Pos
	switch p.tok.Type {
	case TokenIdentifier, TokenReserved:
		return p.parseIdentifier()
	case TokenNumber:
		p.checkLegacyOctal()
		v, raw := p.tok.Num, p.tok.Literal
		p.next()
		return &ast.NumberLiteral{SpanVal: p.span(start), Value: v, Raw: raw}
	case TokenString:
		p.checkLegacyOctal()
		v := p.tok.Value
		p.next()
		return &ast.StringLiteral{SpanVal: p.span(start), Value: v}
	case TokenTemplate, TokenTemplateHead:
		return p.parseTemplate()
	case TokenTrue, TokenFalse:
		v := p.is(TokenTrue)
		p.next()
		return &ast.BoolLiteral{SpanVal: p.span(start), Value: v}
	case TokenNull:
		p.next()
		return &ast.NullLiteral{SpanVal: p.span(start)}
	case TokenThis:
		p.next()
		return &ast.ThisExpr{SpanVal: p.span(start)}
	case TokenFunction:
		return p.parseFunction(ast.FunctionExpression)
	case TokenLParen:
		p.next()
		x := p.withIn(p.parseExpression)
		p.expect(TokenRParen, "in parenthetical")
		p.parens[x] = true
		return x
	case TokenLBracket:
		return p.parseArrayLiteral()
	case TokenLBrace:
		return p.parseObjectLiteral()
	case TokenSlash, TokenSlashEq:
		p.tok = p.lexer.ReadRegExp(p.tok)
		if p.tok.Type == TokenError {
			p.failAt(p.tok.Pos, p.tok.Literal)
		}
		pattern, flags := p.tok.Value, p.tok.Raw
		p.next()
		return &ast.RegExpLiteral{SpanVal: p.span(start), Pattern: pattern, Flags: flags}
	case TokenEOF:
		p.errorf("syntax error: unexpected end of input")
	}
	p.errorf("syntax error")
	return nil
}

func (p *Parser) parseTemplate() ast.Expr {
	if !p.hasFeature(vm.FeatureTemplateLiterals) {
		p.errorf("template literals are not supported in this language version")
	}
	start := p.tok.Pos
	t := &ast.TemplateLiteral{}
	t.Cooked = append(t.Cooked, p.tok.Value)
	t.Raw = append(t.Raw, p.tok.Raw)
	if p.is(TokenTemplate) {
		p.next()
		t.SpanVal = p.span(start)
		return t
	}
	for {
		p.next()
		t.Exprs = append(t.Exprs, p.withIn(p.parseExpression))
		if !p.is(TokenRBrace) {
			p.errorf("missing } in template literal substitution")
		}
		p.tok = p.lexer.ReadTemplateContinuation(p.tok)
		if p.tok.Type == TokenError {
			p.failAt(p.tok.Pos, p.tok.Literal)
		}
		t.Cooked = append(t.Cooked, p.tok.Value)
		t.Raw = append(t.Raw, p.tok.Raw)
		if p.is(TokenTemplateTail) {
			p.next()
			t.SpanVal = p.span(start)
			return t
		}
	}
}

func (p *Parser) parseArrayLiteral() ast.Expr {
	start := p.tok.Pos
	p.next()
	arr := &ast.ArrayLiteral{}
	saved := p.noIn
	p.noIn = false
	for !p.is(TokenRBracket) {
		if p.is(TokenComma) {
			p.next()
			arr.Elements = append(arr.Elements, nil)
			continue
		}
		arr.Elements = append(arr.Elements, p.parseAssign())
		if p.is(TokenRBracket) {
			break
		}
		p.expect(TokenComma, "after element list")
	}
	p.noIn = saved
	p.next()
	arr.SpanVal = p.span(start)
	return arr
}

func (p *Parser) parseObjectLiteral() ast.Expr {
	start := p.tok.Pos
	p.next()
	obj := &ast.ObjectLiteral{}
	saved := p.noIn
	p.noIn = false
	for !p.is(TokenRBrace) {
		obj.Properties = append(obj.Properties, p.parseProperty())
		if p.is(TokenRBrace) {
			break
		}
		p.expect(TokenComma, "after property list")
	}
	p.noIn = saved
	p.next()
	obj.SpanVal = p.span(start)
	return obj
}

func (p *Parser) parseProperty() *ast.Property {
	start := p.tok.Pos
	prop := &ast.Property{Kind: ast.PropertyInit}

	if p.isIdent("get") || p.isIdent("set") {
		next, _ := p.peekType()
		if next != TokenColon && next != TokenComma && next != TokenRBrace && next != TokenLParen {
			if p.isIdent("get") {
				prop.Kind = ast.PropertyGet
			} else {
				prop.Kind = ast.PropertySet
			}
			p.next()
			p.parsePropertyKey(prop)
			kind := ast.GetterFunction
			if prop.Kind == ast.PropertySet {
				kind = ast.SetterFunction
			}
			fn := p.parseFunctionRest(start, kind, nil)
			if kind == ast.GetterFunction && len(fn.Params) != 0 {
				p.failAt(fn.SpanVal.Start, "getter must not have parameters")
			}
			if kind == ast.SetterFunction && len(fn.Params) != 1 {
				p.failAt(fn.SpanVal.Start, "setter must have exactly one parameter")
			}
			prop.Value = fn
			prop.SpanVal = p.span(start)
			return prop
		}
	}

	keyTok := p.tok
	p.parsePropertyKey(prop)
	switch {
	case p.is(TokenColon):
		p.next()
		prop.Value = p.parseAssign()
	case p.is(TokenLParen):
		prop.Value = p.parseFunctionRest(start, ast.FunctionExpression, nil)
	case prop.Computed == nil && keyTok.Type == TokenIdentifier && (p.is(TokenComma) || p.is(TokenRBrace)):
		if p.strict && strictReserved[keyTok.Value] {
			p.failAt(keyTok.Pos, "identifier is a reserved word: "+keyTok.Value)
		}
		prop.Shorthand = true
		prop.Value = &ast.Identifier{SpanVal: ast.MakeSpan(keyTok.Pos, keyTok.End), Name: keyTok.Value}
	default:
		p.errorf("missing : after property id")
	}
	prop.SpanVal = p.span(start)
	return prop
}

func (p *Parser) parsePropertyKey(prop *ast.Property) {
	if p.is(TokenLBracket) {
		p.next()
		prop.Computed = p.parseAssign()
		p.expect(TokenRBracket, "after computed property name")
		return
	}
	key, ok := p.propertyName()
	if !ok {
		p.errorf("invalid property id")
	}
	prop.Key = key
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// parseFunction parses a function declaration or expression starting at
// the function keyword.
func (p *Parser) parseFunction(kind ast.FunctionKind) *ast.FunctionLiteral {
	start := p.tok.Pos
	p.next()
	var name *ast.Identifier
	if _, ok := p.identifierName(); ok {
		name = p.parseIdentifier()
	} else if kind == ast.FunctionDeclaration {
		p.errorf("missing name after function keyword")
	}
	return p.parseFunctionRest(start, kind, name)
}

// parseFunctionRest parses parameters and body.
func (p *Parser) parseFunctionRest(start ast.Position, kind ast.FunctionKind, name *ast.Identifier) *ast.FunctionLiteral {
	p.expect(TokenLParen, "before function parameters")
	var params []*ast.Identifier
	for !p.is(TokenRParen) {
		params = append(params, p.parseIdentifier())
		if !p.is(TokenComma) {
			break
		}
		p.next()
	}
	p.expect(TokenRParen, "after formal parameters")
	if !p.is(TokenLBrace) {
		p.errorf("missing { before function body")
	}
	fn := &ast.FunctionLiteral{Kind: kind, Name: name, Params: params}
	p.parseFunctionBody(fn)
	fn.SpanVal = p.span(start)
	fn.Source = p.input[start.Offset:p.prevEnd.Offset]
	return fn
}

// parseFunctionBody parses { body } in a fresh jump context and applies
// strict-mode parameter rules once the body's directives are known.
func (p *Parser) parseFunctionBody(fn *ast.FunctionLiteral) {
	savedStrict, savedNoIn, savedFn := p.strict, p.noIn, p.fn
	p.noIn = false
	p.fn = &funcState{parent: savedFn, isFunction: true}

	p.next() // '{'
	body, strict := p.parseSourceElements(TokenRBrace)
	trailing := p.takeComments(p.tok.Pos.Offset)
	p.next() // '}'

	fn.Body = body
	fn.Strict = strict
	if p.comments != nil {
		p.comments.AddTrailing(fn, trailing...)
	}
	p.checkParams(fn)

	p.strict, p.noIn, p.fn = savedStrict, savedNoIn, savedFn
}

func (p *Parser) checkParams(fn *ast.FunctionLiteral) {
	strictRules := fn.Strict || fn.Kind == ast.ArrowFunction
	if fn.Strict && fn.Name != nil {
		p.checkBindingName(fn.Name)
	}
	seen := make(map[string]bool, len(fn.Params))
	for _, param := range fn.Params {
		if fn.Strict {
			p.checkBindingName(param)
			if strictReserved[param.Name] {
				p.failAt(param.SpanVal.Start, "identifier is a reserved word: "+param.Name)
			}
		}
		if seen[param.Name] && strictRules {
			p.failAt(param.SpanVal.Start, "duplicate parameter name \""+param.Name+"\"")
		}
		seen[param.Name] = true
	}
}

// tryArrow parses an arrow function if one starts at the current token.
func (p *Parser) tryArrow() *ast.FunctionLiteral {
	start := p.tok.Pos
	var params []*ast.Identifier
	switch {
	case p.is(TokenIdentifier) || p.is(TokenReserved):
		if _, ok := p.identifierName(); !ok {
			return nil
		}
		if next, nl := p.peekType(); next != TokenArrow || nl {
			return nil
		}
		params = append(params, p.parseIdentifier())
	case p.is(TokenLParen):
		s := p.snapshot()
		var ok bool
		params, ok = p.scanArrowParams()
		if !ok {
			p.restore(s)
			return nil
		}
	default:
		return nil
	}

	p.next() // '=>'
	fn := &ast.FunctionLiteral{Kind: ast.ArrowFunction, Params: params}
	if p.is(TokenLBrace) {
		p.parseFunctionBody(fn)
	} else {
		savedFn := p.fn
		p.fn = &funcState{parent: savedFn, isFunction: true}
		bodyStart := p.tok.Pos
		x := p.parseAssign()
		p.fn = savedFn
		fn.Body = []ast.Stmt{&ast.ReturnStmt{SpanVal: p.span(bodyStart), Arg: x}}
		fn.ExprBody = true
		fn.Strict = p.strict
		p.checkParams(fn)
	}
	fn.SpanVal = p.span(start)
	fn.Source = p.input[start.Offset:p.prevEnd.Offset]
	return fn
}

// scanArrowParams reads (a, b) followed by => speculatively.
func (p *Parser) scanArrowParams() ([]*ast.Identifier, bool) {
	p.next() // '('
	var params []*ast.Identifier
	for !p.is(TokenRParen) {
		if _, ok := p.identifierName(); !ok {
			return nil, false
		}
		params = append(params, p.parseIdentifier())
		if !p.is(TokenComma) {
			break
		}
		p.next()
	}
	if !p.is(TokenRParen) {
		return nil, false
	}
	p.next()
	if !p.is(TokenArrow) || p.tok.NewlineBefore {
		return nil, false
	}
	return params, true
}
