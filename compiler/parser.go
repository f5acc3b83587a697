package compiler

import (
	"fmt"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser
// ---------------------------------------------------------------------------

// Options configures parsing and resolution.
type Options struct {
	Version      int           // language version; 0 selects vm.VersionDefault
	Strict       bool          // treat the whole source as strict code
	KeepComments bool          // retain comments for source regeneration
	SourceName   string        // used in error messages and stack traces
	Features     vm.FeatureSet // nil derives flags from Version
	Eval         bool          // source is direct or indirect eval code
}

func (o Options) features() vm.FeatureSet {
	if o.Features != nil {
		return o.Features
	}
	return vm.VersionFeatures(o.Version)
}

// Parser parses script source into an AST. The parser holds a single
// current token; lookahead is done by snapshotting the lexer.
type Parser struct {
	lexer    *Lexer
	tok      Token
	prevEnd  ast.Position
	input    string
	opts     Options
	features vm.FeatureSet

	strict bool
	noIn   bool // inside a for-statement head, where in is not an operator
	fn     *funcState

	comments    *ast.CommentMap
	nextComment int

	parens map[ast.Expr]bool // expressions written inside parentheses
}

// funcState tracks the label and jump context of the function being parsed.
type funcState struct {
	parent     *funcState
	isFunction bool
	labels     []labelState
	chain      []int // labels directly enclosing the next statement
	breakable  int
	loops      int
}

type labelState struct {
	name string
	loop bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string, opts Options) *Parser {
	p := &Parser{
		lexer:    NewLexer(input),
		input:    input,
		opts:     opts,
		features: opts.features(),
		strict:   opts.Strict,
		fn:       &funcState{},
		parens:   make(map[ast.Expr]bool),
	}
	if opts.KeepComments {
		p.lexer.KeepComments(true)
		p.comments = ast.NewCommentMap()
	}
	return p
}

// Parse parses a complete program.
func Parse(source string, opts Options) (*ast.Program, error) {
	return NewParser(source, opts).ParseProgram()
}

// ParseProgram parses the whole input. On error no tree is returned.
func (p *Parser) ParseProgram() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	p.next()
	start := p.tok.Pos
	body, strict := p.parseSourceElements(TokenEOF)
	prog = &ast.Program{
		SpanVal:    ast.MakeSpan(start, p.tok.End),
		Body:       body,
		Strict:     strict,
		SourceName: p.opts.SourceName,
		Source:     p.input,
		Eval:       p.opts.Eval,
	}
	if p.comments != nil {
		p.comments.AddTrailing(prog, p.takeComments(len(p.input)+1)...)
		prog.Comments = p.comments
	}
	return prog, nil
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

// next advances to the next token.
func (p *Parser) next() {
	p.prevEnd = p.tok.End
	p.tok = p.lexer.NextToken()
	if p.tok.Type == TokenError {
		p.failAt(p.tok.Pos, p.tok.Literal)
	}
}

func (p *Parser) is(t TokenType) bool {
	return p.tok.Type == t
}

// isIdent reports whether the current token is the identifier name.
func (p *Parser) isIdent(name string) bool {
	return p.tok.Type == TokenIdentifier && p.tok.Value == name && !p.tok.Escaped
}

// expect advances if the current token matches, otherwise fails.
func (p *Parser) expect(t TokenType, context string) {
	if p.tok.Type != t {
		if context != "" {
			p.errorf("missing %s %s", t, context)
		}
		p.errorf("expected %s, got %s", t, p.describe())
	}
	p.next()
}

func (p *Parser) describe() string {
	switch p.tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier:
		return fmt.Sprintf("identifier %s", p.tok.Value)
	}
	return fmt.Sprintf("%q", p.tok.Literal)
}

// errorf aborts the parse with an error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.failAt(p.tok.Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) failAt(pos ast.Position, msg string) {
	panic(bailout{err: newSyntaxError(p.input, p.opts.SourceName, pos, msg)})
}

// consumeSemicolon implements automatic semicolon insertion.
func (p *Parser) consumeSemicolon() {
	switch {
	case p.is(TokenSemicolon):
		p.next()
	case p.is(TokenRBrace), p.is(TokenEOF), p.tok.NewlineBefore:
	default:
		p.errorf("missing ; before statement")
	}
}

func (p *Parser) span(start ast.Position) ast.Span {
	return ast.MakeSpan(start, p.prevEnd)
}

func (p *Parser) hasFeature(f vm.Feature) bool {
	return p.features.HasFeature(f)
}

// snapshot captures parser and lexer state for speculative parsing.
type snapshot struct {
	lexer    Lexer
	tok      Token
	prevEnd  ast.Position
	comments int
}

func (p *Parser) snapshot() snapshot {
	return snapshot{lexer: *p.lexer, tok: p.tok, prevEnd: p.prevEnd, comments: len(p.lexer.Comments)}
}

func (p *Parser) restore(s snapshot) {
	*p.lexer = s.lexer
	p.lexer.Comments = p.lexer.Comments[:s.comments]
	p.tok = s.tok
	p.prevEnd = s.prevEnd
}

// peekType returns the type of the token after the current one, and
// whether a line terminator precedes it.
func (p *Parser) peekType() (TokenType, bool) {
	s := p.snapshot()
	p.next()
	t, nl := p.tok.Type, p.tok.NewlineBefore
	p.restore(s)
	return t, nl
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

// takeComments returns the pending comments that start before offset.
func (p *Parser) takeComments(offset int) []*ast.Comment {
	if p.comments == nil {
		return nil
	}
	all := p.lexer.Comments
	start := p.nextComment
	end := start
	for end < len(all) && all[end].SpanVal.Start.Offset < offset {
		end++
	}
	p.nextComment = end
	return all[start:end]
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

// identifierName reports whether the current token can serve as an
// identifier reference or binding.
func (p *Parser) identifierName() (string, bool) {
	switch p.tok.Type {
	case TokenIdentifier:
		return p.tok.Value, true
	case TokenReserved:
		if p.hasFeature(vm.FeatureReservedKeywordAsIdentifier) && !p.strict {
			return p.tok.Value, true
		}
	}
	return "", false
}

// parseIdentifier parses an identifier reference.
func (p *Parser) parseIdentifier() *ast.Identifier {
	name, ok := p.identifierName()
	if !ok {
		if p.tok.Type.IsKeyword() {
			p.errorf("identifier is a reserved word: %s", p.tok.Literal)
		}
		p.errorf("syntax error")
	}
	if p.strict && strictReserved[name] {
		p.errorf("identifier is a reserved word: %s", name)
	}
	start := p.tok.Pos
	p.next()
	return &ast.Identifier{SpanVal: p.span(start), Name: name}
}

// parseBindingIdentifier parses a declared name.
func (p *Parser) parseBindingIdentifier() *ast.Identifier {
	id := p.parseIdentifier()
	p.checkBindingName(id)
	return id
}

func (p *Parser) checkBindingName(id *ast.Identifier) {
	if p.strict && (id.Name == "eval" || id.Name == "arguments") {
		p.failAt(id.SpanVal.Start, fmt.Sprintf("%s is not a valid identifier for this use in strict mode", id.Name))
	}
}

// propertyName parses an identifier name, string or number used as a
// property key. Keywords are allowed.
func (p *Parser) propertyName() (string, bool) {
	switch {
	case p.tok.Type == TokenIdentifier || p.tok.Type.IsKeyword():
		name := p.tok.Value
		if name == "" {
			name = p.tok.Literal
		}
		p.next()
		return name, true
	case p.tok.Type == TokenString:
		p.checkLegacyOctal()
		v := p.tok.Value
		p.next()
		return v, true
	case p.tok.Type == TokenNumber:
		p.checkLegacyOctal()
		v := ast.NumberToString(p.tok.Num)
		p.next()
		return v, true
	}
	return "", false
}

func (p *Parser) checkLegacyOctal() {
	if p.strict && p.tok.LegacyOctal {
		if p.tok.Type == TokenNumber {
			p.errorf("octal literals are not allowed in strict mode")
		}
		p.errorf("octal escape sequences are not allowed in strict mode")
	}
}
