package compiler

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes script source. It always reads / as a division operator
// and } as a closing brace; the parser asks for a regular expression or a
// template continuation when the grammar expects one.
type Lexer struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	ch      rune // current character, 0 at EOF
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	keepComments bool
	Comments     []*ast.Comment
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
	l.load()
	return l
}

// KeepComments makes the lexer record comments in l.Comments.
func (l *Lexer) KeepComments(keep bool) {
	l.keepComments = keep
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

// load decodes the character at readPos.
func (l *Lexer) load() {
	l.pos = l.readPos
	if l.readPos >= len(l.input) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.readPos += size
}

// readChar advances past the current character.
func (l *Lexer) readChar() {
	if l.eof() {
		return
	}
	if isLineTerminator(l.ch) && !(l.ch == '\r' && l.peekChar() == '\n') {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.load()
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() ast.Position {
	return ast.Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// reset moves the lexer back to p.
func (l *Lexer) reset(p ast.Position) {
	l.readPos = p.Offset
	l.line = p.Line
	l.col = p.Column
	l.load()
}

func (l *Lexer) token(typ TokenType, start ast.Position, newline bool) Token {
	return Token{
		Type:          typ,
		Literal:       l.input[start.Offset:l.pos],
		Pos:           start,
		End:           l.position(),
		NewlineBefore: newline,
	}
}

func (l *Lexer) errorToken(start ast.Position, msg string) Token {
	return Token{Type: TokenError, Literal: msg, Pos: start, End: l.position()}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	newline, errTok := l.skipWhitespaceAndComments()
	if errTok != nil {
		return *errTok
	}

	pos := l.position()
	if l.eof() {
		return Token{Type: TokenEOF, Pos: pos, End: pos, NewlineBefore: newline}
	}

	ch := l.ch
	switch {
	case ch == '"' || ch == '\'':
		tok := l.readString(pos)
		tok.NewlineBefore = newline
		return tok
	case ch == '`':
		l.readChar()
		tok := l.readTemplate(pos, TokenTemplate, TokenTemplateHead)
		tok.NewlineBefore = newline
		return tok
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		tok := l.readNumber(pos)
		tok.NewlineBefore = newline
		return tok
	case isIdentifierStart(ch) || ch == '\\':
		tok := l.readIdentifierOrKeyword(pos)
		tok.NewlineBefore = newline
		return tok
	}

	typ, ok := l.readPunctuator()
	if !ok {
		l.readChar()
		return l.errorToken(pos, "illegal character")
	}
	return l.token(typ, pos, newline)
}

// punctuators ordered so that longer spellings are tried first.
var punctuators = []struct {
	text string
	typ  TokenType
}{
	{">>>=", TokenUShrEq},
	{"===", TokenStrictEq},
	{"!==", TokenStrictNE},
	{"**=", TokenStarStarEq},
	{"<<=", TokenShlEq},
	{">>=", TokenShrEq},
	{">>>", TokenUShr},
	{"=>", TokenArrow},
	{"==", TokenEq},
	{"!=", TokenNE},
	{"<=", TokenLE},
	{">=", TokenGE},
	{"&&", TokenAndAnd},
	{"||", TokenOrOr},
	{"??", TokenNullish},
	{"++", TokenInc},
	{"--", TokenDec},
	{"<<", TokenShl},
	{">>", TokenShr},
	{"**", TokenStarStar},
	{"+=", TokenPlusEq},
	{"-=", TokenMinusEq},
	{"*=", TokenStarEq},
	{"/=", TokenSlashEq},
	{"%=", TokenPercentEq},
	{"&=", TokenAmpEq},
	{"|=", TokenPipeEq},
	{"^=", TokenCaretEq},
	{"{", TokenLBrace},
	{"}", TokenRBrace},
	{"(", TokenLParen},
	{")", TokenRParen},
	{"[", TokenLBracket},
	{"]", TokenRBracket},
	{".", TokenDot},
	{";", TokenSemicolon},
	{",", TokenComma},
	{"?", TokenQuestion},
	{":", TokenColon},
	{"<", TokenLT},
	{">", TokenGT},
	{"+", TokenPlus},
	{"-", TokenMinus},
	{"*", TokenStar},
	{"/", TokenSlash},
	{"%", TokenPercent},
	{"&", TokenAmp},
	{"|", TokenPipe},
	{"^", TokenCaret},
	{"!", TokenBang},
	{"~", TokenTilde},
	{"=", TokenAssign},
}

func (l *Lexer) readPunctuator() (TokenType, bool) {
	rest := l.input[l.pos:]
	for _, p := range punctuators {
		if strings.HasPrefix(rest, p.text) {
			for range p.text {
				l.readChar()
			}
			return p.typ, true
		}
	}
	return TokenError, false
}

// skipWhitespaceAndComments skips insignificant input and reports whether
// a line terminator was crossed.
func (l *Lexer) skipWhitespaceAndComments() (bool, *Token) {
	newline := false
	for !l.eof() {
		switch {
		case isLineTerminator(l.ch):
			newline = true
			l.readChar()
		case isWhitespace(l.ch):
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			start := l.position()
			for !l.eof() && !isLineTerminator(l.ch) {
				l.readChar()
			}
			l.addComment(start, false)
		case l.ch == '/' && l.peekChar() == '*':
			start := l.position()
			l.readChar()
			l.readChar()
			closed := false
			for !l.eof() {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					closed = true
					break
				}
				if isLineTerminator(l.ch) {
					newline = true
				}
				l.readChar()
			}
			if !closed {
				tok := l.errorToken(start, "unterminated comment")
				return newline, &tok
			}
			l.addComment(start, true)
		default:
			return newline, nil
		}
	}
	return newline, nil
}

func (l *Lexer) addComment(start ast.Position, block bool) {
	if !l.keepComments {
		return
	}
	l.Comments = append(l.Comments, &ast.Comment{
		SpanVal: ast.MakeSpan(start, l.position()),
		Text:    l.input[start.Offset:l.pos],
		Block:   block,
	})
}

// ---------------------------------------------------------------------------
// Strings and escapes
// ---------------------------------------------------------------------------

func (l *Lexer) readString(pos ast.Position) Token {
	quote := l.ch
	l.readChar()
	var units []rune
	legacyOctal, escaped := false, false
	for {
		if l.eof() || (isLineTerminator(l.ch) && l.ch != 0x2028 && l.ch != 0x2029) {
			return l.errorToken(pos, "unterminated string literal")
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			escaped = true
			l.readChar()
			rs, octal, msg := l.readEscape(false)
			if msg != "" {
				return l.errorToken(pos, msg)
			}
			legacyOctal = legacyOctal || octal
			units = append(units, rs...)
			continue
		}
		units = append(units, l.ch)
		l.readChar()
	}
	tok := l.token(TokenString, pos, false)
	tok.Value = encodeUnits(units)
	tok.LegacyOctal = legacyOctal
	tok.Escaped = escaped
	return tok
}

// readEscape decodes one escape sequence after the backslash. It returns
// the produced code points (surrogates unpaired), whether a legacy octal
// escape was used, and an error message.
func (l *Lexer) readEscape(template bool) ([]rune, bool, string) {
	ch := l.ch
	switch ch {
	case 'n':
		l.readChar()
		return []rune{'\n'}, false, ""
	case 't':
		l.readChar()
		return []rune{'\t'}, false, ""
	case 'r':
		l.readChar()
		return []rune{'\r'}, false, ""
	case 'b':
		l.readChar()
		return []rune{'\b'}, false, ""
	case 'f':
		l.readChar()
		return []rune{'\f'}, false, ""
	case 'v':
		l.readChar()
		return []rune{'\v'}, false, ""
	case 'x':
		l.readChar()
		v, ok := l.readHexDigits(2)
		if !ok {
			return nil, false, "invalid hexadecimal escape sequence"
		}
		return []rune{v}, false, ""
	case 'u':
		l.readChar()
		v, ok := l.readUnicodeEscape()
		if !ok {
			return nil, false, "invalid Unicode escape sequence"
		}
		if v > 0xFFFF {
			hi, lo := splitSurrogates(v)
			return []rune{hi, lo}, false, ""
		}
		return []rune{v}, false, ""
	case '\r':
		l.readChar()
		if l.ch == '\n' {
			l.readChar()
		}
		return nil, false, ""
	case '\n', 0x2028, 0x2029:
		l.readChar()
		return nil, false, ""
	}
	if ch >= '0' && ch <= '7' {
		if ch == '0' && !isDigit(l.peekChar()) {
			l.readChar()
			return []rune{0}, false, ""
		}
		if template {
			return nil, false, "octal escape sequences are not allowed in template literals"
		}
		// Legacy octal: up to three digits, value <= 0377.
		v := rune(0)
		n := 0
		limit := 3
		if ch > '3' {
			limit = 2
		}
		for n < limit && l.ch >= '0' && l.ch <= '7' {
			v = v*8 + (l.ch - '0')
			l.readChar()
			n++
		}
		return []rune{v}, true, ""
	}
	if l.eof() {
		return nil, false, "unterminated string literal"
	}
	if (ch == '8' || ch == '9') && template {
		return nil, false, "invalid escape sequence in template literal"
	}
	l.readChar()
	return []rune{ch}, false, ""
}

func (l *Lexer) readHexDigits(n int) (rune, bool) {
	v := rune(0)
	for i := 0; i < n; i++ {
		if !isHexDigit(l.ch) {
			return 0, false
		}
		v = v*16 + hexValue(l.ch)
		l.readChar()
	}
	return v, true
}

// readUnicodeEscape reads XXXX or {X...} after \u.
func (l *Lexer) readUnicodeEscape() (rune, bool) {
	if l.ch != '{' {
		return l.readHexDigits(4)
	}
	l.readChar()
	v := rune(0)
	digits := 0
	for isHexDigit(l.ch) {
		v = v*16 + hexValue(l.ch)
		if v > unicode.MaxRune {
			return 0, false
		}
		digits++
		l.readChar()
	}
	if l.ch != '}' || digits == 0 {
		return 0, false
	}
	l.readChar()
	return v, true
}

func splitSurrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r>>10)&0x3FF, 0xDC00 + r&0x3FF
}

// encodeUnits pairs surrogates and encodes code points in generalized
// UTF-8.
func encodeUnits(units []rune) string {
	buf := make([]byte, 0, len(units))
	for i := 0; i < len(units); i++ {
		r := units[i]
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(units) {
			if lo := units[i+1]; lo >= 0xDC00 && lo <= 0xDFFF {
				r = 0x10000 + (r-0xD800)<<10 + (lo - 0xDC00)
				i++
			}
		}
		buf = ast.AppendRune(buf, r)
	}
	return string(buf)
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// readTemplate scans template characters after ` or }. It produces done
// when the closing backquote is reached and open when ${ is.
func (l *Lexer) readTemplate(pos ast.Position, done, open TokenType) Token {
	var cooked []rune
	var raw strings.Builder
	for {
		if l.eof() {
			return l.errorToken(pos, "unterminated template literal")
		}
		if l.ch == '`' {
			l.readChar()
			tok := l.token(done, pos, false)
			tok.Value = encodeUnits(cooked)
			tok.Raw = raw.String()
			return tok
		}
		if l.ch == '$' && l.peekChar() == '{' {
			l.readChar()
			l.readChar()
			tok := l.token(open, pos, false)
			tok.Value = encodeUnits(cooked)
			tok.Raw = raw.String()
			return tok
		}
		if l.ch == '\\' {
			start := l.pos
			l.readChar()
			rs, _, msg := l.readEscape(true)
			if msg != "" {
				return l.errorToken(pos, msg)
			}
			cooked = append(cooked, rs...)
			raw.WriteString(normalizeNewlines(l.input[start:l.pos]))
			continue
		}
		if l.ch == '\r' {
			l.readChar()
			if l.ch == '\n' {
				l.readChar()
			}
			cooked = append(cooked, '\n')
			raw.WriteByte('\n')
			continue
		}
		cooked = append(cooked, l.ch)
		raw.WriteRune(l.ch)
		l.readChar()
	}
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ReadTemplateContinuation rescans from the } that closes a template
// substitution and returns a middle or tail token.
func (l *Lexer) ReadTemplateContinuation(rbrace Token) Token {
	l.reset(rbrace.Pos)
	l.readChar()
	return l.readTemplate(rbrace.Pos, TokenTemplateTail, TokenTemplateMiddle)
}

// ---------------------------------------------------------------------------
// Regular expressions
// ---------------------------------------------------------------------------

// ReadRegExp rescans from the / or /= token start as a regular expression
// literal.
func (l *Lexer) ReadRegExp(slash Token) Token {
	l.reset(slash.Pos)
	pos := slash.Pos
	l.readChar()
	inClass := false
	start := l.pos
	for {
		if l.eof() || isLineTerminator(l.ch) {
			return l.errorToken(pos, "unterminated regular expression literal")
		}
		if l.ch == '\\' {
			l.readChar()
			if l.eof() || isLineTerminator(l.ch) {
				return l.errorToken(pos, "unterminated regular expression literal")
			}
			l.readChar()
			continue
		}
		if l.ch == '[' {
			inClass = true
		} else if l.ch == ']' {
			inClass = false
		} else if l.ch == '/' && !inClass {
			break
		}
		l.readChar()
	}
	pattern := l.input[start:l.pos]
	l.readChar()
	flagStart := l.pos
	for !l.eof() && isIdentifierPart(l.ch) {
		if !strings.ContainsRune("gimsuy", l.ch) {
			return l.errorToken(pos, "invalid flag after regular expression")
		}
		l.readChar()
	}
	flags := l.input[flagStart:l.pos]
	for i := 0; i < len(flags); i++ {
		if strings.Count(flags, flags[i:i+1]) > 1 {
			return l.errorToken(pos, "invalid flag after regular expression")
		}
	}
	tok := l.token(TokenRegExp, pos, slash.NewlineBefore)
	tok.Value = pattern
	tok.Raw = flags
	return tok
}

// ---------------------------------------------------------------------------
// Numbers
// ---------------------------------------------------------------------------

func (l *Lexer) readNumber(pos ast.Position) Token {
	start := l.pos
	var value float64
	legacyOctal := false

	if l.ch == '0' && strings.ContainsRune("xXoObB", l.peekChar()) {
		base := 16
		switch l.peekChar() {
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		l.readChar()
		l.readChar()
		digitStart := l.pos
		for !l.eof() && digitValue(l.ch) < base {
			l.readChar()
		}
		if l.pos == digitStart {
			return l.errorToken(pos, "missing digits after number prefix")
		}
		value = parseRadix(l.input[digitStart:l.pos], base)
	} else if l.ch == '0' && isDigit(l.peekChar()) {
		// Legacy octal, or decimal when an 8 or 9 appears.
		l.readChar()
		digitStart := l.pos
		octal := true
		for isDigit(l.ch) {
			if l.ch >= '8' {
				octal = false
			}
			l.readChar()
		}
		legacyOctal = true
		if octal {
			value = parseRadix(l.input[digitStart:l.pos], 8)
		} else {
			if msg := l.readFraction(); msg != "" {
				return l.errorToken(pos, msg)
			}
			value, _ = strconv.ParseFloat(l.input[start:l.pos], 64)
		}
	} else {
		for isDigit(l.ch) {
			l.readChar()
		}
		if msg := l.readFraction(); msg != "" {
			return l.errorToken(pos, msg)
		}
		var err error
		value, err = strconv.ParseFloat(l.input[start:l.pos], 64)
		if err != nil && !isRangeError(err) {
			return l.errorToken(pos, "malformed number")
		}
	}

	if !l.eof() && (isIdentifierStart(l.ch) || isDigit(l.ch)) {
		return l.errorToken(pos, "identifier starts immediately after numeric literal")
	}
	tok := l.token(TokenNumber, pos, false)
	tok.Num = value
	tok.LegacyOctal = legacyOctal
	return tok
}

// readFraction reads an optional .digits and exponent part.
func (l *Lexer) readFraction() string {
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return "missing exponent"
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return ""
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// parseRadix converts digits in base to the nearest float64, exactly
// rounded for arbitrarily long inputs.
func parseRadix(digits string, base int) float64 {
	if len(digits) <= 13 {
		v, _ := strconv.ParseUint(digits, base, 64)
		return float64(v)
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return math.NaN()
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

func (l *Lexer) readIdentifierOrKeyword(pos ast.Position) Token {
	var sb strings.Builder
	escaped := false
	first := true
	for !l.eof() {
		if l.ch == '\\' {
			l.readChar()
			if l.ch != 'u' {
				return l.errorToken(pos, "illegal character")
			}
			l.readChar()
			r, ok := l.readUnicodeEscape()
			if !ok || (first && !isIdentifierStart(r)) || (!first && !isIdentifierPart(r)) {
				return l.errorToken(pos, "invalid Unicode escape sequence")
			}
			sb.WriteRune(r)
			escaped = true
		} else if (first && isIdentifierStart(l.ch)) || (!first && isIdentifierPart(l.ch)) {
			sb.WriteRune(l.ch)
			l.readChar()
		} else {
			break
		}
		first = false
	}

	name := sb.String()
	typ := TokenIdentifier
	if kw, ok := keywords[name]; ok && !escaped {
		typ = kw
	}
	tok := l.token(typ, pos, false)
	tok.Value = name
	tok.Escaped = escaped
	return tok
}

// Helper functions

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == 0x2028 || r == 0x2029
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\f', 0xA0, 0xFEFF:
		return true
	}
	return r > 0x7f && unicode.Is(unicode.Zs, r)
}

func isIdentifierStart(r rune) bool {
	return r == '$' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r > 0x7f && (unicode.IsLetter(r) || unicode.Is(unicode.Nl, r)))
}

func isIdentifierPart(r rune) bool {
	if isIdentifierStart(r) || isDigit(r) {
		return true
	}
	return r > 0x7f && (unicode.In(r, unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc) || r == 0x200C || r == 0x200D)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) rune {
	switch {
	case r >= '0' && r <= '9':
		return r - '0'
	case r >= 'a' && r <= 'f':
		return r - 'a' + 10
	default:
		return r - 'A' + 10
	}
}

func digitValue(r rune) int {
	if isHexDigit(r) {
		return int(hexValue(r))
	}
	return 99
}

// Tokenize returns all tokens from the input, reading / as division.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
