package compiler

import (
	"math"
	"testing"
)

func TestLexerPunctuators(t *testing.T) {
	input := `( ) [ ] { } . ; , ? : => === !== >>>= >>> ** **= ?? ++ -- &&`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenDot, "."},
		{TokenSemicolon, ";"},
		{TokenComma, ","},
		{TokenQuestion, "?"},
		{TokenColon, ":"},
		{TokenArrow, "=>"},
		{TokenStrictEq, "==="},
		{TokenStrictNE, "!=="},
		{TokenUShrEq, ">>>="},
		{TokenUShr, ">>>"},
		{TokenStarStar, "**"},
		{TokenStarStarEq, "**="},
		{TokenNullish, "??"},
		{TokenInc, "++"},
		{TokenDec, "--"},
		{TokenAndAnd, "&&"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		octal bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"1.5e3", 1500, false},
		{".25", 0.25, false},
		{"0x1F", 31, false},
		{"0o17", 15, false},
		{"0b101", 5, false},
		{"017", 15, true},
		{"019", 19, true},
		{"1e400", math.Inf(1), false},
		{"0x20000000000001", 9007199254740992, false},
	}

	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("%q: type = %v, want number", tt.input, tok.Type)
			continue
		}
		if tok.Num != tt.want {
			t.Errorf("%q: value = %v, want %v", tt.input, tok.Num, tt.want)
		}
		if tok.LegacyOctal != tt.octal {
			t.Errorf("%q: legacy octal = %v, want %v", tt.input, tok.LegacyOctal, tt.octal)
		}
	}
}

func TestLexerNumberErrors(t *testing.T) {
	for _, input := range []string{"0x", "1e", "3in", "1.5e+"} {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenError {
			t.Errorf("%q: type = %v, want error", input, tok.Type)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		octal   bool
		escaped bool
	}{
		{`"hello"`, "hello", false, false},
		{`'it''s'`, "it", false, false},
		{`"a\nb"`, "a\nb", false, true},
		{`"\x41B\u{43}"`, "ABC", false, true},
		{`"\101"`, "A", true, true},
		{`"line\
continued"`, "linecontinued", false, true},
	}

	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("%s: type = %v, want string", tt.input, tok.Type)
			continue
		}
		if tok.Value != tt.want {
			t.Errorf("%s: value = %q, want %q", tt.input, tok.Value, tt.want)
		}
		if tok.LegacyOctal != tt.octal {
			t.Errorf("%s: legacy octal = %v, want %v", tt.input, tok.LegacyOctal, tt.octal)
		}
		if tok.Escaped != tt.escaped {
			t.Errorf("%s: escaped = %v, want %v", tt.input, tok.Escaped, tt.escaped)
		}
	}
}

func TestLexerUnterminated(t *testing.T) {
	for _, input := range []string{`"abc`, "'a\nb'", "/* open", "`tmpl"} {
		toks := Tokenize(input)
		last := toks[len(toks)-1]
		if last.Type != TokenError {
			t.Errorf("%q: last token = %v, want error", input, last)
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	toks := Tokenize(`var let of \u0076ar $x _y class`)
	want := []TokenType{TokenVar, TokenIdentifier, TokenIdentifier, TokenIdentifier, TokenIdentifier, TokenIdentifier, TokenReserved, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, toks[i], typ)
		}
	}
	if toks[3].Value != "var" || !toks[3].Escaped {
		t.Errorf("escaped identifier = %+v", toks[3])
	}
}

func TestLexerNewlineBefore(t *testing.T) {
	toks := Tokenize("a\nb /* x\n */ c // d\ne")
	want := []bool{false, true, true, true}
	for i, nl := range want {
		if toks[i].NewlineBefore != nl {
			t.Errorf("token[%d] %v: NewlineBefore = %v, want %v", i, toks[i], toks[i].NewlineBefore, nl)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("x =\n  42")
	num := toks[2]
	if num.Pos.Line != 2 || num.Pos.Column != 3 {
		t.Errorf("position = %d:%d, want 2:3", num.Pos.Line, num.Pos.Column)
	}
	if num.End.Offset != len("x =\n  42") {
		t.Errorf("end offset = %d", num.End.Offset)
	}
}

func TestLexerComments(t *testing.T) {
	l := NewLexer("// one\nx /* two */")
	l.KeepComments(true)
	for l.NextToken().Type != TokenEOF {
	}
	if len(l.Comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(l.Comments))
	}
	if l.Comments[0].Text != "// one" || l.Comments[0].Block {
		t.Errorf("comment[0] = %+v", l.Comments[0])
	}
	if l.Comments[1].Text != "/* two */" || !l.Comments[1].Block {
		t.Errorf("comment[1] = %+v", l.Comments[1])
	}
}

func TestLexerRegExp(t *testing.T) {
	l := NewLexer(`/a[/]b\/c/gi;`)
	slash := l.NextToken()
	if slash.Type != TokenSlash {
		t.Fatalf("first token = %v, want /", slash)
	}
	tok := l.ReadRegExp(slash)
	if tok.Type != TokenRegExp {
		t.Fatalf("type = %v, want regexp", tok.Type)
	}
	if tok.Value != `a[/]b\/c` {
		t.Errorf("pattern = %q", tok.Value)
	}
	if tok.Raw != "gi" {
		t.Errorf("flags = %q", tok.Raw)
	}
	if next := l.NextToken(); next.Type != TokenSemicolon {
		t.Errorf("after regexp = %v, want ;", next)
	}

	for _, bad := range []string{"/a/gg", "/a/x", "/a\n/"} {
		l := NewLexer(bad)
		if tok := l.ReadRegExp(l.NextToken()); tok.Type != TokenError {
			t.Errorf("%q: type = %v, want error", bad, tok.Type)
		}
	}
}

func TestLexerTemplate(t *testing.T) {
	l := NewLexer("`a\\n${x}b${y}c`")
	head := l.NextToken()
	if head.Type != TokenTemplateHead || head.Value != "a\n" || head.Raw != `a\n` {
		t.Fatalf("head = %+v", head)
	}
	if tok := l.NextToken(); tok.Type != TokenIdentifier {
		t.Fatalf("substitution = %v", tok)
	}
	mid := l.ReadTemplateContinuation(l.NextToken())
	if mid.Type != TokenTemplateMiddle || mid.Value != "b" {
		t.Fatalf("middle = %+v", mid)
	}
	l.NextToken()
	tail := l.ReadTemplateContinuation(l.NextToken())
	if tail.Type != TokenTemplateTail || tail.Value != "c" {
		t.Fatalf("tail = %+v", tail)
	}
	if tok := l.NextToken(); tok.Type != TokenEOF {
		t.Errorf("after template = %v", tok)
	}

	plain := NewLexer("`line1\r\nline2`").NextToken()
	if plain.Type != TokenTemplate || plain.Value != "line1\nline2" {
		t.Errorf("plain template = %+v", plain)
	}
}
