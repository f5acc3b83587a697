package ast

import (
	"math"
	"testing"
)

func TestNumberToString(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-42, "-42"},
		{3.5, "3.5"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1e20, "100000000000000000000"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
		{123456789.125, "123456789.125"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		if got := NumberToString(tt.in); got != tt.want {
			t.Errorf("NumberToString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuote(t *testing.T) {
	lone := string(AppendRune(nil, 0xD800))
	tests := []struct {
		in   string
		want string
	}{
		{"abc", `"abc"`},
		{`a"b`, `"a\"b"`},
		{"line\nbreak", `"line\nbreak"`},
		{"\x01", `"\x01"`},
		{"é", `"é"`},
		{lone, `"\uD800"`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDecodeRuneSurrogate(t *testing.T) {
	s := string(AppendRune(nil, 0xDC01))
	r, size := DecodeRune(s)
	if r != 0xDC01 || size != 3 {
		t.Errorf("DecodeRune = (%U, %d), want (U+DC01, 3)", r, size)
	}
}

func TestToSourceExpressions(t *testing.T) {
	a := &Identifier{Name: "a"}
	b := &Identifier{Name: "b"}
	c := &Identifier{Name: "c"}
	tests := []struct {
		name string
		node Node
		want string
	}{
		{
			"precedence",
			&BinaryExpr{Op: OpMul, X: &BinaryExpr{Op: OpAdd, X: a, Y: b}, Y: c},
			"(a + b) * c",
		},
		{
			"left assoc",
			&BinaryExpr{Op: OpSub, X: a, Y: &BinaryExpr{Op: OpSub, X: b, Y: c}},
			"a - (b - c)",
		},
		{
			"exponent right assoc",
			&BinaryExpr{Op: OpExp, X: a, Y: &BinaryExpr{Op: OpExp, X: b, Y: c}},
			"a ** b ** c",
		},
		{
			"double negation",
			&UnaryExpr{Op: OpNeg, X: &UnaryExpr{Op: OpNeg, X: a}},
			"- -a",
		},
		{
			"array holes",
			&ArrayLiteral{Elements: []Expr{&NumberLiteral{Value: 1}, nil}},
			"[1, ,]",
		},
		{
			"nullish mix",
			&LogicalExpr{Op: OpNullish, X: &LogicalExpr{Op: OpOr, X: a, Y: b}, Y: c},
			"(a || b) ?? c",
		},
		{
			"number member",
			&MemberExpr{Object: &NumberLiteral{Value: 1}, Property: "toString"},
			"(1).toString",
		},
		{
			"object statement",
			&ExprStmt{X: &ObjectLiteral{}},
			"({});",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToSource(tt.node); got != tt.want {
				t.Errorf("ToSource = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToSourceComments(t *testing.T) {
	stmt := &ExprStmt{X: &Identifier{Name: "x"}}
	prog := &Program{Body: []Stmt{stmt}}
	prog.Comments = NewCommentMap()
	prog.Comments.AddLeading(stmt, &Comment{Text: "// lead"})
	prog.Comments.AddTrailing(prog, &Comment{Text: "/* tail */", Block: true})

	want := "// lead\nx;\n/* tail */"
	if got := ToSource(prog); got != want {
		t.Errorf("ToSource = %q, want %q", got, want)
	}
	if n := prog.Comments.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}
