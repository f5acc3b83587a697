package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src, Options{})
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParseToSource(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a = 1 + 2 * 3", "a = 1 + 2 * 3;"},
		{"(1 + 2) * 3", "(1 + 2) * 3;"},
		{"var a = 1, b", "var a = 1, b;"},
		{"x\n++y", "x;\n++y;"},
		{"function f() { return\n1 }", "function f() {\n    return;\n    1;\n}"},
		{"if (a) b; else c", "if (a)\n    b;\nelse\n    c;"},
		{"for (var i = 0; i < 3; i++) {}", "for (var i = 0; i < 3; i++) {}"},
		{"x => x * 2", "(x) => x * 2;"},
		{"`a${b}c`", "`a${b}c`;"},
		{"a ?? b", "a ?? b;"},
		{"2 ** 3 ** 2", "2 ** 3 ** 2;"},
		{"/re/g.test(s)", "/re/g.test(s);"},
		{"new (f())()", "new (f())();"},
		{"a: while (1) break a", "a:\n    while (1)\n        break a;"},
		{"try { a } catch (e) { b } finally { c }", "try {\n    a;\n} catch (e) {\n    b;\n} finally {\n    c;\n}"},
		{"switch (x) { case 1: a; default: b }", "switch (x) {\n    case 1:\n        a;\n    default:\n        b;\n}"},
		{"({'b c': 1, 2: 3})", `({"b c": 1, 2: 3});`},
		{"let x = [1, , 2,]", "let x = [1, , 2];"},
		{"for (var j = (a in b); ;) break", "for (var j = (a in b);;)\n    break;"},
		{"for ((a in b); ;) break", "for ((a in b);;)\n    break;"},
	}

	for _, tt := range tests {
		got := ast.ToSource(parse(t, tt.input))
		if got != tt.want {
			t.Errorf("ToSource(%q) =\n%s\nwant\n%s", tt.input, got, tt.want)
		}
	}
}

func TestParseToSourceIsStable(t *testing.T) {
	sources := []string{
		"var o = {get x() { return 1 }, set x(v) {}, [k]: 2};",
		"do x++; while (x < 10)",
		"for (var k in o) if (k) continue;",
		"label: for (;;) { break label }",
		"with (o) { a = b }",
		"(function () { 'use strict'; return this })()",
		"a = b ? c : d, e",
		"delete o[k], typeof x, void 0",
		"for (const v of list) total += v",
		"-(-x); +(+y); - -z",
		"for (var i = 0, j = (a in b); i < 1; i++) {}",
		"for ((a in b); ;) break",
		"for (x = [a in b], y = f(c in d); ;) break",
	}
	for _, src := range sources {
		first := ast.ToSource(parse(t, src))
		second := ast.ToSource(parse(t, first))
		if first != second {
			t.Errorf("regenerated source is not stable:\n%s\nthen\n%s", first, second)
		}
	}
}

func TestParseStrictDirective(t *testing.T) {
	prog := parse(t, "'use strict'; var x = 1;")
	if !prog.Strict {
		t.Error("program with directive is not strict")
	}

	prog = parse(t, "var x; 'use strict';")
	if prog.Strict {
		t.Error("late directive made the program strict")
	}

	prog = parse(t, "function f() { 'use strict'; } function g() {}")
	f := prog.Body[0].(*ast.FunctionDecl).Func
	g := prog.Body[1].(*ast.FunctionDecl).Func
	if !f.Strict || g.Strict || prog.Strict {
		t.Errorf("strict: program=%v f=%v g=%v", prog.Strict, f.Strict, g.Strict)
	}
}

func TestParseFunctionSource(t *testing.T) {
	src := "var f = function add(a, b) { return a + b; };"
	prog := parse(t, src)
	fn := prog.Body[0].(*ast.VarDecl).Decls[0].Init.(*ast.FunctionLiteral)
	if fn.Source != "function add(a, b) { return a + b; }" {
		t.Errorf("Source = %q", fn.Source)
	}
	if fn.Kind != ast.FunctionExpression || fn.Name.Name != "add" || len(fn.Params) != 2 {
		t.Errorf("function = %+v", fn)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
		line  int
	}{
		{"a b", "missing ; before statement", 1},
		{"break;", "unlabelled break must be inside loop or switch", 1},
		{"continue;", "continue must be inside loop", 1},
		{"x: x: ;", "duplicate label", 1},
		{"return 1", "invalid return", 1},
		{"try {}", "try without catch or finally", 1},
		{"'use strict';\nwith (a) {}", "with statements are not allowed in strict mode", 2},
		{"'use strict'; 010", "octal literals are not allowed in strict mode", 1},
		{"'use strict'; var eval;", "eval is not a valid identifier for this use in strict mode", 1},
		{"function f(a, a) { 'use strict' }", `duplicate parameter name "a"`, 1},
		{"a ?? b || c", "cannot mix ?? with && or || without parentheses", 1},
		{"throw\n1", "line terminator is not allowed between the throw keyword and the throw expression", 2},
		{"switch (x) { default: default: }", "double default label in the switch statement", 1},
		{"if (a) let x = 1;", "lexical declaration cannot appear in a single-statement context", 1},
		{"{\n\n", "missing } in compound statement", 3},
		{"var s = 'abc", "unterminated string literal", 1},
	}

	for _, tt := range tests {
		_, err := Parse(tt.input, Options{SourceName: "test.js"})
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want %q", tt.input, tt.msg)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) error %T is not a SyntaxError", tt.input, err)
			continue
		}
		if !strings.Contains(se.Message, tt.msg) {
			t.Errorf("Parse(%q) message = %q, want %q", tt.input, se.Message, tt.msg)
		}
		if se.Pos.Line != tt.line {
			t.Errorf("Parse(%q) line = %d, want %d", tt.input, se.Pos.Line, tt.line)
		}
		if se.SourceName != "test.js" || !strings.HasPrefix(se.Error(), "test.js: line ") {
			t.Errorf("Parse(%q) error = %q", tt.input, se.Error())
		}
	}
}

func TestSyntaxErrorLineSource(t *testing.T) {
	_, err := Parse("var a = 1;\nvar b = ;\nvar c;", Options{})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v", err)
	}
	if se.LineSource != "var b = ;" {
		t.Errorf("LineSource = %q", se.LineSource)
	}
	if se.ScriptErrorKind() != vm.ErrorSyntax {
		t.Errorf("ScriptErrorKind = %v", se.ScriptErrorKind())
	}
}

func TestParseVersionGates(t *testing.T) {
	tests := []struct {
		input   string
		version int
		msg     string
	}{
		{"const x = 1;", vm.Version160, "const declarations are not supported in this language version"},
		{"`tmpl`", vm.Version180, "template literals are not supported in this language version"},
		{"for (x of y) ;", vm.Version180, "for-of loops are not supported in this language version"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.input, Options{Version: tt.version})
		if err == nil || !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("Parse(%q, %d) error = %v, want %q", tt.input, tt.version, err, tt.msg)
		}
		if _, err := Parse(tt.input, Options{Version: vm.VersionECMAScript}); err != nil {
			t.Errorf("Parse(%q) at the default version: %v", tt.input, err)
		}
	}

	// Arrows are only recognized from ES6 on; before that => is an error.
	if _, err := Parse("f = x => x", Options{Version: vm.Version180}); err == nil {
		t.Error("arrow function parsed at version 1.8")
	}
}

func TestParseKeepComments(t *testing.T) {
	src := "// header\nvar x = 1; /* trailing */"
	prog, err := Parse(src, Options{KeepComments: true})
	if err != nil {
		t.Fatal(err)
	}
	if prog.Comments == nil || prog.Comments.Len() != 2 {
		t.Fatalf("comments = %+v", prog.Comments)
	}
	got := ast.ToSource(prog)
	if !strings.HasPrefix(got, "// header\nvar x = 1;") || !strings.Contains(got, "/* trailing */") {
		t.Errorf("ToSource = %q", got)
	}

	prog = parse(t, src)
	if prog.Comments != nil {
		t.Error("comments retained without KeepComments")
	}
}

func TestParseSpans(t *testing.T) {
	prog := parse(t, "var a;\n\n  foo(1);")
	stmt := prog.Body[1]
	sp := stmt.Span()
	if sp.Start.Line != 3 || sp.Start.Column != 3 {
		t.Errorf("start = %d:%d, want 3:3", sp.Start.Line, sp.Start.Column)
	}
}
