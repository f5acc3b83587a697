package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mozilla/rhino-sub008/vm"
)

func generate(t *testing.T, src string, level int) *vm.Code {
	t.Helper()
	e, err := Compile(src, Options{SourceName: "test.js"}, level)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	code, ok := e.(*vm.Code)
	if !ok {
		t.Fatalf("Compile(%q) at level %d returned %T", src, level, e)
	}
	return code
}

func TestCodegenInstructions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"global store", "x = 1;", []string{"INT8 1", "SET_GLOBAL x", "SET_RESULT", "PUSH_RESULT", "RETURN"}},
		{"local load", "function f(a) { return a + 1; }", []string{"DECLARE_FUNC f", "GET_LOCAL 0 0", "ADD @0", "RETURN"}},
		{"with scope", "with (o) { y; }", []string{"PUSH_WITH", "GET_NAME y", "POP_SCOPE"}},
		{"typeof global", "typeof z", []string{"TYPEOF_GLOBAL z"}},
		{"for in", "for (var k in o) {}", []string{"DECLARE_VAR k", "FOR_IN_START", "ITER_NEXT"}},
		{"for of", "for (let v of a) {}", []string{"FOR_OF_START", "PUSH_SCOPE", "INIT_LOCAL 0 0"}},
		{"int32", "100000", []string{"INT32 100000"}},
		{"big constant", "3000000000", []string{"CONST 3000000000"}},
		{"fraction", "0.5", []string{"CONST 0.5"}},
		{"property", "o.p = o.q", []string{"GET_PROP q @0", "SET_PROP p @1"}},
		{"method call", "o.m(1, 2)", []string{"DUP", "GET_PROP m", "CALL 2 @0 o.m"}},
		{"direct eval", "eval('1')", []string{"GET_GLOBAL eval", "CALL_EVAL 1"}},
		{"dynamic call", "with (o) { g(); }", []string{"GET_NAME_THIS g", "CALL 0 @0 g"}},
		{"new", "new Foo(1)", []string{"GET_GLOBAL Foo", "NEW 1 Foo"}},
		{"object literal", "({a: 1, get b() { return 2; }})", []string{"NEW_OBJECT", "INIT_PROP a", "INIT_GETTER b"}},
		{"array holes", "[1, , 2]", []string{"NEW_ARRAY", "HOLE", "ARRAY_PUSH"}},
		{"regexp", "/a+/g", []string{`REGEXP "a+" "g"`}},
		{"template", "`a${b}`", []string{`CONST "a"`, "TO_STRING"}},
		{"logical", "a && b", []string{"JUMP_IF_FALSE_KEEP"}},
		{"nullish", "a ?? b", []string{"JUMP_NOT_NULL_KEEP"}},
		{"delete name", "delete x", []string{"DELETE_NAME x"}},
		{"postfix member", "o.n++", []string{"DUP", "GET_PROP n", "TO_NUMBER", "ROT3", "INC", "SET_PROP n"}},
		{"labeled break", "a: for (;;) { break a; }", []string{"LEAVE"}},
		{"switch", "switch (x) { case 1: y; }", []string{"STRICT_EQ", "JUMP_IF_TRUE"}},
		{"throw", "throw 1", []string{"THROW"}},
		{"debugger", "debugger;", []string{"DEBUGGER"}},
		{"let at top level", "let q = 1;", []string{"DECLARE_LEXICAL q 1", "INIT_GLOBAL q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dis := generate(t, tt.src, 0).Disassemble()
			for _, w := range tt.want {
				if !strings.Contains(dis, w) {
					t.Errorf("disassembly lacks %q:\n%s", w, dis)
				}
			}
		})
	}
}

func TestCodegenTryRegions(t *testing.T) {
	code := generate(t, "try { try { a(); } finally { b(); } } catch (e) { c(); }", 0)
	if len(code.TryRegions) != 2 {
		t.Fatalf("got %d regions, want 2", len(code.TryRegions))
	}
	inner, outer := code.TryRegions[0], code.TryRegions[1]
	if inner.Kind != vm.RegionFinally || outer.Kind != vm.RegionCatch {
		t.Errorf("region kinds = %v, %v; want finally, catch", inner.Kind, outer.Kind)
	}
	if inner.Start < outer.Start || inner.End > outer.End {
		t.Errorf("inner region [%d, %d) not inside outer [%d, %d)", inner.Start, inner.End, outer.Start, outer.End)
	}
	if code.NumFinally != 1 || inner.Index != 0 {
		t.Errorf("NumFinally = %d, index = %d", code.NumFinally, inner.Index)
	}

	code = generate(t, "try { a(); } catch (e) { b(); } finally { c(); }", 0)
	if len(code.TryRegions) != 2 {
		t.Fatalf("got %d regions, want 2", len(code.TryRegions))
	}
	catch, finally := code.TryRegions[0], code.TryRegions[1]
	if catch.Kind != vm.RegionCatch || finally.Kind != vm.RegionFinally {
		t.Errorf("region kinds = %v, %v; want catch, finally", catch.Kind, finally.Kind)
	}
	if finally.End <= catch.End {
		t.Errorf("finally region [%d, %d) does not cover the catch handler", finally.Start, finally.End)
	}
	dis := code.Disassemble()
	for _, w := range []string{"NORMAL_COMPLETION finally#0", "END_FINALLY finally#0"} {
		if !strings.Contains(dis, w) {
			t.Errorf("disassembly lacks %q:\n%s", w, dis)
		}
	}
}

func TestCodegenLines(t *testing.T) {
	code := generate(t, "a;\n\nb;\nfunction f() {\n  return 1;\n}", 0)
	if len(code.Lines) == 0 || code.Lines[0].Line != 1 {
		t.Fatalf("Lines = %v", code.Lines)
	}
	if got := code.LineAt(len(code.Bytecode) - 1); got != 3 {
		t.Errorf("LineAt(end) = %d, want 3", got)
	}
	fn := code.Functions[0]
	if fn.Name != "f" || fn.Info == nil {
		t.Fatalf("function = %+v", fn)
	}
	found := false
	for _, e := range fn.Lines {
		if e.Line == 5 {
			found = true
		}
	}
	if !found {
		t.Errorf("function lines = %v, want an entry for line 5", fn.Lines)
	}
}

func TestCodegenConstantPools(t *testing.T) {
	code := generate(t, "'s' + 's' + 's'; x; x; x;", 0)
	if len(code.Constants) != 1 {
		t.Errorf("Constants = %v, want one entry", code.Constants)
	}
	if len(code.Names) != 1 || code.Names[0] != "x" {
		t.Errorf("Names = %v", code.Names)
	}
}

func TestCodegenLevels(t *testing.T) {
	src := "function f(a) { return a * 2; } f(3) + f(4);"

	tree, err := Compile(src, Options{}, -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tree.(*vm.TreeScript); !ok {
		t.Errorf("level -1 produced %T, want *vm.TreeScript", tree)
	}
	if tree.OptimizationLevel() != -1 {
		t.Errorf("OptimizationLevel = %d", tree.OptimizationLevel())
	}

	plain := generate(t, src, 0)
	if plain.Optimized {
		t.Error("level 0 code is optimized")
	}
	opt := generate(t, src, 9)
	if !opt.Optimized || opt.OptimizationLevel() != 9 {
		t.Errorf("level 9 code: optimized=%v level=%d", opt.Optimized, opt.OptimizationLevel())
	}
	if opt.ArithSites == 0 || opt.CallSites == 0 {
		t.Errorf("sites: arith=%d call=%d", opt.ArithSites, opt.CallSites)
	}
	if !opt.Functions[0].Optimized {
		t.Error("nested function not optimized")
	}
	again := generate(t, src, 9)
	if again.Identity().Hash != opt.Identity().Hash {
		t.Error("equal compilations have different hashes")
	}
	if again.Identity().Instance == opt.Identity().Instance {
		t.Error("separate compilations share an instance id")
	}
}

func TestCodegenTooManyNames(t *testing.T) {
	var sb strings.Builder
	for i := 0; i <= 0x10000; i++ {
		fmt.Fprintf(&sb, "v%d;", i)
	}
	_, err := Compile(sb.String(), Options{}, 0)
	if err == nil || !strings.Contains(err.Error(), "program too large: too many names") {
		t.Errorf("err = %v", err)
	}
}

func TestCompilerEvaluates(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2", "3"},
		{"var s = 0; for (var i = 0; i < 5; i++) s += i; s", "10"},
		{"(function (n) { return n < 2 ? n : arguments.callee(n - 1) + arguments.callee(n - 2); })(10)", "55"},
		{"var r = []; for (let i = 0; i < 3; i++) r.push(() => i); r.map(f => f()).join()", "0,1,2"},
		{"var t = ''; try { throw 'x'; } catch (e) { t += e; } finally { t += 'f'; } t", "xf"},
		{"(function () { try { return 1; } finally { n = 2; } })() + n", "3"},
		{"var o = {a: 1}; with (o) { a = 5; } o.a", "5"},
		{"typeof undeclared", "undefined"},
		{"eval('var ev = 7; ev * 2')", "14"},
		{"`${1 + 1}px`", "2px"},
	}

	for _, level := range []int{-1, 0, 9} {
		fy := vm.NewFactory()
		fy.Compiler = Compiler{}
		fy.OptimizationLevel = level
		for _, tt := range tests {
			cx, exit := fy.Enter()
			v, err := cx.EvaluateString(tt.src, "test.js")
			exit()
			if err != nil {
				t.Errorf("level %d: %s: %v", level, tt.src, err)
				continue
			}
			if got := vm.ToString(v).String(); got != tt.want {
				t.Errorf("level %d: %s = %s, want %s", level, tt.src, got, tt.want)
			}
		}
	}
}

func TestCompilerSyntaxErrorBecomesException(t *testing.T) {
	fy := vm.NewFactory()
	fy.Compiler = Compiler{}
	cx, exit := fy.Enter()
	defer exit()

	v, err := cx.EvaluateString("try { eval('1 +'); } catch (e) { e instanceof SyntaxError }", "test.js")
	if err != nil {
		t.Fatal(err)
	}
	if v != vm.Bool(true) {
		t.Errorf("caught = %v, want true", vm.ToDisplay(v))
	}
}
