package compiler

import (
	"strings"
	"testing"

	"github.com/mozilla/rhino-sub008/ast"
)

func resolve(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog := parse(t, src)
	if err := Resolve(prog, Options{}); err != nil {
		t.Fatalf("Resolve(%q): %v", src, err)
	}
	return prog
}

// lastRef returns the last identifier named name in source order.
func lastRef(t *testing.T, prog *ast.Program, name string) *ast.Identifier {
	t.Helper()
	var found *ast.Identifier
	ast.Inspect(prog, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok && id.Name == name {
			found = id
		}
		return true
	})
	if found == nil {
		t.Fatalf("no identifier %s", name)
	}
	return found
}

func firstFunc(prog *ast.Program) *ast.FunctionLiteral {
	var fn *ast.FunctionLiteral
	ast.Inspect(prog, func(n ast.Node) bool {
		if f, ok := n.(*ast.FunctionLiteral); ok && fn == nil {
			fn = f
		}
		return fn == nil
	})
	return fn
}

func TestResolveBindings(t *testing.T) {
	tests := []struct {
		src   string
		name  string
		kind  ast.BindingKind
		depth int
		slot  int
		decl  ast.DeclKind
	}{
		{"function f(a) { var b; return a + b + c; }", "a", ast.BindStatic, 0, 0, ast.DeclParam},
		{"function f(a) { var b; return a + b + c; }", "b", ast.BindStatic, 0, 1, ast.DeclVar},
		{"function f(a) { var b; return a + b + c; }", "c", ast.BindGlobal, 0, 0, 0},
		{"function f() { let x = 1; { let y = 2; return x + y; } }", "x", ast.BindStatic, 1, 0, ast.DeclLet},
		{"function f() { let x = 1; { let y = 2; return x + y; } }", "y", ast.BindStatic, 0, 0, ast.DeclLet},
		{"function f() { let x = 1; { return x; } }", "x", ast.BindStatic, 0, 0, ast.DeclLet},
		{"function f(o) { with (o) { return x + o; } }", "x", ast.BindDynamic, 0, 0, 0},
		{"function f(o) { with (o) { return x + o; } }", "o", ast.BindDynamic, 0, 0, 0},
		{"function f() { var a; eval('1'); return a; }", "a", ast.BindStatic, 0, 0, ast.DeclVar},
		{"function f() { eval('1'); return g; }", "g", ast.BindDynamic, 0, 0, 0},
		{"function f() { return () => arguments; }", "arguments", ast.BindStatic, 1, 0, ast.DeclArguments},
		{"var v = 1; v;", "v", ast.BindGlobal, 0, 0, 0},
		{"try {} catch (e) { e; }", "e", ast.BindStatic, 0, 0, ast.DeclCatch},
	}

	for _, tt := range tests {
		prog := resolve(t, tt.src)
		b := lastRef(t, prog, tt.name).Binding
		if b.Kind != tt.kind {
			t.Errorf("%s: %s kind = %v, want %v", tt.src, tt.name, b.Kind, tt.kind)
			continue
		}
		if b.Kind != ast.BindStatic {
			continue
		}
		if b.Depth != tt.depth || b.Slot != tt.slot || b.Decl != tt.decl {
			t.Errorf("%s: %s = depth %d slot %d %v, want depth %d slot %d %v",
				tt.src, tt.name, b.Depth, b.Slot, b.Decl, tt.depth, tt.slot, tt.decl)
		}
	}
}

func TestResolveFunctionInfo(t *testing.T) {
	prog := resolve(t, "function f(a, b) { var c; return arguments.length; }")
	info := firstFunc(prog).Info
	if len(info.ParamSlots) != 2 || info.ParamSlots[0] != 0 || info.ParamSlots[1] != 1 {
		t.Errorf("ParamSlots = %v", info.ParamSlots)
	}
	if info.ArgumentsSlot < 0 {
		t.Error("arguments slot not allocated")
	}
	if len(info.VarNames) != 1 || info.VarNames[0] != "c" {
		t.Errorf("VarNames = %v", info.VarNames)
	}

	prog = resolve(t, "function f() { return 1; }")
	if slot := firstFunc(prog).Info.ArgumentsSlot; slot != -1 {
		t.Errorf("unused arguments got slot %d", slot)
	}

	prog = resolve(t, "var g = function fact(n) { return n ? fact(n - 1) : 1; };")
	fn := firstFunc(prog)
	if fn.Info.SelfSlot < 0 {
		t.Fatal("named function expression has no self binding")
	}
	self := lastRef(t, prog, "fact").Binding
	if self.Kind != ast.BindStatic || self.Slot != fn.Info.SelfSlot || self.Decl != ast.DeclSelf {
		t.Errorf("fact = %+v", self)
	}

	prog = resolve(t, "function f() { eval('x'); }")
	info = firstFunc(prog).Info
	if !info.HasEval || !info.Scope.Dynamic || info.ArgumentsSlot < 0 {
		t.Errorf("eval function info = %+v", info)
	}

	prog = resolve(t, "function f() { 'use strict'; eval('x'); }")
	if firstFunc(prog).Info.Scope.Dynamic {
		t.Error("strict eval made the function scope dynamic")
	}
}

func TestResolveProgramHoisting(t *testing.T) {
	prog := resolve(t, "var a; function b() {} if (x) { var c; } for (var d in o) ;")
	want := []string{"a", "c", "d", "b"}
	if strings.Join(prog.VarNames, ",") != strings.Join(want, ",") {
		t.Errorf("VarNames = %v, want %v", prog.VarNames, want)
	}
	if len(prog.FuncDecls) != 1 || prog.FuncDecls[0].Func.Name.Name != "b" {
		t.Errorf("FuncDecls = %v", prog.FuncDecls)
	}
}

func TestResolveAnnexB(t *testing.T) {
	prog := resolve(t, "function f() { { function g() {} } return g; }")
	var decl *ast.FunctionDecl
	ast.Inspect(prog, func(n ast.Node) bool {
		if fd, ok := n.(*ast.FunctionDecl); ok && fd.Func.Name.Name == "g" {
			decl = fd
		}
		return true
	})
	if decl == nil || decl.AnnexB == nil {
		t.Fatal("sloppy block function has no var binding")
	}
	if decl.AnnexB.Binding.Kind != ast.BindStatic {
		t.Errorf("AnnexB binding = %+v", decl.AnnexB.Binding)
	}

	prog = resolve(t, "function f() { 'use strict'; { function g() {} } }")
	ast.Inspect(prog, func(n ast.Node) bool {
		if fd, ok := n.(*ast.FunctionDecl); ok && fd.Func.Name.Name == "g" && fd.AnnexB != nil {
			t.Error("strict block function copied to a var")
		}
		return true
	})
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"function f() { let x; var x; }", "redeclaration of let x"},
		{"function f() { let x; let x; }", "redeclaration of let x"},
		{"function f() { const y = 1; function y() {} }", "redeclaration of const y"},
		{"function f() { { let z; { var z; } } }", "redeclaration of let z"},
		{"'use strict'; { function h() {} function h() {} }", "redeclaration of function h"},
	}
	for _, tt := range tests {
		prog, err := Parse(tt.src, Options{})
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.src, err)
			continue
		}
		err = Resolve(prog, Options{})
		if err == nil || !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("Resolve(%q) = %v, want %q", tt.src, err, tt.msg)
		}
	}
}
