package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/rhino-sub008/compiler"
	"github.com/mozilla/rhino-sub008/vm"
)

var levels = []int{-1, 0, 9}

func newFactory(level int) *vm.Factory {
	fy := vm.NewFactory()
	fy.Compiler = compiler.Compiler{}
	fy.OptimizationLevel = level
	return fy
}

// eval runs src in a fresh Context and returns its display string.
func eval(t *testing.T, fy *vm.Factory, src string) (string, error) {
	t.Helper()
	cx, exit := fy.Enter()
	defer exit()
	v, err := cx.EvaluateString(src, "test.js")
	if err != nil {
		return "", err
	}
	return vm.ToString(v).String(), nil
}

// expectAll evaluates every case at each optimization level.
func expectAll(t *testing.T, cases [][2]string) {
	t.Helper()
	for _, level := range levels {
		fy := newFactory(level)
		for _, c := range cases {
			got, err := eval(t, fy, c[0])
			if !assert.NoError(t, err, "level %d: %s", level, c[0]) {
				continue
			}
			assert.Equal(t, c[1], got, "level %d: %s", level, c[0])
		}
	}
}

func TestObjectModel(t *testing.T) {
	expectAll(t, [][2]string{
		{"var o = {b: 1, a: 2, 1: 'x', 0: 'y'}; Object.keys(o).join()", "0,1,b,a"},
		{"var o = {}; Object.defineProperty(o, 'x', {value: 1}); o.x = 2; o.x", "1"},
		{"var o = {}; Object.defineProperty(o, 'x', {value: 1}); Object.keys(o).length", "0"},
		{"var o = Object.freeze({a: 1}); o.a = 2; o.b = 3; o.a + ',' + o.b", "1,undefined"},
		{"Object.isFrozen(Object.freeze({}))", "true"},
		{"var o = Object.seal({a: 1}); delete o.a; o.a = 5; o.a", "5"},
		{"var p = {get v() { return this.k * 2; }}; var c = Object.create(p); c.k = 4; c.v", "8"},
		{"var o = {}; o.__defineGetter__('g', function () { return 7; }); o.g", "7"},
		{"var a = {}; var b = Object.create(a); a.isPrototypeOf(b)", "true"},
		{"({}).hasOwnProperty.call({q: 1}, 'q')", "true"},
		{"var d = Object.getOwnPropertyDescriptor({x: 1}, 'x'); [d.value, d.writable, d.enumerable, d.configurable].join()", "1,true,true,true"},
	})
}

func TestInheritedReadOnlyBlocksAssignment(t *testing.T) {
	expectAll(t, [][2]string{
		{"var p = {}; Object.defineProperty(p, 'r', {value: 1}); var c = Object.create(p); c.r = 2; c.hasOwnProperty('r') + ',' + c.r", "false,1"},
		{"'use strict'; var p = Object.freeze({r: 1}); var c = Object.create(p); try { c.r = 2; 'no' } catch (e) { e.name }", "TypeError"},
	})
}

func TestArrays(t *testing.T) {
	expectAll(t, [][2]string{
		{"var a = [3, 1, 2]; a.sort(); a.join('-')", "1-2-3"},
		{"[1, 2, 3].map(function (x) { return x * x; }).filter(function (x) { return x > 1; }).join()", "4,9"},
		{"var a = []; a[5] = 1; a.length", "6"},
		{"var a = [1, 2, 3]; a.length = 1; a.join()", "1"},
		{"[1, [2, [3]]].toString()", "1,2,3"},
		{"var a = [1]; a.push(a); a.join()", "1,"},
		{"[1, 2, 3, 4].reduce(function (s, x) { return s + x; })", "10"},
		{"[5, 1, 10].sort(function (a, b) { return a - b; }).join()", "1,5,10"},
		{"Array.isArray([]) + ',' + Array.isArray({})", "true,false"},
		{"[1, 2, 3].splice(1, 1).concat([9]).join()", "2,9"},
		{"var a = [1]; Object.defineProperty(a, 'length', {writable: false}); a[5] = 1; a['3'] = 1; a.length + ',' + a[5] + ',' + a[3]", "1,undefined,undefined"},
		{"var a = [1, 2]; Object.defineProperty(a, 'length', {writable: false}); a[0] = 7; a.join()", "7,2"},
		{"'use strict'; var a = [1]; Object.defineProperty(a, 'length', {writable: false}); try { a[5] = 1; 'no error' } catch (e) { e.name + ',' + a.length }", "TypeError,1"},
	})
}

func TestStringsAndNumbers(t *testing.T) {
	expectAll(t, [][2]string{
		{"'abc'.charAt(1) + 'abc'.charCodeAt(2)", "b99"},
		{"'a,b,,c'.split(',').length", "4"},
		{"'Hello'.replace(/l+/, 'L')", "HeLo"},
		{"'x'.repeat(3).toUpperCase()", "XXX"},
		{"'  pad '.trim() + '|'", "pad|"},
		{"(0.1 + 0.2).toFixed(2)", "0.30"},
		{"(255).toString(16)", "ff"},
		{"1 / 0 + ',' + -1 / 0 + ',' + (0 / 0)", "Infinity,-Infinity,NaN"},
		{"parseInt('08') + parseFloat('1.5e1')", "23"},
		{"1e21 + ''", "1e+21"},
		{"String.fromCharCode(0xD83D, 0xDE00).length", "2"},
		{"Math.max(1, 3, 2) + ',' + Math.min()", "3,Infinity"},
		{"typeof null + typeof function () {} + typeof 1", "objectfunctionnumber"},
		{"var r = /(\\d+)-(\\d+)/.exec('a 12-34'); r[1] + r[2] + r.index", "12342"},
	})
}

func TestClosuresAndScopes(t *testing.T) {
	expectAll(t, [][2]string{
		{"function mk() { var n = 0; return function () { return ++n; }; } var c = mk(); c(); c()", "2"},
		{"var fs = []; for (var i = 0; i < 3; i++) fs.push(function () { return i; }); fs[0]()", "3"},
		{"let x = 1; { let x = 2; } x", "1"},
		{"try { y; let y = 1; } catch (e) { e.name }", "ReferenceError"},
		{"const k = 1; try { k = 2; } catch (e) { e.name }", "TypeError"},
		{"function f() { return typeof g; function g() {} } f()", "function"},
		{"function f() { return this; } f() === this", "true"},
		{"(function () { 'use strict'; return this; })() === undefined", "true"},
		{"var o = {n: 'o', f: function () { return (() => this.n)(); }}; o.f()", "o"},
		{"function f(a) { arguments[0] = 9; return a; } f(1)", "9"},
		{"function f(a) { 'use strict'; arguments[0] = 9; return a; } f(1)", "1"},
		{"var b = function () { return this.v; }.bind({v: 4}); b()", "4"},
		{"function F(x) { this.x = x; } F.prototype.get = function () { return this.x; }; new F(6).get()", "6"},
		{"eval('var late = 3'); late", "3"},
		{"var x = 'g'; function f() { var x = 'l'; return (0, eval)('x'); } f()", "g"},
	})
}

func TestLanguageVersionAffectsToString(t *testing.T) {
	for _, level := range levels {
		fy := newFactory(level)
		fy.LanguageVersion = vm.Version120
		got, err := eval(t, fy, "[1, 'a'].toString()")
		require.NoError(t, err)
		assert.Equal(t, `[1, "a"]`, got, "level %d", level)
	}
}

func TestRegExpSyntaxErrors(t *testing.T) {
	expectAll(t, [][2]string{
		{"try { new RegExp('a('); } catch (e) { e.name + ': ' + e.message }", "SyntaxError: Invalid regular expression /a(/: missing closing )"},
		{"try { new RegExp('[b'); } catch (e) { e.name + ': ' + e.message }", "SyntaxError: Invalid regular expression /[b/: missing closing ]"},
		{"try { new RegExp('a', 'gg'); } catch (e) { e.message }", "Invalid regular expression /a/: duplicate flag 'g'"},
		{"/x+y/.test('axxy')", "true"},
	})
}
