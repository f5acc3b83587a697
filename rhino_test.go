package rhino_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	rhino "github.com/mozilla/rhino-sub008"
	"github.com/mozilla/rhino-sub008/config"
	"github.com/mozilla/rhino-sub008/vm"
)

func factory(t *testing.T, level int) *vm.Factory {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.OptimizationLevel = level
	fy, err := rhino.NewFactory(cfg)
	require.NoError(t, err)
	return fy
}

// outcome renders a result or the name and message of a thrown error.
func outcome(v vm.Value, err error) string {
	var ex *vm.Exception
	switch {
	case errors.As(err, &ex):
		return "throws " + ex.Details()
	case err != nil:
		return "error " + err.Error()
	}
	return vm.ToDisplayValue(v)
}

var programs = []string{
	"1 + '2' + 3",
	"[1, 2, 3].map(function (x) { return x * 2; }).join('|')",
	"var o = {a: 1}; delete o.a; 'a' in o",
	"function f(n) { return n <= 1 ? 1 : n * f(n - 1); } f(10)",
	"var s = ''; for (var k in {x: 1, y: 2, z: 3}) s += k; s",
	"var r = []; for (let i = 0; i < 3; i++) { r.push(() => i); } r.map(f => f()).join()",
	"var log = []; try { try { throw 1; } finally { log.push('f1'); } } catch (e) { log.push('c' + e); } log.join()",
	"(function () { try { return 'try'; } finally { return 'finally'; } })()",
	"var n = 0; outer: for (var i = 0; i < 5; i++) { for (var j = 0; j < 5; j++) { if (j == 2) continue outer; if (i == 3) break outer; n++; } } n",
	"switch (3) { case 1: 'one'; break; case 3: 'three'; default: 'fell' }",
	"undefinedVariable + 1",
	"null.property",
	"'abc'.toUpperCase().split('').reverse().join('')",
	"typeof [] + typeof null + typeof undefined + typeof 1",
	"0.1 + 0.2 === 0.3",
	"var x = 10; (function () { var x = 20; return eval('x'); })()",
	"with ({w: 5}) { w * 2 }",
	"`${1}${'a'}${[2, 3]}`",
	"2 ** 10 + (null ?? 'd')",
	"Object.keys({b: 1, a: 2, 10: 0, 2: 0}).join()",
	"var c = 0; var o = {get g() { return ++c; }}; o.g + o.g",
	"function P() {} P.prototype.v = 1; var p = new P(); p.v + (p instanceof P)",
	"'x'.concat(1, null, undefined)",
	"parseInt('ff', 16) + Number('0x10') + +'  12  '",
	"[3, 20, 100].sort().join()",
	"throw {custom: true}",
}

func TestLevelsAgree(t *testing.T) {
	for _, src := range programs {
		var results []string
		for _, level := range []int{-1, 0, 9} {
			cx, exit := factory(t, level).Enter()
			results = append(results, outcome(rhino.Evaluate(cx, src, "agree.js")))
			exit()
		}
		assert.Equal(t, results[0], results[1], "levels -1 and 0 differ on %s", src)
		assert.Equal(t, results[0], results[2], "levels -1 and 9 differ on %s", src)
	}
}

func TestLevelsAgreeOnValues(t *testing.T) {
	want := map[string]string{
		programs[0]:  "123",
		programs[2]:  "false",
		programs[6]:  "f1,c1",
		programs[7]:  "finally",
		programs[8]:  "6",
		programs[11]: "throws TypeError: Cannot read property \"property\" from null",
		programs[21]: "2",
	}
	for src, w := range want {
		cx, exit := factory(t, 9).Enter()
		got := outcome(rhino.Evaluate(cx, src, "agree.js"))
		exit()
		if src == programs[11] {
			assert.True(t, strings.HasPrefix(got, "throws TypeError"), "%s = %s", src, got)
			continue
		}
		assert.Equal(t, w, got, src)
	}
}

func TestDeletionRevealsPrototype(t *testing.T) {
	for _, level := range []int{-1, 0, 9} {
		cx, exit := factory(t, level).Enter()
		v, err := rhino.Evaluate(cx, `
			var proto = {k: 'proto'};
			var o = Object.create(proto);
			var seen = [];
			for (var i = 0; i < 3; i++) {
				if (i == 1) o.k = 'own';
				if (i == 2) delete o.k;
				seen.push(o.k);
			}
			seen.join()`, "delete.js")
		require.NoError(t, err)
		assert.Equal(t, "proto,own,proto", vm.ToString(v).String(), "level %d", level)
		exit()
	}
}

func TestRopeConcatenationMatchesJoin(t *testing.T) {
	cx, exit := factory(t, 0).Enter()
	defer exit()
	v, err := rhino.Evaluate(cx, `
		var s = '', parts = [];
		for (var i = 0; i < 5000; i++) { s += i % 10; parts.push(i % 10); }
		[s === parts.join(''), s.length, s.charAt(4321), s.indexOf('789', 4000)].join()`, "rope.js")
	require.NoError(t, err)
	assert.Equal(t, "true,5000,1,4007", vm.ToString(v).String())
}

func TestManyKeysStayFast(t *testing.T) {
	cx, exit := factory(t, 9).Enter()
	defer exit()
	start := time.Now()
	v, err := rhino.Evaluate(cx, `
		var o = {}, n = 20000;
		for (var i = 0; i < n; i++) o['key_' + i * 7919] = i;
		var ok = true;
		for (var j = 0; j < n; j++) if (o['key_' + j * 7919] !== j) ok = false;
		ok + ',' + Object.keys(o).length`, "keys.js")
	require.NoError(t, err)
	assert.Equal(t, "true,20000", vm.ToString(v).String())
	assert.Less(t, time.Since(start), 20*time.Second)
}

func TestPrimitiveThisWrapping(t *testing.T) {
	for _, level := range []int{-1, 0, 9} {
		cx, exit := factory(t, level).Enter()
		v, err := rhino.Evaluate(cx, `
			String.prototype.sloppy = function () { return typeof this; };
			String.prototype.strict = function () { 'use strict'; return typeof this; };
			Number.prototype.self = function () { 'use strict'; return this; };
			['s'.sloppy(), 's'.strict(), (5).self() === 5].join()`, "this.js")
		require.NoError(t, err)
		assert.Equal(t, "object,string,true", vm.ToString(v).String(), "level %d", level)
		exit()
	}
}

// counter installs a global tick() that counts its calls.
func counter(fy *vm.Factory) *int {
	n := new(int)
	fy.AddHostInitializer(func(cx *vm.Context, global *vm.Object) error {
		global.SetOwn("tick", vm.NewNativeFunction(cx.Realm(), "tick", 0, func(*vm.Context, vm.Value, []vm.Value) (vm.Value, error) {
			*n++
			return vm.Undefined, nil
		}), vm.FlagsHidden)
		return nil
	})
	return n
}

func TestFinallyRunsExactlyOnce(t *testing.T) {
	sources := map[string]string{
		"normal":   "try { 1; } finally { tick(); }",
		"return":   "(function () { try { return 1; } finally { tick(); } })()",
		"throw":    "try { try { throw 1; } finally { tick(); } } catch (e) {}",
		"break":    "for (;;) { try { break; } finally { tick(); } }",
		"continue": "for (var i = 0; i < 1; i++) { try { continue; } finally { tick(); } }",
		"nested":   "(function () { try { try { return 1; } finally { tick(); } } finally { tick(); } })()",
	}
	want := map[string]int{"normal": 1, "return": 1, "throw": 1, "break": 1, "continue": 1, "nested": 2}
	for name, src := range sources {
		for _, level := range []int{-1, 0, 9} {
			fy := factory(t, level)
			n := counter(fy)
			cx, exit := fy.Enter()
			_, err := rhino.Evaluate(cx, src, name+".js")
			exit()
			require.NoError(t, err, "%s at level %d", name, level)
			assert.Equal(t, want[name], *n, "%s at level %d", name, level)
		}
	}
}

func TestFinallyRunsOnceWhenInterrupted(t *testing.T) {
	for _, level := range []int{-1, 0, 9} {
		fy := factory(t, level)
		fy.InterruptInterval = 16
		n := counter(fy)
		cx, exit := fy.Enter()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := rhino.EvaluateContext(ctx, cx, `
			function spin() { for (;;) {} }
			try { try { spin(); } catch (e) { tick(); tick(); } finally { tick(); } } finally { tick(); }`, "interrupt.js")
		cancel()

		var ie *vm.InterruptedError
		require.True(t, errors.As(err, &ie), "level %d: %v", level, err)
		assert.Equal(t, 2, *n, "level %d: catch must not run, each finally once", level)

		// the Context stays usable
		v, err := rhino.Evaluate(cx, "'alive'", "after.js")
		require.NoError(t, err)
		assert.Equal(t, "alive", vm.ToString(v).String())
		exit()
	}
}

func TestEvaluateContextAlreadyCancelled(t *testing.T) {
	cx, exit := factory(t, 0).Enter()
	defer exit()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rhino.EvaluateContext(ctx, cx, "1", "x.js")
	var ie *vm.InterruptedError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, context.Canceled.Error(), ie.Reason)
}

func TestCompileCache(t *testing.T) {
	fy := factory(t, 0)
	cx, exit := fy.Enter()
	defer exit()

	a, err := rhino.Compile(cx, "var q = 1; q", "cache.js")
	require.NoError(t, err)
	b, err := rhino.Compile(cx, "var q = 1; q", "cache.js")
	require.NoError(t, err)
	assert.Same(t, a.Executable(), b.Executable())
	assert.Equal(t, a.ID(), b.ID())

	c, err := rhino.Compile(cx, "var q = 1; q", "other.js")
	require.NoError(t, err)
	assert.NotSame(t, a.Executable(), c.Executable())

	require.NoError(t, cx.SetOptimizationLevel(-1))
	tree, err := rhino.Compile(cx, "var q = 1; q", "cache.js")
	require.NoError(t, err)
	_, isTree := tree.Executable().(*vm.TreeScript)
	assert.True(t, isTree)
	assert.Equal(t, "var q = 1;\nq;", tree.Listing())
	assert.Contains(t, a.Listing(), "SET_GLOBAL q")

	fy.OverrideFeature(vm.FeatureStrictVars, true)
	d, err := rhino.Compile(cx, "var q = 1; q", "cache.js")
	require.NoError(t, err)
	assert.NotSame(t, tree.Executable(), d.Executable(), "feature overrides must not share executables")

	stats := fy.Compiler.(*rhino.Compiler).Stats()
	assert.Equal(t, uint64(4), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 4, stats.Scripts)
}

func TestEvalCodeIsNotCached(t *testing.T) {
	fy := factory(t, 0)
	cx, exit := fy.Enter()
	defer exit()
	v, err := rhino.Evaluate(cx, "var t = 0; for (var i = 0; i < 5; i++) t += eval('i'); t", "eval.js")
	require.NoError(t, err)
	assert.Equal(t, vm.Int(10), v)
	assert.Equal(t, 1, fy.Compiler.(*rhino.Compiler).Stats().Scripts)
}

func TestStrictConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Strict = true
	fy, err := rhino.NewFactory(cfg)
	require.NoError(t, err)
	cx, exit := fy.Enter()
	defer exit()
	_, err = rhino.Evaluate(cx, "implicitGlobal = 1", "strict.js")
	var ex *vm.Exception
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, "ReferenceError", ex.Name())
}

func TestInvalidConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.OptimizationLevel = 42
	_, err := rhino.NewFactory(cfg)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestSyntaxErrorsAreReturned(t *testing.T) {
	cx, exit := factory(t, 0).Enter()
	defer exit()
	_, err := rhino.Compile(cx, "var = 1", "bad.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.js")
}

func TestConcurrentContexts(t *testing.T) {
	fy := factory(t, 9)
	cx, exit := fy.Enter()
	script, err := rhino.Compile(cx, `
		function fib(n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); }
		var acc = [];
		for (var i = 0; i < 15; i++) acc.push(fib(i));
		acc.join()`, "shared.js")
	exit()
	require.NoError(t, err)

	const want = "0,1,1,2,3,5,8,13,21,34,55,89,144,233,377"
	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			cx, exit := fy.Enter()
			defer exit()
			if vm.Current() != cx {
				return fmt.Errorf("worker %d: wrong current context", w)
			}
			for i := 0; i < 5; i++ {
				v, err := script.Exec(cx, nil)
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				if got := vm.ToString(v).String(); got != want {
					return fmt.Errorf("worker %d: got %s", w, got)
				}
				// compilation through the shared cache
				v, err = rhino.Evaluate(cx, fmt.Sprintf("%d * 2", i), "worker.js")
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				if v != vm.Int(i*2) {
					return fmt.Errorf("worker %d: %d * 2 = %s", w, i, vm.ToDisplay(v))
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 6, fy.Compiler.(*rhino.Compiler).Stats().Scripts)
}
