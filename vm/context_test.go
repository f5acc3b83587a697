package vm_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/rhino-sub008/vm"
)

func TestEnterExitNesting(t *testing.T) {
	fy := newFactory(0)
	require.Nil(t, vm.Current())

	a, exitA := fy.Enter()
	assert.Same(t, a, vm.Current())

	b, exitB := fy.Enter()
	assert.Same(t, b, vm.Current())
	assert.NotEqual(t, a.ID(), b.ID())

	exitAgain := a.Enter()
	assert.Same(t, a, vm.Current())
	exitAgain()

	assert.Panics(t, exitA, "exiting out of order")
	exitB()
	assert.Same(t, a, vm.Current())
	exitA()
	assert.Nil(t, vm.Current())
	assert.Panics(t, exitA, "exiting twice")
}

func TestEnterOnAnotherGoroutine(t *testing.T) {
	cx, exit := newFactory(0).Enter()
	defer exit()

	done := make(chan interface{})
	go func() {
		defer func() { done <- recover() }()
		cx.Enter()
	}()
	assert.NotNil(t, <-done)
}

func TestOptimizationLevelLockedWhileRunning(t *testing.T) {
	fy := newFactory(0)
	var lockedErr error
	fy.AddHostInitializer(func(cx *vm.Context, global *vm.Object) error {
		f := vm.NewNativeFunction(cx.Realm(), "relevel", 0, func(cx *vm.Context, this vm.Value, args []vm.Value) (vm.Value, error) {
			lockedErr = cx.SetOptimizationLevel(9)
			return vm.Undefined, nil
		})
		global.SetOwn("relevel", f, vm.FlagsHidden)
		return nil
	})
	cx, exit := fy.Enter()
	defer exit()

	_, err := cx.EvaluateString("relevel()", "test.js")
	require.NoError(t, err)
	assert.ErrorIs(t, lockedErr, vm.ErrOptimizationLevelLocked)
	assert.NoError(t, cx.SetOptimizationLevel(9))
	assert.Error(t, cx.SetOptimizationLevel(10))
	assert.Error(t, cx.SetLanguageVersion(999))
}

func TestNoCompiler(t *testing.T) {
	cx, exit := vm.NewFactory().Enter()
	defer exit()
	_, err := cx.EvaluateString("1", "test.js")
	assert.ErrorIs(t, err, vm.ErrNoCompiler)
}

func TestSafeStandardObjectsSkipHosts(t *testing.T) {
	fy := newFactory(0)
	fy.AddHostInitializer(func(cx *vm.Context, global *vm.Object) error {
		global.SetOwn("host", vm.Str("yes"), vm.FlagsHidden)
		return nil
	})
	cx, exit := fy.Enter()
	defer exit()

	scope, err := cx.InitStandardObjects(vm.InitOptions{Safe: true, Sealed: true})
	require.NoError(t, err)
	e, err := cx.CompileString("typeof host + ',' + Object.isSealed(Object.prototype)", "test.js")
	require.NoError(t, err)
	v, err := cx.Exec(e, scope)
	require.NoError(t, err)
	assert.Equal(t, "undefined,true", vm.ToString(v).String())
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestExceptionPropagation(t *testing.T) {
	for _, level := range levels {
		_, err := eval(t, newFactory(level), "var x = 1;\nthrow new TypeError('boom');")
		var ex *vm.Exception
		require.True(t, errors.As(err, &ex), "level %d: %v", level, err)
		assert.Equal(t, "TypeError", ex.Name())
		assert.Equal(t, "boom", ex.Message())
		assert.Equal(t, 2, ex.Line, "level %d", level)
		assert.Equal(t, "TypeError: boom (test.js#2)", ex.Error())

		_, err = eval(t, newFactory(level), "throw 'plain';")
		require.True(t, errors.As(err, &ex))
		assert.Equal(t, "", ex.Name())
		assert.Equal(t, "plain", ex.Details())
	}
}

func TestEngineErrors(t *testing.T) {
	tests := []struct {
		src  string
		name string
		msg  string
	}{
		{"undefinedName", "ReferenceError", `"undefinedName" is not defined.`},
		{"var o = {}; o.f()", "TypeError", "is not a function"},
		{"null.x", "TypeError", ""},
		{"function r() { return r(); } r()", "InternalError", "too much recursion"},
		{"'use strict'; leak = 1", "ReferenceError", `Assignment to undefined "leak" in strict mode`},
		{"1 instanceof 2", "TypeError", "'instanceof' is not defined"},
	}
	for _, level := range levels {
		fy := newFactory(level)
		fy.MaxStackDepth = 200
		for _, tt := range tests {
			_, err := eval(t, fy, tt.src)
			var ex *vm.Exception
			if !assert.True(t, errors.As(err, &ex), "level %d: %s: %v", level, tt.src, err) {
				continue
			}
			assert.Equal(t, tt.name, ex.Name(), "level %d: %s", level, tt.src)
			assert.Contains(t, ex.Message(), tt.msg, "level %d: %s", level, tt.src)
		}
	}
}

func TestScriptStackStyles(t *testing.T) {
	src := "function inner() {\n  throw new Error('x');\n}\nfunction outer() {\n  inner();\n}\nouter();"
	tests := []struct {
		style vm.StackStyle
		want  []string
	}{
		{vm.StackStyleRhino, []string{"\tat test.js:2 (inner)", "\tat test.js:5 (outer)", "\tat test.js:7"}},
		{vm.StackStyleMozilla, []string{"inner()@test.js:2", "outer()@test.js:5", "()@test.js:7"}},
		{vm.StackStyleV8, []string{"    at inner (test.js:2)", "    at outer (test.js:5)", "    at test.js:7"}},
	}
	for _, level := range levels {
		for _, tt := range tests {
			fy := newFactory(level)
			fy.StackStyle = tt.style
			_, err := eval(t, fy, src)
			var ex *vm.Exception
			require.True(t, errors.As(err, &ex))
			lines := strings.Split(strings.TrimRight(ex.ScriptStack(), "\n"), "\n")
			assert.Equal(t, tt.want, lines, "level %d style %v", level, tt.style)
		}
	}
}

func TestStackProperty(t *testing.T) {
	fy := newFactory(0)
	fy.StackStyle = vm.StackStyleV8
	got, err := eval(t, fy, "function f() { return new Error('m').stack; } f()")
	require.NoError(t, err)
	assert.Equal(t, "Error: m\n    at f (test.js:1)\n    at test.js:1\n", got)
}

func TestParseStackStyle(t *testing.T) {
	for name, want := range map[string]vm.StackStyle{"": vm.StackStyleRhino, "Mozilla": vm.StackStyleMozilla, "v8": vm.StackStyleV8} {
		got, err := vm.ParseStackStyle(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := vm.ParseStackStyle("java")
	assert.Error(t, err)
}

func TestNativeErrorsAreCatchable(t *testing.T) {
	for _, level := range levels {
		fy := newFactory(level)
		fy.AddHostInitializer(func(cx *vm.Context, global *vm.Object) error {
			f := vm.NewNativeFunction(cx.Realm(), "fail", 0, func(cx *vm.Context, this vm.Value, args []vm.Value) (vm.Value, error) {
				return nil, cx.NewError(vm.ErrorRange, "out of %s", "range")
			})
			global.SetOwn("fail", f, vm.FlagsHidden)
			return nil
		})
		got, err := eval(t, fy, "try { fail(); } catch (e) { e instanceof RangeError && e.message }")
		require.NoError(t, err)
		assert.Equal(t, "out of range", got, "level %d", level)
	}
}

// ---------------------------------------------------------------------------
// Features
// ---------------------------------------------------------------------------

func TestFeatureOverrides(t *testing.T) {
	fy := newFactory(0)
	cx, exit := fy.Enter()
	defer exit()

	assert.True(t, cx.HasFeature(vm.FeatureArrowFunctions))
	fy.OverrideFeature(vm.FeatureArrowFunctions, false)
	assert.False(t, cx.HasFeature(vm.FeatureArrowFunctions))
	fy.ClearOverride(vm.FeatureArrowFunctions)
	assert.True(t, cx.HasFeature(vm.FeatureArrowFunctions))

	fy.FeatureHook = func(cx *vm.Context, f vm.Feature) (bool, bool) {
		return true, f == vm.FeatureLocationInformationInError
	}
	v, err := cx.EvaluateString("var e = new Error('x'); e.fileName + ':' + e.lineNumber", "loc.js")
	require.NoError(t, err)
	assert.Equal(t, "loc.js:1", vm.ToString(v).String())

	f, ok := vm.ParseFeature("strict_vars")
	require.True(t, ok)
	assert.Equal(t, vm.FeatureStrictVars, f)
	assert.Len(t, vm.Features(), 14)
}

func TestStrictVarsWarnings(t *testing.T) {
	fy := newFactory(0)
	fy.OverrideFeature(vm.FeatureStrictVars, true)
	var warnings []string
	fy.WarningReporter = func(cx *vm.Context, msg string) { warnings = append(warnings, msg) }

	_, err := eval(t, fy, "undeclared = 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Assignment to undeclared variable undeclared"}, warnings)

	fy.OverrideFeature(vm.FeatureWarningAsError, true)
	_, err = eval(t, fy, "again = 1")
	var ex *vm.Exception
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, "Error", ex.Name())
}

func TestOldUndefNullThis(t *testing.T) {
	fy := newFactory(0)
	fy.OverrideFeature(vm.FeatureOldUndefNullThis, true)
	got, err := eval(t, fy, "(function () { 'use strict'; return this; }).call(null) === this")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

// ---------------------------------------------------------------------------
// Interrupts
// ---------------------------------------------------------------------------

func TestInterruptHook(t *testing.T) {
	for _, level := range levels {
		fy := newFactory(level)
		fy.InterruptInterval = 10
		cx, exit := fy.Enter()

		polls := 0
		cx.SetInterruptHook(func(*vm.Context) bool {
			polls++
			return polls > 5
		})
		_, err := cx.EvaluateString("var n = 0; try { for (;;) {} } catch (e) { n = -1; } finally { n++; }", "test.js")
		var ie *vm.InterruptedError
		require.True(t, errors.As(err, &ie), "level %d: %v", level, err)
		assert.Equal(t, "interrupt hook", ie.Reason)

		cx.SetInterruptHook(nil)
		v, err := cx.EvaluateString("n", "test.js")
		require.NoError(t, err)
		assert.Equal(t, vm.Int(1), v, "level %d: finally must run once and catch must not", level)
		exit()
	}
}

func TestInterruptFromAnotherGoroutine(t *testing.T) {
	for _, level := range levels {
		cx, exit := newFactory(level).Enter()
		go func() {
			time.Sleep(20 * time.Millisecond)
			cx.Interrupt()
		}()
		_, err := cx.EvaluateString("function spin() { while (true) {} } spin()", "test.js")
		var ie *vm.InterruptedError
		assert.True(t, errors.As(err, &ie), "level %d: %v", level, err)

		// the flag is cleared once the outermost evaluation returns
		v, err := cx.EvaluateString("1 + 1", "test.js")
		require.NoError(t, err)
		assert.Equal(t, vm.Int(2), v)
		exit()
	}
}

func TestGoContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cx, exit := newFactory(0).Enter()
	defer exit()
	cx.SetGoContext(ctx)
	_, err := cx.EvaluateString("for (;;) {}", "test.js")
	var ie *vm.InterruptedError
	require.True(t, errors.As(err, &ie), "%v", err)
	assert.Equal(t, context.DeadlineExceeded.Error(), ie.Reason)
}

func TestInterruptSurvivesAbruptFinally(t *testing.T) {
	sources := map[string]string{
		"return":   "function f() { try { while (true) {} } finally { return 1; } } f()",
		"break":    "outer: for (;;) { try { while (true) {} } finally { break outer; } } 'escaped'",
		"continue": "var k = 0; for (var i = 0; i < 3; i++) { try { while (true) {} } finally { k++; continue; } } k",
	}
	for name, src := range sources {
		for _, level := range levels {
			fy := newFactory(level)
			fy.InterruptInterval = 10
			cx, exit := fy.Enter()

			polls := 0
			cx.SetInterruptHook(func(*vm.Context) bool {
				polls++
				return polls > 3
			})
			v, err := cx.EvaluateString(src, "test.js")
			var ie *vm.InterruptedError
			assert.True(t, errors.As(err, &ie), "%s at level %d: v=%v err=%v", name, level, v, err)
			assert.Nil(t, v, "%s at level %d", name, level)

			cx.SetInterruptHook(nil)
			v, err = cx.EvaluateString("'after'", "test.js")
			require.NoError(t, err)
			assert.Equal(t, "after", vm.ToString(v).String())
			exit()
		}
	}
}

// ---------------------------------------------------------------------------
// Debugger
// ---------------------------------------------------------------------------

func TestRecorderEvents(t *testing.T) {
	src := "function f(a) {\n  var b = a + 1;\n  debugger;\n  return b;\n}\nf(1);"
	for _, level := range levels {
		fy := newFactory(level)
		rec := vm.NewRecorder()
		fy.Debugger = rec
		_, err := eval(t, fy, src)
		require.NoError(t, err)

		var kinds []string
		for _, e := range rec.Events() {
			kinds = append(kinds, e.Type+":"+e.Function)
		}
		assert.Equal(t, []string{"compiled:", "enter:", "enter:f", "debugger:f", "exit:f", "exit:"}, kinds, "level %d", level)

		ev := rec.Events()
		stmt := ev[3]
		assert.Equal(t, 3, stmt.Line, "level %d", level)
		assert.Equal(t, "test.js", stmt.SourceName)
		assert.Equal(t, vm.Int(1), stmt.Locals["a"])
		assert.Equal(t, vm.Int(2), stmt.Locals["b"])
		assert.Equal(t, vm.StateCompleted, ev[4].State)
	}
}

func TestRecorderSeesThrowingActivation(t *testing.T) {
	fy := newFactory(0)
	rec := vm.NewRecorder()
	fy.Debugger = rec
	_, err := eval(t, fy, "function g() { throw 1; } g()")
	require.Error(t, err)

	var states []vm.ActivationState
	for _, e := range rec.Events() {
		if e.Type == "exit" {
			states = append(states, e.State)
		}
	}
	assert.Equal(t, []vm.ActivationState{vm.StateThrew, vm.StateThrew}, states)
	assert.Equal(t, "threw", vm.StateThrew.String())
}
