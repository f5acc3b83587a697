package adapter_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/rhino-sub008/adapter"
	"github.com/mozilla/rhino-sub008/compiler"
	"github.com/mozilla/rhino-sub008/vm"
)

// layered returns a class Task implementing Runner, which extends the
// interface Computer.
func layered() (task, runner, computer *adapter.HostType) {
	computer = &adapter.HostType{
		Name:      "Computer",
		Interface: true,
		Methods: []adapter.Signature{
			{Name: "compute", Params: []string{"int", "String"}, Result: "String"},
		},
	}
	runner = &adapter.HostType{
		Name:       "Runner",
		Interface:  true,
		Interfaces: []*adapter.HostType{computer},
		Methods: []adapter.Signature{
			{Name: "run", Result: "void"},
			{Name: "priority", Result: "int", Default: func(*vm.Context, *adapter.Instance, []vm.Value) (vm.Value, error) {
				return vm.Int(5), nil
			}},
		},
	}
	task = &adapter.HostType{
		Name:       "Task",
		Interfaces: []*adapter.HostType{runner},
		Methods: []adapter.Signature{
			{Name: "describe", Result: "String", Default: func(cx *vm.Context, self *adapter.Instance, args []vm.Value) (vm.Value, error) {
				return vm.Str("task"), nil
			}},
		},
	}
	return task, runner, computer
}

func enter(t *testing.T) *vm.Context {
	t.Helper()
	fy := vm.NewFactory()
	fy.Compiler = compiler.Compiler{}
	cx, exit := fy.Enter()
	t.Cleanup(exit)
	_, err := cx.InitStandardObjects(vm.InitOptions{})
	require.NoError(t, err)
	return cx
}

// fn evaluates src, which must produce a function.
func fn(t *testing.T, cx *vm.Context, src string) *vm.Object {
	t.Helper()
	v, err := cx.EvaluateString("("+src+")", "adapter.js")
	require.NoError(t, err)
	o, ok := v.(*vm.Object)
	require.True(t, ok && vm.IsCallable(o), "%s is not a function", src)
	return o
}

func TestFlattenWalksEveryLayer(t *testing.T) {
	task, _, _ := layered()
	mt, err := adapter.Flatten(task)
	require.NoError(t, err)
	assert.Equal(t, []string{"describe", "run", "priority", "compute"}, mt.Names())
	assert.Equal(t, []string{"run", "compute"}, mt.Abstract())

	sig, ok := mt.Lookup("compute")
	require.True(t, ok)
	assert.Equal(t, "Computer", sig.Declarer)
	assert.Equal(t, "Computer.compute(int, String) String", sig.String())

	again, err := adapter.Flatten(task)
	require.NoError(t, err)
	assert.Same(t, mt, again)
}

func TestFlattenSharedInterfaceOnce(t *testing.T) {
	base := &adapter.HostType{Name: "Closeable", Interface: true, Methods: []adapter.Signature{{Name: "close"}}}
	a := &adapter.HostType{Name: "Reader", Interface: true, Interfaces: []*adapter.HostType{base}}
	b := &adapter.HostType{Name: "Writer", Interface: true, Interfaces: []*adapter.HostType{base}}
	rw := &adapter.HostType{Name: "ReadWriter", Interfaces: []*adapter.HostType{a, b}}
	mt, err := adapter.Flatten(rw)
	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, mt.Names())
}

func TestFlattenFollowsTypeChanges(t *testing.T) {
	task, runner, computer := layered()
	first, err := adapter.Flatten(task)
	require.NoError(t, err)
	again, err := adapter.Flatten(task)
	require.NoError(t, err)
	assert.Same(t, first, again, "an unchanged type reuses its table")

	computer.Methods = append(computer.Methods, adapter.Signature{Name: "cancel", Result: "void"})
	edited, err := adapter.Flatten(task)
	require.NoError(t, err)
	assert.Equal(t, []string{"describe", "run", "priority", "compute", "cancel"}, edited.Names())
	assert.Equal(t, []string{"run", "compute", "cancel"}, edited.Abstract())

	runner.Methods[0].Default = func(*vm.Context, *adapter.Instance, []vm.Value) (vm.Value, error) {
		return vm.Undefined, nil
	}
	edited, err = adapter.Flatten(task)
	require.NoError(t, err)
	assert.Equal(t, []string{"compute", "cancel"}, edited.Abstract())

	computer.Methods[0].Result = "int"
	task.Methods = append(task.Methods, adapter.Signature{Name: "compute", Params: []string{"int", "String"}, Result: "String"})
	_, err = adapter.Flatten(task)
	assert.ErrorContains(t, err, "conflicting declarations of compute")
}

func TestFlattenErrors(t *testing.T) {
	x := &adapter.HostType{Name: "X", Interface: true, Methods: []adapter.Signature{{Name: "m", Params: []string{"int"}}}}
	y := &adapter.HostType{Name: "Y", Interface: true, Methods: []adapter.Signature{{Name: "m", Params: []string{"String"}}}}
	_, err := adapter.Flatten(&adapter.HostType{Name: "XY", Interfaces: []*adapter.HostType{x, y}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting declarations of m")

	loop := &adapter.HostType{Name: "Loop"}
	loop.Super = loop
	_, err = adapter.Flatten(loop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inherits from itself")
}

func TestOverrideDeepInterfaceMethod(t *testing.T) {
	cx := enter(t)
	task, _, _ := layered()

	inst, err := adapter.New(cx, task, map[string]*vm.Object{
		"compute": fn(t, cx, "function (n, s) { return s + n * 2; }"),
		"run":     fn(t, cx, "function () { ran = true; }"),
	}, nil)
	require.NoError(t, err)

	sig, ok := inst.Signature("compute")
	require.True(t, ok)
	assert.Equal(t, []string{"int", "String"}, sig.Params)
	assert.Equal(t, "String", sig.Result)
	assert.True(t, inst.Overrides("compute"))

	v, err := inst.Invoke(cx, "compute", vm.Int(21), vm.Str("x"))
	require.NoError(t, err)
	assert.Equal(t, "x42", vm.ToString(v).String())

	_, err = inst.Invoke(cx, "compute", vm.Int(1))
	assert.ErrorContains(t, err, "expected 2 arguments, got 1")

	v, err = inst.Invoke(cx, "run")
	require.NoError(t, err)
	assert.Equal(t, vm.Undefined, v)
	ran, err := cx.EvaluateString("ran", "check.js")
	require.NoError(t, err)
	assert.Equal(t, vm.Bool(true), ran)

	// defaults from the interface and the class
	v, err = inst.Invoke(cx, "priority")
	require.NoError(t, err)
	assert.Equal(t, vm.Int(5), v)
	v, err = inst.Invoke(cx, "describe")
	require.NoError(t, err)
	assert.Equal(t, "task", vm.ToString(v).String())
}

func TestResultConversion(t *testing.T) {
	cx := enter(t)
	task, _, _ := layered()
	inst, err := adapter.New(cx, task, map[string]*vm.Object{
		"compute":  fn(t, cx, "function () { return 12; }"),
		"run":      fn(t, cx, "function () { return 'ignored'; }"),
		"priority": fn(t, cx, "function () { return '7.9'; }"),
	}, nil)
	require.NoError(t, err)

	v, err := inst.Invoke(cx, "compute", vm.Int(0), vm.Null)
	require.NoError(t, err)
	assert.Equal(t, vm.Str("12").String(), vm.ToString(v).String())
	_, isString := v.(*vm.String)
	assert.True(t, isString)

	v, err = inst.Invoke(cx, "run")
	require.NoError(t, err)
	assert.Equal(t, vm.Undefined, v)

	v, err = inst.Invoke(cx, "priority")
	require.NoError(t, err)
	assert.Equal(t, vm.Int(7), v)
}

func TestBaseImplementation(t *testing.T) {
	cx := enter(t)
	task, _, _ := layered()
	var calls []string
	base := map[string]adapter.MethodFunc{
		"run": func(cx *vm.Context, self *adapter.Instance, args []vm.Value) (vm.Value, error) {
			calls = append(calls, "base run")
			return vm.Undefined, nil
		},
		"compute": func(cx *vm.Context, self *adapter.Instance, args []vm.Value) (vm.Value, error) {
			calls = append(calls, "base compute")
			return vm.Str("base"), nil
		},
	}
	inst, err := adapter.New(cx, task, map[string]*vm.Object{
		"compute": fn(t, cx, "function () { return 'script'; }"),
	}, base)
	require.NoError(t, err)

	v, err := inst.Invoke(cx, "compute", vm.Int(0), vm.Str(""))
	require.NoError(t, err)
	assert.Equal(t, "script", vm.ToString(v).String())
	_, err = inst.Invoke(cx, "run")
	require.NoError(t, err)
	assert.Equal(t, []string{"base run"}, calls)
}

func TestNewReportsAllProblems(t *testing.T) {
	cx := enter(t)
	task, _, _ := layered()
	notFn, err := cx.EvaluateString("({})", "adapter.js")
	require.NoError(t, err)

	_, err = adapter.New(cx, task, map[string]*vm.Object{
		"compte":  fn(t, cx, "function () {}"),
		"run":     notFn.(*vm.Object),
		"zzzzzzz": fn(t, cx, "function () {}"),
	}, nil)
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 4)
	msgs := make([]string, len(merr.Errors))
	for i, e := range merr.Errors {
		msgs[i] = e.Error()
	}
	assert.Equal(t, `Task has no method "compte" (did you mean "compute"?)`, msgs[0])
	assert.Equal(t, "Task.run: value is not a function", msgs[1])
	assert.Equal(t, `Task has no method "zzzzzzz"`, msgs[2])
	assert.Equal(t, "missing implementation of abstract method Computer.compute(int, String) String", msgs[3])
}

func TestScriptConstructsAdapter(t *testing.T) {
	task, _, _ := layered()
	reg := adapter.NewRegistry()
	require.NoError(t, reg.Register(task, nil))
	assert.Error(t, reg.Register(task, nil))

	fy := vm.NewFactory()
	fy.Compiler = compiler.Compiler{}
	reg.Install(fy)
	cx, exit := fy.Enter()
	defer exit()

	v, err := cx.EvaluateString(`
		var a = new Adapter("Task", {
			compute: function (n, s) { return s + ":" + n; },
			run: function () {}
		});
		a.compute(3, "n") + "," + a.priority() + "," + Object.keys(a).length`, "script.js")
	require.NoError(t, err)
	assert.Equal(t, "n:3,5,4", vm.ToString(v).String())

	obj, err := cx.EvaluateString("a", "script.js")
	require.NoError(t, err)
	inst, ok := adapter.FromObject(obj.(*vm.Object))
	require.True(t, ok)
	assert.Equal(t, "Task", inst.Type().Name)
	assert.Equal(t, vm.KindAdapter, inst.Object().Kind())

	_, err = cx.EvaluateString(`new Adapter("Task", {run: function () {}})`, "script.js")
	var ex *vm.Exception
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, "TypeError", ex.Name())
	assert.True(t, strings.Contains(ex.Message(), "missing implementation of abstract method Computer.compute"))

	safe := fy.NewContext()
	exitSafe := safe.Enter()
	defer exitSafe()
	scope, err := safe.InitStandardObjects(vm.InitOptions{Safe: true})
	require.NoError(t, err)
	e, err := safe.CompileString("typeof Adapter", "safe.js")
	require.NoError(t, err)
	v, err = safe.Exec(e, scope)
	require.NoError(t, err)
	assert.Equal(t, "undefined", vm.ToString(v).String())
}
