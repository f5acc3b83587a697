package vm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Function constructor, Function.prototype and eval: built-ins that
// compile or invoke code
// ---------------------------------------------------------------------------

func initFunctionBuiltins(r *Realm) {
	proto := r.FunctionPrototype
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		return cx.functionFromSource(args)
	}
	ctor := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		return cx.functionFromSource(args)
	}
	constructor(r, "Function", 1, call, ctor, proto)

	method(r, proto, "call", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, err := cx.thisFunction(this, "call")
		if err != nil {
			return nil, err
		}
		var rest []Value
		if len(args) > 1 {
			rest = args[1:]
		}
		return cx.Call(fn, cx.callApplyThis(arg(args, 0)), rest)
	})
	method(r, proto, "apply", 2, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, err := cx.thisFunction(this, "apply")
		if err != nil {
			return nil, err
		}
		list, err := cx.argumentList(arg(args, 1))
		if err != nil {
			return nil, err
		}
		return cx.Call(fn, cx.callApplyThis(arg(args, 0)), list)
	})
	method(r, proto, "bind", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, err := cx.thisFunction(this, "bind")
		if err != nil {
			return nil, err
		}
		var rest []Value
		if len(args) > 1 {
			rest = args[1:]
		}
		return bindFunction(cx.currentRealm(), fn, cx.callApplyThis(arg(args, 0)), rest), nil
	})
	method(r, proto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, err := cx.thisFunction(this, "toString")
		if err != nil {
			return nil, err
		}
		return NewString(functionSource(fn)), nil
	})
	method(r, proto, "toSource", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, err := cx.thisFunction(this, "toSource")
		if err != nil {
			return nil, err
		}
		return NewString(functionSource(fn)), nil
	})
	r.builtins = append(r.builtins, proto)
}

func (cx *Context) thisFunction(this Value, name string) (*Object, error) {
	if fn, ok := this.(*Object); ok && fn.fn != nil {
		return fn, nil
	}
	return nil, cx.newError(ErrorType, "Function.prototype.%s called on incompatible object %s", name, ToDisplay(this))
}

// argumentList converts the array-like second argument of apply.
func (cx *Context) argumentList(v Value) ([]Value, error) {
	if IsNullish(v) {
		return nil, nil
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, cx.newError(ErrorType, "second argument to Function.prototype.apply must be an array")
	}
	if o.kind == KindArray && !o.arr.sparse {
		out := make([]Value, len(o.arr.dense))
		for i, e := range o.arr.dense {
			if isHole(e) {
				e = Undefined
			}
			out[i] = e
		}
		return out, nil
	}
	lv, err := o.Get(cx, "length")
	if err != nil {
		return nil, err
	}
	n, err := cx.toLength(lv)
	if err != nil {
		return nil, err
	}
	out := make([]Value, n)
	for i := range out {
		if out[i], err = o.Get(cx, indexKey(uint32(i))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// functionFromSource implements the Function constructor: every argument
// but the last is a parameter list, the last is the body.
func (cx *Context) functionFromSource(args []Value) (Value, error) {
	params := make([]string, 0, len(args))
	body := ""
	for i, a := range args {
		s, err := cx.ToString(a)
		if err != nil {
			return nil, err
		}
		if i == len(args)-1 {
			body = s.String()
		} else {
			params = append(params, s.String())
		}
	}
	src := "(function anonymous(" + strings.Join(params, ",") + "\n) {\n" + body + "\n})"
	e, err := cx.compile(src, CompileOptions{SourceName: "anonymous", Level: cx.optLevel})
	if err != nil {
		if ex, ok := cx.asException(err); ok {
			return nil, ex
		}
		return nil, err
	}
	g := cx.currentRealm().GlobalScope
	return e.run(cx, g, g.Global())
}

// ---------------------------------------------------------------------------
// Global functions
// ---------------------------------------------------------------------------

func initGlobalBuiltins(r *Realm) {
	g := r.Global
	g.SetOwn("NaN", NaN, 0)
	g.SetOwn("Infinity", posInf, 0)
	g.SetOwn("undefined", Undefined, 0)
	g.SetOwn("globalThis", g, FlagsHidden)

	r.Eval = method(r, g, "eval", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		return cx.indirectEval(args)
	})
	method(r, g, "isNaN", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := cx.ToNumber(arg(args, 0))
		if err != nil {
			return nil, err
		}
		return BoolValue(n != n), nil
	})
	method(r, g, "isFinite", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := cx.ToNumber(arg(args, 0))
		if err != nil {
			return nil, err
		}
		return BoolValue(isFinite(n)), nil
	})
	method(r, g, "parseInt", 2, globalParseInt)
	method(r, g, "parseFloat", 1, globalParseFloat)
}
