package vm

// ---------------------------------------------------------------------------
// Boolean constructor and Boolean.prototype
// ---------------------------------------------------------------------------

func initBooleanBuiltins(r *Realm) {
	proto := wrapperPrototype(r, "Boolean", False)
	r.BooleanPrototype = proto
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		return BoolValue(ToBoolean(arg(args, 0))), nil
	}
	ctor := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		b := BoolValue(ToBoolean(arg(args, 0)))
		if newTarget == nil {
			return b, nil
		}
		p, err := cx.protoFromTarget(newTarget, cx.currentRealm().BooleanPrototype)
		if err != nil {
			return nil, err
		}
		return newWrapper(p, "Boolean", b), nil
	}
	constructor(r, "Boolean", 1, call, ctor, proto)

	method(r, proto, "valueOf", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return cx.thisPrimitive(this, TypeBoolean, "Boolean.prototype.valueOf")
	})
	method(r, proto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		v, err := cx.thisPrimitive(this, TypeBoolean, "Boolean.prototype.toString")
		if err != nil {
			return nil, err
		}
		return ToString(v), nil
	})
	method(r, proto, "toSource", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		v, err := cx.thisPrimitive(this, TypeBoolean, "Boolean.prototype.toSource")
		if err != nil {
			return nil, err
		}
		return NewString("(new Boolean(" + ToString(v).String() + "))"), nil
	})
}
