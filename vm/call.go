package vm

// ---------------------------------------------------------------------------
// Calls and construction
// ---------------------------------------------------------------------------

// DefaultMaxStackDepth bounds nested script calls when the factory does
// not set a limit.
const DefaultMaxStackDepth = 1000

// Call invokes fn with the given this value and arguments.
func (cx *Context) Call(fn *Object, this Value, args []Value) (Value, error) {
	f := fn.fn
	if f == nil {
		return nil, cx.newError(ErrorType, "%s is not a function.", ToDisplay(fn))
	}
	if f.bound != nil {
		return cx.Call(f.bound.target, f.bound.this, joinArgs(f.bound.args, args))
	}
	if err := cx.enterCall(); err != nil {
		return nil, err
	}
	defer cx.leaveCall()

	switch {
	case f.native != nil:
		return f.native(cx, this, args)
	case f.ctor != nil:
		return f.ctor(cx, args, nil)
	case f.code != nil:
		return cx.callCode(fn, cx.bindThis(f, this), args)
	case f.tree != nil:
		return cx.callTree(fn, cx.bindThis(f, this), args)
	}
	return Undefined, nil
}

// Construct invokes fn as a constructor. newTarget defaults to fn.
func (cx *Context) Construct(fn *Object, args []Value, newTarget *Object) (Value, error) {
	f := fn.fn
	if f == nil || !f.constructible {
		return nil, cx.newError(ErrorType, "%s is not a constructor.", ToDisplay(fn))
	}
	if f.bound != nil {
		if newTarget == nil || newTarget == fn {
			newTarget = f.bound.target
		}
		return cx.Construct(f.bound.target, joinArgs(f.bound.args, args), newTarget)
	}
	if newTarget == nil {
		newTarget = fn
	}
	if err := cx.enterCall(); err != nil {
		return nil, err
	}
	defer cx.leaveCall()

	if f.ctor != nil {
		return f.ctor(cx, args, newTarget)
	}
	pv, err := newTarget.Get(cx, "prototype")
	if err != nil {
		return nil, err
	}
	proto, ok := pv.(*Object)
	if !ok {
		proto = f.realm.ObjectPrototype
	}
	obj := NewObject(proto, "Object")
	var r Value
	if f.code != nil {
		r, err = cx.callCode(fn, obj, args)
	} else {
		r, err = cx.callTree(fn, obj, args)
	}
	if err != nil {
		return nil, err
	}
	if ro, ok := r.(*Object); ok {
		return ro, nil
	}
	return obj, nil
}

// callValue calls a value produced by script code. desc names the callee
// expression in the error raised for non-callable values.
func (cx *Context) callValue(fv Value, this Value, args []Value, desc string) (Value, error) {
	fn, ok := fv.(*Object)
	if !ok || fn.fn == nil {
		return nil, cx.notFunction(fv, desc)
	}
	return cx.Call(fn, this, args)
}

func (cx *Context) constructValue(fv Value, args []Value, desc string) (Value, error) {
	fn, ok := fv.(*Object)
	if !ok || fn.fn == nil || !fn.fn.constructible {
		if desc == "" {
			desc = ToDisplay(fv)
		}
		return nil, cx.newError(ErrorType, "%s is not a constructor.", desc)
	}
	return cx.Construct(fn, args, nil)
}

func (cx *Context) notFunction(v Value, desc string) error {
	if desc == "" {
		return cx.newError(ErrorType, "%s is not a function.", ToDisplay(v))
	}
	return cx.newError(ErrorType, "%s is not a function, it is %s.", desc, TypeofString(v))
}

func joinArgs(a, b []Value) []Value {
	if len(a) == 0 {
		return b
	}
	out := make([]Value, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

// enterCall enforces the recursion limit and polls for interrupts at the
// call boundary.
func (cx *Context) enterCall() error {
	limit := cx.MaxStackDepth
	if limit <= 0 {
		limit = DefaultMaxStackDepth
	}
	if cx.depth >= limit {
		return cx.newError(ErrorInternal, "too much recursion")
	}
	if cx.unwinding == 0 {
		if err := cx.poll(); err != nil {
			return err
		}
	}
	cx.depth++
	return nil
}

func (cx *Context) leaveCall() {
	cx.depth--
}

// bindThis computes the this value seen by a script function.
func (cx *Context) bindThis(f *funcData, this Value) Value {
	if f.arrow {
		return f.this
	}
	if IsNullish(this) {
		if !f.strict || cx.HasFeature(FeatureOldUndefNullThis) {
			return f.scope.Global()
		}
		return this
	}
	if !f.strict {
		if _, ok := this.(*Object); !ok {
			return cx.wrapPrimitive(this)
		}
	}
	return this
}

// callApplyThis converts the first argument of call and apply. Primitives
// are always wrapped; null and undefined select the global object only
// when FeatureOldUndefNullThis is set.
func (cx *Context) callApplyThis(v Value) Value {
	if IsNullish(v) {
		if cx.HasFeature(FeatureOldUndefNullThis) {
			return cx.currentRealm().Global
		}
		return v
	}
	if _, ok := v.(*Object); ok {
		return v
	}
	return cx.wrapPrimitive(v)
}
