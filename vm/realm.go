package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Realms: the standard objects of one global scope
// ---------------------------------------------------------------------------

// Realm holds a global object, its scope and the intrinsic objects the
// engine needs to create values of built-in types.
type Realm struct {
	Global      *Object
	GlobalScope *Scope

	ObjectPrototype   *Object
	FunctionPrototype *Object
	ArrayPrototype    *Object
	StringPrototype   *Object
	NumberPrototype   *Object
	BooleanPrototype  *Object
	ErrorPrototype    *Object
	RegExpPrototype   *Object

	errorProtos [errorKindCount]*Object

	// Eval is the realm's eval function; calls to it by name are direct
	// eval calls.
	Eval *Object
	// ThrowTypeError guards callee of strict arguments objects.
	ThrowTypeError *Object

	builtins []*Object
}

// InitOptions selects variants of the standard objects.
type InitOptions struct {
	// Safe skips the host initializers registered on the factory.
	Safe bool
	// Sealed seals every built-in constructor and prototype.
	Sealed bool
}

// InitStandardObjects creates a fresh realm, installs it as the
// Context's current realm and returns its global scope.
func (cx *Context) InitStandardObjects(opts InitOptions) (*Scope, error) {
	r := &Realm{}
	r.ObjectPrototype = NewObject(nil, "Object")

	fp := NewObject(r.ObjectPrototype, "Function")
	fp.kind = KindFunction
	fp.fn = &funcData{
		native:    func(*Context, Value, []Value) (Value, error) { return Undefined, nil },
		protoDone: true,
		realm:     r,
	}
	fp.props.Put("length", DataProperty(Int(0), FlagConfigurable))
	fp.props.Put("name", DataProperty(NewString(""), FlagConfigurable))
	r.FunctionPrototype = fp

	global := NewObject(r.ObjectPrototype, "global")
	r.Global = global
	r.GlobalScope = NewGlobalScope(r, global)

	r.ThrowTypeError = NewNativeFunction(r, "", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return nil, cx.newError(ErrorType, "'caller', 'callee', and 'arguments' properties may not be accessed on strict mode functions")
	})
	r.ThrowTypeError.PreventExtensions()

	outer := cx.realm
	cx.realm = r
	initObjectBuiltins(r)
	initFunctionBuiltins(r)
	initArrayBuiltins(r)
	initStringBuiltins(r)
	initBooleanBuiltins(r)
	initNumberBuiltins(r)
	initMathBuiltins(r)
	initErrorBuiltins(r)
	initRegExpBuiltins(r)
	initGlobalBuiltins(r)

	if opts.Sealed {
		for _, o := range r.builtins {
			o.Seal()
		}
	}
	if !opts.Safe {
		cx.factory.mu.RLock()
		hosts := append([]HostInitializer(nil), cx.factory.hosts...)
		cx.factory.mu.RUnlock()
		for i, h := range hosts {
			if err := h(cx, global); err != nil {
				cx.realm = outer
				return nil, fmt.Errorf("host initializer %d: %w", i, err)
			}
		}
	}
	log.Debugf("standard objects initialized (safe=%t, sealed=%t)", opts.Safe, opts.Sealed)
	return r.GlobalScope, nil
}

// ---------------------------------------------------------------------------
// Helpers for defining built-ins
// ---------------------------------------------------------------------------

// method installs a non-enumerable native function on o.
func method(r *Realm, o *Object, name string, length int, fn NativeFunc) *Object {
	f := NewNativeFunction(r, name, length, fn)
	o.SetOwn(name, f, FlagsHidden)
	return f
}

// constructor creates a built-in constructor, binds it on the global
// object and registers both it and proto for sealing.
func constructor(r *Realm, name string, length int, call NativeFunc, ctor NativeCtor, proto *Object) *Object {
	c := NewNativeConstructor(r, name, length, call, ctor, proto)
	r.Global.SetOwn(name, c, FlagsHidden)
	r.builtins = append(r.builtins, c)
	if proto != nil {
		r.builtins = append(r.builtins, proto)
	}
	return c
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

// protoFromTarget returns the prototype property of newTarget, or def
// when it is not an object.
func (cx *Context) protoFromTarget(newTarget *Object, def *Object) (*Object, error) {
	if newTarget == nil {
		return def, nil
	}
	pv, err := newTarget.Get(cx, "prototype")
	if err != nil {
		return nil, err
	}
	if p, ok := pv.(*Object); ok {
		return p, nil
	}
	return def, nil
}

// thisObject converts the this value of a built-in method.
func (cx *Context) thisObject(this Value, name string) (*Object, error) {
	if IsNullish(this) {
		return nil, cx.newError(ErrorType, "%s called on null or undefined", name)
	}
	return cx.ToObject(this)
}

// thisPrimitive checks that this is a wrapper of the expected primitive type
// or the primitive itself.
func (cx *Context) thisPrimitive(this Value, t ValueType, name string) (Value, error) {
	if TypeOf(this) == t {
		return this, nil
	}
	if o, ok := this.(*Object); ok && o.kind == KindPrimitive && TypeOf(o.prim) == t {
		return o.prim, nil
	}
	return nil, cx.newError(ErrorType, "Method \"%s\" called on incompatible object.", name)
}

// toLength converts a length-like value to an integer in [0, 2^53-1].
func (cx *Context) toLength(v Value) (int64, error) {
	n, err := cx.ToNumber(v)
	if err != nil {
		return 0, err
	}
	f := ToInteger(n)
	if f <= 0 {
		return 0, nil
	}
	if f > 1<<53-1 {
		f = 1<<53 - 1
	}
	return int64(f), nil
}

// relativeIndex resolves a possibly negative index argument against
// length, clamping to [0, length].
func (cx *Context) relativeIndex(v Value, length int64, def int64) (int64, error) {
	if IsUndefined(v) {
		return def, nil
	}
	n, err := cx.ToNumber(v)
	if err != nil {
		return 0, err
	}
	f := ToInteger(n)
	if f < 0 {
		f += float64(length)
		if f < 0 {
			f = 0
		}
	} else if f > float64(length) {
		f = float64(length)
	}
	return int64(f), nil
}
