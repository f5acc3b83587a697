package vm

import (
	"strings"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Object constructor and Object.prototype
// ---------------------------------------------------------------------------

func initObjectBuiltins(r *Realm) {
	proto := r.ObjectPrototype
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if IsNullish(v) {
			return NewObject(cx.currentRealm().ObjectPrototype, "Object"), nil
		}
		return cx.ToObject(v)
	}
	ctor := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		return call(cx, Undefined, args)
	}
	c := constructor(r, "Object", 1, call, ctor, proto)

	method(r, c, "getPrototypeOf", 1, objectGetPrototypeOf)
	method(r, c, "setPrototypeOf", 2, objectSetPrototypeOf)
	method(r, c, "create", 2, objectCreate)
	method(r, c, "defineProperty", 3, objectDefineProperty)
	method(r, c, "defineProperties", 2, objectDefineProperties)
	method(r, c, "getOwnPropertyDescriptor", 2, objectGetOwnPropertyDescriptor)
	method(r, c, "getOwnPropertyNames", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		return objectKeyList(cx, args, false)
	})
	method(r, c, "keys", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		return objectKeyList(cx, args, true)
	})
	method(r, c, "freeze", 1, objectIntegrity((*Object).Freeze))
	method(r, c, "seal", 1, objectIntegrity(func(o *Object) {
		for _, k := range o.OwnKeys() {
			o.defineOwn(k, PropertyDescriptor{has: hasConfigurable})
		}
		o.PreventExtensions()
	}))
	method(r, c, "preventExtensions", 1, objectIntegrity((*Object).PreventExtensions))
	method(r, c, "isFrozen", 1, objectTest((*Object).IsFrozen, true))
	method(r, c, "isSealed", 1, objectTest(func(o *Object) bool {
		if o.extensible {
			return false
		}
		for _, k := range o.OwnKeys() {
			if p, _ := o.getOwn(k); p.Configurable() {
				return false
			}
		}
		return true
	}, true))
	method(r, c, "isExtensible", 1, objectTest((*Object).IsExtensible, false))

	method(r, proto, "hasOwnProperty", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		key, err := cx.ToPropertyKey(arg(args, 0))
		if err != nil {
			return nil, err
		}
		o, err := cx.thisObject(this, "Object.prototype.hasOwnProperty")
		if err != nil {
			return nil, err
		}
		return BoolValue(o.HasOwnProperty(key)), nil
	})
	method(r, proto, "propertyIsEnumerable", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		key, err := cx.ToPropertyKey(arg(args, 0))
		if err != nil {
			return nil, err
		}
		o, err := cx.thisObject(this, "Object.prototype.propertyIsEnumerable")
		if err != nil {
			return nil, err
		}
		p, ok := o.getOwn(key)
		return BoolValue(ok && p.Enumerable()), nil
	})
	method(r, proto, "isPrototypeOf", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		v, ok := arg(args, 0).(*Object)
		if !ok {
			return False, nil
		}
		o, err := cx.thisObject(this, "Object.prototype.isPrototypeOf")
		if err != nil {
			return nil, err
		}
		for p := v.proto; p != nil; p = p.proto {
			if p == o {
				return True, nil
			}
		}
		return False, nil
	})
	method(r, proto, "toString", 0, objectToString)
	method(r, proto, "toLocaleString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		o, err := cx.thisObject(this, "Object.prototype.toLocaleString")
		if err != nil {
			return nil, err
		}
		fv, err := o.Get(cx, "toString")
		if err != nil {
			return nil, err
		}
		return cx.callValue(fv, this, nil, "toString")
	})
	method(r, proto, "valueOf", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return cx.thisObject(this, "Object.prototype.valueOf")
	})
	method(r, proto, "toSource", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		s, err := cx.toSource(this, make(map[*Object]bool))
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	})
	method(r, proto, "__defineGetter__", 2, objectDefineAccessor(false))
	method(r, proto, "__defineSetter__", 2, objectDefineAccessor(true))
}

func objectToString(cx *Context, this Value, args []Value) (Value, error) {
	switch this.(type) {
	case undefinedValue:
		return NewString("[object Undefined]"), nil
	case nullValue:
		return NewString("[object Null]"), nil
	}
	if cx.HasFeature(FeatureToStringAsSource) {
		s, err := cx.toSource(this, make(map[*Object]bool))
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	}
	o, err := cx.ToObject(this)
	if err != nil {
		return nil, err
	}
	return NewString("[object " + o.class + "]"), nil
}

// requireObject returns the first argument as an object or raises a
// TypeError naming fn.
func (cx *Context) requireObject(v Value, fn string) (*Object, error) {
	o, ok := v.(*Object)
	if !ok {
		return nil, cx.newError(ErrorType, "%s is not an object (in %s)", ToDisplay(v), fn)
	}
	return o, nil
}

func objectGetPrototypeOf(cx *Context, this Value, args []Value) (Value, error) {
	o, err := cx.ToObject(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if o.proto == nil {
		return Null, nil
	}
	return o.proto, nil
}

func objectSetPrototypeOf(cx *Context, this Value, args []Value) (Value, error) {
	v := arg(args, 0)
	var proto *Object
	switch p := arg(args, 1).(type) {
	case *Object:
		proto = p
	case nullValue:
	default:
		return nil, cx.newError(ErrorType, "Object prototype may only be an Object or null: %s", ToDisplay(p))
	}
	o, ok := v.(*Object)
	if !ok {
		if IsNullish(v) {
			return nil, cx.newError(ErrorType, "Object.setPrototypeOf called on null or undefined")
		}
		return v, nil
	}
	if !o.SetPrototype(proto) {
		return nil, cx.newError(ErrorType, "Cyclic __proto__ value or object is not extensible")
	}
	return o, nil
}

func objectCreate(cx *Context, this Value, args []Value) (Value, error) {
	var proto *Object
	switch p := arg(args, 0).(type) {
	case *Object:
		proto = p
	case nullValue:
	default:
		return nil, cx.newError(ErrorType, "Object prototype may only be an Object or null: %s", ToDisplay(p))
	}
	o := NewObject(proto, "Object")
	if props := arg(args, 1); !IsUndefined(props) {
		if err := cx.defineProperties(o, props); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func objectDefineProperty(cx *Context, this Value, args []Value) (Value, error) {
	o, err := cx.requireObject(arg(args, 0), "Object.defineProperty")
	if err != nil {
		return nil, err
	}
	key, err := cx.ToPropertyKey(arg(args, 1))
	if err != nil {
		return nil, err
	}
	d, err := cx.toDescriptor(arg(args, 2))
	if err != nil {
		return nil, err
	}
	if !o.DefineOwnProperty(key, d) {
		return nil, cx.newError(ErrorType, "Cannot redefine property: %s", key)
	}
	return o, nil
}

func objectDefineProperties(cx *Context, this Value, args []Value) (Value, error) {
	o, err := cx.requireObject(arg(args, 0), "Object.defineProperties")
	if err != nil {
		return nil, err
	}
	if err := cx.defineProperties(o, arg(args, 1)); err != nil {
		return nil, err
	}
	return o, nil
}

func (cx *Context) defineProperties(o *Object, v Value) error {
	props, err := cx.ToObject(v)
	if err != nil {
		return err
	}
	type pending struct {
		key string
		d   PropertyDescriptor
	}
	var all []pending
	for _, k := range props.OwnKeys() {
		p, _ := props.getOwn(k)
		if !p.Enumerable() {
			continue
		}
		dv, err := props.Get(cx, k)
		if err != nil {
			return err
		}
		d, err := cx.toDescriptor(dv)
		if err != nil {
			return err
		}
		all = append(all, pending{k, d})
	}
	for _, p := range all {
		if !o.DefineOwnProperty(p.key, p.d) {
			return cx.newError(ErrorType, "Cannot redefine property: %s", p.key)
		}
	}
	return nil
}

func objectGetOwnPropertyDescriptor(cx *Context, this Value, args []Value) (Value, error) {
	o, err := cx.ToObject(arg(args, 0))
	if err != nil {
		return nil, err
	}
	key, err := cx.ToPropertyKey(arg(args, 1))
	if err != nil {
		return nil, err
	}
	p, ok := o.getOwn(key)
	if !ok {
		return Undefined, nil
	}
	return cx.fromProperty(p), nil
}

func objectKeyList(cx *Context, args []Value, enumerableOnly bool) (Value, error) {
	o, err := cx.ToObject(arg(args, 0))
	if err != nil {
		return nil, err
	}
	var keys []Value
	for _, k := range o.OwnKeys() {
		if enumerableOnly {
			if p, _ := o.getOwn(k); !p.Enumerable() {
				continue
			}
		}
		keys = append(keys, NewString(k))
	}
	return NewArray(cx.currentRealm().ArrayPrototype, keys), nil
}

func objectIntegrity(apply func(*Object)) NativeFunc {
	return func(cx *Context, this Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if o, ok := v.(*Object); ok {
			apply(o)
		}
		return v, nil
	}
}

// objectTest wraps a predicate; primitives answer primitiveResult.
func objectTest(pred func(*Object) bool, primitiveResult bool) NativeFunc {
	return func(cx *Context, this Value, args []Value) (Value, error) {
		if o, ok := arg(args, 0).(*Object); ok {
			return BoolValue(pred(o)), nil
		}
		return BoolValue(primitiveResult), nil
	}
}

func objectDefineAccessor(setter bool) NativeFunc {
	return func(cx *Context, this Value, args []Value) (Value, error) {
		o, err := cx.thisObject(this, "Object.prototype.__defineGetter__")
		if err != nil {
			return nil, err
		}
		key, err := cx.ToPropertyKey(arg(args, 0))
		if err != nil {
			return nil, err
		}
		fn, ok := arg(args, 1).(*Object)
		if !ok || fn.fn == nil {
			return nil, cx.notFunction(arg(args, 1), "")
		}
		d := PropertyDescriptor{Enumerable: true, Configurable: true, has: hasEnumerable | hasConfigurable}
		if setter {
			d.Set, d.has = fn, d.has|hasSet
		} else {
			d.Get, d.has = fn, d.has|hasGet
		}
		if !o.DefineOwnProperty(key, d) {
			return nil, cx.newError(ErrorType, "Cannot redefine property: %s", key)
		}
		return Undefined, nil
	}
}

// ---------------------------------------------------------------------------
// Property descriptor objects
// ---------------------------------------------------------------------------

// toDescriptor converts a descriptor object.
func (cx *Context) toDescriptor(v Value) (PropertyDescriptor, error) {
	var d PropertyDescriptor
	o, ok := v.(*Object)
	if !ok {
		return d, cx.newError(ErrorType, "Property description must be an object: %s", ToDisplay(v))
	}
	field := func(name string) (Value, bool, error) {
		if !o.HasProperty(name) {
			return nil, false, nil
		}
		fv, err := o.Get(cx, name)
		return fv, true, err
	}
	accessor := func(name string) (*Object, bool, error) {
		fv, ok, err := field(name)
		if err != nil || !ok || IsUndefined(fv) {
			return nil, ok, err
		}
		fn, isFn := fv.(*Object)
		if !isFn || fn.fn == nil {
			return nil, false, cx.newError(ErrorType, "%s is not a function", ToDisplay(fv))
		}
		return fn, true, nil
	}

	if fv, ok, err := field("enumerable"); err != nil {
		return d, err
	} else if ok {
		d.Enumerable, d.has = ToBoolean(fv), d.has|hasEnumerable
	}
	if fv, ok, err := field("configurable"); err != nil {
		return d, err
	} else if ok {
		d.Configurable, d.has = ToBoolean(fv), d.has|hasConfigurable
	}
	if fv, ok, err := field("value"); err != nil {
		return d, err
	} else if ok {
		d.Value, d.has = fv, d.has|hasValue
	}
	if fv, ok, err := field("writable"); err != nil {
		return d, err
	} else if ok {
		d.Writable, d.has = ToBoolean(fv), d.has|hasWritable
	}
	if fn, ok, err := accessor("get"); err != nil {
		return d, err
	} else if ok {
		d.Get, d.has = fn, d.has|hasGet
	}
	if fn, ok, err := accessor("set"); err != nil {
		return d, err
	} else if ok {
		d.Set, d.has = fn, d.has|hasSet
	}
	if d.isAccessor() && d.isData() {
		return d, cx.newError(ErrorType, "Invalid property. A property cannot both have accessors and be writable or have a value")
	}
	return d, nil
}

// fromProperty creates a descriptor object for p.
func (cx *Context) fromProperty(p Property) *Object {
	o := NewObject(cx.currentRealm().ObjectPrototype, "Object")
	if p.IsAccessor() {
		o.addOwn("get", functionOrUndefined(p.Getter))
		o.addOwn("set", functionOrUndefined(p.Setter))
	} else {
		o.addOwn("value", p.Value)
		o.addOwn("writable", BoolValue(p.Writable()))
	}
	o.addOwn("enumerable", BoolValue(p.Enumerable()))
	o.addOwn("configurable", BoolValue(p.Configurable()))
	return o
}

func functionOrUndefined(f *Object) Value {
	if f == nil {
		return Undefined
	}
	return f
}

// ---------------------------------------------------------------------------
// toSource
// ---------------------------------------------------------------------------

// toSource renders v as source text that evaluates to an equal value.
// Cycles render as empty literals.
func (cx *Context) toSource(v Value, seen map[*Object]bool) (string, error) {
	switch v := v.(type) {
	case *String:
		return ast.Quote(v.String()), nil
	case undefinedValue:
		return "(void 0)", nil
	case *Object:
		return cx.objectSource(v, seen)
	}
	return ToString(v).String(), nil
}

func (cx *Context) objectSource(o *Object, seen map[*Object]bool) (string, error) {
	switch {
	case o.fn != nil:
		return functionSource(o), nil
	case o.kind == KindPrimitive:
		inner, err := cx.toSource(o.prim, seen)
		if err != nil {
			return "", err
		}
		return "(new " + o.class + "(" + inner + "))", nil
	case o.kind == KindRegExp:
		return ToString(o).String(), nil
	}
	if seen[o] {
		if o.kind == KindArray {
			return "[]", nil
		}
		return "{}", nil
	}
	seen[o] = true
	defer delete(seen, o)

	var b strings.Builder
	if o.kind == KindArray {
		b.WriteByte('[')
		n := o.arrayLength()
		for i := uint32(0); i < n; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			p, ok := o.getIndex(i)
			if !ok {
				if i == n-1 {
					b.WriteByte(',')
				}
				continue
			}
			s, err := cx.toSource(p.Value, seen)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		b.WriteByte(']')
		return b.String(), nil
	}

	b.WriteString("({")
	first := true
	for _, k := range o.OwnKeys() {
		p, _ := o.getOwn(k)
		if !p.Enumerable() {
			continue
		}
		v, err := o.Get(cx, k)
		if err != nil {
			return "", err
		}
		s, err := cx.toSource(v, seen)
		if err != nil {
			return "", err
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		if ast.IsIdentifierName(k) {
			b.WriteString(k)
		} else if _, isIndex := arrayIndex(k); isIndex {
			b.WriteString(k)
		} else {
			b.WriteString(ast.Quote(k))
		}
		b.WriteByte(':')
		b.WriteString(s)
	}
	b.WriteString("})")
	return b.String(), nil
}
