package vm

// ---------------------------------------------------------------------------
// Error constructors
// ---------------------------------------------------------------------------

func initErrorBuiltins(r *Realm) {
	var base *Object
	for k := ErrorPlain; k < errorKindCount; k++ {
		kind := k
		name := kind.String()
		var proto *Object
		if kind == ErrorPlain {
			proto = NewObject(r.ObjectPrototype, "Error")
			r.ErrorPrototype = proto
			proto.SetOwn("message", NewString(""), FlagsHidden)
			method(r, proto, "toString", 0, errorToString)
			method(r, proto, "toSource", 0, func(cx *Context, this Value, args []Value) (Value, error) {
				o, err := cx.thisObject(this, "Error.prototype.toSource")
				if err != nil {
					return nil, err
				}
				name := dataString(o, "name", "Error")
				msg, err := cx.toSource(NewString(dataString(o, "message", "")), nil)
				if err != nil {
					return nil, err
				}
				return NewString("(new " + name + "(" + msg + "))"), nil
			})
		} else {
			proto = NewObject(r.ErrorPrototype, "Error")
		}
		proto.SetOwn("name", NewString(name), FlagsHidden)
		r.errorProtos[kind] = proto

		create := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
			p, err := cx.protoFromTarget(newTarget, cx.currentRealm().errorProtos[kind])
			if err != nil {
				return nil, err
			}
			msg := arg(args, 0)
			text := ""
			if !IsUndefined(msg) {
				s, err := cx.ToString(msg)
				if err != nil {
					return nil, err
				}
				text = s.String()
			}
			return cx.initError(NewObject(p, "Error"), kind, text, !IsUndefined(msg)), nil
		}
		call := func(cx *Context, this Value, args []Value) (Value, error) {
			return create(cx, args, nil)
		}
		c := constructor(r, name, 1, call, create, proto)
		if base == nil {
			base = c
		} else {
			c.proto = base
		}
	}
}

func errorToString(cx *Context, this Value, args []Value) (Value, error) {
	o, ok := this.(*Object)
	if !ok {
		return nil, cx.newError(ErrorType, "Error.prototype.toString called on incompatible object %s", ToDisplay(this))
	}
	nv, err := o.Get(cx, "name")
	if err != nil {
		return nil, err
	}
	name := NewString("Error")
	if !IsUndefined(nv) {
		if name, err = cx.ToString(nv); err != nil {
			return nil, err
		}
	}
	mv, err := o.Get(cx, "message")
	if err != nil {
		return nil, err
	}
	msg := emptyString
	if !IsUndefined(mv) {
		if msg, err = cx.ToString(mv); err != nil {
			return nil, err
		}
	}
	switch {
	case name.Len() == 0:
		return msg, nil
	case msg.Len() == 0:
		return name, nil
	}
	return Concat(Concat(name, NewString(": ")), msg), nil
}
