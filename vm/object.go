package vm

import (
	"sort"
	"strconv"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Object: the runtime object model
// ---------------------------------------------------------------------------

// Kind selects the access protocol of an object. The set is closed; every
// internal operation dispatches on it.
type Kind uint8

const (
	KindPlain Kind = iota
	KindArray
	KindFunction
	KindPrimitive // Boolean, Number and String wrappers
	KindArguments
	KindAdapter
	KindHost
	KindError
	KindRegExp
)

var kindNames = [...]string{"plain", "array", "function", "primitive", "arguments", "adapter", "host", "error", "regexp"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// HostObject supplies properties of host-backed objects (KindHost and
// KindAdapter). Properties stored on the object itself take precedence.
type HostObject interface {
	// HostGet returns the value of a host property.
	HostGet(key string) (Value, bool)
	// HostSet stores a host property. It returns false when the host does
	// not handle key, in which case an ordinary own property is created.
	HostSet(key string, v Value) bool
	// HostKeys lists host property names in a stable order.
	HostKeys() []string
}

// Object is a script object: an own property table, a prototype link,
// an extensibility flag and a class tag, plus kind-specific payload.
type Object struct {
	kind       Kind
	class      string
	proto      *Object
	props      PropTable
	extensible bool
	sealed     bool

	// shape changes whenever the set of own keys, their attributes or the
	// prototype changes. Property caches use it as their guard.
	shape uint64

	arr    *arrayData
	fn     *funcData
	prim   Value
	args   *argsData
	host   HostObject
	regexp *regexpData
	err    *errorData
}

func (*Object) value() {}

var nextShape atomic.Uint64

// NewObject creates an empty extensible object.
func NewObject(proto *Object, class string) *Object {
	return &Object{kind: KindPlain, class: class, proto: proto, extensible: true, shape: nextShape.Add(1)}
}

// NewHostObject creates an object whose properties come from h.
func NewHostObject(proto *Object, class string, kind Kind, h HostObject) *Object {
	o := NewObject(proto, class)
	o.kind = kind
	o.host = h
	return o
}

func (o *Object) touch() {
	o.shape = nextShape.Add(1)
}

// Kind returns the object's kind.
func (o *Object) Kind() Kind { return o.kind }

// Class returns the class tag used by Object.prototype.toString.
func (o *Object) Class() string { return o.class }

// Prototype returns the prototype, or nil.
func (o *Object) Prototype() *Object { return o.proto }

// Host returns the host payload of host and adapter objects.
func (o *Object) Host() HostObject { return o.host }

// PrimitiveValue returns the wrapped primitive of a wrapper object.
func (o *Object) PrimitiveValue() Value { return o.prim }

// SetPrototype changes the prototype, refusing cycles and changes to
// non-extensible objects.
func (o *Object) SetPrototype(proto *Object) bool {
	if o.proto == proto {
		return true
	}
	if !o.extensible || o.sealed {
		return false
	}
	for p := proto; p != nil; p = p.proto {
		if p == o {
			return false
		}
	}
	o.proto = proto
	o.touch()
	return true
}

// IsExtensible reports whether new properties may be added.
func (o *Object) IsExtensible() bool { return o.extensible }

// PreventExtensions makes the object non-extensible.
func (o *Object) PreventExtensions() {
	if o.kind == KindFunction {
		o.ensurePrototype()
	}
	o.extensible = false
	o.touch()
}

// Seal rejects any further mutation of the object.
func (o *Object) Seal() {
	o.PreventExtensions()
	o.sealed = true
}

// IsSealed reports whether Seal was called.
func (o *Object) IsSealed() bool { return o.sealed }

// Freeze makes every own property non-configurable and every data
// property non-writable, then prevents extensions.
func (o *Object) Freeze() {
	for _, k := range o.OwnKeys() {
		p, _ := o.getOwn(k)
		d := PropertyDescriptor{Configurable: false, has: hasConfigurable}
		if !p.IsAccessor() {
			d.Writable = false
			d.has |= hasWritable
		}
		o.defineOwn(k, d)
	}
	if o.arr != nil {
		o.arr.lengthReadonly = true
	}
	o.PreventExtensions()
}

// IsFrozen reports whether the object is non-extensible with only
// non-configurable, non-writable properties.
func (o *Object) IsFrozen() bool {
	if o.extensible {
		return false
	}
	for _, k := range o.OwnKeys() {
		p, _ := o.getOwn(k)
		if p.Configurable() || (!p.IsAccessor() && p.Writable()) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Own property protocol (kind dispatch)
// ---------------------------------------------------------------------------

// arrayIndex parses a canonical array index key.
func arrayIndex(key string) (uint32, bool) {
	n := len(key)
	if n == 0 || n > 10 || (key[0] == '0' && n > 1) {
		return 0, false
	}
	var v uint64
	for i := 0; i < n; i++ {
		c := key[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	if v >= 1<<32-1 {
		return 0, false
	}
	return uint32(v), true
}

func indexKey(i uint32) string {
	return strconv.FormatUint(uint64(i), 10)
}

// GetOwnProperty returns the own property stored under key.
func (o *Object) GetOwnProperty(key string) (Property, bool) {
	return o.getOwn(key)
}

func (o *Object) getOwn(key string) (Property, bool) {
	switch o.kind {
	case KindArray:
		if key == "length" {
			return o.lengthProperty(), true
		}
		if idx, ok := arrayIndex(key); ok {
			return o.getIndex(idx)
		}
	case KindPrimitive:
		if s, ok := o.prim.(*String); ok {
			if key == "length" {
				return DataProperty(Int(s.Len()), 0), true
			}
			if idx, ok := arrayIndex(key); ok && int(idx) < s.Len() {
				return DataProperty(s.Substring(int(idx), int(idx)+1), FlagEnumerable), true
			}
		}
	case KindArguments:
		if p, ok := o.props.Get(key); ok {
			if slot, mapped := o.args.mappedSlot(key); mapped {
				p.Value = o.args.scope.slots[slot]
			}
			return p, true
		}
		return Property{}, false
	case KindFunction:
		if key == "prototype" {
			o.ensurePrototype()
		}
	case KindHost, KindAdapter:
		if p, ok := o.props.Get(key); ok {
			return p, true
		}
		if v, ok := o.host.HostGet(key); ok {
			return DataProperty(v, FlagWritable|FlagEnumerable), true
		}
		return Property{}, false
	}
	return o.props.Get(key)
}

// DefineOwnProperty applies d to the own property key, reporting false
// when the change is not allowed.
func (o *Object) DefineOwnProperty(key string, d PropertyDescriptor) bool {
	if o.sealed {
		return false
	}
	return o.defineOwn(key, d)
}

func (o *Object) defineOwn(key string, d PropertyDescriptor) bool {
	switch o.kind {
	case KindArray:
		if key == "length" {
			return o.defineLength(d)
		}
		if idx, ok := arrayIndex(key); ok {
			return o.defineIndex(idx, d)
		}
	case KindPrimitive:
		if s, ok := o.prim.(*String); ok {
			idx, isIndex := arrayIndex(key)
			if key == "length" || (isIndex && int(idx) < s.Len()) {
				p, _ := o.getOwn(key)
				return d.compatible(p)
			}
		}
	case KindArguments:
		if slot, mapped := o.args.mappedSlot(key); mapped {
			if d.has&hasValue != 0 {
				o.args.scope.slots[slot] = d.Value
			}
			if d.isAccessor() || (d.has&hasWritable != 0 && !d.Writable) {
				if !d.isAccessor() && d.has&hasValue == 0 {
					// Capture the current value before the link is cut.
					if p := o.props.ref(key); p != nil {
						p.Value = o.args.scope.slots[slot]
					}
				}
				o.args.unmap(key)
			}
		}
	case KindFunction:
		if key == "prototype" {
			o.ensurePrototype()
		}
	}
	return o.ordinaryDefine(key, d)
}

func (o *Object) ordinaryDefine(key string, d PropertyDescriptor) bool {
	if p := o.props.ref(key); p != nil {
		if !d.compatible(*p) {
			return false
		}
		np := d.apply(*p)
		if np.Flags != p.Flags || np.Getter != p.Getter || np.Setter != p.Setter {
			o.touch()
		}
		*p = np
		return true
	}
	if !o.extensible {
		return false
	}
	o.props.Put(key, d.toProperty())
	o.touch()
	return true
}

// SetOwn stores a data property directly, bypassing attribute checks.
// It is used to populate built-in and host objects.
func (o *Object) SetOwn(key string, v Value, flags PropFlags) {
	if o.kind == KindArray {
		if idx, ok := arrayIndex(key); ok && flags == FlagsDefault {
			o.setIndex(idx, v)
			return
		}
	}
	o.props.Put(key, DataProperty(v, flags))
	o.touch()
}

// SetAccessor stores an accessor property directly.
func (o *Object) SetAccessor(key string, get, set *Object, flags PropFlags) {
	o.props.Put(key, AccessorProperty(get, set, flags))
	o.touch()
}

// writeOwn replaces the value of an existing writable own data property.
func (o *Object) writeOwn(cx *Context, key string, v Value) error {
	switch o.kind {
	case KindArray:
		if key == "length" {
			return o.setLength(cx, v)
		}
		if idx, ok := arrayIndex(key); ok {
			o.setIndex(idx, v)
			return nil
		}
	case KindArguments:
		if slot, mapped := o.args.mappedSlot(key); mapped {
			o.args.scope.slots[slot] = v
		}
	case KindFunction:
		if key == "prototype" {
			o.ensurePrototype()
		}
	}
	if p := o.props.ref(key); p != nil {
		p.Value = v
	}
	return nil
}

// addOwn creates a new own data property with default attributes.
func (o *Object) addOwn(key string, v Value) {
	if o.kind == KindArray {
		if idx, ok := arrayIndex(key); ok {
			o.setIndex(idx, v)
			return
		}
	}
	o.props.Put(key, DataProperty(v, FlagsDefault))
	o.touch()
}

// deleteOwn removes key, reporting false if it is non-configurable.
func (o *Object) deleteOwn(key string) bool {
	p, ok := o.getOwn(key)
	if !ok {
		return true
	}
	if !p.Configurable() {
		return false
	}
	switch o.kind {
	case KindArray:
		if idx, ok := arrayIndex(key); ok {
			o.deleteIndex(idx)
			return true
		}
	case KindArguments:
		o.args.unmap(key)
	}
	o.props.Delete(key)
	o.touch()
	return true
}

// OwnKeys returns the own property keys: array indices in ascending order,
// then other keys in insertion order.
func (o *Object) OwnKeys() []string {
	var indices []uint32
	var names []string
	collect := func(keys []string) {
		for _, k := range keys {
			if idx, ok := arrayIndex(k); ok {
				indices = append(indices, idx)
			} else {
				names = append(names, k)
			}
		}
	}
	switch o.kind {
	case KindArray:
		if !o.arr.sparse {
			for i, v := range o.arr.dense {
				if !isHole(v) {
					indices = append(indices, uint32(i))
				}
			}
		}
		names = append(names, "length")
	case KindPrimitive:
		if s, ok := o.prim.(*String); ok {
			for i := 0; i < s.Len(); i++ {
				indices = append(indices, uint32(i))
			}
			names = append(names, "length")
		}
	case KindFunction:
		o.ensurePrototype()
	case KindHost, KindAdapter:
		seen := make(map[string]bool)
		var own []string
		for _, k := range o.props.Keys() {
			seen[k] = true
			own = append(own, k)
		}
		for _, k := range o.host.HostKeys() {
			if !seen[k] {
				own = append(own, k)
			}
		}
		collect(own)
		return joinKeys(indices, names)
	}
	collect(o.props.Keys())
	return joinKeys(indices, names)
}

func joinKeys(indices []uint32, names []string) []string {
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	keys := make([]string, 0, len(indices)+len(names))
	for _, i := range indices {
		keys = append(keys, indexKey(i))
	}
	return append(keys, names...)
}

// ---------------------------------------------------------------------------
// Property access through the prototype chain
// ---------------------------------------------------------------------------

// HasProperty reports whether key is an own or inherited property.
func (o *Object) HasProperty(key string) bool {
	for obj := o; obj != nil; obj = obj.proto {
		if _, ok := obj.getOwn(key); ok {
			return true
		}
	}
	return false
}

// HasOwnProperty reports whether key is an own property.
func (o *Object) HasOwnProperty(key string) bool {
	_, ok := o.getOwn(key)
	return ok
}

// Get reads key with o as the receiver.
func (o *Object) Get(cx *Context, key string) (Value, error) {
	return o.GetWithReceiver(cx, key, o)
}

// GetWithReceiver reads key, walking the prototype chain. Getters run with
// receiver as this, wherever on the chain they were found.
func (o *Object) GetWithReceiver(cx *Context, key string, receiver Value) (Value, error) {
	if key == "__proto__" && cx.HasFeature(FeatureParentProtoProperties) {
		if o.proto == nil {
			return Null, nil
		}
		return o.proto, nil
	}
	for obj := o; obj != nil; obj = obj.proto {
		p, ok := obj.getOwn(key)
		if !ok {
			continue
		}
		if p.IsAccessor() {
			if p.Getter == nil {
				return Undefined, nil
			}
			return cx.Call(p.Getter, receiver, nil)
		}
		return p.Value, nil
	}
	return Undefined, nil
}

// Set assigns key. An inherited setter is invoked with receiver as this;
// an inherited writable data property is shadowed by a new own property
// on the receiver; an inherited read-only property blocks the
// assignment. Failures raise a TypeError in strict code and are ignored
// otherwise.
func (o *Object) Set(cx *Context, key string, v Value, receiver Value, strict bool) error {
	if key == "__proto__" && cx.HasFeature(FeatureParentProtoProperties) {
		return o.setProtoProperty(cx, v, strict)
	}
	for obj := o; obj != nil; obj = obj.proto {
		p, ok := obj.getOwn(key)
		if !ok {
			continue
		}
		if p.IsAccessor() {
			if p.Setter == nil {
				return cx.failSet(strict, "Cannot set property %s that has only a getter", key)
			}
			_, err := cx.Call(p.Setter, receiver, []Value{v})
			return err
		}
		if !p.Writable() {
			return cx.failSet(strict, "Cannot assign to read-only property \"%s\"", key)
		}
		break
	}
	recv, ok := receiver.(*Object)
	if !ok {
		return cx.failSet(strict, "Cannot set property \"%s\" on primitive %s", key, ToDisplay(receiver))
	}
	return recv.setOnReceiver(cx, key, v, strict)
}

func (o *Object) setOnReceiver(cx *Context, key string, v Value, strict bool) error {
	if o.sealed {
		return cx.newError(ErrorType, "Cannot modify a property of a sealed object: %s.", key)
	}
	if o.host != nil {
		if _, own := o.props.Get(key); !own && o.host.HostSet(key, v) {
			return nil
		}
	}
	if p, ok := o.getOwn(key); ok {
		if p.IsAccessor() || !p.Writable() {
			return cx.failSet(strict, "Cannot assign to read-only property \"%s\"", key)
		}
		return o.writeOwn(cx, key, v)
	}
	if !o.extensible {
		return cx.failSet(strict, "Cannot add property %s, object is not extensible", key)
	}
	if o.kind == KindArray && o.arr.lengthReadonly {
		if idx, ok := arrayIndex(key); ok && idx >= o.arr.length {
			return cx.failSet(strict, "Cannot add element %s, array length is read-only", key)
		}
	}
	o.addOwn(key, v)
	return nil
}

func (o *Object) setProtoProperty(cx *Context, v Value, strict bool) error {
	var proto *Object
	switch v := v.(type) {
	case *Object:
		proto = v
	case nullValue:
	default:
		return nil
	}
	if !o.SetPrototype(proto) {
		return cx.newError(ErrorType, "Cyclic __proto__ value or object is not extensible")
	}
	return nil
}

// Put assigns key on o in sloppy mode. It is a convenience for host code.
func (o *Object) Put(cx *Context, key string, v Value) error {
	return o.Set(cx, key, v, o, false)
}

// Delete removes an own property. It never touches the prototype chain.
// Deleting a non-configurable property fails: a TypeError in strict code,
// false otherwise.
func (o *Object) Delete(cx *Context, key string, strict bool) (bool, error) {
	if o.sealed {
		return false, cx.newError(ErrorType, "Cannot modify a property of a sealed object: %s.", key)
	}
	if o.deleteOwn(key) {
		return true, nil
	}
	if strict {
		return false, cx.newError(ErrorType, "property \"%s\" is non-configurable and can't be deleted", key)
	}
	return false, nil
}
