package vm

import (
	"math"
	"unicode/utf16"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Operators shared by the bytecode and syntax tree interpreters
// ---------------------------------------------------------------------------

// getValue reads key from any value. Primitives read through their
// wrapper prototype with the primitive itself as receiver.
func (cx *Context) getValue(v Value, key string) (Value, error) {
	switch o := v.(type) {
	case *Object:
		r, err := o.Get(cx, key)
		if err == nil && IsUndefined(r) && cx.HasFeature(FeatureStrictMode) && !o.HasProperty(key) {
			err = cx.warn("Reference to undefined property \"%s\"", key)
		}
		return r, err
	case *String:
		if key == "length" {
			return Int(o.Len()), nil
		}
		if idx, ok := arrayIndex(key); ok {
			if int(idx) < o.Len() {
				return o.Substring(int(idx), int(idx)+1), nil
			}
			return Undefined, nil
		}
	case undefinedValue, nullValue:
		return nil, cx.newError(ErrorType, "Cannot read property \"%s\" from %s", key, ToString(v))
	}
	proto := cx.primitiveProto(v)
	if proto == nil {
		return Undefined, nil
	}
	return proto.GetWithReceiver(cx, key, v)
}

func (cx *Context) primitiveProto(v Value) *Object {
	r := cx.currentRealm()
	switch v.(type) {
	case *String:
		return r.StringPrototype
	case Number:
		return r.NumberPrototype
	case Bool:
		return r.BooleanPrototype
	}
	return nil
}

// getElem reads v[k].
func (cx *Context) getElem(v, k Value) (Value, error) {
	if o, ok := v.(*Object); ok && o.kind == KindArray {
		if n, ok := k.(Number); ok {
			if i := uint32(n); float64(i) == float64(n) && i != math.MaxUint32 {
				if p, ok := o.getIndex(i); ok && !p.IsAccessor() {
					return p.Value, nil
				}
			}
		}
	}
	key, err := cx.ToPropertyKey(k)
	if err != nil {
		return nil, err
	}
	return cx.getValue(v, key)
}

// setValue assigns v.key = val.
func (cx *Context) setValue(v Value, key string, val Value, strict bool) error {
	switch o := v.(type) {
	case *Object:
		return o.Set(cx, key, val, o, strict)
	case undefinedValue, nullValue:
		return cx.newError(ErrorType, "Cannot set property \"%s\" of %s to \"%s\"", key, ToString(v), ToDisplayValue(val))
	}
	proto := cx.primitiveProto(v)
	return proto.Set(cx, key, val, v, strict)
}

// setElem assigns v[k] = val.
func (cx *Context) setElem(v, k, val Value, strict bool) error {
	if o, ok := v.(*Object); ok && o.kind == KindArray && !o.sealed && !o.arr.sparse {
		if n, ok := k.(Number); ok {
			if i := uint32(n); float64(i) == float64(n) && int64(i) < int64(len(o.arr.dense)) && !isHole(o.arr.dense[i]) {
				o.arr.dense[i] = val
				return nil
			}
		}
	}
	key, err := cx.ToPropertyKey(k)
	if err != nil {
		return err
	}
	return cx.setValue(v, key, val, strict)
}

// deleteValue implements delete v.key.
func (cx *Context) deleteValue(v Value, key string, strict bool) (bool, error) {
	switch o := v.(type) {
	case *Object:
		return o.Delete(cx, key, strict)
	case undefinedValue, nullValue:
		return false, cx.newError(ErrorType, "Cannot delete property \"%s\" of %s", key, ToString(v))
	case *String:
		if _, ok := cx.wrapPrimitive(o).getOwn(key); ok {
			if strict {
				return false, cx.newError(ErrorType, "property \"%s\" is non-configurable and can't be deleted", key)
			}
			return false, nil
		}
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Binary operators
// ---------------------------------------------------------------------------

// add implements +: string concatenation when either primitive operand
// is a string, numeric addition otherwise.
func (cx *Context) add(a, b Value) (Value, error) {
	if x, ok := a.(Number); ok {
		if y, ok := b.(Number); ok {
			return x + y, nil
		}
	}
	if x, ok := a.(*String); ok {
		if y, ok := b.(*String); ok {
			return Concat(x, y), nil
		}
	}
	pa, err := cx.toPrimitive(a, HintDefault)
	if err != nil {
		return nil, err
	}
	pb, err := cx.toPrimitive(b, HintDefault)
	if err != nil {
		return nil, err
	}
	_, sa := pa.(*String)
	_, sb := pb.(*String)
	if sa || sb {
		return Concat(ToString(pa), ToString(pb)), nil
	}
	return ToNumber(pa) + ToNumber(pb), nil
}

// binaryOp evaluates every non-logical binary operator.
func (cx *Context) binaryOp(op ast.Op, a, b Value) (Value, error) {
	switch op {
	case ast.OpAdd:
		return cx.add(a, b)
	case ast.OpEq, ast.OpNE:
		eq, err := cx.LooseEquals(a, b)
		if err != nil {
			return nil, err
		}
		return BoolValue(eq == (op == ast.OpEq)), nil
	case ast.OpStrictEq:
		return BoolValue(StrictEquals(a, b)), nil
	case ast.OpStrictNE:
		return BoolValue(!StrictEquals(a, b)), nil
	case ast.OpLT, ast.OpGT, ast.OpLE, ast.OpGE:
		return cx.relational(op, a, b)
	case ast.OpIn:
		ok, err := cx.hasIn(a, b)
		return BoolValue(ok), err
	case ast.OpInstanceOf:
		ok, err := cx.instanceOf(a, b)
		return BoolValue(ok), err
	}

	x, err := cx.ToNumber(a)
	if err != nil {
		return nil, err
	}
	y, err := cx.ToNumber(b)
	if err != nil {
		return nil, err
	}
	return numericOp(op, x, y), nil
}

// numericOp applies an arithmetic or bitwise operator to numbers.
func numericOp(op ast.Op, x, y Number) Number {
	switch op {
	case ast.OpAdd:
		return x + y
	case ast.OpSub:
		return x - y
	case ast.OpMul:
		return x * y
	case ast.OpDiv:
		return x / y
	case ast.OpMod:
		return Number(math.Mod(float64(x), float64(y)))
	case ast.OpExp:
		return power(x, y)
	case ast.OpShl:
		return Number(ToInt32(x) << (ToUint32(y) & 31))
	case ast.OpShr:
		return Number(ToInt32(x) >> (ToUint32(y) & 31))
	case ast.OpUShr:
		return Number(ToUint32(x) >> (ToUint32(y) & 31))
	case ast.OpBitAnd:
		return Number(ToInt32(x) & ToInt32(y))
	case ast.OpBitOr:
		return Number(ToInt32(x) | ToInt32(y))
	case ast.OpBitXor:
		return Number(ToInt32(x) ^ ToInt32(y))
	}
	return NaN
}

func power(x, y Number) Number {
	fx, fy := float64(x), float64(y)
	if math.IsNaN(fy) || (math.Abs(fx) == 1 && math.IsInf(fy, 0)) {
		return NaN
	}
	return Number(math.Pow(fx, fy))
}

// relational implements <, >, <= and >=. Comparisons with NaN are false.
func (cx *Context) relational(op ast.Op, a, b Value) (Value, error) {
	if x, ok := a.(Number); ok {
		if y, ok := b.(Number); ok {
			return BoolValue(compareNumbers(op, x, y)), nil
		}
	}
	pa, err := cx.toPrimitive(a, HintNumber)
	if err != nil {
		return nil, err
	}
	pb, err := cx.toPrimitive(b, HintNumber)
	if err != nil {
		return nil, err
	}
	if sa, ok := pa.(*String); ok {
		if sb, ok := pb.(*String); ok {
			c := sa.Compare(sb)
			switch op {
			case ast.OpLT:
				return BoolValue(c < 0), nil
			case ast.OpGT:
				return BoolValue(c > 0), nil
			case ast.OpLE:
				return BoolValue(c <= 0), nil
			}
			return BoolValue(c >= 0), nil
		}
	}
	return BoolValue(compareNumbers(op, ToNumber(pa), ToNumber(pb))), nil
}

func compareNumbers(op ast.Op, x, y Number) bool {
	switch op {
	case ast.OpLT:
		return x < y
	case ast.OpGT:
		return x > y
	case ast.OpLE:
		return x <= y
	}
	return x >= y
}

// hasIn implements key in obj.
func (cx *Context) hasIn(k, v Value) (bool, error) {
	o, ok := v.(*Object)
	if !ok {
		return false, cx.newError(ErrorType, "Cannot use 'in' operator to search for '%s' in %s", ToDisplayValue(k), ToDisplayValue(v))
	}
	key, err := cx.ToPropertyKey(k)
	if err != nil {
		return false, err
	}
	return o.HasProperty(key), nil
}

// instanceOf implements v instanceof f.
func (cx *Context) instanceOf(v, f Value) (bool, error) {
	fn, ok := f.(*Object)
	if !ok || fn.fn == nil {
		return false, cx.newError(ErrorType, "'instanceof' is not defined for %s.", ToDisplay(f))
	}
	for fn.fn.bound != nil {
		fn = fn.fn.bound.target
	}
	o, ok := v.(*Object)
	if !ok {
		return false, nil
	}
	pv, err := fn.Get(cx, "prototype")
	if err != nil {
		return false, err
	}
	proto, ok := pv.(*Object)
	if !ok {
		return false, cx.newError(ErrorType, "'prototype' property of %s is not an object.", ToDisplay(fn))
	}
	for p := o.proto; p != nil; p = p.proto {
		if p == proto {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Unary operators
// ---------------------------------------------------------------------------

func (cx *Context) negate(v Value) (Value, error) {
	n, err := cx.ToNumber(v)
	if err != nil {
		return nil, err
	}
	return -n, nil
}

func (cx *Context) bitNot(v Value) (Value, error) {
	n, err := cx.ToNumber(v)
	if err != nil {
		return nil, err
	}
	return Number(^ToInt32(n)), nil
}

var typeofStrings = map[string]*String{}

func init() {
	for _, s := range []string{"undefined", "object", "boolean", "number", "string", "function"} {
		typeofStrings[s] = NewString(s)
	}
}

// typeofValue returns the typeof result as a shared string.
func typeofValue(v Value) *String {
	return typeofStrings[TypeofString(v)]
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// iterValue is the operand-stack representation of a for-in or for-of
// iteration. It never escapes to script code.
type iterValue struct {
	obj  *Object
	keys []string // for-in: snapshot of enumerable keys
	str  []uint16 // for-of over a string
	pos  int
	of   bool
}

func (*iterValue) value() {}

// forInIterator snapshots the enumerable keys of v and its prototypes.
// Shadowed keys are reported once; null and undefined produce nothing.
func (cx *Context) forInIterator(v Value) (*iterValue, error) {
	it := &iterValue{}
	if IsNullish(v) {
		return it, nil
	}
	o, err := cx.ToObject(v)
	if err != nil {
		return nil, err
	}
	it.obj = o
	seen := make(map[string]bool)
	for obj := o; obj != nil; obj = obj.proto {
		for _, k := range obj.OwnKeys() {
			if seen[k] {
				continue
			}
			seen[k] = true
			if p, ok := obj.getOwn(k); ok && p.Enumerable() {
				it.keys = append(it.keys, k)
			}
		}
	}
	return it, nil
}

// forOfIterator iterates arrays, strings, arguments and array-likes.
func (cx *Context) forOfIterator(v Value) (*iterValue, error) {
	switch v := v.(type) {
	case *String:
		return &iterValue{of: true, str: v.Units()}, nil
	case *Object:
		if v.kind == KindPrimitive {
			if s, ok := v.prim.(*String); ok {
				return &iterValue{of: true, str: s.Units()}, nil
			}
		}
		if v.kind == KindArray || v.kind == KindArguments || v.HasProperty("length") {
			return &iterValue{of: true, obj: v}, nil
		}
	}
	return nil, cx.newError(ErrorType, "%s is not iterable", ToDisplay(v))
}

// next returns the next key or value; ok is false when exhausted.
func (cx *Context) iterNext(it *iterValue) (Value, bool, error) {
	if !it.of {
		for it.pos < len(it.keys) {
			k := it.keys[it.pos]
			it.pos++
			// Keys deleted during the iteration are skipped.
			if it.obj.HasProperty(k) {
				return NewString(k), true, nil
			}
		}
		return nil, false, nil
	}
	if it.str != nil || it.obj == nil {
		if it.pos >= len(it.str) {
			return nil, false, nil
		}
		c := it.str[it.pos]
		if utf16.IsSurrogate(rune(c)) && it.pos+1 < len(it.str) {
			pair := utf16.DecodeRune(rune(c), rune(it.str[it.pos+1]))
			if pair != 0xFFFD {
				s := stringFromUnits(it.str[it.pos : it.pos+2])
				it.pos += 2
				return s, true, nil
			}
		}
		it.pos++
		return stringFromUnits([]uint16{c}), true, nil
	}
	lv, err := it.obj.Get(cx, "length")
	if err != nil {
		return nil, false, err
	}
	n, err := cx.ToNumber(lv)
	if err != nil {
		return nil, false, err
	}
	if float64(it.pos) >= ToInteger(n) {
		return nil, false, nil
	}
	v, err := it.obj.Get(cx, indexKey(uint32(it.pos)))
	if err != nil {
		return nil, false, err
	}
	it.pos++
	return v, true, nil
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// initProperty defines a data property of an object literal. A
// non-computed __proto__ member sets the prototype instead.
func (cx *Context) initProperty(o *Object, key string, v Value) {
	if key == "__proto__" {
		switch p := v.(type) {
		case *Object:
			o.SetPrototype(p)
		case nullValue:
			o.SetPrototype(nil)
		}
		return
	}
	o.DefineOwnProperty(key, DataDescriptor(v, FlagsDefault))
}

// initAccessor adds a getter or setter member of an object literal.
func (cx *Context) initAccessor(o *Object, key string, fn *Object, setter bool) {
	d := PropertyDescriptor{Enumerable: true, Configurable: true, has: hasEnumerable | hasConfigurable}
	if setter {
		d.Set, d.has = fn, d.has|hasSet
	} else {
		d.Get, d.has = fn, d.has|hasGet
	}
	o.DefineOwnProperty(key, d)
}

// arrayPush appends an element of an array literal; a hole only extends
// the length.
func arrayPush(arr *Object, v Value) {
	n := arr.arr.length
	if isHole(v) {
		arr.arr.length = n + 1
		return
	}
	arr.setIndex(n, v)
}
