package vm

import (
	"math"
)

// ---------------------------------------------------------------------------
// Arrays: dense storage with a sparse fallback
// ---------------------------------------------------------------------------

// arrayData is the element storage of an array. Dense arrays keep their
// elements in a slice, with hole marking missing elements. When a write
// would leave the slice mostly empty, or an element needs non-default
// attributes, the elements move into the object's property table and the
// array stays sparse.
type arrayData struct {
	dense          []Value
	filled         int // non-hole elements in dense
	length         uint32
	sparse         bool
	lengthReadonly bool
}

const (
	// Below this size a dense array never goes sparse for lack of density.
	denseMinSparse = 64
	// A write this far past the end of the dense region goes sparse.
	maxDenseGap = 1 << 20
)

// NewArray creates an array holding vals.
func NewArray(proto *Object, vals []Value) *Object {
	o := NewObject(proto, "Array")
	o.kind = KindArray
	dense := make([]Value, len(vals))
	copy(dense, vals)
	filled := 0
	for _, v := range dense {
		if !isHole(v) {
			filled++
		}
	}
	o.arr = &arrayData{dense: dense, filled: filled, length: uint32(len(vals))}
	return o
}

// IsSparse reports whether an array stores its elements in the property
// table.
func (o *Object) IsSparse() bool {
	return o.arr != nil && o.arr.sparse
}

func (o *Object) arrayLength() uint32 {
	return o.arr.length
}

func (o *Object) lengthProperty() Property {
	flags := FlagWritable
	if o.arr.lengthReadonly {
		flags = 0
	}
	return DataProperty(Number(o.arr.length), flags)
}

func (o *Object) getIndex(i uint32) (Property, bool) {
	a := o.arr
	if a.sparse {
		return o.props.Get(indexKey(i))
	}
	if int64(i) < int64(len(a.dense)) && !isHole(a.dense[i]) {
		return DataProperty(a.dense[i], FlagsDefault), true
	}
	return Property{}, false
}

// setIndex stores element i with default attributes, growing length.
func (o *Object) setIndex(i uint32, v Value) {
	a := o.arr
	if !a.sparse {
		n := len(a.dense)
		switch {
		case int64(i) < int64(n):
			if isHole(a.dense[i]) {
				a.filled++
				o.touch()
			}
			a.dense[i] = v
		case o.shouldGoSparse(i):
			o.makeSparse()
		default:
			for len(a.dense) < int(i) {
				a.dense = append(a.dense, hole)
			}
			a.dense = append(a.dense, v)
			a.filled++
			o.touch()
		}
	}
	if a.sparse {
		if o.props.Put(indexKey(i), DataProperty(v, FlagsDefault)) {
			o.touch()
		}
	}
	if i >= a.length {
		a.length = i + 1
	}
}

func (o *Object) shouldGoSparse(i uint32) bool {
	a := o.arr
	if int64(i)-int64(len(a.dense)) >= maxDenseGap {
		return true
	}
	size := int64(i) + 1
	return size > denseMinSparse && int64(a.filled+1)*4 < size
}

// makeSparse moves the dense elements into the property table.
func (o *Object) makeSparse() {
	a := o.arr
	if a.sparse {
		return
	}
	for i, v := range a.dense {
		if !isHole(v) {
			o.props.Put(indexKey(uint32(i)), DataProperty(v, FlagsDefault))
		}
	}
	a.dense = nil
	a.filled = 0
	a.sparse = true
	o.touch()
}

func (o *Object) deleteIndex(i uint32) {
	a := o.arr
	if a.sparse {
		o.props.Delete(indexKey(i))
		o.touch()
		return
	}
	if int64(i) < int64(len(a.dense)) && !isHole(a.dense[i]) {
		a.dense[i] = hole
		a.filled--
		o.touch()
	}
}

func (o *Object) defineIndex(i uint32, d PropertyDescriptor) bool {
	a := o.arr
	if i >= a.length && a.lengthReadonly {
		return false
	}
	if !a.sparse {
		var np Property
		if p, ok := o.getIndex(i); ok {
			np = d.apply(p)
		} else {
			if !o.extensible {
				return false
			}
			np = d.toProperty()
		}
		if !np.IsAccessor() && np.Flags == FlagsDefault && (int64(i) < int64(len(a.dense)) || !o.shouldGoSparse(i)) {
			o.setIndex(i, np.Value)
			return true
		}
		o.makeSparse()
	}
	if !o.ordinaryDefine(indexKey(i), d) {
		return false
	}
	if i >= a.length {
		a.length = i + 1
	}
	return true
}

// toArrayLength validates a new length value.
func toArrayLength(v Value) (uint32, bool) {
	n := float64(ToNumber(v))
	if n < 0 || n > math.MaxUint32 || n != math.Trunc(n) {
		return 0, false
	}
	return uint32(n), true
}

func (o *Object) setLength(cx *Context, v Value) error {
	num, err := cx.ToNumber(v)
	if err != nil {
		return err
	}
	n, ok := toArrayLength(num)
	if !ok {
		return cx.newError(ErrorRange, "Inappropriate array length.")
	}
	o.truncate(n)
	return nil
}

// truncate sets length to n, deleting elements at or above n. A
// non-configurable element stops the deletion.
func (o *Object) truncate(n uint32) {
	a := o.arr
	if n >= a.length {
		a.length = n
		return
	}
	if !a.sparse {
		if int(n) < len(a.dense) {
			for _, v := range a.dense[n:] {
				if !isHole(v) {
					a.filled--
				}
			}
			clear(a.dense[n:])
			a.dense = a.dense[:n]
		}
		a.length = n
		o.touch()
		return
	}
	for _, k := range o.props.Keys() {
		idx, ok := arrayIndex(k)
		if !ok || idx < n {
			continue
		}
		if p, _ := o.props.Get(k); !p.Configurable() {
			if idx+1 > n {
				n = idx + 1
			}
			continue
		}
		o.props.Delete(k)
	}
	a.length = n
	o.touch()
}

func (o *Object) defineLength(d PropertyDescriptor) bool {
	a := o.arr
	if d.isAccessor() || (d.has&hasConfigurable != 0 && d.Configurable) || (d.has&hasEnumerable != 0 && d.Enumerable) {
		return false
	}
	if d.has&hasValue != 0 {
		n, ok := toArrayLength(d.Value)
		if !ok {
			return false
		}
		if a.lengthReadonly && n != a.length {
			return false
		}
		o.truncate(n)
	}
	if d.has&hasWritable != 0 {
		if d.Writable && a.lengthReadonly {
			return false
		}
		a.lengthReadonly = !d.Writable
	}
	return true
}

// arrayValues returns the elements of a dense array, or nil.
func (o *Object) arrayValues() []Value {
	if o.kind != KindArray || o.arr.sparse || int(o.arr.length) != len(o.arr.dense) {
		return nil
	}
	return o.arr.dense
}
