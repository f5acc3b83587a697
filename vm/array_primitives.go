package vm

import (
	"slices"
)

// ---------------------------------------------------------------------------
// Array constructor and Array.prototype
// ---------------------------------------------------------------------------

// Array methods are generic: they work on any object with a length
// property through Get and Set, and fail with a TypeError where a write
// is rejected.

func initArrayBuiltins(r *Realm) {
	proto := NewArray(r.ObjectPrototype, nil)
	r.ArrayPrototype = proto
	create := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		p, err := cx.protoFromTarget(newTarget, cx.currentRealm().ArrayPrototype)
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			if n, ok := args[0].(Number); ok {
				length := ToUint32(n)
				if float64(length) != float64(n) {
					return nil, cx.newError(ErrorRange, "Inappropriate array length.")
				}
				a := NewArray(p, nil)
				a.arr.length = length
				return a, nil
			}
		}
		return NewArray(p, args), nil
	}
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		return create(cx, args, nil)
	}
	c := constructor(r, "Array", 1, call, create, proto)
	method(r, c, "isArray", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		o, ok := arg(args, 0).(*Object)
		return BoolValue(ok && o.kind == KindArray), nil
	})

	arr := func(name string, length int, fn func(cx *Context, o *Object, n int64, args []Value) (Value, error)) {
		method(r, proto, name, length, func(cx *Context, this Value, args []Value) (Value, error) {
			o, err := cx.thisObject(this, "Array.prototype."+name)
			if err != nil {
				return nil, err
			}
			n, err := cx.lengthOf(o)
			if err != nil {
				return nil, err
			}
			return fn(cx, o, n, args)
		})
	}

	arr("push", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		for _, a := range args {
			if err := cx.putIndex(o, n, a); err != nil {
				return nil, err
			}
			n++
		}
		return Number(n), cx.putLength(o, n)
	})
	arr("pop", 0, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		if n == 0 {
			return Undefined, cx.putLength(o, 0)
		}
		v, err := cx.index(o, n-1)
		if err != nil {
			return nil, err
		}
		if err := cx.deleteIndex(o, n-1); err != nil {
			return nil, err
		}
		return v, cx.putLength(o, n-1)
	})
	arr("shift", 0, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		if n == 0 {
			return Undefined, cx.putLength(o, 0)
		}
		first, err := cx.index(o, 0)
		if err != nil {
			return nil, err
		}
		if err := cx.moveRange(o, 1, 0, n-1); err != nil {
			return nil, err
		}
		if err := cx.deleteIndex(o, n-1); err != nil {
			return nil, err
		}
		return first, cx.putLength(o, n-1)
	})
	arr("unshift", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		k := int64(len(args))
		if k > 0 {
			if err := cx.moveRange(o, 0, k, n); err != nil {
				return nil, err
			}
			for i, a := range args {
				if err := cx.putIndex(o, int64(i), a); err != nil {
					return nil, err
				}
			}
		}
		return Number(n + k), cx.putLength(o, n+k)
	})
	arr("slice", 2, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		start, err := cx.relativeIndex(arg(args, 0), n, 0)
		if err != nil {
			return nil, err
		}
		end, err := cx.relativeIndex(arg(args, 1), n, n)
		if err != nil {
			return nil, err
		}
		out := NewArray(cx.currentRealm().ArrayPrototype, nil)
		for i := start; i < end; i++ {
			if err := cx.copyIndex(o, i, out, i-start); err != nil {
				return nil, err
			}
		}
		return out, cx.putLength(out, max(end-start, 0))
	})
	arr("splice", 2, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		start, err := cx.relativeIndex(arg(args, 0), n, 0)
		if err != nil {
			return nil, err
		}
		count := n - start
		switch {
		case len(args) == 0:
			count = 0
		case len(args) >= 2:
			f, err := cx.integerArg(args[1])
			if err != nil {
				return nil, err
			}
			count = int64(min(max(f, 0), float64(n-start)))
		}
		removed := NewArray(cx.currentRealm().ArrayPrototype, nil)
		for i := int64(0); i < count; i++ {
			if err := cx.copyIndex(o, start+i, removed, i); err != nil {
				return nil, err
			}
		}
		if err := cx.putLength(removed, count); err != nil {
			return nil, err
		}
		var items []Value
		if len(args) > 2 {
			items = args[2:]
		}
		k := int64(len(items))
		if k != count {
			if err := cx.moveRange(o, start+count, start+k, n-start-count); err != nil {
				return nil, err
			}
			for i := n + k - count; i < n; i++ {
				if err := cx.deleteIndex(o, i); err != nil {
					return nil, err
				}
			}
		}
		for i, v := range items {
			if err := cx.putIndex(o, start+int64(i), v); err != nil {
				return nil, err
			}
		}
		return removed, cx.putLength(o, n-count+k)
	})
	arr("concat", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		out := NewArray(cx.currentRealm().ArrayPrototype, nil)
		var at int64
		for _, item := range append([]Value{o}, args...) {
			a, ok := item.(*Object)
			if !ok || a.kind != KindArray {
				if err := cx.putIndex(out, at, item); err != nil {
					return nil, err
				}
				at++
				continue
			}
			m := int64(a.arrayLength())
			for i := int64(0); i < m; i++ {
				if err := cx.copyIndex(a, i, out, at+i); err != nil {
					return nil, err
				}
			}
			at += m
		}
		return out, cx.putLength(out, at)
	})
	arr("join", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		sep := NewString(",")
		if sv := arg(args, 0); !IsUndefined(sv) {
			var err error
			if sep, err = cx.ToString(sv); err != nil {
				return nil, err
			}
		}
		return cx.join(o, n, sep)
	})
	arr("toString", 0, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		if cx.HasFeature(FeatureToStringAsSource) {
			s, err := cx.toSource(o, make(map[*Object]bool))
			if err != nil {
				return nil, err
			}
			return NewString(s), nil
		}
		return cx.join(o, n, NewString(","))
	})
	arr("toSource", 0, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		s, err := cx.toSource(o, make(map[*Object]bool))
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	})
	arr("reverse", 0, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		for lo, hi := int64(0), n-1; lo < hi; lo, hi = lo+1, hi-1 {
			lv, lok, err := cx.indexIfPresent(o, lo)
			if err != nil {
				return nil, err
			}
			hv, hok, err := cx.indexIfPresent(o, hi)
			if err != nil {
				return nil, err
			}
			if err := cx.putOrDelete(o, lo, hv, hok); err != nil {
				return nil, err
			}
			if err := cx.putOrDelete(o, hi, lv, lok); err != nil {
				return nil, err
			}
		}
		return o, nil
	})
	arr("indexOf", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		from, err := cx.relativeIndex(arg(args, 1), n, 0)
		if err != nil {
			return nil, err
		}
		for i := from; i < n; i++ {
			v, ok, err := cx.indexIfPresent(o, i)
			if err != nil {
				return nil, err
			}
			if ok && StrictEquals(v, arg(args, 0)) {
				return Number(i), nil
			}
		}
		return Int(-1), nil
	})
	arr("lastIndexOf", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		from := n - 1
		if len(args) > 1 {
			f, err := cx.integerArg(args[1])
			if err != nil {
				return nil, err
			}
			if f < 0 {
				f += float64(n)
			}
			from = int64(min(f, float64(n-1)))
		}
		for i := from; i >= 0; i-- {
			v, ok, err := cx.indexIfPresent(o, i)
			if err != nil {
				return nil, err
			}
			if ok && StrictEquals(v, arg(args, 0)) {
				return Number(i), nil
			}
		}
		return Int(-1), nil
	})
	arr("forEach", 1, iterate(nil, func(cx *Context, st *iterState) (bool, error) {
		return true, nil
	}))
	arr("some", 1, iterate(constResult(False), func(cx *Context, st *iterState) (bool, error) {
		if ToBoolean(st.result) {
			st.out = True
			return false, nil
		}
		return true, nil
	}))
	arr("every", 1, iterate(constResult(True), func(cx *Context, st *iterState) (bool, error) {
		if !ToBoolean(st.result) {
			st.out = False
			return false, nil
		}
		return true, nil
	}))
	arr("map", 1, iterate(newResultArray(true), func(cx *Context, st *iterState) (bool, error) {
		return true, cx.putIndex(st.out.(*Object), st.index, st.result)
	}))
	arr("filter", 1, iterate(newResultArray(false), func(cx *Context, st *iterState) (bool, error) {
		if ToBoolean(st.result) {
			arrayPush(st.out.(*Object), st.value)
		}
		return true, nil
	}))
	arr("reduce", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		return cx.reduce(o, n, args, false)
	})
	arr("reduceRight", 1, func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		return cx.reduce(o, n, args, true)
	})
	arr("sort", 1, arraySort)
}

// ---------------------------------------------------------------------------
// Generic element access
// ---------------------------------------------------------------------------

func (cx *Context) lengthOf(o *Object) (int64, error) {
	if o.kind == KindArray {
		return int64(o.arrayLength()), nil
	}
	lv, err := o.Get(cx, "length")
	if err != nil {
		return 0, err
	}
	return cx.toLength(lv)
}

func indexKey64(i int64) string {
	if i >= 0 && i < 1<<32-1 {
		return indexKey(uint32(i))
	}
	return ToString(Number(i)).String()
}

func (cx *Context) index(o *Object, i int64) (Value, error) {
	return o.Get(cx, indexKey64(i))
}

func (cx *Context) indexIfPresent(o *Object, i int64) (Value, bool, error) {
	k := indexKey64(i)
	if !o.HasProperty(k) {
		return nil, false, nil
	}
	v, err := o.Get(cx, k)
	return v, true, err
}

func (cx *Context) putIndex(o *Object, i int64, v Value) error {
	return o.Set(cx, indexKey64(i), v, o, true)
}

func (cx *Context) deleteIndex(o *Object, i int64) error {
	_, err := o.Delete(cx, indexKey64(i), true)
	return err
}

func (cx *Context) putOrDelete(o *Object, i int64, v Value, present bool) error {
	if present {
		return cx.putIndex(o, i, v)
	}
	return cx.deleteIndex(o, i)
}

func (cx *Context) putLength(o *Object, n int64) error {
	return o.Set(cx, "length", Number(n), o, true)
}

// copyIndex copies element i of from to element j of to, leaving a hole
// for missing elements.
func (cx *Context) copyIndex(from *Object, i int64, to *Object, j int64) error {
	v, ok, err := cx.indexIfPresent(from, i)
	if err != nil || !ok {
		return err
	}
	return cx.putIndex(to, j, v)
}

// moveRange moves count elements starting at from to start at to,
// preserving holes. Overlapping ranges are handled.
func (cx *Context) moveRange(o *Object, from, to, count int64) error {
	step := func(k int64) error {
		v, ok, err := cx.indexIfPresent(o, from+k)
		if err != nil {
			return err
		}
		return cx.putOrDelete(o, to+k, v, ok)
	}
	if from > to {
		for k := int64(0); k < count; k++ {
			if err := step(k); err != nil {
				return err
			}
		}
		return nil
	}
	for k := count - 1; k >= 0; k-- {
		if err := step(k); err != nil {
			return err
		}
	}
	return nil
}

// join renders elements separated by sep. An array already being joined
// further up the stack renders as the empty string.
func (cx *Context) join(o *Object, n int64, sep *String) (Value, error) {
	if cx.joining[o] {
		return emptyString, nil
	}
	if cx.joining == nil {
		cx.joining = make(map[*Object]bool)
	}
	cx.joining[o] = true
	defer delete(cx.joining, o)

	out := emptyString
	for i := int64(0); i < n; i++ {
		if i > 0 {
			out = Concat(out, sep)
		}
		v, err := cx.index(o, i)
		if err != nil {
			return nil, err
		}
		if IsNullish(v) {
			continue
		}
		s, err := cx.ToString(v)
		if err != nil {
			return nil, err
		}
		out = Concat(out, s)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Callback iteration
// ---------------------------------------------------------------------------

type iterState struct {
	index  int64
	value  Value
	result Value
	out    Value
}

func constResult(v Value) func(*Context, int64) Value {
	return func(*Context, int64) Value { return v }
}

// newResultArray creates the result of map (sized to the source) and
// filter (empty).
func newResultArray(sized bool) func(*Context, int64) Value {
	return func(cx *Context, n int64) Value {
		a := NewArray(cx.currentRealm().ArrayPrototype, nil)
		if sized {
			a.arr.length = uint32(n)
		}
		return a
	}
}

// iterate builds forEach-style methods: the callback runs for every
// present element, and step inspects its result. init supplies the
// initial result; nil means undefined.
func iterate(init func(*Context, int64) Value, step func(cx *Context, st *iterState) (bool, error)) func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
	return func(cx *Context, o *Object, n int64, args []Value) (Value, error) {
		fn, ok := arg(args, 0).(*Object)
		if !ok || fn.fn == nil {
			return nil, cx.notFunction(arg(args, 0), "")
		}
		this := arg(args, 1)
		st := &iterState{out: Undefined}
		if init != nil {
			st.out = init(cx, n)
		}
		for i := int64(0); i < n; i++ {
			v, present, err := cx.indexIfPresent(o, i)
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			st.index, st.value = i, v
			if st.result, err = cx.Call(fn, this, []Value{v, Number(i), o}); err != nil {
				return nil, err
			}
			more, err := step(cx, st)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
		}
		return st.out, nil
	}
}

func (cx *Context) reduce(o *Object, n int64, args []Value, right bool) (Value, error) {
	fn, ok := arg(args, 0).(*Object)
	if !ok || fn.fn == nil {
		return nil, cx.notFunction(arg(args, 0), "")
	}
	i, end, step := int64(0), n, int64(1)
	if right {
		i, end, step = n-1, -1, -1
	}
	var acc Value
	if len(args) > 1 {
		acc = args[1]
	} else {
		for ; i != end; i += step {
			v, present, err := cx.indexIfPresent(o, i)
			if err != nil {
				return nil, err
			}
			if present {
				acc = v
				i += step
				break
			}
		}
		if acc == nil {
			return nil, cx.newError(ErrorType, "Reduce of empty array with no initial value")
		}
	}
	for ; i != end; i += step {
		v, present, err := cx.indexIfPresent(o, i)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		if acc, err = cx.Call(fn, Undefined, []Value{acc, v, Number(i), o}); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// ---------------------------------------------------------------------------
// sort
// ---------------------------------------------------------------------------

// arraySort sorts present elements; undefined values go after all others
// and holes after those.
func arraySort(cx *Context, o *Object, n int64, args []Value) (Value, error) {
	cmp, _ := arg(args, 0).(*Object)
	if !IsUndefined(arg(args, 0)) && (cmp == nil || cmp.fn == nil) {
		return nil, cx.newError(ErrorType, "The comparison function must be either a function or undefined")
	}
	var vals []Value
	undefs := int64(0)
	for i := int64(0); i < n; i++ {
		v, present, err := cx.indexIfPresent(o, i)
		if err != nil {
			return nil, err
		}
		switch {
		case !present:
		case IsUndefined(v):
			undefs++
		default:
			vals = append(vals, v)
		}
	}
	var sortErr error
	slices.SortStableFunc(vals, func(a, b Value) int {
		if sortErr != nil {
			return 0
		}
		if cmp != nil {
			r, err := cx.Call(cmp, Undefined, []Value{a, b})
			if err != nil {
				sortErr = err
				return 0
			}
			n, err := cx.ToNumber(r)
			if err != nil {
				sortErr = err
				return 0
			}
			switch {
			case n < 0:
				return -1
			case n > 0:
				return 1
			}
			return 0
		}
		as, err := cx.ToString(a)
		if err != nil {
			sortErr = err
			return 0
		}
		bs, err := cx.ToString(b)
		if err != nil {
			sortErr = err
			return 0
		}
		return as.Compare(bs)
	})
	if sortErr != nil {
		return nil, sortErr
	}
	i := int64(0)
	for _, v := range vals {
		if err := cx.putIndex(o, i, v); err != nil {
			return nil, err
		}
		i++
	}
	for ; undefs > 0; undefs-- {
		if err := cx.putIndex(o, i, Undefined); err != nil {
			return nil, err
		}
		i++
	}
	for ; i < n; i++ {
		if err := cx.deleteIndex(o, i); err != nil {
			return nil, err
		}
	}
	return o, nil
}
