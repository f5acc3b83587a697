package vm

import (
	"math"
)

// ---------------------------------------------------------------------------
// Value: script-visible values
// ---------------------------------------------------------------------------

// Value is a script value: Undefined, Null, Bool, Number, *String or
// *Object. The interface is closed; the unexported method keeps other
// types out, apart from a few internal markers that never escape to
// script code.
type Value interface {
	value()
}

// ValueType names the type of a value as seen by typeof and coercions.
type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeObject
)

func (t ValueType) String() string {
	switch t {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	}
	return "unknown"
}

type undefinedValue struct{}

func (undefinedValue) value() {}

type nullValue struct{}

func (nullValue) value() {}

// Bool is a boolean primitive.
type Bool bool

func (Bool) value() {}

// Number is a numeric primitive. All numbers are IEEE-754 doubles.
type Number float64

func (Number) value() {}

// holeValue marks an uninitialized lexical slot and a missing array element.
type holeValue struct{}

func (holeValue) value() {}

var (
	// Undefined is the undefined value.
	Undefined Value = undefinedValue{}
	// Null is the null value.
	Null Value = nullValue{}

	True  Value = Bool(true)
	False Value = Bool(false)

	hole Value = holeValue{}

	NaN = Number(math.NaN())
)

// TypeOf returns the type of v.
func TypeOf(v Value) ValueType {
	switch v.(type) {
	case undefinedValue:
		return TypeUndefined
	case nullValue:
		return TypeNull
	case Bool:
		return TypeBoolean
	case Number:
		return TypeNumber
	case *String:
		return TypeString
	case *Object:
		return TypeObject
	}
	return TypeUndefined
}

// IsUndefined reports whether v is undefined.
func IsUndefined(v Value) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// IsNull reports whether v is null.
func IsNull(v Value) bool {
	_, ok := v.(nullValue)
	return ok
}

// IsNullish reports whether v is null or undefined.
func IsNullish(v Value) bool {
	switch v.(type) {
	case undefinedValue, nullValue:
		return true
	}
	return false
}

func isHole(v Value) bool {
	_, ok := v.(holeValue)
	return ok
}

// IsCallable reports whether v is a function object.
func IsCallable(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.fn != nil
}

// BoolValue converts a Go bool.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// Str creates a flat string value from a generalized UTF-8 Go string.
func Str(s string) *String {
	return NewString(s)
}

// Int creates a number value from an integer.
func Int(i int) Number {
	return Number(float64(i))
}

// ---------------------------------------------------------------------------
// Go conversion helpers
// ---------------------------------------------------------------------------

// Export converts v to a plain Go value: nil, bool, float64, string,
// []interface{} for arrays, map[string]interface{} for other objects.
// Functions export as *Object.
func Export(v Value) interface{} {
	return export(v, make(map[*Object]bool))
}

func export(v Value, seen map[*Object]bool) interface{} {
	switch v := v.(type) {
	case undefinedValue, nullValue:
		return nil
	case Bool:
		return bool(v)
	case Number:
		return float64(v)
	case *String:
		return v.String()
	case *Object:
		if v.fn != nil || seen[v] {
			return v
		}
		seen[v] = true
		defer delete(seen, v)
		switch v.kind {
		case KindArray:
			n := v.arrayLength()
			out := make([]interface{}, n)
			for i := uint32(0); i < n; i++ {
				if el, ok := v.getIndex(i); ok && !el.IsAccessor() {
					out[i] = export(el.Value, seen)
				}
			}
			return out
		case KindPrimitive:
			return export(v.prim, seen)
		}
		out := make(map[string]interface{})
		for _, k := range v.OwnKeys() {
			if p, ok := v.GetOwnProperty(k); ok && p.Enumerable() && !p.IsAccessor() {
				out[k] = export(p.Value, seen)
			}
		}
		return out
	}
	return nil
}
