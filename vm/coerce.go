package vm

import (
	"math"
	"strconv"
	"strings"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Type conversions
// ---------------------------------------------------------------------------

// ToBoolean converts v to a boolean.
func ToBoolean(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return bool(v)
	case Number:
		return v != 0 && !math.IsNaN(float64(v))
	case *String:
		return v.Len() > 0
	case *Object:
		return true
	}
	return false
}

// ToNumber converts a primitive to a number. Objects convert through
// their wrapped primitive when they have one, otherwise to NaN; use
// Context.ToNumber when valueOf must run.
func ToNumber(v Value) Number {
	switch v := v.(type) {
	case Number:
		return v
	case Bool:
		if v {
			return 1
		}
		return 0
	case undefinedValue:
		return NaN
	case nullValue:
		return 0
	case *String:
		return StringToNumber(v.String())
	case *Object:
		if v.prim != nil {
			return ToNumber(v.prim)
		}
	}
	return NaN
}

// ToNumber converts v to a number, calling valueOf/toString on objects.
func (cx *Context) ToNumber(v Value) (Number, error) {
	if n, ok := v.(Number); ok {
		return n, nil
	}
	if o, ok := v.(*Object); ok {
		p, err := cx.ToPrimitive(o, HintNumber)
		if err != nil {
			return 0, err
		}
		v = p
	}
	return ToNumber(v), nil
}

// isJSSpace reports whether r is white space or a line terminator.
func isJSSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xA0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

// TrimSpace removes leading and trailing script white space.
func TrimSpace(s string) string {
	return strings.TrimFunc(s, isJSSpace)
}

// StringToNumber implements the numeric conversion of strings.
func StringToNumber(s string) Number {
	s = TrimSpace(s)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseIntDigits(s[2:], base)
		}
	}
	switch s {
	case "Infinity", "+Infinity":
		return Number(math.Inf(1))
	case "-Infinity":
		return Number(math.Inf(-1))
	}
	if !isDecimalLiteral(s) {
		return NaN
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return Number(f)
		}
		return NaN
	}
	return Number(f)
}

// isDecimalLiteral matches [+-]? (digits [. digits?] | . digits) ([eE] [+-]? digits)?
func isDecimalLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

// parseIntDigits parses all of s as digits in base, NaN if any is invalid.
func parseIntDigits(s string, base int) Number {
	if s == "" {
		return NaN
	}
	v := 0.0
	for i := 0; i < len(s); i++ {
		d := digitVal(s[i])
		if d >= base {
			return NaN
		}
		v = v*float64(base) + float64(d)
	}
	return Number(v)
}

func digitVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return 99
}

// ToString converts a primitive to a string. Objects use their wrapped
// primitive if any; use Context.ToString when toString must run.
func ToString(v Value) *String {
	switch v := v.(type) {
	case *String:
		return v
	case Number:
		return NewString(ast.NumberToString(float64(v)))
	case Bool:
		if v {
			return strTrue
		}
		return strFalse
	case undefinedValue:
		return strUndefined
	case nullValue:
		return strNull
	case *Object:
		if v.prim != nil {
			return ToString(v.prim)
		}
		return NewString("[object " + v.class + "]")
	}
	return emptyString
}

var (
	strTrue      = NewString("true")
	strFalse     = NewString("false")
	strUndefined = NewString("undefined")
	strNull      = NewString("null")
)

// ToString converts v to a string, calling toString/valueOf on objects.
func (cx *Context) ToString(v Value) (*String, error) {
	if s, ok := v.(*String); ok {
		return s, nil
	}
	if o, ok := v.(*Object); ok {
		p, err := cx.ToPrimitive(o, HintString)
		if err != nil {
			return nil, err
		}
		v = p
	}
	return ToString(v), nil
}

// ToPropertyKey converts v to a property key string.
func (cx *Context) ToPropertyKey(v Value) (string, error) {
	switch v := v.(type) {
	case *String:
		return v.String(), nil
	case Number:
		if i := int64(v); float64(i) == float64(v) && i >= 0 && i < 1<<31 {
			return strconv.FormatInt(i, 10), nil
		}
		return ast.NumberToString(float64(v)), nil
	}
	s, err := cx.ToString(v)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// Hint selects the preferred conversion of ToPrimitive.
type Hint int

const (
	HintDefault Hint = iota
	HintNumber
	HintString
)

// ToPrimitive converts an object to a primitive by calling valueOf and
// toString in the order given by hint.
func (cx *Context) ToPrimitive(o *Object, hint Hint) (Value, error) {
	order := [2]string{"valueOf", "toString"}
	if hint == HintString {
		order = [2]string{"toString", "valueOf"}
	}
	for _, name := range order {
		m, err := o.Get(cx, name)
		if err != nil {
			return nil, err
		}
		fn, ok := m.(*Object)
		if !ok || fn.fn == nil {
			continue
		}
		r, err := cx.Call(fn, o, nil)
		if err != nil {
			return nil, err
		}
		if _, isObj := r.(*Object); !isObj {
			return r, nil
		}
	}
	return nil, cx.newError(ErrorType, "Cannot find default value for object.")
}

// toPrimitive converts any value, leaving primitives unchanged.
func (cx *Context) toPrimitive(v Value, hint Hint) (Value, error) {
	if o, ok := v.(*Object); ok {
		return cx.ToPrimitive(o, hint)
	}
	return v, nil
}

// ToObject wraps primitives; undefined and null raise a TypeError.
func (cx *Context) ToObject(v Value) (*Object, error) {
	switch v := v.(type) {
	case *Object:
		return v, nil
	case undefinedValue, nullValue:
		return nil, cx.newError(ErrorType, "Cannot convert %s to an object.", ToString(v))
	}
	return cx.wrapPrimitive(v), nil
}

func (cx *Context) wrapPrimitive(v Value) *Object {
	var proto *Object
	class := ""
	r := cx.currentRealm()
	switch v.(type) {
	case Bool:
		proto, class = r.BooleanPrototype, "Boolean"
	case Number:
		proto, class = r.NumberPrototype, "Number"
	case *String:
		proto, class = r.StringPrototype, "String"
	}
	o := NewObject(proto, class)
	o.kind = KindPrimitive
	o.prim = v
	return o
}

// ToInteger truncates toward zero; NaN becomes 0.
func ToInteger(n Number) float64 {
	f := float64(n)
	if math.IsNaN(f) {
		return 0
	}
	if math.IsInf(f, 0) {
		return f
	}
	return math.Trunc(f)
}

// ToInt32 implements the 32-bit signed integer conversion.
func ToInt32(n Number) int32 {
	return int32(ToUint32(n))
}

// ToUint32 implements the 32-bit unsigned integer conversion.
func ToUint32(n Number) uint32 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= 0 && f < 1<<32 {
		return uint32(f)
	}
	f = math.Mod(math.Trunc(f), 1<<32)
	if f < 0 {
		f += 1 << 32
	}
	return uint32(f)
}

// ToUint16 implements the conversion used by String.fromCharCode.
func ToUint16(n Number) uint16 {
	return uint16(ToUint32(n))
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// StrictEquals implements ===.
func StrictEquals(a, b Value) bool {
	switch a := a.(type) {
	case Number:
		b, ok := b.(Number)
		return ok && a == b
	case *String:
		b, ok := b.(*String)
		return ok && a.Equals(b)
	case *Object:
		b, ok := b.(*Object)
		return ok && a == b
	case Bool:
		b, ok := b.(Bool)
		return ok && a == b
	case undefinedValue:
		return IsUndefined(b)
	case nullValue:
		return IsNull(b)
	}
	return false
}

// SameValue is strict equality except that NaN equals itself and the two
// zeros differ.
func SameValue(a, b Value) bool {
	if x, ok := a.(Number); ok {
		y, ok := b.(Number)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) {
			return math.IsNaN(float64(y))
		}
		if x == 0 && y == 0 {
			return math.Signbit(float64(x)) == math.Signbit(float64(y))
		}
		return x == y
	}
	return StrictEquals(a, b)
}

// LooseEquals implements ==.
func (cx *Context) LooseEquals(a, b Value) (bool, error) {
	for {
		if TypeOf(a) == TypeOf(b) {
			return StrictEquals(a, b), nil
		}
		if IsNullish(a) && IsNullish(b) {
			return true, nil
		}
		switch x := a.(type) {
		case Number:
			switch y := b.(type) {
			case *String:
				return x == ToNumber(y), nil
			case Bool:
				b = ToNumber(y)
				continue
			}
		case *String:
			switch b.(type) {
			case Number:
				return ToNumber(x) == b.(Number), nil
			case Bool:
				b = ToNumber(b)
				continue
			}
		case Bool:
			a = ToNumber(x)
			continue
		}
		switch {
		case isPrimitiveNonNull(a) && TypeOf(b) == TypeObject:
			p, err := cx.ToPrimitive(b.(*Object), HintDefault)
			if err != nil {
				return false, err
			}
			b = p
			continue
		case TypeOf(a) == TypeObject && isPrimitiveNonNull(b):
			p, err := cx.ToPrimitive(a.(*Object), HintDefault)
			if err != nil {
				return false, err
			}
			a = p
			continue
		}
		return false, nil
	}
}

func isPrimitiveNonNull(v Value) bool {
	switch v.(type) {
	case Number, *String, Bool:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// typeof and display
// ---------------------------------------------------------------------------

// TypeofString returns the result of the typeof operator.
func TypeofString(v Value) string {
	switch v := v.(type) {
	case undefinedValue:
		return "undefined"
	case nullValue:
		return "object"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case *String:
		return "string"
	case *Object:
		if v.fn != nil {
			return "function"
		}
		return "object"
	}
	return "undefined"
}

// ToDisplay renders v for error messages without running script code.
func ToDisplay(v Value) string {
	switch v := v.(type) {
	case *String:
		return ast.Quote(v.String())
	case *Object:
		if v.fn != nil {
			if v.fn.name != "" {
				return "function " + v.fn.name
			}
			return "function"
		}
		if v.prim != nil {
			return ToDisplay(v.prim)
		}
		return "[object " + v.class + "]"
	}
	return ToString(v).String()
}
