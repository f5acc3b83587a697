package vm

import (
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Number constructor, Number.prototype and numeric globals
// ---------------------------------------------------------------------------

var (
	posInf = Number(math.Inf(1))
	negInf = Number(math.Inf(-1))
)

func isFinite(n Number) bool {
	return !math.IsNaN(float64(n)) && !math.IsInf(float64(n), 0)
}

// newWrapper creates a primitive wrapper object.
func newWrapper(proto *Object, class string, prim Value) *Object {
	o := NewObject(proto, class)
	o.kind = KindPrimitive
	o.prim = prim
	return o
}

// wrapperPrototype creates the prototype of a primitive wrapper type. The
// prototype is itself a wrapper of the type's default value.
func wrapperPrototype(r *Realm, class string, prim Value) *Object {
	return newWrapper(r.ObjectPrototype, class, prim)
}

func initNumberBuiltins(r *Realm) {
	proto := wrapperPrototype(r, "Number", Number(0))
	r.NumberPrototype = proto
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Number(0), nil
		}
		return cx.ToNumber(args[0])
	}
	ctor := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		n := Number(0)
		if len(args) > 0 {
			var err error
			if n, err = cx.ToNumber(args[0]); err != nil {
				return nil, err
			}
		}
		if newTarget == nil {
			return n, nil
		}
		p, err := cx.protoFromTarget(newTarget, cx.currentRealm().NumberPrototype)
		if err != nil {
			return nil, err
		}
		return newWrapper(p, "Number", n), nil
	}
	c := constructor(r, "Number", 1, call, ctor, proto)
	c.SetOwn("MAX_VALUE", Number(math.MaxFloat64), 0)
	c.SetOwn("MIN_VALUE", Number(5e-324), 0)
	c.SetOwn("NaN", NaN, 0)
	c.SetOwn("POSITIVE_INFINITY", posInf, 0)
	c.SetOwn("NEGATIVE_INFINITY", negInf, 0)
	c.SetOwn("EPSILON", Number(math.Nextafter(1, 2)-1), 0)
	c.SetOwn("MAX_SAFE_INTEGER", Number(1<<53-1), 0)
	c.SetOwn("MIN_SAFE_INTEGER", Number(-(1<<53 - 1)), 0)
	method(r, c, "isNaN", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, ok := arg(args, 0).(Number)
		return BoolValue(ok && n != n), nil
	})
	method(r, c, "isFinite", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, ok := arg(args, 0).(Number)
		return BoolValue(ok && isFinite(n)), nil
	})
	method(r, c, "isInteger", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, ok := arg(args, 0).(Number)
		return BoolValue(ok && isFinite(n) && math.Trunc(float64(n)) == float64(n)), nil
	})

	thisNumber := func(cx *Context, this Value, name string) (Number, error) {
		v, err := cx.thisPrimitive(this, TypeNumber, "Number.prototype."+name)
		if err != nil {
			return 0, err
		}
		return v.(Number), nil
	}
	method(r, proto, "valueOf", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return thisNumber(cx, this, "valueOf")
	})
	method(r, proto, "toString", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := thisNumber(cx, this, "toString")
		if err != nil {
			return nil, err
		}
		radix := 10
		if rv := arg(args, 0); !IsUndefined(rv) {
			rn, err := cx.ToNumber(rv)
			if err != nil {
				return nil, err
			}
			radix = int(ToInteger(rn))
			if radix < 2 || radix > 36 {
				return nil, cx.newError(ErrorRange, "illegal radix %d.", radix)
			}
		}
		return NewString(numberToRadix(float64(n), radix)), nil
	})
	method(r, proto, "toLocaleString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := thisNumber(cx, this, "toLocaleString")
		if err != nil {
			return nil, err
		}
		return ToString(n), nil
	})
	method(r, proto, "toFixed", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := thisNumber(cx, this, "toFixed")
		if err != nil {
			return nil, err
		}
		digits, err := cx.digitsArg(arg(args, 0), 0, 0, 100)
		if err != nil {
			return nil, err
		}
		return NewString(toFixed(float64(n), digits)), nil
	})
	method(r, proto, "toExponential", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := thisNumber(cx, this, "toExponential")
		if err != nil {
			return nil, err
		}
		if !isFinite(n) {
			return ToString(n), nil
		}
		if IsUndefined(arg(args, 0)) {
			return NewString(expNotation(strconv.FormatFloat(float64(n), 'e', -1, 64))), nil
		}
		digits, err := cx.digitsArg(arg(args, 0), 0, 0, 100)
		if err != nil {
			return nil, err
		}
		return NewString(expNotation(strconv.FormatFloat(float64(n), 'e', digits, 64))), nil
	})
	method(r, proto, "toPrecision", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		n, err := thisNumber(cx, this, "toPrecision")
		if err != nil {
			return nil, err
		}
		if IsUndefined(arg(args, 0)) || !isFinite(n) {
			return ToString(n), nil
		}
		p, err := cx.digitsArg(arg(args, 0), 1, 1, 100)
		if err != nil {
			return nil, err
		}
		return NewString(toPrecision(float64(n), p)), nil
	})
}

func (cx *Context) digitsArg(v Value, def, lo, hi int) (int, error) {
	if IsUndefined(v) {
		return def, nil
	}
	n, err := cx.ToNumber(v)
	if err != nil {
		return 0, err
	}
	d := ToInteger(n)
	if d < float64(lo) || d > float64(hi) {
		return 0, cx.newError(ErrorRange, "Precision %s out of range.", ToString(n).String())
	}
	return int(d), nil
}

// toFixed formats x with digits fraction digits, rounding ties away from
// zero on the exact decimal expansion of x.
func toFixed(x float64, digits int) string {
	if math.IsNaN(x) || math.Abs(x) >= 1e21 {
		return ToString(Number(x)).String()
	}
	neg := x < 0
	exact := strconv.FormatFloat(math.Abs(x), 'f', 1100, 64)
	s := roundDecimal(exact, digits)
	if neg {
		s = "-" + s
	}
	return s
}

// roundDecimal rounds a non-negative decimal string to frac digits after
// the point, ties up.
func roundDecimal(s string, frac int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		s += "."
		dot = len(s) - 1
	}
	for len(s)-dot-1 < frac+1 {
		s += "0"
	}
	digits := []byte(s[:dot] + s[dot+1:dot+1+frac])
	if s[dot+1+frac] >= '5' {
		i := len(digits) - 1
		for ; i >= 0; i-- {
			if digits[i] == '9' {
				digits[i] = '0'
				continue
			}
			digits[i]++
			break
		}
		if i < 0 {
			digits = append([]byte{'1'}, digits...)
		}
	}
	intPart := string(digits[:len(digits)-frac])
	if frac == 0 {
		return intPart
	}
	return intPart + "." + string(digits[len(digits)-frac:])
}

// expNotation converts Go's exponent form ("1.5e+02") to the script form
// ("1.5e+2").
func expNotation(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 {
		return s
	}
	mant, exp := s[:i], s[i+1:]
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + sign + exp
}

func toPrecision(x float64, p int) string {
	if x == 0 {
		if p == 1 {
			return "0"
		}
		return "0." + strings.Repeat("0", p-1)
	}
	e := strconv.FormatFloat(x, 'e', p-1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -6 || exp >= p {
		return expNotation(e)
	}
	return strconv.FormatFloat(x, 'f', p-1-exp, 64)
}

// numberToRadix renders n in the given radix.
func numberToRadix(n float64, radix int) string {
	if radix == 10 || math.IsNaN(n) || math.IsInf(n, 0) {
		return ToString(Number(n)).String()
	}
	neg := n < 0
	n = math.Abs(n)
	ip, fp := math.Modf(n)
	var s string
	if ip < 1<<63 {
		s = strconv.FormatUint(uint64(ip), radix)
	} else {
		var b []byte
		for ip >= 1 {
			d := math.Mod(ip, float64(radix))
			b = append([]byte{strconv.FormatInt(int64(d), radix)[0]}, b...)
			ip = math.Floor(ip / float64(radix))
		}
		s = string(b)
	}
	if fp > 0 {
		var b strings.Builder
		b.WriteByte('.')
		for i := 0; i < 52 && fp > 0; i++ {
			fp *= float64(radix)
			d := int64(fp)
			fp -= float64(d)
			b.WriteByte(strconv.FormatInt(d, radix)[0])
		}
		s += b.String()
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ---------------------------------------------------------------------------
// parseInt and parseFloat
// ---------------------------------------------------------------------------

func globalParseInt(cx *Context, this Value, args []Value) (Value, error) {
	str, err := cx.ToString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	rn, err := cx.ToNumber(arg(args, 1))
	if err != nil {
		return nil, err
	}
	s := TrimSpace(str.String())
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	radix := int(ToInt32(rn))
	stripPrefix := true
	if radix != 0 {
		if radix < 2 || radix > 36 {
			return NaN, nil
		}
		stripPrefix = radix == 16
	} else {
		radix = 10
	}
	if stripPrefix && len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
		radix = 16
	}
	end := 0
	for end < len(s) && digitVal(s[end]) < radix {
		end++
	}
	if end == 0 {
		return NaN, nil
	}
	var v Number
	if radix == 10 {
		f, _ := strconv.ParseFloat(s[:end], 64)
		v = Number(f)
	} else {
		v = parseIntDigits(s[:end], radix)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func globalParseFloat(cx *Context, this Value, args []Value) (Value, error) {
	str, err := cx.ToString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	s := strings.TrimLeftFunc(str.String(), isJSSpace)
	for end := decimalPrefix(s); end > 0; end-- {
		if p := s[:end]; isDecimalLiteral(p) {
			f, _ := strconv.ParseFloat(p, 64)
			return Number(f), nil
		}
	}
	switch {
	case strings.HasPrefix(s, "Infinity"), strings.HasPrefix(s, "+Infinity"):
		return posInf, nil
	case strings.HasPrefix(s, "-Infinity"):
		return negInf, nil
	}
	return NaN, nil
}

// decimalPrefix returns the length of the longest prefix of s made of
// characters that can appear in a decimal literal.
func decimalPrefix(s string) int {
	i := 0
	for i < len(s) && strings.IndexByte("0123456789+-.eE", s[i]) >= 0 {
		i++
	}
	return i
}

// ---------------------------------------------------------------------------
// Math
// ---------------------------------------------------------------------------

func initMathBuiltins(r *Realm) {
	m := NewObject(r.ObjectPrototype, "Math")
	r.Global.SetOwn("Math", m, FlagsHidden)
	r.builtins = append(r.builtins, m)

	for name, v := range map[string]float64{
		"PI": math.Pi, "E": math.E, "LN2": math.Ln2, "LN10": math.Ln10,
		"LOG2E": math.Log2E, "LOG10E": math.Log10E, "SQRT2": math.Sqrt2, "SQRT1_2": math.Sqrt2 / 2,
	} {
		m.SetOwn(name, Number(v), 0)
	}

	unary := map[string]func(float64) float64{
		"abs": math.Abs, "floor": math.Floor, "ceil": math.Ceil, "sqrt": math.Sqrt,
		"trunc": math.Trunc, "round": mathRound, "sign": mathSign, "cbrt": math.Cbrt,
		"sin": math.Sin, "cos": math.Cos, "tan": math.Tan, "asin": math.Asin,
		"acos": math.Acos, "atan": math.Atan, "exp": math.Exp, "log": math.Log,
		"log2": math.Log2, "log10": math.Log10,
	}
	for _, name := range slices.Sorted(maps.Keys(unary)) {
		f := unary[name]
		method(r, m, name, 1, func(cx *Context, this Value, args []Value) (Value, error) {
			n, err := cx.ToNumber(arg(args, 0))
			if err != nil {
				return nil, err
			}
			return Number(f(float64(n))), nil
		})
	}
	method(r, m, "atan2", 2, func(cx *Context, this Value, args []Value) (Value, error) {
		y, err := cx.ToNumber(arg(args, 0))
		if err != nil {
			return nil, err
		}
		x, err := cx.ToNumber(arg(args, 1))
		if err != nil {
			return nil, err
		}
		return Number(math.Atan2(float64(y), float64(x))), nil
	})
	method(r, m, "pow", 2, func(cx *Context, this Value, args []Value) (Value, error) {
		x, err := cx.ToNumber(arg(args, 0))
		if err != nil {
			return nil, err
		}
		y, err := cx.ToNumber(arg(args, 1))
		if err != nil {
			return nil, err
		}
		return power(x, y), nil
	})
	method(r, m, "max", 2, mathExtremum(negInf, func(a, b float64) bool {
		return a > b || (a == 0 && b == 0 && !math.Signbit(a))
	}))
	method(r, m, "min", 2, mathExtremum(posInf, func(a, b float64) bool {
		return a < b || (a == 0 && b == 0 && math.Signbit(a))
	}))
	method(r, m, "random", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return Number(rand.Float64()), nil
	})
}

func mathRound(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f := math.Floor(x)
	if x-f >= 0.5 {
		f++
	}
	if f == 0 && (x < 0 || math.Signbit(x)) {
		return math.Copysign(0, -1)
	}
	return f
}

func mathSign(x float64) float64 {
	switch {
	case math.IsNaN(x) || x == 0:
		return x
	case x > 0:
		return 1
	}
	return -1
}

// mathExtremum implements max and min: better(a, b) reports whether a
// replaces the current result b. Any NaN argument yields NaN.
func mathExtremum(start Number, better func(a, b float64) bool) NativeFunc {
	return func(cx *Context, this Value, args []Value) (Value, error) {
		res := float64(start)
		nan := false
		for _, a := range args {
			n, err := cx.ToNumber(a)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(float64(n)) {
				nan = true
			} else if better(float64(n), res) {
				res = float64(n)
			}
		}
		if nan {
			return NaN, nil
		}
		return Number(res), nil
	}
}
