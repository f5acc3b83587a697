package vm

import (
	"regexp"
	"regexp/syntax"
	"strings"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Regular expressions
// ---------------------------------------------------------------------------

// regexpData is the payload of RegExp objects. Patterns run on Go's
// regexp engine; constructs it lacks (backreferences, lookaround) are
// reported as syntax errors when the pattern is compiled.
type regexpData struct {
	source     string
	flags      string
	global     bool
	ignoreCase bool
	multiline  bool
	re         *regexp.Regexp
}

// NewRegExp creates a RegExp object in the current realm.
func (cx *Context) NewRegExp(pattern, flags string) (*Object, error) {
	data, err := compileRegExp(pattern, flags)
	if err != nil {
		return nil, cx.newError(ErrorSyntax, "%s", err.Error())
	}
	return cx.regexpObject(cx.currentRealm().RegExpPrototype, data), nil
}

func (cx *Context) regexpObject(proto *Object, data *regexpData) *Object {
	o := NewObject(proto, "RegExp")
	o.kind = KindRegExp
	o.regexp = data
	o.props.Put("lastIndex", DataProperty(Int(0), FlagWritable))
	o.props.Put("source", DataProperty(NewString(data.source), 0))
	o.props.Put("flags", DataProperty(NewString(data.flags), 0))
	o.props.Put("global", DataProperty(BoolValue(data.global), 0))
	o.props.Put("ignoreCase", DataProperty(BoolValue(data.ignoreCase), 0))
	o.props.Put("multiline", DataProperty(BoolValue(data.multiline), 0))
	return o
}

type regexpSyntaxError struct {
	pattern string
	msg     string
}

func (e *regexpSyntaxError) Error() string {
	return "Invalid regular expression /" + e.pattern + "/: " + e.msg
}

func compileRegExp(pattern, flags string) (*regexpData, error) {
	d := &regexpData{source: pattern, flags: flags}
	prefix := ""
	for _, f := range flags {
		var seen *bool
		switch f {
		case 'g':
			seen = &d.global
		case 'i':
			seen = &d.ignoreCase
			prefix += "i"
		case 'm':
			seen = &d.multiline
			prefix += "m"
		default:
			return nil, &regexpSyntaxError{pattern, "invalid flag '" + string(f) + "'"}
		}
		if *seen {
			return nil, &regexpSyntaxError{pattern, "duplicate flag '" + string(f) + "'"}
		}
		*seen = true
	}
	src := translatePattern(pattern)
	if prefix != "" {
		src = "(?" + prefix + ")" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		msg := err.Error()
		if se, ok := err.(*syntax.Error); ok {
			msg = string(se.Code)
		}
		return nil, &regexpSyntaxError{pattern, msg}
	}
	d.re = re
	if pattern == "" {
		d.source = "(?:)"
	}
	return d, nil
}

// translatePattern rewrites the few script pattern forms that Go spells
// differently.
func translatePattern(p string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			if p[i+1] == 'd' && inClass {
				b.WriteString(`0-9`)
			} else if p[i+1] == 'u' && i+5 < len(p) {
				b.WriteString(`\x{` + p[i+2:i+6] + `}`)
				i += 4
			} else {
				b.WriteByte(c)
				b.WriteByte(p[i+1])
			}
			i++
			continue
		case c == '[' && !inClass:
			if strings.HasPrefix(p[i:], "[^]") {
				b.WriteString(`[\s\S]`)
				i += 2
				continue
			}
			if strings.HasPrefix(p[i:], "[]") {
				b.WriteString(`[^\s\S]`)
				i++
				continue
			}
			inClass = true
		case c == ']' && inClass:
			inClass = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Offsets: script strings index UTF-16 code units, Go regexps bytes
// ---------------------------------------------------------------------------

func unitOffset(s string, byteOff int) int {
	n := 0
	for i := 0; i < byteOff; {
		r, size := ast.DecodeRune(s[i:])
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
		i += size
	}
	return n
}

func byteOffset(s string, unitOff int) int {
	i := 0
	for n := 0; n < unitOff && i < len(s); {
		r, size := ast.DecodeRune(s[i:])
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
		i += size
	}
	return i
}

// regexpMatch is one match with unit offsets; groups hold nil for
// unmatched groups.
type regexpMatch struct {
	start, end int
	groups     []Value
}

// execAt matches re against str starting at unit index from.
func (d *regexpData) execAt(str *String, from int) (*regexpMatch, bool) {
	s := str.String()
	ascii := len(s) == str.Len()
	bfrom := from
	if !ascii {
		bfrom = byteOffset(s, from)
	}
	if bfrom > len(s) {
		return nil, false
	}
	loc := d.re.FindStringSubmatchIndex(s[bfrom:])
	if loc == nil {
		return nil, false
	}
	conv := func(b int) int {
		if ascii {
			return b + bfrom
		}
		return unitOffset(s, b+bfrom)
	}
	m := &regexpMatch{start: conv(loc[0]), end: conv(loc[1])}
	for g := 1; g < len(loc)/2; g++ {
		if loc[2*g] < 0 {
			m.groups = append(m.groups, Undefined)
			continue
		}
		m.groups = append(m.groups, NewString(s[bfrom+loc[2*g]:bfrom+loc[2*g+1]]))
	}
	return m, true
}

// ---------------------------------------------------------------------------
// RegExp constructor and RegExp.prototype
// ---------------------------------------------------------------------------

func initRegExpBuiltins(r *Realm) {
	proto := NewObject(r.ObjectPrototype, "Object")
	r.RegExpPrototype = proto
	create := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		pv, fv := arg(args, 0), arg(args, 1)
		if re, ok := pv.(*Object); ok && re.regexp != nil {
			if newTarget == nil && IsUndefined(fv) {
				return re, nil
			}
			pv = NewString(re.regexp.source)
			if IsUndefined(fv) {
				fv = NewString(re.regexp.flags)
			}
		}
		pattern, flags := "", ""
		if !IsUndefined(pv) {
			s, err := cx.ToString(pv)
			if err != nil {
				return nil, err
			}
			pattern = s.String()
		}
		if !IsUndefined(fv) {
			s, err := cx.ToString(fv)
			if err != nil {
				return nil, err
			}
			flags = s.String()
		}
		data, err := compileRegExp(pattern, flags)
		if err != nil {
			return nil, cx.newError(ErrorSyntax, "%s", err.Error())
		}
		p, err := cx.protoFromTarget(newTarget, cx.currentRealm().RegExpPrototype)
		if err != nil {
			return nil, err
		}
		return cx.regexpObject(p, data), nil
	}
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		return create(cx, args, nil)
	}
	constructor(r, "RegExp", 2, call, create, proto)

	method(r, proto, "exec", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		re, err := cx.thisRegExp(this, "exec")
		if err != nil {
			return nil, err
		}
		s, err := cx.ToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		return cx.regexpExec(re, s)
	})
	method(r, proto, "test", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		re, err := cx.thisRegExp(this, "test")
		if err != nil {
			return nil, err
		}
		s, err := cx.ToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		v, err := cx.regexpExec(re, s)
		if err != nil {
			return nil, err
		}
		return BoolValue(!IsNull(v)), nil
	})
	method(r, proto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		re, err := cx.thisRegExp(this, "toString")
		if err != nil {
			return nil, err
		}
		return NewString("/" + re.regexp.source + "/" + re.regexp.flags), nil
	})
}

func (cx *Context) thisRegExp(this Value, name string) (*Object, error) {
	if o, ok := this.(*Object); ok && o.regexp != nil {
		return o, nil
	}
	return nil, cx.newError(ErrorType, "Method \"RegExp.prototype.%s\" called on incompatible object.", name)
}

// regexpExec runs exec, honoring and updating lastIndex for global
// expressions. It returns null or the match array.
func (cx *Context) regexpExec(re *Object, s *String) (Value, error) {
	d := re.regexp
	from := 0
	if d.global {
		lv, err := re.Get(cx, "lastIndex")
		if err != nil {
			return nil, err
		}
		n, err := cx.ToNumber(lv)
		if err != nil {
			return nil, err
		}
		f := ToInteger(n)
		if f < 0 || f > float64(s.Len()) {
			return Null, re.Set(cx, "lastIndex", Int(0), re, true)
		}
		from = int(f)
	}
	m, ok := d.execAt(s, from)
	if !ok {
		if d.global {
			if err := re.Set(cx, "lastIndex", Int(0), re, true); err != nil {
				return nil, err
			}
		}
		return Null, nil
	}
	if d.global {
		if err := re.Set(cx, "lastIndex", Int(m.end), re, true); err != nil {
			return nil, err
		}
	}
	return cx.matchArray(s, m), nil
}

func (cx *Context) matchArray(s *String, m *regexpMatch) *Object {
	vals := append([]Value{s.Substring(m.start, m.end)}, m.groups...)
	a := NewArray(cx.currentRealm().ArrayPrototype, vals)
	a.addOwn("index", Int(m.start))
	a.addOwn("input", s)
	return a
}

// allMatches returns every non-overlapping match of d in s.
func (d *regexpData) allMatches(s *String) []*regexpMatch {
	var out []*regexpMatch
	for from := 0; from <= s.Len(); {
		m, ok := d.execAt(s, from)
		if !ok {
			break
		}
		out = append(out, m)
		if m.end == m.start {
			from = m.end + 1
		} else {
			from = m.end
		}
	}
	return out
}
