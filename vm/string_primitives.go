package vm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// String constructor and String.prototype
// ---------------------------------------------------------------------------

func initStringBuiltins(r *Realm) {
	proto := wrapperPrototype(r, "String", emptyString)
	r.StringPrototype = proto
	convert := func(cx *Context, args []Value) (*String, error) {
		if len(args) == 0 {
			return emptyString, nil
		}
		return cx.ToString(args[0])
	}
	call := func(cx *Context, this Value, args []Value) (Value, error) {
		return convert(cx, args)
	}
	ctor := func(cx *Context, args []Value, newTarget *Object) (Value, error) {
		s, err := convert(cx, args)
		if err != nil || newTarget == nil {
			return s, err
		}
		p, err := cx.protoFromTarget(newTarget, cx.currentRealm().StringPrototype)
		if err != nil {
			return nil, err
		}
		return newWrapper(p, "String", s), nil
	}
	c := constructor(r, "String", 1, call, ctor, proto)
	method(r, c, "fromCharCode", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		units := make([]uint16, len(args))
		for i, a := range args {
			n, err := cx.ToNumber(a)
			if err != nil {
				return nil, err
			}
			units[i] = ToUint16(n)
		}
		return stringFromUnits(units), nil
	})

	str := func(name string, length int, fn func(cx *Context, s *String, args []Value) (Value, error)) {
		method(r, proto, name, length, func(cx *Context, this Value, args []Value) (Value, error) {
			s, err := cx.thisString(this, name)
			if err != nil {
				return nil, err
			}
			return fn(cx, s, args)
		})
	}

	method(r, proto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return cx.thisPrimitive(this, TypeString, "String.prototype.toString")
	})
	method(r, proto, "valueOf", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return cx.thisPrimitive(this, TypeString, "String.prototype.valueOf")
	})
	method(r, proto, "toSource", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		v, err := cx.thisPrimitive(this, TypeString, "String.prototype.toSource")
		if err != nil {
			return nil, err
		}
		src, err := cx.toSource(v, nil)
		if err != nil {
			return nil, err
		}
		return NewString("(new String(" + src + "))"), nil
	})
	str("charAt", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		i, err := cx.integerArg(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= float64(s.Len()) {
			return emptyString, nil
		}
		return s.Substring(int(i), int(i)+1), nil
	})
	str("charCodeAt", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		i, err := cx.integerArg(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= float64(s.Len()) {
			return NaN, nil
		}
		return Int(int(s.At(int(i)))), nil
	})
	str("indexOf", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		sub, err := cx.ToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		from, err := cx.integerArg(arg(args, 1))
		if err != nil {
			return nil, err
		}
		if from > float64(s.Len()) {
			from = float64(s.Len())
		}
		return Int(s.IndexOf(sub, int(from))), nil
	})
	str("lastIndexOf", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		sub, err := cx.ToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		from := s.Len()
		if fv := arg(args, 1); !IsUndefined(fv) {
			n, err := cx.ToNumber(fv)
			if err != nil {
				return nil, err
			}
			if n == n {
				f := ToInteger(n)
				if f < 0 {
					f = 0
				}
				if f < float64(from) {
					from = int(f)
				}
			}
		}
		return Int(s.LastIndexOf(sub, from)), nil
	})
	str("slice", 2, func(cx *Context, s *String, args []Value) (Value, error) {
		n := int64(s.Len())
		start, err := cx.relativeIndex(arg(args, 0), n, 0)
		if err != nil {
			return nil, err
		}
		end, err := cx.relativeIndex(arg(args, 1), n, n)
		if err != nil {
			return nil, err
		}
		return s.Substring(int(start), int(end)), nil
	})
	str("substring", 2, func(cx *Context, s *String, args []Value) (Value, error) {
		n := float64(s.Len())
		clamp := func(v Value, def float64) (int, error) {
			if IsUndefined(v) {
				return int(def), nil
			}
			f, err := cx.integerArg(v)
			if err != nil {
				return 0, err
			}
			return int(min(max(f, 0), n)), nil
		}
		start, err := clamp(arg(args, 0), 0)
		if err != nil {
			return nil, err
		}
		end, err := clamp(arg(args, 1), n)
		if err != nil {
			return nil, err
		}
		if start > end {
			start, end = end, start
		}
		return s.Substring(start, end), nil
	})
	str("substr", 2, func(cx *Context, s *String, args []Value) (Value, error) {
		n := int64(s.Len())
		start, err := cx.relativeIndex(arg(args, 0), n, 0)
		if err != nil {
			return nil, err
		}
		count := n - start
		if lv := arg(args, 1); !IsUndefined(lv) {
			f, err := cx.integerArg(lv)
			if err != nil {
				return nil, err
			}
			count = int64(min(max(f, 0), float64(count)))
		}
		return s.Substring(int(start), int(start+count)), nil
	})
	str("toUpperCase", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(strings.ToUpper(s.String())), nil
	})
	str("toLowerCase", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(strings.ToLower(s.String())), nil
	})
	str("toLocaleUpperCase", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(strings.ToUpper(s.String())), nil
	})
	str("toLocaleLowerCase", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(strings.ToLower(s.String())), nil
	})
	str("trim", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(TrimSpace(s.String())), nil
	})
	str("trimStart", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(strings.TrimLeftFunc(s.String(), isJSSpace)), nil
	})
	str("trimEnd", 0, func(cx *Context, s *String, args []Value) (Value, error) {
		return NewString(strings.TrimRightFunc(s.String(), isJSSpace)), nil
	})
	str("concat", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		for _, a := range args {
			as, err := cx.ToString(a)
			if err != nil {
				return nil, err
			}
			s = Concat(s, as)
		}
		return s, nil
	})
	str("repeat", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		n, err := cx.integerArg(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 1<<28 {
			return nil, cx.newError(ErrorRange, "Invalid count value")
		}
		return NewString(strings.Repeat(s.String(), int(n))), nil
	})
	str("startsWith", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		sub, err := cx.searchString(arg(args, 0), "startsWith")
		if err != nil {
			return nil, err
		}
		pos, err := cx.integerArg(arg(args, 1))
		if err != nil {
			return nil, err
		}
		start := int(min(max(pos, 0), float64(s.Len())))
		if start+sub.Len() > s.Len() {
			return False, nil
		}
		return BoolValue(s.Substring(start, start+sub.Len()).Equals(sub)), nil
	})
	str("endsWith", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		sub, err := cx.searchString(arg(args, 0), "endsWith")
		if err != nil {
			return nil, err
		}
		end := s.Len()
		if ev := arg(args, 1); !IsUndefined(ev) {
			f, err := cx.integerArg(ev)
			if err != nil {
				return nil, err
			}
			end = int(min(max(f, 0), float64(end)))
		}
		start := end - sub.Len()
		if start < 0 {
			return False, nil
		}
		return BoolValue(s.Substring(start, end).Equals(sub)), nil
	})
	str("includes", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		sub, err := cx.searchString(arg(args, 0), "includes")
		if err != nil {
			return nil, err
		}
		pos, err := cx.integerArg(arg(args, 1))
		if err != nil {
			return nil, err
		}
		return BoolValue(s.IndexOf(sub, int(min(max(pos, 0), float64(s.Len())))) >= 0), nil
	})
	str("split", 2, stringSplit)
	str("replace", 2, stringReplace)
	str("match", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		re, err := cx.toRegExp(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if !re.regexp.global {
			return cx.regexpExec(re, s)
		}
		ms := re.regexp.allMatches(s)
		if err := re.Set(cx, "lastIndex", Int(0), re, true); err != nil {
			return nil, err
		}
		if len(ms) == 0 {
			return Null, nil
		}
		vals := make([]Value, len(ms))
		for i, m := range ms {
			vals[i] = s.Substring(m.start, m.end)
		}
		return NewArray(cx.currentRealm().ArrayPrototype, vals), nil
	})
	str("search", 1, func(cx *Context, s *String, args []Value) (Value, error) {
		re, err := cx.toRegExp(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if m, ok := re.regexp.execAt(s, 0); ok {
			return Int(m.start), nil
		}
		return Int(-1), nil
	})
}

// thisString converts the this value of a generic String method.
func (cx *Context) thisString(this Value, name string) (*String, error) {
	if IsNullish(this) {
		return nil, cx.newError(ErrorType, "String.prototype.%s called on null or undefined", name)
	}
	return cx.ToString(this)
}

// integerArg converts an optional position argument; undefined is 0.
func (cx *Context) integerArg(v Value) (float64, error) {
	if IsUndefined(v) {
		return 0, nil
	}
	n, err := cx.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return ToInteger(n), nil
}

func (cx *Context) searchString(v Value, name string) (*String, error) {
	if o, ok := v.(*Object); ok && o.regexp != nil {
		return nil, cx.newError(ErrorType, "First argument to String.prototype.%s must not be a regular expression", name)
	}
	return cx.ToString(v)
}

// toRegExp converts the pattern argument of match and search.
func (cx *Context) toRegExp(v Value) (*Object, error) {
	if o, ok := v.(*Object); ok && o.regexp != nil {
		return o, nil
	}
	pattern := ""
	if !IsUndefined(v) {
		s, err := cx.ToString(v)
		if err != nil {
			return nil, err
		}
		pattern = s.String()
	}
	return cx.NewRegExp(pattern, "")
}

func stringSplit(cx *Context, s *String, args []Value) (Value, error) {
	limit := uint32(1<<32 - 1)
	if lv := arg(args, 1); !IsUndefined(lv) {
		n, err := cx.ToNumber(lv)
		if err != nil {
			return nil, err
		}
		limit = ToUint32(n)
	}
	var parts []Value
	add := func(v Value) bool {
		if uint32(len(parts)) >= limit {
			return false
		}
		parts = append(parts, v)
		return true
	}
	done := func() (Value, error) {
		return NewArray(cx.currentRealm().ArrayPrototype, parts), nil
	}
	sep := arg(args, 0)
	if limit == 0 {
		return done()
	}
	if IsUndefined(sep) {
		add(s)
		return done()
	}
	if re, ok := sep.(*Object); ok && re.regexp != nil {
		if s.Len() == 0 {
			if _, matched := re.regexp.execAt(s, 0); !matched {
				add(s)
			}
			return done()
		}
		last, from := 0, 0
		for from < s.Len() {
			m, ok := re.regexp.execAt(s, from)
			if !ok || m.start >= s.Len() {
				break
			}
			if m.end == last {
				from = m.start + 1
				continue
			}
			if !add(s.Substring(last, m.start)) {
				return done()
			}
			for _, g := range m.groups {
				if !add(g) {
					return done()
				}
			}
			last, from = m.end, m.end
		}
		add(s.Substring(last, s.Len()))
		return done()
	}
	sepStr, err := cx.ToString(sep)
	if err != nil {
		return nil, err
	}
	if sepStr.Len() == 0 {
		for i := 0; i < s.Len(); i++ {
			if !add(s.Substring(i, i+1)) {
				break
			}
		}
		return done()
	}
	last := 0
	for {
		i := s.IndexOf(sepStr, last)
		if i < 0 {
			break
		}
		if !add(s.Substring(last, i)) {
			return done()
		}
		last = i + sepStr.Len()
	}
	add(s.Substring(last, s.Len()))
	return done()
}

func stringReplace(cx *Context, s *String, args []Value) (Value, error) {
	pattern, replacement := arg(args, 0), arg(args, 1)
	var matches []*regexpMatch
	if re, ok := pattern.(*Object); ok && re.regexp != nil {
		if re.regexp.global {
			matches = re.regexp.allMatches(s)
			if err := re.Set(cx, "lastIndex", Int(0), re, true); err != nil {
				return nil, err
			}
		} else if m, ok := re.regexp.execAt(s, 0); ok {
			matches = []*regexpMatch{m}
		}
	} else {
		p, err := cx.ToString(pattern)
		if err != nil {
			return nil, err
		}
		if i := s.IndexOf(p, 0); i >= 0 {
			matches = []*regexpMatch{{start: i, end: i + p.Len()}}
		}
	}
	if len(matches) == 0 {
		return s, nil
	}

	fn, isFn := replacement.(*Object)
	isFn = isFn && fn.fn != nil
	var template *String
	if !isFn {
		var err error
		if template, err = cx.ToString(replacement); err != nil {
			return nil, err
		}
	}
	out := emptyString
	last := 0
	for _, m := range matches {
		out = Concat(out, s.Substring(last, m.start))
		matched := s.Substring(m.start, m.end)
		if isFn {
			cargs := append([]Value{matched}, m.groups...)
			cargs = append(cargs, Int(m.start), s)
			rv, err := cx.Call(fn, Undefined, cargs)
			if err != nil {
				return nil, err
			}
			rs, err := cx.ToString(rv)
			if err != nil {
				return nil, err
			}
			out = Concat(out, rs)
		} else {
			out = Concat(out, NewString(expandReplacement(template.String(), s, matched, m)))
		}
		last = m.end
	}
	return Concat(out, s.Substring(last, s.Len())), nil
}

// expandReplacement substitutes $$, $&, $`, $' and $n in a replacement
// template.
func expandReplacement(t string, s, matched *String, m *regexpMatch) string {
	if !strings.Contains(t, "$") {
		return t
	}
	var b strings.Builder
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c != '$' || i+1 == len(t) {
			b.WriteByte(c)
			continue
		}
		switch n := t[i+1]; {
		case n == '$':
			b.WriteByte('$')
			i++
		case n == '&':
			b.WriteString(matched.String())
			i++
		case n == '`':
			b.WriteString(s.Substring(0, m.start).String())
			i++
		case n == '\'':
			b.WriteString(s.Substring(m.end, s.Len()).String())
			i++
		case n >= '0' && n <= '9':
			idx := int(n - '0')
			width := 1
			if i+2 < len(t) && t[i+2] >= '0' && t[i+2] <= '9' {
				if two := idx*10 + int(t[i+2]-'0'); two >= 1 && two <= len(m.groups) {
					idx, width = two, 2
				}
			}
			if idx < 1 || idx > len(m.groups) {
				b.WriteByte(c)
				continue
			}
			if g, ok := m.groups[idx-1].(*String); ok {
				b.WriteString(g.String())
			}
			i += width
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
