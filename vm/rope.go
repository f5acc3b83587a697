package vm

import (
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// String: rope strings
// ---------------------------------------------------------------------------

// String is an immutable script string. It is either flat, holding its
// text as generalized UTF-8, or a concatenation node holding two halves.
// Concatenation is O(1); the first character-level access flattens the
// node and caches the result in place.
//
// Flat strings may be shared between Contexts (compiled constants), so
// the lazily decoded UTF-16 form is published atomically. Concatenation
// nodes belong to the Context that built them.
type String struct {
	flat        string
	left, right *String

	length     int // UTF-16 code units
	size       int // bytes of flat text
	ascii      bool
	surrogates bool // text contains encoded surrogates

	units atomic.Pointer[[]uint16]
}

func (*String) value() {}

var emptyString = &String{ascii: true}

// NewString creates a flat string from generalized UTF-8 text. Surrogate
// pairs written as two three-byte sequences are combined.
func NewString(s string) *String {
	str := &String{flat: s, size: len(s), ascii: true}
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			str.length++
			i++
			continue
		}
		str.ascii = false
		r, n := ast.DecodeRune(s[i:])
		switch {
		case r > 0xFFFF:
			str.length += 2
		case ast.IsSurrogate(r):
			str.surrogates = true
			str.length++
		default:
			str.length++
		}
		i += n
	}
	if str.surrogates {
		str.flat = joinSurrogates(s)
		str.size = len(str.flat)
	}
	return str
}

// Concat returns a followed by b without copying either.
func Concat(a, b *String) *String {
	if a.length == 0 {
		return b
	}
	if b.length == 0 {
		return a
	}
	return &String{
		left:       a,
		right:      b,
		length:     a.length + b.length,
		size:       a.size + b.size,
		ascii:      a.ascii && b.ascii,
		surrogates: a.surrogates || b.surrogates,
	}
}

// Len returns the length in UTF-16 code units.
func (s *String) Len() int {
	return s.length
}

// IsFlat reports whether s holds its text directly.
func (s *String) IsFlat() bool {
	return s.left == nil
}

// String returns the text as generalized UTF-8, flattening s.
func (s *String) String() string {
	s.flatten()
	return s.flat
}

// flatten collects the leaves of a concatenation tree without recursion,
// so arbitrarily deep chains are safe.
func (s *String) flatten() {
	if s.left == nil {
		return
	}
	var b strings.Builder
	b.Grow(s.size)
	stack := []*String{s}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.left == nil {
			b.WriteString(n.flat)
			continue
		}
		stack = append(stack, n.right, n.left)
	}
	flat := b.String()
	if s.surrogates {
		flat = joinSurrogates(flat)
	}
	s.flat = flat
	s.size = len(flat)
	s.left, s.right = nil, nil
}

// joinSurrogates rewrites each encoded high surrogate followed by an
// encoded low surrogate as the four-byte form of the pair.
func joinSurrogates(s string) string {
	var out []byte
	last := 0
	for i := 0; i+6 <= len(s); i++ {
		if s[i] != 0xED || s[i+1] < 0xA0 || s[i+1] > 0xAF || s[i+3] != 0xED || s[i+4] < 0xB0 || s[i+4] > 0xBF {
			continue
		}
		hi, _ := ast.DecodeRune(s[i:])
		lo, _ := ast.DecodeRune(s[i+3:])
		if out == nil {
			out = make([]byte, 0, len(s))
		}
		out = append(out, s[last:i]...)
		out = utf8.AppendRune(out, (hi-0xD800)<<10+(lo-0xDC00)+0x10000)
		i += 5
		last = i + 1
	}
	if out == nil {
		return s
	}
	return string(append(out, s[last:]...))
}

// Units returns the UTF-16 code units of s. The result must not be
// modified.
func (s *String) Units() []uint16 {
	if p := s.units.Load(); p != nil {
		return *p
	}
	s.flatten()
	u := make([]uint16, 0, s.length)
	for i := 0; i < len(s.flat); {
		r, n := ast.DecodeRune(s.flat[i:])
		if r > 0xFFFF {
			r -= 0x10000
			u = append(u, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
		} else {
			u = append(u, uint16(r))
		}
		i += n
	}
	s.units.Store(&u)
	return u
}

// At returns the code unit at index i.
func (s *String) At(i int) uint16 {
	s.flatten()
	if s.ascii {
		return uint16(s.flat[i])
	}
	return s.Units()[i]
}

// Equals reports whether s and o hold the same code units.
func (s *String) Equals(o *String) bool {
	if s == o {
		return true
	}
	if s.length != o.length {
		return false
	}
	return s.String() == o.String()
}

// Compare orders s and o by code units.
func (s *String) Compare(o *String) int {
	if s.ascii && o.ascii {
		return strings.Compare(s.String(), o.String())
	}
	a, b := s.Units(), o.Units()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Substring returns the code units in [from, to).
func (s *String) Substring(from, to int) *String {
	if from <= 0 && to >= s.length {
		return s
	}
	if from >= to {
		return emptyString
	}
	s.flatten()
	if s.ascii {
		return &String{flat: s.flat[from:to], size: to - from, length: to - from, ascii: true}
	}
	return stringFromUnits(s.Units()[from:to])
}

// IndexOf returns the first index of sub at or after from, or -1.
func (s *String) IndexOf(sub *String, from int) int {
	if from < 0 {
		from = 0
	}
	if s.ascii && sub.ascii {
		if from > s.length {
			return -1
		}
		i := strings.Index(s.String()[from:], sub.String())
		if i < 0 {
			return -1
		}
		return i + from
	}
	a, b := s.Units(), sub.Units()
	for i := from; i+len(b) <= len(a); i++ {
		if unitsEqual(a[i:i+len(b)], b) {
			return i
		}
	}
	return -1
}

// LastIndexOf returns the last index of sub at or before from, or -1.
func (s *String) LastIndexOf(sub *String, from int) int {
	a, b := s.Units(), sub.Units()
	if from > len(a)-len(b) {
		from = len(a) - len(b)
	}
	for i := from; i >= 0; i-- {
		if unitsEqual(a[i:i+len(b)], b) {
			return i
		}
	}
	return -1
}

func unitsEqual(a, b []uint16) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stringFromUnits builds a flat string from code units, pairing
// surrogates where possible.
func stringFromUnits(u []uint16) *String {
	buf := make([]byte, 0, len(u))
	for i := 0; i < len(u); i++ {
		r := rune(u[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u) && u[i+1] >= 0xDC00 && u[i+1] <= 0xDFFF {
			r = (r-0xD800)<<10 + rune(u[i+1]-0xDC00) + 0x10000
			i++
		}
		buf = ast.AppendRune(buf, r)
	}
	return NewString(string(buf))
}
