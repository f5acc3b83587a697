package ast

import "unicode/utf8"

// Script strings are sequences of UTF-16 code units. Go strings holding
// them use generalized UTF-8: valid UTF-8, except that unpaired surrogates
// are encoded with the plain three-byte form that utf8 rejects.

// IsSurrogate reports whether r is a UTF-16 surrogate code point.
func IsSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}

// DecodeRune decodes the first code point of s, accepting encoded
// surrogates. Invalid bytes decode as utf8.RuneError with size 1.
func DecodeRune(s string) (rune, int) {
	r, size := utf8.DecodeRuneInString(s)
	if r != utf8.RuneError || size != 1 {
		return r, size
	}
	if len(s) >= 3 && s[0] == 0xED && s[1] >= 0xA0 && s[1] <= 0xBF && s[2] >= 0x80 && s[2] <= 0xBF {
		return rune(s[0]&0x0F)<<12 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), 3
	}
	return r, size
}

// AppendRune appends the generalized UTF-8 encoding of r to b.
func AppendRune(b []byte, r rune) []byte {
	if IsSurrogate(r) {
		return append(b, 0xED, byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
	}
	return utf8.AppendRune(b, r)
}
