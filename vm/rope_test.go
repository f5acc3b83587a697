package vm

import (
	"strings"
	"testing"
)

func TestRopeConcatIsLazy(t *testing.T) {
	a, b := NewString("foo"), NewString("bar")
	s := Concat(a, b)
	if s.IsFlat() {
		t.Fatal("concatenation flattened eagerly")
	}
	if s.Len() != 6 {
		t.Errorf("Len = %d, want 6", s.Len())
	}
	if s.String() != "foobar" {
		t.Errorf("String = %q", s.String())
	}
	if !s.IsFlat() {
		t.Error("String did not flatten the node")
	}
}

func TestRopeEmptyOperands(t *testing.T) {
	a := NewString("x")
	if Concat(a, NewString("")) != a || Concat(NewString(""), a) != a {
		t.Error("concatenation with the empty string allocated a node")
	}
}

func TestRopeDeepChain(t *testing.T) {
	s := NewString("")
	for i := 0; i < 100000; i++ {
		s = Concat(s, NewString("ab"))
	}
	if s.Len() != 200000 {
		t.Fatalf("Len = %d", s.Len())
	}
	if got := s.String(); got != strings.Repeat("ab", 100000) {
		t.Errorf("flattened text has length %d", len(got))
	}
	if s.At(199999) != 'b' {
		t.Errorf("At(last) = %c", s.At(199999))
	}
}

func TestRopeSurrogates(t *testing.T) {
	hi := stringFromUnits([]uint16{0xD83D})
	lo := stringFromUnits([]uint16{0xDE00})
	if hi.Len() != 1 || lo.Len() != 1 {
		t.Fatalf("lone surrogate lengths %d, %d", hi.Len(), lo.Len())
	}
	pair := Concat(hi, lo)
	if pair.String() != "\U0001F600" {
		t.Errorf("joined pair = %q", pair.String())
	}
	if pair.Len() != 2 || pair.At(0) != 0xD83D || pair.At(1) != 0xDE00 {
		t.Errorf("units = %x", pair.Units())
	}
	if !pair.Equals(NewString("\U0001F600")) {
		t.Error("joined pair differs from the literal")
	}
}

func TestRopeCompareAndSearch(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"ab", "ab", 0},
		{"ab", "abc", -1},
		{"￿", "\U00010000", 1}, // code unit order, not code point order
	}
	for _, tt := range tests {
		if got := NewString(tt.a).Compare(NewString(tt.b)); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}

	s := Concat(NewString("hello "), NewString("world hello"))
	if i := s.IndexOf(NewString("hello"), 1); i != 12 {
		t.Errorf("IndexOf = %d, want 12", i)
	}
	if i := s.LastIndexOf(NewString("hello"), s.Len()); i != 12 {
		t.Errorf("LastIndexOf = %d, want 12", i)
	}
	if sub := s.Substring(6, 11).String(); sub != "world" {
		t.Errorf("Substring = %q", sub)
	}
}
