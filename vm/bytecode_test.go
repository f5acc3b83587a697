package vm

import (
	"strings"
	"testing"
)

func TestBytecodeBuilderJumps(t *testing.T) {
	b := NewBytecodeBuilder()
	top := b.NewLabel()
	end := b.NewLabel()
	b.Mark(top)
	b.Emit(OpInt8, -3)
	b.EmitJump(OpJump, end)
	b.EmitJump(OpJump, top)
	b.Mark(end)
	b.Emit(OpReturn)

	code := &Code{Bytecode: b.Bytes()}
	want := []string{
		"0000  INT8 -3",
		"0002  JUMP -> 0012",
		"0007  JUMP -> 0000",
		"0012  RETURN",
	}
	got := strings.Split(strings.TrimSpace(code.Disassemble()), "\n")[1:]
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("disassembly:\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestBytecodeBuilderPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(b *BytecodeBuilder)
	}{
		{"operand count", func(b *BytecodeBuilder) { b.Emit(OpInt8) }},
		{"jump through Emit", func(b *BytecodeBuilder) { b.EmitJump(OpReturn, b.NewLabel()) }},
		{"mark twice", func(b *BytecodeBuilder) {
			l := b.NewLabel()
			b.Mark(l)
			b.Mark(l)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			tt.fn(NewBytecodeBuilder())
		})
	}
}

func TestPropertyCacheStates(t *testing.T) {
	var ic PropertyCache
	objs := make([]*Object, MaxPICEntries+1)
	for i := range objs {
		o := NewObject(nil, "Object")
		// distinct shapes: each object gets a different first key
		o.SetOwn(string(rune('a'+i)), Int(i), FlagsDefault)
		o.SetOwn("k", Int(i), FlagsDefault)
		objs[i] = o
	}

	if ic.lookup(objs[0]) != nil {
		t.Fatal("empty cache hit")
	}
	ic.fillGet(objs[0], "k")
	if ic.State != CacheMonomorphic {
		t.Fatalf("state = %v, want monomorphic", ic.State)
	}
	if p := ic.lookup(objs[0]); p == nil || p.Value != Int(0) {
		t.Errorf("lookup = %v", p)
	}

	for _, o := range objs[1:MaxPICEntries] {
		ic.fillGet(o, "k")
	}
	if ic.State != CachePolymorphic || ic.Count != MaxPICEntries {
		t.Fatalf("state = %v count = %d, want polymorphic with %d", ic.State, ic.Count, MaxPICEntries)
	}
	ic.fillGet(objs[MaxPICEntries], "k")
	if ic.State != CacheMegamorphic {
		t.Errorf("state = %v, want megamorphic", ic.State)
	}
	if ic.lookup(objs[0]) != nil {
		t.Error("megamorphic cache hit")
	}
	if ic.Hits != 1 || ic.Misses != 2 {
		t.Errorf("hits = %d misses = %d", ic.Hits, ic.Misses)
	}
}

func TestPropertyCacheSkipsAccessors(t *testing.T) {
	var ic PropertyCache
	o := NewObject(nil, "Object")
	o.SetAccessor("g", nil, nil, FlagsDefault)
	ic.fillGet(o, "g")
	if ic.State != CacheEmpty {
		t.Errorf("accessor cached: state = %v", ic.State)
	}

	arr := NewArray(nil, []Value{Int(1)})
	ic.fillGet(arr, "0")
	ic.fillGet(arr, "length")
	if ic.State != CacheEmpty {
		t.Errorf("array element cached: state = %v", ic.State)
	}
}

func TestArithSiteDeopt(t *testing.T) {
	var s ArithSite
	s.observe(true)
	s.observe(true)
	if s.State != ArithNumber || s.Deopts != 0 {
		t.Fatalf("site = %+v", s)
	}
	s.observe(false)
	if s.State != ArithGeneric || s.Deopts != 1 {
		t.Errorf("site = %+v", s)
	}
	s.observe(true)
	if s.State != ArithGeneric {
		t.Error("generic site went back to numbers")
	}
}
