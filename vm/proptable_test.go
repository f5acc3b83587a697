package vm

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestPropTableInsertionOrder(t *testing.T) {
	var pt PropTable
	keys := []string{"z", "a", "m", "0", "b"}
	for i, k := range keys {
		if !pt.Put(k, DataProperty(Int(i), FlagsDefault)) {
			t.Errorf("Put(%q) reported an existing key", k)
		}
	}
	if pt.Put("a", DataProperty(Int(99), FlagsDefault)) {
		t.Error("Put of an existing key reported an addition")
	}
	if got := strings.Join(pt.Keys(), ","); got != "z,a,m,0,b" {
		t.Errorf("Keys = %s, want z,a,m,0,b", got)
	}
	p, ok := pt.Get("a")
	if !ok || p.Value != Int(99) {
		t.Errorf("Get(a) = %v, %v", p.Value, ok)
	}
}

func TestPropTableDeleteAndReinsert(t *testing.T) {
	var pt PropTable
	for _, k := range []string{"a", "b", "c"} {
		pt.Put(k, DataProperty(Str(k), FlagsDefault))
	}
	if !pt.Delete("b") {
		t.Fatal("Delete(b) = false")
	}
	if pt.Delete("b") {
		t.Error("second Delete(b) = true")
	}
	pt.Put("b", DataProperty(Str("again"), FlagsDefault))
	if got := strings.Join(pt.Keys(), ","); got != "a,c,b" {
		t.Errorf("Keys = %s, want a,c,b", got)
	}
	if pt.Len() != 3 {
		t.Errorf("Len = %d, want 3", pt.Len())
	}
}

func TestPropTableLarge(t *testing.T) {
	var pt PropTable
	const n = 2000
	for i := 0; i < n; i++ {
		pt.Put(fmt.Sprintf("k%d", i), DataProperty(Int(i), FlagsDefault))
	}
	if pt.index == nil {
		t.Fatal("large table has no hash index")
	}
	for i := 0; i < n; i += 2 {
		pt.Delete(fmt.Sprintf("k%d", i))
	}
	if pt.Len() != n/2 {
		t.Fatalf("Len = %d, want %d", pt.Len(), n/2)
	}
	for i := 0; i < n; i++ {
		p, ok := pt.Get(fmt.Sprintf("k%d", i))
		if ok != (i%2 == 1) {
			t.Fatalf("Get(k%d) present = %v", i, ok)
		}
		if ok && p.Value != Int(i) {
			t.Fatalf("Get(k%d) = %v", i, p.Value)
		}
	}
	keys := pt.Keys()
	if keys[0] != "k1" || keys[len(keys)-1] != fmt.Sprintf("k%d", n-1) {
		t.Errorf("order after deletes: first %s last %s", keys[0], keys[len(keys)-1])
	}
}

func TestPropTableSeedsDiffer(t *testing.T) {
	var a, b PropTable
	for i := 0; i < 32; i++ {
		k := fmt.Sprintf("p%d", i)
		a.Put(k, DataProperty(Undefined, 0))
		b.Put(k, DataProperty(Undefined, 0))
	}
	if a.seed == b.seed {
		t.Error("two tables share a hash seed")
	}
}

func TestPropTableEachStops(t *testing.T) {
	var pt PropTable
	for _, k := range []string{"a", "b", "c"} {
		pt.Put(k, DataProperty(Undefined, 0))
	}
	var seen []string
	pt.Each(func(key string, p *Property) bool {
		seen = append(seen, key)
		return key != "b"
	})
	if strings.Join(seen, "") != "ab" {
		t.Errorf("Each visited %v", seen)
	}
}

// seededTable returns an indexed table whose hash seed is seed, as if an
// attacker had learned it.
func seededTable(t *testing.T, seed uint64) *PropTable {
	t.Helper()
	pt := &PropTable{}
	for i := 0; i <= linearLimit; i++ {
		pt.Put("base"+strconv.Itoa(i), DataProperty(Int(i), FlagsDefault))
	}
	pt.seed = seed
	for i := range pt.entries {
		pt.entries[i].hash = pt.hash(pt.entries[i].key)
	}
	pt.rebuild(false)
	if pt.index == nil || pt.seed != seed {
		t.Fatalf("table not indexed under seed %x", seed)
	}
	return pt
}

// collidingKeys returns n keys whose hashes under seed agree in the low
// bits, so they share one probe sequence in any index of up to 1<<bits
// slots.
func collidingKeys(seed uint64, bits uint, n int) []string {
	h := &PropTable{seed: seed}
	mask := uint64(1)<<bits - 1
	target := h.hash("flood0") & mask
	keys := make([]string, 0, n)
	for i := 0; len(keys) < n; i++ {
		k := "flood" + strconv.Itoa(i)
		if h.hash(k)&mask == target {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestPropTableReseedsOnCollisions(t *testing.T) {
	const seed = 0x5eed
	pt := seededTable(t, seed)
	keys := collidingKeys(seed, 12, 64)

	reseededAt := -1
	for i, k := range keys {
		pt.Put(k, DataProperty(Int(i), FlagsDefault))
		if reseededAt < 0 && pt.seed != seed {
			reseededAt = i
		}
	}
	if reseededAt < 0 {
		t.Fatal("colliding inserts never changed the seed")
	}
	if reseededAt > maxProbe+1 {
		t.Errorf("reseeded after %d colliding keys, want at most %d", reseededAt+1, maxProbe+2)
	}
	for i, k := range keys {
		p, ok := pt.Get(k)
		if !ok || p.Value != Int(i) {
			t.Fatalf("Get(%s) = %v, %v after reseeding", k, p.Value, ok)
		}
	}
	if got := pt.Keys(); got[linearLimit+1] != keys[0] || got[len(got)-1] != keys[len(keys)-1] {
		t.Errorf("insertion order lost: %v", got)
	}
}

func TestPropTableCollidingKeysCost(t *testing.T) {
	const (
		seed = 0xf100d
		n    = 1000
	)
	colliding := collidingKeys(seed, 12, n)
	random := make([]string, n)
	for i := range random {
		random[i] = fmt.Sprintf("r%x", rand.Uint64())
	}

	// best of several runs, to keep scheduler noise out of the ratio
	measure := func(keys []string) time.Duration {
		var best time.Duration
		for run := 0; run < 5; run++ {
			pt := seededTable(t, seed)
			start := time.Now()
			for i, k := range keys {
				pt.Put(k, DataProperty(Int(i), FlagsDefault))
			}
			for _, k := range keys {
				if _, ok := pt.Get(k); !ok {
					t.Fatalf("Get(%s) missing", k)
				}
			}
			if d := time.Since(start); run == 0 || d < best {
				best = d
			}
		}
		return best
	}

	baseline := measure(random)
	adversarial := measure(colliding)
	if adversarial > 10*baseline+time.Millisecond {
		t.Errorf("colliding keys took %v, random keys %v", adversarial, baseline)
	}
}
