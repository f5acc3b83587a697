package vm

import (
	"math/rand/v2"

	metro "github.com/dgryski/go-metro"
)

// ---------------------------------------------------------------------------
// PropTable: ordered, flood-resistant property storage
// ---------------------------------------------------------------------------

// PropTable stores the own properties of an object in insertion order.
// Small tables are scanned linearly. Larger tables add an open-addressing
// index keyed by MetroHash with a per-table random seed, so an attacker
// cannot choose colliding keys in advance; if a probe sequence still
// grows past maxProbe the table picks a new seed and rebuilds the index.
type PropTable struct {
	entries []propEntry
	live    int

	index []int32 // entry index + 1; 0 is empty, -1 is a tombstone
	seed  uint64
	used  int // occupied index slots, tombstones included
}

type propEntry struct {
	key     string
	hash    uint64
	prop    Property
	deleted bool
}

const (
	linearLimit = 8
	maxProbe    = 16
)

// Len returns the number of live properties.
func (t *PropTable) Len() int {
	return t.live
}

func (t *PropTable) hash(key string) uint64 {
	return metro.Hash64Str(key, t.seed)
}

// find returns the entry index for key, or -1.
func (t *PropTable) find(key string) int {
	if t.index == nil {
		for i := range t.entries {
			e := &t.entries[i]
			if !e.deleted && e.key == key {
				return i
			}
		}
		return -1
	}
	h := t.hash(key)
	mask := uint64(len(t.index) - 1)
	for i, probes := h&mask, 0; probes < len(t.index); i, probes = (i+1)&mask, probes+1 {
		slot := t.index[i]
		if slot == 0 {
			return -1
		}
		if slot > 0 {
			e := &t.entries[slot-1]
			if e.hash == h && e.key == key {
				return int(slot - 1)
			}
		}
	}
	return -1
}

// Get returns the property stored under key.
func (t *PropTable) Get(key string) (Property, bool) {
	if i := t.find(key); i >= 0 {
		return t.entries[i].prop, true
	}
	return Property{}, false
}

// ref returns a pointer to the stored property, valid until the next
// insertion or deletion.
func (t *PropTable) ref(key string) *Property {
	if i := t.find(key); i >= 0 {
		return &t.entries[i].prop
	}
	return nil
}

// at returns the property of entry i, or nil when the entry is gone.
// Entry indices (the result of find) stay valid until the next insertion
// or deletion; property caches rely on the owner's shape to know that.
func (t *PropTable) at(i int) *Property {
	if i < 0 || i >= len(t.entries) || t.entries[i].deleted {
		return nil
	}
	return &t.entries[i].prop
}

// Put stores p under key, appending new keys at the end of the order.
// It reports whether the key was added.
func (t *PropTable) Put(key string, p Property) bool {
	if i := t.find(key); i >= 0 {
		t.entries[i].prop = p
		return false
	}
	t.entries = append(t.entries, propEntry{key: key, prop: p})
	t.live++
	n := len(t.entries) - 1
	if t.index == nil {
		if len(t.entries) > linearLimit {
			t.rebuild(false)
		}
		return true
	}
	t.entries[n].hash = t.hash(key)
	if (t.used+1)*4 > len(t.index)*3 {
		t.rebuild(false)
		return true
	}
	if !t.insert(n) {
		t.rebuild(true)
	}
	return true
}

// insert places entry n in the index, reporting false when the probe
// sequence exceeds maxProbe.
func (t *PropTable) insert(n int) bool {
	mask := uint64(len(t.index) - 1)
	i := t.entries[n].hash & mask
	for probes := 0; ; probes++ {
		if t.index[i] <= 0 {
			if t.index[i] == 0 {
				t.used++
			}
			t.index[i] = int32(n + 1)
			return probes <= maxProbe
		}
		i = (i + 1) & mask
	}
}

// rebuild compacts deleted entries and recreates the index, choosing a
// fresh seed when reseed is set or the table has no seed yet.
func (t *PropTable) rebuild(reseed bool) {
	if t.live < len(t.entries) {
		live := make([]propEntry, 0, t.live)
		for _, e := range t.entries {
			if !e.deleted {
				live = append(live, e)
			}
		}
		t.entries = live
	}
	if len(t.entries) <= linearLimit {
		t.index = nil
		t.used = 0
		return
	}
	for attempt := 0; ; attempt++ {
		if reseed || t.index == nil || attempt > 0 {
			t.seed = rand.Uint64()
			for i := range t.entries {
				t.entries[i].hash = t.hash(t.entries[i].key)
			}
		}
		size := 16
		for size*3 < len(t.entries)*4*2 {
			size <<= 1
		}
		t.index = make([]int32, size)
		t.used = 0
		ok := true
		for i := range t.entries {
			if !t.insert(i) {
				ok = false
			}
		}
		if ok || attempt >= 3 {
			return
		}
	}
}

// Delete removes key and reports whether it was present.
func (t *PropTable) Delete(key string) bool {
	i := t.find(key)
	if i < 0 {
		return false
	}
	t.entries[i].deleted = true
	t.entries[i].prop = Property{}
	t.live--
	if t.index != nil {
		mask := uint64(len(t.index) - 1)
		for j := t.entries[i].hash & mask; ; j = (j + 1) & mask {
			if t.index[j] == int32(i+1) {
				t.index[j] = -1
				break
			}
		}
	}
	if t.live*2 < len(t.entries) || t.index == nil && t.live < len(t.entries) {
		t.rebuild(false)
	}
	return true
}

// Keys returns the live keys in insertion order.
func (t *PropTable) Keys() []string {
	keys := make([]string, 0, t.live)
	for _, e := range t.entries {
		if !e.deleted {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Each calls fn for every live entry in insertion order, stopping when fn
// returns false.
func (t *PropTable) Each(fn func(key string, p *Property) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.deleted && !fn(e.key, &e.prop) {
			return
		}
	}
}
