package vm

// Inline caching for property access, arithmetic and calls
//
// Optimized code (level 1 and up) owns one feedback record per Context.
// Every property access, arithmetic/comparison and call instruction has a
// site index into it. Caches are pure accelerators: each guard failure
// falls back to the generic path, which is the only place results are
// computed for uncached cases.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single shape cached
	CachePolymorphic                   // 2-4 entries in PIC
	CacheMegamorphic                   // Too many shapes, use full lookup
)

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 4

// propCacheEntry remembers where a key was found for one receiver shape.
// holder is nil for own properties, otherwise the receiver's prototype.
type propCacheEntry struct {
	shape       uint64
	holder      *Object
	holderShape uint64
	index       int
}

// PropertyCache is the cache of one property access site.
type PropertyCache struct {
	State   CacheState
	Entries [MaxPICEntries]propCacheEntry
	Count   int

	// Statistics for profiling
	Hits   uint64
	Misses uint64
}

// lookup returns the cached data property for receiver o.
func (ic *PropertyCache) lookup(o *Object) *Property {
	for i := 0; i < ic.Count; i++ {
		e := &ic.Entries[i]
		if e.shape != o.shape {
			continue
		}
		if e.holder == nil {
			if p := o.props.at(e.index); p != nil {
				ic.Hits++
				return p
			}
			break
		}
		if o.proto == e.holder && e.holder.shape == e.holderShape {
			if p := e.holder.props.at(e.index); p != nil {
				ic.Hits++
				return p
			}
		}
		break
	}
	ic.Misses++
	return nil
}

// update records an entry, upgrading the cache state.
func (ic *PropertyCache) update(e propCacheEntry) {
	switch ic.State {
	case CacheMegamorphic:
		return
	case CacheEmpty:
		ic.State = CacheMonomorphic
	default:
		if ic.Count == MaxPICEntries {
			ic.State = CacheMegamorphic
			ic.Count = 0
			return
		}
		ic.State = CachePolymorphic
	}
	ic.Entries[ic.Count] = e
	ic.Count++
}

// cacheableKind reports whether objects of kind k keep every property of
// interest in their property table.
func cacheableKind(o *Object, key string) bool {
	switch o.kind {
	case KindPlain, KindFunction, KindError, KindRegExp:
		return true
	case KindArray:
		if key == "length" {
			return false
		}
		_, isIndex := arrayIndex(key)
		return !isIndex
	}
	return false
}

// fillGet records where key was found for receiver o after a generic
// lookup. Only own and direct prototype data properties are cached.
func (ic *PropertyCache) fillGet(o *Object, key string) {
	if ic.State == CacheMegamorphic || key == "__proto__" || !cacheableKind(o, key) {
		return
	}
	if i := o.props.find(key); i >= 0 {
		if p := o.props.at(i); !p.IsAccessor() {
			ic.update(propCacheEntry{shape: o.shape, index: i})
		}
		return
	}
	h := o.proto
	if h == nil || !cacheableKind(h, key) {
		return
	}
	if i := h.props.find(key); i >= 0 {
		if p := h.props.at(i); !p.IsAccessor() {
			ic.update(propCacheEntry{shape: o.shape, holder: h, holderShape: h.shape, index: i})
		}
	}
}

// fillSet records an own writable data property of o as a store target.
func (ic *PropertyCache) fillSet(o *Object, key string) {
	if ic.State == CacheMegamorphic || key == "__proto__" || o.sealed || !cacheableKind(o, key) {
		return
	}
	if i := o.props.find(key); i >= 0 {
		if p := o.props.at(i); !p.IsAccessor() && p.Writable() {
			ic.update(propCacheEntry{shape: o.shape, index: i})
		}
	}
}

// ---------------------------------------------------------------------------
// Arithmetic and call feedback
// ---------------------------------------------------------------------------

// ArithState records the operand types seen by an arithmetic or
// comparison site.
type ArithState uint8

const (
	ArithUninitialized ArithState = iota
	ArithNumber                   // both operands numbers so far
	ArithGeneric
)

// ArithSite is the feedback of one arithmetic or comparison instruction.
type ArithSite struct {
	State  ArithState
	Deopts int
}

// observe updates the site after the operands were inspected.
func (s *ArithSite) observe(numbers bool) {
	switch s.State {
	case ArithUninitialized:
		if numbers {
			s.State = ArithNumber
		} else {
			s.State = ArithGeneric
		}
	case ArithNumber:
		if !numbers {
			s.State = ArithGeneric
			s.Deopts++
		}
	}
}

// CallSite caches the last callee of a call instruction.
type CallSite struct {
	Target *Object
	Hits   uint64
	Misses uint64
}

// feedback holds the caches of one Code in one Context.
type feedback struct {
	arith []ArithSite
	props []PropertyCache
	calls []CallSite
}

// feedbackFor returns the feedback of code, creating it on first use.
func (cx *Context) feedbackFor(code *Code) *feedback {
	if !code.Optimized {
		return nil
	}
	if fb, ok := cx.caches[code]; ok {
		return fb
	}
	if cx.caches == nil {
		cx.caches = make(map[*Code]*feedback)
	}
	fb := &feedback{
		arith: make([]ArithSite, code.ArithSites),
		props: make([]PropertyCache, code.PropSites),
		calls: make([]CallSite, code.CallSites),
	}
	cx.caches[code] = fb
	return fb
}

// CacheStats summarizes the feedback collected for code in cx.
type CacheStats struct {
	PropertyHits   uint64
	PropertyMisses uint64
	Deopts         int
	CallHits       uint64
}

// CacheStats returns the feedback statistics of code, including nested
// functions.
func (cx *Context) CacheStats(code *Code) CacheStats {
	var st CacheStats
	var walk func(c *Code)
	walk = func(c *Code) {
		if fb, ok := cx.caches[c]; ok {
			for i := range fb.props {
				st.PropertyHits += fb.props[i].Hits
				st.PropertyMisses += fb.props[i].Misses
			}
			for i := range fb.arith {
				st.Deopts += fb.arith[i].Deopts
			}
			for i := range fb.calls {
				st.CallHits += fb.calls[i].Hits
			}
		}
		for _, f := range c.Functions {
			walk(f)
		}
	}
	walk(code)
	return st
}
