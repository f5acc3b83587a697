package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// ---------------------------------------------------------------------------
// ScriptStore: content-addressed index of compiled executables
// ---------------------------------------------------------------------------

// ScriptStore indexes compiled executables by the hash of the source and
// the options they were compiled with. Executables are immutable, so one
// store can serve every Context of a process.
type ScriptStore struct {
	mu      sync.RWMutex
	scripts map[[32]byte]Executable
}

// NewScriptStore creates an empty store.
func NewScriptStore() *ScriptStore {
	return &ScriptStore{scripts: make(map[[32]byte]Executable)}
}

// Add indexes e under key. A zero key is ignored.
func (s *ScriptStore) Add(key [32]byte, e Executable) {
	if key == ([32]byte{}) {
		return
	}
	s.mu.Lock()
	s.scripts[key] = e
	s.mu.Unlock()
}

// Lookup returns the executable stored under key, or nil.
func (s *ScriptStore) Lookup(key [32]byte) Executable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scripts[key]
}

// Len returns the number of indexed executables.
func (s *ScriptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scripts)
}

// Keys returns every key in the store.
func (s *ScriptStore) Keys() [][32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([][32]byte, 0, len(s.scripts))
	for k := range s.scripts {
		keys = append(keys, k)
	}
	return keys
}

// ---------------------------------------------------------------------------
// Source hashing
// ---------------------------------------------------------------------------

// HashSource computes the store key of a compilation: the source text,
// its name and every option that changes the compiled form.
func HashSource(source, sourceName string, version, level int, strict bool) [32]byte {
	var buf []byte

	writeString := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, s...)
	}
	writeInt := func(v int) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(int64(v)))
		buf = append(buf, b[:]...)
	}

	// Tag byte for the key format
	buf = append(buf, 0x01)
	writeString(sourceName)
	writeString(source)
	writeInt(version)
	writeInt(level)
	if strict {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return sha256.Sum256(buf)
}
