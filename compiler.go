package rhino

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/mozilla/rhino-sub008/compiler"
	"github.com/mozilla/rhino-sub008/vm"
)

var log = commonlog.GetLogger("rhino")

// Compiler is a vm.Compiler that remembers its compilations. Scripts
// compiled with the same source, name, language version, optimization
// level, strictness and feature set share one executable; concurrent
// requests for the same script compile it once.
type Compiler struct {
	// Strict compiles every script as strict code.
	Strict bool

	inner  compiler.Compiler
	store  *vm.ScriptStore
	flight singleflight.Group

	lookups atomic.Uint64
	misses  atomic.Uint64
}

// NewCompiler creates a caching compiler with an empty store.
func NewCompiler(strict bool) *Compiler {
	return &Compiler{Strict: strict, store: vm.NewScriptStore()}
}

// CompileStats counts cache lookups.
type CompileStats struct {
	Hits    uint64
	Misses  uint64
	Scripts int
}

// Stats returns the cache statistics.
func (c *Compiler) Stats() CompileStats {
	misses := c.misses.Load()
	return CompileStats{Hits: c.lookups.Load() - misses, Misses: misses, Scripts: c.store.Len()}
}

// Compile implements vm.Compiler. Eval code is compiled afresh on every
// call.
func (c *Compiler) Compile(cx *vm.Context, source string, opts vm.CompileOptions) (vm.Executable, error) {
	opts.Strict = opts.Strict || c.Strict
	if opts.Eval {
		return c.inner.Compile(cx, source, opts)
	}

	c.lookups.Add(1)
	key := vm.HashSource(source, featureKey(cx, opts.SourceName), cx.LanguageVersion(), opts.Level, opts.Strict)
	if e := c.store.Lookup(key); e != nil {
		return e, nil
	}

	v, err, _ := c.flight.Do(hex.EncodeToString(key[:]), func() (interface{}, error) {
		if e := c.store.Lookup(key); e != nil {
			return e, nil
		}
		c.misses.Add(1)
		e, err := c.inner.Compile(cx, source, opts)
		if err != nil {
			return nil, err
		}
		c.store.Add(key, e)
		log.Debugf("cached %s at level %d (%s)", opts.SourceName, opts.Level, e.Identity())
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(vm.Executable), nil
}

// featureKey folds the enabled features into the source name so that
// factories with different overrides never share an executable. The
// mask is the last '#'-separated field, so distinct names stay distinct.
func featureKey(cx *vm.Context, sourceName string) string {
	var mask uint64
	for i, f := range vm.Features() {
		if cx.HasFeature(f) {
			mask |= 1 << i
		}
	}
	return fmt.Sprintf("%s#%x", sourceName, mask)
}
