package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/rhino-sub008/vm"
)

func TestScriptStore(t *testing.T) {
	fy := newFactory(0)
	cx, exit := fy.Enter()
	defer exit()

	store := vm.NewScriptStore()
	src := "var z = 40; z + 2"
	key := vm.HashSource(src, "a.js", cx.LanguageVersion(), 0, false)
	require.Nil(t, store.Lookup(key))

	e, err := cx.CompileString(src, "a.js")
	require.NoError(t, err)
	store.Add(key, e)
	store.Add([32]byte{}, e)
	assert.Equal(t, 1, store.Len())
	assert.Same(t, e, store.Lookup(key))
	assert.Equal(t, [][32]byte{key}, store.Keys())

	v, err := cx.Exec(store.Lookup(key), nil)
	require.NoError(t, err)
	assert.Equal(t, vm.Int(42), v)
}

func TestHashSourceCoversOptions(t *testing.T) {
	base := vm.HashSource("x", "a.js", vm.VersionDefault, 0, false)
	variants := [][32]byte{
		vm.HashSource("y", "a.js", vm.VersionDefault, 0, false),
		vm.HashSource("x", "b.js", vm.VersionDefault, 0, false),
		vm.HashSource("x", "a.js", vm.Version180, 0, false),
		vm.HashSource("x", "a.js", vm.VersionDefault, 9, false),
		vm.HashSource("x", "a.js", vm.VersionDefault, 0, true),
	}
	for i, h := range variants {
		assert.NotEqual(t, base, h, "variant %d", i)
	}
	assert.Equal(t, base, vm.HashSource("x", "a.js", vm.VersionDefault, 0, false))
}

func TestExecutableSharedBetweenContexts(t *testing.T) {
	fy := newFactory(9)
	a, exitA := fy.Enter()
	e, err := a.CompileString("var n = (typeof n == 'number' ? n : 0) + 1; n", "shared.js")
	require.NoError(t, err)
	for i := 1; i <= 2; i++ {
		v, err := a.Exec(e, nil)
		require.NoError(t, err)
		assert.Equal(t, vm.Int(i), v)
	}
	exitA()

	b, exitB := fy.Enter()
	defer exitB()
	v, err := b.Exec(e, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.Int(1), v, "globals leaked between Contexts")
}

func TestFeedbackCaches(t *testing.T) {
	src := "var o = {k: 2};\nfunction add(a, b) { return a + b; }\nvar s = 0;\nfor (var i = 0; i < 50; i++) { s = add(s, o.k); }\ns + ('' + 1)"
	fy := newFactory(9)
	cx, exit := fy.Enter()
	defer exit()

	e, err := cx.CompileString(src, "ic.js")
	require.NoError(t, err)
	code, ok := e.(*vm.Code)
	require.True(t, ok)
	v, err := cx.Exec(code, nil)
	require.NoError(t, err)
	assert.Equal(t, "1001", vm.ToString(v).String())

	st := cx.CacheStats(code)
	assert.Greater(t, st.PropertyHits, uint64(0))
	assert.Greater(t, st.CallHits, uint64(0))

	// unoptimized code never allocates feedback
	require.NoError(t, cx.SetOptimizationLevel(0))
	e0, err := cx.CompileString(src, "ic.js")
	require.NoError(t, err)
	_, err = cx.Exec(e0, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.CacheStats{}, cx.CacheStats(e0.(*vm.Code)))
}
