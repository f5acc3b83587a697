package adapter

import (
	"fmt"
	"sync"

	"github.com/mozilla/rhino-sub008/vm"
)

// Registry names the host types script code may adapt.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*HostType
	base  map[string]map[string]MethodFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*HostType),
		base:  make(map[string]map[string]MethodFunc),
	}
}

// Register makes t available under its name. base, which may be nil,
// becomes the base implementation of every adapter built from script.
// The type is flattened immediately so that malformed hierarchies are
// reported here.
func (reg *Registry) Register(t *HostType, base map[string]MethodFunc) error {
	if _, err := Flatten(t); err != nil {
		return fmt.Errorf("register %s: %w", t.Name, err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, dup := reg.types[t.Name]; dup {
		return fmt.Errorf("register %s: type already registered", t.Name)
	}
	reg.types[t.Name] = t
	reg.base[t.Name] = base
	return nil
}

// Lookup returns the type registered under name.
func (reg *Registry) Lookup(name string) (*HostType, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	t, ok := reg.types[name]
	return t, ok
}

// Install adds the registry's Adapter constructor to the standard objects
// of every Context fy creates. Script code builds adapters with
//
//	new Adapter("TypeName", {method: function () { ... }})
//
// Safe standard objects do not get it.
func (reg *Registry) Install(fy *vm.Factory) {
	fy.AddHostInitializer(func(cx *vm.Context, global *vm.Object) error {
		build := func(cx *vm.Context, args []vm.Value, _ *vm.Object) (vm.Value, error) {
			return reg.construct(cx, args)
		}
		call := func(cx *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
			return reg.construct(cx, args)
		}
		ctor := vm.NewNativeConstructor(cx.Realm(), "Adapter", 2, call, build, nil)
		global.SetOwn("Adapter", ctor, vm.FlagsHidden)
		return nil
	})
}

func (reg *Registry) construct(cx *vm.Context, args []vm.Value) (vm.Value, error) {
	if len(args) < 2 {
		return nil, cx.NewError(vm.ErrorType, "Adapter requires a type name and an implementation object")
	}
	name := vm.ToString(args[0]).String()
	t, ok := reg.Lookup(name)
	if !ok {
		return nil, cx.NewError(vm.ErrorType, "unknown host type %s", name)
	}
	impl, ok := args[1].(*vm.Object)
	if !ok {
		return nil, cx.NewError(vm.ErrorType, "Adapter implementation must be an object")
	}

	methods := make(map[string]*vm.Object)
	for _, key := range impl.OwnKeys() {
		v, err := impl.Get(cx, key)
		if err != nil {
			return nil, err
		}
		fn, _ := v.(*vm.Object)
		methods[key] = fn
	}

	reg.mu.RLock()
	base := reg.base[name]
	reg.mu.RUnlock()
	inst, err := New(cx, t, methods, base)
	if err != nil {
		return nil, cx.NewError(vm.ErrorType, "%s", err.Error())
	}
	return inst.Object(), nil
}
