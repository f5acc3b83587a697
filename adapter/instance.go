package adapter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/mozilla/rhino-sub008/vm"
)

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 2

// Instance is a script-backed implementation of a host type. It is also
// a script object of kind vm.KindAdapter whose properties are the host
// methods, so script code can call them like any other method.
type Instance struct {
	table   *MethodTable
	methods map[string]*vm.Object // script overrides
	base    map[string]MethodFunc
	object  *vm.Object
	funcs   map[string]*vm.Object // script-visible method wrappers
}

// New builds an adapter for t. methods maps method names to script
// functions; base supplies host implementations for methods the mapping
// leaves out and may be nil. Every misconfiguration is reported at once:
// unknown method names, non-callable values and abstract methods with no
// implementation.
func New(cx *vm.Context, t *HostType, methods map[string]*vm.Object, base map[string]MethodFunc) (*Instance, error) {
	table, err := Flatten(t)
	if err != nil {
		return nil, fmt.Errorf("adapter for %s: %w", t.Name, err)
	}

	var errs *multierror.Error
	for _, name := range sortedKeys(methods) {
		if _, ok := table.Lookup(name); !ok {
			errs = multierror.Append(errs, unknownMethod(table, name))
			continue
		}
		if fn := methods[name]; fn == nil || !vm.IsCallable(fn) {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s: value is not a function", t.Name, name))
		}
	}
	for _, name := range sortedKeys(base) {
		if _, ok := table.Lookup(name); !ok {
			errs = multierror.Append(errs, unknownMethod(table, name))
		}
	}
	for _, name := range table.Abstract() {
		if methods[name] == nil && base[name] == nil {
			sig, _ := table.Lookup(name)
			errs = multierror.Append(errs, fmt.Errorf("missing implementation of abstract method %s", sig))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("adapter for %s: %w", t.Name, err)
	}

	inst := &Instance{
		table:   table,
		methods: methods,
		base:    base,
		funcs:   make(map[string]*vm.Object, table.Len()),
	}
	r := cx.Realm()
	var proto *vm.Object
	if r != nil {
		proto = r.ObjectPrototype
	}
	inst.object = vm.NewHostObject(proto, t.Name, vm.KindAdapter, inst)
	if r != nil {
		for _, name := range table.order {
			inst.funcs[name] = inst.scriptMethod(r, name)
		}
	}
	log.Debugf("adapter for %s: %d script methods", t.Name, len(methods))
	return inst, nil
}

func unknownMethod(table *MethodTable, name string) error {
	if hint := closestName(name, table.order); hint != "" {
		return fmt.Errorf("%s has no method %q (did you mean %q?)", table.Type.Name, name, hint)
	}
	return fmt.Errorf("%s has no method %q", table.Type.Name, name)
}

// closestName returns the candidate with the smallest edit distance to
// name, ignoring case, or "" when none is close enough.
func closestName(name string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	slices.Sort(sorted)

	match, closest := "", maxSuggestionDistance+1
	for _, c := range sorted {
		d := levenshtein.DistanceForStrings(
			[]rune(strings.ToLower(name)),
			[]rune(strings.ToLower(c)),
			levenshtein.DefaultOptionsWithSub,
		)
		if d < closest {
			match, closest = c, d
		}
	}
	return match
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Type returns the adapted host type.
func (inst *Instance) Type() *HostType { return inst.table.Type }

// Object returns the script object of the instance.
func (inst *Instance) Object() *vm.Object { return inst.object }

// Signature returns the flattened signature of name, as declared by the
// type that introduced it.
func (inst *Instance) Signature(name string) (Signature, bool) {
	return inst.table.Lookup(name)
}

// Overrides reports whether a script function implements name.
func (inst *Instance) Overrides(name string) bool {
	return inst.methods[name] != nil
}

// Invoke calls method name with args: the script function when the
// mapping has one, otherwise the base implementation, otherwise the
// type's default. The number of arguments must match the signature, and
// the result is converted to the declared result type.
func (inst *Instance) Invoke(cx *vm.Context, name string, args ...vm.Value) (vm.Value, error) {
	sig, ok := inst.table.Lookup(name)
	if !ok {
		return nil, unknownMethod(inst.table, name)
	}
	if len(args) != len(sig.Params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", sig, len(sig.Params), len(args))
	}

	var (
		v   vm.Value
		err error
	)
	switch {
	case inst.methods[name] != nil:
		v, err = cx.Call(inst.methods[name], inst.object, args)
	case inst.base[name] != nil:
		v, err = inst.base[name](cx, inst, args)
	case sig.Default != nil:
		v, err = sig.Default(cx, inst, args)
	default:
		// New rejects adapters that leave an abstract method unimplemented
		return nil, fmt.Errorf("abstract method %s is not implemented", sig)
	}
	if err != nil {
		return nil, err
	}
	return convertResult(cx, sig.Result, v)
}

// convertResult coerces a script result to the declared host type.
func convertResult(cx *vm.Context, result string, v vm.Value) (vm.Value, error) {
	if v == nil {
		v = vm.Undefined
	}
	switch result {
	case "", "void":
		return vm.Undefined, nil
	case "boolean":
		return vm.BoolValue(vm.ToBoolean(v)), nil
	case "int", "long", "short", "byte":
		n, err := cx.ToNumber(v)
		if err != nil {
			return nil, err
		}
		return vm.Number(vm.ToInteger(n)), nil
	case "double", "float", "number":
		n, err := cx.ToNumber(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "string", "String":
		if vm.IsNullish(v) {
			return vm.Null, nil
		}
		s, err := cx.ToString(v)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return v, nil
}

// scriptMethod wraps name as a native function that forwards to Invoke,
// padding or truncating the arguments to the declared count.
func (inst *Instance) scriptMethod(r *vm.Realm, name string) *vm.Object {
	sig, _ := inst.table.Lookup(name)
	return vm.NewNativeFunction(r, name, len(sig.Params), func(cx *vm.Context, this vm.Value, args []vm.Value) (vm.Value, error) {
		fixed := make([]vm.Value, len(sig.Params))
		for i := range fixed {
			if i < len(args) {
				fixed[i] = args[i]
			} else {
				fixed[i] = vm.Undefined
			}
		}
		return inst.Invoke(cx, name, fixed...)
	})
}

// ---------------------------------------------------------------------------
// vm.HostObject
// ---------------------------------------------------------------------------

// HostGet implements vm.HostObject.
func (inst *Instance) HostGet(key string) (vm.Value, bool) {
	if f, ok := inst.funcs[key]; ok {
		return f, true
	}
	return nil, false
}

// HostSet implements vm.HostObject. Host methods cannot be replaced from
// script code; other keys become ordinary properties.
func (inst *Instance) HostSet(key string, v vm.Value) bool {
	_, ok := inst.funcs[key]
	return ok
}

// HostKeys implements vm.HostObject.
func (inst *Instance) HostKeys() []string {
	return inst.table.Names()
}

// FromObject returns the adapter instance behind a script object.
func FromObject(o *vm.Object) (*Instance, bool) {
	if o == nil || o.Kind() != vm.KindAdapter {
		return nil, false
	}
	inst, ok := o.Host().(*Instance)
	return inst, ok
}
