// Package adapter builds script-backed implementations of abstract host
// types. A host type declares methods, a supertype and implemented
// interfaces; an Instance binds script functions to the flattened method
// set and dispatches calls from Go into script code.
package adapter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/tliron/commonlog"

	"github.com/mozilla/rhino-sub008/vm"
)

var log = commonlog.GetLogger("rhino.adapter")

// MethodFunc is a host implementation of a method. self is the adapter
// instance the method was invoked on.
type MethodFunc func(cx *vm.Context, self *Instance, args []vm.Value) (vm.Value, error)

// Signature describes one method of a host type.
type Signature struct {
	Name   string
	Params []string // parameter type names
	Result string   // result type name; "" or "void" for none

	// Default is the implementation inherited by adapters that do not
	// override the method. A method without one is abstract.
	Default MethodFunc

	// Declarer is the name of the type that declares the method. Flatten
	// fills it in.
	Declarer string
}

// Abstract reports whether the method has no default implementation.
func (s Signature) Abstract() bool { return s.Default == nil }

// String renders the signature as "Declarer.name(p1, p2) result".
func (s Signature) String() string {
	var b strings.Builder
	if s.Declarer != "" {
		b.WriteString(s.Declarer)
		b.WriteByte('.')
	}
	b.WriteString(s.Name)
	b.WriteByte('(')
	b.WriteString(strings.Join(s.Params, ", "))
	b.WriteByte(')')
	if s.Result != "" && s.Result != "void" {
		b.WriteByte(' ')
		b.WriteString(s.Result)
	}
	return b.String()
}

func (s Signature) sameShape(o Signature) bool {
	if len(s.Params) != len(o.Params) || s.Result != o.Result {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

// HostType describes an abstract host class or interface.
type HostType struct {
	Name       string
	Interface  bool
	Methods    []Signature
	Super      *HostType
	Interfaces []*HostType
}

// ---------------------------------------------------------------------------
// Flattening
// ---------------------------------------------------------------------------

// MethodTable is the flattened method set of a host type: every method
// declared by the type, its supertypes and every transitively implemented
// interface, keyed by name.
type MethodTable struct {
	Type    *HostType
	methods map[string]Signature
	order   []string
}

// Lookup returns the signature of name.
func (mt *MethodTable) Lookup(name string) (Signature, bool) {
	s, ok := mt.methods[name]
	return s, ok
}

// Names returns the method names in declaration order: the type's own
// methods first, then the supertype chain, then interfaces depth first.
func (mt *MethodTable) Names() []string {
	return append([]string(nil), mt.order...)
}

// Len returns the number of methods.
func (mt *MethodTable) Len() int { return len(mt.order) }

// Abstract returns the names of methods without a default implementation.
func (mt *MethodTable) Abstract() []string {
	var out []string
	for _, n := range mt.order {
		if mt.methods[n].Abstract() {
			out = append(out, n)
		}
	}
	return out
}

var tables sync.Map // *HostType -> cachedTable

type cachedTable struct {
	shape string
	table *MethodTable
}

// Flatten returns the method table of t. A method declared by a subtype
// replaces the same method of its supertypes and interfaces; a default
// implementation found anywhere satisfies an abstract declaration of the
// same shape. Declarations of one name with different parameter or result
// types are reported as errors.
//
// Tables are cached per type and reused while the type graph is unchanged;
// editing a HostType after use yields a fresh table on the next call.
func Flatten(t *HostType) (*MethodTable, error) {
	if t == nil {
		return nil, fmt.Errorf("adapter: nil host type")
	}
	shape := shapeOf(t)
	if c, ok := tables.Load(t); ok && c.(cachedTable).shape == shape {
		return c.(cachedTable).table, nil
	}

	f := flattener{
		table:   &MethodTable{Type: t, methods: make(map[string]Signature)},
		visited: make(map[*HostType]bool),
		active:  make(map[*HostType]bool),
	}
	f.walk(t)
	if err := f.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	log.Debugf("flattened %s: %d methods", t.Name, f.table.Len())
	tables.Store(t, cachedTable{shape: shape, table: f.table})
	return f.table, nil
}

// shapeOf renders everything Flatten reads from the type graph of t.
func shapeOf(t *HostType) string {
	var b strings.Builder
	seen := make(map[*HostType]int)
	var walk func(t *HostType)
	walk = func(t *HostType) {
		if t == nil {
			b.WriteString("-;")
			return
		}
		if n, ok := seen[t]; ok {
			fmt.Fprintf(&b, "@%d;", n)
			return
		}
		seen[t] = len(seen)
		fmt.Fprintf(&b, "%s/%t{", t.Name, t.Interface)
		for _, m := range t.Methods {
			fmt.Fprintf(&b, "%s(%s)%s:%p;", m.Name, strings.Join(m.Params, ","), m.Result, m.Default)
		}
		b.WriteString("}")
		if t.Super != nil {
			b.WriteString("^")
			walk(t.Super)
		}
		for _, it := range t.Interfaces {
			b.WriteString("+")
			walk(it)
		}
	}
	walk(t)
	return b.String()
}

type flattener struct {
	table   *MethodTable
	visited map[*HostType]bool
	active  map[*HostType]bool
	errs    *multierror.Error
}

func (f *flattener) walk(t *HostType) {
	if f.active[t] {
		f.errs = multierror.Append(f.errs, fmt.Errorf("type %s inherits from itself", t.Name))
		return
	}
	if f.visited[t] {
		return
	}
	f.visited[t] = true
	f.active[t] = true
	defer delete(f.active, t)

	for _, m := range t.Methods {
		m.Declarer = t.Name
		f.add(m)
	}
	if t.Super != nil {
		f.walk(t.Super)
	}
	for _, it := range t.Interfaces {
		f.walk(it)
	}
}

func (f *flattener) add(m Signature) {
	prev, ok := f.table.methods[m.Name]
	if !ok {
		f.table.methods[m.Name] = m
		f.table.order = append(f.table.order, m.Name)
		return
	}
	if !prev.sameShape(m) {
		f.errs = multierror.Append(f.errs, fmt.Errorf("conflicting declarations of %s: %s and %s", m.Name, prev, m))
		return
	}
	if prev.Abstract() && !m.Abstract() {
		// an inherited default satisfies the nearer abstract declaration
		prev.Default = m.Default
		f.table.methods[m.Name] = prev
	}
}
