package vm

import (
	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Scope: run-time frames of the scope chain
// ---------------------------------------------------------------------------

type frameKind uint8

const (
	frameDecl   frameKind = iota // slots laid out by the resolver
	frameWith                    // with statement object
	frameGlobal                  // global object plus global lexical bindings
)

// Scope is one frame of the scope chain. A function's frame links to the
// scope captured when the function was created, not to its caller.
type Scope struct {
	parent *Scope
	kind   frameKind
	info   *ast.ScopeInfo
	slots  []Value

	// ext holds bindings a sloppy direct eval adds to a function frame.
	ext *Object
	// object is the with object or the global object.
	object *Object

	lexical map[string]*lexicalCell // global let/const
	realm   *Realm                  // global frames
}

// lexicalCell is a global let or const binding.
type lexicalCell struct {
	value Value // hole until initialized
	kind  ast.DeclKind
}

// NewGlobalScope creates the root frame for a global object.
func NewGlobalScope(realm *Realm, global *Object) *Scope {
	return &Scope{kind: frameGlobal, object: global, lexical: make(map[string]*lexicalCell), realm: realm}
}

// newFrame creates a declarative frame. Lexical slots start uninitialized.
func newFrame(parent *Scope, info *ast.ScopeInfo) *Scope {
	s := &Scope{parent: parent, kind: frameDecl, info: info, slots: make([]Value, len(info.Names))}
	for i, d := range info.Decls {
		if d.IsLexical() {
			s.slots[i] = hole
		} else {
			s.slots[i] = Undefined
		}
	}
	return s
}

func newWithScope(parent *Scope, obj *Object) *Scope {
	return &Scope{parent: parent, kind: frameWith, object: obj}
}

// clone copies a frame for a fresh loop iteration.
func (s *Scope) clone() *Scope {
	c := *s
	c.slots = append([]Value(nil), s.slots...)
	return &c
}

// Parent returns the enclosing frame.
func (s *Scope) Parent() *Scope { return s.parent }

// Global returns the global object of the chain.
func (s *Scope) Global() *Object { return s.globalScope().object }

// Realm returns the realm of the chain's global frame.
func (s *Scope) Realm() *Realm { return s.globalScope().realm }

func (s *Scope) globalScope() *Scope {
	for s.kind != frameGlobal {
		s = s.parent
	}
	return s
}

// up returns the frame depth hops outward.
func (s *Scope) up(depth int) *Scope {
	for ; depth > 0; depth-- {
		s = s.parent
	}
	return s
}

// Bindings returns the names and current values of a declarative frame,
// including eval-added bindings. Uninitialized lexical bindings are
// omitted.
func (s *Scope) Bindings() map[string]Value {
	out := make(map[string]Value)
	switch s.kind {
	case frameDecl:
		for i, name := range s.info.Names {
			if !isHole(s.slots[i]) {
				out[name] = s.slots[i]
			}
		}
		if s.ext != nil {
			s.ext.props.Each(func(k string, p *Property) bool {
				out[k] = p.Value
				return true
			})
		}
	case frameGlobal:
		for name, c := range s.lexical {
			if !isHole(c.value) {
				out[name] = c.value
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Dynamic name resolution
// ---------------------------------------------------------------------------

// nameRef is the result of looking a name up along the scope chain.
type nameRef struct {
	frame *Scope // declarative hit
	slot  int
	decl  ast.DeclKind
	obj   *Object      // object environment hit (with, eval extension, global)
	cell  *lexicalCell // global lexical hit
	with  bool         // obj is a with object: calls use it as this
}

func (r nameRef) found() bool {
	return r.frame != nil || r.obj != nil || r.cell != nil
}

func (s *Scope) resolve(name string) nameRef {
	for sc := s; sc != nil; sc = sc.parent {
		switch sc.kind {
		case frameWith:
			if sc.object.HasProperty(name) {
				return nameRef{obj: sc.object, with: true}
			}
		case frameDecl:
			if slot, ok := sc.info.Lookup(name); ok {
				return nameRef{frame: sc, slot: slot, decl: sc.info.Decls[slot]}
			}
			if sc.ext != nil && sc.ext.HasOwnProperty(name) {
				return nameRef{obj: sc.ext}
			}
		case frameGlobal:
			if c, ok := sc.lexical[name]; ok {
				return nameRef{cell: c, decl: c.kind}
			}
			if sc.object.HasProperty(name) {
				return nameRef{obj: sc.object}
			}
		}
	}
	return nameRef{}
}

// getName reads a dynamically resolved name. With typeofMode an
// unresolvable name yields undefined instead of a ReferenceError.
func (cx *Context) getName(s *Scope, name string, typeofMode bool) (Value, error) {
	ref := s.resolve(name)
	return cx.getRef(ref, name, typeofMode)
}

func (cx *Context) getRef(ref nameRef, name string, typeofMode bool) (Value, error) {
	switch {
	case ref.frame != nil:
		v := ref.frame.slots[ref.slot]
		if isHole(v) {
			return nil, cx.tdzError(name)
		}
		return v, nil
	case ref.cell != nil:
		if isHole(ref.cell.value) {
			return nil, cx.tdzError(name)
		}
		return ref.cell.value, nil
	case ref.obj != nil:
		return ref.obj.Get(cx, name)
	}
	if typeofMode {
		return Undefined, nil
	}
	return nil, cx.newError(ErrorReference, "\"%s\" is not defined.", name)
}

// getNameThis reads a name for a call, also returning the this value: the
// with object when the name was found in one, undefined otherwise.
func (cx *Context) getNameThis(s *Scope, name string) (Value, Value, error) {
	ref := s.resolve(name)
	v, err := cx.getRef(ref, name, false)
	if err != nil {
		return nil, nil, err
	}
	if ref.with {
		return v, ref.obj, nil
	}
	return v, Undefined, nil
}

// setName assigns a dynamically resolved name.
func (cx *Context) setName(s *Scope, name string, v Value, strict bool) error {
	ref := s.resolve(name)
	if ref.found() {
		return cx.setRef(ref, name, v, strict)
	}
	return cx.setUndeclared(s.globalScope().object, name, v, strict)
}

func (cx *Context) setRef(ref nameRef, name string, v Value, strict bool) error {
	switch {
	case ref.frame != nil:
		return cx.setSlot(ref.frame, ref.slot, ref.decl, name, v, strict)
	case ref.cell != nil:
		if isHole(ref.cell.value) {
			return cx.tdzError(name)
		}
		if ref.cell.kind == ast.DeclConst {
			return cx.constError(name)
		}
		ref.cell.value = v
		return nil
	}
	return ref.obj.Set(cx, name, v, ref.obj, strict)
}

// setSlot assigns a frame slot, enforcing const, TDZ and the read-only
// name of a function expression.
func (cx *Context) setSlot(frame *Scope, slot int, decl ast.DeclKind, name string, v Value, strict bool) error {
	if isHole(frame.slots[slot]) {
		return cx.tdzError(name)
	}
	switch decl {
	case ast.DeclConst:
		return cx.constError(name)
	case ast.DeclSelf:
		if strict {
			return cx.newError(ErrorType, "Assignment to read-only function name \"%s\".", name)
		}
		return nil
	}
	frame.slots[slot] = v
	return nil
}

// setUndeclared handles assignment to a name no scope declares: a
// ReferenceError in strict code, otherwise a new global property.
func (cx *Context) setUndeclared(global *Object, name string, v Value, strict bool) error {
	if strict {
		return cx.newError(ErrorReference, "Assignment to undefined \"%s\" in strict mode", name)
	}
	if cx.HasFeature(FeatureStrictVars) {
		if err := cx.warn("Assignment to undeclared variable %s", name); err != nil {
			return err
		}
	}
	return global.Set(cx, name, v, global, false)
}

// deleteName implements delete on an identifier.
func (cx *Context) deleteName(s *Scope, name string) (bool, error) {
	ref := s.resolve(name)
	switch {
	case ref.obj != nil:
		return ref.obj.Delete(cx, name, false)
	case ref.frame != nil, ref.cell != nil:
		return false, nil
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Global and eval declarations
// ---------------------------------------------------------------------------

// getGlobal reads a name that is not declared in any enclosing function.
func (cx *Context) getGlobal(g *Scope, name string, typeofMode bool) (Value, error) {
	if c, ok := g.lexical[name]; ok {
		if isHole(c.value) {
			return nil, cx.tdzError(name)
		}
		return c.value, nil
	}
	for obj := g.object; obj != nil; obj = obj.proto {
		if p, ok := obj.getOwn(name); ok {
			if p.IsAccessor() {
				if p.Getter == nil {
					return Undefined, nil
				}
				return cx.Call(p.Getter, g.object, nil)
			}
			return p.Value, nil
		}
	}
	if typeofMode {
		return Undefined, nil
	}
	return nil, cx.newError(ErrorReference, "\"%s\" is not defined.", name)
}

func (cx *Context) setGlobal(g *Scope, name string, v Value, strict bool) error {
	if c, ok := g.lexical[name]; ok {
		return cx.setRef(nameRef{cell: c}, name, v, strict)
	}
	if !g.object.HasProperty(name) {
		return cx.setUndeclared(g.object, name, v, strict)
	}
	return g.object.Set(cx, name, v, g.object, strict)
}

// varScope returns the frame receiving var declarations of sloppy eval
// code running in s: the nearest function frame, or the global frame.
func varScope(s *Scope) *Scope {
	for sc := s; sc != nil; sc = sc.parent {
		switch {
		case sc.kind == frameGlobal:
			return sc
		case sc.kind == frameDecl && sc.info.Kind == ast.ScopeFunction:
			return sc
		}
	}
	return nil
}

// declareVar creates a var binding on the variable object of s unless it
// already exists. Eval-created bindings are deletable.
func (cx *Context) declareVar(s *Scope, name string, eval bool) error {
	vs := varScope(s)
	if vs.kind == frameGlobal {
		if c, ok := vs.lexical[name]; ok {
			return cx.newError(ErrorSyntax, "redeclaration of %s %s.", c.kind, name)
		}
		if vs.object.HasOwnProperty(name) {
			return nil
		}
		flags := FlagWritable | FlagEnumerable
		if eval {
			flags |= FlagConfigurable
		}
		if !vs.object.DefineOwnProperty(name, DataDescriptor(Undefined, flags)) {
			return cx.newError(ErrorType, "Cannot declare variable %s.", name)
		}
		return nil
	}
	if _, ok := vs.info.Lookup(name); ok {
		return nil
	}
	if vs.ext == nil {
		vs.ext = NewObject(nil, "Object")
	}
	if !vs.ext.HasOwnProperty(name) {
		vs.ext.SetOwn(name, Undefined, FlagsDefault)
	}
	return nil
}

// declareFunction binds a hoisted function declaration on the variable
// object of s.
func (cx *Context) declareFunction(s *Scope, name string, fn *Object, eval bool) error {
	vs := varScope(s)
	if vs.kind == frameGlobal {
		if c, ok := vs.lexical[name]; ok {
			return cx.newError(ErrorSyntax, "redeclaration of %s %s.", c.kind, name)
		}
		flags := FlagWritable | FlagEnumerable
		if eval {
			flags |= FlagConfigurable
		}
		if p, ok := vs.object.GetOwnProperty(name); ok && !p.Configurable() {
			if p.IsAccessor() || !p.Writable() {
				return cx.newError(ErrorType, "Cannot redefine function %s.", name)
			}
			return vs.object.Set(cx, name, fn, vs.object, false)
		}
		if !vs.object.DefineOwnProperty(name, DataDescriptor(fn, flags)) {
			return cx.newError(ErrorType, "Cannot declare function %s.", name)
		}
		return nil
	}
	if slot, ok := vs.info.Lookup(name); ok {
		vs.slots[slot] = fn
		return nil
	}
	if vs.ext == nil {
		vs.ext = NewObject(nil, "Object")
	}
	vs.ext.SetOwn(name, fn, FlagsDefault)
	return nil
}

// declareLexical creates an uninitialized global let/const binding.
func (cx *Context) declareLexical(g *Scope, name string, kind ast.DeclKind) error {
	if c, ok := g.lexical[name]; ok {
		return cx.newError(ErrorSyntax, "redeclaration of %s %s.", c.kind, name)
	}
	if p, ok := g.object.GetOwnProperty(name); ok && !p.Configurable() {
		return cx.newError(ErrorSyntax, "redeclaration of var %s.", name)
	}
	g.lexical[name] = &lexicalCell{value: hole, kind: kind}
	return nil
}

// initLexical initializes a global let/const binding.
func (g *Scope) initLexical(name string, v Value) {
	if c, ok := g.lexical[name]; ok {
		c.value = v
	}
}

func (cx *Context) tdzError(name string) error {
	return cx.newError(ErrorReference, "Cannot access \"%s\" before initialization", name)
}

func (cx *Context) constError(name string) error {
	return cx.newError(ErrorType, "Assignment to constant \"%s\".", name)
}
