package vm

import (
	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Function objects
// ---------------------------------------------------------------------------

// NativeFunc implements a built-in or host function.
type NativeFunc func(cx *Context, this Value, args []Value) (Value, error)

// NativeCtor implements construction of a built-in. newTarget is nil when
// the constructor is called as a plain function.
type NativeCtor func(cx *Context, args []Value, newTarget *Object) (Value, error)

// funcData is the payload of function objects. Exactly one of native,
// ctor, code, tree or bound provides the behavior; native and ctor may
// both be set for built-in constructors.
type funcData struct {
	name   string
	length int

	native NativeFunc
	ctor   NativeCtor
	code   *Code
	tree   *treeFunc
	bound  *boundFunc

	scope *Scope // captured scope chain of script functions
	this  Value  // lexical this of arrow functions

	strict        bool
	arrow         bool
	constructible bool
	protoDone     bool
	realm         *Realm
	source        string
}

type boundFunc struct {
	target *Object
	this   Value
	args   []Value
}

// treeFunc is the body of a function created by the AST interpreter.
type treeFunc struct {
	lit    *ast.FunctionLiteral
	script *TreeScript
}

func newFunctionObject(r *Realm, f *funcData) *Object {
	o := NewObject(r.FunctionPrototype, "Function")
	o.kind = KindFunction
	f.realm = r
	o.fn = f
	o.props.Put("length", DataProperty(Int(f.length), FlagConfigurable))
	o.props.Put("name", DataProperty(NewString(f.name), FlagConfigurable))
	return o
}

// NewNativeFunction creates a non-constructible built-in function.
func NewNativeFunction(r *Realm, name string, length int, fn NativeFunc) *Object {
	return newFunctionObject(r, &funcData{name: name, length: length, native: fn, protoDone: true})
}

// NewNativeConstructor creates a constructible built-in whose prototype
// property is proto. call handles plain calls; when nil, ctor is called
// with a nil newTarget.
func NewNativeConstructor(r *Realm, name string, length int, call NativeFunc, ctor NativeCtor, proto *Object) *Object {
	o := newFunctionObject(r, &funcData{name: name, length: length, native: call, ctor: ctor, constructible: true, protoDone: true})
	if proto != nil {
		o.props.Put("prototype", DataProperty(proto, 0))
		proto.props.Put("constructor", DataProperty(o, FlagsHidden))
	}
	return o
}

// newCodeFunction instantiates a compiled function template.
func (cx *Context) newCodeFunction(code *Code, scope *Scope, this Value) *Object {
	f := &funcData{
		name:          code.Name,
		length:        code.Length,
		code:          code,
		scope:         scope,
		strict:        code.Strict,
		arrow:         code.Arrow,
		constructible: !code.Arrow && !code.Accessor,
		source:        code.Source,
	}
	if code.Arrow {
		f.this = this
	}
	return newFunctionObject(scope.Realm(), f)
}

// newTreeFunction creates a function object for the AST interpreter.
func (cx *Context) newTreeFunction(script *TreeScript, lit *ast.FunctionLiteral, scope *Scope, this Value) *Object {
	name := ""
	if lit.Name != nil {
		name = lit.Name.Name
	}
	arrow := lit.Kind == ast.ArrowFunction
	accessor := lit.Kind == ast.GetterFunction || lit.Kind == ast.SetterFunction
	f := &funcData{
		name:          name,
		length:        len(lit.Params),
		tree:          &treeFunc{lit: lit, script: script},
		scope:         scope,
		strict:        lit.Info.Strict,
		arrow:         arrow,
		constructible: !arrow && !accessor,
		source:        lit.Source,
	}
	if arrow {
		f.this = this
	}
	return newFunctionObject(scope.Realm(), f)
}

// ensurePrototype materializes the prototype property of a script
// function on first access.
func (o *Object) ensurePrototype() {
	f := o.fn
	if f == nil || f.protoDone {
		return
	}
	f.protoDone = true
	if !f.constructible || f.bound != nil {
		return
	}
	proto := NewObject(f.realm.ObjectPrototype, "Object")
	proto.props.Put("constructor", DataProperty(o, FlagsHidden))
	o.props.Put("prototype", DataProperty(proto, FlagWritable))
	o.touch()
}

// FunctionName returns the name of a function object.
func (o *Object) FunctionName() string {
	if o.fn == nil {
		return ""
	}
	return o.fn.name
}

// IsStrictFunction reports whether o is a strict-mode script function.
func (o *Object) IsStrictFunction() bool {
	return o.fn != nil && o.fn.strict
}

// bindFunction implements Function.prototype.bind.
func bindFunction(r *Realm, target *Object, this Value, args []Value) *Object {
	length := 0
	if n, ok := target.props.Get("length"); ok {
		if num, ok := n.Value.(Number); ok {
			length = int(num) - len(args)
		}
	}
	if length < 0 {
		length = 0
	}
	f := &funcData{
		name:          "bound " + target.fn.name,
		length:        length,
		bound:         &boundFunc{target: target, this: this, args: append([]Value(nil), args...)},
		constructible: target.fn.constructible,
		protoDone:     true,
	}
	return newFunctionObject(r, f)
}

// functionSource renders a function for Function.prototype.toString.
func functionSource(o *Object) string {
	if o.fn.source != "" {
		return o.fn.source
	}
	return "function " + o.fn.name + "() {\n    [native code]\n}"
}
