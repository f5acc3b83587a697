package vm

import (
	"github.com/mozilla/rhino-sub008/ast"
)

// argsData links an arguments object to the frame of its activation.
// mapped[i] is the frame slot aliased by index i, or -1.
type argsData struct {
	scope  *Scope
	mapped []int
}

func (a *argsData) mappedSlot(key string) (int, bool) {
	if a == nil || a.mapped == nil {
		return 0, false
	}
	idx, ok := arrayIndex(key)
	if !ok || int64(idx) >= int64(len(a.mapped)) || a.mapped[idx] < 0 {
		return 0, false
	}
	return a.mapped[idx], true
}

func (a *argsData) unmap(key string) {
	if a == nil || a.mapped == nil {
		return
	}
	if idx, ok := arrayIndex(key); ok && int64(idx) < int64(len(a.mapped)) {
		a.mapped[idx] = -1
	}
}

// newArguments creates the arguments object of a call. In sloppy code
// the elements that correspond to declared parameters stay synchronized
// with the parameter slots until deleted or redefined.
func (cx *Context) newArguments(fn *Object, frame *Scope, info *ast.FunctionInfo, args []Value) *Object {
	r := frame.Realm()
	o := NewObject(r.ObjectPrototype, "Arguments")
	o.kind = KindArguments
	o.args = &argsData{scope: frame}
	for i, a := range args {
		o.props.Put(indexKey(uint32(i)), DataProperty(a, FlagsDefault))
	}
	o.props.Put("length", DataProperty(Int(len(args)), FlagsHidden))
	if info.MappedArguments() {
		o.props.Put("callee", DataProperty(fn, FlagsHidden))
		mapped := make([]int, len(args))
		for i := range mapped {
			mapped[i] = -1
		}
		seen := make(map[int]bool)
		// A duplicated parameter name maps only its last occurrence.
		for i := len(info.ParamSlots) - 1; i >= 0; i-- {
			slot := info.ParamSlots[i]
			if i < len(args) && !seen[slot] {
				mapped[i] = slot
			}
			seen[slot] = true
		}
		o.args.mapped = mapped
	} else {
		o.props.Put("callee", AccessorProperty(r.ThrowTypeError, r.ThrowTypeError, 0))
	}
	return o
}

// newFunctionFrame creates the activation frame of a script function and
// binds parameters, the arguments object and the function's own name.
func (cx *Context) newFunctionFrame(fn *Object, info *ast.FunctionInfo, args []Value) *Scope {
	frame := newFrame(fn.fn.scope, info.Scope)
	for i, slot := range info.ParamSlots {
		if i < len(args) {
			frame.slots[slot] = args[i]
		} else {
			frame.slots[slot] = Undefined
		}
	}
	if info.SelfSlot >= 0 {
		frame.slots[info.SelfSlot] = fn
	}
	if info.ArgumentsSlot >= 0 {
		frame.slots[info.ArgumentsSlot] = cx.newArguments(fn, frame, info, args)
	}
	return frame
}
