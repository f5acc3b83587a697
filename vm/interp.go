package vm

import (
	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Bytecode interpreter
// ---------------------------------------------------------------------------

type completionKind uint8

const (
	compNormal completionKind = iota
	compThrow
	compReturn
	compJump
)

// completion is the pending transfer a finally block resumes when it
// reaches its END_FINALLY.
type completion struct {
	kind   completionKind
	value  Value
	err    error
	target int
	stack  int
	scopes int
}

// frame is the state of one bytecode activation.
type frame struct {
	code       *Code
	fn         *Object
	act        *Activation
	scope      *Scope
	scopeDepth int // frames pushed above the activation's base scope
	global     *Scope
	realm      *Realm
	this       Value
	stack      []Value
	pc         int
	opPC       int // start of the current instruction
	result     Value
	fb         *feedback

	completions []completion
}

func (f *frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack[n] = nil
	f.stack = f.stack[:n]
	return v
}

func (f *frame) top() Value { return f.stack[len(f.stack)-1] }

func (f *frame) setTop(v Value) { f.stack[len(f.stack)-1] = v }

func (f *frame) u8() int {
	v := int(f.code.Bytecode[f.pc])
	f.pc++
	return v
}

func (f *frame) u16() int {
	v := readU16(f.code.Bytecode, f.pc)
	f.pc += 2
	return v
}

// jump reads a jump offset and returns its target.
func (f *frame) jump() int {
	off := readI32(f.code.Bytecode, f.pc)
	f.pc += 4
	return f.pc + off
}

// truncate cuts the operand stack and scope chain back to the given depths.
func (f *frame) truncate(stack, scopes int) {
	for len(f.stack) > stack {
		f.pop()
	}
	for f.scopeDepth > scopes {
		f.scope = f.scope.parent
		f.scopeDepth--
	}
}

// finallyAround returns the innermost finally region that covers pc but
// not target (-1 when leaving the function).
func (f *frame) finallyAround(pc, target int) *TryRegion {
	for i := range f.code.TryRegions {
		r := &f.code.TryRegions[i]
		if r.Kind != RegionFinally || pc < r.Start || pc >= r.End {
			continue
		}
		if target >= r.Start && target < r.End {
			continue
		}
		return r
	}
	return nil
}

// callCode runs a compiled function body.
func (cx *Context) callCode(fn *Object, this Value, args []Value) (Value, error) {
	code := fn.fn.code
	scope := cx.newFunctionFrame(fn, code.Info, args)
	return cx.runCode(code, fn, scope, this)
}

// runCode executes code in a new activation.
func (cx *Context) runCode(code *Code, fn *Object, scope *Scope, this Value) (Value, error) {
	g := scope.globalScope()
	f := &frame{
		code:   code,
		fn:     fn,
		scope:  scope,
		global: g,
		realm:  g.realm,
		this:   this,
		stack:  make([]Value, 0, 16),
		result: Undefined,
		fb:     cx.feedbackFor(code),
	}
	if code.NumFinally > 0 {
		f.completions = make([]completion, code.NumFinally)
	}
	f.act = cx.pushActivation(&Activation{fn: fn, sourceName: code.SourceName, frame: f})
	unwinding := cx.unwinding
	v, err := cx.interpret(f)
	cx.unwinding = unwinding
	cx.popActivation(f.act, err)
	return v, err
}

// handleError transfers control to the innermost handler covering the
// faulting instruction. Interrupts skip catch handlers. It returns the
// error when no handler applies.
func (cx *Context) handleError(f *frame, err error) error {
	interrupt := isInterrupt(err)
	var ex *Exception
	if !interrupt {
		var ok bool
		if ex, ok = cx.asException(err); ok {
			err = ex
		}
	}
	for i := range f.code.TryRegions {
		r := &f.code.TryRegions[i]
		if f.opPC < r.Start || f.opPC >= r.End {
			continue
		}
		if r.Kind == RegionCatch {
			if interrupt {
				continue
			}
			f.truncate(r.StackDepth, r.ScopeDepth)
			f.push(ex.Value)
			f.pc = r.Handler
			return nil
		}
		f.truncate(r.StackDepth, r.ScopeDepth)
		f.completions[r.Index] = completion{kind: compThrow, err: err}
		if interrupt {
			cx.unwinding++
		}
		f.pc = r.Handler
		return nil
	}
	return err
}

// binaryOps maps operator opcodes to the shared operator implementation.
var binaryOps = map[Opcode]ast.Op{
	OpAdd: ast.OpAdd, OpSub: ast.OpSub, OpMul: ast.OpMul, OpDiv: ast.OpDiv,
	OpMod: ast.OpMod, OpExp: ast.OpExp, OpShl: ast.OpShl, OpShr: ast.OpShr,
	OpUShr: ast.OpUShr, OpBitAnd: ast.OpBitAnd, OpBitOr: ast.OpBitOr,
	OpBitXor: ast.OpBitXor, OpLT: ast.OpLT, OpGT: ast.OpGT, OpLE: ast.OpLE,
	OpGE: ast.OpGE, OpEq: ast.OpEq, OpNE: ast.OpNE, OpStrictEq: ast.OpStrictEq,
	OpStrictNE: ast.OpStrictNE, OpIn: ast.OpIn, OpInstanceOf: ast.OpInstanceOf,
}

// interpret runs the instruction loop of f until it returns or an error
// escapes every handler.
func (cx *Context) interpret(f *frame) (Value, error) {
	code := f.code
	bc := code.Bytecode
	strict := code.Strict

	for {
		f.opPC = f.pc
		op := Opcode(bc[f.pc])
		f.pc++
		var err error

		switch op {
		case OpNop:

		// Stack operations
		case OpPop:
			f.pop()
		case OpDup:
			f.push(f.top())
		case OpDup2:
			n := len(f.stack)
			f.push(f.stack[n-2])
			f.push(f.stack[n-1])
		case OpSwap:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]
		case OpRot3:
			n := len(f.stack)
			a, b, c := f.stack[n-3], f.stack[n-2], f.stack[n-1]
			f.stack[n-3], f.stack[n-2], f.stack[n-1] = c, a, b
		case OpRot4:
			n := len(f.stack)
			a, b, c, d := f.stack[n-4], f.stack[n-3], f.stack[n-2], f.stack[n-1]
			f.stack[n-4], f.stack[n-3], f.stack[n-2], f.stack[n-1] = d, a, b, c

		// Constants
		case OpUndefined:
			f.push(Undefined)
		case OpNull:
			f.push(Null)
		case OpTrue:
			f.push(True)
		case OpFalse:
			f.push(False)
		case OpInt8:
			f.push(Int(int(int8(f.u8()))))
		case OpInt32:
			v := readI32(bc, f.pc)
			f.pc += 4
			f.push(Int(v))
		case OpConst:
			f.push(code.Constants[f.u16()])
		case OpThis:
			f.push(f.this)
		case OpHole:
			f.push(hole)

		// Variables
		case OpGetLocal:
			depth := f.u8()
			slot := f.u16()
			s := f.scope.up(depth)
			v := s.slots[slot]
			if isHole(v) {
				err = cx.tdzError(s.info.Names[slot])
				break
			}
			f.push(v)
		case OpSetLocal:
			depth := f.u8()
			slot := f.u16()
			s := f.scope.up(depth)
			err = cx.setSlot(s, slot, s.info.Decls[slot], s.info.Names[slot], f.top(), strict)
		case OpInitLocal:
			depth := f.u8()
			slot := f.u16()
			f.scope.up(depth).slots[slot] = f.pop()
		case OpGetName:
			var v Value
			if v, err = cx.getName(f.scope, code.Names[f.u16()], false); err == nil {
				f.push(v)
			}
		case OpSetName:
			err = cx.setName(f.scope, code.Names[f.u16()], f.top(), strict)
		case OpTypeofName:
			var v Value
			if v, err = cx.getName(f.scope, code.Names[f.u16()], true); err == nil {
				f.push(typeofValue(v))
			}
		case OpDeleteName:
			var ok bool
			if ok, err = cx.deleteName(f.scope, code.Names[f.u16()]); err == nil {
				f.push(BoolValue(ok))
			}
		case OpGetNameThis:
			var v, this Value
			if v, this, err = cx.getNameThis(f.scope, code.Names[f.u16()]); err == nil {
				f.push(this)
				f.push(v)
			}
		case OpGetGlobal:
			var v Value
			if v, err = cx.getGlobal(f.global, code.Names[f.u16()], false); err == nil {
				f.push(v)
			}
		case OpSetGlobal:
			err = cx.setGlobal(f.global, code.Names[f.u16()], f.top(), strict)
		case OpSetNameOuter:
			err = cx.setName(f.scope.parent, code.Names[f.u16()], f.top(), strict)
		case OpTypeofGlobal:
			var v Value
			if v, err = cx.getGlobal(f.global, code.Names[f.u16()], true); err == nil {
				f.push(typeofValue(v))
			}

		// Declarations and scopes
		case OpDeclareVar:
			err = cx.declareVar(f.scope, code.Names[f.u16()], code.Eval)
		case OpDeclareFunc:
			name := code.Names[f.u16()]
			err = cx.declareFunction(f.scope, name, f.pop().(*Object), code.Eval)
		case OpDeclareLexical:
			name := code.Names[f.u16()]
			err = cx.declareLexical(f.global, name, ast.DeclKind(f.u8()))
		case OpInitGlobal:
			f.global.initLexical(code.Names[f.u16()], f.pop())
		case OpPushScope:
			f.scope = newFrame(f.scope, code.Scopes[f.u16()])
			f.scopeDepth++
		case OpPopScope:
			f.scope = f.scope.parent
			f.scopeDepth--
		case OpPushWith:
			var o *Object
			if o, err = cx.ToObject(f.pop()); err == nil {
				f.scope = newWithScope(f.scope, o)
				f.scopeDepth++
			}
		case OpCloneScope:
			f.scope = f.scope.clone()

		// Properties
		case OpGetProp:
			name := code.Names[f.u16()]
			site := f.u16()
			obj := f.top()
			if o, ok := obj.(*Object); ok && f.fb != nil {
				ic := &f.fb.props[site]
				if p := ic.lookup(o); p != nil {
					f.setTop(p.Value)
					break
				}
				var v Value
				if v, err = cx.getValue(o, name); err == nil {
					ic.fillGet(o, name)
					f.setTop(v)
				}
				break
			}
			var v Value
			if v, err = cx.getValue(obj, name); err == nil {
				f.setTop(v)
			}
		case OpSetProp:
			name := code.Names[f.u16()]
			site := f.u16()
			val := f.pop()
			obj := f.top()
			if o, ok := obj.(*Object); ok && f.fb != nil {
				ic := &f.fb.props[site]
				if p := ic.lookup(o); p != nil {
					p.Value = val
				} else if err = o.Set(cx, name, val, o, strict); err == nil {
					ic.fillSet(o, name)
				}
			} else {
				err = cx.setValue(obj, name, val, strict)
			}
			f.setTop(val)
		case OpGetElem:
			k := f.pop()
			var v Value
			if v, err = cx.getElem(f.top(), k); err == nil {
				f.setTop(v)
			}
		case OpSetElem:
			val := f.pop()
			k := f.pop()
			err = cx.setElem(f.top(), k, val, strict)
			f.setTop(val)
		case OpDeleteProp:
			var ok bool
			if ok, err = cx.deleteValue(f.top(), code.Names[f.u16()], strict); err == nil {
				f.setTop(BoolValue(ok))
			}
		case OpDeleteElem:
			k := f.pop()
			var key string
			if key, err = cx.ToPropertyKey(k); err != nil {
				break
			}
			var ok bool
			if ok, err = cx.deleteValue(f.top(), key, strict); err == nil {
				f.setTop(BoolValue(ok))
			}
		case OpToKey:
			var key string
			if key, err = cx.ToPropertyKey(f.top()); err == nil {
				f.setTop(NewString(key))
			}

		// Calls
		case OpCall:
			argc := f.u16()
			site := f.u16()
			desc := code.Names[f.u16()]
			n := len(f.stack)
			args := append([]Value(nil), f.stack[n-argc:]...)
			fv, this := f.stack[n-argc-1], f.stack[n-argc-2]
			f.truncate(n-argc-2, f.scopeDepth)
			f.act.State = StateSuspended
			var v Value
			if fo, ok := fv.(*Object); ok && f.fb != nil && fo == f.fb.calls[site].Target {
				f.fb.calls[site].Hits++
				v, err = cx.Call(fo, this, args)
			} else {
				if f.fb != nil && IsCallable(fv) {
					f.fb.calls[site].Target = fv.(*Object)
					f.fb.calls[site].Misses++
				}
				v, err = cx.callValue(fv, this, args, desc)
			}
			f.act.State = StateRunning
			if err == nil {
				f.push(v)
			}
		case OpCallEval:
			argc := f.u16()
			n := len(f.stack)
			args := append([]Value(nil), f.stack[n-argc:]...)
			fv, this := f.stack[n-argc-1], f.stack[n-argc-2]
			f.truncate(n-argc-2, f.scopeDepth)
			f.act.State = StateSuspended
			var v Value
			if fo, ok := fv.(*Object); ok && fo == f.realm.Eval {
				v, err = cx.directEval(args, f.scope, f.this, strict, code.Level)
			} else {
				v, err = cx.callValue(fv, this, args, "eval")
			}
			f.act.State = StateRunning
			if err == nil {
				f.push(v)
			}
		case OpNew:
			argc := f.u16()
			desc := code.Names[f.u16()]
			n := len(f.stack)
			args := append([]Value(nil), f.stack[n-argc:]...)
			fv := f.stack[n-argc-1]
			f.truncate(n-argc-1, f.scopeDepth)
			f.act.State = StateSuspended
			var v Value
			v, err = cx.constructValue(fv, args, desc)
			f.act.State = StateRunning
			if err == nil {
				f.push(v)
			}
		case OpReturn:
			v := f.pop()
			if r := f.finallyAround(f.opPC, -1); r != nil {
				f.truncate(r.StackDepth, r.ScopeDepth)
				f.completions[r.Index] = completion{kind: compReturn, value: v}
				f.pc = r.Handler
				break
			}
			return v, nil
		case OpClosure:
			f.push(cx.newCodeFunction(code.Functions[f.u16()], f.scope, f.this))

		// Arithmetic and comparison with feedback
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpLT, OpGT, OpLE, OpGE:
			site := f.u16()
			b := f.pop()
			a := f.top()
			x, xok := a.(Number)
			y, yok := b.(Number)
			if f.fb != nil {
				f.fb.arith[site].observe(xok && yok)
			}
			if xok && yok {
				switch op {
				case OpLT, OpGT, OpLE, OpGE:
					f.setTop(BoolValue(compareNumbers(binaryOps[op], x, y)))
				default:
					f.setTop(numericOp(binaryOps[op], x, y))
				}
				break
			}
			var v Value
			if v, err = cx.binaryOp(binaryOps[op], a, b); err == nil {
				f.setTop(v)
			}
		case OpExp, OpShl, OpShr, OpUShr, OpBitAnd, OpBitOr, OpBitXor,
			OpEq, OpNE, OpStrictEq, OpStrictNE, OpIn, OpInstanceOf:
			b := f.pop()
			var v Value
			if v, err = cx.binaryOp(binaryOps[op], f.top(), b); err == nil {
				f.setTop(v)
			}

		// Unary operators
		case OpNot:
			f.setTop(BoolValue(!ToBoolean(f.top())))
		case OpNeg:
			var v Value
			if v, err = cx.negate(f.top()); err == nil {
				f.setTop(v)
			}
		case OpToNumber:
			var n Number
			if n, err = cx.ToNumber(f.top()); err == nil {
				f.setTop(n)
			}
		case OpBitNot:
			var v Value
			if v, err = cx.bitNot(f.top()); err == nil {
				f.setTop(v)
			}
		case OpTypeof:
			f.setTop(typeofValue(f.top()))
		case OpToString:
			var s *String
			if s, err = cx.ToString(f.top()); err == nil {
				f.setTop(s)
			}
		case OpInc:
			f.setTop(ToNumber(f.top()) + 1)
		case OpDec:
			f.setTop(ToNumber(f.top()) - 1)

		// Control flow
		case OpJump:
			target := f.jump()
			if target < f.opPC && cx.unwinding == 0 {
				if err = cx.poll(); err != nil {
					break
				}
			}
			f.pc = target
		case OpJumpIfFalse:
			target := f.jump()
			if !ToBoolean(f.pop()) {
				f.pc = target
			}
		case OpJumpIfTrue:
			target := f.jump()
			if ToBoolean(f.pop()) {
				f.pc = target
			}
		case OpJumpIfFalseKeep:
			target := f.jump()
			if !ToBoolean(f.top()) {
				f.pc = target
			} else {
				f.pop()
			}
		case OpJumpIfTrueKeep:
			target := f.jump()
			if ToBoolean(f.top()) {
				f.pc = target
			} else {
				f.pop()
			}
		case OpJumpNotNullKeep:
			target := f.jump()
			if !IsNullish(f.top()) {
				f.pc = target
			} else {
				f.pop()
			}
		case OpForInStart:
			var it *iterValue
			if it, err = cx.forInIterator(f.top()); err == nil {
				f.setTop(it)
			}
		case OpForOfStart:
			var it *iterValue
			if it, err = cx.forOfIterator(f.top()); err == nil {
				f.setTop(it)
			}
		case OpIterNext:
			target := f.jump()
			var v Value
			var ok bool
			if v, ok, err = cx.iterNext(f.top().(*iterValue)); err != nil {
				break
			}
			if ok {
				f.push(v)
			} else {
				f.pc = target
			}
		case OpLeave:
			target := f.jump()
			stack := f.u16()
			scopes := f.u16()
			if r := f.finallyAround(f.opPC, target); r != nil {
				f.truncate(r.StackDepth, r.ScopeDepth)
				f.completions[r.Index] = completion{kind: compJump, target: target, stack: stack, scopes: scopes}
				f.pc = r.Handler
				break
			}
			if target < f.opPC && cx.unwinding == 0 {
				if err = cx.poll(); err != nil {
					break
				}
			}
			f.truncate(stack, scopes)
			f.pc = target
		case OpNormalCompletion:
			f.completions[f.u16()] = completion{}
		case OpEndFinally:
			idx := f.u16()
			c := f.completions[idx]
			f.completions[idx] = completion{}
			switch c.kind {
			case compThrow:
				if isInterrupt(c.err) {
					cx.unwinding--
				}
				err = c.err
			case compReturn:
				if r := f.finallyAround(f.opPC, -1); r != nil {
					f.truncate(r.StackDepth, r.ScopeDepth)
					f.completions[r.Index] = c
					f.pc = r.Handler
					break
				}
				return c.value, nil
			case compJump:
				if r := f.finallyAround(f.opPC, c.target); r != nil {
					f.truncate(r.StackDepth, r.ScopeDepth)
					f.completions[r.Index] = c
					f.pc = r.Handler
					break
				}
				f.truncate(c.stack, c.scopes)
				f.pc = c.target
			}

		// Literals
		case OpNewObject:
			f.push(NewObject(f.realm.ObjectPrototype, "Object"))
		case OpInitProp:
			name := code.Names[f.u16()]
			v := f.pop()
			cx.initProperty(f.top().(*Object), name, v)
		case OpInitElem:
			v := f.pop()
			var key string
			if key, err = cx.ToPropertyKey(f.pop()); err == nil {
				f.top().(*Object).DefineOwnProperty(key, DataDescriptor(v, FlagsDefault))
			}
		case OpInitGetter, OpInitSetter:
			name := code.Names[f.u16()]
			fn := f.pop().(*Object)
			cx.initAccessor(f.top().(*Object), name, fn, op == OpInitSetter)
		case OpInitAccessorElem:
			setter := f.u8() != 0
			fn := f.pop().(*Object)
			var key string
			if key, err = cx.ToPropertyKey(f.pop()); err == nil {
				cx.initAccessor(f.top().(*Object), key, fn, setter)
			}
		case OpNewArray:
			f.push(NewArray(f.realm.ArrayPrototype, nil))
		case OpArrayPush:
			v := f.pop()
			arrayPush(f.top().(*Object), v)
		case OpRegExp:
			pattern := code.Constants[f.u16()].(*String)
			flags := code.Constants[f.u16()].(*String)
			var re *Object
			if re, err = cx.NewRegExp(pattern.String(), flags.String()); err == nil {
				f.push(re)
			}

		// Exceptions and completion values
		case OpThrow:
			err = cx.throwValue(f.pop())
		case OpThrowError:
			kind := ErrorKind(f.u8())
			msg := code.Constants[f.u16()].(*String)
			err = cx.newError(kind, "%s", msg.String())
		case OpDebugger:
			cx.debuggerStatement()
		case OpSetResult:
			f.result = f.pop()
		case OpPushResult:
			f.push(f.result)

		default:
			panic("vm: unknown opcode " + op.String())
		}

		if err != nil {
			if err = cx.handleError(f, err); err != nil {
				return nil, err
			}
		}
	}
}
