package compiler

import (
	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryOpcodes maps operators to instructions. Operators with a feedback
// site are listed in sited.
var binaryOpcodes = map[ast.Op]vm.Opcode{
	ast.OpAdd: vm.OpAdd, ast.OpSub: vm.OpSub, ast.OpMul: vm.OpMul,
	ast.OpDiv: vm.OpDiv, ast.OpMod: vm.OpMod, ast.OpExp: vm.OpExp,
	ast.OpShl: vm.OpShl, ast.OpShr: vm.OpShr, ast.OpUShr: vm.OpUShr,
	ast.OpBitAnd: vm.OpBitAnd, ast.OpBitOr: vm.OpBitOr, ast.OpBitXor: vm.OpBitXor,
	ast.OpLT: vm.OpLT, ast.OpGT: vm.OpGT, ast.OpLE: vm.OpLE, ast.OpGE: vm.OpGE,
	ast.OpEq: vm.OpEq, ast.OpNE: vm.OpNE, ast.OpStrictEq: vm.OpStrictEq,
	ast.OpStrictNE: vm.OpStrictNE, ast.OpIn: vm.OpIn, ast.OpInstanceOf: vm.OpInstanceOf,
}

var sited = map[vm.Opcode]bool{
	vm.OpAdd: true, vm.OpSub: true, vm.OpMul: true, vm.OpDiv: true, vm.OpMod: true,
	vm.OpLT: true, vm.OpGT: true, vm.OpLE: true, vm.OpGE: true,
}

func (c *codegen) binary(op ast.Op) {
	code, ok := binaryOpcodes[op]
	if !ok {
		panic("compiler: unexpected binary operator " + op.String())
	}
	if sited[code] {
		c.emit(code, c.arithSite())
		return
	}
	c.emit(code)
}

func (c *codegen) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.Identifier:
		c.loadName(e)
	case *ast.NumberLiteral:
		c.number(e.Value)
	case *ast.StringLiteral:
		c.emit(vm.OpConst, c.stringConst(e.Value))
	case *ast.BoolLiteral:
		if e.Value {
			c.emit(vm.OpTrue)
		} else {
			c.emit(vm.OpFalse)
		}
	case *ast.NullLiteral:
		c.emit(vm.OpNull)
	case *ast.ThisExpr:
		c.emit(vm.OpThis)
	case *ast.RegExpLiteral:
		c.emit(vm.OpRegExp, c.stringConst(e.Pattern), c.stringConst(e.Flags))

	case *ast.TemplateLiteral:
		c.emit(vm.OpConst, c.stringConst(e.Cooked[0]))
		for i, x := range e.Exprs {
			c.expr(x)
			c.emit(vm.OpToString)
			c.binary(ast.OpAdd)
			if s := e.Cooked[i+1]; s != "" {
				c.emit(vm.OpConst, c.stringConst(s))
				c.binary(ast.OpAdd)
			}
		}

	case *ast.ArrayLiteral:
		c.emit(vm.OpNewArray)
		for _, x := range e.Elements {
			if x == nil {
				c.emit(vm.OpHole)
			} else {
				c.expr(x)
			}
			c.emit(vm.OpArrayPush)
		}

	case *ast.ObjectLiteral:
		c.objectLiteral(e)

	case *ast.FunctionLiteral:
		c.emit(vm.OpClosure, c.function(e))

	case *ast.UnaryExpr:
		c.unary(e)

	case *ast.UpdateExpr:
		c.update(e)

	case *ast.BinaryExpr:
		c.expr(e.X)
		c.expr(e.Y)
		c.binary(e.Op)

	case *ast.LogicalExpr:
		c.expr(e.X)
		end := c.label()
		switch e.Op {
		case ast.OpAnd:
			c.jump(vm.OpJumpIfFalseKeep, end)
		case ast.OpOr:
			c.jump(vm.OpJumpIfTrueKeep, end)
		default:
			c.jump(vm.OpJumpNotNullKeep, end)
		}
		c.depth--
		c.expr(e.Y)
		c.mark(end)

	case *ast.ConditionalExpr:
		c.expr(e.Test)
		alt, end := c.label(), c.label()
		c.jump(vm.OpJumpIfFalse, alt)
		c.expr(e.Cons)
		c.jump(vm.OpJump, end)
		c.depth--
		c.mark(alt)
		c.expr(e.Alt)
		c.mark(end)

	case *ast.AssignExpr:
		c.assign(e)

	case *ast.CallExpr:
		c.call(e)

	case *ast.NewExpr:
		c.expr(e.Callee)
		for _, a := range e.Args {
			c.expr(a)
		}
		c.emit(vm.OpNew, len(e.Args), c.name(vm.CalleeDescription(e.Callee)))
		c.depth -= len(e.Args)

	case *ast.MemberExpr:
		c.expr(e.Object)
		c.emit(vm.OpGetProp, c.name(e.Property), c.propSite())

	case *ast.IndexExpr:
		c.expr(e.Object)
		c.expr(e.Index)
		c.emit(vm.OpGetElem)

	case *ast.SequenceExpr:
		if len(e.List) == 0 {
			c.emit(vm.OpUndefined)
			break
		}
		for i, x := range e.List {
			if i > 0 {
				c.emit(vm.OpPop)
			}
			c.expr(x)
		}

	default:
		panic("compiler: unexpected expression in code generator")
	}
}

func (c *codegen) objectLiteral(e *ast.ObjectLiteral) {
	c.emit(vm.OpNewObject)
	for _, p := range e.Properties {
		if p.Computed != nil {
			c.expr(p.Computed)
			c.emit(vm.OpToKey)
			if p.Kind != ast.PropertyInit {
				c.emit(vm.OpClosure, c.function(p.Value.(*ast.FunctionLiteral)))
				setter := 0
				if p.Kind == ast.PropertySet {
					setter = 1
				}
				c.emit(vm.OpInitAccessorElem, setter)
				continue
			}
			c.expr(p.Value)
			c.emit(vm.OpInitElem)
			continue
		}
		switch p.Kind {
		case ast.PropertyGet:
			c.emit(vm.OpClosure, c.function(p.Value.(*ast.FunctionLiteral)))
			c.emit(vm.OpInitGetter, c.name(p.Key))
		case ast.PropertySet:
			c.emit(vm.OpClosure, c.function(p.Value.(*ast.FunctionLiteral)))
			c.emit(vm.OpInitSetter, c.name(p.Key))
		default:
			c.expr(p.Value)
			c.emit(vm.OpInitProp, c.name(p.Key))
		}
	}
}

func (c *codegen) unary(e *ast.UnaryExpr) {
	switch e.Op {
	case ast.OpTypeof:
		if id, ok := e.X.(*ast.Identifier); ok {
			c.typeofName(id)
			return
		}
	case ast.OpDelete:
		c.delete(e.X)
		return
	}
	c.expr(e.X)
	switch e.Op {
	case ast.OpTypeof:
		c.emit(vm.OpTypeof)
	case ast.OpVoid:
		c.emit(vm.OpPop)
		c.emit(vm.OpUndefined)
	case ast.OpNot:
		c.emit(vm.OpNot)
	case ast.OpNeg:
		c.emit(vm.OpNeg)
	case ast.OpPlus:
		c.emit(vm.OpToNumber)
	case ast.OpBitNot:
		c.emit(vm.OpBitNot)
	default:
		panic("compiler: unexpected unary operator " + e.Op.String())
	}
}

func (c *codegen) delete(x ast.Expr) {
	switch t := x.(type) {
	case *ast.Identifier:
		if t.Binding.Kind == ast.BindStatic {
			c.emit(vm.OpFalse)
			return
		}
		c.emit(vm.OpDeleteName, c.name(t.Name))
	case *ast.MemberExpr:
		c.expr(t.Object)
		c.emit(vm.OpDeleteProp, c.name(t.Property))
	case *ast.IndexExpr:
		c.expr(t.Object)
		c.expr(t.Index)
		c.emit(vm.OpDeleteElem)
	default:
		c.expr(x)
		c.emit(vm.OpPop)
		c.emit(vm.OpTrue)
	}
}

// ---------------------------------------------------------------------------
// Assignment and update
// ---------------------------------------------------------------------------

func (c *codegen) assign(e *ast.AssignExpr) {
	switch t := e.Target.(type) {
	case *ast.Identifier:
		if e.Op != ast.OpAssign {
			c.loadName(t)
			c.expr(e.Value)
			c.binary(e.Op)
		} else {
			c.expr(e.Value)
		}
		c.storeName(t)

	case *ast.MemberExpr:
		name := c.name(t.Property)
		c.expr(t.Object)
		if e.Op != ast.OpAssign {
			c.emit(vm.OpDup)
			c.emit(vm.OpGetProp, name, c.propSite())
			c.expr(e.Value)
			c.binary(e.Op)
		} else {
			c.expr(e.Value)
		}
		c.emit(vm.OpSetProp, name, c.propSite())

	case *ast.IndexExpr:
		c.expr(t.Object)
		c.expr(t.Index)
		if e.Op != ast.OpAssign {
			// The key is converted once, before the old value is read.
			c.emit(vm.OpToKey)
			c.emit(vm.OpDup2)
			c.emit(vm.OpGetElem)
			c.expr(e.Value)
			c.binary(e.Op)
		} else {
			c.expr(e.Value)
		}
		c.emit(vm.OpSetElem)

	default:
		c.throwError(vm.ErrorReference, invalidTarget)
	}
}

func (c *codegen) update(e *ast.UpdateExpr) {
	step := vm.OpInc
	if e.Op == ast.OpDec {
		step = vm.OpDec
	}
	switch t := e.X.(type) {
	case *ast.Identifier:
		c.loadName(t)
		c.emit(vm.OpToNumber)
		if e.Prefix {
			c.emit(step)
			c.storeName(t)
			return
		}
		c.emit(vm.OpDup)
		c.emit(step)
		c.storeName(t)
		c.emit(vm.OpPop)

	case *ast.MemberExpr:
		name := c.name(t.Property)
		c.expr(t.Object)
		c.emit(vm.OpDup)
		c.emit(vm.OpGetProp, name, c.propSite())
		c.emit(vm.OpToNumber)
		if e.Prefix {
			c.emit(step)
			c.emit(vm.OpSetProp, name, c.propSite())
			return
		}
		// o n -> n o n -> n o n' -> n n'
		c.emit(vm.OpDup)
		c.emit(vm.OpRot3)
		c.emit(step)
		c.emit(vm.OpSetProp, name, c.propSite())
		c.emit(vm.OpPop)

	case *ast.IndexExpr:
		c.expr(t.Object)
		c.expr(t.Index)
		c.emit(vm.OpToKey)
		c.emit(vm.OpDup2)
		c.emit(vm.OpGetElem)
		c.emit(vm.OpToNumber)
		if e.Prefix {
			c.emit(step)
			c.emit(vm.OpSetElem)
			return
		}
		// o k n -> n o k n -> n o k n' -> n n'
		c.emit(vm.OpDup)
		c.emit(vm.OpRot4)
		c.emit(step)
		c.emit(vm.OpSetElem)
		c.emit(vm.OpPop)

	default:
		c.throwError(vm.ErrorReference, invalidTarget)
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call pushes the this value and the callee, then the arguments.
func (c *codegen) call(e *ast.CallExpr) {
	switch callee := e.Callee.(type) {
	case *ast.MemberExpr:
		c.expr(callee.Object)
		c.emit(vm.OpDup)
		c.emit(vm.OpGetProp, c.name(callee.Property), c.propSite())
	case *ast.IndexExpr:
		c.expr(callee.Object)
		c.emit(vm.OpDup)
		c.expr(callee.Index)
		c.emit(vm.OpGetElem)
	case *ast.Identifier:
		if k := callee.Binding.Kind; k == ast.BindDynamic || k == ast.BindUnresolved {
			c.emit(vm.OpGetNameThis, c.name(callee.Name))
		} else {
			c.emit(vm.OpUndefined)
			c.loadName(callee)
		}
	default:
		c.emit(vm.OpUndefined)
		c.expr(e.Callee)
	}
	for _, a := range e.Args {
		c.expr(a)
	}
	if len(e.Args) > 0xFFFF {
		c.tooLarge(e.SpanVal.Start, "arguments")
	}
	if e.DirectEval {
		c.emit(vm.OpCallEval, len(e.Args))
	} else {
		c.emit(vm.OpCall, len(e.Args), c.callSite(), c.name(vm.CalleeDescription(e.Callee)))
	}
	c.depth -= len(e.Args) + 1
}
