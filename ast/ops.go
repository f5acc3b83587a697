package ast

// Op identifies a unary, binary, logical or assignment operator.
type Op int

const (
	OpInvalid Op = iota

	// Assignment
	OpAssign

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp

	// Bitwise
	OpShl
	OpShr
	OpUShr
	OpBitAnd
	OpBitOr
	OpBitXor

	// Relational and equality
	OpLT
	OpGT
	OpLE
	OpGE
	OpEq
	OpNE
	OpStrictEq
	OpStrictNE
	OpIn
	OpInstanceOf

	// Logical
	OpAnd
	OpOr
	OpNullish

	// Unary
	OpNot
	OpNeg
	OpPlus
	OpBitNot
	OpTypeof
	OpVoid
	OpDelete

	// Update
	OpInc
	OpDec
)

var opNames = map[Op]string{
	OpAssign:     "=",
	OpAdd:        "+",
	OpSub:        "-",
	OpMul:        "*",
	OpDiv:        "/",
	OpMod:        "%",
	OpExp:        "**",
	OpShl:        "<<",
	OpShr:        ">>",
	OpUShr:       ">>>",
	OpBitAnd:     "&",
	OpBitOr:      "|",
	OpBitXor:     "^",
	OpLT:         "<",
	OpGT:         ">",
	OpLE:         "<=",
	OpGE:         ">=",
	OpEq:         "==",
	OpNE:         "!=",
	OpStrictEq:   "===",
	OpStrictNE:   "!==",
	OpIn:         "in",
	OpInstanceOf: "instanceof",
	OpAnd:        "&&",
	OpOr:         "||",
	OpNullish:    "??",
	OpNot:        "!",
	OpNeg:        "-",
	OpPlus:       "+",
	OpBitNot:     "~",
	OpTypeof:     "typeof",
	OpVoid:       "void",
	OpDelete:     "delete",
	OpInc:        "++",
	OpDec:        "--",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "<invalid>"
}

// Binding powers of binary operators, lowest to highest. Used by the parser
// for precedence climbing and by the printer to decide parenthesization.
const (
	PrecLowest     = 0
	PrecSequence   = 1
	PrecAssign     = 2
	PrecCondition  = 3
	PrecNullish    = 4
	PrecOr         = 5
	PrecAnd        = 6
	PrecBitOr      = 7
	PrecBitXor     = 8
	PrecBitAnd     = 9
	PrecEquality   = 10
	PrecRelational = 11
	PrecShift      = 12
	PrecAdditive   = 13
	PrecMultiply   = 14
	PrecExponent   = 15
	PrecUnary      = 16
	PrecPostfix    = 17
	PrecCall       = 18
	PrecPrimary    = 19
)

// Precedence returns the binding power of a binary or logical operator.
func (op Op) Precedence() int {
	switch op {
	case OpNullish:
		return PrecNullish
	case OpOr:
		return PrecOr
	case OpAnd:
		return PrecAnd
	case OpBitOr:
		return PrecBitOr
	case OpBitXor:
		return PrecBitXor
	case OpBitAnd:
		return PrecBitAnd
	case OpEq, OpNE, OpStrictEq, OpStrictNE:
		return PrecEquality
	case OpLT, OpGT, OpLE, OpGE, OpIn, OpInstanceOf:
		return PrecRelational
	case OpShl, OpShr, OpUShr:
		return PrecShift
	case OpAdd, OpSub:
		return PrecAdditive
	case OpMul, OpDiv, OpMod:
		return PrecMultiply
	case OpExp:
		return PrecExponent
	}
	return PrecLowest
}

// RightAssociative reports whether the operator groups to the right.
func (op Op) RightAssociative() bool {
	return op == OpExp
}
