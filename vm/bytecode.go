package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNop  Opcode = 0x00 // no operation
	OpPop  Opcode = 0x01 // discard top of stack
	OpDup  Opcode = 0x02 // duplicate top of stack
	OpDup2 Opcode = 0x03 // duplicate the top two values
	OpSwap Opcode = 0x04 // exchange the top two values
	OpRot3 Opcode = 0x05 // a b c -> c a b
	OpRot4 Opcode = 0x06 // a b c d -> d a b c
)

// Push Constants
const (
	OpUndefined Opcode = 0x10 // push undefined
	OpNull      Opcode = 0x11 // push null
	OpTrue      Opcode = 0x12 // push true
	OpFalse     Opcode = 0x13 // push false
	OpInt8      Opcode = 0x14 // push 8-bit signed integer
	OpInt32     Opcode = 0x15 // push 32-bit signed integer
	OpConst     Opcode = 0x16 // push constant (16-bit index)
	OpThis      Opcode = 0x17 // push this
	OpHole      Opcode = 0x18 // push an array hole
)

// Variable Operations
const (
	OpGetLocal     Opcode = 0x20 // push frame slot (8-bit depth, 16-bit slot)
	OpSetLocal     Opcode = 0x21 // store top into frame slot, keep it
	OpInitLocal    Opcode = 0x22 // pop into frame slot, no checks
	OpGetName      Opcode = 0x23 // dynamic lookup (16-bit name)
	OpSetName      Opcode = 0x24 // dynamic store, keep value
	OpTypeofName   Opcode = 0x25 // typeof of a dynamic name
	OpDeleteName   Opcode = 0x26 // delete identifier
	OpGetNameThis  Opcode = 0x27 // push this and callee for a dynamic call
	OpGetGlobal    Opcode = 0x28 // global lookup (16-bit name)
	OpSetGlobal    Opcode = 0x29 // global store, keep value
	OpTypeofGlobal Opcode = 0x2A // typeof of a global name
	OpSetNameOuter Opcode = 0x2B // dynamic store resolved from the enclosing frame, keep value
)

// Declarations and scopes
const (
	OpDeclareVar     Opcode = 0x30 // declare var on the variable object
	OpDeclareFunc    Opcode = 0x31 // pop function, bind on the variable object
	OpDeclareLexical Opcode = 0x32 // global let/const (16-bit name, 8-bit kind)
	OpInitGlobal     Opcode = 0x33 // pop into a global let/const
	OpPushScope      Opcode = 0x34 // push declarative frame (16-bit layout)
	OpPopScope       Opcode = 0x35 // pop innermost frame
	OpPushWith       Opcode = 0x36 // pop object, push with frame
	OpCloneScope     Opcode = 0x37 // replace innermost frame by a copy
)

// Properties
const (
	OpGetProp    Opcode = 0x40 // obj -> value (16-bit name, 16-bit cache site)
	OpSetProp    Opcode = 0x41 // obj value -> value
	OpGetElem    Opcode = 0x42 // obj key -> value
	OpSetElem    Opcode = 0x43 // obj key value -> value
	OpDeleteProp Opcode = 0x44 // obj -> bool (16-bit name)
	OpDeleteElem Opcode = 0x45 // obj key -> bool
	OpToKey      Opcode = 0x46 // convert top to a property key
)

// Calls
const (
	OpCall     Opcode = 0x50 // this fn args... -> result (16-bit argc, 16-bit site, 16-bit callee name)
	OpCallEval Opcode = 0x51 // this fn args... -> result, direct eval when fn is eval
	OpNew      Opcode = 0x52 // fn args... -> object (16-bit argc, 16-bit callee name)
	OpReturn   Opcode = 0x53 // return top of stack
	OpClosure  Opcode = 0x54 // push function (16-bit template index)
)

// Operators. Arithmetic and comparison carry a feedback site.
const (
	OpAdd        Opcode = 0x60
	OpSub        Opcode = 0x61
	OpMul        Opcode = 0x62
	OpDiv        Opcode = 0x63
	OpMod        Opcode = 0x64
	OpExp        Opcode = 0x65
	OpShl        Opcode = 0x66
	OpShr        Opcode = 0x67
	OpUShr       Opcode = 0x68
	OpBitAnd     Opcode = 0x69
	OpBitOr      Opcode = 0x6A
	OpBitXor     Opcode = 0x6B
	OpLT         Opcode = 0x6C
	OpGT         Opcode = 0x6D
	OpLE         Opcode = 0x6E
	OpGE         Opcode = 0x6F
	OpEq         Opcode = 0x70
	OpNE         Opcode = 0x71
	OpStrictEq   Opcode = 0x72
	OpStrictNE   Opcode = 0x73
	OpIn         Opcode = 0x74
	OpInstanceOf Opcode = 0x75

	OpNot      Opcode = 0x78
	OpNeg      Opcode = 0x79
	OpToNumber Opcode = 0x7A
	OpBitNot   Opcode = 0x7B
	OpTypeof   Opcode = 0x7C
	OpToString Opcode = 0x7D
	OpInc      Opcode = 0x7E
	OpDec      Opcode = 0x7F
)

// Control Flow. Offsets are 32-bit, relative to the end of the offset.
const (
	OpJump             Opcode = 0x80 // unconditional jump
	OpJumpIfFalse      Opcode = 0x81 // pop, jump if falsy
	OpJumpIfTrue       Opcode = 0x82 // pop, jump if truthy
	OpJumpIfFalseKeep  Opcode = 0x83 // jump keeping a falsy value, else pop
	OpJumpIfTrueKeep   Opcode = 0x84 // jump keeping a truthy value, else pop
	OpJumpNotNullKeep  Opcode = 0x85 // jump keeping a non-nullish value, else pop
	OpForInStart       Opcode = 0x86 // obj -> key iterator
	OpForOfStart       Opcode = 0x87 // obj -> value iterator
	OpIterNext         Opcode = 0x88 // push next value or jump when done
	OpLeave            Opcode = 0x89 // jump out of blocks (offset, 16-bit stack depth, 16-bit scope depth)
	OpNormalCompletion Opcode = 0x8A // record normal completion for a finally block
	OpEndFinally       Opcode = 0x8B // resume the completion recorded for a finally block
)

// Literals
const (
	OpNewObject        Opcode = 0x90 // push empty object
	OpInitProp         Opcode = 0x91 // obj value -> obj (16-bit name)
	OpInitElem         Opcode = 0x92 // obj key value -> obj
	OpInitGetter       Opcode = 0x93 // obj fn -> obj (16-bit name)
	OpInitSetter       Opcode = 0x94 // obj fn -> obj (16-bit name)
	OpNewArray         Opcode = 0x95 // push empty array
	OpArrayPush        Opcode = 0x96 // arr value -> arr; a hole only grows length
	OpRegExp           Opcode = 0x97 // push regexp (16-bit pattern, 16-bit flags)
	OpInitAccessorElem Opcode = 0x98 // obj key fn -> obj (8-bit setter flag)
)

// Completion values and exceptions
const (
	OpThrow      Opcode = 0xA0 // throw top of stack
	OpThrowError Opcode = 0xA1 // throw a new error (8-bit kind, 16-bit message)
	OpDebugger   Opcode = 0xA2 // debugger statement
	OpSetResult  Opcode = 0xA3 // pop into the completion value
	OpPushResult Opcode = 0xA4 // push the completion value
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// Operand describes one operand of an instruction.
type Operand uint8

const (
	OperandU8     Operand = iota // 8-bit unsigned
	OperandI8                    // 8-bit signed
	OperandU16                   // 16-bit unsigned
	OperandI32                   // 32-bit signed immediate
	OperandJump                  // 32-bit relative jump offset
	OperandConst                 // 16-bit constant pool index
	OperandName                  // 16-bit name pool index
	OperandFunc                  // 16-bit function template index
	OperandScope                 // 16-bit scope layout index
	OperandSite                  // 16-bit feedback site
	OperandRegion                // 16-bit finally block index
)

func (o Operand) size() int {
	switch o {
	case OperandU8, OperandI8:
		return 1
	case OperandI32, OperandJump:
		return 4
	}
	return 2
}

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string    // human-readable name
	Operands    []Operand // operand layout
	StackEffect int       // net effect on stack (-99 = variable)
}

// OperandBytes returns the total operand size.
func (i OpcodeInfo) OperandBytes() int {
	n := 0
	for _, o := range i.Operands {
		n += o.size()
	}
	return n
}

// VariableEffect marks instructions whose stack effect depends on operands.
const VariableEffect = -99

func ops(o ...Operand) []Operand { return o }

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:  {"NOP", nil, 0},
	OpPop:  {"POP", nil, -1},
	OpDup:  {"DUP", nil, 1},
	OpDup2: {"DUP2", nil, 2},
	OpSwap: {"SWAP", nil, 0},
	OpRot3: {"ROT3", nil, 0},
	OpRot4: {"ROT4", nil, 0},

	OpUndefined: {"UNDEFINED", nil, 1},
	OpNull:      {"NULL", nil, 1},
	OpTrue:      {"TRUE", nil, 1},
	OpFalse:     {"FALSE", nil, 1},
	OpInt8:      {"INT8", ops(OperandI8), 1},
	OpInt32:     {"INT32", ops(OperandI32), 1},
	OpConst:     {"CONST", ops(OperandConst), 1},
	OpThis:      {"THIS", nil, 1},
	OpHole:      {"HOLE", nil, 1},

	OpGetLocal:     {"GET_LOCAL", ops(OperandU8, OperandU16), 1},
	OpSetLocal:     {"SET_LOCAL", ops(OperandU8, OperandU16), 0},
	OpInitLocal:    {"INIT_LOCAL", ops(OperandU8, OperandU16), -1},
	OpGetName:      {"GET_NAME", ops(OperandName), 1},
	OpSetName:      {"SET_NAME", ops(OperandName), 0},
	OpTypeofName:   {"TYPEOF_NAME", ops(OperandName), 1},
	OpDeleteName:   {"DELETE_NAME", ops(OperandName), 1},
	OpGetNameThis:  {"GET_NAME_THIS", ops(OperandName), 2},
	OpGetGlobal:    {"GET_GLOBAL", ops(OperandName), 1},
	OpSetGlobal:    {"SET_GLOBAL", ops(OperandName), 0},
	OpTypeofGlobal: {"TYPEOF_GLOBAL", ops(OperandName), 1},
	OpSetNameOuter: {"SET_NAME_OUTER", ops(OperandName), 0},

	OpDeclareVar:     {"DECLARE_VAR", ops(OperandName), 0},
	OpDeclareFunc:    {"DECLARE_FUNC", ops(OperandName), -1},
	OpDeclareLexical: {"DECLARE_LEXICAL", ops(OperandName, OperandU8), 0},
	OpInitGlobal:     {"INIT_GLOBAL", ops(OperandName), -1},
	OpPushScope:      {"PUSH_SCOPE", ops(OperandScope), 0},
	OpPopScope:       {"POP_SCOPE", nil, 0},
	OpPushWith:       {"PUSH_WITH", nil, -1},
	OpCloneScope:     {"CLONE_SCOPE", nil, 0},

	OpGetProp:    {"GET_PROP", ops(OperandName, OperandSite), 0},
	OpSetProp:    {"SET_PROP", ops(OperandName, OperandSite), -1},
	OpGetElem:    {"GET_ELEM", nil, -1},
	OpSetElem:    {"SET_ELEM", nil, -2},
	OpDeleteProp: {"DELETE_PROP", ops(OperandName), 0},
	OpDeleteElem: {"DELETE_ELEM", nil, -1},
	OpToKey:      {"TO_KEY", nil, 0},

	OpCall:     {"CALL", ops(OperandU16, OperandSite, OperandName), VariableEffect},
	OpCallEval: {"CALL_EVAL", ops(OperandU16), VariableEffect},
	OpNew:      {"NEW", ops(OperandU16, OperandName), VariableEffect},
	OpReturn:   {"RETURN", nil, -1},
	OpClosure:  {"CLOSURE", ops(OperandFunc), 1},

	OpAdd:        {"ADD", ops(OperandSite), -1},
	OpSub:        {"SUB", ops(OperandSite), -1},
	OpMul:        {"MUL", ops(OperandSite), -1},
	OpDiv:        {"DIV", ops(OperandSite), -1},
	OpMod:        {"MOD", ops(OperandSite), -1},
	OpExp:        {"EXP", nil, -1},
	OpShl:        {"SHL", nil, -1},
	OpShr:        {"SHR", nil, -1},
	OpUShr:       {"USHR", nil, -1},
	OpBitAnd:     {"BIT_AND", nil, -1},
	OpBitOr:      {"BIT_OR", nil, -1},
	OpBitXor:     {"BIT_XOR", nil, -1},
	OpLT:         {"LT", ops(OperandSite), -1},
	OpGT:         {"GT", ops(OperandSite), -1},
	OpLE:         {"LE", ops(OperandSite), -1},
	OpGE:         {"GE", ops(OperandSite), -1},
	OpEq:         {"EQ", nil, -1},
	OpNE:         {"NE", nil, -1},
	OpStrictEq:   {"STRICT_EQ", nil, -1},
	OpStrictNE:   {"STRICT_NE", nil, -1},
	OpIn:         {"IN", nil, -1},
	OpInstanceOf: {"INSTANCEOF", nil, -1},

	OpNot:      {"NOT", nil, 0},
	OpNeg:      {"NEG", nil, 0},
	OpToNumber: {"TO_NUMBER", nil, 0},
	OpBitNot:   {"BIT_NOT", nil, 0},
	OpTypeof:   {"TYPEOF", nil, 0},
	OpToString: {"TO_STRING", nil, 0},
	OpInc:      {"INC", nil, 0},
	OpDec:      {"DEC", nil, 0},

	OpJump:             {"JUMP", ops(OperandJump), 0},
	OpJumpIfFalse:      {"JUMP_IF_FALSE", ops(OperandJump), -1},
	OpJumpIfTrue:       {"JUMP_IF_TRUE", ops(OperandJump), -1},
	OpJumpIfFalseKeep:  {"JUMP_IF_FALSE_KEEP", ops(OperandJump), VariableEffect},
	OpJumpIfTrueKeep:   {"JUMP_IF_TRUE_KEEP", ops(OperandJump), VariableEffect},
	OpJumpNotNullKeep:  {"JUMP_NOT_NULL_KEEP", ops(OperandJump), VariableEffect},
	OpForInStart:       {"FOR_IN_START", nil, 0},
	OpForOfStart:       {"FOR_OF_START", nil, 0},
	OpIterNext:         {"ITER_NEXT", ops(OperandJump), VariableEffect},
	OpLeave:            {"LEAVE", ops(OperandJump, OperandU16, OperandU16), VariableEffect},
	OpNormalCompletion: {"NORMAL_COMPLETION", ops(OperandRegion), 0},
	OpEndFinally:       {"END_FINALLY", ops(OperandRegion), 0},

	OpNewObject:  {"NEW_OBJECT", nil, 1},
	OpInitProp:   {"INIT_PROP", ops(OperandName), -1},
	OpInitElem:   {"INIT_ELEM", nil, -2},
	OpInitGetter: {"INIT_GETTER", ops(OperandName), -1},
	OpInitSetter: {"INIT_SETTER", ops(OperandName), -1},
	OpNewArray:   {"NEW_ARRAY", nil, 1},
	OpArrayPush:  {"ARRAY_PUSH", nil, -1},
	OpRegExp:     {"REGEXP", ops(OperandConst, OperandConst), 1},

	OpInitAccessorElem: {"INIT_ACCESSOR_ELEM", ops(OperandU8), -2},

	OpThrow:      {"THROW", nil, -1},
	OpThrowError: {"THROW_ERROR", ops(OperandU8, OperandConst), 0},
	OpDebugger:   {"DEBUGGER", nil, 0},
	OpSetResult:  {"SET_RESULT", nil, -1},
	OpPushResult: {"PUSH_RESULT", nil, 1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{bytes: make([]byte, 0, 64)}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an instruction. The operands are encoded according to the
// opcode's layout; jump operands must go through EmitJump.
func (b *BytecodeBuilder) Emit(op Opcode, operands ...int) {
	info := op.Info()
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("%s: want %d operands, got %d", info.Name, len(info.Operands), len(operands)))
	}
	b.bytes = append(b.bytes, byte(op))
	for i, kind := range info.Operands {
		b.emitOperand(kind, operands[i])
	}
}

func (b *BytecodeBuilder) emitOperand(kind Operand, v int) {
	switch kind.size() {
	case 1:
		b.bytes = append(b.bytes, byte(v))
	case 2:
		if v < 0 || v > 0xFFFF {
			panic(fmt.Sprintf("operand %d out of 16-bit range", v))
		}
		b.bytes = binary.LittleEndian.AppendUint16(b.bytes, uint16(v))
	case 4:
		b.bytes = binary.LittleEndian.AppendUint32(b.bytes, uint32(int32(v)))
	}
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a jump target, possibly not yet placed.
type Label struct {
	resolved bool
	position int   // target (if resolved)
	refs     []int // offset operand positions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)
	for _, ref := range label.refs {
		b.patch(ref, label.position)
	}
	label.refs = nil
}

func (b *BytecodeBuilder) patch(ref, target int) {
	offset := target - (ref + 4) // offset from after the operand
	binary.LittleEndian.PutUint32(b.bytes[ref:], uint32(int32(offset)))
}

// EmitJump emits a jump instruction whose first operand is label. Any
// further operands follow the offset.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label, extra ...int) {
	info := op.Info()
	if len(info.Operands) == 0 || info.Operands[0] != OperandJump || len(extra) != len(info.Operands)-1 {
		panic(fmt.Sprintf("%s is not a jump with %d extra operands", info.Name, len(extra)))
	}
	b.bytes = append(b.bytes, byte(op))
	ref := len(b.bytes)
	b.bytes = append(b.bytes, 0, 0, 0, 0)
	if label.resolved {
		b.patch(ref, label.position)
	} else {
		label.refs = append(label.refs, ref)
	}
	for i, kind := range info.Operands[1:] {
		b.emitOperand(kind, extra[i])
	}
}

// ---------------------------------------------------------------------------
// Operand decoding
// ---------------------------------------------------------------------------

func readU16(bc []byte, pc int) int {
	return int(binary.LittleEndian.Uint16(bc[pc:]))
}

func readI32(bc []byte, pc int) int {
	return int(int32(binary.LittleEndian.Uint32(bc[pc:])))
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at pc and returns the pc
// of the next one.
func (c *Code) DisassembleInstruction(pc int) (string, int) {
	op := Opcode(c.Bytecode[pc])
	info := op.Info()
	var b strings.Builder
	fmt.Fprintf(&b, "%04d  %s", pc, info.Name)
	pos := pc + 1
	for _, kind := range info.Operands {
		switch kind {
		case OperandU8:
			fmt.Fprintf(&b, " %d", c.Bytecode[pos])
		case OperandI8:
			fmt.Fprintf(&b, " %d", int8(c.Bytecode[pos]))
		case OperandI32:
			fmt.Fprintf(&b, " %d", readI32(c.Bytecode, pos))
		case OperandJump:
			fmt.Fprintf(&b, " -> %04d", pos+4+readI32(c.Bytecode, pos))
		case OperandConst:
			idx := readU16(c.Bytecode, pos)
			if idx < len(c.Constants) {
				fmt.Fprintf(&b, " %s", ToDisplay(c.Constants[idx]))
			} else {
				fmt.Fprintf(&b, " const#%d", idx)
			}
		case OperandName:
			idx := readU16(c.Bytecode, pos)
			if idx < len(c.Names) {
				fmt.Fprintf(&b, " %s", c.Names[idx])
			} else {
				fmt.Fprintf(&b, " name#%d", idx)
			}
		case OperandFunc:
			idx := readU16(c.Bytecode, pos)
			name := "<anonymous>"
			if idx < len(c.Functions) && c.Functions[idx].Name != "" {
				name = c.Functions[idx].Name
			}
			fmt.Fprintf(&b, " fn#%d(%s)", idx, name)
		case OperandScope:
			fmt.Fprintf(&b, " scope#%d", readU16(c.Bytecode, pos))
		case OperandSite:
			fmt.Fprintf(&b, " @%d", readU16(c.Bytecode, pos))
		case OperandRegion:
			fmt.Fprintf(&b, " finally#%d", readU16(c.Bytecode, pos))
		default:
			fmt.Fprintf(&b, " %d", readU16(c.Bytecode, pos))
		}
		pos += kind.size()
	}
	return b.String(), pos
}

// Disassemble returns a listing of the code and its nested functions.
func (c *Code) Disassemble() string {
	var b strings.Builder
	c.disassemble(&b, "")
	return b.String()
}

func (c *Code) disassemble(b *strings.Builder, indent string) {
	name := c.Name
	if name == "" {
		name = "<anonymous>"
	}
	if c.Info == nil {
		name = "<script>"
	}
	fmt.Fprintf(b, "%s== %s (%s) ==\n", indent, name, c.SourceName)
	for pc := 0; pc < len(c.Bytecode); {
		var line string
		line, pc = c.DisassembleInstruction(pc)
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, r := range c.TryRegions {
		fmt.Fprintf(b, "%s  %s [%04d, %04d) -> %04d stack=%d scopes=%d\n",
			indent, r.Kind, r.Start, r.End, r.Handler, r.StackDepth, r.ScopeDepth)
	}
	for _, fn := range c.Functions {
		fn.disassemble(b, indent+"  ")
	}
}
