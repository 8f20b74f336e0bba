package classfile

import "fmt"

// Opcode is a JVM instruction opcode.
type Opcode uint8

// Opcodes that carry constant-pool operands and therefore show up in events.
const (
	Ldc             Opcode = 0x12
	LdcW            Opcode = 0x13
	Ldc2W           Opcode = 0x14
	GetStatic       Opcode = 0xb2
	PutStatic       Opcode = 0xb3
	GetField        Opcode = 0xb4
	PutField        Opcode = 0xb5
	InvokeVirtual   Opcode = 0xb6
	InvokeSpecial   Opcode = 0xb7
	InvokeStatic    Opcode = 0xb8
	InvokeInterface Opcode = 0xb9
	InvokeDynamic   Opcode = 0xba
	New             Opcode = 0xbb
	ANewArray       Opcode = 0xbd
	CheckCast       Opcode = 0xc0
	InstanceOf      Opcode = 0xc1
	MultiANewArray  Opcode = 0xc5
)

const (
	opIinc         = 0x84
	opRet          = 0xa9
	opTableSwitch  = 0xaa
	opLookupSwitch = 0xab
	opWide         = 0xc4
)

var opcodeNames = map[Opcode]string{
	Ldc:             "ldc",
	LdcW:            "ldc_w",
	Ldc2W:           "ldc2_w",
	GetStatic:       "getstatic",
	PutStatic:       "putstatic",
	GetField:        "getfield",
	PutField:        "putfield",
	InvokeVirtual:   "invokevirtual",
	InvokeSpecial:   "invokespecial",
	InvokeStatic:    "invokestatic",
	InvokeInterface: "invokeinterface",
	InvokeDynamic:   "invokedynamic",
	New:             "new",
	ANewArray:       "anewarray",
	CheckCast:       "checkcast",
	InstanceOf:      "instanceof",
	MultiANewArray:  "multianewarray",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", uint8(op))
}

// operandSize returns the fixed operand length of opcodes that need no
// special handling. ok is false for undefined opcodes.
func operandSize(op uint8) (n int, ok bool) {
	switch {
	case op <= 0x0f: // nop, constants
		return 0, true
	case op == 0x10: // bipush
		return 1, true
	case op == 0x11: // sipush
		return 2, true
	case op >= 0x15 && op <= 0x19: // xload
		return 1, true
	case op >= 0x1a && op <= 0x35: // xload_n, array loads
		return 0, true
	case op >= 0x36 && op <= 0x3a: // xstore
		return 1, true
	case op >= 0x3b && op <= 0x83: // xstore_n, array stores, stack, arithmetic
		return 0, true
	case op == opIinc:
		return 2, true
	case op >= 0x85 && op <= 0x98: // conversions, comparisons
		return 0, true
	case op >= 0x99 && op <= 0xa8: // if*, goto, jsr
		return 2, true
	case op == opRet:
		return 1, true
	case op >= 0xac && op <= 0xb1: // returns
		return 0, true
	case op == 0xbc: // newarray
		return 1, true
	case op == 0xbe || op == 0xbf || op == 0xc2 || op == 0xc3: // arraylength, athrow, monitors
		return 0, true
	case op == 0xc6 || op == 0xc7: // ifnull, ifnonnull
		return 2, true
	case op == 0xc8 || op == 0xc9: // goto_w, jsr_w
		return 4, true
	}
	return 0, false
}

// isWideable reports whether op may follow the wide prefix with a two-byte index.
func isWideable(op uint8) bool {
	return (op >= 0x15 && op <= 0x19) || (op >= 0x36 && op <= 0x3a) || op == opRet
}
