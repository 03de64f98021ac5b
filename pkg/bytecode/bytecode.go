// Package bytecode defines the MDBC binary container format: the compiled,
// serializable form of a Machine Dialect program that pkg/vm executes and
// that `mdc` writes to and `mdvm` reads from disk (§3.5/§4.4).
//
// The in-memory Module/Function/Instruction types here are independent of
// pkg/mir — once assembled, a bytecode.Module carries everything the VM
// needs and nothing from the compiler's middle end leaks through, the same
// separation the teacher keeps between its codegen output and its VM input.
package bytecode

// Magic identifies an MDBC file.
const Magic = "MDBC"

// VersionMajor/VersionMinor are the container format version this package
// reads and writes.
const (
	VersionMajor = 1
	VersionMinor = 0
)

// Opcode identifies one VM instruction.
type Opcode byte

const (
	OpConst Opcode = iota
	OpMove
	OpEnvGet
	OpEnvSet
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpNot
	OpEq
	OpStrictEq
	OpStrictNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAssertBool
	OpMakeList
	OpMakeDict
	OpLen
	OpIndex
	OpIndexSet
	OpListAppend
	OpListInsert
	OpListRemove
	OpCall
	OpSay
	OpReturn
	OpJump
	OpBranch
)

func (o Opcode) String() string {
	names := [...]string{
		"Const", "Move", "EnvGet", "EnvSet", "Add", "Sub", "Mul", "Div", "Neg", "Not",
		"Eq", "StrictEq", "StrictNeq", "Lt", "Le", "Gt", "Ge", "AssertBool",
		"MakeList", "MakeDict", "Len", "Index", "IndexSet", "ListAppend", "ListInsert",
		"ListRemove", "Call", "Say", "Return", "Jump", "Branch",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}

// ConstKind tags a constant pool entry's payload.
type ConstKind byte

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstStr
	ConstURL
	ConstBool
	ConstEmpty
	ConstMissing
)

// Constant is one constant-pool entry.
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// Instruction is one bytecode instruction. Which fields are meaningful
// depends on Op; Target/TrueTarget/FalseTarget are instruction indices within
// the owning Function's Code, carried through Encode/Decode verbatim — the
// wire format stores indices, not byte offsets, so the VM's dispatch loop can
// jump by indexing straight into Code without a separate offset table.
type Instruction struct {
	Op          Opcode
	Dst         uint8
	Src1        uint8
	Src2        uint8
	ConstIdx    uint16
	Regs        []uint8  // MakeList elements / Call arguments, in order
	DictKeys    []uint16 // MakeDict keys, parallel to Regs
	Target      uint32
	TrueTarget  uint32
	FalseTarget uint32
}

// Function is one compiled callable. ParamNames indexes the constant pool
// for each parameter, in declaration order — the callee binds incoming
// argument values to these names in its call frame's environment, since
// Machine Dialect variables (including parameters) are accessed by name
// through pkg/env rather than by fixed register slot.
type Function struct {
	Name         string
	ParamNames   []uint16
	NumRegisters int
	HasOutput    bool
	Code         []Instruction
}

// NumParams is the function's declared arity.
func (f Function) NumParams() int { return len(f.ParamNames) }

// Module is a whole compiled program, ready to serialize or execute.
type Module struct {
	Name      string
	Constants []Constant
	Functions []Function
	MainIndex int
}
