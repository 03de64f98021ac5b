// Package mir implements the SSA-form mid-level IR: a control-flow graph of
// basic blocks over typed virtual registers, built from pkg/hir, optimized by
// a fixed-point pass manager, and consumed by pkg/regalloc.
//
// Named source variables are not themselves SSA values — they are read and
// written through explicit EnvGet/EnvSet instructions against the runtime
// environment (pkg/env), which is what gives closures correct capture-by-
// reference semantics (§4.5/§4.6) without a separate escape-analysis pass.
// SSA registers and phi nodes exist for the values threaded through
// expression evaluation and control-flow merges — most visibly the
// conditional expression (`A if C else B`), which is the canonical case the
// dominance-frontier machinery in dominance.go exists to support.
package mir

import "github.com/machine-dialect/mdc/pkg/ast"

// Reg identifies an SSA virtual register, unique within one Function.
type Reg int

// NoReg marks an instruction with no destination register.
const NoReg Reg = -1

// Op identifies an MIR instruction's operation.
type Op int

const (
	OpConst Op = iota
	OpEnvGet
	OpEnvSet
	OpMove
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
	OpPhi
)

func (o Op) String() string {
	names := [...]string{
		"Const", "EnvGet", "EnvSet", "Move", "Add", "Sub", "Mul", "Div", "Neg", "Not",
		"Eq", "StrictEq", "StrictNeq", "Lt", "Le", "Gt", "Ge", "AssertBool",
		"MakeList", "MakeDict", "Len", "Index", "IndexSet", "ListAppend", "ListInsert",
		"ListRemove", "Call", "Say", "Return", "Jump", "Branch", "Phi",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}

// ConstKind tags the payload carried by an OpConst instruction.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstStr
	ConstURL
	ConstBool
	ConstEmpty
	ConstMissing
)

// Const is the immediate value an OpConst instruction materializes.
type Const struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// PhiEdge is one incoming value of a Phi instruction, tagged with the
// predecessor block it arrives from.
type PhiEdge struct {
	Block *BasicBlock
	Value Reg
}

// Instruction is one MIR operation. Which fields are meaningful depends on
// Op; unused fields are left zero rather than split into per-Op structs, to
// keep the instruction stream homogeneous the way pkg/ir.Instruction does.
type Instruction struct {
	Op       Op
	Dest     Reg
	Args     []Reg
	Const    *Const
	Name     string // EnvGet/EnvSet/Call target name
	Keys     []string // OpMakeDict entry keys, parallel to Args
	Target   *BasicBlock // OpJump
	TrueTgt  *BasicBlock // OpBranch
	FalseTgt *BasicBlock // OpBranch
	Phi      []PhiEdge   // OpPhi
	TypeHint ConstKind   // set by the type-specialization pass; zero value means "none"
	HasHint  bool
	Pos      ast.Position
}

// IsTerminator reports whether Op ends a basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpJump, OpBranch, OpReturn:
		return true
	default:
		return false
	}
}

// HasSideEffect reports whether the instruction must never be removed by
// dead-code elimination even when its Dest is unused, because executing it
// (or not) is itself observable — environment access can raise an
// UnknownIdentifier runtime error, calls and Say are effectful by definition.
func (i *Instruction) HasSideEffect() bool {
	switch i.Op {
	case OpEnvGet, OpEnvSet, OpCall, OpSay, OpReturn, OpJump, OpBranch,
		OpIndexSet, OpListAppend, OpListInsert, OpListRemove:
		return true
	default:
		return false
	}
}

// BasicBlock is a straight-line instruction sequence with one entry and,
// once built, exactly one terminator instruction at its end.
type BasicBlock struct {
	ID           int
	Name         string
	Instructions []*Instruction
	Preds        []*BasicBlock
	Succs        []*BasicBlock
}

func (b *BasicBlock) terminated() bool {
	return len(b.Instructions) > 0 && b.Instructions[len(b.Instructions)-1].IsTerminator()
}

func (b *BasicBlock) addSucc(s *BasicBlock) {
	b.Succs = append(b.Succs, s)
	s.Preds = append(s.Preds, b)
}

// Function is one MIR-level callable: either a lowered Utility or the
// module's implicit top-level "main" body.
type Function struct {
	Name      string
	Params    []string
	Blocks    []*BasicBlock
	Entry     *BasicBlock
	NextReg   Reg
	HasOutput bool
}

// Module is a whole compiled unit: every utility plus the implicit entry
// function that runs the top-level statements.
type Module struct {
	Functions []*Function
	Main      *Function
}
