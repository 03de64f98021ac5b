package bytecode

import (
	"fmt"

	"github.com/machine-dialect/mdc/pkg/mir"
	"github.com/machine-dialect/mdc/pkg/regalloc"
)

// Assemble lowers an optimized, register-allocated MIR module into a
// bytecode.Module. allocs must contain one Allocation per mir.Module
// Function (as produced by regalloc.Allocate).
func Assemble(mod *mir.Module, allocs map[*mir.Function]*regalloc.Allocation, name string) (*Module, error) {
	out := &Module{Name: name}
	pool := &constPool{index: map[string]int{}}

	fnIndex := map[string]int{}
	for i, fn := range mod.Functions {
		fnIndex[fn.Name] = i
	}
	mainIdx, ok := fnIndex[mod.Main.Name]
	if !ok {
		return nil, fmt.Errorf("bytecode: main function %q not found in module", mod.Main.Name)
	}
	out.MainIndex = mainIdx

	for _, fn := range mod.Functions {
		alloc, ok := allocs[fn]
		if !ok {
			return nil, fmt.Errorf("bytecode: no register allocation for function %q", fn.Name)
		}
		bf, err := assembleFunction(fn, alloc, pool)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, *bf)
	}
	out.Constants = pool.entries
	return out, nil
}

type constPool struct {
	entries []Constant
	index   map[string]int
}

func (p *constPool) intern(c Constant) uint16 {
	key := fmt.Sprintf("%d|%d|%g|%s|%t", c.Kind, c.Int, c.Float, c.Str, c.Bool)
	if idx, ok := p.index[key]; ok {
		return uint16(idx)
	}
	idx := len(p.entries)
	p.entries = append(p.entries, c)
	p.index[key] = idx
	return uint16(idx)
}

func (p *constPool) internName(name string) uint16 {
	return p.intern(Constant{Kind: ConstStr, Str: name})
}

func assembleFunction(fn *mir.Function, alloc *regalloc.Allocation, pool *constPool) (*Function, error) {
	if alloc.NumRegs > 256 {
		return nil, &regalloc.RegisterOverflowError{Function: fn.Name, Limit: 256}
	}

	// Pass 1: determine, per block, the flattened item list (instructions
	// plus any inserted phi-resolution copies) so block start offsets are
	// known before jump/branch targets are encoded.
	type item struct {
		copy  *regalloc.Copy
		instr *mir.Instruction
	}
	blockItems := make(map[*mir.BasicBlock][]item, len(fn.Blocks))
	blockStart := make(map[*mir.BasicBlock]uint32, len(fn.Blocks))

	var total uint32
	for _, b := range fn.Blocks {
		var items []item
		for _, instr := range b.Instructions {
			if instr.Op == mir.OpPhi {
				continue
			}
			if instr.IsTerminator() {
				continue
			}
			items = append(items, item{instr: instr})
		}
		for _, c := range alloc.EdgeCopies[b.ID] {
			cp := c
			items = append(items, item{copy: &cp})
		}
		if n := len(b.Instructions); n > 0 {
			items = append(items, item{instr: b.Instructions[n-1]})
		}
		blockItems[b] = items
		blockStart[b] = total
		total += uint32(len(items))
	}

	code := make([]Instruction, 0, total)
	for _, b := range fn.Blocks {
		for _, it := range blockItems[b] {
			if it.copy != nil {
				code = append(code, Instruction{Op: OpMove, Dst: uint8(it.copy.Dest), Src1: uint8(it.copy.Src)})
				continue
			}
			encoded, err := encodeInstr(it.instr, alloc, pool, blockStart)
			if err != nil {
				return nil, fmt.Errorf("function %q: %w", fn.Name, err)
			}
			code = append(code, encoded)
		}
	}

	paramNames := make([]uint16, len(fn.Params))
	for i, p := range fn.Params {
		paramNames[i] = pool.internName(p)
	}

	return &Function{
		Name:         fn.Name,
		ParamNames:   paramNames,
		NumRegisters: alloc.NumRegs,
		HasOutput:    fn.HasOutput,
		Code:         code,
	}, nil
}

func reg(alloc *regalloc.Allocation, r mir.Reg) uint8 {
	return uint8(alloc.PhysReg[r])
}

func encodeInstr(instr *mir.Instruction, alloc *regalloc.Allocation, pool *constPool, blockStart map[*mir.BasicBlock]uint32) (Instruction, error) {
	switch instr.Op {
	case mir.OpConst:
		return Instruction{Op: OpConst, Dst: reg(alloc, instr.Dest), ConstIdx: pool.intern(fromMIRConst(instr.Const))}, nil

	case mir.OpEnvGet:
		return Instruction{Op: OpEnvGet, Dst: reg(alloc, instr.Dest), ConstIdx: pool.internName(instr.Name)}, nil

	case mir.OpEnvSet:
		return Instruction{Op: OpEnvSet, Src1: reg(alloc, instr.Args[0]), ConstIdx: pool.internName(instr.Name)}, nil

	case mir.OpMove:
		return Instruction{Op: OpMove, Dst: reg(alloc, instr.Dest), Src1: reg(alloc, instr.Args[0])}, nil

	case mir.OpNeg, mir.OpNot, mir.OpLen, mir.OpAssertBool:
		return Instruction{Op: toUnaryOpcode(instr.Op), Dst: reg(alloc, instr.Dest), Src1: reg(alloc, instr.Args[0])}, nil

	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpDiv, mir.OpEq, mir.OpStrictEq, mir.OpStrictNeq,
		mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe, mir.OpIndex:
		return Instruction{Op: toBinaryOpcode(instr.Op), Dst: reg(alloc, instr.Dest), Src1: reg(alloc, instr.Args[0]), Src2: reg(alloc, instr.Args[1])}, nil

	case mir.OpMakeList:
		regs := make([]uint8, len(instr.Args))
		for i, a := range instr.Args {
			regs[i] = reg(alloc, a)
		}
		return Instruction{Op: OpMakeList, Dst: reg(alloc, instr.Dest), Regs: regs}, nil

	case mir.OpMakeDict:
		regs := make([]uint8, len(instr.Args))
		keys := make([]uint16, len(instr.Args))
		for i, a := range instr.Args {
			regs[i] = reg(alloc, a)
			keys[i] = pool.internName(instr.Keys[i])
		}
		return Instruction{Op: OpMakeDict, Dst: reg(alloc, instr.Dest), Regs: regs, DictKeys: keys}, nil

	case mir.OpListAppend, mir.OpListRemove:
		return Instruction{Op: toBinaryOpcode(instr.Op), Src1: reg(alloc, instr.Args[0]), Src2: reg(alloc, instr.Args[1])}, nil

	case mir.OpListInsert, mir.OpIndexSet:
		return Instruction{
			Op:   toBinaryOpcode(instr.Op),
			Src1: reg(alloc, instr.Args[0]),
			Src2: reg(alloc, instr.Args[1]),
			Regs: []uint8{reg(alloc, instr.Args[2])},
		}, nil

	case mir.OpCall:
		regs := make([]uint8, len(instr.Args))
		for i, a := range instr.Args {
			regs[i] = reg(alloc, a)
		}
		return Instruction{Op: OpCall, Dst: reg(alloc, instr.Dest), ConstIdx: pool.internName(instr.Name), Regs: regs}, nil

	case mir.OpSay:
		return Instruction{Op: OpSay, Src1: reg(alloc, instr.Args[0])}, nil

	case mir.OpReturn:
		return Instruction{Op: OpReturn, Src1: reg(alloc, instr.Args[0])}, nil

	case mir.OpJump:
		return Instruction{Op: OpJump, Target: blockStart[instr.Target]}, nil

	case mir.OpBranch:
		return Instruction{
			Op:          OpBranch,
			Src1:        reg(alloc, instr.Args[0]),
			TrueTarget:  blockStart[instr.TrueTgt],
			FalseTarget: blockStart[instr.FalseTgt],
		}, nil

	default:
		return Instruction{}, fmt.Errorf("unsupported MIR opcode %v", instr.Op)
	}
}

func toUnaryOpcode(op mir.Op) Opcode {
	switch op {
	case mir.OpNeg:
		return OpNeg
	case mir.OpNot:
		return OpNot
	case mir.OpLen:
		return OpLen
	case mir.OpAssertBool:
		return OpAssertBool
	default:
		return OpNeg
	}
}

func toBinaryOpcode(op mir.Op) Opcode {
	switch op {
	case mir.OpAdd:
		return OpAdd
	case mir.OpSub:
		return OpSub
	case mir.OpMul:
		return OpMul
	case mir.OpDiv:
		return OpDiv
	case mir.OpEq:
		return OpEq
	case mir.OpStrictEq:
		return OpStrictEq
	case mir.OpStrictNeq:
		return OpStrictNeq
	case mir.OpLt:
		return OpLt
	case mir.OpLe:
		return OpLe
	case mir.OpGt:
		return OpGt
	case mir.OpGe:
		return OpGe
	case mir.OpIndex:
		return OpIndex
	case mir.OpIndexSet:
		return OpIndexSet
	case mir.OpListAppend:
		return OpListAppend
	case mir.OpListInsert:
		return OpListInsert
	case mir.OpListRemove:
		return OpListRemove
	default:
		return OpAdd
	}
}

func fromMIRConst(c *mir.Const) Constant {
	return Constant{
		Kind:  ConstKind(c.Kind),
		Int:   c.Int,
		Float: c.Float,
		Str:   c.Str,
		Bool:  c.Bool,
	}
}
