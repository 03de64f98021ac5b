package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// reader is a small cursor over an in-memory MDBC buffer; every read
// advances the cursor and errors rather than panicking on truncated input.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("bytecode: unexpected end of input at offset %d (need %d bytes)", r.pos, n)
	}
	return nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) str(n int) (string, error) {
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses an MDBC binary buffer produced by Module.Encode, failing on
// a bad magic/version or any truncation rather than returning a partial
// module — bytecode loading is all-or-nothing (round-trip safety, §8).
func Decode(data []byte) (*Module, error) {
	r := &reader{data: data}

	magic, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("bytecode: bad magic %q, want %q", magic, Magic)
	}
	major, err := r.byte()
	if err != nil {
		return nil, err
	}
	if major != VersionMajor {
		return nil, fmt.Errorf("bytecode: unsupported major version %d", major)
	}
	if _, err := r.byte(); err != nil { // minor, accepted for any value
		return nil, err
	}
	if _, err := r.u16(); err != nil { // flags, reserved
		return nil, err
	}

	nameLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	name, err := r.str(int(nameLen))
	if err != nil {
		return nil, err
	}

	numConsts, err := r.u32()
	if err != nil {
		return nil, err
	}
	consts := make([]Constant, numConsts)
	for i := range consts {
		c, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		consts[i] = c
	}

	numFns, err := r.u32()
	if err != nil {
		return nil, err
	}
	mainIdx, err := r.u32()
	if err != nil {
		return nil, err
	}
	fns := make([]Function, numFns)
	for i := range fns {
		fn, err := decodeFunction(r)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}

	return &Module{Name: name, Constants: consts, Functions: fns, MainIndex: int(mainIdx)}, nil
}

func decodeConstant(r *reader) (Constant, error) {
	kind, err := r.byte()
	if err != nil {
		return Constant{}, err
	}
	c := Constant{Kind: ConstKind(kind)}
	switch c.Kind {
	case ConstInt:
		v, err := r.u64()
		if err != nil {
			return Constant{}, err
		}
		c.Int = int64(v)
	case ConstFloat:
		v, err := r.u64()
		if err != nil {
			return Constant{}, err
		}
		c.Float = math.Float64frombits(v)
	case ConstStr, ConstURL:
		n, err := r.u32()
		if err != nil {
			return Constant{}, err
		}
		s, err := r.str(int(n))
		if err != nil {
			return Constant{}, err
		}
		c.Str = s
	case ConstBool:
		b, err := r.byte()
		if err != nil {
			return Constant{}, err
		}
		c.Bool = b != 0
	case ConstEmpty:
	case ConstMissing:
		n, err := r.u32()
		if err != nil {
			return Constant{}, err
		}
		s, err := r.str(int(n))
		if err != nil {
			return Constant{}, err
		}
		c.Str = s
	default:
		return Constant{}, fmt.Errorf("bytecode: unknown constant kind %d", kind)
	}
	return c, nil
}

func decodeFunction(r *reader) (Function, error) {
	nameLen, err := r.u32()
	if err != nil {
		return Function{}, err
	}
	name, err := r.str(int(nameLen))
	if err != nil {
		return Function{}, err
	}
	numParams, err := r.u16()
	if err != nil {
		return Function{}, err
	}
	paramNames := make([]uint16, numParams)
	for i := range paramNames {
		p, err := r.u16()
		if err != nil {
			return Function{}, err
		}
		paramNames[i] = p
	}
	numRegisters, err := r.u16()
	if err != nil {
		return Function{}, err
	}
	hasOutputByte, err := r.byte()
	if err != nil {
		return Function{}, err
	}
	codeLen, err := r.u32()
	if err != nil {
		return Function{}, err
	}
	code := make([]Instruction, codeLen)
	for i := range code {
		instr, err := decodeInstruction(r)
		if err != nil {
			return Function{}, fmt.Errorf("function %q: %w", name, err)
		}
		code[i] = instr
	}
	return Function{
		Name:         name,
		ParamNames:   paramNames,
		NumRegisters: int(numRegisters),
		HasOutput:    hasOutputByte != 0,
		Code:         code,
	}, nil
}

func decodeInstruction(r *reader) (Instruction, error) {
	opByte, err := r.byte()
	if err != nil {
		return Instruction{}, err
	}
	op := Opcode(opByte)
	instr := Instruction{Op: op}

	readRegs := func() ([]uint8, error) {
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		return r.bytes(int(n))
	}

	switch op {
	case OpConst, OpEnvGet:
		instr.Dst, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.ConstIdx, err = r.u16()
	case OpEnvSet:
		instr.Src1, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.ConstIdx, err = r.u16()
	case OpMove, OpNeg, OpNot, OpLen, OpAssertBool:
		instr.Dst, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.Src1, err = r.byte()
	case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpStrictEq, OpStrictNeq, OpLt, OpLe, OpGt, OpGe, OpIndex:
		instr.Dst, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.Src1, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.Src2, err = r.byte()
	case OpListAppend, OpListRemove:
		instr.Src1, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.Src2, err = r.byte()
	case OpListInsert, OpIndexSet:
		instr.Src1, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.Src2, err = r.byte()
		if err != nil {
			return instr, err
		}
		var reg byte
		reg, err = r.byte()
		instr.Regs = []uint8{reg}
	case OpMakeList:
		instr.Dst, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.Regs, err = readRegs()
	case OpMakeDict:
		instr.Dst, err = r.byte()
		if err != nil {
			return instr, err
		}
		n, err2 := r.byte()
		if err2 != nil {
			return instr, err2
		}
		instr.Regs = make([]uint8, n)
		instr.DictKeys = make([]uint16, n)
		for i := 0; i < int(n); i++ {
			k, err3 := r.u16()
			if err3 != nil {
				return instr, err3
			}
			reg, err4 := r.byte()
			if err4 != nil {
				return instr, err4
			}
			instr.DictKeys[i] = k
			instr.Regs[i] = reg
		}
	case OpCall:
		instr.Dst, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.ConstIdx, err = r.u16()
		if err != nil {
			return instr, err
		}
		instr.Regs, err = readRegs()
	case OpSay, OpReturn:
		instr.Src1, err = r.byte()
	case OpJump:
		instr.Target, err = r.u32()
	case OpBranch:
		instr.Src1, err = r.byte()
		if err != nil {
			return instr, err
		}
		instr.TrueTarget, err = r.u32()
		if err != nil {
			return instr, err
		}
		instr.FalseTarget, err = r.u32()
	default:
		return instr, fmt.Errorf("bytecode: unknown opcode %d", opByte)
	}
	return instr, err
}
