package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes m into the MDBC binary container format: a fixed header
// (magic, one-byte major and minor version, two-byte flags; no section
// offset table), then the module name, the constant pool, and the function
// table with each function record carrying its own instruction stream, all
// little-endian, written in that fixed order.
func (m *Module) Encode() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(Magic)
	buf.WriteByte(VersionMajor)
	buf.WriteByte(VersionMinor)
	writeU16(&buf, 0) // flags, reserved

	writeU32(&buf, uint32(len(m.Name)))
	buf.WriteString(m.Name)

	writeU32(&buf, uint32(len(m.Constants)))
	for _, c := range m.Constants {
		encodeConstant(&buf, c)
	}

	writeU32(&buf, uint32(len(m.Functions)))
	writeU32(&buf, uint32(m.MainIndex))
	for _, fn := range m.Functions {
		if err := encodeFunction(&buf, fn); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func encodeConstant(buf *bytes.Buffer, c Constant) {
	buf.WriteByte(byte(c.Kind))
	switch c.Kind {
	case ConstInt:
		writeU64(buf, uint64(c.Int))
	case ConstFloat:
		writeU64(buf, math.Float64bits(c.Float))
	case ConstStr, ConstURL:
		writeU32(buf, uint32(len(c.Str)))
		buf.WriteString(c.Str)
	case ConstBool:
		if c.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case ConstEmpty:
		// no payload
	case ConstMissing:
		writeU32(buf, uint32(len(c.Str)))
		buf.WriteString(c.Str)
	}
}

func encodeFunction(buf *bytes.Buffer, fn Function) error {
	writeU32(buf, uint32(len(fn.Name)))
	buf.WriteString(fn.Name)
	writeU16(buf, uint16(len(fn.ParamNames)))
	for _, p := range fn.ParamNames {
		writeU16(buf, p)
	}
	writeU16(buf, uint16(fn.NumRegisters))
	if fn.HasOutput {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeU32(buf, uint32(len(fn.Code)))
	for _, instr := range fn.Code {
		if err := encodeInstruction(buf, instr); err != nil {
			return fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}
	return nil
}

func encodeInstruction(buf *bytes.Buffer, instr Instruction) error {
	buf.WriteByte(byte(instr.Op))
	switch instr.Op {
	case OpConst:
		buf.WriteByte(instr.Dst)
		writeU16(buf, instr.ConstIdx)
	case OpEnvGet:
		buf.WriteByte(instr.Dst)
		writeU16(buf, instr.ConstIdx)
	case OpEnvSet:
		buf.WriteByte(instr.Src1)
		writeU16(buf, instr.ConstIdx)
	case OpMove, OpNeg, OpNot, OpLen, OpAssertBool:
		buf.WriteByte(instr.Dst)
		buf.WriteByte(instr.Src1)
	case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpStrictEq, OpStrictNeq, OpLt, OpLe, OpGt, OpGe, OpIndex:
		buf.WriteByte(instr.Dst)
		buf.WriteByte(instr.Src1)
		buf.WriteByte(instr.Src2)
	case OpListAppend, OpListRemove:
		buf.WriteByte(instr.Src1)
		buf.WriteByte(instr.Src2)
	case OpListInsert, OpIndexSet:
		buf.WriteByte(instr.Src1)
		buf.WriteByte(instr.Src2)
		buf.WriteByte(instr.Regs[0])
	case OpMakeList:
		buf.WriteByte(instr.Dst)
		buf.WriteByte(uint8(len(instr.Regs)))
		buf.Write(instr.Regs)
	case OpMakeDict:
		buf.WriteByte(instr.Dst)
		buf.WriteByte(uint8(len(instr.Regs)))
		for i, r := range instr.Regs {
			writeU16(buf, instr.DictKeys[i])
			buf.WriteByte(r)
		}
	case OpCall:
		buf.WriteByte(instr.Dst)
		writeU16(buf, instr.ConstIdx)
		buf.WriteByte(uint8(len(instr.Regs)))
		buf.Write(instr.Regs)
	case OpSay, OpReturn:
		buf.WriteByte(instr.Src1)
	case OpJump:
		writeU32(buf, instr.Target)
	case OpBranch:
		buf.WriteByte(instr.Src1)
		writeU32(buf, instr.TrueTarget)
		writeU32(buf, instr.FalseTarget)
	default:
		return fmt.Errorf("unknown opcode %v", instr.Op)
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
