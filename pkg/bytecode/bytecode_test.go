package bytecode

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleModule() *Module {
	return &Module{
		Name: "sample",
		Constants: []Constant{
			{Kind: ConstInt, Int: 42},
			{Kind: ConstFloat, Float: 3.5},
			{Kind: ConstStr, Str: "hello"},
			{Kind: ConstURL, Str: "https://example.com"},
			{Kind: ConstBool, Bool: true},
			{Kind: ConstEmpty},
		},
		MainIndex: 1,
		Functions: []Function{
			{
				Name:         "double",
				ParamNames:   []uint16{2},
				NumRegisters: 4,
				HasOutput:    true,
				Code: []Instruction{
					{Op: OpEnvGet, Dst: 0, ConstIdx: 2},
					{Op: OpConst, Dst: 1, ConstIdx: 0},
					{Op: OpAdd, Dst: 2, Src1: 0, Src2: 1},
					{Op: OpReturn, Src1: 2},
				},
			},
			{
				Name:         "main",
				ParamNames:   []uint16{},
				NumRegisters: 3,
				Code: []Instruction{
					{Op: OpConst, Dst: 0, ConstIdx: 0},
					{Op: OpMakeList, Dst: 1, Regs: []uint8{0, 0}},
					{Op: OpMakeDict, Dst: 2, Regs: []uint8{0}, DictKeys: []uint16{2}},
					{Op: OpListAppend, Src1: 1, Src2: 0},
					{Op: OpListRemove, Src1: 1, Src2: 0},
					{Op: OpListInsert, Src1: 1, Src2: 0, Regs: []uint8{0}},
					{Op: OpIndexSet, Src1: 1, Src2: 0, Regs: []uint8{0}},
					{Op: OpCall, Dst: 0, ConstIdx: 2, Regs: []uint8{0}},
					{Op: OpBranch, Src1: 0, TrueTarget: 5, FalseTarget: 6},
					{Op: OpJump, Target: 7},
					{Op: OpSay, Src1: 0},
					{Op: OpReturn, Src1: 0},
				},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	mod := sampleModule()
	data, err := mod.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(mod, got) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", mod, got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data, err := sampleModule().Encode()
	require.NoError(t, err)
	corrupted := append([]byte(nil), data...)
	corrupted[0] = 'X'
	_, err = Decode(corrupted)
	require.Error(t, err, "expected an error for a bad magic header")
}

func TestDecodeRejectsUnsupportedMajorVersion(t *testing.T) {
	data, err := sampleModule().Encode()
	require.NoError(t, err)
	corrupted := append([]byte(nil), data...)
	corrupted[4] = VersionMajor + 1
	_, err = Decode(corrupted)
	require.Error(t, err, "expected an error for an unsupported major version")
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	data, err := sampleModule().Encode()
	require.NoError(t, err)
	_, err = Decode(data[:len(data)-3])
	require.Error(t, err, "expected an error for truncated input rather than a partial module")
}

func TestOpcodeString(t *testing.T) {
	if OpAdd.String() != "Add" || OpBranch.String() != "Branch" {
		t.Fatal("unexpected Opcode.String() values")
	}
	if OpListAppend.String() != "ListAppend" || OpIndexSet.String() != "IndexSet" {
		t.Fatal("unexpected Opcode.String() values for the Data group mutation ops")
	}
	if Opcode(255).String() != "Unknown" {
		t.Fatal("out-of-range Opcode should stringify as Unknown")
	}
}

func TestFunctionNumParams(t *testing.T) {
	fn := Function{ParamNames: []uint16{1, 2, 3}}
	if fn.NumParams() != 3 {
		t.Fatalf("NumParams() = %d, want 3", fn.NumParams())
	}
}
