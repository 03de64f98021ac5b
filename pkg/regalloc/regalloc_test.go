package regalloc

import (
	"testing"

	"github.com/machine-dialect/mdc/pkg/mir"
)

func singleBlockFn(instrs ...*mir.Instruction) *mir.Function {
	blk := &mir.BasicBlock{ID: 0, Name: "entry", Instructions: instrs}
	return &mir.Function{Name: "f", Entry: blk, Blocks: []*mir.BasicBlock{blk}}
}

func TestAllocateAssignsDistinctRegistersToOverlappingValues(t *testing.T) {
	fn := singleBlockFn(
		&mir.Instruction{Op: mir.OpConst, Dest: 0, Const: &mir.Const{Kind: mir.ConstInt, Int: 1}},
		&mir.Instruction{Op: mir.OpConst, Dest: 1, Const: &mir.Const{Kind: mir.ConstInt, Int: 2}},
		&mir.Instruction{Op: mir.OpAdd, Dest: 2, Args: []mir.Reg{0, 1}},
	)
	alloc, err := Allocate(fn, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.PhysReg[0] == alloc.PhysReg[1] {
		t.Fatal("registers 0 and 1 are simultaneously live at the Add and must not alias")
	}
}

func TestAllocateReusesRegisterAfterLastUse(t *testing.T) {
	fn := singleBlockFn(
		&mir.Instruction{Op: mir.OpConst, Dest: 0, Const: &mir.Const{Kind: mir.ConstInt, Int: 1}},
		&mir.Instruction{Op: mir.OpSay, Dest: mir.NoReg, Args: []mir.Reg{0}},
		&mir.Instruction{Op: mir.OpConst, Dest: 1, Const: &mir.Const{Kind: mir.ConstInt, Int: 2}},
		&mir.Instruction{Op: mir.OpSay, Dest: mir.NoReg, Args: []mir.Reg{1}},
	)
	alloc, err := Allocate(fn, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.PhysReg[0] != alloc.PhysReg[1] {
		t.Fatalf("register 0's interval ends before register 1's begins; linear scan should reuse the slot, got %d and %d",
			alloc.PhysReg[0], alloc.PhysReg[1])
	}
}

func TestAllocateReturnsRegisterOverflowError(t *testing.T) {
	instrs := make([]*mir.Instruction, 0, 6)
	// Three simultaneously-live values (all used together at the end) with a
	// register budget of 2 must overflow.
	for i := 0; i < 3; i++ {
		instrs = append(instrs, &mir.Instruction{Op: mir.OpConst, Dest: mir.Reg(i), Const: &mir.Const{Kind: mir.ConstInt, Int: int64(i)}})
	}
	instrs = append(instrs, &mir.Instruction{Op: mir.OpSay, Dest: mir.NoReg, Args: []mir.Reg{0, 1, 2}})
	fn := singleBlockFn(instrs...)

	_, err := Allocate(fn, 2)
	if err == nil {
		t.Fatal("expected a RegisterOverflowError")
	}
	overflow, ok := err.(*RegisterOverflowError)
	if !ok {
		t.Fatalf("error type = %T, want *RegisterOverflowError", err)
	}
	if overflow.Limit != 2 || overflow.Function != "f" {
		t.Fatalf("unexpected error fields: %#v", overflow)
	}
}

func TestResolveParallelCopiesBreaksCycleWithScratch(t *testing.T) {
	// A swap: dest 1 <- src 2, dest 2 <- src 1 is a cycle requiring scratch.
	copies := []Copy{{Dest: 1, Src: 2}, {Dest: 2, Src: 1}}
	out := resolveParallelCopies(copies, 99)

	usesScratch := false
	for _, c := range out {
		if c.Dest == 99 || c.Src == 99 {
			usesScratch = true
		}
	}
	if !usesScratch {
		t.Fatalf("cyclic copy set should route through the scratch register: %#v", out)
	}
}

func TestResolveParallelCopiesNoCycleIsDirect(t *testing.T) {
	copies := []Copy{{Dest: 1, Src: 0}, {Dest: 2, Src: 0}}
	out := resolveParallelCopies(copies, 99)
	if len(out) != 2 {
		t.Fatalf("got %d copies, want 2 (no cycle, no scratch needed)", len(out))
	}
	for _, c := range out {
		if c.Dest == 99 || c.Src == 99 {
			t.Fatal("acyclic copy set should not touch the scratch register")
		}
	}
}
