package mir

import (
	"testing"

	"github.com/machine-dialect/mdc/pkg/hir"
)

func TestBuildMainFallsThroughToImplicitReturn(t *testing.T) {
	prog := &hir.Program{Statements: []hir.Statement{
		&hir.SetStmt{Name: "x", Value: &hir.IntLit{Value: 1}},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	main := mod.Main
	if main.Name != "main" {
		t.Fatalf("Main.Name = %q, want main", main.Name)
	}
	last := main.Entry.Instructions[len(main.Entry.Instructions)-1]
	if last.Op != OpReturn {
		t.Fatalf("last instruction = %v, want implicit OpReturn", last.Op)
	}
}

func TestBuildIfProducesThreeBlocksAndJoins(t *testing.T) {
	prog := &hir.Program{Statements: []hir.Statement{
		&hir.IfStmt{
			Cond: &hir.BoolLit{Value: true},
			Then: []hir.Statement{&hir.SayStmt{Value: &hir.StringLit{Value: "yes"}}},
			Else: []hir.Statement{&hir.SayStmt{Value: &hir.StringLit{Value: "no"}}},
		},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	main := mod.Main
	// entry, if.then, if.else, if.join
	if len(main.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4 (entry/then/else/join)", len(main.Blocks))
	}
	entryTerm := main.Entry.Instructions[len(main.Entry.Instructions)-1]
	if entryTerm.Op != OpBranch {
		t.Fatalf("entry terminator = %v, want OpBranch", entryTerm.Op)
	}
	if len(main.Entry.Succs) != 2 {
		t.Fatalf("entry has %d successors, want 2", len(main.Entry.Succs))
	}
}

func TestBuildWhileFormsBackEdge(t *testing.T) {
	prog := &hir.Program{Statements: []hir.Statement{
		&hir.WhileStmt{
			Cond: &hir.BoolLit{Value: false},
			Body: []hir.Statement{&hir.SayStmt{Value: &hir.StringLit{Value: "loop"}}},
		},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	main := mod.Main
	var condBlk *BasicBlock
	for _, blk := range main.Blocks {
		if blk.Name == "while.cond" {
			condBlk = blk
		}
	}
	if condBlk == nil {
		t.Fatal("no while.cond block found")
	}
	foundBackEdge := false
	for _, pred := range condBlk.Preds {
		if pred.Name == "while.body" {
			foundBackEdge = true
		}
	}
	if !foundBackEdge {
		t.Fatal("while.cond should have while.body as a predecessor (the back edge)")
	}
}

func TestBuildSelectEmitsPhiWithTwoEdges(t *testing.T) {
	prog := &hir.Program{Statements: []hir.Statement{
		&hir.ExprStmt{Expr: &hir.Select{
			Cond: &hir.BoolLit{Value: true},
			Then: &hir.IntLit{Value: 1},
			Else: &hir.IntLit{Value: 0},
		}},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	var phi *Instruction
	for _, blk := range mod.Main.Blocks {
		for _, instr := range blk.Instructions {
			if instr.Op == OpPhi {
				phi = instr
			}
		}
	}
	if phi == nil {
		t.Fatal("expected an OpPhi instruction for the Select expression")
	}
	if len(phi.Phi) != 2 {
		t.Fatalf("got %d phi edges, want 2", len(phi.Phi))
	}
}

func TestBuildAndOrLowerToBranchesWithAssertBool(t *testing.T) {
	prog := &hir.Program{Statements: []hir.Statement{
		&hir.ExprStmt{Expr: &hir.Infix{
			Op:    "and",
			Left:  &hir.BoolLit{Value: false},
			Right: &hir.Call{Callee: "sideEffect"},
		}},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	main := mod.Main

	var rhsBlk *BasicBlock
	for _, blk := range main.Blocks {
		if blk.Name == "logical.rhs" {
			rhsBlk = blk
		}
	}
	if rhsBlk == nil {
		t.Fatal("expected a logical.rhs block reached only via branch")
	}
	foundCall := false
	for _, instr := range rhsBlk.Instructions {
		if instr.Op == OpCall {
			foundCall = true
		}
	}
	if !foundCall {
		t.Fatal("right operand's Call should be emitted inside logical.rhs, not the entry block")
	}
	for _, instr := range main.Entry.Instructions {
		if instr.Op == OpCall {
			t.Fatal("right operand must not be evaluated unconditionally in the entry block (no short-circuit)")
		}
	}

	var assertCount, phiCount int
	for _, blk := range main.Blocks {
		for _, instr := range blk.Instructions {
			switch instr.Op {
			case OpAssertBool:
				assertCount++
			case OpPhi:
				phiCount++
			}
		}
	}
	if assertCount != 2 {
		t.Fatalf("got %d OpAssertBool instructions, want 2 (one per operand)", assertCount)
	}
	if phiCount != 1 {
		t.Fatalf("got %d OpPhi instructions, want 1 joining the short-circuit and rhs paths", phiCount)
	}
}

func TestBuildStopsEmittingAfterReturn(t *testing.T) {
	prog := &hir.Program{Utilities: []*hir.Utility{
		{
			Name:      "f",
			HasOutput: true,
			Body: []hir.Statement{
				&hir.GiveBackStmt{Value: &hir.IntLit{Value: 1}},
				&hir.SayStmt{Value: &hir.StringLit{Value: "unreachable"}},
			},
		},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	fn := mod.Functions[0]
	for _, instr := range fn.Entry.Instructions {
		if instr.Op == OpSay {
			t.Fatal("OpSay should never be emitted for a statement after Give-Back")
		}
	}
}

func TestBuildCallPassesArgsByPosition(t *testing.T) {
	prog := &hir.Program{
		Utilities: []*hir.Utility{
			{Name: "double", Params: []*hir.Param{{Name: "n"}}, HasOutput: true,
				Body: []hir.Statement{&hir.GiveBackStmt{Value: &hir.Identifier{Name: "n"}}}},
		},
		Statements: []hir.Statement{
			&hir.ExprStmt{Expr: &hir.Call{Callee: "double", Args: []hir.Expression{&hir.IntLit{Value: 21}}}},
		},
	}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	var call *Instruction
	for _, instr := range mod.Main.Entry.Instructions {
		if instr.Op == OpCall {
			call = instr
		}
	}
	if call == nil || call.Name != "double" || len(call.Args) != 1 {
		t.Fatalf("call instruction = %#v, want OpCall(double, 1 arg)", call)
	}
}

func TestBuildListMutationStmtsLowerToNoDestInstructions(t *testing.T) {
	prog := &hir.Program{Statements: []hir.Statement{
		&hir.ListAppendStmt{List: &hir.Identifier{Name: "items"}, Value: &hir.IntLit{Value: 4}},
		&hir.ListRemoveStmt{List: &hir.Identifier{Name: "items"}, Value: &hir.IntLit{Value: 2}},
		&hir.ListInsertStmt{
			List:     &hir.Identifier{Name: "items"},
			Position: &hir.IntLit{Value: 2},
			Value:    &hir.IntLit{Value: 15},
		},
		&hir.IndexSetStmt{
			Collection: &hir.Identifier{Name: "items"},
			Index:      &hir.IntLit{Value: 1},
			Value:      &hir.IntLit{Value: 10},
		},
	}}
	mod, diags := Build(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}

	wantOps := []Op{OpListAppend, OpListRemove, OpListInsert, OpIndexSet}
	var got []Op
	for _, instr := range mod.Main.Entry.Instructions {
		switch instr.Op {
		case OpListAppend, OpListRemove, OpListInsert, OpIndexSet:
			if instr.Dest != NoReg {
				t.Fatalf("%v instruction has Dest = %d, want NoReg", instr.Op, instr.Dest)
			}
			got = append(got, instr.Op)
		}
	}
	if len(got) != len(wantOps) {
		t.Fatalf("got %d mutation instructions %v, want %v", len(got), got, wantOps)
	}
	for i, op := range wantOps {
		if got[i] != op {
			t.Fatalf("instruction[%d] = %v, want %v", i, got[i], op)
		}
	}

	var insert *Instruction
	for _, instr := range mod.Main.Entry.Instructions {
		if instr.Op == OpListInsert {
			insert = instr
		}
	}
	if insert == nil || len(insert.Args) != 3 {
		t.Fatalf("OpListInsert args = %#v, want 3 (list, position, value)", insert)
	}
}
