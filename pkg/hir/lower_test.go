package hir

import (
	"testing"

	"github.com/machine-dialect/mdc/pkg/ast"
	"github.com/machine-dialect/mdc/pkg/diag"
)

func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

func TestLowerSetStmt(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.SetStmt{Name: ident("x"), Value: &ast.IntegerLiteral{Value: 5}},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	if len(out.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(out.Statements))
	}
	set, ok := out.Statements[0].(*SetStmt)
	if !ok || set.Name != "x" {
		t.Fatalf("statement = %#v, want SetStmt(x)", out.Statements[0])
	}
	lit, ok := set.Value.(*IntLit)
	if !ok || lit.Value != 5 {
		t.Fatalf("SetStmt.Value = %#v, want IntLit(5)", set.Value)
	}
}

func TestLowerConditionalExprToSelect(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStmt{Expression: &ast.ConditionalExpr{
			Then: &ast.IntegerLiteral{Value: 1},
			Cond: &ast.BooleanLiteral{Value: true},
			Else: &ast.IntegerLiteral{Value: 0},
		}},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	es := out.Statements[0].(*ExprStmt)
	if _, ok := es.Expr.(*Select); !ok {
		t.Fatalf("ConditionalExpr should lower to Select, got %T", es.Expr)
	}
}

func TestLowerForEachDesugarsToIndexedWhile(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.ForEachStmt{
			ItemName:   ident("item"),
			Collection: &ast.ListLiteral{Elements: []ast.Expression{&ast.IntegerLiteral{Value: 1}}},
			Body:       []ast.Statement{&ast.SayStmt{Value: ident("item")}},
		},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	if len(out.Statements) != 2 {
		t.Fatalf("got %d top-level statements, want 2 (index init + while)", len(out.Statements))
	}
	init, ok := out.Statements[0].(*SetStmt)
	if !ok {
		t.Fatalf("first statement = %#v, want SetStmt initializing the loop index", out.Statements[0])
	}
	loop, ok := out.Statements[1].(*WhileStmt)
	if !ok {
		t.Fatalf("second statement = %#v, want WhileStmt", out.Statements[1])
	}
	cond, ok := loop.Cond.(*Infix)
	if !ok || cond.Op != "<" {
		t.Fatalf("loop condition = %#v, want Infix(<)", loop.Cond)
	}
	idxRef, ok := cond.Left.(*Identifier)
	if !ok || idxRef.Name != init.Name {
		t.Fatalf("loop condition's left operand should reference the same index variable as the init statement")
	}
	if len(loop.Body) != 3 {
		t.Fatalf("loop body has %d statements, want 3 (bind item, Say, increment)", len(loop.Body))
	}
	bind, ok := loop.Body[0].(*SetStmt)
	if !ok || bind.Name != "item" {
		t.Fatalf("loop body[0] = %#v, want SetStmt(item)", loop.Body[0])
	}
	if _, ok := bind.Value.(*IndexExpr); !ok {
		t.Fatalf("item binding should read from an IndexExpr, got %T", bind.Value)
	}
}

func TestLowerCallPositionalArgs(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.UtilityDefStmt{
			Name: ident("add"),
			Params: []*ast.Parameter{
				{Name: ident("a"), Required: true},
				{Name: ident("b"), Required: true},
			},
			Body:       []ast.Statement{&ast.GiveBackStmt{Value: ident("a")}},
			HasOutput:  true,
			OutputType: ast.TypeWholeNumber,
		},
		&ast.ExpressionStmt{Expression: &ast.CallExpr{
			Callee:         ident("add"),
			PositionalArgs: []ast.Expression{&ast.IntegerLiteral{Value: 1}, &ast.IntegerLiteral{Value: 2}},
		}},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	es := out.Statements[0].(*ExprStmt)
	call := es.Expr.(*Call)
	if call.Callee != "add" || len(call.Args) != 2 {
		t.Fatalf("call = %#v, want add(1, 2)", call)
	}
	if call.Type() != ast.TypeWholeNumber {
		t.Fatalf("call.Type() = %v, want TypeWholeNumber (propagated from add's declared output)", call.Type())
	}
}

func TestLowerCallNamedArgsFillsMissingWithDefault(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.UtilityDefStmt{
			Name: ident("greet"),
			Params: []*ast.Parameter{
				{Name: ident("name"), Required: true},
				{Name: ident("loud"), Required: false, Default: &ast.BooleanLiteral{Value: false}},
			},
			Body: []ast.Statement{&ast.GiveBackStmt{Value: ident("name")}},
		},
		&ast.ExpressionStmt{Expression: &ast.CallExpr{
			Callee: ident("greet"),
			NamedArgs: []ast.NamedArg{
				{Name: ident("name"), Value: &ast.StringLiteral{Value: "Ada"}},
			},
		}},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	call := out.Statements[0].(*ExprStmt).Expr.(*Call)
	if len(call.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(call.Args))
	}
	loud, ok := call.Args[1].(*BoolLit)
	if !ok || loud.Value != false {
		t.Fatalf("args[1] = %#v, want the declared default (false)", call.Args[1])
	}
}

func TestLowerDuplicateParameterDiagnostic(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.UtilityDefStmt{
			Name: ident("f"),
			Params: []*ast.Parameter{
				{Name: ident("x"), Required: true},
				{Name: ident("x"), Required: true},
			},
		},
	}}
	_, diags := Lower(prog)
	if !diags.HasErrors() {
		t.Fatal("expected a DuplicateParameter diagnostic")
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.DuplicateParameter {
			found = true
		}
	}
	if !found {
		t.Fatalf("diagnostics = %v, want a DuplicateParameter entry", diags.Items())
	}
}

func TestLowerHoistsNestedUtilityDef(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.IfStmt{
			Condition: &ast.BooleanLiteral{Value: true},
			Then: []ast.Statement{
				&ast.UtilityDefStmt{
					Name:       ident("helper"),
					Body:       []ast.Statement{&ast.GiveBackStmt{Value: &ast.IntegerLiteral{Value: 1}}},
					HasOutput:  true,
					OutputType: ast.TypeWholeNumber,
				},
			},
		},
		&ast.ExpressionStmt{Expression: &ast.CallExpr{Callee: ident("helper")}},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v (helper should be hoisted and callable)", diags.Items())
	}
	if len(out.Utilities) != 1 || out.Utilities[0].Name != "helper" {
		t.Fatalf("Utilities = %#v, want [helper] hoisted from the If branch", out.Utilities)
	}
}

func TestLowerUnknownCalleeDiagnostic(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStmt{Expression: &ast.CallExpr{Callee: ident("nope")}},
	}}
	_, diags := Lower(prog)
	if !diags.HasErrors() {
		t.Fatal("expected an UnknownIdentifier diagnostic")
	}
}

// A missing required argument is not a compile-time error (§4.5's Call
// protocol, §8 scenario 8): the call still lowers, with the missing slot
// filled by a MissingArgLit that raises MissingRequiredParameter at runtime
// if it ever reaches argument binding.
func TestLowerMissingRequiredArgumentIsNotADiagnostic(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.UtilityDefStmt{
			Name:   ident("one"),
			Params: []*ast.Parameter{{Name: ident("a"), Required: true}},
		},
		&ast.ExpressionStmt{Expression: &ast.CallExpr{Callee: ident("one")}},
	}}
	hirProg, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics for a missing required argument: %v", diags.Items())
	}

	stmt, ok := hirProg.Statements[0].(*ExprStmt)
	if !ok {
		t.Fatalf("statement = %T, want *ExprStmt", hirProg.Statements[0])
	}
	call, ok := stmt.Expr.(*Call)
	if !ok {
		t.Fatalf("expr = %T, want *Call", stmt.Expr)
	}
	if len(call.Args) != 1 {
		t.Fatalf("got %d args, want 1", len(call.Args))
	}
	missing, ok := call.Args[0].(*MissingArgLit)
	if !ok {
		t.Fatalf("args[0] = %T, want *MissingArgLit", call.Args[0])
	}
	if missing.Param != "a" {
		t.Fatalf("Param = %q, want %q", missing.Param, "a")
	}
}

func TestLowerArityMismatchDiagnosticOnTooManyPositionalArgs(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.UtilityDefStmt{
			Name:   ident("one"),
			Params: []*ast.Parameter{{Name: ident("a"), Required: true}},
		},
		&ast.ExpressionStmt{Expression: &ast.CallExpr{
			Callee:         ident("one"),
			PositionalArgs: []ast.Expression{&ast.IntegerLiteral{Value: 1}, &ast.IntegerLiteral{Value: 2}},
		}},
	}}
	_, diags := Lower(prog)
	if !diags.HasErrors() {
		t.Fatal("expected an ArityMismatch diagnostic for too many positional arguments")
	}
}

func TestLowerListMutationStmts(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.ListAppendStmt{List: ident("items"), Value: &ast.IntegerLiteral{Value: 4}},
		&ast.ListRemoveStmt{List: ident("items"), Value: &ast.IntegerLiteral{Value: 2}},
		&ast.ListInsertStmt{List: ident("items"), Position: &ast.IntegerLiteral{Value: 2}, Value: &ast.IntegerLiteral{Value: 15}},
		&ast.IndexSetStmt{Collection: ident("items"), Index: &ast.IntegerLiteral{Value: 1}, Value: &ast.IntegerLiteral{Value: 10}},
	}}
	out, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Items())
	}
	if len(out.Statements) != 4 {
		t.Fatalf("got %d statements, want 4", len(out.Statements))
	}

	app, ok := out.Statements[0].(*ListAppendStmt)
	if !ok {
		t.Fatalf("statement[0] = %T, want *ListAppendStmt", out.Statements[0])
	}
	if _, ok := app.List.(*Identifier); !ok {
		t.Fatalf("ListAppendStmt.List = %T, want *Identifier", app.List)
	}

	rem, ok := out.Statements[1].(*ListRemoveStmt)
	if !ok {
		t.Fatalf("statement[1] = %T, want *ListRemoveStmt", out.Statements[1])
	}
	if v, ok := rem.Value.(*IntLit); !ok || v.Value != 2 {
		t.Fatalf("ListRemoveStmt.Value = %#v, want IntLit(2)", rem.Value)
	}

	ins, ok := out.Statements[2].(*ListInsertStmt)
	if !ok {
		t.Fatalf("statement[2] = %T, want *ListInsertStmt", out.Statements[2])
	}
	if p, ok := ins.Position.(*IntLit); !ok || p.Value != 2 {
		t.Fatalf("ListInsertStmt.Position = %#v, want IntLit(2)", ins.Position)
	}

	set, ok := out.Statements[3].(*IndexSetStmt)
	if !ok {
		t.Fatalf("statement[3] = %T, want *IndexSetStmt", out.Statements[3])
	}
	if v, ok := set.Value.(*IntLit); !ok || v.Value != 10 {
		t.Fatalf("IndexSetStmt.Value = %#v, want IntLit(10)", set.Value)
	}
}
