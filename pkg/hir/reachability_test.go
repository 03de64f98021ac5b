package hir

import (
	"testing"

	"github.com/machine-dialect/mdc/pkg/ast"
	"github.com/machine-dialect/mdc/pkg/diag"
)

func TestLowerReportsUnreachableCodeAfterGiveBack(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.UtilityDefStmt{
			Name: ident("early"),
			Body: []ast.Statement{
				&ast.GiveBackStmt{Value: &ast.IntegerLiteral{Value: 1}},
				&ast.SayStmt{Value: &ast.StringLiteral{Value: "never"}},
			},
			HasOutput:  true,
			OutputType: ast.TypeWholeNumber,
		},
	}}
	_, diags := Lower(prog)
	if diags.HasErrors() {
		t.Fatalf("an Info diagnostic must not block compilation: %v", diags.Items())
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.UnreachableCode {
			if d.Severity != diag.Info {
				t.Fatalf("UnreachableCode severity = %v, want Info", d.Severity)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("diagnostics = %v, want an UnreachableCode entry for the statement after Give-Back", diags.Items())
	}
}

func TestLowerDoesNotReportUnreachableCodeWithoutGiveBack(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.SetStmt{Name: ident("x"), Value: &ast.IntegerLiteral{Value: 1}},
		&ast.SayStmt{Value: ident("x")},
	}}
	_, diags := Lower(prog)
	for _, d := range diags.Items() {
		if d.Kind == diag.UnreachableCode {
			t.Fatalf("unexpected UnreachableCode diagnostic: %v", d)
		}
	}
}

func TestLowerReportsUnreachableCodeInsideIfBranch(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.IfStmt{
			Condition: &ast.BooleanLiteral{Value: true},
			Then: []ast.Statement{
				&ast.GiveBackStmt{Value: &ast.IntegerLiteral{Value: 1}},
				&ast.SayStmt{Value: &ast.StringLiteral{Value: "never"}},
			},
		},
	}}
	_, diags := Lower(prog)
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.UnreachableCode {
			found = true
		}
	}
	if !found {
		t.Fatalf("diagnostics = %v, want an UnreachableCode entry from inside the If branch", diags.Items())
	}
}
