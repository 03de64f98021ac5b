package hir

import "github.com/machine-dialect/mdc/pkg/diag"

// checkReachability reports diag.UnreachableCode (Info severity — advisory,
// never blocks compilation) for any statement textually following a
// Give-Back in the same straight-line sequence, recursing into If/While
// bodies. It runs once per lowered body (a utility's or the program's
// top-level statements).
func checkReachability(diags *diag.Bag, stmts []Statement) {
	sawReturn := false
	for _, s := range stmts {
		if sawReturn {
			diags.Add(s.Pos(), diag.Info, diag.UnreachableCode, "statement after Give-Back is never executed")
		}
		switch st := s.(type) {
		case *GiveBackStmt:
			sawReturn = true
		case *IfStmt:
			checkReachability(diags, st.Then)
			checkReachability(diags, st.Else)
		case *WhileStmt:
			checkReachability(diags, st.Body)
		}
	}
}
