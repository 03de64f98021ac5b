package ast

import "testing"

func samplePos(line int) Position { return Position{Line: line, Column: 1, Offset: 0} }

func TestJSONRoundTripProgram(t *testing.T) {
	prog := &Program{
		StartPos: samplePos(1),
		EndPos:   samplePos(10),
		Statements: []Statement{
			&SetStmt{
				Name:  &Identifier{Name: "total", StartPos: samplePos(1), EndPos: samplePos(1)},
				Value: &IntegerLiteral{Value: 7, StartPos: samplePos(1), EndPos: samplePos(1)},
			},
			&UtilityDefStmt{
				Name: &Identifier{Name: "double"},
				Params: []*Parameter{
					{Name: &Identifier{Name: "n"}, Type: TypeWholeNumber, Required: true},
				},
				Body: []Statement{
					&GiveBackStmt{
						Value: &InfixExpr{
							Left:     &Identifier{Name: "n"},
							Operator: "*",
							Right:    &IntegerLiteral{Value: 2},
						},
					},
				},
				OutputType: TypeWholeNumber,
				HasOutput:  true,
			},
			&IfStmt{
				Condition: &InfixExpr{
					Left:     &Identifier{Name: "total"},
					Operator: ">",
					Right:    &IntegerLiteral{Value: 0},
				},
				Then: []Statement{
					&SayStmt{Value: &StringLiteral{Value: "positive"}},
				},
				Else: []Statement{
					&SayStmt{Value: &StringLiteral{Value: "non-positive"}},
				},
				IsWhen: true,
			},
			&ExpressionStmt{
				Expression: &CallExpr{
					Callee:         &Identifier{Name: "double"},
					PositionalArgs: []Expression{&Identifier{Name: "total"}},
					NamedArgs: []NamedArg{
						{Name: &Identifier{Name: "unused"}, Value: &BooleanLiteral{Value: true}},
					},
				},
			},
			&ForEachStmt{
				ItemName:   &Identifier{Name: "item"},
				Collection: &ListLiteral{Elements: []Expression{&IntegerLiteral{Value: 1}, &FloatLiteral{Value: 2.5}}},
				Body: []Statement{
					&SayStmt{Value: &Identifier{Name: "item"}},
				},
			},
			&WhileStmt{
				Condition: &BooleanLiteral{Value: false},
				Body:      []Statement{&ExpressionStmt{Expression: &EmptyLiteral{}}},
			},
			&SetUsingStmt{
				Name: &Identifier{Name: "y"},
				Call: &CallExpr{Callee: &Identifier{Name: "double"}, PositionalArgs: []Expression{&IntegerLiteral{Value: 3}}},
			},
			&DefineStmt{Name: &Identifier{Name: "z"}, Type: TypeURL},
			&ExpressionStmt{Expression: &PrefixExpr{Operator: "not", Operand: &BooleanLiteral{Value: true}}},
			&ExpressionStmt{Expression: &ConditionalExpr{
				Then: &IntegerLiteral{Value: 1},
				Cond: &BooleanLiteral{Value: true},
				Else: &IntegerLiteral{Value: 0},
			}},
			&ExpressionStmt{Expression: &DictLiteral{Entries: []DictEntry{
				{Key: "a", Value: &IntegerLiteral{Value: 1}},
				{Key: "b", Value: &StringLiteral{Value: "x"}},
			}}},
			&ExpressionStmt{Expression: &URLLiteral{Value: "https://example.com"}},
		},
	}

	data, err := DumpJSON(prog)
	if err != nil {
		t.Fatalf("DumpJSON: %v", err)
	}

	got, err := LoadJSON(data)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}

	if len(got.Statements) != len(prog.Statements) {
		t.Fatalf("got %d statements, want %d", len(got.Statements), len(prog.Statements))
	}

	set, ok := got.Statements[0].(*SetStmt)
	if !ok || set.Name.Name != "total" {
		t.Fatalf("statement 0 = %#v, want SetStmt(total)", got.Statements[0])
	}
	if lit, ok := set.Value.(*IntegerLiteral); !ok || lit.Value != 7 {
		t.Fatalf("SetStmt.Value = %#v, want IntegerLiteral(7)", set.Value)
	}

	util, ok := got.Statements[1].(*UtilityDefStmt)
	if !ok || util.Name.Name != "double" || len(util.Params) != 1 || util.Params[0].Name.Name != "n" {
		t.Fatalf("statement 1 = %#v, want UtilityDefStmt(double, [n])", got.Statements[1])
	}

	ifs, ok := got.Statements[2].(*IfStmt)
	if !ok || !ifs.IsWhen || len(ifs.Then) != 1 || len(ifs.Else) != 1 {
		t.Fatalf("statement 2 = %#v, want IfStmt with When/Then/Else", got.Statements[2])
	}

	exprStmt, ok := got.Statements[3].(*ExpressionStmt)
	if !ok {
		t.Fatalf("statement 3 = %#v, want ExpressionStmt", got.Statements[3])
	}
	call, ok := exprStmt.Expression.(*CallExpr)
	if !ok || call.Callee.Name != "double" || len(call.PositionalArgs) != 1 || len(call.NamedArgs) != 1 {
		t.Fatalf("ExpressionStmt.Expression = %#v, want CallExpr(double)", exprStmt.Expression)
	}

	fe, ok := got.Statements[4].(*ForEachStmt)
	if !ok || fe.ItemName.Name != "item" {
		t.Fatalf("statement 4 = %#v, want ForEachStmt(item)", got.Statements[4])
	}
	list, ok := fe.Collection.(*ListLiteral)
	if !ok || len(list.Elements) != 2 {
		t.Fatalf("ForEachStmt.Collection = %#v, want ListLiteral of 2 elements", fe.Collection)
	}

	su, ok := got.Statements[6].(*SetUsingStmt)
	if !ok || su.Name.Name != "y" || su.Call.Callee.Name != "double" {
		t.Fatalf("statement 6 = %#v, want SetUsingStmt(y, double(...))", got.Statements[6])
	}

	def, ok := got.Statements[7].(*DefineStmt)
	if !ok || def.Type != TypeURL {
		t.Fatalf("statement 7 = %#v, want DefineStmt(z, URL)", got.Statements[7])
	}

	dictStmt, ok := got.Statements[10].(*ExpressionStmt)
	if !ok {
		t.Fatalf("statement 10 is not ExpressionStmt")
	}
	dict, ok := dictStmt.Expression.(*DictLiteral)
	if !ok || len(dict.Entries) != 2 || dict.Entries[0].Key != "a" {
		t.Fatalf("DictLiteral round-trip failed: %#v", dictStmt.Expression)
	}
}

func TestLoadJSONRejectsUnknownType(t *testing.T) {
	if _, err := LoadJSON([]byte(`{"statements":[{"type":"NotARealStmt","data":{}}]}`)); err == nil {
		t.Fatal("expected an error for an unknown statement type")
	}
}

func TestSetUsingStmtRequiresCallExpr(t *testing.T) {
	bad := `{"statements":[{"type":"SetUsingStmt","data":{"name":{"name":"x"},"call":{"type":"IntegerLiteral","data":{"value":1}}}}]}`
	if _, err := LoadJSON([]byte(bad)); err == nil {
		t.Fatal("expected an error when SetUsingStmt.call is not a CallExpr")
	}
}
