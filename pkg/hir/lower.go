package hir

import (
	"fmt"

	"github.com/machine-dialect/mdc/pkg/ast"
	"github.com/machine-dialect/mdc/pkg/diag"
)

// lowerer carries the two-pass state needed to resolve calls against
// forward-declared utilities and to manufacture unique hidden loop-index
// names for the ForEachStmt desugaring.
type lowerer struct {
	diags     *diag.Bag
	sigs      map[string]*ast.UtilityDefStmt
	eachCount int
}

// Lower desugars prog into an HIR program, collecting diagnostics along the
// way rather than stopping at the first problem (I1). Utility definitions
// are hoisted to the program level wherever they appear — including nested
// inside an If/While/ForEach body — so a call can reference a utility
// defined later, or one nested in a branch that may never execute.
func Lower(prog *ast.Program) (*Program, *diag.Bag) {
	l := &lowerer{diags: &diag.Bag{}, sigs: map[string]*ast.UtilityDefStmt{}}

	utilities := l.hoistUtilities(prog.Statements)
	for _, u := range utilities {
		l.sigs[u.Name.Name] = u
		l.checkDuplicateParams(u)
	}

	out := &Program{}
	for _, u := range utilities {
		lowered := l.lowerUtility(u)
		checkReachability(l.diags, lowered.Body)
		out.Utilities = append(out.Utilities, lowered)
	}
	for _, stmt := range prog.Statements {
		if lowered := l.lowerStmt(stmt); lowered != nil {
			out.Statements = append(out.Statements, lowered...)
		}
	}
	checkReachability(l.diags, out.Statements)
	return out, l.diags
}

// hoistUtilities walks stmts and every nested statement body, collecting
// every UtilityDefStmt in the order encountered, at any nesting depth.
func (l *lowerer) hoistUtilities(stmts []ast.Statement) []*ast.UtilityDefStmt {
	var out []*ast.UtilityDefStmt
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.UtilityDefStmt:
			out = append(out, s)
			out = append(out, l.hoistUtilities(s.Body)...)
		case *ast.IfStmt:
			out = append(out, l.hoistUtilities(s.Then)...)
			out = append(out, l.hoistUtilities(s.Else)...)
		case *ast.WhileStmt:
			out = append(out, l.hoistUtilities(s.Body)...)
		case *ast.ForEachStmt:
			out = append(out, l.hoistUtilities(s.Body)...)
		}
	}
	return out
}

func (l *lowerer) checkDuplicateParams(u *ast.UtilityDefStmt) {
	seen := map[string]bool{}
	for _, p := range u.Params {
		if seen[p.Name.Name] {
			l.diags.Errorf(p.Name.Pos(), diag.DuplicateParameter,
				"duplicate parameter %q in utility %q", p.Name.Name, u.Name.Name)
			continue
		}
		seen[p.Name.Name] = true
	}
}

func (l *lowerer) lowerUtility(u *ast.UtilityDefStmt) *Utility {
	params := make([]*Param, 0, len(u.Params))
	for _, p := range u.Params {
		var def Expression
		if p.Default != nil {
			def = l.lowerExpr(p.Default)
		}
		params = append(params, &Param{
			Name:     p.Name.Name,
			Type:     p.Type,
			Required: p.Required,
			Default:  def,
		})
	}
	var body []Statement
	for _, s := range u.Body {
		body = append(body, l.lowerStmt(s)...)
	}
	return &Utility{
		Name:       u.Name.Name,
		Params:     params,
		Body:       body,
		OutputType: u.OutputType,
		HasOutput:  u.HasOutput,
		Pos:        u.Pos(),
	}
}

// lowerStmt returns zero or more HIR statements for one AST statement.
// DefineStmt returns none and its declared type is not recorded: later
// references to the name stay Any-typed, like every other Identifier.
func (l *lowerer) lowerStmt(stmt ast.Statement) []Statement {
	switch s := stmt.(type) {
	case *ast.SetStmt:
		return []Statement{&SetStmt{Name: s.Name.Name, Value: l.lowerExpr(s.Value), P: s.Pos()}}

	case *ast.SetUsingStmt:
		call := l.lowerCall(s.Call)
		return []Statement{&SetStmt{Name: s.Name.Name, Value: call, P: s.Pos()}}

	case *ast.DefineStmt:
		return nil

	case *ast.GiveBackStmt:
		return []Statement{&GiveBackStmt{Value: l.lowerExpr(s.Value), P: s.Pos()}}

	case *ast.SayStmt:
		return []Statement{&SayStmt{Value: l.lowerExpr(s.Value), P: s.Pos()}}

	case *ast.IfStmt:
		var then, els []Statement
		for _, t := range s.Then {
			then = append(then, l.lowerStmt(t)...)
		}
		for _, e := range s.Else {
			els = append(els, l.lowerStmt(e)...)
		}
		return []Statement{&IfStmt{Cond: l.lowerExpr(s.Condition), Then: then, Else: els, P: s.Pos()}}

	case *ast.WhileStmt:
		var body []Statement
		for _, b := range s.Body {
			body = append(body, l.lowerStmt(b)...)
		}
		return []Statement{&WhileStmt{Cond: l.lowerExpr(s.Condition), Body: body, P: s.Pos()}}

	case *ast.ForEachStmt:
		return l.lowerForEach(s)

	case *ast.ExpressionStmt:
		return []Statement{&ExprStmt{Expr: l.lowerExpr(s.Expression), P: s.Pos()}}

	case *ast.ListAppendStmt:
		return []Statement{&ListAppendStmt{List: l.lowerExpr(s.List), Value: l.lowerExpr(s.Value), P: s.Pos()}}

	case *ast.ListRemoveStmt:
		return []Statement{&ListRemoveStmt{List: l.lowerExpr(s.List), Value: l.lowerExpr(s.Value), P: s.Pos()}}

	case *ast.ListInsertStmt:
		return []Statement{&ListInsertStmt{
			List:     l.lowerExpr(s.List),
			Position: l.lowerExpr(s.Position),
			Value:    l.lowerExpr(s.Value),
			P:        s.Pos(),
		}}

	case *ast.IndexSetStmt:
		return []Statement{&IndexSetStmt{
			Collection: l.lowerExpr(s.Collection),
			Index:      l.lowerExpr(s.Index),
			Value:      l.lowerExpr(s.Value),
			P:          s.Pos(),
		}}

	case *ast.UtilityDefStmt:
		// Already hoisted to Program.Utilities by hoistUtilities; a nested
		// occurrence contributes nothing at its original position.
		return nil

	default:
		l.diags.Errorf(stmt.Pos(), diag.SyntaxError, "unsupported statement %T", stmt)
		return nil
	}
}

// lowerForEach desugars `For each item in collection: body` into:
//
//	Set __each_idx_N to 0
//	While __each_idx_N < Len(collection):
//	    Set item to Index(collection, __each_idx_N + 1)
//	    body...
//	    Set __each_idx_N to __each_idx_N + 1
func (l *lowerer) lowerForEach(s *ast.ForEachStmt) []Statement {
	pos := s.Pos()
	idxName := fmt.Sprintf("__each_idx_%d", l.eachCount)
	l.eachCount++

	coll := l.lowerExpr(s.Collection)
	idxRef := func() Expression { return &Identifier{baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber}, Name: idxName} }

	init := &SetStmt{Name: idxName, Value: &IntLit{baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber}, Value: 0}, P: pos}

	cond := &Infix{
		baseExpr: baseExpr{P: pos, T: ast.TypeBoolean},
		Op:       "<",
		Left:     idxRef(),
		Right:    &LenExpr{baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber}, Collection: coll},
	}

	bind := &SetStmt{
		Name: s.ItemName.Name,
		Value: &IndexExpr{
			baseExpr:   baseExpr{P: pos, T: ast.TypeAny},
			Collection: coll,
			// List positions are 1-based, one ahead of the 0-based counter.
			Index: &Infix{
				baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber},
				Op:       "+",
				Left:     idxRef(),
				Right:    &IntLit{baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber}, Value: 1},
			},
		},
		P: pos,
	}

	var body []Statement
	body = append(body, bind)
	for _, b := range s.Body {
		body = append(body, l.lowerStmt(b)...)
	}
	body = append(body, &SetStmt{
		Name: idxName,
		Value: &Infix{
			baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber},
			Op:       "+",
			Left:     idxRef(),
			Right:    &IntLit{baseExpr: baseExpr{P: pos, T: ast.TypeWholeNumber}, Value: 1},
		},
		P: pos,
	})

	loop := &WhileStmt{Cond: cond, Body: body, P: pos}
	return []Statement{init, loop}
}

func (l *lowerer) lowerExpr(e ast.Expression) Expression {
	switch x := e.(type) {
	case *ast.Identifier:
		return &Identifier{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeAny}, Name: x.Name}
	case *ast.IntegerLiteral:
		return &IntLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeWholeNumber}, Value: x.Value}
	case *ast.FloatLiteral:
		return &FloatLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeFloat}, Value: x.Value}
	case *ast.StringLiteral:
		return &StringLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeText}, Value: x.Value}
	case *ast.URLLiteral:
		return &URLLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeURL}, Value: x.Value}
	case *ast.BooleanLiteral:
		return &BoolLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeBoolean}, Value: x.Value}
	case *ast.EmptyLiteral:
		return &EmptyLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeEmpty}}
	case *ast.PrefixExpr:
		return &Prefix{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeAny}, Op: x.Operator, Operand: l.lowerExpr(x.Operand)}
	case *ast.InfixExpr:
		t := ast.TypeAny
		switch x.Operator {
		case "<", "<=", ">", ">=", "equals", "is-strictly-equal-to", "is-strictly-unequal-to", "and", "or":
			t = ast.TypeBoolean
		}
		return &Infix{baseExpr: baseExpr{P: x.Pos(), T: t}, Op: x.Operator, Left: l.lowerExpr(x.Left), Right: l.lowerExpr(x.Right)}
	case *ast.ConditionalExpr:
		return &Select{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeAny}, Cond: l.lowerExpr(x.Cond), Then: l.lowerExpr(x.Then), Else: l.lowerExpr(x.Else)}
	case *ast.CallExpr:
		return l.lowerCall(x)
	case *ast.ListLiteral:
		var elems []Expression
		for _, el := range x.Elements {
			elems = append(elems, l.lowerExpr(el))
		}
		return &ListLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeOrderedList}, Elements: elems}
	case *ast.DictLiteral:
		var entries []DictEntry
		for _, en := range x.Entries {
			entries = append(entries, DictEntry{Key: en.Key, Value: l.lowerExpr(en.Value)})
		}
		return &DictLit{baseExpr: baseExpr{P: x.Pos(), T: ast.TypeNamedList}, Entries: entries}
	default:
		l.diags.Errorf(e.Pos(), diag.SyntaxError, "unsupported expression %T", e)
		return &EmptyLit{baseExpr: baseExpr{P: e.Pos(), T: ast.TypeEmpty}}
	}
}

// lowerCall resolves a Call/Use invocation's positional or named arguments
// into parameter order against the callee's declared signature, the two
// binding modes SPEC_FULL.md makes explicit. An unresolvable callee is
// reported as UnknownIdentifier and lowered best-effort from whatever
// positional arguments are present, so the rest of the program still
// compiles (I1).
func (l *lowerer) lowerCall(c *ast.CallExpr) *Call {
	sig, ok := l.sigs[c.Callee.Name]
	if !ok {
		l.diags.Errorf(c.Pos(), diag.UnknownIdentifier, "call to unknown utility %q", c.Callee.Name)
		var args []Expression
		for _, a := range c.PositionalArgs {
			args = append(args, l.lowerExpr(a))
		}
		return &Call{baseExpr: baseExpr{P: c.Pos(), T: ast.TypeAny}, Callee: c.Callee.Name, Args: args}
	}

	args := make([]Expression, len(sig.Params))
	if len(c.NamedArgs) > 0 {
		provided := map[string]ast.Expression{}
		for _, na := range c.NamedArgs {
			provided[na.Name.Name] = na.Value
		}
		for i, p := range sig.Params {
			if v, ok := provided[p.Name.Name]; ok {
				args[i] = l.lowerExpr(v)
				continue
			}
			if p.Required {
				// Not a compile-time error (§4.5's Call protocol, §8 scenario 8):
				// the call still compiles, and callFunction raises
				// MissingRequiredParameter at runtime if this sentinel survives
				// to argument binding.
				args[i] = &MissingArgLit{baseExpr: baseExpr{P: c.Pos(), T: ast.TypeEmpty}, Param: p.Name.Name}
				continue
			}
			args[i] = l.defaultFor(p, c.Pos())
		}
	} else {
		if len(c.PositionalArgs) > len(sig.Params) {
			l.diags.Errorf(c.Pos(), diag.ArityMismatch,
				"too many arguments in call to %q: got %d, want at most %d",
				c.Callee.Name, len(c.PositionalArgs), len(sig.Params))
		}
		for i, p := range sig.Params {
			if i < len(c.PositionalArgs) {
				args[i] = l.lowerExpr(c.PositionalArgs[i])
				continue
			}
			if p.Required {
				// Not a compile-time error (§4.5's Call protocol, §8 scenario 8):
				// the call still compiles, and callFunction raises
				// MissingRequiredParameter at runtime if this sentinel survives
				// to argument binding.
				args[i] = &MissingArgLit{baseExpr: baseExpr{P: c.Pos(), T: ast.TypeEmpty}, Param: p.Name.Name}
				continue
			}
			args[i] = l.defaultFor(p, c.Pos())
		}
	}

	t := ast.TypeAny
	if sig.HasOutput {
		t = sig.OutputType
	}
	return &Call{baseExpr: baseExpr{P: c.Pos(), T: t}, Callee: c.Callee.Name, Args: args}
}

func (l *lowerer) defaultFor(p *ast.Parameter, pos ast.Position) Expression {
	if p.Default != nil {
		return l.lowerExpr(p.Default)
	}
	return &EmptyLit{baseExpr: baseExpr{P: pos, T: ast.TypeEmpty}}
}
