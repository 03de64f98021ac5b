package ast

import (
	"encoding/json"
	"fmt"
)

// DumpJSON and LoadJSON are the external parser's wire contract: the
// Markdown/CFG front end (out of scope for this module, per spec.md §1) is
// expected to emit this same JSON shape, mirroring the teacher's
// `--dump-ast` JSON encoder (`cmd/minzc/main.go`) run in reverse — a loader
// rather than a dumper, since this module starts downstream of the parser.
//
// Every node is wrapped in a tagged envelope {"type": "<GoTypeName>", ...}
// so Statement/Expression interface fields can round-trip through encoding/json,
// which has no native support for decoding into an interface. The list
// mutation statements (ListAppendStmt, ListRemoveStmt, ListInsertStmt,
// IndexSetStmt) have no envelope: DumpJSON panics on them and LoadJSON
// rejects their type names as unknown.

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DumpJSON serializes prog into the tagged-envelope wire format.
func DumpJSON(prog *Program) ([]byte, error) {
	return json.MarshalIndent(dumpProgram(prog), "", "  ")
}

// LoadJSON parses data (as produced by DumpJSON or an external parser
// following the same contract) into a Program.
func LoadJSON(data []byte) (*Program, error) {
	var raw rawProgram
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ast: decode program: %w", err)
	}
	return raw.toProgram()
}

type rawProgram struct {
	Statements []envelope `json:"statements"`
	StartPos   Position   `json:"startPos"`
	EndPos     Position   `json:"endPos"`
}

func dumpProgram(p *Program) rawProgram {
	out := rawProgram{StartPos: p.StartPos, EndPos: p.EndPos}
	for _, s := range p.Statements {
		out.Statements = append(out.Statements, dumpStmt(s))
	}
	return out
}

func (rp rawProgram) toProgram() (*Program, error) {
	p := &Program{StartPos: rp.StartPos, EndPos: rp.EndPos}
	for _, e := range rp.Statements {
		s, err := loadStmt(e)
		if err != nil {
			return nil, err
		}
		p.Statements = append(p.Statements, s)
	}
	return p, nil
}

func wrap(typ string, v interface{}) envelope {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("ast: marshal %s: %v", typ, err)) // programmer error, not user input
	}
	return envelope{Type: typ, Data: data}
}

func dumpIdent(i *Identifier) *identJSON {
	if i == nil {
		return nil
	}
	return &identJSON{Name: i.Name, StartPos: i.StartPos, EndPos: i.EndPos}
}

type identJSON struct {
	Name     string   `json:"name"`
	StartPos Position `json:"startPos"`
	EndPos   Position `json:"endPos"`
}

func (j *identJSON) toIdent() *Identifier {
	if j == nil {
		return nil
	}
	return &Identifier{Name: j.Name, StartPos: j.StartPos, EndPos: j.EndPos}
}

// --- statements ---------------------------------------------------------

func dumpStmt(s Statement) envelope {
	switch v := s.(type) {
	case *SetStmt:
		return wrap("SetStmt", struct {
			Name     *identJSON `json:"name"`
			Value    envelope   `json:"value"`
			StartPos Position   `json:"startPos"`
			EndPos   Position   `json:"endPos"`
		}{dumpIdent(v.Name), dumpExpr(v.Value), v.StartPos, v.EndPos})
	case *SetUsingStmt:
		return wrap("SetUsingStmt", struct {
			Name     *identJSON `json:"name"`
			Call     envelope   `json:"call"`
			StartPos Position   `json:"startPos"`
			EndPos   Position   `json:"endPos"`
		}{dumpIdent(v.Name), dumpExpr(v.Call), v.StartPos, v.EndPos})
	case *DefineStmt:
		return wrap("DefineStmt", struct {
			Name     *identJSON     `json:"name"`
			Type     TypeAnnotation `json:"typeAnnotation"`
			StartPos Position       `json:"startPos"`
			EndPos   Position       `json:"endPos"`
		}{dumpIdent(v.Name), v.Type, v.StartPos, v.EndPos})
	case *GiveBackStmt:
		return wrap("GiveBackStmt", struct {
			Value    envelope `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{dumpExpr(v.Value), v.StartPos, v.EndPos})
	case *SayStmt:
		return wrap("SayStmt", struct {
			Value    envelope `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{dumpExpr(v.Value), v.StartPos, v.EndPos})
	case *IfStmt:
		return wrap("IfStmt", struct {
			Condition   envelope   `json:"condition"`
			Then        []envelope `json:"then"`
			Else        []envelope `json:"else"`
			IsWhen      bool       `json:"isWhen"`
			IsOtherwise bool       `json:"isOtherwise"`
			StartPos    Position   `json:"startPos"`
			EndPos      Position   `json:"endPos"`
		}{dumpExpr(v.Condition), dumpStmts(v.Then), dumpStmts(v.Else), v.IsWhen, v.IsOtherwise, v.StartPos, v.EndPos})
	case *WhileStmt:
		return wrap("WhileStmt", struct {
			Condition envelope   `json:"condition"`
			Body      []envelope `json:"body"`
			StartPos  Position   `json:"startPos"`
			EndPos    Position   `json:"endPos"`
		}{dumpExpr(v.Condition), dumpStmts(v.Body), v.StartPos, v.EndPos})
	case *ForEachStmt:
		return wrap("ForEachStmt", struct {
			ItemName   *identJSON `json:"itemName"`
			Collection envelope   `json:"collection"`
			Body       []envelope `json:"body"`
			StartPos   Position   `json:"startPos"`
			EndPos     Position   `json:"endPos"`
		}{dumpIdent(v.ItemName), dumpExpr(v.Collection), dumpStmts(v.Body), v.StartPos, v.EndPos})
	case *UtilityDefStmt:
		params := make([]paramJSON, len(v.Params))
		for i, p := range v.Params {
			var def *envelope
			if p.Default != nil {
				e := dumpExpr(p.Default)
				def = &e
			}
			params[i] = paramJSON{dumpIdent(p.Name), p.Type, p.Required, def, p.StartPos, p.EndPos}
		}
		return wrap("UtilityDefStmt", struct {
			Name          *identJSON     `json:"name"`
			Params        []paramJSON    `json:"params"`
			Body          []envelope     `json:"body"`
			OutputType    TypeAnnotation `json:"outputType"`
			HasOutput     bool           `json:"hasOutput"`
			IsInteraction bool           `json:"isInteraction"`
			StartPos      Position       `json:"startPos"`
			EndPos        Position       `json:"endPos"`
		}{dumpIdent(v.Name), params, dumpStmts(v.Body), v.OutputType, v.HasOutput, v.IsInteraction, v.StartPos, v.EndPos})
	case *ExpressionStmt:
		return wrap("ExpressionStmt", struct {
			Expression envelope `json:"expression"`
			StartPos   Position `json:"startPos"`
			EndPos     Position `json:"endPos"`
		}{dumpExpr(v.Expression), v.StartPos, v.EndPos})
	default:
		panic(fmt.Sprintf("ast: dumpStmt: unhandled statement type %T", s))
	}
}

type paramJSON struct {
	Name     *identJSON     `json:"name"`
	Type     TypeAnnotation `json:"typeAnnotation"`
	Required bool           `json:"required"`
	Default  *envelope      `json:"default"`
	StartPos Position       `json:"startPos"`
	EndPos   Position       `json:"endPos"`
}

func dumpStmts(stmts []Statement) []envelope {
	out := make([]envelope, len(stmts))
	for i, s := range stmts {
		out[i] = dumpStmt(s)
	}
	return out
}

func loadStmts(envs []envelope) ([]Statement, error) {
	out := make([]Statement, len(envs))
	for i, e := range envs {
		s, err := loadStmt(e)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func loadStmt(e envelope) (Statement, error) {
	switch e.Type {
	case "SetStmt":
		var r struct {
			Name     *identJSON `json:"name"`
			Value    envelope   `json:"value"`
			StartPos Position   `json:"startPos"`
			EndPos   Position   `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		val, err := loadExpr(r.Value)
		if err != nil {
			return nil, err
		}
		return &SetStmt{Name: r.Name.toIdent(), Value: val, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "SetUsingStmt":
		var r struct {
			Name     *identJSON `json:"name"`
			Call     envelope   `json:"call"`
			StartPos Position   `json:"startPos"`
			EndPos   Position   `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		call, err := loadExpr(r.Call)
		if err != nil {
			return nil, err
		}
		callExpr, ok := call.(*CallExpr)
		if !ok {
			return nil, fmt.Errorf("ast: SetUsingStmt.call must be a CallExpr, got %T", call)
		}
		return &SetUsingStmt{Name: r.Name.toIdent(), Call: callExpr, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "DefineStmt":
		var r struct {
			Name     *identJSON     `json:"name"`
			Type     TypeAnnotation `json:"typeAnnotation"`
			StartPos Position       `json:"startPos"`
			EndPos   Position       `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &DefineStmt{Name: r.Name.toIdent(), Type: r.Type, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "GiveBackStmt":
		var r struct {
			Value    envelope `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		val, err := loadExpr(r.Value)
		if err != nil {
			return nil, err
		}
		return &GiveBackStmt{Value: val, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "SayStmt":
		var r struct {
			Value    envelope `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		val, err := loadExpr(r.Value)
		if err != nil {
			return nil, err
		}
		return &SayStmt{Value: val, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "IfStmt":
		var r struct {
			Condition   envelope   `json:"condition"`
			Then        []envelope `json:"then"`
			Else        []envelope `json:"else"`
			IsWhen      bool       `json:"isWhen"`
			IsOtherwise bool       `json:"isOtherwise"`
			StartPos    Position   `json:"startPos"`
			EndPos      Position   `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		cond, err := loadExpr(r.Condition)
		if err != nil {
			return nil, err
		}
		then, err := loadStmts(r.Then)
		if err != nil {
			return nil, err
		}
		els, err := loadStmts(r.Else)
		if err != nil {
			return nil, err
		}
		return &IfStmt{Condition: cond, Then: then, Else: els, IsWhen: r.IsWhen, IsOtherwise: r.IsOtherwise, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "WhileStmt":
		var r struct {
			Condition envelope   `json:"condition"`
			Body      []envelope `json:"body"`
			StartPos  Position   `json:"startPos"`
			EndPos    Position   `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		cond, err := loadExpr(r.Condition)
		if err != nil {
			return nil, err
		}
		body, err := loadStmts(r.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Condition: cond, Body: body, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "ForEachStmt":
		var r struct {
			ItemName   *identJSON `json:"itemName"`
			Collection envelope   `json:"collection"`
			Body       []envelope `json:"body"`
			StartPos   Position   `json:"startPos"`
			EndPos     Position   `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		coll, err := loadExpr(r.Collection)
		if err != nil {
			return nil, err
		}
		body, err := loadStmts(r.Body)
		if err != nil {
			return nil, err
		}
		return &ForEachStmt{ItemName: r.ItemName.toIdent(), Collection: coll, Body: body, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "UtilityDefStmt":
		var r struct {
			Name          *identJSON     `json:"name"`
			Params        []paramJSON    `json:"params"`
			Body          []envelope     `json:"body"`
			OutputType    TypeAnnotation `json:"outputType"`
			HasOutput     bool           `json:"hasOutput"`
			IsInteraction bool           `json:"isInteraction"`
			StartPos      Position       `json:"startPos"`
			EndPos        Position       `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		params := make([]*Parameter, len(r.Params))
		for i, p := range r.Params {
			var def Expression
			if p.Default != nil {
				d, err := loadExpr(*p.Default)
				if err != nil {
					return nil, err
				}
				def = d
			}
			params[i] = &Parameter{Name: p.Name.toIdent(), Type: p.Type, Required: p.Required, Default: def, StartPos: p.StartPos, EndPos: p.EndPos}
		}
		body, err := loadStmts(r.Body)
		if err != nil {
			return nil, err
		}
		return &UtilityDefStmt{Name: r.Name.toIdent(), Params: params, Body: body, OutputType: r.OutputType, HasOutput: r.HasOutput, IsInteraction: r.IsInteraction, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "ExpressionStmt":
		var r struct {
			Expression envelope `json:"expression"`
			StartPos   Position `json:"startPos"`
			EndPos     Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		expr, err := loadExpr(r.Expression)
		if err != nil {
			return nil, err
		}
		return &ExpressionStmt{Expression: expr, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	default:
		return nil, fmt.Errorf("ast: unknown statement type %q", e.Type)
	}
}

// --- expressions ---------------------------------------------------------

func dumpExpr(e Expression) envelope {
	switch v := e.(type) {
	case *Identifier:
		return wrap("Identifier", identJSON{v.Name, v.StartPos, v.EndPos})
	case *IntegerLiteral:
		return wrap("IntegerLiteral", struct {
			Value    int64    `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.Value, v.StartPos, v.EndPos})
	case *FloatLiteral:
		return wrap("FloatLiteral", struct {
			Value    float64  `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.Value, v.StartPos, v.EndPos})
	case *StringLiteral:
		return wrap("StringLiteral", struct {
			Value    string   `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.Value, v.StartPos, v.EndPos})
	case *URLLiteral:
		return wrap("URLLiteral", struct {
			Value    string   `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.Value, v.StartPos, v.EndPos})
	case *BooleanLiteral:
		return wrap("BooleanLiteral", struct {
			Value    bool     `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.Value, v.StartPos, v.EndPos})
	case *EmptyLiteral:
		return wrap("EmptyLiteral", struct {
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.StartPos, v.EndPos})
	case *PrefixExpr:
		return wrap("PrefixExpr", struct {
			Operator string   `json:"operator"`
			Operand  envelope `json:"operand"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{v.Operator, dumpExpr(v.Operand), v.StartPos, v.EndPos})
	case *InfixExpr:
		return wrap("InfixExpr", struct {
			Left     envelope `json:"left"`
			Operator string   `json:"operator"`
			Right    envelope `json:"right"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{dumpExpr(v.Left), v.Operator, dumpExpr(v.Right), v.StartPos, v.EndPos})
	case *ConditionalExpr:
		return wrap("ConditionalExpr", struct {
			Then     envelope `json:"then"`
			Cond     envelope `json:"cond"`
			Else     envelope `json:"else"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}{dumpExpr(v.Then), dumpExpr(v.Cond), dumpExpr(v.Else), v.StartPos, v.EndPos})
	case *CallExpr:
		namedArgs := make([]namedArgJSON, len(v.NamedArgs))
		for i, na := range v.NamedArgs {
			namedArgs[i] = namedArgJSON{dumpIdent(na.Name), dumpExpr(na.Value)}
		}
		pos := make([]envelope, len(v.PositionalArgs))
		for i, p := range v.PositionalArgs {
			pos[i] = dumpExpr(p)
		}
		return wrap("CallExpr", struct {
			Callee         *identJSON     `json:"callee"`
			PositionalArgs []envelope     `json:"positionalArgs"`
			NamedArgs      []namedArgJSON `json:"namedArgs"`
			StartPos       Position       `json:"startPos"`
			EndPos         Position       `json:"endPos"`
		}{dumpIdent(v.Callee), pos, namedArgs, v.StartPos, v.EndPos})
	case *ListLiteral:
		elems := make([]envelope, len(v.Elements))
		for i, el := range v.Elements {
			elems[i] = dumpExpr(el)
		}
		return wrap("ListLiteral", struct {
			Elements []envelope `json:"elements"`
			StartPos Position   `json:"startPos"`
			EndPos   Position   `json:"endPos"`
		}{elems, v.StartPos, v.EndPos})
	case *DictLiteral:
		entries := make([]dictEntryJSON, len(v.Entries))
		for i, en := range v.Entries {
			entries[i] = dictEntryJSON{en.Key, dumpExpr(en.Value)}
		}
		return wrap("DictLiteral", struct {
			Entries  []dictEntryJSON `json:"entries"`
			StartPos Position        `json:"startPos"`
			EndPos   Position        `json:"endPos"`
		}{entries, v.StartPos, v.EndPos})
	default:
		panic(fmt.Sprintf("ast: dumpExpr: unhandled expression type %T", e))
	}
}

type namedArgJSON struct {
	Name  *identJSON `json:"name"`
	Value envelope   `json:"value"`
}

type dictEntryJSON struct {
	Key   string   `json:"key"`
	Value envelope `json:"value"`
}

func loadExpr(e envelope) (Expression, error) {
	switch e.Type {
	case "Identifier":
		var r identJSON
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &Identifier{Name: r.Name, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "IntegerLiteral":
		var r struct {
			Value    int64    `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &IntegerLiteral{Value: r.Value, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "FloatLiteral":
		var r struct {
			Value    float64  `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &FloatLiteral{Value: r.Value, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "StringLiteral":
		var r struct {
			Value    string   `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &StringLiteral{Value: r.Value, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "URLLiteral":
		var r struct {
			Value    string   `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &URLLiteral{Value: r.Value, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "BooleanLiteral":
		var r struct {
			Value    bool     `json:"value"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &BooleanLiteral{Value: r.Value, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "EmptyLiteral":
		var r struct {
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		return &EmptyLiteral{StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "PrefixExpr":
		var r struct {
			Operator string   `json:"operator"`
			Operand  envelope `json:"operand"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		operand, err := loadExpr(r.Operand)
		if err != nil {
			return nil, err
		}
		return &PrefixExpr{Operator: r.Operator, Operand: operand, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "InfixExpr":
		var r struct {
			Left     envelope `json:"left"`
			Operator string   `json:"operator"`
			Right    envelope `json:"right"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		left, err := loadExpr(r.Left)
		if err != nil {
			return nil, err
		}
		right, err := loadExpr(r.Right)
		if err != nil {
			return nil, err
		}
		return &InfixExpr{Left: left, Operator: r.Operator, Right: right, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "ConditionalExpr":
		var r struct {
			Then     envelope `json:"then"`
			Cond     envelope `json:"cond"`
			Else     envelope `json:"else"`
			StartPos Position `json:"startPos"`
			EndPos   Position `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		then, err := loadExpr(r.Then)
		if err != nil {
			return nil, err
		}
		cond, err := loadExpr(r.Cond)
		if err != nil {
			return nil, err
		}
		els, err := loadExpr(r.Else)
		if err != nil {
			return nil, err
		}
		return &ConditionalExpr{Then: then, Cond: cond, Else: els, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "CallExpr":
		var r struct {
			Callee         *identJSON     `json:"callee"`
			PositionalArgs []envelope     `json:"positionalArgs"`
			NamedArgs      []namedArgJSON `json:"namedArgs"`
			StartPos       Position       `json:"startPos"`
			EndPos         Position       `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		pos := make([]Expression, len(r.PositionalArgs))
		for i, p := range r.PositionalArgs {
			ex, err := loadExpr(p)
			if err != nil {
				return nil, err
			}
			pos[i] = ex
		}
		named := make([]NamedArg, len(r.NamedArgs))
		for i, na := range r.NamedArgs {
			v, err := loadExpr(na.Value)
			if err != nil {
				return nil, err
			}
			named[i] = NamedArg{Name: na.Name.toIdent(), Value: v}
		}
		return &CallExpr{Callee: r.Callee.toIdent(), PositionalArgs: pos, NamedArgs: named, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "ListLiteral":
		var r struct {
			Elements []envelope `json:"elements"`
			StartPos Position   `json:"startPos"`
			EndPos   Position   `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		elems := make([]Expression, len(r.Elements))
		for i, el := range r.Elements {
			ex, err := loadExpr(el)
			if err != nil {
				return nil, err
			}
			elems[i] = ex
		}
		return &ListLiteral{Elements: elems, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	case "DictLiteral":
		var r struct {
			Entries  []dictEntryJSON `json:"entries"`
			StartPos Position        `json:"startPos"`
			EndPos   Position        `json:"endPos"`
		}
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, err
		}
		entries := make([]DictEntry, len(r.Entries))
		for i, en := range r.Entries {
			v, err := loadExpr(en.Value)
			if err != nil {
				return nil, err
			}
			entries[i] = DictEntry{Key: en.Key, Value: v}
		}
		return &DictLiteral{Entries: entries, StartPos: r.StartPos, EndPos: r.EndPos}, nil
	default:
		return nil, fmt.Errorf("ast: unknown expression type %q", e.Type)
	}
}
