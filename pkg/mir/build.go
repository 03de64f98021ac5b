package mir

import (
	"github.com/machine-dialect/mdc/pkg/diag"
	"github.com/machine-dialect/mdc/pkg/hir"
)

// Build lowers an HIR program into an MIR module: one Function per Utility,
// plus an implicit "main" Function for the program's top-level statements.
func Build(prog *hir.Program) (*Module, *diag.Bag) {
	bag := &diag.Bag{}
	mod := &Module{}

	for _, u := range prog.Utilities {
		params := make([]string, len(u.Params))
		for i, p := range u.Params {
			params[i] = p.Name
		}
		fn := buildFunction(u.Name, params, u.HasOutput, u.Body)
		mod.Functions = append(mod.Functions, fn)
	}

	main := buildFunction("main", nil, false, prog.Statements)
	mod.Main = main
	mod.Functions = append(mod.Functions, main)

	return mod, bag
}

type builder struct {
	fn  *Function
	cur *BasicBlock
}

func buildFunction(name string, params []string, hasOutput bool, body []hir.Statement) *Function {
	fn := &Function{Name: name, Params: params, HasOutput: hasOutput}
	b := &builder{fn: fn}
	fn.Entry = b.newBlock("entry")
	b.cur = fn.Entry
	b.buildStmts(body)
	if !b.cur.terminated() {
		// A utility whose control flow falls off the end without an explicit
		// Give-Back returns Empty: an explicit Return of Empty is emitted
		// so every function's final block ends in a terminator. Utilities that
		// declare an output type still fall through to Empty rather than
		// raising — matching spec's "never panics" stance on the HIR/MIR
		// side; a runtime TypeMismatch would only occur, if at all, at the
		// call site when the caller actually uses the result.
		b.emitReturn(b.constEmpty())
	}
	return fn
}

func (b *builder) newBlock(name string) *BasicBlock {
	blk := &BasicBlock{ID: len(b.fn.Blocks), Name: name}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

func (b *builder) newReg() Reg {
	r := b.fn.NextReg
	b.fn.NextReg++
	return r
}

func (b *builder) emit(instr *Instruction) Reg {
	b.cur.Instructions = append(b.cur.Instructions, instr)
	return instr.Dest
}

func (b *builder) emitValue(op Op, args []Reg) Reg {
	dest := b.newReg()
	b.emit(&Instruction{Op: op, Dest: dest, Args: args})
	return dest
}

func (b *builder) emitConst(c Const) Reg {
	dest := b.newReg()
	b.emit(&Instruction{Op: OpConst, Dest: dest, Const: &c})
	return dest
}

func (b *builder) constEmpty() Reg { return b.emitConst(Const{Kind: ConstEmpty}) }

func (b *builder) emitJump(target *BasicBlock) {
	if b.cur.terminated() {
		return
	}
	b.emit(&Instruction{Op: OpJump, Dest: NoReg, Target: target})
	b.cur.addSucc(target)
}

func (b *builder) emitBranch(cond Reg, t, f *BasicBlock) {
	b.emit(&Instruction{Op: OpBranch, Dest: NoReg, Args: []Reg{cond}, TrueTgt: t, FalseTgt: f})
	b.cur.addSucc(t)
	b.cur.addSucc(f)
}

func (b *builder) emitReturn(v Reg) {
	b.emit(&Instruction{Op: OpReturn, Dest: NoReg, Args: []Reg{v}})
}

func (b *builder) buildStmts(stmts []hir.Statement) {
	for _, s := range stmts {
		if b.cur.terminated() {
			// Statements after a Give-Back in this block are unreachable;
			// pkg/diag.UnreachableCode is raised earlier by pkg/hir's
			// reachability check (see reachability.go), so MIR building
			// just stops emitting for this block.
			return
		}
		b.buildStmt(s)
	}
}

func (b *builder) buildStmt(s hir.Statement) {
	switch st := s.(type) {
	case *hir.SetStmt:
		v := b.buildExpr(st.Value)
		b.emit(&Instruction{Op: OpEnvSet, Dest: NoReg, Args: []Reg{v}, Name: st.Name, Pos: st.P})

	case *hir.GiveBackStmt:
		v := b.buildExpr(st.Value)
		b.emitReturn(v)

	case *hir.SayStmt:
		v := b.buildExpr(st.Value)
		b.emit(&Instruction{Op: OpSay, Dest: NoReg, Args: []Reg{v}, Pos: st.P})

	case *hir.IfStmt:
		b.buildIf(st)

	case *hir.WhileStmt:
		b.buildWhile(st)

	case *hir.ExprStmt:
		b.buildExpr(st.Expr)

	case *hir.ListAppendStmt:
		l := b.buildExpr(st.List)
		v := b.buildExpr(st.Value)
		b.emit(&Instruction{Op: OpListAppend, Dest: NoReg, Args: []Reg{l, v}, Pos: st.P})

	case *hir.ListRemoveStmt:
		l := b.buildExpr(st.List)
		v := b.buildExpr(st.Value)
		b.emit(&Instruction{Op: OpListRemove, Dest: NoReg, Args: []Reg{l, v}, Pos: st.P})

	case *hir.ListInsertStmt:
		l := b.buildExpr(st.List)
		pos := b.buildExpr(st.Position)
		v := b.buildExpr(st.Value)
		b.emit(&Instruction{Op: OpListInsert, Dest: NoReg, Args: []Reg{l, pos, v}, Pos: st.P})

	case *hir.IndexSetStmt:
		c := b.buildExpr(st.Collection)
		i := b.buildExpr(st.Index)
		v := b.buildExpr(st.Value)
		b.emit(&Instruction{Op: OpIndexSet, Dest: NoReg, Args: []Reg{c, i, v}, Pos: st.P})

	default:
		// Unreachable given hir.Lower's closed statement set.
	}
}

func (b *builder) buildIf(s *hir.IfStmt) {
	cond := b.buildExpr(s.Cond)
	thenBlk := b.newBlock("if.then")
	elseBlk := b.newBlock("if.else")
	joinBlk := b.newBlock("if.join")

	b.emitBranch(cond, thenBlk, elseBlk)

	b.cur = thenBlk
	b.buildStmts(s.Then)
	b.emitJump(joinBlk)

	b.cur = elseBlk
	b.buildStmts(s.Else)
	b.emitJump(joinBlk)

	b.cur = joinBlk
}

func (b *builder) buildWhile(s *hir.WhileStmt) {
	condBlk := b.newBlock("while.cond")
	bodyBlk := b.newBlock("while.body")
	exitBlk := b.newBlock("while.exit")

	b.emitJump(condBlk)

	b.cur = condBlk
	cond := b.buildExpr(s.Cond)
	b.emitBranch(cond, bodyBlk, exitBlk)

	b.cur = bodyBlk
	b.buildStmts(s.Body)
	b.emitJump(condBlk)

	b.cur = exitBlk
}

func (b *builder) buildExpr(e hir.Expression) Reg {
	switch x := e.(type) {
	case *hir.Identifier:
		dest := b.newReg()
		b.emit(&Instruction{Op: OpEnvGet, Dest: dest, Name: x.Name, Pos: x.P})
		return dest

	case *hir.IntLit:
		return b.emitConst(Const{Kind: ConstInt, Int: x.Value})
	case *hir.FloatLit:
		return b.emitConst(Const{Kind: ConstFloat, Float: x.Value})
	case *hir.StringLit:
		return b.emitConst(Const{Kind: ConstStr, Str: x.Value})
	case *hir.URLLit:
		return b.emitConst(Const{Kind: ConstURL, Str: x.Value})
	case *hir.BoolLit:
		return b.emitConst(Const{Kind: ConstBool, Bool: x.Value})
	case *hir.EmptyLit:
		return b.emitConst(Const{Kind: ConstEmpty})
	case *hir.MissingArgLit:
		return b.emitConst(Const{Kind: ConstMissing, Str: x.Param})

	case *hir.Prefix:
		v := b.buildExpr(x.Operand)
		op := OpNeg
		if x.Op == "not" {
			op = OpNot
		}
		return b.emitValue(op, []Reg{v})

	case *hir.Infix:
		if x.Op == "and" || x.Op == "or" {
			return b.buildLogical(x.Op, x.Left, x.Right)
		}
		l := b.buildExpr(x.Left)
		r := b.buildExpr(x.Right)
		return b.emitValue(infixOp(x.Op), []Reg{l, r})

	case *hir.Select:
		return b.buildSelect(x)

	case *hir.Call:
		args := make([]Reg, len(x.Args))
		for i, a := range x.Args {
			args[i] = b.buildExpr(a)
		}
		dest := b.newReg()
		b.emit(&Instruction{Op: OpCall, Dest: dest, Args: args, Name: x.Callee, Pos: x.P})
		return dest

	case *hir.ListLit:
		args := make([]Reg, len(x.Elements))
		for i, el := range x.Elements {
			args[i] = b.buildExpr(el)
		}
		dest := b.newReg()
		b.emit(&Instruction{Op: OpMakeList, Dest: dest, Args: args})
		return dest

	case *hir.DictLit:
		args := make([]Reg, len(x.Entries))
		keys := make([]string, len(x.Entries))
		for i, en := range x.Entries {
			args[i] = b.buildExpr(en.Value)
			keys[i] = en.Key
		}
		dest := b.newReg()
		b.emit(&Instruction{Op: OpMakeDict, Dest: dest, Args: args, Keys: keys})
		return dest

	case *hir.IndexExpr:
		c := b.buildExpr(x.Collection)
		i := b.buildExpr(x.Index)
		return b.emitValue(OpIndex, []Reg{c, i})

	case *hir.LenExpr:
		c := b.buildExpr(x.Collection)
		return b.emitValue(OpLen, []Reg{c})

	default:
		return b.constEmpty()
	}
}

// buildSelect lowers the conditional expression `A if C else B` to the
// canonical if/else-diamond-plus-phi shape: the textbook case the
// dominance-frontier SSA machinery in dominance.go exists to generalize.
func (b *builder) buildSelect(s *hir.Select) Reg {
	cond := b.buildExpr(s.Cond)
	thenBlk := b.newBlock("select.then")
	elseBlk := b.newBlock("select.else")
	joinBlk := b.newBlock("select.join")

	b.emitBranch(cond, thenBlk, elseBlk)

	b.cur = thenBlk
	thenVal := b.buildExpr(s.Then)
	thenEnd := b.cur
	b.emitJump(joinBlk)

	b.cur = elseBlk
	elseVal := b.buildExpr(s.Else)
	elseEnd := b.cur
	b.emitJump(joinBlk)

	b.cur = joinBlk
	dest := b.newReg()
	b.emit(&Instruction{
		Op:   OpPhi,
		Dest: dest,
		Phi: []PhiEdge{
			{Block: thenEnd, Value: thenVal},
			{Block: elseEnd, Value: elseVal},
		},
	})
	return dest
}

func (b *builder) emitAssertBool(v Reg) Reg {
	return b.emitValue(OpAssertBool, []Reg{v})
}

// buildLogical lowers `and`/`or` (§4.2's "short-circuit lowered to branches")
// to the same branch-plus-phi diamond buildSelect uses for `if`/`else`: the
// right operand sits in its own block reached only when the left operand
// didn't already decide the result, so a side-effecting right operand
// (Call, EnvGet) never runs once short-circuiting applies. Both operands are
// asserted Boolean (§4.5) rather than truthy-coerced.
func (b *builder) buildLogical(op string, leftExpr, rightExpr hir.Expression) Reg {
	left := b.emitAssertBool(b.buildExpr(leftExpr))
	rhsBlk := b.newBlock("logical.rhs")
	shortBlk := b.newBlock("logical.short")
	joinBlk := b.newBlock("logical.join")

	if op == "and" {
		b.emitBranch(left, rhsBlk, shortBlk)
	} else {
		b.emitBranch(left, shortBlk, rhsBlk)
	}

	b.cur = shortBlk
	shortVal := left
	shortEnd := b.cur
	b.emitJump(joinBlk)

	b.cur = rhsBlk
	rightVal := b.emitAssertBool(b.buildExpr(rightExpr))
	rhsEnd := b.cur
	b.emitJump(joinBlk)

	b.cur = joinBlk
	dest := b.newReg()
	b.emit(&Instruction{
		Op:   OpPhi,
		Dest: dest,
		Phi: []PhiEdge{
			{Block: shortEnd, Value: shortVal},
			{Block: rhsEnd, Value: rightVal},
		},
	})
	return dest
}

func infixOp(op string) Op {
	switch op {
	case "+":
		return OpAdd
	case "-":
		return OpSub
	case "*":
		return OpMul
	case "/":
		return OpDiv
	case "<":
		return OpLt
	case "<=":
		return OpLe
	case ">":
		return OpGt
	case ">=":
		return OpGe
	case "equals":
		return OpEq
	case "is-strictly-equal-to":
		return OpStrictEq
	case "is-strictly-unequal-to":
		return OpStrictNeq
	default:
		return OpAdd
	}
}
