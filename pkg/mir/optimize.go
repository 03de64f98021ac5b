package mir

import (
	"github.com/machine-dialect/mdc/pkg/mir/reporting"
)

// Level selects how aggressively Optimize runs, matching the `mdc
// --optimize` flag.
type Level int

const (
	// LevelNone skips optimization entirely.
	LevelNone Level = iota
	// LevelBasic runs constant folding, copy propagation, and dead-code
	// elimination to a fixed point.
	LevelBasic
	// LevelAggressive additionally runs CSE, branch folding, and
	// type-specialization, also to a fixed point.
	LevelAggressive
)

// Pass is one optimization transform over a single Function. It reports how
// many instructions it changed so the fixed-point driver knows whether to
// run again and the reporter can record it.
type Pass interface {
	Name() string
	Run(fn *Function) (changed int)
}

// Optimize runs the passes selected by level over every function in mod to a
// fixed point (repeating the whole pass list until a full round changes
// nothing), recording each pass's effect into rep if non-nil.
func Optimize(mod *Module, level Level, rep *reporting.OptimizationReporter) {
	if level == LevelNone {
		return
	}
	passes := []Pass{
		constantFoldingPass{},
		copyPropagationPass{},
	}
	if level == LevelAggressive {
		passes = append(passes, commonSubexpressionEliminationPass{})
	}
	passes = append(passes, deadCodeEliminationPass{})
	if level == LevelAggressive {
		passes = append(passes,
			branchFoldingPass{},
			typeSpecializationPass{},
		)
	}

	for _, fn := range mod.Functions {
		for {
			roundChanged := 0
			for _, p := range passes {
				before := countInstrs(fn)
				changed := p.Run(fn)
				after := countInstrs(fn)
				if rep != nil {
					rep.Record(reporting.PassResult{
						Function:      fn.Name,
						Pass:          p.Name(),
						InstrBefore:   before,
						InstrAfter:    after,
						Changed:       changed,
						InstrsRemoved: before - after,
					})
				}
				roundChanged += changed
			}
			if roundChanged == 0 {
				break
			}
		}
	}
}

func countInstrs(fn *Function) int {
	n := 0
	for _, b := range fn.Blocks {
		n += len(b.Instructions)
	}
	return n
}

// buildDefMap indexes, for every register defined anywhere in fn, the
// instruction that defines it and the block it lives in. SSA's single-
// assignment property guarantees each register has exactly one entry.
type def struct {
	instr *Instruction
	block *BasicBlock
}

func buildDefMap(fn *Function) map[Reg]def {
	m := make(map[Reg]def)
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Dest != NoReg {
				m[instr.Dest] = def{instr: instr, block: b}
			}
		}
	}
	return m
}

// --- Constant folding --------------------------------------------------

type constantFoldingPass struct{}

func (constantFoldingPass) Name() string { return "constant-folding" }

func (constantFoldingPass) Run(fn *Function) int {
	defs := buildDefMap(fn)
	changed := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if folded, ok := foldArith(instr, defs); ok {
				instr.Op = OpConst
				instr.Const = folded
				instr.Args = nil
				changed++
			}
		}
	}
	return changed
}

func constOf(r Reg, defs map[Reg]def) (*Const, bool) {
	d, ok := defs[r]
	if !ok || d.instr.Op != OpConst {
		return nil, false
	}
	return d.instr.Const, true
}

func foldArith(instr *Instruction, defs map[Reg]def) (*Const, bool) {
	switch instr.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpLt, OpLe, OpGt, OpGe, OpEq, OpStrictEq, OpStrictNeq:
	case OpNeg, OpNot, OpAssertBool:
	default:
		return nil, false
	}
	if instr.Op == OpNeg || instr.Op == OpNot || instr.Op == OpAssertBool {
		c, ok := constOf(instr.Args[0], defs)
		if !ok {
			return nil, false
		}
		return foldUnary(instr.Op, c)
	}
	l, ok := constOf(instr.Args[0], defs)
	if !ok {
		return nil, false
	}
	r, ok := constOf(instr.Args[1], defs)
	if !ok {
		return nil, false
	}
	return foldBinary(instr.Op, l, r)
}

func foldUnary(op Op, c *Const) (*Const, bool) {
	switch op {
	case OpNeg:
		switch c.Kind {
		case ConstInt:
			return &Const{Kind: ConstInt, Int: -c.Int}, true
		case ConstFloat:
			return &Const{Kind: ConstFloat, Float: -c.Float}, true
		}
	case OpNot:
		if c.Kind == ConstBool {
			return &Const{Kind: ConstBool, Bool: !c.Bool}, true
		}
	case OpAssertBool:
		if c.Kind == ConstBool {
			return &Const{Kind: ConstBool, Bool: c.Bool}, true
		}
	}
	return nil, false
}

func numeric(c *Const) (float64, bool, bool) {
	// returns (value, isFloat, ok)
	switch c.Kind {
	case ConstInt:
		return float64(c.Int), false, true
	case ConstFloat:
		return c.Float, true, true
	default:
		return 0, false, false
	}
}

func foldBinary(op Op, l, r *Const) (*Const, bool) {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		lv, lf, lok := numeric(l)
		rv, rf, rok := numeric(r)
		if !lok || !rok {
			return nil, false
		}
		isFloat := lf || rf
		if !isFloat && op != OpDiv {
			// Two Integers stay Integer, computed in int64 so overflow wraps
			// exactly as the VM's Integer arithmetic does.
			switch op {
			case OpAdd:
				return &Const{Kind: ConstInt, Int: l.Int + r.Int}, true
			case OpSub:
				return &Const{Kind: ConstInt, Int: l.Int - r.Int}, true
			default:
				return &Const{Kind: ConstInt, Int: l.Int * r.Int}, true
			}
		}
		var result float64
		switch op {
		case OpAdd:
			result = lv + rv
		case OpSub:
			result = lv - rv
		case OpMul:
			result = lv * rv
		case OpDiv:
			if rv == 0 {
				// Division by zero is a runtime concern (§7), not a
				// compile-time fold: leave it unfolded so the VM raises
				// DivisionByZero when this path actually executes.
				return nil, false
			}
			result = lv / rv
			isFloat = true
		}
		if isFloat {
			return &Const{Kind: ConstFloat, Float: result}, true
		}
		return &Const{Kind: ConstInt, Int: int64(result)}, true

	case OpLt, OpLe, OpGt, OpGe:
		lv, _, lok := numeric(l)
		rv, _, rok := numeric(r)
		if !lok || !rok {
			return nil, false
		}
		var b bool
		switch op {
		case OpLt:
			b = lv < rv
		case OpLe:
			b = lv <= rv
		case OpGt:
			b = lv > rv
		case OpGe:
			b = lv >= rv
		}
		return &Const{Kind: ConstBool, Bool: b}, true

	case OpEq, OpStrictEq, OpStrictNeq:
		eq := constEqual(l, r, op == OpStrictEq || op == OpStrictNeq)
		if op == OpStrictNeq {
			eq = !eq
		}
		return &Const{Kind: ConstBool, Bool: eq}, true
	}
	return nil, false
}

func constEqual(l, r *Const, strict bool) bool {
	if strict && l.Kind != r.Kind {
		return false
	}
	lv, lf, lok := numeric(l)
	rv, rf, rok := numeric(r)
	if lok && rok {
		if strict && lf != rf {
			return false
		}
		return lv == rv
	}
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case ConstStr, ConstURL:
		return l.Str == r.Str
	case ConstBool:
		return l.Bool == r.Bool
	case ConstEmpty:
		return true
	}
	return false
}

// --- Copy propagation ----------------------------------------------------

type copyPropagationPass struct{}

func (copyPropagationPass) Name() string { return "copy-propagation" }

func (copyPropagationPass) Run(fn *Function) int {
	defs := buildDefMap(fn)
	alias := map[Reg]Reg{}
	for r, d := range defs {
		if d.instr.Op == OpMove {
			alias[r] = resolve(alias, d.instr.Args[0])
		}
	}
	if len(alias) == 0 {
		return 0
	}
	changed := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			for i, a := range instr.Args {
				if root := resolve(alias, a); root != a {
					instr.Args[i] = root
					changed++
				}
			}
			for i, e := range instr.Phi {
				if root := resolve(alias, e.Value); root != e.Value {
					instr.Phi[i].Value = root
					changed++
				}
			}
		}
	}
	return changed
}

func resolve(alias map[Reg]Reg, r Reg) Reg {
	seen := map[Reg]bool{}
	for {
		next, ok := alias[r]
		if !ok || seen[r] {
			return r
		}
		seen[r] = true
		r = next
	}
}

// --- Dead code elimination ------------------------------------------------

type deadCodeEliminationPass struct{}

func (deadCodeEliminationPass) Name() string { return "dead-code-elimination" }

func (deadCodeEliminationPass) Run(fn *Function) int {
	used := map[Reg]bool{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			for _, a := range instr.Args {
				used[a] = true
			}
			for _, e := range instr.Phi {
				used[e.Value] = true
			}
		}
	}

	removed := 0
	for _, b := range fn.Blocks {
		kept := b.Instructions[:0]
		for _, instr := range b.Instructions {
			if instr.Dest != NoReg && !used[instr.Dest] && !instr.HasSideEffect() && instr.Op != OpPhi {
				removed++
				continue
			}
			if instr.Op == OpPhi && instr.Dest != NoReg && !used[instr.Dest] {
				removed++
				continue
			}
			kept = append(kept, instr)
		}
		b.Instructions = kept
	}
	return removed
}

// --- Common subexpression elimination -------------------------------------

type commonSubexpressionEliminationPass struct{}

func (commonSubexpressionEliminationPass) Name() string { return "common-subexpression-elimination" }

func (commonSubexpressionEliminationPass) Run(fn *Function) int {
	idom := Dominators(fn)
	changed := 0

	type key struct {
		op   Op
		a, b Reg
	}
	available := map[*BasicBlock]map[key]Reg{}

	var walk func(b *BasicBlock, parentAvail map[key]Reg)
	walk = func(b *BasicBlock, parentAvail map[key]Reg) {
		local := make(map[key]Reg, len(parentAvail))
		for k, v := range parentAvail {
			local[k] = v
		}
		available[b] = local

		for _, instr := range b.Instructions {
			if !pureBinary(instr.Op) {
				continue
			}
			k := key{op: instr.Op, a: instr.Args[0], b: instr.Args[1]}
			if existing, ok := local[k]; ok {
				instr.Op = OpMove
				instr.Args = []Reg{existing}
				instr.Const = nil
				changed++
				continue
			}
			local[k] = instr.Dest
		}

		for _, s := range b.Succs {
			if idom[s] == b {
				walk(s, local)
			}
		}
	}
	walk(fn.Entry, map[key]Reg{})
	return changed
}

func pureBinary(op Op) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpLt, OpLe, OpGt, OpGe, OpEq, OpStrictEq, OpStrictNeq:
		return true
	default:
		return false
	}
}

// --- Branch folding ---------------------------------------------------

type branchFoldingPass struct{}

func (branchFoldingPass) Name() string { return "branch-folding" }

func (branchFoldingPass) Run(fn *Function) int {
	defs := buildDefMap(fn)
	changed := 0
	for _, b := range fn.Blocks {
		if len(b.Instructions) == 0 {
			continue
		}
		last := b.Instructions[len(b.Instructions)-1]
		if last.Op != OpBranch {
			continue
		}
		c, ok := constOf(last.Args[0], defs)
		if !ok || c.Kind != ConstBool {
			continue
		}
		taken, dropped := last.TrueTgt, last.FalseTgt
		if !c.Bool {
			taken, dropped = last.FalseTgt, last.TrueTgt
		}
		last.Op = OpJump
		last.Target = taken
		last.Args = nil
		last.TrueTgt, last.FalseTgt = nil, nil
		removeSucc(b, dropped)
		removePred(dropped, b)
		changed++
	}
	return changed
}

func removeSucc(b, s *BasicBlock) {
	out := b.Succs[:0]
	for _, x := range b.Succs {
		if x != s {
			out = append(out, x)
		}
	}
	b.Succs = out
}

func removePred(b, p *BasicBlock) {
	out := b.Preds[:0]
	for _, x := range b.Preds {
		if x != p {
			out = append(out, x)
		}
	}
	b.Preds = out
}

// --- Type specialization ------------------------------------------------

type typeSpecializationPass struct{}

func (typeSpecializationPass) Name() string { return "type-specialization" }

// Run annotates arithmetic instructions with a TypeHint when at least one
// operand is a statically known numeric Const. The hint stays in MIR: it is
// not carried into bytecode, and the VM dispatches on runtime type tags
// regardless (§4.6 coercion rules apply unchanged).
func (typeSpecializationPass) Run(fn *Function) int {
	defs := buildDefMap(fn)
	changed := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if instr.HasHint {
				continue
			}
			switch instr.Op {
			case OpAdd, OpSub, OpMul, OpDiv, OpLt, OpLe, OpGt, OpGe:
			default:
				continue
			}
			hint, ok := ConstKind(0), false
			for _, a := range instr.Args {
				if c, found := constOf(a, defs); found && (c.Kind == ConstInt || c.Kind == ConstFloat) {
					hint, ok = c.Kind, true
					break
				}
			}
			if ok {
				instr.TypeHint = hint
				instr.HasHint = true
				changed++
			}
		}
	}
	return changed
}
