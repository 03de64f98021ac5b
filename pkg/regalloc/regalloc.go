// Package regalloc assigns MIR virtual registers to the fixed physical
// register file the bytecode format and VM share (§5: at most 256 registers
// per frame), using linear-scan over live intervals with no spilling —
// exceeding the register budget is a compile error (RegisterOverflow), not a
// spill, matching the teacher's Z80 allocator's error path adapted from a
// spill-capable register set to this spec's fixed, spill-forbidden one.
package regalloc

import (
	"fmt"
	"sort"

	"github.com/machine-dialect/mdc/pkg/mir"
)

// DefaultMaxRegisters is the per-frame register budget (§5).
const DefaultMaxRegisters = 256

// RegisterOverflowError reports that a function needs more simultaneously
// live values than the physical register file provides.
type RegisterOverflowError struct {
	Function string
	Limit    int
}

func (e *RegisterOverflowError) Error() string {
	return fmt.Sprintf("function %q exceeds the %d-register limit", e.Function, e.Limit)
}

// Copy is a register-to-register move the allocator inserts to resolve a
// phi edge: it must run at the end of the named predecessor block, before
// that block's terminator.
type Copy struct {
	Dest int
	Src  int
}

// Allocation is the result of allocating one Function.
type Allocation struct {
	PhysReg map[mir.Reg]int
	NumRegs int
	// EdgeCopies holds the moves to splice into each predecessor block
	// (keyed by block ID) to materialize phi results, in the order they
	// must execute.
	EdgeCopies map[int][]Copy
}

type interval struct {
	reg        mir.Reg
	start, end int
}

// Allocate runs linear-scan allocation over fn, returning the physical
// register assignment or a RegisterOverflowError if fn needs more than
// maxRegisters simultaneously live values.
func Allocate(fn *mir.Function, maxRegisters int) (*Allocation, error) {
	if maxRegisters <= 0 {
		maxRegisters = DefaultMaxRegisters
	}

	pos := numberInstructions(fn)
	intervals := computeIntervals(fn, pos)

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

	free := make([]bool, maxRegisters)
	for i := range free {
		free[i] = true
	}
	physOf := map[mir.Reg]int{}

	type activeEntry struct {
		iv   interval
		phys int
	}
	var active []activeEntry

	expireOld := func(start int) {
		kept := active[:0]
		for _, a := range active {
			if a.iv.end < start {
				free[a.phys] = true
				continue
			}
			kept = append(kept, a)
		}
		active = kept
	}

	for _, iv := range intervals {
		expireOld(iv.start)
		slot := -1
		for i, f := range free {
			if f {
				slot = i
				break
			}
		}
		if slot == -1 {
			return nil, &RegisterOverflowError{Function: fn.Name, Limit: maxRegisters}
		}
		free[slot] = false
		physOf[iv.reg] = slot
		active = append(active, activeEntry{iv: iv, phys: slot})
	}

	alloc := &Allocation{PhysReg: physOf, NumRegs: maxRegisters, EdgeCopies: map[int][]Copy{}}
	resolvePhis(fn, alloc)
	return alloc, nil
}

// numberInstructions assigns each instruction a strictly increasing program
// point, in fn.Blocks order (the order the builder created them in, which is
// already a valid topological-ish traversal for the structured control flow
// this language produces).
func numberInstructions(fn *mir.Function) map[*mir.Instruction]int {
	pos := map[*mir.Instruction]int{}
	n := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			pos[instr] = n
			n++
		}
	}
	return pos
}

func computeIntervals(fn *mir.Function, pos map[*mir.Instruction]int) []interval {
	starts := map[mir.Reg]int{}
	ends := map[mir.Reg]int{}
	seen := map[mir.Reg]bool{}

	touch := func(r mir.Reg, p int) {
		if !seen[r] {
			seen[r] = true
			starts[r] = p
			ends[r] = p
			return
		}
		if p < starts[r] {
			starts[r] = p
		}
		if p > ends[r] {
			ends[r] = p
		}
	}

	lastPosOf := map[*mir.BasicBlock]int{}
	for _, b := range fn.Blocks {
		last := -1
		for _, instr := range b.Instructions {
			last = pos[instr]
		}
		lastPosOf[b] = last
	}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			p := pos[instr]
			if instr.Dest != mir.NoReg {
				touch(instr.Dest, p)
			}
			for _, a := range instr.Args {
				touch(a, p)
			}
			for _, e := range instr.Phi {
				// A phi operand is live up to the end of the predecessor
				// block it arrives from, not at the phi instruction's own
				// position (which belongs to a different control-flow path
				// at runtime).
				if lp, ok := lastPosOf[e.Block]; ok && lp >= 0 {
					touch(e.Value, lp)
				} else {
					touch(e.Value, p)
				}
			}
		}
	}

	intervals := make([]interval, 0, len(starts))
	for r := range starts {
		intervals = append(intervals, interval{reg: r, start: starts[r], end: ends[r]})
	}
	return intervals
}

// resolvePhis inserts the register-to-register copies needed to materialize
// each phi's result into its assigned physical register along every
// incoming edge. When a join block contains more than one phi, the copies
// for a single predecessor are resolved as a parallel-copy problem (a copy
// whose source is itself the destination of another pending copy must wait
// until that destination has been read), using a scratch register beyond
// the allocator's normal range to break any cycle.
func resolvePhis(fn *mir.Function, alloc *Allocation) {
	scratch := alloc.NumRegs // one reserved slot past the allocated range

	byPred := map[int][]Copy{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op != mir.OpPhi {
				continue
			}
			dst := alloc.PhysReg[instr.Dest]
			for _, e := range instr.Phi {
				src := alloc.PhysReg[e.Value]
				if src == dst {
					continue
				}
				byPred[e.Block.ID] = append(byPred[e.Block.ID], Copy{Dest: dst, Src: src})
			}
		}
	}

	for blockID, copies := range byPred {
		alloc.EdgeCopies[blockID] = resolveParallelCopies(copies, scratch)
	}
}

// resolveParallelCopies orders a set of register copies that must all
// appear to happen simultaneously into a safe sequential order, introducing
// a scratch register to break cycles (the standard parallel-copy algorithm
// used to lower phi nodes after register allocation).
func resolveParallelCopies(copies []Copy, scratch int) []Copy {
	pending := append([]Copy(nil), copies...)
	var out []Copy
	srcOf := map[int]int{}
	for _, c := range pending {
		srcOf[c.Dest] = c.Src
	}

	done := map[int]bool{}
	var emit func(dest int, path map[int]bool)
	emit = func(dest int, path map[int]bool) {
		if done[dest] {
			return
		}
		src, has := srcOf[dest]
		if !has {
			return
		}
		if path[src] {
			// Cycle: route this edge through the scratch register.
			out = append(out, Copy{Dest: scratch, Src: src})
			srcOf[dest] = scratch
			src = scratch
		} else if _, stillPending := srcOf[src]; stillPending && !done[src] {
			path[src] = true
			emit(src, path)
		}
		out = append(out, Copy{Dest: dest, Src: src})
		done[dest] = true
	}

	for _, c := range pending {
		emit(c.Dest, map[int]bool{c.Dest: true})
	}
	return out
}
