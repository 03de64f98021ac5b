package mir

// Dominators computes, for each reachable block of fn other than the entry,
// its immediate dominator, using the standard iterative dataflow algorithm
// (Cooper, Harvey & Kennedy). The optimizer's CSE pass uses this to decide
// whether a candidate definition's block dominates a use before reusing it
// across blocks.
func Dominators(fn *Function) map[*BasicBlock]*BasicBlock {
	order := reversePostorder(fn.Entry)
	index := make(map[*BasicBlock]int, len(order))
	for i, b := range order {
		index[b] = i
	}

	idom := make(map[*BasicBlock]*BasicBlock, len(order))
	idom[fn.Entry] = fn.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range order[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, index, newIdom, p)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, fn.Entry)
	return idom
}

func intersect(idom map[*BasicBlock]*BasicBlock, index map[*BasicBlock]int, a, b *BasicBlock) *BasicBlock {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

// DominanceFrontiers computes the dominance frontier of every block, given
// the immediate-dominator map from Dominators.
func DominanceFrontiers(fn *Function, idom map[*BasicBlock]*BasicBlock) map[*BasicBlock][]*BasicBlock {
	df := make(map[*BasicBlock][]*BasicBlock)
	for _, b := range fn.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			runner := p
			for runner != idom[b] && runner != b {
				df[runner] = appendUnique(df[runner], b)
				next, ok := idom[runner]
				if !ok {
					break
				}
				runner = next
			}
		}
	}
	return df
}

func appendUnique(blocks []*BasicBlock, b *BasicBlock) []*BasicBlock {
	for _, x := range blocks {
		if x == b {
			return blocks
		}
	}
	return append(blocks, b)
}

// reversePostorder returns fn's blocks reachable from entry in reverse
// postorder, the traversal order the dominator fixed-point iteration
// converges fastest under.
func reversePostorder(entry *BasicBlock) []*BasicBlock {
	visited := make(map[*BasicBlock]bool)
	var post []*BasicBlock
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(entry)

	rp := make([]*BasicBlock, len(post))
	for i, b := range post {
		rp[len(post)-1-i] = b
	}
	return rp
}
