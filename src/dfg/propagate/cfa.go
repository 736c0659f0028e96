package propagate

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/abstract"
)

func (p *Propagator) performBlockCFA(state State, blockIndex dfg.BlockIndex) {
	block := p.g.Blocks[blockIndex]
	if !block.CFAShouldRevisit {
		return
	}

	state.BeginBasicBlock(block)

	for i := block.Begin; i < block.End; i++ {
		if !p.at(i).ShouldGenerate() {
			continue
		}

		if !state.Execute(i) {
			// The rest of the block is unreachable.
			break
		}
	}

	if state.EndBasicBlock(dfg.MergeToSuccessors) {
		p.changed = true
	}
}

func (p *Propagator) performForwardCFA(state State) {
	for block := dfg.BlockIndex(0); int(block) < len(p.g.Blocks); block++ {
		p.performBlockCFA(state, block)
	}
}

// globalCFA runs the forward control flow analysis. Visit order is
// program order, which is nearly topological, so the revisit flags behave
// like a worklist without the bookkeeping: a block only runs when its
// head changed or it was never seen, and only loops cause revisits, in
// proportion to their depth.
func (p *Propagator) globalCFA(ctx context.Context) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dfg: global cfa")
	defer tr.Finish()

	abstract.Initialize(p.g)

	state := abstract.New(p.cb, p.g)

	sweeps := 0

	for {
		p.changed = false
		p.performForwardCFA(state)
		sweeps++

		if !p.changed {
			break
		}
	}

	tr.Printw("converged", "sweeps", sweeps)
}
