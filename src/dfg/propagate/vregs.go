package propagate

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
)

// allocateVirtualRegisters walks the node sequence once, releasing
// children at their last use before taking a slot for the node, so a
// dying operand's register is the first candidate for the result.
func (p *Propagator) allocateVirtualRegisters(ctx context.Context) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dfg: virtual registers")
	defer tr.Finish()

	if len(p.g.Blocks) == 0 {
		return
	}

	scoreBoard := NewScoreBoard(p.g, p.g.PreservedVars)

	// Phi-like nodes appended past the last block take no temporaries.
	sizeExcludingPhiNodes := p.g.Blocks[len(p.g.Blocks)-1].End

	for i := dfg.NodeIndex(0); i < sizeExcludingPhiNodes; i++ {
		n := p.g.At(i)

		if !n.ShouldGenerate() {
			continue
		}

		// GetLocal nodes reference results from predecessor blocks, the
		// way phis do, so their children are not used here; they still
		// take a slot for their own result below.
		if n.Op != dfg.GetLocal {
			if n.HasVarArgs() {
				for c := int32(0); c < n.NumChildren(); c++ {
					scoreBoard.Use(p.g.VarArgChild(n, c))
				}
			} else {
				scoreBoard.Use(n.Child1())
				scoreBoard.Use(n.Child2())
				scoreBoard.Use(n.Child3())
			}
		}

		if !n.HasResult() {
			continue
		}

		n.VirtualRegister = scoreBoard.Allocate()

		// Must-generate nodes carry an artificially elevated use count;
		// account for it so the slot can still free.
		if n.MustGenerate() {
			scoreBoard.Use(i)
		}
	}

	// The back end checks the callee register count on entry; a fresh
	// temporary allocation may need more than the translator planned.
	calleeRegisters := scoreBoard.HighWatermark() + p.g.ParameterSlots
	if p.cb.NumCalleeRegisters < calleeRegisters {
		p.cb.NumCalleeRegisters = calleeRegisters
	}

	tr.Printw("done", "callee_registers", calleeRegisters)
}
