package propagate

import (
	"context"
	"math"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
)

// isNotNegZero proves a node is a numeric constant other than -0. Only
// such a proof may drop a NeedsNegZero demand.
func (p *Propagator) isNotNegZero(i dfg.NodeIndex) bool {
	if !p.g.IsNumberConstant(p.cb, i) {
		return false
	}

	v := p.g.ValueOfNumberConstant(p.cb, i)

	return !(v == 0 && math.Signbit(v))
}

func (p *Propagator) isNotZero(i dfg.NodeIndex) bool {
	if !p.g.IsNumberConstant(p.cb, i) {
		return false
	}

	return p.g.ValueOfNumberConstant(p.cb, i) != 0
}

func (p *Propagator) mergeArithFlags(i dfg.NodeIndex, flags dfg.ArithFlags) bool {
	return p.at(i).MergeFlags(flags)
}

// propagateNodeArithFlags recomputes the demands this node places on its
// children from the demands its own consumers placed on it.
func (p *Propagator) propagateNodeArithFlags(n *dfg.Node) {
	if !n.ShouldGenerate() {
		return
	}

	var flags dfg.ArithFlags

	if n.Op.HasArithFlags() {
		flags = n.Flags
	}

	flags &= dfg.UsedAsMask

	changed := false

	switch n.Op {
	case dfg.ValueToInt32, dfg.BitAnd, dfg.BitOr, dfg.BitXor, dfg.BitLShift, dfg.BitRShift, dfg.BitURShift:
		// Truncating consumers demand nothing of their children.

	case dfg.UInt32ToNumber:
		changed = p.mergeArithFlags(n.Child1(), flags)

	case dfg.ArithAdd, dfg.ValueAdd:
		if p.isNotNegZero(n.Child1()) || p.isNotNegZero(n.Child2()) {
			flags &^= dfg.NeedsNegZero
		}

		changed = p.mergeArithFlags(n.Child1(), flags)
		changed = p.mergeArithFlags(n.Child2(), flags) || changed

	case dfg.ArithSub:
		if p.isNotZero(n.Child1()) || p.isNotZero(n.Child2()) {
			flags &^= dfg.NeedsNegZero
		}

		changed = p.mergeArithFlags(n.Child1(), flags)
		changed = p.mergeArithFlags(n.Child2(), flags) || changed

	case dfg.ArithMul, dfg.ArithDiv:
		// Multiplication moves values around the double domain enough
		// that the truncation point changes the result, so the inputs
		// always see full demands.
		flags |= dfg.UsedAsNumber | dfg.NeedsNegZero

		changed = p.mergeArithFlags(n.Child1(), flags)
		changed = p.mergeArithFlags(n.Child2(), flags) || changed

	case dfg.ArithMin, dfg.ArithMax:
		flags |= dfg.UsedAsNumber

		changed = p.mergeArithFlags(n.Child1(), flags)
		changed = p.mergeArithFlags(n.Child2(), flags) || changed

	case dfg.ArithAbs:
		flags &^= dfg.NeedsNegZero

		changed = p.mergeArithFlags(n.Child1(), flags)

	case dfg.PutByVal:
		changed = p.mergeArithFlags(n.Child1(), flags|dfg.UsedAsNumber|dfg.NeedsNegZero)
		changed = p.mergeArithFlags(n.Child2(), flags|dfg.UsedAsNumber) || changed
		changed = p.mergeArithFlags(n.Child3(), flags|dfg.UsedAsNumber|dfg.NeedsNegZero) || changed

	case dfg.GetByVal:
		changed = p.mergeArithFlags(n.Child1(), flags|dfg.UsedAsNumber|dfg.NeedsNegZero)
		changed = p.mergeArithFlags(n.Child2(), flags|dfg.UsedAsNumber) || changed

	default:
		flags |= dfg.UsedAsNumber | dfg.NeedsNegZero

		if n.HasVarArgs() {
			for c := int32(0); c < n.NumChildren(); c++ {
				changed = p.mergeArithFlags(p.g.VarArgChild(n, c), flags) || changed
			}

			break
		}

		for c := 0; c < 3; c++ {
			if n.Child(c) == dfg.NoNode {
				break
			}

			changed = p.mergeArithFlags(n.Child(c), flags) || changed
		}
	}

	p.changed = p.changed || changed
}

func (p *Propagator) propagateArithFlagsForward() {
	for p.compileIndex = 0; int(p.compileIndex) < p.g.Size(); p.compileIndex++ {
		p.propagateNodeArithFlags(p.cur())
	}
}

func (p *Propagator) propagateArithFlagsBackward() {
	for p.compileIndex = dfg.NodeIndex(p.g.Size()); p.compileIndex > 0; {
		p.compileIndex--
		p.propagateNodeArithFlags(p.cur())
	}
}

// propagateArithFlags runs the usage flag fixpoint. Usage flows against
// the def-use direction, so a backward pass leads each round.
func (p *Propagator) propagateArithFlags(ctx context.Context) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dfg: arith flags")
	defer tr.Finish()

	passes := 0

	for {
		p.changed = false
		p.propagateArithFlagsBackward()
		passes++

		if !p.changed {
			break
		}

		p.changed = false
		p.propagateArithFlagsForward()
		passes++

		if !p.changed {
			break
		}
	}

	tr.Printw("converged", "passes", passes)
}
