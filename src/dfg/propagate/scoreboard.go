package propagate

import (
	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/set"
)

// ScoreBoard hands out virtual registers, reusing a slot as soon as its
// value's last use goes by. Slots of preserved locals are never handed
// out.
type ScoreBoard struct {
	g *dfg.Graph

	// used counts, per slot, how many uses of the occupying node have
	// been seen; the slot frees when the count reaches the node's
	// reference count.
	used []int32
	free []dfg.VirtualRegister

	highWatermark int
}

const scoreBoardBusy = int32(-1)

func NewScoreBoard(g *dfg.Graph, preserved set.Bitmap) *ScoreBoard {
	sb := &ScoreBoard{
		g:             g,
		used:          make([]int32, preserved.Len()),
		highWatermark: preserved.Len(),
	}

	// Preserved slots stay permanently occupied.
	for i := range sb.used {
		if preserved.IsSet(i) {
			sb.used[i] = scoreBoardBusy
		} else {
			sb.free = append(sb.free, dfg.VirtualRegister(i))
		}
	}

	return sb
}

// Allocate prefers the most recently freed slot, which keeps lifetimes
// packed and favors the just-used-then-defined pattern.
func (sb *ScoreBoard) Allocate() dfg.VirtualRegister {
	if l := len(sb.free); l != 0 {
		vr := sb.free[l-1]
		sb.free = sb.free[:l-1]
		sb.used[vr] = 0

		return vr
	}

	vr := dfg.VirtualRegister(len(sb.used))
	sb.used = append(sb.used, 0)

	if int(vr)+1 > sb.highWatermark {
		sb.highWatermark = int(vr) + 1
	}

	return vr
}

// Use records one consumption of the node's value; the last use returns
// the slot to the free list.
func (sb *ScoreBoard) Use(i dfg.NodeIndex) {
	if i == dfg.NoNode {
		return
	}

	n := sb.g.At(i)
	if !n.HasResult() {
		return
	}

	vr := n.VirtualRegister
	assertf(vr != dfg.InvalidVirtualRegister, "use of unallocated @%v", i)
	assertf(sb.used[vr] != scoreBoardBusy, "use of preserved slot vr%v", vr)

	sb.used[vr]++

	if sb.used[vr] == n.RefCount {
		sb.free = append(sb.free, vr)
	}
}

// HighWatermark is the number of slots the allocation touched.
func (sb *ScoreBoard) HighWatermark() int { return sb.highWatermark }
