package dfg

import (
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

type MergeMode int

const (
	// DontMerge ends a block without touching its successors.
	DontMerge MergeMode = iota
	// MergeToSuccessors joins the tail state into each successor's head
	// and flags changed successors for revisit.
	MergeToSuccessors
)

// BasicBlock is a half-open [Begin, End) range over the node sequence.
type BasicBlock struct {
	Begin NodeIndex
	End   NodeIndex

	Successors []BlockIndex

	CFAShouldRevisit bool
	CFAHasVisited    bool

	// Abstract values per operand slot at block boundaries, filled by the
	// control-flow analysis.
	ValuesAtHead []prediction.Type
	ValuesAtTail []prediction.Type
}

func (b *BasicBlock) Size() int { return int(b.End - b.Begin) }
