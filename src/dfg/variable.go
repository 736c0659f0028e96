package dfg

import (
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

type Ballot int

const (
	VoteValue Ballot = iota
	VoteDouble
)

// VariableAccessData groups every GetLocal/SetLocal touching the same
// logical local. Inlining can split one local over several entries, so the
// entries form a union-find; always go through Graph.VarFind before
// reading or voting.
type VariableAccessData struct {
	parent int32 // index into Graph.Vars; self when root

	// Operand is the local slot this group describes.
	Operand int32

	prediction prediction.Type

	votes        [2]int32
	doubleFormat bool
}

// Predict joins p into the group's accumulated prediction.
func (v *VariableAccessData) Predict(p prediction.Type) bool {
	old := v.prediction
	v.prediction = prediction.Merge(old, p)

	return v.prediction != old
}

func (v *VariableAccessData) Prediction() prediction.Type { return v.prediction }

func (v *VariableAccessData) ClearVotes() {
	v.votes[VoteValue] = 0
	v.votes[VoteDouble] = 0
}

func (v *VariableAccessData) Vote(b Ballot) {
	v.votes[b]++
}

func (v *VariableAccessData) ShouldUseDoubleFormat() bool { return v.doubleFormat }

// TallyVotes decides the representation format from the round's ballots
// and reports whether anything about the group changed. A local promoted
// to double format feeds Double back into its prediction so that a
// following propagation round can see it.
func (v *VariableAccessData) TallyVotes() bool {
	double := v.votes[VoteDouble] > v.votes[VoteValue]

	changed := double != v.doubleFormat
	v.doubleFormat = double

	if double {
		changed = v.Predict(prediction.Double) || changed
	}

	return changed
}

// VarFind resolves i to its group root, compressing the path on the way.
func (g *Graph) VarFind(i int) *VariableAccessData {
	root := i
	for int(g.Vars[root].parent) != root {
		root = int(g.Vars[root].parent)
	}

	for int(g.Vars[i].parent) != i {
		i, g.Vars[i].parent = int(g.Vars[i].parent), int32(root)
	}

	return &g.Vars[root]
}

// VarUnify merges the groups of a and b, keeping a's root.
func (g *Graph) VarUnify(a, b int) {
	ra := g.varRoot(a)
	rb := g.varRoot(b)

	if ra == rb {
		return
	}

	pb := g.Vars[rb].prediction

	g.Vars[rb].parent = int32(ra)
	g.Vars[ra].Predict(pb)
}

func (g *Graph) varRoot(i int) int {
	for int(g.Vars[i].parent) != i {
		i = int(g.Vars[i].parent)
	}

	return i
}

// AddVar appends a fresh single-entry group for operand and returns its
// index.
func (g *Graph) AddVar(operand int32) int {
	i := len(g.Vars)

	g.Vars = append(g.Vars, VariableAccessData{
		parent:  int32(i),
		Operand: operand,
	})

	return i
}
