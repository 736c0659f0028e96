package dfg

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

func TestVarUnionFind(t *testing.T) {
	g := &Graph{}

	a := g.AddVar(0)
	b := g.AddVar(0)
	c := g.AddVar(1)

	g.VarFind(a).Predict(prediction.Int32)
	g.VarFind(b).Predict(prediction.Double)

	g.VarUnify(a, b)

	tassert.Same(t, g.VarFind(a), g.VarFind(b))
	tassert.NotSame(t, g.VarFind(a), g.VarFind(c))

	// Unification joins the groups' predictions.
	tassert.Equal(t, prediction.Int32|prediction.Double, g.VarFind(b).Prediction())
}

func TestVarFindCompressesPath(t *testing.T) {
	g := &Graph{}

	a := g.AddVar(0)
	b := g.AddVar(0)
	c := g.AddVar(0)

	// Build the chain c -> b -> a.
	g.VarUnify(b, c)
	g.VarUnify(a, b)

	root := g.VarFind(c)

	tassert.Equal(t, int32(a), g.Vars[c].parent, "lookup points c straight at the root")

	tassert.Same(t, root, g.VarFind(a))
	tassert.Same(t, root, g.VarFind(b))
}

func TestTallyVotes(t *testing.T) {
	g := &Graph{}
	i := g.AddVar(0)

	v := g.VarFind(i)

	v.Vote(VoteDouble)
	v.Vote(VoteDouble)
	v.Vote(VoteValue)

	tassert.True(t, v.TallyVotes(), "decision flip reports a change")
	tassert.True(t, v.ShouldUseDoubleFormat())
	tassert.True(t, v.Prediction()&prediction.Double != 0)

	// Same outcome again is quiescent.
	tassert.False(t, v.TallyVotes())

	v.ClearVotes()
	v.Vote(VoteValue)

	tassert.True(t, v.TallyVotes())
	tassert.False(t, v.ShouldUseDoubleFormat())
}

func TestTallyVotesTie(t *testing.T) {
	g := &Graph{}
	v := g.VarFind(g.AddVar(0))

	v.Vote(VoteDouble)
	v.Vote(VoteValue)

	// Ties keep the value representation.
	tassert.False(t, v.TallyVotes())
	tassert.False(t, v.ShouldUseDoubleFormat())
}
