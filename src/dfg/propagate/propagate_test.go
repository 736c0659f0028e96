package propagate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
	"github.com/zihong/JavaScriptCore/src/set"
)

func finish(t *testing.T, b *dfg.Builder) *dfg.Graph {
	t.Helper()

	g, err := b.Finish()
	require.NoError(t, err)

	return g
}

func TestArithFlagsConstantAdd(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.Int32Value(3))
	n1 := b.Constant(dfg.Int32Value(4))
	n2 := b.Node(dfg.ArithAdd, 0, n0, n1)
	b.Node(dfg.Return, 0, n2)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())

	// The return demands full semantics of the add, but the constant
	// operands prove negative zero cannot matter for them.
	assert.Equal(t, dfg.UsedAsNumber|dfg.NeedsNegZero, g.At(n2).Flags&dfg.UsedAsMask)
	assert.Equal(t, dfg.UsedAsNumber, g.At(n0).Flags&dfg.UsedAsMask)
	assert.Equal(t, dfg.UsedAsNumber, g.At(n1).Flags&dfg.UsedAsMask)
}

func TestArithFlagsBitwiseTruncates(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.Int32Value(3))
	n1 := b.Constant(dfg.Int32Value(4))
	add := b.Node(dfg.ArithAdd, 0, n0, n1)
	mask := b.Constant(dfg.Int32Value(255))
	band := b.Node(dfg.BitAnd, 0, add, mask)
	b.Node(dfg.Return, 0, band)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())

	// The only consumer truncates, so no demand reaches the add.
	assert.Equal(t, dfg.ArithFlags(0), g.At(add).Flags&dfg.UsedAsMask)
	assert.Equal(t, dfg.ArithFlags(0), g.At(n0).Flags&dfg.UsedAsMask)
}

func TestArithFlagsMulForcesFull(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.StartBlock()

	x := b.Node(dfg.GetLocal, int64(va))
	y := b.Node(dfg.GetLocal, int64(va))
	mul := b.Node(dfg.ArithMul, 0, x, y)
	mask := b.Constant(dfg.Int32Value(1))
	band := b.Node(dfg.BitAnd, 0, mul, mask)
	b.Node(dfg.Return, 0, band)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())

	// Even under a truncating consumer, multiplication forces full
	// demands on its inputs.
	assert.Equal(t, dfg.UsedAsNumber|dfg.NeedsNegZero, g.At(x).Flags&dfg.UsedAsMask)
	assert.Equal(t, dfg.ArithFlags(0), g.At(mul).Flags&dfg.UsedAsMask)
}

func TestPredictionConstantAddIsInt32(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.Int32Value(3))
	n1 := b.Constant(dfg.Int32Value(4))
	n2 := b.Ref(b.Node(dfg.ArithAdd, 0, n0, n1))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	assert.Equal(t, prediction.Int32, g.At(n0).Prediction)
	assert.Equal(t, prediction.Int32, g.At(n1).Prediction)
	assert.Equal(t, prediction.Int32, g.At(n2).Prediction)
}

func TestPredictionDoubleOperandAdd(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.DoubleValue(0.5))
	n1 := b.Constant(dfg.Int32Value(4))
	n2 := b.Ref(b.Node(dfg.ArithAdd, 0, n0, n1))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	assert.Equal(t, prediction.Double, g.At(n2).Prediction)
}

func TestPredictionValueAddString(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.StringValue("x"))
	n1 := b.Constant(dfg.Int32Value(4))
	n2 := b.Ref(b.Node(dfg.ValueAdd, 0, n0, n1))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	assert.Equal(t, prediction.String, g.At(n2).Prediction)
}

func TestPredictionComparisonsAreBoolean(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.Int32Value(3))
	n1 := b.Constant(dfg.Int32Value(4))
	lt := b.Node(dfg.CompareLess, 0, n0, n1)
	not := b.Ref(b.Node(dfg.LogicalNot, 0, lt))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	assert.Equal(t, prediction.Boolean, g.At(lt).Prediction)
	assert.Equal(t, prediction.Boolean, g.At(not).Prediction)
}

func TestPredictionMonotonic(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.Int32)

	b.StartBlock()

	x := b.Node(dfg.GetLocal, int64(va))
	one := b.Constant(dfg.Int32Value(1))
	add := b.Node(dfg.ArithAdd, 0, x, one)
	b.Node(dfg.SetLocal, int64(va), add)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	before := make([]prediction.Type, g.Size())
	for i := range g.Nodes {
		before[i] = g.Nodes[i].Prediction
	}

	// Extra passes past quiescence must not change anything.
	p.changed = false
	p.propagatePredictionsForward()
	p.propagatePredictionsBackward()

	assert.False(t, p.changed)

	for i := range g.Nodes {
		assert.Equal(t, before[i], g.Nodes[i].Prediction, "node @%d", i)
	}
}

func TestPureCSE(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.Int32)

	b.StartBlock()

	n0 := b.Node(dfg.GetLocal, int64(va))
	n1 := b.Node(dfg.GetLocal, int64(va))
	n2 := b.Ref(b.Node(dfg.ArithAdd, 0, n0, n1))
	n3 := b.Ref(b.Node(dfg.ArithAdd, 0, n0, n1))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	assert.Equal(t, n2, p.Replacement(n3))
	assert.Equal(t, dfg.Phantom, g.At(n3).Op)
	assert.Equal(t, int32(1), g.At(n3).RefCount)
	assert.Equal(t, dfg.ArithAdd, g.At(n2).Op)
}

func TestPureCSEDifferentFlagsDoNotMatch(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.Int32)

	b.StartBlock()

	n0 := b.Node(dfg.GetLocal, int64(va))
	n1 := b.Node(dfg.GetLocal, int64(va))
	n2 := b.Node(dfg.ArithAdd, 0, n0, n1)
	n3 := b.Ref(b.Node(dfg.ArithAdd, 0, n0, n1))

	// One add flows into a truncating consumer, the other is returned.
	mask := b.Constant(dfg.Int32Value(7))
	band := b.Node(dfg.BitAnd, 0, n2, mask)
	b.Node(dfg.Return, 0, band)
	b.Node(dfg.Return, 0, n3)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	// Usage flags are part of the key, so the adds stay distinct.
	assert.Equal(t, dfg.NoNode, p.Replacement(n3))
	assert.Equal(t, dfg.ArithAdd, g.At(n3).Op)
}

func TestGlobalVarLoadElimination(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Ref(b.Node(dfg.GetGlobalVar, 7))
	k := b.Constant(dfg.Int32Value(42))
	b.Node(dfg.PutGlobalVar, 7, k)
	n2 := b.Ref(b.Node(dfg.GetGlobalVar, 7))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	// The later load sees the stored value, not the earlier load.
	assert.Equal(t, k, p.Replacement(n2))
	assert.Equal(t, dfg.Phantom, g.At(n2).Op)
	assert.Equal(t, dfg.NoNode, p.Replacement(n0))
}

func TestGlobalVarLoadEliminationStopsAtClobber(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Ref(b.Node(dfg.GetGlobalVar, 7))
	callee := b.Constant(dfg.Value{Kind: dfg.KindFunction})
	b.Ref(b.VarArg(dfg.Call, 0, []dfg.NodeIndex{callee}))
	n2 := b.Ref(b.Node(dfg.GetGlobalVar, 7))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	assert.Equal(t, dfg.NoNode, p.Replacement(n2))
	assert.Equal(t, dfg.GetGlobalVar, g.At(n2).Op)
	_ = n0
}

func TestGlobalVarLoadEliminationRespectsGlobalObject(t *testing.T) {
	cb := &dfg.CodeBlock{
		GlobalObject: 1,
		OriginGlobals: map[dfg.CodeOrigin]dfg.GlobalObjectID{
			10: 2,
		},
	}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	// Same var number, but the second load came from an inlined frame
	// with its own global object.
	n0 := b.Ref(b.Node(dfg.GetGlobalVar, 7))

	b.SetOrigin(10)
	n1 := b.Ref(b.Node(dfg.GetGlobalVar, 7))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	assert.Equal(t, dfg.NoNode, p.Replacement(n1))
	assert.Equal(t, dfg.GetGlobalVar, g.At(n1).Op)
	_ = n0
}

func TestCheckStructureElimination(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.FinalObject)

	narrow := b.AddStructureSet(set.MakeBits[dfg.StructureID](1))
	wide := b.AddStructureSet(set.MakeBits[dfg.StructureID](1, 2))

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	n0 := b.Node(dfg.CheckStructure, int64(narrow), base)
	n1 := b.Node(dfg.CheckStructure, int64(wide), base)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	// The earlier check proved membership of a subset, so the wider
	// check is redundant.
	assert.Equal(t, dfg.CheckStructure, g.At(n0).Op)
	assert.Equal(t, dfg.Phantom, g.At(n1).Op)
}

func TestCheckStructureNotEliminatedByWider(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.FinalObject)

	narrow := b.AddStructureSet(set.MakeBits[dfg.StructureID](1))
	wide := b.AddStructureSet(set.MakeBits[dfg.StructureID](1, 2))

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	n0 := b.Node(dfg.CheckStructure, int64(wide), base)
	n1 := b.Node(dfg.CheckStructure, int64(narrow), base)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	// The earlier check admits a structure the narrower one rejects.
	assert.Equal(t, dfg.CheckStructure, g.At(n0).Op)
	assert.Equal(t, dfg.CheckStructure, g.At(n1).Op)
}

func TestCheckStructureEliminatedByPutStructure(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.FinalObject)

	st := b.AddStructureTransition(dfg.StructureTransition{Previous: 1, Next: 2})
	s2 := b.AddStructureSet(set.MakeBits[dfg.StructureID](2))

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	b.Node(dfg.PutStructure, int64(st), base)
	n1 := b.Node(dfg.CheckStructure, int64(s2), base)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	assert.Equal(t, dfg.Phantom, g.At(n1).Op)
}

func TestCheckFunctionElimination(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.Function)

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	n0 := b.Node(dfg.CheckFunction, 3, base)
	n1 := b.Node(dfg.CheckFunction, 3, base)
	n2 := b.Node(dfg.CheckFunction, 4, base)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	assert.Equal(t, dfg.CheckFunction, g.At(n0).Op)
	assert.Equal(t, dfg.Phantom, g.At(n1).Op)
	assert.Equal(t, dfg.CheckFunction, g.At(n2).Op)
}

func TestPutByValBecomesAlias(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	vbase := b.Var(0)
	vidx := b.Var(1)
	b.Graph().VarFind(vbase).Predict(prediction.Array)
	b.Graph().VarFind(vidx).Predict(prediction.Int32)

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(vbase))
	idx := b.Node(dfg.GetLocal, int64(vidx))
	n0 := b.Ref(b.Node(dfg.GetByVal, 0, base, idx))
	v := b.Constant(dfg.Int32Value(9))
	n1 := b.Node(dfg.PutByVal, 0, base, idx, v)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	// The preceding load proved the location exists.
	assert.Equal(t, dfg.PutByValAlias, g.At(n1).Op)
	_ = n0
}

func TestGetByValLoadEliminationThroughPut(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	vbase := b.Var(0)
	vidx := b.Var(1)
	b.Graph().VarFind(vbase).Predict(prediction.Array)
	b.Graph().VarFind(vidx).Predict(prediction.Int32)

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(vbase))
	idx := b.Node(dfg.GetLocal, int64(vidx))
	v := b.Constant(dfg.Int32Value(9))
	b.Node(dfg.PutByVal, 0, base, idx, v)
	n1 := b.Ref(b.Node(dfg.GetByVal, 0, base, idx))

	g := finish(t, b)

	// Value profiling saw int32 elements come out of this load.
	g.At(n1).HeapPrediction = prediction.Int32

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	// The load forwards the stored value.
	assert.Equal(t, v, p.Replacement(n1))
}

func TestGetByOffsetLoadElimination(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.FinalObject)

	id := cb.AddIdentifier("f")
	acc := b.AddStorageAccess(dfg.StorageAccessData{IdentifierNumber: id, Offset: 0})

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	storage := b.Node(dfg.GetPropertyStorage, 0, base)
	n0 := b.Ref(b.Node(dfg.GetByOffset, int64(acc), storage))
	n1 := b.Ref(b.Node(dfg.GetByOffset, int64(acc), storage))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())

	assert.Equal(t, n0, p.Replacement(n1))
}

func TestFixupLengthSpecialization(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.Array)

	length := cb.AddIdentifier("length")

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	n1 := b.Ref(b.Node(dfg.GetById, int64(length), base))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	require.Equal(t, prediction.Int32, g.At(n1).Prediction)

	refBefore := g.At(n1).RefCount

	p.fixup(context.Background())

	assert.Equal(t, dfg.GetArrayLength, g.At(n1).Op)
	assert.Equal(t, refBefore-1, g.At(n1).RefCount)

	// No length-specializable GetById remains.
	for i := range g.Nodes {
		n := g.At(dfg.NodeIndex(i))
		if n.Op != dfg.GetById || !n.ShouldGenerate() {
			continue
		}

		assert.False(t, prediction.IsInt32(n.Prediction) && cb.Identifier(n.IdentifierNumber()) == "length" &&
			p.isLengthSpecializableBase(p.at(n.Child1())))
	}
}

func TestFixupStringLength(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	b.Graph().VarFind(va).Predict(prediction.String)

	length := cb.AddIdentifier("length")

	b.StartBlock()

	base := b.Node(dfg.GetLocal, int64(va))
	n1 := b.Ref(b.Node(dfg.GetById, int64(length), base))

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())

	assert.Equal(t, dfg.GetStringLength, g.At(n1).Op)
}

func TestDoubleVoting(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	vx := b.Var(0)
	vy := b.Var(1)
	b.Graph().VarFind(vx).Predict(prediction.Int32 | prediction.Double)

	b.StartBlock()

	x1 := b.Node(dfg.GetLocal, int64(vx))
	two := b.Constant(dfg.DoubleValue(2.0))
	mul := b.Node(dfg.ArithMul, 0, x1, two)
	b.Node(dfg.SetLocal, int64(vy), mul)

	x2 := b.Node(dfg.GetLocal, int64(vx))
	sqrt := b.Ref(b.Node(dfg.ArithSqrt, 0, x2))
	_ = sqrt

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())

	vad := g.VarFind(vx)
	assert.True(t, vad.ShouldUseDoubleFormat())
	assert.True(t, vad.Prediction()&prediction.Double != 0)

	// The double-voted local flows double into its consumers.
	assert.Equal(t, prediction.Double, g.At(mul).Prediction)
}

func TestVirtualRegisterAllocation(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(dfg.Int32Value(3))
	n1 := b.Constant(dfg.Int32Value(4))
	n2 := b.Node(dfg.ArithAdd, 0, n0, n1)
	b.Node(dfg.Return, 0, n2)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())
	p.allocateVirtualRegisters(context.Background())

	r0 := g.At(n0).VirtualRegister
	r1 := g.At(n1).VirtualRegister
	r2 := g.At(n2).VirtualRegister

	require.NotEqual(t, dfg.InvalidVirtualRegister, r0)
	require.NotEqual(t, dfg.InvalidVirtualRegister, r1)
	require.NotEqual(t, dfg.InvalidVirtualRegister, r2)

	// The operands are live together, the result reuses a freed slot.
	assert.NotEqual(t, r0, r1)
	assert.Contains(t, []dfg.VirtualRegister{r0, r1}, r2)

	assert.GreaterOrEqual(t, cb.NumCalleeRegisters, 2)
}

func TestVirtualRegisterLifetimesDisjoint(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	b.StartBlock()

	var nodes []dfg.NodeIndex

	acc := b.Constant(dfg.Int32Value(0))
	nodes = append(nodes, acc)

	for i := 0; i < 5; i++ {
		k := b.Constant(dfg.Int32Value(int32(i)))
		acc = b.Node(dfg.ArithAdd, 0, acc, k)
		nodes = append(nodes, k, acc)
	}

	b.Node(dfg.Return, 0, acc)

	g := finish(t, b)

	p := New(g, cb)
	p.propagateArithFlags(context.Background())
	p.propagatePredictions(context.Background())
	p.fixup(context.Background())
	p.localCSE(context.Background())
	p.allocateVirtualRegisters(context.Background())

	// Two nodes sharing a register must have disjoint lifetimes: the
	// earlier one's last use precedes the later one's definition.
	lastUse := map[dfg.NodeIndex]dfg.NodeIndex{}

	for i := range g.Nodes {
		n := g.At(dfg.NodeIndex(i))

		for c := 0; c < 3; c++ {
			if ch := n.Child(c); ch != dfg.NoNode {
				lastUse[ch] = dfg.NodeIndex(i)
			}
		}
	}

	for _, a := range nodes {
		for _, c := range nodes {
			if a >= c || g.At(a).VirtualRegister != g.At(c).VirtualRegister {
				continue
			}

			assert.LessOrEqual(t, lastUse[a], c, "@%d and @%d share vr%d", a, c, g.At(a).VirtualRegister)
		}
	}
}

func TestGlobalCFA(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	vx := b.Var(0)

	entry := b.StartBlock()

	k := b.Constant(dfg.Int32Value(1))
	b.Node(dfg.SetLocal, int64(vx), k)
	b.Node(dfg.Jump, 0)

	next := b.StartBlock()

	x := b.Ref(b.Node(dfg.GetLocal, int64(vx)))
	b.Node(dfg.Return, 0, x)

	b.Link(entry, next)

	g := finish(t, b)

	Propagate(context.Background(), g, cb)

	for _, bb := range g.Blocks {
		assert.True(t, bb.CFAHasVisited)
		assert.False(t, bb.CFAShouldRevisit)
	}

	// The stored int32 reaches the successor's head.
	assert.Equal(t, prediction.Int32, g.Blocks[next].ValuesAtHead[0])
	assert.Equal(t, prediction.Int32, g.Blocks[entry].ValuesAtTail[0])
}

func TestPipelineSmoke(t *testing.T) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	varr := b.Var(1)
	b.Graph().VarFind(va).Predict(prediction.Int32)
	b.Graph().VarFind(varr).Predict(prediction.Array)

	length := cb.AddIdentifier("length")

	bb := b.StartBlock()

	a := b.Node(dfg.GetLocal, int64(va))
	add1 := b.Node(dfg.ArithAdd, 0, a, a)
	add2 := b.Node(dfg.ArithAdd, 0, a, a)
	sum := b.Node(dfg.ArithAdd, 0, add1, add2)

	arr := b.Node(dfg.GetLocal, int64(varr))
	len1 := b.Node(dfg.GetById, int64(length), arr)

	total := b.Node(dfg.ArithAdd, 0, sum, len1)
	b.Node(dfg.Return, 0, total)

	b.Link(bb)

	g := finish(t, b)

	Propagate(context.Background(), g, cb)

	assert.Equal(t, dfg.GetArrayLength, g.At(len1).Op)
	assert.Equal(t, dfg.Phantom, g.At(add2).Op)
	assert.NotEqual(t, dfg.InvalidVirtualRegister, g.At(sum).VirtualRegister)
	assert.True(t, g.Blocks[0].CFAHasVisited)
}
