package dfg

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

func TestBuilderRefCounts(t *testing.T) {
	cb := &CodeBlock{}
	b := NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(Int32Value(1))
	n1 := b.Constant(Int32Value(2))
	add := b.Node(ArithAdd, 0, n0, n1)
	ret := b.Node(Return, 0, add)

	g, err := b.Finish()
	require.NoError(t, err)

	tassert.Equal(t, int32(1), g.At(n0).RefCount)
	tassert.Equal(t, int32(1), g.At(add).RefCount)
	tassert.Equal(t, int32(1), g.At(ret).RefCount, "must-generate self reference")

	tassert.True(t, g.At(add).ShouldGenerate())
}

func TestBuilderValidatesDominance(t *testing.T) {
	cb := &CodeBlock{}
	b := NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(Int32Value(1))
	add := b.Node(ArithAdd, 0, n0, n0)

	// Forge a forward reference.
	b.Graph().At(n0).SetChild(0, add)

	_, err := b.Finish()
	tassert.Error(t, err)
}

func TestDerefReleasesChildren(t *testing.T) {
	cb := &CodeBlock{}
	b := NewBuilder(cb)

	b.StartBlock()

	n0 := b.Constant(Int32Value(1))
	n1 := b.Constant(Int32Value(2))
	add := b.Ref(b.Node(ArithAdd, 0, n0, n1))

	g, err := b.Finish()
	require.NoError(t, err)

	g.Deref(add)

	tassert.False(t, g.At(add).ShouldGenerate())
	tassert.False(t, g.At(n0).ShouldGenerate(), "children released transitively")
	tassert.False(t, g.At(n1).ShouldGenerate())
}

func TestConstantProbes(t *testing.T) {
	cb := &CodeBlock{}
	b := NewBuilder(cb)

	b.StartBlock()

	i := b.Constant(Int32Value(3))
	d := b.Constant(DoubleValue(2.5))
	wd := b.Constant(DoubleValue(4))
	s := b.Constant(StringValue("x"))

	g, err := b.Finish()
	require.NoError(t, err)

	tassert.True(t, g.IsNumberConstant(cb, i))
	tassert.True(t, g.IsNumberConstant(cb, d))
	tassert.False(t, g.IsNumberConstant(cb, s))

	tassert.True(t, g.IsInt32Constant(cb, i))
	tassert.False(t, g.IsInt32Constant(cb, d))
	tassert.True(t, g.IsInt32Constant(cb, wd), "whole double in range reads as int32")

	tassert.Equal(t, 3.0, g.ValueOfNumberConstant(cb, i))
}

func TestPredictionFromValue(t *testing.T) {
	tassert.Equal(t, prediction.Int32, PredictionFromValue(Int32Value(1)))
	tassert.Equal(t, prediction.Double, PredictionFromValue(DoubleValue(0.5)))
	tassert.Equal(t, prediction.Boolean, PredictionFromValue(BooleanValue(true)))
	tassert.Equal(t, prediction.String, PredictionFromValue(StringValue("")))
	tassert.Equal(t, prediction.Array, PredictionFromValue(Value{Kind: KindArray}))
	tassert.Equal(t, prediction.Function, PredictionFromValue(Value{Kind: KindFunction}))
	tassert.Equal(t, prediction.ObjectOther, PredictionFromValue(Value{Kind: KindRegExp}))
	tassert.Equal(t, prediction.Other, PredictionFromValue(Value{Kind: KindNull}))
	tassert.Equal(t, prediction.Other, PredictionFromValue(Value{Kind: KindUndefined}))
}

func TestNodePredictMonotonic(t *testing.T) {
	n := newNode(GetByVal, 0, 0)

	tassert.True(t, n.Predict(prediction.Int32))
	tassert.False(t, n.Predict(prediction.Int32))
	tassert.True(t, n.Predict(prediction.Double))
	tassert.Equal(t, prediction.Int32|prediction.Double, n.Prediction)
}

func TestGlobalVarPredictions(t *testing.T) {
	g := &Graph{}

	tassert.Equal(t, prediction.None, g.GetGlobalVarPrediction(3))

	tassert.True(t, g.PredictGlobalVar(3, prediction.Int32))
	tassert.False(t, g.PredictGlobalVar(3, prediction.Int32))
	tassert.True(t, g.PredictGlobalVar(3, prediction.String))

	tassert.Equal(t, prediction.Int32|prediction.String, g.GetGlobalVarPrediction(3))
}

func TestVarArgChildren(t *testing.T) {
	cb := &CodeBlock{}
	b := NewBuilder(cb)

	b.StartBlock()

	callee := b.Constant(Value{Kind: KindFunction})
	a0 := b.Constant(Int32Value(1))
	a1 := b.Constant(Int32Value(2))
	call := b.VarArg(Call, 0, []NodeIndex{callee, a0, a1})

	g, err := b.Finish()
	require.NoError(t, err)

	n := g.At(call)

	require.True(t, n.HasVarArgs())
	require.Equal(t, int32(3), n.NumChildren())

	tassert.Equal(t, callee, g.VarArgChild(n, 0))
	tassert.Equal(t, a0, g.VarArgChild(n, 1))
	tassert.Equal(t, a1, g.VarArgChild(n, 2))

	tassert.Equal(t, int32(1), g.At(a0).RefCount)
}
