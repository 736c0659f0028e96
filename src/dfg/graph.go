package dfg

import (
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
	"github.com/zihong/JavaScriptCore/src/set"
)

type (
	// StructureSet names the object shapes a CheckStructure admits.
	StructureSet = set.Bits[StructureID]

	// StructureTransition is a PutStructure payload.
	StructureTransition struct {
		Previous StructureID
		Next     StructureID
	}

	// StorageAccessData describes one known property slot.
	StorageAccessData struct {
		IdentifierNumber int
		Offset           int
	}
)

// Graph is the data flow graph: a dense node arena partitioned into basic
// blocks, plus the side tables nodes point into. All cross-references are
// indices; the optimizer never adds or removes nodes.
type Graph struct {
	Nodes  []Node
	Blocks []*BasicBlock

	VarArgChildren []NodeIndex

	Vars []VariableAccessData

	StorageAccesses      []StorageAccessData
	StructureSets        []StructureSet
	StructureTransitions []StructureTransition

	globalVarPredictions map[int]prediction.Type

	// NumLocals sizes the operand-slot vectors used by the control flow
	// analysis.
	NumLocals int

	// ParameterSlots is the stack space reserved for outgoing call
	// arguments.
	ParameterSlots int

	// PreservedVars marks local slots whose stack locations must survive
	// register allocation.
	PreservedVars set.Bitmap
}

func (g *Graph) Size() int { return len(g.Nodes) }

func (g *Graph) At(i NodeIndex) *Node { return &g.Nodes[i] }

// VarArgChild resolves the i-th var-arg child of n.
func (g *Graph) VarArgChild(n *Node, i int32) NodeIndex {
	return g.VarArgChildren[n.firstChild+i]
}

func (g *Graph) Ref(i NodeIndex) {
	g.Nodes[i].Ref()
}

// Deref drops one reference; a node going dead releases its children too.
func (g *Graph) Deref(i NodeIndex) {
	n := &g.Nodes[i]
	n.Deref()

	if n.RefCount != 0 {
		return
	}

	if n.HasVarArgs() {
		for c := int32(0); c < n.numChildren; c++ {
			g.Deref(g.VarArgChild(n, c))
		}

		return
	}

	for c := 0; c < 3; c++ {
		if n.children[c] == NoNode {
			return
		}

		g.Deref(n.children[c])
	}
}

func (g *Graph) ClearAndDerefChild1(n *Node) {
	if n.children[0] == NoNode {
		return
	}

	g.Deref(n.children[0])
	n.children[0] = NoNode
}

func (g *Graph) ClearAndDerefChild2(n *Node) {
	if n.children[1] == NoNode {
		return
	}

	g.Deref(n.children[1])
	n.children[1] = NoNode
}

func (g *Graph) ClearAndDerefChild3(n *Node) {
	if n.children[2] == NoNode {
		return
	}

	g.Deref(n.children[2])
	n.children[2] = NoNode
}

// constant probes

func (g *Graph) IsConstant(i NodeIndex) bool {
	op := g.Nodes[i].Op
	return op == JSConstant || op == WeakJSConstant
}

func (g *Graph) ValueOfJSConstant(cb *CodeBlock, i NodeIndex) Value {
	return cb.Constants[g.Nodes[i].ConstantIndex()]
}

func (g *Graph) IsNumberConstant(cb *CodeBlock, i NodeIndex) bool {
	return g.IsConstant(i) && g.ValueOfJSConstant(cb, i).IsNumber()
}

func (g *Graph) ValueOfNumberConstant(cb *CodeBlock, i NodeIndex) float64 {
	assert(g.IsNumberConstant(cb, i), "number constant @%v", i)
	return g.ValueOfJSConstant(cb, i).Num
}

func (g *Graph) IsInt32Constant(cb *CodeBlock, i NodeIndex) bool {
	return g.IsConstant(i) && g.ValueOfJSConstant(cb, i).IsInt32()
}

// global var prediction table

func (g *Graph) GetGlobalVarPrediction(varNumber int) prediction.Type {
	return g.globalVarPredictions[varNumber]
}

func (g *Graph) PredictGlobalVar(varNumber int, p prediction.Type) bool {
	if g.globalVarPredictions == nil {
		g.globalVarPredictions = map[int]prediction.Type{}
	}

	old := g.globalVarPredictions[varNumber]
	merged := prediction.Merge(old, p)
	g.globalVarPredictions[varNumber] = merged

	return merged != old
}

// speculation oracles

// AddShouldSpeculateInteger decides whether an add-like node (ValueAdd,
// ArithAdd, ArithSub) may be compiled as an int32 operation with overflow
// checks. A constant operand speculates on the other operand alone.
func (g *Graph) AddShouldSpeculateInteger(add *Node, cb *CodeBlock) bool {
	assert(add.Op == ValueAdd || add.Op == ArithAdd || add.Op == ArithSub, "add oracle on %v", add.Op)

	left := &g.Nodes[add.Child1()]
	right := &g.Nodes[add.Child2()]

	if g.IsConstant(add.Child1()) {
		return g.addImmediateShouldSpeculateInteger(cb, add, right, add.Child1())
	}

	if g.IsConstant(add.Child2()) {
		return g.addImmediateShouldSpeculateInteger(cb, add, left, add.Child2())
	}

	return left.ShouldSpeculateInteger() && right.ShouldSpeculateInteger() && add.CanSpeculateInteger()
}

func (g *Graph) addImmediateShouldSpeculateInteger(cb *CodeBlock, add, variable *Node, immediate NodeIndex) bool {
	v := g.ValueOfJSConstant(cb, immediate)
	if !v.IsNumber() {
		return false
	}

	if !variable.ShouldSpeculateInteger() {
		return false
	}

	return v.IsInt32() && add.CanSpeculateInteger()
}
