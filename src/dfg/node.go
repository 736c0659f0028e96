package dfg

import (
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

type (
	NodeIndex       int32
	BlockIndex      int32
	VirtualRegister int32

	// CodeOrigin tags a node with the bytecode location it came from.
	// Inlined frames get origins past the host code block's range.
	CodeOrigin int32

	// ArithFlags says what the consumers of a value demand of it.
	ArithFlags uint8
)

const (
	NoNode   NodeIndex  = -1
	NoBlock  BlockIndex = -1
	InvalidVirtualRegister VirtualRegister = -1
)

const (
	// UsedAsNumber means some consumer needs the full numeric value, not
	// a 32-bit truncation of it.
	UsedAsNumber ArithFlags = 1 << iota
	// NeedsNegZero means some consumer tells -0 from +0.
	NeedsNegZero

	UsedAsMask = UsedAsNumber | NeedsNegZero
)

// CanSpeculateInteger reports whether the consumers described by flags
// tolerate integer speculation of the producing node.
func CanSpeculateInteger(flags ArithFlags) bool {
	return flags&UsedAsNumber == 0
}

func (f ArithFlags) String() string {
	switch f & UsedAsMask {
	case 0:
		return ""
	case UsedAsNumber:
		return "UsedAsNum"
	case NeedsNegZero:
		return "NeedsNegZero"
	default:
		return "UsedAsNum|NeedsNegZero"
	}
}

// Node is one dense IR record. Cross-references are node indices; the
// translator guarantees children precede their parents within a block.
type Node struct {
	Op Op

	children    [3]NodeIndex
	firstChild  int32 // var-arg range into Graph.VarArgChildren
	numChildren int32

	RefCount int32

	Flags          ArithFlags
	Prediction     prediction.Type
	HeapPrediction prediction.Type

	VirtualRegister VirtualRegister
	CodeOrigin      CodeOrigin

	// AuxInt is the opcode-specific payload: a constant index, variable
	// index, identifier number, storage access index and so on. Access
	// through the typed accessors below.
	AuxInt int64
}

func newNode(op Op, origin CodeOrigin, aux int64) Node {
	return Node{
		Op:              op,
		children:        [3]NodeIndex{NoNode, NoNode, NoNode},
		VirtualRegister: InvalidVirtualRegister,
		CodeOrigin:      origin,
		AuxInt:          aux,
	}
}

func (n *Node) Child1() NodeIndex { return n.children[0] }
func (n *Node) Child2() NodeIndex { return n.children[1] }
func (n *Node) Child3() NodeIndex { return n.children[2] }

func (n *Node) Child(i int) NodeIndex { return n.children[i] }

func (n *Node) SetChild(i int, c NodeIndex) { n.children[i] = c }

func (n *Node) FirstChild() int32  { return n.firstChild }
func (n *Node) NumChildren() int32 { return n.numChildren }

func (n *Node) HasResult() bool    { return n.Op.HasResult() }
func (n *Node) MustGenerate() bool { return n.Op.MustGenerate() }
func (n *Node) HasVarArgs() bool   { return n.Op.HasVarArgs() }

func (n *Node) ShouldGenerate() bool { return n.RefCount != 0 }

func (n *Node) Ref() { n.RefCount++ }

func (n *Node) Deref() {
	assert(n.RefCount > 0, "deref of dead node")
	n.RefCount--
}

// MergeFlags folds consumer demands into the node and reports whether the
// flag set grew.
func (n *Node) MergeFlags(flags ArithFlags) bool {
	old := n.Flags
	n.Flags = old | flags

	return n.Flags != old
}

// ArithFlagsForCompare is the flag set used as part of the CSE key. Ops
// that don't interpret arith flags compare as empty.
func (n *Node) ArithFlagsForCompare() ArithFlags {
	if !n.Op.HasArithFlags() {
		return 0
	}

	return n.Flags & UsedAsMask
}

// Predict joins p into the node's prediction and reports growth.
func (n *Node) Predict(p prediction.Type) bool {
	old := n.Prediction
	n.Prediction = prediction.Merge(old, p)

	return n.Prediction != old
}

func (n *Node) ShouldSpeculateInteger() bool {
	return prediction.IsInt32(n.Prediction)
}

func (n *Node) CanSpeculateInteger() bool {
	return CanSpeculateInteger(n.Flags)
}

func (n *Node) ShouldSpeculateByteArray() bool {
	return prediction.IsByteArray(n.Prediction)
}
func (n *Node) ShouldSpeculateInt8Array() bool { return prediction.IsInt8Array(n.Prediction) }
func (n *Node) ShouldSpeculateInt16Array() bool {
	return prediction.IsInt16Array(n.Prediction)
}
func (n *Node) ShouldSpeculateInt32Array() bool {
	return prediction.IsInt32Array(n.Prediction)
}
func (n *Node) ShouldSpeculateUint8Array() bool {
	return prediction.IsUint8Array(n.Prediction)
}
func (n *Node) ShouldSpeculateUint8ClampedArray() bool {
	return prediction.IsUint8ClampedArray(n.Prediction)
}
func (n *Node) ShouldSpeculateUint16Array() bool {
	return prediction.IsUint16Array(n.Prediction)
}
func (n *Node) ShouldSpeculateUint32Array() bool {
	return prediction.IsUint32Array(n.Prediction)
}
func (n *Node) ShouldSpeculateFloat32Array() bool {
	return prediction.IsFloat32Array(n.Prediction)
}
func (n *Node) ShouldSpeculateFloat64Array() bool {
	return prediction.IsFloat64Array(n.Prediction)
}

// payload accessors

func (n *Node) ConstantIndex() int {
	assert(n.Op == JSConstant || n.Op == WeakJSConstant, "constant payload of %v", n.Op)
	return int(n.AuxInt)
}

func (n *Node) VariableIndex() int {
	switch n.Op {
	case GetLocal, SetLocal, SetArgument, Phi, Flush:
	default:
		assert(false, "variable payload of %v", n.Op)
	}

	return int(n.AuxInt)
}

func (n *Node) IdentifierNumber() int {
	switch n.Op {
	case GetById, GetByIdFlush, PutById, PutByIdDirect, Resolve, ResolveBase, ResolveBaseStrictPut, ResolveGlobal,
		GetArrayLength, GetStringLength, GetByteArrayLength,
		GetInt8ArrayLength, GetInt16ArrayLength, GetInt32ArrayLength,
		GetUint8ArrayLength, GetUint8ClampedArrayLength, GetUint16ArrayLength, GetUint32ArrayLength,
		GetFloat32ArrayLength, GetFloat64ArrayLength:
	default:
		assert(false, "identifier payload of %v", n.Op)
	}

	return int(n.AuxInt)
}

func (n *Node) VarNumber() int {
	assert(n.Op == GetGlobalVar || n.Op == PutGlobalVar, "global var payload of %v", n.Op)
	return int(n.AuxInt)
}

func (n *Node) ScopeChainDepth() int {
	assert(n.Op == GetScopeChain || n.Op == GetScopedVar || n.Op == PutScopedVar, "scope payload of %v", n.Op)
	return int(n.AuxInt)
}

func (n *Node) StorageAccessIndex() int {
	assert(n.Op == GetByOffset || n.Op == PutByOffset, "storage access payload of %v", n.Op)
	return int(n.AuxInt)
}

func (n *Node) StructureSetIndex() int {
	assert(n.Op == CheckStructure, "structure set payload of %v", n.Op)
	return int(n.AuxInt)
}

func (n *Node) StructureTransitionIndex() int {
	assert(n.Op == PutStructure, "structure transition payload of %v", n.Op)
	return int(n.AuxInt)
}

func (n *Node) FunctionIndex() int {
	assert(n.Op == CheckFunction, "function payload of %v", n.Op)
	return int(n.AuxInt)
}
