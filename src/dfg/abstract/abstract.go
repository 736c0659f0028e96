// Package abstract implements the transfer function the control flow
// analysis drives: a forward abstract interpretation over the prediction
// lattice, tracking one abstract value per node and per operand slot.
package abstract

import (
	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

type State struct {
	cb *dfg.CodeBlock
	g  *dfg.Graph

	block *dfg.BasicBlock

	variables []prediction.Type
	values    []prediction.Type
}

// Initialize sizes every block's boundary vectors and arms the entry
// block. Run once per graph before the analysis sweeps.
func Initialize(g *dfg.Graph) {
	for _, bb := range g.Blocks {
		bb.ValuesAtHead = make([]prediction.Type, g.NumLocals)
		bb.ValuesAtTail = make([]prediction.Type, g.NumLocals)
		bb.CFAHasVisited = false
	}

	if len(g.Blocks) != 0 {
		g.Blocks[0].CFAShouldRevisit = true
	}
}

func New(cb *dfg.CodeBlock, g *dfg.Graph) *State {
	return &State{
		cb:        cb,
		g:         g,
		variables: make([]prediction.Type, g.NumLocals),
		values:    make([]prediction.Type, g.Size()),
	}
}

func (s *State) BeginBasicBlock(b *dfg.BasicBlock) {
	copy(s.variables, b.ValuesAtHead)

	b.CFAShouldRevisit = false
	b.CFAHasVisited = true
	s.block = b
}

// Execute advances the state over node i. It returns false when the rest
// of the block is proven unreachable.
func (s *State) Execute(i dfg.NodeIndex) bool {
	n := s.g.At(i)

	switch n.Op {
	case dfg.JSConstant, dfg.WeakJSConstant:
		s.values[i] = dfg.PredictionFromValue(s.g.ValueOfJSConstant(s.cb, i))

	case dfg.GetLocal:
		v := s.variables[s.operand(n)]
		if v == prediction.None {
			v = s.g.VarFind(n.VariableIndex()).Prediction()
		}

		s.values[i] = v

	case dfg.SetLocal:
		s.variables[s.operand(n)] = s.values[n.Child1()]

	case dfg.SetArgument:
		s.variables[s.operand(n)] = s.g.VarFind(n.VariableIndex()).Prediction()

	case dfg.BitAnd, dfg.BitOr, dfg.BitXor, dfg.BitLShift, dfg.BitRShift, dfg.BitURShift, dfg.ValueToInt32:
		s.values[i] = prediction.Int32

	case dfg.ArithAdd, dfg.ArithSub, dfg.ArithMul, dfg.ArithDiv, dfg.ArithMod, dfg.ArithMin, dfg.ArithMax:
		left := s.values[n.Child1()]
		right := s.values[n.Child2()]

		switch {
		case prediction.IsInt32(left) && prediction.IsInt32(right) && n.CanSpeculateInteger():
			s.values[i] = prediction.Int32
		default:
			s.values[i] = prediction.Double
		}

	case dfg.ArithSqrt:
		s.values[i] = prediction.Double

	case dfg.LogicalNot, dfg.CompareLess, dfg.CompareLessEq, dfg.CompareGreater, dfg.CompareGreaterEq,
		dfg.CompareEq, dfg.CompareStrictEq, dfg.InstanceOf:
		s.values[i] = prediction.Boolean

	case dfg.ForceOSRExit:
		return false

	default:
		// The propagated prediction is already a fixpoint over the same
		// lattice, so it is a sound abstract value for everything the
		// cases above don't refine.
		if n.HasResult() {
			s.values[i] = n.Prediction
		}
	}

	return true
}

// EndBasicBlock publishes the block tail and, under MergeToSuccessors,
// joins it into each successor head, arming successors whose head grew or
// that were never visited. Reports whether any successor was armed.
func (s *State) EndBasicBlock(mode dfg.MergeMode) bool {
	copy(s.block.ValuesAtTail, s.variables)

	if mode != dfg.MergeToSuccessors {
		return false
	}

	changed := false

	for _, si := range s.block.Successors {
		succ := s.g.Blocks[si]

		blockChanged := false

		for o, v := range s.variables {
			merged := prediction.Merge(succ.ValuesAtHead[o], v)
			if merged != succ.ValuesAtHead[o] {
				succ.ValuesAtHead[o] = merged
				blockChanged = true
			}
		}

		if blockChanged || !succ.CFAHasVisited {
			succ.CFAShouldRevisit = true
			changed = true
		}
	}

	return changed
}

func (s *State) operand(n *dfg.Node) int32 {
	return s.g.VarFind(n.VariableIndex()).Operand
}
