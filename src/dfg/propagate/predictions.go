package propagate

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

// setPrediction is mergePrediction plus the claim that the node's
// prediction is decided once and never revised.
func (p *Propagator) setPrediction(t prediction.Type) bool {
	n := p.cur()

	assertf(n.HasResult(), "prediction on no-result @%v %v", p.compileIndex, n.Op)
	assertf(n.Prediction == prediction.None || n.Prediction == t,
		"prediction rewrite @%v: %v -> %v", p.compileIndex, n.Prediction, t)

	return n.Predict(t)
}

func (p *Propagator) mergePrediction(t prediction.Type) bool {
	n := p.cur()

	assertf(n.HasResult(), "prediction on no-result @%v %v", p.compileIndex, n.Op)

	return n.Predict(t)
}

func (p *Propagator) predictionOf(i dfg.NodeIndex) prediction.Type {
	return p.at(i).Prediction
}

func (p *Propagator) propagateNodePredictions(n *dfg.Node) {
	if !n.ShouldGenerate() {
		return
	}

	changed := false

	switch n.Op {
	case dfg.JSConstant, dfg.WeakJSConstant:
		changed = p.setPrediction(dfg.PredictionFromValue(p.g.ValueOfJSConstant(p.cb, p.compileIndex)))

	case dfg.GetLocal:
		if t := p.g.VarFind(n.VariableIndex()).Prediction(); t != prediction.None {
			changed = p.mergePrediction(t)
		}

	case dfg.SetLocal:
		changed = p.g.VarFind(n.VariableIndex()).Predict(p.predictionOf(n.Child1()))

	case dfg.BitAnd, dfg.BitOr, dfg.BitXor, dfg.BitRShift, dfg.BitLShift, dfg.BitURShift, dfg.ValueToInt32:
		changed = p.setPrediction(prediction.Int32)

	case dfg.ArrayPop, dfg.ArrayPush:
		if n.HeapPrediction != prediction.None {
			changed = p.mergePrediction(n.HeapPrediction)
		}

	case dfg.StringCharCodeAt:
		changed = p.mergePrediction(prediction.Int32)

	case dfg.ArithMod:
		left := p.predictionOf(n.Child1())
		right := p.predictionOf(n.Child2())

		if left != prediction.None && right != prediction.None {
			if prediction.IsInt32(prediction.Merge(left, right)) && n.CanSpeculateInteger() {
				changed = p.mergePrediction(prediction.Int32)
			} else {
				changed = p.mergePrediction(prediction.Double)
			}
		}

	case dfg.UInt32ToNumber:
		if n.CanSpeculateInteger() {
			changed = p.setPrediction(prediction.Int32)
		} else {
			changed = p.setPrediction(prediction.Number)
		}

	case dfg.ValueAdd:
		left := p.predictionOf(n.Child1())
		right := p.predictionOf(n.Child2())

		if left != prediction.None && right != prediction.None {
			switch {
			case prediction.IsNumber(left) && prediction.IsNumber(right):
				if p.g.AddShouldSpeculateInteger(n, p.cb) {
					changed = p.mergePrediction(prediction.Int32)
				} else {
					changed = p.mergePrediction(prediction.Double)
				}
			case left&prediction.Number == 0 || right&prediction.Number == 0:
				// A side is definitely not a number, so the add is a
				// concatenation.
				changed = p.mergePrediction(prediction.String)
			default:
				changed = p.mergePrediction(prediction.String | prediction.Int32 | prediction.Double)
			}
		}

	case dfg.ArithAdd, dfg.ArithSub:
		left := p.predictionOf(n.Child1())
		right := p.predictionOf(n.Child2())

		if left != prediction.None && right != prediction.None {
			if p.g.AddShouldSpeculateInteger(n, p.cb) {
				changed = p.mergePrediction(prediction.Int32)
			} else {
				changed = p.mergePrediction(prediction.Double)
			}
		}

	case dfg.ArithMul, dfg.ArithMin, dfg.ArithMax, dfg.ArithDiv:
		left := p.predictionOf(n.Child1())
		right := p.predictionOf(n.Child2())

		if left != prediction.None && right != prediction.None {
			if prediction.IsInt32(prediction.Merge(left, right)) && n.CanSpeculateInteger() {
				changed = p.mergePrediction(prediction.Int32)
			} else {
				changed = p.mergePrediction(prediction.Double)
			}
		}

	case dfg.ArithSqrt:
		changed = p.setPrediction(prediction.Double)

	case dfg.ArithAbs:
		child := p.predictionOf(n.Child1())

		if child != prediction.None {
			if n.CanSpeculateInteger() {
				changed = p.mergePrediction(child)
			} else {
				changed = p.setPrediction(prediction.Double)
			}
		}

	case dfg.LogicalNot, dfg.CompareLess, dfg.CompareLessEq, dfg.CompareGreater, dfg.CompareGreaterEq,
		dfg.CompareEq, dfg.CompareStrictEq, dfg.InstanceOf:
		changed = p.setPrediction(prediction.Boolean)

	case dfg.GetById:
		if n.HeapPrediction != prediction.None {
			changed = p.mergePrediction(n.HeapPrediction)
		} else if p.cb.Identifier(n.IdentifierNumber()) == "length" {
			// No profile, but a length read on an array-like shape is an
			// int32 we can infer ourselves.
			if p.isLengthSpecializableBase(p.at(n.Child1())) {
				changed = p.mergePrediction(prediction.Int32)
			}
		}

	case dfg.GetByIdFlush:
		if n.HeapPrediction != prediction.None {
			changed = p.mergePrediction(n.HeapPrediction)
		}

	case dfg.GetByVal:
		base := p.at(n.Child1())

		switch {
		case base.ShouldSpeculateUint32Array() || base.ShouldSpeculateFloat32Array() || base.ShouldSpeculateFloat64Array():
			changed = p.mergePrediction(prediction.Double)
		case n.HeapPrediction != prediction.None:
			changed = p.mergePrediction(n.HeapPrediction)
		}

	case dfg.GetPropertyStorage, dfg.GetIndexedPropertyStorage:
		changed = p.setPrediction(prediction.Other)

	case dfg.GetByOffset:
		if n.HeapPrediction != prediction.None {
			changed = p.mergePrediction(n.HeapPrediction)
		}

	case dfg.Call, dfg.Construct:
		if n.HeapPrediction != prediction.None {
			changed = p.mergePrediction(n.HeapPrediction)
		}

	case dfg.ConvertThis:
		t := p.predictionOf(n.Child1())

		if t != prediction.None {
			if t&^prediction.ObjectMask != 0 {
				t &= prediction.ObjectMask
				t = prediction.Merge(t, prediction.ObjectOther)
			}

			changed = p.mergePrediction(t)
		}

	case dfg.GetGlobalVar:
		if t := p.g.GetGlobalVarPrediction(n.VarNumber()); t != prediction.None {
			changed = p.mergePrediction(t)
		}

	case dfg.PutGlobalVar:
		changed = p.g.PredictGlobalVar(n.VarNumber(), p.predictionOf(n.Child1()))

	case dfg.GetScopedVar, dfg.Resolve, dfg.ResolveBase, dfg.ResolveBaseStrictPut, dfg.ResolveGlobal:
		if n.HeapPrediction != prediction.None {
			changed = p.mergePrediction(n.HeapPrediction)
		}

	case dfg.GetScopeChain:
		changed = p.setPrediction(prediction.CellOther)

	case dfg.GetCallee:
		changed = p.setPrediction(prediction.Function)

	case dfg.CreateThis, dfg.NewObject:
		changed = p.setPrediction(prediction.FinalObject)

	case dfg.NewArray, dfg.NewArrayBuffer:
		changed = p.setPrediction(prediction.Array)

	case dfg.NewRegexp:
		changed = p.setPrediction(prediction.ObjectOther)

	case dfg.StringCharAt, dfg.StrCat:
		changed = p.setPrediction(prediction.String)

	case dfg.ToPrimitive:
		child := p.predictionOf(n.Child1())

		switch {
		case child == prediction.None:
		case prediction.IsObject(child):
			// A pure-object input turns into a string; stripping the
			// object bits here would leave bottom, which reads as "no
			// information" rather than "string".
			changed = p.mergePrediction(prediction.String)
		case child&prediction.ObjectMask != 0:
			changed = p.mergePrediction(prediction.Merge(child&^prediction.ObjectMask, prediction.String))
		default:
			changed = p.mergePrediction(child)
		}

	case dfg.GetArrayLength, dfg.GetStringLength, dfg.GetByteArrayLength,
		dfg.GetInt8ArrayLength, dfg.GetInt16ArrayLength, dfg.GetInt32ArrayLength,
		dfg.GetUint8ArrayLength, dfg.GetUint8ClampedArrayLength, dfg.GetUint16ArrayLength,
		dfg.GetUint32ArrayLength, dfg.GetFloat32ArrayLength, dfg.GetFloat64ArrayLength:
		// Only fixup, which runs after this phase, emits these.
		assertf(false, "length op @%v before fixup", p.compileIndex)

	default:
		// No result, or nothing to predict.
	}

	p.changed = p.changed || changed
}

func (p *Propagator) isLengthSpecializableBase(base *dfg.Node) bool {
	return prediction.IsArray(base.Prediction) ||
		prediction.IsString(base.Prediction) ||
		base.ShouldSpeculateByteArray() ||
		base.ShouldSpeculateInt8Array() ||
		base.ShouldSpeculateInt16Array() ||
		base.ShouldSpeculateInt32Array() ||
		base.ShouldSpeculateUint8Array() ||
		base.ShouldSpeculateUint8ClampedArray() ||
		base.ShouldSpeculateUint16Array() ||
		base.ShouldSpeculateUint32Array() ||
		base.ShouldSpeculateFloat32Array() ||
		base.ShouldSpeculateFloat64Array()
}

func (p *Propagator) propagatePredictionsForward() {
	for p.compileIndex = 0; int(p.compileIndex) < p.g.Size(); p.compileIndex++ {
		p.propagateNodePredictions(p.cur())
	}
}

func (p *Propagator) propagatePredictionsBackward() {
	for p.compileIndex = dfg.NodeIndex(p.g.Size()); p.compileIndex > 0; {
		p.compileIndex--
		p.propagateNodePredictions(p.cur())
	}
}

// voteChild walks through int32 conversions to the underlying GetLocal,
// if any, and casts the ballot on its variable group.
func (p *Propagator) voteChild(i dfg.NodeIndex, ballot dfg.Ballot) {
	switch p.at(i).Op {
	case dfg.ValueToInt32, dfg.UInt32ToNumber:
		i = p.at(i).Child1()
	}

	if n := p.at(i); n.Op == dfg.GetLocal {
		p.g.VarFind(n.VariableIndex()).Vote(ballot)
	}
}

func (p *Propagator) voteChildren(n *dfg.Node, ballot dfg.Ballot) {
	if n.HasVarArgs() {
		for c := int32(0); c < n.NumChildren(); c++ {
			p.voteChild(p.g.VarArgChild(n, c), ballot)
		}

		return
	}

	for c := 0; c < 3; c++ {
		if n.Child(c) == dfg.NoNode {
			return
		}

		p.voteChild(n.Child(c), ballot)
	}
}

// doRoundOfDoubleVoting has every generating arithmetic node vote on
// whether its operands' locals would be better off in double format, then
// tallies per variable group.
func (p *Propagator) doRoundOfDoubleVoting() {
	for i := range p.g.Vars {
		if v := &p.g.Vars[i]; v == p.g.VarFind(i) {
			v.ClearVotes()
		}
	}

	for p.compileIndex = 0; int(p.compileIndex) < p.g.Size(); p.compileIndex++ {
		n := p.cur()

		if !n.ShouldGenerate() {
			continue
		}

		switch n.Op {
		case dfg.ValueAdd, dfg.ArithAdd, dfg.ArithSub:
			left := p.predictionOf(n.Child1())
			right := p.predictionOf(n.Child2())

			ballot := dfg.VoteValue

			if prediction.IsNumber(left) && prediction.IsNumber(right) &&
				!p.g.AddShouldSpeculateInteger(n, p.cb) {
				ballot = dfg.VoteDouble
			}

			p.voteChild(n.Child1(), ballot)
			p.voteChild(n.Child2(), ballot)

		case dfg.ArithMul, dfg.ArithMin, dfg.ArithMax, dfg.ArithMod, dfg.ArithDiv:
			left := p.predictionOf(n.Child1())
			right := p.predictionOf(n.Child2())

			ballot := dfg.VoteValue

			if prediction.IsNumber(left) && prediction.IsNumber(right) &&
				!(p.at(n.Child1()).ShouldSpeculateInteger() && p.at(n.Child2()).ShouldSpeculateInteger() && n.CanSpeculateInteger()) {
				ballot = dfg.VoteDouble
			}

			p.voteChild(n.Child1(), ballot)
			p.voteChild(n.Child2(), ballot)

		case dfg.ArithAbs:
			ballot := dfg.VoteValue

			if !(p.at(n.Child1()).ShouldSpeculateInteger() && n.CanSpeculateInteger()) {
				ballot = dfg.VoteDouble
			}

			p.voteChild(n.Child1(), ballot)

		case dfg.ArithSqrt:
			p.voteChild(n.Child1(), dfg.VoteDouble)

		case dfg.SetLocal:
			t := p.predictionOf(n.Child1())

			if prediction.IsDouble(t) {
				p.g.VarFind(n.VariableIndex()).Vote(dfg.VoteDouble)
			} else if !prediction.IsNumber(t) || prediction.IsInt32(t) {
				p.g.VarFind(n.VariableIndex()).Vote(dfg.VoteValue)
			}

		default:
			p.voteChildren(n, dfg.VoteValue)
		}
	}

	for i := range p.g.Vars {
		if v := &p.g.Vars[i]; v == p.g.VarFind(i) {
			p.changed = v.TallyVotes() || p.changed
		}
	}
}

// propagatePredictions runs the prediction fixpoint, then interleaves
// double voting with further propagation until both are quiescent.
func (p *Propagator) propagatePredictions(ctx context.Context) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dfg: predictions")
	defer tr.Finish()

	passes := 0

	// Forward propagation is near optimal for topologically ordered
	// code; the backward pass picks up loop-carried flow and confirms
	// the forward result converged.
	for {
		p.changed = false
		p.propagatePredictionsForward()
		passes++

		if !p.changed {
			break
		}

		p.changed = false
		p.propagatePredictionsBackward()
		passes++

		if !p.changed {
			break
		}
	}

	votingRounds := 0

	for {
		p.changed = false
		p.doRoundOfDoubleVoting()
		p.propagatePredictionsForward()
		votingRounds++

		if !p.changed {
			break
		}

		p.changed = false
		p.doRoundOfDoubleVoting()
		p.propagatePredictionsBackward()
		votingRounds++

		if !p.changed {
			break
		}
	}

	tr.Printw("converged", "passes", passes, "voting_rounds", votingRounds)
}
