package propagate

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

// cseLookbackLimit bounds how far a candidate scan may walk so CSE stays
// linear in block length.
const cseLookbackLimit = 300

// canonicalize unwraps an int32 conversion so that a value and its
// truncation compare equal as CSE keys.
func (p *Propagator) canonicalize(i dfg.NodeIndex) dfg.NodeIndex {
	if i == dfg.NoNode {
		return dfg.NoNode
	}

	if p.at(i).Op == dfg.ValueToInt32 {
		return p.at(i).Child1()
	}

	return i
}

// startIndexForChildren computes the lookback floor: block start, the
// hard limit, and the children themselves (nothing older can match a node
// that uses them).
func (p *Propagator) startIndexForChildren(children ...dfg.NodeIndex) dfg.NodeIndex {
	start := p.start

	if p.compileIndex-start > cseLookbackLimit {
		start = p.compileIndex - cseLookbackLimit
	}

	for _, c := range children {
		child := p.canonicalize(c)
		if child == dfg.NoNode {
			return start
		}

		if start < child {
			start = child
		}
	}

	return start
}

func (p *Propagator) startIndex() dfg.NodeIndex {
	n := p.cur()
	return p.startIndexForChildren(n.Child1(), n.Child2(), n.Child3())
}

// endIndexForPureCSE is the upper scan bound: one past the last seen node
// of this opcode identity.
func (p *Propagator) endIndexForPureCSE() dfg.NodeIndex {
	end := p.lastSeen[p.cur().Op]
	if end == dfg.NoNode {
		end = 0
	} else {
		end++
	}

	assertf(end <= p.compileIndex, "pure cse bound ahead of cursor")

	return end
}

func (p *Propagator) pureCSE(n *dfg.Node) dfg.NodeIndex {
	child1 := p.canonicalize(n.Child1())
	child2 := p.canonicalize(n.Child2())
	child3 := p.canonicalize(n.Child3())

	start := p.startIndex()
	for index := p.endIndexForPureCSE(); index > start; {
		index--

		other := p.at(index)

		if n.Op != other.Op {
			continue
		}

		if n.ArithFlagsForCompare() != other.ArithFlagsForCompare() {
			continue
		}

		otherChild := p.canonicalize(other.Child1())
		if otherChild == dfg.NoNode {
			return index
		}
		if otherChild != child1 {
			continue
		}

		otherChild = p.canonicalize(other.Child2())
		if otherChild == dfg.NoNode {
			return index
		}
		if otherChild != child2 {
			continue
		}

		otherChild = p.canonicalize(other.Child3())
		if otherChild == dfg.NoNode {
			return index
		}
		if otherChild != child3 {
			continue
		}

		return index
	}

	return dfg.NoNode
}

func (p *Propagator) isPredictedNumerical(n *dfg.Node) bool {
	return prediction.IsNumber(p.predictionOf(n.Child1())) &&
		prediction.IsNumber(p.predictionOf(n.Child2()))
}

func (p *Propagator) logicalNotIsPure(n *dfg.Node) bool {
	t := p.predictionOf(n.Child1())
	return prediction.IsBoolean(t) || t == prediction.None
}

// byValIsPure means the indexed access speculates an integer index into
// an actionable array-like base, so it cannot run arbitrary code.
func (p *Propagator) byValIsPure(n *dfg.Node) bool {
	if !p.at(n.Child2()).ShouldSpeculateInteger() {
		return false
	}

	base := p.predictionOf(n.Child1())

	if n.Op == dfg.PutByVal || n.Op == dfg.PutByValAlias {
		return prediction.IsActionableMutableArray(base)
	}

	return prediction.IsActionableArray(base)
}

// clobbersWorld reports whether crossing index invalidates every heap
// hypothesis.
func (p *Propagator) clobbersWorld(index dfg.NodeIndex) bool {
	n := p.at(index)

	if n.Op.ClobbersWorld() {
		return true
	}

	if !n.Op.MightClobber() {
		return false
	}

	switch n.Op {
	case dfg.ValueAdd, dfg.CompareLess, dfg.CompareLessEq, dfg.CompareGreater, dfg.CompareGreaterEq, dfg.CompareEq:
		return !p.isPredictedNumerical(n)
	case dfg.LogicalNot:
		return !p.logicalNotIsPure(n)
	case dfg.GetByVal:
		return !p.byValIsPure(n)
	default:
		tlog.Printw("unexpected might-clobber op", "op", n.Op)
		// Safer for CSE to assume the worst.
		return true
	}
}

func (p *Propagator) impureCSE(n *dfg.Node) dfg.NodeIndex {
	child1 := p.canonicalize(n.Child1())
	child2 := p.canonicalize(n.Child2())
	child3 := p.canonicalize(n.Child3())

	start := p.startIndex()
	for index := p.compileIndex; index > start; {
		index--

		other := p.at(index)

		if n.Op == other.Op && n.ArithFlagsForCompare() == other.ArithFlagsForCompare() {
			otherChild := p.canonicalize(other.Child1())
			if otherChild == dfg.NoNode {
				return index
			}

			if otherChild == child1 {
				otherChild = p.canonicalize(other.Child2())
				if otherChild == dfg.NoNode {
					return index
				}

				if otherChild == child2 {
					otherChild = p.canonicalize(other.Child3())
					if otherChild == dfg.NoNode {
						return index
					}

					if otherChild == child3 {
						return index
					}
				}
			}
		}

		if p.clobbersWorld(index) {
			break
		}
	}

	return dfg.NoNode
}

func (p *Propagator) globalVarLoadElimination(varNumber int, globalObject dfg.GlobalObjectID) dfg.NodeIndex {
	start := p.startIndexForChildren()
	for index := p.compileIndex; index > start; {
		index--

		n := p.at(index)

		switch n.Op {
		case dfg.GetGlobalVar:
			if n.VarNumber() == varNumber && p.cb.GlobalObjectFor(n.CodeOrigin) == globalObject {
				return index
			}
		case dfg.PutGlobalVar:
			if n.VarNumber() == varNumber && p.cb.GlobalObjectFor(n.CodeOrigin) == globalObject {
				return n.Child1()
			}
		}

		if p.clobbersWorld(index) {
			break
		}
	}

	return dfg.NoNode
}

func (p *Propagator) getByValLoadElimination(child1, child2 dfg.NodeIndex) dfg.NodeIndex {
	start := p.startIndexForChildren(child1, child2)
	for index := p.compileIndex; index > start; {
		index--

		n := p.at(index)

		switch n.Op {
		case dfg.GetByVal:
			if !p.byValIsPure(n) {
				return dfg.NoNode
			}

			if n.Child1() == child1 && p.canonicalize(n.Child2()) == p.canonicalize(child2) {
				return index
			}

		case dfg.PutByVal, dfg.PutByValAlias:
			if !p.byValIsPure(n) {
				return dfg.NoNode
			}

			if n.Child1() == child1 && p.canonicalize(n.Child2()) == p.canonicalize(child2) {
				return n.Child3()
			}

			// A put to the same base may alias the location we load
			// from even when the index differs textually.
			return dfg.NoNode

		case dfg.PutStructure, dfg.PutByOffset:
			// An integer-indexed access cannot be affected by a
			// structure change or a named-slot store.

		case dfg.ArrayPush:
			// A push cannot move elements that already exist.

		default:
			if p.clobbersWorld(index) {
				return dfg.NoNode
			}
		}
	}

	return dfg.NoNode
}

func (p *Propagator) checkFunctionElimination(function int, child1 dfg.NodeIndex) bool {
	start := p.startIndexForChildren(child1)
	for index := p.endIndexForPureCSE(); index > start; {
		index--

		n := p.at(index)

		if n.Op == dfg.CheckFunction && n.Child1() == child1 && n.FunctionIndex() == function {
			return true
		}
	}

	return false
}

func (p *Propagator) checkStructureLoadElimination(structureSet dfg.StructureSet, child1 dfg.NodeIndex) bool {
	start := p.startIndexForChildren(child1)
	for index := p.compileIndex; index > start; {
		index--

		n := p.at(index)

		switch n.Op {
		case dfg.CheckStructure:
			if n.Child1() == child1 &&
				structureSet.ContainsAll(p.g.StructureSets[n.StructureSetIndex()]) {
				return true
			}

		case dfg.PutStructure:
			t := p.g.StructureTransitions[n.StructureTransitionIndex()]

			if n.Child1() == child1 && structureSet.IsSet(t.Next) {
				return true
			}

			if structureSet.IsSet(t.Previous) {
				return false
			}

		case dfg.PutByOffset:
			// Storing to a named slot cannot change the structure.

		case dfg.PutByVal, dfg.PutByValAlias:
			if p.byValIsPure(n) {
				// Integer-indexed puts cannot transition the structure.
				break
			}

			return false

		default:
			if p.clobbersWorld(index) {
				return false
			}
		}
	}

	return false
}

func (p *Propagator) getByOffsetLoadElimination(identifierNumber int, child1 dfg.NodeIndex) dfg.NodeIndex {
	start := p.startIndexForChildren(child1)
	for index := p.compileIndex; index > start; {
		index--

		n := p.at(index)

		switch n.Op {
		case dfg.GetByOffset:
			if n.Child1() == child1 &&
				p.g.StorageAccesses[n.StorageAccessIndex()].IdentifierNumber == identifierNumber {
				return index
			}

		case dfg.PutByOffset:
			if p.g.StorageAccesses[n.StorageAccessIndex()].IdentifierNumber == identifierNumber {
				if n.Child2() == child1 {
					return n.Child3()
				}

				return dfg.NoNode
			}

		case dfg.PutStructure:
			// A structure change cannot alter the value in a known slot.

		case dfg.PutByVal, dfg.PutByValAlias:
			if p.byValIsPure(n) {
				break
			}

			return dfg.NoNode

		default:
			if p.clobbersWorld(index) {
				return dfg.NoNode
			}
		}
	}

	return dfg.NoNode
}

func (p *Propagator) getPropertyStorageLoadElimination(child1 dfg.NodeIndex) dfg.NodeIndex {
	start := p.startIndexForChildren(child1)
	for index := p.compileIndex; index > start; {
		index--

		n := p.at(index)

		switch n.Op {
		case dfg.GetPropertyStorage:
			if n.Child1() == child1 {
				return index
			}

		case dfg.PutByOffset, dfg.PutStructure:
			// Neither moves the out-of-line storage pointer.

		case dfg.PutByVal, dfg.PutByValAlias:
			if p.byValIsPure(n) {
				break
			}

			return dfg.NoNode

		default:
			if p.clobbersWorld(index) {
				return dfg.NoNode
			}
		}
	}

	return dfg.NoNode
}

func (p *Propagator) hasIntegerIndexPrediction(n *dfg.Node) bool {
	base := p.predictionOf(n.Child2())

	return !(base&prediction.Int32 == 0 && base != prediction.None)
}

func (p *Propagator) getIndexedPropertyStorageLoadElimination(child1 dfg.NodeIndex, hasIntegerIndexPrediction bool) dfg.NodeIndex {
	start := p.startIndexForChildren(child1)
	for index := p.compileIndex; index > start; {
		index--

		n := p.at(index)

		switch n.Op {
		case dfg.GetIndexedPropertyStorage:
			// Comparing the derived booleans, not the index predictions
			// themselves, matches what the back end will speculate on.
			if n.Child1() == child1 && p.hasIntegerIndexPrediction(n) == hasIntegerIndexPrediction {
				return index
			}

		case dfg.PutByOffset, dfg.PutStructure:
			// Neither moves the indexed storage pointer.

		case dfg.PutByValAlias:
			// An aliased put reuses storage that is already there.

		case dfg.PutByVal:
			if prediction.IsFixedIndexedStorage(p.predictionOf(n.Child1())) && p.byValIsPure(n) {
				break
			}

			return dfg.NoNode

		default:
			if p.clobbersWorld(index) {
				return dfg.NoNode
			}
		}
	}

	return dfg.NoNode
}

func (p *Propagator) getScopeChainLoadElimination(depth int) dfg.NodeIndex {
	start := p.startIndexForChildren()
	for index := p.endIndexForPureCSE(); index > start; {
		index--

		n := p.at(index)

		if n.Op == dfg.GetScopeChain && n.ScopeChainDepth() == depth {
			return index
		}
	}

	return dfg.NoNode
}

// performSubstitution redirects a child through the replacement table.
// Chains are one level deep: a replacement never has a replacement.
func (p *Propagator) performSubstitution(n *dfg.Node, c int, addRef bool) {
	child := n.Child(c)
	if child == dfg.NoNode {
		return
	}

	replacement := p.replacements[child]
	if replacement == dfg.NoNode {
		return
	}

	assertf(p.replacements[replacement] == dfg.NoNode,
		"replacement @%v of @%v has a replacement itself", replacement, child)

	n.SetChild(c, replacement)

	if addRef {
		p.g.Ref(replacement)
	}
}

func (p *Propagator) performVarArgSubstitution(n *dfg.Node, c int32, addRef bool) {
	child := p.g.VarArgChild(n, c)
	if child == dfg.NoNode {
		return
	}

	replacement := p.replacements[child]
	if replacement == dfg.NoNode {
		return
	}

	assertf(p.replacements[replacement] == dfg.NoNode,
		"replacement @%v of @%v has a replacement itself", replacement, child)

	p.g.VarArgChildren[n.FirstChild()+c] = replacement

	if addRef {
		p.g.Ref(replacement)
	}
}

// setReplacement retires the current node in favor of replacement,
// provided speculation stays intact: predictions must agree exactly.
func (p *Propagator) setReplacement(replacement dfg.NodeIndex) {
	if replacement == dfg.NoNode {
		return
	}

	if p.cur().Prediction != p.at(replacement).Prediction {
		return
	}

	n := p.cur()
	n.Op = dfg.Phantom
	n.RefCount = 1

	p.replacements[p.compileIndex] = replacement
}

// eliminate retires a pure check whose condition an earlier node already
// proved.
func (p *Propagator) eliminate() {
	n := p.cur()

	assertf(n.RefCount == 1, "eliminate @%v with refcount %v", p.compileIndex, n.RefCount)
	assertf(n.MustGenerate(), "eliminate non-check @%v %v", p.compileIndex, n.Op)

	n.Op = dfg.Phantom
}

func (p *Propagator) performNodeCSE(n *dfg.Node) {
	shouldGenerate := n.ShouldGenerate()

	if n.HasVarArgs() {
		for c := int32(0); c < n.NumChildren(); c++ {
			p.performVarArgSubstitution(n, c, shouldGenerate)
		}
	} else {
		p.performSubstitution(n, 0, shouldGenerate)
		p.performSubstitution(n, 1, shouldGenerate)
		p.performSubstitution(n, 2, shouldGenerate)
	}

	if !shouldGenerate {
		return
	}

	switch n.Op {
	// Pure nodes: no side effects, keyed on opcode, flags, children.
	case dfg.BitAnd, dfg.BitOr, dfg.BitXor, dfg.BitRShift, dfg.BitLShift, dfg.BitURShift,
		dfg.ArithAdd, dfg.ArithSub, dfg.ArithMul, dfg.ArithMod, dfg.ArithDiv,
		dfg.ArithAbs, dfg.ArithMin, dfg.ArithMax, dfg.ArithSqrt,
		dfg.GetByteArrayLength,
		dfg.GetInt8ArrayLength, dfg.GetInt16ArrayLength, dfg.GetInt32ArrayLength,
		dfg.GetUint8ArrayLength, dfg.GetUint8ClampedArrayLength,
		dfg.GetUint16ArrayLength, dfg.GetUint32ArrayLength,
		dfg.GetFloat32ArrayLength, dfg.GetFloat64ArrayLength,
		dfg.GetCallee, dfg.GetStringLength,
		dfg.StringCharAt, dfg.StringCharCodeAt:
		p.setReplacement(p.pureCSE(n))

	case dfg.GetArrayLength:
		p.setReplacement(p.impureCSE(n))

	case dfg.GetScopeChain:
		p.setReplacement(p.getScopeChainLoadElimination(n.ScopeChainDepth()))

	// Conditionally pure: fine to match so long as the operands are
	// predicted benign.
	case dfg.ValueAdd, dfg.CompareLess, dfg.CompareLessEq, dfg.CompareGreater, dfg.CompareGreaterEq, dfg.CompareEq:
		if p.isPredictedNumerical(n) {
			if replacement := p.pureCSE(n); replacement != dfg.NoNode && p.isPredictedNumerical(p.at(replacement)) {
				p.setReplacement(replacement)
			}
		}

	case dfg.LogicalNot:
		if p.logicalNotIsPure(n) {
			if replacement := p.pureCSE(n); replacement != dfg.NoNode && p.logicalNotIsPure(p.at(replacement)) {
				p.setReplacement(replacement)
			}
		}

	// Heap accesses, eliminable under the clobbers-world discipline.
	case dfg.GetGlobalVar:
		p.setReplacement(p.globalVarLoadElimination(n.VarNumber(), p.cb.GlobalObjectFor(n.CodeOrigin)))

	case dfg.GetByVal:
		if p.byValIsPure(n) {
			p.setReplacement(p.getByValLoadElimination(n.Child1(), n.Child2()))
		}

	case dfg.PutByVal:
		if p.byValIsPure(n) && p.getByValLoadElimination(n.Child1(), n.Child2()) != dfg.NoNode {
			// The location is known to exist, so the put cannot need a
			// storage reallocation barrier.
			n.Op = dfg.PutByValAlias
		}

	case dfg.CheckStructure:
		if p.checkStructureLoadElimination(p.g.StructureSets[n.StructureSetIndex()], n.Child1()) {
			p.eliminate()
		}

	case dfg.CheckFunction:
		if p.checkFunctionElimination(n.FunctionIndex(), n.Child1()) {
			p.eliminate()
		}

	case dfg.GetIndexedPropertyStorage:
		p.setReplacement(p.getIndexedPropertyStorageLoadElimination(n.Child1(), p.hasIntegerIndexPrediction(n)))

	case dfg.GetPropertyStorage:
		p.setReplacement(p.getPropertyStorageLoadElimination(n.Child1()))

	case dfg.GetByOffset:
		p.setReplacement(p.getByOffsetLoadElimination(p.g.StorageAccesses[n.StorageAccessIndex()].IdentifierNumber, n.Child1()))
	}

	p.lastSeen[n.Op] = p.compileIndex
}

func (p *Propagator) performBlockCSE(block *dfg.BasicBlock) {
	p.start = block.Begin

	for p.compileIndex = block.Begin; p.compileIndex < block.End; p.compileIndex++ {
		p.performNodeCSE(p.cur())
	}
}

// localCSE eliminates common subexpressions within each block. Blocks are
// independent; values never flow between them except through locals.
func (p *Propagator) localCSE(ctx context.Context) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dfg: local cse")
	defer tr.Finish()

	replaced := 0

	for _, block := range p.g.Blocks {
		p.performBlockCSE(block)
	}

	for _, r := range p.replacements {
		if r != dfg.NoNode {
			replaced++
		}
	}

	tr.Printw("done", "replacements", replaced)
}
