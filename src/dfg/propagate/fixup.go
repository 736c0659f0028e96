package propagate

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

// fixupNode specializes a generic node now that predictions are known.
// Later passes recognize the opcodes introduced here; nothing before this
// pass may emit them.
func (p *Propagator) fixupNode(n *dfg.Node) {
	if !n.ShouldGenerate() {
		return
	}

	switch n.Op {
	case dfg.GetById:
		if !prediction.IsInt32(n.Prediction) {
			break
		}

		if p.cb.Identifier(n.IdentifierNumber()) != "length" {
			break
		}

		base := p.at(n.Child1())

		var op dfg.Op

		switch {
		case prediction.IsArray(base.Prediction):
			op = dfg.GetArrayLength
		case prediction.IsString(base.Prediction):
			op = dfg.GetStringLength
		case base.ShouldSpeculateByteArray():
			op = dfg.GetByteArrayLength
		case base.ShouldSpeculateInt8Array():
			op = dfg.GetInt8ArrayLength
		case base.ShouldSpeculateInt16Array():
			op = dfg.GetInt16ArrayLength
		case base.ShouldSpeculateInt32Array():
			op = dfg.GetInt32ArrayLength
		case base.ShouldSpeculateUint8Array():
			op = dfg.GetUint8ArrayLength
		case base.ShouldSpeculateUint8ClampedArray():
			op = dfg.GetUint8ClampedArrayLength
		case base.ShouldSpeculateUint16Array():
			op = dfg.GetUint16ArrayLength
		case base.ShouldSpeculateUint32Array():
			op = dfg.GetUint32ArrayLength
		case base.ShouldSpeculateFloat32Array():
			op = dfg.GetFloat32ArrayLength
		case base.ShouldSpeculateFloat64Array():
			op = dfg.GetFloat64ArrayLength
		default:
			return
		}

		n.Op = op

		// The length read is pure; drop the must-generate reference the
		// generic GetById carried.
		p.g.Deref(p.compileIndex)

	case dfg.GetIndexedPropertyStorage:
		base := p.predictionOf(n.Child2())

		if base&prediction.Int32 == 0 && base != prediction.None {
			n.Op = dfg.Nop

			p.g.ClearAndDerefChild1(n)
			p.g.ClearAndDerefChild2(n)
			p.g.ClearAndDerefChild3(n)

			n.RefCount = 0
		}

	case dfg.GetByVal, dfg.StringCharAt, dfg.StringCharCodeAt:
		if n.Child3() != dfg.NoNode && p.at(n.Child3()).Op == dfg.Nop {
			n.SetChild(2, dfg.NoNode)
		}
	}
}

func (p *Propagator) fixup(ctx context.Context) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dfg: fixup")
	defer tr.Finish()

	for p.compileIndex = 0; int(p.compileIndex) < p.g.Size(); p.compileIndex++ {
		p.fixupNode(p.cur())
	}
}
