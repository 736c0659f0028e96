package dfg

import (
	"github.com/nikandfor/hacked/hfmt"
)

// Dump renders the graph in a compact per-block listing for debugging.
func (g *Graph) Dump(cb *CodeBlock) []byte {
	var b []byte

	for bi, bb := range g.Blocks {
		b = hfmt.Appendf(b, "block #%d [%d, %d) succ %v\n", bi, bb.Begin, bb.End, bb.Successors)

		for i := bb.Begin; i < bb.End; i++ {
			b = g.appendNode(b, cb, i)
		}
	}

	return b
}

func (g *Graph) appendNode(b []byte, cb *CodeBlock, i NodeIndex) []byte {
	n := &g.Nodes[i]

	b = hfmt.Appendf(b, "  @%-3d %v(", i, n.Op)

	if n.HasVarArgs() {
		for c := int32(0); c < n.numChildren; c++ {
			if c != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "@%d", g.VarArgChild(n, c))
		}
	} else {
		for c := 0; c < 3 && n.children[c] != NoNode; c++ {
			if c != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "@%d", n.children[c])
		}
	}

	b = append(b, ')')

	if n.Op == JSConstant && cb != nil {
		v := cb.Constants[n.ConstantIndex()]

		switch v.Kind {
		case KindInt32, KindDouble:
			b = hfmt.Appendf(b, " %v", v.Num)
		case KindBoolean:
			b = hfmt.Appendf(b, " %v", v.Bool)
		case KindString:
			b = hfmt.Appendf(b, " %q", v.Str)
		}
	}

	b = hfmt.Appendf(b, " r:%d", n.RefCount)

	if n.Prediction != 0 {
		b = hfmt.Appendf(b, " pred:%v", n.Prediction)
	}

	if f := n.Flags & UsedAsMask; f != 0 {
		b = hfmt.Appendf(b, " flags:%v", f)
	}

	if n.VirtualRegister != InvalidVirtualRegister {
		b = hfmt.Appendf(b, " vr%d", n.VirtualRegister)
	}

	b = append(b, '\n')

	return b
}
