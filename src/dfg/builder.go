package dfg

import (
	"tlog.app/go/errors"
)

// Builder assembles a Graph the way the bytecode translator would: nodes
// appended in order, blocks sealed as half-open ranges, reference counts
// maintained as uses happen.
type Builder struct {
	g  *Graph
	cb *CodeBlock

	origin CodeOrigin

	blockOpen bool
}

func NewBuilder(cb *CodeBlock) *Builder {
	return &Builder{
		g:  &Graph{},
		cb: cb,
	}
}

func (b *Builder) Graph() *Graph { return b.g }

func (b *Builder) SetOrigin(o CodeOrigin) { b.origin = o }

// StartBlock seals the open block, if any, and opens a new one.
func (b *Builder) StartBlock() BlockIndex {
	b.sealBlock()

	bb := &BasicBlock{
		Begin: NodeIndex(len(b.g.Nodes)),
	}

	b.g.Blocks = append(b.g.Blocks, bb)
	b.blockOpen = true

	return BlockIndex(len(b.g.Blocks) - 1)
}

func (b *Builder) sealBlock() {
	if !b.blockOpen {
		return
	}

	bb := b.g.Blocks[len(b.g.Blocks)-1]
	bb.End = NodeIndex(len(b.g.Nodes))
	b.blockOpen = false
}

// Link records control flow edges out of block from.
func (b *Builder) Link(from BlockIndex, to ...BlockIndex) {
	b.g.Blocks[from].Successors = append(b.g.Blocks[from].Successors, to...)
}

// Node appends a node with up to three children. Children get a use ref;
// must-generate ops keep themselves alive with an extra self ref.
func (b *Builder) Node(op Op, aux int64, children ...NodeIndex) NodeIndex {
	i := NodeIndex(len(b.g.Nodes))

	n := newNode(op, b.origin, aux)

	for c, ch := range children {
		n.children[c] = ch

		if ch != NoNode {
			b.g.Ref(ch)
		}
	}

	b.g.Nodes = append(b.g.Nodes, n)

	if op.MustGenerate() {
		b.g.Ref(i)
	}

	return i
}

// VarArg appends a var-arg node, moving children into the shared child
// table.
func (b *Builder) VarArg(op Op, aux int64, children []NodeIndex) NodeIndex {
	i := NodeIndex(len(b.g.Nodes))

	n := newNode(op, b.origin, aux)
	n.firstChild = int32(len(b.g.VarArgChildren))
	n.numChildren = int32(len(children))

	for _, ch := range children {
		b.g.VarArgChildren = append(b.g.VarArgChildren, ch)
		b.g.Ref(ch)
	}

	b.g.Nodes = append(b.g.Nodes, n)

	if op.MustGenerate() {
		b.g.Ref(i)
	}

	return i
}

// Ref bumps a node's reference count for a use the node sequence doesn't
// express, e.g. a value flowing out of the fragment under test.
func (b *Builder) Ref(i NodeIndex) NodeIndex {
	b.g.Ref(i)
	return i
}

func (b *Builder) Constant(v Value) NodeIndex {
	return b.Node(JSConstant, int64(b.cb.AddConstant(v)))
}

// Var creates a fresh variable access group for operand.
func (b *Builder) Var(operand int) int {
	i := b.g.AddVar(int32(operand))

	if operand >= b.g.NumLocals {
		b.g.NumLocals = operand + 1
	}

	return i
}

func (b *Builder) AddStorageAccess(d StorageAccessData) int {
	b.g.StorageAccesses = append(b.g.StorageAccesses, d)
	return len(b.g.StorageAccesses) - 1
}

func (b *Builder) AddStructureSet(s StructureSet) int {
	b.g.StructureSets = append(b.g.StructureSets, s)
	return len(b.g.StructureSets) - 1
}

func (b *Builder) AddStructureTransition(t StructureTransition) int {
	b.g.StructureTransitions = append(b.g.StructureTransitions, t)
	return len(b.g.StructureTransitions) - 1
}

// Finish seals the last block, validates the graph shape, and arms the
// entry block for control flow analysis.
func (b *Builder) Finish() (*Graph, error) {
	b.sealBlock()

	err := b.validate()
	if err != nil {
		return nil, errors.Wrap(err, "validate graph")
	}

	if len(b.g.Blocks) != 0 {
		b.g.Blocks[0].CFAShouldRevisit = true
	}

	return b.g, nil
}

func (b *Builder) validate() error {
	for bi, bb := range b.g.Blocks {
		if bb.Begin > bb.End || int(bb.End) > len(b.g.Nodes) {
			return errors.New("block %d: bad range [%d, %d)", bi, bb.Begin, bb.End)
		}

		for i := bb.Begin; i < bb.End; i++ {
			n := &b.g.Nodes[i]

			if n.HasVarArgs() {
				for c := int32(0); c < n.numChildren; c++ {
					if ch := b.g.VarArgChild(n, c); ch >= i {
						return errors.New("node @%d: var arg child @%d does not precede it", i, ch)
					}
				}

				continue
			}

			for c := 0; c < 3; c++ {
				if ch := n.children[c]; ch != NoNode && ch >= i {
					return errors.New("node @%d: child @%d does not precede it", i, ch)
				}
			}
		}
	}

	return nil
}
