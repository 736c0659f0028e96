// Package propagate is the speculative optimization pipeline run between
// bytecode translation and code generation. It annotates the graph with
// type predictions, arithmetic usage flags and virtual registers, rewrites
// generic operations into speculated variants, and eliminates redundant
// nodes within blocks.
package propagate

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/abstract"
)

// State is the contract the control flow analysis drives. The
// implementation lives in the abstract package.
type State interface {
	BeginBasicBlock(b *dfg.BasicBlock)
	Execute(i dfg.NodeIndex) bool
	EndBasicBlock(mode dfg.MergeMode) bool
}

var _ State = (*abstract.State)(nil)

type Propagator struct {
	g  *dfg.Graph
	cb *dfg.CodeBlock

	start        dfg.NodeIndex
	compileIndex dfg.NodeIndex

	changed bool

	replacements []dfg.NodeIndex
	lastSeen     [dfg.LastOp]dfg.NodeIndex
}

// Propagate runs the whole pipeline over the graph to its fixpoint.
func Propagate(ctx context.Context, g *dfg.Graph, cb *dfg.CodeBlock) {
	New(g, cb).Fixpoint(ctx)
}

func New(g *dfg.Graph, cb *dfg.CodeBlock) *Propagator {
	p := &Propagator{
		g:  g,
		cb: cb,
	}

	// Replacements implement local common subexpression elimination.
	p.replacements = make([]dfg.NodeIndex, g.Size())
	for i := range p.replacements {
		p.replacements[i] = dfg.NoNode
	}

	for i := range p.lastSeen {
		p.lastSeen[i] = dfg.NoNode
	}

	return p
}

func (p *Propagator) Fixpoint(ctx context.Context) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "dfg: propagate",
		"nodes", p.g.Size(), "blocks", len(p.g.Blocks))
	defer tr.Finish()

	if tr.If("dump_graph") {
		tr.Printw("graph before propagation", "graph", string(p.g.Dump(p.cb)))
	}

	p.propagateArithFlags(ctx)
	p.propagatePredictions(ctx)
	p.fixup(ctx)

	if tr.If("dump_graph") {
		tr.Printw("graph after fixup", "graph", string(p.g.Dump(p.cb)))
	}

	p.localCSE(ctx)

	if tr.If("dump_graph") {
		tr.Printw("graph after cse", "graph", string(p.g.Dump(p.cb)))
	}

	p.allocateVirtualRegisters(ctx)
	p.globalCFA(ctx)

	if tr.If("dump_graph") {
		tr.Printw("graph after propagation", "graph", string(p.g.Dump(p.cb)))
	}
}

// Replacement is the node that supplants i after CSE, or NoNode. The back
// end consults this table when resolving child references.
func (p *Propagator) Replacement(i dfg.NodeIndex) dfg.NodeIndex {
	return p.replacements[i]
}

func (p *Propagator) at(i dfg.NodeIndex) *dfg.Node { return p.g.At(i) }

func (p *Propagator) cur() *dfg.Node { return p.g.At(p.compileIndex) }
