package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/zihong/JavaScriptCore/src/dfg"
	"github.com/zihong/JavaScriptCore/src/dfg/propagate"
)

func main() {
	demoCmd := &cli.Command{
		Name:        "demo",
		Description: "build a sample graph, run the optimizer, dump the result",
		Action:      demoAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "jscjit",
		Description: "jscjit pokes at the dfg optimization pipeline",
		Commands: []*cli.Command{
			demoCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func demoAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	g, cb, err := buildDemoGraph()
	if err != nil {
		return errors.Wrap(err, "build demo graph")
	}

	fmt.Printf("before:\n%s", g.Dump(cb))

	propagate.Propagate(ctx, g, cb)

	fmt.Printf("after:\n%s", g.Dump(cb))

	return nil
}

// buildDemoGraph assembles the kind of block the bytecode translator
// would produce for
//
//	x = a + a; y = a + a; g = G; G = y; z = G; return z + arr.length
//
// which exercises flag propagation, prediction inference, length fixup,
// pure CSE and global var load elimination in one run.
func buildDemoGraph() (*dfg.Graph, *dfg.CodeBlock, error) {
	cb := &dfg.CodeBlock{}
	b := dfg.NewBuilder(cb)

	va := b.Var(0)
	vx := b.Var(1)
	varr := b.Var(2)

	b.Graph().VarFind(va).Predict(dfg.PredictionFromValue(dfg.Int32Value(0)))
	b.Graph().VarFind(varr).Predict(dfg.PredictionFromValue(dfg.Value{Kind: dfg.KindArray}))

	b.StartBlock()

	a := b.Node(dfg.GetLocal, int64(va))

	add1 := b.Node(dfg.ArithAdd, 0, a, a)
	b.Node(dfg.SetLocal, int64(vx), add1)

	add2 := b.Node(dfg.ArithAdd, 0, a, a)

	b.Ref(b.Node(dfg.GetGlobalVar, 7))
	b.Node(dfg.PutGlobalVar, 7, add2)
	g2 := b.Node(dfg.GetGlobalVar, 7)

	arr := b.Node(dfg.GetLocal, int64(varr))
	length := b.Node(dfg.GetById, int64(cb.AddIdentifier("length")), arr)

	ret := b.Node(dfg.ArithAdd, 0, g2, length)
	b.Node(dfg.Return, 0, ret)

	g, err := b.Finish()
	if err != nil {
		return nil, nil, errors.Wrap(err, "finish")
	}

	return g, cb, nil
}
