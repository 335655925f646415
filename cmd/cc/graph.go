package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/thismarvin/cc"
)

type edge struct {
	to   *node
	kind cc.PrerequisiteKind
}

type node struct {
	name   string
	source bool

	dependencies []edge
	dependents   []*node

	status string
	reason string
}

func (n *node) depends(visited map[string]struct{}, acc *[]string) bool {
	if _, ok := visited[n.name]; ok {
		return false
	}
	visited[n.name] = struct{}{}

	for _, e := range n.dependencies {
		if e.to.depends(visited, acc) {
			*acc = append(*acc, e.to.name)
		}
	}
	return true
}

func (n *node) whatDepends(visited map[string]struct{}, acc *[]string) bool {
	if _, ok := visited[n.name]; ok {
		return false
	}
	visited[n.name] = struct{}{}

	for _, d := range n.dependents {
		if d.whatDepends(visited, acc) {
			*acc = append(*acc, d.name)
		}
	}
	return true
}

// A graph is the project's target graph. Nodes are kept in the order they were added so that
// output is stable.
type graph struct {
	nodes map[string]*node
	order []*node
}

func (g *graph) depends(t *cc.Target) []string {
	n, ok := g.nodes[t.Name()]
	if !ok {
		return nil
	}

	var names []string
	n.depends(map[string]struct{}{}, &names)
	return names
}

func (g *graph) whatDepends(t *cc.Target) []string {
	n, ok := g.nodes[t.Name()]
	if !ok {
		return nil
	}

	var names []string
	n.whatDepends(map[string]struct{}{}, &names)
	return names
}

func (g *graph) node(name string) *node {
	return g.nodes[name]
}

func (g *graph) getOrAddNode(name string) *node {
	if n, ok := g.nodes[name]; ok {
		return n
	}
	n := &node{name: name}
	g.nodes[name] = n
	g.order = append(g.order, n)
	return n
}

func buildGraph(proj *cc.Project) graph {
	g := graph{nodes: map[string]*node{}}

	for _, t := range proj.Targets() {
		n := g.getOrAddNode(t.Name())
		for _, p := range t.Prerequisites() {
			dep := g.getOrAddNode(p.Name)

			n.dependencies = append(n.dependencies, edge{to: dep, kind: p.Kind})
			dep.dependents = append(dep.dependents, n)
		}
	}
	for _, name := range proj.Sources() {
		g.getOrAddNode(name).source = true
	}

	return g
}

var graphCmd = &cobra.Command{
	Use:          "graph [flags...]",
	Short:        "Write the project's dependency graph to stdout in DOT format",
	Long:         "Write the project's dependency graph to stdout in DOT format. Order-only edges are dashed.",
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := work.loadProject(args, true); err != nil {
			return err
		}
		if err := work.renderer.Close(); err != nil {
			return err
		}

		return work.graph.dot(os.Stdout, func(_ *node) bool { return true })
	},
}
