package callgraph

import (
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"github.com/715d/ortacg/internal/analysis"
	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/rta"
)

// Edge is a call from Caller to Callee, both given as method signatures
// such as "a.Square.area()I".
type Edge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// Graph is the call graph of one entry class. Methods are addressed by
// signature. Edges touching the fake caller are left out of every query
// except Reachable, which starts from it.
type Graph struct {
	// Info summarizes the graph.
	Info *analysis.EntryInfo

	g     *rta.CallGraph
	names *analysis.NameCache
	index map[string]*model.Method
}

func newGraph(k *model.Klass, g *rta.CallGraph, names *analysis.NameCache) *Graph {
	return &Graph{
		Info:  analysis.NewEntryInfo(k, g, names),
		g:     g,
		names: names,
	}
}

// Entry returns the dotted name of the entry class.
func (g *Graph) Entry() string { return g.Info.Entry }

func (g *Graph) lookup(sig string) *model.Method {
	if g.index == nil {
		g.index = make(map[string]*model.Method)
		for _, m := range g.g.Nodes() {
			g.index[m.Signature()] = m
		}
	}
	return g.index[sig]
}

// Nodes returns the signatures of the reachable methods.
func (g *Graph) Nodes() []string {
	var out []string
	for _, m := range g.g.Nodes() {
		if m != g.g.Root() {
			out = append(out, m.Signature())
		}
	}
	return out
}

// Edges returns the graph's call edges in discovery order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, e := range g.g.Edges() {
		if g.g.IsToolEdge(e) {
			continue
		}
		out = append(out, Edge{Caller: e.Caller.Signature(), Callee: e.Callee.Signature()})
	}
	return out
}

// EdgeSet returns the edges rendered as "caller -> callee".
func (g *Graph) EdgeSet() map[string]struct{} { return g.g.EdgeSet() }

// Successors returns the methods sig calls.
func (g *Graph) Successors(sig string) []string {
	return g.neighbours(sig, g.g.Successors)
}

// Predecessors returns the methods calling sig.
func (g *Graph) Predecessors(sig string) []string {
	return g.neighbours(sig, g.g.Predecessors)
}

func (g *Graph) neighbours(sig string, next func(*model.Method) []*model.Method) []string {
	m := g.lookup(sig)
	if m == nil {
		return nil
	}
	var out []string
	for _, n := range next(m) {
		if n != g.g.Root() {
			out = append(out, n.Signature())
		}
	}
	return out
}

// Reachable returns every method reachable from the given methods and the
// fake caller, breadth first. Unknown signatures are ignored.
func (g *Graph) Reachable(sigs ...string) []string {
	var from []*model.Method
	for _, sig := range sigs {
		if m := g.lookup(sig); m != nil {
			from = append(from, m)
		}
	}
	var out []string
	for _, m := range g.g.Reachable(from...) {
		if m != g.g.Root() {
			out = append(out, m.Signature())
		}
	}
	return out
}

// Lattice converts the graph to a lattice graph whose nodes are display
// names of the methods.
func (g *Graph) Lattice() *lattice.Graph {
	lg := &lattice.Graph{}
	for _, m := range g.g.Nodes() {
		if m != g.g.Root() {
			lg.Nodes = append(lg.Nodes, g.names.ComputeMethodName(m))
		}
	}
	for _, e := range g.g.Edges() {
		if g.g.IsToolEdge(e) {
			continue
		}
		lg.Edges = append(lg.Edges, lattice.Edge{
			Caller: g.names.ComputeMethodName(e.Caller),
			Callee: g.names.ComputeMethodName(e.Callee),
		})
	}
	lg.Dedup()
	return lg
}

// DOT renders the graph in Graphviz DOT format.
func (g *Graph) DOT() string {
	return render.DOT(g.Lattice(), g.Info.Entry)
}
