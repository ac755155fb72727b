package rta

import (
	"fmt"

	"github.com/715d/ortacg/internal/model"
)

// An Edge is a caller to callee pair of a call graph.
type Edge struct {
	Caller *model.Method
	Callee *model.Method
}

func (e Edge) String() string { return fmt.Sprintf("%s -> %s", e.Caller, e.Callee) }

// callLayer is the part of a call graph discovered by one CallGraph value.
// Layers are never modified once a child layer has been stacked on them.
type callLayer struct {
	nodes map[*model.Method]struct{}
	order []*model.Method

	edges     map[Edge]struct{}
	edgeOrder []Edge
	succ      map[*model.Method][]*model.Method
	pred      map[*model.Method][]*model.Method
}

func newCallLayer() *callLayer {
	return &callLayer{
		nodes: make(map[*model.Method]struct{}),
		edges: make(map[Edge]struct{}),
		succ:  make(map[*model.Method][]*model.Method),
		pred:  make(map[*model.Method][]*model.Method),
	}
}

func (l *callLayer) isEmpty() bool {
	return len(l.nodes) == 0 && len(l.edgeOrder) == 0
}

func (l *callLayer) hasNode(m *model.Method) bool {
	_, ok := l.nodes[m]
	return ok
}

func (l *callLayer) addNode(m *model.Method) bool {
	if l.hasNode(m) {
		return false
	}
	l.nodes[m] = struct{}{}
	l.order = append(l.order, m)
	return true
}

func (l *callLayer) hasEdge(e Edge) bool {
	_, ok := l.edges[e]
	return ok
}

func (l *callLayer) addEdge(e Edge) {
	if l.hasEdge(e) {
		return
	}
	l.edges[e] = struct{}{}
	l.edgeOrder = append(l.edgeOrder, e)
	l.succ[e.Caller] = append(l.succ[e.Caller], e.Callee)
	l.pred[e.Callee] = append(l.pred[e.Callee], e.Caller)
}

// CallGraph is a directed graph over methods reachable from a set of entry
// methods and the session's fake caller. A graph created with NewLayer only
// stores what its ancestors do not already contain; every query sees the
// whole chain.
//
// Building a graph mutates the session it was created from, so a CallGraph
// must not be used concurrently with any other user of that session.
type CallGraph struct {
	sess *model.Session
	root *model.Method

	parents []*callLayer
	own     *callLayer
	pts     *pointsTo

	engine *engine
}

// New returns an empty call graph rooted at the fake caller of sess.
func New(sess *model.Session) *CallGraph {
	return &CallGraph{
		sess: sess,
		root: sess.FakeCaller(),
		own:  newCallLayer(),
		pts:  newPointsTo(nil),
	}
}

// NewLayer returns an empty graph stacked on parent. The parent must not be
// extended afterwards.
func NewLayer(parent *CallGraph) *CallGraph {
	parents := parent.parents[:len(parent.parents):len(parent.parents)]
	if !parent.own.isEmpty() {
		parents = append(parents, parent.own)
	}
	return &CallGraph{
		sess:    parent.sess,
		root:    parent.root,
		parents: parents,
		own:     newCallLayer(),
		pts:     newPointsTo(parent.pts),
	}
}

// Session returns the session the graph was built from.
func (g *CallGraph) Session() *model.Session { return g.sess }

// Root returns the fake caller every implicit invocation originates from.
func (g *CallGraph) Root() *model.Method { return g.root }

// Depth returns the number of non-empty layers the graph reads from,
// including its own.
func (g *CallGraph) Depth() int { return len(g.parents) + 1 }

// IsUpdated reports whether the graph's own layer contains any node or edge.
// A layer may add only edges, between methods its ancestors already visited.
func (g *CallGraph) IsUpdated() bool { return !g.own.isEmpty() }

func (g *CallGraph) layers() []*callLayer {
	return append(g.parents[:len(g.parents):len(g.parents)], g.own)
}

// markVisited adds m to the own layer unless some layer already has it.
func (g *CallGraph) markVisited(m *model.Method) bool {
	for _, l := range g.parents {
		if l.hasNode(m) {
			return false
		}
	}
	return g.own.addNode(m)
}

func (g *CallGraph) addEdge(caller, callee *model.Method) {
	e := Edge{Caller: caller, Callee: callee}
	for _, l := range g.parents {
		if l.hasEdge(e) {
			return
		}
	}
	g.own.addEdge(e)
}

// HasNode reports whether m is reachable in the graph.
func (g *CallGraph) HasNode(m *model.Method) bool {
	for _, l := range g.layers() {
		if l.hasNode(m) {
			return true
		}
	}
	return false
}

// HasEdge reports whether the graph records a call from caller to callee.
func (g *CallGraph) HasEdge(caller, callee *model.Method) bool {
	e := Edge{Caller: caller, Callee: callee}
	for _, l := range g.layers() {
		if l.hasEdge(e) {
			return true
		}
	}
	return false
}

// Nodes returns every reachable method, ancestors' nodes first.
func (g *CallGraph) Nodes() []*model.Method {
	var out []*model.Method
	for _, l := range g.layers() {
		out = append(out, l.order...)
	}
	return out
}

// Edges returns every edge of the graph, ancestors' edges first.
func (g *CallGraph) Edges() []Edge {
	var out []Edge
	seen := make(map[Edge]struct{})
	for _, l := range g.layers() {
		for _, e := range l.edgeOrder {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// Successors returns the callees of m.
func (g *CallGraph) Successors(m *model.Method) []*model.Method {
	return g.neighbours(m, func(l *callLayer) []*model.Method { return l.succ[m] })
}

// Predecessors returns the callers of m.
func (g *CallGraph) Predecessors(m *model.Method) []*model.Method {
	return g.neighbours(m, func(l *callLayer) []*model.Method { return l.pred[m] })
}

func (g *CallGraph) neighbours(m *model.Method, get func(*callLayer) []*model.Method) []*model.Method {
	var out []*model.Method
	seen := make(map[*model.Method]struct{})
	for _, l := range g.layers() {
		for _, n := range get(l) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// Reachable returns the methods reachable from methods and the root, in
// breadth-first order.
func (g *CallGraph) Reachable(methods ...*model.Method) []*model.Method {
	visited := make(map[*model.Method]struct{}, len(methods)+1)
	var queue []*model.Method
	for _, m := range append(methods[:len(methods):len(methods)], g.root) {
		if _, ok := visited[m]; ok {
			continue
		}
		visited[m] = struct{}{}
		queue = append(queue, m)
	}
	for i := 0; i < len(queue); i++ {
		for _, n := range g.Successors(queue[i]) {
			if _, ok := visited[n]; !ok {
				visited[n] = struct{}{}
				queue = append(queue, n)
			}
		}
	}
	return queue
}

// IsToolEdge reports whether e touches the fake caller.
func (g *CallGraph) IsToolEdge(e Edge) bool {
	return e.Caller == g.root || e.Callee == g.root
}

// EdgeSet returns the graph's edges without tool edges, rendered as
// "caller -> callee" strings.
func (g *CallGraph) EdgeSet() map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range g.Edges() {
		if g.IsToolEdge(e) {
			continue
		}
		out[e.String()] = struct{}{}
	}
	return out
}
