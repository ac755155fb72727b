// Package rta provides Rapid Type Analysis (RTA) call graph construction
// over the impact units of a model.Session. The algorithm was first
// described in:
//
// David F. Bacon and Peter F. Sweeney. 1996.
// Fast static analysis of C++ virtual function calls. (OOPSLA '96)
// http://doi.acm.org/10.1145/236337.236371
//
// Each method that becomes reachable has its impact units applied once.
// Object creations grow the set of instantiated types; dynamic call sites
// are kept as pending resolvers. The cross-product of both is tabulated
// incrementally: a new type is resolved against every known call site of a
// supertype receiver, and a new call site against every known instantiated
// subtype. The process continues until a fixed point is reached.
//
// Graphs can be layered with NewLayer so that several analyses share the
// work of a common prefix without copying it.
package rta

import "github.com/715d/ortacg/internal/model"

// engine is the working state of one graph's fixed-point computation.
type engine struct {
	g *CallGraph

	caller   *model.Method // method whose units are being applied, nil for bare units
	worklist []*model.Method
	shadow   []*model.Method

	accepted map[*model.Klass]bool
}

func (g *CallGraph) getEngine() *engine {
	if g.engine == nil {
		const initialWorklistCap = 64
		g.engine = &engine{
			g:        g,
			worklist: make([]*model.Method, 0, initialWorklistCap),
			shadow:   make([]*model.Method, 0, initialWorklistCap),
			accepted: make(map[*model.Klass]bool),
		}
		g.engine.acceptEntry(g.root)
	}
	return g.engine
}

// AddEntry makes m reachable without recording a caller and runs the
// analysis to a fixed point.
func (g *CallGraph) AddEntry(m *model.Method) {
	g.getEngine().acceptEntry(m)
}

// AddUnit applies u as if executed by an unknown caller and runs the
// analysis to a fixed point.
func (g *CallGraph) AddUnit(u *model.Unit) {
	g.getEngine().acceptUnit(u)
}

// Build returns the call graph reachable from entries.
func Build(sess *model.Session, entries []*model.Method) *CallGraph {
	g := New(sess)
	for _, m := range entries {
		g.AddEntry(m)
	}
	return g
}

// BuildEntry returns the call graph of the entry class k: every method an
// instance of k can invoke is an entry.
func BuildEntry(sess *model.Session, k *model.Klass) *CallGraph {
	return Build(sess, model.InvocableMethods(k))
}

func (e *engine) acceptEntry(m *model.Method) {
	e.enqueue(m)
	e.drain()
}

func (e *engine) acceptUnit(u *model.Unit) {
	e.caller = nil
	e.apply(u)
	e.drain()
}

// drain visits methods until the worklist is empty.
// The worklist is double-buffered: the shadow slice is reused between rounds.
func (e *engine) drain() {
	sess := e.g.sess
	for len(e.worklist) > 0 {
		e.shadow, e.worklist = e.worklist, e.shadow[:0]
		for _, m := range e.shadow {
			e.caller = m
			for _, u := range sess.Impacts(m) {
				e.apply(u)
			}
		}
	}
	e.caller = nil
}

func (e *engine) enqueue(m *model.Method) {
	if e.g.markVisited(m) {
		e.worklist = append(e.worklist, m)
	}
}

func (e *engine) apply(u *model.Unit) {
	switch u.Kind {
	case model.ObjectCreated:
		e.instantiate(u.Type)
	case model.StaticInvoke:
		e.invoke(e.caller, u.Method)
	case model.ClassInit:
		if clinit := u.Type.ClassInitializer(); clinit != nil {
			e.invoke(nil, clinit)
		}
	case model.DynamicInvoke:
		e.dispatch(u)
	default:
		model.Invariantf("rta.apply", "unknown unit kind %s", u.Kind)
	}
}

// invoke makes callee reachable and records the edge from caller, or from
// the root when the caller is unknown.
func (e *engine) invoke(caller, callee *model.Method) {
	if callee == nil {
		return
	}
	e.enqueue(callee)
	if caller == nil {
		caller = e.g.root
	}
	e.g.addEdge(caller, callee)
}

func (e *engine) instantiate(k *model.Klass) {
	if !e.g.pts.addType(k) {
		return
	}
	if !k.IsConcrete() {
		// Nothing is known about instances of k; every method they could
		// run is reachable from an unknown caller.
		for _, m := range model.InvocableMethods(k) {
			e.invoke(nil, m)
		}
		return
	}
	clear(e.accepted)
	for _, l := range e.g.pts.all {
		for _, r := range l.resolverOrder {
			recv := r.unit.Type
			ok, seen := e.accepted[recv]
			if !seen {
				ok = k.Inherits(recv)
				e.accepted[recv] = ok
			}
			if !ok {
				continue
			}
			for _, caller := range r.order {
				e.invoke(caller, r.unit.ResolveCallee(k, caller))
			}
		}
	}
}

func (e *engine) dispatch(u *model.Unit) {
	caller := e.caller
	if !e.g.pts.addResolver(u, caller) {
		return
	}
	for _, l := range e.g.pts.all {
		for _, k := range l.typeOrder {
			if k.Inherits(u.Type) {
				e.invoke(caller, u.ResolveCallee(k, caller))
			}
		}
	}
}
