package rta

import "github.com/715d/ortacg/internal/model"

// resolver is a pending dynamic call site and the callers it was seen from.
// A nil caller stands for a unit applied without a calling method.
type resolver struct {
	unit    *model.Unit
	callers map[*model.Method]struct{}
	order   []*model.Method
}

// pointsTo records instantiated types and pending dynamic call sites. Like
// call layers, a points-to layer only stores facts its parents lack.
type pointsTo struct {
	parents []*pointsTo
	all     []*pointsTo

	types     map[*model.Klass]struct{}
	typeOrder []*model.Klass

	resolvers     map[*model.Unit]*resolver
	resolverOrder []*resolver
}

func newPointsTo(parent *pointsTo) *pointsTo {
	p := &pointsTo{
		types:     make(map[*model.Klass]struct{}),
		resolvers: make(map[*model.Unit]*resolver),
	}
	if parent != nil {
		p.parents = parent.parents[:len(parent.parents):len(parent.parents)]
		if !parent.isEmpty() {
			p.parents = append(p.parents, parent)
		}
	}
	p.all = append(p.parents[:len(p.parents):len(p.parents)], p)
	return p
}

func (p *pointsTo) isEmpty() bool {
	return len(p.types) == 0 && len(p.resolvers) == 0
}

// addType records k as instantiated. It reports false when some layer has
// already seen k.
func (p *pointsTo) addType(k *model.Klass) bool {
	for _, parent := range p.parents {
		if _, ok := parent.types[k]; ok {
			return false
		}
	}
	if _, ok := p.types[k]; ok {
		return false
	}
	p.types[k] = struct{}{}
	p.typeOrder = append(p.typeOrder, k)
	return true
}

func (r *resolver) has(caller *model.Method) bool {
	_, ok := r.callers[caller]
	return ok
}

// addResolver records the dynamic unit u seen from caller. It reports false
// when some layer already holds the pair.
func (p *pointsTo) addResolver(u *model.Unit, caller *model.Method) bool {
	for _, parent := range p.parents {
		if r, ok := parent.resolvers[u]; ok && r.has(caller) {
			return false
		}
	}
	r, ok := p.resolvers[u]
	if !ok {
		r = &resolver{unit: u, callers: make(map[*model.Method]struct{})}
		p.resolvers[u] = r
		p.resolverOrder = append(p.resolverOrder, r)
	}
	if r.has(caller) {
		return false
	}
	r.callers[caller] = struct{}{}
	r.order = append(r.order, caller)
	return true
}

// instantiated returns the number of instantiated types across all layers.
func (p *pointsTo) instantiated() int {
	n := 0
	for _, l := range p.all {
		n += len(l.typeOrder)
	}
	return n
}
