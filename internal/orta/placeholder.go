package orta

import (
	"golang.org/x/tools/container/intsets"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/rta"
)

// initial is an entry class and the methods that seed its call graph.
type initial struct {
	id      int
	klass   *model.Klass
	methods []*model.Method
}

// accept seeds g with the entry's methods.
func (in *initial) accept(g *rta.CallGraph) {
	for _, m := range in.methods {
		g.AddEntry(m)
	}
}

// placeholder is the payload of an ordering key: the impact bits shared by
// its entries and, for keys standing for entries, the entries themselves.
type placeholder struct {
	bits     *ImpactBitSet
	initials []*initial // nil for internal keys
}

func newPlaceholder(bits *ImpactBitSet, in *initial) *placeholder {
	ph := &placeholder{bits: bits}
	if in != nil {
		ph.initials = []*initial{in}
	}
	return ph
}

func (ph *placeholder) score() int { return ph.bits.Cardinality() }

func (ph *placeholder) hasInitial() bool { return ph.initials != nil }

func (ph *placeholder) withoutInitial() *placeholder {
	if ph.initials == nil {
		return ph
	}
	return &placeholder{bits: ph.bits}
}

func (ph *placeholder) addInitials(o *placeholder) {
	for _, in := range o.initials {
		if !ph.hasEntry(in) {
			ph.initials = append(ph.initials, in)
		}
	}
}

func (ph *placeholder) hasEntry(in *initial) bool {
	for _, x := range ph.initials {
		if x == in {
			return true
		}
	}
	return false
}

// accept applies the placeholder's units to g. Dynamic units are only
// applied when some object unit is.
func (ph *placeholder) accept(g *rta.CallGraph, im *ImpactMap) int {
	return ph.acceptDiff(g, nil, im)
}

// acceptDiff applies the units of ph that parent does not hold. It returns
// the number of units applied.
func (ph *placeholder) acceptDiff(g *rta.CallGraph, parent *placeholder, im *ImpactMap) int {
	var prev *ImpactBitSet
	if parent != nil {
		prev = parent.bits
	}
	n := applyBits(g, ph.bits.Obj(), field(prev, (*ImpactBitSet).Obj), im.ObjUnits())
	if n > 0 {
		n += applyBits(g, ph.bits.Dyn(), field(prev, (*ImpactBitSet).Dyn), im.DynUnits())
	}
	return n + applyBits(g, ph.bits.Stat(), field(prev, (*ImpactBitSet).Stat), im.StatUnits())
}

func field(b *ImpactBitSet, get func(*ImpactBitSet) *intsets.Sparse) *intsets.Sparse {
	if b == nil {
		return nil
	}
	return get(b)
}

func applyBits(g *rta.CallGraph, bits, prev *intsets.Sparse, units []*model.Unit) int {
	var todo intsets.Sparse
	todo.Copy(bits)
	if prev != nil {
		todo.DifferenceWith(prev)
	}
	var space [64]int
	idx := todo.AppendTo(space[:0])
	for _, i := range idx {
		g.AddUnit(units[i])
	}
	return len(idx)
}
