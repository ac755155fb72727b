package orta

import (
	"fmt"

	"golang.org/x/tools/container/intsets"
)

// ImpactBitSet holds the object-creation, static-invoke and dynamic-invoke
// units of an impact set as bit vectors indexed through an ImpactMap.
// An ImpactBitSet must not be copied by value.
type ImpactBitSet struct {
	obj  intsets.Sparse
	stat intsets.Sparse
	dyn  intsets.Sparse

	card int // cached Cardinality, -1 when stale
}

// NewImpactBitSet returns an empty bit set.
func NewImpactBitSet() *ImpactBitSet {
	return &ImpactBitSet{card: -1}
}

func (b *ImpactBitSet) SetObj(i int) {
	b.obj.Insert(i)
	b.card = -1
}

func (b *ImpactBitSet) SetStatic(i int) {
	b.stat.Insert(i)
	b.card = -1
}

func (b *ImpactBitSet) SetDynamic(i int) {
	b.dyn.Insert(i)
	b.card = -1
}

func (b *ImpactBitSet) Obj() *intsets.Sparse  { return &b.obj }
func (b *ImpactBitSet) Stat() *intsets.Sparse { return &b.stat }
func (b *ImpactBitSet) Dyn() *intsets.Sparse  { return &b.dyn }

// Cardinality scores the bit set: the static bits, plus the object and
// dynamic bits when at least one object bit is set. Dynamic dispatch has
// nothing to resolve against without instantiated types.
func (b *ImpactBitSet) Cardinality() int {
	if b.card < 0 {
		b.card = b.obj.Len()
		if b.card != 0 {
			b.card += b.dyn.Len()
		}
		b.card += b.stat.Len()
	}
	return b.card
}

// And returns the intersection of b and o.
func (b *ImpactBitSet) And(o *ImpactBitSet) *ImpactBitSet {
	n := NewImpactBitSet()
	n.obj.Intersection(&b.obj, &o.obj)
	n.stat.Intersection(&b.stat, &o.stat)
	n.dyn.Intersection(&b.dyn, &o.dyn)
	return n
}

// Equals reports whether b and o hold the same bits.
func (b *ImpactBitSet) Equals(o *ImpactBitSet) bool {
	return b.obj.Equals(&o.obj) && b.stat.Equals(&o.stat) && b.dyn.Equals(&o.dyn)
}

func (b *ImpactBitSet) String() string {
	return fmt.Sprintf("obj%s stat%s dyn%s", b.obj.String(), b.stat.String(), b.dyn.String())
}
