package orta

import "github.com/715d/ortacg/internal/model"

// unitIndex assigns dense bit indexes to units of one kind.
type unitIndex struct {
	index map[*model.Unit]int
	units []*model.Unit
}

func newUnitIndex() unitIndex {
	return unitIndex{index: make(map[*model.Unit]int)}
}

func (x *unitIndex) bit(u *model.Unit) int {
	if i, ok := x.index[u]; ok {
		return i
	}
	i := len(x.units)
	x.index[u] = i
	x.units = append(x.units, u)
	return i
}

// ImpactMap flattens the impact sets of entry classes into ImpactBitSets.
// Object units use one index space, ClassInit and StaticInvoke units share a
// second, DynamicInvoke units a third.
type ImpactMap struct {
	sess *model.Session

	obj  unitIndex
	stat unitIndex
	dyn  unitIndex

	visited map[*model.Method]struct{}
	bits    *ImpactBitSet
}

// NewImpactMap returns an empty map over the units of sess.
func NewImpactMap(sess *model.Session) *ImpactMap {
	return &ImpactMap{
		sess:    sess,
		obj:     newUnitIndex(),
		stat:    newUnitIndex(),
		dyn:     newUnitIndex(),
		visited: make(map[*model.Method]struct{}),
	}
}

// Set records in bits every unit reachable from methods without resolving
// dynamic dispatch: static and class-initializer calls are followed,
// instantiations of non-concrete types follow every invocable method, and
// dynamic call sites are recorded but not followed.
func (im *ImpactMap) Set(methods []*model.Method, bits *ImpactBitSet) {
	im.bits = bits
	clear(im.visited)
	for _, m := range methods {
		if im.visit(m) {
			im.applyBody(m)
		}
	}
	im.bits = nil
}

// Flatten returns the bit set of methods.
func (im *ImpactMap) Flatten(methods []*model.Method) *ImpactBitSet {
	bits := NewImpactBitSet()
	im.Set(methods, bits)
	return bits
}

func (im *ImpactMap) visit(m *model.Method) bool {
	if _, ok := im.visited[m]; ok {
		return false
	}
	im.visited[m] = struct{}{}
	return true
}

func (im *ImpactMap) applyBody(m *model.Method) {
	for _, u := range im.sess.Impacts(m) {
		im.apply(u)
	}
}

func (im *ImpactMap) apply(u *model.Unit) {
	switch u.Kind {
	case model.ObjectCreated:
		if u.Type.IsConcrete() {
			im.bits.SetObj(im.obj.bit(u))
			return
		}
		for _, m := range model.InvocableMethods(u.Type) {
			if im.visit(m) {
				im.applyBody(m)
			}
		}
	case model.StaticInvoke:
		im.invoke(u, u.Method)
	case model.ClassInit:
		im.invoke(u, u.Type.ClassInitializer())
	case model.DynamicInvoke:
		im.bits.SetDynamic(im.dyn.bit(u))
	}
}

func (im *ImpactMap) invoke(u *model.Unit, callee *model.Method) {
	if callee == nil || !im.visit(callee) {
		return
	}
	im.bits.SetStatic(im.stat.bit(u))
	im.applyBody(callee)
}

// ObjUnits returns the object units by bit index.
func (im *ImpactMap) ObjUnits() []*model.Unit { return im.obj.units }

// StatUnits returns the static and class-initializer units by bit index.
func (im *ImpactMap) StatUnits() []*model.Unit { return im.stat.units }

// DynUnits returns the dynamic units by bit index.
func (im *ImpactMap) DynUnits() []*model.Unit { return im.dyn.units }
