package orta

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/tools/container/intsets"

	"github.com/715d/ortacg/internal/model"
)

const noKey = -1

// orderingKey is a node of the merge forest: a set of entries and the impact
// bits they share.
type orderingKey struct {
	entries intsets.Sparse
	size    int

	parent   int
	ph       *placeholder
	children *childSet
}

// childSet is shared by a key and every key delegating to it.
type childSet struct {
	ids []int
	set map[int]struct{}
}

func newChildSet() *childSet {
	return &childSet{set: make(map[int]struct{})}
}

func (c *childSet) add(id int) bool {
	if _, ok := c.set[id]; ok {
		return false
	}
	c.set[id] = struct{}{}
	c.ids = append(c.ids, id)
	return true
}

// arena owns every ordering key. Keys are addressed by index; redirect maps
// a delegated key to the key standing for it and is compressed on lookup.
// buckets index keys by the xxhash of their entry set.
type arena struct {
	keys     []*orderingKey
	redirect []int
	buckets  map[uint64][]int
}

func newArena() arena {
	return arena{buckets: make(map[uint64][]int)}
}

func entriesHash(s *intsets.Sparse) uint64 {
	var space [64]int
	var buf [8]byte
	d := xxhash.New()
	for _, x := range s.AppendTo(space[:0]) {
		binary.LittleEndian.PutUint64(buf[:], uint64(x))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// lookup returns the key created for exactly the given entries.
func (a *arena) lookup(entries *intsets.Sparse) (int, bool) {
	for _, id := range a.buckets[entriesHash(entries)] {
		if a.keys[id].entries.Equals(entries) {
			return id, true
		}
	}
	return noKey, false
}

// insert creates a key for entries. Creating a second key for the same entry
// set is an invariant violation.
func (a *arena) insert(entries *intsets.Sparse, ph *placeholder) int {
	h := entriesHash(entries)
	for _, id := range a.buckets[h] {
		if a.keys[id].entries.Equals(entries) {
			model.Invariantf("orta.insert", "key %s created twice", entries)
		}
	}
	k := &orderingKey{size: entries.Len(), parent: noKey, ph: ph, children: newChildSet()}
	k.entries.Copy(entries)
	id := len(a.keys)
	a.keys = append(a.keys, k)
	a.redirect = append(a.redirect, id)
	a.buckets[h] = append(a.buckets[h], id)
	return id
}

// self returns the key id stands for.
func (a *arena) self(id int) int {
	root := id
	for a.redirect[root] != root {
		root = a.redirect[root]
	}
	for a.redirect[id] != root {
		next := a.redirect[id]
		a.redirect[id] = root
		id = next
	}
	return root
}

func (a *arena) isDelegated(id int) bool { return a.redirect[id] != id }

func (a *arena) entries(id int) *intsets.Sparse { return &a.keys[a.self(id)].entries }

func (a *arena) hasParent(id int) bool { return a.keys[a.self(id)].parent != noKey }

// root returns the topmost ancestor of id.
func (a *arena) root(id int) int {
	id = a.self(id)
	for a.keys[id].parent != noKey {
		id = a.self(a.keys[id].parent)
	}
	return id
}

// score is read through the key's own placeholder, which it shares with the
// key it delegates to from the moment of delegation.
func (a *arena) score(id int) int { return a.keys[id].ph.score() }

func (a *arena) describe(id int) string {
	s := a.self(id)
	if s != id {
		return a.keys[id].entries.String() + " (delegating to " + a.keys[s].entries.String() + ")"
	}
	return a.keys[id].entries.String()
}

func (a *arena) mergeEntries(lhs, rhs int) *intsets.Sparse {
	var out intsets.Sparse
	out.Union(a.entries(lhs), a.entries(rhs))
	return &out
}

// makeDelegator makes src observationally identical to dst: src's children
// move to dst, both share one child set and one placeholder, and src
// redirects to dst from now on.
func (a *arena) makeDelegator(dst, src int) {
	dst = a.self(dst)
	src = a.self(src)
	if src == dst {
		return
	}
	d, s := a.keys[dst], a.keys[src]
	if s.parent != noKey || d.parent != noKey {
		model.Invariantf("orta.makeDelegator", "cannot delegate %s to %s: key already has a parent",
			a.describe(src), a.describe(dst))
	}
	a.redirect[src] = dst
	for _, c := range s.children.ids {
		c = a.self(c)
		if d.children.add(c) {
			a.keys[c].parent = dst
		}
	}
	s.parent = noKey
	s.children = d.children
	if d.ph.hasInitial() {
		d.ph.addInitials(s.ph)
		s.ph = d.ph
	} else {
		d.ph = s.ph
	}
}

// setParent attaches child below parent. A key has at most one parent.
func (a *arena) setParent(child, parent int) {
	child = a.self(child)
	parent = a.self(parent)
	c := a.keys[child]
	if c.parent != noKey {
		model.Invariantf("orta.setParent", "key %s already has parent %s, cannot attach it to %s",
			a.describe(child), a.describe(c.parent), a.describe(parent))
	}
	for p := parent; p != noKey; p = a.keys[p].parent {
		p = a.self(p)
		if p == child {
			model.Invariantf("orta.setParent", "attaching %s below %s would create a cycle",
				a.describe(child), a.describe(parent))
		}
	}
	c.parent = parent
	a.keys[parent].children.add(child)
}

// children returns the distinct keys below id.
func (a *arena) children(id int) []int {
	var out []int
	for _, c := range a.keys[a.self(id)].children.ids {
		c = a.self(c)
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// compare orders keys by descending score, then ascending entry count, then
// by their lowest differing entry.
func (a *arena) compare(x, y int) int {
	if x == y {
		return 0
	}
	kx, ky := a.keys[x], a.keys[y]
	if d := ky.ph.score() - kx.ph.score(); d != 0 {
		return d
	}
	if d := kx.size - ky.size; d != 0 {
		return d
	}
	var sx, sy [64]int
	ex, ey := kx.entries.AppendTo(sx[:0]), ky.entries.AppendTo(sy[:0])
	for i := 0; i < len(ex) && i < len(ey); i++ {
		if d := ex[i] - ey[i]; d != 0 {
			return d
		}
	}
	return x - y
}

// keyHeap is a priority queue of key ids ordered by arena.compare.
type keyHeap struct {
	a   *arena
	ids []int
}

func (h *keyHeap) Len() int           { return len(h.ids) }
func (h *keyHeap) Less(i, j int) bool { return h.a.compare(h.ids[i], h.ids[j]) < 0 }
func (h *keyHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *keyHeap) Push(x any)         { h.ids = append(h.ids, x.(int)) }

func (h *keyHeap) Pop() any {
	n := len(h.ids)
	id := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return id
}

func (h *keyHeap) peek() int { return h.ids[0] }

// keySet is an insertion-ordered set of key ids.
type keySet struct {
	ids []int
	has map[int]struct{}
}

func newKeySet() keySet {
	return keySet{has: make(map[int]struct{})}
}

func (s *keySet) add(id int) {
	if _, ok := s.has[id]; ok {
		return
	}
	s.has[id] = struct{}{}
	s.ids = append(s.ids, id)
}

func (s *keySet) remove(id int) bool {
	if _, ok := s.has[id]; !ok {
		return false
	}
	delete(s.has, id)
	s.ids = slices.DeleteFunc(s.ids, func(x int) bool { return x == id })
	return true
}

func (s *keySet) contains(id int) bool {
	_, ok := s.has[id]
	return ok
}

func (s *keySet) len() int { return len(s.ids) }
