// Package orta builds RTA call graphs for many entry classes at once.
//
// Each entry's flattened impact set becomes a leaf of a merge forest. Leaves
// are greedily merged into keys holding the intersection of their impact
// bits, so that a key's units are analyzed once in a shared layer and every
// entry below it only analyzes what is new. The result for every entry is
// identical to a baseline RTA run for that entry alone.
package orta

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/tools/container/intsets"

	"github.com/715d/ortacg/internal/model"
)

// ErrTooFewEntries is returned when a forest is planned for fewer than three
// entry classes.
var ErrTooFewEntries = errors.New("orta: at least three entry classes are required")

type edgeKind uint8

const (
	// sourceDominant: the source adds nothing the intersection lacks.
	sourceDominant edgeKind = iota + 1
	// targetDominant: the target adds nothing the intersection lacks.
	targetDominant
	// siblings: both sides keep units of their own.
	siblings
)

// edge is a deferred merge of two keys below their intersection key.
type edge struct {
	kind   edgeKind
	source int
	target int
}

// Forest is a planned merge forest over a set of entry classes.
type Forest struct {
	sess    *model.Session
	arena   arena
	impacts *ImpactMap
	entries []*initial

	orderings  map[int][]edge
	candidates *keyHeap
	smalls     *keyHeap
	smallSet   keySet
	maximums   keySet
}

// Plan computes the merge forest for klasses, which must hold at least
// three distinct classes.
func Plan(sess *model.Session, klasses []*model.Klass) (*Forest, error) {
	klasses = dedupe(klasses)
	if len(klasses) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewEntries, len(klasses))
	}

	start := time.Now()
	f := &Forest{
		sess:      sess,
		arena:     newArena(),
		impacts:   NewImpactMap(sess),
		orderings: make(map[int][]edge),
		smallSet:  newKeySet(),
		maximums:  newKeySet(),
	}
	f.candidates = &keyHeap{a: &f.arena}
	f.smalls = &keyHeap{a: &f.arena}

	for i, k := range klasses {
		f.add(i, k)
	}
	slog.Info("flattened entries", "entries", len(klasses), "duration", time.Since(start))

	f.advanceMaximums()
	f.findMaximals()
	slog.Info("planned forest", "entries", len(klasses), "keys", len(f.arena.keys), "duration", time.Since(start))
	return f, nil
}

func dedupe(klasses []*model.Klass) []*model.Klass {
	seen := make(map[*model.Klass]struct{}, len(klasses))
	out := make([]*model.Klass, 0, len(klasses))
	for _, k := range klasses {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (f *Forest) add(id int, k *model.Klass) {
	methods := model.InvocableMethods(k)
	bits := NewImpactBitSet()
	f.impacts.Set(methods, bits)

	in := &initial{id: id, klass: k, methods: methods}
	f.entries = append(f.entries, in)

	var entries intsets.Sparse
	entries.Insert(id)
	key := f.arena.insert(&entries, newPlaceholder(bits, in))
	f.addSmall(key)
}

func (f *Forest) addSmall(key int) {
	heap.Push(f.smalls, key)
	f.smallSet.add(key)
}

// nextSmall pops the highest scoring small key, skipping keys that were
// discarded since they were queued.
func (f *Forest) nextSmall() int {
	for f.smalls.Len() > 0 {
		key := heap.Pop(f.smalls).(int)
		if f.smallSet.remove(key) {
			return key
		}
	}
	return noKey
}

func (f *Forest) peekSmall() int {
	for f.smalls.Len() > 0 {
		key := f.smalls.peek()
		if f.smallSet.contains(key) {
			return key
		}
		heap.Pop(f.smalls)
	}
	return noKey
}

func (f *Forest) updateCandidates(source int) {
	if f.maximums.contains(source) || f.smallSet.contains(source) {
		return
	}
	if f.candidates.Len() > 0 && f.arena.score(source) < f.arena.score(f.candidates.peek()) {
		f.addSmall(source)
		return
	}
	f.iterateMaximals(source)
}

// advanceMaximums moves small keys into the maximal set until the best
// pending candidate outscores the next small key.
func (f *Forest) advanceMaximums() {
	for f.candidates.Len() == 0 {
		key := f.nextSmall()
		if key == noKey {
			return
		}
		f.updateCandidates(key)
	}

	source := f.peekSmall()
	if source == noKey {
		return
	}
	winner := f.arena.score(f.candidates.peek())
	threshold := f.arena.score(source)
	for winner <= threshold {
		source = f.nextSmall()
		if source == noKey {
			return
		}
		f.iterateMaximals(source)
		next := f.peekSmall()
		if next == noKey {
			return
		}
		threshold = f.arena.score(next)
		winner = f.arena.score(f.candidates.peek())
	}
}

// iterateMaximals intersects source with every maximal key. Keys equal to
// the intersection on both sides are folded together at once; all other
// positive intersections become candidate edges.
func (f *Forest) iterateMaximals(source int) {
	if f.maximums.len() == 0 {
		f.maximums.add(source)
		return
	}
	srcScore := f.arena.score(source)
	for _, target := range append([]int(nil), f.maximums.ids...) {
		targetScore := f.arena.score(target)
		computed, ok := f.compute(source, target)
		if !ok {
			continue
		}
		score := f.arena.score(computed)
		srcDom, tgtDom := srcScore == score, targetScore == score
		if srcDom && tgtDom {
			f.maximums.remove(target)
			f.arena.makeDelegator(computed, source)
			f.arena.makeDelegator(computed, target)
			source = computed
			srcScore = score
			continue
		}

		e := edge{kind: siblings, source: source, target: target}
		switch {
		case srcDom:
			e.kind = sourceDominant
		case tgtDom:
			e.kind = targetDominant
		}
		edges := f.orderings[computed]
		if len(edges) == 0 {
			heap.Push(f.candidates, computed)
		}
		f.orderings[computed] = append(edges, e)
	}
	f.maximums.add(source)
}

// compute returns the key for the union of lhs's and rhs's entries, creating
// it with the intersection of their bits when missing. It reports false when
// the intersection scores zero.
func (f *Forest) compute(lhs, rhs int) (int, bool) {
	entries := f.arena.mergeEntries(lhs, rhs)
	key, ok := f.arena.lookup(entries)
	if !ok {
		bits := f.arena.keys[lhs].ph.bits.And(f.arena.keys[rhs].ph.bits)
		key = f.arena.insert(entries, newPlaceholder(bits, nil))
	}
	if f.arena.score(key) <= 0 {
		return noKey, false
	}
	return key, true
}

// merge unifies lhs and rhs into the key for their combined entries.
func (f *Forest) merge(lhs, rhs int) int {
	lhs, rhs = f.arena.self(lhs), f.arena.self(rhs)
	if lhs == rhs {
		return lhs
	}
	entries := f.arena.mergeEntries(lhs, rhs)
	key, ok := f.arena.lookup(entries)
	if !ok {
		key = f.arena.insert(entries, f.arena.keys[lhs].ph.withoutInitial())
	}
	if key != lhs {
		f.discard(lhs)
	}
	if key != rhs {
		f.discard(rhs)
	}
	f.arena.makeDelegator(key, lhs)
	f.arena.makeDelegator(key, rhs)
	return key
}

func (f *Forest) discard(key int) {
	if !f.smallSet.remove(key) {
		f.maximums.remove(key)
	}
}

func (f *Forest) connect(parent, child int) {
	child = f.arena.self(child)
	f.discard(child)
	f.arena.setParent(child, parent)
}

// connectDominant folds dominant into parent and attaches child below the
// result. It fails when child is already attached.
func (f *Forest) connectDominant(parent, dominant, child int) int {
	if f.arena.hasParent(child) {
		return noKey
	}
	c := f.arena.self(child)
	if c == f.arena.root(parent) || c == f.arena.root(dominant) {
		return noKey
	}
	merged := f.merge(parent, dominant)
	f.connect(merged, child)
	return merged
}

func (f *Forest) connectSiblings(parent, source, target int) int {
	source, target, parent = f.arena.self(source), f.arena.self(target), f.arena.self(parent)
	if f.arena.hasParent(source) || f.arena.hasParent(target) {
		return noKey
	}
	if source == target {
		return noKey
	}
	if r := f.arena.root(parent); r == source || r == target {
		return noKey
	}
	entries := f.arena.mergeEntries(target, source)
	key, ok := f.arena.lookup(entries)
	if ok && (key == source || key == target) {
		return noKey
	}
	if !ok || key != parent {
		if !ok {
			key = f.arena.insert(entries, f.arena.keys[parent].ph.withoutInitial())
		}
		f.discard(parent)
		f.arena.makeDelegator(key, parent)
	}
	f.connect(key, source)
	f.connect(key, target)
	return key
}

func (f *Forest) tryConnect(e edge, parent int) int {
	switch e.kind {
	case sourceDominant:
		return f.connectDominant(parent, e.source, e.target)
	case targetDominant:
		return f.connectDominant(parent, e.target, e.source)
	default:
		return f.connectSiblings(parent, e.source, e.target)
	}
}

// findMaximals drains the candidate queue, best intersection first.
func (f *Forest) findMaximals() {
	for f.candidates.Len() > 0 {
		node := heap.Pop(f.candidates).(int)
		edges := f.orderings[node]
		delete(f.orderings, node)

		node = f.arena.self(node)
		created := false
		for _, e := range edges {
			next := f.tryConnect(e, node)
			if next == noKey {
				continue
			}
			created = true
			if node != next {
				node = f.arena.self(f.merge(node, next))
			}
		}
		if created {
			f.updateCandidates(node)
		}
		f.advanceMaximums()
	}
}
