package orta

import (
	"log/slog"
	"time"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/rta"
)

// roots returns the distinct parentless keys the forest is traversed from.
func (f *Forest) roots() []int {
	var out []int
	seen := make(map[int]struct{})
	for _, ids := range [][]int{f.smallSet.ids, f.maximums.ids} {
		for _, id := range ids {
			id = f.arena.self(id)
			if _, ok := seen[id]; ok || f.arena.keys[id].parent != noKey {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

type visit struct {
	key    int
	parent int
}

// walk visits every key reachable from the roots breadth first, parents
// before children.
func (f *Forest) walk(fn func(v visit)) {
	var queue []visit
	for _, r := range f.roots() {
		queue = append(queue, visit{key: r, parent: noKey})
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		fn(v)
		for _, c := range f.arena.children(v.key) {
			queue = append(queue, visit{key: c, parent: v.key})
		}
	}
}

// Construct builds one call graph per entry class. A key with children or
// several entries gets its own layer seeded with the units its parent's
// layer lacks; each of its entries then runs in a private layer on top.
// A leaf key with a single entry runs it directly on a layer over its parent.
func (f *Forest) Construct() map[*model.Klass]*rta.CallGraph {
	start := time.Now()
	result := make(map[*model.Klass]*rta.CallGraph, len(f.entries))
	graphs := make(map[int]*rta.CallGraph)
	put := func(in *initial, g *rta.CallGraph) {
		if _, ok := result[in.klass]; ok {
			model.Invariantf("orta.Construct", "entry %s assigned two call graphs", in.klass)
		}
		in.accept(g)
		result[in.klass] = g
	}

	layers := 0
	f.walk(func(v visit) {
		k := f.arena.keys[v.key]
		var acc *rta.CallGraph
		if v.parent == noKey {
			acc = rta.New(f.sess)
		} else {
			acc = rta.NewLayer(graphs[v.parent])
		}
		layers++

		children := f.arena.children(v.key)
		if len(children) == 0 && len(k.ph.initials) <= 1 {
			for _, in := range k.ph.initials {
				put(in, acc)
			}
			return
		}

		var applied int
		if v.parent == noKey {
			applied = k.ph.accept(acc, f.impacts)
		} else {
			applied = k.ph.acceptDiff(acc, f.arena.keys[v.parent].ph, f.impacts)
		}
		slog.Debug("shared layer", "key", f.arena.describe(v.key), "units", applied,
			"children", len(children), "entries", len(k.ph.initials))
		graphs[v.key] = acc
		for _, in := range k.ph.initials {
			layers++
			put(in, rta.NewLayer(acc))
		}
	})

	for _, in := range f.entries {
		if _, ok := result[in.klass]; !ok {
			model.Invariantf("orta.Construct", "entry %s is not reachable from any forest root", in.klass)
		}
	}
	slog.Info("constructed call graphs", "entries", len(result), "layers", layers, "duration", time.Since(start))
	return result
}

// Node describes one key of a planned forest.
type Node struct {
	// Entries are the indexes of the entry classes the key covers.
	Entries []int `json:"entries"`
	// Score is the cardinality of the key's impact bits.
	Score int `json:"score"`
	// Parent indexes the parent node in the slice returned by Nodes, or is -1.
	Parent int `json:"parent"`
	// Initials names the entry classes whose graphs are rooted at the key.
	Initials []string `json:"initials,omitempty"`
}

// Nodes returns the forest's keys in traversal order.
func (f *Forest) Nodes() []Node {
	var out []Node
	index := make(map[int]int)
	f.walk(func(v visit) {
		k := f.arena.keys[v.key]
		n := Node{
			Entries: k.entries.AppendTo(nil),
			Score:   k.ph.score(),
			Parent:  -1,
		}
		if v.parent != noKey {
			n.Parent = index[v.parent]
		}
		for _, in := range k.ph.initials {
			n.Initials = append(n.Initials, in.klass.TypeName())
		}
		index[v.key] = len(out)
		out = append(out, n)
	})
	return out
}

// Keys returns how many ordering keys planning created.
func (f *Forest) Keys() int { return len(f.arena.keys) }

// Entries returns the planned entry classes by index.
func (f *Forest) Entries() []*model.Klass {
	out := make([]*model.Klass, len(f.entries))
	for i, in := range f.entries {
		out[i] = in.klass
	}
	return out
}

// Build returns a call graph per entry class: baseline RTA for up to two
// classes, a planned forest otherwise.
func Build(sess *model.Session, klasses []*model.Klass) map[*model.Klass]*rta.CallGraph {
	klasses = dedupe(klasses)
	if len(klasses) <= 2 {
		result := make(map[*model.Klass]*rta.CallGraph, len(klasses))
		for _, k := range klasses {
			result[k] = rta.BuildEntry(sess, k)
		}
		return result
	}
	f, err := Plan(sess, klasses)
	if err != nil {
		model.Invariantf("orta.Build", "%v", err)
	}
	return f.Construct()
}
