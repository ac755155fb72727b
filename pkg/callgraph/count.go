package callgraph

import (
	"fmt"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/orta"
	"github.com/715d/ortacg/internal/rta"
)

// EdgeCounts compares how many edges the baseline and ORTA store for the
// same entries. Duplicates are edges stored in more than one layer.
type EdgeCounts struct {
	Entries        int `json:"entries"`
	RTAEdges       int `json:"rta_edges"`
	RTADuplicates  int `json:"rta_duplicates"`
	ORTAEdges      int `json:"orta_edges"`
	ORTADuplicates int `json:"orta_duplicates"`
	ORTALayers     int `json:"orta_layers"`
}

// CountEdges builds the graphs of entries with both strategies, each in its
// own session, and counts the edges every distinct layer stores.
func CountEdges(src model.ClassSource, entries []string) (counts EdgeCounts, err error) {
	if src == nil {
		return EdgeCounts{}, ErrNilSource
	}
	if len(entries) == 0 {
		return EdgeCounts{}, ErrNoEntries
	}
	defer recoverInvariant(&err)

	base, err := countWith(src, entries, func(sess *model.Session, klasses []*model.Klass) []*rta.CallGraph {
		graphs := make([]*rta.CallGraph, 0, len(klasses))
		for _, k := range klasses {
			graphs = append(graphs, rta.BuildEntry(sess, k))
		}
		return graphs
	})
	if err != nil {
		return EdgeCounts{}, err
	}
	opt, err := countWith(src, entries, func(sess *model.Session, klasses []*model.Klass) []*rta.CallGraph {
		built := orta.Build(sess, klasses)
		graphs := make([]*rta.CallGraph, 0, len(built))
		for _, k := range klasses {
			graphs = append(graphs, built[k])
		}
		return graphs
	})
	if err != nil {
		return EdgeCounts{}, err
	}

	return EdgeCounts{
		Entries:        base.entries,
		RTAEdges:       base.Total,
		RTADuplicates:  base.Duplicates(),
		ORTAEdges:      opt.Total,
		ORTADuplicates: opt.Duplicates(),
		ORTALayers:     opt.Layers,
	}, nil
}

type layerCount struct {
	rta.EdgeCount
	entries int
}

func countWith(src model.ClassSource, entries []string,
	build func(*model.Session, []*model.Klass) []*rta.CallGraph,
) (layerCount, error) {
	sess := model.NewSession(shared{src})
	defer sess.Close()
	klasses, err := resolveEntries(sess, entries)
	if err != nil {
		return layerCount{}, fmt.Errorf("count edges: %w", err)
	}
	return layerCount{EdgeCount: rta.CountEdges(build(sess, klasses)), entries: len(klasses)}, nil
}
