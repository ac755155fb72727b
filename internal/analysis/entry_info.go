// Package analysis summarizes call graphs for reporting.
package analysis

import (
	"slices"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/rta"
)

// EntryInfo summarizes the call graph built for one entry class.
type EntryInfo struct {
	// Entry is the dotted name of the entry class.
	Entry string `json:"entry"`

	// Class is the simple name of the entry class.
	Class string `json:"class"`

	// Package is the dotted package of the entry class, empty for the
	// default package.
	Package string `json:"package,omitempty"`

	// Methods counts the reachable methods, the fake caller excluded.
	Methods int `json:"methods"`

	// Edges counts the call edges that do not touch the fake caller.
	Edges int `json:"edges"`

	// ToolEdges counts the edges leaving the fake caller.
	ToolEdges int `json:"tool_edges"`

	// Layers is the number of call graph layers the result is stacked from.
	Layers int `json:"layers"`

	// Lambdas counts reachable methods of synthetic lambda classes.
	Lambdas int `json:"lambdas,omitempty"`

	// Unloadable lists classes with reachable methods whose hierarchy
	// could not be loaded completely.
	Unloadable []string `json:"unloadable,omitempty"`
}

// NewEntryInfo summarizes g, the call graph of entry k.
func NewEntryInfo(k *model.Klass, g *rta.CallGraph, names *NameCache) *EntryInfo {
	info := &EntryInfo{
		Entry:   k.TypeName(),
		Class:   names.ComputeClassName(k),
		Package: k.Package(),
		Layers:  g.Depth(),
	}

	seen := make(map[*model.Klass]struct{})
	for _, m := range g.Nodes() {
		if m == g.Root() {
			continue
		}
		info.Methods++
		owner := m.Owner()
		if owner.IsLambda() {
			info.Lambdas++
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		if !owner.IsFake() && !owner.IsReachable() {
			info.Unloadable = append(info.Unloadable, owner.TypeName())
		}
	}
	slices.Sort(info.Unloadable)

	for _, e := range g.Edges() {
		if e.Caller == g.Root() {
			info.ToolEdges++
		} else if !g.IsToolEdge(e) {
			info.Edges++
		}
	}
	return info
}

// IsShared reports whether the graph reuses layers built for other entries.
func (e *EntryInfo) IsShared() bool { return e.Layers > 1 }
