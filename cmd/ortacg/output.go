package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/715d/ortacg/internal/analysis"
	"github.com/715d/ortacg/internal/orta"
	"github.com/715d/ortacg/pkg/callgraph"
)

func formatTextOutput(res *callgraph.Result, verbose bool) string {
	var output strings.Builder

	fmt.Fprintf(&output, "strategy: %s, entries: %d, duration: %s\n",
		res.Strategy, len(res.Graphs), res.Duration.Round(time.Microsecond))
	if len(res.Forest) > 0 {
		fmt.Fprintf(&output, "forest: %d nodes, %d roots\n", len(res.Forest), countRoots(res.Forest))
	}

	for _, name := range res.Entries() {
		g := res.Graphs[name]
		info := g.Info
		fmt.Fprintf(&output, "\n%s: %d methods, %d edges, %d layers\n", name, info.Methods, info.Edges, info.Layers)
		if len(info.Unloadable) > 0 {
			fmt.Fprintf(&output, "  unloadable: %s\n", strings.Join(info.Unloadable, ", "))
		}
		if !verbose {
			continue
		}
		for _, e := range g.Edges() {
			fmt.Fprintf(&output, "  %s -> %s\n", e.Caller, e.Callee)
		}
	}
	return output.String()
}

func countRoots(forest []orta.Node) int {
	n := 0
	for _, node := range forest {
		if node.Parent < 0 {
			n++
		}
	}
	return n
}

func formatCounts(c callgraph.EdgeCounts) string {
	var output strings.Builder
	fmt.Fprintf(&output, "entries:         %d\n", c.Entries)
	fmt.Fprintf(&output, "rta edges:       %d (%d duplicates)\n", c.RTAEdges, c.RTADuplicates)
	fmt.Fprintf(&output, "orta edges:      %d (%d duplicates)\n", c.ORTAEdges, c.ORTADuplicates)
	fmt.Fprintf(&output, "orta layers:     %d\n", c.ORTALayers)
	if c.RTAEdges > 0 {
		fmt.Fprintf(&output, "edges saved:     %.1f%%\n", 100*float64(c.RTAEdges-c.ORTAEdges)/float64(c.RTAEdges))
	}
	return output.String()
}

type jOutput struct {
	Strategy   callgraph.Strategy `json:"strategy"`
	Duration   string             `json:"duration"`
	CallGraphs []jCallGraph       `json:"call_graphs"`
	Forest     []orta.Node        `json:"forest,omitempty"`
	Version    string             `json:"version"`
	Timestamp  string             `json:"timestamp"`
}

type jCallGraph struct {
	*analysis.EntryInfo
	Calls []callgraph.Edge `json:"calls"`
}

func formatJSONOutput(res *callgraph.Result) (string, error) {
	graphs := make([]jCallGraph, 0, len(res.Graphs))
	for _, name := range res.Entries() {
		g := res.Graphs[name]
		calls := g.Edges()
		if calls == nil {
			calls = []callgraph.Edge{}
		}
		graphs = append(graphs, jCallGraph{EntryInfo: g.Info, Calls: calls})
	}
	return formatJSON(jOutput{
		Strategy:   res.Strategy,
		Duration:   res.Duration.String(),
		CallGraphs: graphs,
		Forest:     res.Forest,
		Version:    version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func formatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}
