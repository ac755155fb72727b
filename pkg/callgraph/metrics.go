package callgraph

import (
	"fmt"
	"io"
)

func (a *Analyzer) record(res *Result) {
	a.metrics.GetOrCreateCounter(fmt.Sprintf(`ortacg_builds_total{strategy=%q}`, res.Strategy)).Inc()
	a.metrics.GetOrCreateCounter("ortacg_graphs_built_total").Add(len(res.Graphs))
	a.metrics.GetOrCreateHistogram(fmt.Sprintf(`ortacg_build_duration_seconds{strategy=%q}`, res.Strategy)).
		Update(res.Duration.Seconds())

	layers := a.metrics.GetOrCreateCounter("ortacg_graph_layers_total")
	edges := a.metrics.GetOrCreateCounter("ortacg_graph_edges_total")
	methods := a.metrics.GetOrCreateCounter("ortacg_graph_methods_total")
	for _, g := range res.Graphs {
		layers.Add(g.Info.Layers)
		edges.Add(g.Info.Edges)
		methods.Add(g.Info.Methods)
	}

	stats := res.sess.Stats()
	a.metrics.GetOrCreateCounter("ortacg_session_classes_total").Add(stats.Classes)
	a.metrics.GetOrCreateCounter("ortacg_session_units_total").Add(stats.Units)
}

// WriteMetrics writes the analyzer's metrics in Prometheus text format.
func (a *Analyzer) WriteMetrics(w io.Writer) {
	a.metrics.WritePrometheus(w)
}
