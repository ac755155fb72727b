package rta

// EdgeCount summarizes the edges stored by a set of call graphs.
type EdgeCount struct {
	// Total counts every stored edge, once per layer storing it.
	Total int
	// Distinct counts distinct caller/callee pairs.
	Distinct int
	// Layers is the number of distinct layers walked.
	Layers int
}

// Duplicates returns how many stored edges repeat an edge stored elsewhere.
func (c EdgeCount) Duplicates() int { return c.Total - c.Distinct }

// CountEdges counts the edges stored by graphs. Layers shared between graphs
// are counted once, and edges touching the fake caller are skipped.
func CountEdges(graphs []*CallGraph) EdgeCount {
	var c EdgeCount
	visited := make(map[*callLayer]struct{})
	distinct := make(map[Edge]struct{})
	for _, g := range graphs {
		for _, l := range g.layers() {
			if _, ok := visited[l]; ok {
				continue
			}
			visited[l] = struct{}{}
			c.Layers++
			for _, e := range l.edgeOrder {
				if g.IsToolEdge(e) {
					continue
				}
				c.Total++
				distinct[e] = struct{}{}
			}
		}
	}
	c.Distinct = len(distinct)
	return c
}
