// Package callgraph builds RTA call graphs for sets of entry classes.
//
// BuildCallGraphs returns one call graph per entry class. Up to two entries
// are analyzed one by one; larger sets are planned into a merge forest so
// that work shared between entries is done once. Both strategies produce the
// same edges for every entry, which Validate checks.
package callgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/715d/ortacg/internal/analysis"
	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/orta"
	"github.com/715d/ortacg/internal/rta"
)

var (
	// ErrNoEntries is returned when no entry class is given.
	ErrNoEntries = errors.New("no entry classes provided")
	// ErrNilSource is returned when the class source is nil.
	ErrNilSource = errors.New("class source is nil")
	// ErrUnresolvableEntry is returned when an entry class cannot be loaded.
	ErrUnresolvableEntry = errors.New("entry class cannot be resolved")
)

// Strategy selects how call graphs are built.
type Strategy string

const (
	// StrategyAuto uses the baseline for up to two entries and ORTA otherwise.
	StrategyAuto Strategy = "auto"
	// StrategyBaseline builds one independent graph per entry.
	StrategyBaseline Strategy = "baseline"
	// StrategyORTA plans a merge forest; it requires more than two entries.
	StrategyORTA Strategy = "orta"
)

// ParseStrategy returns the strategy named s.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyAuto, StrategyBaseline, StrategyORTA:
		return st, nil
	case "":
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want auto, baseline or orta)", s)
	}
}

// Options configures an Analyzer.
type Options struct {
	Strategy Strategy
}

// Analyzer builds call graphs and records metrics about the builds.
type Analyzer struct {
	opts      Options
	metrics   *metrics.Set
	nameCache *analysis.NameCache
}

// NewAnalyzer creates a new analyzer with the given options.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	return &Analyzer{
		opts:      opts,
		metrics:   metrics.NewSet(),
		nameCache: analysis.NewNameCache(),
	}
}

// Result holds the call graphs of one build. The graphs stay valid until
// Close is called.
type Result struct {
	// Strategy is the strategy the graphs were built with; never auto.
	Strategy Strategy

	// Graphs maps the dotted name of every entry class to its call graph.
	Graphs map[string]*Graph

	// Forest describes the planned merge forest, nil for baseline builds.
	Forest []orta.Node

	// Duration is the wall time of the build.
	Duration time.Duration

	sess *model.Session
}

// Entries returns the entry class names in sorted order.
func (r *Result) Entries() []string {
	names := make([]string, 0, len(r.Graphs))
	for name := range r.Graphs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases the session the graphs were built in.
func (r *Result) Close() error {
	return r.sess.Close()
}

// BuildCallGraphs returns one call graph per entry class using the default
// strategy.
func BuildCallGraphs(src model.ClassSource, entries []string) (map[string]*Graph, error) {
	res, err := NewAnalyzer(Options{}).Build(src, entries)
	if err != nil {
		return nil, err
	}
	return res.Graphs, nil
}

// Build returns one call graph per entry class. Entries may be given as
// internal or dotted class names. Nothing is built when any input is
// invalid, and a broken internal invariant is returned as a
// *model.InvariantError without partial results.
func (a *Analyzer) Build(src model.ClassSource, entries []string) (res *Result, err error) {
	// Step 1: Validate input.
	if src == nil {
		return nil, ErrNilSource
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	sess := model.NewSession(shared{src})
	defer func() {
		if err != nil {
			res = nil
			_ = sess.Close()
		}
	}()
	defer recoverInvariant(&err)

	klasses, err := resolveEntries(sess, entries)
	if err != nil {
		return nil, err
	}

	strategy := a.opts.Strategy
	if strategy == StrategyAuto {
		strategy = StrategyBaseline
		if len(klasses) > 2 {
			strategy = StrategyORTA
		}
	}

	// Step 2: Build the graphs.
	start := time.Now()
	res = &Result{Strategy: strategy, sess: sess}
	var graphs map[*model.Klass]*rta.CallGraph
	switch strategy {
	case StrategyBaseline:
		graphs = make(map[*model.Klass]*rta.CallGraph, len(klasses))
		for _, k := range klasses {
			graphs[k] = rta.BuildEntry(sess, k)
		}
	case StrategyORTA:
		forest, planErr := orta.Plan(sess, klasses)
		if planErr != nil {
			return nil, planErr
		}
		res.Forest = forest.Nodes()
		a.metrics.GetOrCreateCounter("ortacg_forest_keys_total").Add(forest.Keys())
		graphs = forest.Construct()
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	res.Duration = time.Since(start)

	// Step 3: Summarize.
	res.Graphs = make(map[string]*Graph, len(graphs))
	for k, g := range graphs {
		res.Graphs[k.TypeName()] = newGraph(k, g, a.nameCache)
	}
	a.record(res)
	slog.Info("built call graphs", "entries", len(res.Graphs), "strategy", strategy, "duration", res.Duration)
	return res, nil
}

// resolveEntries interns every entry class, rejecting classes the source
// cannot provide. Duplicates are dropped.
func resolveEntries(sess *model.Session, entries []string) ([]*model.Klass, error) {
	klasses := make([]*model.Klass, 0, len(entries))
	seen := make(map[*model.Klass]struct{}, len(entries))
	for _, name := range entries {
		k := sess.Klass(name)
		if k.IsPlaceholder() || k.IsFake() {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvableEntry, name)
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		klasses = append(klasses, k)
	}
	return klasses, nil
}

// recoverInvariant turns an invariant violation raised below into an error.
// Other panics are propagated.
func recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*model.InvariantError)
	if !ok {
		panic(r)
	}
	slog.Error("invariant violated", "op", ie.Op, "detail", ie.Detail)
	*err = fmt.Errorf("build call graphs: %w", ie)
}

// shared hides io.Closer of a caller-owned source so that closing a session
// leaves the source open.
type shared struct {
	model.ClassSource
}
