package callgraph

import (
	"fmt"
	"log/slog"
	goruntime "runtime"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/rta"
)

// EntryDiff describes how an entry's call graph differs from its baseline.
type EntryDiff struct {
	Entry      string   `json:"entry"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
	Diff       string   `json:"-"`
}

// InconsistencyError is returned by Validate when the graphs built together
// differ from graphs built for each entry alone.
type InconsistencyError struct {
	Strategy Strategy
	Diffs    []EntryDiff
}

func (e *InconsistencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s call graphs differ from baseline for %d entries:", e.Strategy, len(e.Diffs))
	for _, d := range e.Diffs {
		fmt.Fprintf(&b, "\n%s (-baseline +%s):\n%s", d.Entry, e.Strategy, d.Diff)
	}
	return b.String()
}

// Validate builds the call graphs of entries with the analyzer's strategy and
// compares each one against a baseline graph built for that entry alone in
// an isolated session. Baseline graphs are built in parallel; src must be
// safe for concurrent use. A mismatch is reported as *InconsistencyError.
func (a *Analyzer) Validate(src model.ClassSource, entries []string) error {
	res, err := a.Build(src, entries)
	if err != nil {
		return err
	}
	defer res.Close()

	names := res.Entries()
	baselines := make([]map[string]struct{}, len(names))

	var wg errgroup.Group
	wg.SetLimit(goruntime.NumCPU())
	for idx, name := range names {
		wg.Go(func() (err error) {
			defer recoverInvariant(&err)
			sess := model.NewSession(shared{src})
			defer sess.Close()
			baselines[idx] = rta.BuildEntry(sess, sess.Klass(name)).EdgeSet()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}

	var diffs []EntryDiff
	for idx, name := range names {
		want, got := baselines[idx], res.Graphs[name].EdgeSet()
		if cmp.Equal(want, got) {
			continue
		}
		diffs = append(diffs, EntryDiff{
			Entry:      name,
			Missing:    difference(want, got),
			Unexpected: difference(got, want),
			Diff:       cmp.Diff(want, got),
		})
	}
	if len(diffs) > 0 {
		return &InconsistencyError{Strategy: res.Strategy, Diffs: diffs}
	}
	slog.Info("call graphs match baseline", "entries", len(names), "strategy", res.Strategy)
	return nil
}

// Validate checks the default strategy against the baseline.
func Validate(src model.ClassSource, entries []string) error {
	return NewAnalyzer(Options{}).Validate(src, entries)
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for e := range a {
		if _, ok := b[e]; !ok {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}
