package classpath

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	goruntime "runtime"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/715d/ortacg/internal/model"
)

//go:embed runtime.yaml
var runtimeStubs []byte

// Options configures a Locator.
type Options struct {
	// Paths are the class-path entries: YAML files or directories searched
	// recursively for *.yaml files. Earlier entries shadow later ones.
	Paths []string

	// Exclusions are regular expressions matched against internal class
	// names. Matching classes are reported as excluded.
	Exclusions []string

	// ExcludeRuntime disables the bundled java.lang stubs, which are
	// otherwise consulted after every class-path entry.
	ExcludeRuntime bool
}

// Locator is a model.ClassSource over a class path. It is safe for
// concurrent use.
type Locator struct {
	classes    map[string]*model.ClassFacts
	order      []string
	runtime    map[string]*model.ClassFacts
	exclusions []*regexp.Regexp

	// excluded memoizes exclusion checks; lookups of the same names repeat
	// across sessions.
	excluded *xsync.Map[string, bool]
}

// Open loads every class-fact file of the class path. Files are parsed in
// parallel.
func Open(ctx context.Context, opts Options) (*Locator, error) {
	l := &Locator{
		classes:  make(map[string]*model.ClassFacts),
		runtime:  make(map[string]*model.ClassFacts),
		excluded: xsync.NewMap[string, bool](),
	}
	for _, expr := range opts.Exclusions {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("exclusion %q: %w", expr, err)
		}
		l.exclusions = append(l.exclusions, re)
	}

	// Step 1: Collect files in class-path order.
	var files []string
	for _, path := range opts.Paths {
		found, err := collectFiles(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	// Step 2: Parse them in parallel. Each goroutine writes its own slot.
	results := make([][]*model.ClassFacts, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(goruntime.NumCPU())
	for idx, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read class facts: %w", err)
			}
			facts, err := ParseFacts(data)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			results[idx] = facts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Step 3: Index them; the first definition of a class wins.
	for idx, facts := range results {
		for _, f := range facts {
			if _, ok := l.classes[f.Name]; ok {
				slog.Debug("shadowed class definition", "class", f.Name, "file", files[idx])
				continue
			}
			l.classes[f.Name] = f
			l.order = append(l.order, f.Name)
		}
	}

	if !opts.ExcludeRuntime {
		stubs, err := ParseFacts(runtimeStubs)
		if err != nil {
			return nil, fmt.Errorf("runtime stubs: %w", err)
		}
		for _, f := range stubs {
			l.runtime[f.Name] = f
		}
	}
	slog.Info("opened class path", "entries", len(opts.Paths), "files", len(files),
		"classes", len(l.classes), "runtime", len(l.runtime))
	return l, nil
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("class path entry: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml")) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk class path entry %s: %w", path, err)
	}
	slices.Sort(files)
	return files, nil
}

// Lookup implements model.ClassSource.
func (l *Locator) Lookup(name string) (*model.ClassFacts, error) {
	if l.IsExcluded(name) {
		return nil, fmt.Errorf("%s: %w", name, model.ErrClassExcluded)
	}
	if f, ok := l.classes[name]; ok {
		return f, nil
	}
	if f, ok := l.runtime[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%s: %w", name, model.ErrClassNotFound)
}

// IsExcluded reports whether an exclusion matches the internal name.
func (l *Locator) IsExcluded(name string) bool {
	if len(l.exclusions) == 0 {
		return false
	}
	if v, ok := l.excluded.Load(name); ok {
		return v
	}
	v := slices.ContainsFunc(l.exclusions, func(re *regexp.Regexp) bool { return re.MatchString(name) })
	l.excluded.Store(name, v)
	return v
}

// Classes returns the internal names of the class-path classes in load
// order. Runtime stubs and excluded classes are left out.
func (l *Locator) Classes() []string {
	out := make([]string, 0, len(l.order))
	for _, name := range l.order {
		if !l.IsExcluded(name) {
			out = append(out, name)
		}
	}
	return out
}

// Discover returns the class-path classes whose internal or dotted name
// matches pattern and that can be instantiated: concrete classes that are
// neither interfaces nor abstract.
func (l *Locator) Discover(pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("discover pattern %q: %w", pattern, err)
	}
	var out []string
	for _, name := range l.Classes() {
		f := l.classes[name]
		if !f.Concrete || f.Access.IsInterface() || f.Access.IsAbstract() {
			continue
		}
		if re.MatchString(name) || re.MatchString(strings.ReplaceAll(name, "/", ".")) {
			out = append(out, name)
		}
	}
	return out, nil
}
