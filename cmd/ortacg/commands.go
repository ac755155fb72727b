package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/pkg/callgraph"
	"github.com/715d/ortacg/pkg/classpath"
	"github.com/715d/ortacg/pkg/entries"
	"github.com/715d/ortacg/pkg/natives"
)

// input is the class source and entry classes a command works on.
type input struct {
	src     model.ClassSource
	entries []string
}

func loadInput(cmd *cobra.Command, cfg *Config, args []string) (*input, error) {
	if len(cfg.Classpath) == 0 {
		return nil, errors.New("no class path given (use --classpath)")
	}
	loc, err := classpath.Open(cmd.Context(), classpath.Options{
		Paths:          cfg.Classpath,
		Exclusions:     cfg.Exclude,
		ExcludeRuntime: cfg.ExcludeRuntime,
	})
	if err != nil {
		return nil, fmt.Errorf("open class path: %w", err)
	}

	names := args
	if cfg.EntriesFile != "" {
		list, err := entries.ScanFile(cfg.EntriesFile)
		if err != nil {
			return nil, err
		}
		list.Classes = append(append([]string(nil), args...), list.Classes...)
		if names, err = list.Resolve(loc); err != nil {
			return nil, fmt.Errorf("resolve entries: %w", err)
		}
	}
	if len(names) == 0 {
		return nil, callgraph.ErrNoEntries
	}

	var src model.ClassSource = loc
	if !cfg.NoNatives {
		m, err := loadNatives(cfg.Natives)
		if err != nil {
			return nil, err
		}
		slog.Info("native summaries", "methods", m.Len())
		src = natives.Wrap(loc, m)
	}
	return &input{src: src, entries: names}, nil
}

func loadNatives(path string) (*natives.Model, error) {
	if path == "" {
		return natives.Default()
	}
	return natives.Load(path)
}

func newAnalyzer(cfg *Config) (*callgraph.Analyzer, error) {
	strategy, err := callgraph.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return callgraph.NewAnalyzer(callgraph.Options{Strategy: strategy}), nil
}

func writeMetrics(cfg *Config, a *callgraph.Analyzer) {
	if cfg.Metrics {
		a.WriteMetrics(os.Stderr)
	}
}

func runBuild(cmd *cobra.Command, cfg *Config, args []string) error {
	in, err := loadInput(cmd, cfg, args)
	if err != nil {
		return errWithCode(err, exitError)
	}
	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return errWithCode(err, exitError)
	}

	slog.Info("building call graphs", "entries", len(in.entries), "strategy", cfg.Strategy)
	res, err := analyzer.Build(in.src, in.entries)
	if err != nil {
		return errWithCode(fmt.Errorf("build: %w", err), exitError)
	}
	defer res.Close()
	writeMetrics(cfg, analyzer)

	if err := writeBuild(cmd.OutOrStdout(), cfg, res); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}
	return nil
}

func writeBuild(stdout io.Writer, cfg *Config, res *callgraph.Result) error {
	format := cfg.Format
	if cfg.JSON && format == "text" {
		format = "json"
	}

	switch format {
	case "dot":
		if cfg.Out == "" {
			for _, name := range res.Entries() {
				if _, err := io.WriteString(stdout, res.Graphs[name].DOT()); err != nil {
					return err
				}
			}
			return nil
		}
		for _, name := range res.Entries() {
			if err := writeFile(cfg.Out, dotFileName(name), res.Graphs[name].DOT()); err != nil {
				return err
			}
		}
		return nil
	case "json":
		output, err := formatJSONOutput(res)
		if err != nil {
			return err
		}
		return emit(stdout, cfg.Out, "callgraphs.json", output)
	case "text":
		return emit(stdout, cfg.Out, "callgraphs.txt", formatTextOutput(res, cfg.Verbose))
	default:
		return fmt.Errorf("unknown format %q (want text, json or dot)", cfg.Format)
	}
}

func dotFileName(entry string) string {
	return strings.ReplaceAll(entry, "/", "_") + ".dot"
}

func emit(stdout io.Writer, dir, name, output string) error {
	if dir == "" {
		_, err := io.WriteString(stdout, output)
		return err
	}
	return writeFile(dir, name, output)
}

func writeFile(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("wrote output", "file", path)
	return nil
}

func runValidate(cmd *cobra.Command, cfg *Config, args []string) error {
	in, err := loadInput(cmd, cfg, args)
	if err != nil {
		return errWithCode(err, exitError)
	}
	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return errWithCode(err, exitError)
	}

	err = analyzer.Validate(in.src, in.entries)
	writeMetrics(cfg, analyzer)
	var inconsistency *callgraph.InconsistencyError
	switch {
	case errors.As(err, &inconsistency):
		return errWithCode(err, exitInconsistent)
	case err != nil:
		return errWithCode(fmt.Errorf("validate: %w", err), exitError)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "call graphs of %d entries match the baseline\n", len(in.entries))
	return nil
}

func runCount(cmd *cobra.Command, cfg *Config, args []string) error {
	in, err := loadInput(cmd, cfg, args)
	if err != nil {
		return errWithCode(err, exitError)
	}
	counts, err := callgraph.CountEdges(in.src, in.entries)
	if err != nil {
		return errWithCode(fmt.Errorf("count: %w", err), exitError)
	}

	if cfg.JSON {
		output, err := formatJSON(counts)
		if err != nil {
			return errWithCode(err, exitError)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), output)
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), formatCounts(counts))
	return err
}
