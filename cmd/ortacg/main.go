// Package main implements the ortacg command line driver.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config holds all command-line configuration options.
type Config struct {
	Classpath      []string `yaml:"classpath"`       // class-path entries: YAML files or directories
	Exclude        []string `yaml:"exclude"`         // class exclusion regular expressions
	ExcludeRuntime bool     `yaml:"exclude_runtime"` // skip the bundled java.lang stubs
	EntriesFile    string   `yaml:"entries_file"`    // file listing entry classes and patterns
	Natives        string   `yaml:"natives"`         // native summaries file, bundled defaults when empty
	NoNatives      bool     `yaml:"no_natives"`      // disable native summaries
	Strategy       string   `yaml:"strategy"`        // auto, baseline or orta
	Format         string   `yaml:"format"`          // text, json or dot
	Out            string   `yaml:"out"`             // output directory, stdout when empty
	Metrics        bool     `yaml:"metrics"`         // print analysis metrics to stderr
	Verbose        bool     `yaml:"verbose"`         // enables logging
	JSON           bool     `yaml:"json"`            // JSON output and log format
	Profile        bool     `yaml:"-"`               // enables CPU and memory profiling
	ConfigFile     string   `yaml:"-"`               // YAML file with defaults for the flags above
}

const (
	exitInconsistent = 1
	exitError        = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var cfg Config
	rootCmd := newRootCmd(&cfg)
	if err := rootCmd.Execute(); err != nil {
		_ = teardown(&cfg)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ortacg",
		Short: "Build RTA call graphs for many entry classes at once",
		Long: `ortacg builds a Rapid Type Analysis call graph for every entry class of a
program described by YAML class-fact files.

Entry classes are analyzed together: work shared between entries is planned
into a merge forest and done once, and every graph equals the graph an
independent analysis of its entry would produce.`,
		Example: `  ortacg build --classpath app/ a.Main b.Tool          # Text summary
  ortacg build --classpath app/ --entries-file entries.txt --format dot --out graphs/
  ortacg validate --classpath app/ a.Main b.Tool c.Cli  # Compare with baseline
  ortacg count --classpath app/ --json a.Main b.Tool c.Cli`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd, cfg)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return teardown(cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf("ortacg version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	flags.BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	flags.StringVar(&cfg.ConfigFile, "config", "", "YAML file with flag defaults")
	flags.StringSliceVar(&cfg.Classpath, "classpath", nil, "Class-path entries: class-fact YAML files or directories")
	flags.StringSliceVar(&cfg.Exclude, "exclude", nil, "Regular expressions of internal class names to exclude")
	flags.BoolVar(&cfg.ExcludeRuntime, "exclude-runtime", false, "Do not add the bundled java.lang stubs to the class path")
	flags.StringVar(&cfg.EntriesFile, "entries-file", "", "File listing entry classes, one per line, or 'pattern: <regexp>'")
	flags.StringVar(&cfg.Natives, "natives", "", "Native method summaries file (bundled defaults when empty)")
	flags.BoolVar(&cfg.NoNatives, "no-natives", false, "Disable native method summaries")
	flags.StringVar(&cfg.Strategy, "strategy", "auto", "Analysis strategy: auto, baseline or orta")
	flags.BoolVar(&cfg.Metrics, "metrics", false, "Write analysis metrics in Prometheus format to stderr")

	buildCmd := &cobra.Command{
		Use:   "build [entries...]",
		Short: "Build the call graph of every entry class",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, cfg, args)
		},
	}
	buildCmd.Flags().StringVar(&cfg.Format, "format", "text", "Output format: text, json or dot")
	buildCmd.Flags().StringVar(&cfg.Out, "out", "", "Output directory (stdout when empty)")

	validateCmd := &cobra.Command{
		Use:   "validate [entries...]",
		Short: "Check the call graphs against independent per-entry analyses",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, cfg, args)
		},
	}

	countCmd := &cobra.Command{
		Use:   "count [entries...]",
		Short: "Compare the edges stored by the baseline and by ORTA",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, cfg, args)
		},
	}

	rootCmd.AddCommand(buildCmd, validateCmd, countCmd)
	return rootCmd
}

var cpuProfile *os.File

func setup(cmd *cobra.Command, cfg *Config) error {
	if cfg.ConfigFile != "" {
		if err := loadConfigFile(cmd, cfg); err != nil {
			return errWithCode(err, exitError)
		}
	}

	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		cpuProfile = nil
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(cfg *Config) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	pprof.StopCPUProfile()
	defer func() {
		_ = cpuProfile.Close()
		cpuProfile = nil
	}()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

// loadConfigFile fills every option not given on the command line from the
// YAML file named by --config.
func loadConfigFile(cmd *cobra.Command, cfg *Config) error {
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode config %s: %w", cfg.ConfigFile, err)
	}

	set := func(flag string, isSet bool, apply func()) {
		if isSet && !cmd.Flags().Changed(flag) {
			apply()
		}
	}
	set("classpath", len(file.Classpath) > 0, func() { cfg.Classpath = file.Classpath })
	set("exclude", len(file.Exclude) > 0, func() { cfg.Exclude = file.Exclude })
	set("exclude-runtime", file.ExcludeRuntime, func() { cfg.ExcludeRuntime = true })
	set("entries-file", file.EntriesFile != "", func() { cfg.EntriesFile = file.EntriesFile })
	set("natives", file.Natives != "", func() { cfg.Natives = file.Natives })
	set("no-natives", file.NoNatives, func() { cfg.NoNatives = true })
	set("strategy", file.Strategy != "", func() { cfg.Strategy = file.Strategy })
	set("format", file.Format != "", func() { cfg.Format = file.Format })
	set("out", file.Out != "", func() { cfg.Out = file.Out })
	set("metrics", file.Metrics, func() { cfg.Metrics = true })
	set("verbose", file.Verbose, func() { cfg.Verbose = true })
	set("json", file.JSON, func() { cfg.JSON = true })
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error { return e.err }
