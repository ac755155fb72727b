// Package harness runs call graph scenarios described in YAML.
//
// Every scenario directory under testdata holds a program.yaml with class
// facts and an expected.yaml listing configurations: entry classes, the
// strategy, and what each entry's call graph must and must not contain.
package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/ortacg/pkg/callgraph"
)

// TestCase represents a single test scenario.
type TestCase struct {
	// Dir is the directory containing the scenario.
	Dir string `yaml:"-"`

	// Description says what the scenario covers.
	Description string `yaml:"description,omitempty"`

	// Classpath lists extra class-fact files or directories, relative to
	// the scenario directory, searched after program.yaml.
	Classpath []string `yaml:"classpath,omitempty"`

	// Configurations defines the analysis runs of the scenario.
	Configurations []Configuration `yaml:"configurations"`
}

// TestHarness manages test execution.
type TestHarness struct {
	// root is the root directory for test data
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case with all its configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.Configurations, "test case has no configurations")

	var results []ConfigurationResult
	var allSuccess = true

	for _, cfg := range tc.Configurations {
		cfgResult := h.runConfiguration(t, tc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.Configurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.Configurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration builds the call graphs of one configuration and checks them.
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg Configuration) *ConfigurationResult {
	t.Helper()
	strategy, err := callgraph.ParseStrategy(cfg.Strategy)
	require.NoError(t, err)

	src := OpenSource(t, filepath.Join(h.root, tc.Dir), tc, cfg)
	analyzer := callgraph.NewAnalyzer(callgraph.Options{Strategy: strategy})
	result, err := analyzer.Build(src, cfg.Entries)
	if err != nil {
		for _, expectedErr := range cfg.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}
	defer result.Close()

	cfgResult := h.validateConfigurationResults(cfg, result)
	if len(cfg.ExpectedErrors) > 0 {
		cfgResult.Success = false
		cfgResult.Details = append(cfgResult.Details,
			fmt.Sprintf("Expected an error containing one of %q", cfg.ExpectedErrors))
	}
	if cfg.Validate {
		if err := analyzer.Validate(src, cfg.Entries); err != nil {
			var inconsistency *callgraph.InconsistencyError
			require.True(t, errors.As(err, &inconsistency), "validate: %v", err)
			cfgResult.Success = false
			cfgResult.Details = append(cfgResult.Details, err.Error())
		}
	}
	if !cfgResult.Success && cfgResult.Message == "" {
		cfgResult.Message = "Test failed"
	}
	return cfgResult
}

// validateConfigurationResults compares actual graphs with expected for a configuration
func (h *TestHarness) validateConfigurationResults(cfg Configuration, result *callgraph.Result) *ConfigurationResult {
	cfgResult := ConfigurationResult{
		Configuration: cfg,
		Strategy:      result.Strategy,
		Entries:       result.Entries(),
		Success:       true,
	}

	if err := validateExpectedGraphs(cfg.Graphs); err != nil {
		cfgResult.Success = false
		cfgResult.Message = fmt.Sprintf("Invalid expected.yaml: %v", err)
		cfgResult.Details = []string{err.Error()}
		return &cfgResult
	}

	checked := 0
	for _, exp := range cfg.Graphs {
		g, ok := result.Graphs[exp.Entry]
		if !ok {
			cfgResult.Success = false
			cfgResult.Details = append(cfgResult.Details, "No call graph for entry "+exp.Entry)
			continue
		}
		details := validateGraph(exp, g)
		if len(details) > 0 {
			cfgResult.Success = false
			cfgResult.Details = append(cfgResult.Details, details...)
		}
		checked++
	}

	if cfgResult.Success {
		cfgResult.Message = fmt.Sprintf("All %d expected call graphs matched", checked)
	} else {
		cfgResult.Message = fmt.Sprintf("Test failed: %d call graphs checked, %d problems", checked, len(cfgResult.Details))
	}
	return &cfgResult
}

// ConfigurationResult represents the result of running a single configuration.
type ConfigurationResult struct {
	// Configuration is the configuration that was run.
	Configuration Configuration

	// Strategy is the strategy the analyzer picked.
	Strategy callgraph.Strategy

	// Entries are the entry classes the build returned graphs for.
	Entries []string

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Message provides a summary of the result.
	Message string
}

// validateExpectedGraphs validates that expected graphs have required fields
func validateExpectedGraphs(expected []ExpectedGraph) error {
	for i, exp := range expected {
		if strings.TrimSpace(exp.Entry) == "" {
			return fmt.Errorf("expected graph at index %d has empty or missing 'entry' field", i)
		}
		for _, e := range exp.Edges {
			if !strings.Contains(e, " -> ") {
				return fmt.Errorf("expected graph %s: edge %q is not of the form 'caller -> callee'", exp.Entry, e)
			}
		}
	}
	return nil
}

func validateGraph(exp ExpectedGraph, g *callgraph.Graph) []string {
	nodes := make(map[string]struct{})
	for _, n := range g.Nodes() {
		nodes[n] = struct{}{}
	}
	edges := g.EdgeSet()

	var details []string
	for _, n := range exp.Nodes {
		if _, ok := nodes[n]; !ok {
			details = append(details, fmt.Sprintf("[%s] Should have been reachable: %s", exp.Entry, n))
		}
	}
	for _, n := range exp.Absent {
		if _, ok := nodes[n]; ok {
			details = append(details, fmt.Sprintf("[%s] Should not have been reachable: %s", exp.Entry, n))
		}
	}
	for _, e := range exp.Edges {
		if _, ok := edges[e]; !ok {
			details = append(details, fmt.Sprintf("[%s] Missing edge: %s", exp.Entry, e))
		}
	}
	if exp.Unloadable != nil {
		want := slices.Clone(exp.Unloadable)
		sort.Strings(want)
		if !slices.Equal(want, g.Info.Unloadable) {
			details = append(details, fmt.Sprintf("[%s] Unloadable classes: want %v, got %v",
				exp.Entry, want, g.Info.Unloadable))
		}
	}
	sort.Strings(details)
	return details
}
