package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var program = filepath.Join("..", "..", "testdata", "three-overlap", "program.yaml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cfg Config
	cmd := newRootCmd(&cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var cErr *codedError
	if errors.As(err, &cErr) {
		return cErr.code
	}
	return -1
}

// TestBuild_JSON tests the JSON report of a build.
func TestBuild_JSON(t *testing.T) {
	out, err := execute(t, "build", "--classpath", program, "--format", "json", "o.C", "o.A", "o/B")
	require.NoError(t, err)

	var report struct {
		Strategy   string `json:"strategy"`
		CallGraphs []struct {
			Entry  string `json:"entry"`
			Layers int    `json:"layers"`
			Calls  []struct {
				Caller string `json:"caller"`
				Callee string `json:"callee"`
			} `json:"calls"`
		} `json:"call_graphs"`
		Forest []struct {
			Parent int `json:"parent"`
		} `json:"forest"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "orta", report.Strategy)
	assert.NotEmpty(t, report.Forest)
	require.Len(t, report.CallGraphs, 3)
	for i, want := range []string{"o.A", "o.B", "o.C"} {
		assert.Equal(t, want, report.CallGraphs[i].Entry)
		assert.NotEmpty(t, report.CallGraphs[i].Calls)
	}
}

// TestBuild_Text tests the text report.
func TestBuild_Text(t *testing.T) {
	out, err := execute(t, "build", "--classpath", program, "--strategy", "baseline", "o.A")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: baseline, entries: 1")
	assert.Contains(t, out, "o.A: ")
	assert.NotContains(t, out, "forest:")
}

// TestBuild_DOT tests that one DOT file per entry is written.
func TestBuild_DOT(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "build", "--classpath", program, "--format", "dot", "--out", dir, "o.A", "o.B")
	require.NoError(t, err)

	for _, name := range []string{"o.A.dot", "o.B.dot"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

// TestBuild_EntriesFile tests entry selection through a file with patterns.
func TestBuild_EntriesFile(t *testing.T) {
	entriesFile := filepath.Join(t.TempDir(), "entries.txt")
	require.NoError(t, os.WriteFile(entriesFile, []byte("# entries\no.A\npattern: ^o/[BC]$\n"), 0o644))

	out, err := execute(t, "build", "--classpath", program, "--entries-file", entriesFile, "--format", "json")
	require.NoError(t, err)

	var report struct {
		CallGraphs []struct {
			Entry string `json:"entry"`
		} `json:"call_graphs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.CallGraphs, 3)
}

// TestValidate tests a consistent validation run.
func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--classpath", program, "o.A", "o.B", "o.C")
	require.NoError(t, err)
	assert.Contains(t, out, "call graphs of 3 entries match the baseline")
}

// TestCount tests the edge counter report.
func TestCount(t *testing.T) {
	out, err := execute(t, "count", "--classpath", program, "--json", "o.A", "o.B", "o.C")
	require.NoError(t, err)

	var counts struct {
		Entries   int `json:"entries"`
		RTAEdges  int `json:"rta_edges"`
		ORTAEdges int `json:"orta_edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, 3, counts.Entries)
	assert.Positive(t, counts.RTAEdges)
	assert.LessOrEqual(t, counts.ORTAEdges, counts.RTAEdges)
}

// TestErrors tests that failures carry the generic exit code.
func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no classpath", args: []string{"build", "o.A"}},
		{name: "no entries", args: []string{"build", "--classpath", program}},
		{name: "unknown entry", args: []string{"build", "--classpath", program, "o.Nope"}},
		{name: "bad strategy", args: []string{"build", "--classpath", program, "--strategy", "fast", "o.A"}},
		{name: "bad format", args: []string{"build", "--classpath", program, "--format", "svg", "o.A"}},
		{name: "orta with two entries", args: []string{"validate", "--classpath", program, "--strategy", "orta", "o.A", "o.B"}},
		{name: "missing config", args: []string{"build", "--config", "missing.yaml", "o.A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, exitError, exitCode(err))
		})
	}
}

// TestConfigFile tests that the config file fills options not given as flags.
func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ortacg.yaml")
	config := "classpath: [" + program + "]\nstrategy: orta\nformat: json\n"
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))

	out, err := execute(t, "build", "--config", path, "o.A", "o.B", "o.C")
	require.NoError(t, err)
	assert.Contains(t, out, `"strategy": "orta"`)

	out, err = execute(t, "build", "--config", path, "--strategy", "baseline", "--format", "text", "o.A", "o.B", "o.C")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: baseline")
}
