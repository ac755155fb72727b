package harness

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAll runs all scenario tests.
func TestAll(t *testing.T) {
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "get current file path")

	harnessDir := filepath.Dir(filename)
	testdataDir := filepath.Join(harnessDir, "..", "..", "testdata")

	testCases := discoverTestCases(t, testdataDir)
	require.NotEmpty(t, testCases, "no test cases found")

	if testing.Verbose() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	for _, tc := range testCases {
		t.Run(tc.Dir, func(t *testing.T) {
			t.Parallel()

			for _, cfg := range tc.Configurations {
				if len(cfg.Exclude) > 0 {
					t.Logf("[%s] Exclusions: %v", cfg.Name, cfg.Exclude)
				}
				if cfg.Natives {
					t.Logf("[%s] Native summaries enabled", cfg.Name)
				}
			}

			result := NewHarness(testdataDir).Run(t, tc)
			if !result.Success {
				t.Errorf("Test failed: %s", result.Message)
			}
		})
	}
}

func discoverTestCases(t *testing.T, root string) []*TestCase {
	t.Helper()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	var testCases []*TestCase
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "expected.yaml")); err == nil {
			testCases = append(testCases, LoadTestCase(t, dir, root))
		}
	}
	return testCases
}

// TestValidateExpectedGraphs tests that malformed expectations are rejected.
func TestValidateExpectedGraphs(t *testing.T) {
	tests := []struct {
		name    string
		graphs  []ExpectedGraph
		wantErr bool
	}{
		{name: "valid", graphs: []ExpectedGraph{{Entry: "a.Main", Edges: []string{"a.Main.run()V -> a.B.c()V"}}}},
		{name: "missing entry", graphs: []ExpectedGraph{{Nodes: []string{"a.Main.run()V"}}}, wantErr: true},
		{name: "malformed edge", graphs: []ExpectedGraph{{Entry: "a.Main", Edges: []string{"a.Main.run()V"}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateExpectedGraphs(tt.graphs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
