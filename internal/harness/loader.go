package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/pkg/classpath"
	"github.com/715d/ortacg/pkg/natives"
)

// programFile holds the class facts of a scenario.
const programFile = "program.yaml"

// LoadTestCase reads the expected.yaml of a scenario directory. Dir is set
// relative to root when possible; unnamed configurations are numbered.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "expected.yaml"))
	require.NoError(t, err)

	tc := &TestCase{}
	require.NoError(t, yaml.Unmarshal(data, tc), "decode scenario %s", dir)

	tc.Dir = filepath.Base(dir)
	if root != "" {
		if rel, err := filepath.Rel(root, dir); err == nil {
			tc.Dir = rel
		}
	}
	for i := range tc.Configurations {
		if tc.Configurations[i].Name == "" {
			tc.Configurations[i].Name = fmt.Sprintf("configuration-%d", i+1)
		}
	}
	return tc
}

// OpenSource opens the class path of a scenario: its program file, then any
// extra entries listed by the test case, then the bundled runtime.
func OpenSource(t *testing.T, dir string, tc *TestCase, cfg Configuration) model.ClassSource {
	t.Helper()

	paths := []string{filepath.Join(dir, programFile)}
	for _, p := range tc.Classpath {
		paths = append(paths, filepath.Join(dir, p))
	}
	loc, err := classpath.Open(t.Context(), classpath.Options{
		Paths:      paths,
		Exclusions: cfg.Exclude,
	})
	require.NoError(t, err)

	if !cfg.Natives {
		return loc
	}
	m, err := natives.Default()
	require.NoError(t, err)
	return natives.Wrap(loc, m)
}
