package entries

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_scanReader(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantClasses  []string
		wantPatterns []string
		wantErr      bool
	}{
		{
			name: "classes_and_comments",
			input: `# entry points
a.Main

// nested classes use a dollar
a/Outer$Inner
   b.Tool   `,
			wantClasses: []string{"a.Main", "a/Outer$Inner", "b.Tool"},
		},
		{
			name: "patterns",
			input: `pattern: ^a/.*Test$
pattern:b\.
a.Main`,
			wantClasses:  []string{"a.Main"},
			wantPatterns: []string{`^a/.*Test$`, `b\.`},
		},
		{
			name:    "malformed_class",
			input:   "a.Main\nnot a class\n",
			wantErr: true,
		},
		{
			name:    "malformed_pattern",
			input:   "pattern: (",
			wantErr: true,
		},
		{
			name:  "empty",
			input: "\n# nothing\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := scanReader(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantClasses, list.Classes)
			assert.Equal(t, tt.wantPatterns, list.Patterns)
			assert.Equal(t, len(tt.wantClasses)+len(tt.wantPatterns), list.Len())
		})
	}
}

// TestScanFile tests reading from disk.
func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.Main\npattern: ^b/\n"), 0o644))

	list, err := ScanFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.Main"}, list.Classes)
	assert.Equal(t, []string{"^b/"}, list.Patterns)

	_, err = ScanFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

type fakeDiscoverer []string

func (f fakeDiscoverer) Discover(pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range f {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

type failingDiscoverer struct{}

func (failingDiscoverer) Discover(string) ([]string, error) { return nil, errors.New("boom") }

// TestList_Resolve tests pattern expansion and deduplication.
func TestList_Resolve(t *testing.T) {
	d := fakeDiscoverer{"a/Main", "b/Tool", "b/Other"}

	tests := []struct {
		name string
		list List
		want []string
	}{
		{
			name: "classes only",
			list: List{Classes: []string{"a.Main", "c.X"}},
			want: []string{"a.Main", "c.X"},
		},
		{
			name: "patterns dedupe against named classes",
			list: List{Classes: []string{"a.Main"}, Patterns: []string{"^a/", "^b/"}},
			want: []string{"a.Main", "b/Tool", "b/Other"},
		},
		{
			name: "overlapping patterns",
			list: List{Patterns: []string{"Tool", "^b/"}},
			want: []string{"b/Tool", "b/Other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.list.Resolve(d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	l := List{Patterns: []string{"x"}}
	_, err := l.Resolve(failingDiscoverer{})
	assert.Error(t, err)
}
