package natives

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/model/modeltest"
)

// TestDefault tests that the bundled summaries parse.
func TestDefault(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 7, m.Len())

	code, ok := m.Summary("java/lang/Thread", "start0", "()V")
	require.True(t, ok)
	assert.Equal(t, []model.Instruction{
		{Op: model.OpInvokeVirtual, Owner: "java/lang/Thread", Name: "run", Desc: "()V"},
	}, code)

	_, ok = m.Summary("java/lang/Thread", "start0", "(I)V")
	assert.False(t, ok)
}

// TestParse tests duplicate handling and rejected files.
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantLen int
		wantErr bool
	}{
		{
			name: "duplicate keeps one",
			data: `
natives:
  - class: a/N
    methods:
      - {name: m, desc: ()V, code: [ldc_string]}
  - class: a/N
    methods:
      - {name: m, desc: ()V, code: [new a/X]}
      - {name: m, desc: (I)V}
`,
			wantLen: 2,
		},
		{name: "missing class", data: "natives:\n  - methods: []\n", wantErr: true},
		{name: "bad instruction", data: "natives:\n  - class: a/N\n    methods:\n      - {name: m, desc: ()V, code: [iadd]}\n", wantErr: true},
		{name: "not yaml", data: "natives: [\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, m.Len())
		})
	}
}

// TestLoad tests reading summaries from disk.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "natives.yaml")
	require.NoError(t, os.WriteFile(path, []byte("natives:\n  - class: a/N\n    methods:\n      - {name: m, desc: ()V}\n"), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func nativeProgram() *modeltest.Program {
	p := modeltest.NewProgram()
	p.Class("a/N").
		Method("m", "()V", model.AccPublic|model.AccNative).
		Method("other", "()V", model.AccPublic, modeltest.LdcString())
	p.Class("a/X").Constructor()
	return p
}

func summaries(t *testing.T) *Model {
	t.Helper()
	m, err := Parse([]byte("natives:\n  - class: a/N\n    methods:\n      - {name: m, desc: ()V, code: [new a/X]}\n"))
	require.NoError(t, err)
	return m
}

// TestModel_Apply tests that summaries replace code without touching the
// original facts.
func TestModel_Apply(t *testing.T) {
	m := summaries(t)
	p := nativeProgram()

	orig, err := p.Lookup("a/N")
	require.NoError(t, err)
	got := m.Apply(orig)

	require.NotSame(t, orig, got)
	assert.Empty(t, orig.Methods[0].Code)
	assert.Equal(t, []model.Instruction{{Op: model.OpNew, Owner: "a/X"}}, got.Methods[0].Code)
	assert.Equal(t, orig.Methods[1], got.Methods[1])

	other, err := p.Lookup("a/X")
	require.NoError(t, err)
	assert.Same(t, other, m.Apply(other))
}

type countingSource struct {
	model.ClassSource
	lookups atomic.Int32
	closed  bool
}

func (c *countingSource) Lookup(name string) (*model.ClassFacts, error) {
	c.lookups.Add(1)
	return c.ClassSource.Lookup(name)
}

func (c *countingSource) Close() error {
	c.closed = true
	return nil
}

// TestWrap tests caching, error passthrough and closing.
func TestWrap(t *testing.T) {
	src := &countingSource{ClassSource: nativeProgram()}
	wrapped := Wrap(src, summaries(t))

	first, err := wrapped.Lookup("a/N")
	require.NoError(t, err)
	second, err := wrapped.Lookup("a/N")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.lookups.Load())
	assert.Equal(t, model.OpNew, first.Methods[0].Code[0].Op)

	_, err = wrapped.Lookup("a/Missing")
	assert.True(t, errors.Is(err, model.ErrClassNotFound))
	_, err = wrapped.Lookup("a/Missing")
	assert.Error(t, err)
	assert.Equal(t, int32(3), src.lookups.Load())

	closer, ok := wrapped.(interface{ Close() error })
	require.True(t, ok)
	require.NoError(t, closer.Close())
	assert.True(t, src.closed)
}

// TestWrap_Session tests that a session sees summarized native code.
func TestWrap_Session(t *testing.T) {
	sess := model.NewSession(Wrap(nativeProgram(), summaries(t)))
	defer sess.Close()

	desc, err := sess.Descriptor("()V")
	require.NoError(t, err)
	m := sess.Klass("a/N").DeclaredMethod("m", desc)
	require.NotNil(t, m)

	var kinds []model.UnitKind
	for _, u := range sess.Impacts(m) {
		kinds = append(kinds, u.Kind)
	}
	assert.Contains(t, kinds, model.ObjectCreated)
}
