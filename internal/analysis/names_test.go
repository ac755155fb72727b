package analysis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/model/modeltest"
)

func program() *modeltest.Program {
	p := modeltest.NewProgram()
	p.Class("java/lang/String")
	p.Class("a/Square").Constructor().
		Method("area", "()I", model.AccPublic).
		Method("scale", "(I[Ljava/lang/String;J)La/Square;", model.AccPublic)
	p.Class("Main").Method("main", "([Ljava/lang/String;)V", model.AccPublic|model.AccStatic)
	return p
}

func lookup(t *testing.T, sess *model.Session, owner, name, desc string) *model.Method {
	t.Helper()
	d, err := sess.Descriptor(desc)
	require.NoError(t, err)
	m := sess.Klass(owner).DeclaredMethod(name, d)
	require.NotNil(t, m)
	return m
}

func TestComputeMethodName(t *testing.T) {
	sess := model.NewSession(program())
	defer sess.Close()

	tests := []struct {
		name     string
		owner    string
		method   string
		desc     string
		expected string
	}{
		{name: "no parameters", owner: "a/Square", method: "area", desc: "()I", expected: "int a.Square.area()"},
		{name: "constructor", owner: "a/Square", method: "<init>", desc: "()V", expected: "void a.Square.<init>()"},
		{
			name:     "mixed parameters",
			owner:    "a/Square",
			method:   "scale",
			desc:     "(I[Ljava/lang/String;J)La/Square;",
			expected: "a.Square a.Square.scale(int, java.lang.String[], long)",
		},
		{
			name:     "default package",
			owner:    "Main",
			method:   "main",
			desc:     "([Ljava/lang/String;)V",
			expected: "void Main.main(java.lang.String[])",
		},
	}

	nameCache := NewNameCache()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := lookup(t, sess, tt.owner, tt.method, tt.desc)
			require.Equal(t, tt.expected, nameCache.ComputeMethodName(m))
			require.Equal(t, tt.expected, nameCache.ComputeMethodName(m))
		})
	}
}

func TestComputeNamesWithNil(t *testing.T) {
	nameCache := NewNameCache()
	require.Empty(t, nameCache.ComputeMethodName(nil))
	require.Empty(t, nameCache.ComputeClassName(nil))
}

func TestComputeClassName(t *testing.T) {
	sess := model.NewSession(program())
	defer sess.Close()

	nameCache := NewNameCache()
	require.Equal(t, "Square", nameCache.ComputeClassName(sess.Klass("a/Square")))
	require.Equal(t, "Main", nameCache.ComputeClassName(sess.Klass("Main")))
	require.Equal(t, "Map$Entry", nameCache.ComputeClassName(sess.Klass("java/util/Map$Entry")))
}

// TestNameCacheConcurrency tests that concurrent lookups agree.
func TestNameCacheConcurrency(t *testing.T) {
	sess := model.NewSession(program())
	defer sess.Close()

	// Methods are resolved up front; sessions are not safe for concurrent use.
	area := lookup(t, sess, "a/Square", "area", "()I")
	main := lookup(t, sess, "Main", "main", "([Ljava/lang/String;)V")

	nameCache := NewNameCache()
	var wg sync.WaitGroup
	results := make([][2]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = [2]string{nameCache.ComputeMethodName(area), nameCache.ComputeMethodName(main)}
		}()
	}
	wg.Wait()

	for _, r := range results {
		require.Equal(t, "int a.Square.area()", r[0])
		require.Equal(t, "void Main.main(java.lang.String[])", r[1])
	}
}
