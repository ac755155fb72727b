package orta_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/model/modeltest"
	"github.com/715d/ortacg/internal/orta"
	"github.com/715d/ortacg/internal/rta"
)

const pub = model.AccPublic

// library returns shapes plus a few static helpers shared by the entries.
func library() *modeltest.Program {
	p := modeltest.NewProgram()
	p.Interface("a/Shape").Method("area", "()I", pub|model.AccAbstract)
	p.Class("a/Square").Implements("a/Shape").Constructor().Method("area", "()I", pub)
	p.Class("a/Circle").Implements("a/Shape").Constructor().Method("area", "()I", pub)
	p.Class("lib/Fmt").Method("format", "()V", pub|model.AccStatic)
	p.Class("lib/Log").Method("info", "()V", pub|model.AccStatic,
		modeltest.InvokeStatic("lib/Fmt", "format", "()V"))
	p.Class("lib/Io").Method("write", "()V", pub|model.AccStatic)
	return p
}

func entry(p *modeltest.Program, name string, code ...[]model.Instruction) {
	p.Class(name).Method("run", "()V", pub, modeltest.Flatten(code...)...)
}

func calls(ins ...model.Instruction) []model.Instruction { return ins }

var (
	area  = modeltest.InvokeInterface("a/Shape", "area", "()I")
	info  = modeltest.InvokeStatic("lib/Log", "info", "()V")
	write = modeltest.InvokeStatic("lib/Io", "write", "()V")
)

// overlapping has three entries sharing most of their reach: B's impacts are
// a subset of A's, and C differs from A in the shape it instantiates.
func overlapping() (*modeltest.Program, []string) {
	p := library()
	entry(p, "e/A", modeltest.Construct("a/Square"), calls(area, info, write))
	entry(p, "e/B", modeltest.Construct("a/Square"), calls(area, info))
	entry(p, "e/C", modeltest.Construct("a/Circle"), calls(area, info, write))
	return p, []string{"e/A", "e/B", "e/C"}
}

// disjoint has three entries without any impact in common.
func disjoint() (*modeltest.Program, []string) {
	p := library()
	p.Class("lib/One").Method("f", "()V", pub|model.AccStatic)
	p.Class("lib/Two").Method("f", "()V", pub|model.AccStatic)
	p.Class("lib/Three").Method("f", "()V", pub|model.AccStatic)
	entry(p, "x/P", calls(modeltest.InvokeStatic("lib/One", "f", "()V")))
	entry(p, "x/Q", calls(modeltest.InvokeStatic("lib/Two", "f", "()V")))
	entry(p, "x/R", calls(modeltest.InvokeStatic("lib/Three", "f", "()V")))
	return p, []string{"x/P", "x/Q", "x/R"}
}

// sharedDispatch has four entries reaching Y.go and X.run, where Y.go calls
// B.m directly and X.run dispatches to it. Only the first three instantiate
// B, so the layer they share adds the dispatch edge but no new method.
func sharedDispatch() (*modeltest.Program, []string) {
	p := modeltest.NewProgram()
	p.Class("a/B").Constructor().Method("m", "()V", pub)
	p.Class("a/X").Method("run", "()V", pub|model.AccStatic, modeltest.InvokeVirtual("a/B", "m", "()V"))
	p.Class("a/Y").Method("go", "()V", pub|model.AccStatic, modeltest.InvokeSpecial("a/B", "m", "()V"))
	shared := calls(modeltest.InvokeStatic("a/Y", "go", "()V"), modeltest.InvokeStatic("a/X", "run", "()V"))
	entry(p, "e/E1", shared, calls(modeltest.New("a/B")))
	entry(p, "e/E2", shared, calls(modeltest.New("a/B")))
	entry(p, "e/E3", shared, calls(modeltest.New("a/B")))
	entry(p, "e/E4", shared)
	return p, []string{"e/E1", "e/E2", "e/E3", "e/E4"}
}

func klasses(sess *model.Session, names []string) []*model.Klass {
	out := make([]*model.Klass, 0, len(names))
	for _, n := range names {
		out = append(out, sess.Klass(n))
	}
	return out
}

// TestBuild_MatchesBaseline tests that every entry's call graph equals the one
// a baseline run for that entry alone produces.
func TestBuild_MatchesBaseline(t *testing.T) {
	tests := []struct {
		name    string
		program func() (*modeltest.Program, []string)
	}{
		{name: "partial overlap", program: overlapping},
		{name: "no overlap", program: disjoint},
		{name: "dispatch edge in a shared layer", program: sharedDispatch},
		{
			name: "two entries fall back to baseline",
			program: func() (*modeltest.Program, []string) {
				p, names := overlapping()
				return p, names[:2]
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, names := tt.program()
			sess := model.NewSession(p)
			defer sess.Close()

			got := orta.Build(sess, klasses(sess, names))
			require.Len(t, got, len(names))
			for _, name := range names {
				k := sess.Klass(name)
				g, ok := got[k]
				require.True(t, ok, name)
				want := rta.BuildEntry(sess, k)
				if diff := cmp.Diff(want.EdgeSet(), g.EdgeSet()); diff != "" {
					t.Errorf("%s: edges mismatch (-baseline +orta):\n%s", name, diff)
				}
				assert.NotEmpty(t, g.EdgeSet(), name)
			}
		})
	}
}

// TestPlan_Forest tests the shape invariants of planned forests.
func TestPlan_Forest(t *testing.T) {
	tests := []struct {
		name      string
		program   func() (*modeltest.Program, []string)
		wantRoots int
		shared    bool
	}{
		{name: "partial overlap", program: overlapping, wantRoots: 1, shared: true},
		{name: "no overlap", program: disjoint, wantRoots: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, names := tt.program()
			sess := model.NewSession(p)
			defer sess.Close()

			f, err := orta.Plan(sess, klasses(sess, names))
			require.NoError(t, err)
			assert.Len(t, f.Entries(), len(names))
			assert.GreaterOrEqual(t, f.Keys(), len(names))

			nodes := f.Nodes()
			roots := 0
			placed := make(map[string]int)
			for i, n := range nodes {
				if n.Parent == -1 {
					roots++
				} else {
					require.Less(t, n.Parent, i, "parent listed after child")
					parent := nodes[n.Parent]
					assert.LessOrEqual(t, parent.Score, n.Score)
					assert.Subset(t, n.Entries, parent.Entries)
				}
				for _, in := range n.Initials {
					placed[in]++
				}
			}
			assert.Equal(t, tt.wantRoots, roots)
			require.Len(t, placed, len(names))
			for in, count := range placed {
				assert.Equal(t, 1, count, "entry %s placed more than once", in)
			}

			hasShared := false
			for _, n := range nodes {
				if n.Parent != -1 {
					hasShared = true
				}
			}
			assert.Equal(t, tt.shared, hasShared)
		})
	}
}

func TestPlan_TooFewEntries(t *testing.T) {
	p, names := overlapping()
	sess := model.NewSession(p)
	defer sess.Close()

	ks := klasses(sess, names)
	_, err := orta.Plan(sess, ks[:2])
	require.ErrorIs(t, err, orta.ErrTooFewEntries)

	// Duplicates count once.
	_, err = orta.Plan(sess, []*model.Klass{ks[0], ks[1], ks[0]})
	require.ErrorIs(t, err, orta.ErrTooFewEntries)
}

// TestImpactMap_Flatten tests which units an entry's flattened impact set
// records.
func TestImpactMap_Flatten(t *testing.T) {
	p, _ := overlapping()
	p.Class("a/Ghost").Unresolvable().
		Method("work", "()V", pub, modeltest.InvokeStatic("lib/Io", "write", "()V"))
	entry(p, "e/G", calls(modeltest.New("a/Ghost")))
	sess := model.NewSession(p)
	defer sess.Close()

	im := orta.NewImpactMap(sess)

	b := im.Flatten(model.InvocableMethods(sess.Klass("e/B")))
	assert.Equal(t, 1, b.Obj().Len())
	assert.Equal(t, 1, b.Dyn().Len())
	// Square.<init>, Object.<init>, Log.info and Fmt.format.
	assert.Equal(t, 4, b.Stat().Len())
	assert.Equal(t, 6, b.Cardinality())

	a := im.Flatten(model.InvocableMethods(sess.Klass("e/A")))
	assert.Equal(t, 7, a.Cardinality())
	assert.True(t, a.And(b).Equals(b))

	g := im.Flatten(model.InvocableMethods(sess.Klass("e/G")))
	assert.Equal(t, 0, g.Obj().Len())
	assert.Equal(t, 1, g.Stat().Len())
	assert.Equal(t, 1, g.Cardinality())

	for _, u := range im.ObjUnits() {
		assert.Equal(t, model.ObjectCreated, u.Kind)
	}
	for _, u := range im.DynUnits() {
		assert.Equal(t, model.DynamicInvoke, u.Kind)
	}
	for _, u := range im.StatUnits() {
		assert.Contains(t, []model.UnitKind{model.StaticInvoke, model.ClassInit}, u.Kind)
	}
}

// TestBuild_SharedDispatchEdge tests that an edge found by a shared layer
// reaches every entry below it, even though both of its methods were
// already visited further up the forest.
func TestBuild_SharedDispatchEdge(t *testing.T) {
	p, names := sharedDispatch()
	sess := model.NewSession(p)
	defer sess.Close()

	got := orta.Build(sess, klasses(sess, names))
	const dispatch = "a.X.run()V -> a.B.m()V"
	for _, name := range names[:3] {
		g := got[sess.Klass(name)]
		require.NotNil(t, g, name)
		assert.Contains(t, g.EdgeSet(), dispatch, name)
		assert.Contains(t, g.EdgeSet(), "a.Y.go()V -> a.B.m()V", name)
	}
	e4 := got[sess.Klass("e/E4")]
	require.NotNil(t, e4)
	assert.NotContains(t, e4.EdgeSet(), dispatch)
}

// randomProgram returns a program with a random class hierarchy whose method
// bodies create, dispatch to and call each other, plus three to eight entry
// classes built from the same instructions.
func randomProgram(r *rand.Rand) (*modeltest.Program, []string) {
	const methods = 3
	p := modeltest.NewProgram()
	classes := make([]string, 2+r.IntN(5))
	for i := range classes {
		classes[i] = fmt.Sprintf("r/C%d", i)
	}
	body := func() []model.Instruction {
		var code []model.Instruction
		for range 1 + r.IntN(4) {
			target := classes[r.IntN(len(classes))]
			name := fmt.Sprintf("m%d", r.IntN(methods))
			switch r.IntN(5) {
			case 0:
				code = append(code, modeltest.Construct(target)...)
			case 1:
				code = append(code, modeltest.New(target))
			case 2:
				code = append(code, modeltest.InvokeVirtual(target, name, "()V"))
			case 3:
				code = append(code, modeltest.InvokeSpecial(target, name, "()V"))
			default:
				code = append(code, modeltest.InvokeStatic("r/S", fmt.Sprintf("s%d", r.IntN(methods)), "()V"))
			}
		}
		return code
	}

	p.Interface("r/I").Method("m0", "()V", pub|model.AccAbstract)
	for i, name := range classes {
		c := p.Class(name)
		if i > 0 && r.IntN(2) == 0 {
			c.Extends(classes[r.IntN(i)])
		}
		if r.IntN(3) == 0 {
			c.Implements("r/I")
		}
		c.Constructor()
		for j := range methods {
			if r.IntN(3) > 0 {
				c.Method(fmt.Sprintf("m%d", j), "()V", pub, body()...)
			}
		}
	}
	s := p.Class("r/S")
	for j := range methods {
		s.Method(fmt.Sprintf("s%d", j), "()V", pub|model.AccStatic, body()...)
	}

	entries := make([]string, 3+r.IntN(6))
	for i := range entries {
		entries[i] = fmt.Sprintf("e/E%d", i)
		entry(p, entries[i], body())
	}
	return p, entries
}

// TestBuild_RandomPrograms tests on seeded random programs that every entry's
// call graph equals its baseline graph.
func TestBuild_RandomPrograms(t *testing.T) {
	const seeds = 300
	for seed := range uint64(seeds) {
		p, names := randomProgram(rand.New(rand.NewPCG(seed, 0x6f727461)))
		sess := model.NewSession(p)

		got := orta.Build(sess, klasses(sess, names))
		require.Len(t, got, len(names), "seed %d", seed)
		for _, name := range names {
			k := sess.Klass(name)
			want := rta.BuildEntry(sess, k)
			if diff := cmp.Diff(want.EdgeSet(), got[k].EdgeSet()); diff != "" {
				t.Errorf("seed %d, %s: edges mismatch (-baseline +orta):\n%s", seed, name, diff)
			}
		}
		sess.Close()
	}
}
