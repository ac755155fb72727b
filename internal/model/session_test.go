package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/internal/model/modeltest"
)

// TestSession_KlassNaming tests that every accepted spelling of a class name
// yields the same interned class.
func TestSession_KlassNaming(t *testing.T) {
	sess := model.NewSession(modeltest.NewProgram())
	defer sess.Close()

	obj := sess.Klass("java/lang/Object")
	assert.Same(t, obj, sess.Klass("java.lang.Object"))
	assert.Same(t, obj, sess.Klass("Ljava/lang/Object;"))

	assert.Equal(t, "java.lang.Object", obj.TypeName())
	assert.Equal(t, "java/lang/Object", obj.InternalName())
	assert.Equal(t, "Ljava/lang/Object;", obj.Descriptor())
	assert.Equal(t, "java.lang", obj.Package())
	assert.False(t, obj.IsPlaceholder())

	assert.Equal(t, "", sess.Klass("Main").Package())
}

// TestSession_Placeholder tests the substitute used for unknown classes.
func TestSession_Placeholder(t *testing.T) {
	sess := model.NewSession(modeltest.NewProgram())
	defer sess.Close()

	missing := sess.Klass("com/example/Missing")
	assert.True(t, missing.IsPlaceholder())
	assert.False(t, missing.IsConcrete())
	assert.False(t, missing.IsReachable())
	assert.True(t, missing.IsPublic())
	assert.Empty(t, missing.Methods())
	assert.Nil(t, missing.Super())
	assert.Nil(t, missing.ClassInitializer())
}

func TestSession_TypeOf(t *testing.T) {
	sess := model.NewSession(modeltest.NewProgram())
	defer sess.Close()

	tests := []struct {
		name     string
		desc     string
		typeName string
	}{
		{name: "int", desc: "I", typeName: "Int"},
		{name: "void", desc: "V", typeName: "Void"},
		{name: "object", desc: "Ljava/lang/Object;", typeName: "java.lang.Object"},
		{name: "object matrix", desc: "[[Ljava/lang/Object;", typeName: "java.lang.Object[][]"},
		{name: "long matrix", desc: "[[J", typeName: "Long[][]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := sess.TypeOf(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.typeName, typ.TypeName())
			assert.Equal(t, tt.desc, typ.Descriptor())

			again, err := sess.TypeOf(tt.desc)
			require.NoError(t, err)
			assert.Same(t, typ, again)
		})
	}

	_, err := sess.TypeOf("Q")
	assert.Error(t, err)
}

func TestSession_Descriptor(t *testing.T) {
	sess := model.NewSession(modeltest.NewProgram())
	defer sess.Close()

	d, err := sess.Descriptor("(I[JLjava/lang/String;)V")
	require.NoError(t, err)
	require.Len(t, d.Params(), 3)
	assert.Equal(t, "Int", d.Params()[0].TypeName())
	assert.Equal(t, "Long[]", d.Params()[1].TypeName())
	assert.Equal(t, "java.lang.String", d.Params()[2].TypeName())
	assert.Equal(t, "Void", d.Return().TypeName())

	again, err := sess.Descriptor("(I[JLjava/lang/String;)V")
	require.NoError(t, err)
	assert.Same(t, d, again)

	for _, bad := range []string{"", "I", "(I", "()", "(X)V", "(Ljava/lang/Object)V", "()VV"} {
		_, err := sess.Descriptor(bad)
		assert.Error(t, err, bad)
	}
}

// TestSession_DescriptorCovariance tests return-type covariance with exact parameters.
func TestSession_DescriptorCovariance(t *testing.T) {
	p := modeltest.NewProgram()
	p.Class("java/lang/String")
	sess := model.NewSession(p)
	defer sess.Close()

	desc := func(s string) *model.Descriptor {
		d, err := sess.Descriptor(s)
		require.NoError(t, err)
		return d
	}

	assert.True(t, desc("()Ljava/lang/String;").IsCovariantOf(desc("()Ljava/lang/Object;")))
	assert.False(t, desc("()Ljava/lang/Object;").IsCovariantOf(desc("()Ljava/lang/String;")))
	assert.False(t, desc("(Ljava/lang/String;)V").IsCovariantOf(desc("(Ljava/lang/Object;)V")))
	assert.True(t, desc("()[Ljava/lang/String;").IsCovariantOf(desc("()[Ljava/lang/Object;")))
	assert.False(t, desc("()[[Ljava/lang/String;").IsCovariantOf(desc("()[Ljava/lang/Object;")))
	assert.False(t, desc("()I").IsCovariantOf(desc("()J")))
}

func TestKlass_Hierarchy(t *testing.T) {
	p := modeltest.NewProgram()
	p.Interface("a/I")
	p.Interface("a/J").Implements("a/I")
	p.Class("a/B").Implements("a/J")
	p.Class("a/C").Extends("a/B")
	p.Class("a/D").Extends("a/Missing")
	sess := model.NewSession(p)
	defer sess.Close()

	c := sess.Klass("a/C")
	assert.True(t, c.Inherits(c))
	assert.True(t, c.Inherits(sess.Klass("a/B")))
	assert.True(t, c.Inherits(sess.Klass("a/I")))
	assert.True(t, c.Inherits(sess.Klass("java/lang/Object")))
	assert.False(t, sess.Klass("a/B").Inherits(c))
	assert.True(t, c.IsConcrete())
	assert.True(t, c.IsReachable())

	d := sess.Klass("a/D")
	assert.False(t, d.IsConcrete(), "a class with an unknown ancestor is not concrete")
	assert.False(t, d.IsReachable())
}

// TestKlass_CyclicHierarchy tests that hierarchy walks terminate on classes
// and interfaces inheriting from themselves, and that the classes involved
// are treated as unresolvable.
func TestKlass_CyclicHierarchy(t *testing.T) {
	p := modeltest.NewProgram()
	p.Class("a/X").Extends("a/Y").Method("f", "()V", pub)
	p.Class("a/Y").Extends("a/X").Method("g", "()V", pub)
	p.Class("a/Self").Extends("a/Self").Method("h", "()V", pub)
	p.Interface("a/I").Implements("a/J")
	p.Interface("a/J").Implements("a/I")
	p.Class("a/Z").Implements("a/I").Method("k", "()V", pub)
	sess := model.NewSession(p)
	defer sess.Close()

	x, y := sess.Klass("a/X"), sess.Klass("a/Y")
	assert.False(t, x.IsConcrete())
	assert.False(t, y.IsConcrete())
	assert.False(t, x.IsReachable())
	assert.False(t, x.Inherits(sess.Klass("java/lang/Object")))
	assert.True(t, y.Inherits(x))
	assert.Contains(t, signatures(model.InvocableMethods(x)), "a.X.f()V")
	assert.Contains(t, signatures(model.InvocableMethods(y)), "a.Y.g()V")
	desc, err := sess.Descriptor("()V")
	require.NoError(t, err)
	assert.Nil(t, model.ResolveMethod(x, "missing", desc))

	self := sess.Klass("a/Self")
	assert.Nil(t, self.Super())
	assert.False(t, self.IsConcrete())
	assert.Equal(t, []string{"a.Self.h()V"}, signatures(model.InvocableMethods(self)))

	z := sess.Klass("a/Z")
	assert.True(t, z.Inherits(sess.Klass("a/I")))
	assert.False(t, z.Inherits(sess.Klass("a/Missing")))
	assert.False(t, z.IsConcrete())
	assert.Nil(t, model.ResolveMethod(z, "missing", desc))
	assert.Contains(t, signatures(model.InvocableMethods(z)), "a.Z.k()V")
}

// TestKlass_DuplicateClassInitializer tests that a class with two static
// initializers is reported as an invariant violation.
func TestKlass_DuplicateClassInitializer(t *testing.T) {
	p := modeltest.NewProgram()
	p.Class("a/Bad").
		Method("<clinit>", "()V", model.AccStatic).
		Method("<clinit>", "()V", model.AccStatic)
	sess := model.NewSession(p)
	defer sess.Close()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ierr, ok := r.(*model.InvariantError)
		require.True(t, ok, "unexpected panic value %v", r)
		assert.Contains(t, ierr.Error(), "a/Bad")
	}()
	sess.Klass("a/Bad").ClassInitializer()
}

func TestSession_FakeCaller(t *testing.T) {
	sess := model.NewSession(modeltest.NewProgram())
	defer sess.Close()

	fake := sess.FakeCaller()
	assert.Equal(t, "FakeKlass.FakeCaller(LFakeKlass;)V", fake.Signature())
	assert.Same(t, sess.FakeKlass(), sess.Klass("FakeKlass"))
	assert.True(t, fake.Owner().IsFake())
	assert.False(t, fake.Owner().IsConcrete())
	assert.True(t, sess.IsToolEdge(fake, fake))

	var got []string
	for _, u := range sess.Impacts(fake) {
		got = append(got, u.String())
	}
	assert.Contains(t, got, "dynamic java.lang.Object.toString()Ljava/lang/String;")
	assert.Contains(t, got, "dynamic java.lang.Object.clone()Ljava/lang/Object;")
	assert.Contains(t, got, "object java.lang.Object")
	assert.Contains(t, got, "static java.lang.Object.<init>()V")
	assert.Contains(t, got, "object java.lang.ArithmeticException")

	essentials := sess.EssentialKlasses()
	require.Len(t, essentials, 7)
	assert.Equal(t, "java.lang.Object", essentials[0].TypeName())
}

func TestSession_Close(t *testing.T) {
	sess := model.NewSession(modeltest.NewProgram())
	obj := sess.Klass("java/lang/Object")
	obj.Methods()
	assert.Positive(t, sess.Stats().Classes)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Zero(t, sess.Stats().Classes)

	// Values retained across Close stay usable.
	assert.NotPanics(t, func() {
		sess.Klass("a/Late")
		_, err := sess.Descriptor("(I)V")
		require.NoError(t, err)
		_, err = sess.TypeOf("[J")
		require.NoError(t, err)
		for _, m := range obj.Methods() {
			sess.Impacts(m)
		}
		sess.Impacts(sess.FakeCaller())
	})
}

func TestParseAccess(t *testing.T) {
	acc, err := model.ParseAccess([]string{"public", "Abstract", " interface "})
	require.NoError(t, err)
	assert.True(t, acc.IsPublic())
	assert.True(t, acc.IsAbstract())
	assert.True(t, acc.IsInterface())
	assert.Equal(t, "public interface abstract", acc.String())

	_, err = model.ParseAccess([]string{"volatile"})
	assert.Error(t, err)
}
