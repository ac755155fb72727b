package analysis

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/ortacg/internal/model"
)

// NameCache memoizes display names of classes and methods. It is safe for
// concurrent use.
type NameCache struct {
	methodCache *xsync.Map[*model.Method, string]
	klassCache  *xsync.Map[*model.Klass, string]
}

func NewNameCache() *NameCache {
	return &NameCache{
		methodCache: xsync.NewMap[*model.Method, string](),
		klassCache:  xsync.NewMap[*model.Klass, string](),
	}
}

// ComputeMethodName renders a method the way Java source declares it, e.g.
// "int a.Square.area()" or "void java.io.PrintStream.println(java.lang.String)".
func (c *NameCache) ComputeMethodName(m *model.Method) string {
	if m == nil {
		return ""
	}
	name, ok := c.methodCache.Load(m)
	if ok {
		return name
	}
	name = computeMethodName(m)
	c.methodCache.Store(m, name)
	return name
}

// ComputeClassName returns the simple name of a class: "Square" for
// "a.Square" and "Map$Entry" for "java.util.Map$Entry".
func (c *NameCache) ComputeClassName(k *model.Klass) string {
	if k == nil {
		return ""
	}
	name, ok := c.klassCache.Load(k)
	if ok {
		return name
	}
	name = computeClassName(k)
	c.klassCache.Store(k, name)
	return name
}

func computeMethodName(m *model.Method) string {
	var b strings.Builder
	b.Grow(96)
	b.WriteString(sourceTypeName(m.Desc().Return()))
	b.WriteByte(' ')
	b.WriteString(m.Owner().TypeName())
	b.WriteByte('.')
	b.WriteString(m.Name())
	b.WriteByte('(')
	for i, p := range m.Desc().Params() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sourceTypeName(p))
	}
	b.WriteByte(')')
	return b.String()
}

var keywords = map[string]string{
	"V": "void", "Z": "boolean", "B": "byte", "C": "char", "S": "short",
	"I": "int", "J": "long", "F": "float", "D": "double",
}

func sourceTypeName(t model.Type) string {
	switch t := t.(type) {
	case *model.PrimitiveType:
		return keywords[t.Descriptor()]
	case *model.ArrayType:
		return sourceTypeName(t.Elem()) + strings.Repeat("[]", t.Dims())
	default:
		return t.TypeName()
	}
}

func computeClassName(k *model.Klass) string {
	name := k.TypeName()
	if k.IsLambda() {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
