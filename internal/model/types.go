package model

import "strings"

// Type is anything that may appear in a method descriptor.
type Type interface {
	// TypeName returns the source-level name, e.g. "java.lang.Object", "Int" or "Long[][]".
	TypeName() string
	// Descriptor returns the type descriptor, e.g. "Ljava/lang/Object;", "I" or "[[J".
	Descriptor() string
	// IsCovariantOf reports whether a value of this type may stand where other is expected.
	IsCovariantOf(other Type) bool
}

// PrimitiveType is one of the JVM primitive types, including void.
type PrimitiveType struct {
	desc byte
	name string
}

var primitiveNames = map[byte]string{
	'I': "Int",
	'V': "Void",
	'Z': "Boolean",
	'B': "Byte",
	'C': "Char",
	'S': "Short",
	'D': "Double",
	'F': "Float",
	'J': "Long",
}

func (p *PrimitiveType) TypeName() string { return p.name }
func (p *PrimitiveType) Descriptor() string { return string(p.desc) }

func (p *PrimitiveType) IsCovariantOf(other Type) bool {
	o, ok := other.(*PrimitiveType)
	return ok && o.desc == p.desc
}

// ArrayType is an array of Elem with Dims dimensions.
type ArrayType struct {
	elem Type
	dims int
}

func (a *ArrayType) Elem() Type { return a.elem }
func (a *ArrayType) Dims() int { return a.dims }

func (a *ArrayType) TypeName() string {
	return a.elem.TypeName() + strings.Repeat("[]", a.dims)
}

func (a *ArrayType) Descriptor() string {
	return strings.Repeat("[", a.dims) + a.elem.Descriptor()
}

// IsCovariantOf requires the same number of dimensions and covariant element types.
func (a *ArrayType) IsCovariantOf(other Type) bool {
	o, ok := other.(*ArrayType)
	if !ok || o.dims != a.dims {
		return false
	}
	return a.elem.IsCovariantOf(o.elem)
}
