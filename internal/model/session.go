// Package model is the type, method and impact model of an analyzed program.
//
// A Session interns every class, descriptor, array type and impact unit it
// creates and memoizes method bodies. A session is not safe for concurrent
// use; parallel analyses use one session each over a shared ClassSource.
package model

import (
	"fmt"
	"io"
	"strings"
)

const fakeKlassName = "FakeKlass"

// Session owns all model values of one analysis.
type Session struct {
	source ClassSource

	classes     map[string]*Klass
	descriptors map[string]*Descriptor
	arrays      map[string]*ArrayType
	primitives  map[byte]*PrimitiveType

	units  *unitTable
	bodies map[*Method][]*Unit

	fakeKlass  *Klass
	essentials []*Klass
	closed     bool
}

// Stats counts the values interned by a session.
type Stats struct {
	Classes     int
	Descriptors int
	Units       int
	Bodies      int
}

// NewSession creates a session reading class facts from src.
func NewSession(src ClassSource) *Session {
	s := &Session{
		source:      src,
		classes:     make(map[string]*Klass),
		descriptors: make(map[string]*Descriptor),
		arrays:      make(map[string]*ArrayType),
		primitives:  make(map[byte]*PrimitiveType, len(primitiveNames)),
		units:       newUnitTable(),
		bodies:      make(map[*Method][]*Unit),
	}
	for c, name := range primitiveNames {
		s.primitives[c] = &PrimitiveType{desc: c, name: name}
	}
	s.fakeKlass = newKlass(s, fakeKlassName)
	s.fakeKlass.facts = fakeCallerFacts()
	return s
}

// Klass returns the interned class with the given name. The name may be an
// internal name ("java/lang/Object"), a dotted name ("java.lang.Object") or a
// class descriptor ("Ljava/lang/Object;").
func (s *Session) Klass(name string) *Klass {
	if name == fakeKlassName {
		return s.fakeKlass
	}
	internal := internalName(name)
	if k, ok := s.classes[internal]; ok {
		return k
	}
	k := newKlass(s, internal)
	s.classes[internal] = k
	return k
}

func internalName(name string) string {
	if len(name) > 2 && name[0] == 'L' && name[len(name)-1] == ';' {
		name = name[1 : len(name)-1]
	}
	return strings.ReplaceAll(name, ".", "/")
}

// Primitive returns the primitive type with the given descriptor character.
func (s *Session) Primitive(c byte) (*PrimitiveType, bool) {
	p, ok := s.primitives[c]
	return p, ok
}

// Descriptor returns the interned method descriptor for desc.
func (s *Session) Descriptor(desc string) (*Descriptor, error) {
	if d, ok := s.descriptors[desc]; ok {
		return d, nil
	}
	d, err := parseDescriptor(desc, s.TypeOf)
	if err != nil {
		return nil, err
	}
	s.descriptors[desc] = d
	return d, nil
}

func (s *Session) voidDescriptor() *Descriptor {
	d, err := s.Descriptor("()V")
	if err != nil {
		panic(err)
	}
	return d
}

// TypeOf returns the type named by a field descriptor such as "I",
// "Ljava/lang/String;" or "[[J".
func (s *Session) TypeOf(fieldDesc string) (Type, error) {
	if fieldDesc == "" {
		return nil, fmt.Errorf("empty field descriptor")
	}
	switch fieldDesc[0] {
	case '[':
		if a, ok := s.arrays[fieldDesc]; ok {
			return a, nil
		}
		dims := 0
		for dims < len(fieldDesc) && fieldDesc[dims] == '[' {
			dims++
		}
		elem, err := s.TypeOf(fieldDesc[dims:])
		if err != nil {
			return nil, err
		}
		if _, ok := elem.(*ArrayType); ok {
			return nil, fmt.Errorf("malformed array descriptor %q", fieldDesc)
		}
		a := &ArrayType{elem: elem, dims: dims}
		s.arrays[fieldDesc] = a
		return a, nil
	case 'L':
		if len(fieldDesc) < 3 || fieldDesc[len(fieldDesc)-1] != ';' {
			return nil, fmt.Errorf("malformed class descriptor %q", fieldDesc)
		}
		return s.Klass(fieldDesc[1 : len(fieldDesc)-1]), nil
	default:
		if len(fieldDesc) == 1 {
			if p, ok := s.primitives[fieldDesc[0]]; ok {
				return p, nil
			}
		}
		return nil, fmt.Errorf("unknown field descriptor %q", fieldDesc)
	}
}

// FakeKlass returns the synthetic class standing for every unknown caller.
func (s *Session) FakeKlass() *Klass { return s.fakeKlass }

// FakeCaller returns the root method of every call graph.
func (s *Session) FakeCaller() *Method { return s.fakeKlass.Methods()[0] }

// EssentialKlasses returns the classes the runtime may instantiate on its own.
func (s *Session) EssentialKlasses() []*Klass {
	if s.essentials == nil {
		for _, name := range essentialClassNames {
			s.essentials = append(s.essentials, s.Klass(name))
		}
	}
	return s.essentials
}

// Stats reports how many values the session has interned.
func (s *Session) Stats() Stats {
	return Stats{
		Classes:     len(s.classes),
		Descriptors: len(s.descriptors),
		Units:       s.units.len(),
		Bodies:      len(s.bodies),
	}
}

// Close drops everything the session interned and closes the class source
// when it implements io.Closer. Close is idempotent. A closed session can
// still be queried; classes are then interned afresh.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.classes = make(map[string]*Klass)
	s.descriptors = make(map[string]*Descriptor)
	s.arrays = make(map[string]*ArrayType)
	s.units = newUnitTable()
	s.bodies = make(map[*Method][]*Unit)
	if c, ok := s.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close class source: %w", err)
		}
	}
	return nil
}
