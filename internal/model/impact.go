package model

import (
	"fmt"
	"log/slog"
)

// UnitKind enumerates the impact unit variants.
type UnitKind uint8

const (
	// ObjectCreated records an instantiation of Type.
	ObjectCreated UnitKind = iota + 1
	// StaticInvoke records a statically bound call of Method.
	StaticInvoke
	// DynamicInvoke records a virtual or interface call of Name/Desc on receiver Type.
	DynamicInvoke
	// ClassInit records that Type's static initializer may run.
	ClassInit
)

func (k UnitKind) String() string {
	switch k {
	case ObjectCreated:
		return "object"
	case StaticInvoke:
		return "static"
	case DynamicInvoke:
		return "dynamic"
	case ClassInit:
		return "clinit"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Unit is one potential effect of executing a method body. Units are
// interned per session: equal units are the same pointer.
type Unit struct {
	Kind   UnitKind
	Type   *Klass
	Method *Method
	Name   string
	Desc   *Descriptor
}

func (u *Unit) String() string {
	switch u.Kind {
	case StaticInvoke:
		return fmt.Sprintf("%s %s", u.Kind, u.Method)
	case DynamicInvoke:
		return fmt.Sprintf("%s %s.%s%s", u.Kind, u.Type, u.Name, u.Desc)
	default:
		return fmt.Sprintf("%s %s", u.Kind, u.Type)
	}
}

// ResolveCallee resolves a DynamicInvoke unit against an instantiated
// receiver type. A nil caller stands for an unknown caller and only reaches
// public methods. It returns nil when the receiver is not concrete or no
// accessible implementation exists.
func (u *Unit) ResolveCallee(receiver *Klass, caller *Method) *Method {
	if !receiver.IsConcrete() {
		return nil
	}
	m := ResolveMethod(receiver, u.Name, u.Desc)
	if m == nil {
		slog.Warn("unresolved dynamic call", "receiver", receiver.TypeName(), "method", u.Name+u.Desc.String())
		return nil
	}
	if !m.IsImplementation() {
		return nil
	}
	if caller == nil {
		if !m.access.IsPublic() {
			return nil
		}
		return m
	}
	if !m.IsAccessibleTo(caller) {
		return nil
	}
	return m
}

type dynamicKey struct {
	receiver *Klass
	name     string
	desc     *Descriptor
}

// unitTable interns impact units for one session.
type unitTable struct {
	objects  map[*Klass]*Unit
	inits    map[*Klass]*Unit
	statics  map[*Method]*Unit
	dynamics map[dynamicKey]*Unit
}

func newUnitTable() *unitTable {
	return &unitTable{
		objects:  make(map[*Klass]*Unit),
		inits:    make(map[*Klass]*Unit),
		statics:  make(map[*Method]*Unit),
		dynamics: make(map[dynamicKey]*Unit),
	}
}

func (t *unitTable) object(k *Klass) *Unit {
	u, ok := t.objects[k]
	if !ok {
		u = &Unit{Kind: ObjectCreated, Type: k}
		t.objects[k] = u
	}
	return u
}

func (t *unitTable) classInit(k *Klass) *Unit {
	u, ok := t.inits[k]
	if !ok {
		u = &Unit{Kind: ClassInit, Type: k}
		t.inits[k] = u
	}
	return u
}

func (t *unitTable) static(m *Method) *Unit {
	u, ok := t.statics[m]
	if !ok {
		u = &Unit{Kind: StaticInvoke, Method: m}
		t.statics[m] = u
	}
	return u
}

func (t *unitTable) dynamic(k *Klass, name string, desc *Descriptor) *Unit {
	key := dynamicKey{k, name, desc}
	u, ok := t.dynamics[key]
	if !ok {
		u = &Unit{Kind: DynamicInvoke, Type: k, Name: name, Desc: desc}
		t.dynamics[key] = u
	}
	return u
}

func (t *unitTable) len() int {
	return len(t.objects) + len(t.inits) + len(t.statics) + len(t.dynamics)
}
