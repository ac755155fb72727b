package model

import (
	"log/slog"
	"strings"
)

const objectClass = "java/lang/Object"

// Builder accumulates the deduplicated impact units of one method body.
type Builder struct {
	sess  *Session
	units []*Unit
	seen  map[*Unit]struct{}
}

// NewBuilder returns an empty builder whose units are interned in s.
func (s *Session) NewBuilder() *Builder {
	return &Builder{sess: s, seen: make(map[*Unit]struct{})}
}

// Units returns the collected units in first-added order.
func (b *Builder) Units() []*Unit { return b.units }

func (b *Builder) add(u *Unit) {
	if _, ok := b.seen[u]; ok {
		return
	}
	b.seen[u] = struct{}{}
	b.units = append(b.units, u)
}

// classInit adds a ClassInit unit for k and each of its superclasses and superinterfaces.
func (b *Builder) classInit(k *Klass) {
	visited := map[*Klass]struct{}{k: {}}
	queue := []*Klass{k}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		b.add(b.sess.units.classInit(c))

		next := c.Interfaces()
		if s := c.Super(); s != nil {
			next = append(next[:len(next):len(next)], s)
		}
		for _, n := range next {
			if _, ok := visited[n]; !ok {
				visited[n] = struct{}{}
				queue = append(queue, n)
			}
		}
	}
}

func (b *Builder) singleInvoke(m *Method) {
	if m == nil {
		return
	}
	if m.name == initName {
		// Constructor chaining through super() also initializes the declaring class.
		b.classInit(m.owner)
	}
	b.add(b.sess.units.static(m))
}

func (b *Builder) object(k *Klass) {
	b.classInit(k)
	b.add(b.sess.units.object(k))
}

// CreateObject records an instantiation of k.
func (b *Builder) CreateObject(k *Klass) *Builder {
	b.object(k)
	return b
}

// InvokeDefaultConstructor records "new k()".
func (b *Builder) InvokeDefaultConstructor(k *Klass) *Builder {
	b.object(k)
	b.singleInvoke(ResolveMethod(k, initName, b.sess.voidDescriptor()))
	return b
}

// InvokeStatic records a static call, which also initializes the owner.
func (b *Builder) InvokeStatic(owner *Klass, name string, desc *Descriptor) *Builder {
	b.classInit(owner)
	b.singleInvoke(ResolveMethod(owner, name, desc))
	return b
}

// InvokeSpecial records a constructor, private or super call.
func (b *Builder) InvokeSpecial(owner *Klass, name string, desc *Descriptor) *Builder {
	b.singleInvoke(ResolveMethod(owner, name, desc))
	return b
}

// InvokeVirtual records a virtual call to be resolved against instantiated types.
func (b *Builder) InvokeVirtual(owner *Klass, name string, desc *Descriptor) *Builder {
	b.add(b.sess.units.dynamic(owner, name, desc))
	return b
}

// InvokeInterface records an interface call to be resolved against instantiated types.
func (b *Builder) InvokeInterface(owner *Klass, name string, desc *Descriptor) *Builder {
	b.add(b.sess.units.dynamic(owner, name, desc))
	return b
}

// ReferenceType records a static field access on k.
func (b *Builder) ReferenceType(k *Klass) *Builder {
	b.classInit(k)
	return b
}

// Impacts returns the impact units of m's body, translating its code on the
// first call and memoizing the result for the session's lifetime.
func (s *Session) Impacts(m *Method) []*Unit {
	if units, ok := s.bodies[m]; ok {
		return units
	}
	b := s.NewBuilder()
	for _, in := range m.code {
		s.translate(b, m, in)
	}
	s.bodies[m] = b.units
	return b.units
}

func isArrayOwner(owner string) bool { return strings.HasPrefix(owner, "[") }

func (s *Session) translate(b *Builder, m *Method, in Instruction) {
	switch in.Op {
	case OpNew:
		if isArrayOwner(in.Owner) {
			return
		}
		b.CreateObject(s.Klass(in.Owner))

	case OpLdcString:
		b.CreateObject(s.Klass("java/lang/String"))

	case OpGetStatic, OpPutStatic:
		if isArrayOwner(in.Owner) {
			return
		}
		b.ReferenceType(s.Klass(in.Owner))

	case OpInvokeStatic, OpInvokeSpecial, OpInvokeVirtual, OpInvokeInterface:
		desc, err := s.Descriptor(in.Desc)
		if err != nil {
			slog.Warn("skipping instruction", "method", m.Signature(), "instruction", in.String(), "error", err)
			return
		}
		if isArrayOwner(in.Owner) {
			b.InvokeSpecial(s.Klass(objectClass), in.Name, desc)
			return
		}
		owner := s.Klass(in.Owner)
		switch in.Op {
		case OpInvokeStatic:
			b.InvokeStatic(owner, in.Name, desc)
		case OpInvokeSpecial:
			b.InvokeSpecial(owner, in.Name, desc)
		case OpInvokeVirtual:
			b.InvokeVirtual(owner, in.Name, desc)
		case OpInvokeInterface:
			b.InvokeInterface(owner, in.Name, desc)
		}

	case OpInvokeDynamic:
		s.translateDynamic(b, m, in)

	default:
		slog.Warn("unknown instruction", "method", m.Signature(), "instruction", in.String())
	}
}

// translateDynamic models an invokedynamic call site: the bootstrap class is
// initialized and every method handle argument yields a synthetic class
// implementing the call site's functional interface.
func (s *Session) translateDynamic(b *Builder, m *Method, in Instruction) {
	bootstrap := s.Klass(in.Bootstrap)
	b.ReferenceType(bootstrap)

	site, err := s.Descriptor(in.Desc)
	if err != nil {
		slog.Warn("skipping invokedynamic", "method", m.Signature(), "error", err)
		return
	}
	iface, ok := site.Return().(*Klass)
	if !ok {
		slog.Warn("invokedynamic does not produce an object", "method", m.Signature(), "desc", in.Desc)
		return
	}

	for _, h := range in.Handles {
		if isArrayOwner(h.Owner) {
			return
		}
		owner := s.Klass(h.Owner)
		inner := s.NewBuilder()
		if h.Kind == HandleGetStatic || h.Kind == HandlePutStatic {
			inner.ReferenceType(owner)
		} else if desc, err := s.Descriptor(h.Desc); err != nil {
			slog.Warn("skipping method handle", "method", m.Signature(), "handle", h.Name, "error", err)
			continue
		} else if !s.applyHandle(inner, h, owner, desc) {
			slog.Warn("unknown method handle kind", "method", m.Signature(), "kind", h.Kind.String())
			continue
		}

		if created := s.lambdaKlass(bootstrap.TypeName(), iface.InternalName(), in.Name,
			owner, h.Name, h.Desc, inner.Units()); created != nil {
			b.CreateObject(created)
		}
	}
}

// applyHandle records the invocation a method handle performs. It reports
// false for unknown handle kinds.
func (s *Session) applyHandle(inner *Builder, h Handle, owner *Klass, desc *Descriptor) bool {
	switch h.Kind {
	case HandleInvokeInterface:
		inner.InvokeInterface(owner, h.Name, desc)
	case HandleInvokeSpecial:
		inner.InvokeSpecial(owner, h.Name, desc)
	case HandleInvokeStatic:
		inner.InvokeStatic(owner, h.Name, desc)
	case HandleInvokeVirtual:
		inner.InvokeVirtual(owner, h.Name, desc)
	case HandleNewInvokeSpecial:
		inner.CreateObject(owner)
		inner.InvokeSpecial(owner, h.Name, desc)
	default:
		return false
	}
	return true
}
