package model

import "strings"

const lambdaPrefix = "lambda$"

// lambdaKlass returns the synthetic class a dynamic call site instantiates:
// a public class implementing iface whose single method implName runs units.
// Identical call-site shapes share one class. It returns nil when the method
// handle has no effect, or when it targets a constructor of an interface the
// class source cannot provide.
func (s *Session) lambdaKlass(bootstrap, iface, implName string, invoked *Klass,
	invokedName, invokedDesc string, units []*Unit) *Klass {
	if len(units) == 0 {
		return nil
	}

	name := lambdaPrefix + strings.Join([]string{
		bootstrap, iface, implName, invoked.InternalName(), invokedName, invokedDesc,
	}, "#")
	if k, ok := s.classes[name]; ok {
		return k
	}

	itf := s.Klass(iface)
	concrete := itf.IsConcrete()
	desc := invokedDesc
	if invokedName == initName {
		if !concrete {
			return nil
		}
		methods := itf.Methods()
		if len(methods) == 0 {
			return nil
		}
		desc = methods[0].desc.String()
	}

	k := newKlass(s, name)
	k.facts = &ClassFacts{
		Name:       name,
		Super:      objectClass,
		Interfaces: []string{itf.InternalName()},
		Access:     AccPublic,
		Concrete:   concrete,
		Reachable:  concrete,
		Methods: []MethodFacts{{
			Name:       implName,
			Descriptor: desc,
			Access:     AccPublic,
		}},
	}
	s.classes[name] = k
	for _, m := range k.Methods() {
		s.bodies[m] = units
	}
	return k
}

// IsLambda reports whether k was synthesized for a dynamic call site.
func (k *Klass) IsLambda() bool { return strings.HasPrefix(k.internalName, lambdaPrefix) }
