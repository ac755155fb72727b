package model

// ResolveMethod resolves an invocation of name/desc on owner following JVM
// linkage: an exact match up the superclass chain, then the most specific
// exact default method, then the closest covariant match up the superclass
// chain, then the closest covariant default method. It returns nil when
// nothing matches.
func ResolveMethod(owner *Klass, name string, desc *Descriptor) *Method {
	r := &methodResolver{owner: owner, name: name, desc: desc, seen: make(map[*Klass]struct{})}
	return r.resolve()
}

type methodResolver struct {
	owner *Klass
	name  string
	desc  *Descriptor

	// interfaces collected in discovery order by the default-method walk.
	interfaces []*Klass
	seen       map[*Klass]struct{}
}

func (r *methodResolver) resolve() *Method {
	if m := r.superChain(func(k *Klass) *Method { return k.DeclaredMethod(r.name, r.desc) }); m != nil {
		return m
	}
	if m := r.exactDefault(); m != nil {
		return m
	}
	if m := r.superChain(func(k *Klass) *Method { return k.closestMethod(r.name, r.desc) }); m != nil {
		return m
	}
	return r.closestDefault()
}

func (r *methodResolver) superChain(get func(*Klass) *Method) *Method {
	for k := r.owner; k != nil; k = k.Super() {
		if m := get(k); m != nil {
			return m
		}
	}
	return nil
}

// exactDefault walks the hierarchy breadth first and keeps the most derived
// interface method with exactly the requested descriptor.
func (r *methodResolver) exactDefault() *Method {
	var selected *Method
	queue := []*Klass{r.owner}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		if k.IsInterface() {
			if m := k.DeclaredMethod(r.name, r.desc); m != nil {
				if selected == nil || selected.IsOverriddenBy(m) {
					selected = m
				}
			}
		}
		if s := k.Super(); s != nil {
			queue = append(queue, s)
		}
		for _, itf := range k.Interfaces() {
			if _, ok := r.seen[itf]; ok {
				continue
			}
			r.seen[itf] = struct{}{}
			r.interfaces = append(r.interfaces, itf)
			queue = append(queue, itf)
		}
	}
	if selected == nil || !selected.IsImplementation() {
		return nil
	}
	return selected
}

func (r *methodResolver) closestDefault() *Method {
	var selected *Method
	for _, itf := range r.interfaces {
		m := itf.closestMethod(r.name, r.desc)
		if m == nil {
			continue
		}
		if selected == nil || m.IsOverriding(selected) {
			selected = m
		}
	}
	return selected
}

type selectorKey struct {
	name string
	desc *Descriptor
}

// InvocableMethods returns every non-private implementation a receiver of
// type k can dispatch to: its own methods, inherited superclass methods that
// are not overridden and default methods from all superinterfaces, where a
// class method always wins over a default and a more derived default wins
// over the one it overrides.
func InvocableMethods(k *Klass) []*Method {
	var order []selectorKey
	table := make(map[selectorKey]*Method)
	put := func(m *Method) {
		key := selectorKey{m.name, m.desc}
		if _, ok := table[key]; !ok {
			order = append(order, key)
		}
		table[key] = m
	}

	seen := make(map[*Klass]struct{})
	var interfaces []*Klass
	addInterfaces := func(c *Klass) {
		for _, itf := range c.Interfaces() {
			if _, ok := seen[itf]; !ok {
				seen[itf] = struct{}{}
				interfaces = append(interfaces, itf)
			}
		}
	}

	for _, m := range k.Methods() {
		if m.IsImplementation() && !m.access.IsPrivate() {
			put(m)
		}
	}
	addInterfaces(k)

	for c := k.Super(); c != nil; c = c.Super() {
		for _, m := range c.Methods() {
			if !m.IsImplementation() || m.access.IsPrivate() {
				continue
			}
			if _, ok := table[selectorKey{m.name, m.desc}]; ok {
				continue
			}
			put(m)
		}
		addInterfaces(c)
	}

	// Depth first over the interface lattice; newly found superinterfaces are
	// pushed to the front.
	stack := append([]*Klass(nil), interfaces...)
	for len(stack) > 0 {
		itf := stack[0]
		stack = stack[1:]
		for _, m := range itf.Methods() {
			if !m.IsImplementation() {
				continue
			}
			old, ok := table[selectorKey{m.name, m.desc}]
			switch {
			case !ok:
				put(m)
			case !old.owner.IsInterface():
			case old.IsOverriddenBy(m):
				put(m)
			}
		}
		for _, sup := range itf.Interfaces() {
			if _, ok := seen[sup]; ok {
				continue
			}
			seen[sup] = struct{}{}
			stack = append([]*Klass{sup}, stack...)
		}
	}

	methods := make([]*Method, 0, len(order))
	for _, key := range order {
		methods = append(methods, table[key])
	}
	return methods
}
