package model

import (
	"errors"
	"log/slog"
	"strings"
)

const classInitName = "<clinit>"

// Klass is a class or interface interned by a Session. Facts are fetched from
// the class source on first use; superclass, interfaces and methods are
// linked lazily because class hierarchies reference each other cyclically.
type Klass struct {
	sess         *Session
	internalName string
	typeName     string
	pkg          string

	loaded      bool
	placeholder bool
	facts       *ClassFacts
	access      Access
	concrete    bool
	reachable   bool

	linked     bool
	super      *Klass
	interfaces []*Klass

	methodsBuilt bool
	methods      []*Method
	byName       map[string][]*Method

	concreteMemo  tristate
	reachableMemo tristate
}

type tristate uint8

const (
	unset tristate = iota
	inProgress
	yes
	no
)

func newKlass(sess *Session, internalName string) *Klass {
	typeName := strings.ReplaceAll(internalName, "/", ".")
	pkg := ""
	if i := strings.LastIndexByte(typeName, '.'); i >= 0 {
		pkg = typeName[:i]
	}
	return &Klass{
		sess:         sess,
		internalName: internalName,
		typeName:     typeName,
		pkg:          pkg,
	}
}

// load fetches the class facts, substituting an empty placeholder when the
// class cannot be found or is excluded.
func (k *Klass) load() {
	if k.loaded {
		return
	}
	k.loaded = true
	if k.facts != nil {
		k.apply(k.facts)
		return
	}

	facts, err := k.sess.source.Lookup(k.internalName)
	if err == nil && facts == nil {
		err = ErrClassNotFound
	}
	if err != nil {
		if errors.Is(err, ErrClassExcluded) {
			slog.Debug("excluded class", "class", k.internalName)
		} else {
			slog.Warn("class not found, using placeholder", "class", k.internalName, "error", err)
		}
		k.placeholder = true
		facts = &ClassFacts{
			Name:   k.internalName,
			Access: AccPublic | AccSuper,
		}
	}
	k.apply(facts)
}

func (k *Klass) apply(facts *ClassFacts) {
	k.facts = facts
	k.access = facts.Access
	k.concrete = facts.Concrete
	k.reachable = facts.Reachable
}

// link resolves the direct ancestors. An ancestor that leads back to k is
// dropped, and k is treated as unresolvable from then on.
func (k *Klass) link() {
	if k.linked {
		return
	}
	k.linked = true
	k.load()
	if k.facts.Super != "" {
		if s := k.sess.Klass(k.facts.Super); s.descendsFrom(k) {
			k.breakCycle(s)
		} else {
			k.super = s
		}
	}
	for _, name := range k.facts.Interfaces {
		itf := k.sess.Klass(name)
		if itf.descendsFrom(k) {
			k.breakCycle(itf)
			continue
		}
		k.interfaces = append(k.interfaces, itf)
	}
}

// descendsFrom reports whether target is k or one of k's linked ancestors.
func (k *Klass) descendsFrom(target *Klass) bool {
	seen := make(map[*Klass]struct{})
	queue := []*Klass{k}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == target {
			return true
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if s := c.Super(); s != nil {
			queue = append(queue, s)
		}
		queue = append(queue, c.Interfaces()...)
	}
	return false
}

func (k *Klass) breakCycle(ancestor *Klass) {
	slog.Warn("cyclic class hierarchy, dropping ancestor",
		"class", k.internalName, "ancestor", ancestor.internalName)
	k.concrete = false
	k.reachable = false
}

func (k *Klass) buildMethods() {
	if k.methodsBuilt {
		return
	}
	k.methodsBuilt = true
	k.load()
	k.byName = make(map[string][]*Method, len(k.facts.Methods))
	for i := range k.facts.Methods {
		mf := &k.facts.Methods[i]
		desc, err := k.sess.Descriptor(mf.Descriptor)
		if err != nil {
			slog.Warn("skipping method with malformed descriptor",
				"class", k.internalName, "method", mf.Name, "error", err)
			continue
		}
		m := &Method{
			owner:       k,
			name:        mf.Name,
			desc:        desc,
			access:      mf.Access,
			polymorphic: mf.PolymorphicSignature,
			code:        mf.Code,
		}
		k.methods = append(k.methods, m)
		k.byName[m.name] = append(k.byName[m.name], m)
	}
}

// InternalName returns the slash separated name, e.g. "java/lang/Object".
func (k *Klass) InternalName() string { return k.internalName }

// TypeName returns the dotted name, e.g. "java.lang.Object".
func (k *Klass) TypeName() string { return k.typeName }

// Package returns the dotted package name, empty for the default package.
func (k *Klass) Package() string { return k.pkg }

func (k *Klass) Descriptor() string { return "L" + k.internalName + ";" }

func (k *Klass) String() string { return k.typeName }

func (k *Klass) Access() Access {
	k.load()
	return k.access
}

func (k *Klass) IsInterface() bool { return k.Access().IsInterface() }
func (k *Klass) IsPublic() bool { return k.Access().IsPublic() }

// IsPlaceholder reports whether the class source could not supply this class.
func (k *Klass) IsPlaceholder() bool {
	k.load()
	return k.placeholder
}

// IsFake reports whether k is the session's fake caller class.
func (k *Klass) IsFake() bool { return k == k.sess.fakeKlass }

// Super returns the superclass, or nil.
func (k *Klass) Super() *Klass {
	k.link()
	return k.super
}

// Interfaces returns the directly implemented or extended interfaces.
func (k *Klass) Interfaces() []*Klass {
	k.link()
	return k.interfaces
}

// Methods returns the declared methods in declaration order.
func (k *Klass) Methods() []*Method {
	k.buildMethods()
	return k.methods
}

// IsConcrete reports whether the class and every ancestor are resolvable.
func (k *Klass) IsConcrete() bool {
	return k.checkAncestors(&k.concreteMemo, func(c *Klass) bool { return c.concrete },
		func(c *Klass) bool { return c.IsConcrete() })
}

// IsReachable reports whether the class and every ancestor are loadable.
func (k *Klass) IsReachable() bool {
	return k.checkAncestors(&k.reachableMemo, func(c *Klass) bool { return c.reachable },
		func(c *Klass) bool { return c.IsReachable() })
}

// checkAncestors evaluates own on k and recurse on each direct ancestor.
// A cyclic hierarchy evaluates to false.
func (k *Klass) checkAncestors(memo *tristate, own, recurse func(*Klass) bool) bool {
	switch *memo {
	case yes:
		return true
	case no, inProgress:
		return false
	}
	*memo = inProgress
	k.link()
	ok := own(k)
	if ok {
		if s := k.Super(); s != nil && !recurse(s) {
			ok = false
		}
	}
	if ok {
		for _, itf := range k.Interfaces() {
			if !recurse(itf) {
				ok = false
				break
			}
		}
	}
	if ok {
		*memo = yes
	} else {
		*memo = no
	}
	return ok
}

// Inherits reports whether k is other or a subtype of other.
func (k *Klass) Inherits(other *Klass) bool {
	if k == other {
		return true
	}
	if s := k.Super(); s != nil && s.Inherits(other) {
		return true
	}
	for _, itf := range k.Interfaces() {
		if itf.Inherits(other) {
			return true
		}
	}
	return false
}

func (k *Klass) IsCovariantOf(other Type) bool {
	o, ok := other.(*Klass)
	return ok && k.Inherits(o)
}

// ClassInitializer returns the static initializer, or nil.
func (k *Klass) ClassInitializer() *Method {
	k.buildMethods()
	list := k.byName[classInitName]
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	default:
		Invariantf("ClassInitializer", "%s declares %d class initializers", k.internalName, len(list))
		return nil
	}
}

// DeclaredMethod returns the method with exactly the given name and descriptor.
func (k *Klass) DeclaredMethod(name string, desc *Descriptor) *Method {
	k.buildMethods()
	for _, m := range k.byName[name] {
		if m.desc == desc {
			return m
		}
	}
	return nil
}

// closestMethod returns the declared method named name whose descriptor is
// the most specific covariant match of desc. A signature-polymorphic method
// matches any descriptor and wins immediately.
func (k *Klass) closestMethod(name string, desc *Descriptor) *Method {
	k.buildMethods()
	var best *Method
	for _, m := range k.byName[name] {
		if !m.polymorphic && !m.desc.IsCovariantOf(desc) {
			continue
		}
		if m.polymorphic {
			return m
		}
		if best == nil || m.desc.IsCovariantOf(best.desc) {
			best = m
		}
	}
	return best
}

// IsAccessibleTo reports whether code in class c may refer to k.
func (k *Klass) IsAccessibleTo(c *Klass) bool {
	if c == nil {
		return false
	}
	if c.IsFake() || k.IsPublic() {
		return true
	}
	return k.pkg == c.pkg
}
