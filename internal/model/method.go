package model

const initName = "<init>"

// Method is a declared method. Identity is pointer identity within a session,
// which matches (declaring class, name, descriptor).
type Method struct {
	owner       *Klass
	name        string
	desc        *Descriptor
	access      Access
	polymorphic bool
	code        []Instruction
}

func (m *Method) Owner() *Klass { return m.owner }
func (m *Method) Name() string { return m.name }
func (m *Method) Desc() *Descriptor { return m.desc }
func (m *Method) Access() Access { return m.access }
func (m *Method) Code() []Instruction { return m.code }
func (m *Method) IsPolymorphicSignature() bool { return m.polymorphic }

// Selector returns name+descriptor, e.g. "toString()Ljava/lang/String;".
func (m *Method) Selector() string { return m.name + m.desc.String() }

// Signature returns the dotted owner and selector, e.g. "java.lang.Object.hashCode()I".
func (m *Method) Signature() string { return m.owner.TypeName() + "." + m.Selector() }

func (m *Method) String() string { return m.Signature() }

// IsImplementation reports whether the method has a body.
func (m *Method) IsImplementation() bool { return !m.access.IsAbstract() }

func (m *Method) IsReachable() bool { return m.owner.IsReachable() }

// IsOverriding reports whether m overrides other: same name and parameters,
// covariant return type and a declaring class that inherits other's.
// A method overrides itself.
func (m *Method) IsOverriding(other *Method) bool {
	if m == other {
		return true
	}
	if m.name != other.name || !m.desc.SameParams(other.desc) {
		return false
	}
	if !m.desc.ret.IsCovariantOf(other.desc.ret) {
		return false
	}
	return m.owner.Inherits(other.owner)
}

func (m *Method) IsOverriddenBy(other *Method) bool { return other.IsOverriding(m) }

// IsAccessibleTo reports whether caller may invoke m. A nil caller has no
// access; the fake caller may invoke anything.
func (m *Method) IsAccessibleTo(caller *Method) bool {
	if caller == nil {
		return false
	}
	callerKlass := caller.owner
	if callerKlass.IsFake() || m.access.IsPublic() {
		return true
	}
	if m.owner == callerKlass {
		return true
	}
	if m.access.IsPrivate() {
		return false
	}
	if m.owner.Package() == callerKlass.Package() {
		return true
	}
	return m.access.IsProtected() && callerKlass.Inherits(m.owner)
}
