package model

import (
	"fmt"
	"strings"
)

// Descriptor is an interned method descriptor: parameter types and a return type.
type Descriptor struct {
	raw    string
	params []Type
	ret    Type
}

func (d *Descriptor) String() string { return d.raw }
func (d *Descriptor) Params() []Type { return d.params }
func (d *Descriptor) Return() Type { return d.ret }

// SameParams reports whether both descriptors take exactly the same parameter types.
func (d *Descriptor) SameParams(o *Descriptor) bool {
	if len(d.params) != len(o.params) {
		return false
	}
	for i := range d.params {
		if d.params[i] != o.params[i] {
			return false
		}
	}
	return true
}

// IsCovariantOf reports whether d can satisfy a call expecting o: the
// parameters match exactly and the return type is covariant.
func (d *Descriptor) IsCovariantOf(o *Descriptor) bool {
	return d.SameParams(o) && d.ret.IsCovariantOf(o.ret)
}

// parseDescriptor splits a method descriptor into field descriptors and
// resolves each through typeOf.
func parseDescriptor(desc string, typeOf func(string) (Type, error)) (*Descriptor, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("malformed method descriptor %q", desc)
	}
	end := strings.IndexByte(desc, ')')
	if end < 0 {
		return nil, fmt.Errorf("malformed method descriptor %q: missing ')'", desc)
	}

	d := &Descriptor{raw: desc}
	rest := desc[1:end]
	for rest != "" {
		n, err := fieldLength(rest)
		if err != nil {
			return nil, fmt.Errorf("method descriptor %q: %w", desc, err)
		}
		t, err := typeOf(rest[:n])
		if err != nil {
			return nil, err
		}
		d.params = append(d.params, t)
		rest = rest[n:]
	}

	ret := desc[end+1:]
	n, err := fieldLength(ret)
	if err != nil || n != len(ret) {
		return nil, fmt.Errorf("method descriptor %q: bad return type", desc)
	}
	t, err := typeOf(ret)
	if err != nil {
		return nil, err
	}
	d.ret = t
	return d, nil
}

// fieldLength returns the length of the field descriptor at the start of s.
func fieldLength(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i == len(s) {
		return 0, fmt.Errorf("truncated field descriptor %q", s)
	}
	switch s[i] {
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi < 0 {
			return 0, fmt.Errorf("unterminated class descriptor %q", s)
		}
		return i + semi + 1, nil
	default:
		if _, ok := primitiveNames[s[i]]; !ok {
			return 0, fmt.Errorf("unknown descriptor character %q in %q", s[i], s)
		}
		return i + 1, nil
	}
}
