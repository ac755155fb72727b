package model

import (
	"fmt"
	"strings"
)

// Access holds class or method access flags using the class-file bit values.
type Access uint16

const (
	AccPublic    Access = 0x0001
	AccPrivate   Access = 0x0002
	AccProtected Access = 0x0004
	AccStatic    Access = 0x0008
	AccFinal     Access = 0x0010
	AccSuper     Access = 0x0020
	AccNative    Access = 0x0100
	AccInterface Access = 0x0200
	AccAbstract  Access = 0x0400
	AccSynthetic Access = 0x1000
)

var accessNames = []struct {
	flag Access
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSuper, "super"},
	{AccNative, "native"},
	{AccInterface, "interface"},
	{AccAbstract, "abstract"},
	{AccSynthetic, "synthetic"},
}

// ParseAccess converts flag names such as "public" or "abstract" into an Access value.
func ParseAccess(names []string) (Access, error) {
	var acc Access
	for _, name := range names {
		found := false
		for _, an := range accessNames {
			if an.name == strings.ToLower(strings.TrimSpace(name)) {
				acc |= an.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown access flag %q", name)
		}
	}
	return acc, nil
}

func (a Access) Has(flag Access) bool { return a&flag != 0 }

func (a Access) IsPublic() bool { return a.Has(AccPublic) }
func (a Access) IsPrivate() bool { return a.Has(AccPrivate) }
func (a Access) IsProtected() bool { return a.Has(AccProtected) }
func (a Access) IsStatic() bool { return a.Has(AccStatic) }
func (a Access) IsAbstract() bool { return a.Has(AccAbstract) }
func (a Access) IsInterface() bool { return a.Has(AccInterface) }
func (a Access) IsNative() bool { return a.Has(AccNative) }

// String renders the flags as a space separated list.
func (a Access) String() string {
	var parts []string
	for _, an := range accessNames {
		if a.Has(an.flag) {
			parts = append(parts, an.name)
		}
	}
	return strings.Join(parts, " ")
}
