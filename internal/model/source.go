package model

import (
	"errors"
	"fmt"
)

var (
	// ErrClassNotFound is returned by a ClassSource that has no facts for a class.
	ErrClassNotFound = errors.New("class not found")
	// ErrClassExcluded is returned by a ClassSource for classes filtered out by configuration.
	ErrClassExcluded = errors.New("class excluded")
)

// ClassSource supplies structural facts about classes. Implementations shared
// between sessions running in parallel must be safe for concurrent use.
type ClassSource interface {
	Lookup(internalName string) (*ClassFacts, error)
}

// ClassFacts is everything the analysis needs to know about one class.
type ClassFacts struct {
	// Name is the internal name, e.g. "java/lang/Object".
	Name string

	// Super is the internal name of the superclass, empty for none.
	Super string

	// Interfaces lists the internal names of directly implemented interfaces.
	Interfaces []string

	Access Access

	// Concrete reports that the class and all its ancestors can be resolved.
	Concrete bool

	// Reachable reports that the class is transitively loadable.
	Reachable bool

	Methods []MethodFacts
}

// MethodFacts describes one declared method.
type MethodFacts struct {
	Name       string
	Descriptor string
	Access     Access

	// PolymorphicSignature marks signature-polymorphic methods such as MethodHandle.invoke.
	PolymorphicSignature bool

	// Code is the method body reduced to the instructions that produce impacts.
	// It is translated lazily on the first request for the method's impacts.
	Code []Instruction
}

// Opcode identifies an impact-relevant instruction.
type Opcode uint8

const (
	OpNew Opcode = iota + 1
	OpLdcString
	OpGetStatic
	OpPutStatic
	OpInvokeStatic
	OpInvokeSpecial
	OpInvokeVirtual
	OpInvokeInterface
	OpInvokeDynamic
)

var opcodeNames = map[Opcode]string{
	OpNew:             "new",
	OpLdcString:       "ldc_string",
	OpGetStatic:       "getstatic",
	OpPutStatic:       "putstatic",
	OpInvokeStatic:    "invokestatic",
	OpInvokeSpecial:   "invokespecial",
	OpInvokeVirtual:   "invokevirtual",
	OpInvokeInterface: "invokeinterface",
	OpInvokeDynamic:   "invokedynamic",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", op)
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Instruction is one impact-relevant bytecode instruction.
//
// For field and method instructions Owner, Name and Desc name the member. For
// OpNew only Owner is set. For OpInvokeDynamic, Name and Desc are the call
// site's name and descriptor, Bootstrap is the bootstrap method's owner and
// Handles lists the method handle arguments.
type Instruction struct {
	Op        Opcode
	Owner     string
	Name      string
	Desc      string
	Bootstrap string
	Handles   []Handle
}

func (in Instruction) String() string {
	switch in.Op {
	case OpNew:
		return fmt.Sprintf("%s %s", in.Op, in.Owner)
	case OpLdcString:
		return in.Op.String()
	case OpGetStatic, OpPutStatic:
		return fmt.Sprintf("%s %s.%s", in.Op, in.Owner, in.Name)
	case OpInvokeDynamic:
		return fmt.Sprintf("%s %s%s bootstrap=%s handles=%d", in.Op, in.Name, in.Desc, in.Bootstrap, len(in.Handles))
	default:
		return fmt.Sprintf("%s %s.%s%s", in.Op, in.Owner, in.Name, in.Desc)
	}
}

// HandleKind is the reference kind of a method handle constant.
type HandleKind uint8

const (
	HandleGetStatic HandleKind = iota + 1
	HandlePutStatic
	HandleInvokeVirtual
	HandleInvokeStatic
	HandleInvokeSpecial
	HandleNewInvokeSpecial
	HandleInvokeInterface
)

var handleKindNames = map[HandleKind]string{
	HandleGetStatic:        "getstatic",
	HandlePutStatic:        "putstatic",
	HandleInvokeVirtual:    "invokevirtual",
	HandleInvokeStatic:     "invokestatic",
	HandleInvokeSpecial:    "invokespecial",
	HandleNewInvokeSpecial: "newinvokespecial",
	HandleInvokeInterface:  "invokeinterface",
}

func (k HandleKind) String() string {
	if name, ok := handleKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("handle(%d)", k)
}

// LookupHandleKind returns the handle kind with the given name.
func LookupHandleKind(name string) (HandleKind, bool) {
	for k, n := range handleKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Handle is a method handle passed to a bootstrap method.
type Handle struct {
	Kind  HandleKind
	Owner string
	Name  string
	Desc  string
}

// InvariantError reports a broken internal invariant. It is raised with panic
// inside the analysis and converted to an error at the public API boundary.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Detail)
}

// Invariantf panics with an *InvariantError.
func Invariantf(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
