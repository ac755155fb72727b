// Package modeltest builds in-memory class sources for tests.
package modeltest

import (
	"fmt"
	"sort"

	"github.com/715d/ortacg/internal/model"
)

// Program is an in-memory model.ClassSource. It is safe for concurrent
// lookups once fully built.
type Program struct {
	classes map[string]*model.ClassFacts
}

// NewProgram returns a program containing a minimal java/lang/Object.
func NewProgram() *Program {
	p := &Program{classes: make(map[string]*model.ClassFacts)}
	p.Class("java/lang/Object").NoSuper().
		Method("<init>", "()V", model.AccPublic).
		Method("toString", "()Ljava/lang/String;", model.AccPublic).
		Method("hashCode", "()I", model.AccPublic).
		Method("equals", "(Ljava/lang/Object;)Z", model.AccPublic)
	return p
}

// EmptyProgram returns a program without any classes.
func EmptyProgram() *Program {
	return &Program{classes: make(map[string]*model.ClassFacts)}
}

func (p *Program) Lookup(name string) (*model.ClassFacts, error) {
	facts, ok := p.classes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, model.ErrClassNotFound)
	}
	return facts, nil
}

// Names returns the class names in sorted order.
func (p *Program) Names() []string {
	names := make([]string, 0, len(p.classes))
	for name := range p.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassBuilder adds facts to one class.
type ClassBuilder struct {
	facts *model.ClassFacts
}

// Class adds a public concrete class extending java/lang/Object.
func (p *Program) Class(name string) *ClassBuilder {
	facts := &model.ClassFacts{
		Name:      name,
		Super:     "java/lang/Object",
		Access:    model.AccPublic | model.AccSuper,
		Concrete:  true,
		Reachable: true,
	}
	p.classes[name] = facts
	return &ClassBuilder{facts: facts}
}

// Interface adds a public interface.
func (p *Program) Interface(name string) *ClassBuilder {
	return p.Class(name).Access(model.AccPublic | model.AccInterface | model.AccAbstract)
}

func (b *ClassBuilder) Access(acc model.Access) *ClassBuilder {
	b.facts.Access = acc
	return b
}

func (b *ClassBuilder) Extends(super string) *ClassBuilder {
	b.facts.Super = super
	return b
}

func (b *ClassBuilder) NoSuper() *ClassBuilder {
	b.facts.Super = ""
	return b
}

func (b *ClassBuilder) Implements(names ...string) *ClassBuilder {
	b.facts.Interfaces = append(b.facts.Interfaces, names...)
	return b
}

// Unresolvable marks the class as neither concrete nor reachable.
func (b *ClassBuilder) Unresolvable() *ClassBuilder {
	b.facts.Concrete = false
	b.facts.Reachable = false
	return b
}

// Method adds a method with the given body.
func (b *ClassBuilder) Method(name, desc string, acc model.Access, code ...model.Instruction) *ClassBuilder {
	b.facts.Methods = append(b.facts.Methods, model.MethodFacts{
		Name:       name,
		Descriptor: desc,
		Access:     acc,
		Code:       code,
	})
	return b
}

// Polymorphic adds a signature-polymorphic method.
func (b *ClassBuilder) Polymorphic(name, desc string, acc model.Access) *ClassBuilder {
	b.facts.Methods = append(b.facts.Methods, model.MethodFacts{
		Name:                 name,
		Descriptor:           desc,
		Access:               acc,
		PolymorphicSignature: true,
	})
	return b
}

// Constructor adds a public no-argument constructor chaining to the superclass.
func (b *ClassBuilder) Constructor(code ...model.Instruction) *ClassBuilder {
	if b.facts.Super != "" {
		code = append([]model.Instruction{InvokeSpecial(b.facts.Super, "<init>", "()V")}, code...)
	}
	return b.Method("<init>", "()V", model.AccPublic, code...)
}

func New(owner string) model.Instruction {
	return model.Instruction{Op: model.OpNew, Owner: owner}
}

// Construct returns "new owner" followed by its no-argument constructor call.
func Construct(owner string) []model.Instruction {
	return []model.Instruction{New(owner), InvokeSpecial(owner, "<init>", "()V")}
}

func LdcString() model.Instruction {
	return model.Instruction{Op: model.OpLdcString}
}

func GetStatic(owner, field string) model.Instruction {
	return model.Instruction{Op: model.OpGetStatic, Owner: owner, Name: field}
}

func PutStatic(owner, field string) model.Instruction {
	return model.Instruction{Op: model.OpPutStatic, Owner: owner, Name: field}
}

func InvokeStatic(owner, name, desc string) model.Instruction {
	return model.Instruction{Op: model.OpInvokeStatic, Owner: owner, Name: name, Desc: desc}
}

func InvokeSpecial(owner, name, desc string) model.Instruction {
	return model.Instruction{Op: model.OpInvokeSpecial, Owner: owner, Name: name, Desc: desc}
}

func InvokeVirtual(owner, name, desc string) model.Instruction {
	return model.Instruction{Op: model.OpInvokeVirtual, Owner: owner, Name: name, Desc: desc}
}

func InvokeInterface(owner, name, desc string) model.Instruction {
	return model.Instruction{Op: model.OpInvokeInterface, Owner: owner, Name: name, Desc: desc}
}

// InvokeDynamic returns a lambda-style call site producing iface whose
// single abstract method is name and whose implementation is handle.
func InvokeDynamic(name, iface string, handle model.Handle) model.Instruction {
	return model.Instruction{
		Op:        model.OpInvokeDynamic,
		Name:      name,
		Desc:      "()L" + iface + ";",
		Bootstrap: "java/lang/invoke/LambdaMetafactory",
		Handles:   []model.Handle{handle},
	}
}

// Flatten concatenates instruction groups.
func Flatten(groups ...[]model.Instruction) []model.Instruction {
	var out []model.Instruction
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
