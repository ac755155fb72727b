// Package classpath supplies class facts to the analysis from YAML files.
//
// A class-path entry is a YAML file or a directory searched recursively for
// *.yaml files. Every file lists classes:
//
//	classes:
//	  - name: a/Square
//	    interfaces: [a/Shape]
//	    methods:
//	      - name: area
//	        desc: ()I
//	        access: [public]
//	        code:
//	          - new a/Square
//	          - invokespecial a/Square.<init>()V
//	          - invokedynamic run()Ljava/lang/Runnable; java/lang/invoke/LambdaMetafactory invokestatic:a/Main.lambda$0()V
//
// The superclass defaults to java/lang/Object and may be cleared with
// "super: none". Class access defaults to [public, super]; concrete and
// reachable default to true.
package classpath

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/715d/ortacg/internal/model"
)

const (
	objectClass = "java/lang/Object"
	noSuper     = "none"
)

// FactsFile is the YAML layout of a class-fact file.
type FactsFile struct {
	Classes []Class `yaml:"classes"`
}

// Class is the YAML layout of one class.
type Class struct {
	Name       string   `yaml:"name"`
	Super      string   `yaml:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	Access     []string `yaml:"access,omitempty"`
	Concrete   *bool    `yaml:"concrete,omitempty"`
	Reachable  *bool    `yaml:"reachable,omitempty"`
	Methods    []Method `yaml:"methods,omitempty"`
}

// Method is the YAML layout of one method.
type Method struct {
	Name        string   `yaml:"name"`
	Desc        string   `yaml:"desc"`
	Access      []string `yaml:"access,omitempty"`
	Polymorphic bool     `yaml:"polymorphic,omitempty"`
	Code        []string `yaml:"code,omitempty"`
}

// Instruction patterns. Owners are internal names, which never contain a
// dot; array owners such as "[I" are allowed.
var (
	// newPattern matches "new a/Square".
	newPattern = regexp.MustCompile(`^new\s+(\S+)$`)

	// fieldPattern matches "getstatic a/Conf.LEVEL".
	fieldPattern = regexp.MustCompile(`^(getstatic|putstatic)\s+([^.\s]+)\.(\S+)$`)

	// invokePattern matches "invokevirtual a/Square.area()I".
	invokePattern = regexp.MustCompile(`^(invoke(?:static|special|virtual|interface))\s+([^.\s]+)\.([^(\s]+)(\(\S*)$`)

	// dynamicPattern matches "invokedynamic run()Ljava/lang/Runnable; java/lang/invoke/LambdaMetafactory <handles>".
	dynamicPattern = regexp.MustCompile(`^invokedynamic\s+([^(\s]+)(\(\S*)\s+(\S+)((?:\s+\S+)*)$`)

	// handlePattern matches "invokestatic:a/Main.lambda$0()V" and "getstatic:a/Conf.LEVEL:I".
	handlePattern = regexp.MustCompile(`^(\w+):([^.\s]+)\.([^(:\s]+):?(\S*)$`)
)

// ParseInstruction parses one instruction mnemonic line.
func ParseInstruction(line string) (model.Instruction, error) {
	line = strings.TrimSpace(line)
	if line == model.OpLdcString.String() {
		return model.Instruction{Op: model.OpLdcString}, nil
	}
	if m := newPattern.FindStringSubmatch(line); m != nil {
		return model.Instruction{Op: model.OpNew, Owner: m[1]}, nil
	}
	if m := fieldPattern.FindStringSubmatch(line); m != nil {
		op, _ := model.LookupOpcode(m[1])
		return model.Instruction{Op: op, Owner: m[2], Name: m[3]}, nil
	}
	if m := invokePattern.FindStringSubmatch(line); m != nil {
		op, _ := model.LookupOpcode(m[1])
		return model.Instruction{Op: op, Owner: m[2], Name: m[3], Desc: m[4]}, nil
	}
	if m := dynamicPattern.FindStringSubmatch(line); m != nil {
		in := model.Instruction{Op: model.OpInvokeDynamic, Name: m[1], Desc: m[2], Bootstrap: m[3]}
		for _, field := range strings.Fields(m[4]) {
			h, err := parseHandle(field)
			if err != nil {
				return model.Instruction{}, fmt.Errorf("instruction %q: %w", line, err)
			}
			in.Handles = append(in.Handles, h)
		}
		return in, nil
	}
	return model.Instruction{}, fmt.Errorf("malformed instruction %q", line)
}

func parseHandle(s string) (model.Handle, error) {
	m := handlePattern.FindStringSubmatch(s)
	if m == nil {
		return model.Handle{}, fmt.Errorf("malformed method handle %q", s)
	}
	kind, ok := model.LookupHandleKind(m[1])
	if !ok {
		return model.Handle{}, fmt.Errorf("unknown method handle kind %q", m[1])
	}
	return model.Handle{Kind: kind, Owner: m[2], Name: m[3], Desc: m[4]}, nil
}

// ParseFacts decodes a class-fact file. Every document of a multi-document
// stream is read.
func ParseFacts(data []byte) ([]*model.ClassFacts, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []*model.ClassFacts
	for {
		var file FactsFile
		if err := dec.Decode(&file); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode class facts: %w", err)
		}
		for i := range file.Classes {
			facts, err := file.Classes[i].Facts()
			if err != nil {
				return nil, err
			}
			out = append(out, facts)
		}
	}
}

// Facts converts c to the analysis representation.
func (c *Class) Facts() (*model.ClassFacts, error) {
	if c.Name == "" {
		return nil, errors.New("class without name")
	}
	name := strings.ReplaceAll(c.Name, ".", "/")
	facts := &model.ClassFacts{
		Name:       name,
		Super:      c.Super,
		Interfaces: c.Interfaces,
		Access:     model.AccPublic | model.AccSuper,
		Concrete:   c.Concrete == nil || *c.Concrete,
		Reachable:  c.Reachable == nil || *c.Reachable,
	}
	switch c.Super {
	case "":
		if name != objectClass {
			facts.Super = objectClass
		}
	case noSuper:
		facts.Super = ""
	}
	if len(c.Access) > 0 {
		acc, err := model.ParseAccess(c.Access)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
		facts.Access = acc
	}

	for _, m := range c.Methods {
		acc, err := model.ParseAccess(m.Access)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s%s: %w", name, m.Name, m.Desc, err)
		}
		mf := model.MethodFacts{
			Name:                 m.Name,
			Descriptor:           m.Desc,
			Access:               acc,
			PolymorphicSignature: m.Polymorphic,
		}
		for _, line := range m.Code {
			in, err := ParseInstruction(line)
			if err != nil {
				return nil, fmt.Errorf("method %s.%s%s: %w", name, m.Name, m.Desc, err)
			}
			mf.Code = append(mf.Code, in)
		}
		facts.Methods = append(facts.Methods, mf)
	}
	return facts, nil
}
