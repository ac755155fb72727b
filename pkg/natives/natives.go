// Package natives summarizes native methods for the analysis.
//
// A native method has no bytecode, so calls the runtime makes on its behalf
// are invisible. A summary supplies the instructions standing for such a
// method; Wrap applies a set of summaries to every class a source returns.
package natives

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/puzpuzpuz/xsync/v4"
	"gopkg.in/yaml.v3"

	"github.com/715d/ortacg/internal/model"
	"github.com/715d/ortacg/pkg/classpath"
)

//go:embed natives.yaml
var defaultSummaries []byte

type summariesFile struct {
	Natives []classSummary `yaml:"natives"`
}

type classSummary struct {
	Class   string          `yaml:"class"`
	Methods []methodSummary `yaml:"methods"`
}

type methodSummary struct {
	Name string   `yaml:"name"`
	Desc string   `yaml:"desc"`
	Code []string `yaml:"code"`
}

// Model maps methods to the instructions that summarize them.
type Model struct {
	// classes maps an internal class name to selector (name+desc) to code.
	classes map[string]map[string][]model.Instruction
	count   int
}

// Default returns the bundled summaries.
func Default() (*Model, error) {
	return Parse(defaultSummaries)
}

// Load reads summaries from a YAML file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read native summaries: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes summaries. A method summarized twice keeps the last summary.
func Parse(data []byte) (*Model, error) {
	var file summariesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode native summaries: %w", err)
	}
	m := &Model{classes: make(map[string]map[string][]model.Instruction)}
	for _, cs := range file.Natives {
		if cs.Class == "" {
			return nil, fmt.Errorf("native summary without class")
		}
		methods := m.classes[cs.Class]
		if methods == nil {
			methods = make(map[string][]model.Instruction)
			m.classes[cs.Class] = methods
		}
		for _, ms := range cs.Methods {
			code := make([]model.Instruction, 0, len(ms.Code))
			for _, line := range ms.Code {
				in, err := classpath.ParseInstruction(line)
				if err != nil {
					return nil, fmt.Errorf("native %s.%s%s: %w", cs.Class, ms.Name, ms.Desc, err)
				}
				code = append(code, in)
			}
			if _, ok := methods[ms.Name+ms.Desc]; !ok {
				m.count++
			}
			methods[ms.Name+ms.Desc] = code
		}
	}
	return m, nil
}

// Len returns the number of summarized methods.
func (m *Model) Len() int { return m.count }

// Summary returns the code summarizing class.name desc.
func (m *Model) Summary(class, name, desc string) ([]model.Instruction, bool) {
	code, ok := m.classes[class][name+desc]
	return code, ok
}

// Apply returns facts with the code of every summarized method replaced.
// facts itself is never modified; it is returned as is when no method of
// the class is summarized.
func (m *Model) Apply(facts *model.ClassFacts) *model.ClassFacts {
	methods, ok := m.classes[facts.Name]
	if !ok {
		return facts
	}
	out := *facts
	out.Methods = make([]model.MethodFacts, len(facts.Methods))
	for i, mf := range facts.Methods {
		if code, ok := methods[mf.Name+mf.Descriptor]; ok {
			mf.Code = code
		}
		out.Methods[i] = mf
	}
	return &out
}

// source applies a Model to the classes of another source.
type source struct {
	src   model.ClassSource
	model *Model
	cache *xsync.Map[string, *model.ClassFacts]
}

// Wrap returns a source applying m to every class src returns. The result
// is safe for concurrent use when src is. Closing it closes src when src
// implements io.Closer.
func Wrap(src model.ClassSource, m *Model) model.ClassSource {
	return &source{src: src, model: m, cache: xsync.NewMap[string, *model.ClassFacts]()}
}

func (s *source) Lookup(name string) (*model.ClassFacts, error) {
	if facts, ok := s.cache.Load(name); ok {
		return facts, nil
	}
	facts, err := s.src.Lookup(name)
	if err != nil || facts == nil {
		return facts, err
	}
	facts = s.model.Apply(facts)
	s.cache.Store(name, facts)
	return facts, nil
}

func (s *source) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
