// Package entries reads entry-class lists.
//
// An entry file names one class per line, in dotted or internal form.
// Lines of the form "pattern: <regexp>" select every class-path class whose
// name matches. Blank lines and lines starting with '#' or "//" are ignored.
package entries

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// List is the content of an entry file.
type List struct {
	// Classes are the explicitly named classes in file order.
	Classes []string
	// Patterns are the regular expressions of "pattern:" lines.
	Patterns []string
}

// Len returns the number of lines that select classes.
func (l *List) Len() int { return len(l.Classes) + len(l.Patterns) }

var (
	// classPattern matches "a.b.Main", "a/b/Main" and "a/Outer$Inner".
	classPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:[./][A-Za-z_$][\w$]*)*$`)

	// patternPrefix introduces a regular expression line.
	patternPrefix = regexp.MustCompile(`^pattern:\s*(.+)$`)
)

// ScanFile reads an entry file.
func ScanFile(filename string) (*List, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open entry file: %w", err)
	}
	defer file.Close()

	list, err := scanReader(file)
	if err != nil {
		return nil, fmt.Errorf("scan entry file: %s: %w", filename, err)
	}
	return list, nil
}

func scanReader(r io.Reader) (*List, error) {
	list := &List{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if m := patternPrefix.FindStringSubmatch(trimmed); m != nil {
			expr := strings.TrimSpace(m[1])
			if _, err := regexp.Compile(expr); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			list.Patterns = append(list.Patterns, expr)
			continue
		}

		if !classPattern.MatchString(trimmed) {
			return nil, fmt.Errorf("line %d: malformed class name %q", line, trimmed)
		}
		list.Classes = append(list.Classes, trimmed)
	}
	return list, scanner.Err()
}

// Discoverer lists the classes whose names match a regular expression.
type Discoverer interface {
	Discover(pattern string) ([]string, error)
}

// Resolve expands the patterns of l with d and returns the named classes
// followed by the discovered ones, without duplicates. Names are compared in
// internal form.
func (l *List) Resolve(d Discoverer) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		key := strings.ReplaceAll(name, ".", "/")
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	for _, name := range l.Classes {
		add(name)
	}
	for _, expr := range l.Patterns {
		found, err := d.Discover(expr)
		if err != nil {
			return nil, err
		}
		for _, name := range found {
			add(name)
		}
	}
	return out, nil
}
