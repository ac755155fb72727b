package harness

// Configuration is one analysis run of a scenario.
type Configuration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// Strategy is passed to callgraph.ParseStrategy; empty means auto.
	Strategy string `yaml:"strategy,omitempty"`

	// Entries are the entry classes, in dotted or internal form.
	Entries []string `yaml:"entries"`

	// Exclude lists class exclusion regular expressions.
	Exclude []string `yaml:"exclude,omitempty"`

	// Natives applies the bundled native-method summaries.
	Natives bool `yaml:"natives,omitempty"`

	// Validate additionally checks the graphs against per-entry baseline runs.
	Validate bool `yaml:"validate,omitempty"`

	// Graphs are the expectations per entry class.
	Graphs []ExpectedGraph `yaml:"graphs,omitempty"`

	// ExpectedErrors lists substrings of an expected build error.
	ExpectedErrors []string `yaml:"expected_errors,omitempty"`
}

// ExpectedGraph describes the call graph expected for one entry. Methods are
// given as signatures such as "a.Square.area()I" and edges as
// "caller -> callee".
type ExpectedGraph struct {
	// Entry is the dotted entry class name.
	Entry string `yaml:"entry"`

	// Nodes must be reachable.
	Nodes []string `yaml:"nodes,omitempty"`

	// Absent must not be reachable.
	Absent []string `yaml:"absent,omitempty"`

	// Edges must be present.
	Edges []string `yaml:"edges,omitempty"`

	// Unloadable lists the classes of reachable methods that cannot be
	// loaded, when set.
	Unloadable []string `yaml:"unloadable,omitempty"`
}
