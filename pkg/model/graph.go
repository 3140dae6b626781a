package model

// Node is a vertex of the project dependency graph. Nodes are file-level: ID
// is the path of the one SourceUnit the node came from.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Path     string   `json:"path" yaml:"path"`
	Language Language `json:"language" yaml:"language"`
}

// Edge is a resolved, directed dependency. Edges between the same pair of
// nodes are kept apart when their kind or position differs.
type Edge struct {
	Source string        `json:"source" yaml:"source"`
	Target string        `json:"target" yaml:"target"`
	Kind   ReferenceKind `json:"type" yaml:"type"`
	Span   `yaml:",inline"`
}

// ExternalDependency is a reference that did not resolve to a project node.
// It is reported but never takes part in cycle detection.
type ExternalDependency struct {
	Source string        `json:"source" yaml:"source"`
	Target string        `json:"target" yaml:"target"`
	Kind   ReferenceKind `json:"type" yaml:"type"`
	Span   `yaml:",inline"`
}

// Severity grades a circular dependency.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Cycle is a circular dependency. Nodes starts at the lexicographically
// smallest member so that reports are stable across runs. Each node has an
// edge to the next, and the last to the first. A component with no ring
// through all its members is reported as a closed walk, so a node may repeat.
type Cycle struct {
	Nodes    []string `json:"cycle" yaml:"cycle"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// Contains reports whether id is a member of the cycle.
func (c Cycle) Contains(id string) bool {
	for _, n := range c.Nodes {
		if n == id {
			return true
		}
	}
	return false
}
