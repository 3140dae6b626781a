package model

// FunctionComplexity is the classification of one function-kind symbol.
// Warning is set only when the class exceeds the caller's threshold.
type FunctionComplexity struct {
	Function   string          `json:"function" yaml:"function"`
	File       string          `json:"file" yaml:"file"`
	Line       int             `json:"line" yaml:"line"`
	Column     int             `json:"column" yaml:"column"`
	Complexity ComplexityClass `json:"complexity" yaml:"complexity"`
	Reason     string          `json:"reason" yaml:"reason"`
	Warning    string          `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// Metrics summarizes a run.
type Metrics struct {
	TotalFiles              int             `json:"total_files" yaml:"total_files"`
	TotalFunctions          int             `json:"total_functions" yaml:"total_functions"`
	DependencyCount         int             `json:"dependency_count" yaml:"dependency_count"`
	CircularDependencyCount int             `json:"circular_dependencies" yaml:"circular_dependencies"`
	AverageComplexity       ComplexityClass `json:"average_complexity" yaml:"average_complexity"`
	ExternalDependencyCount int             `json:"external_dependencies" yaml:"external_dependencies"`
}

// DiagnosticKind classifies a recovered, per-file problem.
type DiagnosticKind string

const (
	DiagParseFailure        DiagnosticKind = "parse_failure"
	DiagUnsupportedLanguage DiagnosticKind = "unsupported_language"
	DiagTimeout             DiagnosticKind = "timeout"
)

// Diagnostic is a problem that was recovered locally and did not stop the run.
type Diagnostic struct {
	Path    string         `json:"path" yaml:"path"`
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Message string         `json:"message" yaml:"message"`
}

// AnalysisResult is the immutable snapshot one run produces.
type AnalysisResult struct {
	Nodes        []Node               `json:"nodes" yaml:"nodes"`
	Dependencies []Edge               `json:"dependencies" yaml:"dependencies"`
	External     []ExternalDependency `json:"external" yaml:"external"`
	Cycles       []Cycle              `json:"cycles" yaml:"cycles"`
	Complexity   []FunctionComplexity `json:"complexity" yaml:"complexity"`
	Metrics      Metrics              `json:"metrics" yaml:"metrics"`
	Diagnostics  []Diagnostic         `json:"diagnostics" yaml:"diagnostics"`
}

// HasErrorCycles reports whether any cycle has error severity.
func (r *AnalysisResult) HasErrorCycles() bool {
	for _, c := range r.Cycles {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}
