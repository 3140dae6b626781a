// Package output prints short console summaries between full reports.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/codegraph/pkg/lens"
	"github.com/ritzau/codegraph/pkg/model"
)

// PrintRunSummary prints a one-screen summary of a result and, if diff is not
// nil, what changed since the previous run. Watch mode prints it after every
// re-analysis instead of the full report.
func PrintRunSummary(w io.Writer, generation uint64, reason string, r *model.AnalysisResult, diff *lens.ResultDiff) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintf(w, "Analysis #%d", generation)
	if reason != "" {
		fmt.Fprintf(w, " (%s)", reason)
	}
	fmt.Fprintln(w)

	m := r.Metrics
	fmt.Fprintf(w, "Files: %d  Functions: %d  Dependencies: %d  External: %d\n",
		m.TotalFiles, m.TotalFunctions, m.DependencyCount, m.ExternalDependencyCount)
	fmt.Fprintf(w, "Average complexity: %s\n", m.AverageComplexity)
	if diff != nil && !diff.FullGraph {
		fmt.Fprintf(w, "Changes: %s\n", diff)
		for _, c := range diff.NewCycles {
			red.Fprintf(w, "  new cycle: %s\n", strings.Join(c.Nodes, " -> "))
		}
		for _, c := range diff.ResolvedCycles {
			green.Fprintf(w, "  resolved: %s\n", strings.Join(c.Nodes, " -> "))
		}
	}

	// Cycles, errors first
	switch {
	case len(r.Cycles) == 0:
		green.Fprintln(w, "No circular dependencies")
	case r.HasErrorCycles():
		red.Fprintf(w, "Circular dependencies: %d\n", len(r.Cycles))
	default:
		yellow.Fprintf(w, "Circular dependencies: %d\n", len(r.Cycles))
	}
	for _, sev := range []model.Severity{model.SeverityError, model.SeverityWarning} {
		for _, c := range r.Cycles {
			if c.Severity != sev {
				continue
			}
			line := yellow
			if sev == model.SeverityError {
				line = red
			}
			line.Fprintf(w, "  [%s] %s\n", sev, strings.Join(append(append([]string{}, c.Nodes...), c.Nodes[0]), " -> "))
		}
	}

	// Functions over the threshold
	warned := 0
	for _, fc := range r.Complexity {
		if fc.Warning == "" {
			continue
		}
		if warned == 0 {
			yellow.Fprintln(w, "Complexity warnings:")
		}
		warned++
		cyan.Fprintf(w, "  %s:%d", fc.File, fc.Line)
		fmt.Fprintf(w, " %s %s\n", fc.Function, fc.Complexity)
	}

	if len(r.Diagnostics) > 0 {
		yellow.Fprintf(w, "Skipped files: %d\n", len(r.Diagnostics))
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s: %s\n", d.Path, d.Message)
		}
	}
	fmt.Fprintln(w)
}
