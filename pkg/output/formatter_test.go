package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ritzau/codegraph/pkg/lens"
	"github.com/ritzau/codegraph/pkg/model"
)

func TestPrintRunSummary(t *testing.T) {
	color.NoColor = true

	r := &model.AnalysisResult{
		Cycles: []model.Cycle{
			{Nodes: []string{"c.py"}, Severity: model.SeverityWarning},
			{Nodes: []string{"a.py", "b.py"}, Severity: model.SeverityError},
		},
		Complexity: []model.FunctionComplexity{
			{Function: "pairs", File: "a.py", Line: 3, Complexity: model.Quadratic, Warning: "Consider optimizing - complexity is O(n²)"},
			{Function: "get", File: "a.py", Line: 9, Complexity: model.Constant},
		},
		Diagnostics: []model.Diagnostic{{Path: "bad.py", Kind: model.DiagParseFailure, Message: "syntax error at 1:5"}},
		Metrics:     model.Metrics{TotalFiles: 3, TotalFunctions: 2, DependencyCount: 3, AverageComplexity: model.Linear},
	}

	var buf bytes.Buffer
	diff := lens.ComputeDiff(&model.AnalysisResult{}, r)
	PrintRunSummary(&buf, 4, "source changed: a.py", r, diff)
	out := buf.String()

	for _, want := range []string{
		"Analysis #4 (source changed: a.py)",
		"Files: 3  Functions: 2  Dependencies: 3",
		"Circular dependencies: 2",
		"[error] a.py -> b.py -> a.py",
		"[warning] c.py -> c.py",
		"a.py:3 pairs O(n²)",
		"bad.py: syntax error at 1:5",
		"Changes: 2 new cycles",
		"new cycle: a.py -> b.py",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "[error]") > strings.Index(out, "[warning]") {
		t.Error("error cycles should be listed before warnings")
	}
	if strings.Contains(out, " get ") {
		t.Error("functions without a warning should not be listed")
	}
}

func TestPrintRunSummaryClean(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintRunSummary(&buf, 1, "", &model.AnalysisResult{}, lens.ComputeDiff(nil, &model.AnalysisResult{}))
	if !strings.Contains(buf.String(), "No circular dependencies") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Changes:") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}
