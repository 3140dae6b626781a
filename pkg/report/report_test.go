package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ritzau/codegraph/pkg/analysis"
	"github.com/ritzau/codegraph/pkg/model"
)

func sampleResult(t *testing.T) *model.AnalysisResult {
	t.Helper()

	imp := func(target string, line int) model.Reference {
		return model.Reference{Target: target, Kind: model.RefImport, Span: model.Span{Line: line, Column: 1}}
	}
	a := &model.SourceUnit{Path: "app/a.py", Language: model.LangPython,
		References: []model.Reference{imp("app/b.py", 1), imp("os", 2)},
		Symbols: []model.Symbol{
			{Name: "pairs", Kind: model.SymbolFunction, Span: model.Span{Line: 4, Column: 1}, Shape: &model.ControlFlowShape{LoopDepth: 2}},
		},
	}
	b := &model.SourceUnit{Path: "app/b.py", Language: model.LangPython,
		References: []model.Reference{imp("app/c.py", 1)},
		Symbols: []model.Symbol{
			{Name: "lookup", Kind: model.SymbolFunction, Span: model.Span{Line: 2, Column: 1}},
		},
	}
	c := &model.SourceUnit{Path: "app/c.py", Language: model.LangPython,
		References: []model.Reference{imp("app/a.py", 1)},
	}

	result, err := analysis.Assemble([]*model.SourceUnit{a, b, c},
		[]model.Diagnostic{{Path: "app/broken.py", Kind: model.DiagParseFailure, Message: "invalid syntax"}},
		analysis.AssembleOptions{Threshold: model.Linearithmic, Verify: true})
	require.NoError(t, err)
	return result
}

func TestJSONRoundTrip(t *testing.T) {
	original := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, original, Options{}))

	parsed, err := ParseJSON(&buf)
	require.NoError(t, err)

	assert.Equal(t, original.Nodes, parsed.Nodes)
	assert.Equal(t, original.Dependencies, parsed.Dependencies)
	assert.Equal(t, original.Cycles, parsed.Cycles)
	assert.Equal(t, original, parsed)
}

func TestJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult(t), Options{}))
	out := buf.String()

	for _, key := range []string{
		`"source": "app/a.py"`,
		`"type": "import"`,
		`"line": 1`,
		`"cycle": [`,
		`"severity": "error"`,
		`"complexity": "O(n²)"`,
		`"warning": "Consider optimizing - complexity is O(n²)"`,
		`"total_files": 3`,
		`"circular_dependencies": 1`,
		`"average_complexity": "O(n)"`,
	} {
		assert.Contains(t, out, key)
	}
}

func TestParseJSONError(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"metrics": {"average_complexity": "O(fast)"}}`))
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleResult(t), Options{}))
	out := buf.String()

	assert.Contains(t, out, "CodeGraph Analysis Report")
	assert.Contains(t, out, "Files analyzed: 3")
	assert.Contains(t, out, "Circular dependencies: 1")
	assert.Contains(t, out, "[error]   app/a.py → app/b.py → app/c.py → app/a.py")
	assert.Contains(t, out, "pairs")
	assert.Contains(t, out, "loop-nesting:2")
	assert.Contains(t, out, "app/broken.py: invalid syntax")
	assert.NotContains(t, out, "\x1b[", "uncolored output must not contain escapes")
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleResult(t), Options{Title: "Report <x>"}))
	out := buf.String()

	assert.Contains(t, out, "<title>Report &lt;x&gt;</title>")
	assert.Contains(t, out, `<tr class="complexity-high">`)
	assert.Contains(t, out, `<div class="error">app/a.py → app/b.py → app/c.py → app/a.py</div>`)
	assert.Contains(t, out, `<div class="dependency">app/a.py → app/b.py (import)</div>`)
	assert.NotContains(t, out, "No circular dependencies found!")
}

func TestWriteHTMLTruncatesDependencies(t *testing.T) {
	r := &model.AnalysisResult{}
	for i := 0; i < MaxHTMLDependencies+5; i++ {
		r.Dependencies = append(r.Dependencies, model.Edge{Source: fmt.Sprintf("f%02d.go", i), Target: "x.go", Kind: model.RefImport})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, r, Options{}))

	assert.Equal(t, MaxHTMLDependencies, strings.Count(buf.String(), `class="dependency"`))
	assert.Contains(t, buf.String(), "5 more not shown")
	assert.Contains(t, buf.String(), "No circular dependencies found!")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleResult(t), Options{}))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	metrics, ok := doc["metrics"].(map[string]any)
	require.True(t, ok, "metrics should be a mapping")
	assert.Equal(t, 3, metrics["total_files"])
	assert.Equal(t, "O(n)", metrics["average_complexity"])

	deps, ok := doc["dependencies"].([]any)
	require.True(t, ok)
	first := deps[0].(map[string]any)
	assert.Equal(t, "app/a.py", first["source"])
	assert.Equal(t, 1, first["line"])
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"json", "TEXT", "html", "yaml"} {
		f, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := Lookup("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "html, json, text, yaml")
}

func TestBandOf(t *testing.T) {
	assert.Equal(t, BandLow, BandOf(model.Logarithmic))
	assert.Equal(t, BandMedium, BandOf(model.Linearithmic))
	assert.Equal(t, BandHigh, BandOf(model.Quadratic))
	assert.Equal(t, BandHigh, BandOf(model.Factorial))
}
