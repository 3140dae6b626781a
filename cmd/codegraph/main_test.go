package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/codegraph/pkg/model"
	"github.com/ritzau/codegraph/pkg/report"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func readResult(t *testing.T, path string) model.AnalysisResult {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var r model.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

var cyclicProject = map[string]string{
	"a.py": "import b\n\ndef f():\n    return b.g()\n",
	"b.py": "import a\n\ndef g():\n    return 1\n",
}

func TestRunCheckCyclesFails(t *testing.T) {
	root := writeProject(t, cyclicProject)
	out := filepath.Join(t.TempDir(), "report.json")

	code := run([]string{"--check-cycles", root, "--format", "json", "--output", out, "--config", filepath.Join(root, "none.toml")})
	// The explicit config file does not exist.
	assert.Equal(t, exitUsage, code)

	code = run([]string{"--check-cycles", root, "--format", "json", "--output", out})
	assert.Equal(t, exitFailed, code)

	r := readResult(t, out)
	require.Len(t, r.Cycles, 1)
	assert.Equal(t, []string{"a.py", "b.py"}, r.Cycles[0].Nodes)
	assert.Equal(t, model.SeverityError, r.Cycles[0].Severity)
}

func TestRunAnalyzePasses(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app/main.py": "from app import util\n\ndef run(xs):\n    for x in xs:\n        util.show(x)\n",
		"app/util.py": "def show(x):\n    print(x)\n",
		"node_modules/dep/index.js": "module.exports = 1\n",
	})
	out := filepath.Join(t.TempDir(), "report.json")

	code := run([]string{"--analyze", root, "--format", "json", "--output", out})
	require.Equal(t, exitOK, code)

	r := readResult(t, out)
	assert.Equal(t, 2, r.Metrics.TotalFiles)
	assert.Empty(t, r.Cycles)
	assert.NotEmpty(t, r.Dependencies)
}

func TestRunComplexitySingleFile(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pairs.py": "def pairs(xs):\n    for a in xs:\n        for b in xs:\n            print(a, b)\n",
	})
	out := filepath.Join(t.TempDir(), "report.json")

	code := run([]string{"--complexity", filepath.Join(root, "pairs.py"), "--format", "json", "--output", out})
	require.Equal(t, exitOK, code)

	r := readResult(t, out)
	require.Len(t, r.Complexity, 1)
	assert.Equal(t, model.Quadratic, r.Complexity[0].Complexity)
	assert.NotEmpty(t, r.Complexity[0].Warning)
}

func TestRunUsageErrors(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"--no-such-flag"}))
	assert.Equal(t, exitUsage, run([]string{"--format", "pdf"}))
	assert.Equal(t, exitFailed, run([]string{"--analyze", filepath.Join(t.TempDir(), "missing")}))
	assert.Equal(t, exitFailed, run([]string{"--complexity", "notes.txt"}))
}

func TestRunHTMLDefaultsToFile(t *testing.T) {
	root := writeProject(t, cyclicProject)
	t.Chdir(t.TempDir())

	// Format names are case-insensitive, the default file included.
	require.Equal(t, exitOK, run([]string{"--analyze", root, "--format", "HTML"}))

	data, err := os.ReadFile(report.DefaultHTMLFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.py")
}

func TestRunReportWriteError(t *testing.T) {
	root := writeProject(t, cyclicProject)
	dir := t.TempDir()

	assert.Equal(t, exitFailed, run([]string{"--analyze", root, "--format", "json", "--output", dir}))
}
