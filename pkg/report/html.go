package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/ritzau/codegraph/pkg/model"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// MaxHTMLDependencies caps the dependency list in the HTML report.
const MaxHTMLDependencies = 50

var htmlTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"band": func(c model.ComplexityClass) string { return string(BandOf(c)) },
	"ring": func(nodes []string) string {
		if len(nodes) == 0 {
			return ""
		}
		return strings.Join(append(append([]string{}, nodes...), nodes[0]), " → ")
	},
}).ParseFS(templateFS, "templates/report.html.tmpl"))

type htmlData struct {
	Title        string
	Result       *model.AnalysisResult
	Dependencies []model.Edge
	Truncated    int
}

// WriteHTML writes a standalone HTML page.
func WriteHTML(w io.Writer, r *model.AnalysisResult, opts Options) error {
	deps := r.Dependencies
	truncated := 0
	if len(deps) > MaxHTMLDependencies {
		truncated = len(deps) - MaxHTMLDependencies
		deps = deps[:MaxHTMLDependencies]
	}
	data := htmlData{
		Title:        title(opts),
		Result:       r,
		Dependencies: deps,
		Truncated:    truncated,
	}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
