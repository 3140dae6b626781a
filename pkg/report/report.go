// Package report renders an AnalysisResult. Each format is an independent
// function over the immutable result; Formats maps names to them.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ritzau/codegraph/pkg/model"
)

// Options tune the renderers that care about them.
type Options struct {
	// Colored enables ANSI colors in the text format.
	Colored bool
	// Title heads the text and HTML reports.
	Title string
}

// Format writes a result in one output format.
type Format func(w io.Writer, r *model.AnalysisResult, opts Options) error

// Formats lists the available formats by name.
var Formats = map[string]Format{
	"json": WriteJSON,
	"text": WriteText,
	"html": WriteHTML,
	"yaml": WriteYAML,
}

// DefaultHTMLFile is where the CLI writes an HTML report when no output file
// is given.
const DefaultHTMLFile = "codegraph-report.html"

// Lookup returns the format registered under name.
func Lookup(name string) (Format, error) {
	f, ok := Formats[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names returns the registered format names, sorted.
func Names() []string {
	names := make([]string, 0, len(Formats))
	for n := range Formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func title(opts Options) string {
	if opts.Title != "" {
		return opts.Title
	}
	return "CodeGraph Analysis Report"
}
