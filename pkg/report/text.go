package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ritzau/codegraph/pkg/model"
)

// WriteText writes a console report: metrics, then the complexity table,
// then cycles and diagnostics.
func WriteText(w io.Writer, r *model.AnalysisResult, opts Options) error {
	p := newPalette(opts.Colored)

	t := title(opts)
	p.bold.Fprintln(w, t)
	fmt.Fprintln(w, strings.Repeat("=", len(t)))
	fmt.Fprintf(w, "Files analyzed: %d\n", r.Metrics.TotalFiles)
	fmt.Fprintf(w, "Functions found: %d\n", r.Metrics.TotalFunctions)
	fmt.Fprintf(w, "Dependencies: %d (%d external)\n", r.Metrics.DependencyCount, r.Metrics.ExternalDependencyCount)
	fmt.Fprintf(w, "Average complexity: %s\n", r.Metrics.AverageComplexity)
	if r.Metrics.CircularDependencyCount == 0 {
		p.green.Fprintf(w, "Circular dependencies: 0\n")
	} else {
		p.red.Fprintf(w, "Circular dependencies: %d\n", r.Metrics.CircularDependencyCount)
	}
	fmt.Fprintln(w)

	if len(r.Complexity) > 0 {
		p.bold.Fprintln(w, "Complexity Analysis")
		rows := make([][]string, 0, len(r.Complexity))
		for _, fc := range r.Complexity {
			status := "ok"
			if fc.Warning != "" {
				status = "warn"
			}
			rows = append(rows, []string{
				p.complexity(fc.Complexity),
				fc.Function,
				fc.File + ":" + strconv.Itoa(fc.Line),
				fc.Reason,
				status,
			})
		}
		renderTable(w, []string{"Complexity", "Function", "Location", "Reason", "Status"}, rows)
	}

	if len(r.Cycles) > 0 {
		p.bold.Fprintln(w, "Circular Dependencies")
		for _, c := range r.Cycles {
			ring := strings.Join(append(append([]string{}, c.Nodes...), c.Nodes[0]), " → ")
			if c.Severity == model.SeverityError {
				p.red.Fprintf(w, "  [error]   %s\n", ring)
			} else {
				p.yellow.Fprintf(w, "  [warning] %s\n", ring)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Diagnostics) > 0 {
		p.bold.Fprintln(w, "Diagnostics")
		for _, d := range r.Diagnostics {
			p.yellow.Fprintf(w, "  %s: %s (%s)\n", d.Path, d.Message, d.Kind)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(w)
}

type palette struct {
	bold, red, yellow, green *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		bold:   color.New(color.Bold),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		green:  color.New(color.FgGreen),
	}
	for _, c := range []*color.Color{p.bold, p.red, p.yellow, p.green} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// complexity colors a class by band: O(n²) and above red, O(n) and
// O(n log n) yellow, cheaper classes green.
func (p palette) complexity(c model.ComplexityClass) string {
	switch BandOf(c) {
	case BandHigh:
		return p.red.Sprint(c.String())
	case BandMedium:
		return p.yellow.Sprint(c.String())
	default:
		return p.green.Sprint(c.String())
	}
}

// Band groups classes for highlighting.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// BandOf returns the highlight band of c.
func BandOf(c model.ComplexityClass) Band {
	switch {
	case c.Compare(model.Quadratic) >= 0:
		return BandHigh
	case c.Compare(model.Linear) >= 0:
		return BandMedium
	default:
		return BandLow
	}
}
