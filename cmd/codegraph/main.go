package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/ritzau/codegraph/pkg/analysis"
	"github.com/ritzau/codegraph/pkg/config"
	"github.com/ritzau/codegraph/pkg/finder"
	"github.com/ritzau/codegraph/pkg/frontend"
	"github.com/ritzau/codegraph/pkg/frontend/treesitter"
	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
	"github.com/ritzau/codegraph/pkg/progress"
	"github.com/ritzau/codegraph/pkg/report"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// errCyclesFound makes --check-cycles exit with exitFailed.
var errCyclesFound = errors.New("circular dependencies found")

func newFlagSet() *pflag.FlagSet {
	f := pflag.NewFlagSet("codegraph", pflag.ContinueOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: codegraph [flags] [PATH]\n\nAnalyzes dependencies, cycles and complexity of Go, Python, JavaScript and TypeScript code.\n\nFlags:\n")
		f.PrintDefaults()
	}

	// Modes
	f.String("analyze", "", "Run a full analysis of the project at `PATH`")
	f.String("complexity", "", "Report the complexity of the functions in a single `FILE`")
	f.String("check-cycles", "", "Check the project at `PATH` for circular dependencies; exit 1 if an error cycle exists")
	f.Bool("watch", false, "Re-analyze when files change")
	f.Bool("web", false, "Serve the results over HTTP")

	// Output
	f.StringP("format", "f", "text", "Report format: json, text, html or yaml")
	f.StringP("output", "o", "", "Write the report to `FILE` instead of stdout")

	// Analysis
	f.String("root", ".", "Project root, used when no mode flag names a path")
	f.StringSlice("exclude", config.DefaultExcludes, "Glob patterns of paths to skip")
	f.String("threshold", model.Linearithmic.String(), "Warn about functions above this complexity class")
	f.Int("workers", 0, "Parallel parses (0 = one per CPU)")
	f.Duration("file-timeout", 30*time.Second, "Give up parsing a single file after this long (0 = never)")
	f.Bool("verify", true, "Check that the graph build is order independent (--verify=false to skip)")

	// Watch / web
	f.Duration("debounce", 1500*time.Millisecond, "Quiet period before re-analyzing in watch mode")
	f.Int("port", 8080, "Port for the web server")

	// Logging
	f.CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	f.String("verbosity", "", "Log level: debug, info, warn or error (overrides -v)")
	f.String("config", config.DefaultFile, "Configuration file")
	return f
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f := newFlagSet()
	if err := f.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	level, _ := cfg.LogLevel()
	logging.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if file, _ := f.GetString("complexity"); file != "" {
		return exitCode(analyzeFile(ctx, cfg, file))
	}

	root, checkOnly := cfg.Root, false
	if p, _ := f.GetString("analyze"); p != "" {
		root = p
	}
	if p, _ := f.GetString("check-cycles"); p != "" {
		root, checkOnly = p, true
	}
	if f.NArg() > 0 {
		root = f.Arg(0)
	}

	a, err := newApp(cfg, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailed
	}

	if cfg.Watch || cfg.WebMode {
		return exitCode(a.serve(ctx))
	}

	result, err := a.runner.Run(ctx, "analysis requested")
	if err != nil {
		return exitCode(err)
	}
	if err := a.writeReport(result); err != nil {
		return exitCode(err)
	}
	if checkOnly && result.HasErrorCycles() {
		return exitCode(errCyclesFound)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errCyclesFound):
		logging.Warn("check failed", "reason", err)
		return exitFailed
	case errors.Is(err, context.Canceled):
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailed
	}
}

// analyzeFile runs the engine over one file; only its own references resolve.
func analyzeFile(ctx context.Context, cfg *config.Config, file string) error {
	lang := frontend.DetectLanguage(file)
	if lang == model.LangUnknown {
		return fmt.Errorf("%s: unsupported file type", file)
	}

	dir := filepath.Dir(file)
	registry, err := treesitter.NewRegistry(dir)
	if err != nil {
		return err
	}
	threshold, _ := cfg.ThresholdClass()
	engine := analysis.NewEngine(registry, analysis.Options{
		Workers:     1,
		FileTimeout: cfg.FileTimeout,
		Threshold:   threshold,
	})

	refs := []model.FileRef{{Path: filepath.Base(file), Language: lang}}
	result, err := engine.Run(ctx, refs, analysis.DirSource{Root: dir})
	if err != nil {
		return err
	}
	if len(result.Diagnostics) > 0 {
		return fmt.Errorf("%s: %s", file, result.Diagnostics[0].Message)
	}
	return writeReport(cfg, file, result)
}

// app holds what the analysis modes share.
type app struct {
	cfg       *config.Config
	root      string
	threshold model.ComplexityClass
	runner    *analysis.Runner

	// Set by serve before the first run.
	onResult func(uint64, *model.AnalysisResult)
	onStatus func(analysis.Status)
}

func newApp(cfg *config.Config, root string) (*app, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory; use --complexity for a single file", root)
	}

	threshold, _ := cfg.ThresholdClass()
	a := &app{cfg: cfg, root: abs, threshold: threshold}

	engine, err := a.newEngine()
	if err != nil {
		return nil, err
	}
	a.runner = analysis.NewRunner(engine, a.enumerate, analysis.DirSource{Root: abs}, analysis.RunnerOptions{
		OnResult: func(gen uint64, r *model.AnalysisResult) {
			if a.onResult != nil {
				a.onResult(gen, r)
			}
		},
		OnStatus: func(s analysis.Status) {
			if a.onStatus != nil {
				a.onStatus(s)
			}
		},
	})
	return a, nil
}

// newEngine builds an engine with front ends configured for the project's
// current go.mod.
func (a *app) newEngine() (*analysis.Engine, error) {
	registry, err := treesitter.NewRegistry(a.root)
	if err != nil {
		return nil, err
	}
	opts := analysis.Options{
		Workers:     a.cfg.Workers,
		FileTimeout: a.cfg.FileTimeout,
		Threshold:   a.threshold,
		Verify:      a.cfg.Verify,
	}
	if showProgress(a.cfg) {
		opts.Progress = progress.NewTracker("parsing").Update
	}
	return analysis.NewEngine(registry, opts), nil
}

// showProgress is true when stderr is a terminal that logs do not share.
func showProgress(cfg *config.Config) bool {
	level, _ := cfg.LogLevel()
	return level >= logging.LevelForVerbosity(0) && isatty.IsTerminal(os.Stderr.Fd())
}

func (a *app) enumerate(context.Context) ([]model.FileRef, error) {
	return finder.FindSourceFiles(a.root, a.cfg.Exclude)
}

func (a *app) writeReport(r *model.AnalysisResult) error {
	return writeReport(a.cfg, filepath.Base(a.root), r)
}

// writeReport renders r to the configured output. HTML goes to a file even
// when no output is given.
func writeReport(cfg *config.Config, name string, r *model.AnalysisResult) error {
	format, err := report.Lookup(cfg.Format)
	if err != nil {
		return err
	}
	opts := report.Options{Colored: !color.NoColor, Title: fmt.Sprintf("CodeGraph Analysis Report: %s", name)}

	path := cfg.Output
	if path == "" && strings.EqualFold(cfg.Format, "html") {
		path = report.DefaultHTMLFile
	}
	if path == "" {
		return format(os.Stdout, r, opts)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	opts.Colored = false
	if err := format(file, r, opts); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logging.Info("wrote report", "path", path, "format", cfg.Format)
	return nil
}
