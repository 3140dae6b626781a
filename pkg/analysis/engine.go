// Package analysis runs the front ends over a project and assembles the
// dependency graph, cycles and complexity into one AnalysisResult.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/ritzau/codegraph/pkg/complexity"
	"github.com/ritzau/codegraph/pkg/frontend"
	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
)

// ContentSource supplies file contents to the engine.
type ContentSource interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// DirSource reads paths relative to Root from disk.
type DirSource struct {
	Root string
}

func (d DirSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(path)))
}

// MapSource serves contents from memory.
type MapSource map[string][]byte

func (m MapSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	src, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return src, nil
}

// ProgressFunc is called once per file as its parse finishes.
type ProgressFunc func(done, total int, path string)

// Options configure an Engine.
type Options struct {
	// Workers bounds parallel parses and classifications. Zero means one per CPU.
	Workers int
	// FileTimeout bounds the parse of a single file. Zero disables it.
	FileTimeout time.Duration
	// Threshold is the class above which functions get a warning.
	Threshold model.ComplexityClass
	// Verify rebuilds the graph in reverse input order and fails the run
	// if the two builds differ.
	Verify bool

	Progress ProgressFunc
}

// Engine analyzes a set of files. It holds no per-run state and may serve
// concurrent runs.
type Engine struct {
	registry   *frontend.Registry
	classifier *complexity.Classifier
	opts       Options
}

// NewEngine creates an engine that parses with the front ends in registry.
func NewEngine(registry *frontend.Registry, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Engine{
		registry:   registry,
		classifier: complexity.New(),
		opts:       opts,
	}
}

// WithClassifier replaces the complexity classifier, e.g. to extend its
// recursion catalog.
func (e *Engine) WithClassifier(c *complexity.Classifier) *Engine {
	e.classifier = c
	return e
}

// Run parses files in parallel, waits for all of them, then assembles the
// result. Per-file problems end up in the result's diagnostics. If ctx is
// cancelled the run is abandoned and ctx.Err() returned.
func (e *Engine) Run(ctx context.Context, files []model.FileRef, src ContentSource) (*model.AnalysisResult, error) {
	start := time.Now()
	logging.InfoContext(ctx, "analysis started", "files", len(files), "workers", e.opts.Workers)

	units := make([]*model.SourceUnit, len(files))
	diags := make([]*model.Diagnostic, len(files))
	var done atomic.Int64

	p := pool.New().WithMaxGoroutines(e.opts.Workers)
	for i, f := range files {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			units[i], diags[i] = e.parseFile(ctx, f, src)
			if e.opts.Progress != nil {
				e.opts.Progress(int(done.Add(1)), len(files), f.Path)
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		logging.InfoContext(ctx, "analysis cancelled", "error", err)
		return nil, err
	}

	parsed := make([]*model.SourceUnit, 0, len(units))
	for _, u := range units {
		if u != nil {
			parsed = append(parsed, u)
		}
	}
	var diagnostics []model.Diagnostic
	for _, d := range diags {
		if d != nil {
			diagnostics = append(diagnostics, *d)
		}
	}

	result, err := Assemble(parsed, diagnostics, AssembleOptions{
		Classifier: e.classifier,
		Threshold:  e.opts.Threshold,
		Workers:    e.opts.Workers,
		Verify:     e.opts.Verify,
	})
	if err != nil {
		logging.ErrorContext(ctx, "analysis failed", "error", err)
		return nil, err
	}

	logging.InfoContext(ctx, "analysis complete",
		"files", result.Metrics.TotalFiles,
		"functions", result.Metrics.TotalFunctions,
		"dependencies", result.Metrics.DependencyCount,
		"cycles", result.Metrics.CircularDependencyCount,
		"diagnostics", len(result.Diagnostics),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return result, nil
}

type parseOutcome struct {
	unit *model.SourceUnit
	err  error
}

// parseFile produces either a unit or a diagnostic for f. Nothing from a
// file is kept unless its parse completed.
func (e *Engine) parseFile(ctx context.Context, f model.FileRef, src ContentSource) (*model.SourceUnit, *model.Diagnostic) {
	fe, ok := e.registry.Lookup(f.Language)
	if !ok {
		logging.DebugContext(ctx, "skipping unsupported file", "path", f.Path, "language", f.Language)
		return nil, &model.Diagnostic{
			Path:    f.Path,
			Kind:    model.DiagUnsupportedLanguage,
			Message: fmt.Sprintf("no front end for language %q", f.Language),
		}
	}

	fctx := ctx
	if e.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, e.opts.FileTimeout)
		defer cancel()
	}

	data, err := src.ReadFile(fctx, f.Path)
	if err != nil {
		return nil, e.failure(ctx, fctx, f.Path, err)
	}

	// The parse runs on its own goroutine so a front end that ignores its
	// context still cannot hold the worker past the timeout.
	ch := make(chan parseOutcome, 1)
	go func() {
		u, err := fe.Parse(fctx, f.Path, data)
		ch <- parseOutcome{unit: u, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, e.failure(ctx, fctx, f.Path, out.err)
		}
		if out.unit == nil {
			return nil, e.failure(ctx, fctx, f.Path, &model.ParseFailure{Path: f.Path, Reason: "front end returned no unit"})
		}
		return out.unit, nil
	case <-fctx.Done():
		return nil, e.failure(ctx, fctx, f.Path, fctx.Err())
	}
}

func (e *Engine) failure(ctx, fctx context.Context, path string, err error) *model.Diagnostic {
	if ctx.Err() != nil {
		// The whole run is going away; the caller discards this.
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded) {
		logging.WarnContext(ctx, "parse timed out", "path", path, "timeout", e.opts.FileTimeout)
		return &model.Diagnostic{
			Path:    path,
			Kind:    model.DiagTimeout,
			Message: fmt.Sprintf("parse exceeded %s", e.opts.FileTimeout),
		}
	}

	msg := err.Error()
	var pf *model.ParseFailure
	if errors.As(err, &pf) {
		msg = pf.Reason
	}
	logging.WarnContext(ctx, "parse failed", "path", path, "error", msg)
	return &model.Diagnostic{Path: path, Kind: model.DiagParseFailure, Message: msg}
}
