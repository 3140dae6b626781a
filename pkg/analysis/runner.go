package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
)

// ErrSuperseded is returned by a run that was overtaken by a newer one.
var ErrSuperseded = errors.New("analysis superseded by a newer run")

// Enumerator lists the files of the project for one run.
type Enumerator func(ctx context.Context) ([]model.FileRef, error)

// State is the lifecycle stage reported through RunnerOptions.OnStatus.
type State string

const (
	StateAnalyzing State = "analyzing"
	StateReady     State = "ready"
	StateError     State = "error"
)

// Status describes the runner's current stage.
type Status struct {
	State      State  `json:"state"`
	Message    string `json:"message"`
	Generation uint64 `json:"generation"`
}

// RunnerOptions wire a Runner to its consumers.
type RunnerOptions struct {
	// OnResult receives each published result with its generation. Calls
	// are serialized and always in generation order. They run under the
	// runner's lock, so they must not call back into the runner.
	OnResult func(generation uint64, r *model.AnalysisResult)
	OnStatus func(Status)
}

// Runner owns the latest AnalysisResult and re-analyzes on demand. Starting a
// run cancels the one in flight; only the newest completed run is published.
type Runner struct {
	engine    *Engine
	enumerate Enumerator
	src       ContentSource
	opts      RunnerOptions

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     *model.AnalysisResult
	wg         sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(engine *Engine, enumerate Enumerator, src ContentSource, opts RunnerOptions) *Runner {
	return &Runner{
		engine:    engine,
		enumerate: enumerate,
		src:       src,
		opts:      opts,
	}
}

// Run performs one analysis and waits for it. It returns ErrSuperseded if a
// newer run started before this one finished.
func (r *Runner) Run(ctx context.Context, reason string) (*model.AnalysisResult, error) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	gen := r.generation
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	runCtx, runID := logging.WithRunID(runCtx)
	logging.InfoContext(runCtx, "starting analysis", "reason", reason, "generation", gen)
	r.status(Status{State: StateAnalyzing, Message: reason, Generation: gen})

	result, err := r.analyze(runCtx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		logging.DebugContext(runCtx, "discarding superseded analysis", "generation", gen)
		return nil, ErrSuperseded
	}
	r.cancel = nil
	if err != nil {
		r.status(Status{State: StateError, Message: err.Error(), Generation: gen})
		return nil, err
	}

	r.latest = result
	if r.opts.OnResult != nil {
		r.opts.OnResult(gen, result)
	}
	r.status(Status{State: StateReady, Message: fmt.Sprintf("analysis %s complete", runID[:8]), Generation: gen})
	return result, nil
}

func (r *Runner) analyze(ctx context.Context) (*model.AnalysisResult, error) {
	r.mu.Lock()
	engine := r.engine
	r.mu.Unlock()

	files, err := r.enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}
	return engine.Run(ctx, files, r.src)
}

// SetEngine replaces the engine used by runs started from now on, e.g. after
// the front ends were rebuilt for a changed go.mod.
func (r *Runner) SetEngine(engine *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine = engine
}

// Trigger starts a run in the background, superseding any run in flight.
func (r *Runner) Trigger(ctx context.Context, reason string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, err := r.Run(ctx, reason)
		if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
			logging.ErrorContext(ctx, "background analysis failed", "reason", reason, "error", err)
		}
	}()
}

// Wait blocks until every triggered run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Latest returns the newest published result, or nil before the first run
// completes.
func (r *Runner) Latest() *model.AnalysisResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Generation returns the number of runs started so far.
func (r *Runner) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

func (r *Runner) status(s Status) {
	if r.opts.OnStatus != nil {
		r.opts.OnStatus(s)
	}
}
