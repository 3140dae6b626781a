package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/codegraph/pkg/analysis"
	"github.com/ritzau/codegraph/pkg/config"
	"github.com/ritzau/codegraph/pkg/lens"
	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
	"github.com/ritzau/codegraph/pkg/output"
	"github.com/ritzau/codegraph/pkg/watcher"
	"github.com/ritzau/codegraph/pkg/web"
)

// maxWaitFactor bounds how long a stream of changes can postpone a run,
// relative to the debounce period.
const maxWaitFactor = 10

// serve runs the long-lived modes until ctx is done: the web server, the
// watch loop, or both.
func (a *app) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	var server *web.Server
	if a.cfg.WebMode {
		server = web.NewServer(fmt.Sprintf("CodeGraph Analysis Report: %s", filepath.Base(a.root)))
		a.onStatus = server.SetStatus
		g.Go(func() error {
			return server.Start(ctx, a.cfg.Port)
		})
	}

	// Reasons of the runs in flight, by generation.
	var (
		mu      sync.Mutex
		reasons = make(map[uint64]string)
		prev    *model.AnalysisResult
	)
	prevStatus := a.onStatus
	a.onStatus = func(s analysis.Status) {
		mu.Lock()
		if s.State == analysis.StateAnalyzing {
			reasons[s.Generation] = s.Message
		}
		mu.Unlock()
		if prevStatus != nil {
			prevStatus(s)
		}
	}
	a.onResult = func(gen uint64, r *model.AnalysisResult) {
		mu.Lock()
		reason := reasons[gen]
		for g := range reasons {
			if g <= gen {
				delete(reasons, g) // includes superseded runs
			}
		}
		mu.Unlock()

		if server != nil {
			server.SetResult(gen, r)
		}
		if a.cfg.Watch {
			output.PrintRunSummary(os.Stdout, gen, reason, r, lens.ComputeDiff(prev, r))
			prev = r
		}
		if a.cfg.Output != "" {
			if err := a.writeReport(r); err != nil {
				logging.Error("failed to write report", "error", err)
			}
		}
	}

	a.runner.Trigger(ctx, "initial analysis")

	if a.cfg.Watch {
		g.Go(func() error {
			return a.watch(ctx)
		})
	}

	err := g.Wait()
	a.runner.Wait()
	return err
}

// watch re-analyzes on file changes until ctx is done.
func (a *app) watch(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(a.root, a.cfg.Exclude, "go.mod", config.DefaultFile)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), a.cfg.Debounce, maxWaitFactor*a.cfg.Debounce)
	debouncer.Start(ctx)
	logging.Info("watching for changes", "root", a.root, "debounce", a.cfg.Debounce)

	for event := range debouncer.Output() {
		change := watcher.AnalyzeChanges(event, a.root)
		logging.Info("change detected", "reason", change.Reason, "files", len(change.ChangedFiles))

		if change.ReloadFrontends {
			engine, err := a.newEngine()
			if err != nil {
				logging.Error("failed to reload front ends, keeping the previous ones", "error", err)
			} else {
				a.runner.SetEngine(engine)
			}
		}
		a.runner.Trigger(ctx, change.Reason)
	}
	return nil
}
