package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/codegraph/pkg/finder"
	"github.com/ritzau/codegraph/pkg/frontend"
	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypeConfig is a change to go.mod or the config file, which can
	// alter how imports resolve.
	ChangeTypeConfig ChangeType = iota
	ChangeTypeSource
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeConfig:
		return "config"
	case ChangeTypeSource:
		return "source"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups raw events before they are emitted.
const batchWindow = 100 * time.Millisecond

// FileWatcher watches every non-excluded directory of a project. fsnotify
// is not recursive, so directories created later are added as they appear.
type FileWatcher struct {
	watcher     *fsnotify.Watcher
	root        string
	excludes    []string
	configFiles map[string]bool
	events      chan ChangeEvent
	stopOnce    sync.Once
}

// NewFileWatcher creates a watcher for root. configFiles are names, relative
// to root, whose changes are reported as ChangeTypeConfig.
func NewFileWatcher(root string, excludes []string, configFiles ...string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:     watcher,
		root:        root,
		excludes:    excludes,
		configFiles: make(map[string]bool),
		events:      make(chan ChangeEvent, 100),
	}
	for _, f := range configFiles {
		fw.configFiles[filepath.ToSlash(filepath.Clean(f))] = true
	}
	return fw, nil
}

// Start adds the project directories and begins processing events. The
// events channel is closed once ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	count, err := fw.addTree(fw.root)
	if err != nil {
		return err
	}
	logging.Info("started watching project", "path", fw.root, "directories", count)

	go fw.processEvents(ctx)
	return nil
}

// addTree watches dir and its non-excluded subdirectories.
func (fw *FileWatcher) addTree(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip what we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := fw.rel(path); ok && rel != "." && finder.ExcludedDir(rel, fw.excludes) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			logging.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to walk project: %w", err)
	}
	return count, nil
}

func (fw *FileWatcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// classify maps an event path onto a change type.
func (fw *FileWatcher) classify(path string) (ChangeType, bool) {
	rel, ok := fw.rel(path)
	if !ok || finder.Excluded(rel, fw.excludes) {
		return 0, false
	}
	if fw.configFiles[rel] {
		return ChangeTypeConfig, true
	}
	if frontend.DetectLanguage(rel) != model.LangUnknown {
		return ChangeTypeSource, true
	}
	return 0, false
}

// processEvents processes file system events and batches them by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, t := range []ChangeType{ChangeTypeConfig, ChangeTypeSource} {
			if len(pending[t]) == 0 {
				continue
			}
			select {
			case fw.events <- ChangeEvent{Type: t, Paths: pending[t], Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
			delete(pending, t)
		}
	}

	defer close(fw.events)
	defer fw.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				fw.watchIfDir(event.Name)
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			t, relevant := fw.classify(event.Name)
			if !relevant {
				continue
			}
			logging.Debug("file changed", "path", event.Name, "op", event.Op.String(), "type", t)
			pending[t] = append(pending[t], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) watchIfDir(path string) {
	rel, ok := fw.rel(path)
	if !ok || finder.ExcludedDir(rel, fw.excludes) {
		return
	}
	if count, err := fw.addTree(path); err == nil && count > 0 {
		logging.Debug("watching new directory", "path", path, "directories", count)
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop releases the underlying watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
