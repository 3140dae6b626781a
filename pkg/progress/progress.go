// Package progress shows per-run parse progress on the terminal.
package progress

import (
	"io"
	"os"
	"path"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Tracker draws one progress bar per analysis run. Its Update method has
// the shape of analysis.ProgressFunc.
type Tracker struct {
	w     io.Writer
	label string

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	total int
}

// NewTracker creates a tracker that draws on stderr.
func NewTracker(label string) *Tracker {
	return NewTrackerTo(os.Stderr, label)
}

// NewTrackerTo creates a tracker that draws on w.
func NewTrackerTo(w io.Writer, label string) *Tracker {
	return &Tracker{w: w, label: label}
}

func (t *Tracker) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(t.label),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Update records that done of total files are parsed. A done of 1 or a new
// total starts a new bar; reaching total clears it. Calls may arrive out of
// order. Safe for concurrent use.
func (t *Tracker) Update(done, total int, file string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case done == 1 || total != t.total:
		if t.bar != nil {
			_ = t.bar.Finish()
		}
		t.bar = t.newBar(total)
		t.total = total
	case t.bar == nil:
		// Late update from a run whose bar is already cleared.
		return
	}
	t.bar.Describe(t.label + " " + path.Base(file))
	_ = t.bar.Set(done)
	if done >= total {
		_ = t.bar.Finish()
		_ = t.bar.Clear()
		t.bar = nil
	}
}

// Done reports whether no bar is in progress.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bar == nil
}
