package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan ChangeEvent, timeout time.Duration) (ChangeEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(timeout):
		t.Fatalf("no event within %v", timeout)
		return ChangeEvent{}, false
	}
}

func TestDebouncerMergesBursts(t *testing.T) {
	in := make(chan ChangeEvent, 10)
	d := NewDebouncer(in, 50*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"a.go"}}
	in <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"b.go", "a.go"}}
	in <- ChangeEvent{Type: ChangeTypeConfig, Paths: []string{"go.mod"}}

	first, _ := receive(t, d.Output(), time.Second)
	if first.Type != ChangeTypeConfig || len(first.Paths) != 1 {
		t.Errorf("first event = %+v, want the config change", first)
	}
	second, _ := receive(t, d.Output(), time.Second)
	if second.Type != ChangeTypeSource {
		t.Fatalf("second event type = %v, want source", second.Type)
	}
	if len(second.Paths) != 2 || second.Paths[0] != "a.go" || second.Paths[1] != "b.go" {
		t.Errorf("second event paths = %v, want [a.go b.go]", second.Paths)
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, time.Hour, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"a.go"}}

	// The quiet period never elapses; maxWait forces the flush.
	ev, _ := receive(t, d.Output(), 2*time.Second)
	if len(ev.Paths) != 1 || ev.Paths[0] != "a.go" {
		t.Errorf("event = %+v, want a.go", ev)
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	in := make(chan ChangeEvent, 1)
	d := NewDebouncer(in, time.Hour, time.Hour)
	d.Start(context.Background())

	in <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"a.go"}}
	close(in)

	if ev, ok := receive(t, d.Output(), time.Second); !ok || ev.Paths[0] != "a.go" {
		t.Errorf("event = %+v, %v; want a.go", ev, ok)
	}
	if _, ok := receive(t, d.Output(), time.Second); ok {
		t.Error("output should be closed after input closes")
	}
}

func TestAnalyzeChanges(t *testing.T) {
	root := filepath.FromSlash("/work/shop")
	tests := []struct {
		name   string
		event  ChangeEvent
		reload bool
		files  []string
		reason string
	}{
		{
			name:   "single source",
			event:  ChangeEvent{Type: ChangeTypeSource, Paths: []string{filepath.Join(root, "app", "main.py")}},
			files:  []string{"app/main.py"},
			reason: "source changed: app/main.py",
		},
		{
			name: "several sources",
			event: ChangeEvent{Type: ChangeTypeSource, Paths: []string{
				filepath.Join(root, "b.go"), filepath.Join(root, "a.go"), filepath.Join(root, "c.go"),
			}},
			files:  []string{"a.go", "b.go", "c.go"},
			reason: "source changed: a.go and 2 more",
		},
		{
			name:   "config",
			event:  ChangeEvent{Type: ChangeTypeConfig, Paths: []string{filepath.Join(root, "go.mod")}},
			reload: true,
			files:  []string{"go.mod"},
			reason: "configuration changed: go.mod",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeChanges(tt.event, root)
			if got.ReloadFrontends != tt.reload {
				t.Errorf("ReloadFrontends = %v, want %v", got.ReloadFrontends, tt.reload)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
			if len(got.ChangedFiles) != len(tt.files) {
				t.Fatalf("ChangedFiles = %v, want %v", got.ChangedFiles, tt.files)
			}
			for i := range tt.files {
				if got.ChangedFiles[i] != tt.files[i] {
					t.Errorf("ChangedFiles[%d] = %q, want %q", i, got.ChangedFiles[i], tt.files[i])
				}
			}
		})
	}
}

func TestFileWatcherClassifiesChanges(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"pkg", "node_modules/dep"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	fw, err := NewFileWatcher(root, []string{"**/node_modules/**"}, "go.mod")
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	write := func(rel, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("node_modules/dep/index.js", "module.exports = 1")
	write("notes.txt", "ignored")
	write("go.mod", "module example.com/shop\n")
	write("pkg/store.go", "package pkg\n")

	got := map[ChangeType]bool{}
	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-fw.Events():
			for _, p := range ev.Paths {
				rel, _ := filepath.Rel(root, p)
				rel = filepath.ToSlash(rel)
				switch {
				case ev.Type == ChangeTypeConfig && rel == "go.mod":
				case ev.Type == ChangeTypeSource && rel == "pkg/store.go":
				default:
					t.Errorf("unexpected %v event for %s", ev.Type, rel)
				}
			}
			got[ev.Type] = true
		case <-deadline:
			t.Fatalf("timed out; saw %v", got)
		}
	}

	cancel()
	for range fw.Events() {
	}
}

func TestChangeTypeString(t *testing.T) {
	if ChangeTypeConfig.String() != "config" || ChangeTypeSource.String() != "source" {
		t.Error("unexpected ChangeType names")
	}
	if got := ChangeType(7).String(); got != "ChangeType(7)" {
		t.Errorf("String() = %q", got)
	}
}
