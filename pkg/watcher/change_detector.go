package watcher

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ChangeAnalysis describes what changed and what a re-run has to redo
type ChangeAnalysis struct {
	// ReloadFrontends is set when module resolution may have changed, so
	// front ends must be rebuilt before the next run.
	ReloadFrontends bool
	ChangedFiles    []string
	Reason          string
}

// AnalyzeChanges determines what needs to be redone for event. Every change
// triggers a full analysis; only the front end reload depends on the type.
func AnalyzeChanges(event ChangeEvent, root string) *ChangeAnalysis {
	files := make([]string, 0, len(event.Paths))
	for _, p := range event.Paths {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = filepath.ToSlash(rel)
		}
		files = append(files, p)
	}
	sort.Strings(files)

	analysis := &ChangeAnalysis{ChangedFiles: files}
	switch event.Type {
	case ChangeTypeConfig:
		analysis.ReloadFrontends = true
		analysis.Reason = fmt.Sprintf("configuration changed: %s", describe(files))
	default:
		analysis.Reason = fmt.Sprintf("source changed: %s", describe(files))
	}
	return analysis
}

func describe(files []string) string {
	switch len(files) {
	case 0:
		return "no files"
	case 1:
		return files[0]
	default:
		return fmt.Sprintf("%s and %d more", files[0], len(files)-1)
	}
}
