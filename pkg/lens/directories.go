package lens

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ritzau/codegraph/pkg/model"
)

// DirectoryEdge aggregates the file dependencies between two directories.
type DirectoryEdge struct {
	Source string                      `json:"source"`
	Target string                      `json:"target"`
	Count  int                         `json:"count"`
	Kinds  map[model.ReferenceKind]int `json:"kinds"`
}

// DirectoryOf collapses a file path to its directory, keeping at most depth
// leading segments. Depth 0 keeps the full directory. Files at the root map
// to ".".
func DirectoryOf(file string, depth int) string {
	dir := path.Dir(file)
	if dir == "." || depth <= 0 {
		return dir
	}
	parts := strings.Split(dir, "/")
	if len(parts) > depth {
		parts = parts[:depth]
	}
	return strings.Join(parts, "/")
}

// AggregateByDirectory collapses file dependencies into directory
// dependencies. Dependencies within one directory are dropped. The result is
// sorted by source, then target.
func AggregateByDirectory(r *model.AnalysisResult, depth int) []DirectoryEdge {
	edgeMap := make(map[string]*DirectoryEdge) // Key: "source|target"

	for _, e := range r.Dependencies {
		src := DirectoryOf(e.Source, depth)
		dst := DirectoryOf(e.Target, depth)
		if src == dst {
			continue
		}

		key := fmt.Sprintf("%s|%s", src, dst)
		agg, ok := edgeMap[key]
		if !ok {
			agg = &DirectoryEdge{Source: src, Target: dst, Kinds: make(map[model.ReferenceKind]int)}
			edgeMap[key] = agg
		}
		agg.Count++
		agg.Kinds[e.Kind]++
	}

	edges := make([]DirectoryEdge, 0, len(edgeMap))
	for _, e := range edgeMap {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}
