// Package lens derives views of an AnalysisResult: what changed between two
// runs, the neighbourhood of selected files and the directory-level graph.
package lens

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ritzau/codegraph/pkg/model"
)

// ResultDiff represents the difference between two analysis results
type ResultDiff struct {
	AddedNodes     []string      `json:"addedNodes"`
	RemovedNodes   []string      `json:"removedNodes"`
	AddedEdges     []model.Edge  `json:"addedEdges"`
	RemovedEdges   []model.Edge  `json:"removedEdges"`
	NewCycles      []model.Cycle `json:"newCycles"`
	ResolvedCycles []model.Cycle `json:"resolvedCycles"`

	// FullGraph is set when there was no previous result to diff against.
	FullGraph bool `json:"fullGraph"`
}

// Empty reports whether nothing structural changed.
func (d *ResultDiff) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0 &&
		len(d.NewCycles) == 0 && len(d.ResolvedCycles) == 0
}

// String summarizes the diff on one line.
func (d *ResultDiff) String() string {
	if d.FullGraph {
		return fmt.Sprintf("%d files, %d dependencies", len(d.AddedNodes), len(d.AddedEdges))
	}
	if d.Empty() {
		return "no structural changes"
	}
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(len(d.AddedNodes), "files added")
	add(len(d.RemovedNodes), "files removed")
	add(len(d.AddedEdges), "dependencies added")
	add(len(d.RemovedEdges), "dependencies removed")
	add(len(d.NewCycles), "new cycles")
	add(len(d.ResolvedCycles), "cycles resolved")
	return strings.Join(parts, ", ")
}

// ComputeDiff computes the difference between two results. Edges are keyed
// by source, target and kind; a reference that only moved within its file is
// not a change.
func ComputeDiff(old, cur *model.AnalysisResult) *ResultDiff {
	if old == nil {
		diff := &ResultDiff{AddedEdges: uniqueEdges(cur.Dependencies), NewCycles: cur.Cycles, FullGraph: true}
		for _, n := range cur.Nodes {
			diff.AddedNodes = append(diff.AddedNodes, n.ID)
		}
		return diff
	}

	diff := &ResultDiff{
		AddedNodes:     []string{},
		RemovedNodes:   []string{},
		AddedEdges:     []model.Edge{},
		RemovedEdges:   []model.Edge{},
		NewCycles:      []model.Cycle{},
		ResolvedCycles: []model.Cycle{},
	}

	oldNodes := nodeSet(old)
	newNodes := nodeSet(cur)
	for id := range newNodes {
		if !oldNodes[id] {
			diff.AddedNodes = append(diff.AddedNodes, id)
		}
	}
	for id := range oldNodes {
		if !newNodes[id] {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}
	sort.Strings(diff.AddedNodes)
	sort.Strings(diff.RemovedNodes)

	oldEdges := edgeSet(old.Dependencies)
	newEdges := edgeSet(cur.Dependencies)
	for _, e := range uniqueEdges(cur.Dependencies) {
		if _, ok := oldEdges[edgeKey(e)]; !ok {
			diff.AddedEdges = append(diff.AddedEdges, e)
		}
	}
	for _, e := range uniqueEdges(old.Dependencies) {
		if _, ok := newEdges[edgeKey(e)]; !ok {
			diff.RemovedEdges = append(diff.RemovedEdges, e)
		}
	}

	oldCycles := cycleSet(old.Cycles)
	newCycles := cycleSet(cur.Cycles)
	for _, c := range cur.Cycles {
		if !oldCycles[cycleKey(c)] {
			diff.NewCycles = append(diff.NewCycles, c)
		}
	}
	for _, c := range old.Cycles {
		if !newCycles[cycleKey(c)] {
			diff.ResolvedCycles = append(diff.ResolvedCycles, c)
		}
	}
	return diff
}

func nodeSet(r *model.AnalysisResult) map[string]bool {
	set := make(map[string]bool, len(r.Nodes))
	for _, n := range r.Nodes {
		set[n.ID] = true
	}
	return set
}

// edgeKey creates a unique key for an edge
func edgeKey(e model.Edge) string {
	return fmt.Sprintf("%s|%s|%s", e.Source, e.Target, e.Kind)
}

func edgeSet(edges []model.Edge) map[string]model.Edge {
	set := make(map[string]model.Edge, len(edges))
	for _, e := range edges {
		if _, ok := set[edgeKey(e)]; !ok {
			set[edgeKey(e)] = e
		}
	}
	return set
}

// uniqueEdges keeps the first edge per key, in input order.
func uniqueEdges(edges []model.Edge) []model.Edge {
	seen := make(map[string]bool, len(edges))
	out := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if k := edgeKey(e); !seen[k] {
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}

// cycleKey relies on cycles starting at their smallest member.
func cycleKey(c model.Cycle) string {
	return strings.Join(c.Nodes, "|") + "|" + string(c.Severity)
}

func cycleSet(cycles []model.Cycle) map[string]bool {
	set := make(map[string]bool, len(cycles))
	for _, c := range cycles {
		set[cycleKey(c)] = true
	}
	return set
}
