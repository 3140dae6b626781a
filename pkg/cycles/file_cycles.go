// Package cycles reports circular dependencies in a project graph.
package cycles

import (
	"fmt"
	"slices"
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/codegraph/pkg/graph"
	"github.com/ritzau/codegraph/pkg/model"
)

// FindCycles returns every circular dependency in fg, canonicalized and
// sorted by first node. Each strongly connected component of two or more
// files is one cycle; a file that imports itself is a cycle of one unless it
// already belongs to a larger component.
//
// An error wrapping model.ErrInvariantViolation means a reported cycle was
// not strongly connected. No cycles are returned in that case.
func FindCycles(fg *graph.FileGraph) ([]model.Cycle, error) {
	g := fg.Graph()
	tarjan := NewTarjanSCC(g)
	sccs := tarjan.FindSCCs()

	inComponent := make(map[string]bool)
	cycles := make([]model.Cycle, 0, len(sccs))
	for _, scc := range sccs {
		nodes := canonicalOrder(fg, scc)
		for _, n := range nodes {
			inComponent[n] = true
		}
		cycles = append(cycles, model.Cycle{Nodes: nodes, Severity: SeverityFor(len(scc))})
	}

	for _, p := range fg.SelfLoops() {
		if inComponent[p] {
			continue
		}
		cycles = append(cycles, model.Cycle{Nodes: []string{p}, Severity: SeverityFor(1)})
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Nodes[0] < cycles[j].Nodes[0] })

	for _, c := range cycles {
		if err := verify(fg, c); err != nil {
			return nil, err
		}
	}
	return cycles, nil
}

// SeverityFor grades a cycle by size: direct mutual dependencies (and
// self-imports) are warnings, anything longer is an error.
func SeverityFor(size int) model.Severity {
	if size >= 3 {
		return model.SeverityError
	}
	return model.SeverityWarning
}

// canonicalOrder walks the component depth-first from its smallest member,
// taking successors in sorted order. Node IDs follow path order, so the
// smallest ID is the lexicographically smallest path.
//
// When that order is not itself a ring, the result is a closed walk through
// every member instead: consecutive nodes, and the last and first, are always
// joined by an edge, and a node may appear more than once.
func canonicalOrder(fg *graph.FileGraph, scc []int64) []string {
	members := make(map[int64]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}
	g := fg.Graph()

	order := make([]int64, 0, len(scc))
	visited := make(map[int64]bool, len(scc))
	var dfs func(id int64)
	dfs = func(id int64) {
		visited[id] = true
		order = append(order, id)
		for _, next := range sortedIDs(g.From(id)) {
			if members[next] && !visited[next] {
				dfs(next)
			}
		}
	}
	dfs(scc[0])
	if len(order) < len(scc) {
		// Not strongly connected; keep the missing members so verify
		// reports them.
		for _, id := range scc {
			if !visited[id] {
				order = append(order, id)
			}
		}
		return paths(fg, order)
	}

	ring := true
	for i, id := range order {
		if !g.HasEdgeFromTo(id, order[(i+1)%len(order)]) {
			ring = false
			break
		}
	}
	if ring {
		return paths(fg, order)
	}

	start := order[0]
	walk := []int64{start}
	seen := map[int64]bool{start: true}
	at := start
	for _, target := range order[1:] {
		if seen[target] {
			continue
		}
		for _, id := range shortestPath(g, members, at, target) {
			walk = append(walk, id)
			seen[id] = true
		}
		at = target
	}
	back := shortestPath(g, members, at, start)
	walk = append(walk, back[:len(back)-1]...)
	return paths(fg, walk)
}

// shortestPath returns the nodes after from on a shortest path to to that
// stays inside members, ending with to. Ties go to the smaller ID. to must
// be reachable and differ from from.
func shortestPath(g gonum.Directed, members map[int64]bool, from, to int64) []int64 {
	prev := map[int64]int64{from: from}
	queue := []int64{from}
	for len(queue) > 0 && !hasKey(prev, to) {
		id := queue[0]
		queue = queue[1:]
		for _, next := range sortedIDs(g.From(id)) {
			if members[next] && !hasKey(prev, next) {
				prev[next] = id
				queue = append(queue, next)
			}
		}
	}
	var path []int64
	for id := to; id != from; id = prev[id] {
		path = append(path, id)
	}
	slices.Reverse(path)
	return path
}

func hasKey(m map[int64]int64, k int64) bool {
	_, ok := m[k]
	return ok
}

func paths(fg *graph.FileGraph, ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fg.PathOf(id)
	}
	return out
}

func verify(fg *graph.FileGraph, c model.Cycle) error {
	if len(c.Nodes) == 1 {
		if !fg.HasSelfLoop(c.Nodes[0]) {
			return fmt.Errorf("%w: single-node cycle %s has no self-loop", model.ErrInvariantViolation, c.Nodes[0])
		}
		return nil
	}

	g := fg.Graph()
	firstID, ok := fg.NodeID(c.Nodes[0])
	if !ok {
		return fmt.Errorf("%w: cycle node %s not in graph", model.ErrInvariantViolation, c.Nodes[0])
	}
	first := g.Node(firstID)
	for _, n := range c.Nodes[1:] {
		id, ok := fg.NodeID(n)
		if !ok {
			return fmt.Errorf("%w: cycle node %s not in graph", model.ErrInvariantViolation, n)
		}
		other := g.Node(id)
		if !topo.PathExistsIn(g, first, other) || !topo.PathExistsIn(g, other, first) {
			return fmt.Errorf("%w: %s and %s are not mutually reachable", model.ErrInvariantViolation, c.Nodes[0], n)
		}
	}
	return nil
}
