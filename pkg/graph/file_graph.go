// Package graph turns a set of SourceUnits into the project dependency graph.
package graph

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ritzau/codegraph/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// FileGraph is the file-level dependency graph of a project. Nodes, Edges and
// External are sorted; the gonum view holds each (source, target) pair once.
type FileGraph struct {
	Nodes    []model.Node
	Edges    []model.Edge
	External []model.ExternalDependency

	// LocalReferences counts non-import references that resolved to the unit
	// they were written in. They produce no edge.
	LocalReferences int

	graph     *simple.DirectedGraph
	ids       map[string]int64
	paths     []string
	selfLoops map[string]bool
}

// Build creates the graph for units. The order of units does not matter: they
// are sorted by path before anything else happens. Units sharing a path are
// merged into the first one after sorting.
func Build(units []*model.SourceUnit) *FileGraph {
	sorted := make([]*model.SourceUnit, 0, len(units))
	seen := make(map[string]bool, len(units))
	for _, u := range sortUnits(units) {
		if u == nil || seen[u.Path] {
			continue
		}
		seen[u.Path] = true
		sorted = append(sorted, u)
	}

	fg := &FileGraph{
		Nodes:     make([]model.Node, 0, len(sorted)),
		Edges:     make([]model.Edge, 0),
		External:  make([]model.ExternalDependency, 0),
		graph:     simple.NewDirectedGraph(),
		ids:       make(map[string]int64, len(sorted)),
		paths:     make([]string, 0, len(sorted)),
		selfLoops: make(map[string]bool),
	}

	for _, u := range sorted {
		fg.addFile(u)
	}

	r := newResolver(sorted)
	for _, u := range sorted {
		for _, ref := range u.References {
			targets, ok := r.resolve(u, ref)
			if !ok {
				fg.External = append(fg.External, model.ExternalDependency{
					Source: u.Path,
					Target: ref.Target,
					Kind:   ref.Kind,
					Span:   ref.Span,
				})
				continue
			}
			for _, target := range targets {
				if target == u.Path && ref.Kind != model.RefImport {
					fg.LocalReferences++
					continue
				}
				fg.addDependency(model.Edge{
					Source: u.Path,
					Target: target,
					Kind:   ref.Kind,
					Span:   ref.Span,
				})
			}
		}
	}

	sort.Slice(fg.Edges, func(i, j int) bool { return edgeLess(fg.Edges[i], fg.Edges[j]) })
	sort.Slice(fg.External, func(i, j int) bool {
		return edgeLess(model.Edge(fg.External[i]), model.Edge(fg.External[j]))
	})
	return fg
}

func sortUnits(units []*model.SourceUnit) []*model.SourceUnit {
	out := make([]*model.SourceUnit, 0, len(units))
	for _, u := range units {
		if u != nil {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// addFile adds a node. IDs follow sorted path order so the gonum graph is the
// same however the input was ordered.
func (fg *FileGraph) addFile(u *model.SourceUnit) {
	id := int64(len(fg.paths))
	fg.ids[u.Path] = id
	fg.paths = append(fg.paths, u.Path)
	fg.graph.AddNode(simple.Node(id))
	fg.Nodes = append(fg.Nodes, model.Node{ID: u.Path, Path: u.Path, Language: u.Language})
}

// addDependency records an edge. Parallel edges stay in Edges; the gonum
// graph keeps one arc per pair and self-loops are tracked on the side since
// simple graphs reject them.
func (fg *FileGraph) addDependency(e model.Edge) {
	fg.Edges = append(fg.Edges, e)
	if e.Source == e.Target {
		fg.selfLoops[e.Source] = true
		return
	}
	sourceID, targetID := fg.ids[e.Source], fg.ids[e.Target]
	if !fg.graph.HasEdgeFromTo(sourceID, targetID) {
		fg.graph.SetEdge(fg.graph.NewEdge(fg.graph.Node(sourceID), fg.graph.Node(targetID)))
	}
}

// Graph returns the underlying directed graph, without self-loops.
func (fg *FileGraph) Graph() *simple.DirectedGraph {
	return fg.graph
}

// NodeID returns the gonum ID of path.
func (fg *FileGraph) NodeID(path string) (int64, bool) {
	id, ok := fg.ids[path]
	return id, ok
}

// PathOf returns the path of the node with the given gonum ID.
func (fg *FileGraph) PathOf(id int64) string {
	if id < 0 || int(id) >= len(fg.paths) {
		return ""
	}
	return fg.paths[id]
}

// HasSelfLoop reports whether path depends on itself.
func (fg *FileGraph) HasSelfLoop(path string) bool {
	return fg.selfLoops[path]
}

// SelfLoops returns the paths with a self-loop, sorted.
func (fg *FileGraph) SelfLoops() []string {
	loops := make([]string, 0, len(fg.selfLoops))
	for p := range fg.selfLoops {
		loops = append(loops, p)
	}
	sort.Strings(loops)
	return loops
}

// Dependencies returns the files path depends on, sorted and without
// duplicates. A self-loop is included.
func (fg *FileGraph) Dependencies(path string) []string {
	id, ok := fg.ids[path]
	if !ok {
		return nil
	}
	var deps []string
	iter := fg.graph.From(id)
	for iter.Next() {
		deps = append(deps, fg.paths[iter.Node().ID()])
	}
	if fg.selfLoops[path] {
		deps = append(deps, path)
	}
	sort.Strings(deps)
	return deps
}

// Fingerprint hashes the node set, edge multiset and external references.
// Two graphs with equal fingerprints serialize identically.
func (fg *FileGraph) Fingerprint() uint64 {
	d := xxhash.New()
	for _, n := range fg.Nodes {
		_, _ = d.WriteString("N\x00" + n.ID + "\x00" + string(n.Language) + "\n")
	}
	for _, e := range fg.Edges {
		_, _ = d.WriteString("E\x00" + edgeKey(e) + "\n")
	}
	for _, e := range fg.External {
		_, _ = d.WriteString("X\x00" + edgeKey(model.Edge(e)) + "\n")
	}
	_, _ = d.WriteString("L\x00" + strconv.Itoa(fg.LocalReferences))
	return d.Sum64()
}

func edgeKey(e model.Edge) string {
	return strings.Join([]string{
		e.Source, e.Target, string(e.Kind),
		strconv.Itoa(e.Line), strconv.Itoa(e.Column),
	}, "\x00")
}

func edgeLess(a, b model.Edge) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// resolver maps reference targets onto unit paths.
type resolver struct {
	units   map[string]*model.SourceUnit
	dirs    map[string][]string
	symbols map[string][]string
}

func newResolver(sorted []*model.SourceUnit) *resolver {
	r := &resolver{
		units:   make(map[string]*model.SourceUnit, len(sorted)),
		dirs:    make(map[string][]string),
		symbols: make(map[string][]string),
	}
	for _, u := range sorted {
		r.units[u.Path] = u
		dir := path.Dir(u.Path)
		r.dirs[dir] = append(r.dirs[dir], u.Path)
		declared := make(map[string]bool)
		for _, s := range u.Symbols {
			if declared[s.Name] {
				continue
			}
			declared[s.Name] = true
			r.symbols[s.Name] = append(r.symbols[s.Name], u.Path)
		}
	}
	return r
}

// resolve returns the unit paths ref points to. It tries the unit's own
// resolution table, then an exact path, then a project symbol declared by
// exactly one unit. Import references never resolve through symbols.
func (r *resolver) resolve(u *model.SourceUnit, ref model.Reference) ([]string, bool) {
	if res, ok := u.Resolution[ref.Target]; ok {
		for _, candidate := range res.Paths {
			if targets := r.candidates(candidate, res.Symbol); len(targets) > 0 {
				return targets, true
			}
		}
	}

	if _, ok := r.units[ref.Target]; ok {
		return []string{ref.Target}, true
	}

	if ref.Kind != model.RefImport {
		if owners := r.symbols[ref.Target]; len(owners) == 1 {
			return owners, true
		}
	}
	return nil, false
}

// candidates expands one resolution candidate. A trailing slash names every
// unit in the directory.
func (r *resolver) candidates(candidate, symbol string) []string {
	var paths []string
	if strings.HasSuffix(candidate, "/") {
		dir := strings.TrimSuffix(candidate, "/")
		if dir == "" {
			dir = "."
		}
		paths = r.dirs[path.Clean(dir)]
	} else if _, ok := r.units[candidate]; ok {
		paths = []string{candidate}
	}
	if symbol == "" {
		return paths
	}
	var matched []string
	for _, p := range paths {
		if r.units[p].Declares(symbol) {
			matched = append(matched, p)
		}
	}
	return matched
}
