package lens

import (
	"reflect"
	"testing"

	"github.com/ritzau/codegraph/pkg/model"
)

func edge(src, dst string, kind model.ReferenceKind, line int) model.Edge {
	return model.Edge{Source: src, Target: dst, Kind: kind, Span: model.Span{Line: line, Column: 1}}
}

func result(edges []model.Edge, cycles []model.Cycle, nodes ...string) *model.AnalysisResult {
	r := &model.AnalysisResult{Dependencies: edges, Cycles: cycles}
	for _, n := range nodes {
		r.Nodes = append(r.Nodes, model.Node{ID: n, Path: n})
	}
	return r
}

func TestComputeDiffWithoutPrevious(t *testing.T) {
	cur := result([]model.Edge{
		edge("a.go", "b.go", model.RefImport, 1),
		edge("a.go", "b.go", model.RefImport, 7),
	}, nil, "a.go", "b.go")

	diff := ComputeDiff(nil, cur)
	if !diff.FullGraph {
		t.Error("FullGraph = false without a previous result")
	}
	if len(diff.AddedNodes) != 2 || len(diff.AddedEdges) != 1 {
		t.Errorf("diff = %+v, want 2 nodes and 1 distinct edge", diff)
	}
	if got := diff.String(); got != "2 files, 1 dependencies" {
		t.Errorf("String() = %q", got)
	}
}

func TestComputeDiff(t *testing.T) {
	old := result([]model.Edge{
		edge("a.go", "b.go", model.RefImport, 1),
		edge("b.go", "a.go", model.RefCall, 4),
		edge("a.go", "c.go", model.RefImport, 2),
	}, []model.Cycle{{Nodes: []string{"a.go", "b.go"}, Severity: model.SeverityError}},
		"a.go", "b.go", "c.go")

	cur := result([]model.Edge{
		edge("a.go", "b.go", model.RefImport, 3), // moved, not changed
		edge("a.go", "d.go", model.RefImport, 2),
	}, nil, "a.go", "b.go", "d.go")

	diff := ComputeDiff(old, cur)
	if diff.FullGraph || diff.Empty() {
		t.Fatalf("diff = %+v, want a partial non-empty diff", diff)
	}
	if !reflect.DeepEqual(diff.AddedNodes, []string{"d.go"}) || !reflect.DeepEqual(diff.RemovedNodes, []string{"c.go"}) {
		t.Errorf("nodes: added %v removed %v", diff.AddedNodes, diff.RemovedNodes)
	}
	if len(diff.AddedEdges) != 1 || diff.AddedEdges[0].Target != "d.go" {
		t.Errorf("AddedEdges = %v", diff.AddedEdges)
	}
	if len(diff.RemovedEdges) != 2 {
		t.Errorf("RemovedEdges = %v, want b.go->a.go and a.go->c.go", diff.RemovedEdges)
	}
	if len(diff.NewCycles) != 0 || len(diff.ResolvedCycles) != 1 {
		t.Errorf("cycles: new %v resolved %v", diff.NewCycles, diff.ResolvedCycles)
	}
	want := "1 files added, 1 files removed, 1 dependencies added, 2 dependencies removed, 1 cycles resolved"
	if got := diff.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if same := ComputeDiff(cur, cur); !same.Empty() || same.String() != "no structural changes" {
		t.Errorf("diff of a result with itself = %+v", same)
	}
}

func TestComputeDistances(t *testing.T) {
	r := result([]model.Edge{
		edge("a.go", "b.go", model.RefImport, 1),
		edge("c.go", "b.go", model.RefCall, 1),
		edge("c.go", "d.go", model.RefImport, 1),
	}, nil, "a.go", "b.go", "c.go", "d.go", "lonely.go")

	got := ComputeDistances(r, []string{"a.go", "missing.go"})
	want := map[string]int{"a.go": 0, "b.go": 1, "c.go": 2, "d.go": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeDistances() = %v, want %v", got, want)
	}

	if got := ComputeDistances(r, nil); len(got) != 0 {
		t.Errorf("ComputeDistances(nil) = %v, want empty", got)
	}
}

func TestFocus(t *testing.T) {
	r := result([]model.Edge{
		edge("a.go", "b.go", model.RefImport, 1),
		edge("b.go", "a.go", model.RefImport, 1),
		edge("b.go", "c.go", model.RefImport, 1),
		edge("c.go", "d.go", model.RefImport, 1),
	}, []model.Cycle{{Nodes: []string{"a.go", "b.go"}, Severity: model.SeverityError}},
		"a.go", "b.go", "c.go", "d.go")

	n := Focus(r, []string{"a.go"}, 1)
	if len(n.Nodes) != 2 {
		t.Errorf("Nodes = %v, want a.go and b.go", n.Nodes)
	}
	if len(n.Dependencies) != 2 {
		t.Errorf("Dependencies = %v, want the two edges between a.go and b.go", n.Dependencies)
	}
	if len(n.Cycles) != 1 {
		t.Errorf("Cycles = %v, want the a.go/b.go cycle", n.Cycles)
	}

	if n := Focus(r, []string{"d.go"}, 1); len(n.Cycles) != 0 || len(n.Nodes) != 2 {
		t.Errorf("Focus(d.go) = %+v", n)
	}
}

func TestDirectoryOf(t *testing.T) {
	tests := []struct {
		file  string
		depth int
		want  string
	}{
		{"main.go", 0, "."},
		{"pkg/store/item.go", 0, "pkg/store"},
		{"pkg/store/item.go", 1, "pkg"},
		{"pkg/store/item.go", 5, "pkg/store"},
	}
	for _, tt := range tests {
		if got := DirectoryOf(tt.file, tt.depth); got != tt.want {
			t.Errorf("DirectoryOf(%q, %d) = %q, want %q", tt.file, tt.depth, got, tt.want)
		}
	}
}

func TestAggregateByDirectory(t *testing.T) {
	r := result([]model.Edge{
		edge("cmd/main.go", "pkg/store/store.go", model.RefImport, 1),
		edge("cmd/main.go", "pkg/store/store.go", model.RefCall, 9),
		edge("cmd/main.go", "pkg/web/web.go", model.RefImport, 2),
		edge("pkg/store/store.go", "pkg/store/item.go", model.RefComposition, 4),
	}, nil)

	got := AggregateByDirectory(r, 0)
	if len(got) != 2 {
		t.Fatalf("AggregateByDirectory() = %v, want 2 edges", got)
	}
	if got[0].Target != "pkg/store" || got[0].Count != 2 || got[0].Kinds[model.RefCall] != 1 {
		t.Errorf("first edge = %+v", got[0])
	}

	// At depth 1 both targets collapse into pkg.
	got = AggregateByDirectory(r, 1)
	if len(got) != 1 || got[0].Source != "cmd" || got[0].Target != "pkg" || got[0].Count != 3 {
		t.Errorf("AggregateByDirectory(depth 1) = %+v", got)
	}
}
