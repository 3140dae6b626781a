package graph

import (
	"testing"

	"github.com/ritzau/codegraph/pkg/model"
)

func unit(path string, refs ...model.Reference) *model.SourceUnit {
	return &model.SourceUnit{Path: path, Language: model.LangGo, References: refs}
}

func importRef(target string, line int) model.Reference {
	return model.Reference{Target: target, Kind: model.RefImport, Span: model.Span{Line: line, Column: 1}}
}

func TestBuild_Empty(t *testing.T) {
	fg := Build(nil)
	if fg == nil {
		t.Fatal("Build(nil) returned nil")
	}

	if len(fg.Nodes) != 0 {
		t.Errorf("Empty graph should have 0 nodes, got %d", len(fg.Nodes))
	}
	if len(fg.Edges) != 0 || len(fg.External) != 0 {
		t.Errorf("Empty graph should have no edges, got %d internal and %d external", len(fg.Edges), len(fg.External))
	}
}

func TestBuild_ExactPath(t *testing.T) {
	fg := Build([]*model.SourceUnit{
		unit("util/math.go"),
		unit("core/engine.go", importRef("util/math.go", 3)),
	})

	if len(fg.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(fg.Nodes))
	}
	if fg.Nodes[0].ID != "core/engine.go" || fg.Nodes[1].ID != "util/math.go" {
		t.Errorf("Nodes should be sorted by path, got %v", fg.Nodes)
	}

	if len(fg.Edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(fg.Edges))
	}
	e := fg.Edges[0]
	if e.Source != "core/engine.go" || e.Target != "util/math.go" || e.Line != 3 {
		t.Errorf("Unexpected edge %+v", e)
	}

	deps := fg.Dependencies("core/engine.go")
	if len(deps) != 1 || deps[0] != "util/math.go" {
		t.Errorf("Expected util/math.go as dependency, got %v", deps)
	}
}

func TestBuild_ResolutionTable(t *testing.T) {
	engine := unit("core/engine.go", importRef("example.com/proj/util", 2))
	engine.Resolution = model.ResolutionTable{
		"example.com/proj/util": {Paths: []string{"util/"}},
	}

	fg := Build([]*model.SourceUnit{
		engine,
		unit("util/strings.go"),
		unit("util/time.go"),
	})

	deps := fg.Dependencies("core/engine.go")
	if len(deps) != 2 || deps[0] != "util/strings.go" || deps[1] != "util/time.go" {
		t.Errorf("Directory import should reach every file in util/, got %v", deps)
	}
}

func TestBuild_ResolutionSymbolFilter(t *testing.T) {
	caller := unit("pkg/a.go", model.Reference{From: "Run", Target: "helper", Kind: model.RefCall, Span: model.Span{Line: 9, Column: 2}})
	caller.Resolution = model.ResolutionTable{"helper": {Paths: []string{"pkg/"}, Symbol: "helper"}}
	caller.Symbols = []model.Symbol{{Name: "Run", Kind: model.SymbolFunction}}

	helper := unit("pkg/b.go")
	helper.Symbols = []model.Symbol{{Name: "helper", Kind: model.SymbolFunction}}

	fg := Build([]*model.SourceUnit{caller, helper, unit("pkg/c.go")})

	if len(fg.Edges) != 1 || fg.Edges[0].Target != "pkg/b.go" {
		t.Errorf("Expected a single call edge to pkg/b.go, got %v", fg.Edges)
	}
}

func TestBuild_LocalReference(t *testing.T) {
	u := unit("pkg/a.go", model.Reference{From: "Run", Target: "helper", Kind: model.RefCall})
	u.Symbols = []model.Symbol{
		{Name: "Run", Kind: model.SymbolFunction},
		{Name: "helper", Kind: model.SymbolFunction},
	}

	fg := Build([]*model.SourceUnit{u})

	if len(fg.Edges) != 0 {
		t.Errorf("Intra-file call should not produce an edge, got %v", fg.Edges)
	}
	if fg.LocalReferences != 1 {
		t.Errorf("Expected 1 local reference, got %d", fg.LocalReferences)
	}
}

func TestBuild_SelfImport(t *testing.T) {
	fg := Build([]*model.SourceUnit{unit("a.py", importRef("a.py", 1))})

	if !fg.HasSelfLoop("a.py") {
		t.Error("Expected a self-loop on a.py")
	}
	if fg.Graph().Edges().Len() != 0 {
		t.Error("Self-loops must not be stored in the gonum graph")
	}
}

func TestBuild_External(t *testing.T) {
	fg := Build([]*model.SourceUnit{
		unit("main.go", importRef("fmt", 3), importRef("github.com/x/y", 4)),
	})

	if len(fg.Edges) != 0 {
		t.Errorf("Expected no internal edges, got %d", len(fg.Edges))
	}
	if len(fg.External) != 2 {
		t.Fatalf("Expected 2 external dependencies, got %d", len(fg.External))
	}
	if fg.External[0].Target != "fmt" {
		t.Errorf("Expected externals sorted by line, got %v", fg.External)
	}
}

func TestBuild_SymbolFallbackRequiresUniqueOwner(t *testing.T) {
	a := unit("a.go")
	a.Symbols = []model.Symbol{{Name: "Parse", Kind: model.SymbolFunction}}
	b := unit("b.go")
	b.Symbols = []model.Symbol{{Name: "Parse", Kind: model.SymbolFunction}}
	c := unit("c.go", model.Reference{Target: "Parse", Kind: model.RefCall})

	fg := Build([]*model.SourceUnit{a, b, c})

	if len(fg.Edges) != 0 || len(fg.External) != 1 {
		t.Errorf("Ambiguous symbol should be external, got edges=%v external=%v", fg.Edges, fg.External)
	}
}

func TestBuild_OrderIndependent(t *testing.T) {
	units := []*model.SourceUnit{
		unit("a.go", importRef("b.go", 1), importRef("c.go", 2), importRef("os", 3)),
		unit("b.go", importRef("c.go", 1)),
		unit("c.go", importRef("a.go", 1)),
	}
	reversed := []*model.SourceUnit{units[2], units[1], units[0]}

	fg1 := Build(units)
	fg2 := Build(reversed)

	if fg1.Fingerprint() != fg2.Fingerprint() {
		t.Error("Fingerprint depends on input order")
	}
	for _, p := range []string{"a.go", "b.go", "c.go"} {
		id1, _ := fg1.NodeID(p)
		id2, _ := fg2.NodeID(p)
		if id1 != id2 {
			t.Errorf("Node %s got ID %d and %d", p, id1, id2)
		}
	}
}

func TestBuild_ParallelEdgesKept(t *testing.T) {
	fg := Build([]*model.SourceUnit{
		unit("a.go", importRef("b.go", 1), model.Reference{Target: "b.go", Kind: model.RefCall, Span: model.Span{Line: 7}}),
		unit("b.go"),
	})

	if len(fg.Edges) != 2 {
		t.Errorf("Expected 2 edges, got %d", len(fg.Edges))
	}
	if fg.Graph().Edges().Len() != 1 {
		t.Errorf("Expected the gonum graph to coalesce parallel edges")
	}
}
