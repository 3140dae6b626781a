package frontend

import (
	"context"
	"testing"

	"github.com/ritzau/codegraph/pkg/model"
)

type stubFrontend struct {
	lang model.Language
	tag  string
}

func (s stubFrontend) Language() model.Language { return s.lang }

func (s stubFrontend) Parse(ctx context.Context, path string, src []byte) (*model.SourceUnit, error) {
	return &model.SourceUnit{Path: path, Language: s.lang}, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(stubFrontend{lang: model.LangGo}, stubFrontend{lang: model.LangPython})

	if _, ok := r.Lookup(model.LangGo); !ok {
		t.Error("expected go front end to be registered")
	}
	if _, ok := r.Lookup(model.LangJavaScript); ok {
		t.Error("javascript should not be registered")
	}

	langs := r.Languages()
	if len(langs) != 2 || langs[0] != model.LangGo || langs[1] != model.LangPython {
		t.Errorf("unexpected languages: %v", langs)
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry(stubFrontend{lang: model.LangGo, tag: "first"})
	r.Register(stubFrontend{lang: model.LangGo, tag: "second"})

	fe, _ := r.Lookup(model.LangGo)
	if fe.(stubFrontend).tag != "second" {
		t.Errorf("expected later registration to win, got %q", fe.(stubFrontend).tag)
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]model.Language{
		"main.go":           model.LangGo,
		"pkg/util.py":       model.LangPython,
		"web/app.JSX":       model.LangJavaScript,
		"src/index.mjs":     model.LangJavaScript,
		"src/component.tsx": model.LangTypeScript,
		"README.md":         model.LangUnknown,
		"Makefile":          model.LangUnknown,
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", path, got, want)
		}
	}
}
