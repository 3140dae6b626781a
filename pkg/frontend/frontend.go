// Package frontend defines the contract language parsers satisfy to feed the
// analysis engine, and the lookup table that selects one by language tag.
package frontend

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ritzau/codegraph/pkg/model"
)

// Frontend normalizes one source file into a SourceUnit. Implementations
// must be safe for concurrent use; the engine calls Parse from many workers.
//
// A file that cannot be parsed is reported as a *model.ParseFailure. Parse
// should honour ctx so that a per-file timeout can abandon it.
type Frontend interface {
	Language() model.Language
	Parse(ctx context.Context, path string, src []byte) (*model.SourceUnit, error)
}

// Registry maps language tags to front ends.
type Registry struct {
	frontends map[model.Language]Frontend
}

// NewRegistry creates a registry holding the given front ends. A later front
// end replaces an earlier one registered for the same language.
func NewRegistry(fes ...Frontend) *Registry {
	r := &Registry{frontends: make(map[model.Language]Frontend)}
	for _, fe := range fes {
		r.Register(fe)
	}
	return r
}

// Register adds or replaces the front end for fe.Language().
func (r *Registry) Register(fe Frontend) {
	r.frontends[fe.Language()] = fe
}

// Lookup returns the front end for lang.
func (r *Registry) Lookup(lang model.Language) (Frontend, bool) {
	fe, ok := r.frontends[lang]
	return fe, ok
}

// Languages returns the registered language tags, sorted.
func (r *Registry) Languages() []model.Language {
	langs := make([]model.Language, 0, len(r.frontends))
	for l := range r.frontends {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// DetectLanguage determines the language tag from a file path.
func DetectLanguage(path string) model.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return model.LangGo
	case ".py", ".pyw", ".pyi":
		return model.LangPython
	case ".js", ".mjs", ".cjs", ".jsx":
		return model.LangJavaScript
	case ".ts", ".tsx", ".mts", ".cts":
		return model.LangTypeScript
	default:
		return model.LangUnknown
	}
}
