// Package treesitter implements front ends for Go, Python, JavaScript and
// TypeScript on top of tree-sitter grammars.
package treesitter

import (
	"context"
	"fmt"
	"path"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/codegraph/pkg/frontend"
	"github.com/ritzau/codegraph/pkg/model"
)

// extractor fills a unit from a syntax tree. One is created per file.
type extractor interface {
	extract(root *sitter.Node)
	unit() *model.SourceUnit
}

// Frontend parses one language. It keeps no per-file state; each Parse uses
// its own tree-sitter parser.
type Frontend struct {
	lang    model.Language
	grammar func(path string) *sitter.Language
	newExtr func(path string, src []byte) extractor
}

var _ frontend.Frontend = (*Frontend)(nil)

func (f *Frontend) Language() model.Language {
	return f.lang
}

// Parse builds the SourceUnit for src. A tree with syntax errors is rejected
// with a *model.ParseFailure.
func (f *Frontend) Parse(ctx context.Context, filePath string, src []byte) (*model.SourceUnit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(f.grammar(filePath))

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &model.ParseFailure{Path: filePath, Reason: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &model.ParseFailure{Path: filePath, Reason: syntaxError(root)}
	}

	x := f.newExtr(filePath, src)
	x.extract(root)
	return x.unit(), nil
}

// syntaxError locates the first error or missing node.
func syntaxError(root *sitter.Node) string {
	var found *sitter.Node
	walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsMissing() || n.Type() == "ERROR" {
			found = n
			return false
		}
		return n.HasError()
	})
	if found == nil {
		return "syntax error"
	}
	sp := spanOf(found)
	if found.IsMissing() {
		return fmt.Sprintf("syntax error at %d:%d: missing %s", sp.Line, sp.Column, found.Type())
	}
	return fmt.Sprintf("syntax error at %d:%d", sp.Line, sp.Column)
}

// unitBuilder accumulates symbols and references with unique symbol names.
type unitBuilder struct {
	u     *model.SourceUnit
	names map[string]int
	refs  map[string]bool
}

func newUnitBuilder(filePath string, lang model.Language) *unitBuilder {
	return &unitBuilder{
		u: &model.SourceUnit{
			Path:       filePath,
			Language:   lang,
			Symbols:    []model.Symbol{},
			References: []model.Reference{},
			Resolution: model.ResolutionTable{},
		},
		names: make(map[string]int),
		refs:  make(map[string]bool),
	}
}

func (b *unitBuilder) unit() *model.SourceUnit {
	return b.u
}

// addSymbol records a symbol and returns the name it was stored under. A
// repeated name gets a "#n" suffix.
func (b *unitBuilder) addSymbol(name string, kind model.SymbolKind, n *sitter.Node, shape *model.ControlFlowShape) string {
	b.names[name]++
	if c := b.names[name]; c > 1 {
		name = name + "#" + strconv.Itoa(c)
	}
	b.u.Symbols = append(b.u.Symbols, model.Symbol{Name: name, Kind: kind, Span: spanOf(n), Shape: shape})
	return name
}

// addReference records ref. Non-import references are kept once per
// (from, target, kind); the first site wins.
func (b *unitBuilder) addReference(ref model.Reference) {
	if ref.Target == "" {
		return
	}
	if ref.Kind != model.RefImport {
		key := ref.From + "\x00" + ref.Target + "\x00" + string(ref.Kind)
		if b.refs[key] {
			return
		}
		b.refs[key] = true
	}
	b.u.References = append(b.u.References, ref)
}

func (b *unitBuilder) resolve(target string, res model.Resolution) {
	if _, ok := b.u.Resolution[target]; ok {
		return
	}
	b.u.Resolution[target] = res
}

func (b *unitBuilder) dir() string {
	return path.Dir(b.u.Path)
}

// dirCandidate names every unit in dir.
func dirCandidate(dir string) string {
	if dir == "" || dir == "." {
		return "./"
	}
	return path.Clean(dir) + "/"
}
