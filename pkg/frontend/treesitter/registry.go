package treesitter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"

	"github.com/ritzau/codegraph/pkg/frontend"
)

// DetectGoModule reads go.mod at the project root. A project without one
// yields the zero GoModule and every Go import stays external.
func DetectGoModule(root string) (GoModule, error) {
	modPath := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(modPath)
	if errors.Is(err, fs.ErrNotExist) {
		return GoModule{}, nil
	}
	if err != nil {
		return GoModule{}, fmt.Errorf("failed to read go.mod: %w", err)
	}
	mf, err := modfile.ParseLax(modPath, data, nil)
	if err != nil {
		return GoModule{}, fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if mf.Module == nil {
		return GoModule{}, nil
	}
	return GoModule{Path: mf.Module.Mod.Path, Dir: "."}, nil
}

// NewRegistry returns a registry with every tree-sitter front end, set up
// for the project at root.
func NewRegistry(root string) (*frontend.Registry, error) {
	mod, err := DetectGoModule(root)
	if err != nil {
		return nil, err
	}
	return frontend.NewRegistry(NewGo(mod), NewPython(), NewJavaScript(), NewTypeScript()), nil
}
