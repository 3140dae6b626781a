package finder

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ritzau/codegraph/pkg/frontend"
	"github.com/ritzau/codegraph/pkg/model"
)

// FindSourceFiles walks root and returns every file with a known language,
// as slash-separated paths relative to root in lexical order. Paths matching
// any exclude pattern are skipped; a matching directory is not entered.
func FindSourceFiles(root string, excludes []string) ([]model.FileRef, error) {
	for _, p := range excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	var files []model.FileRef
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if ExcludedDir(rel, excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || Excluded(rel, excludes) {
			return nil
		}

		if lang := frontend.DetectLanguage(rel); lang != model.LangUnknown {
			files = append(files, model.FileRef{Path: rel, Language: lang})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Excluded reports whether the slash-separated relative path matches any
// pattern. Patterns are assumed valid.
func Excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
	}
	return false
}

// ExcludedDir reports whether everything below dir is excluded, which is
// the case when a pattern matches an arbitrary child of it.
func ExcludedDir(dir string, patterns []string) bool {
	return Excluded(dir, patterns) || Excluded(dir+"/\x00", patterns)
}
