package internal

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
)

var (
	DefaultExtensions    = []string{".pdf", ".py", ".md", ".txt", ".ts", ".tsx", ".js", ".jsx", ".go"}
	DefaultIgnoreFolders = []string{".git", ".venv", "__pycache__", "node_modules", "lib", "bin", "dist", "site-packages", ScopeDirName}
	DefaultIgnoreFiles   = []string{".DS_Store", "yarn.lock", "package-lock.json"}
)

type WalkRules struct {
	Extensions    []string
	IgnoreFolders []string
	IgnoreFiles   []string
}

type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Walker lists the files of a tree that are eligible for ingestion.
type Walker struct {
	extensions map[string]bool
	folders    map[string]bool
	files      map[string]bool
}

func NewWalker(rules WalkRules) *Walker {
	w := &Walker{
		extensions: make(map[string]bool, len(rules.Extensions)),
		folders:    make(map[string]bool, len(rules.IgnoreFolders)),
		files:      make(map[string]bool, len(rules.IgnoreFiles)),
	}
	for _, ext := range rules.Extensions {
		w.extensions[normalizeExt(ext)] = true
	}
	for _, name := range rules.IgnoreFolders {
		w.folders[name] = true
	}
	for _, name := range rules.IgnoreFiles {
		w.files[name] = true
	}
	return w
}

// Walk returns eligible files as slash separated paths relative to the
// filesystem root, sorted, plus every file it passed over and why.
func (w *Walker) Walk(fs billy.Filesystem) ([]string, []SkippedFile, error) {
	matcher, err := NewIgnoreMatcher(fs)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", IgnoreFilename, err)
	}

	var (
		files   []string
		skipped []SkippedFile
	)

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %q: %w", dir, err)
		}

		for _, entry := range entries {
			rel := path.Join(filepath.ToSlash(dir), entry.Name())

			if entry.IsDir() {
				if w.folders[entry.Name()] || matcher.Match(rel, true) {
					continue
				}
				if err := walk(fs.Join(dir, entry.Name())); err != nil {
					return err
				}
				continue
			}

			if reason := w.skipReason(rel, entry.Name(), matcher); reason != "" {
				skipped = append(skipped, SkippedFile{Path: rel, Reason: reason})
				continue
			}
			files = append(files, rel)
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, nil, err
	}

	sort.Strings(files)
	return files, skipped, nil
}

func (w *Walker) skipReason(rel, name string, matcher *IgnoreMatcher) string {
	switch {
	case name == IgnoreFilename:
		return "ignore file"
	case w.files[name]:
		return "ignored file name"
	case !w.extensions[strings.ToLower(path.Ext(name))]:
		return "extension not whitelisted"
	case matcher.Match(rel, false):
		return "matched " + IgnoreFilename
	}
	return ""
}
