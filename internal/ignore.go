package internal

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const IgnoreFilename = ".chaserignore"

// IgnoreMatcher applies gitignore-style patterns read from IgnoreFilename
// at the root of a walked tree.
type IgnoreMatcher struct {
	patterns []gitignore.Pattern
}

func NewIgnoreMatcher(fs billy.Filesystem) (*IgnoreMatcher, error) {
	patterns, err := parseIgnoreFile(fs, IgnoreFilename)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &IgnoreMatcher{patterns: patterns}, nil
}

// Match reports whether a slash separated path relative to the root is excluded.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	parts := strings.Split(strings.Trim(rel, "/"), "/")
	for _, p := range m.patterns {
		if p.Match(parts, isDir) == gitignore.Exclude {
			return true
		}
	}
	return false
}

func parseIgnoreFile(fs billy.Filesystem, path string) ([]gitignore.Pattern, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}
