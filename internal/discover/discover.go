// Package discover selects the tgen log files a run will read.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

// ErrNoPatterns is returned when Find is called without any pattern.
var ErrNoPatterns = errors.New("discover: no patterns")

// CompilePatterns compiles expressions in order. The first invalid
// expression aborts compilation.
func CompilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("discover: compile %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// IsStdin reports whether root names standard input rather than a directory.
func IsStdin(root string) bool {
	clean := filepath.ToSlash(filepath.Clean(root))
	return clean == model.StdinPath || strings.HasSuffix(clean, "/"+model.StdinPath)
}

// Matches reports whether name matches any of patterns.
func Matches(name string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Find walks root and returns every regular file whose base name matches
// any pattern, in lexical order per directory. A root naming standard input
// yields the single path "-". Unreadable subdirectories are logged and
// skipped; an unreadable root is an error.
func Find(root string, patterns []*regexp.Regexp) ([]string, error) {
	if IsStdin(root) {
		return []string{model.StdinPath}, nil
	}
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Printf("discover: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		if Matches(d.Name(), patterns) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walk %s: %w", root, err)
	}
	return paths, nil
}
