// Package dirscan finds conventionally named license files in a single
// directory. It backs both the local-directory and the module-cache
// strategies.
package dirscan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"licenses.software/bundle/resolver"
)

// namePatterns match lowercased file names. The conventional stems cover
// LICENSE, LICENCE, COPYING, and NOTICE with arbitrary suffixes such as
// LICENSE-MIT, LICENSE.APACHE, or COPYING.txt.
var namePatterns = []glob.Glob{
	glob.MustCompile("license*"),
	glob.MustCompile("licence*"),
	glob.MustCompile("copying*"),
	glob.MustCompile("notice*"),
}

// sourceExtensions excludes files that share a license stem but are code or
// metadata, e.g. license.go or license_test.go.
var sourceExtensions = []string{
	".go", ".mod", ".sum", ".json", ".yaml", ".yml", ".toml", ".xml",
	".html", ".py", ".rb", ".rs", ".c", ".h", ".sh",
}

func matches(name string) bool {
	lower := strings.ToLower(name)
	if slices.Contains(sourceExtensions, filepath.Ext(lower)) {
		return false
	}
	for _, pattern := range namePatterns {
		if pattern.Match(lower) {
			return true
		}
	}
	return false
}

// Texts reads every conventionally named license file directly inside dir
// (non-recursive), ordered by file name for determinism. A missing
// directory or a directory without license files yields
// resolver.ErrNotFound.
func Texts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, resolver.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning %q for license files: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && matches(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, resolver.ErrNotFound
	}
	slices.Sort(names)

	texts := make([]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading license file %q: %w", name, err)
		}
		texts = append(texts, string(data))
	}
	return texts, nil
}
