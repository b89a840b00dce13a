// Package loader reads text documents from disk.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"groundchat/internal/domain"
)

// Extensions lists the file types Load accepts.
var Extensions = []string{".txt", ".md"}

// Load expands each path (a file, a glob or a directory, which is read
// non-recursively) and returns one Document per supported file, in
// path order with duplicates removed.
func Load(paths []string) ([]domain.Document, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if !supported(p) {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			entries, err := os.ReadDir(m)
			if err != nil {
				return nil, err
			}
			var names []string
			for _, e := range entries {
				if e.Type().IsRegular() {
					names = append(names, filepath.Join(m, e.Name()))
				}
			}
			sort.Strings(names)
			for _, n := range names {
				add(n)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s documents found", strings.Join(Extensions, "/"))
	}

	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document{ID: hashString(f), Source: f, Content: string(data)})
	}
	return docs, nil
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
