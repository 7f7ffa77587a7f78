package decl

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	engerrors "github.com/arkilian/roomsql/internal/errors"
)

// Extension is the file extension of declaration files.
const Extension = ".room"

// LoadFiles reads declaration files. Each path may be a file, a directory
// (searched recursively for *.room) or a glob pattern.
func LoadFiles(paths []string) ([]SourceFile, error) {
	seen := make(map[string]bool)
	var files []SourceFile

	for _, p := range paths {
		matches, err := expand(p)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true

			data, err := os.ReadFile(m)
			if err != nil {
				return nil, engerrors.NewDeclarationError(engerrors.CodeReadFailed, "failed to read "+m, err)
			}
			files = append(files, SourceFile{Path: m, Text: string(data)})
		}
	}
	return files, nil
}

func expand(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, engerrors.NewDeclarationError(engerrors.CodeReadFailed, "failed to stat "+pattern, err)
		}
		if !info.IsDir() {
			return []string{pattern}, nil
		}
		return walkDir(pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, engerrors.NewDeclarationError(engerrors.CodeReadFailed, "bad pattern "+pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func walkDir(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == Extension {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, engerrors.NewDeclarationError(engerrors.CodeReadFailed, "failed to walk "+root, err)
	}
	sort.Strings(out)
	return out, nil
}
