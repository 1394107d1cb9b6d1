package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// CanonicalPath returns the canonical version of the given path, relative to the given base path. That is, if the
// given path is a relative path, assume it is relative to the given base path. A canonical path is an absolute path
// with all relative components (e.g. "../") fully resolved, which makes it safe to compare paths as strings.
func CanonicalPath(path string, basePath string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(basePath, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return filepath.ToSlash(filepath.Clean(absPath)), nil
}

// ParentDir returns the folder that contains the given path.
func ParentDir(path string) string {
	return filepath.ToSlash(filepath.Dir(path))
}

// CanonicalPaths returns the canonical version of the given paths, relative to the given base path.
func CanonicalPaths(paths []string, basePath string) ([]string, error) {
	canonicalPaths := []string{}

	for _, path := range paths {
		canonicalPath, err := CanonicalPath(path, basePath)
		if err != nil {
			return canonicalPaths, err
		}

		canonicalPaths = append(canonicalPaths, canonicalPath)
	}

	return canonicalPaths, nil
}

// FileExists returns true if the given file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if the path points to a directory
func IsDir(path string) bool {
	fileInfo, err := os.Stat(path)
	return err == nil && fileInfo.IsDir()
}

// HasPathPrefix returns true if the given path starts with the given prefix path
func HasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}

	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}

	return rel != ".." && !filepath.IsAbs(rel) && !hasParentTraversal(rel)
}

func hasParentTraversal(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

// ContainsPath returns true if path contains the given subpath, e.g. a path of "foo/bar/baz" contains "bar/baz"
func ContainsPath(path, subpath string) bool {
	return listContainsSublist(splitPathComponents(path), splitPathComponents(subpath))
}

func splitPathComponents(path string) []string {
	components := []string{}

	for _, component := range strings.Split(filepath.ToSlash(path), "/") {
		if component != "" {
			components = append(components, component)
		}
	}

	return components
}

func listContainsSublist(list, sublist []string) bool {
	if len(sublist) == 0 || len(sublist) > len(list) {
		return false
	}

	for i := 0; i+len(sublist) <= len(list); i++ {
		matches := true

		for j := range sublist {
			if list[i+j] != sublist[j] {
				matches = false
				break
			}
		}

		if matches {
			return true
		}
	}

	return false
}
