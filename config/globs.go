package config

import (
	"path/filepath"

	zglob "github.com/mattn/go-zglob"
)

// expandGlobs expands each of the given unix-style globs (zglob syntax, so ** is supported) relative to basePath.
// Globs that cannot be expanded are skipped rather than treated as errors, matching how include/exclude filters
// behave for *-all commands.
func expandGlobs(globs []string, basePath string) ([]string, error) {
	matchedPaths := []string{}

	for _, dir := range globs {
		absoluteDir := dir
		if !filepath.IsAbs(dir) {
			absoluteDir = filepath.Join(basePath, dir)
		}

		matches, err := zglob.Glob(absoluteDir)
		if err == nil {
			matchedPaths = append(matchedPaths, matches...)
		}
	}

	return matchedPaths, nil
}
