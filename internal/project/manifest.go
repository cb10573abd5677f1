package project

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
)

// ErrProjectNotFound is returned when no project manifest encloses a file
var ErrProjectNotFound = errors.New("no project file found")

var manifestPattern = regexp.MustCompile(`(?i)\.(cs|fs|vb)proj$`)

// IsManifest reports whether name is a project manifest file name
func IsManifest(name string) bool {
	return manifestPattern.MatchString(name)
}

// FindManifest walks upward from dir and returns the first project manifest
// found. Within one directory manifests are tried in name order.
func FindManifest(dir string) (string, error) {
	for {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if !e.IsDir() && IsManifest(e.Name()) {
					return filepath.Join(dir, e.Name()), nil
				}
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrProjectNotFound
		}
		dir = parent
	}
}
