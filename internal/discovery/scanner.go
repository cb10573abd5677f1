package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dtp/internal/project"
)

var (
	solutionPattern = regexp.MustCompile(`(?i)\.slnx?$`)
	sourcePattern   = regexp.MustCompile(`(?i)\.(cs|fs|vb)$`)
)

// Scanner walks a directory tree looking for manifests and sources
type Scanner struct {
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner with the given directories to skip
func NewScanner(skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap}
}

// Scan returns every file under root whose name satisfies match, in walk order
func (s *Scanner) Scan(root string, match func(name string) bool) ([]string, error) {
	var files []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || s.skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// ScanProjects finds all project manifests under root
func (s *Scanner) ScanProjects(root string) ([]string, error) {
	return s.Scan(root, project.IsManifest)
}

// ScanSources finds all source files under root
func (s *Scanner) ScanSources(root string) ([]string, error) {
	return s.Scan(root, sourcePattern.MatchString)
}

// FindSolution returns the shallowest solution manifest under root, or ""
// when there is none. Ties at the same depth go to the first name in order.
func (s *Scanner) FindSolution(root string) (string, error) {
	solutions, err := s.Scan(root, solutionPattern.MatchString)
	if err != nil || len(solutions) == 0 {
		return "", err
	}

	best := solutions[0]
	for _, sln := range solutions[1:] {
		if depth(sln) < depth(best) {
			best = sln
		}
	}
	return best, nil
}

func depth(path string) int {
	return strings.Count(filepath.ToSlash(path), "/")
}
