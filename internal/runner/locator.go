package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/mod/semver"
)

// ErrNotFound is returned when the driver script or test host is missing
var ErrNotFound = errors.New("not found")

// Locator finds the runner driver script and the toolchain's test-host
// library.
type Locator struct {
	SDKRoots    []string // SDK directories holding one subdirectory per version
	ScriptPaths []string // directories searched for ScriptName
	Script      string   // explicit driver script, overrides ScriptPaths
	ScriptName  string
	TestHost    string // file name of the test-host library
}

// FindTestHost returns the test-host library of the newest SDK version
// that has one.
func (l *Locator) FindTestHost() (string, error) {
	for _, root := range l.SDKRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}

		var versions []string
		for _, e := range entries {
			if e.IsDir() {
				versions = append(versions, e.Name())
			}
		}
		sort.Slice(versions, func(i, j int) bool {
			return semver.Compare("v"+versions[i], "v"+versions[j]) > 0
		})

		for _, v := range versions {
			p := filepath.Join(root, v, l.TestHost)
			if fileExists(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%s in %v: %w", l.TestHost, l.SDKRoots, ErrNotFound)
}

// FindScript returns the driver script.
func (l *Locator) FindScript() (string, error) {
	if l.Script != "" {
		if fileExists(l.Script) {
			return l.Script, nil
		}
		return "", fmt.Errorf("runner script %s: %w", l.Script, ErrNotFound)
	}
	for _, dir := range l.ScriptPaths {
		p := filepath.Join(dir, l.ScriptName)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s in %v: %w", l.ScriptName, l.ScriptPaths, ErrNotFound)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
