package discovery

import (
	"path/filepath"
	"strings"
)

// Filter filters file paths by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName keeps the paths whose base name matches pattern.
// Patterns with * or ? are glob-matched; when the glob fails, the literal
// parts between * must appear in order (so "*Payment*" matches
// "PaymentServiceTests.cs"). A pattern without wildcards is a substring.
func (f *Filter) FilterByName(paths []string, pattern string) []string {
	if pattern == "" {
		return paths
	}

	var filtered []string
	for _, p := range paths {
		if matchName(filepath.Base(p), pattern) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func matchName(name, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(name, pattern)
	}
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	if strings.Contains(pattern, "?") {
		return false
	}

	rest := name
	matchedAny := false
	for _, part := range strings.Split(pattern, "*") {
		if part == "" {
			continue
		}
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
		matchedAny = true
	}
	return matchedAny
}
