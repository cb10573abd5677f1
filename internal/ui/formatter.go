package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"dtp/internal/config"
	"dtp/internal/domain"
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	out    io.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(cfg *config.Config, out io.Writer) *Formatter {
	return &Formatter{
		config: cfg,
		out:    out,
	}
}

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// relPath returns path relative to the project path for cleaner display
func (f *Formatter) relPath(path string) string {
	rel, err := filepath.Rel(f.config.GetRootPath(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// SortedCases returns the test ids of cases ordered by line, then name
func SortedCases(cases domain.TestCases) []string {
	ids := make([]string, 0, len(cases))
	for id := range cases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := cases[ids[i]], cases[ids[j]]
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.FullyQualifiedName != b.FullyQualifiedName {
			return a.FullyQualifiedName < b.FullyQualifiedName
		}
		return ids[i] < ids[j]
	})
	return ids
}

// PrintDiscovery prints a tree of source files and their test cases
func (f *Formatter) PrintDiscovery(results []domain.FileDiscovery) {
	total := 0
	for _, r := range results {
		total += len(r.Result.Tests)
	}
	green.Fprintf(f.out, "Found %d test case(s) in %d file(s):\n\n", total, len(results))

	for i, r := range results {
		isLastFile := i == len(results)-1
		filePrefix, casePrefix := "├── ", "│   "
		if isLastFile {
			filePrefix, casePrefix = "└── ", "    "
		}
		cyan.Fprintf(f.out, "%s%s\n", filePrefix, f.relPath(r.Path))

		switch {
		case r.Result.Status == domain.StatusNotFound:
			fmt.Fprintf(f.out, "%s└── %s\n", casePrefix, yellow.Sprintf("(no project: %s)", r.Result.Reason))
			continue
		case r.Result.Status == domain.StatusFailed:
			fmt.Fprintf(f.out, "%s└── %s\n", casePrefix, red.Sprintf("(discovery failed: %s)", r.Result.Reason))
			continue
		case len(r.Result.Tests) == 0:
			fmt.Fprintf(f.out, "%s└── %s\n", casePrefix, red.Sprint("(no test cases found)"))
			continue
		}

		ids := SortedCases(r.Result.Tests)
		for j, id := range ids {
			tc := r.Result.Tests[id]
			branch := "├── "
			if j == len(ids)-1 {
				branch = "└── "
			}
			fmt.Fprintf(f.out, "%s%s%s %s\n", casePrefix, branch,
				yellow.Sprint(tc.DisplayName), fmt.Sprintf("(line %d, id %s)", tc.LineNumber, id))
		}
	}
}

// PrintProjects prints the test projects of a root
func (f *Formatter) PrintProjects(root string, projects []string) {
	if len(projects) == 0 {
		yellow.Fprintf(f.out, "No test projects found under %s\n", root)
		return
	}
	green.Fprintf(f.out, "Found %d test project(s):\n\n", len(projects))
	for i, p := range projects {
		prefix := "├── "
		if i == len(projects)-1 {
			prefix = "└── "
		}
		cyan.Fprintf(f.out, "%s%s\n", prefix, f.relPath(p))
	}
}
