package parser

import (
	"path/filepath"
	"strings"
)

// solutionHeaderLines is the "Project(s)" title plus its underline
const solutionHeaderLines = 2

// ParseSolutionList turns the output of `dotnet sln <file> list` into absolute
// project paths. Listed paths are relative to solutionDir.
func ParseSolutionList(output, solutionDir string) []string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if len(lines) <= solutionHeaderLines {
		return nil
	}

	var projects []string
	for _, line := range lines[solutionHeaderLines:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rel := filepath.FromSlash(strings.ReplaceAll(line, `\`, "/"))
		if filepath.IsAbs(rel) {
			projects = append(projects, filepath.Clean(rel))
			continue
		}
		projects = append(projects, filepath.Join(solutionDir, rel))
	}
	return projects
}
