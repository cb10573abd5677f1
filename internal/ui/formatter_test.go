package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"dtp/internal/config"
	"dtp/internal/domain"
)

func TestSortedCases(t *testing.T) {
	cases := domain.TestCases{
		"c": {FullyQualifiedName: "T.C", LineNumber: 30},
		"a": {FullyQualifiedName: "T.A", LineNumber: 10},
		"b": {FullyQualifiedName: "T.B", LineNumber: 10},
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, SortedCases(cases)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatter_PrintDiscovery(t *testing.T) {
	color.NoColor = true

	cfg := config.New()
	cfg.ProjectPath = "/work"
	var buf bytes.Buffer
	f := NewFormatter(cfg, &buf)

	f.PrintDiscovery([]domain.FileDiscovery{
		{
			Path: "/work/App.Tests/UnitTest1.cs",
			Result: domain.DiscoveryResult{Status: domain.StatusOK, Tests: domain.TestCases{
				"id-1": {DisplayName: "Adds", LineNumber: 8},
				"id-2": {DisplayName: "Subtracts", LineNumber: 15},
			}},
		},
		{
			Path:   "/elsewhere/Loose.cs",
			Result: domain.DiscoveryResult{Status: domain.StatusNotFound, Reason: "no project file"},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"Found 2 test case(s) in 2 file(s)",
		"├── App.Tests/UnitTest1.cs",
		"│   ├── Adds (line 8, id id-1)",
		"│   └── Subtracts (line 15, id id-2)",
		"└── /elsewhere/Loose.cs",
		"(no project: no project file)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatter_PrintProjects(t *testing.T) {
	color.NoColor = true

	cfg := config.New()
	cfg.ProjectPath = "/work"
	var buf bytes.Buffer
	NewFormatter(cfg, &buf).PrintProjects("/work", nil)
	if !strings.Contains(buf.String(), "No test projects found") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
