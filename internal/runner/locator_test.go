package runner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLocator_FindTestHost(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "6.0.400", "vstest.console.dll"))
	touch(t, filepath.Join(root, "8.0.100", "vstest.console.dll"))
	touch(t, filepath.Join(root, "10.0.100", "vstest.console.dll"))
	// newest version without the library is skipped
	if err := os.MkdirAll(filepath.Join(root, "11.0.100-preview.1"), 0755); err != nil {
		t.Fatal(err)
	}

	loc := &Locator{SDKRoots: []string{filepath.Join(root, "missing"), root}, TestHost: "vstest.console.dll"}
	got, err := loc.FindTestHost()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(root, "10.0.100", "vstest.console.dll")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLocator_FindTestHostMissing(t *testing.T) {
	loc := &Locator{SDKRoots: []string{t.TempDir()}, TestHost: "vstest.console.dll"}
	if _, err := loc.FindTestHost(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocator_FindScript(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	touch(t, filepath.Join(second, "run_tests.fsx"))

	tests := []struct {
		name     string
		loc      Locator
		expected string
		wantErr  bool
	}{
		{
			name:     "search path",
			loc:      Locator{ScriptPaths: []string{first, second}, ScriptName: "run_tests.fsx"},
			expected: filepath.Join(second, "run_tests.fsx"),
		},
		{
			name:     "explicit script",
			loc:      Locator{Script: filepath.Join(second, "run_tests.fsx"), ScriptPaths: []string{first}},
			expected: filepath.Join(second, "run_tests.fsx"),
		},
		{
			name:    "explicit script missing",
			loc:     Locator{Script: filepath.Join(first, "nope.fsx"), ScriptPaths: []string{second}, ScriptName: "run_tests.fsx"},
			wantErr: true,
		},
		{
			name:    "not on search path",
			loc:     Locator{ScriptPaths: []string{first}, ScriptName: "run_tests.fsx"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.loc.FindScript()
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
