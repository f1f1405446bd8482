package project

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/shipq/critq/internal/config"
)

func writeFile(t *testing.T, fs afero.Fs, dir, name, content string) {
	t.Helper()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestFindRoot_FromProjectDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/project", config.ConfigFilename, "[render]\n")

	root, found, err := FindRoot(fs, "/project")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected to find root")
	}
	if root.Dir != "/project" {
		t.Errorf("expected Dir=/project, got %q", root.Dir)
	}
	if root.ConfigPath != "/project/critq.ini" {
		t.Errorf("expected ConfigPath=/project/critq.ini, got %q", root.ConfigPath)
	}
}

func TestFindRoot_FromSubdirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/project", config.ConfigFilename, "[render]\n")
	if err := fs.MkdirAll("/project/queries/reports", 0o755); err != nil {
		t.Fatal(err)
	}

	root, found, err := FindRoot(fs, "/project/queries/reports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected to find root from subdirectory")
	}
	if root.Dir != "/project" {
		t.Errorf("expected Dir=/project, got %q", root.Dir)
	}
}

func TestFindRoot_NotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/somewhere/else", 0o755); err != nil {
		t.Fatal(err)
	}

	root, found, err := FindRoot(fs, "/somewhere/else")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found || root != nil {
		t.Errorf("expected not found, got %+v", root)
	}
}

func TestFindRoot_IgnoresDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/project/critq.ini", 0o755); err != nil {
		t.Fatal(err)
	}

	_, found, err := FindRoot(fs, "/project")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("a directory named critq.ini must not count as a project root")
	}
}

func TestFindRoot_StopsAtClosestConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/outer", config.ConfigFilename, "[db]\nurl = outer\n")
	writeFile(t, fs, "/outer/inner", config.ConfigFilename, "[db]\nurl = inner\n")

	root, found, err := FindRoot(fs, "/outer/inner")
	if err != nil || !found {
		t.Fatalf("expected to find root, got found=%v err=%v", found, err)
	}
	if root.Dir != "/outer/inner" {
		t.Errorf("expected the closest root /outer/inner, got %q", root.Dir)
	}
}

func TestDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/project", config.ConfigFilename, "")

	tests := []struct {
		start string
		want  string
	}{
		{"/project", "/project"},
		{"/project/a/b", "/project"},
		{"/elsewhere", "/elsewhere"},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			got, err := Dir(fs, tt.start)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Dir(%q) = %q, want %q", tt.start, got, tt.want)
			}
		})
	}
}
