package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-songbook")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-songbook" {
			t.Errorf("expected path /tmp/test-songbook, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-songbook")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PromptsDir", dir.PromptsDir(), "/tmp/test-songbook/prompts"},
		{"AudioDir", dir.AudioDir(), "/tmp/test-songbook/audio"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-songbook/config.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	songbookDir := filepath.Join(tmpDir, "songbook-test")

	dir, err := New(songbookDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist yet")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	for _, p := range []string{dir.Path(), dir.PromptsDir(), dir.AudioDir()} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", p)
		}
	}

	// Idempotent
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("second EnsureExists failed: %v", err)
	}
	if dir.ConfigExists() {
		t.Error("config should not exist")
	}
}
