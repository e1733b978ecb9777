package prompts

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/fsnotify/fsnotify"
)

func TestWatcher_Handle(t *testing.T) {
	fsys := fstest.MapFS{"music-v1.0.md": musicFile("1.0", validBody)}
	loader := NewLoader(nil, fsys)
	if _, err := loader.LoadVersion("1.0"); err != nil {
		t.Fatalf("LoadVersion: %v", err)
	}

	var changed []string
	w := NewWatcher(loader, "/prompts", nil)
	w.OnChange(func(name string) { changed = append(changed, name) })

	fsys["music-v1.0.md"] = musicFile("1.1", validBody)

	w.handle(fsnotify.Event{Name: filepath.Join("/prompts", "notes.txt"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join("/prompts", "music-v1.0.md"), Op: fsnotify.Chmod})
	if len(changed) != 0 {
		t.Fatalf("unexpected change callbacks: %v", changed)
	}

	w.handle(fsnotify.Event{Name: filepath.Join("/prompts", "music-v1.0.md"), Op: fsnotify.Write})
	if len(changed) != 1 || changed[0] != "music-v1.0.md" {
		t.Fatalf("changed = %v", changed)
	}

	doc, err := loader.LoadVersion("1.0")
	if err != nil {
		t.Fatalf("LoadVersion: %v", err)
	}
	if doc.Metadata.Version != "1.1" {
		t.Errorf("cache not cleared, got version %q", doc.Metadata.Version)
	}
}
