package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"
)

func musicFile(version, body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("---\nversion: \"" + version + "\"\ndescription: test\n---\n" + body)}
}

const validBody = `# Base Template

Create a Sunday School song{{#theme}} about {{theme}}{{/theme}} for children.

# Mood Mappings

- happy: bright
`

func TestLoader_LoadVersion(t *testing.T) {
	override := fstest.MapFS{
		"music-v1.0.md": musicFile("1.0-override", validBody),
	}
	base := fstest.MapFS{
		"music-v1.0.md": musicFile("1.0", validBody),
		"music-v2.0.md": musicFile("2.0", validBody),
	}
	loader := NewLoader(nil, override, base)

	t.Run("first source wins", func(t *testing.T) {
		doc, err := loader.LoadVersion("1.0")
		if err != nil {
			t.Fatalf("LoadVersion: %v", err)
		}
		if doc.Metadata.Version != "1.0-override" {
			t.Errorf("Version = %q", doc.Metadata.Version)
		}
	})

	t.Run("falls through to later source", func(t *testing.T) {
		doc, err := loader.LoadVersion("2.0")
		if err != nil {
			t.Fatalf("LoadVersion: %v", err)
		}
		if doc.Filename != "music-v2.0.md" {
			t.Errorf("Filename = %q", doc.Filename)
		}
	})

	t.Run("missing version is not found", func(t *testing.T) {
		_, err := loader.LoadVersion("9.9")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("path traversal is not found", func(t *testing.T) {
		for _, v := range []string{"../1.0", "1.0/x", "", ".hidden"} {
			if _, err := loader.LoadVersion(v); !errors.Is(err, ErrNotFound) {
				t.Errorf("LoadVersion(%q): expected ErrNotFound, got %v", v, err)
			}
		}
	})
}

func TestLoader_LoadMalformed(t *testing.T) {
	loader := NewLoader(nil, fstest.MapFS{
		"music-v1.0.md": &fstest.MapFile{Data: []byte("# Base Template\nno front matter\n")},
	})
	doc, err := loader.LoadVersion("1.0")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if doc != nil {
		t.Error("expected nil document")
	}
}

func TestLoader_Cache(t *testing.T) {
	fsys := fstest.MapFS{
		"music-v1.0.md": musicFile("1.0", validBody),
	}
	loader := NewLoader(nil, fsys)

	first, err := loader.LoadVersion("1.0")
	if err != nil {
		t.Fatalf("LoadVersion: %v", err)
	}

	fsys["music-v1.0.md"] = musicFile("1.1", validBody)

	second, err := loader.LoadVersion("1.0")
	if err != nil {
		t.Fatalf("LoadVersion: %v", err)
	}
	if first != second {
		t.Error("expected cached document")
	}

	loader.ClearCache()

	third, err := loader.LoadVersion("1.0")
	if err != nil {
		t.Fatalf("LoadVersion: %v", err)
	}
	if third.Metadata.Version != "1.1" {
		t.Errorf("expected reloaded document, got version %q", third.Metadata.Version)
	}
}

func TestLoader_LoadMusicPrompt(t *testing.T) {
	loader := NewLoader(nil, fstest.MapFS{"music-v1.0.md": musicFile("1.0", validBody)})
	mp, err := loader.LoadMusicPrompt("1.0")
	if err != nil {
		t.Fatalf("LoadMusicPrompt: %v", err)
	}
	if mp.MoodMappings["happy"] != "bright" {
		t.Errorf("MoodMappings = %v", mp.MoodMappings)
	}
	if mp.BaseTemplate == "" {
		t.Error("expected base template")
	}
}

func TestLoader_AvailableAndVersions(t *testing.T) {
	a := fstest.MapFS{
		"music-v2.0.md": musicFile("2.0", validBody),
		"notes.md":      &fstest.MapFile{Data: []byte("---\n---\n")},
		"readme.txt":    &fstest.MapFile{Data: []byte("x")},
	}
	b := fstest.MapFS{
		"music-v1.0.md": musicFile("1.0", validBody),
		"music-v2.0.md": musicFile("2.0", validBody),
	}
	loader := NewLoader(nil, a, b)

	want := []string{"music-v1.0.md", "music-v2.0.md", "notes.md"}
	if got := loader.Available(); !reflect.DeepEqual(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
	if got := loader.Versions(); !reflect.DeepEqual(got, []string{"1.0", "2.0"}) {
		t.Errorf("Versions() = %v", got)
	}
}

func TestLoader_Suggest(t *testing.T) {
	loader := NewLoader(nil, fstest.MapFS{
		"music-v1.0.md": musicFile("1.0", validBody),
		"music-v2.0.md": musicFile("2.0", validBody),
	})

	if got := loader.Suggest("2"); !reflect.DeepEqual(got, []string{"2.0"}) {
		t.Errorf("Suggest(2) = %v", got)
	}
	if got := loader.Suggest("9.9"); !reflect.DeepEqual(got, []string{"1.0", "2.0"}) {
		t.Errorf("Suggest(9.9) = %v", got)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader(nil, fstest.MapFS{
		"music-v1.0.md": musicFile("1.0", validBody),
		"music-v0.1.md": &fstest.MapFile{Data: []byte("---\nauthor: x\n---\n# Base Template\nshort\n")},
		"music-v0.2.md": musicFile("0.2", "# Mood Mappings\n\n- happy: a long enough line to pass the content length check\n"),
	})

	t.Run("valid", func(t *testing.T) {
		res := loader.Validate("music-v1.0.md")
		if !res.Valid {
			t.Errorf("expected valid, got %v", res.Errors)
		}
	})

	t.Run("missing fields and short content", func(t *testing.T) {
		res := loader.Validate("music-v0.1.md")
		if res.Valid {
			t.Fatal("expected invalid")
		}
		if len(res.Errors) != 3 {
			t.Errorf("expected 3 errors, got %v", res.Errors)
		}
	})

	t.Run("missing base template", func(t *testing.T) {
		res := loader.Validate("music-v0.2.md")
		if res.Valid || len(res.Errors) != 1 {
			t.Errorf("expected one error, got %v", res.Errors)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		res := loader.Validate("music-v9.9.md")
		if res.Valid || len(res.Errors) != 1 {
			t.Errorf("unexpected result: %+v", res)
		}
	})
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "music-v1.0.md"), []byte("---\nversion: \"1.0-local\"\n---\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(nil, Sources(dir)...)
	doc, err := loader.LoadVersion("1.0")
	if err != nil {
		t.Fatalf("LoadVersion: %v", err)
	}
	if doc.Metadata.Version != "1.0-local" {
		t.Errorf("expected override, got %q", doc.Metadata.Version)
	}

	// Embedded defaults still back versions the override directory lacks.
	if _, err := loader.LoadVersion("2.0"); err != nil {
		t.Errorf("LoadVersion(2.0): %v", err)
	}

	if got := len(Sources(filepath.Join(dir, "missing"))); got != 1 {
		t.Errorf("expected only embedded source, got %d", got)
	}
}

func TestEmbeddedTemplatesAreValid(t *testing.T) {
	loader := NewLoader(nil, Embedded())
	files := loader.Available()
	if len(files) == 0 {
		t.Fatal("no embedded templates")
	}
	for _, f := range files {
		if res := loader.Validate(f); !res.Valid {
			t.Errorf("%s: %v", f, res.Errors)
		}
	}
}
