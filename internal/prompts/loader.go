package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/jackzampolin/songbook/internal/metrics"
)

const (
	musicPrefix = "music-v"
	extension   = ".md"

	// minContentLength is the shortest body Validate accepts.
	minContentLength = 50
)

// versionPattern keeps version strings to a single path element.
var versionPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._-]*$`)

// Loader resolves template files across an ordered list of sources and
// caches parsed documents by filename.
// Resolution order: first source that has the file wins.
type Loader struct {
	sources []fs.FS
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Document
}

// NewLoader creates a loader over the given sources, searched in order.
func NewLoader(logger *slog.Logger, sources ...fs.FS) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		sources: sources,
		logger:  logger,
		cache:   make(map[string]*Document),
	}
}

// Sources returns the standard source list: the override directory when it
// exists, then the embedded defaults.
func Sources(overrideDir string) []fs.FS {
	var sources []fs.FS
	if overrideDir != "" {
		if info, err := os.Stat(overrideDir); err == nil && info.IsDir() {
			sources = append(sources, os.DirFS(overrideDir))
		}
	}
	return append(sources, Embedded())
}

// MusicFilename returns the template filename for a version.
func MusicFilename(version string) string {
	return musicPrefix + version + extension
}

// Load returns the parsed document for filename. A missing, unreadable or
// malformed file returns an error wrapping ErrNotFound.
func (l *Loader) Load(filename string) (*Document, error) {
	if path.Base(filename) != filename || !strings.HasSuffix(filename, extension) {
		return nil, fmt.Errorf("%w: invalid filename %q", ErrNotFound, filename)
	}

	l.mu.RLock()
	doc, ok := l.cache[filename]
	l.mu.RUnlock()
	if ok {
		metrics.TemplateLoadsTotal.WithLabelValues("hit").Inc()
		return doc, nil
	}

	data, err := l.read(filename)
	if err != nil {
		metrics.TemplateLoadsTotal.WithLabelValues("not_found").Inc()
		l.logger.Warn("prompt template not available", "file", filename, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, filename, err)
	}

	doc, err = ParseDocument(filename, data)
	if err != nil {
		metrics.TemplateLoadsTotal.WithLabelValues("not_found").Inc()
		l.logger.Warn("malformed prompt template", "file", filename, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, filename, err)
	}

	l.mu.Lock()
	l.cache[filename] = doc
	l.mu.Unlock()

	metrics.TemplateLoadsTotal.WithLabelValues("parsed").Inc()
	l.logger.Debug("loaded prompt template", "file", filename, "version", doc.Metadata.Version)
	return doc, nil
}

// read returns the file from the first source that has it.
func (l *Loader) read(filename string) ([]byte, error) {
	for _, src := range l.sources {
		data, err := fs.ReadFile(src, filename)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return data, err
	}
	return nil, fs.ErrNotExist
}

// LoadVersion loads music-v{version}.md.
func (l *Loader) LoadVersion(version string) (*Document, error) {
	if !versionPattern.MatchString(version) {
		return nil, fmt.Errorf("%w: invalid version %q", ErrNotFound, version)
	}
	return l.Load(MusicFilename(version))
}

// LoadMusicPrompt loads a version and returns its structured music view.
func (l *Loader) LoadMusicPrompt(version string) (*MusicPrompt, error) {
	doc, err := l.LoadVersion(version)
	if err != nil {
		return nil, err
	}
	return ParseMusicPrompt(doc), nil
}

// ClearCache drops every cached document.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]*Document)
	l.mu.Unlock()

	metrics.TemplateCacheClearsTotal.Inc()
	l.logger.Debug("prompt template cache cleared")
}

// Available lists the .md files across all sources, sorted and deduplicated.
func (l *Loader) Available() []string {
	seen := make(map[string]bool)
	var files []string
	for _, src := range l.sources {
		matches, err := fs.Glob(src, "*"+extension)
		if err != nil {
			l.logger.Warn("failed to list prompt templates", "error", err)
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files
}

// Versions lists the versions of the available music templates.
func (l *Loader) Versions() []string {
	var versions []string
	for _, f := range l.Available() {
		if strings.HasPrefix(f, musicPrefix) {
			versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(f, musicPrefix), extension))
		}
	}
	return versions
}

// Suggest returns the known versions closest to an unknown one. When
// nothing matches, every known version is returned.
func (l *Loader) Suggest(version string) []string {
	versions := l.Versions()
	matches := fuzzy.Find(version, versions)
	if len(matches) == 0 {
		return versions
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// Validate checks a template file for the fields every template needs.
func (l *Loader) Validate(filename string) ValidationResult {
	doc, err := l.Load(filename)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{"file could not be loaded"}}
	}

	var errs []string
	if doc.Metadata.Version == "" || doc.Metadata.Version == "unknown" {
		errs = append(errs, "missing version in front matter")
	}
	if doc.Metadata.Description == "" {
		errs = append(errs, "missing description in front matter")
	}
	if len([]rune(doc.Content)) < minContentLength {
		errs = append(errs, "prompt content is too short or missing")
	}
	if _, ok := doc.Section(SectionBaseTemplate); strings.HasPrefix(filename, musicPrefix) && !ok {
		errs = append(errs, "missing base template section")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
