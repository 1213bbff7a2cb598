package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/poiesic/radar/core"
)

const maxFilenameLength = 180

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFilename reduces value to a portable file name.
func SafeFilename(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "untitled"
	}
	value = unsafeFilenameChars.ReplaceAllString(value, "_")
	if len(value) > maxFilenameLength {
		value = value[:maxFilenameLength]
	}
	value = strings.Trim(value, "._-")
	if value == "" {
		return "untitled"
	}
	return value
}

// TextArchive keeps a plain-text copy of item bodies under
// <dir>/<source>/<external id>.txt.
type TextArchive struct {
	dir     string
	sources map[string]struct{}
}

// NewTextArchive creates an archive rooted at dir. When sources is non-empty
// only items from those sources are archived.
func NewTextArchive(dir string, sources ...string) *TextArchive {
	a := &TextArchive{dir: dir}
	if len(sources) > 0 {
		a.sources = make(map[string]struct{}, len(sources))
		for _, source := range sources {
			a.sources[source] = struct{}{}
		}
	}
	return a
}

// Accepts reports whether the item would be written.
func (a *TextArchive) Accepts(item *core.ContentRecord) bool {
	if strings.TrimSpace(item.Text) == "" {
		return false
	}
	if a.sources == nil {
		return true
	}
	_, ok := a.sources[item.Source]
	return ok
}

// Path returns the file an item is archived to.
func (a *TextArchive) Path(key core.ContentKey) string {
	return filepath.Join(a.dir, SafeFilename(key.Source), SafeFilename(key.ExternalID)+".txt")
}

// Write stores the trimmed text followed by a newline and returns the path written.
func (a *TextArchive) Write(item *core.ContentRecord) (string, error) {
	path := a.Path(item.Key())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(item.Text)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("writing archive file: %w", err)
	}
	return path, nil
}
