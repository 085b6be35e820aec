package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nonWordChars  = regexp.MustCompile(`[^\w\s-]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// slug lowercases s, strips everything but word characters, spaces and
// hyphens, and collapses whitespace runs into single hyphens.
func slug(s string) string {
	s = nonWordChars.ReplaceAllString(s, "")
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRun.ReplaceAllString(s, "-")
}

// audioFilename derives a human-readable filename from the story
// metadata, avoiding collisions with files already present in dir. When
// the metadata is missing or sanitizes to nothing, it falls back to a
// provider-prefixed random name. ext includes the leading dot.
func audioFilename(dir string, info Story, prefix, ext string) string {
	if info.Universe == "" || info.Title == "" {
		return fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext)
	}
	base := strings.Trim(slug(info.Universe)+"-"+slug(info.Title), "-")
	if base == "" {
		return fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext)
	}

	name := base + ext
	if !fileExists(filepath.Join(dir, name)) {
		return name
	}
	for n := 2; ; n++ {
		name = fmt.Sprintf("%s-%d%s", base, n, ext)
		if !fileExists(filepath.Join(dir, name)) {
			return name
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
