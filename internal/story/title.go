package story

import "strings"

// DefaultTitle is used when a story opens directly with its narrative
// and no usable heading line exists.
const DefaultTitle = "Bedtime Story"

const maxTitleRunes = 80

var titleMarkers = []string{"Title:", "# ", "## "}

// DeriveTitle extracts a display title from generated story text: the
// first non-empty line, unless the story starts straight in with "Once
// upon a time". Heading markers and surrounding quotes are stripped.
func DeriveTitle(text string) string {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Once upon a time") {
			return DefaultTitle
		}
		for _, marker := range titleMarkers {
			if strings.HasPrefix(line, marker) {
				line = strings.TrimSpace(strings.TrimPrefix(line, marker))
			}
		}
		line = strings.Trim(line, "\"'“”‘’ ")
		if line == "" {
			return DefaultTitle
		}
		if runes := []rune(line); len(runes) > maxTitleRunes {
			line = string(runes[:maxTitleRunes])
		}
		return line
	}
	return DefaultTitle
}
