package lib

import (
	"github.com/gosimple/slug"
)

func Slugify(text string) string {
	return slug.Make(text)
}

// Truncate shortens text to max runes, appending "..." when cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
