// Package textutil provides filename and token sanitization for paths
// derived from user-supplied prompts and legacy file names.
package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// Slug converts free text into a lowercase hyphenated token suitable for
// generated file names. Words are joined with hyphens; the result is
// capped at maxWords words. Returns "untitled" for empty input.
func Slug(text string, maxWords int) string {
	text = strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
	if text == "" {
		return "untitled"
	}
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			current.WriteRune(r)
		default:
			flush()
		}
		if maxWords > 0 && len(words) >= maxWords {
			break
		}
	}
	flush()
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	if len(words) == 0 {
		return "untitled"
	}
	return strings.Join(words, "-")
}
