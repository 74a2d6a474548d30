// Package sanitizer normalizes user supplied text before it is validated,
// sent to the model or stored.
package sanitizer

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
)

// Apply runs transforms over value in order.
func Apply[T any](value T, transforms ...func(T) T) T {
	for _, transform := range transforms {
		value = transform(value)
	}
	return value
}

// Compose stores a transform chain for reuse.
func Compose[T any](transforms ...func(T) T) func(T) T {
	return func(value T) T {
		return Apply(value, transforms...)
	}
}

func Trim(s string) string {
	return strings.TrimSpace(s)
}

func RemoveNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// RemoveControlSequences drops ANSI escapes and control characters other
// than newline, carriage return and tab.
func RemoveControlSequences(s string) string {
	s = ansiEscapeRegex.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// StripHTML removes tags and unescapes entities.
func StripHTML(s string) string {
	return html.UnescapeString(htmlTagRegex.ReplaceAllString(s, ""))
}

var (
	// Prompt keeps markup intact, prompts may legitimately contain it.
	Prompt = Compose(RemoveNullBytes, RemoveControlSequences, Trim)
	// Feedback is plain text.
	Feedback = Compose(RemoveNullBytes, RemoveControlSequences, StripHTML, Trim)
)
