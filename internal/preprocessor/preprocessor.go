// Package preprocessor turns raw connector content into plain text for
// downstream consumers, mainly the LLM fit analyzer.
package preprocessor

import (
	"html"
	"regexp"
	"strings"

	"github.com/jmylchreest/jobsift/internal/constants"
)

const (
	// MaxDescriptionChars bounds the cleaned description included in a prompt.
	MaxDescriptionChars = constants.MaxDescriptionChars

	// TruncationMarker is appended when a description is cut at the cap.
	TruncationMarker = constants.TruncationMarker
)

var (
	blockPattern      = regexp.MustCompile(`(?is)<(?:script|style|noscript)\b[^>]*>.*?</(?:script|style|noscript)>`)
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanDescription converts a job description, HTML or plain text, into
// collapsed plain text: script and style blocks removed, tags replaced with
// spaces, entities decoded, whitespace runs collapsed. The result is capped
// at MaxDescriptionChars with TruncationMarker appended when cut.
func CleanDescription(raw string) string {
	text := blockPattern.ReplaceAllString(raw, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	// Decode after stripping so literal "&lt;b&gt;" in text is not eaten as a tag
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, " ", " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return Truncate(text, MaxDescriptionChars)
}

// Truncate caps text at maxChars, cutting back to a word boundary when one
// falls in the second half, and appends TruncationMarker.
func Truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if i := strings.LastIndex(cut, " "); i > maxChars/2 {
		cut = cut[:i]
	}
	return cut + TruncationMarker
}
