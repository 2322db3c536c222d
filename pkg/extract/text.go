// Package extract turns user input (raw text, documents, web pages) into
// plain text ready for analysis.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/japaniel/bsdetect/pkg/apperr"
)

const (
	// MinTextLength is the shortest text accepted for analysis, in characters.
	MinTextLength = 10
	// MaxTextLength is the longest text accepted for analysis, in characters.
	MaxTextLength = 50000
	// MinPageTextLength is the shortest main-content text accepted from a web page.
	MinPageTextLength = 50
)

// ValidateText enforces the length bounds for pasted text.
func ValidateText(text string) error {
	n := utf8.RuneCountInString(text)
	if n < MinTextLength {
		return apperr.Validationf(apperr.CodeTextTooShort, apperr.StageInput, "got %d characters", n)
	}
	if n > MaxTextLength {
		return apperr.Validationf(apperr.CodeTextTooLong, apperr.StageInput, "got %d characters", n)
	}
	return nil
}

// normalizeWhitespace collapses horizontal whitespace runs to one space and
// drops blank lines, so paragraphs end up separated by a single newline.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
