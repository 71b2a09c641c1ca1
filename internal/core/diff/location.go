package diff

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxHeadingLength is the longest line still considered a heading.
const maxHeadingLength = 100

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedLine    = regexp.MustCompile(`^\d+(?:\.\d+)*[.)]?\s+\S`)
)

// isHeading reports whether a trimmed line looks like a section heading.
func isHeading(line string) bool {
	if line == "" || len(line) >= maxHeadingLength {
		return false
	}
	if markdownHeading.MatchString(line) {
		return true
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	return strings.HasSuffix(line, ":") || isAllCaps(line) || numberedLine.MatchString(line)
}

func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func cleanHeading(line string) string {
	line = strings.TrimLeft(line, "#")
	line = strings.TrimSpace(line)
	return strings.TrimSpace(strings.TrimSuffix(line, ":"))
}

// locate returns the nearest heading above the first occurrence of
// paragraph in source, or "" when there is none.
func locate(source, paragraph string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	idx := strings.Index(source, paragraph)
	if idx < 0 {
		return ""
	}
	lines := strings.Split(source[:idx], "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if isHeading(line) {
			return cleanHeading(line)
		}
	}
	return ""
}

// excerptWords is the word limit of a display excerpt.
const excerptWords = 30

// Excerpt truncates text to a fixed number of words, adding an ellipsis
// when anything was cut.
func Excerpt(text string) string {
	words := strings.Fields(text)
	if len(words) <= excerptWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:excerptWords], " ") + "..."
}
