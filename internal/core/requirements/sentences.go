package requirements

import (
	"regexp"
	"strings"
)

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)
	bareNumber  = regexp.MustCompile(`^\(?\d+(?:\.\d+)*[.)]*$`)
	listMarker  = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s`)
	headingLine = regexp.MustCompile(`^#{1,6}\s`)
)

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "etc.": true, "vs.": true,
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "no.": true,
}

// SplitSentences splits text into sentences on terminal punctuation.
// Hard-wrapped lines are joined first; a line break only separates
// sentences before a list item or heading, or after a line that already
// ends a sentence. List numbering such as "1." or "2.3." does not end a
// sentence.
func SplitSentences(text string) []string {
	var sentences []string
	for _, segment := range unwrap(text) {
		start := 0
		for _, loc := range sentenceEnd.FindAllStringIndex(segment, -1) {
			if !endsSentence(segment[start:loc[1]]) {
				continue
			}
			if s := strings.TrimSpace(segment[start:loc[1]]); s != "" {
				sentences = append(sentences, s)
			}
			start = loc[1]
		}
		if s := strings.TrimSpace(segment[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// unwrap joins wrapped lines into segments that never span a paragraph
// break, list item, heading or completed sentence.
func unwrap(text string) []string {
	var (
		segments []string
		current  []string
	)
	flush := func() {
		if len(current) > 0 {
			segments = append(segments, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if listMarker.MatchString(line) || headingLine.MatchString(line) {
			flush()
		}
		current = append(current, line)
		if headingLine.MatchString(line) || closesLine(line) {
			flush()
		}
	}
	flush()
	return segments
}

// closesLine reports whether a line ends a sentence or introduces a list.
func closesLine(line string) bool {
	if strings.HasSuffix(line, ":") {
		return true
	}
	if !strings.ContainsAny(line[len(line)-1:], ".!?") {
		return false
	}
	return endsSentence(line)
}

// endsSentence reports whether the candidate's final token is a real
// sentence end rather than list numbering or an abbreviation.
func endsSentence(candidate string) bool {
	fields := strings.Fields(candidate)
	if len(fields) == 0 {
		return false
	}
	last := fields[len(fields)-1]
	if bareNumber.MatchString(last) {
		return false
	}
	return !abbreviations[strings.ToLower(last)]
}

// normalize folds a sentence for verbatim comparison.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
