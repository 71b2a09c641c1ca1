package diff

import (
	"regexp"
	"strings"
)

// OpKind is the kind of an edit script operation.
type OpKind int

const (
	// OpSame keeps a paragraph present in both revisions.
	OpSame OpKind = iota

	// OpRemoved drops a paragraph from the previous revision.
	OpRemoved

	// OpAdded inserts a paragraph from the new revision.
	OpAdded
)

// String returns the string representation.
func (k OpKind) String() string {
	switch k {
	case OpSame:
		return "same"
	case OpRemoved:
		return "removed"
	case OpAdded:
		return "added"
	default:
		return "unknown"
	}
}

// Op is one step of an edit script.
type Op struct {
	Kind OpKind
	Text string
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

// SplitParagraphs splits content on blank lines, trimming each paragraph
// and discarding empty ones.
func SplitParagraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	parts := blankLine.Split(content, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// lcsTable returns the classic dynamic-programming table where
// table[i][j] is the LCS length of a[:i] and b[:j].
func lcsTable(a, b []string) [][]int {
	table := make([][]int, len(a)+1)
	for i := range table {
		table[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else {
				table[i][j] = max(table[i-1][j], table[i][j-1])
			}
		}
	}
	return table
}

// EditScript aligns a and b with exact string equality and returns the
// ordered operations turning a into b. When walking the table back and both
// predecessor cells are equal, the added operation is taken first.
func EditScript(a, b []string) []Op {
	table := lcsTable(a, b)

	ops := make([]Op, 0, len(a)+len(b))
	i, j := len(a), len(b)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			ops = append(ops, Op{Kind: OpSame, Text: a[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || table[i][j-1] >= table[i-1][j]):
			ops = append(ops, Op{Kind: OpAdded, Text: b[j-1]})
			j--
		default:
			ops = append(ops, Op{Kind: OpRemoved, Text: a[i-1]})
			i--
		}
	}

	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

// maxWordCells bounds the word-level table used for modified-chunk deltas.
const maxWordCells = 250_000

// insertedText returns the runs of words present in after but not aligned
// with before, one run per line. It reports false when the texts are too
// large to align.
func insertedText(before, after string) (string, bool) {
	a := strings.Fields(before)
	b := strings.Fields(after)
	if (len(a)+1)*(len(b)+1) > maxWordCells {
		return "", false
	}

	var runs []string
	var current []string
	for _, op := range EditScript(a, b) {
		if op.Kind == OpAdded {
			current = append(current, op.Text)
			continue
		}
		if op.Kind == OpSame && len(current) > 0 {
			runs = append(runs, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, strings.Join(current, " "))
	}
	return strings.Join(runs, "\n"), true
}
