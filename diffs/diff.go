// Package diffs compares two versions of patch text line by line.
package diffs

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type ChangeType string

const (
	Add    ChangeType = "add"
	Remove ChangeType = "remove"
	Modify ChangeType = "modify"
)

// LineChange marks one line. Removed lines are numbered in the previous text,
// added lines in the current one. Numbers start at 1.
type LineChange struct {
	LineNumber int        `json:"lineNumber"`
	Type       ChangeType `json:"type"`
}

type ChangeHunk struct {
	Type      ChangeType `json:"type"`
	StartLine int        `json:"startLine"`
	EndLine   int        `json:"endLine"`
}

// Diff computes editor decorations and merged hunks. An empty previous text
// counts as absent and yields no changes.
func Diff(previous, current string) (decorations []LineChange, hunks []ChangeHunk) {
	if previous == "" || previous == current {
		return nil, nil
	}

	prevLine := 0
	currLine := 0
	var raw []ChangeHunk
	for _, d := range lineDiff(previous, current) {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			for i := range n {
				decorations = append(decorations, LineChange{
					LineNumber: currLine + i + 1,
					Type:       Add,
				})
			}
			if n > 0 {
				raw = append(raw, ChangeHunk{
					Type:      Add,
					StartLine: currLine + 1,
					EndLine:   currLine + n,
				})
			}
			currLine += n
		case diffmatchpatch.DiffDelete:
			for i := range n {
				decorations = append(decorations, LineChange{
					LineNumber: prevLine + i + 1,
					Type:       Remove,
				})
			}
			if n > 0 {
				raw = append(raw, ChangeHunk{
					Type:      Remove,
					StartLine: prevLine + 1,
					EndLine:   prevLine + n,
				})
			}
			prevLine += n
		default:
			prevLine += n
			currLine += n
		}
	}

	return decorations, Merge(raw)
}

// Merge joins a hunk into the one before it when they touch and are of the
// same type, or when a removal is directly followed by an addition, which
// becomes a modification.
func Merge(hunks []ChangeHunk) []ChangeHunk {
	var merged []ChangeHunk
	for _, h := range hunks {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			removeThenAdd := last.Type == Remove && h.Type == Add
			if (last.Type == h.Type || removeThenAdd) && last.EndLine >= h.StartLine-1 {
				last.EndLine = max(last.EndLine, h.EndLine)
				if removeThenAdd {
					last.Type = Modify
				}
				continue
			}
		}
		merged = append(merged, h)
	}
	return merged
}

func lineDiff(a, b string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	charsA, charsB, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(charsA, charsB, false)
	return dmp.DiffCharsToLines(diffs, lines)
}

// countLines counts a final line without a newline as a line.
func countLines(text string) int {
	n := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
