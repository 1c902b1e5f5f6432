package transcript

import (
	"regexp"
	"strings"
)

// MinUsableLength is the minimum cleaned-transcript length, in
// characters, below which a caption payload is treated as unusable and
// the extractor falls through to the next strategy.
const MinUsableLength = 50

var (
	// Bracketed annotations such as [Music] or [Applause].
	bracketRe = regexp.MustCompile(`\[[^\[\]]*\]`)
	// Parenthetical asides such as (laughs).
	parenRe = regexp.MustCompile(`\([^()]*\)`)
	// Music-note-delimited segments.
	musicNoteRe = regexp.MustCompile(`♪[^♪]*♪?`)
	// Filler interjections, whole words only.
	fillerRe = regexp.MustCompile(`(?i)\b(?:uh|um|umm|ahh|err)\b`)
	// Runs of whitespace, including newlines.
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Whitespace preceding sentence punctuation.
	punctSpaceRe = regexp.MustCompile(`\s+([.,!?;:])`)
)

// Clean normalizes a raw caption stream into readable prose: bracketed
// annotations, parentheticals, music-note segments, and filler words are
// removed; whitespace collapses to single spaces; spacing before
// sentence punctuation is dropped.
func Clean(raw string) string {
	s := bracketRe.ReplaceAllString(raw, " ")
	s = parenRe.ReplaceAllString(s, " ")
	s = musicNoteRe.ReplaceAllString(s, " ")
	s = fillerRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = punctSpaceRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
