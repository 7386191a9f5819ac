package tokenizer

import (
	"regexp"
	"strings"
)

// splitPattern matches, in priority order: the sequence markers, English
// contraction suffixes, letter runs, single digits and runs of anything else
// that is not whitespace.
var splitPattern = regexp.MustCompile(`(?i)<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`)

// Normalize collapses whitespace (including line breaks) to single spaces,
// trims and lower-cases text.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// PreTokenize splits normalised text into the runs that are fed to BPE one by one.
func PreTokenize(text string) []string {
	return splitPattern.FindAllString(text, -1)
}
