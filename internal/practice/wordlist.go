// Package practice holds the spelling drill core: the word-list parser and
// the per-user practice session state machine. It performs no I/O.
package practice

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// WordList is an ordered list of practice words. Duplicates are kept.
type WordList []string

// Parse turns free-form text into a WordList. Commas and any whitespace
// separate words; runs of separators collapse and empty tokens are dropped.
// Words are not lowercased, deduplicated or spell-checked.
func Parse(raw string) WordList {
	fields := strings.FieldsFunc(raw, isSeparator)
	words := lo.FilterMap(fields, func(field string, _ int) (string, bool) {
		w := strings.TrimSpace(field)
		return w, w != ""
	})
	return WordList(words)
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// Len returns the number of words.
func (w WordList) Len() int { return len(w) }

// Clone returns a copy that shares no backing array with w.
func (w WordList) Clone() WordList {
	out := make(WordList, len(w))
	copy(out, w)
	return out
}
