// Package lyrics implements the guess-line selection logic of the karaoke
// game: given a time-coded transcript, pick the line contestants must guess,
// sized to a target word count, degrading gracefully when no line matches.
package lyrics

import (
	"errors"
	"strings"
)

// Line is a single time-coded lyric line.
type Line struct {
	StartTimeMs int    `json:"startTimeMs"`
	Words       string `json:"words"`
}

// Transcript is the ordered lyric lines of one song, sorted by StartTimeMs
// ascending. Callers supply it pre-sorted; order is taken as given.
type Transcript []Line

// ErrEmptyTranscript is returned when a selection is requested on a
// transcript with no lines. The selector has no fallback in that state.
var ErrEmptyTranscript = errors.New("lyrics: empty transcript")

var wordSeparators = strings.NewReplacer("'", " ", "-", " ")

// WordCount counts the words of a lyric line. Apostrophes and hyphens are
// each replaced with a single space before splitting on whitespace, so
// contractions and hyphenated compounds count as multiple words
// ("j'aime-toi" counts 3: "j", "aime", "toi").
func WordCount(s string) int {
	return len(strings.Fields(wordSeparators.Replace(s)))
}

// WordCounts returns the word count of every line in the transcript, in
// transcript order.
func WordCounts(t Transcript) []int {
	counts := make([]int, len(t))
	for i, line := range t {
		counts[i] = WordCount(line.Words)
	}
	return counts
}
