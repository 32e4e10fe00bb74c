package lyrics

import (
	"math/rand"
)

const (
	// MinStartOffsetMs is the playback offset a line must be past before it
	// can be picked as a guess. Contestants are never asked to guess words
	// from the first ~20 seconds of a song, when a listener has had no
	// chance to recognize it.
	MinStartOffsetMs = 20000

	// MaxAttempts bounds the degradation loop. When the counter reaches the
	// cap the selector short-circuits to the first-line fallback regardless
	// of the current target, so termination never depends on the target
	// reaching its natural floor of 1.
	MaxAttempts = 5
)

// Selection is a chosen guess line together with the word count that was
// actually satisfied. WordsToGuess can be lower than the requested target
// when degradation occurred, and Line is nil for the browse mode (target 0).
type Selection struct {
	Line         *Line
	WordsToGuess int
}

// AfterOffset returns the ordered subsequence of lines starting strictly
// after minMs. Pure filter, the input is not modified.
func AfterOffset(t Transcript, minMs int) Transcript {
	out := make(Transcript, 0, len(t))
	for _, line := range t {
		if line.StartTimeMs > minMs {
			out = append(out, line)
		}
	}
	return out
}

// SelectGuessLine picks the line contestants must guess.
//
// Candidates are the lines past MinStartOffsetMs whose word count equals the
// target exactly; a line with more words than requested is rejected just
// like one with fewer. When candidates exist one is picked uniformly at
// random. When none exist the target is lowered by one and the round
// retried, until either a match is found, the target bottoms out at 1, or
// MaxAttempts rounds have failed; in the two last cases the first line of
// the full unfiltered transcript is returned with WordsToGuess 1, so a song
// stays playable even when no line fits.
//
// A target of 0 is the browse mode: no line is selected and no random draw
// happens. rng may be nil, in which case the shared source is used.
func SelectGuessLine(t Transcript, target int, rng *rand.Rand) (Selection, error) {
	if len(t) == 0 {
		return Selection{}, ErrEmptyTranscript
	}
	if target == 0 {
		return Selection{WordsToGuess: 0}, nil
	}

	candidates := AfterOffset(t, MinStartOffsetMs)

	for attempts := 0; ; attempts++ {
		if attempts >= MaxAttempts {
			return Selection{Line: &t[0], WordsToGuess: 1}, nil
		}

		var matches []int
		for i := range candidates {
			if WordCount(candidates[i].Words) == target {
				matches = append(matches, i)
			}
		}

		if len(matches) > 0 {
			picked := matches[intn(rng, len(matches))]
			return Selection{Line: &candidates[picked], WordsToGuess: target}, nil
		}

		if target == 1 {
			return Selection{Line: &t[0], WordsToGuess: 1}, nil
		}
		target--
	}
}

// SelectLineAtTime returns the line whose StartTimeMs equals timeMs, or
// failing that the line nearest to timeMs by absolute distance, the earliest
// one winning ties. WordsToGuess is the actual word count of the returned
// line. This is the manual override path: an operator pins an exact line by
// timestamp from the lyric browser.
func SelectLineAtTime(t Transcript, timeMs int) (Selection, error) {
	if len(t) == 0 {
		return Selection{}, ErrEmptyTranscript
	}

	best := 0
	bestDist := absDiff(t[0].StartTimeMs, timeMs)
	for i := 1; i < len(t) && bestDist != 0; i++ {
		if d := absDiff(t[i].StartTimeMs, timeMs); d < bestDist {
			best, bestDist = i, d
		}
	}

	return Selection{Line: &t[best], WordsToGuess: WordCount(t[best].Words)}, nil
}

func intn(rng *rand.Rand, n int) int {
	if rng != nil {
		return rng.Intn(n)
	}
	return rand.Intn(n)
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
