package lyrics

import (
	"math/rand"
	"testing"
)

func line(ms int, words string) Line {
	return Line{StartTimeMs: ms, Words: words}
}

func TestAfterOffset(t *testing.T) {
	transcript := Transcript{
		line(0, "intro"),
		line(20000, "exactly at the threshold"),
		line(20001, "just past it"),
		line(45000, "well past it"),
	}

	got := AfterOffset(transcript, MinStartOffsetMs)
	if len(got) != 2 {
		t.Fatalf("expected 2 lines past threshold, got %d", len(got))
	}
	// Strictly greater: the 20000ms line is excluded.
	if got[0].StartTimeMs != 20001 || got[1].StartTimeMs != 45000 {
		t.Errorf("unexpected filtered lines: %+v", got)
	}
}

func TestSelectGuessLineEmptyTranscript(t *testing.T) {
	if _, err := SelectGuessLine(nil, 5, nil); err != ErrEmptyTranscript {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if _, err := SelectLineAtTime(nil, 5000); err != ErrEmptyTranscript {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestSelectGuessLineTargetZero(t *testing.T) {
	transcript := Transcript{line(0, "un"), line(30000, "un deux trois")}
	sel, err := SelectGuessLine(transcript, 0, nil)
	if err != nil {
		t.Fatalf("SelectGuessLine failed: %v", err)
	}
	if sel.Line != nil {
		t.Errorf("browse mode must select no line, got %+v", sel.Line)
	}
	if sel.WordsToGuess != 0 {
		t.Errorf("browse mode WordsToGuess = %d, want 0", sel.WordsToGuess)
	}
}

func TestSelectGuessLineExactMatch(t *testing.T) {
	transcript := Transcript{
		line(1000, "un deux trois"),  // right count but under the threshold
		line(25000, "un deux trois"), // eligible
		line(30000, "un deux trois quatre"),
		line(40000, "un deux"),
	}

	for i := 0; i < 20; i++ {
		rng := rand.New(rand.NewSource(int64(i)))
		sel, err := SelectGuessLine(transcript, 3, rng)
		if err != nil {
			t.Fatalf("SelectGuessLine failed: %v", err)
		}
		if sel.WordsToGuess != 3 {
			t.Fatalf("WordsToGuess = %d, want 3", sel.WordsToGuess)
		}
		if sel.Line.StartTimeMs != 25000 {
			t.Fatalf("selected line at %dms; the only eligible 3-word line is at 25000ms", sel.Line.StartTimeMs)
		}
	}
}

func TestSelectGuessLineUniformOverCandidates(t *testing.T) {
	transcript := Transcript{
		line(21000, "a b c"),
		line(22000, "d e f"),
		line(23000, "g h i"),
	}
	seen := map[int]bool{}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		sel, err := SelectGuessLine(transcript, 3, rng)
		if err != nil {
			t.Fatalf("SelectGuessLine failed: %v", err)
		}
		if WordCount(sel.Line.Words) != 3 {
			t.Fatalf("picked a line with %d words, want 3", WordCount(sel.Line.Words))
		}
		seen[sel.Line.StartTimeMs] = true
	}
	if len(seen) != 3 {
		t.Errorf("200 draws hit %d of 3 candidates", len(seen))
	}
}

func TestSelectGuessLineDegradesToMatch(t *testing.T) {
	// Single one-word line past the threshold, target 5: rounds at 5, 4, 3
	// and 2 fail, the round at 1 matches the line itself.
	transcript := Transcript{line(100000, "a")}
	sel, err := SelectGuessLine(transcript, 5, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("SelectGuessLine failed: %v", err)
	}
	if sel.Line.StartTimeMs != 100000 {
		t.Errorf("selected line at %dms, want 100000", sel.Line.StartTimeMs)
	}
	if sel.WordsToGuess != 1 {
		t.Errorf("WordsToGuess = %d, want 1", sel.WordsToGuess)
	}
}

func TestSelectGuessLineFallbackWhenNothingMatches(t *testing.T) {
	// No line anywhere has fewer than 8 words; target 1 must terminate via
	// the first-line fallback rather than loop or fail.
	transcript := Transcript{
		line(500, "one two three four five six seven eight"),
		line(25000, "a b c d e f g h i"),
	}
	sel, err := SelectGuessLine(transcript, 1, nil)
	if err != nil {
		t.Fatalf("SelectGuessLine failed: %v", err)
	}
	if sel.Line.StartTimeMs != 500 {
		t.Errorf("fallback must return the first line of the full transcript, got %dms", sel.Line.StartTimeMs)
	}
	if sel.WordsToGuess != 1 {
		t.Errorf("fallback WordsToGuess = %d, want 1", sel.WordsToGuess)
	}
}

func TestSelectGuessLineAttemptCap(t *testing.T) {
	// Starting at 20 with a match only at 1: the cap fires after 5 failed
	// rounds (targets 20..16), before the natural floor is reached, and the
	// first line wins even though a 1-word line exists further in. Pinned
	// behavior, not an accident.
	transcript := Transcript{
		line(100, "premiere ligne de la chanson"),
		line(90000, "seul"),
	}
	sel, err := SelectGuessLine(transcript, 20, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("SelectGuessLine failed: %v", err)
	}
	if sel.Line.StartTimeMs != 100 {
		t.Errorf("attempt cap must fall back to the first line, got %dms", sel.Line.StartTimeMs)
	}
	if sel.WordsToGuess != 1 {
		t.Errorf("WordsToGuess = %d, want 1", sel.WordsToGuess)
	}
}

func TestSelectGuessLineThresholdInvariant(t *testing.T) {
	// Lines at or under 20000ms are never selected outside the fallback.
	transcript := Transcript{
		line(1000, "a b c"),
		line(20000, "a b c"),
		line(30000, "d e f"),
	}
	for seed := int64(0); seed < 50; seed++ {
		sel, err := SelectGuessLine(transcript, 3, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("SelectGuessLine failed: %v", err)
		}
		if sel.Line.StartTimeMs != 30000 {
			t.Fatalf("seed %d selected a line at %dms, under the threshold", seed, sel.Line.StartTimeMs)
		}
	}
}

func TestSelectLineAtTimeExactHit(t *testing.T) {
	transcript := Transcript{line(1000, "a"), line(5000, "b c"), line(9000, "d")}
	sel, err := SelectLineAtTime(transcript, 5000)
	if err != nil {
		t.Fatalf("SelectLineAtTime failed: %v", err)
	}
	if sel.Line.StartTimeMs != 5000 {
		t.Errorf("exact query returned line at %dms, want 5000", sel.Line.StartTimeMs)
	}
	if sel.WordsToGuess != 2 {
		t.Errorf("WordsToGuess = %d, want the line's actual count 2", sel.WordsToGuess)
	}
}

func TestSelectLineAtTimeNearest(t *testing.T) {
	transcript := Transcript{line(1000, "a"), line(5000, "b c"), line(9000, "d")}
	sel, err := SelectLineAtTime(transcript, 6000)
	if err != nil {
		t.Fatalf("SelectLineAtTime failed: %v", err)
	}
	if sel.Line.StartTimeMs != 5000 {
		t.Errorf("nearest to 6000 is 5000 (distance 1000), got %dms", sel.Line.StartTimeMs)
	}
}

func TestSelectLineAtTimeTieBreaksEarliest(t *testing.T) {
	transcript := Transcript{line(4000, "early"), line(8000, "late")}
	sel, err := SelectLineAtTime(transcript, 6000)
	if err != nil {
		t.Fatalf("SelectLineAtTime failed: %v", err)
	}
	if sel.Line.StartTimeMs != 4000 {
		t.Errorf("equidistant query must keep the earliest line, got %dms", sel.Line.StartTimeMs)
	}
}
