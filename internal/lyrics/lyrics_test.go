package lyrics

import "testing"

func TestWordCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"bonjour", 1},
		{"je t'aime", 3},
		{"j'aime-toi", 3},
		{"c'est-à-dire", 4},
		{"deux  mots", 2},
		{"l'amour dure toujours", 4},
		{"rock'n'roll", 3},
		{"-'-", 0},
	}
	for _, c := range cases {
		if got := WordCount(c.in); got != c.want {
			t.Errorf("WordCount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestWordCounts(t *testing.T) {
	transcript := Transcript{
		{StartTimeMs: 0, Words: "un"},
		{StartTimeMs: 1000, Words: "un deux"},
		{StartTimeMs: 2000, Words: "j'en veux trois"},
	}
	got := WordCounts(transcript)
	want := []int{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("WordCounts returned %d counts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("count[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
