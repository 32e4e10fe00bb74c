// Package game orchestrates the lyric flow of a round: load the transcript
// (database first, provider fallback), run the guess-line selection, and
// shape the response the game screens consume.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
)

// DefaultWordsToGuess is used when the request carries no usable target.
const DefaultWordsToGuess = 5

// ErrNoLyrics is returned when neither the store nor the provider has a
// transcript for the track.
var ErrNoLyrics = errors.New("game: no lyrics available for track")

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// LyricsStore is the persisted-transcript side of the service.
type LyricsStore interface {
	GetLyrics(trackID string) (lyrics.Transcript, error)
	PutLyrics(trackID string, t lyrics.Transcript) error
}

// LyricsFetcher is the external provider side: fetch a transcript by track
// identifier.
type LyricsFetcher interface {
	FetchLyrics(ctx context.Context, trackID string) (lyrics.Transcript, error)
}

type Service struct {
	store   LyricsStore
	fetcher LyricsFetcher
	log     Logger
	rng     *rand.Rand
}

type Option func(*Service)

func WithFetcher(f LyricsFetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

func WithLogger(log Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithRand injects the random source used for candidate picks, so tests can
// pin seeds.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) {
		s.rng = rng
	}
}

func NewService(store LyricsStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.GetLogger()
	}
	return s
}

// Line is a transcript line as serialized in responses, with its word count
// precomputed for the screens.
type Line struct {
	StartTimeMs int    `json:"startTimeMs"`
	Words       string `json:"words"`
	WordCount   int    `json:"word_count"`
}

// LyricsResponse is the payload of the lyrics endpoint: the full transcript,
// the line to guess (empty in browse mode), and the word count that was
// actually satisfied.
type LyricsResponse struct {
	Lyrics        []Line `json:"lyrics"`
	LyricsToGuess []Line `json:"lyricsToGuess"`
	WordsToGuess  int    `json:"words_to_guess"`
}

// GetLyrics loads the transcript for trackID and selects the guess line.
//
// lyricTime, when non-nil, pins the line nearest that timestamp instead of
// running the random selection. wordsToGuess 0 is the browse mode: the full
// transcript is returned with no guess challenge. A selection failure never
// surfaces; the first line with word count 1 is substituted so the game is
// never blocked.
func (s *Service) GetLyrics(ctx context.Context, trackID string, wordsToGuess int, lyricTime *int) (*LyricsResponse, error) {
	transcript, err := s.loadTranscript(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if len(transcript) == 0 {
		return nil, lyrics.ErrEmptyTranscript
	}

	rsp := &LyricsResponse{
		Lyrics:        annotate(transcript),
		LyricsToGuess: []Line{},
	}

	var sel lyrics.Selection
	switch {
	case lyricTime != nil:
		sel, err = lyrics.SelectLineAtTime(transcript, *lyricTime)
	case wordsToGuess == 0:
		return rsp, nil
	default:
		sel, err = lyrics.SelectGuessLine(transcript, wordsToGuess, s.rng)
	}
	if err != nil {
		// The transcript is non-empty, so selection errors are unexpected;
		// degrade to the first line rather than block the round.
		s.log.Errorf("Lyric selection failed for %s: %v", trackID, err)
		sel = lyrics.Selection{Line: &transcript[0], WordsToGuess: 1}
	}

	if sel.Line != nil {
		rsp.LyricsToGuess = []Line{{
			StartTimeMs: sel.Line.StartTimeMs,
			Words:       sel.Line.Words,
			WordCount:   lyrics.WordCount(sel.Line.Words),
		}}
	}
	rsp.WordsToGuess = sel.WordsToGuess
	return rsp, nil
}

// loadTranscript reads the stored transcript, falling back to the provider
// when the song has none yet. A successful fetch for a known song is stored
// back so the next round hits the database.
func (s *Service) loadTranscript(ctx context.Context, trackID string) (lyrics.Transcript, error) {
	transcript, err := s.store.GetLyrics(trackID)
	if err == nil {
		return transcript, nil
	}

	knownSong := errors.Is(err, storage.ErrLyricsNotFound)
	if !knownSong && !errors.Is(err, storage.ErrSongNotFound) {
		return nil, fmt.Errorf("loading lyrics for %s: %w", trackID, err)
	}

	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoLyrics, trackID)
	}

	s.log.Infof("No stored lyrics for %s, querying provider", trackID)
	transcript, err = s.fetcher.FetchLyrics(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoLyrics, trackID, err)
	}

	if knownSong {
		if err := s.store.PutLyrics(trackID, transcript); err != nil {
			s.log.Warnf("Failed to store fetched lyrics for %s: %v", trackID, err)
		}
	}
	return transcript, nil
}

func annotate(t lyrics.Transcript) []Line {
	out := make([]Line, len(t))
	for i, line := range t {
		out[i] = Line{
			StartTimeMs: line.StartTimeMs,
			Words:       line.Words,
			WordCount:   lyrics.WordCount(line.Words),
		}
	}
	return out
}
