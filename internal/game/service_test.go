package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/storage"
)

type fakeStore struct {
	transcripts map[string]lyrics.Transcript
	songs       map[string]bool
	putCalls    int
}

func (f *fakeStore) GetLyrics(trackID string) (lyrics.Transcript, error) {
	if t, ok := f.transcripts[trackID]; ok {
		return t, nil
	}
	if f.songs[trackID] {
		return nil, storage.ErrLyricsNotFound
	}
	return nil, storage.ErrSongNotFound
}

func (f *fakeStore) PutLyrics(trackID string, t lyrics.Transcript) error {
	f.putCalls++
	if f.transcripts == nil {
		f.transcripts = map[string]lyrics.Transcript{}
	}
	f.transcripts[trackID] = t
	return nil
}

type fakeFetcher struct {
	transcript lyrics.Transcript
	err        error
	calls      int
}

func (f *fakeFetcher) FetchLyrics(ctx context.Context, trackID string) (lyrics.Transcript, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.transcript, nil
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func testTranscript() lyrics.Transcript {
	return lyrics.Transcript{
		{StartTimeMs: 500, Words: "Premier refrain de la chanson"},
		{StartTimeMs: 25000, Words: "On ira tous ensemble"},
		{StartTimeMs: 48000, Words: "Jusqu'au bout de la nuit"},
	}
}

func newTestService(store *fakeStore, opts ...Option) *Service {
	opts = append(opts, WithLogger(nopLogger{}))
	return NewService(store, opts...)
}

func TestGetLyricsFromStore(t *testing.T) {
	store := &fakeStore{transcripts: map[string]lyrics.Transcript{"t1": testTranscript()}}
	svc := newTestService(store, WithRand(rand.New(rand.NewSource(1))))

	rsp, err := svc.GetLyrics(context.Background(), "t1", 4, nil)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if len(rsp.Lyrics) != 3 {
		t.Fatalf("got %d lyric lines, want 3", len(rsp.Lyrics))
	}
	if rsp.Lyrics[0].WordCount != 5 {
		t.Errorf("first line word count = %d, want 5", rsp.Lyrics[0].WordCount)
	}
	if len(rsp.LyricsToGuess) != 1 {
		t.Fatalf("got %d guess lines, want 1", len(rsp.LyricsToGuess))
	}
	// "On ira tous ensemble" is the only eligible 4-word line past 20s.
	if rsp.LyricsToGuess[0].StartTimeMs != 25000 {
		t.Errorf("guess line at %dms, want 25000", rsp.LyricsToGuess[0].StartTimeMs)
	}
	if rsp.WordsToGuess != 4 {
		t.Errorf("words_to_guess = %d, want 4", rsp.WordsToGuess)
	}
}

func TestGetLyricsBrowseMode(t *testing.T) {
	store := &fakeStore{transcripts: map[string]lyrics.Transcript{"t1": testTranscript()}}
	svc := newTestService(store)

	rsp, err := svc.GetLyrics(context.Background(), "t1", 0, nil)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if len(rsp.LyricsToGuess) != 0 {
		t.Errorf("browse mode returned %d guess lines, want 0", len(rsp.LyricsToGuess))
	}
	if rsp.WordsToGuess != 0 {
		t.Errorf("browse mode words_to_guess = %d, want 0", rsp.WordsToGuess)
	}
	if rsp.LyricsToGuess == nil {
		t.Error("lyricsToGuess must serialize as an empty array, not null")
	}
}

func TestGetLyricsAtTime(t *testing.T) {
	store := &fakeStore{transcripts: map[string]lyrics.Transcript{"t1": testTranscript()}}
	svc := newTestService(store)

	at := 26000
	rsp, err := svc.GetLyrics(context.Background(), "t1", 4, &at)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if rsp.LyricsToGuess[0].StartTimeMs != 25000 {
		t.Errorf("pinned line at %dms, want 25000", rsp.LyricsToGuess[0].StartTimeMs)
	}
	if rsp.WordsToGuess != 4 {
		t.Errorf("words_to_guess = %d, want the pinned line's count 4", rsp.WordsToGuess)
	}
}

func TestGetLyricsFetchFallbackStoresBack(t *testing.T) {
	store := &fakeStore{songs: map[string]bool{"t1": true}}
	fetcher := &fakeFetcher{transcript: testTranscript()}
	svc := newTestService(store, WithFetcher(fetcher))

	if _, err := svc.GetLyrics(context.Background(), "t1", 4, nil); err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.calls)
	}
	if store.putCalls != 1 {
		t.Errorf("store-back calls = %d, want 1", store.putCalls)
	}

	// Second request is served from the store.
	if _, err := svc.GetLyrics(context.Background(), "t1", 4, nil); err != nil {
		t.Fatalf("second GetLyrics failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times after store-back, want 1", fetcher.calls)
	}
}

func TestGetLyricsUnknownSongNotStoredBack(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{transcript: testTranscript()}
	svc := newTestService(store, WithFetcher(fetcher))

	if _, err := svc.GetLyrics(context.Background(), "ghost", 4, nil); err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if store.putCalls != 0 {
		t.Errorf("unknown song stored back %d times, want 0", store.putCalls)
	}
}

func TestGetLyricsNoProvider(t *testing.T) {
	svc := newTestService(&fakeStore{})
	if _, err := svc.GetLyrics(context.Background(), "t1", 4, nil); !errors.Is(err, ErrNoLyrics) {
		t.Fatalf("expected ErrNoLyrics, got %v", err)
	}
}

func TestGetLyricsFetchFails(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("upstream down")}
	svc := newTestService(&fakeStore{songs: map[string]bool{"t1": true}}, WithFetcher(fetcher))
	if _, err := svc.GetLyrics(context.Background(), "t1", 4, nil); !errors.Is(err, ErrNoLyrics) {
		t.Fatalf("expected ErrNoLyrics, got %v", err)
	}
}

func TestGetLyricsNeverBlocksTheRound(t *testing.T) {
	// A target no line can satisfy still yields a guess line.
	store := &fakeStore{transcripts: map[string]lyrics.Transcript{"t1": testTranscript()}}
	svc := newTestService(store, WithRand(rand.New(rand.NewSource(7))))

	rsp, err := svc.GetLyrics(context.Background(), "t1", 50, nil)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if len(rsp.LyricsToGuess) != 1 {
		t.Fatalf("got %d guess lines, want 1", len(rsp.LyricsToGuess))
	}
	if rsp.WordsToGuess < 1 {
		t.Errorf("words_to_guess = %d, want at least 1", rsp.WordsToGuess)
	}
}
