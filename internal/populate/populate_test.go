package populate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/playlist"
	"github.com/noplp/karaoke-backend/internal/spotify"
	"github.com/noplp/karaoke-backend/internal/storage"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

type fakeSearcher struct {
	track *spotify.Track
	err   error
}

func (f *fakeSearcher) Search(ctx context.Context, trackName, artist string) (*spotify.Track, error) {
	return f.track, f.err
}

func (f *fakeSearcher) GetTrack(ctx context.Context, trackID string) (*spotify.Track, error) {
	return f.track, f.err
}

type fakeSource struct {
	transcript lyrics.Transcript
	err        error
	calls      int
}

func (f *fakeSource) GetLyrics(ctx context.Context, trackName, artistName string) (lyrics.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

func testTranscript() lyrics.Transcript {
	return lyrics.Transcript{
		{StartTimeMs: 21480, Words: "Égaré dans la vallée infernale"},
		{StartTimeMs: 24900, Words: "Le héros s'appelle Bob Morane"},
	}
}

func setupDB(t *testing.T) *storage.DBClient {
	t.Helper()
	db, err := storage.NewDBClientWithPath(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupPlaylists(t *testing.T, playlists ...playlist.Playlist) *playlist.Store {
	t.Helper()
	dir := t.TempDir()
	for _, p := range playlists {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		id := p.Name
		if id == "" {
			id = "playlist"
		}
		if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return playlist.NewStore(dir)
}

func importPlaylist() playlist.Playlist {
	return playlist.Playlist{
		Name: "soiree",
		Categories: []playlist.Category{
			{ID: "cat-80s", Name: "Années 80", ExpectedWords: 3},
		},
		Songs: []playlist.Song{
			{ID: "t1", Category: "cat-80s", Artist: "Indochine", Title: "L'aventurier", ReleaseYear: 1982},
			{ID: "t2", Category: "cat-80s", Artist: "Balavoine", Title: "L'Aziza"},
		},
	}
}

func TestImportPlaylists(t *testing.T) {
	db := setupDB(t)
	p := New(db, setupPlaylists(t, importPlaylist()), WithLogger(nopLogger{}))

	n, err := p.ImportPlaylists(false)
	if err != nil {
		t.Fatalf("ImportPlaylists failed: %v", err)
	}
	if n != 2 {
		t.Errorf("processed %d songs, want 2", n)
	}

	song, err := db.GetSong("t1")
	if err != nil {
		t.Fatalf("song not imported: %v", err)
	}
	if song.Artist != "Indochine" || song.ReleaseYear != 1982 {
		t.Errorf("unexpected song: %+v", song)
	}
	if len(song.Categories) != 1 || song.Categories[0].ID != "cat-80s" {
		t.Errorf("category not linked: %+v", song.Categories)
	}
}

func TestImportPlaylistsPreservesExistingWithoutForce(t *testing.T) {
	db := setupDB(t)
	seed := &storage.Song{ID: "t1", Artist: "Original Artist", Title: "Original Title"}
	if err := db.UpsertSong(seed); err != nil {
		t.Fatalf("seeding song: %v", err)
	}

	p := New(db, setupPlaylists(t, importPlaylist()), WithLogger(nopLogger{}))
	if _, err := p.ImportPlaylists(false); err != nil {
		t.Fatalf("ImportPlaylists failed: %v", err)
	}

	song, err := db.GetSong("t1")
	if err != nil {
		t.Fatalf("GetSong failed: %v", err)
	}
	if song.Artist != "Original Artist" {
		t.Errorf("artist overwritten without force: %q", song.Artist)
	}
	// The category link is still added.
	if len(song.Categories) != 1 {
		t.Errorf("category link missing: %+v", song.Categories)
	}

	if _, err := p.ImportPlaylists(true); err != nil {
		t.Fatalf("forced import failed: %v", err)
	}
	song, _ = db.GetSong("t1")
	if song.Artist != "Indochine" {
		t.Errorf("artist not updated with force: %q", song.Artist)
	}
}

func TestFetchLyrics(t *testing.T) {
	db := setupDB(t)
	if err := db.UpsertSong(&storage.Song{ID: "t1", Artist: "Indochine", Title: "L'aventurier"}); err != nil {
		t.Fatalf("seeding song: %v", err)
	}

	source := &fakeSource{transcript: testTranscript()}
	p := New(db, setupPlaylists(t), WithLyricsSource(source), WithLogger(nopLogger{}))

	if err := p.FetchLyrics(context.Background(), "t1"); err != nil {
		t.Fatalf("FetchLyrics failed: %v", err)
	}
	stored, err := db.GetLyrics("t1")
	if err != nil {
		t.Fatalf("lyrics not stored: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored %d lines, want 2", len(stored))
	}

	// A second call skips the provider.
	if err := p.FetchLyrics(context.Background(), "t1"); err != nil {
		t.Fatalf("second FetchLyrics failed: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("provider called %d times, want 1", source.calls)
	}
}

func TestFetchLyricsUnknownSong(t *testing.T) {
	p := New(setupDB(t), setupPlaylists(t), WithLyricsSource(&fakeSource{}), WithLogger(nopLogger{}))
	if err := p.FetchLyrics(context.Background(), "ghost"); !errors.Is(err, storage.ErrSongNotFound) {
		t.Fatalf("expected ErrSongNotFound, got %v", err)
	}
}

func TestFetchAllLyrics(t *testing.T) {
	db := setupDB(t)
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := db.UpsertSong(&storage.Song{ID: id, Artist: "a", Title: id}); err != nil {
			t.Fatalf("seeding song: %v", err)
		}
	}
	if err := db.PutLyrics("t3", testTranscript()); err != nil {
		t.Fatalf("seeding lyrics: %v", err)
	}

	source := &fakeSource{transcript: testTranscript()}
	p := New(db, setupPlaylists(t), WithLyricsSource(source), WithLogger(nopLogger{}))

	fetched, failed, err := p.FetchAllLyrics(context.Background())
	if err != nil {
		t.Fatalf("FetchAllLyrics failed: %v", err)
	}
	if fetched != 2 || failed != 0 {
		t.Errorf("fetched %d failed %d, want 2 and 0", fetched, failed)
	}
}

func TestSearchAndAddSong(t *testing.T) {
	db := setupDB(t)
	cat, err := db.CreateCategory("Années 80")
	if err != nil {
		t.Fatalf("creating category: %v", err)
	}

	var track spotify.Track
	trackJSON := `{"id":"t9","name":"L'aventurier","album":{"release_date":"1982-10-15"},"artists":[{"name":"Indochine"}]}`
	if err := json.Unmarshal([]byte(trackJSON), &track); err != nil {
		t.Fatalf("decoding track fixture: %v", err)
	}

	p := New(db, setupPlaylists(t),
		WithSearcher(&fakeSearcher{track: &track}),
		WithLyricsSource(&fakeSource{transcript: testTranscript()}),
		WithLogger(nopLogger{}))

	song, existed, err := p.SearchAndAddSong(context.Background(), "L'aventurier", "Indochine", []string{cat.ID}, "")
	if err != nil {
		t.Fatalf("SearchAndAddSong failed: %v", err)
	}
	if existed {
		t.Error("new song reported as existing")
	}
	if song.ID != "t9" || song.ReleaseYear != 1982 {
		t.Errorf("unexpected song: %+v", song)
	}
	if len(song.Categories) != 1 {
		t.Errorf("category not linked: %+v", song.Categories)
	}
	if len(song.Lyrics) != 2 {
		t.Errorf("lyrics not stored: %d lines", len(song.Lyrics))
	}

	_, existed, err = p.SearchAndAddSong(context.Background(), "L'aventurier", "Indochine", nil, "")
	if err != nil {
		t.Fatalf("second SearchAndAddSong failed: %v", err)
	}
	if !existed {
		t.Error("existing song reported as new")
	}
}

func TestSearchAndAddSongNoLyrics(t *testing.T) {
	track := &spotify.Track{ID: "t9", Name: "x"}
	p := New(setupDB(t), setupPlaylists(t),
		WithSearcher(&fakeSearcher{track: track}),
		WithLyricsSource(&fakeSource{err: errors.New("not found")}),
		WithLogger(nopLogger{}))

	if _, _, err := p.SearchAndAddSong(context.Background(), "x", "y", nil, ""); !errors.Is(err, ErrTrackNotUsable) {
		t.Fatalf("expected ErrTrackNotUsable, got %v", err)
	}
}

func TestGenerateRandomPlaylist(t *testing.T) {
	db := setupDB(t)
	for _, name := range []string{"Années 80", "Rock", "Disco"} {
		cat, err := db.CreateCategory(name)
		if err != nil {
			t.Fatalf("creating category: %v", err)
		}
		for j := 0; j < 2; j++ {
			id := name + "-" + string(rune('a'+j))
			if err := db.UpsertSong(&storage.Song{ID: id, Artist: "a", Title: id}); err != nil {
				t.Fatalf("seeding song: %v", err)
			}
			if _, err := db.AddSongsToCategory(cat.ID, []string{id}); err != nil {
				t.Fatalf("linking song: %v", err)
			}
		}
	}

	p := New(db, setupPlaylists(t), WithLogger(nopLogger{}))
	pl, err := p.GenerateRandomPlaylist(2, 2)
	if err != nil {
		t.Fatalf("GenerateRandomPlaylist failed: %v", err)
	}
	if len(pl.Categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(pl.Categories))
	}
	if len(pl.Songs) != 4 {
		t.Errorf("got %d songs, want 4", len(pl.Songs))
	}
	if pl.Categories[0].Difficulty != 10 || pl.Categories[0].ExpectedWords != 2 {
		t.Errorf("first category level = %+v", pl.Categories[0])
	}
	if pl.Categories[1].Difficulty != 20 || pl.Categories[1].ExpectedWords != 3 {
		t.Errorf("second category level = %+v", pl.Categories[1])
	}
	for _, song := range pl.Songs {
		if song.ExpectedWords == 0 || song.Category == "" {
			t.Errorf("song missing playlist fields: %+v", song)
		}
	}
}
