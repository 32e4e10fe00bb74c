package backup

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/storage"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func setupDB(t *testing.T) *storage.DBClient {
	t.Helper()
	db, err := storage.NewDBClientWithPath(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCatalog(t *testing.T, db *storage.DBClient) {
	t.Helper()
	cat, err := db.CreateCategory("Années 80")
	if err != nil {
		t.Fatalf("creating category: %v", err)
	}
	song := &storage.Song{
		ID:          "t1",
		Artist:      "Indochine",
		Title:       "L'aventurier",
		ReleaseYear: 1982,
		Lyrics: storage.LyricsJSON{
			{StartTimeMs: 21480, Words: "Égaré dans la vallée infernale"},
		},
	}
	if err := db.UpsertSong(song); err != nil {
		t.Fatalf("seeding song: %v", err)
	}
	if _, err := db.AddSongsToCategory(cat.ID, []string{"t1"}); err != nil {
		t.Fatalf("linking song: %v", err)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	src := setupDB(t)
	seedCatalog(t, src)

	dir := t.TempDir()
	name, err := New(src, dir, nopLogger{}).Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dst := setupDB(t)
	if err := New(dst, dir, nopLogger{}).Restore(name, false); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	song, err := dst.GetSong("t1")
	if err != nil {
		t.Fatalf("restored song missing: %v", err)
	}
	if song.Artist != "Indochine" || song.ReleaseYear != 1982 {
		t.Errorf("unexpected song: %+v", song)
	}
	if len(song.Categories) != 1 || song.Categories[0].Name != "Années 80" {
		t.Errorf("associations not restored: %+v", song.Categories)
	}

	transcript, err := dst.GetLyrics("t1")
	if err != nil {
		t.Fatalf("lyrics not restored: %v", err)
	}
	if transcript[0].StartTimeMs != 21480 {
		t.Errorf("unexpected transcript: %+v", transcript)
	}
}

func TestRestorePreservesExistingWithoutOverwrite(t *testing.T) {
	src := setupDB(t)
	seedCatalog(t, src)

	dir := t.TempDir()
	name, err := New(src, dir, nopLogger{}).Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dst := setupDB(t)
	local := &storage.Song{ID: "t1", Artist: "Local Artist", Title: "Local Title"}
	if err := dst.UpsertSong(local); err != nil {
		t.Fatalf("seeding song: %v", err)
	}

	tool := New(dst, dir, nopLogger{})
	if err := tool.Restore(name, false); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	song, _ := dst.GetSong("t1")
	if song.Artist != "Local Artist" {
		t.Errorf("local row overwritten without the flag: %q", song.Artist)
	}

	if err := tool.Restore(name, true); err != nil {
		t.Fatalf("overwrite Restore failed: %v", err)
	}
	song, _ = dst.GetSong("t1")
	if song.Artist != "Indochine" {
		t.Errorf("overwrite did not apply: %q", song.Artist)
	}
	if transcript, err := dst.GetLyrics("t1"); err != nil || len(transcript) != 1 {
		t.Errorf("lyrics not restored on overwrite: %v", err)
	}
}

func TestRestoreOverwriteReplacesLyrics(t *testing.T) {
	src := setupDB(t)
	seedCatalog(t, src)

	dir := t.TempDir()
	name, err := New(src, dir, nopLogger{}).Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dst := setupDB(t)
	if err := dst.UpsertSong(&storage.Song{ID: "t1", Artist: "a", Title: "b"}); err != nil {
		t.Fatalf("seeding song: %v", err)
	}
	stale := lyrics.Transcript{{StartTimeMs: 1, Words: "stale"}}
	if err := dst.PutLyrics("t1", stale); err != nil {
		t.Fatalf("seeding lyrics: %v", err)
	}

	if err := New(dst, dir, nopLogger{}).Restore(name, true); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	transcript, err := dst.GetLyrics("t1")
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if transcript[0].Words != "Égaré dans la vallée infernale" {
		t.Errorf("stale lyrics kept: %+v", transcript)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := setupDB(t)
	dir := t.TempDir()
	tool := New(db, dir, nopLogger{})

	infos, err := tool.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected no backups, got %+v", infos)
	}

	if _, err := tool.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	infos, err = tool.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d backups, want 1", len(infos))
	}
	if infos[0].Size == 0 {
		t.Error("backup file is empty")
	}
}

func TestRestoreRejectsPathTraversal(t *testing.T) {
	tool := New(setupDB(t), t.TempDir(), nopLogger{})
	if err := tool.Restore("../etc/passwd", false); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestRestoreMissingFile(t *testing.T) {
	tool := New(setupDB(t), t.TempDir(), nopLogger{})
	if err := tool.Restore("karaoke_backup_19700101_000000.json.gz", false); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}
