// Package backup writes and restores catalog snapshots: the full song and
// category tables, including lyrics and associations, as gzip-compressed
// JSON files in a backup directory.
package backup

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
)

const (
	DefaultDir = "backups"

	filePrefix = "karaoke_backup_"
	fileSuffix = ".json.gz"

	timestampLayout = "20060102_150405"
)

var ErrBackupNotFound = errors.New("backup: file not found")

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Snapshot is the on-disk format. Songs carry their category ids so the
// associations survive the round trip.
type Snapshot struct {
	CreatedAt  time.Time     `json:"created_at"`
	Categories []categoryRow `json:"categories"`
	Songs      []songRow     `json:"songs"`
}

type categoryRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type songRow struct {
	ID          string            `json:"id"`
	Artist      string            `json:"artist"`
	Title       string            `json:"title"`
	ReleaseYear int               `json:"release_year,omitempty"`
	Lyrics      lyrics.Transcript `json:"lyrics,omitempty"`
	Categories  []string          `json:"categories,omitempty"`
}

// Info describes one stored backup file.
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type Tool struct {
	db  *storage.DBClient
	dir string
	log Logger
}

func New(db *storage.DBClient, dir string, log Logger) *Tool {
	if dir == "" {
		dir = DefaultDir
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Tool{db: db, dir: dir, log: log}
}

// Create dumps the catalog into a new timestamped backup file and returns
// its name.
func (t *Tool) Create() (string, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	snap, err := t.snapshot()
	if err != nil {
		return "", err
	}

	name := filePrefix + snap.CreatedAt.Format(timestampLayout) + fileSuffix
	path := filepath.Join(t.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return "", fmt.Errorf("encoding backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing backup: %w", err)
	}

	t.log.Infof("Backup completed: %s (%d songs, %d categories)",
		name, len(snap.Songs), len(snap.Categories))
	return name, nil
}

func (t *Tool) snapshot() (*Snapshot, error) {
	categories, err := t.db.ListCategories(false)
	if err != nil {
		return nil, err
	}
	songs, err := t.db.ListSongs(true)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{CreatedAt: time.Now().UTC()}
	for _, cat := range categories {
		snap.Categories = append(snap.Categories, categoryRow{ID: cat.ID, Name: cat.Name})
	}
	for _, song := range songs {
		row := songRow{
			ID:          song.ID,
			Artist:      song.Artist,
			Title:       song.Title,
			ReleaseYear: song.ReleaseYear,
			Lyrics:      lyrics.Transcript(song.Lyrics),
		}
		for _, cat := range song.Categories {
			row.Categories = append(row.Categories, cat.ID)
		}
		snap.Songs = append(snap.Songs, row)
	}
	return snap, nil
}

// Restore loads a backup file back into the database. Existing rows are
// kept unless overwrite is set; associations are always re-added.
func (t *Tool) Restore(name string, overwrite bool) error {
	snap, err := t.read(name)
	if err != nil {
		return err
	}

	for _, cat := range snap.Categories {
		existing, err := t.db.EnsureCategory(cat.ID, cat.Name)
		if err != nil {
			return err
		}
		if overwrite && existing.Name != cat.Name {
			if _, err := t.db.RenameCategory(cat.ID, cat.Name); err != nil {
				return err
			}
		}
	}

	for _, row := range snap.Songs {
		_, err := t.db.GetSong(row.ID)
		missing := errors.Is(err, storage.ErrSongNotFound)
		if err != nil && !missing {
			return err
		}

		if missing || overwrite {
			song := &storage.Song{
				ID:          row.ID,
				Artist:      row.Artist,
				Title:       row.Title,
				ReleaseYear: row.ReleaseYear,
				Lyrics:      storage.LyricsJSON(row.Lyrics),
			}
			if err := t.db.UpsertSong(song); err != nil {
				return err
			}
			if overwrite && len(row.Lyrics) > 0 {
				if err := t.db.PutLyrics(row.ID, row.Lyrics); err != nil {
					return err
				}
			}
		}

		if len(row.Categories) > 0 {
			if _, err := t.db.AddCategoriesToSong(row.ID, row.Categories); err != nil {
				return err
			}
		}
	}

	t.log.Infof("Restore completed from %s (%d songs, %d categories)",
		name, len(snap.Songs), len(snap.Categories))
	return nil
}

func (t *Tool) read(name string) (*Snapshot, error) {
	// Backups are addressed by bare file name, never by path.
	if name != filepath.Base(name) {
		return nil, ErrBackupNotFound
	}

	f, err := os.Open(filepath.Join(t.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding backup: %w", err)
	}
	return &snap, nil
}

// List returns the stored backups, newest first.
func (t *Tool) List() ([]Info, error) {
	entries, err := os.ReadDir(t.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:      e.Name(),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name > infos[j].Name })
	return infos, nil
}
