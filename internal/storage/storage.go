// Package storage is the relational layer of the karaoke backend: songs,
// categories, their many-to-many association, and the lyric transcripts
// stored alongside each song.
package storage

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/noplp/karaoke-backend/internal/lyrics"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const DefaultDBFile = "karaoke.sqlite3"

var (
	ErrSongNotFound     = errors.New("storage: song not found")
	ErrCategoryNotFound = errors.New("storage: category not found")
	ErrLyricsNotFound   = errors.New("storage: song has no lyrics")
)

// LyricsJSON stores a transcript as a JSON array of {startTimeMs, words}
// in a TEXT column.
type LyricsJSON lyrics.Transcript

func (l LyricsJSON) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *LyricsJSON) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported lyrics column type %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Song is keyed by the provider track ID, the same identifier the lyrics
// endpoints use.
type Song struct {
	ID          string     `gorm:"primaryKey;type:varchar(255)" json:"id"`
	Artist      string     `gorm:"not null;index:idx_song_artist" json:"artist"`
	Title       string     `gorm:"not null" json:"title"`
	ReleaseYear int        `json:"release_year,omitempty"`
	Lyrics      LyricsJSON `gorm:"type:text" json:"lyrics,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
	Categories  []Category `gorm:"many2many:song_categories" json:"categories,omitempty"`
}

type Category struct {
	ID        string    `gorm:"primaryKey;type:varchar(255)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	Songs     []Song    `gorm:"many2many:song_categories" json:"songs,omitempty"`
}

// DBClient wraps the gorm handle plus the underlying sql.DB for pool
// management and shutdown.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("KARAOKE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &Category{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// GetSong returns a song with its categories preloaded.
func (c *DBClient) GetSong(id string) (*Song, error) {
	var song Song
	err := c.DB.Preload("Categories").First(&song, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song %s: %w", id, err)
	}
	return &song, nil
}

// ListSongs returns every song ordered by title. Categories are preloaded
// when withCategories is set.
func (c *DBClient) ListSongs(withCategories bool) ([]Song, error) {
	q := c.DB.Order("title")
	if withCategories {
		q = q.Preload("Categories")
	}
	var songs []Song
	if err := q.Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return songs, nil
}

// ListSongsByCategory returns the songs associated with a category.
func (c *DBClient) ListSongsByCategory(categoryID string) ([]Song, error) {
	category, err := c.GetCategory(categoryID, true)
	if err != nil {
		return nil, err
	}
	return category.Songs, nil
}

// UpsertSong creates the song or updates its metadata, keeping existing
// lyrics and category associations when the incoming song has none.
func (c *DBClient) UpsertSong(song *Song) error {
	var existing Song
	err := c.DB.First(&existing, "id = ?", song.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := c.DB.Create(song).Error; err != nil {
			return fmt.Errorf("creating song %s: %w", song.ID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying song %s: %w", song.ID, err)
	}

	updates := map[string]any{"artist": song.Artist, "title": song.Title}
	if song.ReleaseYear != 0 {
		updates["release_year"] = song.ReleaseYear
	}
	if err := c.DB.Model(&existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("updating song %s: %w", song.ID, err)
	}
	if song.Lyrics != nil && existing.Lyrics == nil {
		if err := c.DB.Model(&existing).Update("lyrics", song.Lyrics).Error; err != nil {
			return fmt.Errorf("updating lyrics for %s: %w", song.ID, err)
		}
	}
	return nil
}

// DeleteSong removes a song; its categories survive.
func (c *DBClient) DeleteSong(id string) error {
	song, err := c.GetSong(id)
	if err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(song).Association("Categories").Clear(); err != nil {
			return fmt.Errorf("clearing associations: %w", err)
		}
		if err := tx.Delete(song).Error; err != nil {
			return fmt.Errorf("deleting song %s: %w", id, err)
		}
		return nil
	})
}

// CreateCategory inserts a category under a fresh UUID.
func (c *DBClient) CreateCategory(name string) (*Category, error) {
	category := Category{ID: uuid.NewString(), Name: name}
	if err := c.DB.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("creating category %q: %w", name, err)
	}
	return &category, nil
}

// EnsureCategory returns the category with the given id, creating it with
// the provided name when missing. Playlist imports carry their own ids.
func (c *DBClient) EnsureCategory(id, name string) (*Category, error) {
	var category Category
	err := c.DB.First(&category, "id = ?", id).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("querying category %s: %w", id, err)
	}
	category = Category{ID: id, Name: name}
	if err := c.DB.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("creating category %s: %w", id, err)
	}
	return &category, nil
}

func (c *DBClient) GetCategory(id string, withSongs bool) (*Category, error) {
	q := c.DB
	if withSongs {
		q = q.Preload("Songs")
	}
	var category Category
	err := q.First(&category, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying category %s: %w", id, err)
	}
	return &category, nil
}

// FindCategoryByName returns the category with the exact name.
func (c *DBClient) FindCategoryByName(name string) (*Category, error) {
	var category Category
	err := c.DB.First(&category, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying category %q: %w", name, err)
	}
	return &category, nil
}

func (c *DBClient) ListCategories(withSongs bool) ([]Category, error) {
	q := c.DB.Order("name")
	if withSongs {
		q = q.Preload("Songs")
	}
	var categories []Category
	if err := q.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

func (c *DBClient) RenameCategory(id, name string) (*Category, error) {
	category, err := c.GetCategory(id, false)
	if err != nil {
		return nil, err
	}
	if err := c.DB.Model(category).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("renaming category %s: %w", id, err)
	}
	return category, nil
}

// DeleteCategory removes a category; its songs survive.
func (c *DBClient) DeleteCategory(id string) error {
	category, err := c.GetCategory(id, false)
	if err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(category).Association("Songs").Clear(); err != nil {
			return fmt.Errorf("clearing associations: %w", err)
		}
		if err := tx.Delete(category).Error; err != nil {
			return fmt.Errorf("deleting category %s: %w", id, err)
		}
		return nil
	})
}

// AddSongsToCategory associates the given songs with the category, skipping
// unknown IDs and existing associations. It returns the songs actually added.
func (c *DBClient) AddSongsToCategory(categoryID string, songIDs []string) ([]Song, error) {
	category, err := c.GetCategory(categoryID, true)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(category.Songs))
	for _, s := range category.Songs {
		present[s.ID] = true
	}

	var added []Song
	for _, id := range songIDs {
		if present[id] {
			continue
		}
		var song Song
		if err := c.DB.First(&song, "id = ?", id).Error; err != nil {
			continue
		}
		if err := c.DB.Model(category).Association("Songs").Append(&song); err != nil {
			return added, fmt.Errorf("associating song %s: %w", id, err)
		}
		present[id] = true
		added = append(added, song)
	}
	return added, nil
}

// RemoveSongsFromCategory drops the association for each given song and
// returns the songs actually removed.
func (c *DBClient) RemoveSongsFromCategory(categoryID string, songIDs []string) ([]Song, error) {
	category, err := c.GetCategory(categoryID, true)
	if err != nil {
		return nil, err
	}

	present := make(map[string]Song, len(category.Songs))
	for _, s := range category.Songs {
		present[s.ID] = s
	}

	var removed []Song
	for _, id := range songIDs {
		song, ok := present[id]
		if !ok {
			continue
		}
		if err := c.DB.Model(category).Association("Songs").Delete(&song); err != nil {
			return removed, fmt.Errorf("removing song %s: %w", id, err)
		}
		removed = append(removed, song)
	}
	return removed, nil
}

// AddCategoriesToSong associates the given categories with the song and
// returns the categories actually added.
func (c *DBClient) AddCategoriesToSong(songID string, categoryIDs []string) ([]Category, error) {
	song, err := c.GetSong(songID)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(song.Categories))
	for _, cat := range song.Categories {
		present[cat.ID] = true
	}

	var added []Category
	for _, id := range categoryIDs {
		if present[id] {
			continue
		}
		var category Category
		if err := c.DB.First(&category, "id = ?", id).Error; err != nil {
			continue
		}
		if err := c.DB.Model(song).Association("Categories").Append(&category); err != nil {
			return added, fmt.Errorf("associating category %s: %w", id, err)
		}
		present[id] = true
		added = append(added, category)
	}
	return added, nil
}

// RemoveSongFromCategory drops one song/category association. It reports
// whether the association existed.
func (c *DBClient) RemoveSongFromCategory(songID, categoryID string) (bool, error) {
	song, err := c.GetSong(songID)
	if err != nil {
		return false, err
	}
	category, err := c.GetCategory(categoryID, false)
	if err != nil {
		return false, err
	}

	linked := false
	for _, cat := range song.Categories {
		if cat.ID == categoryID {
			linked = true
			break
		}
	}
	if !linked {
		return false, nil
	}

	if err := c.DB.Model(song).Association("Categories").Delete(category); err != nil {
		return false, fmt.Errorf("removing association: %w", err)
	}
	return true, nil
}

// GetLyrics returns the stored transcript for a track. ErrLyricsNotFound
// distinguishes a known song without lyrics from an unknown song.
func (c *DBClient) GetLyrics(trackID string) (lyrics.Transcript, error) {
	song, err := c.GetSong(trackID)
	if err != nil {
		return nil, err
	}
	if len(song.Lyrics) == 0 {
		return nil, ErrLyricsNotFound
	}
	return lyrics.Transcript(song.Lyrics), nil
}

// PutLyrics replaces the stored transcript for a track.
func (c *DBClient) PutLyrics(trackID string, transcript lyrics.Transcript) error {
	song, err := c.GetSong(trackID)
	if err != nil {
		return err
	}
	if err := c.DB.Model(song).Update("lyrics", LyricsJSON(transcript)).Error; err != nil {
		return fmt.Errorf("storing lyrics for %s: %w", trackID, err)
	}
	return nil
}

// RandomCategories returns up to limit categories in random order.
func (c *DBClient) RandomCategories(limit int) ([]Category, error) {
	var categories []Category
	if err := c.DB.Order("RANDOM()").Limit(limit).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("picking random categories: %w", err)
	}
	return categories, nil
}

// RandomSongsInCategory returns up to limit songs of a category in random
// order.
func (c *DBClient) RandomSongsInCategory(categoryID string, limit int) ([]Song, error) {
	var songs []Song
	err := c.DB.
		Joins("JOIN song_categories sc ON sc.song_id = songs.id").
		Where("sc.category_id = ?", categoryID).
		Order("RANDOM()").
		Limit(limit).
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("picking random songs for %s: %w", categoryID, err)
	}
	return songs, nil
}

func (c *DBClient) CountSongs() (int64, error) {
	var n int64
	if err := c.DB.Model(&Song{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return n, nil
}

func (c *DBClient) CountCategories() (int64, error) {
	var n int64
	if err := c.DB.Model(&Category{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	return n, nil
}
