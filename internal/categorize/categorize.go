// Package categorize assigns songs to predefined categories by matching
// artist and title against per-category pattern lists, and imports whole
// song lists from CSV with those assignments.
package categorize

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noplp/karaoke-backend/internal/spotify"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
)

// maxCategoriesPerSong bounds how many categories one song is assigned to.
const maxCategoriesPerSong = 5

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// TrackSearcher resolves a song to its provider track id.
type TrackSearcher interface {
	Search(ctx context.Context, trackName, artist string) (*spotify.Track, error)
}

// Match is one category a song qualifies for.
type Match struct {
	Name       string
	Type       string
	Pattern    string
	Confidence float64
}

// stripMarks removes combining marks so accented and plain spellings match.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics for pattern matching.
func fold(s string) string {
	lowered := strings.ToLower(s)
	out, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		return lowered
	}
	return out
}

// MatchCategories returns the categories whose patterns match the song,
// sorted by confidence. Matching ignores case and diacritics; songs
// matching nothing get the fallback.
func MatchCategories(artist, title string) []Match {
	artistFold := fold(artist)
	titleFold := fold(title)
	combined := artistFold + " " + titleFold

	var matches []Match
	for _, def := range definitions {
		for _, pattern := range def.Patterns {
			p := fold(pattern)
			if strings.Contains(artistFold, p) || strings.Contains(titleFold, p) ||
				strings.Contains(combined, p) {
				matches = append(matches, Match{
					Name:       def.Name,
					Type:       def.Type,
					Pattern:    pattern,
					Confidence: confidence(p, combined),
				})
				break
			}
		}
	}

	if len(matches) == 0 {
		return []Match{{
			Name:       Fallback.Name,
			Type:       Fallback.Type,
			Pattern:    "fallback",
			Confidence: 1.0,
		}}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// confidence scores a pattern hit by how much of the text it covers and how
// often it occurs, capped at three occurrences.
func confidence(pattern, text string) float64 {
	textLen := len(text)
	if textLen == 0 {
		textLen = 1
	}
	occurrences := strings.Count(text, pattern)
	if occurrences > 3 {
		occurrences = 3
	}
	coverage := float64(len(pattern)) / float64(textLen)
	return coverage * (0.5 + 0.5*float64(occurrences)/3)
}

// SelectDiverse trims a match list to at most maxCategoriesPerSong entries,
// preferring one match per category type before filling up by confidence.
func SelectDiverse(matches []Match) []Match {
	if len(matches) <= maxCategoriesPerSong {
		return matches
	}

	selected := make([]Match, 0, maxCategoriesPerSong)
	taken := make(map[int]bool, len(matches))
	typesSeen := make(map[string]bool)

	for i, m := range matches {
		if len(selected) == maxCategoriesPerSong {
			break
		}
		if !typesSeen[m.Type] {
			selected = append(selected, m)
			taken[i] = true
			typesSeen[m.Type] = true
		}
	}
	for i, m := range matches {
		if len(selected) == maxCategoriesPerSong {
			break
		}
		if !taken[i] {
			selected = append(selected, m)
			taken[i] = true
		}
	}
	return selected
}

// Categorizer imports songs with category assignments into the database.
type Categorizer struct {
	db     *storage.DBClient
	search TrackSearcher
	log    Logger
}

func New(db *storage.DBClient, search TrackSearcher, log Logger) *Categorizer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Categorizer{db: db, search: search, log: log}
}

// EnsureCategories creates every predefined category plus the fallback,
// matching by name so repeated runs reuse existing rows. It returns the
// categories keyed by name.
func (c *Categorizer) EnsureCategories() (map[string]*storage.Category, error) {
	byName := make(map[string]*storage.Category, len(definitions)+1)

	ensure := func(name string) error {
		existing, err := c.db.FindCategoryByName(name)
		if err == nil {
			byName[name] = existing
			return nil
		}
		if !errors.Is(err, storage.ErrCategoryNotFound) {
			return err
		}
		created, err := c.db.CreateCategory(name)
		if err != nil {
			return err
		}
		c.log.Infof("Created category %q", name)
		byName[name] = created
		return nil
	}

	for _, def := range definitions {
		if err := ensure(def.Name); err != nil {
			return nil, err
		}
	}
	if err := ensure(Fallback.Name); err != nil {
		return nil, err
	}
	return byName, nil
}

// SongEntry is one row of a song list: just the artist and the title.
type SongEntry struct {
	Artist string
	Title  string
}

// ReadSongList parses a CSV of artist,title rows. Malformed rows are
// skipped.
func ReadSongList(path string) ([]SongEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening song list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var songs []SongEntry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading song list: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		artist := strings.TrimSpace(strings.Trim(row[0], `"`))
		title := strings.TrimSpace(strings.Trim(row[1], `"`))
		if artist == "" || title == "" {
			continue
		}
		songs = append(songs, SongEntry{Artist: artist, Title: title})
	}
	return songs, nil
}

// ProcessSongs resolves each entry on the provider, stores the song and
// links it to its matched categories. It returns how many songs were
// stored; per-song failures are logged and skipped.
func (c *Categorizer) ProcessSongs(ctx context.Context, songs []SongEntry) (int, error) {
	categories, err := c.EnsureCategories()
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, entry := range songs {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if err := c.processSong(ctx, entry, categories); err != nil {
			c.log.Warnf("Skipping %s by %s: %v", entry.Title, entry.Artist, err)
			continue
		}
		stored++
	}
	c.log.Infof("Categorized %d of %d songs", stored, len(songs))
	return stored, nil
}

func (c *Categorizer) processSong(ctx context.Context, entry SongEntry, categories map[string]*storage.Category) error {
	track, err := c.search.Search(ctx, entry.Title, entry.Artist)
	if err != nil {
		return fmt.Errorf("resolving track: %w", err)
	}

	song := &storage.Song{
		ID:          track.ID,
		Artist:      entry.Artist,
		Title:       entry.Title,
		ReleaseYear: releaseYear(track),
	}
	if err := c.db.UpsertSong(song); err != nil {
		return err
	}

	selected := SelectDiverse(MatchCategories(entry.Artist, entry.Title))
	ids := make([]string, 0, len(selected))
	for _, m := range selected {
		if cat, ok := categories[m.Name]; ok {
			ids = append(ids, cat.ID)
		}
	}
	if _, err := c.db.AddCategoriesToSong(track.ID, ids); err != nil {
		return err
	}
	return nil
}

func releaseYear(track *spotify.Track) int {
	if len(track.Album.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(track.Album.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}
