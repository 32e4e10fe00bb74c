// Package playlist manages the JSON playlist files the game screens are
// driven by: a named set of categories, each with a difficulty and an
// expected word count, and the songs assigned to them.
package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultName is the playlist served when the requested one does not exist.
const DefaultName = "playlist"

var (
	ErrNoName       = errors.New("playlist: name is required")
	ErrNoCategories = errors.New("playlist: must have categories")
	ErrNoSongs      = errors.New("playlist: must have songs")
)

// Category is a playlist round: its songs share a difficulty and a target
// word count.
type Category struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Difficulty    int    `json:"difficulty,omitempty"`
	ExpectedWords int    `json:"expected_words,omitempty"`
}

// Song is a playlist entry. ExpectedWords is filled from the owning
// category when the playlist is loaded, never stored.
type Song struct {
	ID            string `json:"id"`
	TrackID       string `json:"track_id,omitempty"`
	Category      string `json:"category"`
	Artist        string `json:"artist"`
	Title         string `json:"title"`
	ReleaseYear   int    `json:"release_year,omitempty"`
	ExpectedWords int    `json:"expected_words,omitempty"`
}

type Playlist struct {
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
	Songs      []Song     `json:"songs"`
}

// Info is a playlist directory listing entry.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Store reads and writes playlist files under a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

var displayCaser = cases.Title(language.French)

// List returns every stored playlist plus the two synthetic random entries
// the client can always pick.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		infos = append(infos, Info{
			ID:   id,
			Name: displayCaser.String(strings.ReplaceAll(id, "_", " ")),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	infos = append(infos,
		Info{ID: "random", Name: "Random Playlist"},
		Info{ID: "random2", Name: "Another random Playlist"},
	)
	return infos, nil
}

// Load reads a playlist by id, falling back to the default playlist when
// the id has no file. Each song gets the expected word count of its
// category attached.
func (s *Store) Load(name string) (*Playlist, error) {
	path := filepath.Join(s.dir, name+".json")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = filepath.Join(s.dir, DefaultName+".json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playlist %s: %w", name, err)
	}

	var p Playlist
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding playlist %s: %w", name, err)
	}

	for _, cat := range p.Categories {
		for i := range p.Songs {
			if p.Songs[i].Category == cat.ID {
				p.Songs[i].ExpectedWords = cat.ExpectedWords
			}
		}
	}
	return &p, nil
}

// Save validates and writes the playlist, returning the file id derived
// from its name.
func (s *Store) Save(p *Playlist) (string, error) {
	if p == nil || p.Name == "" {
		return "", ErrNoName
	}
	if len(p.Categories) == 0 {
		return "", ErrNoCategories
	}
	if len(p.Songs) == 0 {
		return "", ErrNoSongs
	}

	// ExpectedWords on songs is derived at load time, keep files clean.
	stored := *p
	stored.Songs = make([]Song, len(p.Songs))
	for i, song := range p.Songs {
		song.ExpectedWords = 0
		stored.Songs[i] = song
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating playlist directory: %w", err)
	}

	id := strings.ToLower(strings.ReplaceAll(p.Name, " ", "_"))
	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding playlist: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, id+".json"), data, 0o644); err != nil {
		return "", fmt.Errorf("writing playlist: %w", err)
	}
	return id, nil
}

// IsRandom reports whether the id names one of the synthetic random
// playlists, which are generated from the database instead of loaded.
func IsRandom(name string) bool {
	return name == "random" || name == "random2"
}
