package populate

import (
	"github.com/noplp/karaoke-backend/internal/playlist"
)

// difficultyLevels maps a category's position in a random playlist to its
// game difficulty and word target. Positions past the table reuse the
// easiest level.
var difficultyLevels = []struct {
	difficulty    int
	expectedWords int
}{
	{10, 2},
	{20, 3},
	{30, 4},
	{40, 5},
	{50, 6},
}

// GenerateRandomPlaylist builds a playlist from random database categories,
// each filled with random songs and a difficulty rising by position.
func (p *Populator) GenerateRandomPlaylist(numCategories, songsPerCategory int) (*playlist.Playlist, error) {
	categories, err := p.db.RandomCategories(numCategories)
	if err != nil {
		return nil, err
	}
	if len(categories) < numCategories {
		p.log.Warnf("Only %d categories available, wanted %d", len(categories), numCategories)
	}

	pl := &playlist.Playlist{
		Name:       "Random Playlist",
		Categories: []playlist.Category{},
		Songs:      []playlist.Song{},
	}

	for i, cat := range categories {
		level := difficultyLevels[0]
		if i < len(difficultyLevels) {
			level = difficultyLevels[i]
		}

		pl.Categories = append(pl.Categories, playlist.Category{
			ID:            cat.ID,
			Name:          cat.Name,
			Difficulty:    level.difficulty,
			ExpectedWords: level.expectedWords,
		})

		songs, err := p.db.RandomSongsInCategory(cat.ID, songsPerCategory)
		if err != nil {
			return nil, err
		}
		if len(songs) < songsPerCategory {
			p.log.Warnf("Category %s has only %d songs, wanted %d", cat.Name, len(songs), songsPerCategory)
		}

		for _, song := range songs {
			pl.Songs = append(pl.Songs, playlist.Song{
				ID:            song.ID,
				Category:      cat.ID,
				Artist:        song.Artist,
				Title:         song.Title,
				ReleaseYear:   song.ReleaseYear,
				ExpectedWords: level.expectedWords,
			})
		}
	}
	return pl, nil
}
