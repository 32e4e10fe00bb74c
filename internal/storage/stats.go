package storage

import (
	"fmt"
	"sort"
)

type CategoryStat struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SongCount int    `json:"song_count"`
}

type ArtistStat struct {
	Artist    string `json:"artist"`
	SongCount int    `json:"song_count"`
}

// Stats is the shape of the database stats endpoint.
type Stats struct {
	TotalSongs                   int64          `json:"totalSongs"`
	TotalCategories              int64          `json:"totalCategories"`
	TotalArtists                 int            `json:"totalArtists"`
	SongsWithoutCategories       int64          `json:"songsWithoutCategories"`
	SongsWithOneOrLessCategories int64          `json:"songsWithOneOrLessCategories"`
	Categories                   []CategoryStat `json:"categories"`
	Artists                      []ArtistStat   `json:"artists"`
}

// Stats aggregates song, category and artist counts for the editor
// dashboard.
func (c *DBClient) Stats() (*Stats, error) {
	stats := &Stats{}

	var err error
	if stats.TotalSongs, err = c.CountSongs(); err != nil {
		return nil, err
	}
	if stats.TotalCategories, err = c.CountCategories(); err != nil {
		return nil, err
	}

	categories, err := c.ListCategories(true)
	if err != nil {
		return nil, err
	}
	for _, cat := range categories {
		stats.Categories = append(stats.Categories, CategoryStat{
			ID:        cat.ID,
			Name:      cat.Name,
			SongCount: len(cat.Songs),
		})
	}
	sort.SliceStable(stats.Categories, func(i, j int) bool {
		return stats.Categories[i].SongCount > stats.Categories[j].SongCount
	})

	if err := c.DB.Model(&Song{}).
		Select("artist, count(id) as song_count").
		Group("artist").
		Order("song_count DESC").
		Scan(&stats.Artists).Error; err != nil {
		return nil, fmt.Errorf("aggregating artists: %w", err)
	}
	stats.TotalArtists = len(stats.Artists)

	if err := c.DB.Model(&Song{}).
		Where("id NOT IN (?)", c.DB.Table("song_categories").Select("song_id")).
		Count(&stats.SongsWithoutCategories).Error; err != nil {
		return nil, fmt.Errorf("counting uncategorized songs: %w", err)
	}

	if err := c.DB.Raw(
		"SELECT COUNT(*) FROM songs s WHERE (SELECT COUNT(*) FROM song_categories sc WHERE sc.song_id = s.id) <= 1",
	).Scan(&stats.SongsWithOneOrLessCategories).Error; err != nil {
		return nil, fmt.Errorf("counting sparsely categorized songs: %w", err)
	}

	return stats, nil
}
