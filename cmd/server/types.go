package main

import (
	"errors"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/storage"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// MessageResponse carries a human-readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ImportRequest is the request body for POST /api/database/import
type ImportRequest struct {
	ForceUpdate bool `json:"force_update"`
}

// FetchLyricsRequest is the request body for POST /api/database/fetch-lyrics.
// An empty TrackID means a full catalog sweep.
type FetchLyricsRequest struct {
	TrackID string `json:"track_id"`
}

// AddSongRequest is the request body for POST /api/songs. Either TrackID or
// both TrackName and Artist must be set.
type AddSongRequest struct {
	TrackName   string   `json:"track_name"`
	Artist      string   `json:"artist"`
	TrackID     string   `json:"track_id"`
	CategoryIDs []string `json:"category_ids"`
}

// Validate checks if the request is valid
func (r *AddSongRequest) Validate() error {
	if r.TrackID == "" && (r.TrackName == "" || r.Artist == "") {
		return errors.New("track_id or track_name and artist are required")
	}
	return nil
}

// AddSongResponse is the stored song plus whether it was already known
type AddSongResponse struct {
	*storage.Song
	AlreadyExists bool `json:"already_exists"`
}

// CategoryRequest is the request body for creating or renaming a category
type CategoryRequest struct {
	Name string `json:"name"`
}

// CategoryUpdateResponse is the response for PUT /api/categories/{id}
type CategoryUpdateResponse struct {
	Message  string            `json:"message"`
	Category *storage.Category `json:"category"`
}

// SongIDsRequest is the request body for the bulk category membership
// endpoints
type SongIDsRequest struct {
	SongIDs []string `json:"song_ids"`
}

// CategoryIDsRequest is the request body for POST /api/songs/{id}/categories
type CategoryIDsRequest struct {
	CategoryIDs []string `json:"category_ids"`
}

// CategorySongsResponse reports a bulk membership change
type CategorySongsResponse struct {
	Message      string            `json:"message"`
	Category     *storage.Category `json:"category"`
	SongsAdded   []storage.Song    `json:"songs_added,omitempty"`
	SongsRemoved []storage.Song    `json:"songs_removed,omitempty"`
}

// SongCategoriesResponse reports categories added to a song
type SongCategoriesResponse struct {
	Message         string             `json:"message"`
	Song            *storage.Song      `json:"song"`
	CategoriesAdded []storage.Category `json:"categories_added"`
}

// LyricsUpdateRequest is the request body for PUT /api/songs/{id}/lyrics
type LyricsUpdateRequest struct {
	Lyrics lyrics.Transcript `json:"lyrics"`
}

// SongUpdateResponse is the response for PUT /api/songs/{id}/lyrics
type SongUpdateResponse struct {
	Message string        `json:"message"`
	Song    *storage.Song `json:"song"`
}

// RestoreRequest is the request body for POST /api/database/restore
type RestoreRequest struct {
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite"`
}

// BackupResponse is the response for POST /api/database/backup
type BackupResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// FetchLyricsResponse reports a lyric sweep
type FetchLyricsResponse struct {
	Message string `json:"message"`
	Fetched int    `json:"fetched,omitempty"`
	Failed  int    `json:"failed,omitempty"`
}

// TokenRequest is the request body for POST /api/spotify/token
type TokenRequest struct {
	Code string `json:"code"`
}

// AuthURLResponse is the response for GET /api/spotify/auth
type AuthURLResponse struct {
	URL string `json:"url"`
}

// PlaylistSaveResponse is the response for POST /api/playlist/save
type PlaylistSaveResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Name    string `json:"name"`
}

// SongWithName decorates a song with the display name the song list shows
type SongWithName struct {
	storage.Song
	Name string `json:"name"`
}
