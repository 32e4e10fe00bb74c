package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/noplp/karaoke-backend/internal/backup"
	"github.com/noplp/karaoke-backend/internal/game"
	"github.com/noplp/karaoke-backend/internal/hub"
	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/playlist"
	"github.com/noplp/karaoke-backend/internal/populate"
	"github.com/noplp/karaoke-backend/internal/spotify"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	db        *storage.DBClient
	game      *game.Service
	hub       *hub.Hub
	playlists *playlist.Store
	populator *populate.Populator
	backups   *backup.Tool
	spotify   *spotify.Client
	config    *ServerConfig
	log       game.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	PlaylistDir    string
	BackupDir      string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(db *storage.DBClient, svc *game.Service, h *hub.Hub,
	playlists *playlist.Store, populator *populate.Populator,
	backups *backup.Tool, spotifyClient *spotify.Client, config *ServerConfig) *Server {
	return &Server{
		db:        db,
		game:      svc,
		hub:       h,
		playlists: playlists,
		populator: populator,
		backups:   backups,
		spotify:   spotifyClient,
		config:    config,
		log:       logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondStorageError maps storage sentinels to 404, everything else to 500.
func (s *Server) respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrSongNotFound):
		s.respondError(w, http.StatusNotFound, "song not found")
	case errors.Is(err, storage.ErrCategoryNotFound):
		s.respondError(w, http.StatusNotFound, "category not found")
	default:
		s.log.Errorf("Storage operation failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "database operation failed")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// queryInt reads an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Karaoke API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"stats":     "GET /api/stats",
			"playlists": "GET /api/playlists",
			"playlist":  "GET /api/playlist?name={id}",
			"lyrics":    "GET /api/lyrics/{trackID}/{wordsToGuess}",
			"songs":     "GET /api/songs",
			"ws":        "GET /ws",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

// handleGetLyrics handles GET /api/lyrics/{trackID}/{wordsToGuess}
func (s *Server) handleGetLyrics(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("trackID")

	wordsToGuess, err := strconv.Atoi(r.PathValue("wordsToGuess"))
	if err != nil {
		wordsToGuess = game.DefaultWordsToGuess
	}
	if wordsToGuess < 0 {
		s.respondError(w, http.StatusBadRequest, "words to guess must not be negative")
		return
	}

	var lyricTime *int
	if raw := r.URL.Query().Get("lyric_time"); raw != "" {
		if t, err := strconv.Atoi(raw); err == nil {
			lyricTime = &t
		}
	}

	rsp, err := s.game.GetLyrics(r.Context(), trackID, wordsToGuess, lyricTime)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSongNotFound), errors.Is(err, game.ErrNoLyrics):
			s.respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, lyrics.ErrEmptyTranscript):
			s.respondError(w, http.StatusInternalServerError, "stored transcript is empty")
		default:
			s.log.Errorf("Lyrics request failed for %s: %v", trackID, err)
			s.respondError(w, http.StatusInternalServerError, "failed to retrieve lyrics")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, rsp)
}

// handleListPlaylists handles GET /api/playlists
func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	infos, err := s.playlists.List()
	if err != nil {
		s.log.Errorf("Failed to list playlists: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	s.respondJSON(w, http.StatusOK, infos)
}

// handleGetPlaylist handles GET /api/playlist?name=
func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = playlist.DefaultName
	}

	if playlist.IsRandom(name) {
		numCategories := queryInt(r, "categories", 5)
		songsPerCategory := queryInt(r, "songs_per_category", 2)
		pl, err := s.populator.GenerateRandomPlaylist(numCategories, songsPerCategory)
		if err != nil {
			s.log.Errorf("Failed to generate random playlist: %v", err)
			s.respondError(w, http.StatusInternalServerError, "failed to generate playlist")
			return
		}
		s.respondJSON(w, http.StatusOK, pl)
		return
	}

	pl, err := s.playlists.Load(name)
	if err != nil {
		s.log.Errorf("Failed to load playlist %s: %v", name, err)
		s.respondError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}
	s.respondJSON(w, http.StatusOK, pl)
}

// handleSavePlaylist handles POST /api/playlist/save
func (s *Server) handleSavePlaylist(w http.ResponseWriter, r *http.Request) {
	var pl playlist.Playlist
	if err := decodeJSON(r, &pl); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid playlist payload")
		return
	}

	id, err := s.playlists.Save(&pl)
	if err != nil {
		switch {
		case errors.Is(err, playlist.ErrNoName),
			errors.Is(err, playlist.ErrNoCategories),
			errors.Is(err, playlist.ErrNoSongs):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Errorf("Failed to save playlist: %v", err)
			s.respondError(w, http.StatusInternalServerError, "failed to save playlist")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, PlaylistSaveResponse{
		Message: fmt.Sprintf("Playlist %q saved successfully", id),
		ID:      id,
		Name:    pl.Name,
	})
}

// handleListCategories handles GET /api/categories
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.db.ListCategories(false)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, categories)
}

// handleCreateCategory handles POST /api/categories
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "category name is required")
		return
	}

	category, err := s.db.CreateCategory(req.Name)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, category)
}

// handleGetCategory handles GET /api/categories/{id}
func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.db.GetCategory(r.PathValue("id"), true)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, category)
}

// handleUpdateCategory handles PUT /api/categories/{id}
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "category name is required")
		return
	}

	category, err := s.db.RenameCategory(r.PathValue("id"), req.Name)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, CategoryUpdateResponse{
		Message:  "Category updated successfully",
		Category: category,
	})
}

// handleDeleteCategory handles DELETE /api/categories/{id}
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.db.DeleteCategory(id); err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Category %s deleted successfully", id),
	})
}

// handleAddSongsToCategory handles POST /api/categories/{id}/songs
func (s *Server) handleAddSongsToCategory(w http.ResponseWriter, r *http.Request) {
	var req SongIDsRequest
	if err := decodeJSON(r, &req); err != nil || req.SongIDs == nil {
		s.respondError(w, http.StatusBadRequest, "song_ids are required")
		return
	}

	categoryID := r.PathValue("id")
	added, err := s.db.AddSongsToCategory(categoryID, req.SongIDs)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	category, err := s.db.GetCategory(categoryID, false)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, CategorySongsResponse{
		Message:    fmt.Sprintf("Added %d songs to category %q", len(added), category.Name),
		Category:   category,
		SongsAdded: added,
	})
}

// handleRemoveSongsFromCategory handles POST /api/categories/{id}/remove-songs
func (s *Server) handleRemoveSongsFromCategory(w http.ResponseWriter, r *http.Request) {
	var req SongIDsRequest
	if err := decodeJSON(r, &req); err != nil || req.SongIDs == nil {
		s.respondError(w, http.StatusBadRequest, "song_ids are required")
		return
	}

	categoryID := r.PathValue("id")
	removed, err := s.db.RemoveSongsFromCategory(categoryID, req.SongIDs)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	category, err := s.db.GetCategory(categoryID, false)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, CategorySongsResponse{
		Message:      fmt.Sprintf("Removed %d songs from category %q", len(removed), category.Name),
		Category:     category,
		SongsRemoved: removed,
	})
}

// handleCategoriesWithSongs handles GET /api/categories-with-songs
func (s *Server) handleCategoriesWithSongs(w http.ResponseWriter, r *http.Request) {
	categories, err := s.db.ListCategories(true)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, categories)
}

// handleListSongs handles GET /api/songs?category_id=
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	var (
		songs []storage.Song
		err   error
	)
	if categoryID := r.URL.Query().Get("category_id"); categoryID != "" {
		songs, err = s.db.ListSongsByCategory(categoryID)
	} else {
		songs, err = s.db.ListSongs(false)
	}
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, songs)
}

// handleAddSong handles POST /api/songs
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	var req AddSongRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	song, existed, err := s.populator.SearchAndAddSong(r.Context(), req.TrackName, req.Artist, req.CategoryIDs, req.TrackID)
	if err != nil {
		if errors.Is(err, populate.ErrTrackNotUsable) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Errorf("Failed to add song: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to add song")
		return
	}
	s.respondJSON(w, http.StatusOK, AddSongResponse{Song: song, AlreadyExists: existed})
}

// handleGetSong handles GET /api/songs/{id}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	song, err := s.db.GetSong(r.PathValue("id"))
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, song)
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.db.DeleteSong(id); err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Song %s deleted successfully", id),
	})
}

// handleAddCategoriesToSong handles POST /api/songs/{id}/categories
func (s *Server) handleAddCategoriesToSong(w http.ResponseWriter, r *http.Request) {
	var req CategoryIDsRequest
	if err := decodeJSON(r, &req); err != nil || req.CategoryIDs == nil {
		s.respondError(w, http.StatusBadRequest, "category_ids are required")
		return
	}

	songID := r.PathValue("id")
	added, err := s.db.AddCategoriesToSong(songID, req.CategoryIDs)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	song, err := s.db.GetSong(songID)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, SongCategoriesResponse{
		Message:         fmt.Sprintf("Added %d categories to song %q", len(added), song.Title),
		Song:            song,
		CategoriesAdded: added,
	})
}

// handleRemoveSongFromCategory handles DELETE /api/songs/{id}/categories/{categoryID}
func (s *Server) handleRemoveSongFromCategory(w http.ResponseWriter, r *http.Request) {
	songID := r.PathValue("id")
	categoryID := r.PathValue("categoryID")

	removed, err := s.db.RemoveSongFromCategory(songID, categoryID)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	if !removed {
		s.respondError(w, http.StatusBadRequest, "song is not associated with this category")
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Removed song %s from category %s", songID, categoryID),
	})
}

// handleUpdateSongLyrics handles PUT /api/songs/{id}/lyrics
func (s *Server) handleUpdateSongLyrics(w http.ResponseWriter, r *http.Request) {
	var req LyricsUpdateRequest
	if err := decodeJSON(r, &req); err != nil || req.Lyrics == nil {
		s.respondError(w, http.StatusBadRequest, "lyrics data is required")
		return
	}

	songID := r.PathValue("id")
	if err := s.db.PutLyrics(songID, req.Lyrics); err != nil {
		s.respondStorageError(w, err)
		return
	}
	song, err := s.db.GetSong(songID)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, SongUpdateResponse{
		Message: fmt.Sprintf("Lyrics for song %q updated successfully", song.Title),
		Song:    song,
	})
}

// handleSongsWithCategories handles GET /api/songs-with-categories
func (s *Server) handleSongsWithCategories(w http.ResponseWriter, r *http.Request) {
	songs, err := s.db.ListSongs(true)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}

	decorated := make([]SongWithName, len(songs))
	for i, song := range songs {
		decorated[i] = SongWithName{
			Song: song,
			Name: fmt.Sprintf("%s by %s", song.Title, song.Artist),
		}
	}
	s.respondJSON(w, http.StatusOK, decorated)
}

// handleImportDatabase handles POST /api/database/import
func (s *Server) handleImportDatabase(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	n, err := s.populator.ImportPlaylists(req.ForceUpdate)
	if err != nil {
		s.log.Errorf("Database import failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "database import failed")
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Database import completed, %d songs processed", n),
	})
}

// handleFetchLyrics handles POST /api/database/fetch-lyrics
func (s *Server) handleFetchLyrics(w http.ResponseWriter, r *http.Request) {
	var req FetchLyricsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.TrackID != "" {
		if err := s.populator.FetchLyrics(r.Context(), req.TrackID); err != nil {
			if errors.Is(err, storage.ErrSongNotFound) {
				s.respondStorageError(w, err)
				return
			}
			s.log.Errorf("Lyrics fetch failed for %s: %v", req.TrackID, err)
			s.respondError(w, http.StatusInternalServerError, "failed to fetch lyrics")
			return
		}
		s.respondJSON(w, http.StatusOK, FetchLyricsResponse{Message: "Lyrics fetched successfully"})
		return
	}

	fetched, failed, err := s.populator.FetchAllLyrics(r.Context())
	if err != nil {
		s.log.Errorf("Lyrics sweep failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch lyrics")
		return
	}
	s.respondJSON(w, http.StatusOK, FetchLyricsResponse{
		Message: "Lyrics fetch completed",
		Fetched: fetched,
		Failed:  failed,
	})
}

// handleCreateBackup handles POST /api/database/backup
func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	name, err := s.backups.Create()
	if err != nil {
		s.log.Errorf("Backup failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, BackupResponse{
		Message: "Backup completed successfully",
		Name:    name,
	})
}

// handleListBackups handles GET /api/database/backups
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	infos, err := s.backups.List()
	if err != nil {
		s.log.Errorf("Failed to list backups: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if infos == nil {
		infos = []backup.Info{}
	}
	s.respondJSON(w, http.StatusOK, infos)
}

// handleRestoreBackup handles POST /api/database/restore
func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "backup name is required")
		return
	}

	if err := s.backups.Restore(req.Name, req.Overwrite); err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			s.respondError(w, http.StatusNotFound, "backup not found")
			return
		}
		s.log.Errorf("Restore failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "restore failed")
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Restore from %s completed successfully", req.Name),
	})
}

// handleSpotifyAuth handles GET /api/spotify/auth
func (s *Server) handleSpotifyAuth(w http.ResponseWriter, r *http.Request) {
	if s.spotify == nil {
		s.respondError(w, http.StatusServiceUnavailable, "spotify is not configured")
		return
	}
	s.respondJSON(w, http.StatusOK, AuthURLResponse{URL: s.spotify.AuthURL()})
}

// handleSpotifyToken handles POST /api/spotify/token
func (s *Server) handleSpotifyToken(w http.ResponseWriter, r *http.Request) {
	if s.spotify == nil {
		s.respondError(w, http.StatusServiceUnavailable, "spotify is not configured")
		return
	}

	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		s.respondError(w, http.StatusBadRequest, "authorization code is required")
		return
	}

	token, err := s.spotify.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		s.log.Errorf("Token exchange failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "token exchange failed")
		return
	}
	s.respondJSON(w, http.StatusOK, token)
}
