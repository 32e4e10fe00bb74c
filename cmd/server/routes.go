package main

import (
	"net/http"
	"strings"

	"github.com/noplp/karaoke-backend/pkg/logger"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Root and health endpoints
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Game lyrics endpoint
	mux.HandleFunc("GET /api/lyrics/{trackID}/{wordsToGuess}", s.handleGetLyrics)

	// Playlist endpoints
	mux.HandleFunc("GET /api/playlists", s.handleListPlaylists)
	mux.HandleFunc("GET /api/playlist", s.handleGetPlaylist)
	mux.HandleFunc("POST /api/playlist/save", s.handleSavePlaylist)

	// Category management endpoints
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("POST /api/categories/{id}/songs", s.handleAddSongsToCategory)
	mux.HandleFunc("POST /api/categories/{id}/remove-songs", s.handleRemoveSongsFromCategory)
	mux.HandleFunc("GET /api/categories-with-songs", s.handleCategoriesWithSongs)

	// Song management endpoints
	mux.HandleFunc("GET /api/songs", s.handleListSongs)
	mux.HandleFunc("POST /api/songs", s.handleAddSong)
	mux.HandleFunc("GET /api/songs/{id}", s.handleGetSong)
	mux.HandleFunc("DELETE /api/songs/{id}", s.handleDeleteSong)
	mux.HandleFunc("POST /api/songs/{id}/categories", s.handleAddCategoriesToSong)
	mux.HandleFunc("DELETE /api/songs/{id}/categories/{categoryID}", s.handleRemoveSongFromCategory)
	mux.HandleFunc("PUT /api/songs/{id}/lyrics", s.handleUpdateSongLyrics)
	mux.HandleFunc("GET /api/songs-with-categories", s.handleSongsWithCategories)

	// Database maintenance endpoints
	mux.HandleFunc("POST /api/database/import", s.handleImportDatabase)
	mux.HandleFunc("POST /api/database/fetch-lyrics", s.handleFetchLyrics)
	mux.HandleFunc("POST /api/database/backup", s.handleCreateBackup)
	mux.HandleFunc("GET /api/database/backups", s.handleListBackups)
	mux.HandleFunc("POST /api/database/restore", s.handleRestoreBackup)

	// Spotify OAuth endpoints
	mux.HandleFunc("GET /api/spotify/auth", s.handleSpotifyAuth)
	mux.HandleFunc("POST /api/spotify/token", s.handleSpotifyToken)

	// Screen synchronization
	mux.Handle("GET /ws", s.hub)

	// Wrap with CORS and logging middleware
	return corsMiddleware(s.config.AllowedOrigins)(loggingMiddleware(mux))
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger.GetLogger().Infof("%s %s from %s -> %d", r.Method, r.URL.Path, getClientIP(r), wrapped.statusCode)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for the WebSocket
// upgrade.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
