package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/noplp/karaoke-backend/internal/backup"
	"github.com/noplp/karaoke-backend/internal/game"
	"github.com/noplp/karaoke-backend/internal/hub"
	"github.com/noplp/karaoke-backend/internal/lrclib"
	"github.com/noplp/karaoke-backend/internal/playlist"
	"github.com/noplp/karaoke-backend/internal/populate"
	"github.com/noplp/karaoke-backend/internal/spotify"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
	"github.com/noplp/karaoke-backend/pkg/utils"
)

func init() {
	// .env is optional; its values feed the flag defaults below.
	_ = godotenv.Load()
}

var (
	port           int
	dbPath         string
	playlistDir    string
	backupDir      string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 4001, "HTTP server port")
	flag.StringVar(&dbPath, "db", utils.GetEnvOrDefault("KARAOKE_DB_PATH", storage.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&playlistDir, "playlists", utils.GetEnvOrDefault("KARAOKE_PLAYLIST_DIR", "playlists"), "Directory holding playlist JSON files")
	flag.StringVar(&backupDir, "backups", utils.GetEnvOrDefault("KARAOKE_BACKUP_DIR", backup.DefaultDir), "Directory holding database backups")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	playlists := playlist.NewStore(playlistDir)

	// Spotify is optional: without credentials the search and OAuth
	// endpoints answer 503, everything else keeps working.
	var spotifyClient *spotify.Client
	if env, err := utils.LoadEnv([]string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET"}); err == nil {
		spotifyClient, err = spotify.New(env["SPOTIFY_CLIENT_ID"], env["SPOTIFY_CLIENT_SECRET"])
		if err != nil {
			log.Warnf("Spotify client disabled: %v", err)
		}
	} else {
		log.Warnf("Spotify client disabled: %v", err)
	}

	gameOpts := []game.Option{}
	if spDC := os.Getenv("SPOTIFY_SP_DC"); spDC != "" {
		gameOpts = append(gameOpts, game.WithFetcher(spotify.NewLyricsClient(spDC)))
	} else {
		log.Warnf("SPOTIFY_SP_DC not set, lyrics fallback fetching disabled")
	}
	gameService := game.NewService(db, gameOpts...)

	populateOpts := []populate.Option{populate.WithLyricsSource(lrclib.New())}
	if spotifyClient != nil {
		populateOpts = append(populateOpts, populate.WithSearcher(spotifyClient))
	}
	populator := populate.New(db, playlists, populateOpts...)

	screenHub := hub.New(log)
	backups := backup.New(db, backupDir, log)

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		PlaylistDir:    playlistDir,
		BackupDir:      backupDir,
		AllowedOrigins: origins,
	}

	server := NewServer(db, gameService, screenHub, playlists, populator, backups, spotifyClient, config)
	if err := server.Start(); err != nil {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}

// Start runs the HTTP server until interrupted, then drains connections.
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("Karaoke server starting on %s", addr)
	s.log.Infof("   Database:  %s", s.config.DBPath)
	s.log.Infof("   Playlists: %s", s.config.PlaylistDir)
	s.log.Infof("   Backups:   %s", s.config.BackupDir)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Infof("Shutting down")
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
