// Command categorize imports a CSV song list into the database, resolving
// each song on Spotify and assigning it to the predefined categories whose
// patterns match.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/noplp/karaoke-backend/internal/categorize"
	"github.com/noplp/karaoke-backend/internal/spotify"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
	"github.com/noplp/karaoke-backend/pkg/utils"
)

func init() {
	_ = godotenv.Load()
}

var (
	songList string
	dbPath   string
	dryRun   bool
)

func init() {
	flag.StringVar(&songList, "songs", "songs.csv", "CSV file of artist,title rows")
	flag.StringVar(&dbPath, "db", utils.GetEnvOrDefault("KARAOKE_DB_PATH", storage.DefaultDBFile), "Path to SQLite database")
	flag.BoolVar(&dryRun, "dry-run", false, "Print category matches without touching the database")
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	songs, err := categorize.ReadSongList(songList)
	if err != nil {
		log.Errorf("Failed to read song list: %v", err)
		os.Exit(1)
	}
	log.Infof("Loaded %d songs from %s", len(songs), songList)

	if dryRun {
		for _, entry := range songs {
			matches := categorize.SelectDiverse(categorize.MatchCategories(entry.Artist, entry.Title))
			fmt.Printf("%s - %s\n", entry.Artist, entry.Title)
			for _, m := range matches {
				fmt.Printf("    %-28s %-8s %.3f (%s)\n", m.Name, m.Type, m.Confidence, m.Pattern)
			}
		}
		return
	}

	env, err := utils.LoadEnv([]string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET"})
	if err != nil {
		log.Errorf("Spotify credentials required to resolve tracks: %v", err)
		os.Exit(1)
	}
	search, err := spotify.New(env["SPOTIFY_CLIENT_ID"], env["SPOTIFY_CLIENT_SECRET"])
	if err != nil {
		log.Errorf("Failed to build Spotify client: %v", err)
		os.Exit(1)
	}

	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stored, err := categorize.New(db, search, log).ProcessSongs(ctx, songs)
	if err != nil {
		log.Errorf("Categorization stopped after %d songs: %v", stored, err)
		os.Exit(1)
	}
}
