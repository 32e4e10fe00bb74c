// Package populate fills the song database: playlist file imports, lyric
// fetching from the lyrics provider, provider-backed song search, and the
// random playlist generator.
package populate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/noplp/karaoke-backend/internal/lyrics"
	"github.com/noplp/karaoke-backend/internal/playlist"
	"github.com/noplp/karaoke-backend/internal/spotify"
	"github.com/noplp/karaoke-backend/internal/storage"
	"github.com/noplp/karaoke-backend/pkg/logger"
)

// fetchWorkers bounds concurrent provider calls during a full lyric sweep.
const fetchWorkers = 4

// ErrTrackNotUsable is returned when the provider yields no track or no
// transcript for a search.
var ErrTrackNotUsable = errors.New("populate: no track or lyrics found")

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// TrackSearcher resolves tracks on the music provider.
type TrackSearcher interface {
	Search(ctx context.Context, trackName, artist string) (*spotify.Track, error)
	GetTrack(ctx context.Context, trackID string) (*spotify.Track, error)
}

// LyricsSource fetches a transcript by track name and artist.
type LyricsSource interface {
	GetLyrics(ctx context.Context, trackName, artistName string) (lyrics.Transcript, error)
}

type Populator struct {
	db        *storage.DBClient
	playlists *playlist.Store
	search    TrackSearcher
	source    LyricsSource
	log       Logger
}

type Option func(*Populator)

func WithSearcher(s TrackSearcher) Option {
	return func(p *Populator) {
		p.search = s
	}
}

func WithLyricsSource(s LyricsSource) Option {
	return func(p *Populator) {
		p.source = s
	}
}

func WithLogger(log Logger) Option {
	return func(p *Populator) {
		p.log = log
	}
}

func New(db *storage.DBClient, playlists *playlist.Store, opts ...Option) *Populator {
	p := &Populator{db: db, playlists: playlists}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.GetLogger()
	}
	return p
}

// ImportPlaylists loads every stored playlist file into the database and
// returns how many songs were processed. Existing rows are left untouched
// unless force is set; category assignments are always added.
func (p *Populator) ImportPlaylists(force bool) (int, error) {
	infos, err := p.playlists.List()
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, info := range infos {
		if playlist.IsRandom(info.ID) {
			continue
		}
		pl, err := p.playlists.Load(info.ID)
		if err != nil {
			p.log.Errorf("Skipping playlist %s: %v", info.ID, err)
			continue
		}
		p.log.Infof("Importing playlist %s (%d songs)", info.ID, len(pl.Songs))

		known := make(map[string]bool, len(pl.Categories))
		for _, cat := range pl.Categories {
			if err := p.importCategory(cat, force); err != nil {
				return processed, err
			}
			known[cat.ID] = true
		}
		for _, song := range pl.Songs {
			if err := p.importSong(song, known, force); err != nil {
				p.log.Errorf("Failed to import song %s: %v", song.Title, err)
				continue
			}
			processed++
		}
	}
	p.log.Infof("Playlist import completed, %d songs processed", processed)
	return processed, nil
}

func (p *Populator) importCategory(cat playlist.Category, force bool) error {
	existing, err := p.db.EnsureCategory(cat.ID, cat.Name)
	if err != nil {
		return err
	}
	if force && existing.Name != cat.Name {
		if _, err := p.db.RenameCategory(cat.ID, cat.Name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Populator) importSong(song playlist.Song, categories map[string]bool, force bool) error {
	trackID := song.TrackID
	if trackID == "" {
		trackID = song.ID
	}

	_, err := p.db.GetSong(trackID)
	missing := errors.Is(err, storage.ErrSongNotFound)
	if err != nil && !missing {
		return err
	}

	if missing || force {
		err := p.db.UpsertSong(&storage.Song{
			ID:          trackID,
			Artist:      song.Artist,
			Title:       song.Title,
			ReleaseYear: song.ReleaseYear,
		})
		if err != nil {
			return err
		}
	}

	if song.Category != "" && categories[song.Category] {
		if _, err := p.db.AddCategoriesToSong(trackID, []string{song.Category}); err != nil {
			return err
		}
	}
	return nil
}

// FetchLyrics fetches and stores the transcript for one song. Songs that
// already carry lyrics are left alone.
func (p *Populator) FetchLyrics(ctx context.Context, songID string) error {
	song, err := p.db.GetSong(songID)
	if err != nil {
		return err
	}
	if len(song.Lyrics) > 0 {
		p.log.Debugf("Lyrics already stored for %s, skipping", song.Title)
		return nil
	}
	if p.source == nil {
		return errors.New("populate: no lyrics source configured")
	}

	p.log.Infof("Fetching lyrics for %s by %s", song.Title, song.Artist)
	transcript, err := p.source.GetLyrics(ctx, song.Title, song.Artist)
	if err != nil {
		return fmt.Errorf("fetching lyrics for %s: %w", songID, err)
	}
	return p.db.PutLyrics(songID, transcript)
}

// FetchAllLyrics sweeps the whole catalog, fetching missing transcripts
// with a small worker pool. Per-song failures are logged and counted, not
// fatal.
func (p *Populator) FetchAllLyrics(ctx context.Context) (fetched, failed int, err error) {
	songs, err := p.db.ListSongs(false)
	if err != nil {
		return 0, 0, err
	}

	var okCount, failCount atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)

	for _, song := range songs {
		if len(song.Lyrics) > 0 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.FetchLyrics(ctx, song.ID); err != nil {
				p.log.Warnf("Lyrics fetch failed for %s: %v", song.ID, err)
				failCount.Add(1)
				return nil
			}
			okCount.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(okCount.Load()), int(failCount.Load()), err
	}
	return int(okCount.Load()), int(failCount.Load()), nil
}

// SearchAndAddSong resolves a track on the provider, fetches its lyrics
// and stores the song. It reports whether the song already existed.
func (p *Populator) SearchAndAddSong(ctx context.Context, trackName, artist string, categoryIDs []string, trackID string) (*storage.Song, bool, error) {
	if p.search == nil || p.source == nil {
		return nil, false, errors.New("populate: provider clients not configured")
	}

	var (
		track *spotify.Track
		err   error
	)
	if trackID != "" {
		track, err = p.search.GetTrack(ctx, trackID)
	} else {
		track, err = p.search.Search(ctx, trackName, artist)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrTrackNotUsable, err)
	}

	transcript, err := p.source.GetLyrics(ctx, track.Name, track.Artist())
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrTrackNotUsable, err)
	}

	_, err = p.db.GetSong(track.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, storage.ErrSongNotFound) {
		return nil, false, err
	}

	song := &storage.Song{
		ID:          track.ID,
		Artist:      track.Artist(),
		Title:       track.Name,
		ReleaseYear: releaseYear(track),
		Lyrics:      storage.LyricsJSON(transcript),
	}
	if err := p.db.UpsertSong(song); err != nil {
		return nil, false, err
	}
	if exists {
		p.log.Infof("Song already exists: %s by %s", track.Name, track.Artist())
	} else {
		p.log.Infof("Added song %s by %s", track.Name, track.Artist())
	}

	if len(categoryIDs) > 0 {
		if _, err := p.db.AddCategoriesToSong(track.ID, categoryIDs); err != nil {
			return nil, exists, err
		}
	}

	stored, err := p.db.GetSong(track.ID)
	if err != nil {
		return nil, exists, err
	}
	return stored, exists, nil
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
