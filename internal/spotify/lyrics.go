package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noplp/karaoke-backend/internal/lyrics"
)

const (
	defaultWebBaseURL    = "https://open.spotify.com"
	defaultLyricsBaseURL = "https://spclient.wg.spotify.com/color-lyrics/v2"

	webPlayerUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/101.0.0.0 Safari/537.36"
)

// ErrLyricsNotFound is returned when the lyrics service has no transcript
// for the track.
var ErrLyricsNotFound = errors.New("spotify: lyrics not found")

// LyricsClient talks to the color-lyrics service. Authentication uses a
// web-player token minted from the sp_dc session cookie; the token is cached
// until its expiration timestamp.
type LyricsClient struct {
	spDC string

	webBaseURL    string
	lyricsBaseURL string
	http          *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type LyricsOption func(*LyricsClient)

// WithLyricsBaseURLs overrides the token and lyrics endpoints, mainly for
// tests.
func WithLyricsBaseURLs(webBase, lyricsBase string) LyricsOption {
	return func(c *LyricsClient) {
		c.webBaseURL = strings.TrimRight(webBase, "/")
		c.lyricsBaseURL = strings.TrimRight(lyricsBase, "/")
	}
}

func WithLyricsHTTPClient(h *http.Client) LyricsOption {
	return func(c *LyricsClient) {
		c.http = h
	}
}

func NewLyricsClient(spDC string, opts ...LyricsOption) *LyricsClient {
	c := &LyricsClient{
		spDC:          spDC,
		webBaseURL:    defaultWebBaseURL,
		lyricsBaseURL: defaultLyricsBaseURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *LyricsClient) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.tokenExpiry) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.webBaseURL+"/get_access_token", nil)
	if err != nil {
		return fmt.Errorf("spotify: build web token request: %w", err)
	}
	req.Header.Set("App-Platform", "WebPlayer")
	req.Header.Set("User-Agent", webPlayerUserAgent)
	req.Header.Set("Cookie", "sp_dc="+c.spDC)

	rsp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spotify: web token request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode > 299 {
		return fmt.Errorf("spotify: web token refresh failed with status %d", rsp.StatusCode)
	}

	var body webTokenResponse
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return fmt.Errorf("spotify: decode web token response: %w", err)
	}

	c.token = body.AccessToken
	c.tokenExpiry = time.UnixMilli(body.AccessTokenExpirationTimestampMs)
	return nil
}

// FetchLyrics returns the time-coded transcript for a track ID.
func (c *LyricsClient) FetchLyrics(ctx context.Context, trackID string) (lyrics.Transcript, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.lyricsBaseURL+"/track/"+trackID+"?format=json&vocalRemoval=false", nil)
	if err != nil {
		return nil, fmt.Errorf("spotify: build lyrics request: %w", err)
	}
	req.Header.Set("App-Platform", "WebPlayer")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", webPlayerUserAgent)

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: lyrics request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusNotFound {
		return nil, ErrLyricsNotFound
	}
	if rsp.StatusCode > 299 {
		return nil, fmt.Errorf("spotify: lyrics fetch failed with status %d", rsp.StatusCode)
	}

	var body lyricsResponse
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify: decode lyrics response: %w", err)
	}
	if len(body.Lyrics.Lines) == 0 {
		return nil, ErrLyricsNotFound
	}

	transcript := make(lyrics.Transcript, 0, len(body.Lyrics.Lines))
	for _, line := range body.Lyrics.Lines {
		startMs, err := strconv.Atoi(line.StartTimeMs)
		if err != nil {
			continue
		}
		transcript = append(transcript, lyrics.Line{StartTimeMs: startMs, Words: line.Words})
	}
	if len(transcript) == 0 {
		return nil, ErrLyricsNotFound
	}
	return transcript, nil
}
