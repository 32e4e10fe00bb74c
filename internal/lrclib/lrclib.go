// Package lrclib fetches synced lyrics from the LRCLIB API
// (https://lrclib.net) and converts them to transcripts.
package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noplp/karaoke-backend/internal/lyrics"
)

const defaultBaseURL = "https://lrclib.net"

// ErrNotFound is returned when LRCLIB has no synced lyrics for the track.
var ErrNotFound = errors.New("lrclib: lyrics not found")

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type getResponse struct {
	SyncedLyrics string `json:"syncedLyrics"`
}

// GetLyrics looks a track up by name and artist and returns its synced
// transcript. Plain (unsynced-only) results count as not found since the
// game needs timecodes.
func (c *Client) GetLyrics(ctx context.Context, trackName, artistName string) (lyrics.Transcript, error) {
	q := url.Values{}
	q.Set("track_name", trackName)
	q.Set("artist_name", artistName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/get?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("lrclib: build request: %w", err)
	}

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lrclib: request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if rsp.StatusCode > 299 {
		return nil, fmt.Errorf("lrclib: unexpected status %d", rsp.StatusCode)
	}

	var body getResponse
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("lrclib: decode response: %w", err)
	}
	if body.SyncedLyrics == "" {
		return nil, ErrNotFound
	}

	transcript := ParseSynced(body.SyncedLyrics)
	if len(transcript) == 0 {
		return nil, ErrNotFound
	}
	return transcript, nil
}

// ParseSynced converts LRC-style synced lyrics ("[mm:ss.xx] words" per line)
// to a transcript. Malformed lines are skipped.
func ParseSynced(synced string) lyrics.Transcript {
	var transcript lyrics.Transcript
	for _, raw := range strings.Split(synced, "\n") {
		if raw == "" {
			continue
		}
		stamp, words, ok := strings.Cut(raw, "] ")
		if !ok || !strings.HasPrefix(stamp, "[") {
			continue
		}
		minutes, seconds, ok := strings.Cut(stamp[1:], ":")
		if !ok {
			continue
		}
		min, err := strconv.ParseFloat(minutes, 64)
		if err != nil {
			continue
		}
		sec, err := strconv.ParseFloat(seconds, 64)
		if err != nil {
			continue
		}
		transcript = append(transcript, lyrics.Line{
			StartTimeMs: int(math.Round((60*min + sec) * 1000)),
			Words:       words,
		})
	}
	return transcript
}
