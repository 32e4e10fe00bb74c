// Package spotify talks to the Spotify accounts, Web API and color-lyrics
// services: track search and OAuth for the game client, plus the lyrics
// driver used as the fetch-by-track-ID fallback when the database has no
// transcript.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultAuthBaseURL = "https://accounts.spotify.com"
	defaultAPIBaseURL  = "https://api.spotify.com/v1"

	// Where the game client lands after the authorize redirect.
	redirectURI = "http://localhost:3000/callback"

	playbackScope = "streaming user-read-email user-read-private"
)

// ErrNoTrack is returned when a search yields no results.
var ErrNoTrack = errors.New("spotify: no track found")

// Client is the Web API client. It holds a client-credentials token and
// refreshes it before each call once expired.
type Client struct {
	clientID     string
	clientSecret string

	authBaseURL string
	apiBaseURL  string
	http        *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type Option func(*Client)

// WithBaseURLs overrides the accounts and API endpoints, mainly for tests.
func WithBaseURLs(authBase, apiBase string) Option {
	return func(c *Client) {
		c.authBaseURL = strings.TrimRight(authBase, "/")
		c.apiBaseURL = strings.TrimRight(apiBase, "/")
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func New(clientID, clientSecret string, opts ...Option) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify: client credentials must not be empty")
	}
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		authBaseURL:  defaultAuthBaseURL,
		apiBaseURL:   defaultAPIBaseURL,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.clientID+":"+c.clientSecret))
}

// login refreshes the client-credentials token when the cached one expired.
func (c *Client) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.tokenExpiry) {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("spotify: build token request: %w", err)
	}
	req.Header.Set("Authorization", c.basicAuth())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rsp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spotify: token request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode > 299 {
		return fmt.Errorf("spotify: login failed with status %d", rsp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return fmt.Errorf("spotify: decode token response: %w", err)
	}

	c.token = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return nil
}

// Search returns the first track matching "name artist:artist".
func (c *Client) Search(ctx context.Context, trackName, artist string) (*Track, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("type", "track")
	q.Set("q", fmt.Sprintf("%s artist:%s", trackName, artist))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("spotify: build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: search request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode > 299 {
		return nil, fmt.Errorf("spotify: search failed with status %d", rsp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify: decode search response: %w", err)
	}
	if len(body.Tracks.Items) == 0 {
		return nil, ErrNoTrack
	}
	return &body.Tracks.Items[0], nil
}

// GetTrack fetches track metadata by ID.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBaseURL+"/tracks/"+trackID, nil)
	if err != nil {
		return nil, fmt.Errorf("spotify: build track request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: track request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusNotFound {
		return nil, ErrNoTrack
	}
	if rsp.StatusCode > 299 {
		return nil, fmt.Errorf("spotify: track fetch failed with status %d", rsp.StatusCode)
	}

	var track Track
	if err := json.NewDecoder(rsp.Body).Decode(&track); err != nil {
		return nil, fmt.Errorf("spotify: decode track response: %w", err)
	}
	return &track, nil
}

// AuthURL builds the authorization redirect for the web-playback OAuth flow.
func (c *Client) AuthURL() string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("response_type", "code")
	params.Set("scope", playbackScope)
	params.Set("redirect_uri", redirectURI)
	return c.authBaseURL + "/authorize?" + params.Encode()
}

// ExchangeCode trades an authorization code for a user token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenInfo, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("spotify: build exchange request: %w", err)
	}
	req.Header.Set("Authorization", c.basicAuth())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: exchange request: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode > 299 {
		return nil, fmt.Errorf("spotify: code exchange failed with status %d", rsp.StatusCode)
	}

	var body TokenInfo
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify: decode exchange response: %w", err)
	}
	return &body, nil
}
