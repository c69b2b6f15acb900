// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/labeltree/internal/metrics"
	"github.com/desertthunder/labeltree/internal/queue"
	"github.com/desertthunder/labeltree/internal/shared"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxTracksPerRequest is the playlist append limit.
	MaxTracksPerRequest = 100

	albumTracksPageSize = 50
	maxSearchLimit      = 50
)

// SpotifyScopes are the scopes requested during authorization.
var SpotifyScopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-private",
	"user-read-email",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track. Album is empty on album track listings.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       *SpotifyAlbum   `json:"album,omitempty"`
	DiscNumber  int             `json:"disc_number"`
	TrackNumber int             `json:"track_number"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumType   string          `json:"album_type"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyPlaylist represents a playlist as returned on creation.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Owner        Owner        `json:"owner"`
	Public       bool         `json:"public"`
	URI          string       `json:"uri"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// spotifyPage is Spotify's paging object.
type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// RateLimitState is the most recent 429 observed by a [SpotifyService].
// RetryAfterSeconds is the server's Retry-After value, zero when the header was absent;
// IsLimited holds while the service is backing off.
type RateLimitState struct {
	RetryAfterSeconds int       `json:"retryAfterSeconds"`
	ObservedAt        time.Time `json:"observedAt"`
	IsLimited         bool      `json:"isLimited"`
}

// Session holds the OAuth2 client configuration and the current token.
type Session struct {
	config *oauth2.Config

	mu            sync.Mutex
	token         *oauth2.Token
	onReauthorize func(authURL string)
	onToken       func(*oauth2.Token)
}

// NewSession validates the client credentials and restores a saved token, if any.
func NewSession(creds shared.SpotifyConfig) (*Session, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &Session{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
	}
	if tok := creds.Token(); tok != nil {
		s.token = tok
	}
	return s, nil
}

// Config returns the underlying OAuth2 configuration.
func (s *Session) Config() *oauth2.Config {
	return s.config
}

// AuthURL returns the authorization URL for user login.
func (s *Session) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and stores it.
func (s *Session) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.SetToken(tok)
	return tok, nil
}

// SetToken replaces the current token.
func (s *Session) SetToken(tok *oauth2.Token) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
}

// Token returns the current token, nil when unauthenticated.
func (s *Session) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != nil
}

// Invalidate drops the current token.
func (s *Session) Invalidate() {
	s.SetToken(nil)
}

// OnReauthorize registers the callback that receives a fresh authorization URL
// whenever the API rejects the current token.
func (s *Session) OnReauthorize(fn func(authURL string)) {
	s.mu.Lock()
	s.onReauthorize = fn
	s.mu.Unlock()
}

// OnTokenRefresh registers a callback invoked after the token is refreshed, so it can be saved.
func (s *Session) OnTokenRefresh(fn func(*oauth2.Token)) {
	s.mu.Lock()
	s.onToken = fn
	s.mu.Unlock()
}

// accessToken returns a valid access token, refreshing an expired one when a refresh token is held.
func (s *Session) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	current := s.token
	s.mu.Unlock()

	if current == nil {
		return "", shared.ErrNotAuthenticated
	}
	if current.Valid() || current.RefreshToken == "" {
		return current.AccessToken, nil
	}

	fresh, err := s.config.TokenSource(ctx, current).Token()
	if err != nil {
		return "", fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuthFailed, err)
	}

	s.mu.Lock()
	s.token = fresh
	cb := s.onToken
	s.mu.Unlock()

	if cb != nil {
		cb(fresh)
	}
	return fresh.AccessToken, nil
}

// reauthorize invalidates the token and hands a new authorization URL to the callback.
func (s *Session) reauthorize() {
	s.Invalidate()

	s.mu.Lock()
	cb := s.onReauthorize
	s.mu.Unlock()

	if cb != nil {
		cb(s.AuthURL(shared.GenerateState()))
	}
}

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	Session    *Session
	BaseURL    string
	HTTPClient *http.Client
	// Queue serializes requests; one is created with the default interval when nil.
	Queue   *queue.Queue
	Retry   RetryPolicy
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// SpotifyService implements [CatalogService] against the Spotify Web API.
//
// Lookups are queued at medium priority and playlist writes at high priority.
// Each queued request retries 429 responses with [RetryPolicy]; a 401 or 403
// invalidates the [Session] and is never retried.
type SpotifyService struct {
	session *Session
	baseURL string
	client  *http.Client
	queue   *queue.Queue
	retry   RetryPolicy
	logger  *log.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	rateLimit RateLimitState
}

// NewSpotifyService creates a Spotify client bound to session.
func NewSpotifyService(opts SpotifyOptions) (*SpotifyService, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("%w: spotify session", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Queue == nil {
		opts.Queue = queue.New(queue.Options{Name: "spotify", Logger: opts.Logger, Metrics: opts.Metrics})
	}

	s := &SpotifyService{
		session: opts.Session,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.HTTPClient,
		queue:   opts.Queue,
		logger:  shared.WithLogger(opts.Logger, "service", "spotify"),
		metrics: opts.Metrics,
	}

	policy := opts.Retry.withDefaults()
	sleep := policy.Sleep
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		s.setLimited(true)
		defer s.setLimited(false)
		return sleep(ctx, d)
	}
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration) {
		s.logger.Warn("rate limited, backing off", "attempt", attempt, "delay", delay)
		if s.metrics != nil {
			s.metrics.RetryAttempts.WithLabelValues("spotify").Inc()
		}
		if onRetry != nil {
			onRetry(attempt, delay)
		}
	}
	s.retry = policy

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Session returns the OAuth session the service authenticates with.
func (s *SpotifyService) Session() *Session {
	return s.session
}

// Queue exposes the request queue so callers can clear pending requests.
func (s *SpotifyService) Queue() *queue.Queue {
	return s.queue
}

// RateLimit returns a snapshot of the rate-limit state.
func (s *SpotifyService) RateLimit() RateLimitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimit
}

func (s *SpotifyService) observeRateLimit(retryAfter time.Duration) {
	s.mu.Lock()
	s.rateLimit.RetryAfterSeconds = int(retryAfter / time.Second)
	s.rateLimit.ObservedAt = time.Now()
	s.mu.Unlock()
}

func (s *SpotifyService) setLimited(limited bool) {
	s.mu.Lock()
	s.rateLimit.IsLimited = limited
	s.mu.Unlock()
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.do(ctx, queue.PriorityMedium, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchAlbums runs an album search, returning at most limit (1 to 50) albums.
func (s *SpotifyService) SearchAlbums(ctx context.Context, query string, limit int) ([]SpotifyAlbum, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty album query", shared.ErrMissingArgument)
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	params := url.Values{
		"q":     {query},
		"type":  {"album"},
		"limit": {strconv.Itoa(limit)},
	}

	var response struct {
		Albums spotifyPage[SpotifyAlbum] `json:"albums"`
	}
	if err := s.do(ctx, queue.PriorityMedium, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return response.Albums.Items, nil
}

// AlbumTracks pages through an album's tracks, one queued request per page.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID string) ([]SpotifyTrack, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}

	fetch := func(ctx context.Context, offset, limit int) ([]SpotifyTrack, int, error) {
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d&offset=%d", url.PathEscape(albumID), limit, offset)

		var page spotifyPage[SpotifyTrack]
		if err := s.do(ctx, queue.PriorityMedium, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, 0, err
		}
		return page.Items, page.Total, nil
	}
	return CollectAll(ctx, fetch, albumTracksPageSize, 0)
}

// CreatePlaylist creates an empty playlist for userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error) {
	if userID == "" || name == "" {
		return nil, fmt.Errorf("%w: user id and playlist name are required", shared.ErrMissingArgument)
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.do(ctx, queue.PriorityHigh, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends URIs to a playlist in one request.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxTracksPerRequest {
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrInvalidArgument, MaxTracksPerRequest, len(uris))
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.do(ctx, queue.PriorityHigh, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.TracksWritten.Add(float64(len(uris)))
	}
	return nil
}

// do queues one request; inside the queue slot the request is retried on 429.
func (s *SpotifyService) do(ctx context.Context, priority queue.Priority, method, endpoint string, body, result any) error {
	_, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return nil, s.retry.Do(ctx, func(ctx context.Context) error {
			return s.send(ctx, method, endpoint, body, result)
		})
	}, priority)
	return err
}

// send performs a single authenticated HTTP request to the Spotify API.
func (s *SpotifyService) send(ctx context.Context, method, endpoint string, body, result any) error {
	token, err := s.session.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.observe(0)
		return shared.NetworkError(err)
	}
	defer resp.Body.Close()
	s.observe(resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.NetworkError(fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr := shared.NewAPIError(resp.StatusCode, spotifyMessage(data, resp.Status))
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		s.observeRateLimit(apiErr.RetryAfter)
		return apiErr
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		s.logger.Warn("authorization rejected, reauthorizing", "status", resp.StatusCode)
		s.session.reauthorize()
		return shared.NewAPIError(resp.StatusCode, spotifyMessage(data, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return shared.NewAPIError(resp.StatusCode, spotifyMessage(data, resp.Status))
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDecode, err)
		}
	}
	return nil
}

func (s *SpotifyService) observe(status int) {
	if s.metrics != nil {
		s.metrics.UpstreamRequests.WithLabelValues("spotify", metrics.StatusClass(status)).Inc()
	}
}

// parseRetryAfter reads a delay-seconds Retry-After value; zero means absent or unparseable.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// spotifyMessage extracts the message of a Spotify error object.
func spotifyMessage(body []byte, fallback string) string {
	var e struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fallback
}

// BuildAlbumQuery builds the combined artist and album search query.
func BuildAlbumQuery(artist, album string) string {
	return fmt.Sprintf(`artist:"%s" album:"%s"`, artist, album)
}
