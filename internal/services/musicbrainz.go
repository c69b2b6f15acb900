// MusicBrainz web service client
//
// API reference: https://musicbrainz.org/doc/MusicBrainz_API
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/labeltree/internal/cache"
	"github.com/desertthunder/labeltree/internal/metrics"
	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/queue"
	"github.com/desertthunder/labeltree/internal/repositories"
	"github.com/desertthunder/labeltree/internal/shared"
	"github.com/goccy/go-json"
)

const (
	musicBrainzBaseURL = "https://musicbrainz.org/ws/2"
	coverArtBaseURL    = "https://coverartarchive.org"
	defaultUserAgent   = "labeltree/0.1.0 ( https://github.com/desertthunder/labeltree )"
	defaultMaxRecords  = 1000
)

// ArtistSearchResult is one page of artist search hits, best score first.
type ArtistSearchResult struct {
	Count   int             `json:"count"`
	Offset  int             `json:"offset"`
	Artists []models.Artist `json:"artists"`
}

// LabelSearchResult is one page of label search hits, best score first.
type LabelSearchResult struct {
	Count  int            `json:"count"`
	Offset int            `json:"offset"`
	Labels []models.Label `json:"labels"`
}

type releasePage struct {
	Count    int              `json:"release-count"`
	Offset   int              `json:"release-offset"`
	Releases []models.Release `json:"releases"`
}

type releaseGroupPage struct {
	Count         int                   `json:"release-group-count"`
	Offset        int                   `json:"release-group-offset"`
	ReleaseGroups []models.ReleaseGroup `json:"release-groups"`
}

// MusicBrainzOptions configures a [MusicBrainzService].
type MusicBrainzOptions struct {
	Config     shared.MusicBrainzConfig
	HTTPClient *http.Client
	// Queue serializes requests; one is created from Config.Interval when nil.
	Queue *queue.Queue
	// Store is the optional SQLite tier behind the in-memory caches.
	Store   *repositories.ResponseCacheRepository
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Cache   []cache.Option
}

// MusicBrainzService reads artists, labels and releases from MusicBrainz.
//
// Every request goes through a single rate-limited queue at medium priority and
// is answered from the in-memory cache, then the SQLite store, before touching
// the network. A network response populates both tiers.
type MusicBrainzService struct {
	baseURL     string
	coverArtURL string
	userAgent   string
	pageSize    int
	maxRecords  int

	client  *http.Client
	queue   *queue.Queue
	store   *repositories.ResponseCacheRepository
	logger  *log.Logger
	metrics *metrics.Metrics

	artistSearches *cache.Cache[ArtistSearchResult]
	labelSearches  *cache.Cache[LabelSearchResult]
	labels         *cache.Cache[models.Label]
	releasePages   *cache.Cache[releasePage]
	groupPages     *cache.Cache[releaseGroupPage]
	releases       *cache.Cache[models.Release]
	coverArt       *cache.Cache[*models.CoverArt]
}

// NewMusicBrainzService creates a client, filling unset configuration with defaults.
func NewMusicBrainzService(opts MusicBrainzOptions) *MusicBrainzService {
	cfg := opts.Config
	if cfg.BaseURL == "" {
		cfg.BaseURL = musicBrainzBaseURL
	}
	if cfg.CoverArtURL == "" {
		cfg.CoverArtURL = coverArtBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Queue == nil {
		opts.Queue = queue.New(queue.Options{
			Name:     "musicbrainz",
			Interval: cfg.Interval(),
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		})
	}

	copts := opts.Cache
	if opts.Metrics != nil {
		copts = append(copts, cache.WithMetrics(opts.Metrics, "memory"))
	}
	ttl := cfg.CacheTTL()

	return &MusicBrainzService{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		coverArtURL:    strings.TrimRight(cfg.CoverArtURL, "/"),
		userAgent:      cfg.UserAgent,
		pageSize:       cfg.PageSize,
		maxRecords:     cfg.MaxRecords,
		client:         opts.HTTPClient,
		queue:          opts.Queue,
		store:          opts.Store,
		logger:         shared.WithLogger(opts.Logger, "service", "musicbrainz"),
		metrics:        opts.Metrics,
		artistSearches: cache.New[ArtistSearchResult](ttl, copts...),
		labelSearches:  cache.New[LabelSearchResult](ttl, copts...),
		labels:         cache.New[models.Label](ttl, copts...),
		releasePages:   cache.New[releasePage](ttl, copts...),
		groupPages:     cache.New[releaseGroupPage](ttl, copts...),
		releases:       cache.New[models.Release](ttl, copts...),
		coverArt:       cache.New[*models.CoverArt](ttl, copts...),
	}
}

func (s *MusicBrainzService) Name() string {
	return "MusicBrainz"
}

// Queue exposes the request queue so callers can clear pending lookups.
func (s *MusicBrainzService) Queue() *queue.Queue {
	return s.queue
}

// SearchArtists runs a Lucene artist search.
func (s *MusicBrainzService) SearchArtists(ctx context.Context, query string, limit, offset int) (*ArtistSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty artist query", shared.ErrMissingArgument)
	}
	params := s.searchParams(query, limit, offset)

	res, err := fetchJSON(ctx, s, s.artistSearches, "artist-search", s.baseURL+"/artist", params)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchLabels runs a Lucene label search.
func (s *MusicBrainzService) SearchLabels(ctx context.Context, query string, limit, offset int) (*LabelSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty label query", shared.ErrMissingArgument)
	}
	params := s.searchParams(query, limit, offset)

	res, err := fetchJSON(ctx, s, s.labelSearches, "label-search", s.baseURL+"/label", params)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Label fetches a label with its label relations, aliases and tags.
func (s *MusicBrainzService) Label(ctx context.Context, id string) (*models.Label, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: label id", shared.ErrMissingArgument)
	}
	params := url.Values{"inc": {"label-rels aliases tags"}}

	label, err := fetchJSON(ctx, s, s.labels, "label", s.baseURL+"/label/"+url.PathEscape(id), params)
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// ReleasesByLabel collects the releases citing a label.
func (s *MusicBrainzService) ReleasesByLabel(ctx context.Context, labelID string) ([]models.Release, error) {
	if labelID == "" {
		return nil, fmt.Errorf("%w: label id", shared.ErrMissingArgument)
	}
	return CollectAll(ctx, s.releasePageFunc("label", labelID), s.pageSize, s.maxRecords)
}

// ReleasesByArtist collects the releases credited to an artist.
func (s *MusicBrainzService) ReleasesByArtist(ctx context.Context, artistID string) ([]models.Release, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	return CollectAll(ctx, s.releasePageFunc("artist", artistID), s.pageSize, s.maxRecords)
}

// ReleaseGroupsByArtist collects an artist's release groups with their tags.
func (s *MusicBrainzService) ReleaseGroupsByArtist(ctx context.Context, artistID string) ([]models.ReleaseGroup, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}

	fetch := func(ctx context.Context, offset, limit int) ([]models.ReleaseGroup, int, error) {
		params := url.Values{
			"artist": {artistID},
			"inc":    {"tags genres"},
			"limit":  {fmt.Sprint(limit)},
			"offset": {fmt.Sprint(offset)},
		}
		page, err := fetchJSON(ctx, s, s.groupPages, "release-group", s.baseURL+"/release-group", params)
		if err != nil {
			return nil, 0, err
		}
		return page.ReleaseGroups, page.Count, nil
	}
	return CollectAll(ctx, fetch, s.pageSize, s.maxRecords)
}

// Release fetches one release with its track listing, credits and labels.
func (s *MusicBrainzService) Release(ctx context.Context, id string) (*models.Release, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: release id", shared.ErrMissingArgument)
	}
	params := url.Values{"inc": {"recordings artist-credits labels release-groups"}}

	release, err := fetchJSON(ctx, s, s.releases, "release", s.baseURL+"/release/"+url.PathEscape(id), params)
	if err != nil {
		return nil, err
	}
	return &release, nil
}

// CoverArt fetches the Cover Art Archive listing for a release.
// A release without artwork yields nil and no error.
func (s *MusicBrainzService) CoverArt(ctx context.Context, releaseID string) (*models.CoverArt, error) {
	if releaseID == "" {
		return nil, fmt.Errorf("%w: release id", shared.ErrMissingArgument)
	}

	art, err := fetchJSON(ctx, s, s.coverArt, "cover-art", s.coverArtURL+"/release/"+url.PathEscape(releaseID), nil)
	if err != nil {
		if apiErr, ok := shared.AsAPIError(err); ok && apiErr.Kind == shared.KindNotFound {
			s.logger.Debug("no cover art", "release", releaseID)
			return nil, nil
		}
		return nil, err
	}
	return art, nil
}

func (s *MusicBrainzService) searchParams(query string, limit, offset int) url.Values {
	if limit <= 0 || limit > DefaultPageSize {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return url.Values{
		"query":  {query},
		"limit":  {fmt.Sprint(limit)},
		"offset": {fmt.Sprint(offset)},
	}
}

func (s *MusicBrainzService) releasePageFunc(entity, id string) PageFunc[models.Release] {
	return func(ctx context.Context, offset, limit int) ([]models.Release, int, error) {
		params := url.Values{
			entity:   {id},
			"inc":    {"labels artist-credits release-groups"},
			"limit":  {fmt.Sprint(limit)},
			"offset": {fmt.Sprint(offset)},
		}
		page, err := fetchJSON(ctx, s, s.releasePages, "release", s.baseURL+"/release", params)
		if err != nil {
			return nil, 0, err
		}
		return page.Releases, page.Count, nil
	}
}

// fetchJSON resolves a GET through the memory cache, the SQLite store and finally the queue.
func fetchJSON[T any](ctx context.Context, s *MusicBrainzService, c *cache.Cache[T], resource, endpoint string, params url.Values) (T, error) {
	key := cache.Key(endpoint, params)
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	var out T
	body, err := s.body(ctx, key, resource, endpoint, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", shared.ErrDecode, resource, err)
	}

	c.Put(key, out)
	return out, nil
}

func (s *MusicBrainzService) body(ctx context.Context, key, resource, endpoint string, params url.Values) ([]byte, error) {
	if s.store != nil {
		body, ok, err := s.store.Get(key)
		if err != nil {
			s.logger.Warn("response store read failed", "key", key, "error", err)
		} else if ok {
			return body, nil
		}
	}

	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	body, err := queue.Do(ctx, s.queue, queue.PriorityMedium, func(ctx context.Context) ([]byte, error) {
		return s.get(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.Put(key, resource, body); err != nil {
			s.logger.Warn("response store write failed", "key", key, "error", err)
		}
	}
	return body, nil
}

func (s *MusicBrainzService) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("request", "url", target)

	resp, err := s.client.Do(req)
	if err != nil {
		s.observe(0)
		return nil, shared.NetworkError(err)
	}
	defer resp.Body.Close()
	s.observe(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.NetworkError(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := shared.NewAPIError(resp.StatusCode, musicBrainzMessage(body, resp.Status))
		// MusicBrainz has no user authorization; a 401 or 403 means a rejected request, usually the User-Agent.
		if apiErr.Kind == shared.KindAuthorization {
			apiErr.Kind = shared.KindClient
		}
		return nil, apiErr
	}
	return body, nil
}

func (s *MusicBrainzService) observe(status int) {
	if s.metrics != nil {
		s.metrics.UpstreamRequests.WithLabelValues("musicbrainz", metrics.StatusClass(status)).Inc()
	}
}

// musicBrainzMessage extracts the "error" field MusicBrainz returns on failures.
func musicBrainzMessage(body []byte, fallback string) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return fallback
}
