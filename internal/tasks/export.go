package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/services"
	"github.com/desertthunder/labeltree/internal/shared"
)

const (
	// FallbackCandidates is the album-only search size used when the combined search finds nothing.
	FallbackCandidates = 50

	DefaultSelectionArtists  = 10
	DefaultReleasesPerArtist = 5
	DefaultTracksPerRelease  = 5
)

// ReleaseRequest names one release to resolve on the catalog.
// TrackCount limits how many of its tracks are added; zero adds the whole album.
type ReleaseRequest struct {
	ArtistName   string `json:"artistName"`
	ReleaseTitle string `json:"releaseTitle"`
	TrackCount   int    `json:"trackCount"`
}

// ExportRequest describes a playlist built from a label's releases.
type ExportRequest struct {
	LabelName    string
	PlaylistName string // defaults to "<LabelName> - Label Playlist"
	Description  string // defaults to "Curated playlist from <LabelName> releases"
	Public       bool
	Releases     []ReleaseRequest
}

func (r ExportRequest) name() string {
	if r.PlaylistName != "" {
		return r.PlaylistName
	}
	return fmt.Sprintf("%s - Label Playlist", r.LabelName)
}

func (r ExportRequest) description() string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("Curated playlist from %s releases", r.LabelName)
}

// ReleaseMatch is a release resolved to a catalog album.
type ReleaseMatch struct {
	Release ReleaseRequest
	Album   services.SpotifyAlbum
	Tracks  int // tracks taken from the album, before de-duplication
}

// ExportResult summarizes an export.
type ExportResult struct {
	Playlist          *services.SpotifyPlaylist
	Matches           []ReleaseMatch
	Unmatched         []ReleaseRequest
	Candidates        int      // track URIs collected across all matched albums
	Written           int      // unique URIs written to the playlist
	DuplicatesSkipped int      // Candidates minus unique URIs
	URIs              []string // unique URIs in write order
	RunID             string
}

// RunRecorder persists export outcomes. [repositories.ExportRunRepository] implements it.
type RunRecorder interface {
	Create(run *models.ExportRun) error
}

// ReleaseGroupSource lists an artist's release groups.
type ReleaseGroupSource interface {
	ReleaseGroupsByArtist(ctx context.Context, artistID string) ([]models.ReleaseGroup, error)
}

// ExportOptions configures an [ExportEngine].
type ExportOptions struct {
	BatchSize int // capped at [services.MaxTracksPerRequest]
	Runs      RunRecorder
	Logger    *log.Logger
}

// ExportEngine writes label releases to catalog playlists.
type ExportEngine struct {
	catalog   services.CatalogService
	runs      RunRecorder
	batchSize int
	logger    *log.Logger
}

// NewExportEngine creates an ExportEngine writing to catalog.
func NewExportEngine(catalog services.CatalogService, opts ExportOptions) *ExportEngine {
	if opts.BatchSize <= 0 || opts.BatchSize > services.MaxTracksPerRequest {
		opts.BatchSize = services.MaxTracksPerRequest
	}
	return &ExportEngine{
		catalog:   catalog,
		runs:      opts.Runs,
		batchSize: opts.BatchSize,
		logger:    defaultLogger(opts.Logger, "export"),
	}
}

// Export creates the playlist, resolves every release and writes the de-duplicated tracks.
//
// A release without a matching album is recorded in [ExportResult.Unmatched] and skipped.
// Cancellation, expired authorization and failed writes stop the export; the partial result is
// returned with the error.
func (e *ExportEngine) Export(ctx context.Context, progress chan<- ProgressUpdate, req ExportRequest) (*ExportResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrMissingCredentials)
	}
	if strings.TrimSpace(req.LabelName) == "" && req.PlaylistName == "" {
		return nil, fmt.Errorf("%w: label or playlist name", shared.ErrMissingArgument)
	}
	if len(req.Releases) == 0 {
		return nil, fmt.Errorf("%w: no releases to export", shared.ErrInvalidInput)
	}

	result := &ExportResult{}

	user, err := e.catalog.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	sendProgress(progress, creatingPlaylistUpdate(req.name()))
	playlist, err := e.catalog.CreatePlaylist(ctx, user.ID, req.name(), req.description(), req.Public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	result.Playlist = playlist
	sendProgress(progress, createPlaylistUpdate(playlist))

	seen := make(map[string]bool)
	total := len(req.Releases)

	for i, r := range req.Releases {
		sendProgress(progress, searchAlbumUpdate(i+1, total, r))

		album, err := e.findAlbum(ctx, r)
		if err == nil && album == nil {
			sendProgress(progress, unmatchedUpdate(i+1, total, r))
			result.Unmatched = append(result.Unmatched, r)
			continue
		}

		var tracks []services.SpotifyTrack
		if err == nil {
			tracks, err = e.catalog.AlbumTracks(ctx, album.ID)
		}
		if err != nil {
			if fatal(ctx, err) {
				return result, err
			}
			e.logger.Warn("release skipped", "artist", r.ArtistName, "release", r.ReleaseTitle, "error", err)
			result.Unmatched = append(result.Unmatched, r)
			continue
		}

		if r.TrackCount > 0 && len(tracks) > r.TrackCount {
			tracks = tracks[:r.TrackCount]
		}

		for _, t := range tracks {
			if t.URI == "" {
				continue
			}
			result.Candidates++
			if seen[t.URI] {
				e.logger.Debug("duplicate track", "uri", t.URI, "album", album.Name)
				continue
			}
			seen[t.URI] = true
			result.URIs = append(result.URIs, t.URI)
		}

		result.Matches = append(result.Matches, ReleaseMatch{Release: r, Album: *album, Tracks: len(tracks)})
		sendProgress(progress, fetchTracksUpdate(i+1, total, *album, len(tracks)))
	}
	result.DuplicatesSkipped = result.Candidates - len(result.URIs)

	batches := (len(result.URIs) + e.batchSize - 1) / e.batchSize
	for b := range batches {
		start := b * e.batchSize
		end := min(start+e.batchSize, len(result.URIs))

		if err := e.catalog.AddTracks(ctx, playlist.ID, result.URIs[start:end]); err != nil {
			return result, fmt.Errorf("failed to add tracks %d-%d: %w", start, end, err)
		}
		result.Written = end
		sendProgress(progress, writeTracksUpdate(b+1, batches, end-start))
	}

	e.logger.Info("export complete",
		"playlist", playlist.ID, "written", result.Written,
		"duplicates", result.DuplicatesSkipped, "unmatched", len(result.Unmatched))

	e.record(req, result)
	return result, nil
}

// findAlbum runs the combined artist+album search, then an album-only search filtered by [MatchArtist].
// A nil album with a nil error means no candidate matched.
func (e *ExportEngine) findAlbum(ctx context.Context, r ReleaseRequest) (*services.SpotifyAlbum, error) {
	albums, err := e.catalog.SearchAlbums(ctx, services.BuildAlbumQuery(r.ArtistName, r.ReleaseTitle), 1)
	if err != nil {
		return nil, err
	}
	if len(albums) > 0 {
		return &albums[0], nil
	}

	albums, err = e.catalog.SearchAlbums(ctx, fmt.Sprintf(`album:"%s"`, r.ReleaseTitle), FallbackCandidates)
	if err != nil {
		return nil, err
	}
	for i, a := range albums {
		for _, artist := range a.Artists {
			if MatchArtist(artist.Name, r.ArtistName) {
				return &albums[i], nil
			}
		}
	}
	return nil, nil
}

func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, shared.ErrAuthorizationExpired) ||
		errors.Is(err, shared.ErrNotAuthenticated)
}

func (e *ExportEngine) record(req ExportRequest, result *ExportResult) {
	if e.runs == nil {
		return
	}
	run := &models.ExportRun{
		PlaylistID:        result.Playlist.ID,
		PlaylistName:      result.Playlist.Name,
		ReleasesRequested: len(req.Releases),
		ReleasesUnmatched: len(result.Unmatched),
		TracksWritten:     result.Written,
		DuplicatesSkipped: result.DuplicatesSkipped,
	}
	if err := e.runs.Create(run); err != nil {
		e.logger.Warn("failed to record export run", "error", err)
		return
	}
	result.RunID = run.ID
}

// SelectionOptions bounds [ExportEngine.SelectFromRoster]. Zero values select the defaults.
type SelectionOptions struct {
	Artists           int
	ReleasesPerArtist int
	TracksPerRelease  int
}

// SelectFromRoster picks release requests for a label playlist: for the first opts.Artists roster
// entries, up to opts.ReleasesPerArtist album or EP release groups each, newest first.
// Artists whose release groups cannot be fetched are skipped.
func (e *ExportEngine) SelectFromRoster(ctx context.Context, source ReleaseGroupSource, roster []models.RosterEntry, opts SelectionOptions) ([]ReleaseRequest, error) {
	if opts.Artists <= 0 {
		opts.Artists = DefaultSelectionArtists
	}
	if opts.ReleasesPerArtist <= 0 {
		opts.ReleasesPerArtist = DefaultReleasesPerArtist
	}
	if opts.TracksPerRelease < 0 {
		opts.TracksPerRelease = 0
	} else if opts.TracksPerRelease == 0 {
		opts.TracksPerRelease = DefaultTracksPerRelease
	}

	var out []ReleaseRequest
	for i, entry := range roster {
		if i >= opts.Artists {
			break
		}

		groups, err := source.ReleaseGroupsByArtist(ctx, entry.Artist.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("release groups unavailable", "artist", entry.Artist.Name, "error", err)
			continue
		}

		out = append(out, selectGroups(entry.Artist.Name, groups, opts)...)
	}
	return out, nil
}

func selectGroups(artist string, groups []models.ReleaseGroup, opts SelectionOptions) []ReleaseRequest {
	var eligible []models.ReleaseGroup
	for _, g := range groups {
		if g.PrimaryType == "Album" || g.PrimaryType == "EP" {
			eligible = append(eligible, g)
		}
	}
	sortNewestFirst(eligible)

	var out []ReleaseRequest
	for _, g := range eligible {
		if len(out) >= opts.ReleasesPerArtist {
			break
		}
		out = append(out, ReleaseRequest{ArtistName: artist, ReleaseTitle: g.Title, TrackCount: opts.TracksPerRelease})
	}
	return out
}

func sortNewestFirst(groups []models.ReleaseGroup) {
	slices.SortStableFunc(groups, func(a, b models.ReleaseGroup) int {
		return strings.Compare(b.FirstReleaseDate, a.FirstReleaseDate)
	})
}
