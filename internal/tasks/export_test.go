package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/services"
	"github.com/desertthunder/labeltree/internal/shared"
)

type mockCatalog struct {
	albums    map[string][]services.SpotifyAlbum // by query
	tracks    map[string][]services.SpotifyTrack // by album ID
	tracksErr map[string]error
	searchErr error
	addErr    error

	queries  []string
	limits   []int
	created  []string
	batches  [][]string
	playlist *services.SpotifyPlaylist
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		albums:    make(map[string][]services.SpotifyAlbum),
		tracks:    make(map[string][]services.SpotifyTrack),
		tracksErr: make(map[string]error),
	}
}

func (m *mockCatalog) Me(ctx context.Context) (*services.SpotifyUser, error) {
	return &services.SpotifyUser{ID: "user-1"}, nil
}

func (m *mockCatalog) SearchAlbums(ctx context.Context, query string, limit int) ([]services.SpotifyAlbum, error) {
	m.queries = append(m.queries, query)
	m.limits = append(m.limits, limit)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.albums[query], nil
}

func (m *mockCatalog) AlbumTracks(ctx context.Context, albumID string) ([]services.SpotifyTrack, error) {
	if err := m.tracksErr[albumID]; err != nil {
		return nil, err
	}
	return m.tracks[albumID], nil
}

func (m *mockCatalog) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
	m.created = append(m.created, name+"|"+description)
	m.playlist = &services.SpotifyPlaylist{ID: "pl-1", Name: name, Description: description, Public: public, Owner: services.Owner{ID: userID}}
	return m.playlist, nil
}

func (m *mockCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.batches = append(m.batches, append([]string(nil), uris...))
	return nil
}

func album(id, artist string) services.SpotifyAlbum {
	return services.SpotifyAlbum{ID: id, Name: "Album " + id, Artists: []services.SpotifyArtist{{Name: artist}}}
}

func trackList(uris ...string) []services.SpotifyTrack {
	var out []services.SpotifyTrack
	for _, u := range uris {
		out = append(out, services.SpotifyTrack{URI: u})
	}
	return out
}

type mockRecorder struct {
	runs []*models.ExportRun
	err  error
}

func (m *mockRecorder) Create(run *models.ExportRun) error {
	if m.err != nil {
		return m.err
	}
	run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	m.runs = append(m.runs, run)
	return nil
}

func newTestExport(c *mockCatalog, runs RunRecorder) *ExportEngine {
	return NewExportEngine(c, ExportOptions{Runs: runs, Logger: shared.NewLogger(io.Discard)})
}

func TestExport(t *testing.T) {
	t.Run("Dedupes Across Releases", func(t *testing.T) {
		c := newMockCatalog()
		c.albums[services.BuildAlbumQuery("Plaid", "Not For Threes")] = []services.SpotifyAlbum{album("a1", "Plaid")}
		c.albums[services.BuildAlbumQuery("Plaid", "Double Figure")] = []services.SpotifyAlbum{album("a2", "Plaid")}
		c.tracks["a1"] = trackList("t1", "t2", "t3", "t4")
		c.tracks["a2"] = trackList("t2", "t5", "t1")
		runs := &mockRecorder{}

		result, err := newTestExport(c, runs).Export(context.Background(), nil, ExportRequest{
			LabelName: "Warp",
			Public:    true,
			Releases: []ReleaseRequest{
				{ArtistName: "Plaid", ReleaseTitle: "Not For Threes", TrackCount: 3},
				{ArtistName: "Plaid", ReleaseTitle: "Double Figure"},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if c.created[0] != "Warp - Label Playlist|Curated playlist from Warp releases" {
			t.Errorf("unexpected playlist %q", c.created[0])
		}
		if result.Candidates != 6 || result.Written != 4 || result.DuplicatesSkipped != 2 {
			t.Errorf("expected 6 candidates, 4 written, 2 duplicates; got %d/%d/%d",
				result.Candidates, result.Written, result.DuplicatesSkipped)
		}
		if got := strings.Join(result.URIs, ","); got != "t1,t2,t3,t5" {
			t.Errorf("expected first-seen order, got %s", got)
		}
		if len(c.batches) != 1 || len(c.batches[0]) != 4 {
			t.Errorf("expected one batch of 4, got %v", c.batches)
		}
		if len(runs.runs) != 1 || runs.runs[0].TracksWritten != 4 || result.RunID != "run-1" {
			t.Errorf("expected recorded run, got %+v", runs.runs)
		}
	})

	t.Run("Fallback Search Uses Artist Matching", func(t *testing.T) {
		c := newMockCatalog()
		c.albums[`album:"Selected Ambient Works"`] = []services.SpotifyAlbum{
			album("wrong", "Somebody Else"),
			album("right", "Aphex Twin feat. Nobody"),
		}
		c.tracks["right"] = trackList("t1")

		result, err := newTestExport(c, nil).Export(context.Background(), nil, ExportRequest{
			LabelName: "Warp",
			Releases:  []ReleaseRequest{{ArtistName: "Aphex Twin", ReleaseTitle: "Selected Ambient Works"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(c.queries) != 2 || c.limits[1] != FallbackCandidates {
			t.Errorf("expected combined then album-only search, got %v %v", c.queries, c.limits)
		}
		if len(result.Matches) != 1 || result.Matches[0].Album.ID != "right" {
			t.Errorf("expected match on 'right', got %+v", result.Matches)
		}
	})

	t.Run("Unmatched Release Continues", func(t *testing.T) {
		c := newMockCatalog()
		c.albums[services.BuildAlbumQuery("Known", "Found")] = []services.SpotifyAlbum{album("a1", "Known")}
		c.tracks["a1"] = trackList("t1", "t2")

		result, err := newTestExport(c, nil).Export(context.Background(), nil, ExportRequest{
			LabelName: "Label",
			Releases: []ReleaseRequest{
				{ArtistName: "Unknown", ReleaseTitle: "Missing"},
				{ArtistName: "Known", ReleaseTitle: "Found"},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Unmatched) != 1 || result.Unmatched[0].ArtistName != "Unknown" {
			t.Errorf("expected one unmatched release, got %+v", result.Unmatched)
		}
		if result.Written != 2 {
			t.Errorf("expected 2 tracks written, got %d", result.Written)
		}
	})

	t.Run("Writes In Batches", func(t *testing.T) {
		c := newMockCatalog()
		var uris []string
		for i := range 250 {
			uris = append(uris, fmt.Sprintf("spotify:track:%d", i))
		}
		c.albums[services.BuildAlbumQuery("A", "Big")] = []services.SpotifyAlbum{album("big", "A")}
		c.tracks["big"] = trackList(uris...)

		result, err := newTestExport(c, nil).Export(context.Background(), nil, ExportRequest{
			LabelName: "Label",
			Releases:  []ReleaseRequest{{ArtistName: "A", ReleaseTitle: "Big"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(c.batches) != 3 || len(c.batches[0]) != 100 || len(c.batches[2]) != 50 {
			t.Errorf("expected batches of 100/100/50, got %d batches", len(c.batches))
		}
		if result.Written != 250 {
			t.Errorf("expected 250 written, got %d", result.Written)
		}
	})

	t.Run("Authorization Failure Stops Export", func(t *testing.T) {
		c := newMockCatalog()
		c.searchErr = shared.NewAPIError(http.StatusUnauthorized, "expired")

		result, err := newTestExport(c, nil).Export(context.Background(), nil, ExportRequest{
			LabelName: "Label",
			Releases:  []ReleaseRequest{{ArtistName: "A", ReleaseTitle: "B"}, {ArtistName: "C", ReleaseTitle: "D"}},
		})
		if !errors.Is(err, shared.ErrAuthorizationExpired) {
			t.Fatalf("expected ErrAuthorizationExpired, got %v", err)
		}
		if len(c.queries) != 1 {
			t.Errorf("expected export to stop after first search, got %d", len(c.queries))
		}
		if result == nil || result.Playlist == nil {
			t.Error("expected partial result with playlist")
		}
	})

	t.Run("Track Fetch Failure Skips Release", func(t *testing.T) {
		c := newMockCatalog()
		c.albums[services.BuildAlbumQuery("A", "B")] = []services.SpotifyAlbum{album("a1", "A")}
		c.tracksErr["a1"] = shared.NewAPIError(http.StatusInternalServerError, "boom")

		result, err := newTestExport(c, nil).Export(context.Background(), nil, ExportRequest{
			LabelName: "Label",
			Releases:  []ReleaseRequest{{ArtistName: "A", ReleaseTitle: "B"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Unmatched) != 1 || len(c.batches) != 0 {
			t.Errorf("expected skipped release and no writes, got %+v", result)
		}
	})

	t.Run("Write Failure Returns Partial Result", func(t *testing.T) {
		c := newMockCatalog()
		c.albums[services.BuildAlbumQuery("A", "B")] = []services.SpotifyAlbum{album("a1", "A")}
		c.tracks["a1"] = trackList("t1")
		c.addErr = shared.NewAPIError(http.StatusTooManyRequests, "slow down")
		runs := &mockRecorder{}

		result, err := newTestExport(c, runs).Export(context.Background(), nil, ExportRequest{
			LabelName: "Label",
			Releases:  []ReleaseRequest{{ArtistName: "A", ReleaseTitle: "B"}},
		})
		if !errors.Is(err, shared.ErrRateLimitExceeded) {
			t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
		}
		if result.Written != 0 || len(runs.runs) != 0 {
			t.Errorf("expected nothing written or recorded, got %+v", result)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		e := newTestExport(newMockCatalog(), nil)
		if _, err := e.Export(context.Background(), nil, ExportRequest{Releases: []ReleaseRequest{{}}}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := e.Export(context.Background(), nil, ExportRequest{LabelName: "L"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Recorder Failure Is Not Fatal", func(t *testing.T) {
		c := newMockCatalog()
		c.albums[services.BuildAlbumQuery("A", "B")] = []services.SpotifyAlbum{album("a1", "A")}
		c.tracks["a1"] = trackList("t1")

		result, err := newTestExport(c, &mockRecorder{err: errors.New("disk full")}).Export(context.Background(), nil, ExportRequest{
			LabelName: "Label",
			Releases:  []ReleaseRequest{{ArtistName: "A", ReleaseTitle: "B"}},
		})
		if err != nil || result.RunID != "" {
			t.Errorf("expected success without run id, got %v %q", err, result.RunID)
		}
	})
}

type mockGroups map[string][]models.ReleaseGroup

func (m mockGroups) ReleaseGroupsByArtist(ctx context.Context, artistID string) ([]models.ReleaseGroup, error) {
	if artistID == "broken" {
		return nil, shared.NewAPIError(http.StatusServiceUnavailable, "down")
	}
	return m[artistID], nil
}

func TestSelectFromRoster(t *testing.T) {
	groups := mockGroups{
		"a1": {
			{Title: "Old LP", PrimaryType: "Album", FirstReleaseDate: "1995"},
			{Title: "Single", PrimaryType: "Single", FirstReleaseDate: "2001"},
			{Title: "New EP", PrimaryType: "EP", FirstReleaseDate: "2003-05"},
			{Title: "Mid LP", PrimaryType: "Album", FirstReleaseDate: "1999-10-01"},
		},
		"a2": {{Title: "Only", PrimaryType: "Album"}},
	}
	roster := []models.RosterEntry{
		{Artist: models.Artist{ID: "a1", Name: "One"}},
		{Artist: models.Artist{ID: "broken", Name: "Broken"}},
		{Artist: models.Artist{ID: "a2", Name: "Two"}},
	}

	e := newTestExport(newMockCatalog(), nil)

	t.Run("Albums And EPs Newest First", func(t *testing.T) {
		got, err := e.SelectFromRoster(context.Background(), groups, roster, SelectionOptions{ReleasesPerArtist: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 selections, got %+v", got)
		}
		if got[0].ReleaseTitle != "New EP" || got[1].ReleaseTitle != "Mid LP" || got[2].ArtistName != "Two" {
			t.Errorf("unexpected selections %+v", got)
		}
		if got[0].TrackCount != DefaultTracksPerRelease {
			t.Errorf("expected default track count, got %d", got[0].TrackCount)
		}
	})

	t.Run("Artist Limit", func(t *testing.T) {
		got, err := e.SelectFromRoster(context.Background(), groups, roster, SelectionOptions{Artists: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 releases for the first artist, got %d", len(got))
		}
	})
}
