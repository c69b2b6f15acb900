package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/metrics"
	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/queue"
	"github.com/desertthunder/labeltree/internal/repositories"
	"github.com/desertthunder/labeltree/internal/services"
	"github.com/desertthunder/labeltree/internal/shared"
	tu "github.com/desertthunder/labeltree/internal/testing"
)

func newMusicBrainz(t *testing.T, handler http.HandlerFunc) *services.MusicBrainzService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return services.NewMusicBrainzService(services.MusicBrainzOptions{
		Config: shared.MusicBrainzConfig{
			BaseURL:    server.URL,
			UserAgent:  "labeltree-test/1.0 ( test@example.com )",
			IntervalMS: 1,
		},
		Logger: shared.NewLogger(&bytes.Buffer{}),
	})
}

func newSpotify(t *testing.T, handler http.HandlerFunc) *services.SpotifyService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session, err := services.NewSession(shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		AccessToken:  "test_access_token",
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	svc, err := services.NewSpotifyService(services.SpotifyOptions{
		Session: session,
		BaseURL: server.URL,
		Queue:   queue.New(queue.Options{Name: "spotify-test", Interval: time.Millisecond}),
		Logger:  shared.NewLogger(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("failed to create spotify service: %v", err)
	}
	return svc
}

func newRuns(t *testing.T) *repositories.ExportRunRepository {
	t.Helper()
	db, err := shared.OpenCache(shared.CacheConfig{DatabasePath: shared.MemoryDatabase})
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewExportRunRepository(db)
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "labeltree", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"labeltree"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			m := metrics.New()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Metrics:    m,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.metrics != m {
				t.Error("expected metrics to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output == nil {
				t.Error("expected default output to be set")
			}
			if runner.metrics == nil {
				t.Error("expected default metrics to be set")
			}
			if runner.now == nil {
				t.Error("expected default clock to be set")
			}
		})
	})

	t.Run("Reauthorize Opens Browser", func(t *testing.T) {
		newRunner := func(t *testing.T, open func(string) error) (*Runner, *services.SpotifyService, *bytes.Buffer) {
			spotify := newSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				tu.WriteJSON(t, w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"status": 401, "message": "The access token expired"},
				})
			})
			logs := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{
				Config:      shared.DefaultConfig(),
				MusicBrainz: newMusicBrainz(t, func(w http.ResponseWriter, r *http.Request) {}),
				Session:     spotify.Session(),
				Spotify:     spotify,
				Runs:        newRuns(t),
				Logger:      shared.NewLogger(logs),
				Output:      &bytes.Buffer{},
				OpenBrowser: open,
			})
			if err := runner.init(); err != nil {
				t.Fatalf("unexpected init error: %v", err)
			}
			return runner, spotify, logs
		}

		t.Run("On Rejected Token", func(t *testing.T) {
			var opened []string
			_, spotify, _ := newRunner(t, func(url string) error {
				opened = append(opened, url)
				return nil
			})

			if _, err := spotify.Me(context.Background()); !errors.Is(err, shared.ErrAuthorizationExpired) {
				t.Fatalf("expected ErrAuthorizationExpired, got %v", err)
			}
			if len(opened) != 1 || !strings.Contains(opened[0], "accounts.spotify.com/authorize") {
				t.Errorf("expected one authorization redirect, got %v", opened)
			}
		})

		t.Run("Logs URL When Browser Fails", func(t *testing.T) {
			_, spotify, logs := newRunner(t, func(url string) error {
				return errors.New("no display")
			})

			spotify.Me(context.Background())
			if !strings.Contains(logs.String(), "accounts.spotify.com") {
				t.Errorf("expected authorization URL in logs, got %q", logs.String())
			}
		})
	})

	t.Run("CancelPending", func(t *testing.T) {
		started, unblock := make(chan struct{}), make(chan struct{})
		mb := newMusicBrainz(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/first") {
				close(started)
				<-unblock
			}
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "first", "name": "Warp"})
		})
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), MusicBrainz: mb, Output: &bytes.Buffer{}})

		firstErr := make(chan error, 1)
		go func() {
			_, err := mb.Label(context.Background(), "first")
			firstErr <- err
		}()
		<-started

		secondErr := make(chan error, 1)
		go func() {
			_, err := mb.Label(context.Background(), "second")
			secondErr <- err
		}()
		deadline := time.Now().Add(2 * time.Second)
		for mb.Queue().Len() != 1 {
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for the second lookup to queue")
			}
			time.Sleep(time.Millisecond)
		}

		if n := runner.CancelPending(); n != 1 {
			t.Errorf("expected 1 cancelled request, got %d", n)
		}
		if err := <-secondErr; !errors.Is(err, shared.ErrRequestCancelled) {
			t.Errorf("expected ErrRequestCancelled, got %v", err)
		}

		close(unblock)
		if err := <-firstErr; err != nil {
			t.Errorf("expected in-flight lookup to finish, got %v", err)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("compact", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"count": 2}, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.String() != "{\"count\":2}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("pretty", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"count": 2}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(output.String(), "\n  \"count\": 2") {
				t.Errorf("expected indented output, got %q", output.String())
			}
		})

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writeJSON("x", false); err == nil {
				t.Error("expected error from failing writer")
			}
		})
	})
}

func TestParseReleases(t *testing.T) {
	t.Run("Artist And Title", func(t *testing.T) {
		releases, err := parseReleases([]string{"Aphex Twin::Syro", " Boards of Canada :: Tomorrow's Harvest "}, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(releases) != 2 {
			t.Fatalf("expected 2 releases, got %d", len(releases))
		}
		if releases[1].ArtistName != "Boards of Canada" || releases[1].ReleaseTitle != "Tomorrow's Harvest" {
			t.Errorf("unexpected release %+v", releases[1])
		}
		if releases[0].TrackCount != 3 {
			t.Errorf("expected track count 3, got %d", releases[0].TrackCount)
		}
	})

	for _, bad := range []string{"Syro", "::Syro", "Aphex Twin::"} {
		t.Run("Rejects "+bad, func(t *testing.T) {
			if _, err := parseReleases([]string{bad}, 0); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	t.Run("Comma Separated And Repeated", func(t *testing.T) {
		got, err := parseFilter([]string{"parent,Imprint", "holding"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []models.RelationshipType{models.RelParent, models.RelImprint, models.RelHolding}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("expected %v, got %v", want, got)
			}
		}
	})

	t.Run("Empty", func(t *testing.T) {
		got, err := parseFilter(nil)
		if err != nil || len(got) != 0 {
			t.Errorf("expected empty filter, got %v (%v)", got, err)
		}
	})

	t.Run("Unknown Type", func(t *testing.T) {
		if _, err := parseFilter([]string{"distributor"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestCreditedArtist(t *testing.T) {
	releases := []models.Release{{
		ArtistCredit: []models.ArtistCredit{{Artist: models.Artist{ID: "a1", Name: "Autechre"}}},
	}}

	if got := creditedArtist("a1", nil, releases); got.Name != "Autechre" {
		t.Errorf("expected Autechre, got %s", got.Name)
	}
	if got := creditedArtist("missing", nil, releases); got.ID != "missing" || got.Name != "missing" {
		t.Errorf("expected placeholder artist, got %+v", got)
	}
}

func TestCommands(t *testing.T) {
	t.Run("Label Roster JSON", func(t *testing.T) {
		mb := newMusicBrainz(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/release" || r.URL.Query().Get("label") != "warp-id" {
				t.Errorf("unexpected request %s", r.URL)
			}
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"release-count": 2,
				"releases": []map[string]any{
					{"id": "r1", "title": "Syro", "date": "2014-09-19", "artist-credit": []map[string]any{
						{"name": "Aphex Twin", "artist": map[string]any{"id": "a1", "name": "Aphex Twin"}},
					}},
					{"id": "r2", "title": "Collapse", "date": "2018-09-14", "artist-credit": []map[string]any{
						{"name": "Aphex Twin", "artist": map[string]any{"id": "a1", "name": "Aphex Twin"}},
					}},
				},
			})
		})

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Config:      shared.DefaultConfig(),
			MusicBrainz: mb,
			Output:      output,
			Now:         func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) },
		})

		if err := run(runner, "label", "roster", "--json", "warp-id"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := output.String()
		if !strings.Contains(got, `"releaseCount":2`) || !strings.Contains(got, `"relationshipType":"current"`) {
			t.Errorf("unexpected roster output %q", got)
		}
	})

	t.Run("Missing Argument", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Output: &bytes.Buffer{}})

		if err := run(runner, "label", "tree"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Export Requires Spotify", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Output: &bytes.Buffer{}})

		if err := run(runner, "playlist", "export", "warp-id"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Playlist Export Records Run", func(t *testing.T) {
		mb := newMusicBrainz(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "warp-id", "name": "Warp"})
		})

		var mu sync.Mutex
		var written []string
		spotify := newSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/me":
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "u1"})
			case r.URL.Path == "/search":
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{"albums": map[string]any{
					"items": []map[string]any{{"id": "al1", "name": "Syro", "artists": []map[string]any{{"name": "Aphex Twin"}}}},
					"total": 1,
				}})
			case r.URL.Path == "/albums/al1/tracks":
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{
					"items": []map[string]any{{"uri": "spotify:track:1"}, {"uri": "spotify:track:2"}},
					"total": 2,
				})
			case r.URL.Path == "/users/u1/playlists":
				var body map[string]any
				tu.MustReadBody(t, r.Body, &body)
				if body["name"] != "Warp - Label Playlist" {
					t.Errorf("unexpected playlist name %v", body["name"])
				}
				tu.WriteJSON(t, w, http.StatusCreated, map[string]any{"id": "p1", "name": body["name"]})
			case r.URL.Path == "/playlists/p1/tracks":
				var body struct {
					URIs []string `json:"uris"`
				}
				tu.MustReadBody(t, r.Body, &body)
				mu.Lock()
				written = append(written, body.URIs...)
				mu.Unlock()
				tu.WriteJSON(t, w, http.StatusCreated, map[string]any{"snapshot_id": "s1"})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL)
				w.WriteHeader(http.StatusNotFound)
			}
		})

		runs := newRuns(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Config:      shared.DefaultConfig(),
			MusicBrainz: mb,
			Spotify:     spotify,
			Runs:        runs,
			Output:      output,
			Logger:      shared.NewLogger(&bytes.Buffer{}),
		})

		// Repeating a release exercises de-duplication end to end.
		err := run(runner, "playlist", "export", "--release", "Aphex Twin::Syro", "--release", "Aphex Twin::Syro", "warp-id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if strings.Join(written, ",") != "spotify:track:1,spotify:track:2" {
			t.Errorf("unexpected written tracks %v", written)
		}
		if !strings.Contains(output.String(), "2 tracks written, 2 duplicates skipped") {
			t.Errorf("unexpected output %q", output.String())
		}

		recorded, err := runs.List(10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(recorded) != 1 || recorded[0].TracksWritten != 2 || recorded[0].DuplicatesSkipped != 2 {
			t.Errorf("unexpected recorded runs %+v", recorded)
		}
	})
}
