package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/aggregate"
	"github.com/desertthunder/labeltree/internal/formatter"
	"github.com/desertthunder/labeltree/internal/shared"
	"github.com/desertthunder/labeltree/internal/tasks"
)

// PlaylistExport creates a Spotify playlist from a label's releases.
//
// Releases come from --release flags when given, otherwise from the newest albums and EPs
// of the label's most prolific roster artists.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	labelID := cmd.StringArg("label-id")
	if labelID == "" {
		return fmt.Errorf("%w: label-id", shared.ErrMissingArgument)
	}
	if err := r.requireSpotify(); err != nil {
		return err
	}

	label, err := r.musicbrainz.Label(ctx, labelID)
	if err != nil {
		return fmt.Errorf("failed to fetch label %s: %w", labelID, err)
	}

	engine := tasks.NewExportEngine(r.spotify, tasks.ExportOptions{
		BatchSize: r.config.Spotify.BatchSize,
		Runs:      r.runs,
		Logger:    r.logger,
	})

	tracks := cmd.Int("tracks")
	releases, err := parseReleases(cmd.StringSlice("release"), max(tracks, 0))
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		labelReleases, err := r.musicbrainz.ReleasesByLabel(ctx, labelID)
		if err != nil {
			return fmt.Errorf("failed to fetch releases for label %s: %w", labelID, err)
		}
		roster := aggregate.Roster(labelReleases, r.now())

		r.logger.Info("selecting releases from roster", "label", label.Name, "artists", len(roster))
		releases, err = engine.SelectFromRoster(ctx, r.musicbrainz, roster, tasks.SelectionOptions{
			Artists:           cmd.Int("artists"),
			ReleasesPerArtist: cmd.Int("per-artist"),
			TracksPerRelease:  tracks,
		})
		if err != nil {
			return err
		}
	}

	progress, wait := r.progress()
	result, err := engine.Export(ctx, progress, tasks.ExportRequest{
		LabelName:    label.Name,
		PlaylistName: cmd.String("name"),
		Description:  cmd.String("description"),
		Public:       cmd.Bool("public"),
		Releases:     releases,
	})
	wait()
	if err != nil {
		if result != nil && result.Playlist != nil {
			r.logger.Error("export stopped", "playlist", result.Playlist.ID, "written", result.Written)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("✓ Created playlist %q\n", result.Playlist.Name)
	if url := result.Playlist.ExternalURLs.Spotify; url != "" {
		r.writePlain("  %s\n", url)
	}
	r.writePlain("\n%d of %d releases matched, %d tracks written, %d duplicates skipped\n",
		len(result.Matches), len(releases), result.Written, result.DuplicatesSkipped)
	if len(result.Unmatched) > 0 {
		r.writePlain("\nNot found on Spotify:\n")
		for _, u := range result.Unmatched {
			r.writePlain("  %s - %s\n", u.ArtistName, u.ReleaseTitle)
		}
	}
	return nil
}

// parseReleases reads "Artist::Title" pairs.
func parseReleases(values []string, trackCount int) ([]tasks.ReleaseRequest, error) {
	var out []tasks.ReleaseRequest
	for _, v := range values {
		artist, title, ok := strings.Cut(v, "::")
		artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
		if !ok || artist == "" || title == "" {
			return nil, fmt.Errorf("%w: release %q must be \"Artist::Title\"", shared.ErrInvalidArgument, v)
		}
		out = append(out, tasks.ReleaseRequest{ArtistName: artist, ReleaseTitle: title, TrackCount: trackCount})
	}
	return out, nil
}

// PlaylistRuns lists recorded exports, newest first.
func (r *Runner) PlaylistRuns(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.runs.List(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list export runs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if format == formatter.FormatCSV {
		data, err := formatter.RunsToCSV(runs)
		if err != nil {
			return err
		}
		return r.emit(data, cmd.String("output"))
	}

	if len(runs) == 0 {
		return r.writePlain("No exports recorded\n")
	}
	for _, run := range runs {
		r.writePlain("%s  %-40s %4d tracks  %3d duplicates  %3d/%d unmatched\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"), run.PlaylistName,
			run.TracksWritten, run.DuplicatesSkipped, run.ReleasesUnmatched, run.ReleasesRequested)
	}
	return nil
}
