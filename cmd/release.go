package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/formatter"
	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/shared"
)

// ReleaseShow prints a release with its label info and track listing.
func (r *Runner) ReleaseShow(ctx context.Context, cmd *cli.Command) error {
	releaseID := cmd.StringArg("release-id")
	if releaseID == "" {
		return fmt.Errorf("%w: release-id", shared.ErrMissingArgument)
	}

	release, err := r.musicbrainz.Release(ctx, releaseID)
	if err != nil {
		return fmt.Errorf("failed to fetch release %s: %w", releaseID, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(release, cmd.Bool("pretty"))
	}

	r.writePlain("%s - %s", models.CreditedName(release.ArtistCredit), release.Title)
	if release.Date != "" {
		r.writePlain(" (%s)", release.Date)
	}
	r.writePlain("\n")
	for _, info := range release.LabelInfo {
		if info.Label != nil {
			r.writePlain("  %s %s\n", info.Label.Name, info.CatalogNumber)
		}
	}
	for _, m := range release.Media {
		r.writePlain("\n%s %d\n", m.Format, m.Position)
		for _, t := range m.Tracks {
			r.writePlain("  %3s. %s\n", t.Number, t.Title)
		}
	}
	return nil
}

// ReleaseCover saves the front cover of a release.
func (r *Runner) ReleaseCover(ctx context.Context, cmd *cli.Command) error {
	releaseID := cmd.StringArg("release-id")
	if releaseID == "" {
		return fmt.Errorf("%w: release-id", shared.ErrMissingArgument)
	}

	art, err := r.musicbrainz.CoverArt(ctx, releaseID)
	if err != nil {
		return fmt.Errorf("failed to fetch cover art for %s: %w", releaseID, err)
	}
	front, ok := art.Front()
	if !ok {
		return fmt.Errorf("%w: release %s has no front cover", shared.ErrNotFound, releaseID)
	}

	data, err := formatter.DownloadImage(ctx, r.httpClient, front.Image)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		path = releaseID + ".jpg"
	}
	if err := formatter.WriteFile(path, data); err != nil {
		return err
	}
	return r.writePlain("✓ Saved cover to %s\n", path)
}
