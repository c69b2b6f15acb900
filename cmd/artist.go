package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/aggregate"
	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/shared"
)

// ArtistSearch searches MusicBrainz artists by name.
func (r *Runner) ArtistSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	result, err := r.musicbrainz.SearchArtists(ctx, query, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return fmt.Errorf("artist search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d artists (showing %d from offset %d)\n\n", result.Count, len(result.Artists), result.Offset)
	for _, a := range result.Artists {
		r.writePlain("  %s  %s%s\n", a.ID, a.Name, qualifier(a.Disambiguation, a.Country))
	}
	return nil
}

// ArtistLabels lists the labels an artist has released on, most cited first.
func (r *Runner) ArtistLabels(ctx context.Context, cmd *cli.Command) error {
	artistID := cmd.StringArg("artist-id")
	if artistID == "" {
		return fmt.Errorf("%w: artist-id", shared.ErrMissingArgument)
	}

	releases, err := r.musicbrainz.ReleasesByArtist(ctx, artistID)
	if err != nil {
		return fmt.Errorf("failed to fetch releases for artist %s: %w", artistID, err)
	}
	labels := aggregate.Labels(releases)

	if cmd.Bool("json") {
		return r.writeJSON(labels, cmd.Bool("pretty"))
	}

	r.writePlain("%d labels across %d releases\n\n", len(labels), len(releases))
	for _, l := range labels {
		r.writePlain("  %4d  %s  %s (%s)\n", l.ReleaseCount, l.Label.ID, l.Label.Name, l.Label.Type)
	}
	return nil
}

// ArtistDiscography fetches an artist's release groups and releases and derives the discography stats.
func (r *Runner) ArtistDiscography(ctx context.Context, cmd *cli.Command) error {
	artistID := cmd.StringArg("artist-id")
	if artistID == "" {
		return fmt.Errorf("%w: artist-id", shared.ErrMissingArgument)
	}

	groups, err := r.musicbrainz.ReleaseGroupsByArtist(ctx, artistID)
	if err != nil {
		return fmt.Errorf("failed to fetch release groups for artist %s: %w", artistID, err)
	}
	releases, err := r.musicbrainz.ReleasesByArtist(ctx, artistID)
	if err != nil {
		return fmt.Errorf("failed to fetch releases for artist %s: %w", artistID, err)
	}

	disco := aggregate.Discography(creditedArtist(artistID, groups, releases), groups, releases)

	if cmd.Bool("json") {
		return r.writeJSON(disco, cmd.Bool("pretty"))
	}

	r.writePlain("%s: %d release groups", disco.Artist.Name, disco.TotalReleases)
	if disco.CareerSpan.Start != "" {
		r.writePlain(" (%s - %s)", disco.CareerSpan.Start, disco.CareerSpan.End)
	}
	r.writePlain("\n")

	if len(disco.Genres) > 0 {
		r.writePlain("\nGenres:\n")
		for _, g := range disco.Genres {
			r.writePlain("  %-24s %5.1f%%\n", g.Name, g.Percentage)
		}
	}
	if len(disco.Decades) > 0 {
		r.writePlain("\nDecades:\n")
		for _, d := range disco.Decades {
			r.writePlain("  %-8s %3d  %5.1f%%\n", d.Decade, d.Count, d.Percentage)
		}
	}
	if len(disco.Collaborations) > 0 {
		r.writePlain("\nCollaborators:\n")
		for _, c := range disco.Collaborations {
			r.writePlain("  %-24s %d releases\n", c.Artist.Name, c.ReleaseCount)
		}
	}
	return nil
}

// creditedArtist finds the artist record in the credits of their own releases.
func creditedArtist(id string, groups []models.ReleaseGroup, releases []models.Release) models.Artist {
	for _, g := range groups {
		for _, c := range g.ArtistCredit {
			if c.Artist.ID == id {
				return c.Artist
			}
		}
	}
	for _, rel := range releases {
		for _, c := range rel.ArtistCredit {
			if c.Artist.ID == id {
				return c.Artist
			}
		}
	}
	return models.Artist{ID: id, Name: id}
}

func qualifier(disambiguation, country string) string {
	switch {
	case disambiguation != "" && country != "":
		return fmt.Sprintf(" (%s, %s)", disambiguation, country)
	case disambiguation != "":
		return fmt.Sprintf(" (%s)", disambiguation)
	case country != "":
		return fmt.Sprintf(" (%s)", country)
	}
	return ""
}
