package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/aggregate"
	"github.com/desertthunder/labeltree/internal/formatter"
	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/shared"
	"github.com/desertthunder/labeltree/internal/tasks"
)

// LabelSearch searches MusicBrainz labels by name.
func (r *Runner) LabelSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	result, err := r.musicbrainz.SearchLabels(ctx, query, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return fmt.Errorf("label search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d labels (showing %d from offset %d)\n\n", result.Count, len(result.Labels), result.Offset)
	for _, l := range result.Labels {
		r.writePlain("  %s  %s%s\n", l.ID, l.Name, qualifier(l.Disambiguation, l.Country))
	}
	return nil
}

// LabelTree builds a label's family tree with rosters and filters it by relationship type.
func (r *Runner) LabelTree(ctx context.Context, cmd *cli.Command) error {
	labelID := cmd.StringArg("label-id")
	if labelID == "" {
		return fmt.Errorf("%w: label-id", shared.ErrMissingArgument)
	}

	filter, err := parseFilter(cmd.StringSlice("filter"))
	if err != nil {
		return err
	}

	builder := tasks.NewTreeBuilder(r.musicbrainz, tasks.TreeOptions{Logger: r.logger, Now: r.now})
	progress, wait := r.progress()
	tree, err := builder.BuildTree(ctx, progress, labelID, cmd.Int("depth"))
	wait()
	if err != nil {
		return err
	}

	if !cmd.Bool("all") {
		tree = tasks.FilterTree(tree, filter)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tree, cmd.Bool("pretty"))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	switch format {
	case formatter.FormatMarkdown:
		return r.emit(formatter.TreeToMarkdown(tree), cmd.String("output"))
	case formatter.FormatText:
		return r.emit(formatter.TreeToText(tree), cmd.String("output"))
	}
	return fmt.Errorf("%w: %s output is not supported for trees", shared.ErrInvalidArgument, format)
}

func parseFilter(values []string) ([]models.RelationshipType, error) {
	valid := map[models.RelationshipType]bool{
		models.RelParent:        true,
		models.RelSubsidiary:    true,
		models.RelImprint:       true,
		models.RelReissueSeries: true,
		models.RelHolding:       true,
		models.RelRenamedTo:     true,
		models.RelOther:         true,
	}

	var out []models.RelationshipType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			t := models.RelationshipType(strings.ToLower(strings.TrimSpace(part)))
			if t == "" {
				continue
			}
			if !valid[t] {
				return nil, fmt.Errorf("%w: unknown relationship type %q", shared.ErrInvalidArgument, part)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// LabelRoster lists the artists with releases on a label.
func (r *Runner) LabelRoster(ctx context.Context, cmd *cli.Command) error {
	labelID := cmd.StringArg("label-id")
	if labelID == "" {
		return fmt.Errorf("%w: label-id", shared.ErrMissingArgument)
	}

	releases, err := r.musicbrainz.ReleasesByLabel(ctx, labelID)
	if err != nil {
		return fmt.Errorf("failed to fetch releases for label %s: %w", labelID, err)
	}
	roster := aggregate.Roster(releases, r.now())

	if cmd.Bool("current") {
		current := roster[:0]
		for _, e := range roster {
			if e.RelationshipType == models.RosterCurrent {
				current = append(current, e)
			}
		}
		roster = current
	}

	if cmd.Bool("json") {
		return r.writeJSON(roster, cmd.Bool("pretty"))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	switch format {
	case formatter.FormatCSV:
		data, err := formatter.RosterToCSV(roster)
		if err != nil {
			return err
		}
		return r.emit(data, cmd.String("output"))
	case formatter.FormatMarkdown:
		title := fmt.Sprintf("Roster of %s", labelID)
		if label, err := r.musicbrainz.Label(ctx, labelID); err == nil {
			title = label.Name + " roster"
		}
		return r.emit(formatter.RosterToMarkdown(title, roster), cmd.String("output"))
	}

	r.writePlain("%d artists across %d releases\n\n", len(roster), len(releases))
	return r.emit(formatter.RosterToText(roster), cmd.String("output"))
}
