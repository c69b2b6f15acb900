// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/tasks"
)

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

// renderFlags extends outputFlags with a text rendering and an output file.
func renderFlags(formats string) []cli.Flag {
	return append(outputFlags(),
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (" + formats + ")",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to a file instead of stdout",
		},
	)
}

func searchFlags() []cli.Flag {
	return append(outputFlags(),
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of results",
			Value: 25,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Result offset for paging",
		},
	)
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and migrate the response cache",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the latest migration",
			},
		},
		Action: r.Setup,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize catalog services",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.AuthSpotify,
			},
		},
	}
}

func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artist",
		Usage: "MusicBrainz artist lookups",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search artists by name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     searchFlags(),
				Action:    r.ArtistSearch,
			},
			{
				Name:      "labels",
				Usage:     "List the labels an artist has released on",
				Arguments: []cli.Argument{&cli.StringArg{Name: "artist-id"}},
				Flags:     outputFlags(),
				Action:    r.ArtistLabels,
			},
			{
				Name:      "discography",
				Aliases:   []string{"disco"},
				Usage:     "Show an artist's release groups with genre, decade and collaboration stats",
				Arguments: []cli.Argument{&cli.StringArg{Name: "artist-id"}},
				Flags:     outputFlags(),
				Action:    r.ArtistDiscography,
			},
		},
	}
}

func labelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "label",
		Usage: "MusicBrainz label lookups",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search labels by name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     searchFlags(),
				Action:    r.LabelSearch,
			},
			{
				Name:      "tree",
				Usage:     "Build a label's family tree of parents, subsidiaries and imprints",
				Arguments: []cli.Argument{&cli.StringArg{Name: "label-id"}},
				Flags: append(renderFlags("text, markdown"),
					&cli.IntFlag{
						Name:    "depth",
						Aliases: []string{"d"},
						Usage:   "Maximum relationship depth",
						Value:   tasks.DefaultMaxDepth,
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Relationship types to keep (parent, subsidiary, imprint, reissue-series, holding, renamed-to, other)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Keep every relationship type",
					},
				),
				Action: r.LabelTree,
			},
			{
				Name:      "roster",
				Usage:     "List artists with releases on a label",
				Arguments: []cli.Argument{&cli.StringArg{Name: "label-id"}},
				Flags: append(renderFlags("text, csv, markdown"),
					&cli.BoolFlag{
						Name:  "current",
						Usage: "Only show artists with a release in the last five years",
					},
				),
				Action: r.LabelRoster,
			},
		},
	}
}

func releaseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "MusicBrainz release lookups",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a release with its media and tracks",
				Arguments: []cli.Argument{&cli.StringArg{Name: "release-id"}},
				Flags:     outputFlags(),
				Action:    r.ReleaseShow,
			},
			{
				Name:      "cover",
				Usage:     "Download a release's front cover from the Cover Art Archive",
				Arguments: []cli.Argument{&cli.StringArg{Name: "release-id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Image file path (default \"<release-id>.jpg\")",
					},
				},
				Action: r.ReleaseCover,
			},
		},
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Spotify playlist export",
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Create a Spotify playlist from a label's releases",
				Arguments: []cli.Argument{&cli.StringArg{Name: "label-id"}},
				Flags: append(outputFlags(),
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Playlist name (default \"<label> - Label Playlist\")",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Create a public playlist",
					},
					&cli.StringSliceFlag{
						Name:    "release",
						Aliases: []string{"r"},
						Usage:   "Release to include as \"Artist::Title\"; selected from the roster when omitted",
					},
					&cli.IntFlag{
						Name:  "artists",
						Usage: "Roster artists to select releases from",
						Value: tasks.DefaultSelectionArtists,
					},
					&cli.IntFlag{
						Name:  "per-artist",
						Usage: "Releases selected per artist",
						Value: tasks.DefaultReleasesPerArtist,
					},
					&cli.IntFlag{
						Name:  "tracks",
						Usage: "Tracks taken from each release (-1 for all)",
						Value: tasks.DefaultTracksPerRelease,
					},
				),
				Action: r.PlaylistExport,
			},
			{
				Name:  "runs",
				Usage: "List recorded playlist exports",
				Flags: append(renderFlags("text, csv"),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
				),
				Action: r.PlaylistRuns,
			},
		},
	}
}
