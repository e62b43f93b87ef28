// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to configuration file",
	Value:   "config.toml",
}

// setupCommand handles database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag},
		Action: r.Setup,
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag},
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
		},
	}
}

// appleMusicCommand handles Apple Music operations
func appleMusicCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "applemusic",
		Aliases: []string{"am"},
		Usage:   "Apple Music operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Verify Apple Music credentials and resolve the storefront",
				Flags:  []cli.Flag{configFlag},
				Action: r.AppleMusicAuth,
			},
			{
				Name:  "search",
				Usage: "Search the Apple Music catalog",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AppleMusicSearch,
			},
		},
	}
}

// importCommand handles playlist import operations
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import playlists from Spotify to Apple Music",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Import one or more playlists",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringSliceFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist URL, URI, or ID (repeatable)",
						Required: true,
					},
				},
				Action: r.ImportRun,
			},
			{
				Name:   "resume",
				Usage:  "Resume the interrupted import",
				Flags:  []cli.Flag{configFlag},
				Action: r.ImportResume,
			},
			{
				Name:  "refresh",
				Usage: "Re-import unmatched tracks and pick up new additions",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "import-id"},
				},
				Flags:  []cli.Flag{configFlag},
				Action: r.ImportRefresh,
			},
			{
				Name:  "list",
				Usage: "List past imports",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.ImportList,
			},
			{
				Name:  "status",
				Usage: "Show details of an import",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "import-id"},
				},
				Flags:  []cli.Flag{configFlag},
				Action: r.ImportStatus,
			},
			{
				Name:  "delete",
				Usage: "Delete an import and its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "import-id"},
				},
				Flags:  []cli.Flag{configFlag},
				Action: r.ImportDelete,
			},
			{
				Name:  "export",
				Usage: "Export an import's results to a file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "import-id"},
				},
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: csv, markdown, or text",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file or directory path",
					},
				},
				Action: r.ImportExport,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive imports.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for playlist import",
		Flags:   []cli.Flag{configFlag},
		Action:  r.TUI,
	}
}
