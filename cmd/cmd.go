// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func listenerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "listener",
		Aliases: []string{"l"},
		Usage:   "Listener ID for repetition history and sessions (default: engine.listener_id)",
	}
}

func offlineFlag() cli.Flag {
	return &cli.BoolFlag{Name: "offline", Usage: "Use the local track library instead of the remote catalog"}
}

func sourcesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "sources",
		Aliases: []string{"s"},
		Usage:   "Comma-separated sources to search instead of the goal's own",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Show migration status without applying anything",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the built-in defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the config file to create (default: the active config path)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// goalsCommand handles goal lookups
func goalsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "goals",
		Usage: "Therapeutic goal operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List known goals with their tempo windows and sources",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.GoalsList,
			},
			{
				Name:  "resolve",
				Usage: "Resolve free-form input (slug, synonym, display name) to a goal",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "input"},
				},
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.GoalsResolve,
			},
		},
	}
}

// sourcesCommand handles content source operations
func sourcesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Content source operations",
		Commands: []*cli.Command{
			{
				Name:      "expand",
				Usage:     "Replace skipped sources with their fallbacks",
				ArgsUsage: "SOURCE...",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.SourcesExpand,
			},
			{
				Name:      "scan",
				Usage:     "List every source's objects and report empty or failing ones",
				ArgsUsage: "[SOURCE...]",
				Flags: []cli.Flag{
					offlineFlag(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent listings",
						Value: 3,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Listings started per second",
						Value: 2,
					},
					jsonFlag(),
				},
				Action: r.SourcesScan,
			},
		},
	}
}

// tracksCommand handles playlist ranking and the local track library
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Rank tracks for a goal and manage the local library",
		Commands: []*cli.Command{
			{
				Name:  "rank",
				Usage: "Build a ranked, sequenced playlist for a goal",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "goal"},
				},
				Flags: []cli.Flag{
					sourcesFlag(),
					listenerFlag(),
					offlineFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum playlist length (default: engine.playlist_limit)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv or markdown",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the export to this path instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "cache",
						Usage: "Store fetched tracks in the local library",
					},
				},
				Action: r.TracksRank,
			},
			{
				Name:  "import",
				Usage: "Import tracks into the local library from a JSON file or catalog sources",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON file containing an array of tracks",
					},
					sourcesFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum tracks fetched per source",
						Value: 200,
					},
				},
				Action: r.TracksImport,
			},
			{
				Name:  "list",
				Usage: "List tracks in the local library",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only list tracks from this source",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum tracks to list",
						Value: 50,
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.TracksList,
			},
		},
	}
}

// playCommand plays a goal's playlist without a terminal UI
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Build a playlist and play it headless, recording a listening session",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "goal"},
		},
		Flags: []cli.Flag{
			sourcesFlag(),
			listenerFlag(),
			offlineFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum playlist length (default: engine.playlist_limit)",
			},
			&cli.StringFlag{
				Name:  "session-type",
				Usage: "Session type recorded for telemetry: therapeutic, casual, focus or relaxation",
				Value: "therapeutic",
			},
			&cli.BoolFlag{
				Name:  "no-save",
				Usage: "Do not persist the listening session",
			},
		},
		Action: r.Play,
	}
}

// sessionsCommand handles saved listening sessions
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Listening session history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved listening sessions, newest first",
				Flags: []cli.Flag{
					listenerFlag(),
					&cli.StringFlag{
						Name:  "goal",
						Usage: "Only list sessions for this goal",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum sessions to list",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.SessionsList,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
			offlineFlag(),
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for the interactive player.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive player for a goal",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "goal"},
		},
		Flags: []cli.Flag{
			sourcesFlag(),
			listenerFlag(),
			offlineFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum playlist length (default: engine.playlist_limit)",
			},
			&cli.StringFlag{
				Name:  "session-type",
				Usage: "Session type recorded for telemetry",
				Value: "therapeutic",
			},
		},
		Action: r.TUI,
	}
}
