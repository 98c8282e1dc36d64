// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config file, initialize database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles credentials for the vidmark backend
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage vidmark credentials",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in through the identity provider and store the token",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show whether a usable token is stored",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored token",
				Action: r.AuthLogout,
			},
		},
	}
}

// watchCommand runs the live progress dashboard
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Connect to the progress channel and follow job updates",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Log updates line by line instead of the dashboard",
			},
		},
		Action: r.Watch,
	}
}

// jobsCommand inspects watched jobs and their history
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect watched jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List watched jobs from the local database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, json, csv or markdown",
						Value:   "table",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show the last observed state of one job",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.JobsShow,
			},
			{
				Name:  "history",
				Usage: "Fetch progress history for a job from the backend",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:  "since",
						Usage: "Only events observed after this time (RFC 3339)",
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02T15:04:05Z07:00", "2006-01-02"},
						},
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.JobsHistory,
			},
			{
				Name:  "forget",
				Usage: "Drop a job from the local database",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.JobsForget,
			},
		},
	}
}
