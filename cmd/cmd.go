// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func withOutput(flags ...cli.Flag) []cli.Flag {
	return append(flags, outputFlags()...)
}

// setupCommand handles setup operations for configuration and the cache database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml with default settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the snapshot cache and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Only report which migrations are applied",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// listsCommand handles list operations for the owner
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Manage your grocery lists",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List your grocery lists",
				Flags: withOutput(
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show lists with this status (draft, shared, completed)",
					},
				),
				Action: r.ListsList,
			},
			{
				Name:      "create",
				Usage:     "Create a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags:     outputFlags(),
				Action:    r.ListsCreate,
			},
			{
				Name:      "show",
				Usage:     "Show a list with its items",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: withOutput(
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Render as txt, markdown, csv or json instead of the board",
					},
				),
				Action: r.ListsShow,
			},
			{
				Name:  "rename",
				Usage: "Rename a list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "name"},
				},
				Flags:  outputFlags(),
				Action: r.ListsRename,
			},
			{
				Name:  "status",
				Usage: "Set the status of a list (draft, shared, completed)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "status"},
				},
				Flags:  outputFlags(),
				Action: r.ListsStatus,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ListsDelete,
			},
			{
				Name:      "duplicate",
				Aliases:   []string{"dup"},
				Usage:     "Copy a list with all its items",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.ListsDuplicate,
			},
			{
				Name:      "export",
				Usage:     "Export lists to files (pass list IDs or --all)",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every list",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: lists_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent writers",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate-limit",
						Usage: "List fetches per second",
						Value: 5,
					},
				},
				Action: r.ListsExport,
			},
		},
	}
}

// itemsCommand handles item operations for the owner
func itemsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "Manage the items of a list",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Aliases:   []string{"list"},
				Usage:     "List the items of a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "list"}},
				Flags:     outputFlags(),
				Action:    r.ItemsList,
			},
			{
				Name:  "add",
				Usage: "Add an item to a list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "name"},
				},
				Flags: withOutput(
					&cli.FloatFlag{
						Name:    "quantity",
						Aliases: []string{"q"},
						Usage:   "Quantity",
						Value:   1,
					},
					&cli.StringFlag{
						Name:    "unit",
						Aliases: []string{"u"},
						Usage:   "Unit, e.g. kg or l",
					},
					&cli.StringFlag{
						Name:  "notes",
						Usage: "Notes for the shopkeeper",
					},
				),
				Action: r.ItemsAdd,
			},
			{
				Name:  "status",
				Usage: "Set the status of an item",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "item"},
					&cli.StringArg{Name: "status"},
				},
				Flags: withOutput(
					&cli.StringFlag{
						Name:  "notes",
						Usage: "Replace the item notes",
					},
				),
				Action: r.ItemsStatus,
			},
			{
				Name:  "cycle",
				Usage: "Advance an item to its next status",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "item"},
				},
				Flags:  outputFlags(),
				Action: r.ItemsCycle,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Delete an item",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "item"},
				},
				Action: r.ItemsDelete,
			},
		},
	}
}

// shareCommand handles share links for owners and shopkeepers
func shareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Share lists with a shopkeeper",
		Commands: []*cli.Command{
			{
				Name:      "link",
				Usage:     "Generate a share link for a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "list"}},
				Flags: withOutput(
					&cli.StringFlag{
						Name:  "shopkeeper",
						Usage: "Name of the shopkeeper the link is meant for",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the share link in the browser",
					},
					&cli.BoolFlag{
						Name:  "remember",
						Usage: "Store the token in the local cache",
					},
				),
				Action: r.ShareLink,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke the share link of a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "list"}},
				Action:    r.ShareRevoke,
			},
			{
				Name:      "view",
				Usage:     "View a shared list by token",
				Arguments: []cli.Argument{&cli.StringArg{Name: "token"}},
				Flags:     outputFlags(),
				Action:    r.ShareView,
			},
			{
				Name:  "accept",
				Usage: "Accept a shared list as shopkeeper",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
					&cli.StringArg{Name: "name"},
				},
				Flags:  outputFlags(),
				Action: r.ShareAccept,
			},
			{
				Name:  "status",
				Usage: "Set the status of a shared list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
					&cli.StringArg{Name: "status"},
				},
				Flags:  outputFlags(),
				Action: r.ShareStatus,
			},
			{
				Name:  "item",
				Usage: "Set the status of an item of a shared list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
					&cli.StringArg{Name: "item"},
					&cli.StringArg{Name: "status"},
				},
				Flags: withOutput(
					&cli.StringFlag{
						Name:  "notes",
						Usage: "Notes, e.g. what was substituted",
					},
				),
				Action: r.ShareItem,
			},
		},
	}
}

// watchCommand follows a list over the realtime channel
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a list live until interrupted",
		Arguments: []cli.Argument{&cli.StringArg{Name: "list"}},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "share-token",
				Aliases: []string{"t"},
				Usage:   "Follow a shared list as shopkeeper",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Store every update in the snapshot cache",
			},
			&cli.IntFlag{
				Name:  "keep",
				Usage: "Snapshots kept per list when caching (0 keeps all)",
				Value: 20,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Render updates as txt, markdown, csv or json instead of the board",
			},
		},
		Action: r.Watch,
	}
}

// cacheCommand handles the offline snapshot cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect lists cached by watch --cache",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List cached lists",
				Flags:   outputFlags(),
				Action:  r.CacheList,
			},
			{
				Name:      "show",
				Usage:     "Show the last cached state of a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "list"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Render as txt, markdown, csv or json instead of the board",
					},
				},
				Action: r.CacheShow,
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Forget the cached snapshots of a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "list"}},
				Action:    r.CacheRemove,
			},
		},
	}
}
