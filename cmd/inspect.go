package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"feedsnap/bluesky"
	"feedsnap/config"
	"feedsnap/inspect"
	"feedsnap/snapshot"

	"github.com/urfave/cli/v2"
)

const (
	defaultInspectLimit = 10
	defaultFetchTimeout = 30 * time.Second
)

// inspectArgs reads the optional [snapshot-path] [limit] arguments. A single
// numeric argument is taken as the limit.
func inspectArgs(args []string) (string, int) {
	path := config.DefaultSnapshotPath
	limit := defaultInspectLimit

	switch len(args) {
	case 0:
	case 1:
		if _, err := strconv.Atoi(args[0]); err == nil {
			limit = config.ParseLimit(args[0], defaultInspectLimit)
		} else {
			path = args[0]
		}
	default:
		path = args[0]
		limit = config.ParseLimit(args[1], defaultInspectLimit)
	}
	return path, limit
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Fetch the posts of a snapshot for review",
		ArgsUsage: "[snapshot-path] [limit]",
		Description: `Reads the snapshot, fetches the first posts from the public AppView
and prints them or writes a Markdown report.

No credentials are required.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "appview",
				Value: bluesky.DefaultAppViewHost,
				Usage: "AppView host used to fetch posts",
			},
			&cli.StringFlag{
				Name:  "app-host",
				Value: inspect.DefaultAppHost,
				Usage: "Web host used for post permalinks",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "console",
				Usage: "Output format, console or markdown",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "data/inspect.md",
				Usage:   "Path the Markdown report is written to",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: defaultFetchTimeout,
				Usage: "Timeout for each AppView request",
			},
		},
		Action: func(ctx *cli.Context) error {
			format := ctx.String("format")
			if format != "console" && format != "markdown" {
				return fmt.Errorf("unknown format %q, expected console or markdown", format)
			}

			path, limit := inspectArgs(ctx.Args().Slice())
			uris, err := snapshot.ReadItems(path)
			if err != nil {
				return err
			}
			if len(uris) > limit {
				uris = uris[:limit]
			}
			if len(uris) == 0 {
				fmt.Println("No URIs to inspect.")
				return nil
			}

			client := bluesky.NewPublicClient(ctx.String("appview"), &http.Client{Timeout: ctx.Duration("timeout")})
			inspector := inspect.New(client, ctx.String("app-host"))

			posts, err := inspector.Fetch(ctx.Context, uris)
			if err != nil {
				return err
			}

			if format == "console" {
				return inspector.Console(os.Stdout, posts)
			}

			output := ctx.String("output")
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("could not create report directory: %w", err)
			}
			if err := os.WriteFile(output, []byte(inspector.Markdown(posts, path)), 0o644); err != nil {
				return fmt.Errorf("could not write report: %w", err)
			}
			fmt.Printf("Wrote %d posts to %s\n", len(posts), output)
			return nil
		},
	}
}
