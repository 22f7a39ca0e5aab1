package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedsnap",
		Usage: "A Bluesky feed generator served from a static search snapshot",
		Description: `A Bluesky custom feed built from periodic search snapshots.

		The snapshot command searches Bluesky and writes the matching post
		URIs to a JSON document, typically committed to a git repository by a
		scheduled job. The serve command answers the feed generator API by
		paginating over the published snapshot. The register and delete
		commands manage the feed generator record on the publishing account.

		Flags can generally be set via environment variables, e.g.:

		--handle => BSKY_APP_HANDLE=yourname.bsky.social
		--query => BSKY_SEARCH_QUERY="bluesky,atproto"
		--feed-url => FEED_URL=https://example.com/feed.json
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				EnvVars: []string{"FEEDSNAP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level, one of trace, debug, info, warn, error",
				EnvVars: []string{"FEEDSNAP_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			// Keep stdout for command results
			log.SetOutput(os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			snapshotCmd(),
			registerCmd(),
			deleteCmd(),
			serveCmd(),
			inspectCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// Execute runs the application and exits with status 1 on failure
func Execute() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Could not load .env file")
	}

	if err := RootApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
