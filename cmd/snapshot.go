package cmd

import (
	"fmt"
	"strings"

	"feedsnap/bluesky"
	"feedsnap/config"
	"feedsnap/feeds"
	"feedsnap/snapshot"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Search Bluesky and write the feed snapshot",
		Description: `Searches Bluesky for the configured query and writes the matching
post URIs, newest first, to the snapshot file.

Several comma separated queries are searched one after another and merged.
Mute words are appended to every query as exclusions. Requires the
credentials of a Bluesky account.`,
		Flags: append(accountFlags(), searchFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			lang, err := config.ParseLanguage(cfg.Search.Language)
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}

			queries := feeds.BuildQueries(cfg.Search.Query, cfg.Search.MuteWords)

			client, err := bluesky.ClientFromCredentials(ctx.Context, cfg.ServiceHost(), &bluesky.Credentials{
				Identifier: cfg.Account.Handle,
				Password:   cfg.Account.Password,
			})
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"queries": queries,
				"lang":    lang,
				"limit":   cfg.Search.Limit,
			}).Info("Searching posts")

			doc, err := feeds.NewProducer(client).Produce(ctx.Context, feeds.ProducerConfig{
				Queries:  queries,
				Language: lang,
				Limit:    cfg.Search.Limit,
			})
			if err != nil {
				return err
			}

			if err := snapshot.Write(cfg.Search.Output, doc); err != nil {
				return err
			}

			languages := "any"
			if len(doc.Languages) > 0 {
				languages = strings.Join(doc.Languages, ",")
			}
			fmt.Printf("Wrote %d posts to %s for %s (languages: %s)\n",
				len(doc.Items), cfg.Search.Output, strings.Join(queries, " | "), languages)
			return nil
		},
	}
}
