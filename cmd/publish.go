package cmd

import (
	"fmt"
	"os"
	"time"

	"feedsnap/bluesky"
	"feedsnap/config"
	"feedsnap/feeds"

	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func publishFlags() []cli.Flag {
	flags := append(accountFlags(), feedFlags()...)
	flags = append(flags, repositoryFlags()...)
	return append(flags,
		&cli.BoolFlag{
			Name:  "prompt",
			Usage: "Ask for missing handle and password interactively",
		},
	)
}

// promptCredentials asks for the credentials missing from cfg
func promptCredentials(cfg *config.Config) error {
	var err error
	if cfg.Account.Handle == "" {
		cfg.Account.Handle, err = prompt.New().Ask("Handle:").Input("myname.bsky.social")
		if err != nil {
			return err
		}
	}
	if cfg.Account.Password == "" {
		cfg.Account.Password, err = prompt.New().Ask("Password:").Input("", input.WithEchoMode(input.EchoNone))
		if err != nil {
			return err
		}
	}
	return nil
}

// login validates the configuration and opens a session for the publishing
// account. It returns the client together with the account DID.
func login(ctx *cli.Context) (*config.Config, *bluesky.Client, string, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	if ctx.Bool("prompt") {
		if err := promptCredentials(cfg); err != nil {
			return nil, nil, "", err
		}
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, nil, "", err
	}
	if cfg.Feed.GeneratorURI != "" {
		if _, _, err := feeds.ParseFeedURI(cfg.Feed.GeneratorURI); err != nil {
			return nil, nil, "", err
		}
	}

	client, err := bluesky.ClientFromCredentials(ctx.Context, cfg.ServiceHost(), &bluesky.Credentials{
		Identifier: cfg.Account.Handle,
		Password:   cfg.Account.Password,
	})
	if err != nil {
		return nil, nil, "", err
	}

	ownerDID, err := client.ResolveDID(ctx.Context, cfg.Account.Handle)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, client, ownerDID, nil
}

// recordKey is the configured record key, or the slug of the repository name
func recordKey(cfg *config.Config) string {
	if cfg.Feed.RecordKey != "" {
		return cfg.Feed.RecordKey
	}
	return feeds.Slugify(cfg.RepoName())
}

func registerCmd() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create or update the feed generator record on Bluesky",
		Description: `Creates or updates the app.bsky.feed.generator record of the feed.

A Bluesky user account is required to register the feed. The record points
at the service DID, derived from SERVICE_DID or FEED_ENDPOINT and falling
back to the account DID. Running the command again updates the record.`,
		Flags: append(publishFlags(),
			&cli.StringFlag{
				Name:    "avatar",
				Usage:   "Path to an image uploaded as the feed avatar",
				EnvVars: []string{"FEED_AVATAR"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, client, ownerDID, err := login(ctx)
			if err != nil {
				return err
			}

			rkey, err := feeds.OwnedRecordKey(cfg.Feed.GeneratorURI, ownerDID, recordKey(cfg))
			if err != nil {
				return err
			}

			id, err := feeds.ResolveIdentity(feeds.IdentityInputs{
				ServiceDID: cfg.Feed.ServiceDID,
				Endpoint:   cfg.Feed.Endpoint,
				OwnerDID:   ownerDID,
				RecordKey:  rkey,
			})
			if err != nil {
				return err
			}

			displayName := cfg.Feed.DisplayName
			if displayName == "" {
				displayName = cfg.RepoName()
			}
			description := cfg.Feed.Description
			if description == "" {
				description = cfg.RepoName()
			}

			// Get the feed avatar from file
			var blob *lexutil.LexBlob
			if cfg.Feed.AvatarPath != "" {
				f, err := os.Open(cfg.Feed.AvatarPath)
				if err != nil {
					return fmt.Errorf("could not open avatar file: %w", err)
				}
				defer f.Close()

				blob, err = client.UploadBlob(ctx.Context, f)
				if err != nil {
					return fmt.Errorf("could not upload avatar blob: %w", err)
				}
			}

			err = client.PutFeedGenerator(ctx.Context, ownerDID, rkey, &bsky.FeedGenerator{
				Avatar:      blob,
				Did:         id.ServiceDID,
				CreatedAt:   feeds.FormatTime(time.Now().UTC()),
				DisplayName: displayName,
				Description: &description,
			})
			if err != nil {
				return fmt.Errorf("could not register feed: %w", err)
			}

			log.WithFields(log.Fields{
				"rkey":    rkey,
				"service": id.ServiceDID,
			}).Info("Registered feed generator")

			fmt.Println("Feed URI:", feeds.BuildFeedURI(ownerDID, rkey))
			if cfg.Feed.Endpoint != "" {
				fmt.Println("Feed endpoint:", cfg.Feed.Endpoint)
			}
			return nil
		},
	}
}

func deleteCmd() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete the feed generator record from Bluesky",
		Description: `Deletes the app.bsky.feed.generator record of the feed.

A Bluesky user account is required to delete the feed. Pass --all to delete
every feed generator record of the account, e.g. ones registered by a
previous configuration.`,
		Flags: append(publishFlags(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Delete every feed generator record of the account",
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, client, ownerDID, err := login(ctx)
			if err != nil {
				return err
			}

			if ctx.Bool("all") {
				deleted, err := client.DeleteAllFeeds(ctx.Context)
				for _, rkey := range deleted {
					fmt.Println("Deleted feed generator record:", rkey)
				}
				return err
			}

			rkey, err := feeds.OwnedRecordKey(cfg.Feed.GeneratorURI, ownerDID, recordKey(cfg))
			if err != nil {
				return err
			}

			if err := client.DeleteFeedGenerator(ctx.Context, ownerDID, rkey); err != nil {
				return err
			}
			fmt.Println("Deleted feed generator record:", rkey)
			return nil
		},
	}
}
