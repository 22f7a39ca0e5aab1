package cmd

import (
	"time"

	"feedsnap/config"

	"github.com/urfave/cli/v2"
)

func accountFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "handle",
			Usage:   "Bluesky handle or DID of the publishing account",
			EnvVars: []string{"BSKY_APP_HANDLE"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "App password of the publishing account",
			EnvVars: []string{"BSKY_APP_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "service",
			Usage:   "PDS host of the account",
			Value:   config.DefaultService,
			EnvVars: []string{"BSKY_SERVICE"},
		},
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   "Search query, comma separated for several alternatives",
			Value:   config.DefaultQuery,
			EnvVars: []string{"BSKY_SEARCH_QUERY"},
		},
		&cli.StringFlag{
			Name:    "limit",
			Usage:   "Number of unique posts to collect per query",
			EnvVars: []string{"BSKY_SEARCH_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "lang",
			Usage:   "Single language code to filter search results by",
			EnvVars: []string{"BSKY_SEARCH_LANG"},
		},
		&cli.StringFlag{
			Name:    "mute-words",
			Usage:   "Comma separated words excluded from every query",
			EnvVars: []string{"BSKY_MUTE_WORDS"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Path the snapshot is written to",
			Value:   config.DefaultSnapshotPath,
			EnvVars: []string{"FEED_OUTPUT"},
		},
	}
}

func feedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rkey",
			Usage:   "Record key of the feed generator record",
			EnvVars: []string{"FEED_RKEY"},
		},
		&cli.StringFlag{
			Name:    "display-name",
			Usage:   "Display name of the feed",
			EnvVars: []string{"FEED_DISPLAY_NAME"},
		},
		&cli.StringFlag{
			Name:    "description",
			Usage:   "Description of the feed",
			EnvVars: []string{"FEED_DESCRIPTION"},
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "Public URL the feed is served from",
			EnvVars: []string{"FEED_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "service-did",
			Usage:   "Explicit DID of the feed service",
			EnvVars: []string{"SERVICE_DID"},
		},
		&cli.StringFlag{
			Name:    "generator-did",
			Usage:   "Explicit DID of the account publishing the feed",
			EnvVars: []string{"FEED_GENERATOR_DID"},
		},
		&cli.StringFlag{
			Name:    "generator-uri",
			Usage:   "Explicit feed URI, at://<did>/app.bsky.feed.generator/<rkey>",
			EnvVars: []string{"FEED_GENERATOR_URI"},
		},
	}
}

func repositoryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "repository",
			Usage:   "Repository holding the snapshot, as owner/name",
			EnvVars: []string{"GITHUB_REPOSITORY"},
		},
		&cli.StringFlag{
			Name:    "repo-owner",
			Usage:   "Owner of the repository holding the snapshot",
			EnvVars: []string{"GITHUB_OWNER"},
		},
		&cli.StringFlag{
			Name:    "repo-name",
			Usage:   "Name of the repository holding the snapshot",
			EnvVars: []string{"GITHUB_REPO"},
		},
	}
}

func sourceFlags() []cli.Flag {
	return append(repositoryFlags(),
		&cli.StringFlag{
			Name:    "feed-url",
			Usage:   "URL of the published snapshot, overrides the repository location",
			EnvVars: []string{"FEED_URL"},
		},
		&cli.StringFlag{
			Name:    "branch",
			Usage:   "Branch of the repository holding the snapshot",
			Value:   config.DefaultBranch,
			EnvVars: []string{"FEED_BRANCH"},
		},
		&cli.StringFlag{
			Name:    "path",
			Usage:   "Path of the snapshot inside the repository",
			Value:   config.DefaultSnapshotPath,
			EnvVars: []string{"FEED_PATH"},
		},
		&cli.DurationFlag{
			Name:    "snapshot-cache-ttl",
			Usage:   "Cache fetched snapshots for this long, 0 disables caching",
			EnvVars: []string{"FEED_CACHE_TTL"},
		},
		&cli.DurationFlag{
			Name:    "upstream-timeout",
			Usage:   "Timeout for fetching the snapshot",
			Value:   10 * time.Second,
			EnvVars: []string{"FEED_UPSTREAM_TIMEOUT"},
		},
	)
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port the feed is served on",
			Value:   3000,
			EnvVars: []string{"FEEDSNAP_PORT", "PORT"},
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for the Prometheus metrics endpoint, 0 disables it",
			EnvVars: []string{"FEEDSNAP_METRICS_PORT"},
		},
	}
}

// loadConfig assembles the configuration from the optional config file and
// the command's flags. Flags and environment variables win over the file.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := ctx.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	setString := func(name string, dst *string) {
		if ctx.IsSet(name) || *dst == "" {
			*dst = ctx.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if ctx.IsSet(name) || *dst == 0 {
			*dst = ctx.Int(name)
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if ctx.IsSet(name) || *dst == 0 {
			*dst = ctx.Duration(name)
		}
	}

	setString("handle", &cfg.Account.Handle)
	setString("password", &cfg.Account.Password)
	setString("service", &cfg.Account.Service)

	setString("query", &cfg.Search.Query)
	setString("lang", &cfg.Search.Language)
	setString("output", &cfg.Search.Output)
	if ctx.IsSet("limit") || cfg.Search.Limit <= 0 {
		cfg.Search.Limit = config.ParseLimit(ctx.String("limit"), config.DefaultSearchLimit)
	}
	if ctx.IsSet("mute-words") {
		cfg.Search.MuteWords = config.ParseMuteWords(ctx.String("mute-words"))
	}

	setString("rkey", &cfg.Feed.RecordKey)
	setString("display-name", &cfg.Feed.DisplayName)
	setString("description", &cfg.Feed.Description)
	setString("avatar", &cfg.Feed.AvatarPath)
	setString("endpoint", &cfg.Feed.Endpoint)
	setString("service-did", &cfg.Feed.ServiceDID)
	setString("generator-did", &cfg.Feed.GeneratorDID)
	setString("generator-uri", &cfg.Feed.GeneratorURI)

	setString("feed-url", &cfg.Source.URL)
	setString("repository", &cfg.Source.Repository)
	setString("repo-owner", &cfg.Source.Owner)
	setString("repo-name", &cfg.Source.Repo)
	setString("branch", &cfg.Source.Branch)
	setString("path", &cfg.Source.Path)
	setDuration("snapshot-cache-ttl", &cfg.Source.CacheTTL)
	setDuration("upstream-timeout", &cfg.Source.Timeout)

	setInt("port", &cfg.Server.Port)
	setInt("metrics-port", &cfg.Server.MetricsPort)

	return cfg, nil
}
