package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsnap/feeds"
	"feedsnap/server"
	"feedsnap/snapshot"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 60 * time.Second

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feed generator API",
		Description: `Starts the feed generator HTTP server.

Every getFeedSkeleton request fetches the published snapshot from FEED_URL,
or from the raw GitHub location of the configured repository, and pages
through its items. Set --snapshot-cache-ttl to reuse fetched snapshots for a
while; send SIGHUP to drop the cached snapshot.`,
		Flags: append(append(feedFlags(), sourceFlags()...), serverFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			if cfg.Feed.GeneratorURI != "" {
				if _, _, err := feeds.ParseFeedURI(cfg.Feed.GeneratorURI); err != nil {
					return err
				}
			}

			location := cfg.SnapshotLocation()
			if location == "" {
				log.Warn("No snapshot location configured, set FEED_URL or GITHUB_REPOSITORY")
			}

			source := snapshot.NewCachedSource(
				snapshot.NewHTTPSource(location, &http.Client{Timeout: cfg.Source.Timeout}),
				cfg.Source.CacheTTL,
			)

			app := server.Server(&server.ServerConfig{
				Identity: feeds.IdentityInputs{
					ServiceDID:   cfg.Feed.ServiceDID,
					GeneratorDID: cfg.Feed.GeneratorDID,
					GeneratorURI: cfg.Feed.GeneratorURI,
					RecordKey:    recordKey(cfg),
					Endpoint:     cfg.Feed.Endpoint,
				},
				Source: source,
			})

			apps := []*fiber.App{app}
			errs := make(chan error, 2)

			go func() {
				log.WithFields(log.Fields{
					"port":     cfg.Server.Port,
					"location": location,
				}).Info("Starting server")
				errs <- app.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
			}()

			if cfg.Server.MetricsPort > 0 {
				metrics := server.MetricsServer()
				apps = append(apps, metrics)
				go func() {
					log.WithField("port", cfg.Server.MetricsPort).Info("Starting metrics server")
					errs <- metrics.Listen(fmt.Sprintf(":%d", cfg.Server.MetricsPort))
				}()
			}

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(c)

			for {
				select {
				case err := <-errs:
					shutdown(apps)
					return err
				case <-ctx.Context.Done():
					shutdown(apps)
					return nil
				case sig := <-c:
					if sig == syscall.SIGHUP {
						if cached, ok := source.(*snapshot.CachedSource); ok {
							cached.Invalidate()
							log.Info("Dropped cached snapshot")
						}
						continue
					}
					log.Info("Gracefully shutting down...")
					shutdown(apps)
					return nil
				}
			}
		},
	}
}

func shutdown(apps []*fiber.App) {
	for _, app := range apps {
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("Error shutting down server")
		}
	}
}
