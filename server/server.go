package server

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"feedsnap/feeds"
	"feedsnap/snapshot"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"
)

const contentTypeJSON = "application/json; charset=utf-8"

type ServerConfig struct {

	// Identifier overrides and derivation sources. Origin is filled in per request.
	Identity feeds.IdentityInputs

	// Source of the feed snapshot, loaded on every skeleton request
	Source snapshot.Source
}

func sendJSON(c *fiber.Ctx, status int, body interface{}) error {
	return c.Status(status).JSON(body, contentTypeJSON)
}

func sendError(c *fiber.Ctx, status int, message string) error {
	return sendJSON(c, status, fiber.Map{"error": message})
}

// endpointOrigin reduces an endpoint URL to scheme://host
func endpointOrigin(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Returns a fiber.App instance to be used as an HTTP server for the feed
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		StrictRouting:         true,
		CaseSensitive:         true,
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		requests.WithLabelValues(c.Route().Path, strconv.Itoa(status)).Inc()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"path":    c.Path(),
			"status":  status,
			"latency": latency,
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// Feeds are fetched by clients from any origin
	app.Use(func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		return c.Next()
	})

	identity := func(c *fiber.Ctx) (feeds.Identity, error) {
		in := config.Identity
		in.Origin = c.BaseURL()
		return feeds.ResolveIdentity(in)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("ok")
	})

	// Well known
	app.Get("/.well-known/did.json", func(c *fiber.Ctx) error {
		id, err := identity(c)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error resolving service identity")
			return sendError(c, fiber.StatusInternalServerError, err.Error())
		}

		serviceEndpoint := endpointOrigin(config.Identity.Endpoint)
		if serviceEndpoint == "" {
			serviceEndpoint = c.BaseURL()
		}

		return sendJSON(c, fiber.StatusOK, map[string]interface{}{
			"@context": []string{"https://www.w3.org/ns/did/v1"},
			"id":       id.ServiceDID,
			"service": []map[string]interface{}{
				{
					"id":              "#bsky_fg",
					"type":            "BskyFeedGenerator",
					"serviceEndpoint": serviceEndpoint,
				},
			},
		})
	})

	// Endpoint to describe the feed
	app.Get("/xrpc/app.bsky.feed.describeFeedGenerator", func(c *fiber.Ctx) error {
		id, err := identity(c)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error resolving feed identity")
			return sendError(c, fiber.StatusInternalServerError, err.Error())
		}

		return sendJSON(c, fiber.StatusOK, bsky.FeedDescribeFeedGenerator_Output{
			Did: id.ServiceDID,
			Feeds: []*bsky.FeedDescribeFeedGenerator_Feed{
				{Uri: id.FeedURI},
			},
		})
	})

	app.Get("/xrpc/app.bsky.feed.getFeedSkeleton", func(c *fiber.Ctx) error {
		feed := c.Query("feed")
		cursor := c.Query("cursor")
		limit := feeds.ParsePageLimit(c.Query("limit"))

		id, err := identity(c)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error resolving feed identity")
			return sendError(c, fiber.StatusInternalServerError, err.Error())
		}

		if feed != id.FeedURI {
			return sendJSON(c, fiber.StatusBadRequest, fiber.Map{
				"error":    "Unknown feed",
				"expected": id.FeedURI,
			})
		}

		uris, err := config.Source.Load(c.UserContext())
		if err != nil {
			if errors.Is(err, snapshot.ErrNoLocation) {
				return sendError(c, fiber.StatusInternalServerError, err.Error())
			}
			return sendError(c, fiber.StatusBadGateway, err.Error())
		}

		page, nextCursor := feeds.Paginate(uris, limit, cursor)

		log.WithFields(log.Fields{
			"cursor":   cursor,
			"limit":    limit,
			"returned": len(page),
			"total":    len(uris),
		}).Debug("Generated feed skeleton")

		skeleton := make([]*bsky.FeedDefs_SkeletonFeedPost, 0, len(page))
		for _, uri := range page {
			skeleton = append(skeleton, &bsky.FeedDefs_SkeletonFeedPost{Post: uri})
		}

		return sendJSON(c, fiber.StatusOK, bsky.FeedGetFeedSkeleton_Output{
			Feed:   skeleton,
			Cursor: nextCursor,
		})
	})

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("Not Found")
	})

	return app
}
