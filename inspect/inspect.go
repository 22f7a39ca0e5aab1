// Package inspect hydrates snapshot posts for human review
package inspect

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"feedsnap/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// BatchSize is the maximum number of uris accepted by app.bsky.feed.getPosts
const BatchSize = 25

const DefaultAppHost = "bsky.app"

type PostFetcher interface {
	GetPosts(ctx context.Context, uris []string) ([]models.Post, error)
}

type Inspector struct {
	fetcher PostFetcher
	appHost string
	now     func() time.Time
}

func New(fetcher PostFetcher, appHost string) *Inspector {
	if appHost == "" {
		appHost = DefaultAppHost
	}
	return &Inspector{
		fetcher: fetcher,
		appHost: appHost,
		now:     time.Now,
	}
}

// Fetch hydrates uris in sequential batches, preserving the returned order
func (i *Inspector) Fetch(ctx context.Context, uris []string) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(uris))
	for n, batch := range lo.Chunk(uris, BatchSize) {
		log.WithFields(log.Fields{
			"batch": n + 1,
			"size":  len(batch),
		}).Debug("Fetching posts")

		fetched, err := i.fetcher.GetPosts(ctx, batch)
		if err != nil {
			return nil, err
		}
		posts = append(posts, fetched...)
	}
	return posts, nil
}

// Permalink builds the web URL of a post, or "" when author or rkey is unknown
func (i *Inspector) Permalink(post models.Post) string {
	author := post.Author()
	rkey := post.Uri[strings.LastIndex(post.Uri, "/")+1:]
	if author == "" || rkey == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/profile/%s/post/%s", i.appHost, author, rkey)
}

// Markdown renders a review report of posts read from source
func (i *Inspector) Markdown(posts []models.Post, source string) string {
	lines := []string{
		"# Feed Inspection",
		"",
		"- Source: " + source,
		fmt.Sprintf("- Count: %d", len(posts)),
		"- Generated: " + i.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		"",
	}

	for n, post := range posts {
		author := post.Author()
		if author == "" {
			author = "unknown"
		}
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("## %d. @%s %s", n+1, author, post.CreatedAt)), "")
		lines = append(lines, "- uri: "+post.Uri)
		if url := i.Permalink(post); url != "" {
			lines = append(lines, "- url: "+url)
		}
		lines = append(lines, "")

		if post.Text != "" {
			quoted := lo.Map(strings.Split(post.Text, "\n"), func(line string, _ int) string {
				return "> " + line
			})
			lines = append(lines, strings.Join(quoted, "\n"), "")
		}
	}

	return strings.Join(lines, "\n")
}

// Console writes one short block per post
func (i *Inspector) Console(w io.Writer, posts []models.Post) error {
	for n, post := range posts {
		author := post.Author()
		if author == "" {
			author = "unknown"
		}
		text := strings.ReplaceAll(post.Text, "\n", " ")
		if _, err := fmt.Fprintf(w, "%d. @%s %s\n   %s\n   %s\n   %s\n", n+1, author, post.CreatedAt, post.Uri, i.Permalink(post), text); err != nil {
			return err
		}
	}
	return nil
}
