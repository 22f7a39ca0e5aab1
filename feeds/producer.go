package feeds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"feedsnap/models"

	log "github.com/sirupsen/logrus"
)

// maxSearchPage is the largest page the search API hands out
const maxSearchPage = 100

// SearchPage is one page of search results
type SearchPage struct {
	Items  []models.FeedItem
	Cursor string
}

// Searcher runs a single search request
type Searcher interface {
	SearchPosts(ctx context.Context, query string, lang string, limit int, cursor string) (*SearchPage, error)
}

// ProducerConfig describes what a snapshot should contain
type ProducerConfig struct {
	// Queries are the effective queries, see BuildQueries
	Queries  []string
	Language string
	// Limit is the number of unique posts to collect per query
	Limit int
}

// Producer collects search results into a snapshot document
type Producer struct {
	searcher Searcher
	now      func() time.Time
}

func NewProducer(searcher Searcher) *Producer {
	return &Producer{
		searcher: searcher,
		now:      time.Now,
	}
}

// collector keeps the first occurrence of every uri, in insertion order
type collector struct {
	seen  map[string]struct{}
	items []models.FeedItem
}

func (c *collector) add(item models.FeedItem) bool {
	if _, ok := c.seen[item.Uri]; ok {
		return false
	}
	c.seen[item.Uri] = struct{}{}
	c.items = append(c.items, item)
	return true
}

// Produce runs every query sequentially and merges the results by uri.
// Each query is paged until Limit new posts were added, the API runs out of
// cursors or returns an empty page.
func (p *Producer) Produce(ctx context.Context, cfg ProducerConfig) (*models.Snapshot, error) {
	if len(cfg.Queries) == 0 {
		return nil, errors.New("search query is empty")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("invalid search limit %d", cfg.Limit)
	}

	generatedAt := FormatTime(p.now().UTC())
	posts := &collector{seen: make(map[string]struct{})}

	for _, query := range cfg.Queries {
		if err := p.collect(ctx, posts, query, cfg, generatedAt); err != nil {
			return nil, err
		}
	}

	if len(cfg.Queries) > 1 {
		sortByIndexedAtDesc(posts.items)
	}

	languages := []string{}
	if cfg.Language != "" {
		languages = append(languages, cfg.Language)
	}

	items := posts.items
	if items == nil {
		items = []models.FeedItem{}
	}

	return &models.Snapshot{
		GeneratedAt: generatedAt,
		Source:      models.SnapshotSource,
		Query:       models.QueryList(cfg.Queries),
		Languages:   languages,
		Items:       items,
	}, nil
}

func (p *Producer) collect(ctx context.Context, posts *collector, query string, cfg ProducerConfig, generatedAt string) error {
	remaining := cfg.Limit
	cursor := ""

	for remaining > 0 {
		page, err := p.searcher.SearchPosts(ctx, query, cfg.Language, min(maxSearchPage, remaining), cursor)
		if err != nil {
			return fmt.Errorf("search %q failed: %w", query, err)
		}

		added := 0
		for _, item := range page.Items {
			if item.IndexedAt == "" {
				item.IndexedAt = generatedAt
			}
			if posts.add(item) {
				added++
			}
		}
		remaining -= added

		log.WithFields(log.Fields{
			"query":     query,
			"received":  len(page.Items),
			"added":     added,
			"remaining": remaining,
		}).Debug("Search page collected")

		cursor = page.Cursor
		if cursor == "" || len(page.Items) == 0 {
			break
		}
	}

	return nil
}

func sortByIndexedAtDesc(items []models.FeedItem) {
	parsed := make(map[string]time.Time, len(items))
	for _, item := range items {
		// Unparsable timestamps stay zero and sink to the end
		t, _ := time.Parse(time.RFC3339Nano, item.IndexedAt)
		parsed[item.Uri] = t
	}

	sort.SliceStable(items, func(i, j int) bool {
		return parsed[items[i].Uri].After(parsed[items[j].Uri])
	})
}

// FormatTime formats a time.Time into the format expected by AT Protocol
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z")
}
