package inspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"feedsnap/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	batches [][]string
	err     error
}

func (f *fakeFetcher) GetPosts(_ context.Context, uris []string) ([]models.Post, error) {
	f.batches = append(f.batches, uris)
	if f.err != nil {
		return nil, f.err
	}
	posts := make([]models.Post, 0, len(uris))
	for _, uri := range uris {
		posts = append(posts, models.Post{Uri: uri, AuthorDid: "did:plc:x"})
	}
	return posts, nil
}

func TestFetchBatches(t *testing.T) {
	uris := make([]string, 60)
	for i := range uris {
		uris[i] = fmt.Sprintf("at://did:plc:x/app.bsky.feed.post/%d", i)
	}

	fetcher := &fakeFetcher{}
	posts, err := New(fetcher, "").Fetch(context.Background(), uris)
	require.NoError(t, err)

	require.Len(t, fetcher.batches, 3)
	assert.Len(t, fetcher.batches[0], 25)
	assert.Len(t, fetcher.batches[1], 25)
	assert.Len(t, fetcher.batches[2], 10)
	require.Len(t, posts, 60)
	assert.Equal(t, uris[59], posts[59].Uri)
}

func TestFetchStopsOnError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("getPosts failed: status 502")}
	_, err := New(fetcher, "").Fetch(context.Background(), []string{"a", "b"})
	assert.EqualError(t, err, "getPosts failed: status 502")
	assert.Len(t, fetcher.batches, 1)
}

func TestPermalink(t *testing.T) {
	i := New(nil, "")

	assert.Equal(t, "https://bsky.app/profile/alice.bsky.social/post/3kabc",
		i.Permalink(models.Post{Uri: "at://did:plc:a/app.bsky.feed.post/3kabc", AuthorHandle: "alice.bsky.social", AuthorDid: "did:plc:a"}))
	assert.Equal(t, "https://bsky.app/profile/did:plc:a/post/3kabc",
		i.Permalink(models.Post{Uri: "at://did:plc:a/app.bsky.feed.post/3kabc", AuthorDid: "did:plc:a"}))
	assert.Equal(t, "", i.Permalink(models.Post{Uri: "at://did:plc:a/app.bsky.feed.post/3kabc"}))
	assert.Equal(t, "", i.Permalink(models.Post{Uri: "", AuthorDid: "did:plc:a"}))

	custom := New(nil, "staging.bsky.dev")
	assert.Equal(t, "https://staging.bsky.dev/profile/bob/post/1", custom.Permalink(models.Post{Uri: "at://x/y/1", AuthorHandle: "bob"}))
}

func TestMarkdown(t *testing.T) {
	i := New(nil, "")
	i.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	report := i.Markdown([]models.Post{
		{Uri: "at://did:plc:a/app.bsky.feed.post/1", AuthorHandle: "alice.bsky.social", CreatedAt: "2024-05-01T09:00:00.000Z", Text: "hello\nworld"},
		{Uri: "at://did:plc:b/app.bsky.feed.post/2"},
	}, "data/feed.json")

	expected := `# Feed Inspection

- Source: data/feed.json
- Count: 2
- Generated: 2024-05-01T10:00:00.000Z

## 1. @alice.bsky.social 2024-05-01T09:00:00.000Z

- uri: at://did:plc:a/app.bsky.feed.post/1
- url: https://bsky.app/profile/alice.bsky.social/post/1

> hello
> world

## 2. @unknown

- uri: at://did:plc:b/app.bsky.feed.post/2
`
	assert.Equal(t, expected, report)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	err := New(nil, "").Console(&buf, []models.Post{
		{Uri: "at://did:plc:a/app.bsky.feed.post/1", AuthorHandle: "alice", CreatedAt: "2024-05-01", Text: "two\nlines"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1. @alice 2024-05-01\n   at://did:plc:a/app.bsky.feed.post/1\n   https://bsky.app/profile/alice/post/1\n   two lines\n", buf.String())
}
