package snapshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"feedsnap/models"
	"feedsnap/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "feed.json")
	doc := &models.Snapshot{
		GeneratedAt: "2024-05-01T10:00:00.000Z",
		Source:      models.SnapshotSource,
		Query:       models.QueryList{"golang -spam"},
		Languages:   []string{"en"},
		Items: []models.FeedItem{
			{Uri: "at://did:plc:a/app.bsky.feed.post/1", IndexedAt: "2024-05-01T09:00:00.000Z"},
			{Uri: "at://did:plc:b/app.bsky.feed.post/2", IndexedAt: "2024-05-01T08:00:00.000Z"},
		},
	}

	require.NoError(t, snapshot.Write(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"generatedAt\": \"2024-05-01T10:00:00.000Z\"")
	assert.Contains(t, string(data), `"query": "golang -spam"`)

	var decoded models.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *doc, decoded)

	uris, err := snapshot.ReadItems(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"at://did:plc:a/app.bsky.feed.post/1", "at://did:plc:b/app.bsky.feed.post/2"}, uris)

	// No temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteReplacesExistingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte("old content that is longer than the new one"), 0o644))

	require.NoError(t, snapshot.Write(path, &models.Snapshot{Query: models.QueryList{"a", "b"}, Items: []models.FeedItem{}}))

	var decoded map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []any{"a", "b"}, decoded["query"])
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []string
		err      error
	}{
		{name: "valid", body: `{"items":[{"uri":"a"},{"uri":"b"}]}`, expected: []string{"a", "b"}},
		{name: "skips items without string uri", body: `{"items":[{"uri":"a"},{"uri":5},{},null,3,"x",{"uri":"c"}]}`, expected: []string{"a", "c"}},
		{name: "empty items", body: `{"items":[]}`, expected: []string{}},
		{name: "items not an array", body: `{"items":{"uri":"a"}}`, err: snapshot.ErrNoItems},
		{name: "items missing", body: `{"feed":[]}`, err: snapshot.ErrNoItems},
		{name: "document is an array", body: `[{"uri":"a"}]`, err: snapshot.ErrNoItems},
		{name: "document is null", body: `null`, err: snapshot.ErrNoItems},
		{name: "malformed", body: `{"items":[`, err: snapshot.ErrMalformed},
		{name: "html", body: `<html>oops</html>`, err: snapshot.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uris, err := snapshot.ParseItems([]byte(tt.body))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, uris)
		})
	}
}

func TestHTTPSourceLoad(t *testing.T) {
	var accept string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{"items":[{"uri":"a"},{"uri":"b"}]}`))
	}))
	defer upstream.Close()

	uris, err := snapshot.NewHTTPSource(upstream.URL, upstream.Client()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, uris)
	assert.Equal(t, "application/json", accept)
}

func TestHTTPSourceErrors(t *testing.T) {
	longBody := strings.Repeat("x", 500)

	tests := []struct {
		name    string
		status  int
		body    string
		kind    snapshot.ErrorKind
		message string
	}{
		{name: "not found", status: http.StatusNotFound, body: "404: Not Found", kind: snapshot.KindStatus, message: "Upstream responded with 404: 404: Not Found"},
		{name: "server error truncated", status: http.StatusInternalServerError, body: longBody, kind: snapshot.KindStatus, message: "Upstream responded with 500: " + strings.Repeat("x", 200)},
		{name: "malformed", status: http.StatusOK, body: "not json", kind: snapshot.KindMalformed, message: "Upstream returned malformed JSON: not json"},
		{name: "schema", status: http.StatusOK, body: `{"items":"nope"}`, kind: snapshot.KindSchema, message: "Upstream feed document is missing items array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer upstream.Close()

			_, err := snapshot.NewHTTPSource(upstream.URL, upstream.Client()).Load(context.Background())
			var upstreamErr *snapshot.UpstreamError
			require.ErrorAs(t, err, &upstreamErr)
			assert.Equal(t, tt.kind, upstreamErr.Kind)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestHTTPSourceTransportError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	location := upstream.URL
	upstream.Close()

	_, err := snapshot.NewHTTPSource(location, nil).Load(context.Background())
	var upstreamErr *snapshot.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, snapshot.KindTransport, upstreamErr.Kind)
	assert.True(t, strings.HasPrefix(err.Error(), "Upstream fetch failed: "))
}

func TestHTTPSourceWithoutLocation(t *testing.T) {
	for _, location := range []string{"", "data/feed.json", "ftp://example.com/feed.json", "://bad"} {
		_, err := snapshot.NewHTTPSource(location, nil).Load(context.Background())
		assert.ErrorIs(t, err, snapshot.ErrNoLocation, location)
	}
}

type countingSource struct {
	calls atomic.Int32
	uris  []string
	err   error
}

func (s *countingSource) Load(context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.uris, s.err
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{uris: []string{"a"}}
	source := snapshot.NewCachedSource(inner, time.Minute)

	for i := 0; i < 3; i++ {
		uris, err := source.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, uris)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	cached, ok := source.(*snapshot.CachedSource)
	require.True(t, ok)
	cached.Invalidate()

	_, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedSourceDoesNotCacheFailures(t *testing.T) {
	inner := &countingSource{err: errors.New("boom")}
	source := snapshot.NewCachedSource(inner, time.Minute)

	_, err := source.Load(context.Background())
	assert.Error(t, err)
	_, err = source.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedSourceDisabled(t *testing.T) {
	inner := &countingSource{}
	assert.Same(t, snapshot.Source(inner), snapshot.NewCachedSource(inner, 0))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", snapshot.Truncate("abc", 5))
	assert.Equal(t, "ab", snapshot.Truncate("abc", 2))
	assert.Equal(t, "日本", snapshot.Truncate("日本語", 2))
}
