package feeds_test

import (
	"testing"

	"feedsnap/feeds"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{name: "plain", value: "feed", expected: "feed"},
		{name: "mixed case and spaces", value: "My Cool Feed", expected: "my-cool-feed"},
		{name: "runs collapse", value: "selfhost--bsky__feed!!", expected: "selfhost-bsky-feed"},
		{name: "trimmed", value: "--Gophers--", expected: "gophers"},
		{name: "non ascii only", value: "日本語", expected: "feed"},
		{name: "empty", value: "", expected: "feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, feeds.Slugify(tt.value))
		})
	}
}

func TestFeedURIRoundTrip(t *testing.T) {
	pairs := []struct {
		did  string
		rkey string
	}{
		{did: "did:plc:123", rkey: "foo"},
		{did: "did:web:feeds.example.com", rkey: "selfhost-bsky-feed"},
		{did: "did:plc:z72i7hdynmk6r22z27h6tvur", rkey: "whats-hot"},
	}

	for _, pair := range pairs {
		uri := feeds.BuildFeedURI(pair.did, pair.rkey)
		did, rkey, err := feeds.ParseFeedURI(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, pair.did, did)
		assert.Equal(t, pair.rkey, rkey)
	}
}

func TestParseFeedURIRejectsInvalid(t *testing.T) {
	invalid := []string{
		"not-a-uri",
		"",
		"at://did:plc:123",
		"at://did:plc:123/app.bsky.feed.post/foo",
		"at://did:plc:123/app.bsky.feed.generator/",
		"at://did:plc:123/app.bsky.feed.generator/foo/bar",
		"at://alice.bsky.social/app.bsky.feed.generator/foo",
		"https://did:plc:123/app.bsky.feed.generator/foo",
		"at://did:plc:123/app.bsky.feed.generator/foo#/frag",
	}

	for _, value := range invalid {
		_, _, err := feeds.ParseFeedURI(value)
		assert.ErrorIs(t, err, feeds.ErrInvalidFeedURI, value)
	}
}

func TestWebDID(t *testing.T) {
	assert.Equal(t, "did:web:feed.example.com", feeds.WebDID("https://feed.example.com/some/path"))
	assert.Equal(t, "did:web:feed.example.com", feeds.WebDID("https://feed.example.com:8443"))
	assert.Equal(t, "did:web:feed.example.com", feeds.WebDID("feed.example.com"))
	assert.Equal(t, "", feeds.WebDID(""))
	assert.Equal(t, "", feeds.WebDID("   "))
}

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name     string
		in       feeds.IdentityInputs
		expected feeds.Identity
	}{
		{
			name: "generator uri decides publisher and feed",
			in: feeds.IdentityInputs{
				GeneratorURI: "at://did:plc:123/app.bsky.feed.generator/foo",
				Origin:       "https://example.com",
			},
			expected: feeds.Identity{
				ServiceDID:   "did:web:example.com",
				PublisherDID: "did:plc:123",
				RecordKey:    "foo",
				FeedURI:      "at://did:plc:123/app.bsky.feed.generator/foo",
			},
		},
		{
			name: "generator did with record key",
			in: feeds.IdentityInputs{
				GeneratorDID: "did:plc:abc",
				RecordKey:    "rk",
				Origin:       "https://example.com",
			},
			expected: feeds.Identity{
				ServiceDID:   "did:web:example.com",
				PublisherDID: "did:plc:abc",
				RecordKey:    "rk",
				FeedURI:      "at://did:plc:abc/app.bsky.feed.generator/rk",
			},
		},
		{
			name: "endpoint wins over origin",
			in: feeds.IdentityInputs{
				Endpoint: "https://feed.example.com",
				Origin:   "http://localhost:3000",
			},
			expected: feeds.Identity{
				ServiceDID:   "did:web:feed.example.com",
				PublisherDID: "did:web:feed.example.com",
				RecordKey:    "feed",
				FeedURI:      "at://did:web:feed.example.com/app.bsky.feed.generator/feed",
			},
		},
		{
			name: "explicit service did wins over endpoint",
			in: feeds.IdentityInputs{
				ServiceDID: "did:plc:service",
				Endpoint:   "https://feed.example.com",
				RecordKey:  "gophers",
			},
			expected: feeds.Identity{
				ServiceDID:   "did:plc:service",
				PublisherDID: "did:plc:service",
				RecordKey:    "gophers",
				FeedURI:      "at://did:plc:service/app.bsky.feed.generator/gophers",
			},
		},
		{
			name: "explicit uri is never overwritten by record key",
			in: feeds.IdentityInputs{
				GeneratorURI: "at://did:plc:123/app.bsky.feed.generator/foo",
				GeneratorDID: "did:plc:other",
				RecordKey:    "bar",
				ServiceDID:   "did:web:svc.example.com",
			},
			expected: feeds.Identity{
				ServiceDID:   "did:web:svc.example.com",
				PublisherDID: "did:plc:123",
				RecordKey:    "foo",
				FeedURI:      "at://did:plc:123/app.bsky.feed.generator/foo",
			},
		},
		{
			name: "owner did is the last resort for the service did",
			in: feeds.IdentityInputs{
				OwnerDID:  "did:plc:owner",
				RecordKey: "rk",
			},
			expected: feeds.Identity{
				ServiceDID:   "did:plc:owner",
				PublisherDID: "did:plc:owner",
				RecordKey:    "rk",
				FeedURI:      "at://did:plc:owner/app.bsky.feed.generator/rk",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := feeds.ResolveIdentity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestResolveIdentityErrors(t *testing.T) {
	_, err := feeds.ResolveIdentity(feeds.IdentityInputs{})
	assert.ErrorIs(t, err, feeds.ErrNoServiceDID)

	_, err = feeds.ResolveIdentity(feeds.IdentityInputs{
		GeneratorURI: "not-a-uri",
		Origin:       "https://example.com",
	})
	assert.ErrorIs(t, err, feeds.ErrInvalidFeedURI)
}

func TestOwnedRecordKey(t *testing.T) {
	rkey, err := feeds.OwnedRecordKey("", "did:plc:owner", "derived")
	require.NoError(t, err)
	assert.Equal(t, "derived", rkey)

	rkey, err = feeds.OwnedRecordKey("at://did:plc:owner/app.bsky.feed.generator/explicit", "did:plc:owner", "derived")
	require.NoError(t, err)
	assert.Equal(t, "explicit", rkey)

	_, err = feeds.OwnedRecordKey("at://did:plc:someone/app.bsky.feed.generator/explicit", "did:plc:owner", "derived")
	assert.ErrorIs(t, err, feeds.ErrOwnerMismatch)
	assert.Contains(t, err.Error(), "did:plc:owner")

	_, err = feeds.OwnedRecordKey("at://nope", "did:plc:owner", "derived")
	assert.ErrorIs(t, err, feeds.ErrInvalidFeedURI)
}
