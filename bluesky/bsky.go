package bluesky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"feedsnap/feeds"
	"feedsnap/models"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPDSHost     = "https://bsky.social"
	DefaultAppViewHost = "https://public.api.bsky.app"
)

// errorBodyLength bounds the error text included in returned errors
const errorBodyLength = 200

type Credentials struct {
	Identifier string
	Password   string
}

type Client struct {
	xrpc *xrpc.Client
}

func ClientFromCredentials(ctx context.Context, host string, creds *Credentials) (*Client, error) {
	auth, err := atproto.ServerCreateSession(ctx, &xrpc.Client{Host: host, Client: http.DefaultClient}, &atproto.ServerCreateSession_Input{
		Identifier: creds.Identifier,
		Password:   creds.Password,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", describe(err))
	}

	xrpcClient := &xrpc.Client{
		Host: host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: http.DefaultClient,
	}

	return &Client{xrpc: xrpcClient}, nil
}

// NewPublicClient returns an unauthenticated client, e.g. for the public AppView
func NewPublicClient(host string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{xrpc: &xrpc.Client{Host: host, Client: httpClient}}
}

// describe flattens xrpc errors into the status code and a bounded error body
func describe(err error) error {
	var xerr *xrpc.Error
	if !errors.As(err, &xerr) {
		return err
	}

	body := ""
	if xerr.Wrapped != nil {
		body = xerr.Wrapped.Error()
	}
	if utf8.RuneCountInString(body) > errorBodyLength {
		body = string([]rune(body)[:errorBodyLength])
	}
	return fmt.Errorf("status %d: %s", xerr.StatusCode, body)
}

// ResolveDID returns identifier unchanged when it already is a DID and
// resolves it as a handle otherwise.
func (c *Client) ResolveDID(ctx context.Context, identifier string) (string, error) {
	if did, err := syntax.ParseDID(identifier); err == nil {
		return did.String(), nil
	}

	resp, err := atproto.IdentityResolveHandle(ctx, c.xrpc, identifier)
	if err != nil {
		return "", fmt.Errorf("failed to resolve handle %s: %w", identifier, describe(err))
	}
	return resp.Did, nil
}

// UploadBlob uploads a blob (binary data like an image) to the Bluesky network.
// It takes a context and an io.Reader containing the blob data.
// Returns the uploaded blob's metadata or an error if the upload fails.
func (c *Client) UploadBlob(ctx context.Context, r io.Reader) (*lexutil.LexBlob, error) {
	resp, err := atproto.RepoUploadBlob(ctx, c.xrpc, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload blob: %w", describe(err))
	}
	return resp.Blob, nil
}

// PutFeedGenerator creates a feed generator record in repo.
// If the feed generator already exists, it will be updated.
// The rkey is the unique identifier for the feed generator in the repository.
func (c *Client) PutFeedGenerator(ctx context.Context, repo string, rkey string, record *bsky.FeedGenerator) error {
	record.LexiconTypeID = feeds.GeneratorCollection

	_, err := atproto.RepoPutRecord(ctx, c.xrpc, &atproto.RepoPutRecord_Input{
		Collection: feeds.GeneratorCollection,
		Repo:       repo,
		Rkey:       rkey,
		Record: &lexutil.LexiconTypeDecoder{
			Val: record,
		},
	})
	if err != nil {
		log.WithFields(log.Fields{
			"repo":  repo,
			"rkey":  rkey,
			"error": err,
		}).Error("Failed to put feed generator record")
		return fmt.Errorf("failed to put record: %w", describe(err))
	}
	return nil
}

// DeleteFeedGenerator removes the feed generator record rkey from repo
func (c *Client) DeleteFeedGenerator(ctx context.Context, repo string, rkey string) error {
	_, err := atproto.RepoDeleteRecord(ctx, c.xrpc, &atproto.RepoDeleteRecord_Input{
		Collection: feeds.GeneratorCollection,
		Repo:       repo,
		Rkey:       rkey,
	})
	if err != nil {
		return fmt.Errorf("failed to delete feed %s: %w", rkey, describe(err))
	}
	return nil
}

// DeleteAllFeeds deletes every feed generator record of the logged in
// account and returns the deleted record keys.
func (c *Client) DeleteAllFeeds(ctx context.Context) ([]string, error) {
	if c.xrpc.Auth == nil {
		return nil, errors.New("deleting feeds requires an authenticated client")
	}

	resp, err := bsky.FeedGetActorFeeds(ctx, c.xrpc, c.xrpc.Auth.Did, "", 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", describe(err))
	}

	deleted := []string{}
	for _, feed := range resp.Feeds {
		uri, err := syntax.ParseATURI(feed.Uri)
		if err != nil {
			return deleted, fmt.Errorf("failed to parse at uri: %w", err)
		}
		rkey := uri.RecordKey().String()
		if err := c.DeleteFeedGenerator(ctx, uri.Authority().String(), rkey); err != nil {
			return deleted, err
		}
		deleted = append(deleted, rkey)
	}
	return deleted, nil
}

// SearchPosts runs one app.bsky.feed.searchPosts request sorted by latest
func (c *Client) SearchPosts(ctx context.Context, query string, lang string, limit int, cursor string) (*feeds.SearchPage, error) {
	resp, err := bsky.FeedSearchPosts(ctx, c.xrpc, "", cursor, "", lang, int64(limit), "", query, "", "latest", nil, "", "")
	if err != nil {
		return nil, describe(err)
	}

	page := &feeds.SearchPage{Items: make([]models.FeedItem, 0, len(resp.Posts))}
	for _, post := range resp.Posts {
		if post == nil || post.Uri == "" {
			continue
		}
		page.Items = append(page.Items, models.FeedItem{
			Uri:       post.Uri,
			IndexedAt: post.IndexedAt,
		})
	}
	if resp.Cursor != nil {
		page.Cursor = *resp.Cursor
	}
	return page, nil
}

// GetPosts hydrates up to 25 post uris through app.bsky.feed.getPosts
func (c *Client) GetPosts(ctx context.Context, uris []string) ([]models.Post, error) {
	resp, err := bsky.FeedGetPosts(ctx, c.xrpc, uris)
	if err != nil {
		return nil, fmt.Errorf("getPosts failed: %w", describe(err))
	}

	posts := make([]models.Post, 0, len(resp.Posts))
	for _, view := range resp.Posts {
		if view == nil {
			continue
		}
		post := models.Post{Uri: view.Uri}
		if view.Author != nil {
			post.AuthorHandle = view.Author.Handle
			post.AuthorDid = view.Author.Did
		}
		if view.Record != nil {
			if record, ok := view.Record.Val.(*bsky.FeedPost); ok {
				post.Text = record.Text
				post.CreatedAt = record.CreatedAt
			}
		}
		posts = append(posts, post)
	}
	return posts, nil
}

var _ feeds.Searcher = (*Client)(nil)
