package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// snippetLength bounds diagnostic body excerpts in errors and responses
const snippetLength = 200

// maxDocumentSize guards against unbounded upstream bodies
const maxDocumentSize = 32 << 20

var (
	ErrNoLocation = errors.New("snapshot location is not configured: set FEED_URL or GITHUB_REPOSITORY")
	ErrMalformed  = errors.New("malformed JSON")
	ErrNoItems    = errors.New("feed document is missing items array")
)

// Source provides the post URIs of the current snapshot
type Source interface {
	Load(ctx context.Context) ([]string, error)
}

type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
	KindSchema    ErrorKind = "schema"
)

// UpstreamError describes why a snapshot could not be loaded from upstream
type UpstreamError struct {
	Kind    ErrorKind
	Status  int
	Snippet string
	Err     error
}

func (e *UpstreamError) Error() string {
	var msg string
	switch e.Kind {
	case KindTransport:
		msg = fmt.Sprintf("Upstream fetch failed: %v", e.Err)
	case KindStatus:
		msg = fmt.Sprintf("Upstream responded with %d", e.Status)
	case KindMalformed:
		msg = fmt.Sprintf("Upstream returned %v", e.Err)
	default:
		msg = fmt.Sprintf("Upstream %v", e.Err)
	}
	if e.Snippet != "" {
		msg += ": " + e.Snippet
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ParseItems extracts the string uris of a snapshot document. Items without
// a string uri are skipped.
func ParseItems(data []byte) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(data) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, ErrNoItems
	}

	raw := bytes.TrimSpace(doc["items"])
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrNoItems
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ErrNoItems
	}

	uris := make([]string, 0, len(items))
	for _, rawItem := range items {
		var item struct {
			Uri any `json:"uri"`
		}
		if err := json.Unmarshal(rawItem, &item); err != nil {
			continue
		}
		if uri, ok := item.Uri.(string); ok {
			uris = append(uris, uri)
		}
	}

	return uris, nil
}

// HTTPSource fetches the snapshot from a URL on every Load
type HTTPSource struct {
	location string
	client   *http.Client
}

func NewHTTPSource(location string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{location: location, client: client}
}

func (s *HTTPSource) Load(ctx context.Context) ([]string, error) {
	location, err := url.Parse(s.location)
	if s.location == "" || err != nil || !location.IsAbs() || (location.Scheme != "http" && location.Scheme != "https") {
		return nil, ErrNoLocation
	}

	start := time.Now()
	uris, err := s.fetch(ctx, location.String())
	upstreamFetchDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		result = string(upstreamErr.Kind)
	}
	upstreamFetches.WithLabelValues(result).Inc()

	if err != nil {
		log.WithFields(log.Fields{
			"location": s.location,
			"error":    err,
		}).Warn("Failed to load snapshot")
		return nil, err
	}
	return uris, nil
}

func (s *HTTPSource) fetch(ctx context.Context, location string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			Kind:    KindStatus,
			Status:  resp.StatusCode,
			Snippet: Truncate(string(body), snippetLength),
		}
	}

	uris, err := ParseItems(body)
	switch {
	case errors.Is(err, ErrMalformed):
		return nil, &UpstreamError{Kind: KindMalformed, Status: resp.StatusCode, Err: ErrMalformed, Snippet: Truncate(string(body), snippetLength)}
	case err != nil:
		return nil, &UpstreamError{Kind: KindSchema, Status: resp.StatusCode, Err: err}
	}
	return uris, nil
}
