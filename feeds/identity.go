package feeds

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// GeneratorCollection is the NSID of feed generator records
const GeneratorCollection = "app.bsky.feed.generator"

// DefaultRecordKey is used when no record key is configured or derivable
const DefaultRecordKey = "feed"

var (
	ErrInvalidFeedURI = fmt.Errorf("FEED_GENERATOR_URI must be at://<did>/%s/<rkey>", GeneratorCollection)
	ErrNoServiceDID   = errors.New("service DID cannot be derived: set SERVICE_DID or FEED_ENDPOINT")
	ErrOwnerMismatch  = errors.New("FEED_GENERATOR_URI did must match owner DID")
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a name into a record key: lowercase with runs of anything
// but letters and digits collapsed to a single hyphen.
func Slugify(value string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(value), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return DefaultRecordKey
	}
	return slug
}

// BuildFeedURI returns at://<did>/app.bsky.feed.generator/<rkey>
func BuildFeedURI(did, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", did, GeneratorCollection, rkey)
}

// ParseFeedURI splits a feed generator URI into its DID and record key.
// Anything other than at://<did>/app.bsky.feed.generator/<rkey> is rejected.
func ParseFeedURI(value string) (did string, rkey string, err error) {
	uri, err := syntax.ParseATURI(value)
	if err != nil {
		return "", "", ErrInvalidFeedURI
	}

	authority, err := syntax.ParseDID(uri.Authority().String())
	if err != nil {
		return "", "", ErrInvalidFeedURI
	}

	if uri.Collection().String() != GeneratorCollection || uri.RecordKey().String() == "" {
		return "", "", ErrInvalidFeedURI
	}

	did, rkey = authority.String(), uri.RecordKey().String()

	// Fragments and anything else the generic parser tolerates
	if BuildFeedURI(did, rkey) != value {
		return "", "", ErrInvalidFeedURI
	}
	return did, rkey, nil
}

// WebDID derives did:web:<hostname> from an endpoint or origin URL.
// Returns an empty string when no hostname can be found.
func WebDID(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "did:web:" + u.Hostname()
}

// IdentityInputs are the explicit overrides and derivation sources for the
// identifiers a feed generator exposes. Empty fields are treated as unset.
type IdentityInputs struct {
	ServiceDID   string
	GeneratorDID string
	GeneratorURI string
	RecordKey    string
	Endpoint     string
	// Origin is the origin of the current request, if any
	Origin string
	// OwnerDID is the publishing account, known only when registering
	OwnerDID string
}

// Identity holds the resolved identifiers
type Identity struct {
	// ServiceDID identifies the service answering feed requests
	ServiceDID string
	// PublisherDID is the repository holding the generator record
	PublisherDID string
	FeedURI      string
	RecordKey    string
}

type rule struct {
	name   string
	when   func(in IdentityInputs) bool
	derive func(in IdentityInputs, id Identity) (string, error)
}

func explicit(value string) string { return strings.TrimSpace(value) }

var serviceDIDRules = []rule{
	{
		name: "explicit",
		when: func(in IdentityInputs) bool { return explicit(in.ServiceDID) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			return explicit(in.ServiceDID), nil
		},
	},
	{
		name: "endpoint",
		when: func(in IdentityInputs) bool { return WebDID(in.Endpoint) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			return WebDID(in.Endpoint), nil
		},
	},
	{
		name: "origin",
		when: func(in IdentityInputs) bool { return WebDID(in.Origin) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			return WebDID(in.Origin), nil
		},
	},
	{
		name: "owner",
		when: func(in IdentityInputs) bool { return explicit(in.OwnerDID) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			return explicit(in.OwnerDID), nil
		},
	},
}

var publisherDIDRules = []rule{
	{
		name: "generator uri",
		when: func(in IdentityInputs) bool { return explicit(in.GeneratorURI) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			did, _, err := ParseFeedURI(explicit(in.GeneratorURI))
			return did, err
		},
	},
	{
		name: "generator did",
		when: func(in IdentityInputs) bool { return explicit(in.GeneratorDID) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			return explicit(in.GeneratorDID), nil
		},
	},
	{
		name: "service did",
		when: func(IdentityInputs) bool { return true },
		derive: func(_ IdentityInputs, id Identity) (string, error) {
			return id.ServiceDID, nil
		},
	},
}

var recordKeyRules = []rule{
	{
		name: "generator uri",
		when: func(in IdentityInputs) bool { return explicit(in.GeneratorURI) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			_, rkey, err := ParseFeedURI(explicit(in.GeneratorURI))
			return rkey, err
		},
	},
	{
		name: "explicit",
		when: func(in IdentityInputs) bool { return explicit(in.RecordKey) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			return explicit(in.RecordKey), nil
		},
	},
	{
		name: "default",
		when: func(IdentityInputs) bool { return true },
		derive: func(IdentityInputs, Identity) (string, error) {
			return DefaultRecordKey, nil
		},
	},
}

var feedURIRules = []rule{
	{
		name: "generator uri",
		when: func(in IdentityInputs) bool { return explicit(in.GeneratorURI) != "" },
		derive: func(in IdentityInputs, _ Identity) (string, error) {
			if _, _, err := ParseFeedURI(explicit(in.GeneratorURI)); err != nil {
				return "", err
			}
			return explicit(in.GeneratorURI), nil
		},
	},
	{
		name: "synthesized",
		when: func(IdentityInputs) bool { return true },
		derive: func(_ IdentityInputs, id Identity) (string, error) {
			return BuildFeedURI(id.PublisherDID, id.RecordKey), nil
		},
	},
}

// resolve evaluates rules top-down and returns the first matching derivation
func resolve(rules []rule, in IdentityInputs, id Identity) (string, error) {
	for _, r := range rules {
		if !r.when(in) {
			continue
		}
		value, err := r.derive(in, id)
		if err != nil {
			return "", fmt.Errorf("%s: %w", r.name, err)
		}
		return value, nil
	}
	return "", nil
}

// ResolveIdentity derives the service DID, publisher DID, record key and feed
// URI. Explicit values always win over derived ones.
func ResolveIdentity(in IdentityInputs) (Identity, error) {
	var id Identity
	var err error

	if id.ServiceDID, err = resolve(serviceDIDRules, in, id); err != nil {
		return Identity{}, err
	}
	if id.ServiceDID == "" {
		return Identity{}, ErrNoServiceDID
	}

	if id.PublisherDID, err = resolve(publisherDIDRules, in, id); err != nil {
		return Identity{}, err
	}

	if id.RecordKey, err = resolve(recordKeyRules, in, id); err != nil {
		return Identity{}, err
	}

	if id.FeedURI, err = resolve(feedURIRules, in, id); err != nil {
		return Identity{}, err
	}

	return id, nil
}

// OwnedRecordKey returns the record key to write under ownerDID. When a
// generator URI override is given it must belong to ownerDID and its record
// key replaces fallback.
func OwnedRecordKey(generatorURI, ownerDID, fallback string) (string, error) {
	generatorURI = explicit(generatorURI)
	if generatorURI == "" {
		return fallback, nil
	}

	did, rkey, err := ParseFeedURI(generatorURI)
	if err != nil {
		return "", err
	}
	if did != ownerDID {
		return "", fmt.Errorf("%w (%s)", ErrOwnerMismatch, ownerDID)
	}
	return rkey, nil
}
