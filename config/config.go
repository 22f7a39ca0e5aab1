package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultService      = "https://bsky.social"
	DefaultQuery        = "bluesky"
	DefaultSearchLimit  = 100
	DefaultSnapshotPath = "data/feed.json"
	DefaultBranch       = "main"
	DefaultRepoName     = "feed"
)

var ErrMissingCredentials = errors.New("BSKY_APP_HANDLE and BSKY_APP_PASSWORD are required (e.g., handle=yourname.bsky.social). If your account is on a custom PDS, set BSKY_SERVICE")

// Account holds the credentials of the publishing Bluesky account
type Account struct {
	Handle string `toml:"handle"`
	// Password is never read from the config file, only from flags or env
	Password string `toml:"-"`
	Service  string `toml:"service"`
}

// Search configures the snapshot producer
type Search struct {
	Query     string   `toml:"query"`
	Limit     int      `toml:"limit"`
	Language  string   `toml:"language"`
	MuteWords []string `toml:"mute_words"`
	Output    string   `toml:"output"`
}

// Feed holds the feed generator metadata and identifier overrides
type Feed struct {
	RecordKey    string `toml:"rkey"`
	DisplayName  string `toml:"display_name"`
	Description  string `toml:"description"`
	AvatarPath   string `toml:"avatar_path"`
	Endpoint     string `toml:"endpoint"`
	ServiceDID   string `toml:"service_did"`
	GeneratorDID string `toml:"generator_did"`
	GeneratorURI string `toml:"generator_uri"`
}

// Source describes where the published snapshot can be fetched from
type Source struct {
	URL        string        `toml:"url"`
	Repository string        `toml:"repository"` // owner/name
	Owner      string        `toml:"owner"`
	Repo       string        `toml:"repo"`
	Branch     string        `toml:"branch"`
	Path       string        `toml:"path"`
	CacheTTL   time.Duration `toml:"cache_ttl"`
	Timeout    time.Duration `toml:"timeout"`
}

// Server configures the HTTP listeners of the serve command
type Server struct {
	Port        int `toml:"port"`
	MetricsPort int `toml:"metrics_port"`
}

// Config is assembled once at process start and never mutated afterwards
type Config struct {
	Account Account `toml:"account"`
	Search  Search  `toml:"search"`
	Feed    Feed    `toml:"feed"`
	Source  Source  `toml:"source"`
	Server  Server  `toml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// RequireCredentials fails before any network call when the account is incomplete
func (c *Config) RequireCredentials() error {
	if c.Account.Handle == "" || c.Account.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// ServiceHost returns the PDS host, falling back to bsky.social when unset or blank
func (c *Config) ServiceHost() string {
	if s := strings.TrimSpace(c.Account.Service); s != "" {
		return s
	}
	return DefaultService
}

// RepoName is the name part of the configured repository, used to derive
// the record key, display name and description defaults.
func (c *Config) RepoName() string {
	if name := RepoName(c.Source.Repository); name != "" {
		return name
	}
	if name := RepoName(c.Source.Repo); name != "" {
		return name
	}
	return DefaultRepoName
}

// SnapshotLocation resolves the URL of the published snapshot. It returns an
// empty string when neither an explicit URL nor a repository is configured.
func (c *Config) SnapshotLocation() string {
	src := c.Source
	if src.URL != "" {
		return src.URL
	}

	owner, repo := src.Owner, src.Repo
	if parts := strings.SplitN(src.Repository, "/", 2); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		owner, repo = parts[0], parts[1]
	}
	if owner == "" || repo == "" {
		return ""
	}

	branch := src.Branch
	if branch == "" {
		branch = DefaultBranch
	}
	path := strings.TrimPrefix(src.Path, "/")
	if path == "" {
		path = DefaultSnapshotPath
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", owner, repo, branch, path)
}

// RepoName returns the last segment of an owner/name repository string
func RepoName(repository string) string {
	repository = strings.TrimSpace(repository)
	if repository == "" {
		return ""
	}
	parts := strings.Split(repository, "/")
	return parts[len(parts)-1]
}

// ParseLimit parses a positive integer, returning fallback for anything else
func ParseLimit(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// ParseLanguage accepts a single language code. Empty input means no filter.
func ParseLanguage(raw string) (string, error) {
	if strings.Contains(raw, ",") {
		return "", errors.New("BSKY_SEARCH_LANG supports only a single language code")
	}
	return strings.TrimSpace(raw), nil
}

// ParseMuteWords splits a comma separated list, dropping empty entries
func ParseMuteWords(raw string) []string {
	words := []string{}
	for _, word := range strings.Split(raw, ",") {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, word)
		}
	}
	return words
}
