package models

import (
	"encoding/json"
	"fmt"
)

// SnapshotSource is the value written to the source field of every snapshot
const SnapshotSource = "bsky.searchPosts"

// FeedItem is a single post reference in a snapshot. Identity is the Uri.
type FeedItem struct {
	Uri       string `json:"uri"`
	IndexedAt string `json:"indexedAt"`
}

// Snapshot is the document handed from the producer to the feed server
type Snapshot struct {
	GeneratedAt string     `json:"generatedAt"`
	Source      string     `json:"source"`
	Query       QueryList  `json:"query"`
	Languages   []string   `json:"languages"`
	Items       []FeedItem `json:"items"`
}

// QueryList holds the effective search queries of a snapshot.
// A single query is encoded as a JSON string, several as an array.
type QueryList []string

func (q QueryList) MarshalJSON() ([]byte, error) {
	if len(q) == 1 {
		return json.Marshal(q[0])
	}
	if q == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(q))
}

func (q *QueryList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*q = QueryList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("query must be a string or an array of strings: %w", err)
	}
	*q = many
	return nil
}

// Post is a hydrated post as shown by the inspect command
type Post struct {
	Uri          string
	AuthorHandle string
	AuthorDid    string
	CreatedAt    string
	Text         string
}

// Author returns the handle of the post author, falling back to the DID
func (p Post) Author() string {
	if p.AuthorHandle != "" {
		return p.AuthorHandle
	}
	return p.AuthorDid
}
