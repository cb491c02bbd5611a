// Package store persists indexed document fragments per ingestion session
// and serves relevance-ranked similarity queries over them. The primary
// implementation is SQLite-backed; an in-memory implementation exists for
// tests and ephemeral use.
package store

import (
	"context"
	"errors"
	"time"

	"docpilot/internal/types"
)

// ErrCollectionNotFound is returned when a session has no indexed fragments.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrFragmentNotFound is returned when a fragment id does not exist.
var ErrFragmentNotFound = errors.New("fragment not found")

// Filter restricts query results by metadata equality. An empty or nil
// filter matches everything.
type Filter map[string]string

// CollectionInfo describes one session's indexed collection.
type CollectionInfo struct {
	SessionID     string    `json:"session_id"`
	FragmentCount int       `json:"fragment_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FragmentStore is the persistence boundary for indexed fragments. Each
// ingestion session owns an isolated collection keyed by session id.
type FragmentStore interface {
	// AddFragments indexes fragments under the session's collection,
	// assigning deterministic sequential ids.
	AddFragments(ctx context.Context, sessionID string, fragments []types.Fragment) error

	// Query returns the top-k fragments most similar to the query text,
	// ordered by descending relevance. Relevance is in [0,1]. Querying a
	// missing collection returns ErrCollectionNotFound.
	Query(ctx context.Context, sessionID, text string, k int, filter Filter) ([]types.Fragment, error)

	// UpdateFragment replaces the content and metadata of one fragment and
	// re-embeds it.
	UpdateFragment(ctx context.Context, sessionID, fragmentID string, content string, metadata types.FragmentMetadata) error

	// DeleteCollection removes a session's collection and all its fragments.
	DeleteCollection(ctx context.Context, sessionID string) error

	// Info returns collection statistics, or ErrCollectionNotFound.
	Info(ctx context.Context, sessionID string) (CollectionInfo, error)

	// Close releases underlying resources.
	Close() error
}

// clampRelevance bounds a similarity score to the [0,1] relevance range.
func clampRelevance(similarity float64) float64 {
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

// matchesFilter reports whether fragment metadata satisfies every filter
// entry.
func matchesFilter(meta types.FragmentMetadata, filter Filter) bool {
	for key, want := range filter {
		var got string
		switch key {
		case "type":
			got = string(meta.Type)
		case "section":
			got = meta.Section
		case "language":
			got = meta.Language
		case "source_url":
			got = meta.SourceURL
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}
