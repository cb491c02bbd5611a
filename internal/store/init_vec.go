//go:build sqlite_vec && cgo

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"docpilot/internal/logging"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	// vec.Auto() registers it as an auto-loadable extension.
	vec.Auto()
}

// initVectorExtension verifies the vec0 module loaded.
func initVectorExtension(s *LocalStore) {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec registered but vec_version() failed: %v", err)
		return
	}
	logging.Store("sqlite-vec extension enabled (version %s)", version)
}

// searchScored ranks the session's fragments with vec_distance_cosine in
// SQL, so scoring stays inside SQLite instead of loading every vector into
// Go. Stored embeddings and the query vector are JSON arrays, which
// sqlite-vec accepts directly. Callers hold the read lock and sort the
// result.
func (s *LocalStore) searchScored(ctx context.Context, sessionID string, queryVec []float32, filter Filter) ([]scoredFragment, error) {
	queryJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query vector: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, vec_distance_cosine(embedding, ?) AS distance
		FROM fragments
		WHERE session_id = ? AND embedding IS NOT NULL AND embedding != ''`,
		string(queryJSON), sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rank fragments: %w", err)
	}
	defer rows.Close()

	var results []scoredFragment
	for rows.Next() {
		var sf storedFragment
		var metaJSON sql.NullString
		var distance float64
		if err := rows.Scan(&sf.id, &sf.content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan ranked fragment: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &sf.metadata); err != nil {
				logging.Get(logging.CategoryStore).Warn("Fragment %s has corrupt metadata: %v", sf.id, err)
			}
		}
		if !matchesFilter(sf.metadata, filter) {
			continue
		}
		// Cosine distance is 1 - similarity.
		results = append(results, scoredFragment{frag: sf, score: clampRelevance(1 - distance)})
	}
	return results, rows.Err()
}
