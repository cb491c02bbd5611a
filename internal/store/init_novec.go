//go:build !sqlite_vec || !cgo

package store

import (
	"context"

	"docpilot/internal/embedding"
	"docpilot/internal/logging"
)

// initVectorExtension is a no-op without the sqlite_vec build tag; cosine
// ranking happens in-process instead of via the vec0 module.
func initVectorExtension(s *LocalStore) {
	logging.StoreDebug("sqlite-vec extension not compiled in; using in-process ranking")
}

// searchScored loads the session's fragments and scores them against the
// query vector in-process. Fragments without a usable embedding are skipped.
// Callers hold the read lock and sort the result.
func (s *LocalStore) searchScored(ctx context.Context, sessionID string, queryVec []float32, filter Filter) ([]scoredFragment, error) {
	stored, err := s.loadFragments(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	results := make([]scoredFragment, 0, len(stored))
	for _, sf := range stored {
		if sf.vector == nil || !matchesFilter(sf.metadata, filter) {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, sf.vector)
		if err != nil {
			continue
		}
		results = append(results, scoredFragment{frag: sf, score: clampRelevance(sim)})
	}
	return results, nil
}
