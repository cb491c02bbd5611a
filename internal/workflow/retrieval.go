package workflow

import (
	"context"
	"sort"

	"docpilot/internal/logging"
	"docpilot/internal/store"
	"docpilot/internal/types"
)

// Aggregator issues fragment-store queries and merges their results into a
// single ranked list with a confidence score.
type Aggregator struct {
	store       store.FragmentStore
	generalTopK int
	codeTopK    int
	keepTopK    int
}

// NewAggregator creates an Aggregator. Non-positive limits fall back to
// defaults (general 3, code 5, keep 5).
func NewAggregator(fragments store.FragmentStore, generalTopK, codeTopK, keepTopK int) *Aggregator {
	if generalTopK <= 0 {
		generalTopK = 3
	}
	if codeTopK <= 0 {
		codeTopK = 5
	}
	if keepTopK <= 0 {
		keepTopK = 5
	}
	return &Aggregator{
		store:       fragments,
		generalTopK: generalTopK,
		codeTopK:    codeTopK,
		keepTopK:    keepTopK,
	}
}

// Retrieve runs a general similarity query, plus a code-filtered query for
// code questions, merges by descending relevance, and keeps the top
// fragments. Confidence is the mean relevance of the kept fragments, or
// exactly 0.0 when nothing was retrieved. Store failures degrade to an
// empty result; they never propagate.
func (a *Aggregator) Retrieve(ctx context.Context, sessionID, utterance string, intent types.Intent) ([]types.Fragment, float64) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Retrieve")
	defer timer.Stop()

	general, err := a.store.Query(ctx, sessionID, utterance, a.generalTopK, nil)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("General query failed for session %s: %v", sessionID, err)
		return nil, 0.0
	}

	merged := general
	if intent == types.IntentCodeQuestion {
		code, err := a.store.Query(ctx, sessionID, utterance, a.codeTopK, store.Filter{"type": string(types.FragmentCodeBlock)})
		if err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("Code query failed for session %s: %v", sessionID, err)
		} else {
			merged = append(merged, code...)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})
	if len(merged) > a.keepTopK {
		merged = merged[:a.keepTopK]
	}

	if len(merged) == 0 {
		return nil, 0.0
	}

	var sum float64
	for _, f := range merged {
		sum += f.Relevance
	}
	confidence := sum / float64(len(merged))

	logging.Retrieval("Retrieved %d fragments for session %s (confidence=%.2f)", len(merged), sessionID, confidence)
	return merged, confidence
}
