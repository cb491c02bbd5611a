package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docpilot/internal/embedding"
	"docpilot/internal/types"
)

// MemoryStore implements FragmentStore entirely in memory. It backs tests
// and ephemeral sessions where persistence is not wanted.
type MemoryStore struct {
	mu          sync.RWMutex
	engine      embedding.Engine
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	fragments []memoryFragment
	createdAt time.Time
	updatedAt time.Time
}

type memoryFragment struct {
	id       string
	content  string
	vector   []float32
	metadata types.FragmentMetadata
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(engine embedding.Engine) *MemoryStore {
	return &MemoryStore{
		engine:      engine,
		collections: make(map[string]*memoryCollection),
	}
}

// AddFragments indexes fragments under the session's collection.
func (m *MemoryStore) AddFragments(ctx context.Context, sessionID string, fragments []types.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Content
	}
	var vectors [][]float32
	if m.engine != nil {
		var err error
		vectors, err = m.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed fragments: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[sessionID]
	if !ok {
		coll = &memoryCollection{createdAt: time.Now()}
		m.collections[sessionID] = coll
	}

	base := len(coll.fragments)
	for i, f := range fragments {
		mf := memoryFragment{
			id:       fragmentID(sessionID, base+i),
			content:  f.Content,
			metadata: f.Metadata,
		}
		if vectors != nil {
			mf.vector = vectors[i]
		}
		coll.fragments = append(coll.fragments, mf)
	}
	coll.updatedAt = time.Now()
	return nil
}

// Query returns the top-k fragments most similar to the query text.
func (m *MemoryStore) Query(ctx context.Context, sessionID, text string, k int, filter Filter) ([]types.Fragment, error) {
	if k <= 0 {
		k = 5
	}

	if m.engine == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}
	// Embed outside the lock; a slow embedding backend must not block writers.
	queryVec, err := m.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[sessionID]
	if !ok {
		return nil, ErrCollectionNotFound
	}

	var candidates []memoryFragment
	for _, mf := range coll.fragments {
		if matchesFilter(mf.metadata, filter) {
			candidates = append(candidates, mf)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	type scored struct {
		frag  memoryFragment
		score float64
	}
	results := make([]scored, 0, len(candidates))
	for _, mf := range candidates {
		if mf.vector == nil {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, mf.vector)
		if err != nil {
			continue
		}
		results = append(results, scored{frag: mf, score: clampRelevance(sim)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > k {
		results = results[:k]
	}

	out := make([]types.Fragment, len(results))
	for i, r := range results {
		out[i] = types.Fragment{
			Content:   r.frag.content,
			Metadata:  r.frag.metadata,
			Relevance: r.score,
		}
	}
	return out, nil
}

// UpdateFragment replaces one fragment's content and metadata.
func (m *MemoryStore) UpdateFragment(ctx context.Context, sessionID, fragID string, content string, metadata types.FragmentMetadata) error {
	var vector []float32
	if m.engine != nil {
		var err error
		vector, err = m.engine.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("failed to embed updated content: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[sessionID]
	if !ok {
		return ErrCollectionNotFound
	}
	for i := range coll.fragments {
		if coll.fragments[i].id == fragID {
			coll.fragments[i].content = content
			coll.fragments[i].metadata = metadata
			coll.fragments[i].vector = vector
			coll.updatedAt = time.Now()
			return nil
		}
	}
	return ErrFragmentNotFound
}

// DeleteCollection removes a session's collection.
func (m *MemoryStore) DeleteCollection(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[sessionID]; !ok {
		return ErrCollectionNotFound
	}
	delete(m.collections, sessionID)
	return nil
}

// Info returns collection statistics.
func (m *MemoryStore) Info(ctx context.Context, sessionID string) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[sessionID]
	if !ok {
		return CollectionInfo{}, ErrCollectionNotFound
	}
	return CollectionInfo{
		SessionID:     sessionID,
		FragmentCount: len(coll.fragments),
		CreatedAt:     coll.createdAt,
		UpdatedAt:     coll.updatedAt,
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
