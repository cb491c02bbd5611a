package history

import (
	"context"
	"sync"
	"time"

	"docpilot/internal/types"
)

// MemoryStore implements Store in memory for tests and ephemeral sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]types.ConversationTurn
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]types.ConversationTurn)}
}

// Append records one completed turn.
func (m *MemoryStore) Append(_ context.Context, sessionID string, turn types.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

// List returns turns in chronological order.
func (m *MemoryStore) List(_ context.Context, sessionID string, limit int) ([]types.ConversationTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]types.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// Delete removes all turns for a session.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

// Analytics summarizes a session's conversation.
func (m *MemoryStore) Analytics(_ context.Context, sessionID string) (Analytics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Analytics{SessionID: sessionID, Intents: make(map[string]int)}
	turns := m.turns[sessionID]
	out.TurnCount = len(turns)
	if len(turns) == 0 {
		return out, nil
	}

	var sum float64
	utterances := make([]string, 0, len(turns))
	for _, t := range turns {
		sum += t.Confidence
		utterances = append(utterances, t.Utterance)
		if t.Intent != "" {
			out.Intents[string(t.Intent)]++
		}
	}
	out.AvgConfidence = sum / float64(len(turns))
	out.Topics = topicCounts(utterances)
	out.FirstTurnAt = turns[0].CreatedAt
	out.LastTurnAt = turns[len(turns)-1].CreatedAt
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
