// Package history persists conversation turns per chat session. Turns are
// append-only: once written they are never mutated, only read back or
// dropped wholesale when a conversation is deleted.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// Store records and reads back conversation turns.
type Store interface {
	// Append records one completed turn for a session.
	Append(ctx context.Context, sessionID string, turn types.ConversationTurn) error

	// List returns a session's turns in chronological order. A limit of 0
	// returns all turns; a positive limit returns the most recent N.
	List(ctx context.Context, sessionID string, limit int) ([]types.ConversationTurn, error)

	// Delete removes all turns for a session.
	Delete(ctx context.Context, sessionID string) error

	// Analytics summarizes a session's conversation.
	Analytics(ctx context.Context, sessionID string) (Analytics, error)

	// Close releases underlying resources.
	Close() error
}

// Analytics summarizes a conversation for reporting.
type Analytics struct {
	SessionID     string         `json:"session_id"`
	TurnCount     int            `json:"turn_count"`
	AvgConfidence float64        `json:"avg_confidence"`
	Intents       map[string]int `json:"intents"`
	Topics        map[string]int `json:"topics,omitempty"`
	FirstTurnAt   time.Time      `json:"first_turn_at,omitempty"`
	LastTurnAt    time.Time      `json:"last_turn_at,omitempty"`
}

// topicStopwords are common question words excluded from topic counts.
var topicStopwords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "does": true,
	"how": true, "why": true, "can": true, "could": true, "the": true,
	"this": true, "that": true, "with": true, "about": true, "tell": true,
	"more": true, "show": true, "please": true, "work": true, "works": true,
}

// topicCounts extracts recurring content words from the session's
// questions.
func topicCounts(utterances []string) map[string]int {
	topics := make(map[string]int)
	for _, u := range utterances {
		for _, word := range strings.FieldsFunc(strings.ToLower(u), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if len(word) < 4 || topicStopwords[word] {
				continue
			}
			topics[word]++
		}
	}
	return topics
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the history database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryHistory).Debug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryHistory).Debug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		utterance TEXT NOT NULL,
		answer TEXT NOT NULL,
		intent TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON conversation_turns(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append records one completed turn.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, turn types.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversation_turns (session_id, utterance, answer, intent, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		sessionID, turn.Utterance, turn.Answer, string(turn.Intent), turn.Confidence, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	logging.Get(logging.CategoryHistory).Debug("Appended turn for session %s (intent=%s)", sessionID, turn.Intent)
	return nil
}

// List returns turns in chronological order.
func (s *SQLiteStore) List(ctx context.Context, sessionID string, limit int) ([]types.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT utterance, answer, intent, confidence, created_at FROM conversation_turns WHERE session_id = ? ORDER BY id"
	args := []interface{}{sessionID}
	if limit > 0 {
		// Most recent N, still returned oldest-first.
		query = `SELECT utterance, answer, intent, confidence, created_at FROM (
			SELECT id, utterance, answer, intent, confidence, created_at
			FROM conversation_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var intent string
		if err := rows.Scan(&t.Utterance, &t.Answer, &intent, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Intent = types.Intent(intent)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Delete removes all turns for a session.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM conversation_turns WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	logging.Get(logging.CategoryHistory).Info("Deleted history for session %s", sessionID)
	return nil
}

// Analytics summarizes a session's conversation.
func (s *SQLiteStore) Analytics(ctx context.Context, sessionID string) (Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Analytics{SessionID: sessionID, Intents: make(map[string]int)}

	var first, last sql.NullTime
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(confidence), MIN(created_at), MAX(created_at) FROM conversation_turns WHERE session_id = ?",
		sessionID,
	).Scan(&out.TurnCount, &avg, &first, &last)
	if err != nil {
		return Analytics{}, fmt.Errorf("failed to aggregate turns: %w", err)
	}
	if avg.Valid {
		out.AvgConfidence = avg.Float64
	}
	if first.Valid {
		out.FirstTurnAt = first.Time
	}
	if last.Valid {
		out.LastTurnAt = last.Time
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT intent, COUNT(*) FROM conversation_turns WHERE session_id = ? GROUP BY intent", sessionID)
	if err != nil {
		return Analytics{}, fmt.Errorf("failed to count intents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var intent string
		var count int
		if err := rows.Scan(&intent, &count); err != nil {
			return Analytics{}, fmt.Errorf("failed to scan intent count: %w", err)
		}
		if intent != "" {
			out.Intents[intent] = count
		}
	}
	if err := rows.Err(); err != nil {
		return Analytics{}, err
	}

	utteranceRows, err := s.db.QueryContext(ctx,
		"SELECT utterance FROM conversation_turns WHERE session_id = ?", sessionID)
	if err != nil {
		return Analytics{}, fmt.Errorf("failed to read utterances: %w", err)
	}
	defer utteranceRows.Close()
	var utterances []string
	for utteranceRows.Next() {
		var u string
		if err := utteranceRows.Scan(&u); err != nil {
			return Analytics{}, fmt.Errorf("failed to scan utterance: %w", err)
		}
		utterances = append(utterances, u)
	}
	if len(utterances) > 0 {
		out.Topics = topicCounts(utterances)
	}
	return out, utteranceRows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
