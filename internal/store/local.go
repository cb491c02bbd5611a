package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"docpilot/internal/embedding"
	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// LocalStore implements FragmentStore on SQLite. Embeddings are computed
// through the configured engine at write time and stored alongside the
// fragment. Queries rank by cosine similarity inside SQLite via sqlite-vec
// when built with the sqlite_vec tag, and with an in-process scan otherwise.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	engine embedding.Engine
}

// NewLocalStore opens (or creates) the SQLite database at the given path.
func NewLocalStore(path string, engine embedding.Engine) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

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
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe with WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path, engine: engine}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	initVectorExtension(s)

	logging.Store("LocalStore ready")
	return s, nil
}

func (s *LocalStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		session_id TEXT PRIMARY KEY,
		fragment_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding TEXT,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES collections(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_fragments_session ON fragments(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// fragmentID builds the deterministic id for the nth fragment of a session.
func fragmentID(sessionID string, n int) string {
	return fmt.Sprintf("frag_%s_%d", sessionID, n)
}

// AddFragments indexes fragments under the session's collection.
func (s *LocalStore) AddFragments(ctx context.Context, sessionID string, fragments []types.Fragment) error {
	timer := logging.StartTimer(logging.CategoryStore, "AddFragments")
	defer timer.Stop()

	if len(fragments) == 0 {
		return nil
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Content
	}

	// Embed outside the lock; only the writes are serialized.
	var vectors [][]float32
	if s.engine != nil {
		var err error
		vectors, err = s.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed fragments: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var base int
	err = tx.QueryRowContext(ctx, "SELECT fragment_count FROM collections WHERE session_id = ?", sessionID).Scan(&base)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx, "INSERT INTO collections (session_id, fragment_count) VALUES (?, 0)", sessionID); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		base = 0
	} else if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}

	for i, f := range fragments {
		metaJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		var embJSON []byte
		if vectors != nil {
			embJSON, err = json.Marshal(vectors[i])
			if err != nil {
				return fmt.Errorf("failed to marshal embedding: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO fragments (id, session_id, seq, content, embedding, metadata) VALUES (?, ?, ?, ?, ?, ?)",
			fragmentID(sessionID, base+i), sessionID, base+i, f.Content, string(embJSON), string(metaJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert fragment: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE collections SET fragment_count = fragment_count + ?, updated_at = CURRENT_TIMESTAMP WHERE session_id = ?",
		len(fragments), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Store("Indexed %d fragments for session %s (total now %d)", len(fragments), sessionID, base+len(fragments))
	return nil
}

type storedFragment struct {
	id       string
	content  string
	vector   []float32
	metadata types.FragmentMetadata
}

func (s *LocalStore) loadFragments(ctx context.Context, sessionID string) ([]storedFragment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, embedding, metadata FROM fragments WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer rows.Close()

	var out []storedFragment
	for rows.Next() {
		var sf storedFragment
		var embJSON, metaJSON sql.NullString
		if err := rows.Scan(&sf.id, &sf.content, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		if embJSON.Valid && embJSON.String != "" {
			if err := json.Unmarshal([]byte(embJSON.String), &sf.vector); err != nil {
				logging.Get(logging.CategoryStore).Warn("Skipping fragment %s with corrupt embedding: %v", sf.id, err)
				continue
			}
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &sf.metadata); err != nil {
				logging.Get(logging.CategoryStore).Warn("Fragment %s has corrupt metadata: %v", sf.id, err)
			}
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

// scoredFragment pairs a stored fragment with its query relevance.
type scoredFragment struct {
	frag  storedFragment
	score float64
}

// Query returns the top-k fragments most similar to the query text.
func (s *LocalStore) Query(ctx context.Context, sessionID, text string, k int, filter Filter) ([]types.Fragment, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Query")
	defer timer.Stop()

	if k <= 0 {
		k = 5
	}

	if s.engine == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}
	// Embed outside the lock; a slow embedding backend must not block writers.
	queryVec, err := s.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections WHERE session_id = ?", sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if exists == 0 {
		return nil, ErrCollectionNotFound
	}

	results, err := s.searchScored(ctx, sessionID, queryVec, filter)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
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

	logging.StoreDebug("Query session=%s k=%d filter=%v returned %d fragments", sessionID, k, filter, len(out))
	return out, nil
}

// UpdateFragment replaces one fragment's content and metadata and re-embeds
// it.
func (s *LocalStore) UpdateFragment(ctx context.Context, sessionID, fragID string, content string, metadata types.FragmentMetadata) error {
	var embJSON []byte
	if s.engine != nil {
		vec, err := s.engine.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("failed to embed updated content: %w", err)
		}
		embJSON, err = json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE fragments SET content = ?, embedding = ?, metadata = ? WHERE session_id = ? AND id = ?",
		content, string(embJSON), string(metaJSON), sessionID, fragID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fragment: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrFragmentNotFound
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE collections SET updated_at = CURRENT_TIMESTAMP WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch collection: %w", err)
	}

	logging.Store("Updated fragment %s in session %s", fragID, sessionID)
	return nil
}

// DeleteCollection removes a session's collection and all its fragments.
func (s *LocalStore) DeleteCollection(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM fragments WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete fragments: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrCollectionNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Store("Deleted collection for session %s", sessionID)
	return nil
}

// Info returns collection statistics.
func (s *LocalStore) Info(ctx context.Context, sessionID string) (CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var info CollectionInfo
	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, fragment_count, created_at, updated_at FROM collections WHERE session_id = ?",
		sessionID,
	).Scan(&info.SessionID, &info.FragmentCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return CollectionInfo{}, ErrCollectionNotFound
	}
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("failed to read collection: %w", err)
	}
	info.CreatedAt = createdAt
	info.UpdatedAt = updatedAt
	return info, nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
