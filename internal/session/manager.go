// Package session manages documentation ingestion sessions. Each session
// fetches, segments, and indexes a set of URLs in the background; chat is
// gated on the session reaching the completed status.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docpilot/internal/fetch"
	"docpilot/internal/logging"
	"docpilot/internal/segmenter"
	"docpilot/internal/store"
	"docpilot/internal/types"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotReady is returned when chat is attempted before ingestion
// completed.
var ErrNotReady = errors.New("session not ready")

// fetchConcurrency bounds how many URLs one session ingests in parallel.
const fetchConcurrency = 3

// DocumentFetcher downloads one documentation page. *fetch.Fetcher is the
// production implementation.
type DocumentFetcher interface {
	Fetch(ctx context.Context, pageURL string) (types.Document, error)
}

var _ DocumentFetcher = (*fetch.Fetcher)(nil)

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID        string               `json:"session_id"`
	URLs      []string             `json:"urls"`
	Status    types.SessionStatus  `json:"status"`
	Error     string               `json:"error,omitempty"`
	Reports   []types.IngestReport `json:"reports,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

type session struct {
	Snapshot
	cancel context.CancelFunc
}

// Manager owns the ingestion sessions. All exported methods are safe for
// concurrent use.
type Manager struct {
	fetcher   DocumentFetcher
	segmenter *segmenter.Segmenter
	store     store.FragmentStore

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewManager creates a Manager over the given pipeline components.
func NewManager(fetcher DocumentFetcher, seg *segmenter.Segmenter, fragments store.FragmentStore) *Manager {
	return &Manager{
		fetcher:   fetcher,
		segmenter: seg,
		store:     fragments,
		sessions:  make(map[string]*session),
	}
}

// StartIngestion validates the URLs, registers a pending session, and
// kicks off ingestion in the background. It returns immediately with the
// new session id.
func (m *Manager) StartIngestion(urls []string) (string, error) {
	if len(urls) == 0 {
		return "", fmt.Errorf("no URLs to ingest")
	}
	for _, u := range urls {
		if err := fetch.ValidateURL(u); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	s := &session{
		Snapshot: Snapshot{
			ID:        "session_" + uuid.NewString()[:8],
			URLs:      append([]string(nil), urls...),
			Status:    types.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logging.Session("Session %s: ingestion started for %d URL(s)", s.ID, len(urls))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.ingest(ctx, s.ID, urls)
	}()

	return s.ID, nil
}

// ingest runs the full pipeline for one session and records the terminal
// status.
func (m *Manager) ingest(ctx context.Context, sessionID string, urls []string) {
	timer := logging.StartTimer(logging.CategorySession, "ingest")
	defer timer.Stop()

	m.setStatus(sessionID, types.StatusProcessing, "")

	var (
		reportMu sync.Mutex
		reports  []types.IngestReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, pageURL := range urls {
		g.Go(func() error {
			report, err := m.ingestURL(gctx, sessionID, pageURL)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", pageURL, err)
			}
			reportMu.Lock()
			reports = append(reports, report)
			reportMu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	switch {
	case err == nil:
		m.finish(sessionID, types.StatusCompleted, "", reports)
		logging.Session("Session %s: ingestion completed, %d document(s)", sessionID, len(reports))
	case ctx.Err() != nil:
		m.finish(sessionID, types.StatusFailed, "ingestion cancelled", reports)
		logging.Session("Session %s: ingestion cancelled", sessionID)
	default:
		m.finish(sessionID, types.StatusFailed, err.Error(), reports)
		logging.Get(logging.CategorySession).Error("Session %s: ingestion failed: %v", sessionID, err)
	}
}

// ingestURL fetches, segments, and indexes one page.
func (m *Manager) ingestURL(ctx context.Context, sessionID, pageURL string) (types.IngestReport, error) {
	doc, err := m.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return types.IngestReport{}, err
	}

	fragments := m.segmenter.Segment(doc)
	fragments = m.segmenter.MergeOverlapping(fragments)

	if err := m.store.AddFragments(ctx, sessionID, fragments); err != nil {
		return types.IngestReport{}, fmt.Errorf("failed to index fragments: %w", err)
	}

	return types.IngestReport{
		SessionID:     sessionID,
		URL:           pageURL,
		Title:         doc.Title,
		SectionsFound: len(doc.Sections),
		ChunksIndexed: len(fragments),
		ProcessedAt:   time.Now().UTC(),
	}, nil
}

func (m *Manager) setStatus(sessionID string, status types.SessionStatus, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.Status.Terminal() {
		return
	}
	s.Status = status
	s.Error = reason
	s.UpdatedAt = time.Now().UTC()
}

func (m *Manager) finish(sessionID string, status types.SessionStatus, reason string, reports []types.IngestReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.Status.Terminal() {
		return
	}
	s.Status = status
	s.Error = reason
	s.Reports = reports
	s.UpdatedAt = time.Now().UTC()
}

// Status returns a snapshot of the session.
func (m *Manager) Status(sessionID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Ready reports whether the session can serve chat. Non-terminal sessions
// return ErrNotReady; failed sessions return their failure reason.
func (m *Manager) Ready(sessionID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	switch s.Status {
	case types.StatusCompleted:
		return nil
	case types.StatusFailed:
		return fmt.Errorf("%w: ingestion failed: %s", ErrNotReady, s.Error)
	default:
		return fmt.Errorf("%w: status is %s", ErrNotReady, s.Status)
	}
}

// Cancel stops an in-flight ingestion. Terminal sessions are unaffected.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.cancel()
	return nil
}

// Delete cancels the session and removes its indexed fragments.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.cancel()

	if err := m.store.DeleteCollection(ctx, sessionID); err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		return fmt.Errorf("failed to delete collection for session %s: %w", sessionID, err)
	}
	return nil
}

// List returns snapshots of all sessions, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.snapshot())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Shutdown cancels all in-flight ingestions and waits for their
// goroutines, or until ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, s := range m.sessions {
		s.cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot copies the session state. Caller must hold at least a read
// lock.
func (s *session) snapshot() Snapshot {
	out := s.Snapshot
	out.URLs = append([]string(nil), s.URLs...)
	out.Reports = append([]types.IngestReport(nil), s.Reports...)
	return out
}
