package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"docpilot/internal/segmenter"
	"docpilot/internal/store"
	"docpilot/internal/types"
)

func TestMain(m *testing.M) {
	// opencensus (linked in via transitive dependencies) starts a worker
	// goroutine at package init that never exits.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// stubFetcher serves canned documents, optionally blocking until the
// context is cancelled.
type stubFetcher struct {
	doc   types.Document
	err   error
	block bool
}

func (s *stubFetcher) Fetch(ctx context.Context, pageURL string) (types.Document, error) {
	if s.block {
		<-ctx.Done()
		return types.Document{}, ctx.Err()
	}
	if s.err != nil {
		return types.Document{}, s.err
	}
	doc := s.doc
	doc.URL = pageURL
	return doc, nil
}

type flatEngine struct{}

func (flatEngine) Embed(_ context.Context, _ string) ([]float32, error) { return []float32{1, 0}, nil }
func (flatEngine) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (flatEngine) Dimensions() int { return 2 }
func (flatEngine) Name() string    { return "flat" }

func testDocument() types.Document {
	return types.Document{
		Title: "Guide",
		Sections: []types.Section{
			{
				Title:   "Basics",
				Level:   1,
				Content: []string{"The basics section explains the fundamentals."},
				CodeBlocks: []types.CodeBlock{
					{Content: "x := 1", Language: "go"},
				},
			},
		},
	}
}

func newManager(fetcher DocumentFetcher, fragments store.FragmentStore) *Manager {
	if fragments == nil {
		fragments = store.NewMemoryStore(flatEngine{})
	}
	return NewManager(fetcher, segmenter.New(1000, 50), fragments)
}

func waitTerminal(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Status(id)
		require.NoError(t, err)
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never reached a terminal status")
	return Snapshot{}
}

func TestIngestionCompletes(t *testing.T) {
	fragments := store.NewMemoryStore(flatEngine{})
	m := newManager(&stubFetcher{doc: testDocument()}, fragments)
	defer m.Shutdown(context.Background())

	id, err := m.StartIngestion([]string{"https://docs.example.com/a", "https://docs.example.com/b"})
	require.NoError(t, err)

	snap := waitTerminal(t, m, id)
	require.Equal(t, types.StatusCompleted, snap.Status)
	require.Empty(t, snap.Error)
	require.Len(t, snap.Reports, 2)
	for _, r := range snap.Reports {
		require.Equal(t, id, r.SessionID)
		require.Equal(t, "Guide", r.Title)
		require.Greater(t, r.ChunksIndexed, 0)
	}

	info, err := fragments.Info(context.Background(), id)
	require.NoError(t, err)
	require.Greater(t, info.FragmentCount, 0)

	require.NoError(t, m.Ready(id))
}

func TestIngestionFetchFailure(t *testing.T) {
	m := newManager(&stubFetcher{err: errors.New("connection refused")}, nil)
	defer m.Shutdown(context.Background())

	id, err := m.StartIngestion([]string{"https://docs.example.com/a"})
	require.NoError(t, err)

	snap := waitTerminal(t, m, id)
	require.Equal(t, types.StatusFailed, snap.Status)
	require.Contains(t, snap.Error, "connection refused")

	err = m.Ready(id)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestIngestionCancelled(t *testing.T) {
	m := newManager(&stubFetcher{block: true}, nil)
	defer m.Shutdown(context.Background())

	id, err := m.StartIngestion([]string{"https://docs.example.com/a"})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(id))

	snap := waitTerminal(t, m, id)
	require.Equal(t, types.StatusFailed, snap.Status)
	require.Equal(t, "ingestion cancelled", snap.Error)

	// Terminal status never changes afterwards.
	require.NoError(t, m.Cancel(id))
	again, err := m.Status(id)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, again.Status)
}

func TestReadyGate(t *testing.T) {
	m := newManager(&stubFetcher{block: true}, nil)
	defer m.Shutdown(context.Background())

	id, err := m.StartIngestion([]string{"https://docs.example.com/a"})
	require.NoError(t, err)

	err = m.Ready(id)
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, m.Cancel(id))
	waitTerminal(t, m, id)
}

func TestStartIngestionRejectsBadURLs(t *testing.T) {
	m := newManager(&stubFetcher{}, nil)

	_, err := m.StartIngestion(nil)
	require.Error(t, err)

	_, err = m.StartIngestion([]string{"https://ok.example.com", "ftp://bad.example.com"})
	require.Error(t, err)
	require.Empty(t, m.List(), "no session registered for rejected input")
}

func TestDeleteRemovesCollection(t *testing.T) {
	fragments := store.NewMemoryStore(flatEngine{})
	m := newManager(&stubFetcher{doc: testDocument()}, fragments)
	defer m.Shutdown(context.Background())

	id, err := m.StartIngestion([]string{"https://docs.example.com/a"})
	require.NoError(t, err)
	waitTerminal(t, m, id)

	require.NoError(t, m.Delete(context.Background(), id))

	_, err = m.Status(id)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = fragments.Info(context.Background(), id)
	require.ErrorIs(t, err, store.ErrCollectionNotFound)
}

func TestStatusUnknownSession(t *testing.T) {
	m := newManager(&stubFetcher{}, nil)
	_, err := m.Status("nope")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, m.Cancel("nope"), ErrSessionNotFound)
	require.ErrorIs(t, m.Ready("nope"), ErrSessionNotFound)
}

func TestListNewestFirst(t *testing.T) {
	m := newManager(&stubFetcher{doc: testDocument()}, nil)
	defer m.Shutdown(context.Background())

	first, err := m.StartIngestion([]string{"https://docs.example.com/a"})
	require.NoError(t, err)
	waitTerminal(t, m, first)
	time.Sleep(10 * time.Millisecond)

	second, err := m.StartIngestion([]string{"https://docs.example.com/b"})
	require.NoError(t, err)
	waitTerminal(t, m, second)

	list := m.List()
	require.Len(t, list, 2)
	require.Equal(t, second, list[0].ID)
	require.Equal(t, first, list[1].ID)
}
