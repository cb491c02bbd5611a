package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"docpilot/internal/history"
	"docpilot/internal/segmenter"
	"docpilot/internal/session"
	"docpilot/internal/store"
	"docpilot/internal/types"
	"docpilot/internal/workflow"
)

type stubFetcher struct{ block bool }

func (s *stubFetcher) Fetch(ctx context.Context, pageURL string) (types.Document, error) {
	if s.block {
		<-ctx.Done()
		return types.Document{}, ctx.Err()
	}
	return types.Document{
		Title: "Guide",
		URL:   pageURL,
		Sections: []types.Section{
			{Title: "Basics", Level: 1, Content: []string{"The basics section explains the fundamentals."}},
		},
	}, nil
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

type scriptedCompleter struct{ reply string }

func (c *scriptedCompleter) Complete(_ context.Context, _ string) (string, error) {
	return c.reply, nil
}
func (c *scriptedCompleter) CompleteWithSystem(_ context.Context, _, _ string) (string, error) {
	return c.reply, nil
}
func (c *scriptedCompleter) Name() string { return "scripted" }

type testEnv struct {
	srv     *httptest.Server
	manager *session.Manager
	history history.Store
}

func newTestEnv(t *testing.T, fetcher session.DocumentFetcher) *testEnv {
	t.Helper()

	fragments := store.NewMemoryStore(flatEngine{})
	hist := history.NewMemoryStore()
	manager := session.NewManager(fetcher, segmenter.New(1000, 50), fragments)

	classifier, err := workflow.NewClassifier(nil, nil, 3)
	require.NoError(t, err)
	builder, err := workflow.NewContextBuilder(nil, 4)
	require.NoError(t, err)
	orchestrator := workflow.NewOrchestrator(
		classifier,
		builder,
		workflow.NewAggregator(fragments, 3, 5, 5),
		workflow.NewSynthesizer(&scriptedCompleter{reply: "the answer"}, 0.3),
		hist,
	)

	s := New("127.0.0.1:0", manager, orchestrator, hist, fragments, zaptest.NewLogger(t))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown(context.Background())
	})

	return &testEnv{srv: srv, manager: manager, history: hist}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (e *testEnv) startCompleted(t *testing.T) string {
	t.Helper()
	id, err := e.manager.StartIngestion([]string{"https://docs.example.com/guide"})
	require.NoError(t, err)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.manager.Status(id)
		require.NoError(t, err)
		if snap.Status.Terminal() {
			require.Equal(t, types.StatusCompleted, snap.Status)
			return id
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("ingestion never completed")
	return ""
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestProcessDocumentation(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	resp, body := env.do(t, http.MethodPost, "/api/v1/process-documentation",
		map[string]any{"urls": []string{"https://docs.example.com/guide"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.NotEmpty(t, snap.ID)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/process-documentation",
		map[string]any{"urls": []string{"ftp://bad.example.com"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/process-documentation", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessingStatus(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	id := env.startCompleted(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/processing-status/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Equal(t, types.StatusCompleted, snap.Status)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/processing-status/unknown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatGatedOnReadiness(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{block: true})
	id, err := env.manager.StartIngestion([]string{"https://docs.example.com/guide"})
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodPost, "/api/v1/chat/"+id,
		map[string]string{"question": "what are the basics?"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Contains(t, errResp.Error, "not ready")

	require.NoError(t, env.manager.Cancel(id))
}

func TestChatAnswersAndRecordsHistory(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	id := env.startCompleted(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/chat/"+id,
		map[string]string{"question": "what are the basics?", "user_id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result types.AskResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, id, result.SessionID)
	require.NotEmpty(t, result.Answer)
	require.Equal(t, types.IntentGeneralQuestion, result.Intent)

	resp, body = env.do(t, http.MethodGet, "/api/v1/chat-history/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var histResp struct {
		Turns []types.ConversationTurn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(body, &histResp))
	require.Len(t, histResp.Turns, 1)
	require.Equal(t, "what are the basics?", histResp.Turns[0].Utterance)
}

func TestChatUnknownSession(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	resp, _ := env.do(t, http.MethodPost, "/api/v1/chat/unknown",
		map[string]string{"question": "hello"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatAnalytics(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	id := env.startCompleted(t)

	env.do(t, http.MethodPost, "/api/v1/chat/"+id, map[string]string{"question": "what are the basics?"})

	resp, body := env.do(t, http.MethodGet, "/api/v1/chat-analytics/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var analytics history.Analytics
	require.NoError(t, json.Unmarshal(body, &analytics))
	require.Equal(t, 1, analytics.TurnCount)
}

func TestDeleteChat(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	id := env.startCompleted(t)
	env.do(t, http.MethodPost, "/api/v1/chat/"+id, map[string]string{"question": "what are the basics?"})

	resp, _ := env.do(t, http.MethodDelete, "/api/v1/chat/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	turns, err := env.history.List(context.Background(), id, 0)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestDocumentationInfo(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	id := env.startCompleted(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/documentation-info/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info struct {
		FragmentCount int `json:"fragment_count"`
	}
	require.NoError(t, json.Unmarshal(body, &info))
	require.Greater(t, info.FragmentCount, 0)
}
