package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ollama", Config{Provider: "ollama"}, false},
		{"gemini with key", Config{Provider: "gemini", APIKey: "k"}, false},
		{"gemini without key", Config{Provider: "gemini"}, true},
		{"unknown", Config{Provider: "openai"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompleter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOllamaCompleteWithSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be disabled")
		}
		if req.System != "you are a helper" {
			t.Errorf("system prompt: got %q", req.System)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  the answer  ", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(Config{BaseURL: srv.URL, Model: "llama3.2"})
	got, err := c.CompleteWithSystem(context.Background(), "you are a helper", "question")
	if err != nil {
		t.Fatalf("CompleteWithSystem: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q, want trimmed answer", got)
	}
}

func TestOllamaCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(Config{BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "q"); err == nil {
		t.Fatal("expected error from server failure")
	}
}

func TestGeminiCompleteWithSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("missing api key in query")
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "hello "}, {"text": "world"}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "test-key", Model: "gemini-2.0-flash", Timeout: 5 * time.Second})
	c.baseURL = srv.URL

	got, err := c.CompleteWithSystem(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteWithSystem: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q, want parts joined", got)
	}
}

func TestGeminiCompleteRetriesOnRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "ok"}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", Timeout: 10 * time.Second})
	c.baseURL = srv.URL

	got, err := c.Complete(context.Background(), "q")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Errorf("got %q after %d calls, want ok after 2", got, calls)
	}
}

func TestGeminiCompleteNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", Timeout: 5 * time.Second})
	c.baseURL = srv.URL

	if _, err := c.Complete(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
