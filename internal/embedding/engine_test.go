package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0, false},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0, false},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0, false},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},       // orthogonal
		{1, 0},       // identical
		{0.7, 0.7},   // in between
		{1, 0, 0, 0}, // wrong dimension, skipped
	}

	results, err := FindTopK(query, corpus, 2)
	if err != nil {
		t.Fatalf("FindTopK: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("top result index: got %d, want 1", results[0].Index)
	}
	if results[1].Index != 2 {
		t.Errorf("second result index: got %d, want 2", results[1].Index)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not sorted by descending similarity")
	}
}

func TestOllamaEngineEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "embeddinggemma" {
			t.Errorf("model: got %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	engine, err := NewOllamaEngine(srv.URL, "")
	if err != nil {
		t.Fatalf("NewOllamaEngine: %v", err)
	}

	vec, err := engine.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dimensions, want 3", len(vec))
	}
}

func TestOllamaEngineEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	engine, _ := NewOllamaEngine(srv.URL, "missing")
	if _, err := engine.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from server failure")
	}
}

func TestOllamaEngineEmbedBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{1}})
	}))
	defer srv.Close()

	engine, _ := NewOllamaEngine(srv.URL, "")
	vecs, err := engine.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 || calls != 3 {
		t.Errorf("got %d vectors from %d calls, want 3 and 3", len(vecs), calls)
	}
}

func TestResolveTaskTypes(t *testing.T) {
	tests := []struct {
		in        string
		wantDoc   string
		wantQuery string
	}{
		{"", taskTypeRetrievalDocument, taskTypeRetrievalQuery},
		{"auto", taskTypeRetrievalDocument, taskTypeRetrievalQuery},
		{"RETRIEVAL_DOCUMENT", taskTypeRetrievalDocument, taskTypeRetrievalDocument},
		{"RETRIEVAL_QUERY", taskTypeRetrievalQuery, taskTypeRetrievalQuery},
		{"SEMANTIC_SIMILARITY", taskTypeSemanticSimilarity, taskTypeSemanticSimilarity},
		{"bogus", taskTypeSemanticSimilarity, taskTypeSemanticSimilarity},
	}
	for _, tt := range tests {
		doc, query := resolveTaskTypes(tt.in)
		if doc != tt.wantDoc || query != tt.wantQuery {
			t.Errorf("resolveTaskTypes(%q) = (%v, %v), want (%v, %v)", tt.in, doc, query, tt.wantDoc, tt.wantQuery)
		}
	}
}

func TestNewEngineUnsupportedProvider(t *testing.T) {
	if _, err := NewEngine(Config{Provider: "openai"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
