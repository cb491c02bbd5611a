package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIEngine generates embeddings using Google's Gemini API. Indexing and
// querying use asymmetric task types: EmbedBatch carries the document task
// and Embed carries the query task. An explicit configured task type pins
// both sides to the same value.
type GenAIEngine struct {
	client    *genai.Client
	model     string
	docTask   string
	queryTask string
}

// Embedding task types accepted by the Gemini EmbedContent API.
const (
	taskTypeRetrievalDocument  = "RETRIEVAL_DOCUMENT"
	taskTypeRetrievalQuery     = "RETRIEVAL_QUERY"
	taskTypeQuestionAnswering  = "QUESTION_ANSWERING"
	taskTypeSemanticSimilarity = "SEMANTIC_SIMILARITY"
)

// resolveTaskTypes maps the configured task type string to the
// (document, query) task pair. Empty or "auto" selects the retrieval pair.
func resolveTaskTypes(taskType string) (string, string) {
	switch taskType {
	case "", "auto":
		return taskTypeRetrievalDocument, taskTypeRetrievalQuery
	case "RETRIEVAL_DOCUMENT":
		return taskTypeRetrievalDocument, taskTypeRetrievalDocument
	case "RETRIEVAL_QUERY":
		return taskTypeRetrievalQuery, taskTypeRetrievalQuery
	case "QUESTION_ANSWERING":
		return taskTypeQuestionAnswering, taskTypeQuestionAnswering
	case "SEMANTIC_SIMILARITY":
		return taskTypeSemanticSimilarity, taskTypeSemanticSimilarity
	default:
		return taskTypeSemanticSimilarity, taskTypeSemanticSimilarity
	}
}

// NewGenAIEngine creates a new GenAI embedding engine.
func NewGenAIEngine(apiKey, model, taskType string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	docTask, queryTask := resolveTaskTypes(taskType)
	return &GenAIEngine{
		client:    client,
		model:     model,
		docTask:   docTask,
		queryTask: queryTask,
	}, nil
}

func (e *GenAIEngine) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{TaskType: task},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Embed generates a query-side embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, e.queryTask)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates document-side embeddings for multiple texts using
// the native batch endpoint.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts, e.docTask)
}

// Dimensions returns the dimensionality of embeddings.
// gemini-embedding-001 produces 768-dimensional vectors.
func (e *GenAIEngine) Dimensions() int {
	return 768
}

// Name returns the engine name.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}

// Close closes the GenAI client. The genai client holds no resources
// requiring explicit release.
func (e *GenAIEngine) Close() error {
	return nil
}
