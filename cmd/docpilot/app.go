package main

import (
	"fmt"
	"os"
	"path/filepath"

	"docpilot/internal/config"
	"docpilot/internal/embedding"
	"docpilot/internal/fetch"
	"docpilot/internal/history"
	"docpilot/internal/llm"
	"docpilot/internal/segmenter"
	"docpilot/internal/session"
	"docpilot/internal/store"
	"docpilot/internal/workflow"
)

// app holds the wired-up components every command runs against.
type app struct {
	cfg          *config.Config
	store        store.FragmentStore
	history      history.Store
	manager      *session.Manager
	orchestrator *workflow.Orchestrator
}

// buildApp constructs the full pipeline from configuration.
func buildApp(cfg *config.Config) (*app, error) {
	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       "auto",
	})
	if err != nil {
		return nil, err
	}

	completer, err := llm.NewCompleter(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLMTimeout(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Store.DatabasePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fragments, err := store.NewLocalStore(dbPath, engine)
	if err != nil {
		return nil, err
	}

	hist, err := history.NewSQLiteStore(filepath.Join(filepath.Dir(dbPath), "history.db"))
	if err != nil {
		fragments.Close()
		return nil, err
	}

	classifier, err := workflow.NewClassifier(nil, completer, cfg.Workflow.RefineHistoryTurns)
	if err != nil {
		fragments.Close()
		hist.Close()
		return nil, err
	}
	builder, err := workflow.NewContextBuilder(nil, cfg.Workflow.ContextTurns)
	if err != nil {
		fragments.Close()
		hist.Close()
		return nil, err
	}

	seg := segmenter.New(cfg.Segmenter.ChunkSize, cfg.Segmenter.MinOverlap)
	fetcher := fetch.NewFetcher(cfg.FetchTimeout(), cfg.Fetch.MaxRetries, cfg.Fetch.UserAgent)

	return &app{
		cfg:     cfg,
		store:   fragments,
		history: hist,
		manager: session.NewManager(fetcher, seg, fragments),
		orchestrator: workflow.NewOrchestrator(
			classifier,
			builder,
			workflow.NewAggregator(fragments, cfg.Workflow.GeneralTopK, cfg.Workflow.CodeTopK, cfg.Workflow.KeepTopK),
			workflow.NewSynthesizer(completer, cfg.Workflow.ClarifyBelow),
			hist,
		),
	}, nil
}

// newSegmenter builds the segmenter from configuration, for commands that
// do not need the whole app.
func newSegmenter(cfg *config.Config) *segmenter.Segmenter {
	return segmenter.New(cfg.Segmenter.ChunkSize, cfg.Segmenter.MinOverlap)
}

func (a *app) Close() {
	a.history.Close()
	a.store.Close()
}
