// Package config loads and validates docpilot configuration from
// docpilot.yaml with DOCPILOT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all docpilot configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM completion backend
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Fragment store and conversation history
	Store StoreConfig `yaml:"store"`

	// Segmentation policy
	Segmenter SegmenterConfig `yaml:"segmenter"`

	// Workflow tuning
	Workflow WorkflowConfig `yaml:"workflow"`

	// Document fetching
	Fetch FetchConfig `yaml:"fetch"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-completion backend.
type LLMConfig struct {
	Provider string  `yaml:"provider"` // ollama, gemini
	APIKey   string  `yaml:"api_key"`
	Model    string  `yaml:"model"`
	BaseURL  string  `yaml:"base_url"`
	Timeout  string  `yaml:"timeout"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama, genai

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
}

// StoreConfig configures SQLite-backed storage.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	QueryTimeout string `yaml:"query_timeout"`
}

// SegmenterConfig configures the segmentation policy.
type SegmenterConfig struct {
	ChunkSize  int `yaml:"chunk_size"`
	MinOverlap int `yaml:"min_overlap"` // merge pass: minimum verbatim overlap
}

// WorkflowConfig configures the conversation workflow.
type WorkflowConfig struct {
	// Retrieval fan-in
	GeneralTopK int `yaml:"general_top_k"`
	CodeTopK    int `yaml:"code_top_k"`
	KeepTopK    int `yaml:"keep_top_k"`

	// Confidence below which a clarification is requested
	ClarifyBelow float64 `yaml:"clarify_below"`

	// History windows
	RefineHistoryTurns int `yaml:"refine_history_turns"`
	ContextTurns       int `yaml:"context_turns"`
}

// FetchConfig configures document fetching.
type FetchConfig struct {
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
	UserAgent  string `yaml:"user_agent"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`  // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "docpilot",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "llama3.2",
			BaseURL:     "http://localhost:11434",
			Timeout:     "120s",
			Temperature: 0.7,
			MaxTokens:   4096,
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},

		Store: StoreConfig{
			DatabasePath: "data/docpilot.db",
			QueryTimeout: "10s",
		},

		Segmenter: SegmenterConfig{
			ChunkSize:  1000,
			MinOverlap: 50,
		},

		Workflow: WorkflowConfig{
			GeneralTopK:        3,
			CodeTopK:           5,
			KeepTopK:           5,
			ClarifyBelow:       0.3,
			RefineHistoryTurns: 3,
			ContextTurns:       4,
		},

		Fetch: FetchConfig{
			Timeout:    "30s",
			MaxRetries: 3,
			UserAgent:  "docpilot/1.0 (+https://github.com/docpilot)",
		},

		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults
// for missing fields. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps DOCPILOT_* environment variables onto the config.
// API keys in particular should come from the environment, not from files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCPILOT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("DOCPILOT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("DOCPILOT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DOCPILOT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("DOCPILOT_GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("DOCPILOT_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("DOCPILOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DOCPILOT_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = debug
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Segmenter.ChunkSize <= 0 {
		return fmt.Errorf("segmenter.chunk_size must be positive, got %d", c.Segmenter.ChunkSize)
	}
	if c.Segmenter.MinOverlap < 0 {
		return fmt.Errorf("segmenter.min_overlap must be non-negative, got %d", c.Segmenter.MinOverlap)
	}
	if c.Workflow.ClarifyBelow < 0 || c.Workflow.ClarifyBelow > 1 {
		return fmt.Errorf("workflow.clarify_below must be in [0,1], got %v", c.Workflow.ClarifyBelow)
	}
	if c.Workflow.KeepTopK <= 0 {
		return fmt.Errorf("workflow.keep_top_k must be positive, got %d", c.Workflow.KeepTopK)
	}
	switch c.LLM.Provider {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("llm.provider must be 'ollama' or 'gemini', got %q", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "ollama", "genai":
	default:
		return fmt.Errorf("embedding.provider must be 'ollama' or 'genai', got %q", c.Embedding.Provider)
	}
	return nil
}

// LLMTimeout parses the LLM timeout, with a safe default.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// FetchTimeout parses the fetch timeout, with a safe default.
func (c *Config) FetchTimeout() time.Duration {
	return parseDuration(c.Fetch.Timeout, 30*time.Second)
}

// StoreQueryTimeout parses the store query timeout, with a safe default.
func (c *Config) StoreQueryTimeout() time.Duration {
	return parseDuration(c.Store.QueryTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoggingOptions converts the logging section into the form the logging
// package consumes.
func (c *Config) LoggingOptions() (debugMode bool, level string, jsonFormat bool, categories map[string]bool) {
	return c.Logging.DebugMode, c.Logging.Level, c.Logging.JSONFormat, c.Logging.Categories
}
