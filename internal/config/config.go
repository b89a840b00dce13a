package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type string `yaml:"type"`
	// MaxInputChars bounds the length of a single text passed to Embed.
	MaxInputChars int                   `yaml:"max_input_chars"`
	OpenAI        *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// MaxRetries is nil when unset; 0 disables retries.
	MaxRetries  *int   `yaml:"max_retries"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector index implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	PgVector *PgVectorConfig `yaml:"pgvector,omitempty"`
}

// SQLiteConfig points at the database file of the sqlite vector index.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PgVectorConfig contains connection details for a PostgreSQL+pgvector store.
type PgVectorConfig struct {
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// LLMConfig configures the chat-completions language model.
type LLMConfig struct {
	Type                string  `yaml:"type"`
	BaseURL             string  `yaml:"base_url"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	Model               string  `yaml:"model"`
	MaxOutputTokens     int     `yaml:"max_output_tokens"`
	ContextWindowTokens int     `yaml:"context_window_tokens"`
	Temperature         float64 `yaml:"temperature"`
	TimeoutSecs         int     `yaml:"timeout_secs"`
	MaxRetries          *int    `yaml:"max_retries"`
}

// RetrievalConfig configures top-k retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// AnswerConfig configures the grounded answerer.
type AnswerConfig struct {
	Domain               string  `yaml:"domain"`
	SupportWarnThreshold float64 `yaml:"support_warn_threshold"`
}

// MemoryConfig configures per-session conversation memory.
type MemoryConfig struct {
	TokenLimit int `yaml:"token_limit"`
}

// SummaryConfig configures the corpus overview shown after ingestion.
type SummaryConfig struct {
	// MaxSentences is the overview length; a negative value disables it.
	MaxSentences int `yaml:"max_sentences"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Answer      AnswerConfig      `yaml:"answer"`
	Memory      MemoryConfig      `yaml:"memory"`
	Summary     SummaryConfig     `yaml:"summary"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/groundchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/groundchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects combinations that cannot produce a working pipeline.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker: chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.LLM.MaxOutputTokens >= c.LLM.ContextWindowTokens {
		return fmt.Errorf("llm: max_output_tokens (%d) must be smaller than context_window_tokens (%d)", c.LLM.MaxOutputTokens, c.LLM.ContextWindowTokens)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval: top_k must be at least 1")
	}
	switch c.VectorStore.Type {
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("vector_store: qdrant config missing")
		}
	case "pgvector":
		if c.VectorStore.PgVector == nil {
			return errors.New("vector_store: pgvector config missing")
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "groundchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "window"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		LLM:         LLMConfig{Type: "openai"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.MaxInputChars == 0 {
		cfg.Embedder.MaxInputChars = 32000
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == nil {
			o.MaxRetries = intPtr(1)
		}
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "groundchat.db"
		}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "documents"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	if p := cfg.VectorStore.PgVector; p != nil {
		if p.DSNEnv == "" {
			p.DSNEnv = "DATABASE_URL"
		}
		if p.Table == "" {
			p.Table = "chunks"
		}
	}

	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistralai/mistral-7b-instruct"
	}
	if cfg.LLM.MaxOutputTokens == 0 {
		cfg.LLM.MaxOutputTokens = 256
	}
	if cfg.LLM.ContextWindowTokens == 0 {
		cfg.LLM.ContextWindowTokens = 4096
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.MaxRetries == nil {
		cfg.LLM.MaxRetries = intPtr(1)
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Answer.Domain == "" {
		cfg.Answer.Domain = "telecom customer support"
	}
	if cfg.Answer.SupportWarnThreshold == 0 {
		cfg.Answer.SupportWarnThreshold = 0.1
	}
	if cfg.Memory.TokenLimit == 0 {
		cfg.Memory.TokenLimit = 3000
	}
	if cfg.Summary.MaxSentences == 0 {
		cfg.Summary.MaxSentences = 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func intPtr(n int) *int { return &n }

// Retries returns the configured retry count; unset means none.
func Retries(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
