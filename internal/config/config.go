package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	// MaxParallel caps concurrent embedding calls during batch ingestion.
	MaxParallel int `yaml:"max_parallel"`
}

// CompletionConfig configures the chat completion provider.
type CompletionConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ChunkerConfig configures transcript splitting.
type ChunkerConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

// MilvusConfig contains connection details for the vector store.
type MilvusConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// MongoConfig contains connection details for the conversation store.
// The URI itself is a secret and always comes from the environment.
type MongoConfig struct {
	URIEnv   string `yaml:"uri_env"`
	Database string `yaml:"database"`
}

// RetrievalConfig configures query-time search and prompt assembly.
type RetrievalConfig struct {
	TopK           int `yaml:"top_k"`
	HistoryWindow  int `yaml:"history_window"`
	MaxPromptChars int `yaml:"max_prompt_chars"`
}

// TranscriptConfig configures transcript fetching.
type TranscriptConfig struct {
	// Languages is the ordered candidate list; the first that yields a
	// transcript wins.
	Languages    []string `yaml:"languages"`
	DownloadsDir string   `yaml:"downloads_dir"`
}

// Config is the root application configuration.
type Config struct {
	Collection string           `yaml:"collection"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Milvus     MilvusConfig     `yaml:"milvus"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// Load reads the config file at path. A missing file is not an error: the
// defaults are returned so the CLI works with nothing but a .env.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Collection: "youtube_transcripts",
		Chunker: ChunkerConfig{
			MaxSize: 700,
			Overlap: 100,
		},
		Embedding: EmbeddingConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "text-embedding-3-small",
			Dimension:   1536,
			MaxParallel: 8,
		},
		Completion: CompletionConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
			Model:       "openai/gpt-oss-120b",
			MaxTokens:   500,
			Temperature: 0.2,
		},
		Milvus: MilvusConfig{
			Host: "localhost",
			Port: "19530",
		},
		Mongo: MongoConfig{
			URIEnv:   "MONGO_DB_URI_RAG",
			Database: "naive_rag",
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			HistoryWindow:  3,
			MaxPromptChars: 12000,
		},
		Transcript: TranscriptConfig{
			Languages:    []string{"en"},
			DownloadsDir: "downloads",
		},
	}
}

// APIKey resolves the secret named by env, or "" when unset.
func APIKey(env string) string {
	return os.Getenv(env)
}

// GetEnvWithDefault gets an environment variable or returns a default value.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.Chunker.MaxSize <= 0 {
		cfg.Chunker.MaxSize = def.Chunker.MaxSize
	}
	if cfg.Chunker.Overlap < 0 || cfg.Chunker.Overlap >= cfg.Chunker.MaxSize {
		cfg.Chunker.Overlap = def.Chunker.Overlap
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = def.Embedding.BaseURL
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = def.Embedding.APIKeyEnv
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.Embedding.MaxParallel <= 0 {
		cfg.Embedding.MaxParallel = def.Embedding.MaxParallel
	}
	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = def.Completion.BaseURL
	}
	if cfg.Completion.APIKeyEnv == "" {
		cfg.Completion.APIKeyEnv = def.Completion.APIKeyEnv
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = def.Completion.Model
	}
	if cfg.Completion.MaxTokens <= 0 {
		cfg.Completion.MaxTokens = def.Completion.MaxTokens
	}
	if cfg.Completion.Temperature <= 0 {
		cfg.Completion.Temperature = def.Completion.Temperature
	}
	if cfg.Milvus.Host == "" {
		cfg.Milvus.Host = def.Milvus.Host
	}
	if cfg.Milvus.Port == "" {
		cfg.Milvus.Port = def.Milvus.Port
	}
	if cfg.Mongo.URIEnv == "" {
		cfg.Mongo.URIEnv = def.Mongo.URIEnv
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = def.Mongo.Database
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.HistoryWindow <= 0 {
		cfg.Retrieval.HistoryWindow = def.Retrieval.HistoryWindow
	}
	if cfg.Retrieval.MaxPromptChars <= 0 {
		cfg.Retrieval.MaxPromptChars = def.Retrieval.MaxPromptChars
	}
	if len(cfg.Transcript.Languages) == 0 {
		cfg.Transcript.Languages = def.Transcript.Languages
	}
	if cfg.Transcript.DownloadsDir == "" {
		cfg.Transcript.DownloadsDir = def.Transcript.DownloadsDir
	}
}
