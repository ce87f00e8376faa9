package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"paperindex/internal/embedding"
	"paperindex/internal/section"
	"paperindex/internal/vectorstore"
)

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Model       string `yaml:"model,omitempty"`
	Dimension   int    `yaml:"dimension,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"`
}

type MilvusConfig struct {
	Address string `yaml:"address"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Collection string        `yaml:"collection"`
	SQLite     SQLiteConfig  `yaml:"sqlite"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
	Milvus     *MilvusConfig `yaml:"milvus,omitempty"`
}

// PatternsConfig overrides section marker patterns by set name. Sets not
// listed keep their built-in alternatives.
type PatternsConfig struct {
	Version string              `yaml:"version,omitempty"`
	Sets    map[string][]string `yaml:"sets,omitempty"`
}

type ExtractorConfig struct {
	CaptionMargin float64        `yaml:"caption_margin"`
	Patterns      PatternsConfig `yaml:"patterns,omitempty"`
}

// ChunkerConfig configures optional passage chunking of the body text.
type ChunkerConfig struct {
	Enabled           bool `yaml:"enabled"`
	SentencesPerChunk int  `yaml:"sentences_per_chunk"`
	OverlapSentences  int  `yaml:"overlap_sentences"`
}

// SummarizerConfig configures the optional body summary.
type SummarizerConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxSentences int  `yaml:"max_sentences"`
}

type BatchConfig struct {
	Workers   int    `yaml:"workers"`
	Include   string `yaml:"include"`
	Recursive bool   `yaml:"recursive"`
}

type QueryConfig struct {
	NumResults int `yaml:"num_results"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Batch       BatchConfig       `yaml:"batch"`
	Query       QueryConfig       `yaml:"query"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
}

// LoadEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func LoadEnv() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/paperindex/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
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
	cfg := Default()
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "paperindex", "config.yaml"), nil
}

func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = vectorstore.DefaultCollection
	}
	if cfg.VectorStore.SQLite.Path == "" {
		cfg.VectorStore.SQLite.Path = "./db/papers.db"
	}
	if cfg.Extractor.CaptionMargin <= 0 {
		cfg.Extractor.CaptionMargin = 50
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = 1
	}
	if cfg.Batch.Include == "" {
		cfg.Batch.Include = "*.{pdf,PDF}"
	}
	if cfg.Query.NumResults == 0 {
		cfg.Query.NumResults = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// EmbeddingConfig converts the embedder section for embedding.New.
func (c *AppConfig) EmbeddingConfig() embedding.Config {
	e := c.Embedder
	return embedding.Config{
		Type:      e.Type,
		BaseURL:   e.BaseURL,
		APIKeyEnv: e.APIKeyEnv,
		Model:     e.Model,
		Dimension: e.Dimension,
		Timeout:   time.Duration(e.TimeoutSecs) * time.Second,
	}
}

// StoreConfig converts the vector_store section for vectorstore.New.
func (c *AppConfig) StoreConfig() vectorstore.Config {
	v := c.VectorStore
	out := vectorstore.Config{
		Type:       v.Type,
		Collection: v.Collection,
		SQLite:     vectorstore.SQLiteConfig{Path: v.SQLite.Path},
	}
	if v.Qdrant != nil {
		out.Qdrant = vectorstore.QdrantConfig{URL: v.Qdrant.URL, APIKey: v.Qdrant.APIKey}
	}
	if v.Milvus != nil {
		out.Milvus = vectorstore.MilvusConfig{Address: v.Milvus.Address, APIKey: v.Milvus.APIKey}
	}
	return out
}

// PatternLibrary builds the section patterns, applying configured overrides
// to the built-in library.
func (c *AppConfig) PatternLibrary() (*section.Library, error) {
	p := c.Extractor.Patterns
	if len(p.Sets) == 0 && p.Version == "" {
		return section.DefaultLibrary(), nil
	}
	return section.DefaultLibrary().WithOverrides(p.Version, p.Sets)
}
