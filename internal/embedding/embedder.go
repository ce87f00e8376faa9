package embedding

import (
	"context"
	"fmt"
	"time"

	"paperindex/internal/embedding/hashing"
	"paperindex/internal/embedding/ollama"
	"paperindex/internal/embedding/openai"
)

// Embedder converts free text into a numeric vector representation.
// Dimension may be zero for remote models until the first Embed call.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	Type      string
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// New builds the embedder selected by cfg.Type.
func New(cfg Config) (Embedder, error) {
	switch cfg.Type {
	case "", "hashing":
		return hashing.New(hashing.Config{Dimension: cfg.Dimension}), nil
	case "openai":
		c, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		c, err := ollama.NewClient(ollama.Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
}

// Probe returns e's dimension, embedding a sample text when the model has
// not reported one yet.
func Probe(ctx context.Context, e Embedder) (int, error) {
	if d := e.Dimension(); d > 0 {
		return d, nil
	}
	v, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe %s dimension: %w", e.Name(), err)
	}
	return len(v), nil
}
