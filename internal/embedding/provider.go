// Package embedding converts text into fixed-length vectors for indexing
// and querying.
package embedding

import (
	"context"
	"fmt"

	"github.com/mhalder/ragserver/internal/config"
)

// Provider converts text into fixed-length numeric vectors. Implementations
// are deterministic for the same model and input.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the configured embedding provider. Reaching the model is
// verified once by the caller at startup; per-call failures are transport
// errors, not configuration errors.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// Probe embeds a fixed sentinel text and returns the model's dimensionality.
// Called once at process start; an error here is fatal for the service.
func Probe(ctx context.Context, p Provider) (int, error) {
	vec, err := p.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("embedding model unavailable: %w", err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("embedding model returned an empty vector")
	}
	return len(vec), nil
}
