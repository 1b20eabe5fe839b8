// Package embeddingtest provides a deterministic in-process embedding
// provider for tests. Vectors are bag-of-words hashes, so texts sharing
// words score higher under cosine similarity, without any model server.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const dimension = 64

// Provider is a deterministic embedding.Provider for tests.
type Provider struct{}

// New returns a deterministic test provider.
func New() *Provider {
	return &Provider{}
}

// Embed hashes each word of the text into a fixed-size histogram.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%dimension]++
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}
