// Package index maintains the searchable vector index over the document
// collection. The index is versioned in generations: a rebuild constructs a
// complete new generation off to the side and atomically swaps it in, so
// readers see either the old state or the new state, never a torn one.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/embedding"
	"github.com/mhalder/ragserver/internal/repository"
	"github.com/mhalder/ragserver/internal/splitter"
	"go.uber.org/zap"
)

// generation is one complete, internally consistent version of the index.
// chunks[i] corresponds to vectors[i]. A generation is never mutated after
// it becomes visible to readers.
type generation struct {
	chunks  []domain.Chunk
	vectors [][]float32
}

// Manager owns the current index generation and serializes structural
// mutations. Search runs concurrently against the visible generation.
type Manager struct {
	provider embedding.Provider
	splitter *splitter.Splitter
	db       *repository.DB
	logger   *zap.Logger

	// mutationMu serializes Rebuild and Insert; genMu guards the generation
	// slot itself.
	mutationMu sync.Mutex
	genMu      sync.RWMutex
	gen        *generation
}

// NewManager creates an index manager with no generation loaded yet.
func NewManager(provider embedding.Provider, split *splitter.Splitter, db *repository.DB, logger *zap.Logger) *Manager {
	return &Manager{
		provider: provider,
		splitter: split,
		db:       db,
		logger:   logger,
	}
}

// Ready reports whether a generation exists. Before the first successful
// Load or Rebuild, queries degrade to context-free passthrough.
func (m *Manager) Ready() bool {
	m.genMu.RLock()
	defer m.genMu.RUnlock()
	return m.gen != nil
}

// ChunkCount returns the number of chunks in the visible generation.
func (m *Manager) ChunkCount() int {
	m.genMu.RLock()
	defer m.genMu.RUnlock()
	if m.gen == nil {
		return 0
	}
	return len(m.gen.chunks)
}

// Rebuild discards any existing generation and constructs a fresh one from
// the given documents. onProgress is invoked after each document is embedded.
// The new generation is persisted and swapped in atomically on success; on
// failure the previous generation keeps serving queries.
func (m *Manager) Rebuild(ctx context.Context, docs []domain.Document, onProgress func(current, total int)) error {
	m.mutationMu.Lock()
	defer m.mutationMu.Unlock()

	next := &generation{}
	for i, doc := range docs {
		texts := m.splitter.Split(doc.Content)
		if len(texts) > 0 {
			vectors, err := m.provider.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed %s: %w", doc.Filename, err)
			}
			for pos, text := range texts {
				next.chunks = append(next.chunks, domain.Chunk{
					ID:       uuid.New().String(),
					Filename: doc.Filename,
					Text:     text,
					Position: pos,
				})
				next.vectors = append(next.vectors, vectors[pos])
			}
		}
		if onProgress != nil {
			onProgress(i+1, len(docs))
		}
	}

	if err := m.replaceAll(ctx, next); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	m.genMu.Lock()
	m.gen = next
	m.genMu.Unlock()

	m.logger.Info("index rebuilt",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(next.chunks)),
	)
	return nil
}

// Insert splits and embeds one new document and extends the index with its
// chunks, leaving existing chunks untouched. Fails with ErrNotReady if no
// generation exists yet.
func (m *Manager) Insert(ctx context.Context, doc domain.Document) error {
	m.mutationMu.Lock()
	defer m.mutationMu.Unlock()

	m.genMu.RLock()
	current := m.gen
	m.genMu.RUnlock()
	if current == nil {
		return domain.ErrNotReady
	}

	texts := m.splitter.Split(doc.Content)
	if len(texts) == 0 {
		return nil
	}
	vectors, err := m.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.Filename, err)
	}

	added := make([]domain.Chunk, len(texts))
	for pos, text := range texts {
		added[pos] = domain.Chunk{
			ID:       uuid.New().String(),
			Filename: doc.Filename,
			Text:     text,
			Position: pos,
		}
	}

	if err := m.appendChunks(ctx, added, vectors); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	// Copy-on-write: readers holding the old generation keep a consistent
	// view while the extended one becomes visible.
	next := &generation{
		chunks:  make([]domain.Chunk, 0, len(current.chunks)+len(added)),
		vectors: make([][]float32, 0, len(current.vectors)+len(vectors)),
	}
	next.chunks = append(append(next.chunks, current.chunks...), added...)
	next.vectors = append(append(next.vectors, current.vectors...), vectors...)

	m.genMu.Lock()
	m.gen = next
	m.genMu.Unlock()

	m.logger.Info("document inserted",
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(added)),
	)
	return nil
}

// Search embeds the query and returns the topK most similar chunks. When
// filenames is non-empty, only chunks from those files qualify. An empty
// index returns an empty result, not an error.
func (m *Manager) Search(ctx context.Context, query string, topK int, filenames []string) ([]domain.SearchResult, error) {
	m.genMu.RLock()
	gen := m.gen
	m.genMu.RUnlock()
	if gen == nil {
		return nil, domain.ErrNotReady
	}
	if len(gen.chunks) == 0 || topK <= 0 {
		return nil, nil
	}

	queryVec, err := m.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var allowed map[string]struct{}
	if len(filenames) > 0 {
		allowed = make(map[string]struct{}, len(filenames))
		for _, f := range filenames {
			allowed[f] = struct{}{}
		}
	}

	var results []domain.SearchResult
	for i, chunk := range gen.chunks {
		if allowed != nil {
			if _, ok := allowed[chunk.Filename]; !ok {
				continue
			}
		}
		results = append(results, domain.SearchResult{
			Chunk: chunk,
			Score: cosineSimilarity(queryVec, gen.vectors[i]),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-magnitude vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
