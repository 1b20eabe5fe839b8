package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mhalder/ragserver/internal/domain"
	"go.uber.org/zap"
)

// Load reads the persisted chunks into a fresh generation so a restart does
// not resplit or re-embed the collection. It returns false when no persisted
// state exists; on a corrupt store it returns an error and the caller falls
// back to a full rebuild.
func (m *Manager) Load(ctx context.Context) (bool, error) {
	m.mutationMu.Lock()
	defer m.mutationMu.Unlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, filename, content, position, embedding
		FROM chunks ORDER BY filename, position
	`)
	if err != nil {
		return false, fmt.Errorf("read persisted chunks: %w", err)
	}
	defer rows.Close()

	next := &generation{}
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingJSON string
		if err := rows.Scan(&chunk.ID, &chunk.Filename, &chunk.Text, &chunk.Position, &embeddingJSON); err != nil {
			return false, fmt.Errorf("scan persisted chunk: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			return false, fmt.Errorf("decode embedding for chunk %s: %w", chunk.ID, err)
		}
		next.chunks = append(next.chunks, chunk)
		next.vectors = append(next.vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("read persisted chunks: %w", err)
	}

	if len(next.chunks) == 0 {
		return false, nil
	}

	m.genMu.Lock()
	m.gen = next
	m.genMu.Unlock()

	m.logger.Info("index loaded from disk", zap.Int("chunks", len(next.chunks)))
	return true, nil
}

// replaceAll persists a full generation, dropping any prior rows.
func (m *Manager) replaceAll(ctx context.Context, gen *generation) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	for i, chunk := range gen.chunks {
		embeddingJSON, err := json.Marshal(gen.vectors[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, filename, content, position, embedding)
			VALUES (?, ?, ?, ?, ?)
		`, chunk.ID, chunk.Filename, chunk.Text, chunk.Position, string(embeddingJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// appendChunks persists the chunks added by one Insert.
func (m *Manager) appendChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, chunk := range chunks {
		embeddingJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, filename, content, position, embedding)
			VALUES (?, ?, ?, ?, ?)
		`, chunk.ID, chunk.Filename, chunk.Text, chunk.Position, string(embeddingJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}
