// Package history persists per-session conversation turns.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/repository"
)

// Store is a durable, session-keyed, append-only log of chat turns. Turn
// ordering within a session follows append order; reads return a bounded
// suffix of the log.
type Store struct {
	db *repository.DB
}

// NewStore creates a history store over the shared database.
func NewStore(db *repository.DB) *Store {
	return &Store{db: db}
}

// Append adds one turn to the end of the session's log. The turn is durable
// before Append returns.
func (s *Store) Append(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return domain.ErrInvalidRequest
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id) VALUES (?)`, sessionID); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	// seq keeps strict append order even when two turns land within the
	// same timestamp granularity.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?))
	`, uuid.New().String(), sessionID, role, content, sessionID); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	return tx.Commit()
}

// Recent returns the most recent turns whose cumulative token count fits the
// budget, oldest-first. The newest turn is always included, even when it
// alone exceeds the budget, so a session is never read back as empty just
// because its latest turn is long. An unknown session yields an empty slice.
func (s *Store) Recent(ctx context.Context, sessionID string, tokenBudget int) ([]domain.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY seq DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var newestFirst []domain.ChatTurn
	used := 0
	for rows.Next() {
		var turn domain.ChatTurn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		cost := tokenCount(turn.Content)
		if used+cost > tokenBudget && len(newestFirst) > 0 {
			break
		}
		used += cost
		newestFirst = append(newestFirst, turn)
		if used >= tokenBudget {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	// Reverse into chronological order.
	turns := make([]domain.ChatTurn, len(newestFirst))
	for i, turn := range newestFirst {
		turns[len(turns)-1-i] = turn
	}
	return turns, nil
}

// tokenCount approximates the token cost of a turn as its word count.
func tokenCount(text string) int {
	return len(strings.Fields(text))
}
