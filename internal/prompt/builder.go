// Package prompt assembles the final generation prompt from retrieved
// context and conversation history.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/history"
	"github.com/mhalder/ragserver/internal/index"
	"go.uber.org/zap"
)

const preamble = `You are a helpful AI assistant. Use the following context to answer the user's question.
If the answer is not in the context, say so, but try to be helpful.`

const noContextMessage = "No relevant documents found."

// Builder merges top-K retrieval results and recent session history into a
// single prompt. It never mutates the history or the index.
type Builder struct {
	index       *index.Manager
	history     *history.Store
	topK        int
	tokenBudget int
	logger      *zap.Logger
}

// NewBuilder creates a prompt builder.
func NewBuilder(idx *index.Manager, hist *history.Store, topK, tokenBudget int, logger *zap.Logger) *Builder {
	if topK <= 0 {
		topK = 3
	}
	return &Builder{
		index:       idx,
		history:     hist,
		topK:        topK,
		tokenBudget: tokenBudget,
		logger:      logger,
	}
}

// Construct builds the generation prompt for a query. While the index has no
// generation yet, the raw query passes through unchanged with contextFound
// false; the caller is never blocked waiting for indexing.
func (b *Builder) Construct(ctx context.Context, query, sessionID string, filenames []string) (string, bool, error) {
	if !b.index.Ready() {
		return query, false, nil
	}

	results, err := b.index.Search(ctx, query, b.topK, filenames)
	if err != nil {
		return "", false, fmt.Errorf("search: %w", err)
	}

	contextBlock := noContextMessage
	if len(results) > 0 {
		var parts []string
		for _, res := range results {
			parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", res.Chunk.Filename, strings.TrimSpace(res.Chunk.Text)))
		}
		contextBlock = strings.Join(parts, "\n\n")
	}

	// History degrades to empty rather than failing the request.
	historyBlock := ""
	if b.history != nil && sessionID != "" {
		turns, err := b.history.Recent(ctx, sessionID, b.tokenBudget)
		if err != nil {
			b.logger.Warn("history unavailable, proceeding without it",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		} else {
			historyBlock = formatTurns(turns)
		}
	}

	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\n\nCONVERSATION HISTORY:\n---------------------\n")
	sb.WriteString(historyBlock)
	sb.WriteString("\n---------------------\n\nCONTEXT INFORMATION:\n---------------------\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n---------------------\n\nUSER QUESTION:\n")
	sb.WriteString(query)
	sb.WriteString("\n")

	return sb.String(), len(results) > 0, nil
}

// formatTurns renders history as alternating role-labeled lines, oldest first.
func formatTurns(turns []domain.ChatTurn) string {
	var lines []string
	for _, turn := range turns {
		label := "User"
		if turn.Role == domain.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, turn.Content))
	}
	return strings.Join(lines, "\n")
}
