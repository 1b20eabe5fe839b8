package domain

import "time"

// Turn roles. A turn is immutable once appended.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one (role, content) entry in a session's ordered log.
type ChatTurn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptRequest is the request to construct a generation prompt.
type PromptRequest struct {
	Query         string   `json:"query" binding:"required"`
	SessionID     string   `json:"session_id"`
	SelectedFiles []string `json:"selected_files"`
}

// PromptResponse is the constructed prompt and whether retrieval found context.
type PromptResponse struct {
	Prompt       string `json:"prompt"`
	ContextFound bool   `json:"context_found"`
}

// SaveTurnRequest persists one completed generation exchange.
type SaveTurnRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	UserQuery  string `json:"user_query" binding:"required"`
	AIResponse string `json:"ai_response" binding:"required"`
}

// AddDocumentRequest triggers incremental indexing of an uploaded file.
type AddDocumentRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// ChatStreamRequest asks for a streamed completion over the constructed prompt.
type ChatStreamRequest struct {
	Message       string   `json:"message" binding:"required"`
	Model         string   `json:"model" binding:"required"`
	SessionID     string   `json:"session_id" binding:"required"`
	SelectedFiles []string `json:"selected_files"`
}
