package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/llm"
	"github.com/mhalder/ragserver/internal/service"
	"go.uber.org/zap"
)

// Handler handles retrieval API requests
type Handler struct {
	retrieval *service.RetrievalService
	engines   *llm.Router
	logger    *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(retrieval *service.RetrievalService, engines *llm.Router, logger *zap.Logger) *Handler {
	return &Handler{
		retrieval: retrieval,
		engines:   engines,
		logger:    logger,
	}
}

// GetStatus returns the indexing status snapshot. Never blocks on a job.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.retrieval.Status())
}

// ConstructPrompt builds the generation prompt for a query.
func (h *Handler) ConstructPrompt(c *gin.Context) {
	var req domain.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promptText, contextFound, err := h.retrieval.ConstructPrompt(
		c.Request.Context(), req.Query, req.SessionID, req.SelectedFiles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, domain.PromptResponse{
		Prompt:       promptText,
		ContextFound: contextFound,
	})
}

// AddDocument enqueues incremental indexing of an already-uploaded file.
// Returns a job-accepted acknowledgment, not the job result.
func (h *Handler) AddDocument(c *gin.Context) {
	var req domain.AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.retrieval.NotifyNewDocument(req.Filename); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "filename": req.Filename})
}

// SaveTurn appends one completed exchange to the session's history.
func (h *Handler) SaveTurn(c *gin.Context) {
	var req domain.SaveTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.retrieval.SaveTurn(c.Request.Context(), req.SessionID, req.UserQuery, req.AIResponse); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// Rebuild enqueues a full index rebuild.
func (h *Handler) Rebuild(c *gin.Context) {
	if err := h.retrieval.TriggerRebuild(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// ListDocuments lists the files in the documents directory.
func (h *Handler) ListDocuments(c *gin.Context) {
	files, err := h.retrieval.ListDocuments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// UploadDocument saves a multipart file and enqueues its indexing.
func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.retrieval.SaveDocument(file.Filename, content); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"filename": file.Filename, "status": "uploaded"})
}

// DeleteDocument removes a file and triggers a full rebuild to drop its
// chunks from the index.
func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.retrieval.DeleteDocument(c.Param("filename")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "deleted, rebuild scheduled"})
}

// ListModels returns the model tags of the reachable generation engines.
func (h *Handler) ListModels(c *gin.Context) {
	models := h.engines.ListModels(c.Request.Context())
	if len(models) == 0 {
		models = []string{"Error: No models available"}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// ChatStream constructs the prompt, proxies the engine's token stream to the
// client, and saves the turn once the full response is known.
func (h *Handler) ChatStream(c *gin.Context) {
	var req domain.ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promptText, _, err := h.retrieval.ConstructPrompt(
		c.Request.Context(), req.Message, req.SessionID, req.SelectedFiles)
	if err != nil {
		h.logger.Warn("prompt construction failed, using raw message", zap.Error(err))
		promptText = req.Message
	}

	stream, err := h.engines.Stream(c.Request.Context(), req.Model, promptText)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")

	var full strings.Builder
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-stream
		if !ok {
			return false
		}
		full.WriteString(chunk)
		_, _ = io.WriteString(w, chunk)
		return true
	})

	// The turn is persisted only after the whole response is known, with a
	// fresh context so a dropped client does not lose the memory write.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.retrieval.SaveTurn(saveCtx, req.SessionID, req.Message, full.String()); err != nil {
		h.logger.Error("failed to save turn",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
	}
}

// writeError maps service errors to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
