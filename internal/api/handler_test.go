package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mhalder/ragserver/internal/config"
	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/embedding/embeddingtest"
	"github.com/mhalder/ragserver/internal/history"
	"github.com/mhalder/ragserver/internal/index"
	"github.com/mhalder/ragserver/internal/llm"
	"github.com/mhalder/ragserver/internal/prompt"
	"github.com/mhalder/ragserver/internal/repository"
	"github.com/mhalder/ragserver/internal/service"
	"github.com/mhalder/ragserver/internal/splitter"
	"github.com/mhalder/ragserver/internal/status"
)

func newTestRouter(t *testing.T, files map[string]string, start bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docsDir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0644))
	}

	cfg := &config.Config{}
	cfg.Storage.Documents = docsDir
	cfg.Index.TopK = 3
	cfg.History.TokenBudget = 1000

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	idx := index.NewManager(embeddingtest.New(), splitter.New(500, 100), db, logger)
	hist := history.NewStore(db)
	builder := prompt.NewBuilder(idx, hist, cfg.Index.TopK, cfg.History.TokenBudget, logger)
	retrieval := service.NewRetrievalService(cfg, idx, status.NewTracker(), hist, builder, logger)

	if start {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		retrieval.Start(ctx)

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if idx.Ready() && !retrieval.Status().IsIndexing {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		require.True(t, idx.Ready(), "index never became ready")
	}

	engines := llm.NewRouter("http://127.0.0.1:1", "http://127.0.0.1:1")
	return SetupRouter(retrieval, engines, logger, RouterConfig{AllowOrigins: []string{"*"}})
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil, false)
	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetStatus(t *testing.T) {
	router := newTestRouter(t, map[string]string{"a.txt": "content"}, true)
	w := doJSON(router, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var s domain.IndexStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.False(t, s.IsIndexing)
	assert.Equal(t, s.Total, s.Current)
}

func TestConstructPrompt_PassthroughBeforeStart(t *testing.T) {
	router := newTestRouter(t, nil, false)

	w := doJSON(router, http.MethodPost, "/construct_prompt", domain.PromptRequest{
		Query:     "What is Go?",
		SessionID: "s1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.ContextFound)
	assert.Equal(t, "What is Go?", resp.Prompt)
}

func TestConstructPrompt_WithContext(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sky.txt": "The sky is blue."}, true)

	w := doJSON(router, http.MethodPost, "/construct_prompt", domain.PromptRequest{
		Query:     "What color is the sky?",
		SessionID: "s1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.ContextFound)
	assert.Contains(t, resp.Prompt, "[Source: sky.txt]")
}

func TestConstructPrompt_MissingQuery(t *testing.T) {
	router := newTestRouter(t, nil, false)
	w := doJSON(router, http.MethodPost, "/construct_prompt", gin.H{"session_id": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddDocument_UnknownFile(t *testing.T) {
	router := newTestRouter(t, map[string]string{"a.txt": "content"}, true)
	w := doJSON(router, http.MethodPost, "/add_document", domain.AddDocumentRequest{Filename: "nope.txt"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddDocument_Accepted(t *testing.T) {
	docs := map[string]string{"a.txt": "content"}
	router := newTestRouter(t, docs, true)

	w := doJSON(router, http.MethodPost, "/add_document", domain.AddDocumentRequest{Filename: "a.txt"})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSaveTurnAndHistoryInPrompt(t *testing.T) {
	router := newTestRouter(t, map[string]string{"a.txt": "some content"}, true)

	w := doJSON(router, http.MethodPost, "/save_turn", domain.SaveTurnRequest{
		SessionID:  "s1",
		UserQuery:  "hi there",
		AIResponse: "hello friend",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/construct_prompt", domain.PromptRequest{
		Query:     "some content",
		SessionID: "s1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Prompt, "User: hi there")
	assert.Contains(t, resp.Prompt, "Assistant: hello friend")
}

func TestListDocuments(t *testing.T) {
	router := newTestRouter(t, map[string]string{"a.txt": "x", "b.txt": "y"}, true)

	w := doJSON(router, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, resp.Files)
}

func TestDeleteDocument_NotFound(t *testing.T) {
	router := newTestRouter(t, nil, true)
	w := doJSON(router, http.MethodDelete, "/documents/nope.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRebuild_Accepted(t *testing.T) {
	router := newTestRouter(t, nil, true)
	w := doJSON(router, http.MethodPost, "/rebuild", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestListModels_NoEnginesReachable(t *testing.T) {
	router := newTestRouter(t, nil, false)
	w := doJSON(router, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Models []string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Error: No models available"}, resp.Models)
}
