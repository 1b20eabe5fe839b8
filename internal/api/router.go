package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mhalder/ragserver/internal/api/middleware"
	"github.com/mhalder/ragserver/internal/llm"
	"github.com/mhalder/ragserver/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	retrieval *service.RetrievalService,
	engines *llm.Router,
	logger *zap.Logger,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	h := NewHandler(retrieval, engines, logger)

	r.GET("/status", h.GetStatus)
	r.POST("/construct_prompt", h.ConstructPrompt)
	r.POST("/add_document", h.AddDocument)
	r.POST("/save_turn", h.SaveTurn)
	r.POST("/rebuild", h.Rebuild)

	r.GET("/documents", h.ListDocuments)
	r.POST("/upload", h.UploadDocument)
	r.DELETE("/documents/:filename", h.DeleteDocument)

	r.GET("/models", h.ListModels)
	r.POST("/chat_stream", h.ChatStream)

	return r
}
