// Package server exposes the HTTP API: session and memory CRUD, per-session
// rules, attachment upload and the SSE chat stream.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veritaslocal/veritas/internal/chat"
	"github.com/veritaslocal/veritas/internal/store"
)

// ChatService runs one chat turn. chat.Service satisfies it.
type ChatService interface {
	StreamReply(ctx context.Context, sessionID, content string, opts chat.Options, emit func(chat.Event)) error
}

// Embedder vectorizes manually added memories. Optional.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Server holds the API dependencies.
type Server struct {
	store    store.Store
	chat     ChatService
	embedder Embedder
	logger   *log.Logger
}

// Config wires a Server. Embedder and Logger may be nil.
type Config struct {
	Store    store.Store
	Chat     ChatService
	Embedder Embedder
	Logger   *log.Logger
}

// NewServer builds the API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}
	return &Server{
		store:    cfg.Store,
		chat:     cfg.Chat,
		embedder: cfg.Embedder,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stats", s.handleStats)

		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions", s.handleListSessions)
		api.GET("/sessions/:id", s.handleGetSession)
		api.PATCH("/sessions/:id", s.handleRenameSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)

		api.GET("/sessions/:id/rules", s.handleGetRules)
		api.PUT("/sessions/:id/rules", s.handlePutRules)

		api.POST("/sessions/:id/attachments", s.handleUploadAttachment)
		api.GET("/sessions/:id/attachments", s.handleListAttachments)
		api.DELETE("/attachments/:id", s.handleDeleteAttachment)

		api.GET("/memories", s.handleListMemories)
		api.POST("/memories", s.handleAddMemory)
		api.DELETE("/memories/:id", s.handleDeleteMemory)

		api.POST("/chat/stream", s.handleChatStream)
	}
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Printf("stats failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions":    stats.SessionCount,
		"messages":    stats.MessageCount,
		"memories":    stats.MemoryCount,
		"attachments": stats.AttachmentCount,
	})
}
