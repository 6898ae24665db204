package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veritaslocal/veritas/internal/store"
)

type memoryResponse struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleListMemories(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	memories, err := s.store.ListMemories(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		s.logger.Printf("list memories failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list memories"})
		return
	}
	out := make([]memoryResponse, 0, len(memories))
	for _, m := range memories {
		out = append(out, memoryResponse{
			ID:         m.ID,
			Content:    m.Content,
			Category:   m.Category,
			Source:     m.Source,
			Confidence: m.Confidence,
			CreatedAt:  m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"memories": out})
}

func (s *Server) handleAddMemory(c *gin.Context) {
	var req struct {
		Content  string `json:"content" binding:"required"`
		Category string `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	mem := &store.Memory{
		Content:    req.Content,
		Category:   req.Category,
		Source:     "manual",
		Confidence: 1.0,
	}
	if s.embedder != nil {
		vectors, err := s.embedder.Embed(c.Request.Context(), []string{req.Content})
		if err != nil {
			// Stored without a vector; keyword ranking still finds it.
			s.logger.Printf("embedding memory failed: %v", err)
		} else if len(vectors) == 1 {
			mem.Embedding = vectors[0]
		}
	}

	id, err := s.store.AddMemory(c.Request.Context(), mem)
	if err != nil {
		s.logger.Printf("add memory failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save memory"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleDeleteMemory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid memory id"})
		return
	}

	err = s.store.DeleteMemory(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "memory not found"})
		return
	}
	if err != nil {
		s.logger.Printf("delete memory failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete memory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
