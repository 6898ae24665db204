package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veritaslocal/veritas/internal/store"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	return sessionResponse{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	// Body is optional; an absent or malformed body gets the default title.
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" {
		req.Title = "New chat"
	}

	sess := &store.Session{ID: uuid.NewString(), Title: req.Title}
	if err := s.store.CreateSession(c.Request.Context(), sess); err != nil {
		s.logger.Printf("create session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions(c.Request.Context(), 100)
	if err != nil {
		s.logger.Printf("list sessions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.store.GetSession(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		s.logger.Printf("get session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	messages, err := s.store.ListMessages(c.Request.Context(), id, 200)
	if err != nil {
		s.logger.Printf("list messages failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	msgs := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, messageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"session": toSessionResponse(sess), "messages": msgs})
}

func (s *Server) handleRenameSession(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	err := s.store.RenameSession(c.Request.Context(), c.Param("id"), req.Title)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		s.logger.Printf("rename session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	err := s.store.DeleteSession(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		s.logger.Printf("delete session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type rulesPayload struct {
	HistoryLimit       int    `json:"history_limit"`
	MemoryLimit        int    `json:"memory_limit"`
	WebLimit           int    `json:"web_limit"`
	FileLimit          int    `json:"file_limit"`
	CustomInstructions string `json:"custom_instructions"`
	FollowUp           bool   `json:"follow_up"`
}

func (s *Server) handleGetRules(c *gin.Context) {
	rules, err := s.store.GetRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Printf("get rules failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rules"})
		return
	}
	c.JSON(http.StatusOK, rulesPayload{
		HistoryLimit:       rules.HistoryLimit,
		MemoryLimit:        rules.MemoryLimit,
		WebLimit:           rules.WebLimit,
		FileLimit:          rules.FileLimit,
		CustomInstructions: rules.CustomInstructions,
		FollowUp:           rules.FollowUp,
	})
}

func (s *Server) handlePutRules(c *gin.Context) {
	var req rulesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rules payload"})
		return
	}
	if req.HistoryLimit < 0 || req.MemoryLimit < 0 || req.WebLimit < 0 || req.FileLimit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limits must be non-negative"})
		return
	}

	err := s.store.PutRules(c.Request.Context(), &store.Rules{
		SessionID:          c.Param("id"),
		HistoryLimit:       req.HistoryLimit,
		MemoryLimit:        req.MemoryLimit,
		WebLimit:           req.WebLimit,
		FileLimit:          req.FileLimit,
		CustomInstructions: req.CustomInstructions,
		FollowUp:           req.FollowUp,
	})
	if err != nil {
		s.logger.Printf("put rules failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
