package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritaslocal/veritas/internal/chat"
	"github.com/veritaslocal/veritas/internal/store"
)

type chatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	UseWeb    bool   `json:"use_web"`
	Reason    bool   `json:"reason"`
}

// handleChatStream runs one turn and relays the chat events as SSE,
// one `event: <type>` / `data: <json>` pair per event.
func (s *Server) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and message are required"})
		return
	}

	if _, err := s.store.GetSession(c.Request.Context(), req.SessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.logger.Printf("get session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(e chat.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			s.logger.Printf("encoding event failed: %v", err)
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", e.Type, data)
		flusher.Flush()
	}

	opts := chat.Options{UseWeb: req.UseWeb, Reason: req.Reason}
	if err := s.chat.StreamReply(c.Request.Context(), req.SessionID, req.Message, opts, emit); err != nil {
		// Already emitted as an error event; the stream is the response.
		s.logger.Printf("chat turn failed: %v", err)
	}
}
