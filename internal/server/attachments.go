package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/veritaslocal/veritas/internal/store"
)

// maxAttachmentBytes bounds uploaded file size.
const maxAttachmentBytes = 2 << 20

type attachmentResponse struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleUploadAttachment(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := s.store.GetSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.logger.Printf("get session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	if header.Size > maxAttachmentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxAttachmentBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	if len(data) > maxAttachmentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	if !utf8.Valid(data) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only text files are supported"})
		return
	}

	att := &store.Attachment{
		SessionID:   sessionID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Text:        string(data),
		SizeBytes:   int64(len(data)),
	}
	id, err := s.store.AddAttachment(c.Request.Context(), att)
	if err != nil {
		s.logger.Printf("add attachment failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save attachment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "filename": att.Filename, "size_bytes": att.SizeBytes})
}

func (s *Server) handleListAttachments(c *gin.Context) {
	attachments, err := s.store.ListAttachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Printf("list attachments failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attachments"})
		return
	}
	out := make([]attachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, attachmentResponse{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			CreatedAt:   a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"attachments": out})
}

func (s *Server) handleDeleteAttachment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}

	err = s.store.DeleteAttachment(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}
	if err != nil {
		s.logger.Printf("delete attachment failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete attachment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
