package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sofai/sofaid/internal/chat"
	"github.com/sofai/sofaid/internal/history"
)

// chatRequest is the /chat and /predict request body.
type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	MaxTokens int    `json:"maxTokens"`
	Model     string `json:"model"`
}

// chatResponse is the /chat and /predict response body.
type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleChat runs the full request flow: resolve session, record the user
// message, generate, record the reply.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	if !s.opts.Chat.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}

	sessionID := c.GetHeader("x-session-id")
	if sessionID == "" {
		sessionID = history.DefaultSession
	}

	if err := s.opts.Store.Append(sessionID, history.Message{Role: history.RoleUser, Text: req.Message}); err != nil {
		log.Printf("api: append user message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history store failure"})
		return
	}

	reply, err := s.opts.Chat.Reply(c.Request.Context(), req.Model, req.Message, req.MaxTokens)
	if err != nil {
		if errors.Is(err, chat.ErrModelNotLoaded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
			return
		}
		log.Printf("api: generate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
		return
	}

	if err := s.opts.Store.Append(sessionID, history.Message{Role: history.RoleBot, Text: reply}); err != nil {
		log.Printf("api: append bot message: %v", err)
	}

	c.JSON(http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleHistory(c *gin.Context) {
	sessionID := c.DefaultQuery("sessionId", history.DefaultSession)
	msgs, err := s.opts.Store.History(sessionID)
	if err != nil {
		log.Printf("api: load history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "messages": msgs})
}

func (s *Server) handleHistoryClear(c *gin.Context) {
	sessionID := c.DefaultQuery("sessionId", history.DefaultSession)
	if err := s.opts.Store.Clear(sessionID); err != nil {
		log.Printf("api: clear history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
