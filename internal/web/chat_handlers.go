package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/papyr-app/papyr-api/internal/chat"
	"github.com/papyr-app/papyr-api/library/apperr"
)

type askRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
	Language   string `json:"language"`
}

type askResponse struct {
	MessageID string `json:"message_id"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

type searchRequest struct {
	DocumentID string `json:"document_id"`
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
}

type messageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func toMessageResponse(msg *chat.ConversationMessage) messageResponse {
	return messageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// handleAsk answers one reader question about one document.
func (s *Server) handleAsk(ctx *gin.Context) {
	pid := profileID(ctx)
	if pid == "" {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "profile id is required", false))
		return
	}

	var req askRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "invalid request body", false))
		return
	}

	reply, err := s.chats.Ask(ctx, pid, req.DocumentID, req.Question, req.Language)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, askResponse{
		MessageID: reply.ID,
		Answer:    reply.Content,
		CreatedAt: reply.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// handleHistory returns the scope's conversation, oldest first.
func (s *Server) handleHistory(ctx *gin.Context) {
	pid := profileID(ctx)
	if pid == "" {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "profile id is required", false))
		return
	}

	msgs, err := s.chats.GetHistory(ctx, pid, ctx.Param("document_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": out})
}

// handleSearch runs a similarity search inside one document.
func (s *Server) handleSearch(ctx *gin.Context) {
	pid := profileID(ctx)
	if pid == "" {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "profile id is required", false))
		return
	}

	var req searchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "invalid request body", false))
		return
	}

	matches, err := s.chats.SearchChunks(ctx, pid, req.DocumentID, req.Query, req.TopK)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"matches": matches})
}
