package web

import (
	"io"
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/library/apperr"
)

type uploadResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Title    string `json:"title"`
	Queued   bool   `json:"queued"`
	Accepted string `json:"accepted_at"`
}

type documentResponse struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id,omitempty"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toDocumentResponse(doc *ingest.UploadedDocument) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		BookID:    doc.BookID,
		Title:     doc.Title,
		Status:    string(doc.Status),
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleUpload accepts a multipart PDF upload and answers as soon as the blob
// is stored and the processing job is queued.
func (s *Server) handleUpload(ctx *gin.Context) {
	pid := profileID(ctx)
	if pid == "" {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "profile id is required", false))
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "multipart field \"file\" is required", false))
		return
	}
	if fileHeader.Size > s.settings.MaxUploadBytes {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "file exceeds the upload size limit", false))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "cannot read uploaded file", false))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.settings.MaxUploadBytes+1))
	if err != nil {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "cannot read uploaded file", false))
		return
	}
	if int64(len(data)) > s.settings.MaxUploadBytes {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "file exceeds the upload size limit", false))
		return
	}

	doc, err := s.docs.AcceptUpload(ctx, pid, ctx.PostForm("book_id"), fileHeader.Filename, data)
	if err != nil {
		respondError(ctx, err)
		return
	}

	gmw.GetLogger(ctx).Info("upload accepted",
		zap.String("document_id", doc.ID),
		zap.Int("bytes", len(data)))
	ctx.JSON(http.StatusAccepted, uploadResponse{
		ID:       doc.ID,
		Status:   string(doc.Status),
		Title:    doc.Title,
		Queued:   true,
		Accepted: doc.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// handleListUploads lists the profile's documents, newest first.
func (s *Server) handleListUploads(ctx *gin.Context) {
	pid := profileID(ctx)
	if pid == "" {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "profile id is required", false))
		return
	}

	docs, err := s.docs.ListUploads(ctx, pid)
	if err != nil {
		respondError(ctx, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentResponse(&docs[i]))
	}
	ctx.JSON(http.StatusOK, gin.H{"documents": out})
}

// handleFileURL resolves a document to a time-limited signed download URL.
func (s *Server) handleFileURL(ctx *gin.Context) {
	pid := profileID(ctx)
	if pid == "" {
		respondError(ctx, apperr.New(apperr.ErrCodeValidation, "profile id is required", false))
		return
	}

	url, err := s.docs.FileURL(ctx, pid, ctx.Param("document_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"url": url})
}
