// Package ingest turns uploaded book documents into searchable, chunked,
// embedded text. The upload leg is synchronous; the processing leg runs on
// queue workers and degrades gracefully when extraction or embedding fails.
package ingest

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentStatus is the lifecycle state of an uploaded document.
// Transitions are one-way: PROCESSING -> READY or PROCESSING -> ERROR.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusReady      DocumentStatus = "READY"
	StatusError      DocumentStatus = "ERROR"
)

// UploadedDocument is a user-uploaded book file. The row exists from the
// moment the upload is accepted, so the raw file stays readable no matter
// what happens to vectorization later.
type UploadedDocument struct {
	ID          string `gorm:"primaryKey;size:36"`
	ProfileID   string `gorm:"size:36;index"`
	BookID      string `gorm:"size:36"`
	Title       string
	StoragePath string
	Status      DocumentStatus `gorm:"size:16"`
	IngestJobID string         `gorm:"size:36;uniqueIndex"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the database table name.
func (UploadedDocument) TableName() string {
	return "uploaded_documents"
}

// DocumentChunk is one embedded span of an extracted document. Rows are
// append-only; retrieval orders by vector distance, never by insertion.
type DocumentChunk struct {
	ID         string `gorm:"primaryKey;size:36"`
	DocumentID string `gorm:"size:36;index"`
	Content    string
	Embedding  pgvector.Vector `gorm:"type:vector"`
	Metadata   datatypes.JSON
	CreatedAt  time.Time
}

// TableName returns the database table name.
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
