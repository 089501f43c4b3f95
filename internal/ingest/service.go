package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/internal/library/llm"
	"github.com/papyr-app/papyr-api/library/apperr"
	"github.com/papyr-app/papyr-api/library/db/redis"
	"github.com/papyr-app/papyr-api/library/log"
	"github.com/papyr-app/papyr-api/library/storage"
)

// Clock abstracts time source for deterministic tests.
type Clock func() time.Time

// Service coordinates the upload leg and the asynchronous processing leg of
// document ingestion.
type Service struct {
	db        *gorm.DB
	store     storage.BlobStore
	queue     QueueClient
	embedder  llm.Embedder
	extractor TextExtractor
	chunker   TextChunker
	catalog   *catalog.Dao
	settings  Settings
	logger    logSDK.Logger
	clock     Clock
}

// NewService wires the dependencies and runs the required schema migrations.
func NewService(
	db *gorm.DB,
	store storage.BlobStore,
	queue QueueClient,
	embedder llm.Embedder,
	catalogDao *catalog.Dao,
	settings Settings,
	logger logSDK.Logger,
) (*Service, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if queue == nil {
		return nil, errors.New("queue client is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding client is required")
	}
	if catalogDao == nil {
		return nil, errors.New("catalog dao is required")
	}
	if logger == nil {
		logger = log.Logger.Named("ingest_service")
	}

	svc := &Service{
		db:        db,
		store:     store,
		queue:     queue,
		embedder:  embedder,
		extractor: NewPDFExtractor(logger.Named("extractor")),
		chunker:   OverlapChunker{},
		catalog:   catalogDao,
		settings:  settings.sanitized(),
		logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}

	if err := runIngestMigrations(context.Background(), db, logger); err != nil {
		return nil, errors.WithStack(err)
	}

	return svc, nil
}

func (s *Service) loggerFromContext(ctx context.Context) logSDK.Logger {
	if ctx != nil {
		if ctxLogger := gmw.GetLogger(ctx); ctxLogger != nil {
			return ctxLogger
		}
	}
	if s.logger != nil {
		return s.logger
	}
	return log.Logger.Named("ingest_service")
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// storagePathFor builds a collision-resistant object path namespaced by the
// owning profile and the upload time.
func (s *Service) storagePathFor(profileID, filename string) string {
	safe := unsafePathChars.ReplaceAllString(filename, "_")
	if safe == "" {
		safe = "document.pdf"
	}
	return fmt.Sprintf("uploads/%s/%d-%s", profileID, s.clock().UnixMilli(), safe)
}

// AcceptUpload stores the raw bytes, records the document in PROCESSING
// status, and enqueues the asynchronous processing job. The request cost is
// one blob write plus two row writes; parsing and embedding happen later on
// a worker.
func (s *Service) AcceptUpload(ctx context.Context,
	profileID, bookID, filename string, data []byte,
) (*UploadedDocument, error) {
	logger := s.loggerFromContext(ctx)

	if strings.TrimSpace(filename) == "" {
		return nil, apperr.New(apperr.ErrCodeValidation, "filename cannot be empty", false)
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.ErrCodeValidation, "file cannot be empty", false)
	}
	if _, err := s.catalog.GetProfile(ctx, profileID); err != nil {
		return nil, errors.WithStack(err)
	}

	path := s.storagePathFor(profileID, filename)
	if err := s.store.Upload(ctx, path, data, "application/pdf"); err != nil {
		return nil, errors.Wrap(
			apperr.New(apperr.ErrCodeStorageUnavailable, err.Error(), true),
			"upload document")
	}

	now := s.clock()
	doc := &UploadedDocument{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		BookID:      bookID,
		Title:       filename,
		StoragePath: path,
		Status:      StatusProcessing,
		IngestJobID: uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, errors.Wrap(err, "create uploaded document")
	}

	task := ProcessDocumentTask{
		JobID:       doc.IngestJobID,
		ProfileID:   profileID,
		BookID:      bookID,
		Title:       filename,
		StoragePath: path,
	}
	if err := s.queue.Enqueue(ctx, redis.KeyTaskIngest, JobProcessDocument, task); err != nil {
		// no job will ever pick this row up, so park it in a terminal
		// status instead of leaving it PROCESSING forever
		if markErr := s.markStatus(ctx, doc.ID, StatusError); markErr != nil {
			logger.Error("mark unqueued document error status", zap.Error(markErr))
		}
		return nil, errors.Wrap(err, "enqueue processing job")
	}

	logger.Info("document upload accepted",
		zap.String("document_id", doc.ID),
		zap.String("profile_id", profileID),
		zap.String("storage_path", path))

	return doc, nil
}

// Process executes the asynchronous leg: download, extract, chunk, embed,
// persist. Invoked with at-least-once semantics; the document row is keyed
// by the job ID so redelivery cannot duplicate it.
//
// Only an unreachable blob store marks the document ERROR. Extraction that
// yields no text and embedding failures of any extent still end in READY:
// the user's ability to read the file never depends on vectorization.
func (s *Service) Process(ctx context.Context, task ProcessDocumentTask) error {
	logger := s.loggerFromContext(ctx)

	if err := task.Validate(); err != nil {
		return errors.Wrap(err, "validate task")
	}

	doc, err := s.ensureDocument(ctx, task)
	if err != nil {
		return errors.WithStack(err)
	}
	if doc.Status != StatusProcessing {
		// redelivered job for a document that already finished
		logger.Info("document already processed, skipping",
			zap.String("document_id", doc.ID),
			zap.String("status", string(doc.Status)))
		return nil
	}

	data, err := s.store.Download(ctx, doc.StoragePath)
	if err != nil {
		if markErr := s.markStatus(ctx, doc.ID, StatusError); markErr != nil {
			logger.Error("mark document error status", zap.Error(markErr))
		}
		return errors.Wrap(
			apperr.New(apperr.ErrCodeStorageUnavailable, err.Error(), true),
			"download document")
	}

	text := s.extractor.Extract(data)
	logger.Info("extracted document text",
		zap.String("document_id", doc.ID),
		zap.Int("chars", len(text)))
	if text != "" && len(text) < s.settings.ShortTextThreshold {
		logger.Warn("very little text extracted, source may be a scanned image",
			zap.String("document_id", doc.ID),
			zap.Int("chars", len(text)))
	}

	if strings.TrimSpace(text) == "" {
		// nothing to vectorize; document stays readable, just not searchable
		return errors.WithStack(s.markStatus(ctx, doc.ID, StatusReady))
	}

	s.warnOnTitleMismatch(ctx, doc, text)

	inserted, failed := s.embedAndStoreChunks(ctx, doc, text)
	logger.Info("document chunks embedded",
		zap.String("document_id", doc.ID),
		zap.Int("inserted", inserted),
		zap.Int("failed", failed))

	return errors.WithStack(s.markStatus(ctx, doc.ID, StatusReady))
}

// ensureDocument upserts the document row for this job. The upload leg
// normally creates the row first; a worker racing a lost row (or a replayed
// job) recreates it idempotently keyed on the job ID.
func (s *Service) ensureDocument(ctx context.Context, task ProcessDocumentTask) (*UploadedDocument, error) {
	now := s.clock()

	// The dest must stay zero-valued so the lookup matches only on the job
	// ID; a pre-filled primary key would leak into the query conditions.
	doc := new(UploadedDocument)
	err := s.db.WithContext(ctx).
		Where(&UploadedDocument{IngestJobID: task.JobID}).
		Attrs(UploadedDocument{
			ID:          uuid.NewString(),
			ProfileID:   task.ProfileID,
			BookID:      task.BookID,
			Title:       task.Title,
			StoragePath: task.StoragePath,
			Status:      StatusProcessing,
			CreatedAt:   now,
			UpdatedAt:   now,
		}).
		FirstOrCreate(doc).Error
	if err != nil {
		return nil, errors.Wrap(err, "ensure uploaded document")
	}

	return doc, nil
}

// warnOnTitleMismatch checks that the linked catalog title appears near the
// top of the extracted text. A soft data-quality signal only: mismatches are
// logged and never block ingestion.
func (s *Service) warnOnTitleMismatch(ctx context.Context, doc *UploadedDocument, text string) {
	if doc.BookID == "" || len(text) < s.settings.ShortTextThreshold {
		return
	}
	logger := s.loggerFromContext(ctx)

	book, err := s.catalog.GetBook(ctx, doc.BookID)
	if err != nil {
		logger.Warn("load linked catalog book", zap.Error(err))
		return
	}
	title := strings.ToLower(strings.TrimSpace(book.Title))
	if title == "" {
		return
	}

	window := text
	if len(window) > s.settings.TitleCheckWindow {
		window = window[:s.settings.TitleCheckWindow]
	}
	if !strings.Contains(strings.ToLower(window), title) {
		logger.Warn("catalog title not found in extracted text",
			zap.String("document_id", doc.ID),
			zap.String("book_id", doc.BookID),
			zap.String("title", book.Title))
	}
}

// embedAndStoreChunks runs the embed loop. Chunk embedding is parallel
// across chunks; each failure is logged and skipped so one bad call cannot
// poison the rest of the index.
func (s *Service) embedAndStoreChunks(ctx context.Context, doc *UploadedDocument, text string) (inserted, failed int) {
	logger := s.loggerFromContext(ctx)

	chunks := s.chunker.Split(text, s.settings.ChunkSize, s.settings.ChunkOverlap)

	var insertedCount, failedCount atomic.Int64
	var pool errgroup.Group
	pool.SetLimit(s.settings.EmbedConcurrency)

	seq := 0
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		chunkIndex := seq
		seq++
		content := chunk

		pool.Go(func() error {
			vectors, err := s.embedder.EmbedTexts(ctx, []string{content})
			if err != nil || len(vectors) == 0 {
				logger.Warn("embed chunk, skipping",
					zap.String("document_id", doc.ID),
					zap.Int("chunk_index", chunkIndex),
					zap.Error(err))
				failedCount.Add(1)
				return nil
			}

			row := DocumentChunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Content:    content,
				Embedding:  vectors[0],
				Metadata:   datatypes.JSON(fmt.Sprintf(`{"chunk_index":%d}`, chunkIndex)),
				CreatedAt:  s.clock(),
			}
			if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
				logger.Warn("insert chunk, skipping",
					zap.String("document_id", doc.ID),
					zap.Int("chunk_index", chunkIndex),
					zap.Error(err))
				failedCount.Add(1)
				return nil
			}

			insertedCount.Add(1)
			return nil
		})
	}

	_ = pool.Wait()
	return int(insertedCount.Load()), int(failedCount.Load())
}

func (s *Service) markStatus(ctx context.Context, docID string, status DocumentStatus) error {
	err := s.db.WithContext(ctx).
		Model(&UploadedDocument{}).
		Where("id = ?", docID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": s.clock(),
		}).Error
	if err != nil {
		return errors.Wrapf(err, "mark document %q status %s", docID, status)
	}
	return nil
}

// ListUploads returns the profile's documents, newest first. Documents are
// listable from the moment the upload is accepted, whatever their status.
func (s *Service) ListUploads(ctx context.Context, profileID string) ([]UploadedDocument, error) {
	if _, err := s.catalog.GetProfile(ctx, profileID); err != nil {
		return nil, errors.WithStack(err)
	}

	var docs []UploadedDocument
	err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list uploads for profile %q", profileID)
	}

	return docs, nil
}

// GetDocument loads one document owned by the profile.
func (s *Service) GetDocument(ctx context.Context, profileID, documentID string) (*UploadedDocument, error) {
	doc := new(UploadedDocument)
	err := s.db.WithContext(ctx).
		Where("id = ? AND profile_id = ?", documentID, profileID).
		First(doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("document", documentID)
		}
		return nil, errors.Wrapf(err, "query document %q", documentID)
	}

	return doc, nil
}

// FileURL resolves a document to a time-limited signed read URL.
func (s *Service) FileURL(ctx context.Context, profileID, documentID string) (string, error) {
	doc, err := s.GetDocument(ctx, profileID, documentID)
	if err != nil {
		return "", errors.WithStack(err)
	}

	url, err := s.store.SignedURL(ctx, doc.StoragePath, s.settings.SignedURLTTL)
	if err != nil {
		return "", errors.Wrap(
			apperr.New(apperr.ErrCodeStorageUnavailable, err.Error(), true),
			"sign document url")
	}

	return url, nil
}
