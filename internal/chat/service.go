package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/internal/library/llm"
	"github.com/papyr-app/papyr-api/library/apperr"
	"github.com/papyr-app/papyr-api/library/log"
)

// Clock abstracts time source for deterministic tests.
type Clock func() time.Time

// Service answers questions about one uploaded document on behalf of one
// profile. Conversations are append-only and scoped by (profile, document).
type Service struct {
	db        *gorm.DB
	docs      *ingest.Service
	catalog   *catalog.Dao
	embedder  llm.Embedder
	completer llm.ChatCompleter
	settings  Settings
	logger    logSDK.Logger
	clock     Clock
}

// NewService wires the dependencies and migrates the conversation table.
func NewService(
	db *gorm.DB,
	docs *ingest.Service,
	catalogDao *catalog.Dao,
	embedder llm.Embedder,
	completer llm.ChatCompleter,
	settings Settings,
	logger logSDK.Logger,
) (*Service, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if docs == nil {
		return nil, errors.New("ingest service is required")
	}
	if catalogDao == nil {
		return nil, errors.New("catalog dao is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding client is required")
	}
	if completer == nil {
		return nil, errors.New("chat completion client is required")
	}
	if logger == nil {
		logger = log.Logger.Named("chat_service")
	}

	if err := db.AutoMigrate(&ConversationMessage{}); err != nil {
		return nil, errors.Wrap(err, "migrate conversation schema")
	}

	return &Service{
		db:        db,
		docs:      docs,
		catalog:   catalogDao,
		embedder:  embedder,
		completer: completer,
		settings:  settings.sanitized(),
		logger:    logger,
		clock:     monotonicClock(),
	}, nil
}

// monotonicClock returns a Clock whose values strictly increase, stepping by
// the timestamp column's resolution when the wall clock stalls. Keeps the
// user turn ordered strictly before the assistant turn it precedes.
func monotonicClock() Clock {
	var mu sync.Mutex
	var last time.Time
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now().UTC()
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}
		last = now
		return now
	}
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
	return log.Logger.Named("chat_service")
}

// resolveScope checks both sides of the conversation scope and loads the
// linked book when the upload references one.
func (s *Service) resolveScope(ctx context.Context,
	profileID, documentID string,
) (*ingest.UploadedDocument, *catalog.Book, error) {
	if _, err := s.catalog.GetProfile(ctx, profileID); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	doc, err := s.docs.GetDocument(ctx, profileID, documentID)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	var book *catalog.Book
	if doc.BookID != "" {
		book, err = s.catalog.GetBook(ctx, doc.BookID)
		if err != nil {
			if !apperr.IsCode(err, apperr.ErrCodeNotFound) {
				return nil, nil, errors.WithStack(err)
			}
			// Dangling book reference; fall back to the upload title.
			s.loggerFromContext(ctx).Warn("upload references missing book",
				zap.String("document_id", documentID),
				zap.String("book_id", doc.BookID))
			book = nil
		}
	}

	return doc, book, nil
}

// GetHistory returns the full conversation for the scope, oldest first.
func (s *Service) GetHistory(ctx context.Context,
	profileID, documentID string,
) ([]ConversationMessage, error) {
	if _, _, err := s.resolveScope(ctx, profileID, documentID); err != nil {
		return nil, errors.WithStack(err)
	}

	var msgs []ConversationMessage
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND document_id = ?", profileID, documentID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list conversation for document %q", documentID)
	}

	return msgs, nil
}

// recentHistory loads the newest HistoryWindow turns and returns them in
// chronological order. The id tie-break keeps the order total even when two
// turns land inside the timestamp's resolution.
func (s *Service) recentHistory(ctx context.Context,
	profileID, documentID string,
) ([]ConversationMessage, error) {
	var msgs []ConversationMessage
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND document_id = ?", profileID, documentID).
		Order("created_at DESC, id DESC").
		Limit(s.settings.HistoryWindow).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "load recent conversation window")
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Service) appendMessage(ctx context.Context,
	profileID, documentID string, role MessageRole, content string,
) (*ConversationMessage, error) {
	msg := &ConversationMessage{
		ID:         uuid.NewString(),
		ProfileID:  profileID,
		DocumentID: documentID,
		Role:       role,
		Content:    content,
		CreatedAt:  s.clock(),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, errors.Wrap(err, "persist conversation message")
	}
	return msg, nil
}

// Ask records the reader's question, asks the provider for an answer grounded
// in the book's metadata and the recent conversation, records the answer, and
// returns the assistant turn.
//
// The user turn is committed before the provider call, so a provider outage
// still leaves the question in the history.
func (s *Service) Ask(ctx context.Context,
	profileID, documentID, question, language string,
) (*ConversationMessage, error) {
	logger := s.loggerFromContext(ctx)

	if strings.TrimSpace(question) == "" {
		return nil, apperr.New(apperr.ErrCodeValidation, "question cannot be empty", false)
	}

	doc, book, err := s.resolveScope(ctx, profileID, documentID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if strings.TrimSpace(language) == "" {
		language = s.settings.DefaultLanguage
	}

	if _, err = s.appendMessage(ctx, profileID, documentID, RoleUser, question); err != nil {
		return nil, errors.WithStack(err)
	}

	history, err := s.recentHistory(ctx, profileID, documentID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{
		Role:    llm.RoleSystem,
		Content: buildSystemInstruction(doc, book, language),
	})
	for i := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    providerRole(history[i].Role),
			Content: history[i].Content,
		})
	}

	answer, err := s.completer.Complete(ctx, messages)
	if err != nil {
		logger.Error("chat completion failed",
			zap.String("document_id", documentID),
			zap.Error(err))
		return nil, errors.Wrap(
			apperr.New(apperr.ErrCodeProviderUnavailable, err.Error(), true),
			"generate answer")
	}

	reply, err := s.appendMessage(ctx, profileID, documentID, RoleAssistant, answer)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.Debug("answered question",
		zap.String("document_id", documentID),
		zap.Int("history_turns", len(history)))
	return reply, nil
}

// SearchChunks embeds the query and returns the document's nearest chunks by
// cosine distance.
func (s *Service) SearchChunks(ctx context.Context,
	profileID, documentID, query string, topK int,
) ([]ChunkMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.New(apperr.ErrCodeValidation, "query cannot be empty", false)
	}
	if topK <= 0 {
		topK = s.settings.TopKDefault
	}
	if topK > s.settings.TopKLimit {
		topK = s.settings.TopKLimit
	}

	if _, _, err := s.resolveScope(ctx, profileID, documentID); err != nil {
		return nil, errors.WithStack(err)
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, errors.Wrap(
			apperr.New(apperr.ErrCodeProviderUnavailable, err.Error(), true),
			"embed search query")
	}
	if len(vecs) != 1 {
		return nil, errors.Errorf("expected one query embedding, got %d", len(vecs))
	}

	return searchNearestChunks(ctx, s.db, documentID, vecs[0], topK)
}

// searchNearestChunks orders the document's chunks by cosine distance to the
// query vector. Distance must be computed on the database side so the vector
// index can serve the scan.
func searchNearestChunks(ctx context.Context, db *gorm.DB,
	documentID string, vec pgvector.Vector, limit int,
) ([]ChunkMatch, error) {
	var matches []ChunkMatch
	err := db.WithContext(ctx).
		Raw(`SELECT id, content FROM document_chunks
WHERE document_id = ?
ORDER BY embedding <=> ?
LIMIT ?`, documentID, vec, limit).
		Scan(&matches).Error
	if err != nil {
		return nil, errors.Wrapf(err, "vector search in document %q", documentID)
	}

	return matches, nil
}
