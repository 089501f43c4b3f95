package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/internal/library/llm"
	"github.com/papyr-app/papyr-api/library/db/redis"
	"github.com/papyr-app/papyr-api/library/log"
)

const (
	testProfileID   = "profile-1"
	testBookID      = "book-1"
	testBookTitle   = "The Left Hand of Darkness"
	testBookAuthor  = "Ursula K. Le Guin"
	testDocumentID  = "doc-1"
	testOrphanDocID = "doc-orphan"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	fail  bool
	calls [][]llm.ChatMessage
}

func (c *fakeCompleter) Complete(_ context.Context, messages []llm.ChatMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]llm.ChatMessage, len(messages))
	copy(copied, messages)
	c.calls = append(c.calls, copied)
	if c.fail {
		return "", errors.New("completion provider unreachable")
	}
	return c.reply, nil
}

func (c *fakeCompleter) lastCall(t *testing.T) []llm.ChatMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.calls)
	return c.calls[len(c.calls)-1]
}

type fakeEmbedder struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, inputs []string) ([]pgvector.Vector, error) {
	e.mu.Lock()
	e.calls++
	fail := e.fail
	e.mu.Unlock()

	if fail {
		return nil, errors.New("embedding provider unreachable")
	}
	vectors := make([]pgvector.Vector, 0, len(inputs))
	for range inputs {
		vectors = append(vectors, pgvector.NewVector([]float32{1, 0, 0}))
	}
	return vectors, nil
}

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, string, string, any) error { return nil }
func (noopQueue) Dequeue(context.Context, string, time.Duration) (*redis.TaskEnvelope, error) {
	return nil, nil
}
func (noopQueue) Requeue(context.Context, string, *redis.TaskEnvelope) error { return nil }
func (noopQueue) DeadLetter(context.Context, string, []byte) error { return nil }

type noopBlobStore struct{}

func (noopBlobStore) Upload(context.Context, string, []byte, string) error { return nil }
func (noopBlobStore) Download(context.Context, string) ([]byte, error)     { return nil, nil }
func (noopBlobStore) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "https://blobs.test/object", nil
}

type chatTestEnv struct {
	svc       *Service
	db        *gorm.DB
	completer *fakeCompleter
	embedder  *fakeEmbedder
}

func newChatTestEnv(t *testing.T) *chatTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	dao := catalog.NewDao(db)
	require.NoError(t, dao.Migrate(context.Background()))
	require.NoError(t, db.Create(&catalog.Profile{ID: testProfileID, DisplayName: "reader"}).Error)
	require.NoError(t, db.Create(&catalog.Book{
		ID:            testBookID,
		Title:         testBookTitle,
		Author:        testBookAuthor,
		Description:   "A solitary envoy on the planet Gethen.",
		PublishedYear: 1969,
		Genres:        datatypes.JSONSlice[string]{"science fiction"},
	}).Error)

	embedder := &fakeEmbedder{}
	docs, err := ingest.NewService(db, noopBlobStore{}, noopQueue{}, embedder, dao,
		ingest.Settings{ChunkSize: 200, ChunkOverlap: 40, EmbedConcurrency: 2, Workers: 1},
		log.Logger.Named("chat_test_ingest"))
	require.NoError(t, err)

	require.NoError(t, db.Create(&ingest.UploadedDocument{
		ID:          testDocumentID,
		ProfileID:   testProfileID,
		BookID:      testBookID,
		Title:       testBookTitle,
		StoragePath: "uploads/profile-1/left-hand.pdf",
		Status:      ingest.StatusReady,
		IngestJobID: "job-1",
	}).Error)
	require.NoError(t, db.Create(&ingest.UploadedDocument{
		ID:          testOrphanDocID,
		ProfileID:   testProfileID,
		Title:       "field notes.pdf",
		StoragePath: "uploads/profile-1/field-notes.pdf",
		Status:      ingest.StatusReady,
		IngestJobID: "job-2",
	}).Error)

	completer := &fakeCompleter{reply: "It is set on the planet Gethen."}
	svc, err := NewService(db, docs, dao, embedder, completer,
		Settings{HistoryWindow: 6}, log.Logger.Named("chat_test"))
	require.NoError(t, err)

	// Deterministic, strictly increasing timestamps so ordering assertions
	// never depend on wall-clock resolution.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ticks int64
	var mu sync.Mutex
	svc.clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}

	return &chatTestEnv{svc: svc, db: db, completer: completer, embedder: embedder}
}

func (env *chatTestEnv) messageCount(t *testing.T, documentID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&ConversationMessage{}).
		Where("document_id = ?", documentID).Count(&count).Error)
	return count
}
