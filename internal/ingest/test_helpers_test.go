package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/library/db/redis"
	"github.com/papyr-app/papyr-api/library/log"
)

const (
	testProfileID = "profile-1"
	testBookID    = "book-1"
	testBookTitle = "The Joy of Cooking"
)

type fakeQueue struct {
	mu          sync.Mutex
	envelopes   []*redis.TaskEnvelope
	dead        [][]byte
	failEnqueue bool
}

func (q *fakeQueue) Enqueue(_ context.Context, _, jobName string, payload any) error {
	if q.failEnqueue {
		return errors.New("queue unreachable")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.envelopes = append(q.envelopes, &redis.TaskEnvelope{
		JobName:    jobName,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	})
	return nil
}

func (q *fakeQueue) Requeue(_ context.Context, _ string, envelope *redis.TaskEnvelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.envelopes = append(q.envelopes, envelope)
	return nil
}

func (q *fakeQueue) Dequeue(_ context.Context, _ string, _ time.Duration) (*redis.TaskEnvelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.envelopes) == 0 {
		return nil, nil
	}
	envelope := q.envelopes[0]
	q.envelopes = q.envelopes[1:]
	return envelope, nil
}

func (q *fakeQueue) DeadLetter(_ context.Context, _ string, raw []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, raw)
	return nil
}

type fakeBlobStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	failUpload   bool
	failDownload bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) Upload(_ context.Context, path string, data []byte, _ string) error {
	if s.failUpload {
		return errors.New("blob store unreachable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return nil
}

func (s *fakeBlobStore) Download(_ context.Context, path string) ([]byte, error) {
	if s.failDownload {
		return nil, errors.New("blob store unreachable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.Errorf("object %q not found", path)
	}
	return data, nil
}

func (s *fakeBlobStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + path, nil
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

type fakeExtractor struct {
	text string
}

func (e *fakeExtractor) Extract([]byte) string {
	return e.text
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	queue    *fakeQueue
	blob     *fakeBlobStore
	embedder *fakeEmbedder
}

func newTestEnv(t *testing.T) *testEnv {
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
	require.NoError(t, db.Create(&catalog.Book{ID: testBookID, Title: testBookTitle}).Error)

	queue := &fakeQueue{}
	blob := newFakeBlobStore()
	embedder := &fakeEmbedder{}

	svc, err := NewService(db, blob, queue, embedder, dao,
		Settings{ChunkSize: 200, ChunkOverlap: 40, EmbedConcurrency: 2, Workers: 1},
		log.Logger.Named("ingest_test"))
	require.NoError(t, err)

	return &testEnv{svc: svc, db: db, queue: queue, blob: blob, embedder: embedder}
}

func (env *testEnv) chunkCount(t *testing.T, documentID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&DocumentChunk{}).
		Where("document_id = ?", documentID).Count(&count).Error)
	return count
}

func (env *testEnv) documentStatus(t *testing.T, documentID string) DocumentStatus {
	t.Helper()
	doc := new(UploadedDocument)
	require.NoError(t, env.db.Where("id = ?", documentID).First(doc).Error)
	return doc.Status
}
