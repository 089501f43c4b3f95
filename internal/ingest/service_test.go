package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/papyr-app/papyr-api/library/apperr"
)

func acceptTestUpload(t *testing.T, env *testEnv, bookID string) (*UploadedDocument, ProcessDocumentTask) {
	t.Helper()

	doc, err := env.svc.AcceptUpload(context.Background(),
		testProfileID, bookID, "recipes.pdf", []byte("%PDF-fake-bytes"))
	require.NoError(t, err)

	require.Len(t, env.queue.envelopes, 1)
	require.Equal(t, JobProcessDocument, env.queue.envelopes[0].JobName)

	var task ProcessDocumentTask
	require.NoError(t, json.Unmarshal(env.queue.envelopes[0].Payload, &task))
	require.Equal(t, doc.IngestJobID, task.JobID)
	require.Equal(t, doc.StoragePath, task.StoragePath)

	return doc, task
}

func TestAcceptUploadStoresAndEnqueues(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	doc, _ := acceptTestUpload(t, env, "")

	require.Equal(t, StatusProcessing, doc.Status)
	require.True(t, strings.HasPrefix(doc.StoragePath, "uploads/"+testProfileID+"/"))
	require.Contains(t, doc.StoragePath, "recipes.pdf")
	require.Equal(t, []byte("%PDF-fake-bytes"), env.blob.objects[doc.StoragePath])

	// the document is listable immediately, before any processing happened
	docs, err := env.svc.ListUploads(context.Background(), testProfileID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, StatusProcessing, docs[0].Status)
}

func TestAcceptUploadUnknownProfile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.svc.AcceptUpload(context.Background(),
		"nope", "", "a.pdf", []byte("x"))
	require.True(t, apperr.IsCode(err, apperr.ErrCodeNotFound))
	require.Empty(t, env.queue.envelopes)
}

func TestAcceptUploadValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.svc.AcceptUpload(context.Background(), testProfileID, "", "", []byte("x"))
	require.True(t, apperr.IsCode(err, apperr.ErrCodeValidation))

	_, err = env.svc.AcceptUpload(context.Background(), testProfileID, "", "a.pdf", nil)
	require.True(t, apperr.IsCode(err, apperr.ErrCodeValidation))
}

func TestAcceptUploadStorageDown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.blob.failUpload = true

	_, err := env.svc.AcceptUpload(context.Background(),
		testProfileID, "", "a.pdf", []byte("x"))
	require.True(t, apperr.IsCode(err, apperr.ErrCodeStorageUnavailable))
}

func TestProcessTextBearingDocument(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: strings.Repeat(
		"The Joy of Cooking teaches classic recipes. Stock, roast, bake. ", 30)}

	doc, task := acceptTestUpload(t, env, testBookID)
	require.Equal(t, StatusProcessing, env.documentStatus(t, doc.ID))

	require.NoError(t, env.svc.Process(context.Background(), task))

	require.Equal(t, StatusReady, env.documentStatus(t, doc.ID))
	require.Greater(t, env.chunkCount(t, doc.ID), int64(0))
}

func TestProcessReusesAcceptedRow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: strings.Repeat("slow simmered stock. ", 40)}

	doc, task := acceptTestUpload(t, env, "")

	// the worker leg must find the row the upload leg created, not race it
	// with a second insert keyed on the same job
	require.NoError(t, env.svc.Process(context.Background(), task))

	var docs []UploadedDocument
	require.NoError(t, env.db.Where("ingest_job_id = ?", task.JobID).Find(&docs).Error)
	require.Len(t, docs, 1)
	require.Equal(t, doc.ID, docs[0].ID)
	require.Equal(t, StatusReady, docs[0].Status)
}

func TestAcceptUploadQueueDownMarksError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.queue.failEnqueue = true

	_, err := env.svc.AcceptUpload(context.Background(),
		testProfileID, "", "a.pdf", []byte("%PDF"))
	require.Error(t, err)

	// the row was already persisted; nothing will ever process it, so it
	// must not linger in PROCESSING
	var docs []UploadedDocument
	require.NoError(t, env.db.Find(&docs).Error)
	require.Len(t, docs, 1)
	require.Equal(t, StatusError, docs[0].Status)
}

func TestProcessEmptyTextStillReady(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: ""}

	doc, task := acceptTestUpload(t, env, "")

	require.NoError(t, env.svc.Process(context.Background(), task))

	require.Equal(t, StatusReady, env.documentStatus(t, doc.ID))
	require.Zero(t, env.chunkCount(t, doc.ID))
	require.Zero(t, env.embedder.calls)
}

func TestProcessProviderDownStillReady(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: strings.Repeat("some extracted prose. ", 50)}
	env.embedder.fail = true

	doc, task := acceptTestUpload(t, env, "")

	require.NoError(t, env.svc.Process(context.Background(), task))

	require.Equal(t, StatusReady, env.documentStatus(t, doc.ID))
	require.Zero(t, env.chunkCount(t, doc.ID))
	require.Greater(t, env.embedder.calls, 0)
}

func TestProcessTitleMismatchStillReady(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: strings.Repeat(
		"An entirely different manuscript about alpine gardening. ", 10)}

	doc, task := acceptTestUpload(t, env, testBookID)

	// the linked catalog title never appears in the text; that is a logged
	// data-quality signal, not a failure
	require.NoError(t, env.svc.Process(context.Background(), task))

	require.Equal(t, StatusReady, env.documentStatus(t, doc.ID))
	require.Greater(t, env.chunkCount(t, doc.ID), int64(0))
}

func TestProcessStorageDownMarksError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	doc, task := acceptTestUpload(t, env, "")
	env.blob.failDownload = true

	err := env.svc.Process(context.Background(), task)
	require.True(t, apperr.IsCode(err, apperr.ErrCodeStorageUnavailable))
	require.Equal(t, StatusError, env.documentStatus(t, doc.ID))
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: strings.Repeat("stable content. ", 60)}

	doc, task := acceptTestUpload(t, env, "")

	require.NoError(t, env.svc.Process(context.Background(), task))
	firstChunks := env.chunkCount(t, doc.ID)
	require.Greater(t, firstChunks, int64(0))

	// at-least-once delivery replays the same job; nothing may duplicate
	require.NoError(t, env.svc.Process(context.Background(), task))

	var docCount int64
	require.NoError(t, env.db.Model(&UploadedDocument{}).
		Where("ingest_job_id = ?", task.JobID).Count(&docCount).Error)
	require.Equal(t, int64(1), docCount)
	require.Equal(t, firstChunks, env.chunkCount(t, doc.ID))
}

func TestProcessWithoutPriorRowCreatesOne(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.svc.extractor = &fakeExtractor{text: ""}

	require.NoError(t, env.blob.Upload(context.Background(),
		"uploads/profile-1/replayed.pdf", []byte("%PDF"), "application/pdf"))

	task := ProcessDocumentTask{
		JobID:       "job-replayed",
		ProfileID:   testProfileID,
		Title:       "replayed.pdf",
		StoragePath: "uploads/profile-1/replayed.pdf",
	}
	require.NoError(t, env.svc.Process(context.Background(), task))

	var docs []UploadedDocument
	require.NoError(t, env.db.Where("ingest_job_id = ?", task.JobID).Find(&docs).Error)
	require.Len(t, docs, 1)
	require.Equal(t, StatusReady, docs[0].Status)
}

func TestFileURLForOwnedDocument(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	doc, _ := acceptTestUpload(t, env, "")

	url, err := env.svc.FileURL(context.Background(), testProfileID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "https://blobs.test/"+doc.StoragePath, url)

	_, err = env.svc.FileURL(context.Background(), testProfileID, "missing")
	require.True(t, apperr.IsCode(err, apperr.ErrCodeNotFound))

	// other profiles cannot resolve someone else's document
	require.NoError(t, env.db.Create(&UploadedDocument{
		ID: "doc-other", ProfileID: "profile-2", StoragePath: "x",
		Status: StatusReady, IngestJobID: "job-other",
	}).Error)
	_, err = env.svc.FileURL(context.Background(), testProfileID, "doc-other")
	require.True(t, apperr.IsCode(err, apperr.ErrCodeNotFound))
}
