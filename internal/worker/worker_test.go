package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/mailcast/core/internal/ai"
	"github.com/mailcast/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubSummarizer struct {
	summary *ai.Summary
	err     error
}

func (s stubSummarizer) Summarize(ctx context.Context, content string) (*ai.Summary, error) {
	return s.summary, s.err
}

type stubNarrator struct {
	url string
	err error
}

func (n stubNarrator) Narrate(ctx context.Context, text string) (string, error) {
	return n.url, n.err
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Content{}, &models.Playlist{}, &models.PlaylistContent{}))
	return db
}

func seedContent(t *testing.T, db *gorm.DB, status string) *models.Content {
	t.Helper()
	user := models.User{ID: models.DevUserID, Email: "dev@test.local", ForwardingEmail: "dev@fwd.test"}
	require.NoError(t, db.FirstOrCreate(&user, user.ID).Error)

	content := models.Content{
		UserID:          user.ID,
		Title:           "Test",
		OriginalContent: "Some newsletter body",
		SourceEmail:     "a@b.com",
		Status:          status,
	}
	require.NoError(t, db.Create(&content).Error)
	return &content
}

func processTask(t *testing.T, contentID uint) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(map[string]uint{"content_id": contentID})
	require.NoError(t, err)
	return asynq.NewTask(TaskProcessContent, payload)
}

func testSummary() *ai.Summary {
	return &ai.Summary{
		Intro:     "An intro",
		KeyPoints: []string{"one", "two", "three"},
		Ending:    "The end",
		Tags:      []string{"test"},
	}
}

func TestHandleProcessContentSuccess(t *testing.T) {
	db := testDB(t)
	content := seedContent(t, db, models.ContentStatusPending)

	handler := HandleProcessContent(slog.Default(), db,
		stubSummarizer{summary: testSummary()},
		stubNarrator{url: "data:audio/mpeg;base64,QUJD"},
		nil)

	err := handler(context.Background(), processTask(t, content.ID))
	require.NoError(t, err)

	var updated models.Content
	require.NoError(t, db.First(&updated, content.ID).Error)
	assert.Equal(t, models.ContentStatusCompleted, updated.Status)
	assert.True(t, updated.IsProcessed)
	assert.Equal(t, "data:audio/mpeg;base64,QUJD", updated.AudioURL)
	assert.NotNil(t, updated.ProcessedAt)
	assert.Empty(t, updated.ErrorMessage)

	var summary ai.Summary
	require.NoError(t, json.Unmarshal(updated.Summary, &summary))
	assert.Equal(t, "An intro", summary.Intro)
	assert.Len(t, summary.KeyPoints, 3)
}

func TestHandleProcessContentSummarizationFailure(t *testing.T) {
	db := testDB(t)
	content := seedContent(t, db, models.ContentStatusPending)

	handler := HandleProcessContent(slog.Default(), db,
		stubSummarizer{err: fmt.Errorf("%w: model unavailable", ai.ErrSummarization)},
		stubNarrator{url: "unused"},
		nil)

	err := handler(context.Background(), processTask(t, content.ID))
	require.Error(t, err)
	// Retryable: not marked SkipRetry
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	var updated models.Content
	require.NoError(t, db.First(&updated, content.ID).Error)
	assert.Equal(t, models.ContentStatusFailed, updated.Status)
	assert.False(t, updated.IsProcessed)
	assert.Empty(t, updated.Summary)
	assert.Empty(t, updated.AudioURL)
	assert.NotEmpty(t, updated.ErrorMessage)
}

func TestHandleProcessContentNarrationFailureWritesNoPartialSummary(t *testing.T) {
	db := testDB(t)
	content := seedContent(t, db, models.ContentStatusPending)

	handler := HandleProcessContent(slog.Default(), db,
		stubSummarizer{summary: testSummary()},
		stubNarrator{err: fmt.Errorf("%w: tts unavailable", ai.ErrNarration)},
		nil)

	err := handler(context.Background(), processTask(t, content.ID))
	require.Error(t, err)

	var updated models.Content
	require.NoError(t, db.First(&updated, content.ID).Error)
	assert.Equal(t, models.ContentStatusFailed, updated.Status)
	assert.False(t, updated.IsProcessed)
	assert.Empty(t, updated.Summary)
	assert.Empty(t, updated.AudioURL)
}

func TestHandleProcessContentNotFoundSkipsRetry(t *testing.T) {
	db := testDB(t)

	handler := HandleProcessContent(slog.Default(), db,
		stubSummarizer{summary: testSummary()},
		stubNarrator{url: "x"},
		nil)

	err := handler(context.Background(), processTask(t, 424242))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleProcessContentAlreadyCompletedIsNoop(t *testing.T) {
	db := testDB(t)
	content := seedContent(t, db, models.ContentStatusCompleted)

	handler := HandleProcessContent(slog.Default(), db,
		stubSummarizer{err: errors.New("should not be called")},
		stubNarrator{err: errors.New("should not be called")},
		nil)

	err := handler(context.Background(), processTask(t, content.ID))
	assert.NoError(t, err)
}

func TestHandleProcessContentMissingAIClients(t *testing.T) {
	db := testDB(t)
	content := seedContent(t, db, models.ContentStatusPending)

	handler := HandleProcessContent(slog.Default(), db, nil, nil, nil)

	err := handler(context.Background(), processTask(t, content.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	var updated models.Content
	require.NoError(t, db.First(&updated, content.ID).Error)
	assert.Equal(t, models.ContentStatusFailed, updated.Status)
}

func TestHandleReapStuckRequeuesOldRecords(t *testing.T) {
	db := testDB(t)

	stale := seedContent(t, db, models.ContentStatusProcessing)
	db.Model(stale).UpdateColumn("updated_at", time.Now().Add(-time.Hour))

	fresh := seedContent(t, db, models.ContentStatusPending)

	done := seedContent(t, db, models.ContentStatusCompleted)
	db.Model(done).UpdateColumn("updated_at", time.Now().Add(-time.Hour))

	var requeued []uint
	handler := HandleReapStuck(slog.Default(), db, func(contentID uint) error {
		requeued = append(requeued, contentID)
		return nil
	})

	err := handler(context.Background(), asynq.NewTask(TaskReapStuck, nil))
	require.NoError(t, err)

	assert.Equal(t, []uint{stale.ID}, requeued)
	assert.NotContains(t, requeued, fresh.ID)
	assert.NotContains(t, requeued, done.ID)
}

func TestHandleProcessContentInvalidPayload(t *testing.T) {
	db := testDB(t)

	handler := HandleProcessContent(slog.Default(), db,
		stubSummarizer{summary: testSummary()},
		stubNarrator{url: "x"},
		nil)

	err := handler(context.Background(), asynq.NewTask(TaskProcessContent, []byte("not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
