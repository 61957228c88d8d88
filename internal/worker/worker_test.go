package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"task-tracker/internal/database"
	"task-tracker/internal/models"
	"task-tracker/internal/repositories"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func setupQueue(t *testing.T) (*Worker, *JobQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w := NewWorker(WorkerConfig{
		RedisClient:  client,
		PollInterval: time.Second,
		RetryBase:    time.Hour,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return w, NewJobQueue(client), mr
}

func popJob(t *testing.T, mr *miniredis.Miniredis, queue string) map[string]interface{} {
	t.Helper()

	raw, err := mr.Lpop(queue)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	return decoded
}

func TestJobQueue_Enqueue(t *testing.T) {
	_, queue, _ := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, DefaultQueue, JobTypeTokenCleanup, nil))
	require.NoError(t, queue.Enqueue(ctx, DefaultQueue, JobTypeTokenCleanup, nil))

	size, err := queue.GetQueueSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestWorker_ProcessesJob(t *testing.T) {
	w, queue, _ := setupQueue(t)
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())

	var received string
	w.RegisterHandler(JobTypeOwnerPurge, func(_ context.Context, job *Job) error {
		received, _ = job.Payload["owner_id"].(string)
		return nil
	})

	require.NoError(t, queue.SchedulePurge(ctx, ownerID))
	require.NoError(t, w.ProcessNext(ctx))

	assert.Equal(t, ownerID.String(), received)
}

func TestWorker_EmptyQueue(t *testing.T) {
	w, _, _ := setupQueue(t)

	assert.NoError(t, w.ProcessNext(context.Background()))
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	w, queue, mr := setupQueue(t)
	ctx := context.Background()

	w.RegisterHandler(JobTypeTokenCleanup, func(context.Context, *Job) error {
		return errors.New("store down")
	})

	require.NoError(t, queue.Enqueue(ctx, DefaultQueue, JobTypeTokenCleanup, nil))
	require.NoError(t, w.ProcessNext(ctx))

	retried := popJob(t, mr, RetryQueue)
	assert.Equal(t, float64(1), retried["attempts"])

	job := &Job{ID: "last", Type: JobTypeTokenCleanup, Attempts: defaultMaxTries - 1, MaxTries: defaultMaxTries}
	require.NoError(t, w.executeJob(ctx, job))

	dead := popJob(t, mr, DeadQueue)
	assert.Equal(t, "store down", dead["error"])
}

func TestWorker_UnknownJobTypeIsDeadLettered(t *testing.T) {
	w, queue, mr := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, DefaultQueue, JobType("mystery"), nil))
	require.NoError(t, w.ProcessNext(ctx))

	dead := popJob(t, mr, DeadQueue)
	assert.Contains(t, dead["error"], "no handler registered")
}

func TestWorker_FutureJobIsRequeued(t *testing.T) {
	w, queue, _ := setupQueue(t)
	ctx := context.Background()

	var calls int32
	w.RegisterHandler(JobTypeTokenCleanup, func(context.Context, *Job) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, queue.EnqueueAt(ctx, DefaultQueue, JobTypeTokenCleanup, nil, time.Now().Add(time.Hour)))

	err := w.ProcessNext(ctx)
	assert.ErrorIs(t, err, errNotDue)
	assert.Zero(t, atomic.LoadInt32(&calls))

	size, err := queue.GetQueueSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestWorker_StartStop(t *testing.T) {
	w, queue, _ := setupQueue(t)

	done := make(chan struct{})
	w.RegisterHandler(JobTypeTokenCleanup, func(context.Context, *Job) error {
		close(done)
		return nil
	})
	w.Start(2)

	require.NoError(t, queue.Enqueue(context.Background(), DefaultQueue, JobTypeTokenCleanup, nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected job to be processed")
	}
	w.Stop()
}

func newHandlersFixture(t *testing.T) (*Handlers, *repositories.GormUserRepository, *repositories.GormTaskRepository) {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, pool.Migrate(context.Background()))

	users := repositories.NewUserRepository(pool.DB)
	tasks := repositories.NewTaskRepository(pool.DB)
	return NewHandlers(users, tasks, slog.New(slog.NewTextHandler(io.Discard, nil))), users, tasks
}

func TestHandlers_CleanupTokens(t *testing.T) {
	handlers, users, _ := newHandlersFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.Must(uuid.NewV4()), Name: "Clean", Email: "clean@example.com", Password: "digest"}
	require.NoError(t, users.Create(ctx, user))

	past := time.Now().Add(-time.Minute)
	require.NoError(t, users.AddToken(ctx, &models.Token{ID: uuid.Must(uuid.NewV4()), UserID: user.ID, Token: "old", ExpiresAt: &past}))
	require.NoError(t, users.AddToken(ctx, &models.Token{ID: uuid.Must(uuid.NewV4()), UserID: user.ID, Token: "keep"}))

	require.NoError(t, handlers.CleanupTokens(ctx, &Job{}))

	exists, err := users.TokenExists(ctx, user.ID, "old")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = users.TokenExists(ctx, user.ID, "keep")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandlers_PurgeOwner(t *testing.T) {
	handlers, users, tasks := newHandlersFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.Must(uuid.NewV4()), Name: "Owner", Email: "owner@example.com", Password: "digest"}
	require.NoError(t, users.Create(ctx, user))
	require.NoError(t, tasks.Create(ctx, &models.Task{ID: uuid.Must(uuid.NewV4()), Description: "left", OwnerID: user.ID}))

	job := &Job{Payload: map[string]interface{}{"owner_id": user.ID.String()}}
	require.NoError(t, handlers.PurgeOwner(ctx, job))
	require.NoError(t, handlers.PurgeOwner(ctx, job))

	remaining, err := tasks.ListOwned(ctx, user.ID, repositories.TaskQuery{})
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.Error(t, handlers.PurgeOwner(ctx, &Job{Payload: map[string]interface{}{"owner_id": "bogus"}}))
}

func TestRunEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int32
	done := make(chan struct{})
	go func() {
		RunEvery(ctx, 10*time.Millisecond, func(context.Context) {
			if atomic.AddInt32(&calls, 1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected RunEvery to stop after cancel")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}
