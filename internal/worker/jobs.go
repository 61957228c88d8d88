package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"task-tracker/internal/repositories"

	"github.com/gofrs/uuid"
)

// Handlers holds the job bodies. Both are safe to run more than once.
type Handlers struct {
	users  repositories.UserRepository
	tasks  repositories.TaskRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewHandlers(users repositories.UserRepository, tasks repositories.TaskRepository, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{users: users, tasks: tasks, logger: logger, now: time.Now}
}

func (h *Handlers) Register(w *Worker) {
	w.RegisterHandler(JobTypeTokenCleanup, h.CleanupTokens)
	w.RegisterHandler(JobTypeOwnerPurge, h.PurgeOwner)
}

// CleanupTokens drops expired sessions. Tokens without an expiry are kept.
func (h *Handlers) CleanupTokens(ctx context.Context, _ *Job) error {
	pruned, err := h.users.PruneExpiredTokens(ctx, h.now())
	if err != nil {
		return err
	}
	if pruned > 0 {
		h.logger.InfoContext(ctx, "pruned expired tokens", "count", pruned)
	}
	return nil
}

// PurgeOwner deletes any task still pointing at a deleted owner.
func (h *Handlers) PurgeOwner(ctx context.Context, job *Job) error {
	raw, _ := job.Payload["owner_id"].(string)
	ownerID, err := uuid.FromString(raw)
	if err != nil {
		return fmt.Errorf("invalid owner_id %q: %w", raw, err)
	}

	deleted, err := h.tasks.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if deleted > 0 {
		h.logger.WarnContext(ctx, "purged tasks left behind by deleted owner", "owner_id", ownerID, "count", deleted)
	}
	return nil
}

// SchedulePurge queues an owner_purge job for ownerID.
func (q *JobQueue) SchedulePurge(ctx context.Context, ownerID uuid.UUID) error {
	return q.Enqueue(ctx, DefaultQueue, JobTypeOwnerPurge, map[string]interface{}{
		"owner_id": ownerID.String(),
	})
}

// RunEvery calls fn every interval until ctx is done.
func RunEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
