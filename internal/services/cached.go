package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/models"

	"github.com/gofrs/uuid"
)

const taskCacheTTL = 30 * time.Minute

func taskCacheKey(ownerID, taskID uuid.UUID) string {
	return fmt.Sprintf("task:%s:%s", ownerID, taskID)
}

func ownerTasksPattern(ownerID uuid.UUID) string {
	return fmt.Sprintf("task:%s:*", ownerID)
}

func avatarCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("avatar:%s", userID)
}

// dropKeys invalidates after a committed write. A failure leaves the keys
// fenced off in c, so it is only logged.
func dropKeys(ctx context.Context, c *cache.FencedCache, logger *slog.Logger, keys ...string) {
	if err := c.Invalidate(ctx, keys...); err != nil {
		logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

// CachedTaskRegistry caches single-task reads per owner. Listings always go
// to the store.
type CachedTaskRegistry struct {
	TaskRegistry
	cache  *cache.FencedCache
	logger *slog.Logger
}

func NewCachedTaskRegistry(registry TaskRegistry, c *cache.FencedCache, logger *slog.Logger) *CachedTaskRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedTaskRegistry{TaskRegistry: registry, cache: c, logger: logger}
}

func (s *CachedTaskRegistry) Get(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Task, error) {
	key := taskCacheKey(owner.ID, id)

	var cached models.Task
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.DebugContext(ctx, "cache read failed", "key", key, "error", err)
	}

	mark := s.cache.ReadMark()
	task, err := s.TaskRegistry.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Fill(ctx, key, task, taskCacheTTL, mark); err != nil {
		s.logger.DebugContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return task, nil
}

func (s *CachedTaskRegistry) Update(ctx context.Context, owner *models.User, id uuid.UUID, patch map[string]interface{}) (*models.Task, error) {
	task, err := s.TaskRegistry.Update(ctx, owner, id, patch)
	if err != nil {
		return nil, err
	}
	dropKeys(ctx, s.cache, s.logger, taskCacheKey(owner.ID, id))
	return task, nil
}

func (s *CachedTaskRegistry) Delete(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Task, error) {
	task, err := s.TaskRegistry.Delete(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	dropKeys(ctx, s.cache, s.logger, taskCacheKey(owner.ID, id))
	return task, nil
}

// CachedAvatarPipeline serves public avatar reads from the cache.
type CachedAvatarPipeline struct {
	AvatarPipeline
	cache  *cache.FencedCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedAvatarPipeline(pipeline AvatarPipeline, c *cache.FencedCache, ttl time.Duration, logger *slog.Logger) *CachedAvatarPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = taskCacheTTL
	}
	return &CachedAvatarPipeline{AvatarPipeline: pipeline, cache: c, ttl: ttl, logger: logger}
}

func (p *CachedAvatarPipeline) FetchPublic(ctx context.Context, userID uuid.UUID) ([]byte, string, error) {
	key := avatarCacheKey(userID)

	var cached []byte
	if err := p.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
		return cached, AvatarContentType, nil
	}

	mark := p.cache.ReadMark()
	avatar, contentType, err := p.AvatarPipeline.FetchPublic(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if err := p.cache.Fill(ctx, key, avatar, p.ttl, mark); err != nil {
		p.logger.DebugContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return avatar, contentType, nil
}

func (p *CachedAvatarPipeline) Ingest(ctx context.Context, user *models.User, data []byte, filename string) error {
	if err := p.AvatarPipeline.Ingest(ctx, user, data, filename); err != nil {
		return err
	}
	dropKeys(ctx, p.cache, p.logger, avatarCacheKey(user.ID))
	return nil
}

func (p *CachedAvatarPipeline) Remove(ctx context.Context, user *models.User) error {
	if err := p.AvatarPipeline.Remove(ctx, user); err != nil {
		return err
	}
	dropKeys(ctx, p.cache, p.logger, avatarCacheKey(user.ID))
	return nil
}

// CachedUserDirectory purges everything cached for an owner once the account
// is gone. Sessions are never cached, so logout needs no invalidation.
type CachedUserDirectory struct {
	UserDirectory
	cache  *cache.FencedCache
	logger *slog.Logger
}

func NewCachedUserDirectory(directory UserDirectory, c *cache.FencedCache, logger *slog.Logger) *CachedUserDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedUserDirectory{UserDirectory: directory, cache: c, logger: logger}
}

func (s *CachedUserDirectory) DeleteSelf(ctx context.Context, user *models.User) (*models.User, error) {
	deleted, err := s.UserDirectory.DeleteSelf(ctx, user)
	if err != nil {
		return nil, err
	}
	dropKeys(ctx, s.cache, s.logger, avatarCacheKey(user.ID))
	if err := s.cache.InvalidatePattern(ctx, ownerTasksPattern(user.ID)); err != nil {
		s.logger.WarnContext(ctx, "cache purge failed", "user_id", user.ID, "error", err)
	}
	return deleted, nil
}
