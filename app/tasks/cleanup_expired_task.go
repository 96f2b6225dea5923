package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type CleanupExpiredTask struct {
	Task
	service PostService
}

func NewCleanupExpiredTask(service PostService) *CleanupExpiredTask {
	return &CleanupExpiredTask{
		Task:    NewTask(TaskTypeCleanupExpired, "expired_posts"),
		service: service,
	}
}

func (t *CleanupExpiredTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	removed, err := t.service.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up expired posts: %w", err)
	}

	slog.Info("Task completed",
		"type", "CleanupExpired",
		"duration", t.GetDuration(),
		"removed", removed)

	return nil
}
