package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/prompt-comb/app/content"
)

type FetchPostTask struct {
	Task
	URL     string
	service PostService
}

func NewFetchPostTask(url string, service PostService) *FetchPostTask {
	return &FetchPostTask{
		Task:    NewTask(TaskTypeFetchPost, url),
		URL:     url,
		service: service,
	}
}

func (t *FetchPostTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	res, err := t.service.FetchPost(ctx, t.URL)
	if err != nil {
		if errors.Is(err, content.ErrPaywall) || errors.Is(err, content.ErrInsufficientContent) || errors.Is(err, content.ErrInvalidURL) {
			return Permanent(fmt.Errorf("failed to fetch post: %w", err))
		}
		return fmt.Errorf("failed to fetch post: %w", err)
	}

	slog.Info("Task completed",
		"type", "FetchPost",
		"url", t.URL,
		"duration", t.GetDuration(),
		"post_id", res.PostID,
		"duplicate", res.IsDuplicatePost,
		"links", len(res.GitHubLinks))

	return nil
}
