package tasks

import (
	"context"

	"github.com/lysyi3m/prompt-comb/app/workflow"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to run background work.
//
//	scheduler := NewScheduler(service, httpClient, feed.NewParser(), opts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	id, err := scheduler.ImportFeed("https://example.com/feed/")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	ImportFeed(feedURL string) (string, error)
}

// PostService is the part of the workflow background tasks drive.
type PostService interface {
	FetchPost(ctx context.Context, url string) (*workflow.FetchResult, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type Enqueuer interface {
	EnqueueTask(task TaskInterface) error
}

var _ PostService = (*workflow.Service)(nil)
