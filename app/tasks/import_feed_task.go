package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/prompt-comb/app/feed"
)

const maxFeedSize = 10 << 20

// ImportFeedTask reads a feed and queues a FetchPostTask for every post it links to.
type ImportFeedTask struct {
	Task
	FeedURL    string
	httpClient *http.Client
	parser     *feed.Parser
	queue      Enqueuer
	service    PostService
	userAgent  string
	timeout    time.Duration
}

func NewImportFeedTask(feedURL string, httpClient *http.Client, parser *feed.Parser, queue Enqueuer, service PostService, userAgent string, timeout time.Duration) *ImportFeedTask {
	return &ImportFeedTask{
		Task:       NewTask(TaskTypeImportFeed, feedURL),
		FeedURL:    feedURL,
		httpClient: httpClient,
		parser:     parser,
		queue:      queue,
		service:    service,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (t *ImportFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := t.fetchFeed(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, entries, err := t.parser.Run(data)
	if err != nil {
		return Permanent(fmt.Errorf("failed to parse feed: %w", err))
	}

	queued := 0
	for _, link := range feed.Links(entries) {
		if err := t.queue.EnqueueTask(NewFetchPostTask(link, t.service)); err != nil {
			slog.Warn("Failed to enqueue FetchPostTask", "feed", t.FeedURL, "url", link, "error", err)
			continue
		}
		queued++
	}

	slog.Info("Task completed",
		"type", "ImportFeed",
		"feed", t.FeedURL,
		"title", metadata.Title,
		"duration", t.GetDuration(),
		"total", len(entries),
		"queued", queued)

	return nil
}

func (t *ImportFeedTask) fetchFeed(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, t.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
