package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/prompt-comb/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultQueueSize  = 300
	maxRetryDelay     = 30 * time.Second
	taskTimeout       = 5 * time.Minute
	defaultRetryDelay = time.Second
)

type Options struct {
	WorkerCount   int
	SweepInterval time.Duration
	UserAgent     string
	FeedTimeout   time.Duration
	QueueSize     int
}

type Scheduler struct {
	service     PostService
	httpClient  *http.Client
	parser      *feed.Parser
	userAgent   string
	feedTimeout time.Duration
	interval    time.Duration
	workerCount int
	retryDelay  time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(service PostService, httpClient *http.Client, parser *feed.Parser, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	interval := opts.SweepInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &Scheduler{
		service:     service,
		httpClient:  httpClient,
		parser:      parser,
		userAgent:   opts.UserAgent,
		feedTimeout: opts.FeedTimeout,
		interval:    interval,
		workerCount: opts.WorkerCount,
		retryDelay:  defaultRetryDelay,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueCleanup()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueCleanup()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// ImportFeed queues an import of every post linked from the feed and returns the task id.
func (s *Scheduler) ImportFeed(feedURL string) (string, error) {
	task := NewImportFeedTask(feedURL, s.httpClient, s.parser, s, s.service, s.userAgent, s.feedTimeout)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

func (s *Scheduler) enqueueCleanup() {
	if err := s.EnqueueTask(NewCleanupExpiredTask(s.service)); err != nil {
		slog.Warn("Failed to enqueue CleanupExpiredTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "error", err)

	if IsPermanent(err) {
		slog.Warn("Task failed permanently, not retrying", "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject())
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryDelay * time.Duration(1<<uint(task.GetRetryCount()-1))
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
