package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/rss-keep/app/cfg"
	"github.com/lysyi3m/rss-keep/app/database"
	"github.com/lysyi3m/rss-keep/app/feed"
	feedsync "github.com/lysyi3m/rss-keep/app/sync"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// RefreshBatchSize caps how many due feeds one scheduler tick enqueues.
const RefreshBatchSize = 100

type Scheduler struct {
	engine           *feedsync.Engine
	feedRepo         database.FeedRepository
	articleRepo      database.ArticleRepository
	categoryRepo     database.CategoryRepository
	contentExtractor *feed.ContentExtractor
	httpClient       *http.Client
	seeds            []feed.Seed
	userAgent        string
	fetchTimeout     time.Duration
	interval         time.Duration
	workerCount      int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
}

func NewScheduler(engine *feedsync.Engine, feedRepo database.FeedRepository,
	articleRepo database.ArticleRepository, categoryRepo database.CategoryRepository,
	contentExtractor *feed.ContentExtractor, httpClient *http.Client,
	seeds []feed.Seed) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		engine:           engine,
		feedRepo:         feedRepo,
		articleRepo:      articleRepo,
		categoryRepo:     categoryRepo,
		contentExtractor: contentExtractor,
		httpClient:       httpClient,
		seeds:            seeds,
		userAgent:        cfg.UserAgent,
		fetchTimeout:     time.Duration(cfg.FetchTimeout) * time.Second,
		interval:         time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:      cfg.WorkerCount,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, 300),
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

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
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

func (s *Scheduler) enqueueStartupTasks() {
	if len(s.seeds) == 0 {
		slog.Debug("No seed files found")
		return
	}

	slog.Debug("Registering seed feeds", "count", len(s.seeds))

	for _, seed := range s.seeds {
		registerTask := NewRegisterSeedTask(seed, s.engine, s.categoryRepo)
		if err := s.EnqueueTask(registerTask); err != nil {
			slog.Warn("Failed to enqueue RegisterSeedTask", "seed", seed.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	now := time.Now().UTC()

	dueFeeds, err := s.feedRepo.GetDueForRefresh(s.ctx, now, RefreshBatchSize)
	if err != nil {
		slog.Warn("Failed to get feeds due for refresh", "error", err)
		return
	}

	for _, dueFeed := range dueFeeds {
		syncTask := NewSyncFeedTask(dueFeed.ID, dueFeed.Title, s.engine)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncFeedTask", "feed", dueFeed.Title, "error", err)
		}
	}

	feeds, err := s.feedRepo.GetAll(s.ctx)
	if err != nil {
		slog.Warn("Failed to get feeds for content extraction", "error", err)
		return
	}

	for _, f := range feeds {
		if !f.ExtractContent || f.Status == database.FeedStatusDisabled {
			continue
		}
		extractTask := NewExtractContentTask(f.ID, f.Title, s.httpClient, s.contentExtractor, s.articleRepo, s.userAgent, s.fetchTimeout)
		if err := s.EnqueueTask(extractTask); err != nil {
			slog.Warn("Failed to enqueue ExtractContentTask", "feed", f.Title, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
