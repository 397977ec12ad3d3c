package tasks

import (
	"context"
	"fmt"
	"log/slog"

	feedsync "github.com/lysyi3m/rss-keep/app/sync"
)

type SyncFeedTask struct {
	Task
	FeedID string
	engine *feedsync.Engine
}

func NewSyncFeedTask(feedID, feedName string, engine *feedsync.Engine) *SyncFeedTask {
	return &SyncFeedTask{
		Task:   NewTask(TaskTypeSyncFeed, feedName),
		FeedID: feedID,
		engine: engine,
	}
}

func (t *SyncFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.engine.SyncFeed(ctx, t.FeedID)
	if err != nil {
		return fmt.Errorf("failed to sync feed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"new_articles", result.NewArticles)

	return nil
}
