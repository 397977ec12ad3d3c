package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-keep/app/database"
	"github.com/lysyi3m/rss-keep/app/feed"
	feedsync "github.com/lysyi3m/rss-keep/app/sync"
)

// RegisterSeedTask subscribes a feed declared in a seed file. Registration
// goes through the engine, so re-running seeds on every startup is safe.
type RegisterSeedTask struct {
	Task
	Seed         feed.Seed
	engine       *feedsync.Engine
	categoryRepo database.CategoryRepository
}

func NewRegisterSeedTask(seed feed.Seed, engine *feedsync.Engine, categoryRepo database.CategoryRepository) *RegisterSeedTask {
	return &RegisterSeedTask{
		Task:         NewTask(TaskTypeRegisterSeed, seed.Name),
		Seed:         seed,
		engine:       engine,
		categoryRepo: categoryRepo,
	}
}

func (t *RegisterSeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	categoryID, err := t.resolveCategory(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve category: %w", err)
	}

	id, err := t.engine.AddFeed(ctx, t.Seed.URL, feedsync.AddFeedOptions{
		Title:          t.Seed.Title,
		CategoryID:     categoryID,
		UpdateInterval: t.Seed.UpdateInterval,
		ExtractContent: t.Seed.ExtractContent,
		Disabled:       t.Seed.Disabled,
	})
	if err != nil {
		return fmt.Errorf("failed to register seed feed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"feed_id", id,
		"duration", t.GetDuration())

	return nil
}

// resolveCategory finds or creates the category named in the seed. Seeds
// name categories by title, not id; matching is exact.
func (t *RegisterSeedTask) resolveCategory(ctx context.Context) (*string, error) {
	if t.Seed.Category == "" {
		return nil, nil
	}

	categories, err := t.categoryRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].Name == t.Seed.Category {
			return &categories[i].ID, nil
		}
	}

	category := &database.Category{Name: t.Seed.Category}
	if err := t.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}
	return &category.ID, nil
}
