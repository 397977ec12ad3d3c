package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFeedSaveAndGet(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()

	feed := &Feed{URL: "https://example.com/feed.xml", Title: "Example", UpdateInterval: 1800}
	if err := repo.Save(ctx, feed); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if feed.ID == "" {
		t.Fatal("Expected Save to assign an ID")
	}

	got, err := repo.GetByID(ctx, feed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Expected feed, got nil")
	}
	if got.URL != feed.URL || got.Title != "Example" || got.UpdateInterval != 1800 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if got.Status != FeedStatusActive {
		t.Errorf("Expected default status active, got %s", got.Status)
	}
}

func TestFeedURLUnique(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()

	if err := repo.Save(ctx, &Feed{URL: "https://example.com/feed.xml"}); err != nil {
		t.Fatal(err)
	}
	err := repo.Save(ctx, &Feed{URL: "https://example.com/feed.xml"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict on duplicate URL, got: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 feed row, got %d", count)
	}
}

func TestFeedGetByURLNotFound(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)

	got, err := repo.GetByURL(context.Background(), "https://missing.example.com/feed.xml")
	if err != nil {
		t.Fatalf("Expected nil error for absent feed, got: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil feed, got %+v", got)
	}
}

func TestFeedGetAllOrder(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()

	for _, f := range []Feed{
		{URL: "https://c.example.com/feed", Title: "charlie"},
		{URL: "https://a.example.com/feed", Title: "Alpha"},
		{URL: "https://b.example.com/feed", Title: "bravo"},
	} {
		feed := f
		if err := repo.Save(ctx, &feed); err != nil {
			t.Fatal(err)
		}
	}

	feeds, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 3 {
		t.Fatalf("Expected 3 feeds, got %d", len(feeds))
	}
	if feeds[0].Title != "Alpha" || feeds[1].Title != "bravo" || feeds[2].Title != "charlie" {
		t.Errorf("Expected case-insensitive alphabetical order, got: %s, %s, %s",
			feeds[0].Title, feeds[1].Title, feeds[2].Title)
	}
}

func TestFeedUpdateFetchSchedule(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()

	feed := &Feed{URL: "https://example.com/feed.xml", UpdateInterval: 3600}
	if err := repo.Save(ctx, feed); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	next := now.Add(time.Hour)
	if err := repo.UpdateFetchSchedule(ctx, feed.ID, now, next, FeedStatusError, "connection refused"); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByID(ctx, feed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastFetchedAt == nil || !got.LastFetchedAt.Equal(now) {
		t.Errorf("Expected last_fetched_at %v, got %v", now, got.LastFetchedAt)
	}
	if got.NextFetchAt == nil || !got.NextFetchAt.Equal(next) {
		t.Errorf("Expected next_fetch_at %v, got %v", next, got.NextFetchAt)
	}
	if got.Status != FeedStatusError || got.ErrorMessage != "connection refused" {
		t.Errorf("Expected error status recorded, got %s %q", got.Status, got.ErrorMessage)
	}
}

func TestFeedGetDueForRefresh(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	due := &Feed{URL: "https://due.example.com/feed"}
	if err := repo.Save(ctx, due); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateFetchSchedule(ctx, due.ID, now.Add(-2*time.Hour), now.Add(-time.Hour), FeedStatusActive, ""); err != nil {
		t.Fatal(err)
	}

	notDue := &Feed{URL: "https://later.example.com/feed"}
	if err := repo.Save(ctx, notDue); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateFetchSchedule(ctx, notDue.ID, now, now.Add(time.Hour), FeedStatusActive, ""); err != nil {
		t.Fatal(err)
	}

	disabled := &Feed{URL: "https://off.example.com/feed", Status: FeedStatusDisabled}
	if err := repo.Save(ctx, disabled); err != nil {
		t.Fatal(err)
	}

	// A feed with no next_fetch_at yet is due as well.
	fresh := &Feed{URL: "https://fresh.example.com/feed"}
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	feeds, err := repo.GetDueForRefresh(ctx, now, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 2 {
		t.Fatalf("Expected 2 due feeds, got %d", len(feeds))
	}
	urls := map[string]bool{}
	for _, f := range feeds {
		urls[f.URL] = true
	}
	if !urls["https://due.example.com/feed"] || !urls["https://fresh.example.com/feed"] {
		t.Errorf("Wrong due set: %v", urls)
	}
}

func TestFeedSearch(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()

	for _, f := range []Feed{
		{URL: "https://example.com/golang.xml", Title: "Go Blog"},
		{URL: "https://example.com/news.xml", Title: "World News"},
	} {
		feed := f
		if err := repo.Save(ctx, &feed); err != nil {
			t.Fatal(err)
		}
	}

	found, err := repo.Search(ctx, "GOLANG")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Title != "Go Blog" {
		t.Errorf("Case-insensitive URL search failed: %+v", found)
	}

	found, err = repo.Search(ctx, "blog")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Errorf("Title search failed: %+v", found)
	}
}

func TestFeedDelete(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewFeedRepository(pool)
	ctx := context.Background()

	feed := &Feed{URL: "https://example.com/feed.xml"}
	if err := repo.Save(ctx, feed); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, feed.ID); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByID(ctx, feed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("Expected feed gone after delete")
	}
}
