package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/rss-keep/app/database"
	"github.com/lysyi3m/rss-keep/app/feed"
)

func newTestEngine(t *testing.T) (*Engine, database.FeedRepository, database.ArticleRepository) {
	t.Helper()

	pool, err := database.Open(filepath.Join(t.TempDir(), "test.db"), database.DefaultMaxConnections)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	feeds := database.NewFeedRepository(pool)
	articles := database.NewArticleRepository(pool)
	engine := NewEngine(feeds, articles, feed.NewParser(), http.DefaultClient,
		"rss-keep-test/1.0", 5*time.Second, time.Hour)
	return engine, feeds, articles
}

func rssDocument(title string, items string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>%s</title>
<link>https://example.com</link>
%s
</channel>
</rss>`, title, items)
}

func rssItem(title, link string) string {
	return fmt.Sprintf(`<item>
<title>%s</title>
<link>%s</link>
<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
</item>`, title, link)
}

func serveFeed(t *testing.T, body *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, *body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAddFeedFetchesAndStoresArticles(t *testing.T) {
	engine, feeds, articles := newTestEngine(t)
	ctx := context.Background()

	body := rssDocument("Tech Blog",
		rssItem("First", "https://example.com/first")+
			rssItem("Second", "https://example.com/second"))
	server := serveFeed(t, &body)

	id, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}

	f, err := feeds.GetByID(ctx, id)
	if err != nil || f == nil {
		t.Fatalf("Expected feed to exist, got %v, %v", f, err)
	}
	if f.Title != "Tech Blog" {
		t.Errorf("Expected title from feed metadata, got %q", f.Title)
	}
	if f.LastFetchedAt == nil || f.NextFetchAt == nil {
		t.Fatal("Expected fetch schedule to be set after initial fetch")
	}
	if !f.NextFetchAt.After(*f.LastFetchedAt) {
		t.Errorf("Expected next_fetch_at after last_fetched_at, got %v / %v",
			f.NextFetchAt, f.LastFetchedAt)
	}

	stored, err := articles.GetByFeed(ctx, id)
	if err != nil {
		t.Fatalf("Failed to list articles: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected 2 articles, got %d", len(stored))
	}
}

func TestAddFeedIsIdempotent(t *testing.T) {
	engine, _, articles := newTestEngine(t)
	ctx := context.Background()

	body := rssDocument("Blog", rssItem("Post", "https://example.com/post"))
	server := serveFeed(t, &body)

	first, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}
	second, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{Title: "Renamed"})
	if err != nil {
		t.Fatalf("Failed to re-add feed: %v", err)
	}
	if first != second {
		t.Errorf("Expected same feed id on duplicate registration, got %s and %s", first, second)
	}

	stored, _ := articles.GetByFeed(ctx, first)
	if len(stored) != 1 {
		t.Errorf("Expected duplicate registration to create no articles, got %d", len(stored))
	}
}

func TestAddFeedUnreachableURLCreatesNothing(t *testing.T) {
	engine, feeds, _ := newTestEngine(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Expected ErrFetchFailed, got %v", err)
	}

	f, err := feeds.GetByURL(ctx, server.URL)
	if err != nil {
		t.Fatalf("Failed to look up feed: %v", err)
	}
	if f != nil {
		t.Error("Expected no feed row after failed initial fetch")
	}
}

func TestSyncFeedSkipsKnownArticles(t *testing.T) {
	engine, _, articles := newTestEngine(t)
	ctx := context.Background()

	body := rssDocument("Blog",
		rssItem("One", "https://example.com/one")+
			rssItem("Two", "https://example.com/two"))
	server := serveFeed(t, &body)

	id, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}

	// Upstream publishes one new entry; the old two must not duplicate.
	body = rssDocument("Blog",
		rssItem("One", "https://example.com/one")+
			rssItem("Two", "https://example.com/two")+
			rssItem("Three", "https://example.com/three"))

	result, err := engine.SyncFeed(ctx, id)
	if err != nil {
		t.Fatalf("Failed to sync feed: %v", err)
	}
	if result.NewArticles != 1 {
		t.Errorf("Expected 1 new article, got %d", result.NewArticles)
	}

	stored, _ := articles.GetByFeed(ctx, id)
	if len(stored) != 3 {
		t.Errorf("Expected 3 articles total, got %d", len(stored))
	}
}

func TestSyncFeedDropsUnusableEntries(t *testing.T) {
	engine, _, articles := newTestEngine(t)
	ctx := context.Background()

	// The middle item has no link and must be skipped, not fail the sync.
	body := rssDocument("Blog",
		rssItem("One", "https://example.com/one")+
			`<item><title>No Link</title><pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate></item>`+
			rssItem("Three", "https://example.com/three"))
	server := serveFeed(t, &body)

	id, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}

	stored, _ := articles.GetByFeed(ctx, id)
	if len(stored) != 2 {
		t.Errorf("Expected 2 articles from 3 items, got %d", len(stored))
	}
}

func TestSyncFeedRecordsFailureAndReschedules(t *testing.T) {
	engine, feeds, _ := newTestEngine(t)
	ctx := context.Background()

	body := rssDocument("Blog", rssItem("Post", "https://example.com/post"))
	failing := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	id, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}
	before, _ := feeds.GetByID(ctx, id)

	failing = true
	time.Sleep(10 * time.Millisecond)
	if _, err := engine.SyncFeed(ctx, id); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Expected ErrFetchFailed, got %v", err)
	}

	after, _ := feeds.GetByID(ctx, id)
	if after.Status != database.FeedStatusError {
		t.Errorf("Expected error status, got %s", after.Status)
	}
	if after.ErrorMessage == "" {
		t.Error("Expected error message to be recorded")
	}
	if !after.LastFetchedAt.After(*before.LastFetchedAt) {
		t.Error("Expected last_fetched_at to advance on failure")
	}
	if !after.NextFetchAt.After(*after.LastFetchedAt) {
		t.Error("Expected next_fetch_at after last_fetched_at on failure")
	}

	// Recovery clears the error state.
	failing = false
	if _, err := engine.SyncFeed(ctx, id); err != nil {
		t.Fatalf("Failed to sync recovered feed: %v", err)
	}
	recovered, _ := feeds.GetByID(ctx, id)
	if recovered.Status != database.FeedStatusActive || recovered.ErrorMessage != "" {
		t.Errorf("Expected active status with cleared error, got %s %q",
			recovered.Status, recovered.ErrorMessage)
	}
}

func TestSyncFeedParseFailure(t *testing.T) {
	engine, feeds, _ := newTestEngine(t)
	ctx := context.Background()

	body := rssDocument("Blog", rssItem("Post", "https://example.com/post"))
	server := serveFeed(t, &body)

	id, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}

	body = "this is not a feed document"
	if _, err := engine.SyncFeed(ctx, id); !errors.Is(err, ErrParseFailed) {
		t.Fatalf("Expected ErrParseFailed, got %v", err)
	}

	f, _ := feeds.GetByID(ctx, id)
	if f.Status != database.FeedStatusError {
		t.Errorf("Expected error status after parse failure, got %s", f.Status)
	}
}

func TestSyncFeedUnknownID(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.SyncFeed(context.Background(), "no-such-feed")
	if !errors.Is(err, ErrFeedNotFound) {
		t.Fatalf("Expected ErrFeedNotFound, got %v", err)
	}
}

func TestFetchAllFeedsIsolatesFailures(t *testing.T) {
	engine, feeds, articles := newTestEngine(t)
	ctx := context.Background()

	goodBody := rssDocument("Good", rssItem("Post", "https://example.com/good-post"))
	good := serveFeed(t, &goodBody)

	badBody := rssDocument("Bad", rssItem("Post", "https://example.com/bad-post"))
	badFailing := false
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if badFailing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, badBody)
	}))
	defer bad.Close()

	goodID, err := engine.AddFeed(ctx, good.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add good feed: %v", err)
	}
	badID, err := engine.AddFeed(ctx, bad.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add bad feed: %v", err)
	}

	badFailing = true
	goodBody = rssDocument("Good",
		rssItem("Post", "https://example.com/good-post")+
			rssItem("Fresh", "https://example.com/good-fresh"))

	if err := engine.FetchAllFeeds(ctx); err != nil {
		t.Fatalf("Expected pass to succeed with one healthy feed, got %v", err)
	}

	goodArticles, _ := articles.GetByFeed(ctx, goodID)
	if len(goodArticles) != 2 {
		t.Errorf("Expected healthy feed to gain its article, got %d", len(goodArticles))
	}
	badFeed, _ := feeds.GetByID(ctx, badID)
	if badFeed.Status != database.FeedStatusError {
		t.Errorf("Expected failing feed marked error, got %s", badFeed.Status)
	}
}

func TestFetchAllFeedsAllFailing(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	body := rssDocument("Blog", rssItem("Post", "https://example.com/post"))
	failing := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	if _, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{}); err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}

	failing = true
	if err := engine.FetchAllFeeds(ctx); !errors.Is(err, ErrAllFeedsFailed) {
		t.Fatalf("Expected ErrAllFeedsFailed, got %v", err)
	}
}

func TestFetchAllFeedsSkipsDisabled(t *testing.T) {
	engine, feeds, _ := newTestEngine(t)
	ctx := context.Background()

	requests := 0
	body := rssDocument("Blog", rssItem("Post", "https://example.com/post"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	id, err := engine.AddFeed(ctx, server.URL, AddFeedOptions{})
	if err != nil {
		t.Fatalf("Failed to add feed: %v", err)
	}

	f, _ := feeds.GetByID(ctx, id)
	f.Status = database.FeedStatusDisabled
	if err := feeds.Update(ctx, f); err != nil {
		t.Fatalf("Failed to disable feed: %v", err)
	}

	before := requests
	if err := engine.FetchAllFeeds(ctx); err != nil {
		t.Fatalf("Sync pass failed: %v", err)
	}
	if requests != before {
		t.Errorf("Expected no requests for disabled feed, got %d", requests-before)
	}
}
