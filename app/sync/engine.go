// Package sync converts registered feed URLs into a durable, de-duplicated
// stream of articles, isolating every feed's failures from the rest.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-keep/app/database"
	"github.com/lysyi3m/rss-keep/app/feed"
)

var (
	// ErrFetchFailed wraps network-level failures of a single feed.
	ErrFetchFailed = errors.New("feed fetch failed")

	// ErrParseFailed wraps document-level failures of a single feed.
	ErrParseFailed = errors.New("feed parse failed")

	// ErrAllFeedsFailed is returned by FetchAllFeeds only when not a single
	// feed synced successfully.
	ErrAllFeedsFailed = errors.New("all feeds failed to sync")

	ErrFeedNotFound = errors.New("feed not found")
)

type Engine struct {
	feeds           database.FeedRepository
	articles        database.ArticleRepository
	parser          *feed.Parser
	httpClient      *http.Client
	userAgent       string
	fetchTimeout    time.Duration
	defaultInterval time.Duration
}

func NewEngine(feeds database.FeedRepository, articles database.ArticleRepository,
	parser *feed.Parser, httpClient *http.Client, userAgent string,
	fetchTimeout, defaultInterval time.Duration) *Engine {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	if defaultInterval <= 0 {
		defaultInterval = time.Hour
	}
	return &Engine{
		feeds:           feeds,
		articles:        articles,
		parser:          parser,
		httpClient:      httpClient,
		userAgent:       userAgent,
		fetchTimeout:    fetchTimeout,
		defaultInterval: defaultInterval,
	}
}

// AddFeedOptions carries the optional subscription settings; the zero value
// is a plain active subscription with the default interval.
type AddFeedOptions struct {
	Title          string
	CategoryID     *string
	UpdateInterval int // seconds, 0 means default
	ExtractContent bool
	Disabled       bool
}

// AddFeed registers a feed URL. Registration is idempotent: a URL that is
// already subscribed returns the existing feed id and changes nothing. New
// feeds are fetched synchronously and their entries persisted before the id
// is returned; a failed initial fetch leaves no feed row behind.
func (e *Engine) AddFeed(ctx context.Context, url string, opts AddFeedOptions) (string, error) {
	existing, err := e.feeds.GetByURL(ctx, url)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	data, err := e.fetchFeed(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	metadata, entries, err := e.parser.Run(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	interval := opts.UpdateInterval
	if interval <= 0 {
		interval = int(e.defaultInterval.Seconds())
	}

	newFeed := &database.Feed{
		URL:            url,
		Title:          opts.Title,
		CategoryID:     opts.CategoryID,
		SiteURL:        metadata.SiteURL,
		IconURL:        metadata.IconURL,
		UpdateInterval: interval,
		ExtractContent: opts.ExtractContent,
	}
	if newFeed.Title == "" {
		newFeed.Title = metadata.Title
	}
	if opts.Disabled {
		newFeed.Status = database.FeedStatusDisabled
	}

	err = e.feeds.Save(ctx, newFeed)
	if errors.Is(err, database.ErrConflict) {
		// Lost a registration race; the other caller's row wins.
		existing, err := e.feeds.GetByURL(ctx, url)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return existing.ID, nil
		}
		return "", database.ErrConflict
	}
	if err != nil {
		return "", err
	}

	created := e.storeEntries(ctx, newFeed.ID, entries)

	now := time.Now().UTC()
	status := database.FeedStatusActive
	if opts.Disabled {
		status = database.FeedStatusDisabled
	}
	if err := e.feeds.UpdateFetchSchedule(ctx, newFeed.ID, now,
		now.Add(time.Duration(interval)*time.Second), status, ""); err != nil {
		return "", err
	}

	slog.Info("Feed added", "url", url, "title", newFeed.Title, "articles", created)
	return newFeed.ID, nil
}

// Result reports what a single sync pass did.
type Result struct {
	NewArticles int
}

// SyncFeed fetches and parses one feed, storing an article for every entry
// whose URL is not already known. Existing articles are never modified:
// fetch is additive-only. Whatever the outcome, the feed's last_fetched_at
// advances to now and next_fetch_at to now plus the update interval, so a
// failing feed keeps its place in the schedule.
func (e *Engine) SyncFeed(ctx context.Context, feedID string) (*Result, error) {
	f, err := e.feeds.GetByID(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFeedNotFound
	}

	interval := time.Duration(f.UpdateInterval) * time.Second
	if interval <= 0 {
		interval = e.defaultInterval
	}
	now := time.Now().UTC()
	next := now.Add(interval)

	data, err := e.fetchFeed(ctx, f.URL)
	if err != nil {
		e.recordFailure(ctx, f, now, next, err)
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	metadata, entries, err := e.parser.Run(data)
	if err != nil {
		e.recordFailure(ctx, f, now, next, err)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	created := e.storeEntries(ctx, f.ID, entries)

	if e.metadataChanged(f, metadata) {
		f.SiteURL = metadata.SiteURL
		f.IconURL = metadata.IconURL
		if f.Title == "" {
			f.Title = metadata.Title
		}
		if err := e.feeds.Update(ctx, f); err != nil {
			slog.Warn("Failed to update feed metadata", "feed", f.ID, "error", err)
		}
	}

	if err := e.feeds.UpdateFetchSchedule(ctx, f.ID, now, next, database.FeedStatusActive, ""); err != nil {
		return nil, err
	}

	slog.Info("Feed synced",
		"feed", f.Title,
		"url", f.URL,
		"entries", len(entries),
		"new", created)
	return &Result{NewArticles: created}, nil
}

// FetchAllFeeds syncs every non-disabled feed. One feed's failure never
// stops the rest; the pass fails as a whole only when every attempted feed
// failed.
func (e *Engine) FetchAllFeeds(ctx context.Context) error {
	feeds, err := e.feeds.GetAll(ctx)
	if err != nil {
		return err
	}

	attempted := 0
	failed := 0
	for i := range feeds {
		f := &feeds[i]
		if f.Status == database.FeedStatusDisabled {
			continue
		}
		attempted++
		if _, err := e.SyncFeed(ctx, f.ID); err != nil {
			slog.Error("Feed sync failed", "feed", f.Title, "url", f.URL, "error", err)
			failed++
		}
	}

	slog.Info("Sync pass completed", "attempted", attempted, "failed", failed)
	if attempted > 0 && failed == attempted {
		return ErrAllFeedsFailed
	}
	return nil
}

// storeEntries persists every entry whose URL is new, in parser order.
// Conflicts from racing syncs of the same feed count as duplicates, not
// failures.
func (e *Engine) storeEntries(ctx context.Context, feedID string, entries []feed.Entry) int {
	created := 0
	for _, entry := range entries {
		existing, err := e.articles.GetByURL(ctx, entry.URL)
		if err != nil {
			slog.Warn("Failed to check article existence", "url", entry.URL, "error", err)
			continue
		}
		if existing != nil {
			continue
		}

		article := &database.Article{
			FeedID:       feedID,
			URL:          entry.URL,
			Title:        entry.Title,
			Author:       entry.Author,
			Content:      entry.Content,
			Summary:      entry.Summary,
			ThumbnailURL: entry.ThumbnailURL,
			PublishedAt:  entry.PublishedAt,
		}
		err = e.articles.Save(ctx, article)
		if errors.Is(err, database.ErrConflict) {
			continue
		}
		if err != nil {
			slog.Warn("Failed to save article", "url", entry.URL, "error", err)
			continue
		}
		created++
	}
	return created
}

func (e *Engine) recordFailure(ctx context.Context, f *database.Feed, now, next time.Time, cause error) {
	err := e.feeds.UpdateFetchSchedule(ctx, f.ID, now, next, database.FeedStatusError, cause.Error())
	if err != nil {
		slog.Error("Failed to record feed failure", "feed", f.ID, "error", err)
	}
}

func (e *Engine) metadataChanged(f *database.Feed, metadata *feed.Metadata) bool {
	if metadata == nil {
		return false
	}
	return f.SiteURL != metadata.SiteURL ||
		f.IconURL != metadata.IconURL ||
		(f.Title == "" && metadata.Title != "")
}

// fetchFeed downloads the feed document. The per-feed timeout keeps a
// hanging upstream from stalling the rest of a sync pass, and no database
// connection is held while blocked here.
func (e *Engine) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}
