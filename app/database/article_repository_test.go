package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedFeed(t *testing.T, pool *Pool, url string) *Feed {
	t.Helper()
	feed := &Feed{URL: url}
	if err := NewFeedRepository(pool).Save(context.Background(), feed); err != nil {
		t.Fatal(err)
	}
	return feed
}

func seedArticle(t *testing.T, repo *ArticleRepo, feedID, url string, published time.Time) *Article {
	t.Helper()
	article := &Article{FeedID: feedID, URL: url, Title: url, PublishedAt: published}
	if err := repo.Save(context.Background(), article); err != nil {
		t.Fatal(err)
	}
	return article
}

func TestArticleURLUnique(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewArticleRepository(pool)
	ctx := context.Background()
	feed := seedFeed(t, pool, "https://example.com/feed.xml")

	seedArticle(t, repo, feed.ID, "https://example.com/post-1", time.Now().UTC())

	err := repo.Save(ctx, &Article{FeedID: feed.ID, URL: "https://example.com/post-1", PublishedAt: time.Now().UTC()})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict on duplicate article URL, got: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 article row, got %d", count)
	}
}

func TestArticleListNewestFirst(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewArticleRepository(pool)
	ctx := context.Background()
	feed := seedFeed(t, pool, "https://example.com/feed.xml")
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedArticle(t, repo, feed.ID, "https://example.com/old", base.Add(-48*time.Hour))
	seedArticle(t, repo, feed.ID, "https://example.com/new", base)
	seedArticle(t, repo, feed.ID, "https://example.com/mid", base.Add(-24*time.Hour))

	articles, err := repo.List(ctx, ArticleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 3 {
		t.Fatalf("Expected 3 articles, got %d", len(articles))
	}
	if articles[0].URL != "https://example.com/new" ||
		articles[1].URL != "https://example.com/mid" ||
		articles[2].URL != "https://example.com/old" {
		t.Errorf("Expected newest-published-first, got: %s, %s, %s",
			articles[0].URL, articles[1].URL, articles[2].URL)
	}
}

func TestArticleFilters(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewArticleRepository(pool)
	ctx := context.Background()
	feedA := seedFeed(t, pool, "https://a.example.com/feed")
	feedB := seedFeed(t, pool, "https://b.example.com/feed")
	now := time.Now().UTC()

	read := seedArticle(t, repo, feedA.ID, "https://a.example.com/read", now.Add(-time.Hour))
	read.Read = true
	if err := repo.Update(ctx, read); err != nil {
		t.Fatal(err)
	}

	fav := seedArticle(t, repo, feedA.ID, "https://a.example.com/fav", now.Add(-2*time.Hour))
	fav.Favorite = true
	if err := repo.Update(ctx, fav); err != nil {
		t.Fatal(err)
	}

	seedArticle(t, repo, feedB.ID, "https://b.example.com/plain", now.Add(-3*time.Hour))

	unread, err := repo.GetUnread(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 2 {
		t.Errorf("Expected 2 unread articles, got %d", len(unread))
	}

	favorites, err := repo.GetFavorites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(favorites) != 1 || favorites[0].URL != fav.URL {
		t.Errorf("Favorites filter failed: %+v", favorites)
	}

	byFeed, err := repo.GetByFeed(ctx, feedB.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(byFeed) != 1 || byFeed[0].FeedID != feedB.ID {
		t.Errorf("Feed filter failed: %+v", byFeed)
	}

	ranged, err := repo.GetByDateRange(ctx, now.Add(-150*time.Minute), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 2 {
		t.Errorf("Expected 2 articles in range, got %d", len(ranged))
	}
}

func TestArticleTagging(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewArticleRepository(pool)
	tags := NewTagRepository(pool)
	ctx := context.Background()
	feed := seedFeed(t, pool, "https://example.com/feed.xml")
	article := seedArticle(t, repo, feed.ID, "https://example.com/post", time.Now().UTC())

	// Tagging by name auto-creates the tag.
	if err := repo.AddTag(ctx, article.ID, "golang"); err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}
	tag, err := tags.GetByName(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	if tag == nil {
		t.Fatal("Expected tag auto-created")
	}

	// Adding the same association again is a no-op.
	if err := repo.AddTag(ctx, article.ID, "golang"); err != nil {
		t.Fatalf("Repeated AddTag failed: %v", err)
	}
	names, err := repo.TagsFor(ctx, article.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "golang" {
		t.Errorf("Expected single golang tag, got %v", names)
	}

	tagged, err := repo.GetByTag(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	if len(tagged) != 1 || tagged[0].ID != article.ID {
		t.Errorf("GetByTag failed: %+v", tagged)
	}

	// Removing a present association, then a missing one.
	if err := repo.RemoveTag(ctx, article.ID, "golang"); err != nil {
		t.Fatal(err)
	}
	if err := repo.RemoveTag(ctx, article.ID, "golang"); err != nil {
		t.Fatalf("Removing a missing association should be a no-op, got: %v", err)
	}
	names, err = repo.TagsFor(ctx, article.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no tags after removal, got %v", names)
	}
}

func TestArticleSearch(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewArticleRepository(pool)
	ctx := context.Background()
	feed := seedFeed(t, pool, "https://example.com/feed.xml")

	a := &Article{FeedID: feed.ID, URL: "https://example.com/go-generics", Title: "Understanding Generics", PublishedAt: time.Now().UTC()}
	if err := repo.Save(ctx, a); err != nil {
		t.Fatal(err)
	}
	b := &Article{FeedID: feed.ID, URL: "https://example.com/other", Title: "Something Else", PublishedAt: time.Now().UTC()}
	if err := repo.Save(ctx, b); err != nil {
		t.Fatal(err)
	}

	found, err := repo.Search(ctx, "GENERICS")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != a.ID {
		t.Errorf("Case-insensitive search failed: %+v", found)
	}

	// LIKE metacharacters are matched literally.
	found, err = repo.Search(ctx, "100%")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Errorf("Expected no match for escaped pattern, got %+v", found)
	}
}

func TestArticleGetForExtraction(t *testing.T) {
	pool := openTestPool(t, 2)
	repo := NewArticleRepository(pool)
	ctx := context.Background()
	feed := seedFeed(t, pool, "https://example.com/feed.xml")

	empty := seedArticle(t, repo, feed.ID, "https://example.com/empty", time.Now().UTC())
	full := &Article{FeedID: feed.ID, URL: "https://example.com/full", Content: "<p>body</p>", PublishedAt: time.Now().UTC()}
	if err := repo.Save(ctx, full); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.GetForExtraction(ctx, feed.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != empty.ID {
		t.Errorf("Expected only the empty-content article, got %+v", pending)
	}

	if err := repo.UpdateContent(ctx, empty.ID, "<p>extracted</p>"); err != nil {
		t.Fatal(err)
	}
	pending, err = repo.GetForExtraction(ctx, feed.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending extractions, got %+v", pending)
	}
}
