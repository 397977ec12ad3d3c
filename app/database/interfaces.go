package database

import (
	"context"
	"time"
)

// Repositories are the only code path allowed to touch entity tables. Reads
// that find nothing return nil (or an empty slice), never an error; write
// errors distinguish ErrConflict from other storage failures.

type FeedRepository interface {
	GetByID(ctx context.Context, id string) (*Feed, error)
	GetByURL(ctx context.Context, url string) (*Feed, error)
	GetAll(ctx context.Context) ([]Feed, error)
	GetByCategory(ctx context.Context, categoryID string) ([]Feed, error)
	GetDueForRefresh(ctx context.Context, now time.Time, limit int) ([]Feed, error)
	Save(ctx context.Context, feed *Feed) error
	Update(ctx context.Context, feed *Feed) error
	UpdateFetchSchedule(ctx context.Context, id string, lastFetched, nextFetch time.Time, status FeedStatus, errorMessage string) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]Feed, error)
	Count(ctx context.Context) (int, error)
}

type ArticleRepository interface {
	GetByID(ctx context.Context, id string) (*Article, error)
	GetByURL(ctx context.Context, url string) (*Article, error)
	List(ctx context.Context, filter ArticleFilter) ([]Article, error)
	GetByFeed(ctx context.Context, feedID string) ([]Article, error)
	GetUnread(ctx context.Context) ([]Article, error)
	GetFavorites(ctx context.Context) ([]Article, error)
	GetByTag(ctx context.Context, tagName string) ([]Article, error)
	GetByDateRange(ctx context.Context, from, to time.Time) ([]Article, error)
	GetRecentlyUpdated(ctx context.Context, limit int) ([]Article, error)
	GetForExtraction(ctx context.Context, feedID string, limit int) ([]Article, error)
	Save(ctx context.Context, article *Article) error
	Update(ctx context.Context, article *Article) error
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]Article, error)
	AddTag(ctx context.Context, articleID, tagName string) error
	RemoveTag(ctx context.Context, articleID, tagName string) error
	TagsFor(ctx context.Context, articleID string) ([]string, error)
	Count(ctx context.Context) (int, error)
	CountUnread(ctx context.Context) (int, error)
}

type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*Category, error)
	GetAll(ctx context.Context) ([]Category, error)
	GetChildren(ctx context.Context, parentID string) ([]Category, error)
	Save(ctx context.Context, category *Category) error
	Update(ctx context.Context, category *Category) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]Category, error)
}

type TagRepository interface {
	GetByID(ctx context.Context, id string) (*Tag, error)
	GetByName(ctx context.Context, name string) (*Tag, error)
	GetAll(ctx context.Context) ([]Tag, error)
	Save(ctx context.Context, tag *Tag) error
	Update(ctx context.Context, tag *Tag) error
	Delete(ctx context.Context, id string) error
}
