package database

import (
	"time"
)

type FeedStatus string

const (
	FeedStatusActive   FeedStatus = "active"
	FeedStatusDisabled FeedStatus = "disabled"
	FeedStatusError    FeedStatus = "error"
)

// Feed represents a subscribed feed record in the database
type Feed struct {
	ID             string
	URL            string // RSS/Atom feed URL, unique across all feeds
	Title          string
	CategoryID     *string
	SiteURL        string
	IconURL        string
	Status         FeedStatus
	ErrorMessage   string // Last fetch/parse error, cleared on success
	LastFetchedAt  *time.Time
	NextFetchAt    *time.Time
	UpdateInterval int // seconds
	ExtractContent bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Article represents a single ingested feed entry, keyed by canonical URL
type Article struct {
	ID           string
	FeedID       string
	URL          string // Canonical link, unique across the whole article set
	Title        string
	Author       string
	Content      string
	Summary      string
	ThumbnailURL string
	PublishedAt  time.Time
	Read         bool
	Favorite     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Tags         []string // Populated by GetByID and TagsFor, not by list queries
}

// Category is a node in the category tree; root categories have a nil parent
type Category struct {
	ID          string
	Name        string
	Description string
	ParentID    *string
	Expanded    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Tag struct {
	ID          string
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ArticleFilter selects articles for list queries. The zero value matches
// everything (up to Limit). FeedID/CategoryID scope the view; flags and
// ranges compose freely.
type ArticleFilter struct {
	FeedID     string
	CategoryID string
	Tag        string
	Query      string
	Unread     bool
	Favorites  bool
	From       *time.Time
	To         *time.Time
	Limit      int
}
