package feed

import (
	"time"
)

// Metadata describes the feed itself, as parsed from the document head.
type Metadata struct {
	Title       string
	SiteURL     string
	Description string
	IconURL     string
}

// Entry is a normalized feed item ready to become an article. Entries
// without a resolvable link or timestamp never reach this type; the parser
// drops them.
type Entry struct {
	URL          string
	Title        string
	Author       string
	Content      string
	Summary      string
	ThumbnailURL string
	PublishedAt  time.Time
}

// Seed is a feed subscription declared in a YAML file under the feeds
// directory. Seeds are registered idempotently at startup; removing a file
// does not unsubscribe the feed.
type Seed struct {
	Name           string // Derived from filename (without .yml extension)
	URL            string `yaml:"url"`
	Title          string `yaml:"title"`
	Category       string `yaml:"category"`
	UpdateInterval int    `yaml:"update_interval"` // seconds
	ExtractContent bool   `yaml:"extract_content"`
	Disabled       bool   `yaml:"disabled"`
}
