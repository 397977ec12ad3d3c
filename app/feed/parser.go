package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS/Atom document and returns the feed metadata plus the
// normalized entries, in document order. Entries that cannot become
// articles (no link, or neither published nor updated timestamp) are
// skipped, not fatal.
func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		SiteURL:     parsed.Link,
		Description: parsed.Description,
	}
	if parsed.Image != nil {
		metadata.IconURL = parsed.Image.URL
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry, ok := p.normalizeItem(item)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	return metadata, entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (Entry, bool) {
	if item.Link == "" {
		slog.Debug("Skipping entry without link", "title", item.Title)
		return Entry{}, false
	}

	entry := Entry{
		URL:     item.Link,
		Title:   item.Title,
		Content: item.Content,
		Summary: item.Description,
	}

	switch {
	case item.PublishedParsed != nil:
		entry.PublishedAt = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		entry.PublishedAt = *item.UpdatedParsed
	default:
		slog.Debug("Skipping entry without timestamp", "link", item.Link)
		return Entry{}, false
	}

	entry.Author = p.extractAuthor(item)
	entry.ThumbnailURL = p.extractThumbnail(item)

	return entry, true
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return p.formatAuthor(item.Authors[0].Name, item.Authors[0].Email)
	}
	if item.Author != nil {
		return p.formatAuthor(item.Author.Name, item.Author.Email)
	}
	return ""
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	}
	return email
}

// extractThumbnail returns the first usable media reference.
func (p *Parser) extractThumbnail(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" {
			return enclosure.URL
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}
