package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-keep/app/database"
	"github.com/lysyi3m/rss-keep/app/opml"
	feedsync "github.com/lysyi3m/rss-keep/app/sync"
)

// ImportOPML subscribes to every feed listed in the uploaded OPML document.
// Folders become categories (nested folders become nested categories), and
// feeds that are already subscribed are skipped via the engine's idempotent
// registration.
func (h *Handler) ImportOPML(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := opml.Parse(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OPML document", "details": err.Error()})
		return
	}

	imported := 0
	failed := make([]gin.H, 0)

	for _, entry := range entries {
		categoryID, err := h.resolveCategoryPath(ctx, entry.CategoryPath)
		if err != nil {
			slog.Warn("Failed to resolve category for OPML entry", "url", entry.URL, "error", err)
			failed = append(failed, gin.H{"url": entry.URL, "error": err.Error()})
			continue
		}

		_, err = h.engine.AddFeed(ctx, entry.URL, feedsync.AddFeedOptions{
			Title:      entry.Title,
			CategoryID: categoryID,
		})
		if err != nil {
			if errors.Is(err, feedsync.ErrFetchFailed) || errors.Is(err, feedsync.ErrParseFailed) {
				slog.Warn("Skipping unreachable OPML entry", "url", entry.URL, "error", err)
			} else {
				slog.Error("Failed to import OPML entry", "url", entry.URL, "error", err)
			}
			failed = append(failed, gin.H{"url": entry.URL, "error": err.Error()})
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"failed":   failed,
		"total":    len(entries),
	})
}

// ExportOPML renders the full subscription list as an OPML 2.0 document,
// with each feed nested under its category path.
func (h *Handler) ExportOPML(c *gin.Context) {
	ctx := c.Request.Context()

	feeds, err := h.feedRepo.GetAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	categories, err := h.categoryRepo.GetAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	byID := make(map[string]database.Category, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}

	entries := make([]opml.FeedEntry, 0, len(feeds))
	for _, feed := range feeds {
		entry := opml.FeedEntry{
			Title:   feed.Title,
			URL:     feed.URL,
			SiteURL: feed.SiteURL,
		}
		if feed.CategoryID != nil {
			entry.CategoryPath = categoryPath(byID, *feed.CategoryID)
		}
		entries = append(entries, entry)
	}

	data, err := opml.Export("RSS Keep subscriptions", entries)
	if err != nil {
		slog.Error("OPML export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed"})
		return
	}

	filename := "rss-keep-" + time.Now().Format("2006-01-02") + ".opml"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", data)
}

// resolveCategoryPath finds or creates the category chain for an OPML
// folder path and returns the id of the leaf category.
func (h *Handler) resolveCategoryPath(ctx context.Context, path []string) (*string, error) {
	if len(path) == 0 {
		return nil, nil
	}

	categories, err := h.categoryRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var parentID *string
	for _, name := range path {
		found := false
		for i := range categories {
			if categories[i].Name != name {
				continue
			}
			if !sameParent(categories[i].ParentID, parentID) {
				continue
			}
			parentID = &categories[i].ID
			found = true
			break
		}
		if found {
			continue
		}

		category := &database.Category{Name: name, ParentID: parentID}
		if err := h.categoryRepo.Save(ctx, category); err != nil {
			return nil, err
		}
		categories = append(categories, *category)
		parentID = &category.ID
	}

	return parentID, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// categoryPath walks the parent chain from leaf to root and returns the
// names root-first. A broken chain stops at the last resolvable node.
func categoryPath(byID map[string]database.Category, id string) []string {
	var reversed []string
	seen := make(map[string]bool)
	for {
		category, ok := byID[id]
		if !ok || seen[id] {
			break
		}
		seen[id] = true
		reversed = append(reversed, category.Name)
		if category.ParentID == nil {
			break
		}
		id = *category.ParentID
	}

	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}
