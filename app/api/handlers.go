package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-keep/app/database"
	feedsync "github.com/lysyi3m/rss-keep/app/sync"
	"github.com/lysyi3m/rss-keep/app/tasks"
)

func NewHandler(feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	categoryRepo database.CategoryRepository, tagRepo database.TagRepository,
	engine *feedsync.Engine, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:     feedRepo,
		articleRepo:  articleRepo,
		categoryRepo: categoryRepo,
		tagRepo:      tagRepo,
		engine:       engine,
		scheduler:    scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.Count(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	} else {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := map[string]interface{}{}

	if feedCount, err := h.feedRepo.Count(ctx); err == nil {
		stats["feeds"] = feedCount
	}
	if articleCount, err := h.articleRepo.Count(ctx); err == nil {
		stats["articles"] = articleCount
	}
	if unreadCount, err := h.articleRepo.CountUnread(ctx); err == nil {
		stats["unread"] = unreadCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	ctx := c.Request.Context()

	var feeds []database.Feed
	var err error
	if query := c.Query("q"); query != "" {
		feeds, err = h.feedRepo.Search(ctx, query)
	} else if categoryID := c.Query("category_id"); categoryID != "" {
		feeds, err = h.feedRepo.GetByCategory(ctx, categoryID)
	} else {
		feeds, err = h.feedRepo.GetAll(ctx)
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	id := c.Param("id")

	feed, err := h.feedRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	id, err := h.engine.AddFeed(c.Request.Context(), req.URL, feedsync.AddFeedOptions{
		Title:          req.Title,
		CategoryID:     req.CategoryID,
		UpdateInterval: req.UpdateInterval,
		ExtractContent: req.ExtractContent,
		Disabled:       req.Disabled,
	})
	if errors.Is(err, feedsync.ErrFetchFailed) || errors.Is(err, feedsync.ErrParseFailed) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Feed is not reachable or not parseable", "details": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Failed to add feed", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add feed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	feed, err := h.feedRepo.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if req.Title != nil {
		feed.Title = *req.Title
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			feed.CategoryID = nil
		} else {
			feed.CategoryID = req.CategoryID
		}
	}
	if req.UpdateInterval != nil {
		feed.UpdateInterval = *req.UpdateInterval
	}
	if req.ExtractContent != nil {
		feed.ExtractContent = *req.ExtractContent
	}
	if req.Status != nil {
		status := database.FeedStatus(*req.Status)
		if status != database.FeedStatusActive && status != database.FeedStatusDisabled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status, expected 'active' or 'disabled'"})
			return
		}
		feed.Status = status
	}

	if err := h.feedRepo.Update(ctx, feed); err != nil {
		if errors.Is(err, database.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Feed URL already exists"})
			return
		}
		slog.Error("Database error", "operation", "update_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id := c.Param("id")

	if err := h.feedRepo.Delete(c.Request.Context(), id); err != nil {
		slog.Error("Database error", "operation", "delete_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) SyncFeed(c *gin.Context) {
	id := c.Param("id")

	feed, err := h.feedRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	syncTask := tasks.NewSyncFeedTask(feed.ID, feed.Title, h.engine)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", feed.Title, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue sync task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
		},
	})
}

func (h *Handler) SyncAllFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	enqueued := 0
	for _, feed := range feeds {
		if feed.Status == database.FeedStatusDisabled {
			continue
		}
		syncTask := tasks.NewSyncFeedTask(feed.ID, feed.Title, h.engine)
		if err := h.scheduler.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue sync task", "feed", feed.Title, "error", err)
			continue
		}
		enqueued++
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"enqueued": enqueued,
	})
}

func (h *Handler) ListArticles(c *gin.Context) {
	filter, err := articleFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}

	articles, err := h.articleRepo.List(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"total":    len(articles),
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articleRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "article", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req updateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	article, err := h.articleRepo.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	if req.Read != nil {
		article.Read = *req.Read
	}
	if req.Favorite != nil {
		article.Favorite = *req.Favorite
	}

	if err := h.articleRepo.Update(ctx, article); err != nil {
		slog.Error("Database error", "operation", "update_article", "article", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	id := c.Param("id")

	if err := h.articleRepo.Delete(c.Request.Context(), id); err != nil {
		slog.Error("Database error", "operation", "delete_article", "article", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) AddArticleTag(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req tagArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	article, err := h.articleRepo.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	if err := h.articleRepo.AddTag(ctx, id, req.Tag); err != nil {
		slog.Error("Database error", "operation", "add_article_tag", "article", id, "tag", req.Tag, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	tags, err := h.articleRepo.TagsFor(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *Handler) RemoveArticleTag(c *gin.Context) {
	id := c.Param("id")
	tag := c.Param("tag")
	ctx := c.Request.Context()

	if err := h.articleRepo.RemoveTag(ctx, id, tag); err != nil {
		slog.Error("Database error", "operation", "remove_article_tag", "article", id, "tag", tag, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	tags, err := h.articleRepo.TagsFor(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *Handler) ListCategories(c *gin.Context) {
	ctx := c.Request.Context()

	var categories []database.Category
	var err error
	if query := c.Query("q"); query != "" {
		categories, err = h.categoryRepo.Search(ctx, query)
	} else {
		categories, err = h.categoryRepo.GetAll(ctx)
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	category := &database.Category{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		Expanded:    req.Expanded,
	}
	if err := h.categoryRepo.Save(c.Request.Context(), category); err != nil {
		slog.Error("Database error", "operation", "create_category", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	category, err := h.categoryRepo.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	category.Name = req.Name
	category.Description = req.Description
	category.ParentID = req.ParentID
	category.Expanded = req.Expanded

	if err := h.categoryRepo.Update(ctx, category); err != nil {
		if errors.Is(err, database.ErrCategoryCycle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Category cannot be its own ancestor"})
			return
		}
		slog.Error("Database error", "operation", "update_category", "category", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id := c.Param("id")

	if err := h.categoryRepo.Delete(c.Request.Context(), id); err != nil {
		slog.Error("Database error", "operation", "delete_category", "category", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.tagRepo.GetAll(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_tags", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"total": len(tags),
	})
}

func (h *Handler) CreateTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tag := &database.Tag{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}
	if err := h.tagRepo.Save(c.Request.Context(), tag); err != nil {
		if errors.Is(err, database.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Tag name already exists"})
			return
		}
		slog.Error("Database error", "operation", "create_tag", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, tag)
}

func (h *Handler) UpdateTag(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tag, err := h.tagRepo.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if tag == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	tag.Name = req.Name
	tag.Description = req.Description
	tag.Color = req.Color

	if err := h.tagRepo.Update(ctx, tag); err != nil {
		if errors.Is(err, database.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Tag name already exists"})
			return
		}
		slog.Error("Database error", "operation", "update_tag", "tag", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, tag)
}

func (h *Handler) DeleteTag(c *gin.Context) {
	id := c.Param("id")

	if err := h.tagRepo.Delete(c.Request.Context(), id); err != nil {
		slog.Error("Database error", "operation", "delete_tag", "tag", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func articleFilterFromQuery(c *gin.Context) (database.ArticleFilter, error) {
	filter := database.ArticleFilter{
		FeedID:     c.Query("feed_id"),
		CategoryID: c.Query("category_id"),
		Tag:        c.Query("tag"),
		Query:      c.Query("q"),
	}

	if v := c.Query("unread"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			return filter, err
		}
		filter.Unread = unread
	}
	if v := c.Query("favorites"); v != "" {
		favorites, err := strconv.ParseBool(v)
		if err != nil {
			return filter, err
		}
		filter.Favorites = favorites
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}

	return filter, nil
}
