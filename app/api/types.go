package api

import (
	"github.com/lysyi3m/rss-keep/app/database"
	feedsync "github.com/lysyi3m/rss-keep/app/sync"
	"github.com/lysyi3m/rss-keep/app/tasks"
)

type Handler struct {
	feedRepo     database.FeedRepository
	articleRepo  database.ArticleRepository
	categoryRepo database.CategoryRepository
	tagRepo      database.TagRepository
	engine       *feedsync.Engine
	scheduler    tasks.TaskSchedulerInterface
}

type addFeedRequest struct {
	URL            string  `json:"url" binding:"required"`
	Title          string  `json:"title"`
	CategoryID     *string `json:"category_id"`
	UpdateInterval int     `json:"update_interval"`
	ExtractContent bool    `json:"extract_content"`
	Disabled       bool    `json:"disabled"`
}

type updateFeedRequest struct {
	Title          *string `json:"title"`
	CategoryID     *string `json:"category_id"`
	UpdateInterval *int    `json:"update_interval"`
	ExtractContent *bool   `json:"extract_content"`
	Status         *string `json:"status"`
}

type updateArticleRequest struct {
	Read     *bool `json:"read"`
	Favorite *bool `json:"favorite"`
}

type categoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
	Expanded    bool    `json:"expanded"`
}

type tagRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type tagArticleRequest struct {
	Tag string `json:"tag" binding:"required"`
}
