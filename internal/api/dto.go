package api

import (
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/orgservice"
	"github.com/starford/orgstate/internal/search"
)

// StateResponse is the aggregated state summary (aliased from the domain layer).
type StateResponse = orgservice.State

// BucketResponse lists the records of one bucket.
type BucketResponse struct {
	Name    string          `json:"name" example:"tasks.active" validate:"required"`
	Records []models.Record `json:"records" validate:"required"`
}

// RemindersResponse lists reminders sorted by due time.
type RemindersResponse struct {
	Count     int                   `json:"count" example:"3" validate:"required"`
	Reminders []orgservice.Reminder `json:"reminders" validate:"required"`
}

// TagsResponse lists tag counts, most used first.
type TagsResponse struct {
	Tags []search.TagCount `json:"tags" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Hit `json:"results" validate:"required"`
}

// BacklinksResponse lists documents linking to Path.
type BacklinksResponse struct {
	Path      string   `json:"path" example:"knowledge/auth.md" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}
