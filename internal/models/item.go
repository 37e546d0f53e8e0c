// Package models defines the persisted entities shared across the service.
package models

import "time"

// DeepStatus tracks the deep-crawl lifecycle of a source item.
// The integer encoding is part of the stored schema; do not renumber.
type DeepStatus int

const (
	DeepNotStarted DeepStatus = 0
	DeepInProgress DeepStatus = 1
	DeepSucceeded  DeepStatus = 2
	DeepFailed     DeepStatus = 3
)

// SourceItem is one discovered search result. URL is the natural
// dedup key: re-ingesting an existing URL updates the row in place.
type SourceItem struct {
	ID          int64      `db:"id"           json:"id"`
	Title       string     `db:"title"        json:"title"`
	URL         string     `db:"url"          json:"url"`
	Description string     `db:"description"  json:"description"`
	SourceTag   string     `db:"source_tag"   json:"source_tag"`
	CollectedAt time.Time  `db:"collected_at" json:"collected_at"`
	DeepStatus  DeepStatus `db:"deep_status"  json:"deep_status"`

	// DeepRecordID is populated by list queries that join deep_records.
	DeepRecordID *int64 `db:"deep_record_id" json:"deep_record_id,omitempty"`
}

// SearchResult is one row produced by a search-engine scraper, the
// shape accepted at the ingestion boundary.
type SearchResult struct {
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Image       string `json:"img,omitempty"`
	Description string `json:"description"`
	SourceTag   string `json:"source"`
	Time        string `json:"time"`
}
