package models

import "time"

// ScreenOverview aggregates collection volume for the dashboard.
type ScreenOverview struct {
	Today   int           `db:"today" json:"today"`
	Week    int           `db:"week"  json:"week"`
	Month   int           `db:"month" json:"month"`
	Total   int           `db:"total" json:"total"`
	Deep    int           `db:"deep"  json:"deep"`
	Sources []SourceCount `json:"sources"`
}

// SourceCount is one engine's share of collected items.
type SourceCount struct {
	SourceTag string `db:"source_tag" json:"source"`
	Count     int    `db:"count"      json:"count"`
}

// TrendPoint is one day's collection volume.
type TrendPoint struct {
	Date  string `db:"date"  json:"date"`
	Count int    `db:"count" json:"count"`
}

// KeywordCount is one keyword's frequency across recent titles.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// DeepRankEntry is one row of the latest-deep-crawls ranking.
type DeepRankEntry struct {
	Title       string    `db:"title"        json:"title"`
	SourceTag   string    `db:"source_tag"   json:"source"`
	Summary     string    `db:"summary"      json:"summary"`
	CollectedAt time.Time `db:"collected_at" json:"collected_at"`
}
