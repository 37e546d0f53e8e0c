package models

import "time"

// TokenUsageRecord is one append-only audit row written after every
// model call that yields usage metadata (or an estimate when the
// backend omits it).
type TokenUsageRecord struct {
	ID               int64     `db:"id"                json:"id"`
	ModelID          int64     `db:"model_id"          json:"model_id"`
	PromptTokens     int       `db:"prompt_tokens"     json:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int       `db:"total_tokens"      json:"total_tokens"`
	TaskLabel        string    `db:"task_label"        json:"task_label"`
	LoggedAt         time.Time `db:"logged_at"         json:"logged_at"`
}

// StatCounter is one derived aggregate metric (e.g. total ingested items).
type StatCounter struct {
	ID          int64     `db:"id"           json:"id"`
	MetricName  string    `db:"metric_name"  json:"metric_name"`
	MetricValue int64     `db:"metric_value" json:"metric_value"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}
