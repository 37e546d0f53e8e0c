package models

import (
	"encoding/json"
	"time"
)

// DeepRecord is the structured insight extracted from a source item's
// page. At most one exists per source item (unique on source_id).
type DeepRecord struct {
	ID             int64           `db:"id"              json:"id"`
	SourceID       int64           `db:"source_id"       json:"source_id"`
	URL            string          `db:"url"             json:"url"`
	Title          string          `db:"title"           json:"title"`
	Content        string          `db:"content"         json:"content"`
	Summary        string          `db:"summary"         json:"summary"`
	StructuredData json.RawMessage `db:"structured_data" json:"structured_data"`
	CollectedAt    time.Time       `db:"collected_at"    json:"collected_at"`

	// SourceTitle is populated by list queries that join source_items.
	SourceTitle string `db:"source_title" json:"source_title,omitempty"`
}
