package models

import "time"

// Message roles. Only user and assistant messages are persisted;
// system and tool messages live solely in the model call history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one analytical chat session. Messages are append-only
// and ordered by creation time.
type Conversation struct {
	ID        int64     `db:"id"         json:"id"`
	Title     string    `db:"title"      json:"title"`
	ModelID   int64     `db:"model_id"   json:"model_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// ModelName is populated by list queries that join model_configs.
	ModelName string `db:"model_name" json:"model_name,omitempty"`
}

// Message is one turn in a conversation. RawContent retains internal
// tool-call markers stripped from Content, enabling faithful replay.
type Message struct {
	ID             int64     `db:"id"              json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	Role           string    `db:"role"            json:"role"`
	Content        string    `db:"content"         json:"content"`
	RawContent     string    `db:"raw_content"     json:"raw_content"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}
