package models

import (
	"strings"
	"time"
)

// ModelConfig describes one callable language-model backend.
// Credential is sensitive: it is excluded from JSON and must never be
// logged; API responses carry MaskedCredential instead.
type ModelConfig struct {
	ID              int64     `db:"id"               json:"id"`
	DisplayName     string    `db:"display_name"     json:"display_name"`
	Endpoint        string    `db:"endpoint"         json:"endpoint"`
	Credential      string    `db:"credential"       json:"-"`
	ModelIdentifier string    `db:"model_identifier" json:"model_identifier"`
	SystemPrompt    string    `db:"system_prompt"    json:"system_prompt"`
	ActiveFlag      bool      `db:"active_flag"      json:"active_flag"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`

	// UsedTokens is populated by list queries that aggregate token_usage.
	UsedTokens int64 `db:"used_tokens" json:"used_tokens"`
}

const maskedTailLen = 4

// MaskedCredential returns a display form of the credential that keeps
// only the last four characters.
func (m *ModelConfig) MaskedCredential() string {
	if len(m.Credential) <= maskedTailLen {
		return strings.Repeat("*", len(m.Credential))
	}
	return "****" + m.Credential[len(m.Credential)-maskedTailLen:]
}
