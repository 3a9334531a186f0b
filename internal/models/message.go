package models

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn. Stored turns carry ID, SessionID and
// CreatedAt; turns built for a provider only need Role and Content.
type Message struct {
	ID        int       `json:"id" db:"id"`
	SessionID string    `json:"-" db:"session_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HistoryResponse is the body of GET /api/history
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}
