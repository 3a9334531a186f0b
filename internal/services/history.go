package services

import (
	"fmt"
	"time"

	"github.com/tahcohcat/talkinghead-web/internal/database"
	"github.com/tahcohcat/talkinghead-web/internal/models"
)

type HistoryService struct {
	db    *database.DB
	limit int
}

// NewHistoryService keeps at most limit messages per session in Load results.
// A limit of zero or less means unbounded.
func NewHistoryService(db *database.DB, limit int) *HistoryService {
	return &HistoryService{db: db, limit: limit}
}

// Append stores the given turns for a session in order
func (s *HistoryService) Append(sessionID string, messages ...models.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES (:session_id, :role, :content, :created_at)
	`

	now := time.Now()
	for _, m := range messages {
		m.SessionID = sessionID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if _, err := tx.NamedExec(query, m); err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// Load returns the most recent messages for a session, oldest first
func (s *HistoryService) Load(sessionID string) ([]models.Message, error) {
	messages := []models.Message{}

	var err error
	if s.limit > 0 {
		query := `
			SELECT id, session_id, role, content, created_at FROM (
				SELECT id, session_id, role, content, created_at
				FROM messages WHERE session_id = ?
				ORDER BY id DESC LIMIT ?
			) ORDER BY id ASC
		`
		err = s.db.Select(&messages, query, sessionID, s.limit)
	} else {
		query := `
			SELECT id, session_id, role, content, created_at
			FROM messages WHERE session_id = ?
			ORDER BY id ASC
		`
		err = s.db.Select(&messages, query, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return messages, nil
}

// Clear deletes all messages of a session
func (s *HistoryService) Clear(sessionID string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
