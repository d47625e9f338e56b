package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptcoach/internal/models"
)

const defaultHistoryLimit = 50

// SaveChatMessage persists one exchange of an authenticated user.
func (s *Service) SaveChatMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	if msg.UserID <= 0 {
		return nil, errors.New("user_id is required")
	}
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Message == "" {
		return nil, errors.New("message cannot be empty")
	}
	if msg.Kind == "" {
		msg.Kind = "text"
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var imageURL sql.NullString
	if msg.ImageURL != "" {
		imageURL = sql.NullString{String: msg.ImageURL, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (user_id, message, response, kind, image_url, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.UserID, msg.Message, msg.Response, msg.Kind, imageURL, msg.Language, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("chat message id: %w", err)
	}
	msg.ID = id
	return &msg, nil
}

// ChatHistory returns the most recent exchanges of a user, oldest first.
func (s *Service) ChatHistory(ctx context.Context, userID int64, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, message, response, kind, image_url, language, created_at
		 FROM chat_messages WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	defer rows.Close()

	history := make([]models.ChatMessage, 0)
	for rows.Next() {
		var (
			m        models.ChatMessage
			imageURL sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.Response, &m.Kind, &imageURL, &m.Language, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.ImageURL = imageURL.String
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// DeleteChatHistoryBefore removes exchanges created before cutoff and returns how many were deleted.
func (s *Service) DeleteChatHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete chat history: %w", err)
	}
	return res.RowsAffected()
}
