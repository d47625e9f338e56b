package models

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// ChatTurn is one entry of a session transcript.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatMessage is a persisted exchange of an authenticated user.
type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Kind      string    `json:"kind"`
	ImageURL  string    `json:"image_url,omitempty"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}
