package models

import "time"

// ChatSession is the serializable snapshot of a broker session.
type ChatSession struct {
	ID              string     `json:"id"`
	Language        Language   `json:"language"`
	Remaining       int        `json:"remaining"`
	Enabled         bool       `json:"use_api"`
	RemoteAvailable bool       `json:"remote_available"`
	Transcript      []ChatTurn `json:"transcript,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
