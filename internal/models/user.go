package models

import "time"

// User is a registered learner.
type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	PasswordHash      string    `json:"-"`
	PreferredLanguage Language  `json:"preferred_language"`
	CreatedAt         time.Time `json:"created_at"`
}
