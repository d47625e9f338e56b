package broker

import (
	"time"

	"promptcoach/internal/models"
)

// Session is the per-conversation state owned by the broker. It is not safe for
// concurrent use; the worker layer runs at most one job per session at a time.
type Session struct {
	ID              string
	Language        models.Language
	quota           *Quota
	remoteAvailable bool
	transcript      []models.ChatTurn
	updatedAt       time.Time
}

func (s *Session) Quota() *Quota {
	return s.quota
}

func (s *Session) RemoteAvailable() bool {
	return s.remoteAvailable
}

// SetLanguage switches the session language when tag is a supported language.
func (s *Session) SetLanguage(tag string) bool {
	lang, ok := models.ParseLanguage(tag)
	if !ok {
		return false
	}
	s.Language = lang
	return true
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []models.ChatTurn {
	out := make([]models.ChatTurn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) append(role models.Role, content string) {
	s.transcript = append(s.transcript, models.ChatTurn{Role: role, Content: content})
	s.updatedAt = time.Now()
}

// Snapshot exports the session in its serialisable form.
func (s *Session) Snapshot() models.ChatSession {
	return models.ChatSession{
		ID:              s.ID,
		Language:        s.Language,
		Remaining:       s.quota.Remaining(),
		Enabled:         s.quota.Enabled(),
		RemoteAvailable: s.remoteAvailable,
		Transcript:      s.Transcript(),
		UpdatedAt:       s.updatedAt,
	}
}

// RestoreSession rebuilds a session from a snapshot.
func RestoreSession(snap models.ChatSession) *Session {
	q := NewQuota(snap.Remaining)
	q.SetEnabled(snap.Enabled)
	lang := snap.Language
	if _, ok := models.ParseLanguage(string(lang)); !ok {
		lang = models.LanguageES
	}
	transcript := make([]models.ChatTurn, len(snap.Transcript))
	copy(transcript, snap.Transcript)
	return &Session{
		ID:              snap.ID,
		Language:        lang,
		quota:           q,
		remoteAvailable: snap.RemoteAvailable,
		transcript:      transcript,
		updatedAt:       snap.UpdatedAt,
	}
}
