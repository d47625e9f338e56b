package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"promptcoach/internal/models"
	"promptcoach/internal/redis"
)

const (
	redisInvalidateChannel = "chat:invalidate"
	redisSessionPrefix     = "chat:session:"
	redisStateTTL          = 24 * time.Hour
)

type invalidateMessage struct {
	SessionID string `json:"session_id"`
	Origin    string `json:"origin"`
}

// stateRedis shares chat sessions between instances. Every method is a no-op without redis.
type stateRedis struct {
	client *redis.Client
}

func newStateCache(client *redis.Client) *stateRedis {
	return &stateRedis{client: client}
}

func (r *stateRedis) enabled() bool {
	return r != nil && r.client.Enabled()
}

// startListener redis listener using sub chan
func (r *stateRedis) startListener(handler func(invalidateMessage)) {
	if !r.enabled() || handler == nil {
		return
	}
	raw := r.client.Raw()
	go func() {
		pubsub := raw.Subscribe(context.Background(), redisInvalidateChannel)
		defer pubsub.Close()
		for msg := range pubsub.Channel() {
			var inv invalidateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				logrus.WithError(err).Warn("decode session invalidation")
				continue
			}
			handler(inv)
		}
	}()
}

// publishInvalidation tells other instances to drop their in-memory copy of a session.
func (r *stateRedis) publishInvalidation(msg invalidateMessage) {
	if !r.enabled() {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Warn("encode session invalidation")
		return
	}
	if err := r.client.Publish(context.Background(), redisInvalidateChannel, payload); err != nil {
		logrus.WithError(err).Warn("publish session invalidation")
	}
}

func (r *stateRedis) saveSession(snap models.ChatSession) {
	if !r.enabled() || snap.ID == "" {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		logrus.WithError(err).Warn("encode chat session")
		return
	}
	if err := r.client.Set(context.Background(), redisSessionPrefix+snap.ID, data, redisStateTTL); err != nil {
		logrus.WithError(err).WithField("session", snap.ID).Warn("store chat session")
	}
}

func (r *stateRedis) loadSession(sessionID string) (models.ChatSession, bool) {
	if !r.enabled() || sessionID == "" {
		return models.ChatSession{}, false
	}
	raw, err := r.client.Get(context.Background(), redisSessionPrefix+sessionID)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			logrus.WithError(err).WithField("session", sessionID).Warn("load chat session")
		}
		return models.ChatSession{}, false
	}
	var snap models.ChatSession
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		logrus.WithError(err).WithField("session", sessionID).Warn("decode chat session")
		return models.ChatSession{}, false
	}
	if snap.ID != sessionID {
		return models.ChatSession{}, false
	}
	return snap, true
}

func (r *stateRedis) invalidateSession(sessionID string) {
	if !r.enabled() || sessionID == "" {
		return
	}
	if err := r.client.Del(context.Background(), redisSessionPrefix+sessionID); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		logrus.WithError(err).WithField("session", sessionID).Warn("invalidate chat session")
	}
}
