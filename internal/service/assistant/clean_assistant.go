package assistant

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHistoryRetention       = 30 * 24 * time.Hour
	DefaultHistoryCleanupInterval = time.Hour
)

// StartHistoryCleaner periodically prunes chat history older than retention.
func (s *Service) StartHistoryCleaner(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	if interval <= 0 {
		interval = DefaultHistoryCleanupInterval
	}
	go s.cleanupLoop(ctx, retention, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpiredHistory(ctx, retention)
		}
	}
}

func (s *Service) cleanupExpiredHistory(ctx context.Context, retention time.Duration) {
	removed, err := s.DeleteChatHistoryBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		logrus.WithError(err).Error("cleanup chat history")
		return
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("pruned expired chat history")
	}
}
