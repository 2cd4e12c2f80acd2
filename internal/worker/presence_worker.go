package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/events"
	"github.com/spec-kit/presence-service/internal/observability"
)

// StartPresenceObserver subscribes to presence events and turns them into
// metrics and log lines.
func StartPresenceObserver(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}

	dispatcher.Subscribe(events.EventUserConnected, func(_ context.Context, e events.Event) error {
		metrics.RecordConnect(e.OnlineCount)
		logger.Info("user connected",
			zap.String("user_id", e.UserID),
			zap.Int("online", e.OnlineCount),
			zap.Bool("superseded", e.Superseded),
		)
		return nil
	})

	dispatcher.Subscribe(events.EventUserDisconnected, func(_ context.Context, e events.Event) error {
		metrics.RecordDisconnect(e.OnlineCount)
		logger.Info("user disconnected",
			zap.String("user_id", e.UserID),
			zap.Int("online", e.OnlineCount),
		)
		return nil
	})
}
