package cache

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/kafka"
)

// InvalidateOnIndexComplete returns a Kafka MessageHandler that drops all
// cached results whenever a build finishes, whatever its status.
func InvalidateOnIndexComplete(c *QueryCache) kafka.MessageHandler {
	logger := slog.Default().With("component", "cache-invalidator")
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.Type != events.TypeIndexComplete {
			return nil
		}
		event, err := kafka.DecodeJSON[events.IndexCompleted](msg.Value)
		if err != nil {
			logger.Error("failed to decode index event", "error", err)
		}
		if err := c.Invalidate(ctx); err != nil {
			logger.Error("cache invalidation failed", "error", err)
			return nil
		}
		logger.Info("cache invalidated after index build",
			"status", event.Status,
			"documents", event.Documents,
		)
		return nil
	}
}
