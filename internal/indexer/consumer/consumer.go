// Package consumer drives index rebuilds from Kafka: every crawl.complete or
// index.rebuild message triggers a full build, and the outcome is announced
// as an index.complete event.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/kafka"
)

// Builder runs one index build. *indexer.Indexer satisfies it.
type Builder interface {
	Build(ctx context.Context) (*indexer.Report, error)
}

// Tracker queues an outgoing event. *events.Collector satisfies it.
type Tracker interface {
	Track(eventType, key string, value any)
}

// HandleMessage returns a Kafka MessageHandler that rebuilds the index.
// Messages of unknown type are skipped. A failed build is logged and
// announced but the message is still committed, so a bad corpus does not
// wedge the topic; only cancellation leaves the message uncommitted.
func HandleMessage(b Builder, tracker Tracker) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		switch msg.Type {
		case events.TypeCrawlComplete:
			event, err := kafka.DecodeJSON[events.CrawlCompleted](msg.Value)
			if err != nil {
				logger.Error("failed to decode crawl event", "error", err, "key", msg.Key)
				return nil
			}
			logger.Info("crawl finished, rebuilding index",
				"seed", event.Seed,
				"crawled", event.Crawled,
				"request_id", event.RequestID,
			)
		case events.TypeIndexRebuild:
			event, err := kafka.DecodeJSON[events.IndexRebuildRequested](msg.Value)
			if err != nil {
				logger.Error("failed to decode rebuild request", "error", err, "key", msg.Key)
				return nil
			}
			logger.Info("index rebuild requested",
				"reason", event.Reason,
				"request_id", event.RequestID,
			)
		default:
			logger.Debug("ignoring message", "event_type", msg.Type, "key", msg.Key)
			return nil
		}

		report, err := b.Build(ctx)
		if err != nil && ctx.Err() != nil {
			return err
		}
		tracker.Track(events.TypeIndexComplete, "index", Completed(report, err))
		if err != nil {
			logger.Error("index rebuild failed", "error", err)
		}
		return nil
	}
}

// Completed builds the index.complete payload for a build outcome.
func Completed(report *indexer.Report, err error) events.IndexCompleted {
	out := events.IndexCompleted{
		Status:    "success",
		Timestamp: time.Now().UTC(),
	}
	if report != nil {
		out.Documents = report.Documents
		out.Terms = report.Terms
		out.FailedTasks = report.FailedTasks
		out.DurationMs = report.Duration.Milliseconds()
	}
	if err != nil {
		out.Status = "failed"
		if errors.Is(err, apperrors.ErrIndexIncomplete) {
			out.Status = "incomplete"
		}
		out.Error = err.Error()
	}
	return out
}
