package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/kafka"
)

// Publisher writes one event to a topic. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type envelope struct {
	pub   Publisher
	event kafka.Event
}

// Collector routes events to the publisher registered for their type and
// publishes them from a background goroutine. A nil *Collector drops
// everything, so callers need no Kafka-enabled check.
type Collector struct {
	publishers map[string]Publisher
	eventCh    chan envelope
	logger     *slog.Logger
	done       chan struct{}
	started    atomic.Bool

	mu     sync.RWMutex
	closed bool
}

func NewCollector(publishers map[string]Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Collector{
		publishers: publishers,
		eventCh:    make(chan envelope, bufferSize),
		logger:     slog.Default().With("component", "event-collector"),
		done:       make(chan struct{}),
	}
}

// Start launches the publish loop. Call Close to flush and stop it.
func (c *Collector) Start(ctx context.Context) {
	if c == nil {
		return
	}
	c.started.Store(true)
	go func() {
		defer close(c.done)
		for {
			select {
			case env, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, env)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("event collector started", "buffer_size", cap(c.eventCh))
}

// Track queues an event for publishing. Events with no registered
// publisher are ignored; a full buffer drops the event.
func (c *Collector) Track(eventType, key string, value any) {
	if c == nil {
		return
	}
	pub, ok := c.publishers[eventType]
	if !ok || pub == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- envelope{pub: pub, event: kafka.Event{Key: key, Type: eventType, Value: value}}:
	default:
		c.logger.Warn("event dropped (buffer full)", "event_type", eventType)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (c *Collector) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) publish(ctx context.Context, env envelope) {
	if err := env.pub.Publish(ctx, env.event); err != nil {
		c.logger.Error("failed to publish event",
			"event_type", env.event.Type,
			"error", err,
		)
	}
}

func (c *Collector) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case env, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, env)
		default:
			return
		}
	}
}
