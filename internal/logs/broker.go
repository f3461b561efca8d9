// Package logs provides real-time fan-out and buffering of workflow run logs.
package logs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/console/internal/models"
)

// Subscriber represents a live log stream subscriber.
type Subscriber struct {
	ID     string
	RunID  string
	NodeID string // optional: only entries from this node, "" for all
	Ch     chan *models.LogEntry

	CreatedAt time.Time

	done chan struct{}
}

// Broker manages log subscriptions and publishing.
// Publishing never blocks: a subscriber that cannot keep up loses entries.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

// NewBroker creates a new log broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// Subscribe creates a new subscription for entries of the given run.
// nodeID narrows the stream to a single workflow node when non-empty.
// The subscription is removed when ctx is cancelled or on Unsubscribe,
// whichever comes first.
func (b *Broker) Subscribe(ctx context.Context, runID, nodeID string) *Subscriber {
	b.mu.Lock()

	sub := &Subscriber{
		ID:        uuid.NewString(),
		RunID:     runID,
		NodeID:    nodeID,
		Ch:        make(chan *models.LogEntry, 100),
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}

	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.Unsubscribe(sub)
		case <-sub.done:
		}
	}()

	b.logger.Debug("subscriber added",
		"subscriber_id", sub.ID,
		"run_id", runID,
		"node_id", nodeID,
	)

	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.ID]; exists {
		close(sub.Ch)
		close(sub.done)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish sends a log entry to all matching subscribers.
func (b *Broker) Publish(entry *models.LogEntry) {
	if entry == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if b.matches(sub, entry) {
			select {
			case sub.Ch <- entry:
			default:
				// Channel full, skip this entry for this subscriber
				b.logger.Warn("subscriber channel full, dropping log entry",
					"subscriber_id", sub.ID,
					"run_id", entry.RunID,
				)
			}
		}
	}
}

// PublishBatch sends multiple log entries to all matching subscribers.
func (b *Broker) PublishBatch(entries []*models.LogEntry) {
	for _, entry := range entries {
		b.Publish(entry)
	}
}

// matches checks if a log entry matches a subscriber's filters.
func (b *Broker) matches(sub *Subscriber, entry *models.LogEntry) bool {
	if sub.RunID != "" && sub.RunID != entry.RunID {
		return false
	}
	if sub.NodeID != "" && sub.NodeID != entry.NodeID {
		return false
	}
	return true
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
