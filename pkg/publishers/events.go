// Package publishers fans sync notifications out to queues, topics and webhooks.
package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/techreview-es/mgz-harvester/internal/logger"
)

// Event types emitted after an article is written.
const (
	EventArticleCreated = "article.created"
	EventArticleUpdated = "article.updated"
)

// Logger is the logging surface publishers use.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger { return logger.Ensure(log) }

// Event describes one article write.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DocumentID string    `json:"document_id"`
	OriginalID string    `json:"original_id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Language   string    `json:"language"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh id and time on an event of the given type.
func NewEvent(typ, documentID, originalID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		DocumentID: documentID,
		OriginalID: originalID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to one destination.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Dispatcher sends every event to all configured publishers.
type Dispatcher struct {
	pubs []Publisher
	log  Logger
}

// NewDispatcher returns a Dispatcher; with no publishers Notify is a no-op.
func NewDispatcher(pubs []Publisher, log Logger) *Dispatcher {
	return &Dispatcher{pubs: pubs, log: ensureLogger(log)}
}

// Len reports how many publishers are attached.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.pubs)
}

// Notify publishes evt to every publisher. A failing publisher does not stop
// the others; all failures are returned joined.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, p := range d.pubs {
		if err := p.Publish(ctx, evt); err != nil {
			d.log.WarnObj("publisher failed", "publisher_error", map[string]any{
				"publisher": p.ID(),
				"type":      p.Type(),
				"event":     evt.Type,
				"error":     err.Error(),
			})
			errs = append(errs, fmt.Errorf("publisher %s: %w", p.ID(), err))
			continue
		}
		d.log.DebugObj("event published", "publisher_delivery", map[string]any{
			"publisher":  p.ID(),
			"event":      evt.Type,
			"originalId": evt.OriginalID,
		})
	}
	return errors.Join(errs...)
}

// Close releases publishers that hold connections.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, p := range d.pubs {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// eventAttributes are the routing attributes attached to queue messages.
func eventAttributes(evt Event) map[string]string {
	return map[string]string{
		"event_type":  evt.Type,
		"original_id": evt.OriginalID,
	}
}
