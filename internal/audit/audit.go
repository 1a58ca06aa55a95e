// Package audit carries attendance events from the API to durable storage
// through a queue.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"geoattend/internal/metrics"
	"geoattend/internal/queue"
)

// Kinds of audit entries.
const (
	KindRecordCreated  = "record.created"
	KindAppealFiled    = "appeal.filed"
	KindAppealApproved = "appeal.approved"
	KindAppealRejected = "appeal.rejected"
)

// Entry is one audited state change.
type Entry struct {
	Kind       string    `json:"kind"`
	StudentID  string    `json:"student_id"`
	SessionID  string    `json:"session_id"`
	AppealID   string    `json:"appeal_id,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink persists entries.
type Sink interface {
	AppendAudit(ctx context.Context, e Entry) error
}

// Publisher encodes entries onto a queue.
type Publisher struct {
	q queue.Queue
}

// NewPublisher wraps q. A nil queue yields a publisher that drops everything.
func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// Publish enqueues e. Failures are logged and never returned; the audit
// stream is best effort.
func (p *Publisher) Publish(ctx context.Context, e Entry) {
	if p == nil || p.q == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		log.Printf("audit: encode %s: %v", e.Kind, err)
		return
	}
	if err := p.q.Publish(ctx, queue.Message{Type: e.Kind, Body: body}); err != nil {
		log.Printf("audit: publish %s: %v", e.Kind, err)
	}
}

// Decode parses a queued message back into an entry.
func Decode(msg queue.Message) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		return Entry{}, fmt.Errorf("audit: decode %q: %w", msg.Type, err)
	}
	if e.Kind == "" {
		e.Kind = msg.Type
	}
	return e, nil
}

// Run drains q into sink until ctx is done or the queue closes.
func Run(ctx context.Context, q queue.Queue, sink Sink) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("audit: consume: %w", err)
	}
	for msg := range messages {
		e, err := Decode(msg)
		if err != nil {
			log.Printf("%v", err)
			metrics.AuditEvents.WithLabelValues(msg.Type, "invalid").Inc()
			continue
		}
		if err := sink.AppendAudit(ctx, e); err != nil {
			log.Printf("audit: store %s for session %s: %v", e.Kind, e.SessionID, err)
			metrics.AuditEvents.WithLabelValues(e.Kind, "failed").Inc()
			continue
		}
		metrics.AuditEvents.WithLabelValues(e.Kind, "stored").Inc()
	}
	return nil
}
