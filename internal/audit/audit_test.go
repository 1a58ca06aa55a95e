package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/metrics"
	"geoattend/internal/queue"
)

type sliceSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *sliceSink) AppendAudit(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *sliceSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestPublishAndRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(8)
	pub := NewPublisher(q)
	when := time.Date(2025, 12, 2, 17, 25, 0, 0, time.UTC)
	pub.Publish(ctx, Entry{Kind: KindRecordCreated, StudentID: "s1", SessionID: "c1", Status: "attended", OccurredAt: when})
	pub.Publish(ctx, Entry{Kind: KindAppealFiled, StudentID: "s1", SessionID: "c1", AppealID: "a1", Status: "submitted"})
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "junk", Body: []byte("{not json")}))

	before := testutil.ToFloat64(metrics.AuditEvents.WithLabelValues("junk", "invalid"))

	sink := &sliceSink{}
	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, sink) }()

	require.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.AuditEvents.WithLabelValues("junk", "invalid")) == before+1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, KindRecordCreated, sink.entries[0].Kind)
	assert.True(t, sink.entries[0].OccurredAt.Equal(when))
	assert.Equal(t, "a1", sink.entries[1].AppealID)
	assert.False(t, sink.entries[1].OccurredAt.IsZero())
}

func TestNilPublisherDrops(t *testing.T) {
	var p *Publisher
	p.Publish(context.Background(), Entry{Kind: KindAppealRejected})
	NewPublisher(nil).Publish(context.Background(), Entry{Kind: KindAppealRejected})
}

func TestDecodeFallsBackToMessageType(t *testing.T) {
	e, err := Decode(queue.Message{Type: KindAppealApproved, Body: []byte(`{"appeal_id":"a9"}`)})
	require.NoError(t, err)
	assert.Equal(t, KindAppealApproved, e.Kind)
	assert.Equal(t, "a9", e.AppealID)
}
