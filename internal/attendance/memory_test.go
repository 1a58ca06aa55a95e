package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/audit"
)

func TestMemoryRefreshTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2025, 12, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveRefreshToken(ctx, "p1", "live", now.Add(time.Hour)))
	require.NoError(t, m.SaveRefreshToken(ctx, "p1", "stale", now.Add(-time.Second)))

	ok, err := m.ConsumeRefreshToken(ctx, "live", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = m.ConsumeRefreshToken(ctx, "live", now)
	assert.False(t, ok, "second use")
	ok, _ = m.ConsumeRefreshToken(ctx, "stale", now)
	assert.False(t, ok, "expired")
	ok, _ = m.ConsumeRefreshToken(ctx, "unknown", now)
	assert.False(t, ok)
}

func TestMemoryAuditNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	for _, kind := range []string{audit.KindRecordCreated, audit.KindAppealFiled, audit.KindAppealApproved} {
		require.NoError(t, m.AppendAudit(ctx, audit.Entry{Kind: kind}))
	}

	entries, err := m.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.KindAppealApproved, entries[0].Kind)
	assert.Equal(t, audit.KindAppealFiled, entries[1].Kind)

	entries, err = m.ListAudit(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestMemoryRecordNeedsSessionAndProfile(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	sess, err := m.CreateSession(ctx, Session{Group: "G"})
	require.NoError(t, err)

	_, err = m.InsertRecord(ctx, Record{StudentID: "ghost", SessionID: sess.ID})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.InsertRecord(ctx, Record{StudentID: "ghost", SessionID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := m.CreateProfile(ctx, Profile{FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	rec, err := m.InsertRecord(ctx, Record{StudentID: p.ID, SessionID: sess.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusSubmitted, rec.Status)
	assert.Equal(t, SourceSubmission, rec.Source)
}
