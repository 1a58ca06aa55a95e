//go:build integration

package attendance

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/audit"
	"geoattend/internal/store"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/attendance/
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return NewRepository(db.Client)
}

// Group names are unique per test so runs against a shared database do not
// see each other's sessions.
func seedRepository(t *testing.T, r *Repository) (Profile, Session, string) {
	t.Helper()
	ctx := context.Background()
	group := "IT " + uuid.NewString()[:8]
	p, err := r.CreateProfile(ctx, Profile{
		FirstName: "Int", LastName: "Test", Email: uuid.NewString() + "@bu.edu",
		Lecture: "CS 412 A1", Discussion: group,
	})
	require.NoError(t, err)
	sess, err := r.CreateSession(ctx, Session{
		Group:       group,
		ScheduledAt: time.Date(2025, 12, 2, 17, 20, 0, 0, time.UTC),
		Answer:      "5",
		Latitude:    42.349,
		Longitude:   -71.104,
	})
	require.NoError(t, err)
	return p, sess, group
}

func TestRepositoryResolveAppealOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	p, sess, _ := seedRepository(t, r)

	a, err := r.CreateAppeal(ctx, Appeal{StudentID: p.ID, SessionID: sess.ID, Reason: "gps", Status: AppealSubmitted})
	require.NoError(t, err)

	at := time.Now().UTC()
	override := Record{
		StudentID: p.ID, SessionID: sess.ID, Answer: sess.Answer,
		Latitude: sess.Latitude, Longitude: sess.Longitude,
		Status: StatusAttended, Source: SourceAppeal, AppealID: a.ID, SubmittedAt: at,
	}
	approved, err := r.ResolveAppeal(ctx, a.ID, AppealApproved, at, &override)
	require.NoError(t, err)
	assert.Equal(t, AppealApproved, approved.Status)
	require.NotNil(t, approved.ResolvedAt)
	assert.WithinDuration(t, at, *approved.ResolvedAt, time.Millisecond)

	_, err = r.ResolveAppeal(ctx, a.ID, AppealApproved, at, &override)
	assert.ErrorIs(t, err, ErrAppealClosed)
	_, err = r.ResolveAppeal(ctx, uuid.NewString(), AppealRejected, at, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := r.ListRecords(ctx, RecordFilter{StudentID: p.ID, SessionID: sess.ID, Status: StatusAttended})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, a.ID, recs[0].AppealID)
	assert.Equal(t, SourceAppeal, recs[0].Source)
}

func TestRepositoryRecordsWithoutAppeal(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	p, sess, _ := seedRepository(t, r)

	for i := 0; i < 2; i++ {
		_, err := r.InsertRecord(ctx, Record{StudentID: p.ID, SessionID: sess.ID, Answer: "4", Status: StatusSubmitted})
		require.NoError(t, err)
	}
	recs, err := r.ListRecords(ctx, RecordFilter{StudentID: p.ID})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].AppealID)
	assert.Equal(t, SourceSubmission, recs[0].Source)

	none, err := r.ListRecords(ctx, RecordFilter{StudentID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepositorySessionsByGroup(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	_, first, group := seedRepository(t, r)
	_, other, otherGroup := seedRepository(t, r)
	later, err := r.CreateSession(ctx, Session{
		Group: group, ScheduledAt: first.ScheduledAt.Add(7 * 24 * time.Hour), Answer: "1",
	})
	require.NoError(t, err)

	got, err := r.ListSessions(ctx, group)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, later.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	got, err = r.ListSessions(ctx, group, otherGroup)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.NoError(t, r.DeleteSession(ctx, other.ID))
	assert.ErrorIs(t, r.DeleteSession(ctx, other.ID), ErrNotFound)
	_, err = r.GetSession(ctx, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	p, sess, _ := seedRepository(t, r)

	_, err := r.InsertRecord(ctx, Record{StudentID: p.ID, SessionID: sess.ID, Answer: "5", Status: StatusAttended})
	require.NoError(t, err)
	_, err = r.CreateAppeal(ctx, Appeal{StudentID: p.ID, SessionID: sess.ID, Reason: "late", Status: AppealSubmitted})
	require.NoError(t, err)

	require.NoError(t, r.DeleteSession(ctx, sess.ID))
	recs, err := r.ListRecords(ctx, RecordFilter{StudentID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, recs)
	appeals, err := r.ListAppeals(ctx, AppealFilter{StudentID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, appeals)
}

func TestRepositoryRefreshTokens(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	p, _, _ := seedRepository(t, r)
	now := time.Now().UTC()
	token := uuid.NewString()

	require.NoError(t, r.SaveRefreshToken(ctx, p.ID, token, now.Add(time.Hour)))
	ok, err := r.ConsumeRefreshToken(ctx, token, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.ConsumeRefreshToken(ctx, token, now)
	require.NoError(t, err)
	assert.False(t, ok)

	stale := uuid.NewString()
	require.NoError(t, r.SaveRefreshToken(ctx, p.ID, stale, now.Add(-time.Minute)))
	ok, err = r.ConsumeRefreshToken(ctx, stale, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryAudit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	appealID := uuid.NewString()
	require.NoError(t, r.AppendAudit(ctx, audit.Entry{
		Kind: audit.KindAppealFiled, AppealID: appealID, Status: string(AppealSubmitted), OccurredAt: time.Now().UTC(),
	}))

	entries, err := r.ListAudit(ctx, 50)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.AppealID == appealID {
			found = true
			assert.Equal(t, audit.KindAppealFiled, e.Kind)
		}
	}
	assert.True(t, found)
}
