package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/audit"
)

// Store is the persistence boundary of the attendance core. Lookups by id
// return ErrNotFound when nothing matches.
type Store interface {
	CreateProfile(ctx context.Context, p Profile) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	// ListStudents returns non-instructor profiles ordered by last, then first name.
	ListStudents(ctx context.Context) ([]Profile, error)

	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	// ListSessions returns sessions of the given groups (all when none), newest first.
	ListSessions(ctx context.Context, groups ...string) ([]Session, error)
	// SessionsBetween returns sessions scheduled in [from, to], oldest first.
	SessionsBetween(ctx context.Context, from, to time.Time) ([]Session, error)

	InsertRecord(ctx context.Context, r Record) (Record, error)
	// ListRecords returns matching records, oldest first.
	ListRecords(ctx context.Context, f RecordFilter) ([]Record, error)

	CreateAppeal(ctx context.Context, a Appeal) (Appeal, error)
	GetAppeal(ctx context.Context, id string) (Appeal, error)
	// ListAppeals returns matching appeals, newest first.
	ListAppeals(ctx context.Context, f AppealFilter) ([]Appeal, error)
	// ResolveAppeal moves a submitted appeal to status and, when rec is not
	// nil, inserts rec in the same transaction. It fails with ErrAppealClosed
	// when the appeal is no longer submitted.
	ResolveAppeal(ctx context.Context, id string, status AppealStatus, at time.Time, rec *Record) (Appeal, error)

	audit.Sink
	ListAudit(ctx context.Context, limit int) ([]audit.Entry, error)
}

// TokenStore tracks issued refresh tokens for rotation.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, profileID, token string, expiresAt time.Time) error
	// ConsumeRefreshToken revokes token and reports whether it was live.
	ConsumeRefreshToken(ctx context.Context, token string, now time.Time) (bool, error)
}

func withRecordDefaults(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusSubmitted
	}
	if rec.Source == "" {
		rec.Source = SourceSubmission
	}
	return rec
}

var (
	_ Store      = (*Repository)(nil)
	_ TokenStore = (*Repository)(nil)
	_ Store      = (*MemoryStore)(nil)
	_ TokenStore = (*MemoryStore)(nil)
)
