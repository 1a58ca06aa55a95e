package attendance

import (
	"context"
	"fmt"
	"log"
	"strings"

	"geoattend/internal/audit"
	"geoattend/internal/metrics"
)

// FileAppeal lets a student contest a session they have no accepted record
// for, once the session's window has opened. A missed class with no record
// at all is appealable too. Several appeals for the same session are allowed.
func (s *Service) FileAppeal(ctx context.Context, profileID, sessionID, reason string) (Appeal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Appeal{}, fmt.Errorf("%w: reason is required", ErrMalformedInput)
	}
	p, sess, err := s.studentAndSession(ctx, profileID, sessionID)
	if err != nil {
		return Appeal{}, err
	}
	if s.now().Before(sess.ScheduledAt.Add(-s.window)) {
		return Appeal{}, fmt.Errorf("session %s: %w", sess.ID, ErrAppealTooEarly)
	}
	accepted, err := s.store.ListRecords(ctx, RecordFilter{StudentID: p.ID, SessionID: sess.ID, Status: StatusAttended})
	if err != nil {
		return Appeal{}, err
	}
	if len(accepted) > 0 {
		return Appeal{}, ErrAlreadyAttended
	}

	a, err := s.store.CreateAppeal(ctx, Appeal{
		StudentID: p.ID,
		SessionID: sess.ID,
		Reason:    reason,
		Status:    AppealSubmitted,
	})
	if err != nil {
		return Appeal{}, err
	}
	metrics.Appeals.WithLabelValues("filed").Inc()
	s.audit.Publish(ctx, audit.Entry{
		Kind:       audit.KindAppealFiled,
		StudentID:  a.StudentID,
		SessionID:  a.SessionID,
		AppealID:   a.ID,
		Status:     string(a.Status),
		OccurredAt: a.CreatedAt,
	})
	return a, nil
}

// Approve accepts an appeal and records the student as attended with the
// session's own answer and coordinates. The caller must have authorized an
// instructor. Approving twice fails with ErrAppealClosed and adds nothing.
func (s *Service) Approve(ctx context.Context, appealID string) (Appeal, error) {
	pending, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return Appeal{}, err
	}
	if pending.Status != AppealSubmitted {
		return Appeal{}, fmt.Errorf("appeal %s: %w", appealID, ErrAppealClosed)
	}
	sess, err := s.store.GetSession(ctx, pending.SessionID)
	if err != nil {
		return Appeal{}, err
	}

	now := s.now().UTC()
	a, err := s.store.ResolveAppeal(ctx, appealID, AppealApproved, now, &Record{
		StudentID:   pending.StudentID,
		SessionID:   sess.ID,
		Answer:      sess.Answer,
		Latitude:    sess.Latitude,
		Longitude:   sess.Longitude,
		Status:      StatusAttended,
		Source:      SourceAppeal,
		AppealID:    appealID,
		SubmittedAt: now,
	})
	if err != nil {
		return Appeal{}, err
	}
	log.Printf("appeal %s approved for student %s session %s", a.ID, a.StudentID, a.SessionID)
	s.resolved(ctx, a, audit.KindAppealApproved, "approved")
	return a, nil
}

// Reject closes an appeal without creating a record. The caller must have
// authorized an instructor.
func (s *Service) Reject(ctx context.Context, appealID string) (Appeal, error) {
	a, err := s.store.ResolveAppeal(ctx, appealID, AppealRejected, s.now().UTC(), nil)
	if err != nil {
		return Appeal{}, err
	}
	log.Printf("appeal %s rejected", a.ID)
	s.resolved(ctx, a, audit.KindAppealRejected, "rejected")
	return a, nil
}

func (s *Service) resolved(ctx context.Context, a Appeal, kind, action string) {
	metrics.Appeals.WithLabelValues(action).Inc()
	e := audit.Entry{
		Kind:      kind,
		StudentID: a.StudentID,
		SessionID: a.SessionID,
		AppealID:  a.ID,
		Status:    string(a.Status),
	}
	if a.ResolvedAt != nil {
		e.OccurredAt = *a.ResolvedAt
	}
	s.audit.Publish(ctx, e)
}

// ListAppeals returns appeals matching f, newest first.
func (s *Service) ListAppeals(ctx context.Context, f AppealFilter) ([]Appeal, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown appeal status %q", ErrMalformedInput, f.Status)
	}
	return s.store.ListAppeals(ctx, f)
}
