package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"geoattend/internal/audit"
	"geoattend/internal/metrics"
	"geoattend/internal/pick"
	"geoattend/internal/schedule"
	"geoattend/internal/store"
)

const (
	// DefaultTolerance is the largest accepted deviation, in degrees, on each axis.
	DefaultTolerance = 0.004
	// DefaultWindow is how far from the scheduled start a submission is accepted.
	DefaultWindow = 15 * time.Minute
)

// answerCodes are the codes an instructor can hand out in class.
var answerCodes = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}

// Locker serializes work on one key across requests.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Options tune a Service. Zero values select the defaults.
type Options struct {
	Tolerance float64
	Window    time.Duration
	Locker    Locker
	Audit     *audit.Publisher
	Now       func() time.Time
}

// Service implements the session registry, attendance evaluation, the
// appeal workflow and participation aggregation.
type Service struct {
	store     Store
	groups    *schedule.Table
	tolerance float64
	window    time.Duration
	locker    Locker
	audit     *audit.Publisher
	now       func() time.Time
}

// NewService creates a service backed by a store and a group timetable.
func NewService(st Store, groups *schedule.Table, opts Options) *Service {
	s := &Service{
		store:     st,
		groups:    groups,
		tolerance: opts.Tolerance,
		window:    opts.Window,
		locker:    opts.Locker,
		audit:     opts.Audit,
		now:       opts.Now,
	}
	if s.tolerance <= 0 {
		s.tolerance = DefaultTolerance
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.locker == nil {
		s.locker = store.NewMemoryLocker()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Groups exposes the timetable the service resolves sessions against.
func (s *Service) Groups() *schedule.Table { return s.groups }

// Window is the configured half-width of the submission window.
func (s *Service) Window() time.Duration { return s.window }

// CreateProfile validates and stores a profile. Students must be assigned
// to an existing lecture group and discussion group.
func (s *Service) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	p.Lecture = strings.TrimSpace(p.Lecture)
	p.Discussion = strings.TrimSpace(p.Discussion)
	if p.FirstName == "" || p.LastName == "" || p.Email == "" {
		return Profile{}, fmt.Errorf("%w: first name, last name and email are required", ErrMalformedInput)
	}
	if !p.IsInstructor || p.Lecture != "" {
		if !s.groups.HasGroup(p.Lecture, schedule.KindLecture) {
			return Profile{}, fmt.Errorf("%w: %q is not a lecture group", ErrInvalidGroup, p.Lecture)
		}
	}
	if !p.IsInstructor || p.Discussion != "" {
		if !s.groups.HasGroup(p.Discussion, schedule.KindDiscussion) {
			return Profile{}, fmt.Errorf("%w: %q is not a discussion group", ErrInvalidGroup, p.Discussion)
		}
	}
	return s.store.CreateProfile(ctx, p)
}

// GetProfile returns the profile with the given id.
func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// CreateSession schedules a session of group on date (YYYY-MM-DD). Time and
// coordinates come from the timetable. An empty answer is drawn at random
// from the codes an instructor can choose.
func (s *Service) CreateSession(ctx context.Context, group, date, answer string) (Session, error) {
	slot, err := s.groups.Resolve(strings.TrimSpace(group), date)
	switch {
	case errors.Is(err, schedule.ErrUnknownGroup):
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	case err != nil:
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer, _ = pick.Uniform(answerCodes)
	}
	sess, err := s.store.CreateSession(ctx, Session{
		Group:       slot.Group.Name,
		ScheduledAt: slot.ScheduledAt,
		Answer:      answer,
		Latitude:    slot.Group.Latitude,
		Longitude:   slot.Group.Longitude,
	})
	if err != nil {
		return Session{}, err
	}
	log.Printf("session %s created for %s", sess.ID, sess)
	return sess, nil
}

// GetSession returns the session with the given id.
func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return s.store.GetSession(ctx, id)
}

// DeleteSession removes a session with its records and appeals.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	log.Printf("session %s deleted", id)
	return nil
}

// ListSessions returns the sessions of the given groups, or all sessions
// when none are named, newest first.
func (s *Service) ListSessions(ctx context.Context, groups ...string) ([]Session, error) {
	return s.store.ListSessions(ctx, groups...)
}

// InWindow reports whether now lies within window of the session's start,
// bounds included.
func InWindow(sess Session, now time.Time, window time.Duration) bool {
	start := sess.ScheduledAt.Add(-window)
	end := sess.ScheduledAt.Add(window)
	return !now.Before(start) && !now.After(end)
}

// Accepts reports whether a submission matches the session's answer and
// lies within tolerance degrees of its coordinates on both axes.
func Accepts(sess Session, sub Submission, tolerance float64) bool {
	// Absorb representation error so a deviation of exactly tolerance passes.
	const epsilon = 1e-9
	return sub.Answer == sess.Answer &&
		math.Abs(sub.Latitude-sess.Latitude) <= tolerance+epsilon &&
		math.Abs(sub.Longitude-sess.Longitude) <= tolerance+epsilon
}

// CurrentSession returns the session of one of the profile's groups whose
// submission window contains now.
func (s *Service) CurrentSession(ctx context.Context, p Profile, now time.Time) (Session, error) {
	candidates, err := s.store.SessionsBetween(ctx, now.Add(-s.window), now.Add(s.window))
	if err != nil {
		return Session{}, err
	}
	for _, sess := range candidates {
		if p.InGroup(sess.Group) {
			return sess, nil
		}
	}
	return Session{}, ErrNoActiveSession
}

// Evaluate decides and persists the outcome of one submission. The record
// is stored whether or not it is accepted. The submission window is the
// caller's precondition and is not checked here.
func (s *Service) Evaluate(ctx context.Context, p Profile, sess Session, answer string, lat, lon float64, now time.Time) (Record, error) {
	sub := Submission{Answer: answer, Latitude: lat, Longitude: lon}
	status := StatusSubmitted
	if Accepts(sess, sub, s.tolerance) {
		status = StatusAttended
	}
	rec, err := s.store.InsertRecord(ctx, Record{
		StudentID:   p.ID,
		SessionID:   sess.ID,
		Answer:      answer,
		Latitude:    lat,
		Longitude:   lon,
		Status:      status,
		Source:      SourceSubmission,
		SubmittedAt: now.UTC(),
	})
	if err != nil {
		return Record{}, fmt.Errorf("store record: %w", err)
	}
	metrics.Submissions.WithLabelValues(string(status)).Inc()
	s.audit.Publish(ctx, audit.Entry{
		Kind:       audit.KindRecordCreated,
		StudentID:  rec.StudentID,
		SessionID:  rec.SessionID,
		Status:     string(rec.Status),
		OccurredAt: rec.SubmittedAt,
	})
	return rec, nil
}

// Submit is the student-facing attendance flow: it parses the raw values,
// checks role, enrolment, the submission window and duplicates, and only
// then evaluates. A student gets one submission per session; a failed one
// can only be remedied through an appeal.
func (s *Service) Submit(ctx context.Context, profileID, sessionID, answer, latitude, longitude string) (Record, error) {
	sub, err := ParseSubmission(answer, latitude, longitude)
	if err != nil {
		metrics.Blocked.WithLabelValues("malformed").Inc()
		return Record{}, err
	}
	p, sess, err := s.studentAndSession(ctx, profileID, sessionID)
	if err != nil {
		return Record{}, err
	}
	now := s.now()
	if !InWindow(sess, now, s.window) {
		metrics.Blocked.WithLabelValues("outside_window").Inc()
		return Record{}, fmt.Errorf("%w: %s is scheduled at %s", ErrOutsideWindow, sess.Group, sess.ScheduledAt.Format(time.Kitchen))
	}

	unlock, err := s.locker.Lock(ctx, "submit:"+p.ID+":"+sess.ID)
	if errors.Is(err, store.ErrLocked) {
		metrics.Blocked.WithLabelValues("in_progress").Inc()
		return Record{}, ErrSubmissionInProgress
	}
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	existing, err := s.store.ListRecords(ctx, RecordFilter{StudentID: p.ID, SessionID: sess.ID})
	if err != nil {
		return Record{}, err
	}
	if len(existing) > 0 {
		metrics.Blocked.WithLabelValues("duplicate").Inc()
		if attended(existing) {
			return Record{}, ErrAlreadyAttended
		}
		return Record{}, ErrAlreadySubmitted
	}

	return s.Evaluate(ctx, p, sess, sub.Answer, sub.Latitude, sub.Longitude, now)
}

// studentAndSession loads both sides of a student action and checks that the
// profile is a student assigned to the session's group.
func (s *Service) studentAndSession(ctx context.Context, profileID, sessionID string) (Profile, Session, error) {
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return Profile{}, Session{}, err
	}
	if p.IsInstructor {
		return Profile{}, Session{}, fmt.Errorf("%w: instructors do not take attendance", ErrPermission)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Profile{}, Session{}, err
	}
	if !p.InGroup(sess.Group) {
		metrics.Blocked.WithLabelValues("not_enrolled").Inc()
		return Profile{}, Session{}, fmt.Errorf("%w: %s", ErrNotEnrolled, sess.Group)
	}
	return p, sess, nil
}

func attended(records []Record) bool {
	for _, rec := range records {
		if rec.Status == StatusAttended {
			return true
		}
	}
	return false
}

// FormatPercent renders a participation value the way reports show it.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

// AuditLog returns the newest audit entries first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	return s.store.ListAudit(ctx, limit)
}
