package attendance

import (
	"context"
	"fmt"
)

// Participation is the share, in percent rounded to two decimals, of the
// sessions in scope that the profile attended. A session attended more than
// once counts once. It is 0 when the scope holds no sessions.
func (s *Service) Participation(ctx context.Context, p Profile, scope Scope) (float64, error) {
	groups, err := scopeGroups(p, scope)
	if err != nil {
		return 0, err
	}
	if len(groups) == 0 {
		return 0, nil
	}
	sessions, err := s.store.ListSessions(ctx, groups...)
	if err != nil {
		return 0, err
	}
	attended, err := s.attendedSessions(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	return ratio(sessions, attended), nil
}

// Breakdown holds the three participation scopes of one profile.
type Breakdown struct {
	Lecture    float64 `json:"lecture"`
	Discussion float64 `json:"discussion"`
	Total      float64 `json:"total"`
}

// Breakdown computes every scope with a single pass over the store.
func (s *Service) Breakdown(ctx context.Context, p Profile) (Breakdown, error) {
	groups := p.Groups()
	if len(groups) == 0 {
		return Breakdown{}, nil
	}
	sessions, err := s.store.ListSessions(ctx, groups...)
	if err != nil {
		return Breakdown{}, err
	}
	attended, err := s.attendedSessions(ctx, p.ID)
	if err != nil {
		return Breakdown{}, err
	}
	var lecture, discussion []Session
	for _, sess := range sessions {
		if sess.Group == p.Lecture {
			lecture = append(lecture, sess)
		}
		if sess.Group == p.Discussion {
			discussion = append(discussion, sess)
		}
	}
	return Breakdown{
		Lecture:    ratio(lecture, attended),
		Discussion: ratio(discussion, attended),
		Total:      ratio(sessions, attended),
	}, nil
}

func (s *Service) attendedSessions(ctx context.Context, profileID string) (map[string]bool, error) {
	records, err := s.store.ListRecords(ctx, RecordFilter{StudentID: profileID, Status: StatusAttended})
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(records))
	for _, rec := range records {
		set[rec.SessionID] = true
	}
	return set, nil
}

func scopeGroups(p Profile, scope Scope) ([]string, error) {
	switch scope {
	case ScopeLecture:
		if p.Lecture == "" {
			return nil, nil
		}
		return []string{p.Lecture}, nil
	case ScopeDiscussion:
		if p.Discussion == "" {
			return nil, nil
		}
		return []string{p.Discussion}, nil
	case ScopeTotal:
		return p.Groups(), nil
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", ErrMalformedInput, scope)
	}
}

func ratio(sessions []Session, attended map[string]bool) float64 {
	if len(sessions) == 0 {
		return 0
	}
	hits := 0
	for _, sess := range sessions {
		if attended[sess.ID] {
			hits++
		}
	}
	return roundTo(float64(hits)/float64(len(sessions))*100, 2)
}

// ReportRow is one line of the participation report.
type ReportRow struct {
	Name       string  `json:"name"`
	Lecture    float64 `json:"lecture"`
	Discussion float64 `json:"discussion"`
	Total      float64 `json:"total"`
}

// StudentSummary pairs a student with their participation.
type StudentSummary struct {
	Profile       Profile   `json:"profile"`
	Participation Breakdown `json:"participation"`
}

// Students returns every non-instructor profile with its participation.
func (s *Service) Students(ctx context.Context) ([]StudentSummary, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]StudentSummary, 0, len(students))
	for _, p := range students {
		b, err := s.Breakdown(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("participation of %s: %w", p.ID, err)
		}
		res = append(res, StudentSummary{Profile: p, Participation: b})
	}
	return res, nil
}

// Report builds the participation report over all non-instructor profiles.
func (s *Service) Report(ctx context.Context) ([]ReportRow, error) {
	students, err := s.Students(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ReportRow, 0, len(students))
	for _, st := range students {
		rows = append(rows, ReportRow{
			Name:       st.Profile.FullName(),
			Lecture:    st.Participation.Lecture,
			Discussion: st.Participation.Discussion,
			Total:      st.Participation.Total,
		})
	}
	return rows, nil
}

// SessionAttendance is a session of the student's groups with the record
// that decides it: the first accepted one, else the first attempt.
type SessionAttendance struct {
	Session Session `json:"session"`
	Record  *Record `json:"record,omitempty"`
}

// StudentAttendance lists the sessions of a student's groups, newest first.
func (s *Service) StudentAttendance(ctx context.Context, profileID string) ([]SessionAttendance, error) {
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.IsInstructor {
		return nil, fmt.Errorf("%w: instructors have no attendance", ErrPermission)
	}
	groups := p.Groups()
	if len(groups) == 0 {
		return nil, nil
	}
	sessions, err := s.store.ListSessions(ctx, groups...)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, RecordFilter{StudentID: p.ID})
	if err != nil {
		return nil, err
	}
	first := make(map[string]Record, len(records))
	for _, rec := range records {
		prev, seen := first[rec.SessionID]
		if !seen || (prev.Status != StatusAttended && rec.Status == StatusAttended) {
			first[rec.SessionID] = rec
		}
	}
	res := make([]SessionAttendance, 0, len(sessions))
	for _, sess := range sessions {
		row := SessionAttendance{Session: sess}
		if rec, ok := first[sess.ID]; ok {
			rec := rec
			row.Record = &rec
		}
		res = append(res, row)
	}
	return res, nil
}
