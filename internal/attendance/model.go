package attendance

import (
	"fmt"
	"time"
)

// Status is the outcome stored on an attendance record.
type Status string

const (
	StatusAttended  Status = "attended"
	StatusSubmitted Status = "submitted"
)

// Source tells how an attendance record came to exist.
type Source string

const (
	SourceSubmission Source = "submission"
	SourceAppeal     Source = "appeal"
)

// AppealStatus is the state of an appeal. submitted is the only non-terminal state.
type AppealStatus string

const (
	AppealSubmitted AppealStatus = "submitted"
	AppealApproved  AppealStatus = "approved"
	AppealRejected  AppealStatus = "rejected"
)

// Valid reports whether s is a known appeal status.
func (s AppealStatus) Valid() bool {
	return s == AppealSubmitted || s == AppealApproved || s == AppealRejected
}

// Scope selects which sessions count towards participation.
type Scope string

const (
	ScopeLecture    Scope = "lecture"
	ScopeDiscussion Scope = "discussion"
	ScopeTotal      Scope = "total"
)

// Profile is a course member, linked one-to-one with an authenticated principal.
type Profile struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	IsInstructor bool      `json:"is_instructor"`
	Lecture      string    `json:"lecture"`
	Discussion   string    `json:"discussion"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName is the display name used in reports.
func (p Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

func (p Profile) String() string {
	role := "Student"
	if p.IsInstructor {
		role = "Instructor"
	}
	return fmt.Sprintf("%s %s", role, p.FullName())
}

// Groups returns the distinct session groups the profile belongs to.
func (p Profile) Groups() []string {
	var groups []string
	if p.Lecture != "" {
		groups = append(groups, p.Lecture)
	}
	if p.Discussion != "" && p.Discussion != p.Lecture {
		groups = append(groups, p.Discussion)
	}
	return groups
}

// InGroup reports whether the profile is assigned to group.
func (p Profile) InGroup(group string) bool {
	return group != "" && (group == p.Lecture || group == p.Discussion)
}

// Session is one scheduled class meeting. It never changes after creation.
type Session struct {
	ID          string    `json:"id"`
	Group       string    `json:"group"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Answer      string    `json:"-"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s Session) String() string {
	return fmt.Sprintf("%s at %s", s.Group, s.ScheduledAt.Format(time.RFC3339))
}

// Record is one attendance attempt and its outcome.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	SessionID   string    `json:"session_id"`
	Answer      string    `json:"answer"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      Status    `json:"status"`
	Source      Source    `json:"source"`
	AppealID    string    `json:"appeal_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Appeal is a student's request to override a failed attempt.
type Appeal struct {
	ID         string       `json:"id"`
	StudentID  string       `json:"student_id"`
	SessionID  string       `json:"session_id"`
	Reason     string       `json:"reason"`
	Status     AppealStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

// RecordFilter narrows ListRecords. Empty fields match everything.
type RecordFilter struct {
	StudentID string
	SessionID string
	Status    Status
}

// AppealFilter narrows ListAppeals. Empty fields match everything.
type AppealFilter struct {
	StudentID string
	Status    AppealStatus
}
