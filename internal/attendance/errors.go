package attendance

import "errors"

var (
	ErrInvalidGroup         = errors.New("unknown session group")
	ErrInvalidDate          = errors.New("invalid session date")
	ErrNotFound             = errors.New("not found")
	ErrPermission           = errors.New("permission denied")
	ErrMalformedInput       = errors.New("malformed input")
	ErrOutsideWindow        = errors.New("submission outside the attendance window")
	ErrNotEnrolled          = errors.New("student is not assigned to this session's group")
	ErrNoActiveSession      = errors.New("no class is happening right now")
	ErrAlreadySubmitted     = errors.New("attendance already submitted for this session")
	ErrAlreadyAttended      = errors.New("attendance already recorded for this session")
	ErrAppealClosed         = errors.New("appeal already resolved")
	ErrAppealTooEarly       = errors.New("session has not opened yet")
	ErrSubmissionInProgress = errors.New("another submission for this session is in progress")
)
