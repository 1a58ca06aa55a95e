package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/audit"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const (
	profileColumns = `id, first_name, last_name, email, is_instructor, lecture, discussion, created_at`
	sessionColumns = `id, group_name, scheduled_at, answer, latitude, longitude, created_at`
	recordColumns  = `id, student_id, session_id, answer, latitude, longitude, status, source, appeal_id, submitted_at`
	appealColumns  = `id, student_id, session_id, reason, status, created_at, resolved_at`
)

// CreateProfile inserts a profile.
func (r *Repository) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, first_name, last_name, email, is_instructor, lecture, discussion)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, p.ID, p.FirstName, p.LastName, p.Email, p.IsInstructor, p.Lecture, p.Discussion)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// GetProfile returns a single profile by id.
func (r *Repository) GetProfile(ctx context.Context, id string) (Profile, error) {
	if !validID(id) {
		return Profile{}, fmt.Errorf("profile %q: %w", id, ErrNotFound)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListStudents returns every non-instructor profile.
func (r *Repository) ListStudents(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE NOT is_instructor
		ORDER BY last_name, first_name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CreateSession inserts a class session.
func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO class_sessions (id, group_name, scheduled_at, answer, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, s.ID, s.Group, s.ScheduledAt, s.Answer, s.Latitude, s.Longitude)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// GetSession returns a single session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	if !validID(id) {
		return Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM class_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, err
}

// DeleteSession removes a session; its records and appeals cascade.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSessions returns sessions of the given groups, newest first.
func (r *Repository) ListSessions(ctx context.Context, groups ...string) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions`
	var args []any
	if len(groups) > 0 {
		query += ` WHERE group_name = ANY($1)`
		args = append(args, groups)
	}
	query += ` ORDER BY scheduled_at DESC`
	return r.querySessions(ctx, query, args...)
}

// SessionsBetween returns sessions scheduled in [from, to], oldest first.
func (r *Repository) SessionsBetween(ctx context.Context, from, to time.Time) ([]Session, error) {
	return r.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM class_sessions
		WHERE scheduled_at >= $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
	`, from, to)
}

func (r *Repository) querySessions(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// InsertRecord writes a new attendance record.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	return insertRecord(ctx, r.db, rec)
}

func insertRecord(ctx context.Context, q queryer, rec Record) (Record, error) {
	rec = withRecordDefaults(rec)
	row := q.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, session_id, answer, latitude, longitude, status, source, appeal_id, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, rec.ID, rec.StudentID, rec.SessionID, rec.Answer, rec.Latitude, rec.Longitude, rec.Status, rec.Source, nullable(rec.AppealID), rec.SubmittedAt)
	if err := row.Scan(&rec.ID); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListRecords returns records with basic filters, oldest first.
func (r *Repository) ListRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	w := where{}
	if f.StudentID != "" {
		if !validID(f.StudentID) {
			return nil, nil
		}
		w.add("student_id", f.StudentID)
	}
	if f.SessionID != "" {
		if !validID(f.SessionID) {
			return nil, nil
		}
		w.add("session_id", f.SessionID)
	}
	if f.Status != "" {
		w.add("status", string(f.Status))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM attendance_records`+w.sql()+` ORDER BY submitted_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CreateAppeal inserts an appeal.
func (r *Repository) CreateAppeal(ctx context.Context, a Appeal) (Appeal, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AppealSubmitted
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO appeals (id, student_id, session_id, reason, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, a.ID, a.StudentID, a.SessionID, a.Reason, a.Status)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Appeal{}, err
	}
	return a, nil
}

// GetAppeal returns a single appeal by id.
func (r *Repository) GetAppeal(ctx context.Context, id string) (Appeal, error) {
	return getAppeal(ctx, r.db, id)
}

func getAppeal(ctx context.Context, q queryer, id string) (Appeal, error) {
	if !validID(id) {
		return Appeal{}, fmt.Errorf("appeal %q: %w", id, ErrNotFound)
	}
	row := q.QueryRowContext(ctx, `SELECT `+appealColumns+` FROM appeals WHERE id = $1`, id)
	a, err := scanAppeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Appeal{}, fmt.Errorf("appeal %s: %w", id, ErrNotFound)
	}
	return a, err
}

// ListAppeals returns appeals with basic filters, newest first.
func (r *Repository) ListAppeals(ctx context.Context, f AppealFilter) ([]Appeal, error) {
	w := where{}
	if f.StudentID != "" {
		if !validID(f.StudentID) {
			return nil, nil
		}
		w.add("student_id", f.StudentID)
	}
	if f.Status != "" {
		w.add("status", string(f.Status))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+appealColumns+` FROM appeals`+w.sql()+` ORDER BY created_at DESC, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Appeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ResolveAppeal closes a submitted appeal and optionally inserts the
// override record, both in one transaction.
func (r *Repository) ResolveAppeal(ctx context.Context, id string, status AppealStatus, at time.Time, rec *Record) (Appeal, error) {
	if !validID(id) {
		return Appeal{}, fmt.Errorf("appeal %q: %w", id, ErrNotFound)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Appeal{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE appeals SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+appealColumns, id, status, at, AppealSubmitted)
	a, err := scanAppeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := getAppeal(ctx, tx, id); getErr != nil {
			return Appeal{}, getErr
		}
		return Appeal{}, fmt.Errorf("appeal %s: %w", id, ErrAppealClosed)
	}
	if err != nil {
		return Appeal{}, err
	}

	if rec != nil {
		if _, err := insertRecord(ctx, tx, *rec); err != nil {
			return Appeal{}, fmt.Errorf("insert override record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Appeal{}, err
	}
	return a, nil
}

// AppendAudit stores one audit entry.
func (r *Repository) AppendAudit(ctx context.Context, e audit.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_audit (kind, student_id, session_id, appeal_id, status, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.Kind, e.StudentID, e.SessionID, e.AppealID, e.Status, e.OccurredAt)
	return err
}

// ListAudit returns the most recent audit entries first.
func (r *Repository) ListAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, student_id, session_id, appeal_id, status, occurred_at
		FROM attendance_audit
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.Kind, &e.StudentID, &e.SessionID, &e.AppealID, &e.Status, &e.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, profileID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (profile_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, profileID, token, expiresAt)
	return err
}

// ConsumeRefreshToken revokes a live token; false means it was unknown, expired or already used.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND NOT revoked AND expires_at > $2
	`, token, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func scanProfile(row scanner) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.IsInstructor, &p.Lecture, &p.Discussion, &p.CreatedAt)
	return p, err
}

func scanSession(row scanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Group, &s.ScheduledAt, &s.Answer, &s.Latitude, &s.Longitude, &s.CreatedAt)
	return s, err
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var appealID sql.NullString
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.SessionID, &rec.Answer, &rec.Latitude, &rec.Longitude, &rec.Status, &rec.Source, &appealID, &rec.SubmittedAt)
	rec.AppealID = appealID.String
	return rec, err
}

func scanAppeal(row scanner) (Appeal, error) {
	var a Appeal
	err := row.Scan(&a.ID, &a.StudentID, &a.SessionID, &a.Reason, &a.Status, &a.CreatedAt, &a.ResolvedAt)
	return a, err
}

// where accumulates equality clauses with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(column string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
