package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/audit"
)

// MemoryStore keeps everything in process memory. It backs single-instance
// demo deployments (STORE_BACKEND=memory) and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	profiles map[string]Profile
	sessions map[string]Session
	records  []Record
	appeals  map[string]*memAppeal
	audit    []audit.Entry
	tokens   map[string]memToken
}

type memAppeal struct {
	Appeal
	seq int64
}

type memToken struct {
	profileID string
	expiresAt time.Time
	revoked   bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]Profile),
		sessions: make(map[string]Session),
		appeals:  make(map[string]*memAppeal),
		tokens:   make(map[string]memToken),
	}
}

// CreateProfile stores p, assigning an id when it has none. Ids are unique.
func (m *MemoryStore) CreateProfile(_ context.Context, p Profile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := m.profiles[p.ID]; exists {
		return Profile{}, fmt.Errorf("profile %s already exists", p.ID)
	}
	p.CreatedAt = time.Now().UTC()
	m.profiles[p.ID] = p
	return p, nil
}

// GetProfile returns the profile with id or ErrNotFound.
func (m *MemoryStore) GetProfile(_ context.Context, id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// ListStudents returns every non-instructor profile sorted by name.
func (m *MemoryStore) ListStudents(_ context.Context) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Profile
	for _, p := range m.profiles {
		if !p.IsInstructor {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].LastName != res[j].LastName {
			return res[i].LastName < res[j].LastName
		}
		if res[i].FirstName != res[j].FirstName {
			return res[i].FirstName < res[j].FirstName
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// CreateSession stores s, assigning an id and creation time.
func (m *MemoryStore) CreateSession(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	m.sessions[s.ID] = s
	return s, nil
}

// GetSession returns the session with id or ErrNotFound.
func (m *MemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// DeleteSession removes the session together with its records and appeals.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.SessionID != id {
			kept = append(kept, rec)
		}
	}
	m.records = kept
	for appealID, a := range m.appeals {
		if a.SessionID == id {
			delete(m.appeals, appealID)
		}
	}
	return nil
}

// ListSessions returns sessions of the given groups, or all sessions when
// none are given, newest first.
func (m *MemoryStore) ListSessions(_ context.Context, groups ...string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}
	var res []Session
	for _, s := range m.sessions {
		if len(groups) == 0 || wanted[s.Group] {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].ScheduledAt.Equal(res[j].ScheduledAt) {
			return res[i].ScheduledAt.After(res[j].ScheduledAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// SessionsBetween returns sessions scheduled in [from, to], oldest first.
func (m *MemoryStore) SessionsBetween(_ context.Context, from, to time.Time) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Session
	for _, s := range m.sessions {
		if !s.ScheduledAt.Before(from) && !s.ScheduledAt.After(to) {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].ScheduledAt.Equal(res[j].ScheduledAt) {
			return res[i].ScheduledAt.Before(res[j].ScheduledAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// InsertRecord stores rec. Its student and session must exist.
func (m *MemoryStore) InsertRecord(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRecord(rec)
}

func (m *MemoryStore) insertRecord(rec Record) (Record, error) {
	if _, ok := m.sessions[rec.SessionID]; !ok {
		return Record{}, fmt.Errorf("session %s: %w", rec.SessionID, ErrNotFound)
	}
	if _, ok := m.profiles[rec.StudentID]; !ok {
		return Record{}, fmt.Errorf("profile %s: %w", rec.StudentID, ErrNotFound)
	}
	rec = withRecordDefaults(rec)
	m.records = append(m.records, rec)
	return rec, nil
}

// ListRecords returns matching records in insertion order.
func (m *MemoryStore) ListRecords(_ context.Context, f RecordFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Record
	for _, rec := range m.records {
		if f.StudentID != "" && rec.StudentID != f.StudentID {
			continue
		}
		if f.SessionID != "" && rec.SessionID != f.SessionID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		res = append(res, rec)
	}
	return res, nil
}

// CreateAppeal stores a new appeal against an existing session.
func (m *MemoryStore) CreateAppeal(_ context.Context, a Appeal) (Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[a.SessionID]; !ok {
		return Appeal{}, fmt.Errorf("session %s: %w", a.SessionID, ErrNotFound)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AppealSubmitted
	}
	a.CreatedAt = time.Now().UTC()
	m.seq++
	m.appeals[a.ID] = &memAppeal{Appeal: a, seq: m.seq}
	return a, nil
}

// GetAppeal returns the appeal with id or ErrNotFound.
func (m *MemoryStore) GetAppeal(_ context.Context, id string) (Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appeals[id]
	if !ok {
		return Appeal{}, fmt.Errorf("appeal %s: %w", id, ErrNotFound)
	}
	return a.Appeal, nil
}

// ListAppeals returns matching appeals, newest first.
func (m *MemoryStore) ListAppeals(_ context.Context, f AppealFilter) ([]Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*memAppeal
	for _, a := range m.appeals {
		if f.StudentID != "" && a.StudentID != f.StudentID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	res := make([]Appeal, 0, len(matched))
	for _, a := range matched {
		res = append(res, a.Appeal)
	}
	return res, nil
}

// ResolveAppeal performs the status transition and the optional record
// insert under one lock, so both happen or neither does.
func (m *MemoryStore) ResolveAppeal(_ context.Context, id string, status AppealStatus, at time.Time, rec *Record) (Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appeals[id]
	if !ok {
		return Appeal{}, fmt.Errorf("appeal %s: %w", id, ErrNotFound)
	}
	if a.Status != AppealSubmitted {
		return Appeal{}, fmt.Errorf("appeal %s: %w", id, ErrAppealClosed)
	}
	if rec != nil {
		if _, err := m.insertRecord(*rec); err != nil {
			return Appeal{}, fmt.Errorf("insert override record: %w", err)
		}
	}
	resolved := at
	a.Status = status
	a.ResolvedAt = &resolved
	return a.Appeal, nil
}

// AppendAudit keeps e in memory.
func (m *MemoryStore) AppendAudit(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

// ListAudit returns the newest entries first.
func (m *MemoryStore) ListAudit(_ context.Context, limit int) ([]audit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	res := make([]audit.Entry, 0, min(limit, len(m.audit)))
	for i := len(m.audit) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, m.audit[i])
	}
	return res, nil
}

// SaveRefreshToken remembers token for profileID until expiresAt.
func (m *MemoryStore) SaveRefreshToken(_ context.Context, profileID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memToken{profileID: profileID, expiresAt: expiresAt}
	return nil
}

// ConsumeRefreshToken revokes token and reports whether it was still
// valid at now. A token is consumed at most once.
func (m *MemoryStore) ConsumeRefreshToken(_ context.Context, token string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.revoked || !t.expiresAt.After(now) {
		return false, nil
	}
	t.revoked = true
	m.tokens[token] = t
	return true, nil
}
