package service

import (
	"context"
	"sync"
	"time"

	"github.com/attendly/beacon-service/internal/domain"
)

// ---------- Mocks ----------

type mockSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*domain.Session
	byToken  map[string]int64
	err      error
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		nextID:   1,
		sessions: make(map[int64]*domain.Session),
		byToken:  make(map[string]int64),
	}
}

func (m *mockSessionRepo) Create(_ context.Context, orgID int64, tok string, tokenHash uint16, title string, expiresAt time.Time) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.Session{
		ID:        m.nextID,
		OrgID:     orgID,
		Token:     tok,
		TokenHash: tokenHash,
		Title:     title,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	m.nextID++
	m.sessions[s.ID] = s
	m.byToken[tok] = s.ID
	return s, nil
}

// add stores a prebuilt session, for tests that need full control of the
// time window.
func (m *mockSessionRepo) add(s *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.nextID
		m.nextID++
	}
	m.sessions[s.ID] = s
	m.byToken[s.Token] = s.ID
}

func (m *mockSessionRepo) GetByToken(_ context.Context, tok string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[tok]
	if !ok {
		return nil, nil
	}
	s := *m.sessions[id]
	return &s, nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id int64) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepo) ListLiveByOrgAndHash(_ context.Context, orgID int64, tokenHash uint16, now time.Time) ([]domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.OrgID == orgID && s.TokenHash == tokenHash && s.IsLive(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type pairKey struct {
	sessionID int64
	memberID  int64
}

// mockAttendanceRepo mimics the database unique constraint: the
// insert-if-absent decision happens under one lock, never as a separate
// check and write.
type mockAttendanceRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[pairKey]*domain.AttendanceRecord
	err     error
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{
		nextID:  1,
		records: make(map[pairKey]*domain.AttendanceRecord),
	}
}

func (m *mockAttendanceRepo) InsertIfAbsent(_ context.Context, sessionID, memberID, orgID int64, method string) (*domain.AttendanceRecord, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{sessionID, memberID}
	if _, exists := m.records[key]; exists {
		return nil, false, nil
	}
	rec := &domain.AttendanceRecord{
		ID:         m.nextID,
		SessionID:  sessionID,
		MemberID:   memberID,
		OrgID:      orgID,
		Method:     method,
		RecordedAt: time.Now(),
	}
	m.nextID++
	m.records[key] = rec
	return rec, true, nil
}

func (m *mockAttendanceRepo) ListBySession(_ context.Context, sessionID int64, limit, offset int) ([]domain.AttendanceRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AttendanceRecord
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type membershipKey struct {
	orgID    int64
	memberID int64
}

type mockMembershipRepo struct {
	memberships map[membershipKey]*domain.Membership
	err         error
}

func newMockMembershipRepo() *mockMembershipRepo {
	return &mockMembershipRepo{memberships: make(map[membershipKey]*domain.Membership)}
}

func (m *mockMembershipRepo) add(orgID, memberID int64, role string, active bool) {
	m.memberships[membershipKey{orgID, memberID}] = &domain.Membership{
		OrgID:    orgID,
		MemberID: memberID,
		Role:     role,
		Active:   active,
	}
}

func (m *mockMembershipRepo) Get(_ context.Context, orgID, memberID int64) (*domain.Membership, error) {
	if m.err != nil {
		return nil, m.err
	}
	mem, ok := m.memberships[membershipKey{orgID, memberID}]
	if !ok {
		return nil, nil
	}
	return mem, nil
}

type mockOrgRepo struct {
	orgs map[uint8]*domain.Organization
	err  error
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: make(map[uint8]*domain.Organization)}
}

func (m *mockOrgRepo) add(id int64, code uint8, name string) {
	m.orgs[code] = &domain.Organization{ID: id, Code: code, Name: name}
}

func (m *mockOrgRepo) GetByID(_ context.Context, id int64) (*domain.Organization, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrgRepo) GetByCode(_ context.Context, code uint8) (*domain.Organization, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orgs[code]
	if !ok {
		return nil, nil
	}
	return o, nil
}
