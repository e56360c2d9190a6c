package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/attendly/beacon-service/internal/beacon"
	"github.com/attendly/beacon-service/internal/domain"
	"github.com/attendly/beacon-service/internal/handlers"
	"github.com/attendly/beacon-service/internal/service"
	"github.com/attendly/beacon-service/pkg/auth"
)

const testSecret = "test-secret"

// ---------- Mocks ----------

type mockSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*domain.Session
	byToken  map[string]int64
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		nextID:   1,
		sessions: make(map[int64]*domain.Session),
		byToken:  make(map[string]int64),
	}
}

func (m *mockSessionRepo) Create(_ context.Context, orgID int64, tok string, tokenHash uint16, title string, expiresAt time.Time) (*domain.Session, error) {
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

func (m *mockSessionRepo) GetByToken(_ context.Context, tok string) (*domain.Session, error) {
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

type pairKey struct{ sessionID, memberID int64 }

type mockAttendanceRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[pairKey]*domain.AttendanceRecord
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{nextID: 1, records: make(map[pairKey]*domain.AttendanceRecord)}
}

func (m *mockAttendanceRepo) InsertIfAbsent(_ context.Context, sessionID, memberID, orgID int64, method string) (*domain.AttendanceRecord, bool, error) {
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

type membershipKey struct{ orgID, memberID int64 }

type mockMembershipRepo struct {
	memberships map[membershipKey]*domain.Membership
}

func newMockMembershipRepo() *mockMembershipRepo {
	return &mockMembershipRepo{memberships: make(map[membershipKey]*domain.Membership)}
}

func (m *mockMembershipRepo) add(orgID, memberID int64, role string) {
	m.memberships[membershipKey{orgID, memberID}] = &domain.Membership{
		OrgID: orgID, MemberID: memberID, Role: role, Active: true,
	}
}

func (m *mockMembershipRepo) Get(_ context.Context, orgID, memberID int64) (*domain.Membership, error) {
	mem, ok := m.memberships[membershipKey{orgID, memberID}]
	if !ok {
		return nil, nil
	}
	return mem, nil
}

type mockOrgRepo struct {
	orgs map[uint8]*domain.Organization
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: make(map[uint8]*domain.Organization)}
}

func (m *mockOrgRepo) add(id int64, code uint8, name string) {
	m.orgs[code] = &domain.Organization{ID: id, Code: code, Name: name}
}

func (m *mockOrgRepo) GetByID(_ context.Context, id int64) (*domain.Organization, error) {
	for _, o := range m.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrgRepo) GetByCode(_ context.Context, code uint8) (*domain.Organization, error) {
	o, ok := m.orgs[code]
	if !ok {
		return nil, nil
	}
	return o, nil
}

// ---------- Fixture ----------

type fixture struct {
	router      *chi.Mux
	memberships *mockMembershipRepo
	orgs        *mockOrgRepo
}

func newFixture() *fixture {
	sessions := newMockSessionRepo()
	attendance := newMockAttendanceRepo()
	memberships := newMockMembershipRepo()
	orgs := newMockOrgRepo()

	sessionService := service.NewSessionService(sessions, orgs, memberships, attendance, nil)
	attendanceService := service.NewAttendanceService(sessions, orgs, memberships, attendance, nil, nil)
	h := handlers.New(sessionService, attendanceService, testSecret)

	r := chi.NewRouter()
	r.Route("/", func(r chi.Router) {
		r.Use(h.RequireJWT)
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/resolve", h.ResolveSession)
		r.Get("/sessions/{id}/attendance", h.ListSessionAttendance)
		r.Post("/attendance", h.SubmitAttendance)
		r.Get("/orgs/{code}", h.GetOrg)
	})

	return &fixture{router: r, memberships: memberships, orgs: orgs}
}

func bearer(t *testing.T, memberID int64, role string) string {
	t.Helper()
	tok, err := auth.NewAccessToken(memberID, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + tok
}

func doJSON(t *testing.T, router http.Handler, method, path, authHeader string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// ---------- Tests ----------

func TestEndToEndScenario(t *testing.T) {
	f := newFixture()
	f.orgs.add(1, 7, "Chess Club")
	f.memberships.add(1, 100, domain.RoleOrganizer)
	f.memberships.add(1, 200, domain.RoleMember)

	// Organizer opens a one-hour window.
	rec := doJSON(t, f.router, "POST", "/sessions", bearer(t, 100, "organizer"), map[string]interface{}{
		"org_id":      1,
		"title":       "Friday Meetup",
		"ttl_seconds": 3600,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		SessionID int64     `json:"session_id"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Token == "" || created.SessionID == 0 {
		t.Fatalf("incomplete create response: %+v", created)
	}

	// A member's device decodes the broadcast payload and resolves it.
	p := beacon.Encode(7, created.Token)
	path := fmt.Sprintf("/sessions/resolve?org_code=%d&hash=%d", p.OrgCode, p.TokenHash)
	rec = doJSON(t, f.router, "GET", path, bearer(t, 200, "member"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resolved struct {
		Candidates []struct {
			SessionID int64 `json:"session_id"`
			OrgID     int64 `json:"org_id"`
			IsLive    bool  `json:"is_live"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decode resolve response: %v", err)
	}
	if len(resolved.Candidates) != 1 || resolved.Candidates[0].SessionID != created.SessionID {
		t.Fatalf("expected exactly the created session, got %+v", resolved.Candidates)
	}

	// First submission records, the second is idempotent.
	submit := map[string]interface{}{"session_id": created.SessionID}
	rec = doJSON(t, f.router, "POST", "/attendance", bearer(t, 200, "member"), submit)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d, body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Accepted        bool `json:"accepted"`
		AlreadyRecorded bool `json:"already_recorded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if !result.Accepted || result.AlreadyRecorded {
		t.Fatalf("first submit: %+v", result)
	}

	rec = doJSON(t, f.router, "POST", "/attendance", bearer(t, 200, "member"), submit)
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode second submit response: %v", err)
	}
	if !result.Accepted || !result.AlreadyRecorded {
		t.Fatalf("second submit: %+v", result)
	}

	// Organizer reads the roster.
	rec = doJSON(t, f.router, "GET", fmt.Sprintf("/sessions/%d/attendance", created.SessionID), bearer(t, 100, "organizer"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("roster: status %d, body %s", rec.Code, rec.Body.String())
	}
	var roster struct {
		Records []domain.AttendanceRecord `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster.Records) != 1 || roster.Records[0].MemberID != 200 {
		t.Fatalf("roster: %+v", roster.Records)
	}
}

func TestCreateSessionForbiddenForMembers(t *testing.T) {
	f := newFixture()
	f.orgs.add(1, 7, "Chess Club")
	f.memberships.add(1, 200, domain.RoleMember)

	rec := doJSON(t, f.router, "POST", "/sessions", bearer(t, 200, "member"), map[string]interface{}{
		"org_id":      1,
		"title":       "Sneaky",
		"ttl_seconds": 3600,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequiresAuthentication(t *testing.T) {
	f := newFixture()

	for _, path := range []string{"/sessions/resolve?token=A1b2C3d4E5f6", "/orgs/7"} {
		rec := doJSON(t, f.router, "GET", path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, rec.Code)
		}
	}

	rec := doJSON(t, f.router, "POST", "/attendance", "Bearer not-a-jwt", map[string]interface{}{"session_id": 1})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}
}

func TestResolveUnknownBeaconIsNotFound(t *testing.T) {
	f := newFixture()
	f.orgs.add(1, 7, "Chess Club")
	f.memberships.add(1, 200, domain.RoleMember)

	rec := doJSON(t, f.router, "GET", "/sessions/resolve?org_code=7&hash=1234", bearer(t, 200, "member"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("no live candidates: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, f.router, "GET", "/sessions/resolve?org_code=250&hash=1234", bearer(t, 200, "member"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown org: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, f.router, "GET", "/sessions/resolve", bearer(t, 200, "member"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query: expected 400, got %d", rec.Code)
	}
}
