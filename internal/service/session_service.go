package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attendly/beacon-service/internal/authz"
	"github.com/attendly/beacon-service/internal/beacon"
	"github.com/attendly/beacon-service/internal/domain"
	"github.com/attendly/beacon-service/internal/repository"
	"github.com/attendly/beacon-service/internal/token"
	"github.com/attendly/beacon-service/pkg/events"
	"github.com/attendly/beacon-service/pkg/logger"
)

const maxTitleLen = 200

// SessionService is the session registry plus the resolution paths over
// it: exact by token, lossy by (org code, token hash).
type SessionService interface {
	Create(ctx context.Context, callerID, orgID int64, title string, ttl time.Duration) (*domain.Session, error)
	ResolveByToken(ctx context.Context, tok string) (*domain.Session, error)
	ResolveByOrgAndHash(ctx context.Context, orgCode uint8, tokenHash uint16) ([]domain.Session, error)
	GetOrgByCode(ctx context.Context, orgCode uint8) (*domain.Organization, error)
	ListAttendance(ctx context.Context, callerID, sessionID int64, limit, offset int) ([]domain.AttendanceRecord, error)
}

type sessionService struct {
	sessions    repository.SessionRepository
	orgs        repository.OrgRepository
	memberships repository.MembershipRepository
	attendance  repository.AttendanceRepository
	eventBus    events.Publisher
	now         func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	orgs repository.OrgRepository,
	memberships repository.MembershipRepository,
	attendance repository.AttendanceRepository,
	eventBus events.Publisher,
) SessionService {
	return &sessionService{
		sessions:    sessions,
		orgs:        orgs,
		memberships: memberships,
		attendance:  attendance,
		eventBus:    eventBus,
		now:         time.Now,
	}
}

func (s *sessionService) Create(ctx context.Context, callerID, orgID int64, title string, ttl time.Duration) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title required", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidInput)
	}

	m, err := s.memberships.Get(ctx, orgID, callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", domain.ErrUnavailable, err)
	}
	if !authz.CanCreateSession(m, orgID) {
		return nil, domain.ErrForbidden
	}

	tok, err := token.Generate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess, err := s.sessions.Create(ctx, orgID, tok, beacon.HashToken(tok), title, now.Add(ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", domain.ErrUnavailable, err)
	}

	if s.eventBus != nil {
		event := events.SessionCreatedEvent{
			SessionID: sess.ID,
			OrgID:     sess.OrgID,
			Title:     sess.Title,
			ExpiresAt: sess.ExpiresAt,
			CreatedAt: sess.CreatedAt,
		}
		if err := s.eventBus.Publish(ctx, events.SessionCreated, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish session created event", "error", err, "session_id", sess.ID)
		}
	}

	return sess, nil
}

func (s *sessionService) ResolveByToken(ctx context.Context, tok string) (*domain.Session, error) {
	if !token.Valid(tok) {
		return nil, fmt.Errorf("%w: malformed token", domain.ErrInvalidInput)
	}

	sess, err := s.sessions.GetByToken(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %v", domain.ErrUnavailable, err)
	}
	// Expired sessions resolve exactly like unknown ones.
	if sess == nil || !sess.IsLive(s.now()) {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *sessionService) ResolveByOrgAndHash(ctx context.Context, orgCode uint8, tokenHash uint16) ([]domain.Session, error) {
	org, err := s.orgs.GetByCode(ctx, orgCode)
	if err != nil {
		return nil, fmt.Errorf("%w: org lookup: %v", domain.ErrUnavailable, err)
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	candidates, err := s.sessions.ListLiveByOrgAndHash(ctx, org.ID, tokenHash, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: candidate lookup: %v", domain.ErrUnavailable, err)
	}
	return candidates, nil
}

func (s *sessionService) GetOrgByCode(ctx context.Context, orgCode uint8) (*domain.Organization, error) {
	org, err := s.orgs.GetByCode(ctx, orgCode)
	if err != nil {
		return nil, fmt.Errorf("%w: org lookup: %v", domain.ErrUnavailable, err)
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *sessionService) ListAttendance(ctx context.Context, callerID, sessionID int64, limit, offset int) ([]domain.AttendanceRecord, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %v", domain.ErrUnavailable, err)
	}
	if sess == nil {
		return nil, domain.ErrNotFound
	}

	m, err := s.memberships.Get(ctx, sess.OrgID, callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", domain.ErrUnavailable, err)
	}
	// Only session owners' organizers may read the roster.
	if !authz.CanCreateSession(m, sess.OrgID) {
		return nil, domain.ErrForbidden
	}

	recs, err := s.attendance.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: attendance lookup: %v", domain.ErrUnavailable, err)
	}
	return recs, nil
}

var _ SessionService = (*sessionService)(nil)
