package service

import (
	"context"
	"fmt"
	"time"

	"github.com/attendly/beacon-service/internal/authz"
	"github.com/attendly/beacon-service/internal/domain"
	"github.com/attendly/beacon-service/internal/repository"
	"github.com/attendly/beacon-service/internal/token"
	"github.com/attendly/beacon-service/pkg/events"
	"github.com/attendly/beacon-service/pkg/logger"
)

// SubmitRef names the session a member is checking in to. Exactly one
// form is used: the full token, an explicit session id, or the lossy
// beacon pair (org code + token hash).
type SubmitRef struct {
	Token     string
	SessionID int64
	OrgCode   uint8
	TokenHash uint16
	ByBeacon  bool
}

// AttendanceService is the arbiter: it resolves the reference, applies
// the authorization guard, and records attendance at most once per
// (session, member) via the storage layer's atomic insert.
type AttendanceService interface {
	Submit(ctx context.Context, memberID int64, ref SubmitRef) (*domain.SubmitResult, error)
}

type attendanceService struct {
	sessions    repository.SessionRepository
	orgs        repository.OrgRepository
	memberships repository.MembershipRepository
	attendance  repository.AttendanceRepository
	throttle    repository.DetectionThrottle
	eventBus    events.Publisher
	now         func() time.Time
}

func NewAttendanceService(
	sessions repository.SessionRepository,
	orgs repository.OrgRepository,
	memberships repository.MembershipRepository,
	attendance repository.AttendanceRepository,
	throttle repository.DetectionThrottle,
	eventBus events.Publisher,
) AttendanceService {
	return &attendanceService{
		sessions:    sessions,
		orgs:        orgs,
		memberships: memberships,
		attendance:  attendance,
		throttle:    throttle,
		eventBus:    eventBus,
		now:         time.Now,
	}
}

func (s *attendanceService) Submit(ctx context.Context, memberID int64, ref SubmitRef) (*domain.SubmitResult, error) {
	sess, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsLive(s.now()) {
		return nil, domain.ErrNotFound
	}

	m, err := s.memberships.Get(ctx, sess.OrgID, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", domain.ErrUnavailable, err)
	}
	if !authz.CanSubmitAttendance(m, sess) {
		return nil, domain.ErrForbidden
	}

	// Advisory fast path for detection bursts. Only consulted after the
	// guard so a throttled caller leaks nothing, and only trusted because
	// Mark runs after a durable outcome below.
	if s.throttle != nil {
		if seen, err := s.throttle.Seen(ctx, sess.ID, memberID); err != nil {
			logger.DebugContext(ctx, "Detection throttle unavailable", "error", err)
		} else if seen {
			return &domain.SubmitResult{Accepted: true, AlreadyRecorded: true}, nil
		}
	}

	rec, inserted, err := s.attendance.InsertIfAbsent(ctx, sess.ID, memberID, sess.OrgID, domain.MethodBeacon)
	if err != nil {
		return nil, fmt.Errorf("%w: record attendance: %v", domain.ErrUnavailable, err)
	}

	if s.throttle != nil {
		if err := s.throttle.Mark(ctx, sess.ID, memberID); err != nil {
			logger.DebugContext(ctx, "Detection throttle unavailable", "error", err)
		}
	}

	if !inserted {
		return &domain.SubmitResult{Accepted: true, AlreadyRecorded: true}, nil
	}

	if s.eventBus != nil {
		event := events.AttendanceRecordedEvent{
			SessionID:  rec.SessionID,
			MemberID:   rec.MemberID,
			OrgID:      rec.OrgID,
			Method:     rec.Method,
			RecordedAt: rec.RecordedAt,
		}
		if err := s.eventBus.Publish(ctx, events.AttendanceRecorded, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish attendance recorded event", "error", err, "session_id", rec.SessionID)
		}
	}

	return &domain.SubmitResult{Accepted: true, AlreadyRecorded: false, Record: rec}, nil
}

func (s *attendanceService) resolveRef(ctx context.Context, ref SubmitRef) (*domain.Session, error) {
	switch {
	case ref.Token != "":
		if !token.Valid(ref.Token) {
			return nil, fmt.Errorf("%w: malformed token", domain.ErrInvalidInput)
		}
		sess, err := s.sessions.GetByToken(ctx, ref.Token)
		if err != nil {
			return nil, fmt.Errorf("%w: session lookup: %v", domain.ErrUnavailable, err)
		}
		return sess, nil

	case ref.SessionID > 0:
		sess, err := s.sessions.GetByID(ctx, ref.SessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: session lookup: %v", domain.ErrUnavailable, err)
		}
		return sess, nil

	case ref.ByBeacon:
		org, err := s.orgs.GetByCode(ctx, ref.OrgCode)
		if err != nil {
			return nil, fmt.Errorf("%w: org lookup: %v", domain.ErrUnavailable, err)
		}
		if org == nil {
			return nil, domain.ErrNotFound
		}
		candidates, err := s.sessions.ListLiveByOrgAndHash(ctx, org.ID, ref.TokenHash, s.now())
		if err != nil {
			return nil, fmt.Errorf("%w: candidate lookup: %v", domain.ErrUnavailable, err)
		}
		switch len(candidates) {
		case 0:
			return nil, domain.ErrNotFound
		case 1:
			return &candidates[0], nil
		default:
			// Colliding live tokens: never pick one silently.
			return nil, domain.ErrAmbiguous
		}

	default:
		return nil, fmt.Errorf("%w: session reference required", domain.ErrInvalidInput)
	}
}

var _ AttendanceService = (*attendanceService)(nil)
