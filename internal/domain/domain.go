package domain

import "time"

// Roles a membership can carry. Organizers and admins may open sessions;
// any active role may submit attendance.
const (
	RoleMember    = "member"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// Attendance methods
const (
	MethodBeacon = "beacon"
)

// Session is one broadcastable attendance window. Expiry is a derived
// predicate over ExpiresAt, never a stored state flag.
type Session struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Token     string    `json:"-"`
	TokenHash uint16    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsLive reports whether the session window contains now.
func (s *Session) IsLive(now time.Time) bool {
	return !now.Before(s.CreatedAt) && now.Before(s.ExpiresAt)
}

// Organization owns sessions and memberships. Code is the small integer
// broadcast in the payload's org field; it must be unique within the
// broadcast namespace and stable for the life of the organization.
type Organization struct {
	ID        int64     `json:"id"`
	Code      uint8     `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership binds a member to an organization. Supplied by the
// authentication collaborator's storage; read-only here.
type Membership struct {
	OrgID     int64     `json:"org_id"`
	MemberID  int64     `json:"member_id"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceRecord is one member's check-in to one session. At most one
// record exists per (session, member), enforced by the storage layer at
// write time. Records are never updated or deleted by this service.
type AttendanceRecord struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	MemberID   int64     `json:"member_id"`
	OrgID      int64     `json:"org_id"`
	Method     string    `json:"method"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SubmitResult is the outcome of an attendance submission. AlreadyRecorded
// is a normal idempotent outcome, not an error.
type SubmitResult struct {
	Accepted        bool              `json:"accepted"`
	AlreadyRecorded bool              `json:"already_recorded"`
	Record          *AttendanceRecord `json:"-"`
}
