// Package authz evaluates membership predicates. Pure functions, no I/O,
// no side effects; any missing or ambiguous fact denies.
package authz

import "github.com/attendly/beacon-service/internal/domain"

// CanCreateSession reports whether m permits opening an attendance session
// in orgID. Requires an active organizer or admin membership in that org.
func CanCreateSession(m *domain.Membership, orgID int64) bool {
	if m == nil || !m.Active || m.OrgID != orgID {
		return false
	}
	return m.Role == domain.RoleOrganizer || m.Role == domain.RoleAdmin
}

// CanSubmitAttendance reports whether m permits checking in to s. Any
// active membership in the session's organization qualifies.
func CanSubmitAttendance(m *domain.Membership, s *domain.Session) bool {
	if m == nil || s == nil || !m.Active {
		return false
	}
	return m.OrgID == s.OrgID
}
