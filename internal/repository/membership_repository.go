package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/beacon-service/internal/domain"
)

// MembershipRepository reads membership facts maintained by the external
// authentication subsystem. Read-only from this service's perspective.
type MembershipRepository interface {
	Get(ctx context.Context, orgID, memberID int64) (*domain.Membership, error)
}

type membershipRepository struct{ pool *pgxpool.Pool }

func NewMembershipRepository(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepository{pool: pool}
}

func (r *membershipRepository) Get(ctx context.Context, orgID, memberID int64) (*domain.Membership, error) {
	const q = `SELECT org_id, member_id, role, active, created_at
  FROM memberships WHERE org_id=$1 AND member_id=$2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.Membership
	err := r.pool.QueryRow(ctx, q, orgID, memberID).Scan(
		&m.OrgID, &m.MemberID, &m.Role, &m.Active, &m.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

var _ MembershipRepository = (*membershipRepository)(nil)
