package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/beacon-service/internal/domain"
)

// OrgRepository resolves organizations and their broadcast codes. The
// org_code column carries a unique constraint so two organizations can
// never share a code within the broadcast namespace.
type OrgRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Organization, error)
	GetByCode(ctx context.Context, code uint8) (*domain.Organization, error)
}

type orgRepository struct{ pool *pgxpool.Pool }

func NewOrgRepository(pool *pgxpool.Pool) OrgRepository {
	return &orgRepository{pool: pool}
}

const orgCols = `id, org_code, name, created_at`

func (r *orgRepository) GetByID(ctx context.Context, id int64) (*domain.Organization, error) {
	const q = `SELECT ` + orgCols + ` FROM organizations WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Organization
	err := r.pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.Code, &o.Name, &o.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orgRepository) GetByCode(ctx context.Context, code uint8) (*domain.Organization, error) {
	const q = `SELECT ` + orgCols + ` FROM organizations WHERE org_code=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Organization
	err := r.pool.QueryRow(ctx, q, int16(code)).Scan(&o.ID, &o.Code, &o.Name, &o.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

var _ OrgRepository = (*orgRepository)(nil)
