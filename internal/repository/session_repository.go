package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/beacon-service/internal/domain"
)

// SessionRepository owns the token -> session mapping. Sessions are
// addressed by id, with the token as a unique secondary index and the
// token hash indexed per org for lossy beacon lookups. Liveness is
// evaluated by callers against the stored window; nothing here mutates a
// session after insert.
type SessionRepository interface {
	Create(ctx context.Context, orgID int64, tok string, tokenHash uint16, title string, expiresAt time.Time) (*domain.Session, error)
	GetByToken(ctx context.Context, tok string) (*domain.Session, error)
	GetByID(ctx context.Context, id int64) (*domain.Session, error)
	ListLiveByOrgAndHash(ctx context.Context, orgID int64, tokenHash uint16, now time.Time) ([]domain.Session, error)
}

type sessionRepository struct{ pool *pgxpool.Pool }

func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

const sessionCols = `id, org_id, token, token_hash, title, created_at, expires_at`

func (r *sessionRepository) Create(ctx context.Context, orgID int64, tok string, tokenHash uint16, title string, expiresAt time.Time) (*domain.Session, error) {
	const q = `INSERT INTO sessions (org_id, token, token_hash, title, expires_at)
  VALUES ($1,$2,$3,$4,$5)
  RETURNING ` + sessionCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Session
	err := r.pool.QueryRow(ctx, q, orgID, tok, int32(tokenHash), title, expiresAt).Scan(
		&s.ID, &s.OrgID, &s.Token, &s.TokenHash, &s.Title, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) GetByToken(ctx context.Context, tok string) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE token=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Session
	err := r.pool.QueryRow(ctx, q, tok).Scan(
		&s.ID, &s.OrgID, &s.Token, &s.TokenHash, &s.Title, &s.CreatedAt, &s.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.OrgID, &s.Token, &s.TokenHash, &s.Title, &s.CreatedAt, &s.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) ListLiveByOrgAndHash(ctx context.Context, orgID int64, tokenHash uint16, now time.Time) ([]domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions
  WHERE org_id=$1 AND token_hash=$2 AND created_at <= $3 AND expires_at > $3
  ORDER BY created_at DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, orgID, int32(tokenHash), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ss []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID, &s.OrgID, &s.Token, &s.TokenHash, &s.Title, &s.CreatedAt, &s.ExpiresAt,
		); err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}
	return ss, rows.Err()
}

var _ SessionRepository = (*sessionRepository)(nil)
