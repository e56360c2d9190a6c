package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/beacon-service/internal/domain"
)

// AttendanceRepository persists check-ins. The (session_id, member_id)
// uniqueness lives in the database as a constraint checked at write time;
// InsertIfAbsent is the only write path and must stay a single statement
// so concurrent submissions cannot race into two records.
type AttendanceRepository interface {
	// InsertIfAbsent records attendance unless a record for the pair
	// already exists. Returns (record, true) on a fresh insert and
	// (nil, false) when the pair was already recorded.
	InsertIfAbsent(ctx context.Context, sessionID, memberID, orgID int64, method string) (*domain.AttendanceRecord, bool, error)
	ListBySession(ctx context.Context, sessionID int64, limit, offset int) ([]domain.AttendanceRecord, error)
}

type attendanceRepository struct{ pool *pgxpool.Pool }

func NewAttendanceRepository(pool *pgxpool.Pool) AttendanceRepository {
	return &attendanceRepository{pool: pool}
}

const attendanceCols = `id, session_id, member_id, org_id, method, recorded_at`

func (r *attendanceRepository) InsertIfAbsent(ctx context.Context, sessionID, memberID, orgID int64, method string) (*domain.AttendanceRecord, bool, error) {
	const q = `INSERT INTO attendance_records (session_id, member_id, org_id, method)
  VALUES ($1,$2,$3,$4)
  ON CONFLICT (session_id, member_id) DO NOTHING
  RETURNING ` + attendanceCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rec domain.AttendanceRecord
	err := r.pool.QueryRow(ctx, q, sessionID, memberID, orgID, method).Scan(
		&rec.ID, &rec.SessionID, &rec.MemberID, &rec.OrgID, &rec.Method, &rec.RecordedAt,
	)
	if err == pgx.ErrNoRows {
		// Conflict path: the pair is already recorded.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (r *attendanceRepository) ListBySession(ctx context.Context, sessionID int64, limit, offset int) ([]domain.AttendanceRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + attendanceCols + ` FROM attendance_records
  WHERE session_id=$1 ORDER BY recorded_at ASC LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]domain.AttendanceRecord, 0, limit)
	for rows.Next() {
		var rec domain.AttendanceRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.MemberID, &rec.OrgID, &rec.Method, &rec.RecordedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

var _ AttendanceRepository = (*attendanceRepository)(nil)
