package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository is the postgres implementation of Repository.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const timelineQuery = `
SELECT at, actor_id, action, entity, entity_id, before_state, after_state
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR at >= $1)
  AND ($2::timestamptz IS NULL OR at <= $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
  AND ($6::text IS NULL OR entity_id = $6)
ORDER BY at DESC`

// TimelineWindow runs the paged timeline query.
func (r *PgRepository) TimelineWindow(ctx context.Context, arg WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery+` OFFSET $7 LIMIT $8`,
		arg.FromAt, arg.ToAt, arg.ActorID, arg.Entity, arg.Action, arg.EntityID,
		arg.OffsetRows, arg.LimitRows)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// TimelineAll runs the unpaged export query.
func (r *PgRepository) TimelineAll(ctx context.Context, arg AllParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery,
		arg.FromAt, arg.ToAt, arg.ActorID, arg.Entity, arg.Action, arg.EntityID)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func collectRows(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			row           TimelineRow
			before, after []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &before, &after); err != nil {
			return nil, err
		}
		if len(before) > 0 {
			_ = json.Unmarshal(before, &row.Before)
		}
		if len(after) > 0 {
			_ = json.Unmarshal(after, &row.After)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
