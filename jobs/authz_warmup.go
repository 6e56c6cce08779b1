package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vesta-hotels/vesta/internal/authz"
)

// AuthzWarmupJob pre-resolves permission sets for recently active users so
// the first authorization check after a deploy does not pay the snapshot
// load.
type AuthzWarmupJob struct {
	Cache  *authz.Cache
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAuthzWarmupJob wires dependencies for the warmup handler.
func NewAuthzWarmupJob(cache *authz.Cache, pool *pgxpool.Pool, logger *slog.Logger) *AuthzWarmupJob {
	return &AuthzWarmupJob{
		Cache:  cache,
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes authz warmup tasks.
func (j *AuthzWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("authz warmup: handler not configured")
	}
	var payload AuthzWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	start := j.now()
	logger.Info("starting authz warmup")

	userIDs, err := j.fetchActiveUsers(ctx, payload.MaxUsers)
	if err != nil {
		logger.Error("load active users", slog.Any("error", err))
		return err
	}

	warmed := 0
	for _, id := range userIDs {
		// Each user gets its own timeout so one slow snapshot does not
		// stall the whole run.
		userCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := j.Cache.Get(userCtx, id)
		cancel()
		if err != nil {
			logger.Warn("warm user", slog.Int64("user_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("completed authz warmup",
		slog.Int("users", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *AuthzWarmupJob) fetchActiveUsers(ctx context.Context, max int) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("authz warmup: pool not configured")
	}
	query := `SELECT DISTINCT user_id FROM sessions WHERE expires_at > NOW() ORDER BY user_id`
	args := []any{}
	if max > 0 {
		query += ` LIMIT $1`
		args = append(args, max)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *AuthzWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAuthzWarmup))
}

func (j *AuthzWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
