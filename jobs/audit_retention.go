package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRetentionJob prunes audit rows older than the retention window.
type AuditRetentionJob struct {
	Pool      *pgxpool.Pool
	Retention time.Duration
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(pool *pgxpool.Pool, retention time.Duration, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{
		Pool:      pool,
		Retention: retention,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes audit retention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}

	cutoff := j.now().Add(-retention)
	logger := j.logger()

	tag, err := j.Pool.Exec(ctx, `DELETE FROM audit_logs WHERE at < $1`, cutoff)
	if err != nil {
		logger.Error("prune audit logs", slog.Any("error", err))
		return err
	}

	logger.Info("pruned audit logs",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return nil
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRetention))
	}
	return slog.Default().With(slog.String("job", TaskAuditRetention))
}

func (j *AuditRetentionJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
