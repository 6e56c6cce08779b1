package jobs

import (
	"context"
	"errors"

	"log/slog"

	"github.com/hibiken/asynq"
)

// SessionStore deletes expired session rows.
type SessionStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweepJob removes expired session records from the store.
type SessionSweepJob struct {
	Store  SessionStore
	Logger *slog.Logger
}

// NewSessionSweepJob wires dependencies for the sweep handler.
func NewSessionSweepJob(store SessionStore, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{Store: store, Logger: logger}
}

// Handle processes session sweep tasks.
func (j *SessionSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("session sweep: handler not configured")
	}
	deleted, err := j.Store.DeleteExpired(ctx)
	if err != nil {
		j.logger().Error("sweep sessions", slog.Any("error", err))
		return err
	}
	j.logger().Info("swept expired sessions", slog.Int64("deleted", deleted))
	return nil
}

func (j *SessionSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionSweep))
	}
	return slog.Default().With(slog.String("job", TaskSessionSweep))
}
