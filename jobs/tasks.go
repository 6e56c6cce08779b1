package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzWarmup pre-resolves permission sets for active users.
	TaskAuthzWarmup = "authz:warmup"
	// TaskAuditRetention prunes audit rows past the retention window.
	TaskAuditRetention = "audit:retention"
	// TaskSessionSweep removes expired session records.
	TaskSessionSweep = "sessions:sweep"
)

// AuthzWarmupPayload bounds the warmup scan.
type AuthzWarmupPayload struct {
	// MaxUsers caps how many accounts one run resolves; 0 means all.
	MaxUsers int `json:"maxUsers"`
}

// AuditRetentionPayload overrides the configured retention window.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewAuthzWarmupTask constructs a warmup task.
func NewAuthzWarmupTask(payload AuthzWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzWarmup, data), nil
}

// NewAuditRetentionTask constructs a retention task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewSessionSweepTask constructs a session sweep task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}
