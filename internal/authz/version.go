package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// VersionStore keeps the monotonic per-user permissions version in Redis so
// every process agrees on token staleness. A token whose embedded version is
// behind the stored one is rejected and must be reissued.
type VersionStore struct {
	client *redis.Client
}

// NewVersionStore wraps the Redis client.
func NewVersionStore(client *redis.Client) *VersionStore {
	return &VersionStore{client: client}
}

func versionKey(userID int64) string {
	return fmt.Sprintf("authz:user:%d:version", userID)
}

// Current returns the user's permissions version, initialising to 1 when
// missing.
func (v *VersionStore) Current(ctx context.Context, userID int64) (int64, error) {
	ver, err := v.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := v.client.SetNX(ctx, versionKey(userID), 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("authz: init version: %w", err)
		}
		return v.client.Get(ctx, versionKey(userID)).Int64()
	}
	if err != nil {
		return 0, fmt.Errorf("authz: read version: %w", err)
	}
	return ver, nil
}

// Bump increments the user's permissions version and returns the new value.
func (v *VersionStore) Bump(ctx context.Context, userID int64) (int64, error) {
	ver, err := v.client.Incr(ctx, versionKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("authz: bump version: %w", err)
	}
	return ver, nil
}
