package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SnapshotSource fetches the resolver inputs for one user: the user context
// and the role records it references. This is the only I/O-bound path in the
// subsystem and runs under a bounded timeout that fails closed.
type SnapshotSource interface {
	UserSnapshot(ctx context.Context, userID int64) (UserContext, []Role, error)
}

// CacheConfig tunes the permission cache.
type CacheConfig struct {
	// TTL is the safety net against missed invalidation signals. Entries
	// are primarily invalidated by generation comparison, not expiry.
	TTL time.Duration
	// LoadTimeout bounds a snapshot fetch on cache miss. On expiry the
	// lookup errors and the guard denies.
	LoadTimeout time.Duration
}

type cacheEntry struct {
	set     EffectiveSet
	expires time.Time
}

// Cache memoizes resolved permission sets per user. Each user carries a
// monotonically increasing last-modified marker touched by role assignment,
// override or tenant reassignment; an entry whose generation is behind the
// marker is recomputed lazily on the next lookup. Concurrent lookups for the
// same user collapse into a single recompute.
type Cache struct {
	source   SnapshotSource
	resolver *Resolver
	cfg      CacheConfig
	logger   *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	entries   map[int64]cacheEntry
	marks     map[int64]uint64
	roleIndex map[int64]map[int64]struct{}
}

// NewCache builds a permission cache over the given snapshot source.
func NewCache(source SnapshotSource, resolver *Resolver, cfg CacheConfig, logger *slog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source:    source,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
		entries:   make(map[int64]cacheEntry),
		marks:     make(map[int64]uint64),
		roleIndex: make(map[int64]map[int64]struct{}),
	}
}

// Get returns the user's effective permission set, recomputing when the
// stored generation is behind the user's last-modified marker or the TTL
// safety net has lapsed.
func (c *Cache) Get(ctx context.Context, userID int64) (EffectiveSet, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	mark := c.marks[userID]
	c.mu.RUnlock()
	if ok && entry.set.Generation == mark && time.Now().Before(entry.expires) {
		return entry.set, nil
	}
	return c.recompute(ctx, userID)
}

func (c *Cache) recompute(ctx context.Context, userID int64) (EffectiveSet, error) {
	for {
		c.mu.RLock()
		mark := c.marks[userID]
		entry, ok := c.entries[userID]
		c.mu.RUnlock()
		if ok && entry.set.Generation == mark && time.Now().Before(entry.expires) {
			return entry.set, nil
		}

		// The marker is part of the flight key: a lookup that starts after
		// an invalidation returns reads the bumped marker and can never join
		// an in-flight computation whose snapshot predates the invalidation.
		key := strconv.FormatInt(userID, 10) + ":" + strconv.FormatUint(mark, 10)
		ch := c.group.DoChan(key, func() (any, error) {
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.LoadTimeout)
			defer cancel()

			user, roles, err := c.source.UserSnapshot(loadCtx, userID)
			if err != nil {
				return EffectiveSet{}, fmt.Errorf("authz: snapshot user %d: %w", userID, err)
			}
			set := c.resolver.Resolve(user, roles)
			set.Generation = mark

			c.mu.Lock()
			// A marker bumped mid-flight makes this set stale already; never
			// overwrite an entry a fresher flight stored.
			if c.marks[userID] == mark {
				c.entries[userID] = cacheEntry{set: set, expires: time.Now().Add(c.cfg.TTL)}
			}
			c.mu.Unlock()
			return set, nil
		})

		select {
		case <-ctx.Done():
			return EffectiveSet{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return EffectiveSet{}, res.Err
			}
			set := res.Val.(EffectiveSet)
			c.mu.RLock()
			current := c.marks[userID]
			c.mu.RUnlock()
			if set.Generation == current {
				return set, nil
			}
			// The marker moved while the flight ran; compute again.
		}
	}
}

// Invalidate bumps the user's last-modified marker. The staleness is visible
// to every subsequent Get before this call returns.
func (c *Cache) Invalidate(userID int64) {
	c.mu.Lock()
	c.marks[userID]++
	c.mu.Unlock()
}

// InvalidateByRole invalidates every user currently indexed as holding the
// role.
func (c *Cache) InvalidateByRole(roleID int64) {
	c.mu.Lock()
	for userID := range c.roleIndex[roleID] {
		c.marks[userID]++
	}
	c.mu.Unlock()
}

// InvalidateAll marks every cached entry stale. Used after catalog-wide
// changes.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	for userID := range c.entries {
		c.marks[userID]++
	}
	c.mu.Unlock()
}

// IndexRole records that a user holds a role. Must be called in the same
// operation that persists the assignment, before it returns, so a role-level
// invalidation never misses a holder.
func (c *Cache) IndexRole(roleID, userID int64) {
	c.mu.Lock()
	users, ok := c.roleIndex[roleID]
	if !ok {
		users = make(map[int64]struct{})
		c.roleIndex[roleID] = users
	}
	users[userID] = struct{}{}
	c.mu.Unlock()
}

// UnindexRole removes a user from a role's holder index.
func (c *Cache) UnindexRole(roleID, userID int64) {
	c.mu.Lock()
	if users, ok := c.roleIndex[roleID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(c.roleIndex, roleID)
		}
	}
	c.mu.Unlock()
}

// RebuildIndex replaces the role→holders index wholesale, typically from a
// store scan at bootstrap.
func (c *Cache) RebuildIndex(holders map[int64][]int64) {
	index := make(map[int64]map[int64]struct{}, len(holders))
	for roleID, userIDs := range holders {
		users := make(map[int64]struct{}, len(userIDs))
		for _, id := range userIDs {
			users[id] = struct{}{}
		}
		index[roleID] = users
	}
	c.mu.Lock()
	c.roleIndex = index
	c.mu.Unlock()
}
