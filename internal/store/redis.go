// Package store persists match snapshots and finished match history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned by Load when no snapshot is cached.
var ErrSnapshotNotFound = errors.New("store: snapshot not found")

const snapshotPrefix = "skirmish:snapshot:"

// RedisSnapshots caches the latest snapshot of each match so an interrupted
// session can be resumed.
type RedisSnapshots struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisSnapshots stores snapshots in rdb, expiring after ttl. A zero ttl
// keeps them forever.
func NewRedisSnapshots(rdb redis.UniversalClient, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{rdb: rdb, ttl: ttl}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Save writes snap as JSON under matchID.
func (s *RedisSnapshots) Save(ctx context.Context, matchID string, snap any) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotPrefix+matchID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", matchID, err)
	}
	return nil
}

// Load decodes the snapshot for matchID into dst.
func (s *RedisSnapshots) Load(ctx context.Context, matchID string, dst any) error {
	data, err := s.rdb.Get(ctx, snapshotPrefix+matchID).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrSnapshotNotFound
	}
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", matchID, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", matchID, err)
	}
	return nil
}

// Delete drops the snapshot for matchID.
func (s *RedisSnapshots) Delete(ctx context.Context, matchID string) error {
	return s.rdb.Del(ctx, snapshotPrefix+matchID).Err()
}
