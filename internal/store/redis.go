package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/closure-watch/internal/scan"
)

// Redis stores the latest scan as a JSON blob without expiry.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis instantiates the Redis store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, key: LatestKey}
}

// SaveLatest overwrites the stored snapshot.
func (r *Redis) SaveLatest(ctx context.Context, result scan.Result) error {
	if r == nil || r.client == nil {
		return errors.New("store: redis client not configured")
	}
	raw, err := encode(result)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set: %w", err)
	}
	return nil
}

// Latest loads the stored snapshot. The boolean is false when no scan has been saved yet.
func (r *Redis) Latest(ctx context.Context) (scan.Result, bool, error) {
	if r == nil || r.client == nil {
		return scan.Result{}, false, errors.New("store: redis client not configured")
	}
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return scan.Result{}, false, nil
	}
	if err != nil {
		return scan.Result{}, false, fmt.Errorf("store: redis get: %w", err)
	}
	result, err := decode(raw)
	if err != nil {
		return scan.Result{}, false, err
	}
	return result, true, nil
}
