package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/wamstack/wamstack/pkg/types"
)

const defaultRedisPrefix = "wam:"

// Redis is a Store backed by a redis list of JSON records, newest at the head.
// Several servers can share one instance.
type Redis struct {
	client   *redis.Client
	capacity int
	prefix   string
}

// NewRedis connects to the redis server at addr and verifies the connection.
func NewRedis(ctx context.Context, addr string, capacity int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis ping %s: %w", addr, err)
	}
	return &Redis{client: client, capacity: capacity, prefix: defaultRedisPrefix}, nil
}

func (r *Redis) listKey() string       { return r.prefix + "readings" }
func (r *Redis) seqKey() string        { return r.prefix + "readings:seq" }
func (r *Redis) thresholdsKey() string { return r.prefix + "thresholds" }

// Append implements Store.
func (r *Redis) Append(ctx context.Context, rec Record) (Record, error) {
	id, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return Record{}, fmt.Errorf("store: next id: %w", err)
	}
	rec.ID = uint64(id)

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("store: marshal record: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, r.listKey(), data)
		p.LTrim(ctx, r.listKey(), 0, int64(r.capacity-1))
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("store: push reading: %w", err)
	}
	return rec, nil
}

// Recent implements Store. Entries that fail to decode are skipped.
func (r *Redis) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return []Record{}, nil
	}
	items, err := r.client.LRange(ctx, r.listKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read readings: %w", err)
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			slog.Warn("store: skipping undecodable redis entry", "err", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Thresholds implements Store.
func (r *Redis) Thresholds(ctx context.Context) (types.Thresholds, bool, error) {
	raw, err := r.client.Get(ctx, r.thresholdsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Thresholds{}, false, nil
	}
	if err != nil {
		return types.Thresholds{}, false, fmt.Errorf("store: read thresholds: %w", err)
	}
	var th types.Thresholds
	if err := json.Unmarshal(raw, &th); err != nil {
		return types.Thresholds{}, false, fmt.Errorf("store: decode thresholds: %w", err)
	}
	return th, true, nil
}

// SaveThresholds implements Store.
func (r *Redis) SaveThresholds(ctx context.Context, th types.Thresholds) error {
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("store: marshal thresholds: %w", err)
	}
	if err := r.client.Set(ctx, r.thresholdsKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("store: write thresholds: %w", err)
	}
	return nil
}

// Close implements Store.
func (r *Redis) Close() error { return r.client.Close() }
