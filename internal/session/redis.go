package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/appointment-web/internal/model"
)

type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

// RedisStore shares sessions between replicas.
type RedisStore struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	inFlightTTL time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "apptui:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, inFlightTTL: StaleAfter}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) notifyKey(id string) string {
	return r.prefix + notifyKey(id)
}

func (r *RedisStore) inFlightKey(id, key string) string {
	return r.prefix + inFlightKey(id, key)
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	pending := s.Flash()
	notes := make([]interface{}, 0, len(pending))
	for _, n := range pending {
		encoded, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode notification for session %s: %w", s.ID, err)
		}
		notes = append(notes, encoded)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.ID), data, r.ttl)
		if len(notes) > 0 {
			pipe.RPush(ctx, r.notifyKey(s.ID), notes...)
			pipe.Expire(ctx, r.notifyKey(s.ID), r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id), r.notifyKey(id)).Err()
}

func (r *RedisStore) Drain(ctx context.Context, id string) ([]model.Notification, error) {
	var lrange *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, r.notifyKey(id), 0, -1)
		pipe.Del(ctx, r.notifyKey(id))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain notifications of session %s: %w", id, err)
	}

	raw := lrange.Val()
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]model.Notification, 0, len(raw))
	for _, item := range raw {
		var n model.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("decode notification of session %s: %w", id, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *RedisStore) Mark(ctx context.Context, id, key string) error {
	return r.client.Set(ctx, r.inFlightKey(id, key), 1, r.inFlightTTL).Err()
}

func (r *RedisStore) Unmark(ctx context.Context, id, key string) error {
	return r.client.Del(ctx, r.inFlightKey(id, key)).Err()
}

func (r *RedisStore) Marked(ctx context.Context, id, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.inFlightKey(id, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
