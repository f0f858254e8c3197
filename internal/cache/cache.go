// Package cache short-circuits repeated inbound signals before they reach the
// database.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 30 * 24 * time.Hour
	DefaultPrefix = "bewerbungs:signal"
)

// Seen remembers which (user, message id) pairs were already taken.
type Seen interface {
	// Claim returns true for the first caller of a pair.
	Claim(ctx context.Context, userID, messageID string) (bool, error)
	// Release forgets a pair so it can be processed again.
	Release(ctx context.Context, userID, messageID string) error
}

// Nop claims everything. The database unique index still deduplicates.
type Nop struct{}

func (Nop) Claim(context.Context, string, string) (bool, error) { return true, nil }
func (Nop) Release(context.Context, string, string) error       { return nil }

type Config struct {
	// Addr is host:port or a redis:// URL.
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type Redis struct {
	client client
	ttl    time.Duration
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	var opt *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB}
	}

	rc := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opt.Addr, err)
	}

	return newRedis(rc, cfg), nil
}

func newRedis(c client, cfg Config) *Redis {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: c, ttl: ttl, prefix: prefix}
}

func (r *Redis) key(userID, messageID string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, userID, messageID)
}

func (r *Redis) Claim(ctx context.Context, userID, messageID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(userID, messageID), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim signal %s: %w", messageID, err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, userID, messageID string) error {
	if err := r.client.Del(ctx, r.key(userID, messageID)).Err(); err != nil {
		return fmt.Errorf("release signal %s: %w", messageID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
