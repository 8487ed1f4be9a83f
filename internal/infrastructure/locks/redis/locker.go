// Package redis shares leases between replicas through Redis.
package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"mosaicod/internal/domain/ports"
)

var _ ports.Locker = (*Locker)(nil)

// Config configures the Redis connection
type Config struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"mosaicod:lock:"`
}

// refreshScript extends a lease owned by ARGV[1].
// Returns 1 on success, 0 when unlocked, -1 when owned by someone else.
var refreshScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
    return 0
end
if current ~= ARGV[1] then
    return -1
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

// releaseScript deletes a lease owned by ARGV[1], same return codes as refreshScript
var releaseScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
    return 0
end
if current ~= ARGV[1] then
    return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

// Locker is a Redis ports.Locker
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker connects to Redis
func NewLocker(cfg Config) *Locker {
	return &Locker{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
	}
}

// Ping checks connectivity
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Acquire sets the key only when absent, with the lease TTL
func (l *Locker) Acquire(ctx context.Context, key, holder string, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.prefix+key, holder, ttl).Result()
	if err != nil {
		return errors.Wrapf(err, "redis acquire '%s'", key)
	}
	if !ok {
		return errors.Wrapf(ports.ErrAlreadyLocked, "'%s'", key)
	}
	return nil
}

func (l *Locker) runOwned(ctx context.Context, script *redis.Script, key string, args ...interface{}) error {
	code, err := script.Run(ctx, l.client, []string{l.prefix + key}, args...).Int()
	if err != nil {
		return errors.Wrapf(err, "redis script on '%s'", key)
	}
	switch code {
	case 1:
		return nil
	case 0:
		return errors.Wrapf(ports.ErrNotLocked, "'%s'", key)
	default:
		return errors.Wrapf(ports.ErrNotHolder, "'%s'", key)
	}
}

// Refresh extends the lease
func (l *Locker) Refresh(ctx context.Context, key, holder string, ttl time.Duration) error {
	return l.runOwned(ctx, refreshScript, key, holder, ttl.Milliseconds())
}

// Release drops the lease
func (l *Locker) Release(ctx context.Context, key, holder string) error {
	return l.runOwned(ctx, releaseScript, key, holder)
}

// Holder returns the current holder or ""
func (l *Locker) Holder(ctx context.Context, key string) (string, error) {
	holder, err := l.client.Get(ctx, l.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get '%s'", key)
	}
	return holder, nil
}

// Close closes the client
func (l *Locker) Close() error {
	return l.client.Close()
}
