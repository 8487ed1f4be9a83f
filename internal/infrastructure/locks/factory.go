// Package locks selects the lease backend.
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
	memlocks "mosaicod/internal/infrastructure/locks/mem"
	redislocks "mosaicod/internal/infrastructure/locks/redis"
)

// LockerType selects the lease backend
type LockerType string

const (
	LockerTypeMemory LockerType = "memory"
	LockerTypeRedis  LockerType = "redis"
)

// Config configures resource leases
type Config struct {
	Type     LockerType        `yaml:"type" env:"LOCKS_TYPE" env-default:"memory"`
	LeaseTTL time.Duration     `yaml:"lease-ttl" env:"LOCKS_LEASE_TTL" env-default:"30s"`
	Redis    redislocks.Config `yaml:"redis" env-prefix:"LOCKS_"`
}

// Validate checks the lease settings
func (c Config) Validate() error {
	if c.LeaseTTL < 100*time.Millisecond {
		return errors.Errorf("locks.lease-ttl %s is too short", c.LeaseTTL)
	}
	switch c.Type {
	case LockerTypeMemory:
	case LockerTypeRedis:
		if c.Redis.Addr == "" {
			return errors.New("locks.redis.addr is required for redis locks")
		}
	default:
		return fmt.Errorf("unsupported locks type: %s", c.Type)
	}
	return nil
}

// New builds the configured locker
func New(ctx context.Context, c Config, logger logr.Logger) (ports.Locker, error) {
	switch c.Type {
	case LockerTypeMemory:
		logger.Info("using process-local locks, run a single replica")
		return memlocks.NewLocker(), nil
	case LockerTypeRedis:
		l := redislocks.NewLocker(c.Redis)
		if err := l.Ping(ctx); err != nil {
			_ = l.Close()
			return nil, errors.Wrap(err, "redis is not reachable")
		}
		logger.Info("using redis locks", "addr", c.Redis.Addr)
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported locks type: %s", c.Type)
	}
}
