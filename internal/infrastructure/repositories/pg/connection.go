package pg

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ConnectionConfig holds PostgreSQL connection configuration
type ConnectionConfig struct {
	URI             string        `yaml:"uri" env:"PG_URI"`
	MaxConns        int32         `yaml:"max-conns" env:"PG_MAX_CONNS" env-default:"30"`
	MinConns        int32         `yaml:"min-conns" env:"PG_MIN_CONNS" env-default:"3"`
	MaxConnLifetime time.Duration `yaml:"max-conn-lifetime" env:"PG_MAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max-conn-idle-time" env:"PG_MAX_CONN_IDLE_TIME" env-default:"30m"`
	HealthTimeout   time.Duration `yaml:"health-timeout" env:"PG_HEALTH_TIMEOUT" env-default:"30s"`
	// ConnectTimeout bounds the whole connect retry loop
	ConnectTimeout time.Duration `yaml:"connect-timeout" env:"PG_CONNECT_TIMEOUT" env-default:"1m"`
}

// DefaultConnectionConfig returns production-ready defaults
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConns:        30,
		MinConns:        3,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		HealthTimeout:   30 * time.Second,
		ConnectTimeout:  time.Minute,
	}
}

// ConnectionManager manages PostgreSQL connections with health monitoring
type ConnectionManager struct {
	config ConnectionConfig
	logger logr.Logger
	pool   atomic.Pointer[pgxpool.Pool]

	// Health monitoring
	healthTicker *time.Ticker
	stopHealth   chan struct{}
	isHealthy    atomic.Bool
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(config ConnectionConfig, logger logr.Logger) *ConnectionManager {
	cm := &ConnectionManager{
		config:     config,
		logger:     logger.WithName("pg"),
		stopHealth: make(chan struct{}),
	}
	cm.isHealthy.Store(false)
	return cm
}

// Connect establishes the database connection, retrying with exponential backoff
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(cm.config.URI)
	if err != nil {
		return errors.Wrap(err, "failed to parse connection URI")
	}

	poolConfig.MaxConns = cm.config.MaxConns
	poolConfig.MinConns = cm.config.MinConns
	poolConfig.MaxConnLifetime = cm.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cm.config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = 30 * time.Second
	poolConfig.ConnConfig.RuntimeParams = map[string]string{
		"statement_timeout":                   "60000",
		"idle_in_transaction_session_timeout": "120000",
		"lock_timeout":                        "30000",
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cm.config.ConnectTimeout

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return errors.Wrap(err, "failed to create connection pool")
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return errors.Wrap(err, "failed to ping database")
		}
		pool = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		cm.logger.Info("postgresql is not ready, retrying", "error", err.Error(), "retry-in", next)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return err
	}

	cm.pool.Store(pool)
	cm.isHealthy.Store(true)
	cm.startHealthMonitoring()

	cm.logger.Info("postgresql connection established", "max-conns", cm.config.MaxConns)
	return nil
}

// Close closes the connection pool and stops health monitoring
func (cm *ConnectionManager) Close() error {
	if cm.healthTicker != nil {
		cm.healthTicker.Stop()
		close(cm.stopHealth)
		cm.healthTicker = nil
	}
	if pool := cm.pool.Load(); pool != nil {
		pool.Close()
		cm.pool.Store(nil)
	}
	cm.isHealthy.Store(false)
	return nil
}

// Pool returns the current connection pool
func (cm *ConnectionManager) Pool() *pgxpool.Pool {
	return cm.pool.Load()
}

// IsHealthy returns the current health status
func (cm *ConnectionManager) IsHealthy() bool {
	return cm.isHealthy.Load()
}

// BeginTx starts a new transaction
func (cm *ConnectionManager) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	pool := cm.Pool()
	if pool == nil {
		return nil, errors.New("connection pool not initialized")
	}
	return pool.BeginTx(ctx, opts)
}

// WithTx executes a function within a read-committed transaction
func (cm *ConnectionManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := cm.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (cm *ConnectionManager) startHealthMonitoring() {
	cm.healthTicker = time.NewTicker(30 * time.Second)
	ticker := cm.healthTicker

	go func() {
		for {
			select {
			case <-ticker.C:
				cm.performHealthCheck()
			case <-cm.stopHealth:
				return
			}
		}
	}()
}

func (cm *ConnectionManager) performHealthCheck() {
	pool := cm.Pool()
	if pool == nil {
		cm.isHealthy.Store(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.HealthTimeout)
	defer cancel()

	healthy := pool.Ping(ctx) == nil
	if healthy != cm.isHealthy.Load() {
		cm.logger.Info("postgresql health changed", "healthy", healthy)
	}
	cm.isHealthy.Store(healthy)
}

// HealthStatus returns detailed health information
func (cm *ConnectionManager) HealthStatus() HealthStatus {
	pool := cm.Pool()
	if pool == nil {
		return HealthStatus{
			IsHealthy: false,
			Error:     "connection pool not initialized",
			CheckedAt: time.Now(),
		}
	}

	stat := pool.Stat()
	return HealthStatus{
		IsHealthy:     cm.IsHealthy(),
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		CheckedAt:     time.Now(),
	}
}

// HealthStatus provides detailed connection pool health information
type HealthStatus struct {
	IsHealthy     bool      `json:"isHealthy"`
	TotalConns    int32     `json:"totalConns"`
	IdleConns     int32     `json:"idleConns"`
	AcquiredConns int32     `json:"acquiredConns"`
	Error         string    `json:"error,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// String returns a human-readable health status
func (hs HealthStatus) String() string {
	status := "HEALTHY"
	if !hs.IsHealthy {
		status = "UNHEALTHY"
	}

	return fmt.Sprintf("PostgreSQL: %s (total:%d, idle:%d, acquired:%d) at %s",
		status, hs.TotalConns, hs.IdleConns, hs.AcquiredConns,
		hs.CheckedAt.Format(time.RFC3339))
}
