package config

import (
	"crypto/tls"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"mosaicod/internal/infrastructure/chunkstore"
	"mosaicod/internal/infrastructure/locks"
	"mosaicod/internal/infrastructure/repositories"
)

// Transport security modes
const (
	TLSTypeNone = "none"
	TLSTypeTLS  = "tls"
)

// DefaultMaxMessageSize is the gRPC message limit when none is configured
const DefaultMaxMessageSize = 64 << 20

type (
	// Config - main application configuration
	Config struct {
		App        `yaml:"app"`
		Log        `yaml:"logger"`
		Server     Server              `yaml:"server"`
		Repository repositories.Config `yaml:"repository"`
		Store      chunkstore.Config   `yaml:"store"`
		Locks      locks.Config        `yaml:"locks"`
	}

	// App - application identity
	App struct {
		Name    string `yaml:"name" env:"APP_NAME"`
		Version string `yaml:"version" env:"APP_VERSION"`
	}

	// Log - logging configuration
	Log struct {
		Level string `yaml:"log-level" env:"LOG_LEVEL"`
	}

	// Server - RPC endpoint settings
	Server struct {
		GRPCAddr            string  `yaml:"grpc-addr" env:"GRPC_ADDR"`
		MaxMessageSizeBytes int     `yaml:"max-message-size-bytes" env:"MAX_MESSAGE_SIZE_BYTES"`
		QueryPageSize       int     `yaml:"query-page-size" env:"QUERY_PAGE_SIZE"`
		ActionRateLimit     float64 `yaml:"action-rate-limit" env:"ACTION_RATE_LIMIT"`
		ActionRateBurst     int     `yaml:"action-rate-burst" env:"ACTION_RATE_BURST"`
		TLS                 TLS     `yaml:"tls"`
	}

	// TLS - transport security of the RPC endpoint
	TLS struct {
		Type     string `yaml:"type" env:"TLS_TYPE"`
		KeyFile  string `yaml:"key-file" env:"TLS_KEY_FILE"`
		CertFile string `yaml:"cert-file" env:"TLS_CERT_FILE"`
	}
)

// NewConfig loads defaults, then the optional file, then the environment
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}

	cfg.App.Name = "mosaicod"
	cfg.App.Version = "v0.1.0"
	cfg.Log.Level = "info"
	cfg.Server.GRPCAddr = ":6726"
	cfg.Server.MaxMessageSizeBytes = DefaultMaxMessageSize
	cfg.Server.QueryPageSize = 100
	cfg.Server.ActionRateBurst = 50
	cfg.Server.TLS.Type = TLSTypeNone

	if path != "" {
		err := cleanenv.ReadConfig(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		return cfg, nil
	}

	// ReadConfig already applies the environment and the env-default tags
	err := cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ServerCredentials returns the gRPC transport credentials of the endpoint
func (c *Config) ServerCredentials() (credentials.TransportCredentials, error) {
	switch c.Server.TLS.Type {
	case "", TLSTypeNone:
		return insecure.NewCredentials(), nil
	case TLSTypeTLS:
		cert, err := tls.LoadX509KeyPair(c.Server.TLS.CertFile, c.Server.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load server certificate: %w", err)
		}
		return credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}), nil
	default:
		return nil, fmt.Errorf("unknown tls type: %s", c.Server.TLS.Type)
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return fmt.Errorf("server.grpc-addr is required")
	}
	if c.Server.MaxMessageSizeBytes <= 0 {
		return fmt.Errorf("server.max-message-size-bytes must be positive")
	}
	if c.Server.QueryPageSize <= 0 {
		return fmt.Errorf("server.query-page-size must be positive")
	}
	if c.Server.ActionRateLimit < 0 {
		return fmt.Errorf("server.action-rate-limit must not be negative")
	}
	if c.Server.TLS.Type == TLSTypeTLS && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls cert-file and key-file are required for tls")
	}

	if err := c.Repository.Validate(); err != nil {
		return fmt.Errorf("repository config validation failed: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config validation failed: %w", err)
	}
	if err := c.Locks.Validate(); err != nil {
		return fmt.Errorf("locks config validation failed: %w", err)
	}
	return nil
}
