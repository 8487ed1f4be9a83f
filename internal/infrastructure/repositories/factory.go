package repositories

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/repositories/mem"
	"mosaicod/internal/infrastructure/repositories/pg"
	"mosaicod/internal/infrastructure/repositories/sqlite"
)

// RepositoryType represents the type of repository backend
type RepositoryType string

const (
	RepositoryTypeMemory     RepositoryType = "memory"
	RepositoryTypePostgreSQL RepositoryType = "postgresql"
	RepositoryTypeSQLite     RepositoryType = "sqlite"
)

// Config holds configuration for repository factory
type Config struct {
	Type RepositoryType `yaml:"type" env:"REPOSITORY_TYPE" env-default:"memory"`

	PostgreSQL pg.ConnectionConfig `yaml:"postgresql" env-prefix:"REPOSITORY_"`
	SQLite     sqlite.Config       `yaml:"sqlite" env-prefix:"REPOSITORY_"`
}

// Validate checks the settings of the selected backend
func (c Config) Validate() error {
	switch c.Type {
	case RepositoryTypeMemory:
	case RepositoryTypePostgreSQL:
		if c.PostgreSQL.URI == "" {
			return errors.New("repository.postgresql.uri is required for the postgresql repository")
		}
	case RepositoryTypeSQLite:
		if c.SQLite.Path == "" {
			return errors.New("repository.sqlite.path is required for the sqlite repository")
		}
	default:
		return fmt.Errorf("unsupported repository type: %s", c.Type)
	}
	return nil
}

// Factory creates repository instances based on configuration
type Factory struct {
	config Config
	logger logr.Logger
}

// NewFactory creates a new repository factory
func NewFactory(config Config, logger logr.Logger) *Factory {
	return &Factory{
		config: config,
		logger: logger,
	}
}

// CreateRegistry creates a registry based on the configured type
func (f *Factory) CreateRegistry(ctx context.Context) (ports.Registry, error) {
	switch f.config.Type {
	case RepositoryTypeMemory:
		f.logger.Info("using in-memory repository, data is lost on shutdown")
		return mem.NewRegistry(), nil
	case RepositoryTypePostgreSQL:
		return f.createPostgreSQLRegistry(ctx)
	case RepositoryTypeSQLite:
		f.logger.Info("using sqlite repository", "path", f.config.SQLite.Path)
		reg, err := sqlite.Open(ctx, f.config.SQLite)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to open sqlite repository")
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", f.config.Type)
	}
}

func (f *Factory) createPostgreSQLRegistry(ctx context.Context) (ports.Registry, error) {
	cm := pg.NewConnectionManager(f.config.PostgreSQL, f.logger)
	if err := cm.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}
	return pg.NewRegistry(cm), nil
}

// Migrate prepares the schema of the selected backend
func (f *Factory) Migrate(ctx context.Context) error {
	switch f.config.Type {
	case RepositoryTypePostgreSQL:
		cm := pg.NewConnectionManager(f.config.PostgreSQL, f.logger)
		if err := cm.Connect(ctx); err != nil {
			return errors.Wrap(err, "failed to connect for migrations")
		}
		defer cm.Close()
		return cm.RunMigrations(ctx)
	case RepositoryTypeSQLite:
		reg, err := sqlite.Open(ctx, f.config.SQLite)
		if err != nil {
			return err
		}
		return reg.Close()
	default:
		// nothing to migrate
		return nil
	}
}

// NewMemoryConfig creates a configuration for memory backend
func NewMemoryConfig() Config {
	return Config{Type: RepositoryTypeMemory}
}
