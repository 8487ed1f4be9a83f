package repositories

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/infrastructure/repositories/sqlite"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", NewMemoryConfig(), false},
		{"postgresql without uri", Config{Type: RepositoryTypePostgreSQL}, true},
		{"sqlite", Config{Type: RepositoryTypeSQLite, SQLite: sqlite.Config{Path: ":memory:"}}, false},
		{"sqlite without path", Config{Type: RepositoryTypeSQLite}, true},
		{"unknown", Config{Type: "cassandra"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFactory_CreateRegistry(t *testing.T) {
	ctx := context.Background()
	for _, config := range []Config{
		NewMemoryConfig(),
		{Type: RepositoryTypeSQLite, SQLite: sqlite.Config{Path: ":memory:"}},
	} {
		f := NewFactory(config, logr.Discard())
		require.NoError(t, f.Migrate(ctx))
		reg, err := f.CreateRegistry(ctx)
		require.NoError(t, err)
		require.NotNil(t, reg.Subject())
		require.NoError(t, reg.Close())
	}

	_, err := NewFactory(Config{Type: "cassandra"}, logr.Discard()).CreateRegistry(ctx)
	assert.Error(t, err)
}
