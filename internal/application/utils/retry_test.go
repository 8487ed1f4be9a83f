package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mosaicod/internal/domain/ports"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", pkgerrors.Wrap(ports.ErrNotFound, "topic"), false},
		{"not holder", ports.ErrNotHolder, false},
		{"canceled", context.Canceled, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestCalculateRetryDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, CalculateRetryDelay(cfg, 0))
	assert.Equal(t, 4*time.Second, CalculateRetryDelay(cfg, 2))
	assert.Equal(t, 5*time.Second, CalculateRetryDelay(cfg, 10))
}

func TestExecuteWithRetry(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxElapsed: time.Second}

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("final error stops", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(context.Background(), cfg, func() error {
			calls++
			return ports.ErrNotHolder
		})
		require.ErrorIs(t, err, ports.ErrNotHolder)
		assert.Equal(t, 1, calls)
	})
}
