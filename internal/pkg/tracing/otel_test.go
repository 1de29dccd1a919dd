package tracing

import (
	"context"
	"testing"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig(), logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = Init(context.Background(), nil, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitWithOTLPEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "localhost:4318"
	cfg.Insecure = true

	// the exporter connects lazily, so no collector is needed here
	shutdown, err := Init(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	_ = shutdown(context.Background())
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.5, clampRatio(0.5))
}
