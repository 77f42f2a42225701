package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"savethespice-backend/internal/config"
	"savethespice-backend/internal/infrastructure/images"
	"savethespice-backend/internal/infrastructure/observability"
)

func TestInitializeContainer_Memory(t *testing.T) {
	cfg := config.Defaults(config.Test)
	cfg.Batch.MaxConcurrency = 2

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &observability.InstrumentedStore{}, c.Store)
	assert.Equal(t, 2, c.Executor.Limit())

	rec := httptest.NewRecorder()
	c.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProvideImageHost(t *testing.T) {
	cfg := config.Defaults(config.Test)
	assert.IsType(t, images.Passthrough{}, ProvideImageHost(cfg, nil, zap.NewNop()))

	cfg.Images.Bucket = "bucket"
	assert.IsType(t, &images.S3Host{}, ProvideImageHost(cfg, nil, zap.NewNop()))
}

func TestProvideLogger_RejectsUnknownLevel(t *testing.T) {
	cfg := config.Defaults(config.Test)
	cfg.Logging.Level = "loud"
	_, _, err := ProvideLogger(cfg)
	assert.Error(t, err)
}
