package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/locagame/internal/config"
	"github.com/utafrali/locagame/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:         "test",
		HTTPPort:            8010,
		StorageDriver:       config.DriverMemory,
		DemoSeed:            true,
		ProductCacheTTLSec:  30,
		BreakerEnabled:      true,
		BreakerTimeoutSec:   15,
		BreakerFailureRatio: 0.5,
		BreakerMinRequests:  10,
		MaxRangeDays:        366,
		FilterConcurrency:   4,
		OTELSampleRate:      1,
		CORSAllowedOrigins:  []string{"*"},
	}
}

func TestNewApp_MemoryDriverServesSeededCatalogue(t *testing.T) {
	a, err := NewApp(memoryConfig(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	assert.Nil(t, a.pool)
	assert.Nil(t, a.cancelled)

	photoBooth := uuid.NewSHA1(uuid.NameSpaceURL, []byte("locagame:product:Photo Booth")).String()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/products/"+photoBooth+"/availability?start=2030-01-01&end=2030-01-02", nil)
	rec := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Available         bool   `json:"available"`
			AvailableQuantity int    `json:"available_quantity"`
			Status            string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Available)
	assert.Equal(t, 1, body.Data.AvailableQuantity)
	assert.Equal(t, "ok", body.Data.Status)

	rec = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storage_circuit_breaker_state"))
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTPPort = 0
	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	a.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
}
