package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shepherd-project/gpumon/internal/gpu"
	"github.com/shepherd-project/gpumon/internal/logger"
)

type fakeTelemetry struct {
	snap *gpu.Snapshot
	err  error
}

func (f *fakeTelemetry) Snapshot(ctx context.Context) (*gpu.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeTelemetry) Detect(ctx context.Context) gpu.Availability {
	return f.snap.Availability
}

func nvidiaTelemetry() *fakeTelemetry {
	return &fakeTelemetry{snap: &gpu.Snapshot{
		Vendor:       gpu.VendorNVIDIA,
		Availability: gpu.Availability{NVIDIA: true},
		GPUs:         []gpu.Record{{Index: 0, Name: "RTX 4090", DriverVersion: "550.1", Temperature: 45}},
	}}
}

func testConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		CORSEnabled:    true,
		AllowedOrigins: []string{"*"},
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// Helper function to create a test server
func createTestServer(t *testing.T, cfg *Config, telemetry Telemetry) *Server {
	t.Helper()
	server, err := NewServer(cfg, telemetry, logger.New(zap.NewNop()))
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	server := createTestServer(t, testConfig(), nvidiaTelemetry())

	assert.NotNil(t, server.engine)
	assert.NotNil(t, server.registry)
	assert.Nil(t, server.Addr())

	_, err := NewServer(nil, nvidiaTelemetry(), nil)
	assert.Error(t, err)
	_, err = NewServer(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestServerRoutes(t *testing.T) {
	server := createTestServer(t, testConfig(), nvidiaTelemetry())
	router := server.GetEngine()

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/api/gpu", http.StatusOK, `"hasNvidiaSmi":true`},
		{"/api/info", http.StatusOK, `"name":"gpumon"`},
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/metrics", http.StatusOK, `gpumon_gpu_temperature_celsius{gpu="0",name="RTX 4090",vendor="nvidia"} 45`},
		{"/api/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestServerTelemetryBody(t *testing.T) {
	server := createTestServer(t, testConfig(), nvidiaTelemetry())

	w := httptest.NewRecorder()
	server.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/gpu", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		HasNvidiaSmi bool         `json:"hasNvidiaSmi"`
		HasGpuTool   bool         `json:"hasGpuTool"`
		GPUs         []gpu.Record `json:"gpus"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.HasNvidiaSmi)
	assert.True(t, body.HasGpuTool)
	require.Len(t, body.GPUs, 1)
	assert.Equal(t, "RTX 4090", body.GPUs[0].Name)
}

func TestServerMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	server := createTestServer(t, cfg, nvidiaTelemetry())

	w := httptest.NewRecorder()
	server.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerCustomMetricsPath(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsPath = "/internal/metrics"
	server := createTestServer(t, cfg, nvidiaTelemetry())

	w := httptest.NewRecorder()
	server.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gpumon_scrape_success 1")
}

func TestServerCORSMiddleware(t *testing.T) {
	server := createTestServer(t, testConfig(), nvidiaTelemetry())

	req := httptest.NewRequest(http.MethodGet, "/api/gpu", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	server.GetEngine().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	cfg := testConfig()
	cfg.CORSEnabled = false
	server = createTestServer(t, cfg, nvidiaTelemetry())
	w = httptest.NewRecorder()
	server.GetEngine().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerStartAndShutdown(t *testing.T) {
	server := createTestServer(t, testConfig(), nvidiaTelemetry())

	require.NoError(t, server.Start())
	assert.Error(t, server.Start(), "second start fails")

	addr := server.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.Error(t, server.Stop(), "already stopped")
}
