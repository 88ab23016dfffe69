package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-project/gpumon/internal/config"
	"github.com/shepherd-project/gpumon/internal/gpu"
)

type fakeSource struct {
	snap *gpu.Snapshot
	err  error
}

func (f *fakeSource) Snapshot(ctx context.Context) (*gpu.Snapshot, error) {
	return f.snap, f.err
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--port", "9300", "--host=127.0.0.1", "--log-level", "debug", "--once"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 9300, opts.port)
	assert.Equal(t, "127.0.0.1", opts.host)
	assert.Equal(t, "debug", opts.logLevel)
	assert.True(t, opts.once)
	assert.False(t, opts.showVersion)

	_, err = parseFlags([]string{"serve-now"}, io.Discard)
	assert.Error(t, err)

	_, err = parseFlags([]string{"--bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestLoadConfigWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpumon.config.yaml")

	cfg, gotPath, err := loadConfig(&options{configPath: path, port: 9400, logLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, path, gotPath)
	assert.Equal(t, 9400, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.FileExists(t, path)

	_, _, err = loadConfig(&options{configPath: path, port: 70000})
	assert.Error(t, err)
}

func TestLoadConfigUsesConfigDirEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.ConfigDirEnv, dir)

	_, gotPath, err := loadConfig(&options{host: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, config.DefaultConfigFile), gotPath)
	assert.FileExists(t, gotPath)
}

func TestNewServiceRejectsUnknownVendor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpumon.config.yaml")
	cfg, _, err := loadConfig(&options{configPath: path})
	require.NoError(t, err)

	cfg.GPU.PreferredVendor = "intel"
	_, err = newService(cfg, nil)
	assert.Error(t, err)
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"--version"}, &out))
	assert.Contains(t, out.String(), "gpumon")
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name    string
		source  *fakeSource
		wantErr bool
		want    string
	}{
		{
			name:   "no vendor",
			source: &fakeSource{snap: &gpu.Snapshot{GPUs: []gpu.Record{}}, err: gpu.ErrNoVendor},
			want:   `{"hasNvidiaSmi":false,"hasGpuTool":false,"gpus":[],"error":"nvidia-smi not found or not accessible"}`,
		},
		{
			name:    "query failure",
			source:  &fakeSource{snap: &gpu.Snapshot{}, err: errors.New("query amd: amd-smi failed: exit status 1")},
			wantErr: true,
			want:    `{"hasNvidiaSmi":false,"hasGpuTool":false,"gpus":[],"error":"Failed to fetch GPU stats: query amd: amd-smi failed: exit status 1"}`,
		},
		{
			name: "found",
			source: &fakeSource{snap: &gpu.Snapshot{
				Vendor: gpu.VendorAMD,
				GPUs:   []gpu.Record{{Index: 1, Name: "AMD GPU 1", DriverVersion: "Unknown"}},
			}},
			want: `{"hasNvidiaSmi":true,"hasGpuTool":true,"gpus":[{"index":1,"name":"AMD GPU 1","driverVersion":"Unknown","temperature":0,
				"utilization":{"gpu":0,"memory":0},"memory":{"total":0,"used":0,"free":0},"power":{"draw":0,"limit":0},
				"clocks":{"graphics":0,"memory":0},"fan":{"speed":0}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runOnce(context.Background(), tt.source, &out)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, json.Valid(out.Bytes()))
			assert.JSONEq(t, tt.want, out.String())
		})
	}
}
