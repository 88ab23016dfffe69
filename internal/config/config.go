// Package config provides configuration management for the gpumon server.
// It handles loading, saving, and validating configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = "config"
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "gpumon.config.yaml"
	// ConfigDirEnv overrides DefaultConfigDir
	ConfigDirEnv = "GPUMON_CONFIG_DIR"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	GPU      GPUConfig      `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Security SecurityConfig `mapstructure:"security" yaml:"security" json:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host" json:"host"`
	Port         int    `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout" json:"readTimeout"`    // seconds
	WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout" json:"writeTimeout"` // seconds
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GPUConfig contains vendor tool settings
type GPUConfig struct {
	PreferredVendor string `mapstructure:"preferred_vendor" yaml:"preferred_vendor" json:"preferredVendor"` // auto, nvidia, amd
	QueryTimeout    int    `mapstructure:"query_timeout" yaml:"query_timeout" json:"queryTimeout"`          // seconds, 0 = unbounded
	NvidiaSMIPath   string `mapstructure:"nvidia_smi_path" yaml:"nvidia_smi_path" json:"nvidiaSmiPath"`
	AMDSMIPath      string `mapstructure:"amd_smi_path" yaml:"amd_smi_path" json:"amdSmiPath"`
	DeviceOrder     string `mapstructure:"device_order" yaml:"device_order" json:"deviceOrder"` // exported as CUDA_DEVICE_ORDER
}

// QueryTimeoutDuration returns QueryTimeout as a time.Duration.
func (g GPUConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(g.QueryTimeout) * time.Second
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level     string `mapstructure:"level" yaml:"level" json:"level"`             // debug, info, warn, error
	Format    string `mapstructure:"format" yaml:"format" json:"format"`          // json, text
	Output    string `mapstructure:"output" yaml:"output" json:"output"`          // stdout, file, both
	Directory string `mapstructure:"directory" yaml:"directory" json:"directory"` // log directory
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	CORSEnabled    bool     `mapstructure:"cors_enabled" yaml:"cors_enabled" json:"corsEnabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowedOrigins"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cwd, _ := os.Getwd()

	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         9190,
			ReadTimeout:  60,
			WriteTimeout: 60,
		},
		GPU: GPUConfig{
			PreferredVendor: "auto",
			QueryTimeout:    10,
			NvidiaSMIPath:   "nvidia-smi",
			AMDSMIPath:      "amd-smi",
			DeviceOrder:     "PCI_BUS_ID",
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			Directory: filepath.Join(cwd, "logs"),
		},
		Security: SecurityConfig{
			CORSEnabled:    true,
			AllowedOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("invalid server read_timeout: %d", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("invalid server write_timeout: %d", c.Server.WriteTimeout)
	}

	validVendors := map[string]bool{"auto": true, "nvidia": true, "amd": true, "": true}
	if !validVendors[strings.ToLower(c.GPU.PreferredVendor)] {
		return fmt.Errorf("invalid gpu preferred_vendor: %s (must be auto, nvidia, or amd)", c.GPU.PreferredVendor)
	}
	if c.GPU.QueryTimeout < 0 {
		return fmt.Errorf("invalid gpu query_timeout: %d", c.GPU.QueryTimeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Log.Format)
	}
	validOutputs := map[string]bool{"stdout": true, "file": true, "both": true, "": true}
	if !validOutputs[c.Log.Output] {
		return fmt.Errorf("invalid log output: %s (must be stdout, file, or both)", c.Log.Output)
	}
	if (c.Log.Output == "file" || c.Log.Output == "both") && c.Log.Directory == "" {
		return fmt.Errorf("log output %s requires a log directory", c.Log.Output)
	}

	for _, origin := range c.Security.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid security allowed_origins entry: %q (must be * or an http(s) origin)", origin)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q (must start with /)", c.Metrics.Path)
	}

	return nil
}
