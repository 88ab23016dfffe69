package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Manager owns the config file: it resolves where the file lives, creates it
// on first run and layers command-line overrides over what it reads.
type Manager struct {
	fs         afero.Fs
	config     *Config
	configPath string
	mu         sync.RWMutex
}

// Override adjusts a loaded config before it is validated. Overrides are
// never written back to the file.
type Override func(*Config)

// WithHost overrides server.host when host is non-empty.
func WithHost(host string) Override {
	return func(c *Config) {
		if host != "" {
			c.Server.Host = host
		}
	}
}

// WithPort overrides server.port when port is non-zero.
func WithPort(port int) Override {
	return func(c *Config) {
		if port != 0 {
			c.Server.Port = port
		}
	}
}

// WithLogLevel overrides log.level when level is non-empty.
func WithLogLevel(level string) Override {
	return func(c *Config) {
		if level != "" {
			c.Log.Level = level
		}
	}
}

// GetConfigDir returns $GPUMON_CONFIG_DIR, or DefaultConfigDir when unset.
func GetConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	return DefaultConfigDir
}

// ResolvePath picks the config file: an explicit path wins, otherwise
// DefaultConfigFile inside GetConfigDir.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(GetConfigDir(), DefaultConfigFile)
}

// NewManager creates a manager for ResolvePath("").
func NewManager() *Manager {
	return NewManagerWithPath(ResolvePath(""))
}

// NewManagerWithPath creates a manager for path on the OS filesystem.
func NewManagerWithPath(configPath string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), configPath)
}

// NewManagerWithFs creates a manager on the given filesystem.
func NewManagerWithFs(fs afero.Fs, configPath string) *Manager {
	return &Manager{
		fs:         fs,
		configPath: configPath,
	}
}

// GetConfigPath returns the config file path.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Load reads the config file, writing the defaults there first when it does
// not exist, then applies overrides and validates the result.
func (m *Manager) Load(overrides ...Override) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.readOrCreate()
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(config)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m.config = config
	return config, nil
}

// readOrCreate returns the file's settings layered over DefaultConfig.
func (m *Manager) readOrCreate() (*Config, error) {
	config := DefaultConfig()

	data, err := afero.ReadFile(m.fs, m.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := m.write(config); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// Save validates config and replaces the file with it.
func (m *Manager) Save(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.write(config); err != nil {
		return err
	}
	m.config = config
	return nil
}

// write marshals config to a sibling temp file and renames it into place.
func (m *Manager) write(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := m.fs.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempPath := m.configPath + ".tmp"
	if err := afero.WriteFile(m.fs, tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := m.fs.Rename(tempPath, m.configPath); err != nil {
		_ = m.fs.Remove(tempPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}
	return nil
}

// Get returns a copy of the loaded config, or the defaults before Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	config := *m.config
	config.Security.AllowedOrigins = append([]string(nil), m.config.Security.AllowedOrigins...)
	return &config
}
