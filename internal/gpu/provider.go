// Package gpu detects vendor GPU tools and normalizes their telemetry.
// Each vendor (NVIDIA via nvidia-smi, AMD via amd-smi) implements Provider;
// Detector decides which tools are usable and Service turns a detection plus
// a query into one Snapshot.
package gpu

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// Provider defines the interface for vendor telemetry providers.
type Provider interface {
	// Name returns the provider's name (e.g., "nvidia", "amd")
	Name() Vendor

	// Label returns the display vendor name used in fallback GPU names.
	Label() string

	// IsAvailable checks whether the vendor tool can be used on this host.
	// It never returns an error; any failure means unavailable.
	IsAvailable(ctx context.Context) bool

	// Query invokes the vendor tool once and returns normalized records.
	Query(ctx context.Context) ([]Record, error)
}

// Logger interface for GPU package logging.
// This avoids direct dependency on internal/logger.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (n noopLogger) Debugf(format string, args ...interface{}) {}
func (n noopLogger) Infof(format string, args ...interface{})  {}
func (n noopLogger) Errorf(format string, args ...interface{}) {}

const (
	DefaultNvidiaSMIPath = "nvidia-smi"
	DefaultAMDSMIPath    = "amd-smi"
	// DefaultDeviceOrder keeps device indices stable across tool invocations.
	DefaultDeviceOrder = "PCI_BUS_ID"
)

// Config contains configuration for detection and querying.
type Config struct {
	// PreferredVendor restricts detection to one vendor, or auto for both.
	PreferredVendor Vendor
	// QueryTimeout bounds a single vendor tool query. Zero means no bound.
	QueryTimeout time.Duration
	// NvidiaSMIPath and AMDSMIPath name the vendor binaries.
	NvidiaSMIPath string
	AMDSMIPath    string
	// DeviceOrder is exported to the tools as CUDA_DEVICE_ORDER.
	DeviceOrder string
	// Platform is the host OS ("linux", "windows", ...). Empty means detect.
	Platform string
	// Runner executes the tools (optional)
	Runner CommandRunner
	// LookupEnv reads the visibility variables (optional)
	LookupEnv func(string) (string, bool)
	// Logger for logging (optional)
	Logger Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PreferredVendor: VendorAuto,
		QueryTimeout:    10 * time.Second,
		NvidiaSMIPath:   DefaultNvidiaSMIPath,
		AMDSMIPath:      DefaultAMDSMIPath,
		DeviceOrder:     DefaultDeviceOrder,
	}
}

// withDefaults fills every optional field.
func (c *Config) withDefaults() *Config {
	out := *DefaultConfig()
	if c == nil {
		c = &out
	}
	out.QueryTimeout = c.QueryTimeout
	if c.PreferredVendor != "" {
		out.PreferredVendor = c.PreferredVendor
	}
	if c.NvidiaSMIPath != "" {
		out.NvidiaSMIPath = c.NvidiaSMIPath
	}
	if c.AMDSMIPath != "" {
		out.AMDSMIPath = c.AMDSMIPath
	}
	if c.DeviceOrder != "" {
		out.DeviceOrder = c.DeviceOrder
	}
	out.Platform = c.Platform
	if out.Platform == "" {
		out.Platform = DetectPlatform()
	}
	out.Runner = c.Runner
	if out.Runner == nil {
		out.Runner = NewExecRunner()
	}
	out.LookupEnv = c.LookupEnv
	if out.LookupEnv == nil {
		out.LookupEnv = os.LookupEnv
	}
	out.Logger = c.Logger
	if out.Logger == nil {
		out.Logger = noopLogger{}
	}
	return &out
}

// toolEnv is the environment handed to every vendor tool invocation.
func (c *Config) toolEnv() []string {
	return []string{"CUDA_DEVICE_ORDER=" + c.DeviceOrder}
}

// DetectPlatform returns the host OS as reported by gopsutil, falling back to
// runtime.GOOS.
func DetectPlatform() string {
	if info, err := host.Info(); err == nil && info.OS != "" {
		return info.OS
	}
	return runtime.GOOS
}

// Availability reports which vendor tools were found.
type Availability struct {
	NVIDIA bool `json:"nvidia"`
	AMD    bool `json:"amd"`
}

// Any reports whether at least one vendor tool is usable.
func (a Availability) Any() bool {
	return a.NVIDIA || a.AMD
}

// Detector checks which vendor tools are present, honoring the preferred
// vendor setting.
type Detector struct {
	nvidia    Provider
	amd       Provider
	preferred Vendor
	logger    Logger
}

// NewDetector creates a detector over the given providers.
func NewDetector(nvidia, amd Provider, preferred Vendor, logger Logger) *Detector {
	if logger == nil {
		logger = noopLogger{}
	}
	if preferred == "" {
		preferred = VendorAuto
	}
	return &Detector{nvidia: nvidia, amd: amd, preferred: preferred, logger: logger}
}

// Detect checks each allowed vendor tool. It never fails.
func (d *Detector) Detect(ctx context.Context) Availability {
	if ctx == nil {
		ctx = context.Background()
	}

	var a Availability
	if d.preferred != VendorAMD {
		a.NVIDIA = d.check(ctx, d.nvidia)
	}
	if d.preferred != VendorNVIDIA {
		a.AMD = d.check(ctx, d.amd)
	}
	return a
}

// check runs p.IsAvailable, collapsing a panic to false.
func (d *Detector) check(ctx context.Context, p Provider) (available bool) {
	if p == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("GPU provider %s availability check panicked: %v", p.Name(), r)
			available = false
		}
	}()

	available = p.IsAvailable(ctx)
	if !available {
		d.logger.Debugf("GPU provider %s is not available", p.Name())
	}
	return available
}
