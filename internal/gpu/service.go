package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoVendor is returned by Service.Snapshot when no vendor tool is usable.
// The message is part of the HTTP contract.
var ErrNoVendor = errors.New("nvidia-smi not found or not accessible")

// Snapshot is the result of one detection plus query.
type Snapshot struct {
	// Vendor is the vendor whose tool produced GPUs, empty when none was found.
	Vendor Vendor
	// Availability records which tools the detector found.
	Availability Availability
	// GPUs is never nil.
	GPUs []Record
}

// Found reports whether a vendor tool was detected.
func (s *Snapshot) Found() bool {
	return s != nil && s.Vendor != ""
}

// Service composes detection, querying and parsing. It holds no telemetry
// between calls; every Snapshot runs the tools again.
type Service struct {
	detector *Detector
	nvidia   Provider
	amd      Provider
	timeout  time.Duration
	logger   Logger
}

// NewService builds the NVIDIA and AMD providers from cfg and wires them to
// a Detector.
func NewService(cfg *Config) *Service {
	cfg = cfg.withDefaults()
	nvidia := NewNvidiaProvider(cfg)
	amd := NewAMDProvider(cfg)
	return NewServiceWithProviders(nvidia, amd, cfg.PreferredVendor, cfg.QueryTimeout, cfg.Logger)
}

// NewServiceWithProviders creates a service over explicit providers.
func NewServiceWithProviders(nvidia, amd Provider, preferred Vendor, timeout time.Duration, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		detector: NewDetector(nvidia, amd, preferred, logger),
		nvidia:   nvidia,
		amd:      amd,
		timeout:  timeout,
		logger:   logger,
	}
}

// Detect reports which vendor tools are usable.
func (s *Service) Detect(ctx context.Context) Availability {
	return s.detector.Detect(ctx)
}

// Snapshot detects the vendor tool and queries it once. NVIDIA is used when
// both tools are available.
//
// When no tool is found it returns an empty snapshot and ErrNoVendor. Query
// and parse failures are returned as errors; the snapshot is still non-nil
// with an empty GPU list.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	snap := &Snapshot{GPUs: []Record{}}
	snap.Availability = s.detector.Detect(ctx)

	var provider Provider
	switch {
	case snap.Availability.NVIDIA:
		provider = s.nvidia
	case snap.Availability.AMD:
		provider = s.amd
	default:
		return snap, ErrNoVendor
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := provider.Query(ctx)
	if err != nil {
		s.logger.Errorf("Failed to query %s GPUs: %v", provider.Name(), err)
		return snap, fmt.Errorf("query %s: %w", provider.Name(), err)
	}

	snap.Vendor = provider.Name()
	if records != nil {
		snap.GPUs = records
	}
	s.logger.Infof("Detected %d %s GPU(s) in %v", len(snap.GPUs), provider.Label(), time.Since(start))
	return snap, nil
}
