package gpu

import (
	"fmt"
	"strings"
)

// Vendor identifies which vendor tool produced (or should produce) telemetry.
type Vendor string

const (
	VendorAuto   Vendor = "auto"
	VendorNVIDIA Vendor = "nvidia"
	VendorAMD    Vendor = "amd"
)

// ParseVendor converts a configured vendor preference to a Vendor.
// An empty string means auto. Matching is case-insensitive.
func ParseVendor(s string) (Vendor, error) {
	switch v := Vendor(strings.ToLower(strings.TrimSpace(s))); v {
	case "", VendorAuto:
		return VendorAuto, nil
	case VendorNVIDIA, VendorAMD:
		return v, nil
	default:
		return "", fmt.Errorf("unknown GPU vendor: %q (must be auto, nvidia, or amd)", s)
	}
}

// Record is the normalized telemetry for a single GPU.
// Numeric fields are always populated; a value the vendor tool does not
// report is 0.
type Record struct {
	Index         int         `json:"index"`
	Name          string      `json:"name"`
	DriverVersion string      `json:"driverVersion"`
	Temperature   int         `json:"temperature"` // celsius
	Utilization   Utilization `json:"utilization"`
	Memory        Memory      `json:"memory"`
	Power         Power       `json:"power"`
	Clocks        Clocks      `json:"clocks"`
	Fan           Fan         `json:"fan"`
}

// Utilization holds percentages 0-100.
type Utilization struct {
	GPU    float64 `json:"gpu"`
	Memory float64 `json:"memory"`
}

// Memory is in MiB for NVIDIA and in the unit amd-smi reports for AMD.
type Memory struct {
	Total float64 `json:"total"`
	Used  float64 `json:"used"`
	Free  float64 `json:"free"`
}

// Power is in watts.
type Power struct {
	Draw  float64 `json:"draw"`
	Limit float64 `json:"limit"`
}

// Clocks are in MHz.
type Clocks struct {
	Graphics int `json:"graphics"`
	Memory   int `json:"memory"`
}

// Fan speed is a percentage.
type Fan struct {
	Speed float64 `json:"speed"`
}

const unknownDriver = "Unknown"

// fillDefaults guarantees the non-empty name and driver invariants.
func (r *Record) fillDefaults(vendorLabel string) {
	if r.Name == "" {
		r.Name = fmt.Sprintf("%s GPU %d", vendorLabel, r.Index)
	}
	if r.DriverVersion == "" {
		r.DriverVersion = unknownDriver
	}
}

// uniqueByIndex drops records whose index was already seen, keeping the first.
func uniqueByIndex(records []Record) []Record {
	seen := make(map[int]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		if _, dup := seen[r.Index]; dup {
			continue
		}
		seen[r.Index] = struct{}{}
		out = append(out, r)
	}
	return out
}
