// Package metrics exposes GPU telemetry as Prometheus gauges. Every scrape
// runs one snapshot; nothing is cached between scrapes.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shepherd-project/gpumon/internal/gpu"
)

const namespace = "gpumon"

// SnapshotSource produces one telemetry snapshot per call.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*gpu.Snapshot, error)
}

// Logger is the subset of the application logger the collector uses.
type Logger interface {
	Errorf(format string, args ...interface{})
}

var gpuLabels = []string{"gpu", "name", "vendor"}

type gpuMetric struct {
	desc  *prometheus.Desc
	value func(r *gpu.Record) float64
}

func newGPUMetric(name, help string, value func(r *gpu.Record) float64) gpuMetric {
	return gpuMetric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "gpu", name), help, gpuLabels, nil),
		value: value,
	}
}

// Collector implements prometheus.Collector
type Collector struct {
	source  SnapshotSource
	timeout time.Duration
	log     Logger

	gpuMetrics    []gpuMetric
	toolAvailable *prometheus.Desc
	scrapeSuccess *prometheus.Desc
	scrapeSeconds *prometheus.Desc
}

// NewCollector creates a collector over source. timeout bounds one scrape;
// zero means unbounded.
func NewCollector(source SnapshotSource, timeout time.Duration, log Logger) *Collector {
	return &Collector{
		source:  source,
		timeout: timeout,
		log:     log,
		gpuMetrics: []gpuMetric{
			newGPUMetric("temperature_celsius", "GPU temperature in degrees Celsius.",
				func(r *gpu.Record) float64 { return float64(r.Temperature) }),
			newGPUMetric("utilization_percent", "GPU core utilization in percent.",
				func(r *gpu.Record) float64 { return r.Utilization.GPU }),
			newGPUMetric("memory_utilization_percent", "GPU memory utilization in percent as reported by gpumon.",
				func(r *gpu.Record) float64 { return r.Utilization.Memory }),
			newGPUMetric("memory_total", "Total GPU memory in the unit reported by the vendor tool.",
				func(r *gpu.Record) float64 { return r.Memory.Total }),
			newGPUMetric("memory_used", "Used GPU memory in the unit reported by the vendor tool.",
				func(r *gpu.Record) float64 { return r.Memory.Used }),
			newGPUMetric("power_draw_watts", "Current GPU power draw in watts.",
				func(r *gpu.Record) float64 { return r.Power.Draw }),
			newGPUMetric("power_limit_watts", "GPU power limit in watts.",
				func(r *gpu.Record) float64 { return r.Power.Limit }),
			newGPUMetric("clock_graphics_mhz", "Current graphics clock in MHz.",
				func(r *gpu.Record) float64 { return float64(r.Clocks.Graphics) }),
			newGPUMetric("clock_memory_mhz", "Current memory clock in MHz.",
				func(r *gpu.Record) float64 { return float64(r.Clocks.Memory) }),
			newGPUMetric("fan_speed_percent", "Fan speed in percent, 0 when unreported.",
				func(r *gpu.Record) float64 { return r.Fan.Speed }),
		},
		toolAvailable: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tool_available"),
			"Whether the vendor telemetry tool was detected (1) or not (0).",
			[]string{"vendor"}, nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scrape_success"),
			"Whether the last telemetry query succeeded (1) or failed (0).",
			nil, nil,
		),
		scrapeSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scrape_duration_seconds"),
			"Time spent detecting and querying the vendor tool.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.gpuMetrics {
		ch <- m.desc
	}
	ch <- c.toolAvailable
	ch <- c.scrapeSuccess
	ch <- c.scrapeSeconds
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := c.source.Snapshot(ctx)
	ch <- prometheus.MustNewConstMetric(c.scrapeSeconds, prometheus.GaugeValue, time.Since(start).Seconds())

	success := 1.0
	if err != nil && !errors.Is(err, gpu.ErrNoVendor) {
		success = 0
		if c.log != nil {
			c.log.Errorf("GPU metrics scrape failed: %v", err)
		}
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, success)

	if snap == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.toolAvailable, prometheus.GaugeValue, boolToFloat(snap.Availability.NVIDIA), string(gpu.VendorNVIDIA))
	ch <- prometheus.MustNewConstMetric(c.toolAvailable, prometheus.GaugeValue, boolToFloat(snap.Availability.AMD), string(gpu.VendorAMD))

	for i := range snap.GPUs {
		r := &snap.GPUs[i]
		labels := []string{strconv.Itoa(r.Index), r.Name, string(snap.Vendor)}
		for _, m := range c.gpuMetrics {
			ch <- prometheus.MustNewConstMetric(m.desc, prometheus.GaugeValue, m.value(r), labels...)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
