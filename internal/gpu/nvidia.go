package gpu

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// nvidiaQueryFields is the --query-gpu field list. ParseNvidiaCSV depends on
// this order.
var nvidiaQueryFields = []string{
	"index",
	"name",
	"driver_version",
	"temperature.gpu",
	"utilization.gpu",
	"utilization.memory",
	"memory.total",
	"memory.free",
	"memory.used",
	"power.draw",
	"power.limit",
	"clocks.current.graphics",
	"clocks.current.memory",
	"fan.speed",
}

// nvidiaProvider implements Provider using nvidia-smi.
type nvidiaProvider struct {
	runner   CommandRunner
	binary   string
	env      []string
	platform string
	logger   Logger
}

// NewNvidiaProvider creates a new NVIDIA GPU provider.
func NewNvidiaProvider(cfg *Config) Provider {
	cfg = cfg.withDefaults()
	return &nvidiaProvider{
		runner:   cfg.Runner,
		binary:   cfg.NvidiaSMIPath,
		env:      cfg.toolEnv(),
		platform: cfg.Platform,
		logger:   cfg.Logger,
	}
}

func (p *nvidiaProvider) Name() Vendor {
	return VendorNVIDIA
}

func (p *nvidiaProvider) Label() string {
	return "NVIDIA"
}

// IsAvailable resolves nvidia-smi on PATH. On Windows the tool often lives
// outside PATH lookups' reach, so it is executed with -L instead.
func (p *nvidiaProvider) IsAvailable(ctx context.Context) bool {
	if p.platform == "windows" {
		_, err := p.runner.Run(ctx, p.env, p.binary, "-L")
		return err == nil
	}
	_, err := p.runner.LookPath(p.binary)
	return err == nil
}

func (p *nvidiaProvider) Query(ctx context.Context) ([]Record, error) {
	output, err := p.runner.Run(ctx, p.env, p.binary,
		"--query-gpu="+strings.Join(nvidiaQueryFields, ","),
		"--format=csv,noheader,nounits")
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi failed: %w", err)
	}

	records, err := ParseNvidiaCSV(string(output))
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		p.logger.Debugf("Detected NVIDIA GPU[%d]: %s", r.Index, r.Name)
	}
	return records, nil
}

// ParseNvidiaCSV parses nvidia-smi "csv,noheader,nounits" output produced
// for nvidiaQueryFields. One record is returned per non-blank line.
//
// Readings nvidia-smi marks as unavailable ("[N/A]", "[Not Supported]") are
// reported as 0, and a non-numeric fan speed is always 0. Any other
// malformed line aborts the parse with an error.
func ParseNvidiaCSV(output string) ([]Record, error) {
	records := make([]Record, 0)
	lines := strings.Split(strings.TrimSpace(output), "\n")

	for lineNo, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ", ")
		if len(fields) != len(nvidiaQueryFields) {
			return nil, fmt.Errorf("nvidia-smi line %d: expected %d fields, got %d: %q",
				lineNo+1, len(nvidiaQueryFields), len(fields), line)
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		p := csvFieldParser{fields: fields}
		r := Record{
			Index:         p.int(0),
			Name:          fields[1],
			DriverVersion: fields[2],
			Temperature:   p.int(3),
			Utilization: Utilization{
				GPU:    float64(p.int(4)),
				Memory: float64(p.int(5)),
			},
			Memory: Memory{
				Total: float64(p.int(6)),
				Free:  float64(p.int(7)),
				Used:  float64(p.int(8)),
			},
			Power: Power{
				Draw:  p.float(9),
				Limit: p.float(10),
			},
			Clocks: Clocks{
				Graphics: p.int(11),
				Memory:   p.int(12),
			},
		}
		// Fans are missing on passively cooled and laptop GPUs.
		if speed, ok := parseIntPrefix(fields[13]); ok {
			r.Fan.Speed = float64(speed)
		}

		if p.err != nil {
			return nil, fmt.Errorf("nvidia-smi line %d: %w", lineNo+1, p.err)
		}
		r.fillDefaults("NVIDIA")
		records = append(records, r)
	}

	return uniqueByIndex(records), nil
}

// csvFieldParser converts positional fields and remembers the first error.
type csvFieldParser struct {
	fields []string
	err    error
}

func (p *csvFieldParser) int(i int) int {
	s := p.fields[i]
	if isUnavailable(s) {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %s: invalid integer %q", nvidiaQueryFields[i], s)
	}
	return n
}

func (p *csvFieldParser) float(i int) float64 {
	s := p.fields[i]
	if isUnavailable(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		if p.err == nil {
			p.err = fmt.Errorf("field %s: invalid number %q", nvidiaQueryFields[i], s)
		}
		return 0
	}
	return f
}

// isUnavailable matches nvidia-smi placeholders such as "[N/A]".
func isUnavailable(s string) bool {
	switch strings.Trim(s, "[]") {
	case "N/A", "Not Supported", "Unknown Error", "Insufficient Permissions":
		return true
	}
	return false
}
