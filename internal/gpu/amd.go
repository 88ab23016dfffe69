package gpu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// amdSeparator is echoed between the static and metric documents so that a
// single shell round-trip returns both.
const amdSeparator = "__GPUMON_AMD_SMI_SEPARATOR__"

// amdProvider implements Provider using amd-smi's JSON output.
type amdProvider struct {
	runner    CommandRunner
	binary    string
	env       []string
	platform  string
	lookupEnv func(string) (string, bool)
	logger    Logger
}

// NewAMDProvider creates a new AMD GPU provider.
func NewAMDProvider(cfg *Config) Provider {
	cfg = cfg.withDefaults()
	return &amdProvider{
		runner:    cfg.Runner,
		binary:    cfg.AMDSMIPath,
		env:       cfg.toolEnv(),
		platform:  cfg.Platform,
		lookupEnv: cfg.LookupEnv,
		logger:    cfg.Logger,
	}
}

func (p *amdProvider) Name() Vendor {
	return VendorAMD
}

func (p *amdProvider) Label() string {
	return "AMD"
}

// IsAvailable resolves amd-smi on PATH. On Windows the tool is assumed to be
// present without checking; a missing tool then surfaces as a query error.
func (p *amdProvider) IsAvailable(ctx context.Context) bool {
	if p.platform == "windows" {
		return true
	}
	_, err := p.runner.LookPath(p.binary)
	return err == nil
}

func (p *amdProvider) Query(ctx context.Context) ([]Record, error) {
	shell, flag, script := amdScript(p.platform, p.binary)

	output, err := p.runner.Run(ctx, p.env, shell, flag, script)
	if err != nil {
		return nil, fmt.Errorf("amd-smi failed: %w", err)
	}

	static, metric, err := splitAMDOutput(string(output))
	if err != nil {
		p.logger.Errorf("Failed to parse amd-smi output: %v", err)
		return []Record{}, nil
	}

	records, err := ParseAMDJSON([]byte(static), []byte(metric), VisibleDevicesFromEnv(p.lookupEnv))
	if err != nil {
		// A malformed document is not fatal; report no devices.
		p.logger.Errorf("Failed to parse amd-smi JSON output: %v", err)
		return []Record{}, nil
	}
	for _, r := range records {
		p.logger.Debugf("Detected AMD GPU[%d]: %s", r.Index, r.Name)
	}
	return records, nil
}

// amdScript builds the shell invocation that runs "static" and "metric"
// back to back. The binary is quoted for the target shell so paths with
// spaces or metacharacters reach amd-smi intact.
func amdScript(platform, binary string) (shell, flag, script string) {
	if platform == "windows" {
		bin := `"` + binary + `"`
		// cmd /C strips the outermost quote pair when the line holds more than two.
		script = fmt.Sprintf(`"%s static --json && echo %s && %s metric --json"`,
			bin, amdSeparator, bin)
		return "cmd", "/C", script
	}

	bin := "'" + strings.ReplaceAll(binary, "'", `'\''`) + "'"
	script = fmt.Sprintf("%s static --json && echo %s && %s metric --json",
		bin, amdSeparator, bin)
	return "sh", "-c", script
}

// splitAMDOutput cuts the combined output at the separator line.
func splitAMDOutput(output string) (static, metric string, err error) {
	static, metric, found := strings.Cut(output, amdSeparator)
	if !found {
		return "", "", fmt.Errorf("amd-smi output is missing the static/metric separator")
	}
	return static, metric, nil
}

// ParseAMDJSON builds records from the amd-smi "static --json" and
// "metric --json" documents. Only devices allowed by visible are included.
//
// When either document cannot be decoded, or the static document has no
// gpu_data array, the result is an empty slice together with an error
// describing the problem; callers treat that as "no devices".
func ParseAMDJSON(static, metric []byte, visible VisibleDevices) ([]Record, error) {
	records := make([]Record, 0)

	var staticDoc, metricDoc any
	if err := json.Unmarshal(static, &staticDoc); err != nil {
		return records, fmt.Errorf("decode static document: %w", err)
	}
	if err := json.Unmarshal(metric, &metricDoc); err != nil {
		return records, fmt.Errorf("decode metric document: %w", err)
	}

	devices, ok := Lookup(staticDoc, "gpu_data").([]any)
	if !ok {
		return records, fmt.Errorf("static document has no gpu_data array")
	}
	metrics, _ := Lookup(metricDoc, "gpu_data").([]any)

	for _, device := range devices {
		index := Int(Lookup(device, "gpu"))
		if !visible.Allows(index) {
			continue
		}
		records = append(records, amdRecord(index, device, metricEntry(metrics, index)))
	}

	return uniqueByIndex(records), nil
}

// metricEntry finds the metric entry for a device. Entries are matched on
// their "gpu" id first; position in the array is the fallback for documents
// that omit the id.
func metricEntry(metrics []any, index int) any {
	for _, m := range metrics {
		if id := Lookup(m, "gpu"); id != nil && Int(id) == index {
			return m
		}
	}
	if index >= 0 && index < len(metrics) {
		if Lookup(metrics[index], "gpu") == nil {
			return metrics[index]
		}
	}
	return map[string]any{}
}

// amdRecord maps one static device entry and its metric entry to a Record.
func amdRecord(index int, device, metric any) Record {
	total := Float(Lookup(metric, "mem_usage", "total_vram", "value"))
	used := Float(Lookup(metric, "mem_usage", "used_vram", "value"))
	free := Float(Lookup(metric, "mem_usage", "free_visible_vram", "value"))

	r := Record{
		Index:         index,
		Name:          String(Lookup(device, "asic", "market_name")),
		DriverVersion: String(Lookup(device, "driver", "version")),
		Temperature:   Int(Lookup(metric, "temperature", "hotspot", "value")),
		Utilization: Utilization{
			GPU:    float64(Int(Lookup(metric, "usage", "gfx_activity", "value"))),
			Memory: amdMemoryUtilization(total, free),
		},
		Memory: Memory{
			Total: total,
			Used:  used,
			Free:  free,
		},
		Power: Power{
			Draw:  Float(Lookup(metric, "power", "socket_power", "value")),
			Limit: Float(Lookup(device, "limit", "max_power", "value")),
		},
		Clocks: Clocks{
			Graphics: Int(Lookup(metric, "clock", "gfx_0", "clk", "value")),
			Memory:   Int(Lookup(metric, "clock", "mem_0", "clk", "value")),
		},
		Fan: Fan{
			Speed: Float(Lookup(metric, "fan", "usage", "value")),
		},
	}
	r.fillDefaults("AMD")
	return r
}

// amdMemoryUtilization keeps the formula existing dashboards were built
// against. FIXME: this is not used/total; (total-free)/total*100 is the
// conventional figure, but switching changes reported numbers and needs
// product sign-off.
func amdMemoryUtilization(total, free float64) float64 {
	if total <= 0 {
		return 0
	}
	return ((1.0 - (total - free)) / total) * 100
}
