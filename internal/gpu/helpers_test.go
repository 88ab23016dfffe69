package gpu

import (
	"context"
	"errors"
	"os/exec"
)

type fakeResult struct {
	output string
	err    error
}

type fakeCall struct {
	env  []string
	name string
	args []string
}

// fakeRunner resolves names listed in paths and answers Run from results,
// keyed by command name.
type fakeRunner struct {
	paths   map[string]bool
	results map[string]fakeResult
	calls   []fakeCall
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.paths[file] {
		return "/usr/bin/" + file, nil
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func (f *fakeRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, fakeCall{env: env, name: name, args: args})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := f.results[name]
	if !ok {
		return nil, errors.New("exec: \"" + name + "\": executable file not found in $PATH")
	}
	return []byte(r.output), r.err
}

// stubProvider is a Provider with canned answers.
type stubProvider struct {
	name      Vendor
	available bool
	records   []Record
	err       error
	panics    bool
	queries   int
	deadline  bool
}

func (s *stubProvider) Name() Vendor  { return s.name }
func (s *stubProvider) Label() string { return string(s.name) }

func (s *stubProvider) IsAvailable(ctx context.Context) bool {
	if s.panics {
		panic("detector exploded")
	}
	return s.available
}

func (s *stubProvider) Query(ctx context.Context) ([]Record, error) {
	s.queries++
	_, s.deadline = ctx.Deadline()
	return s.records, s.err
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

const amdStaticFixture = `{
  "gpu_data": [
    {
      "gpu": 0,
      "asic": {"market_name": "AMD Instinct MI300X", "vendor_id": "0x1002"},
      "driver": {"name": "amdgpu", "version": "6.8.5"},
      "limit": {"max_power": {"value": 750, "unit": "W"}}
    },
    {
      "gpu": 1,
      "asic": {"market_name": "N/A"},
      "driver": {"name": "amdgpu", "version": "N/A"},
      "limit": {"max_power": {"value": "N/A", "unit": "W"}}
    }
  ]
}`

const amdMetricFixture = `{
  "gpu_data": [
    {
      "gpu": 0,
      "usage": {"gfx_activity": {"value": 12, "unit": "%"}},
      "power": {"socket_power": {"value": 140, "unit": "W"}},
      "clock": {
        "gfx_0": {"clk": {"value": 2100, "unit": "MHz"}},
        "mem_0": {"clk": {"value": 1300, "unit": "MHz"}}
      },
      "temperature": {"hotspot": {"value": 48, "unit": "C"}},
      "fan": {"usage": "N/A"},
      "mem_usage": {
        "total_vram": {"value": 196592, "unit": "MB"},
        "used_vram": {"value": 283, "unit": "MB"},
        "free_visible_vram": {"value": 196309, "unit": "MB"}
      }
    },
    {
      "gpu": 1,
      "usage": {"gfx_activity": {"value": "87", "unit": "%"}},
      "power": {"socket_power": {"value": 612.5, "unit": "W"}},
      "clock": {
        "gfx_0": {"clk": {"value": 1900, "unit": "MHz"}},
        "mem_0": {"clk": {"value": 1300, "unit": "MHz"}}
      },
      "temperature": {"hotspot": {"value": 71, "unit": "C"}},
      "fan": {"usage": {"value": 35.5, "unit": "%"}},
      "mem_usage": {
        "total_vram": {"value": 196592, "unit": "MB"},
        "used_vram": {"value": 150000, "unit": "MB"},
        "free_visible_vram": {"value": 46592, "unit": "MB"}
      }
    }
  ]
}`
