package gpu

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return v
}

func TestLookup(t *testing.T) {
	doc := decode(t, `{
		"power": {"socket_power": {"value": 140}},
		"fan": {"usage": "N/A"},
		"name": "N/A",
		"list": [1, 2],
		"nothing": null,
		"zero": {"value": 0}
	}`)

	tests := []struct {
		name string
		path []string
		want any
	}{
		{"nested number", []string{"power", "socket_power", "value"}, 140.0},
		{"intermediate N/A", []string{"fan", "usage", "value"}, nil},
		{"leaf N/A", []string{"name"}, nil},
		{"missing key", []string{"power", "limit", "value"}, nil},
		{"through array", []string{"list", "0"}, nil},
		{"null link", []string{"nothing", "value"}, nil},
		{"zero is present", []string{"zero", "value"}, 0.0},
		{"empty path", nil, doc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(doc, tt.path...))
		})
	}
}

func TestLookup_NonObjectRoot(t *testing.T) {
	assert.Nil(t, Lookup(nil, "a"))
	assert.Nil(t, Lookup("text", "a"))
	assert.Nil(t, Lookup([]any{1.0}, "a"))
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{"number", 45.5, 45.5},
		{"int", 7, 7},
		{"numeric string", "612.5", 612.5},
		{"string with unit", "45.5 W", 45.5},
		{"leading spaces", "  12", 12},
		{"exponent", "1e3", 1000},
		{"non numeric string", "abc", 0},
		{"N/A", "N/A", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"object", map[string]any{"value": 1.0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Float(tt.input))
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
	}{
		{"number", 48.0, 48},
		{"fraction truncates", 48.9, 48},
		{"negative fraction", -3.7, -3},
		{"numeric string", "87", 87},
		{"fraction string", "12.7", 12},
		{"string with unit", "71 C", 71},
		{"non numeric", "N/A", 0},
		{"nil", nil, 0},
		{"huge", 1e300, 0},
		{"int32 max", float64(math.MaxInt32), math.MaxInt32},
		{"int32 min", float64(math.MinInt32), math.MinInt32},
		{"above int32", float64(1 << 40), 0},
		{"below int32", -float64(1 << 40), 0},
		{"string above int32", "4294967296", 0},
		{"NaN", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.input))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "MI300X", String("MI300X"))
	assert.Equal(t, "6.8", String(6.8))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "", String(true))
}
