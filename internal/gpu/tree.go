package gpu

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// notAvailable is the placeholder amd-smi emits for unsupported readings.
const notAvailable = "N/A"

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// Lookup walks path through a decoded JSON document (map[string]any nodes)
// and returns the value at the end, or nil when any link is missing, is not
// an object, is null, or holds the "N/A" placeholder.
func Lookup(v any, path ...string) any {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		next, ok := obj[key]
		if !ok || next == nil {
			return nil
		}
		if s, isString := next.(string); isString && s == notAvailable {
			return nil
		}
		cur = next
	}
	return cur
}

// Float coerces a JSON leaf to float64. Numbers pass through; strings
// contribute their leading numeric prefix ("45.5 W" is 45.5). Anything else,
// including nil, is 0. The result is never NaN or infinite.
func Float(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		m := floatPrefix.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int coerces a JSON leaf to int. Numbers are truncated toward zero; strings
// contribute their leading integer prefix ("12.7" is 12). Results outside the
// int32 range, NaN and infinities are 0, as is anything else.
func Int(v any) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || !inInt32(t) {
			return 0
		}
		return int(t)
	case int:
		if !inInt32(float64(t)) {
			return 0
		}
		return t
	case string:
		n, ok := parseIntPrefix(t)
		if !ok || !inInt32(float64(n)) {
			return 0
		}
		return n
	default:
		return 0
	}
}

// String returns v when it is a string, the shortest decimal form when it is
// a number, and "" otherwise.
func String(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func inInt32(f float64) bool {
	return f >= math.MinInt32 && f <= math.MaxInt32
}

func parseIntPrefix(s string) (int, bool) {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
