package gpu

import "strings"

// Environment variables consulted for the AMD device allow-list, in order.
const (
	EnvHIPVisibleDevices  = "HIP_VISIBLE_DEVICES"
	EnvROCRVisibleDevices = "ROCR_VISIBLE_DEVICES"
)

// VisibleDevices is an allow-list of device indices. A nil set allows every
// device.
type VisibleDevices map[int]struct{}

// Allows reports whether the device with the given index should be reported.
func (v VisibleDevices) Allows(index int) bool {
	if v == nil {
		return true
	}
	_, ok := v[index]
	return ok
}

// ParseVisibleDevices parses a comma separated list such as "0,2".
// Tokens that are not integers are ignored. It returns nil (all devices) when
// no valid index remains.
func ParseVisibleDevices(value string) VisibleDevices {
	if value == "" {
		return nil
	}

	set := VisibleDevices{}
	for _, part := range strings.Split(value, ",") {
		if n, ok := parseIntPrefix(part); ok {
			set[n] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// VisibleDevicesFromEnv reads HIP_VISIBLE_DEVICES, or ROCR_VISIBLE_DEVICES
// when the former is unset. A set-but-empty HIP_VISIBLE_DEVICES still wins
// and means all devices.
func VisibleDevicesFromEnv(lookup func(string) (string, bool)) VisibleDevices {
	if lookup == nil {
		return nil
	}
	value, ok := lookup(EnvHIPVisibleDevices)
	if !ok {
		value, ok = lookup(EnvROCRVisibleDevices)
	}
	if !ok {
		return nil
	}
	return ParseVisibleDevices(value)
}
