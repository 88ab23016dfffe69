package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfoString(t *testing.T) {
	info := &VersionInfo{Version: "1.2.3", GitCommit: "unknown"}
	assert.Equal(t, "1.2.3", info.String())

	info.GitCommit = "0123456789abcdef"
	assert.Equal(t, "1.2.3 (0123456)", info.String())
}

func TestFullString(t *testing.T) {
	info := GetVersionInfo()
	full := info.FullString()
	assert.Contains(t, full, Name)
	assert.Contains(t, full, info.GoVersion)
	assert.Contains(t, full, info.Platform)
}
