package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/shepherd-project/gpumon/internal/gpu"
	"github.com/shepherd-project/gpumon/internal/version"
)

// Detector reports which vendor tools are usable.
// *gpu.Service implements it.
type Detector interface {
	Detect(ctx context.Context) gpu.Availability
}

// HostInfo is the host section of GET /api/info.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelVersion   string `json:"kernelVersion"`
	KernelArch      string `json:"kernelArch"`
	Uptime          uint64 `json:"uptime"`
}

// InfoResponse is the body of GET /api/info.
type InfoResponse struct {
	Name    string               `json:"name"`
	Version *version.VersionInfo `json:"version"`
	Status  string               `json:"status"`
	Host    *HostInfo            `json:"host,omitempty"`
	Tools   gpu.Availability     `json:"tools"`
}

// InfoHandler serves service and host information.
type InfoHandler struct {
	detector Detector
	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

// NewInfoHandler creates an info handler.
func NewInfoHandler(detector Detector) *InfoHandler {
	return &InfoHandler{detector: detector, hostInfo: host.InfoWithContext}
}

// GetInfo handles GET /api/info. Host data is omitted when gopsutil
// cannot read it.
func (h *InfoHandler) GetInfo(c *gin.Context) {
	ctx := c.Request.Context()

	resp := InfoResponse{
		Name:    "gpumon",
		Version: version.GetVersionInfo(),
		Status:  "running",
	}
	if h.detector != nil {
		resp.Tools = h.detector.Detect(ctx)
	}
	if info, err := h.hostInfo(ctx); err == nil && info != nil {
		resp.Host = &HostInfo{
			Hostname:        info.Hostname,
			OS:              info.OS,
			Platform:        info.Platform,
			PlatformVersion: info.PlatformVersion,
			KernelVersion:   info.KernelVersion,
			KernelArch:      info.KernelArch,
			Uptime:          info.Uptime,
		}
	}

	Success(c, resp)
}

// Health handles GET /healthz.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
