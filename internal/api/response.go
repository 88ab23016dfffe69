// Package api provides the HTTP handlers and middleware for gpumon.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shepherd-project/gpumon/internal/gpu"
)

// FetchErrorPrefix starts the error message of every 500 telemetry response.
const FetchErrorPrefix = "Failed to fetch GPU stats: "

// TelemetryResponse is the body of GET /api/gpu.
// HasNvidiaSmi is set whenever any vendor tool was found; HasGpuTool always
// carries the same value under a vendor-neutral name.
type TelemetryResponse struct {
	HasNvidiaSmi bool         `json:"hasNvidiaSmi"`
	HasGpuTool   bool         `json:"hasGpuTool"`
	GPUs         []gpu.Record `json:"gpus"`
	Error        string       `json:"error,omitempty"`
}

// NewTelemetryResponse builds a response from a snapshot. GPUs is never nil.
func NewTelemetryResponse(found bool, gpus []gpu.Record, errMsg string) TelemetryResponse {
	if gpus == nil {
		gpus = []gpu.Record{}
	}
	return TelemetryResponse{
		HasNvidiaSmi: found,
		HasGpuTool:   found,
		GPUs:         gpus,
		Error:        errMsg,
	}
}

// getRequestID gets the request ID from context, returns "unknown" if not set
func getRequestID(c *gin.Context) string {
	if requestID := c.GetString(RequestIDKey); requestID != "" {
		return requestID
	}
	return "unknown"
}

// Telemetry sends a 200 telemetry response.
func Telemetry(c *gin.Context, resp TelemetryResponse) {
	c.JSON(http.StatusOK, resp)
}

// FetchError sends the 500 telemetry response for an unexpected failure.
func FetchError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, NewTelemetryResponse(false, nil, FetchErrorPrefix+message))
}

// Success sends a successful JSON response with data
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, data)
}
