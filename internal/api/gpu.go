package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/shepherd-project/gpumon/internal/gpu"
	"github.com/shepherd-project/gpumon/internal/logger"
)

// SnapshotSource produces one telemetry snapshot per call.
// *gpu.Service implements it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*gpu.Snapshot, error)
}

// GPUHandler serves GET /api/gpu.
type GPUHandler struct {
	source SnapshotSource
	log    *logger.Logger
}

// NewGPUHandler creates a telemetry handler.
func NewGPUHandler(source SnapshotSource, log *logger.Logger) *GPUHandler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &GPUHandler{source: source, log: log}
}

// GetTelemetry detects the vendor tool, queries it and responds with the
// unified records. A missing tool is reported with status 200; query
// failures and panics produce a 500.
func (h *GPUHandler) GetTelemetry(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithField("requestId", getRequestID(c)).Errorf("GPU telemetry panicked: %v", r)
			FetchError(c, fmt.Sprint(r))
		}
	}()

	snap, err := h.source.Snapshot(c.Request.Context())
	switch {
	case errors.Is(err, gpu.ErrNoVendor):
		h.log.Debug("No GPU vendor tool found")
		Telemetry(c, NewTelemetryResponse(false, nil, err.Error()))
	case err != nil:
		h.log.WithError(err).WithField("requestId", getRequestID(c)).Error("Failed to fetch GPU stats")
		FetchError(c, err.Error())
	case snap == nil:
		FetchError(c, "empty snapshot")
	default:
		Telemetry(c, NewTelemetryResponse(snap.Found(), snap.GPUs, ""))
	}
}
