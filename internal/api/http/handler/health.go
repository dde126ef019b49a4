package handler

import (
	"net/http"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

// ReadinessCheck returns nil once the process has the configuration it
// needs to accept work.
type ReadinessCheck func() error

type HealthHandler struct {
	ready    ReadinessCheck
	logLevel string
}

func NewHealthHandler(ready ReadinessCheck, logLevel string) *HealthHandler {
	return &HealthHandler{ready: ready, logLevel: logLevel}
}

func (h *HealthHandler) Check(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{Status: "UP"})
}

func (h *HealthHandler) Readiness(ctx *gin.Context) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service Unavailable: " + err.Error()})
			return
		}
	}

	ctx.JSON(http.StatusOK, dto.ReadinessResponse{
		Status:   "ready",
		Message:  "All configurations loaded successfully",
		LogLevel: h.logLevel,
	})
}
