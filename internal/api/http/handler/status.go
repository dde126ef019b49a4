package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	store status.Store
}

func NewStatusHandler(store status.Store) *StatusHandler {
	return &StatusHandler{store: store}
}

func (h *StatusHandler) Get(ctx *gin.Context) {
	id, ok := partnerIDParam(ctx)
	if !ok {
		return
	}

	record, err := h.store.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Status not found for partner_id: " + id})
			return
		}
		slog.Error("Failed to read status", "partner_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status"})
		return
	}

	ctx.JSON(http.StatusOK, record)
}
