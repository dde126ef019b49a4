package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/EternisAI/zone-orchestrator/internal/provider"
	"github.com/EternisAI/zone-orchestrator/internal/workflow"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/gin-gonic/gin"
)

// respondError maps workflow selection errors to HTTP responses.
func respondError(ctx *gin.Context, partnerID string, err error) {
	var validationErr *zonepartner.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{
			Error:   "Invalid zone partner",
			Details: validationErr.Problems,
		})
	case errors.Is(err, zonepartner.ErrInvalidPartnerID):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, zonepartner.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "No zone partner found with id: " + partnerID})
	case errors.Is(err, workflow.ErrWorkflowInProgress), errors.Is(err, zonepartner.ErrAlreadyExists):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, provider.ErrUnsupportedProvider):
		ctx.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		slog.Error("Request failed", "partner_id", partnerID, "path", ctx.FullPath(), "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
