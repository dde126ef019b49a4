package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/EternisAI/zone-orchestrator/internal/credentials"
	"github.com/gin-gonic/gin"
)

type CredentialsHandler struct {
	store *credentials.Store
}

func NewCredentialsHandler(store *credentials.Store) *CredentialsHandler {
	return &CredentialsHandler{store: store}
}

func (h *CredentialsHandler) SetAWSCredentials(ctx *gin.Context) {
	var req dto.AWSCredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.Set(credentials.Secrets{
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
		SessionToken:    req.SessionToken,
	})
	if err != nil {
		if errors.Is(err, credentials.ErrDisabled) {
			ctx.JSON(http.StatusForbidden, gin.H{"error": "Endpoint is disabled when using assumed roles"})
			return
		}
		slog.Error("Failed to set AWS credentials", "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "AWS credentials set successfully"})
}
