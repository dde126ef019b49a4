package handler

import (
	"fmt"
	"net/http"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/gin-gonic/gin"
)

type MLWorkbenchHandler struct {
	workflows Workflows
}

func NewMLWorkbenchHandler(workflows Workflows) *MLWorkbenchHandler {
	return &MLWorkbenchHandler{workflows: workflows}
}

func (h *MLWorkbenchHandler) Deploy(ctx *gin.Context) {
	var req dto.DeployMLWorkbenchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := zonepartner.ParsePartnerID(req.PartnerID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.workflows.SubmitDeployWorkbench(req.ToDeployment(id)); err != nil {
		respondError(ctx, id, err)
		return
	}

	ctx.JSON(http.StatusAccepted, dto.AcceptedResponse{
		Message:   fmt.Sprintf("ML Workbench deployment started successfully for partner_id: %s", id),
		PartnerID: id,
	})
}
