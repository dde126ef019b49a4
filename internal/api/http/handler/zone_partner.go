package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/EternisAI/zone-orchestrator/internal/workflow"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/gin-gonic/gin"
)

// Workflows is the part of the workflow engine the handlers submit to.
type Workflows interface {
	SubmitCreate(zp *zonepartner.ZonePartner) error
	SubmitDelete(partnerID string) error
	SubmitRedeploy(partnerID string) error
	SubmitDeployWorkbench(req workflow.WorkbenchDeployment) error
}

type ZonePartnerHandler struct {
	workflows Workflows
}

func NewZonePartnerHandler(workflows Workflows) *ZonePartnerHandler {
	return &ZonePartnerHandler{workflows: workflows}
}

func (h *ZonePartnerHandler) Create(ctx *gin.Context) {
	var req dto.ZonePartnerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	zp := req.ToModel()
	if err := zonepartner.Validate(zp); err != nil {
		slog.Warn("Rejected zone partner", "partner_id", req.PartnerID, "error", err)
		respondError(ctx, req.PartnerID, err)
		return
	}
	id, err := zonepartner.ParsePartnerID(zp.PartnerID)
	if err != nil {
		respondError(ctx, req.PartnerID, err)
		return
	}
	zp.PartnerID = id

	if err := h.workflows.SubmitCreate(zp); err != nil {
		respondError(ctx, id, err)
		return
	}

	ctx.JSON(http.StatusAccepted, dto.AcceptedResponse{
		Message:   fmt.Sprintf("Zone partner creation started for partner_id: %s", id),
		PartnerID: id,
	})
}

func (h *ZonePartnerHandler) Update(ctx *gin.Context) {
	ctx.JSON(http.StatusNotImplemented, gin.H{"error": "Updating a zone partner is not implemented"})
}

func (h *ZonePartnerHandler) Delete(ctx *gin.Context) {
	id, ok := partnerIDParam(ctx)
	if !ok {
		return
	}

	if err := h.workflows.SubmitDelete(id); err != nil {
		respondError(ctx, id, err)
		return
	}

	ctx.JSON(http.StatusAccepted, dto.AcceptedResponse{
		Message:   fmt.Sprintf("Zone partner deletion started for partner_id: %s", id),
		PartnerID: id,
	})
}

func (h *ZonePartnerHandler) Redeploy(ctx *gin.Context) {
	id, ok := partnerIDParam(ctx)
	if !ok {
		return
	}

	if err := h.workflows.SubmitRedeploy(id); err != nil {
		respondError(ctx, id, err)
		return
	}

	ctx.JSON(http.StatusAccepted, dto.AcceptedResponse{
		Message:   fmt.Sprintf("Zone partner redeployment started for partner_id: %s", id),
		PartnerID: id,
	})
}

func partnerIDParam(ctx *gin.Context) (string, bool) {
	id, err := zonepartner.ParsePartnerID(ctx.Param("partner_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}
