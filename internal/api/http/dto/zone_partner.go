package dto

import (
	"strings"

	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

type ZonePartnerRequest struct {
	// PlanOnly defaults to true when omitted.
	PlanOnly    *bool             `json:"plan_only"`
	AccountID   string            `json:"account_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Cloud       string            `json:"cloud"`
	PartnerID   string            `json:"partner_id"`
	UserID      string            `json:"user_id"`
	Variables   *VariablesRequest `json:"variables"`
}

type VariablesRequest struct {
	Region         string   `json:"region"`
	DeploymentName string   `json:"deployment_name"`
	SubnetCount    int      `json:"subnet_count"`
	InstanceTypes  []string `json:"instance_types"`
	MinNodes       int      `json:"min_nodes"`
	MaxNodes       int      `json:"max_nodes"`
	DesiredNodes   int      `json:"desired_nodes"`
}

func (r *ZonePartnerRequest) ToModel() *zonepartner.ZonePartner {
	planOnly := true
	if r.PlanOnly != nil {
		planOnly = *r.PlanOnly
	}

	variables := zonepartner.DefaultVariables()
	if r.Variables != nil {
		variables = zonepartner.Variables{
			Region:         r.Variables.Region,
			DeploymentName: r.Variables.DeploymentName,
			SubnetCount:    r.Variables.SubnetCount,
			InstanceTypes:  r.Variables.InstanceTypes,
			MinNodes:       r.Variables.MinNodes,
			MaxNodes:       r.Variables.MaxNodes,
			DesiredNodes:   r.Variables.DesiredNodes,
		}
	}

	return &zonepartner.ZonePartner{
		PlanOnly:    planOnly,
		AccountID:   r.AccountID,
		Name:        r.Name,
		Description: r.Description,
		Location:    r.Location,
		Cloud:       zonepartner.Cloud(strings.ToLower(r.Cloud)),
		PartnerID:   r.PartnerID,
		UserID:      r.UserID,
		Variables:   variables,
	}
}

type AcceptedResponse struct {
	Message   string `json:"message"`
	PartnerID string `json:"partner_id"`
}

type ValidationErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}
