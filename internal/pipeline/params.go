package pipeline

import (
	"strconv"
	"strings"

	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

const (
	ParamAccountID      = "PZ_ACCOUNT_ID"
	ParamRegion         = "PZ_REGION"
	ParamDeploymentName = "PZ_DEPLOYMENT_NAME"
	ParamPartnerID      = "PZ_PARTNER_ID"
	ParamSubnetCount    = "PZ_SUBNET_COUNT"
	ParamInstanceTypes  = "PZ_INSTANCE_TYPES"
	ParamMinNodes       = "PZ_MIN_NODES"
	ParamMaxNodes       = "PZ_MAX_NODES"
	ParamDesiredNodes   = "PZ_DESIRED_NODES"
	ParamTargetBranch   = "PZ_TARGET_BRANCH"
	ParamDestroyEnv     = "PZ_DESTROY_ENV"
)

// Params is the flat parameter map handed to the pipeline.
type Params map[string]string

// CreateParams carries the full descriptor; the pipeline has no prior run context yet.
func CreateParams(zp *zonepartner.ZonePartner) Params {
	v := zp.Variables
	return Params{
		ParamAccountID:      zp.AccountID,
		ParamRegion:         v.Region,
		ParamDeploymentName: v.DeploymentName,
		ParamPartnerID:      zp.PartnerID,
		ParamSubnetCount:    strconv.Itoa(v.SubnetCount),
		ParamInstanceTypes:  quotedList(v.InstanceTypes),
		ParamMinNodes:       strconv.Itoa(v.MinNodes),
		ParamMaxNodes:       strconv.Itoa(v.MaxNodes),
		ParamDesiredNodes:   strconv.Itoa(v.DesiredNodes),
	}
}

// Trim keeps only what a non-create run needs: the branch holding the zone's
// persisted run context and the account id.
func Trim(params Params) Params {
	return Params{
		ParamTargetBranch: params[ParamDeploymentName] + "-" + params[ParamRegion],
		ParamAccountID:    params[ParamAccountID],
	}
}

func RedeployParams(zp *zonepartner.ZonePartner) Params {
	return Trim(CreateParams(zp))
}

func DestroyParams(zp *zonepartner.ZonePartner) Params {
	params := Trim(CreateParams(zp))
	params[ParamDestroyEnv] = "true"
	return params
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return strings.Join(quoted, ",")
}
