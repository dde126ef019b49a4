package zonepartner

type Cloud string

const (
	CloudAWS    Cloud = "aws"
	CloudAzure  Cloud = "azure"
	CloudGoogle Cloud = "google"
)

// ZonePartner describes a requested partner zone. It is persisted once on
// submission and read back unchanged for delete and redeploy.
type ZonePartner struct {
	PlanOnly    bool      `json:"plan_only"`
	AccountID   string    `json:"account_id,omitempty" validate:"omitempty,aws_account_id"`
	Name        string    `json:"name" validate:"required,min=1,max=100"`
	Description string    `json:"description" validate:"max=500"`
	Location    string    `json:"location" validate:"required,min=1,max=50"`
	Cloud       Cloud     `json:"cloud" validate:"required,oneof=aws azure google"`
	PartnerID   string    `json:"partner_id" validate:"required,partner_id"`
	UserID      string    `json:"user_id" validate:"required"`
	Variables   Variables `json:"variables"`
}

type Variables struct {
	Region         string   `json:"region" validate:"required"`
	DeploymentName string   `json:"deployment_name" validate:"required,deployment_name"`
	SubnetCount    int      `json:"subnet_count" validate:"min=1"`
	InstanceTypes  []string `json:"instance_types" validate:"min=1,dive,required"`
	MinNodes       int      `json:"min_nodes" validate:"min=0"`
	MaxNodes       int      `json:"max_nodes" validate:"min=0"`
	DesiredNodes   int      `json:"desired_nodes" validate:"min=0"`
}

// DefaultVariables are applied when a request carries no variables at all.
func DefaultVariables() Variables {
	return Variables{
		Region:         "us-east-1",
		DeploymentName: "edge-test",
		SubnetCount:    2,
		InstanceTypes:  []string{"m5.2xlarge", "t3.large"},
		MinNodes:       2,
		MaxNodes:       5,
		DesiredNodes:   3,
	}
}

// TargetBranch is the pipeline branch holding the zone's persisted run context.
func (z *ZonePartner) TargetBranch() string {
	return z.Variables.DeploymentName + "-" + z.Variables.Region
}
