package pipeline

import (
	"context"
	"testing"

	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/stretchr/testify/assert"
)

func testZonePartner() *zonepartner.ZonePartner {
	return &zonepartner.ZonePartner{
		AccountID: "123456789012",
		Cloud:     zonepartner.CloudAWS,
		PartnerID: "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		Variables: zonepartner.Variables{
			Region:         "us-east-1",
			DeploymentName: "edge-test",
			SubnetCount:    2,
			InstanceTypes:  []string{"m5.2xlarge", "t3.large"},
			MinNodes:       2,
			MaxNodes:       5,
			DesiredNodes:   3,
		},
	}
}

func TestCreateParams(t *testing.T) {
	params := CreateParams(testZonePartner())

	assert.Equal(t, Params{
		"PZ_ACCOUNT_ID":      "123456789012",
		"PZ_REGION":          "us-east-1",
		"PZ_DEPLOYMENT_NAME": "edge-test",
		"PZ_PARTNER_ID":      "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		"PZ_SUBNET_COUNT":    "2",
		"PZ_INSTANCE_TYPES":  `"m5.2xlarge","t3.large"`,
		"PZ_MIN_NODES":       "2",
		"PZ_MAX_NODES":       "5",
		"PZ_DESIRED_NODES":   "3",
	}, params)
}

func TestRedeployParamsAreTrimmed(t *testing.T) {
	assert.Equal(t, Params{
		"PZ_TARGET_BRANCH": "edge-test-us-east-1",
		"PZ_ACCOUNT_ID":    "123456789012",
	}, RedeployParams(testZonePartner()))
}

func TestDestroyParamsAddDestroyFlag(t *testing.T) {
	assert.Equal(t, Params{
		"PZ_TARGET_BRANCH": "edge-test-us-east-1",
		"PZ_ACCOUNT_ID":    "123456789012",
		"PZ_DESTROY_ENV":   "true",
	}, DestroyParams(testZonePartner()))
}

func TestQuotedListSingle(t *testing.T) {
	assert.Equal(t, `"m5.large"`, quotedList([]string{"m5.large"}))
}

func TestJenkinsTriggerNotConfigured(t *testing.T) {
	j := NewJenkinsTrigger(Config{URL: "http://jenkins.local"})

	assert.False(t, j.Configured())
	err := j.Trigger(context.Background(), Params{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
