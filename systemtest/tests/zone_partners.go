package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func createBody(partnerID string, planOnly bool) map[string]any {
	return map[string]any{
		"plan_only":  planOnly,
		"account_id": "123456789012",
		"name":       "System Partner",
		"location":   "us",
		"cloud":      "aws",
		"partner_id": partnerID,
		"user_id":    "system-user",
		"variables": map[string]any{
			"region":          "us-west-2",
			"deployment_name": "sys-zone",
			"subnet_count":    3,
			"instance_types":  []string{"m5.2xlarge", "t3.large"},
			"min_nodes":       1,
			"max_nodes":       4,
			"desired_nodes":   2,
		},
	}
}

func statusFields(t *testing.T, env *Environment, partnerID string) map[string]string {
	rr := doJSON(env.Router, http.MethodGet, "/status/"+partnerID, nil)
	if rr.Code != http.StatusOK {
		return nil
	}
	var fields map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fields))
	return fields
}

func waitForTerraform(t *testing.T, env *Environment, partnerID, want string) map[string]string {
	t.Helper()
	var fields map[string]string
	require.Eventually(t, func() bool {
		fields = statusFields(t, env, partnerID)
		return fields["Terraform"] == want
	}, 10*time.Second, 20*time.Millisecond, "Terraform never reached %q", want)
	return fields
}

func TestZonePartnerLifecycle(t *testing.T, env *Environment) {
	partnerID := uuid.NewString()

	t.Run("create", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodPost, "/zone-partners", createBody(partnerID, false))
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

		fields := waitForTerraform(t, env, partnerID, "Complete")
		assert.NotEmpty(t, fields["Last Updated"])

		zp, err := env.Descriptors.Load(partnerID)
		require.NoError(t, err)
		assert.Equal(t, "sys-zone", zp.Variables.DeploymentName)

		calls := env.Trigger.Calls()
		require.NotEmpty(t, calls)
		params := calls[len(calls)-1]
		assert.Equal(t, partnerID, params[pipeline.ParamPartnerID])
		assert.Equal(t, `"m5.2xlarge","t3.large"`, params[pipeline.ParamInstanceTypes])
		assert.Equal(t, "3", params[pipeline.ParamSubnetCount])
	})

	t.Run("redeploy", func(t *testing.T) {
		before := len(env.Trigger.Calls())
		rr := doJSON(env.Router, http.MethodPost, "/zone-partners/re-deploy/"+partnerID, nil)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

		waitForTerraform(t, env, partnerID, "Redeployed")
		calls := env.Trigger.Calls()
		require.Len(t, calls, before+1)
		assert.Equal(t, pipeline.Params{
			pipeline.ParamTargetBranch: "sys-zone-us-west-2",
			pipeline.ParamAccountID:    "123456789012",
		}, calls[before])
	})

	t.Run("delete", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodDelete, "/zone-partners/"+partnerID, nil)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

		waitForTerraform(t, env, partnerID, "Deleted")
		calls := env.Trigger.Calls()
		assert.Equal(t, "true", calls[len(calls)-1][pipeline.ParamDestroyEnv])

		svc, err := env.Clientset.CoreV1().Services("istio-system").
			Get(t.Context(), "istio-ingressgateway", metav1.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, corev1.ServiceTypeClusterIP, svc.Spec.Type)
	})
}

func TestZonePartnerRejections(t *testing.T, env *Environment) {
	t.Run("plan only persists nothing in status", func(t *testing.T) {
		partnerID := uuid.NewString()
		rr := doJSON(env.Router, http.MethodPost, "/zone-partners", createBody(partnerID, true))
		require.Equal(t, http.StatusAccepted, rr.Code)

		require.Eventually(t, func() bool {
			_, running := env.Engine.InFlight(partnerID)
			return !running
		}, 5*time.Second, 20*time.Millisecond)
		assert.Nil(t, statusFields(t, env, partnerID))
	})

	t.Run("conflicting descriptor", func(t *testing.T) {
		partnerID := uuid.NewString()
		rr := doJSON(env.Router, http.MethodPost, "/zone-partners", createBody(partnerID, true))
		require.Equal(t, http.StatusAccepted, rr.Code)
		require.Eventually(t, func() bool {
			_, running := env.Engine.InFlight(partnerID)
			return !running
		}, 5*time.Second, 20*time.Millisecond)

		body := createBody(partnerID, true)
		body["account_id"] = "210987654321"
		rr = doJSON(env.Router, http.MethodPost, "/zone-partners", body)
		assert.Equal(t, http.StatusConflict, rr.Code)

		zp, err := env.Descriptors.Load(partnerID)
		require.NoError(t, err)
		assert.Equal(t, "123456789012", zp.AccountID)
	})

	t.Run("invalid deployment name", func(t *testing.T) {
		body := createBody(uuid.NewString(), false)
		body["variables"].(map[string]any)["deployment_name"] = "-bad"
		rr := doJSON(env.Router, http.MethodPost, "/zone-partners", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unsupported cloud", func(t *testing.T) {
		body := createBody(uuid.NewString(), false)
		body["cloud"] = "azure"
		rr := doJSON(env.Router, http.MethodPost, "/zone-partners", body)
		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})

	t.Run("delete unknown partner", func(t *testing.T) {
		partnerID := uuid.NewString()
		rr := doJSON(env.Router, http.MethodDelete, "/zone-partners/"+partnerID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Nil(t, statusFields(t, env, partnerID))
	})

	t.Run("update is not implemented", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodPut, "/zone-partners/"+uuid.NewString(), createBody(uuid.NewString(), false))
		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})
}
