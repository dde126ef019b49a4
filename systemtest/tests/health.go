package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T, router *gin.Engine) {
	rr := doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "UP", resp.Status)

	rr = doJSON(router, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "zone_orchestrator_workflows_in_flight")
}
