package tests

import (
	"net/http"
	"testing"

	"github.com/EternisAI/zone-orchestrator/internal/api/http/dto"
	"github.com/stretchr/testify/assert"
)

func TestSetAWSCredentials(t *testing.T, env *Environment) {
	body := dto.AWSCredentialsRequest{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}

	t.Run("missing api key", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodPost, "/auth/set_aws_credentials", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong api key", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodPost, "/auth/set_aws_credentials", body, "X-API-Key", "nope")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing session token", func(t *testing.T) {
		partial := body
		partial.SessionToken = ""
		rr := doJSON(env.Router, http.MethodPost, "/auth/set_aws_credentials", partial, "X-API-Key", adminAPIKey)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("success", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodPost, "/auth/set_aws_credentials", body, "X-API-Key", adminAPIKey)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
