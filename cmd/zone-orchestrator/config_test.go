package main

import (
	"context"
	"errors"
	"testing"

	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	value string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(params.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestLoadJenkinsSecret(t *testing.T) {
	client := &fakeSecrets{value: `{"username":"svc-zone","token":"t0k3n"}`}
	cfg := pipeline.Config{TokenSecretARN: "arn:aws:secretsmanager:us-east-1:123456789012:secret:jenkins"}

	require.NoError(t, loadJenkinsSecret(context.Background(), client, &cfg))
	assert.Equal(t, cfg.TokenSecretARN, client.asked)
	assert.Equal(t, "svc-zone", cfg.Username)
	assert.Equal(t, "t0k3n", cfg.Token)
}

func TestLoadJenkinsSecretKeepsConfiguredValues(t *testing.T) {
	client := &fakeSecrets{value: `{"username":"svc-zone","token":"t0k3n"}`}
	cfg := pipeline.Config{TokenSecretARN: "arn", Username: "override"}

	require.NoError(t, loadJenkinsSecret(context.Background(), client, &cfg))
	assert.Equal(t, "override", cfg.Username)
	assert.Equal(t, "t0k3n", cfg.Token)
}

func TestLoadJenkinsSecretErrors(t *testing.T) {
	cfg := pipeline.Config{TokenSecretARN: "arn"}

	assert.Error(t, loadJenkinsSecret(context.Background(), &fakeSecrets{err: errors.New("denied")}, &cfg))
	assert.Error(t, loadJenkinsSecret(context.Background(), &fakeSecrets{value: "not json"}, &cfg))
}

func TestRedactedMasksSecrets(t *testing.T) {
	c := Config{}
	c.Jenkins.Token = "secret"
	c.Okta.PrivateKey = "key"

	r := redacted(c)
	assert.Equal(t, "***", r.Jenkins.Token)
	assert.Equal(t, "***", r.Okta.PrivateKey)
	assert.Empty(t, r.Http.AdminAPIKey)
	assert.Equal(t, "secret", c.Jenkins.Token)
}
