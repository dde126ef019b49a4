package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const roleSessionName = "ECSCrossAccountSession"

// STSAPI is the subset of the STS client used for role assumption.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// RoleAssumer obtains per-tenant session credentials and installs them in the store.
type RoleAssumer struct {
	client STSAPI
	store  *Store
}

func NewRoleAssumer(client STSAPI, store *Store) *RoleAssumer {
	return &RoleAssumer{
		client: client,
		store:  store,
	}
}

// RoleARN is the cluster access role provisioned for a deployment.
func RoleARN(accountID, deploymentName, region string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/eks-access-role-%s-%s", accountID, deploymentName, region)
}

func (r *RoleAssumer) AssumeForTenant(ctx context.Context, partnerID, accountID, deploymentName, region string) error {
	roleARN := RoleARN(accountID, deploymentName, region)

	out, err := r.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(roleSessionName),
	})
	if err != nil {
		slog.Error("Failed to assume role", "role_arn", roleARN, "partner_id", partnerID, "error", err)
		return fmt.Errorf("assume role %s: %w", roleARN, err)
	}
	if out.Credentials == nil {
		return errors.New("assume role returned no credentials")
	}

	ttl := r.store.ttl
	if out.Credentials.Expiration != nil {
		if remaining := time.Until(*out.Credentials.Expiration); remaining > 0 {
			ttl = remaining
		}
	}

	r.store.install(Secrets{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}, ttl)

	slog.Info("Assumed role for tenant", "role_arn", roleARN, "partner_id", partnerID)
	return nil
}
