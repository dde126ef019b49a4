package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	corev1 "k8s.io/api/core/v1"
)

type ServiceRef struct {
	Namespace string
	Name      string
}

// PreCleanupServices are the load-balanced services converted to ClusterIP
// before the destroy pipeline runs.
var PreCleanupServices = []ServiceRef{
	{Namespace: "istio-system", Name: "istio-ingressgateway"},
	{Namespace: "pz-external", Name: "pz-external-service"},
	{Namespace: "s3-sftp-server", Name: "sftp-loadbalancer"},
}

type AWSProvider struct {
	zp   *zonepartner.ZonePartner
	deps Deps
}

func (p *AWSProvider) Create(ctx context.Context) (Summary, error) {
	if err := p.trigger(ctx, pipeline.CreateParams(p.zp)); err != nil {
		return Summary{}, err
	}
	return p.summary("create", "Zone partner creation triggered"), nil
}

// Delete detaches every load balancer first and only then triggers the
// destroy pipeline.
func (p *AWSProvider) Delete(ctx context.Context) (Summary, error) {
	if _, err := p.preCleanup(ctx); err != nil {
		return Summary{}, err
	}
	if err := p.trigger(ctx, pipeline.DestroyParams(p.zp)); err != nil {
		return Summary{}, err
	}
	return p.summary("delete", "Zone partner deletion triggered"), nil
}

func (p *AWSProvider) Redeploy(ctx context.Context) (Summary, error) {
	if err := p.trigger(ctx, pipeline.RedeployParams(p.zp)); err != nil {
		return Summary{}, err
	}
	return p.summary("redeploy", "Zone partner redeployment triggered"), nil
}

func (p *AWSProvider) trigger(ctx context.Context, params pipeline.Params) error {
	if err := p.deps.Trigger.Trigger(ctx, params); err != nil {
		return &CollaboratorError{Op: "trigger pipeline", Err: err}
	}
	return nil
}

// preCleanup attempts every service and returns how many were converted. Any
// shortfall is reported as ErrServicesNotRemoved joined with each failure.
func (p *AWSProvider) preCleanup(ctx context.Context) (int, error) {
	api, err := p.deps.Connect(ctx, p.zp.PartnerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrServicesNotRemoved, &CollaboratorError{Op: "connect to cluster", Err: err})
	}
	ops := cluster.NewOps(api, p.deps.PollOptions...)

	patched := 0
	var failures []error
	for _, svc := range PreCleanupServices {
		err := ops.PatchServiceType(ctx, svc.Namespace, svc.Name, corev1.ServiceTypeClusterIP)
		if err != nil {
			slog.Error("Pre-cleanup failed",
				"partner_id", p.zp.PartnerID,
				"namespace", svc.Namespace,
				"service", svc.Name,
				"error", err)
			failures = append(failures, fmt.Errorf("%s/%s: %w", svc.Namespace, svc.Name,
				&CollaboratorError{Op: "patch service type", Err: err}))
			continue
		}
		patched++
	}

	if len(failures) > 0 {
		return patched, fmt.Errorf("%w: %w", ErrServicesNotRemoved, errors.Join(failures...))
	}
	slog.Info("Pre-cleanup complete", "partner_id", p.zp.PartnerID, "patched", patched)
	return patched, nil
}

func (p *AWSProvider) summary(op, msg string) Summary {
	return Summary{Cloud: zonepartner.CloudAWS, Operation: op, Message: msg}
}
