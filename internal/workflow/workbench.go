package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/provider"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

type WorkbenchConfig struct {
	AuthorizedKeysConfigMap string `mapstructure:"authorized_keys_configmap"`
	AuthorizedKeysNamespace string `mapstructure:"authorized_keys_namespace"`
	// SFTPPodSelector selects the SFTP pods restarted after a key change.
	SFTPPodSelector string `mapstructure:"sftp_pod_selector"`
}

// WorkbenchDeployment is the callback sent by the provisioning pipeline once
// the zone's infrastructure exists.
type WorkbenchDeployment struct {
	PartnerID       string
	PipelineStatus  string
	PipelineJobID   string
	ClusterName     string
	SFTPBuckets     Buckets
	MetadataBuckets Buckets
	AuthorizedKeys  string
}

type Buckets struct {
	Dev        string
	Staging    string
	Production string
}

type endpoint struct {
	service string
	field   string
}

var workbenchEndpoints = []endpoint{
	{service: "istio-ingressgateway", field: status.FieldKubeflowURL},
	{service: "sftp-loadbalancer", field: status.FieldSFTPURL},
	{service: "pz-external-service", field: status.FieldPZExternalURL},
}

func (e *Engine) SubmitDeployWorkbench(req WorkbenchDeployment) error {
	return e.spawn(req.PartnerID, KindDeployWorkbench, func() (func(ctx context.Context) error, error) {
		zp, _, err := e.prepare(req.PartnerID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := e.deployWorkbench(ctx, zp, req)
			return err
		}, nil
	})
}

func (e *Engine) DeployWorkbench(ctx context.Context, req WorkbenchDeployment) (Result, error) {
	zp, _, err := e.prepare(req.PartnerID)
	if err != nil {
		return Result{}, err
	}
	return e.deployWorkbench(ctx, zp, req)
}

func (e *Engine) deployWorkbench(ctx context.Context, zp *zonepartner.ZonePartner, req WorkbenchDeployment) (Result, error) {
	_, err := e.track(ctx, zp.PartnerID, status.FieldMLWorkbench, phases{
		running: status.Deploying,
		done:    status.Deployed,
		failed:  status.DeployError,
	}, func(ctx context.Context) (provider.Summary, error) {
		return provider.Summary{}, e.runWorkbench(ctx, zp, req)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		PartnerID: zp.PartnerID,
		Message:   fmt.Sprintf("ML workbench deployed for partner_id: %s", zp.PartnerID),
	}, nil
}

func (e *Engine) runWorkbench(ctx context.Context, zp *zonepartner.ZonePartner, req WorkbenchDeployment) error {
	if req.PipelineStatus != "" && !strings.EqualFold(req.PipelineStatus, "SUCCESS") {
		return fmt.Errorf("pipeline job %s finished with status %s", req.PipelineJobID, req.PipelineStatus)
	}
	slog.Info("Deploying ML workbench",
		"partner_id", zp.PartnerID,
		"cluster_name", req.ClusterName,
		"pipeline_job_id", req.PipelineJobID)

	outputs := []struct{ field, value string }{
		{status.FieldClusterName, req.ClusterName},
		{status.FieldSFTPBucketDev, req.SFTPBuckets.Dev},
		{status.FieldSFTPBucketStaging, req.SFTPBuckets.Staging},
		{status.FieldSFTPBucketProduction, req.SFTPBuckets.Production},
		{status.FieldMetadataBucketDev, req.MetadataBuckets.Dev},
		{status.FieldMetadataBucketStage, req.MetadataBuckets.Staging},
		{status.FieldMetadataBucketProd, req.MetadataBuckets.Production},
	}
	for _, out := range outputs {
		if out.value == "" {
			continue
		}
		if err := e.setStatus(ctx, zp.PartnerID, out.field, out.value); err != nil {
			return err
		}
	}

	if err := e.assumeRole(ctx, zp); err != nil {
		return err
	}

	api, err := e.deps.Connect(ctx, zp.PartnerID)
	if err != nil {
		return &provider.CollaboratorError{Op: "connect to cluster", Err: err}
	}
	ops := cluster.NewOps(api, e.cfg.PollOptions...)

	if err := ops.WaitForAllPodsReady(ctx); err != nil {
		return &provider.CollaboratorError{Op: "wait for pods", Err: err}
	}

	for _, ep := range workbenchEndpoints {
		hostname, err := ops.LoadBalancerHostname(ctx, ep.service)
		if err != nil {
			return &provider.CollaboratorError{Op: "resolve " + ep.service, Err: err}
		}
		if err := e.setStatus(ctx, zp.PartnerID, ep.field, hostname); err != nil {
			return err
		}
	}

	return e.installAuthorizedKeys(ctx, ops, zp.PartnerID, req.AuthorizedKeys)
}

// installAuthorizedKeys writes the SFTP keys and restarts the SFTP pods so
// they pick the keys up.
func (e *Engine) installAuthorizedKeys(ctx context.Context, ops *cluster.Ops, partnerID, keys string) error {
	wb := e.cfg.Workbench
	if keys == "" || wb.AuthorizedKeysConfigMap == "" {
		return nil
	}

	if err := ops.UpdateConfigMap(ctx, wb.AuthorizedKeysNamespace, wb.AuthorizedKeysConfigMap, "authorized_keys", keys); err != nil {
		return &provider.CollaboratorError{Op: "update authorized keys", Err: err}
	}
	if wb.SFTPPodSelector == "" {
		return nil
	}
	if err := ops.ForceDeletePods(ctx, wb.AuthorizedKeysNamespace, wb.SFTPPodSelector); err != nil {
		return &provider.CollaboratorError{Op: "restart sftp pods", Err: err}
	}
	if err := ops.WaitForPodsReady(ctx, wb.AuthorizedKeysNamespace, wb.SFTPPodSelector); err != nil {
		return &provider.CollaboratorError{Op: "wait for sftp pods", Err: err}
	}

	slog.Info("SFTP authorized keys installed", "partner_id", partnerID)
	return nil
}
