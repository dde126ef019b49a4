// Package workflow sequences create, delete, redeploy and workbench deploy
// workflows for zone partners. Each submitted workflow runs in the background
// and reports progress only through the status store.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/poll"
	"github.com/EternisAI/zone-orchestrator/internal/provider"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

var ErrWorkflowInProgress = errors.New("workflow already in progress")

type InProgressError struct {
	PartnerID string
	Kind      Kind
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("%s workflow already in progress for partner %s", e.Kind, e.PartnerID)
}

func (e *InProgressError) Is(target error) bool {
	return target == ErrWorkflowInProgress
}

type Descriptors interface {
	Save(zp *zonepartner.ZonePartner) error
	Load(partnerID string) (*zonepartner.ZonePartner, error)
}

// RoleAssumer establishes a tenant-bound session before cluster or pipeline calls.
type RoleAssumer interface {
	AssumeForTenant(ctx context.Context, partnerID, accountID, deploymentName, region string) error
}

type Deps struct {
	Descriptors Descriptors
	Statuses    status.Store
	Resolve     provider.Resolver
	Connect     cluster.Connector
	// Roles is required when Config.UseAssumedRoles is set.
	Roles RoleAssumer
}

type Config struct {
	UseAssumedRoles bool
	PollOptions     []poll.Option
	Workbench       WorkbenchConfig
}

type Result struct {
	PartnerID string
	Message   string
}

type Engine struct {
	deps Deps
	cfg  Config

	registry *registry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewEngine(deps Deps, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		deps:     deps,
		cfg:      cfg,
		registry: newRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// InFlight reports the workflow currently running for a tenant, if any.
func (e *Engine) InFlight(partnerID string) (Running, bool) {
	if id, err := zonepartner.ParsePartnerID(partnerID); err == nil {
		partnerID = id
	}
	return e.registry.get(partnerID)
}

// spawn claims the tenant's slot, then builds the workflow with start and runs
// it detached from the caller. The slot is claimed before start reads any
// persisted state, so a tenant whose create has not saved its descriptor yet
// still reports the create as in progress.
func (e *Engine) spawn(partnerID string, kind Kind, start func() (func(ctx context.Context) error, error)) error {
	id, err := zonepartner.ParsePartnerID(partnerID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(e.ctx)
	entry, err := e.registry.acquire(id, kind, cancel)
	if err != nil {
		cancel()
		slog.Warn("Rejected duplicate workflow", "partner_id", id, "kind", kind, "error", err)
		return err
	}

	run, err := start()
	if err != nil {
		e.registry.release(entry)
		cancel()
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.registry.release(entry)
		defer cancel()

		begin := time.Now()
		err := run(ctx)
		recordWorkflowMetric(kind, err, time.Since(begin).Seconds())
		if err != nil {
			slog.Error("Workflow failed", "partner_id", id, "kind", kind, "error", err)
			return
		}
		slog.Info("Workflow finished", "partner_id", id, "kind", kind, "duration", time.Since(begin))
	}()

	slog.Info("Workflow accepted", "partner_id", id, "kind", kind)
	return nil
}

// Shutdown cancels running workflows and waits for them to record their
// terminal status.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cancel()
	e.registry.cancelAll()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitCreate selects the provider and saves the descriptor before accepting,
// so an unsupported cloud or a conflicting descriptor is rejected up front and
// leaves the status record untouched.
func (e *Engine) SubmitCreate(zp *zonepartner.ZonePartner) error {
	return e.spawn(zp.PartnerID, KindCreate, func() (func(ctx context.Context) error, error) {
		p, err := e.deps.Resolve(zp)
		if err != nil {
			return nil, err
		}
		if err := e.deps.Descriptors.Save(zp); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := e.create(ctx, zp, p)
			return err
		}, nil
	})
}

func (e *Engine) SubmitDelete(partnerID string) error {
	return e.spawn(partnerID, KindDelete, func() (func(ctx context.Context) error, error) {
		zp, p, err := e.prepare(partnerID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := e.delete(ctx, zp, p)
			return err
		}, nil
	})
}

func (e *Engine) SubmitRedeploy(partnerID string) error {
	return e.spawn(partnerID, KindRedeploy, func() (func(ctx context.Context) error, error) {
		zp, p, err := e.prepare(partnerID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := e.redeploy(ctx, zp, p)
			return err
		}, nil
	})
}

// Create runs the create workflow to completion on the caller's goroutine.
func (e *Engine) Create(ctx context.Context, zp *zonepartner.ZonePartner) (Result, error) {
	p, err := e.deps.Resolve(zp)
	if err != nil {
		return Result{}, err
	}
	if err := e.deps.Descriptors.Save(zp); err != nil {
		return Result{}, err
	}
	return e.create(ctx, zp, p)
}

func (e *Engine) Delete(ctx context.Context, partnerID string) (Result, error) {
	zp, p, err := e.prepare(partnerID)
	if err != nil {
		return Result{}, err
	}
	return e.delete(ctx, zp, p)
}

func (e *Engine) Redeploy(ctx context.Context, partnerID string) (Result, error) {
	zp, p, err := e.prepare(partnerID)
	if err != nil {
		return Result{}, err
	}
	return e.redeploy(ctx, zp, p)
}

// prepare loads the persisted descriptor and selects its provider. Failures
// here leave the status record untouched.
func (e *Engine) prepare(partnerID string) (*zonepartner.ZonePartner, provider.Provider, error) {
	zp, err := e.deps.Descriptors.Load(partnerID)
	if err != nil {
		return nil, nil, err
	}
	p, err := e.deps.Resolve(zp)
	if err != nil {
		return nil, nil, err
	}
	return zp, p, nil
}

// create runs after the descriptor has been saved.
func (e *Engine) create(ctx context.Context, zp *zonepartner.ZonePartner, p provider.Provider) (Result, error) {
	if zp.PlanOnly {
		slog.Info("Plan only, skipping provisioning", "partner_id", zp.PartnerID)
		return Result{
			PartnerID: zp.PartnerID,
			Message:   fmt.Sprintf("Zone partner creation plan completed for partner_id: %s", zp.PartnerID),
		}, nil
	}

	summary, err := e.track(ctx, zp.PartnerID, status.FieldTerraform, phases{
		running: status.Creating,
		done:    status.Complete,
		failed:  status.Error,
	}, p.Create)
	if err != nil {
		return Result{}, err
	}
	return Result{
		PartnerID: zp.PartnerID,
		Message:   fmt.Sprintf("Zone partner created successfully. %s", summary.Message),
	}, nil
}

func (e *Engine) delete(ctx context.Context, zp *zonepartner.ZonePartner, p provider.Provider) (Result, error) {
	summary, err := e.track(ctx, zp.PartnerID, status.FieldTerraform, phases{
		running: status.Deleting,
		done:    status.Deleted,
		failed:  status.DeleteError,
	}, e.withTenantSession(zp, p.Delete))
	if err != nil {
		return Result{}, err
	}
	return Result{
		PartnerID: zp.PartnerID,
		Message:   fmt.Sprintf("Zone partner deletion completed for partner_id: %s. %s", zp.PartnerID, summary.Message),
	}, nil
}

func (e *Engine) redeploy(ctx context.Context, zp *zonepartner.ZonePartner, p provider.Provider) (Result, error) {
	summary, err := e.track(ctx, zp.PartnerID, status.FieldTerraform, phases{
		running: status.Redeploying,
		done:    status.Redeployed,
		failed:  status.RedeployErr,
	}, e.withTenantSession(zp, p.Redeploy))
	if err != nil {
		return Result{}, err
	}
	return Result{
		PartnerID: zp.PartnerID,
		Message:   fmt.Sprintf("Zone partner redeployment completed for partner_id: %s. %s", zp.PartnerID, summary.Message),
	}, nil
}

// withTenantSession assumes the tenant's role first when assumed-role mode is on.
func (e *Engine) withTenantSession(zp *zonepartner.ZonePartner, step func(ctx context.Context) (provider.Summary, error)) func(ctx context.Context) (provider.Summary, error) {
	return func(ctx context.Context) (provider.Summary, error) {
		if err := e.assumeRole(ctx, zp); err != nil {
			return provider.Summary{}, err
		}
		return step(ctx)
	}
}

func (e *Engine) assumeRole(ctx context.Context, zp *zonepartner.ZonePartner) error {
	if !e.cfg.UseAssumedRoles {
		return nil
	}
	if e.deps.Roles == nil {
		return errors.New("assumed-role mode is enabled but no role assumer is configured")
	}
	v := zp.Variables
	if err := e.deps.Roles.AssumeForTenant(ctx, zp.PartnerID, zp.AccountID, v.DeploymentName, v.Region); err != nil {
		return &provider.CollaboratorError{Op: "assume tenant role", Err: err}
	}
	return nil
}

type phases struct {
	running string
	done    string
	failed  string
}

// track writes the in-progress status before step and the terminal status
// after it. A failed in-progress write aborts before step runs.
func (e *Engine) track(ctx context.Context, partnerID, field string, ph phases, step func(ctx context.Context) (provider.Summary, error)) (provider.Summary, error) {
	if err := e.setStatus(ctx, partnerID, field, ph.running); err != nil {
		return provider.Summary{}, err
	}

	summary, err := step(ctx)
	if err != nil {
		slog.Error("Workflow step failed", "partner_id", partnerID, "field", field, "error", err)
		if serr := e.setStatus(ctx, partnerID, field, ph.failed); serr != nil {
			return provider.Summary{}, errors.Join(err, serr)
		}
		return provider.Summary{}, err
	}

	if err := e.setStatus(ctx, partnerID, field, ph.done); err != nil {
		return provider.Summary{}, err
	}
	return summary, nil
}

// setStatus ignores cancellation of ctx so a workflow stopped by Shutdown
// still records where it ended.
func (e *Engine) setStatus(ctx context.Context, partnerID, field, value string) error {
	if err := e.deps.Statuses.Update(context.WithoutCancel(ctx), partnerID, field, value); err != nil {
		slog.Error("Failed to update status", "partner_id", partnerID, "field", field, "value", value, "error", err)
		return fmt.Errorf("update status %s=%s: %w", field, value, err)
	}
	return nil
}
