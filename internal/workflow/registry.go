package workflow

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	KindCreate          Kind = "create"
	KindDelete          Kind = "delete"
	KindRedeploy        Kind = "redeploy"
	KindDeployWorkbench Kind = "deploy-workbench"
)

// Running describes an in-flight workflow.
type Running struct {
	PartnerID string
	Kind      Kind
	StartedAt time.Time

	cancel context.CancelFunc
}

// registry admits at most one workflow per tenant at a time.
type registry struct {
	mu      sync.Mutex
	entries map[string]*Running
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*Running)}
}

func (r *registry) acquire(partnerID string, kind Kind, cancel context.CancelFunc) (*Running, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[partnerID]; ok {
		return nil, &InProgressError{PartnerID: partnerID, Kind: existing.Kind}
	}

	run := &Running{
		PartnerID: partnerID,
		Kind:      kind,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
	}
	r.entries[partnerID] = run
	inFlightGauge.Inc()
	return run, nil
}

func (r *registry) release(run *Running) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[run.PartnerID] == run {
		delete(r.entries, run.PartnerID)
		inFlightGauge.Dec()
	}
}

func (r *registry) get(partnerID string) (Running, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.entries[partnerID]
	if !ok {
		return Running{}, false
	}
	return *run, true
}

func (r *registry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, run := range r.entries {
		run.cancel()
	}
}
