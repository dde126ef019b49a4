// Package provider exposes the per-cloud create, delete and redeploy
// operations. Only AWS is implemented; the other clouds are rejected when
// the provider is selected.
package provider

import (
	"context"

	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/EternisAI/zone-orchestrator/internal/poll"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

type Summary struct {
	Cloud     zonepartner.Cloud
	Operation string
	Message   string
}

type Provider interface {
	Create(ctx context.Context) (Summary, error)
	Delete(ctx context.Context) (Summary, error)
	Redeploy(ctx context.Context) (Summary, error)
}

type Deps struct {
	Trigger     pipeline.Trigger
	Connect     cluster.Connector
	PollOptions []poll.Option
}

// Resolver selects the provider for a descriptor.
type Resolver func(zp *zonepartner.ZonePartner) (Provider, error)

func NewResolver(deps Deps) Resolver {
	return func(zp *zonepartner.ZonePartner) (Provider, error) {
		return New(zp, deps)
	}
}

func New(zp *zonepartner.ZonePartner, deps Deps) (Provider, error) {
	switch zp.Cloud {
	case zonepartner.CloudAWS:
		return &AWSProvider{zp: zp, deps: deps}, nil
	default:
		return nil, &UnsupportedProviderError{Cloud: zp.Cloud}
	}
}
