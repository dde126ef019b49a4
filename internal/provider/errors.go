package provider

import (
	"errors"
	"fmt"

	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported cloud provider")
	// ErrServicesNotRemoved means pre-cleanup could not detach every load
	// balancer, so the destroy pipeline was never triggered.
	ErrServicesNotRemoved = errors.New("services could not be removed")
)

type UnsupportedProviderError struct {
	Cloud zonepartner.Cloud
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("cloud provider %q is not implemented", e.Cloud)
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

// CollaboratorError wraps a failure raised by the pipeline or the cluster API.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
