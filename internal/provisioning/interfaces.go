package provisioning

import (
	"context"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// Phase defines one step of the creation pipeline.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase.
	Provision(ctx *Context) error
}

// Store resolves the target hypervisor and persists the inventory row.
type Store interface {
	ResolveHypervisor(ctx context.Context, idOrName string) (*hypervisor.Record, error)
	CreateProvisionedVM(ctx context.Context, vm *hypervisor.ProvisionedVM) error
}

// ClientFactory opens clients for records.
type ClientFactory interface {
	GetClient(ctx context.Context, rec *hypervisor.Record) (hypervisor.Client, error)
}
