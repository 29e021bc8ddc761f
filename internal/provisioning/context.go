package provisioning

import (
	"context"

	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/util/labels"
)

// Spec describes a VM to create.
type Spec struct {
	Name        string
	Description string
	// Hypervisor is the target record id or name.
	Hypervisor string
	CPU        int
	MemoryMB   int64
	DiskGB     int64
	// Template is a clonable template id or an ISO reference
	// ("storage:iso/file.iso", "[datastore] path/file.iso").
	Template string
	// Node overrides placement.
	Node string
	// Storage overrides the configured storage pool.
	Storage string
	Tags    []string
	Start   bool

	TicketID  *string
	ClientID  *string
	CreatedBy string
}

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Spec     Spec
	Defaults config.ProvisioningConfig
	Store    Store
	Factory  ClientFactory
	State    *State
	Observer Observer
}

// NewContext creates a new provisioning context.
func NewContext(ctx context.Context, spec Spec, defaults config.ProvisioningConfig, store Store, factory ClientFactory, observer Observer) *Context {
	return &Context{
		Context:  ctx,
		Spec:     spec,
		Defaults: defaults,
		Store:    store,
		Factory:  factory,
		State:    NewState(),
		Observer: observer,
	}
}

// storage returns the pool for new disks and clones.
func (c *Context) storage() string {
	if c.Spec.Storage != "" {
		return c.Spec.Storage
	}
	return c.Defaults.Storage
}

// tags marks the VM as managed by hvplane, then merges configured and
// requested tags, keeping first occurrences.
func (c *Context) tags() []string {
	return labels.NewTagBuilder().WithManagedBy().Add(c.Defaults.Tags...).Add(c.Spec.Tags...).Build()
}
