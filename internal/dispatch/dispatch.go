// Package dispatch performs power actions on VMs wherever they live.
package dispatch

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/locator"
	"github.com/imamik/hvplane/internal/session"
)

// Locator finds VMs and forgets cached locations.
type Locator interface {
	LocateVM(ctx context.Context, vmID string) (*locator.Location, error)
	Invalidate(vmID string)
}

// Outcome is the result of a dispatched action.
type Outcome struct {
	VM       hypervisor.Identity   `json:"vm"`
	Action   hypervisor.Action     `json:"action"`
	Task     hypervisor.TaskHandle `json:"task,omitempty"`
	Previous string                `json:"previousStatus,omitempty"`
}

// Dispatcher maps normalized actions onto backend calls.
type Dispatcher struct {
	locator Locator
	log     logr.Logger
}

// New creates a Dispatcher.
func New(l Locator, log logr.Logger) *Dispatcher {
	return &Dispatcher{locator: l, log: log.WithName("dispatch")}
}

// PerformAction validates action, locates the VM and issues the backend
// verb. The action name is checked before any backend call.
func (d *Dispatcher) PerformAction(ctx context.Context, vmID, action string) (*Outcome, error) {
	a, err := hypervisor.ParseAction(action)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindValidation, "dispatch.PerformAction", err)
	}

	loc, err := d.locator.LocateVM(ctx, vmID)
	if err != nil {
		return nil, err
	}
	defer session.Release(ctx, d.log, loc.Client)
	// The power state changes whatever the outcome.
	defer d.locator.Invalidate(vmID)

	task, err := loc.Client.PowerAction(ctx, loc.Identity.Node, loc.Identity.NativeID, a)
	if err != nil {
		return nil, err
	}

	d.log.Info("power action dispatched",
		"vm", vmID, "action", a,
		"hypervisor", loc.Identity.HypervisorID, "node", loc.Identity.Node,
		"task", task)

	return &Outcome{
		VM:       loc.Identity,
		Action:   a,
		Task:     task,
		Previous: loc.VM.Status,
	}, nil
}
