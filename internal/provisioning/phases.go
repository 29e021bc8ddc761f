package provisioning

import (
	"fmt"
	"time"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
)

// SessionPhase resolves the target hypervisor and opens its client.
type SessionPhase struct{}

// Name implements the Phase interface.
func (*SessionPhase) Name() string { return "session" }

// Provision implements the Phase interface.
func (*SessionPhase) Provision(ctx *Context) error {
	rec, err := ctx.Store.ResolveHypervisor(ctx, ctx.Spec.Hypervisor)
	if err != nil {
		return err
	}
	if rec.Status != hypervisor.StatusConnected {
		return apierr.Validation("provisioning.session", "hypervisor %s is %s, connect it first", rec.Name, rec.Status)
	}

	c, err := ctx.Factory.GetClient(ctx, rec)
	if err != nil {
		return err
	}
	ctx.State.Hypervisor = rec
	ctx.State.Client = c
	return nil
}

// PlacementPhase picks the node and the creation mode.
type PlacementPhase struct{}

// Name implements the Phase interface.
func (*PlacementPhase) Name() string { return "placement" }

// Provision implements the Phase interface.
func (*PlacementPhase) Provision(ctx *Context) error {
	ctx.State.Mode = ModeClone
	if isISO(ctx.Spec.Template) {
		ctx.State.Mode = ModeISO
	}

	if ctx.Spec.Node != "" {
		ctx.State.Node = ctx.Spec.Node
		return nil
	}

	nodes, err := ctx.State.Client.ListNodes(ctx)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return apierr.New(apierr.KindRejected, "provisioning.placement", "hypervisor %s reports no nodes", ctx.State.Hypervisor.Name)
	}
	ctx.State.Node = nodes[0].Name
	return nil
}

// AllocationPhase reserves the next VM id. Backends that assign ids
// themselves leave VMID empty.
type AllocationPhase struct{}

// Name implements the Phase interface.
func (*AllocationPhase) Name() string { return "allocation" }

// Provision implements the Phase interface.
func (*AllocationPhase) Provision(ctx *Context) error {
	id, err := ctx.State.Client.NextID(ctx)
	if err != nil {
		return err
	}
	ctx.State.VMID = id
	return nil
}

// CreatePhase issues the creation call.
type CreatePhase struct{}

// Name implements the Phase interface.
func (*CreatePhase) Name() string { return "create" }

// Provision implements the Phase interface.
func (p *CreatePhase) Provision(ctx *Context) error {
	spec := ctx.Spec
	st := ctx.State
	LogResourceCreating(ctx.Observer, p.Name(), st.Mode, spec.Name)

	var (
		created hypervisor.Created
		err     error
	)
	switch st.Mode {
	case ModeISO:
		created, err = st.Client.CreateFromISO(ctx, hypervisor.ISOCreate{
			Node:        st.Node,
			VMID:        st.VMID,
			Name:        spec.Name,
			Description: spec.Description,
			Tags:        ctx.tags(),
			Cores:       spec.CPU,
			MemoryMB:    int(spec.MemoryMB),
			DiskGB:      int(spec.DiskGB),
			ISO:         spec.Template,
			Storage:     ctx.storage(),
			Bridge:      ctx.Defaults.Bridge,
		})
	default:
		created, err = st.Client.CloneTemplate(ctx, hypervisor.CloneCreate{
			Node:        st.Node,
			VMID:        st.VMID,
			TemplateID:  spec.Template,
			Name:        spec.Name,
			Description: spec.Description,
			Tags:        ctx.tags(),
			Cores:       spec.CPU,
			MemoryMB:    int(spec.MemoryMB),
			Storage:     ctx.storage(),
		})
	}
	if err != nil {
		return err
	}

	if created.NativeID == "" {
		created.NativeID = st.VMID
	}
	st.Created = created
	for _, w := range created.Warnings {
		st.warn(w)
		LogWarning(ctx.Observer, p.Name(), w)
	}
	LogResourceCreated(ctx.Observer, p.Name(), spec.Name, created.NativeID, string(created.Task))
	return nil
}

// PowerOnPhase starts the VM once when requested. Without a task handle the
// creation was not confirmed as queued and nothing is started. A failed
// power-on is a warning: the VM already exists.
type PowerOnPhase struct{}

// Name implements the Phase interface.
func (*PowerOnPhase) Name() string { return "power-on" }

// Provision implements the Phase interface.
func (p *PowerOnPhase) Provision(ctx *Context) error {
	st := ctx.State
	if !ctx.Spec.Start {
		return nil
	}
	if st.Created.Task == "" {
		msg := "no task handle returned, VM not started"
		st.warn(msg)
		LogWarning(ctx.Observer, p.Name(), msg)
		return nil
	}

	task, err := st.Client.PowerAction(ctx, st.Node, st.Created.NativeID, hypervisor.ActionStart)
	if err != nil {
		msg := fmt.Sprintf("power-on failed: %v", err)
		st.warn(msg)
		LogWarning(ctx.Observer, p.Name(), msg)
		return nil
	}
	st.PowerTask = task
	st.PoweredOn = true
	return nil
}

// RecordPhase writes the inventory row. A store failure is logged and
// swallowed: the backend already holds the VM.
type RecordPhase struct{}

// Name implements the Phase interface.
func (*RecordPhase) Name() string { return "record" }

// Provision implements the Phase interface.
func (p *RecordPhase) Provision(ctx *Context) error {
	spec := ctx.Spec
	st := ctx.State

	vm := &hypervisor.ProvisionedVM{
		Name:         spec.Name,
		Description:  spec.Description,
		HypervisorID: st.Hypervisor.ID,
		NativeID:     st.Created.NativeID,
		Node:         st.Node,
		Status:       hypervisor.VMStatusCreating,
		CPU:          spec.CPU,
		MemoryMB:     spec.MemoryMB,
		DiskGB:       spec.DiskGB,
		Task:         string(st.Created.Task),
		TicketID:     spec.TicketID,
		ClientID:     spec.ClientID,
		CreatedBy:    spec.CreatedBy,
		CreatedAt:    time.Now().UTC(),
	}

	if err := ctx.Store.CreateProvisionedVM(ctx, vm); err != nil {
		perr := apierr.Wrap(apierr.KindPersistence, "provisioning.record", err)
		msg := "VM created but inventory write failed: " + perr.Error()
		st.warn(msg)
		LogWarning(ctx.Observer, p.Name(), msg)
		return nil
	}
	st.Record = vm
	return nil
}
