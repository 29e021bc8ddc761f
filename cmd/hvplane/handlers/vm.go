package handlers

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/utils/ptr"

	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/provisioning"
	"github.com/imamik/hvplane/internal/session"
)

type locationView struct {
	hypervisor.Identity
	HypervisorName string `json:"hypervisorName"`
	HypervisorType string `json:"hypervisorType"`
	Name           string `json:"name"`
	Status         string `json:"status"`
}

// VMLocate finds which hypervisor and node hold a VM.
func VMLocate(ctx context.Context, opts Options, vmID string) error {
	return run(ctx, opts, func(a *app) error {
		loc, err := a.svc.LocateVM(ctx, vmID)
		if err != nil {
			return err
		}
		session.Release(ctx, a.log, loc.Client)

		view := locationView{
			Identity:       loc.Identity,
			HypervisorName: loc.Hypervisor.Name,
			HypervisorType: string(loc.Hypervisor.Type),
			Name:           loc.VM.Name,
			Status:         loc.VM.Status,
		}
		if opts.JSON {
			return printJSON(view)
		}
		_, err = fmt.Fprintf(stdout, "VM %s (%s) is %s on %s/%s\n",
			view.NativeID, view.Name, view.Status, view.HypervisorName, view.Node)
		return err
	})
}

// VMDetails prints the configuration and live usage of a VM.
func VMDetails(ctx context.Context, opts Options, vmID string) error {
	return run(ctx, opts, func(a *app) error {
		d, err := a.svc.VMDetails(ctx, vmID)
		if err != nil {
			return err
		}
		if !a.styled() {
			return printJSON(d)
		}
		_, err = fmt.Fprint(stdout, renderVMDetails(d))
		return err
	})
}

// VMCreateInput holds the flags of "vm create".
type VMCreateInput struct {
	Name        string
	Description string
	Hypervisor  string
	CPU         int
	Memory      string
	Disk        string
	Template    string
	Node        string
	Storage     string
	Tags        []string
	Start       bool
	TicketID    string
	ClientID    string
	CreatedBy   string
}

func (in VMCreateInput) spec() (provisioning.Spec, error) {
	memMB, err := parseMemoryMB(in.Memory)
	if err != nil {
		return provisioning.Spec{}, fmt.Errorf("--memory: %w", err)
	}
	diskGB, err := parseDiskGB(in.Disk)
	if err != nil {
		return provisioning.Spec{}, fmt.Errorf("--disk: %w", err)
	}

	spec := provisioning.Spec{
		Name:        in.Name,
		Description: in.Description,
		Hypervisor:  in.Hypervisor,
		CPU:         in.CPU,
		MemoryMB:    memMB,
		DiskGB:      diskGB,
		Template:    in.Template,
		Node:        in.Node,
		Storage:     in.Storage,
		Tags:        in.Tags,
		Start:       in.Start,
		CreatedBy:   in.CreatedBy,
	}
	if in.TicketID != "" {
		spec.TicketID = ptr.To(in.TicketID)
	}
	if in.ClientID != "" {
		spec.ClientID = ptr.To(in.ClientID)
	}
	return spec, nil
}

// VMCreate provisions a VM from an ISO or a template.
func VMCreate(ctx context.Context, opts Options, in VMCreateInput) error {
	spec, err := in.spec()
	if err != nil {
		return err
	}

	return run(ctx, opts, func(a *app) error {
		res, err := a.svc.CreateVM(ctx, spec)
		if err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(res)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Created VM %s on %s/%s (%s)\n", res.NativeID, res.HypervisorID, res.Node, res.Mode)
		if res.Task != "" {
			fmt.Fprintf(&b, "  task:  %s\n", res.Task)
		}
		if res.PoweredOn {
			fmt.Fprintf(&b, "  power: started (%s)\n", res.PowerTask)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
		_, err = fmt.Fprint(stdout, b.String())
		return err
	})
}

// VMAction runs a power action on a VM.
func VMAction(ctx context.Context, opts Options, vmID, action string) error {
	return run(ctx, opts, func(a *app) error {
		out, err := a.svc.PerformAction(ctx, vmID, action)
		if err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(out)
		}
		_, err = fmt.Fprintf(stdout, "%s %s on %s/%s: task %s\n",
			out.Action, out.VM.NativeID, out.VM.HypervisorID, out.VM.Node, out.Task)
		return err
	})
}

// VMList prints the local inventory of provisioned VMs.
func VMList(ctx context.Context, opts Options, hypervisorID string) error {
	return run(ctx, opts, func(a *app) error {
		vms, err := a.svc.ListProvisionedVMs(ctx, hypervisorID)
		if err != nil {
			return err
		}
		if vms == nil {
			vms = []hypervisor.ProvisionedVM{}
		}
		if !a.styled() {
			return printJSON(vms)
		}
		_, err = fmt.Fprint(stdout, renderInventory(vms))
		return err
	})
}
