package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// PlanAddInput holds the flags of "plan add". Memory and disk accept
// quantities.
type PlanAddInput struct {
	Name     string
	CPU      int
	Memory   string
	Disk     string
	Inactive bool
}

// PlanAdd stores a VM plan.
func PlanAdd(ctx context.Context, opts Options, in PlanAddInput) error {
	memMB, err := parseMemoryMB(in.Memory)
	if err != nil {
		return fmt.Errorf("--memory: %w", err)
	}
	diskGB, err := parseDiskGB(in.Disk)
	if err != nil {
		return fmt.Errorf("--disk: %w", err)
	}

	return run(ctx, opts, func(a *app) error {
		p := &hypervisor.Plan{
			Name:     in.Name,
			CPU:      in.CPU,
			MemoryMB: memMB,
			DiskGB:   diskGB,
			Active:   !in.Inactive,
		}
		if err := a.svc.AddPlan(ctx, p); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(p)
		}
		_, err := fmt.Fprintf(stdout, "Added plan %q (%d vCPU, %d MiB, %d GiB)\n", p.Name, p.CPU, p.MemoryMB, p.DiskGB)
		return err
	})
}

// PlanList prints stored plans.
func PlanList(ctx context.Context, opts Options, activeOnly bool) error {
	return run(ctx, opts, func(a *app) error {
		plans, err := a.svc.ListPlans(ctx, activeOnly)
		if err != nil {
			return err
		}
		if plans == nil {
			plans = []hypervisor.Plan{}
		}
		if !a.styled() {
			return printJSON(plans)
		}
		_, err = fmt.Fprint(stdout, renderPlans(plans))
		return err
	})
}
