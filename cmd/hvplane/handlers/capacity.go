package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// Capacity prints node capacity and plan estimates for a hypervisor.
func Capacity(ctx context.Context, opts Options, hypervisorID string) error {
	return run(ctx, opts, func(a *app) error {
		report, err := a.svc.AggregateCapacity(ctx, hypervisorID)
		if err != nil {
			return err
		}
		if !a.styled() {
			return printJSON(report)
		}
		_, err = fmt.Fprint(stdout, renderCapacity(report))
		return err
	})
}

// Templates prints the clonable templates and ISO images of a hypervisor.
func Templates(ctx context.Context, opts Options, hypervisorID string) error {
	return run(ctx, opts, func(a *app) error {
		templates, err := a.svc.ListTemplates(ctx, hypervisorID)
		if err != nil {
			return err
		}
		if templates == nil {
			templates = []hypervisor.Template{}
		}
		if !a.styled() {
			return printJSON(templates)
		}
		_, err = fmt.Fprint(stdout, renderTemplates(hypervisorID, templates))
		return err
	})
}
