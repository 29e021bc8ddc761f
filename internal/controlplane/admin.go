package controlplane

import (
	"context"
	"strings"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/platform/proxmox"
	"github.com/imamik/hvplane/internal/platform/vsphere"
	"github.com/imamik/hvplane/internal/util/netutil"
)

// AddHypervisor validates and stores a new record. It starts disconnected;
// call Connect to check it.
func (s *Service) AddHypervisor(ctx context.Context, rec *hypervisor.Record) error {
	if err := validateRecord("controlplane.AddHypervisor", rec); err != nil {
		return err
	}
	rec.Status = hypervisor.StatusDisconnected
	rec.Subtype = nil
	rec.LastSync = nil
	return s.store.CreateHypervisor(ctx, rec)
}

// UpdateHypervisor replaces the connection fields of the record resolved by
// id or name. The id is kept and the record returns to disconnected.
func (s *Service) UpdateHypervisor(ctx context.Context, hypervisorID string, rec *hypervisor.Record) error {
	if err := validateRecord("controlplane.UpdateHypervisor", rec); err != nil {
		return err
	}
	current, err := s.store.ResolveHypervisor(ctx, hypervisorID)
	if err != nil {
		return err
	}
	rec.ID = current.ID
	return s.store.UpdateHypervisor(ctx, rec)
}

func validateRecord(op string, rec *hypervisor.Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return apierr.Validation(op, "name is required")
	}

	port := proxmox.DefaultPort
	switch rec.Type {
	case hypervisor.TypeProxmox:
		if rec.Credentials.Kind != hypervisor.CredentialToken {
			return apierr.Validation(op, "proxmox hypervisors authenticate with an API token")
		}
		if rec.Credentials.TokenName == "" {
			return apierr.Validation(op, "token name is required")
		}
	case hypervisor.TypeVSphere:
		port = vsphere.DefaultPort
		if rec.Credentials.Kind != hypervisor.CredentialPassword {
			return apierr.Validation(op, "vsphere hypervisors authenticate with username and password")
		}
	default:
		return apierr.Validation(op, "type must be proxmox or vsphere, got %q", rec.Type)
	}

	if rec.Credentials.Username == "" || rec.Credentials.Secret == "" {
		return apierr.Validation(op, "username and secret are required")
	}
	if _, _, err := netutil.SplitHostPort(rec.Host, port); err != nil {
		return apierr.Validation(op, "invalid host: %v", err)
	}
	return nil
}

// GetHypervisor resolves a record by id or name.
func (s *Service) GetHypervisor(ctx context.Context, hypervisorID string) (*hypervisor.Record, error) {
	return s.store.ResolveHypervisor(ctx, hypervisorID)
}

// ListHypervisors returns every record in listing order.
func (s *Service) ListHypervisors(ctx context.Context) ([]*hypervisor.Record, error) {
	return s.store.ListHypervisors(ctx)
}

// RemoveHypervisor deletes a record. Inventory rows are kept.
func (s *Service) RemoveHypervisor(ctx context.Context, hypervisorID string) error {
	rec, err := s.store.ResolveHypervisor(ctx, hypervisorID)
	if err != nil {
		return err
	}
	return s.store.DeleteHypervisor(ctx, rec.ID)
}

// AddPlan stores a VM plan. Zero dimensions are allowed and do not
// constrain estimates.
func (s *Service) AddPlan(ctx context.Context, p *hypervisor.Plan) error {
	if strings.TrimSpace(p.Name) == "" {
		return apierr.Validation("controlplane.AddPlan", "name is required")
	}
	if p.CPU < 0 || p.MemoryMB < 0 || p.DiskGB < 0 {
		return apierr.Validation("controlplane.AddPlan", "plan dimensions must not be negative")
	}
	return s.store.CreatePlan(ctx, p)
}

// ListPlans returns plans, optionally only active ones.
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]hypervisor.Plan, error) {
	return s.store.ListPlans(ctx, activeOnly)
}

// ListProvisionedVMs returns the local inventory, optionally for one
// hypervisor.
func (s *Service) ListProvisionedVMs(ctx context.Context, hypervisorID string) ([]hypervisor.ProvisionedVM, error) {
	if hypervisorID == "" {
		return s.store.ListProvisionedVMs(ctx, "")
	}
	rec, err := s.store.ResolveHypervisor(ctx, hypervisorID)
	if err != nil {
		return nil, err
	}
	return s.store.ListProvisionedVMs(ctx, rec.ID)
}
