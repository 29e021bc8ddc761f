package store

import (
	"context"
	"time"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// CreatePlan inserts a VM plan.
func (s *Store) CreatePlan(ctx context.Context, p *hypervisor.Plan) error {
	p.ID = newID()
	row := &planRow{
		ID:       p.ID,
		Name:     p.Name,
		CPU:      p.CPU,
		MemoryMB: p.MemoryMB,
		DiskGB:   p.DiskGB,
		Active:   p.Active,
	}
	return wrap("store.CreatePlan", s.db.WithContext(ctx).Create(row).Error)
}

// ListPlans returns plans in creation order.
func (s *Store) ListPlans(ctx context.Context, activeOnly bool) ([]hypervisor.Plan, error) {
	q := s.db.WithContext(ctx).Order("id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var rows []planRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrap("store.ListPlans", err)
	}

	out := make([]hypervisor.Plan, 0, len(rows))
	for _, r := range rows {
		out = append(out, hypervisor.Plan{
			ID:       r.ID,
			Name:     r.Name,
			CPU:      r.CPU,
			MemoryMB: r.MemoryMB,
			DiskGB:   r.DiskGB,
			Active:   r.Active,
		})
	}
	return out, nil
}

// ListActivePlans returns the plans used for capacity estimates.
func (s *Store) ListActivePlans(ctx context.Context) ([]hypervisor.Plan, error) {
	return s.ListPlans(ctx, true)
}

// CreateProvisionedVM writes an inventory row.
func (s *Store) CreateProvisionedVM(ctx context.Context, vm *hypervisor.ProvisionedVM) error {
	vm.ID = newID()
	if vm.CreatedAt.IsZero() {
		vm.CreatedAt = time.Now().UTC()
	}
	row := &provisionedVMRow{
		ID:           vm.ID,
		Name:         vm.Name,
		Description:  vm.Description,
		HypervisorID: vm.HypervisorID,
		NativeID:     vm.NativeID,
		Node:         vm.Node,
		Status:       vm.Status,
		CPU:          vm.CPU,
		MemoryMB:     vm.MemoryMB,
		DiskGB:       vm.DiskGB,
		Task:         vm.Task,
		TicketID:     vm.TicketID,
		ClientID:     vm.ClientID,
		CreatedBy:    vm.CreatedBy,
		CreatedAt:    vm.CreatedAt,
	}
	return wrap("store.CreateProvisionedVM", s.db.WithContext(ctx).Create(row).Error)
}

// ListProvisionedVMs returns inventory rows, optionally for one hypervisor.
func (s *Store) ListProvisionedVMs(ctx context.Context, hypervisorID string) ([]hypervisor.ProvisionedVM, error) {
	q := s.db.WithContext(ctx).Order("id")
	if hypervisorID != "" {
		q = q.Where("hypervisor_id = ?", hypervisorID)
	}

	var rows []provisionedVMRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrap("store.ListProvisionedVMs", err)
	}

	out := make([]hypervisor.ProvisionedVM, 0, len(rows))
	for _, r := range rows {
		out = append(out, hypervisor.ProvisionedVM{
			ID:           r.ID,
			Name:         r.Name,
			Description:  r.Description,
			HypervisorID: r.HypervisorID,
			NativeID:     r.NativeID,
			Node:         r.Node,
			Status:       r.Status,
			CPU:          r.CPU,
			MemoryMB:     r.MemoryMB,
			DiskGB:       r.DiskGB,
			Task:         r.Task,
			TicketID:     r.TicketID,
			ClientID:     r.ClientID,
			CreatedBy:    r.CreatedBy,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}
