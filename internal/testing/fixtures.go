package testing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
)

// MemoryStore is an in-memory stand-in for the relational store. Records are
// listed in insertion order.
type MemoryStore struct {
	mu      sync.Mutex
	records []*hypervisor.Record
	plans   []hypervisor.Plan
	vms     []hypervisor.ProvisionedVM

	// CreateProvisionedVMErr, when set, is returned by CreateProvisionedVM.
	CreateProvisionedVMErr error
	// ListPlansErr, when set, is returned by ListActivePlans.
	ListPlansErr error
}

// NewMemoryStore creates a store holding copies of recs.
func NewMemoryStore(recs ...*hypervisor.Record) *MemoryStore {
	s := &MemoryStore{}
	for _, r := range recs {
		cp := *r
		s.records = append(s.records, &cp)
	}
	return s
}

// AddPlan appends a plan.
func (s *MemoryStore) AddPlan(p hypervisor.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = append(s.plans, p)
}

// GetHypervisor returns a copy of the record with the given id.
func (s *MemoryStore) GetHypervisor(_ context.Context, id string) (*hypervisor.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apierr.NotFound("store.GetHypervisor", "hypervisor %s not found", id)
}

// ResolveHypervisor matches id first, then name.
func (s *MemoryStore) ResolveHypervisor(ctx context.Context, idOrName string) (*hypervisor.Record, error) {
	if rec, err := s.GetHypervisor(ctx, idOrName); err == nil {
		return rec, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Name == idOrName {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apierr.NotFound("store.ResolveHypervisor", "hypervisor %s not found", idOrName)
}

// ListHypervisors returns every record.
func (s *MemoryStore) ListHypervisors(context.Context) ([]*hypervisor.Record, error) {
	return s.list(""), nil
}

// ListConnectedHypervisors returns connected records.
func (s *MemoryStore) ListConnectedHypervisors(context.Context) ([]*hypervisor.Record, error) {
	return s.list(hypervisor.StatusConnected), nil
}

func (s *MemoryStore) list(status hypervisor.Status) []*hypervisor.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*hypervisor.Record
	for _, r := range s.records {
		if status == "" || r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

// UpdateHypervisorStatus stores a check outcome.
func (s *MemoryStore) UpdateHypervisorStatus(_ context.Context, id string, status hypervisor.Status, subtype *hypervisor.Subtype, lastSync time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			r.Status = status
			r.LastSync = &lastSync
			if subtype != nil {
				st := *subtype
				r.Subtype = &st
			}
			return nil
		}
	}
	return apierr.NotFound("store.UpdateHypervisorStatus", "hypervisor %s not found", id)
}

// ListActivePlans returns active plans.
func (s *MemoryStore) ListActivePlans(context.Context) ([]hypervisor.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListPlansErr != nil {
		return nil, s.ListPlansErr
	}
	var out []hypervisor.Plan
	for _, p := range s.plans {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateProvisionedVM stores an inventory row unless an error is injected.
func (s *MemoryStore) CreateProvisionedVM(_ context.Context, vm *hypervisor.ProvisionedVM) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateProvisionedVMErr != nil {
		return s.CreateProvisionedVMErr
	}
	s.vms = append(s.vms, *vm)
	return nil
}

// ProvisionedVMs returns the stored inventory rows.
func (s *MemoryStore) ProvisionedVMs() []hypervisor.ProvisionedVM {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.vms)
}

// ClientFixture hands out one MockClient per hypervisor id and records which
// hypervisors were asked for a client.
type ClientFixture struct {
	mu       sync.Mutex
	mocks    map[string]*MockClient
	errs     map[string]error
	requests []string
}

// NewClientFixture creates an empty fixture.
func NewClientFixture() *ClientFixture {
	return &ClientFixture{
		mocks: make(map[string]*MockClient),
		errs:  make(map[string]error),
	}
}

// Mock returns the mock for a hypervisor id, creating it on first use.
func (f *ClientFixture) Mock(id string) *MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mocks[id]
	if !ok {
		m = &MockClient{}
		f.mocks[id] = m
	}
	return m
}

// FailWith makes GetClient fail for a hypervisor id.
func (f *ClientFixture) FailWith(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

// GetClient returns the hypervisor's mock bound to rec.
func (f *ClientFixture) GetClient(_ context.Context, rec *hypervisor.Record) (hypervisor.Client, error) {
	f.mu.Lock()
	f.requests = append(f.requests, rec.ID)
	err := f.errs[rec.ID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m := f.Mock(rec.ID)
	m.RecordValue = rec
	return m, nil
}

// Requests returns the hypervisor ids passed to GetClient, in call order.
func (f *ClientFixture) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}
