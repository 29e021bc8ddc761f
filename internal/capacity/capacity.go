// Package capacity estimates how many VMs of each active plan still fit on
// the nodes of a hypervisor. Estimates are advisory and never enforced.
package capacity

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/session"
)

const (
	mib = 1 << 20
	gib = 1 << 30
)

// Store provides the record and the plans to estimate.
type Store interface {
	GetHypervisor(ctx context.Context, id string) (*hypervisor.Record, error)
	ListActivePlans(ctx context.Context) ([]hypervisor.Plan, error)
}

// ClientFactory opens clients for records.
type ClientFactory interface {
	GetClient(ctx context.Context, rec *hypervisor.Record) (hypervisor.Client, error)
}

// NodeCapacity is the free capacity of one node.
type NodeCapacity struct {
	Name   string `json:"name"`
	Online bool   `json:"online"`
	// CPUFree is cores * (1 - usage).
	CPUFree     float64 `json:"cpuFree"`
	Cores       int     `json:"cores"`
	MemoryFree  uint64  `json:"memoryFree"`
	MemoryTotal uint64  `json:"memoryTotal"`
	DiskFree    uint64  `json:"diskFree"`
	DiskTotal   uint64  `json:"diskTotal"`
}

// Totals sums node capacity across the hypervisor.
type Totals struct {
	Nodes       int     `json:"nodes"`
	OnlineNodes int     `json:"onlineNodes"`
	CPUFree     float64 `json:"cpuFree"`
	Cores       int     `json:"cores"`
	MemoryFree  uint64  `json:"memoryFree"`
	MemoryTotal uint64  `json:"memoryTotal"`
	DiskFree    uint64  `json:"diskFree"`
	DiskTotal   uint64  `json:"diskTotal"`
}

// PlanEstimate is how many VMs of a plan fit on a node.
type PlanEstimate struct {
	Node     string `json:"node"`
	PlanID   string `json:"planId"`
	Plan     string `json:"plan"`
	Estimate int64  `json:"estimate"`
}

// Report is the result of Aggregate.
type Report struct {
	HypervisorID string         `json:"hypervisorId"`
	Nodes        []NodeCapacity `json:"nodes"`
	Totals       Totals         `json:"totals"`
	Estimates    []PlanEstimate `json:"estimates"`
}

// Aggregator computes capacity reports.
type Aggregator struct {
	store   Store
	factory ClientFactory
	metrics *metrics.Metrics
	log     logr.Logger
}

// New creates an Aggregator. m may be nil.
func New(store Store, factory ClientFactory, m *metrics.Metrics, log logr.Logger) *Aggregator {
	return &Aggregator{store: store, factory: factory, metrics: m, log: log.WithName("capacity")}
}

// Aggregate reads node capacity from the hypervisor and estimates every
// active plan per node.
func (a *Aggregator) Aggregate(ctx context.Context, hypervisorID string) (*Report, error) {
	rec, err := a.store.GetHypervisor(ctx, hypervisorID)
	if err != nil {
		return nil, err
	}

	plans, err := a.store.ListActivePlans(ctx)
	if err != nil {
		return nil, err
	}

	c, err := a.factory.GetClient(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer session.Release(ctx, a.log, c)

	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	report := Build(rec.ID, nodes, plans)
	for _, e := range report.Estimates {
		a.metrics.SetPlanEstimate(rec.ID, e.Node, e.Plan, e.Estimate)
	}
	a.log.V(1).Info("capacity aggregated", "hypervisor", rec.ID, "nodes", len(nodes), "plans", len(plans))
	return report, nil
}

// Build computes a report from raw node inputs.
func Build(hypervisorID string, nodes []hypervisor.Node, plans []hypervisor.Plan) *Report {
	r := &Report{
		HypervisorID: hypervisorID,
		Nodes:        make([]NodeCapacity, 0, len(nodes)),
		Estimates:    make([]PlanEstimate, 0, len(nodes)*len(plans)),
	}

	for _, n := range nodes {
		nc := nodeCapacity(n)
		r.Nodes = append(r.Nodes, nc)

		r.Totals.Nodes++
		if nc.Online {
			r.Totals.OnlineNodes++
		}
		r.Totals.CPUFree += nc.CPUFree
		r.Totals.Cores += nc.Cores
		r.Totals.MemoryFree += nc.MemoryFree
		r.Totals.MemoryTotal += nc.MemoryTotal
		r.Totals.DiskFree += nc.DiskFree
		r.Totals.DiskTotal += nc.DiskTotal

		for _, p := range plans {
			r.Estimates = append(r.Estimates, PlanEstimate{
				Node:     nc.Name,
				PlanID:   p.ID,
				Plan:     p.Name,
				Estimate: Estimate(nc, p),
			})
		}
	}
	return r
}

func nodeCapacity(n hypervisor.Node) NodeCapacity {
	usage := min(max(n.CPUUsage, 0), 1)
	return NodeCapacity{
		Name:        n.Name,
		Online:      n.Online,
		CPUFree:     float64(n.Cores) * (1 - usage),
		Cores:       n.Cores,
		MemoryFree:  n.MemoryFree,
		MemoryTotal: n.MemoryTotal,
		DiskFree:    n.DiskFree,
		DiskTotal:   n.DiskTotal,
	}
}

// Estimate returns how many VMs of plan fit into node. Dimensions the plan
// leaves at zero do not constrain the result; a plan with no dimension at
// all estimates 0.
func Estimate(node NodeCapacity, plan hypervisor.Plan) int64 {
	limit := fits(node.CPUFree, float64(plan.CPU)).
		Min(fits(float64(node.MemoryFree), float64(plan.MemoryMB)*mib)).
		Min(fits(float64(node.DiskFree), float64(plan.DiskGB)*gib))
	return limit.OrZero()
}
