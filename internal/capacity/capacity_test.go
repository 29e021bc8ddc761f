package capacity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	hvtest "github.com/imamik/hvplane/internal/testing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	node := NodeCapacity{Name: "pve1", CPUFree: 8, Cores: 8, MemoryFree: 16 * gib, DiskFree: 500 * gib}

	tests := []struct {
		name string
		node NodeCapacity
		plan hypervisor.Plan
		want int64
	}{
		{"all dimensions zero", node, hypervisor.Plan{}, 0},
		{"cpu and memory bound", node, hypervisor.Plan{CPU: 2, MemoryMB: 4096}, 4},
		{"memory is tighter", node, hypervisor.Plan{CPU: 1, MemoryMB: 8192}, 2},
		{"disk is tighter", node, hypervisor.Plan{CPU: 1, MemoryMB: 1024, DiskGB: 200}, 2},
		{"cpu only", node, hypervisor.Plan{CPU: 3}, 2},
		{"floors fractions", NodeCapacity{CPUFree: 3.9, MemoryFree: 16 * gib}, hypervisor.Plan{CPU: 1, MemoryMB: 1024}, 3},
		{"empty node", NodeCapacity{}, hypervisor.Plan{CPU: 1, MemoryMB: 512, DiskGB: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Estimate(tt.node, tt.plan))
		})
	}
}

func TestLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Limit{}, Unbounded())
	assert.Equal(t, int64(0), Unbounded().OrZero())

	assert.Equal(t, Bound(3), Unbounded().Min(Bound(3)))
	assert.Equal(t, Bound(3), Bound(3).Min(Unbounded()))
	assert.Equal(t, Bound(2), Bound(3).Min(Bound(2)))
	assert.Equal(t, Bound(0), Bound(-5))
	assert.Equal(t, int64(7), Bound(7).OrZero())
}

func TestBuild(t *testing.T) {
	t.Parallel()

	nodes := []hypervisor.Node{
		{Name: "pve1", Cores: 8, CPUUsage: 0.25, MemoryTotal: 32 * gib, MemoryFree: 16 * gib, DiskTotal: 100 * gib, DiskFree: 60 * gib, Online: true},
		{Name: "pve2", Online: false},
	}
	plans := []hypervisor.Plan{
		{ID: "p1", Name: "small", CPU: 2, MemoryMB: 4096, DiskGB: 20, Active: true},
	}

	r := Build("h1", nodes, plans)

	require.Len(t, r.Nodes, 2)
	assert.InDelta(t, 6.0, r.Nodes[0].CPUFree, 1e-9)
	assert.Equal(t, 2, r.Totals.Nodes)
	assert.Equal(t, 1, r.Totals.OnlineNodes)
	assert.Equal(t, uint64(16*gib), r.Totals.MemoryFree)

	require.Len(t, r.Estimates, 2)
	assert.Equal(t, PlanEstimate{Node: "pve1", PlanID: "p1", Plan: "small", Estimate: 3}, r.Estimates[0])
	assert.Equal(t, int64(0), r.Estimates[1].Estimate)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	rec := hvtest.NewRecordBuilder("h1").Connected().Build()
	store := hvtest.NewMemoryStore(rec)
	store.AddPlan(hypervisor.Plan{ID: "p1", Name: "small", CPU: 2, MemoryMB: 4096, Active: true})
	store.AddPlan(hypervisor.Plan{ID: "p2", Name: "retired", CPU: 1, MemoryMB: 1024, Active: false})

	clients := hvtest.NewClientFixture()
	clients.Mock("h1").ListNodesFunc = func(context.Context) ([]hypervisor.Node, error) {
		return []hypervisor.Node{{Name: "pve1", Cores: 8, MemoryFree: 16 * gib, Online: true}}, nil
	}

	mt := metrics.New()
	a := New(store, clients, mt, testr.New(t))
	r, err := a.Aggregate(hvtest.TestContext(t), "h1")
	require.NoError(t, err)

	require.Len(t, r.Estimates, 1)
	assert.Equal(t, int64(4), r.Estimates[0].Estimate)
	assert.Equal(t, 1, clients.Mock("h1").Calls("Logout"))

	expected := `
# HELP hvplane_capacity_plan_estimate How many VMs of a plan fit on a node at the last aggregation
# TYPE hvplane_capacity_plan_estimate gauge
hvplane_capacity_plan_estimate{hypervisor="h1",node="pve1",plan="small"} 4
`
	require.NoError(t, testutil.GatherAndCompare(mt.Registry(), strings.NewReader(expected), "hvplane_capacity_plan_estimate"))
}

func TestAggregate_Errors(t *testing.T) {
	t.Parallel()

	rec := hvtest.NewRecordBuilder("h1").Connected().Build()

	t.Run("unknown hypervisor", func(t *testing.T) {
		t.Parallel()
		a := New(hvtest.NewMemoryStore(), hvtest.NewClientFixture(), nil, testr.New(t))
		_, err := a.Aggregate(hvtest.TestContext(t), "nope")
		assert.True(t, apierr.IsNotFound(err))
	})

	t.Run("node listing fails", func(t *testing.T) {
		t.Parallel()
		clients := hvtest.NewClientFixture()
		clients.Mock("h1").ListNodesFunc = func(context.Context) ([]hypervisor.Node, error) {
			return nil, apierr.Wrap(apierr.KindUnreachable, "proxmox.GET /nodes", errors.New("timeout"))
		}
		a := New(hvtest.NewMemoryStore(rec), clients, nil, testr.New(t))
		_, err := a.Aggregate(hvtest.TestContext(t), "h1")
		assert.True(t, apierr.IsKind(err, apierr.KindUnreachable))
		assert.Equal(t, 1, clients.Mock("h1").Calls("Logout"))
	})

	t.Run("plans unavailable", func(t *testing.T) {
		t.Parallel()
		store := hvtest.NewMemoryStore(rec)
		store.ListPlansErr = apierr.Wrap(apierr.KindPersistence, "store.ListPlans", errors.New("locked"))
		clients := hvtest.NewClientFixture()
		a := New(store, clients, nil, testr.New(t))
		_, err := a.Aggregate(hvtest.TestContext(t), "h1")
		assert.True(t, apierr.IsKind(err, apierr.KindPersistence))
		assert.Empty(t, clients.Requests())
	})
}
