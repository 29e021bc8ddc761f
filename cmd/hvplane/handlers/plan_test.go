package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvplane/internal/hypervisor"
)

func TestPlanAddAndList(t *testing.T) {
	opts, out := setupApp(t, true)
	ctx := context.Background()

	require.NoError(t, PlanAdd(ctx, opts, PlanAddInput{Name: "small", CPU: 2, Memory: "4Gi", Disk: "50Gi"}))
	require.NoError(t, PlanAdd(ctx, opts, PlanAddInput{Name: "legacy", CPU: 1, Memory: "512", Disk: "10", Inactive: true}))
	out.Reset()

	require.NoError(t, PlanList(ctx, opts, true))
	var active []hypervisor.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "small", active[0].Name)
	assert.Equal(t, int64(4096), active[0].MemoryMB)
	assert.Equal(t, int64(50), active[0].DiskGB)
	out.Reset()

	require.NoError(t, PlanList(ctx, opts, false))
	var all []hypervisor.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestPlanAdd_BadQuantity(t *testing.T) {
	opts, _ := setupApp(t, true)

	err := PlanAdd(context.Background(), opts, PlanAddInput{Name: "x", Memory: "lots"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--memory")
}

func TestVMList_Empty(t *testing.T) {
	opts, out := setupApp(t, true)

	require.NoError(t, VMList(context.Background(), opts, ""))
	assert.JSONEq(t, "[]", out.String())
}
