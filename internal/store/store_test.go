package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/hypervisor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "hvplane.db")}
	timeouts := &config.Timeouts{StoreRetryMaxAttempts: 1, StoreRetryInitialDelay: time.Millisecond}

	s, err := Open(context.Background(), cfg, timeouts, testr.New(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(name string) *hypervisor.Record {
	return &hypervisor.Record{
		Name: name,
		Type: hypervisor.TypeProxmox,
		Host: name + ".lab:8006",
		Credentials: hypervisor.Credentials{
			Kind:      hypervisor.CredentialToken,
			Username:  "root@pam",
			TokenName: "hv",
			Secret:    "s3cret",
		},
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql", DSN: "x"},
		&config.Timeouts{StoreRetryMaxAttempts: 1}, testr.New(t))
	require.Error(t, err)
	assert.True(t, apierr.IsValidation(err))
}

func TestHypervisorLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	rec := testRecord("pve1")
	require.NoError(t, s.CreateHypervisor(ctx, rec))
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, hypervisor.StatusDisconnected, rec.Status)

	got, err := s.GetHypervisor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "pve1", got.Name)
	assert.Equal(t, "s3cret", got.Credentials.Secret)
	assert.Nil(t, got.Subtype)
	assert.Nil(t, got.LastSync)

	byName, err := s.ResolveHypervisor(ctx, "pve1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byName.ID)

	sync := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	esxi := hypervisor.SubtypeESXi
	require.NoError(t, s.UpdateHypervisorStatus(ctx, rec.ID, hypervisor.StatusConnected, &esxi, sync))

	got, err = s.GetHypervisor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, hypervisor.StatusConnected, got.Status)
	require.NotNil(t, got.Subtype)
	assert.Equal(t, hypervisor.SubtypeESXi, *got.Subtype)
	require.NotNil(t, got.LastSync)
	assert.True(t, sync.Equal(*got.LastSync))

	// A nil subtype keeps the stored one.
	require.NoError(t, s.UpdateHypervisorStatus(ctx, rec.ID, hypervisor.StatusError, nil, sync))
	got, err = s.GetHypervisor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, hypervisor.StatusError, got.Status)
	assert.Equal(t, "esxi", got.SubtypeOrEmpty())

	require.NoError(t, s.DeleteHypervisor(ctx, rec.ID))
	_, err = s.GetHypervisor(ctx, rec.ID)
	assert.True(t, apierr.IsNotFound(err))
	assert.True(t, apierr.IsNotFound(s.DeleteHypervisor(ctx, rec.ID)))
	assert.True(t, apierr.IsNotFound(s.UpdateHypervisorStatus(ctx, rec.ID, hypervisor.StatusConnected, nil, sync)))
}

func TestUpdateHypervisor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	rec := testRecord("pve1")
	require.NoError(t, s.CreateHypervisor(ctx, rec))
	esxi := hypervisor.SubtypeESXi
	require.NoError(t, s.UpdateHypervisorStatus(ctx, rec.ID, hypervisor.StatusConnected, &esxi, time.Now()))

	updated := testRecord("pve1-renamed")
	updated.ID = rec.ID
	updated.Host = "10.0.0.9:8006"
	updated.Credentials.Secret = "rotated"
	updated.InsecureTLS = true
	require.NoError(t, s.UpdateHypervisor(ctx, updated))
	assert.Equal(t, hypervisor.StatusDisconnected, updated.Status)

	got, err := s.GetHypervisor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "pve1-renamed", got.Name)
	assert.Equal(t, "10.0.0.9:8006", got.Host)
	assert.Equal(t, "rotated", got.Credentials.Secret)
	assert.True(t, got.InsecureTLS)
	assert.Equal(t, hypervisor.StatusDisconnected, got.Status)
	assert.Nil(t, got.Subtype)
	assert.Nil(t, got.LastSync)

	missing := testRecord("ghost")
	missing.ID = "00000000-0000-0000-0000-000000000000"
	assert.True(t, apierr.IsNotFound(s.UpdateHypervisor(ctx, missing)))
}

func TestListConnectedHypervisors_Order(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		rec := testRecord(name)
		require.NoError(t, s.CreateHypervisor(ctx, rec))
		ids = append(ids, rec.ID)
	}
	now := time.Now()
	for _, i := range []int{0, 2, 3} {
		require.NoError(t, s.UpdateHypervisorStatus(ctx, ids[i], hypervisor.StatusConnected, nil, now))
	}

	all, err := s.ListHypervisors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, rec := range all {
		assert.Equal(t, ids[i], rec.ID)
	}

	connected, err := s.ListConnectedHypervisors(ctx)
	require.NoError(t, err)
	require.Len(t, connected, 3)
	assert.Equal(t, []string{"a", "c", "d"}, []string{connected[0].Name, connected[1].Name, connected[2].Name})
}

func TestPlans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreatePlan(ctx, &hypervisor.Plan{Name: "small", CPU: 2, MemoryMB: 4096, DiskGB: 20, Active: true}))
	require.NoError(t, s.CreatePlan(ctx, &hypervisor.Plan{Name: "legacy", CPU: 1, MemoryMB: 512, Active: false}))
	require.NoError(t, s.CreatePlan(ctx, &hypervisor.Plan{Name: "large", CPU: 8, MemoryMB: 32768, DiskGB: 200, Active: true}))

	all, err := s.ListPlans(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := s.ListActivePlans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "small", active[0].Name)
	assert.Equal(t, int64(4096), active[0].MemoryMB)
	assert.Equal(t, "large", active[1].Name)
}

func TestProvisionedVMs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	ticket := "T-42"
	vm := &hypervisor.ProvisionedVM{
		Name:         "web01",
		HypervisorID: "hv-1",
		NativeID:     "101",
		Node:         "pve1",
		Status:       hypervisor.VMStatusCreating,
		CPU:          2,
		MemoryMB:     2048,
		DiskGB:       20,
		Task:         "UPID:pve1:0001",
		TicketID:     &ticket,
		CreatedBy:    "ops",
	}
	require.NoError(t, s.CreateProvisionedVM(ctx, vm))
	require.NoError(t, s.CreateProvisionedVM(ctx, &hypervisor.ProvisionedVM{Name: "db01", HypervisorID: "hv-2", NativeID: "vm-7"}))

	all, err := s.ListProvisionedVMs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hv1, err := s.ListProvisionedVMs(ctx, "hv-1")
	require.NoError(t, err)
	require.Len(t, hv1, 1)
	assert.Equal(t, "web01", hv1[0].Name)
	require.NotNil(t, hv1[0].TicketID)
	assert.Equal(t, "T-42", *hv1[0].TicketID)
	assert.Nil(t, hv1[0].ClientID)
	assert.False(t, hv1[0].CreatedAt.IsZero())
}
