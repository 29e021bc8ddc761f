package controlplane

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/metrics"
	"github.com/imamik/hvplane/internal/provisioning"
	"github.com/imamik/hvplane/internal/session"
	hvtest "github.com/imamik/hvplane/internal/testing"
)

func newService(t *testing.T, mock *hvtest.MockClient) *Service {
	t.Helper()
	return newServiceWithBuilder(t, func(rec *hypervisor.Record) (session.Conn, error) {
		mock.RecordValue = rec
		return mock, nil
	})
}

func newServiceWithBuilder(t *testing.T, builder session.Builder) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "hvplane.db")
	cfg.Environment = "development"

	svc, err := New(context.Background(), cfg, hvtest.Timeouts(), metrics.New(), testr.New(t),
		WithSessionOptions(
			session.WithBuilder(hypervisor.TypeProxmox, builder),
			session.WithoutReachabilityCheck(),
		))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func proxmoxRecord() *hypervisor.Record {
	return &hypervisor.Record{
		Name: "pve-lab",
		Type: hypervisor.TypeProxmox,
		Host: "pve.lab:8006",
		Credentials: hypervisor.Credentials{
			Kind:      hypervisor.CredentialToken,
			Username:  "root@pam",
			TokenName: "hvplane",
			Secret:    "secret",
		},
	}
}

func TestService_EndToEnd(t *testing.T) {
	mock := &hvtest.MockClient{
		ListNodesFunc: func(context.Context) ([]hypervisor.Node, error) {
			return []hypervisor.Node{{Name: "pve1", Cores: 8, MemoryFree: 16 << 30, DiskFree: 200 << 30, Online: true}}, nil
		},
		NextIDFunc: func(context.Context) (string, error) { return "150", nil },
		ListVMsFunc: func(context.Context) ([]hypervisor.VM, error) {
			return []hypervisor.VM{{NativeID: "150", Name: "web01", Node: "pve1", Status: "stopped"}}, nil
		},
		ListTemplatesFunc: func(context.Context) ([]hypervisor.Template, error) {
			return []hypervisor.Template{{Kind: hypervisor.TemplateISO, Reference: "local:iso/debian.iso", Name: "debian.iso"}}, nil
		},
	}
	svc := newService(t, mock)
	ctx := hvtest.TestContext(t)

	rec := proxmoxRecord()
	require.NoError(t, svc.AddHypervisor(ctx, rec))

	// Disconnected records are invisible to the locator.
	_, err := svc.LocateVM(ctx, "150")
	assert.True(t, apierr.IsNotFound(err))

	connected, err := svc.Connect(ctx, "pve-lab")
	require.NoError(t, err)
	assert.Equal(t, hypervisor.StatusConnected, connected.Status)

	res, err := svc.CreateVM(ctx, provisioning.Spec{
		Name:       "web01",
		Hypervisor: "pve-lab",
		CPU:        2,
		MemoryMB:   4096,
		DiskGB:     20,
		Template:   "local:iso/debian.iso",
		Start:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "150", res.NativeID)
	assert.True(t, res.PoweredOn)

	inventory, err := svc.ListProvisionedVMs(ctx, "pve-lab")
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, rec.ID, inventory[0].HypervisorID)

	loc, err := svc.LocateVM(ctx, "150")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loc.Identity.HypervisorID)
	require.NoError(t, loc.Client.Logout(ctx))

	out, err := svc.PerformAction(ctx, "150", "shutdown")
	require.NoError(t, err)
	assert.Equal(t, hypervisor.ActionShutdown, out.Action)

	require.NoError(t, svc.AddPlan(ctx, &hypervisor.Plan{Name: "small", CPU: 2, MemoryMB: 4096, Active: true}))
	report, err := svc.AggregateCapacity(ctx, "pve-lab")
	require.NoError(t, err)
	require.Len(t, report.Estimates, 1)
	assert.Equal(t, int64(4), report.Estimates[0].Estimate)

	templates, err := svc.ListTemplates(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, templates, 1)

	require.NoError(t, svc.RemoveHypervisor(ctx, "pve-lab"))
	_, err = svc.AggregateCapacity(ctx, "pve-lab")
	env := svc.NormalizeError(err)
	assert.Equal(t, http.StatusNotFound, env.HTTPStatus)
}

func TestService_AddHypervisorValidation(t *testing.T) {
	svc := newService(t, &hvtest.MockClient{})

	tests := []struct {
		name   string
		mutate func(*hypervisor.Record)
	}{
		{"missing name", func(r *hypervisor.Record) { r.Name = "" }},
		{"unknown type", func(r *hypervisor.Record) { r.Type = "xen" }},
		{"proxmox with password", func(r *hypervisor.Record) { r.Credentials.Kind = hypervisor.CredentialPassword }},
		{"proxmox without token name", func(r *hypervisor.Record) { r.Credentials.TokenName = "" }},
		{"vsphere with token", func(r *hypervisor.Record) { r.Type = hypervisor.TypeVSphere }},
		{"missing secret", func(r *hypervisor.Record) { r.Credentials.Secret = "" }},
		{"bad port", func(r *hypervisor.Record) { r.Host = "pve.lab:99999" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := proxmoxRecord()
			tt.mutate(rec)
			err := svc.AddHypervisor(hvtest.TestContext(t), rec)
			require.Error(t, err)
			assert.True(t, apierr.IsValidation(err))
			assert.Equal(t, http.StatusBadRequest, svc.NormalizeError(err).HTTPStatus)
		})
	}
}

func TestService_AddPlanValidation(t *testing.T) {
	svc := newService(t, &hvtest.MockClient{})
	ctx := hvtest.TestContext(t)

	assert.True(t, apierr.IsValidation(svc.AddPlan(ctx, &hypervisor.Plan{})))
	assert.True(t, apierr.IsValidation(svc.AddPlan(ctx, &hypervisor.Plan{Name: "x", CPU: -1})))
	require.NoError(t, svc.AddPlan(ctx, &hypervisor.Plan{Name: "empty", Active: true}))

	plans, err := svc.ListPlans(ctx, true)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestService_UpdateHypervisor(t *testing.T) {
	svc := newService(t, &hvtest.MockClient{})
	ctx := hvtest.TestContext(t)

	rec := proxmoxRecord()
	require.NoError(t, svc.AddHypervisor(ctx, rec))
	_, err := svc.Connect(ctx, rec.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		target  string
		mutate  func(*hypervisor.Record)
		wantErr func(error) bool
	}{
		{
			name:    "invalid port",
			target:  rec.ID,
			mutate:  func(r *hypervisor.Record) { r.Host = "pve.lab:0" },
			wantErr: apierr.IsValidation,
		},
		{
			name:    "unknown record",
			target:  "missing",
			mutate:  func(*hypervisor.Record) {},
			wantErr: apierr.IsNotFound,
		},
		{
			name:   "rotate secret by name",
			target: "pve-lab",
			mutate: func(r *hypervisor.Record) {
				r.Host = "10.0.0.5"
				r.Credentials.Secret = "rotated"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := proxmoxRecord()
			tt.mutate(update)
			err := svc.UpdateHypervisor(ctx, tt.target, update)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, rec.ID, update.ID)

			recs, err := svc.ListHypervisors(ctx)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, rec.ID, recs[0].ID)
			assert.Equal(t, "10.0.0.5", recs[0].Host)
			assert.Equal(t, "rotated", recs[0].Credentials.Secret)
			assert.Equal(t, hypervisor.StatusDisconnected, recs[0].Status)
			assert.Nil(t, recs[0].LastSync)
		})
	}
}

func TestService_ConnectAll(t *testing.T) {
	svc := newServiceWithBuilder(t, func(rec *hypervisor.Record) (session.Conn, error) {
		m := &hvtest.MockClient{RecordValue: rec}
		if rec.Name == "pve-down" {
			m.ConnectFunc = func(context.Context) error {
				return apierr.New(apierr.KindAuth, "proxmox.Connect", "token rejected")
			}
		}
		return m, nil
	})
	ctx := hvtest.TestContext(t)

	for _, name := range []string{"pve-a", "pve-down", "pve-b"} {
		rec := proxmoxRecord()
		rec.Name = name
		require.NoError(t, svc.AddHypervisor(ctx, rec))
	}

	recs, err := svc.ConnectAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pve-down")
	assert.True(t, apierr.IsKind(err, apierr.KindAuth))

	require.Len(t, recs, 3)
	status := map[string]hypervisor.Status{}
	for _, r := range recs {
		status[r.Name] = r.Status
	}
	assert.Equal(t, hypervisor.StatusConnected, status["pve-a"])
	assert.Equal(t, hypervisor.StatusConnected, status["pve-b"])
	assert.Equal(t, hypervisor.StatusError, status["pve-down"])

	stored, err := svc.ListHypervisors(ctx)
	require.NoError(t, err)
	for _, r := range stored {
		assert.Equal(t, status[r.Name], r.Status, r.Name)
	}
}

func TestService_VMDetails(t *testing.T) {
	mock := &hvtest.MockClient{
		ListVMsFunc: func(context.Context) ([]hypervisor.VM, error) {
			return []hypervisor.VM{{NativeID: "150", Name: "web01", Node: "pve1", Status: "running"}}, nil
		},
		VMDetailsFunc: func(_ context.Context, node, vmID string) (*hypervisor.VMDetails, error) {
			if vmID != "150" {
				return nil, apierr.NotFound("proxmox.VMDetails", "vm %s not found", vmID)
			}
			return &hypervisor.VMDetails{
				Identity: hypervisor.Identity{NativeID: vmID, Node: node},
				Status:   "running",
				CPUs:     2,
				CPUUsage: 0.5,
			}, nil
		},
	}
	svc := newService(t, mock)
	ctx := hvtest.TestContext(t)

	rec := proxmoxRecord()
	require.NoError(t, svc.AddHypervisor(ctx, rec))
	_, err := svc.Connect(ctx, rec.ID)
	require.NoError(t, err)

	d, err := svc.VMDetails(ctx, "150")
	require.NoError(t, err)
	assert.Equal(t, hypervisor.Identity{NativeID: "150", HypervisorID: rec.ID, Node: "pve1"}, d.Identity)
	assert.Equal(t, "web01", d.Name)
	assert.Equal(t, 2, d.CPUs)
	assert.Equal(t, 1, mock.Calls("VMDetails"))

	_, err = svc.VMDetails(ctx, "404")
	assert.True(t, apierr.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, svc.NormalizeError(err).HTTPStatus)
	assert.Equal(t, 1, mock.Calls("VMDetails"), "unknown vm is not read")
}
