package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvplane/internal/hypervisor"
)

func proxmoxInput() HypervisorAddInput {
	return HypervisorAddInput{
		Name:      "pve-lab",
		Type:      "proxmox",
		Host:      "pve.lab.local",
		Username:  "root@pam",
		TokenName: "automation",
		Secret:    "s3cr3t-token",
	}
}

func TestRecordFromInput(t *testing.T) {
	t.Run("proxmox uses token credentials", func(t *testing.T) {
		rec := recordFromInput(proxmoxInput())
		assert.Equal(t, hypervisor.TypeProxmox, rec.Type)
		assert.Equal(t, hypervisor.CredentialToken, rec.Credentials.Kind)
		assert.Equal(t, "root@pam!automation", rec.Credentials.TokenID())
	})

	t.Run("vsphere uses password credentials", func(t *testing.T) {
		rec := recordFromInput(HypervisorAddInput{Name: "vc", Type: "VSphere", Host: "vc", Username: "admin", Secret: "pw"})
		assert.Equal(t, hypervisor.TypeVSphere, rec.Type)
		assert.Equal(t, hypervisor.CredentialPassword, rec.Credentials.Kind)
	})

	t.Run("secret falls back to environment", func(t *testing.T) {
		t.Setenv(secretEnvVar, "from-env")
		in := proxmoxInput()
		in.Secret = ""
		assert.Equal(t, "from-env", recordFromInput(in).Credentials.Secret)
	})
}

func TestHypervisorAddAndList(t *testing.T) {
	opts, out := setupApp(t, true)
	ctx := context.Background()

	require.NoError(t, HypervisorAdd(ctx, opts, proxmoxInput()))

	var added hypervisorView
	require.NoError(t, json.Unmarshal(out.Bytes(), &added))
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "disconnected", added.Status)
	out.Reset()

	require.NoError(t, HypervisorList(ctx, opts))
	assert.NotContains(t, out.String(), "s3cr3t-token")

	var views []hypervisorView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, added.ID, views[0].ID)
	assert.Equal(t, "pve-lab", views[0].Name)
	assert.Equal(t, "automation", views[0].TokenName)
	out.Reset()

	require.NoError(t, HypervisorRemove(ctx, opts, "pve-lab"))
	out.Reset()

	require.NoError(t, HypervisorList(ctx, opts))
	assert.JSONEq(t, "[]", out.String())
}

func TestHypervisorAdd_ValidationError(t *testing.T) {
	opts, _ := setupApp(t, false)

	in := proxmoxInput()
	in.Type = "xen"
	err := HypervisorAdd(context.Background(), opts, in)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, http.StatusBadRequest, cmdErr.HTTPStatus)
	assert.Contains(t, cmdErr.Error(), "status 400")
}

func TestHypervisorRemove_NotFound(t *testing.T) {
	t.Run("text output returns the triple as error", func(t *testing.T) {
		opts, _ := setupApp(t, false)

		err := HypervisorRemove(context.Background(), opts, "missing")

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, http.StatusNotFound, cmdErr.HTTPStatus)
	})

	t.Run("json output prints the triple", func(t *testing.T) {
		opts, out := setupApp(t, true)

		err := HypervisorRemove(context.Background(), opts, "missing")
		assert.ErrorIs(t, err, ErrReported)

		var body struct {
			Error struct {
				Status  int    `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &body))
		assert.Equal(t, http.StatusNotFound, body.Error.Status)
		assert.NotEmpty(t, body.Error.Message)
	})
}

func TestOpenApp_BadConfig(t *testing.T) {
	err := HypervisorList(context.Background(), Options{ConfigPath: "/nonexistent/hvplane.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestHypervisorUpdateInput_Merge(t *testing.T) {
	current := recordFromInput(proxmoxInput())
	current.ID = "id-1"
	current.Status = hypervisor.StatusConnected

	tests := []struct {
		name  string
		in    HypervisorUpdateInput
		check func(t *testing.T, rec *hypervisor.Record)
	}{
		{
			name: "empty input keeps everything",
			check: func(t *testing.T, rec *hypervisor.Record) {
				assert.Equal(t, current.Host, rec.Host)
				assert.Equal(t, "s3cr3t-token", rec.Credentials.Secret)
				assert.False(t, rec.InsecureTLS)
			},
		},
		{
			name: "host and insecure",
			in:   HypervisorUpdateInput{Host: "10.0.0.2:8006", Insecure: ptrBool(true)},
			check: func(t *testing.T, rec *hypervisor.Record) {
				assert.Equal(t, "10.0.0.2:8006", rec.Host)
				assert.True(t, rec.InsecureTLS)
				assert.Equal(t, "automation", rec.Credentials.TokenName)
			},
		},
		{
			name: "type switch changes credential kind",
			in:   HypervisorUpdateInput{Type: "vSphere", Username: "administrator@vsphere.local"},
			check: func(t *testing.T, rec *hypervisor.Record) {
				assert.Equal(t, hypervisor.TypeVSphere, rec.Type)
				assert.Equal(t, hypervisor.CredentialPassword, rec.Credentials.Kind)
				assert.Equal(t, "administrator@vsphere.local", rec.Credentials.Username)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.in.merge(current)
			assert.Equal(t, "id-1", rec.ID)
			tt.check(t, rec)
		})
	}

	t.Run("secret falls back to environment", func(t *testing.T) {
		t.Setenv(secretEnvVar, "rotated")
		assert.Equal(t, "rotated", HypervisorUpdateInput{}.merge(current).Credentials.Secret)
		assert.Equal(t, "s3cr3t-token", current.Credentials.Secret)
	})
}

func ptrBool(b bool) *bool { return &b }

func TestHypervisorUpdate(t *testing.T) {
	opts, out := setupApp(t, true)
	ctx := context.Background()

	require.NoError(t, HypervisorAdd(ctx, opts, proxmoxInput()))
	var added hypervisorView
	require.NoError(t, json.Unmarshal(out.Bytes(), &added))
	out.Reset()

	require.NoError(t, HypervisorUpdate(ctx, opts, "pve-lab", HypervisorUpdateInput{
		Name: "pve-prod",
		Host: "pve.prod.local:8006",
	}))
	var updated hypervisorView
	require.NoError(t, json.Unmarshal(out.Bytes(), &updated))
	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, "pve-prod", updated.Name)
	assert.Equal(t, "pve.prod.local:8006", updated.Host)
	assert.Equal(t, "disconnected", updated.Status)
	out.Reset()

	err := HypervisorUpdate(ctx, opts, "pve-prod", HypervisorUpdateInput{Host: "pve.prod.local:70000"})
	assert.ErrorIs(t, err, ErrReported)
	assert.Contains(t, out.String(), `"status": 400`)
}

func TestHypervisorConnectAll(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		opts, out := setupApp(t, true)
		require.NoError(t, HypervisorConnectAll(context.Background(), opts))
		assert.JSONEq(t, `{"hypervisors": []}`, out.String())
	})

	t.Run("refused endpoint is reported once", func(t *testing.T) {
		opts, out := setupApp(t, true)
		ctx := context.Background()

		in := proxmoxInput()
		in.Host = "127.0.0.1:1"
		require.NoError(t, HypervisorAdd(ctx, opts, in))
		out.Reset()

		err := HypervisorConnectAll(ctx, opts)
		assert.ErrorIs(t, err, ErrReported)

		var body struct {
			Hypervisors []hypervisorView `json:"hypervisors"`
			Error       struct {
				Status int `json:"status"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &body))
		require.Len(t, body.Hypervisors, 1)
		assert.Equal(t, "error", body.Hypervisors[0].Status)
		assert.Equal(t, http.StatusServiceUnavailable, body.Error.Status)
	})
}
