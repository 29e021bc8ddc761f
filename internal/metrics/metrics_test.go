package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBackendCall(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveBackendCall("proxmox", "list_vms", time.Now(), nil)
	m.ObserveBackendCall("proxmox", "list_vms", time.Now(), errors.New("boom"))
	m.ObserveBackendCall("proxmox", "list_vms", time.Now(), nil)

	assert.InDelta(t, 2, testutil.ToFloat64(m.backendCallsTotal.WithLabelValues("proxmox", "list_vms", ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.backendCallsTotal.WithLabelValues("proxmox", "list_vms", ResultError)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.backendLatency))
}

func TestRecorders(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordLocate("found")
	m.RecordLocate("not_found")
	m.RecordScanFailure("h1")
	m.RecordCreation("iso", nil)
	m.SetPlanEstimate("h1", "pve1", "small", 4)

	assert.InDelta(t, 1, testutil.ToFloat64(m.locateTotal.WithLabelValues("found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.scanFailures.WithLabelValues("h1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.vmCreationsTotal.WithLabelValues("iso", ResultSuccess)), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.planEstimate.WithLabelValues("h1", "pve1", "small")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveBackendCall("vsphere", "login", time.Now(), nil)
		m.RecordLocate("found")
		m.RecordScanFailure("h1")
		m.RecordCreation("clone", nil)
		m.SetPlanEstimate("h1", "n", "p", 1)
	})
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordLocate("found")

	path := filepath.Join(t.TempDir(), "hvplane.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hvplane_locator_lookups_total")
}
