package vsphere

import (
	"context"
	"time"

	"github.com/vmware/govmomi/fault"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/util/netutil"
)

var detailProps = []string{"name", "summary", "guest"}

// VMDetails reads the VM summary, quick stats and guest info over SOAP on
// both subtypes. An empty node is resolved from the VM's runtime host.
func (c *Client) VMDetails(ctx context.Context, node, vmID string) (d *hypervisor.VMDetails, err error) {
	vc, err := c.vimClient(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { c.metrics.ObserveBackendCall(backend, "soap vm details", start, err) }()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Read)
	defer cancel()

	pc := property.DefaultCollector(vc)
	var vm mo.VirtualMachine
	ref := types.ManagedObjectReference{Type: "VirtualMachine", Value: vmID}
	if err := pc.RetrieveOne(ctx, ref, detailProps, &vm); err != nil {
		if fault.Is(err, &types.ManagedObjectNotFound{}) {
			return nil, apierr.NotFound("vsphere.VMDetails", "vm %s not found", vmID)
		}
		return nil, apierr.Wrap(apierr.KindRejected, "vsphere.VMDetails", err)
	}

	if node == "" && vm.Summary.Runtime.Host != nil {
		var host mo.HostSystem
		if err := pc.RetrieveOne(ctx, *vm.Summary.Runtime.Host, []string{"name"}, &host); err == nil {
			node = host.Name
		}
	}

	d = vmDetails(vm)
	d.Identity = hypervisor.Identity{NativeID: vmID, HypervisorID: c.record.ID, Node: node}
	return d, nil
}

func vmDetails(vm mo.VirtualMachine) *hypervisor.VMDetails {
	sum := vm.Summary
	qs := sum.QuickStats

	d := &hypervisor.VMDetails{
		Name:            vm.Name,
		Status:          soapPowerStatus(sum.Runtime.PowerState),
		Description:     sum.Config.Annotation,
		CPUs:            int(sum.Config.NumCpu),
		MemoryBytes:     uint64(max(sum.Config.MemorySizeMB, 0)) << 20,
		GuestOS:         sum.Config.GuestFullName,
		MemoryUsedBytes: uint64(max(qs.GuestMemoryUsage, 0)) << 20,
		UptimeSeconds:   int64(qs.UptimeSeconds),
		ToolsStatus:     hypervisor.ToolsNotInstalled,
	}
	if d.Name == "" {
		d.Name = sum.Config.Name
	}
	if maxMHz := sum.Runtime.MaxCpuUsage; maxMHz > 0 {
		d.CPUUsage = min(max(float64(qs.OverallCpuUsage)/float64(maxMHz), 0), 1)
	}
	if st := sum.Storage; st != nil {
		d.DiskBytes = uint64(max(st.Committed+st.Uncommitted, 0))
	}

	if g := vm.Guest; g != nil {
		if g.GuestFullName != "" {
			d.GuestOS = g.GuestFullName
		}
		d.ToolsStatus = toolsStatus(g)

		var addrs []string
		for _, nic := range g.Net {
			addrs = append(addrs, nic.IpAddress...)
		}
		if g.IpAddress != "" {
			addrs = append(addrs, g.IpAddress)
		}
		d.IPAddresses = netutil.GuestAddresses(addrs)
	}
	return d
}

func toolsStatus(g *types.GuestInfo) string {
	switch types.VirtualMachineToolsRunningStatus(g.ToolsRunningStatus) {
	case types.VirtualMachineToolsRunningStatusGuestToolsRunning,
		types.VirtualMachineToolsRunningStatusGuestToolsExecutingScripts:
		return hypervisor.ToolsRunning
	}
	if g.ToolsStatus == types.VirtualMachineToolsStatusToolsNotInstalled {
		return hypervisor.ToolsNotInstalled
	}
	return hypervisor.ToolsNotRunning
}
