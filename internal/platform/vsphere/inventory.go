package vsphere

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
)

// vimClient returns the SOAP client, logging in on first use. The session is
// released by Logout.
func (c *Client) vimClient(ctx context.Context) (*vim25.Client, error) {
	c.vimMu.Lock()
	defer c.vimMu.Unlock()

	if c.vim != nil {
		return c.vim, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Connect)
	defer cancel()

	start := time.Now()
	vc, err := vim25.NewClient(ctx, soap.NewClient(c.soapURL, c.record.InsecureTLS))
	if err != nil {
		c.metrics.ObserveBackendCall(backend, "soap login", start, err)
		return nil, apierr.Wrap(apierr.KindUnreachable, "vsphere.soap", err)
	}

	mgr := session.NewManager(vc)
	creds := c.record.Credentials
	err = mgr.Login(ctx, url.UserPassword(creds.Username, creds.Secret))
	c.metrics.ObserveBackendCall(backend, "soap login", start, err)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAuth, "vsphere.soap", err)
	}

	c.vim = vc
	c.logout = mgr.Logout
	return vc, nil
}

// retrieve loads every managed object of kind into dst through a container
// view rooted at the inventory root.
func (c *Client) retrieve(ctx context.Context, kind string, props []string, dst any) (err error) {
	vc, err := c.vimClient(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { c.metrics.ObserveBackendCall(backend, "soap retrieve "+kind, start, err) }()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Read)
	defer cancel()

	v, err := view.NewManager(vc).CreateContainerView(ctx, vc.ServiceContent.RootFolder, []string{kind}, true)
	if err != nil {
		return apierr.Wrap(apierr.KindRejected, "vsphere.retrieve", err)
	}
	defer func() { _ = v.Destroy(ctx) }()

	if err := v.Retrieve(ctx, []string{kind}, props, dst); err != nil {
		return apierr.Wrap(apierr.KindRejected, "vsphere.retrieve", fmt.Errorf("%s: %w", kind, err))
	}
	return nil
}

func (c *Client) datastores(ctx context.Context) (map[string]types.DatastoreSummary, error) {
	var dss []mo.Datastore
	if err := c.retrieve(ctx, "Datastore", []string{"summary"}, &dss); err != nil {
		return nil, err
	}
	out := make(map[string]types.DatastoreSummary, len(dss))
	for _, ds := range dss {
		out[ds.Self.Value] = ds.Summary
	}
	return out, nil
}

func (c *Client) hostNames(ctx context.Context) (map[string]string, error) {
	var hosts []mo.HostSystem
	if err := c.retrieve(ctx, "HostSystem", []string{"name"}, &hosts); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(hosts))
	for _, h := range hosts {
		out[h.Self.Value] = h.Name
	}
	return out, nil
}

// ListNodes reports every ESXi host sorted by name. Disk capacity is the sum
// of the accessible datastores mounted on the host.
func (c *Client) ListNodes(ctx context.Context) ([]hypervisor.Node, error) {
	var hosts []mo.HostSystem
	if err := c.retrieve(ctx, "HostSystem", []string{"name", "summary", "datastore"}, &hosts); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	dss, err := c.datastores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datastores: %w", err)
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })

	nodes := make([]hypervisor.Node, 0, len(hosts))
	for _, h := range hosts {
		nodes = append(nodes, hostNode(h, dss))
	}
	return nodes, nil
}

func hostNode(h mo.HostSystem, dss map[string]types.DatastoreSummary) hypervisor.Node {
	n := hypervisor.Node{Name: h.Name}

	if rt := h.Summary.Runtime; rt != nil {
		n.Online = rt.ConnectionState == types.HostSystemConnectionStateConnected
	}

	if hw := h.Summary.Hardware; hw != nil {
		n.Cores = int(hw.NumCpuCores)
		totalMHz := float64(hw.CpuMhz) * float64(hw.NumCpuCores)
		if totalMHz > 0 {
			n.CPUUsage = min(max(float64(h.Summary.QuickStats.OverallCpuUsage)/totalMHz, 0), 1)
		}
		n.MemoryTotal = uint64(max(hw.MemorySize, 0))
		used := uint64(max(h.Summary.QuickStats.OverallMemoryUsage, 0)) << 20
		if n.MemoryTotal > used {
			n.MemoryFree = n.MemoryTotal - used
		}
	}

	for _, ref := range h.Datastore {
		ds, ok := dss[ref.Value]
		if !ok || !ds.Accessible {
			continue
		}
		n.DiskTotal += uint64(max(ds.Capacity, 0))
		n.DiskFree += uint64(max(ds.FreeSpace, 0))
	}
	return n
}

func (c *Client) soapVMs(ctx context.Context) ([]hypervisor.VM, error) {
	var vms []mo.VirtualMachine
	if err := c.retrieve(ctx, "VirtualMachine", []string{"name", "summary"}, &vms); err != nil {
		return nil, fmt.Errorf("list vms: %w", err)
	}
	hosts, err := c.hostNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	sort.Slice(vms, func(i, j int) bool { return vms[i].Self.Value < vms[j].Self.Value })

	out := make([]hypervisor.VM, 0, len(vms))
	for _, vm := range vms {
		v := hypervisor.VM{
			NativeID: vm.Self.Value,
			Name:     vm.Name,
			Status:   soapPowerStatus(vm.Summary.Runtime.PowerState),
			Template: vm.Summary.Config.Template,
		}
		if ref := vm.Summary.Runtime.Host; ref != nil {
			v.Node = hosts[ref.Value]
		}
		out = append(out, v)
	}
	return out, nil
}

func soapPowerStatus(s types.VirtualMachinePowerState) string {
	switch s {
	case types.VirtualMachinePowerStatePoweredOn:
		return "running"
	case types.VirtualMachinePowerStatePoweredOff:
		return "stopped"
	case types.VirtualMachinePowerStateSuspended:
		return "suspended"
	default:
		return string(s)
	}
}

// ListTemplates returns VMs flagged as templates followed by ISO images
// found on accessible datastores.
func (c *Client) ListTemplates(ctx context.Context) ([]hypervisor.Template, error) {
	var vms []mo.VirtualMachine
	if err := c.retrieve(ctx, "VirtualMachine", []string{"name", "config", "datastore", "summary"}, &vms); err != nil {
		return nil, fmt.Errorf("list vms: %w", err)
	}
	dss, err := c.datastores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datastores: %w", err)
	}
	hosts, err := c.hostNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	sort.Slice(vms, func(i, j int) bool { return vms[i].Name < vms[j].Name })

	var templates []hypervisor.Template
	for _, vm := range vms {
		if vm.Config == nil || !vm.Config.Template {
			continue
		}
		t := hypervisor.Template{
			Kind:      hypervisor.TemplateVM,
			Reference: vm.Self.Value,
			Name:      vm.Config.Name,
			GuestOS:   vm.Config.GuestFullName,
			DiskBytes: diskCapacity(vm.Config.Hardware.Device),
		}
		if len(vm.Datastore) > 0 {
			t.Datastore = dss[vm.Datastore[0].Value].Name
		}
		if ref := vm.Summary.Runtime.Host; ref != nil {
			t.Node = hosts[ref.Value]
		}
		templates = append(templates, t)
	}

	isos, err := c.datastoreISOs(ctx, dss)
	if err != nil {
		c.log.Error(err, "skipping ISO listing")
	}
	return append(templates, isos...), nil
}

func diskCapacity(devices []types.BaseVirtualDevice) uint64 {
	var total int64
	for _, dev := range devices {
		if disk, ok := dev.(*types.VirtualDisk); ok {
			total += disk.CapacityInBytes
		}
	}
	return uint64(max(total, 0))
}

// datastoreISOs searches every accessible datastore for *.iso files.
func (c *Client) datastoreISOs(ctx context.Context, dss map[string]types.DatastoreSummary) ([]hypervisor.Template, error) {
	vc, err := c.vimClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Read)
	defer cancel()

	refs := make([]string, 0, len(dss))
	for ref, ds := range dss {
		if ds.Accessible {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)

	var isos []hypervisor.Template
	for _, ref := range refs {
		name := dss[ref].Name
		ds := object.NewDatastore(vc, types.ManagedObjectReference{Type: "Datastore", Value: ref})
		browser, err := ds.Browser(ctx)
		if err != nil {
			return isos, fmt.Errorf("datastore %s browser: %w", name, err)
		}
		task, err := browser.SearchDatastoreSubFolders(ctx, "["+name+"]", &types.HostDatastoreBrowserSearchSpec{
			MatchPattern: []string{"*.iso"},
			Details:      &types.FileQueryFlags{FileSize: true, FileType: true},
		})
		if err != nil {
			return isos, fmt.Errorf("search datastore %s: %w", name, err)
		}
		info, err := task.WaitForResult(ctx)
		if err != nil {
			return isos, fmt.Errorf("search datastore %s: %w", name, err)
		}
		results, ok := info.Result.(types.ArrayOfHostDatastoreBrowserSearchResults)
		if !ok {
			continue
		}
		for _, res := range results.HostDatastoreBrowserSearchResults {
			for _, f := range res.File {
				fi := f.GetFileInfo()
				isos = append(isos, hypervisor.Template{
					Kind:      hypervisor.TemplateISO,
					Reference: joinDatastorePath(res.FolderPath, fi.Path),
					Name:      fi.Path,
					DiskBytes: uint64(max(fi.FileSize, 0)),
					Datastore: name,
				})
			}
		}
	}
	return isos, nil
}

// joinDatastorePath joins "[ds] folder" and "file.iso".
func joinDatastorePath(folder, file string) string {
	switch {
	case strings.HasSuffix(folder, "]"):
		return folder + " " + file
	case strings.HasSuffix(folder, "/"):
		return folder + file
	default:
		return folder + "/" + file
	}
}

func (c *Client) soapPower(ctx context.Context, vmID string, action hypervisor.Action) (hypervisor.TaskHandle, error) {
	vc, err := c.vimClient(ctx)
	if err != nil {
		return "", err
	}

	op := "soap power " + string(action)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Mutate)
	defer cancel()

	vm := object.NewVirtualMachine(vc, types.ManagedObjectReference{Type: "VirtualMachine", Value: vmID})

	var task *object.Task
	switch action {
	case hypervisor.ActionStart, hypervisor.ActionResume:
		task, err = vm.PowerOn(ctx)
	case hypervisor.ActionStop:
		err = vm.ShutdownGuest(ctx)
	case hypervisor.ActionRestart:
		task, err = vm.Reset(ctx)
	case hypervisor.ActionSuspend:
		task, err = vm.Suspend(ctx)
	case hypervisor.ActionShutdown:
		task, err = vm.PowerOff(ctx)
	default:
		return "", apierr.Validation("vsphere.PowerAction", "unsupported action %q", action)
	}
	c.metrics.ObserveBackendCall(backend, op, start, err)
	if err != nil {
		return "", apierr.Wrap(apierr.KindRejected, "vsphere.PowerAction", fmt.Errorf("%s vm %s: %w", action, vmID, err))
	}
	if task == nil {
		return "", nil
	}
	return hypervisor.TaskHandle(task.Reference().Value), nil
}
