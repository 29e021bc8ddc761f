package vsphere

import (
	"context"
	"fmt"
	"net/url"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/util/async"
)

// restVM is an entry of GET /rest/vcenter/vm.
type restVM struct {
	VM         string `json:"vm"`
	Name       string `json:"name"`
	PowerState string `json:"power_state"`
}

type restHost struct {
	Host            string `json:"host"`
	Name            string `json:"name"`
	ConnectionState string `json:"connection_state"`
}

type restDatastore struct {
	Datastore string `json:"datastore"`
	Name      string `json:"name"`
	FreeSpace int64  `json:"free_space"`
}

type restFolder struct {
	Folder string `json:"folder"`
	Name   string `json:"name"`
}

// usesREST reports whether VM operations go through the vCenter REST API.
// Standalone hosts and fallback sessions use SOAP.
func (c *Client) usesREST() bool {
	return c.subtype == hypervisor.SubtypeVCenter && c.session != nil && c.session.Strategy == StrategyREST
}

// ListVMs lists every VM. On vCenter the listing is built per host so each
// VM carries its node.
func (c *Client) ListVMs(ctx context.Context) ([]hypervisor.VM, error) {
	if !c.usesREST() {
		return c.soapVMs(ctx)
	}

	var hosts []restHost
	if err := c.Get(ctx, "/rest/vcenter/host", &hosts); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	tasks := make([]async.Func[[]restVM], len(hosts))
	for i, h := range hosts {
		tasks[i] = async.Func[[]restVM]{
			Name: h.Name,
			Func: func(ctx context.Context) ([]restVM, error) {
				var vms []restVM
				err := c.Get(ctx, "/rest/vcenter/vm?filter.hosts="+url.QueryEscape(h.Host), &vms)
				return vms, err
			},
		}
	}

	var out []hypervisor.VM
	for _, res := range async.Collect(ctx, tasks) {
		if res.Err != nil {
			return nil, fmt.Errorf("list vms on %s: %w", res.Name, res.Err)
		}
		for _, vm := range res.Value {
			out = append(out, hypervisor.VM{
				NativeID: vm.VM,
				Name:     vm.Name,
				Node:     res.Name,
				Status:   restPowerStatus(vm.PowerState),
			})
		}
	}
	return out, nil
}

func restPowerStatus(s string) string {
	switch s {
	case "POWERED_ON":
		return "running"
	case "POWERED_OFF":
		return "stopped"
	case "SUSPENDED":
		return "suspended"
	default:
		return s
	}
}

// NextID returns "": vSphere assigns identifiers at creation.
func (c *Client) NextID(context.Context) (string, error) {
	return "", nil
}

type placement struct {
	Folder    string `json:"folder"`
	Host      string `json:"host,omitempty"`
	Datastore string `json:"datastore,omitempty"`
}

func (c *Client) placement(ctx context.Context, node, storage string) (placement, error) {
	var p placement

	var folders []restFolder
	if err := c.Get(ctx, "/rest/vcenter/folder?filter.type=VIRTUAL_MACHINE", &folders); err != nil {
		return p, fmt.Errorf("list vm folders: %w", err)
	}
	if len(folders) == 0 {
		return p, apierr.New(apierr.KindRejected, "vsphere.placement", "no virtual machine folder available")
	}
	p.Folder = folders[0].Folder

	if node != "" {
		var hosts []restHost
		if err := c.Get(ctx, "/rest/vcenter/host?filter.names="+url.QueryEscape(node), &hosts); err != nil {
			return p, fmt.Errorf("resolve host %s: %w", node, err)
		}
		if len(hosts) == 0 {
			return p, apierr.NotFound("vsphere.placement", "host %q not found", node)
		}
		p.Host = hosts[0].Host
	}

	var dss []restDatastore
	path := "/rest/vcenter/datastore"
	if storage != "" {
		path += "?filter.names=" + url.QueryEscape(storage)
	}
	if err := c.Get(ctx, path, &dss); err != nil {
		return p, fmt.Errorf("list datastores: %w", err)
	}
	if len(dss) == 0 && storage != "" {
		// Configured pool names are often Proxmox storages; fall back to
		// the roomiest datastore.
		if err := c.Get(ctx, "/rest/vcenter/datastore", &dss); err != nil {
			return p, fmt.Errorf("list datastores: %w", err)
		}
	}
	var best *restDatastore
	for i := range dss {
		if best == nil || dss[i].FreeSpace > best.FreeSpace {
			best = &dss[i]
		}
	}
	if best != nil {
		p.Datastore = best.Datastore
	}
	return p, nil
}

func (c *Client) requireREST(op string) error {
	if c.usesREST() {
		return nil
	}
	return apierr.New(apierr.KindRejected, op,
		"VM creation needs a vCenter REST session (endpoint is %s via %s)", c.subtype, c.sessionStrategy())
}

func (c *Client) sessionStrategy() StrategyName {
	if c.session == nil {
		return ""
	}
	return c.session.Strategy
}

// CreateFromISO creates a VM with a new disk and the ISO as first boot
// device. The returned task handle is the new VM id; REST creation is
// synchronous.
func (c *Client) CreateFromISO(ctx context.Context, req hypervisor.ISOCreate) (hypervisor.Created, error) {
	if err := c.requireREST("vsphere.CreateFromISO"); err != nil {
		return hypervisor.Created{}, err
	}

	p, err := c.placement(ctx, req.Node, req.Storage)
	if err != nil {
		return hypervisor.Created{}, err
	}

	spec := map[string]any{
		"name":      req.Name,
		"guest_OS":  "OTHER_LINUX_64",
		"placement": p,
		"cpu":       map[string]any{"count": req.Cores},
		"memory":    map[string]any{"size_MiB": req.MemoryMB},
		"disks": []any{
			map[string]any{"new_vmdk": map[string]any{"capacity": int64(req.DiskGB) << 30}},
		},
		"cdroms": []any{
			map[string]any{
				"backing":         map[string]any{"type": "ISO_FILE", "iso_file": req.ISO},
				"start_connected": true,
			},
		},
		"boot_devices": []any{
			map[string]any{"type": "CDROM"},
			map[string]any{"type": "DISK"},
		},
	}

	var id string
	if err := c.Post(ctx, "/rest/vcenter/vm", map[string]any{"spec": spec}, &id); err != nil {
		return hypervisor.Created{}, fmt.Errorf("create vm %s: %w", req.Name, err)
	}
	return c.created(id, req.Description, req.Tags), nil
}

// CloneTemplate clones a template with cpu and memory customization.
func (c *Client) CloneTemplate(ctx context.Context, req hypervisor.CloneCreate) (hypervisor.Created, error) {
	if err := c.requireREST("vsphere.CloneTemplate"); err != nil {
		return hypervisor.Created{}, err
	}

	p, err := c.placement(ctx, req.Node, req.Storage)
	if err != nil {
		return hypervisor.Created{}, err
	}

	spec := map[string]any{
		"source":    req.TemplateID,
		"name":      req.Name,
		"placement": p,
		"power_on":  false,
		"hardware_customization": map[string]any{
			"cpu_update":    map[string]any{"num_cpus": req.Cores},
			"memory_update": map[string]any{"memory": req.MemoryMB},
		},
	}

	var id string
	if err := c.Post(ctx, "/rest/vcenter/vm?action=clone", map[string]any{"spec": spec}, &id); err != nil {
		return hypervisor.Created{}, fmt.Errorf("clone template %s: %w", req.TemplateID, err)
	}
	return c.created(id, req.Description, req.Tags), nil
}

func (c *Client) created(id, description string, tags []string) hypervisor.Created {
	out := hypervisor.Created{NativeID: id, Task: hypervisor.TaskHandle(id)}
	if description != "" || len(tags) > 0 {
		out.Warnings = append(out.Warnings, "description and tags are not applied on vSphere")
	}
	return out
}

var restPowerPaths = map[hypervisor.Action]string{
	hypervisor.ActionStart:    "/power/start",
	hypervisor.ActionStop:     "/guest/power?action=shutdown",
	hypervisor.ActionRestart:  "/power/reset",
	hypervisor.ActionSuspend:  "/power/suspend",
	hypervisor.ActionResume:   "/power/start",
	hypervisor.ActionShutdown: "/power/stop",
}

// PowerAction maps a normalized action to REST power calls on vCenter and to
// SOAP calls otherwise. node is unused: vSphere ids are global.
func (c *Client) PowerAction(ctx context.Context, _, vmID string, action hypervisor.Action) (hypervisor.TaskHandle, error) {
	if !c.usesREST() {
		return c.soapPower(ctx, vmID, action)
	}

	suffix, ok := restPowerPaths[action]
	if !ok {
		return "", apierr.Validation("vsphere.PowerAction", "unsupported action %q", action)
	}
	if err := c.Post(ctx, "/rest/vcenter/vm/"+url.PathEscape(vmID)+suffix, nil, nil); err != nil {
		return "", fmt.Errorf("%s vm %s: %w", action, vmID, err)
	}
	return "", nil
}
