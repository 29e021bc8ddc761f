package proxmox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/util/async"
)

// Defaults for ISO-booted VMs.
const (
	DefaultSCSIController = "virtio-scsi-pci"
	DefaultOSType         = "l26"
)

type clusterResource struct {
	VMID     int    `json:"vmid"`
	Name     string `json:"name"`
	Node     string `json:"node"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Template int    `json:"template"`
	MaxDisk  uint64 `json:"maxdisk"`
}

type nodeListEntry struct {
	Node   string `json:"node"`
	Status string `json:"status"`
}

type nodeStatus struct {
	CPU     float64 `json:"cpu"`
	CPUInfo struct {
		CPUs int `json:"cpus"`
	} `json:"cpuinfo"`
	Memory struct {
		Total uint64 `json:"total"`
		Free  uint64 `json:"free"`
		Used  uint64 `json:"used"`
	} `json:"memory"`
	RootFS struct {
		Total uint64 `json:"total"`
		Used  uint64 `json:"used"`
	} `json:"rootfs"`
}

type storageEntry struct {
	Storage string `json:"storage"`
	Content string `json:"content"`
	Active  int    `json:"active"`
	Enabled *int   `json:"enabled"`
}

type contentEntry struct {
	VolID  string `json:"volid"`
	Format string `json:"format"`
	Size   uint64 `json:"size"`
}

// ListVMs returns every qemu VM of the cluster, templates included.
func (c *Client) ListVMs(ctx context.Context) ([]hypervisor.VM, error) {
	resources, err := c.clusterVMs(ctx)
	if err != nil {
		return nil, err
	}

	vms := make([]hypervisor.VM, 0, len(resources))
	for _, r := range resources {
		vms = append(vms, hypervisor.VM{
			NativeID: strconv.Itoa(r.VMID),
			Name:     r.Name,
			Node:     r.Node,
			Status:   r.Status,
			Template: r.Template == 1,
		})
	}
	return vms, nil
}

func (c *Client) clusterVMs(ctx context.Context) ([]clusterResource, error) {
	var resources []clusterResource
	if err := c.Get(ctx, "/cluster/resources?type=vm", &resources); err != nil {
		return nil, fmt.Errorf("list cluster resources: %w", err)
	}
	out := resources[:0]
	for _, r := range resources {
		// type=vm also returns LXC containers.
		if r.Type == "" || r.Type == "qemu" {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListNodes returns every node in listing order. Status of online nodes is
// fetched concurrently; offline nodes report no capacity.
func (c *Client) ListNodes(ctx context.Context) ([]hypervisor.Node, error) {
	entries, err := c.nodeList(ctx)
	if err != nil {
		return nil, err
	}

	tasks := make([]async.Func[*nodeStatus], len(entries))
	for i, e := range entries {
		tasks[i] = async.Func[*nodeStatus]{
			Name: e.Node,
			Func: func(ctx context.Context) (*nodeStatus, error) {
				if e.Status != "online" {
					return nil, nil
				}
				var st nodeStatus
				if err := c.Get(ctx, "/nodes/"+url.PathEscape(e.Node)+"/status", &st); err != nil {
					return nil, err
				}
				return &st, nil
			},
		}
	}

	nodes := make([]hypervisor.Node, 0, len(entries))
	for _, res := range async.Collect(ctx, tasks) {
		if res.Err != nil {
			return nil, fmt.Errorf("node %s status: %w", res.Name, res.Err)
		}
		n := hypervisor.Node{Name: res.Name}
		if st := res.Value; st != nil {
			n.Online = true
			n.Cores = st.CPUInfo.CPUs
			n.CPUUsage = st.CPU
			n.MemoryTotal = st.Memory.Total
			n.MemoryFree = st.Memory.Free
			n.DiskTotal = st.RootFS.Total
			if st.RootFS.Total > st.RootFS.Used {
				n.DiskFree = st.RootFS.Total - st.RootFS.Used
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *Client) nodeList(ctx context.Context) ([]nodeListEntry, error) {
	var entries []nodeListEntry
	if err := c.Get(ctx, "/nodes", &entries); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return entries, nil
}

// ListTemplates returns VM templates followed by ISO volumes. Shared
// storages are reported once.
func (c *Client) ListTemplates(ctx context.Context) ([]hypervisor.Template, error) {
	resources, err := c.clusterVMs(ctx)
	if err != nil {
		return nil, err
	}

	var templates []hypervisor.Template
	for _, r := range resources {
		if r.Template != 1 {
			continue
		}
		templates = append(templates, hypervisor.Template{
			Kind:      hypervisor.TemplateVM,
			Reference: strconv.Itoa(r.VMID),
			Name:      r.Name,
			Node:      r.Node,
			DiskBytes: r.MaxDisk,
		})
	}

	entries, err := c.nodeList(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Status != "online" {
			continue
		}
		isos, err := c.nodeISOs(ctx, e.Node)
		if err != nil {
			c.log.Error(err, "skipping ISO listing", "node", e.Node)
			continue
		}
		for _, iso := range isos {
			if seen[iso.Reference] {
				continue
			}
			seen[iso.Reference] = true
			templates = append(templates, iso)
		}
	}
	return templates, nil
}

func (c *Client) nodeISOs(ctx context.Context, node string) ([]hypervisor.Template, error) {
	base := "/nodes/" + url.PathEscape(node) + "/storage"

	var storages []storageEntry
	if err := c.Get(ctx, base+"?content=iso", &storages); err != nil {
		return nil, fmt.Errorf("list storages: %w", err)
	}

	var isos []hypervisor.Template
	for _, s := range storages {
		if s.Active == 0 || (s.Enabled != nil && *s.Enabled == 0) || !hasContent(s.Content, "iso") {
			continue
		}
		var content []contentEntry
		path := base + "/" + url.PathEscape(s.Storage) + "/content?content=iso"
		if err := c.Get(ctx, path, &content); err != nil {
			return nil, fmt.Errorf("list content of %s: %w", s.Storage, err)
		}
		for _, v := range content {
			isos = append(isos, hypervisor.Template{
				Kind:      hypervisor.TemplateISO,
				Reference: v.VolID,
				Name:      isoName(v.VolID),
				Node:      node,
				DiskBytes: v.Size,
				Datastore: s.Storage,
			})
		}
	}
	return isos, nil
}

// NextID allocates the next free cluster-wide VM id.
func (c *Client) NextID(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/cluster/nextid", &raw); err != nil {
		return "", fmt.Errorf("allocate vm id: %w", err)
	}
	// The API returns the id as a string; older versions send a number.
	id := strings.Trim(string(raw), `"`)
	if _, err := strconv.Atoi(id); err != nil {
		return "", apierr.New(apierr.KindRejected, "proxmox.NextID", "unexpected id %q", id)
	}
	return id, nil
}

// CreateFromISO creates a VM with a fresh disk and the ISO mounted as the
// first boot device.
func (c *Client) CreateFromISO(ctx context.Context, req hypervisor.ISOCreate) (hypervisor.Created, error) {
	form := url.Values{}
	form.Set("vmid", req.VMID)
	form.Set("name", req.Name)
	form.Set("cores", strconv.Itoa(req.Cores))
	form.Set("memory", strconv.Itoa(req.MemoryMB))
	form.Set("scsihw", DefaultSCSIController)
	form.Set("scsi0", fmt.Sprintf("%s:%d", req.Storage, req.DiskGB))
	form.Set("ide2", req.ISO+",media=cdrom")
	form.Set("boot", "order=ide2;scsi0")
	form.Set("net0", "virtio,bridge="+req.Bridge)
	form.Set("ostype", DefaultOSType)
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	if len(req.Tags) > 0 {
		form.Set("tags", strings.Join(req.Tags, ";"))
	}

	var upid string
	if err := c.Post(ctx, "/nodes/"+url.PathEscape(req.Node)+"/qemu", form, &upid); err != nil {
		return hypervisor.Created{}, fmt.Errorf("create vm %s: %w", req.VMID, err)
	}
	return hypervisor.Created{NativeID: req.VMID, Task: hypervisor.TaskHandle(upid)}, nil
}

// CloneTemplate full-clones a template and then overrides its sizing.
// A failed override leaves the clone in place and is reported as a warning.
func (c *Client) CloneTemplate(ctx context.Context, req hypervisor.CloneCreate) (hypervisor.Created, error) {
	nodePath := "/nodes/" + url.PathEscape(req.Node) + "/qemu/"

	form := url.Values{}
	form.Set("newid", req.VMID)
	form.Set("name", req.Name)
	form.Set("full", "1")
	if req.Storage != "" {
		form.Set("storage", req.Storage)
	}
	if req.Description != "" {
		form.Set("description", req.Description)
	}

	var upid string
	if err := c.Post(ctx, nodePath+url.PathEscape(req.TemplateID)+"/clone", form, &upid); err != nil {
		return hypervisor.Created{}, fmt.Errorf("clone template %s: %w", req.TemplateID, err)
	}
	created := hypervisor.Created{NativeID: req.VMID, Task: hypervisor.TaskHandle(upid)}

	overrides := url.Values{}
	overrides.Set("cores", strconv.Itoa(req.Cores))
	overrides.Set("memory", strconv.Itoa(req.MemoryMB))
	if req.Description != "" {
		overrides.Set("description", req.Description)
	}
	if len(req.Tags) > 0 {
		overrides.Set("tags", strings.Join(req.Tags, ";"))
	}
	if err := c.Post(ctx, nodePath+url.PathEscape(req.VMID)+"/config", overrides, nil); err != nil {
		c.log.Error(err, "post-clone config override failed", "vmid", req.VMID)
		created.Warnings = append(created.Warnings, fmt.Sprintf("config override failed: %v", err))
	}
	return created, nil
}

var powerVerbs = map[hypervisor.Action]string{
	hypervisor.ActionStart:    "start",
	hypervisor.ActionStop:     "shutdown",
	hypervisor.ActionRestart:  "reboot",
	hypervisor.ActionSuspend:  "suspend",
	hypervisor.ActionResume:   "resume",
	hypervisor.ActionShutdown: "stop",
}

// PowerVerb returns the Proxmox status verb for a normalized action.
func PowerVerb(action hypervisor.Action) (string, bool) {
	v, ok := powerVerbs[action]
	return v, ok
}

// PowerAction issues POST /nodes/{node}/qemu/{id}/status/{verb}.
func (c *Client) PowerAction(ctx context.Context, node, vmID string, action hypervisor.Action) (hypervisor.TaskHandle, error) {
	verb, ok := PowerVerb(action)
	if !ok {
		return "", apierr.Validation("proxmox.PowerAction", "unsupported action %q", action)
	}

	path := fmt.Sprintf("/nodes/%s/qemu/%s/status/%s", url.PathEscape(node), url.PathEscape(vmID), verb)
	var upid string
	if err := c.Post(ctx, path, nil, &upid); err != nil {
		return "", fmt.Errorf("%s vm %s: %w", verb, vmID, err)
	}
	return hypervisor.TaskHandle(upid), nil
}

func hasContent(list, kind string) bool {
	for _, c := range strings.Split(list, ",") {
		if strings.TrimSpace(c) == kind {
			return true
		}
	}
	return false
}

// isoName turns "local:iso/debian-12.iso" into "debian-12.iso".
func isoName(volID string) string {
	if i := strings.LastIndexByte(volID, '/'); i >= 0 {
		return volID[i+1:]
	}
	if i := strings.IndexByte(volID, ':'); i >= 0 {
		return volID[i+1:]
	}
	return volID
}
