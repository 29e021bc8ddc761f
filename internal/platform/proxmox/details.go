package proxmox

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/imamik/hvplane/internal/hypervisor"
	"github.com/imamik/hvplane/internal/util/netutil"
)

// vmStatus is GET /nodes/{node}/qemu/{id}/status/current.
type vmStatus struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	QMPStatus string  `json:"qmpstatus"`
	CPUs      int     `json:"cpus"`
	CPU       float64 `json:"cpu"`
	MaxMem    uint64  `json:"maxmem"`
	Mem       uint64  `json:"mem"`
	MaxDisk   uint64  `json:"maxdisk"`
	Uptime    int64   `json:"uptime"`
	Agent     int     `json:"agent"`
}

// vmConfig is the subset of GET /nodes/{node}/qemu/{id}/config we report.
type vmConfig struct {
	OSType      string `json:"ostype"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

type agentInterfaces struct {
	Result []struct {
		Name        string `json:"name"`
		IPAddresses []struct {
			Address string `json:"ip-address"`
		} `json:"ip-addresses"`
	} `json:"result"`
}

// VMDetails combines status/current and config. Guest addresses come from
// the QEMU guest agent when it is enabled; an agent that does not answer is
// reported as not running.
func (c *Client) VMDetails(ctx context.Context, node, vmID string) (*hypervisor.VMDetails, error) {
	base := fmt.Sprintf("/nodes/%s/qemu/%s", url.PathEscape(node), url.PathEscape(vmID))

	var st vmStatus
	if err := c.Get(ctx, base+"/status/current", &st); err != nil {
		return nil, fmt.Errorf("vm %s status: %w", vmID, err)
	}
	var cfg vmConfig
	if err := c.Get(ctx, base+"/config", &cfg); err != nil {
		return nil, fmt.Errorf("vm %s config: %w", vmID, err)
	}

	d := &hypervisor.VMDetails{
		Identity:        hypervisor.Identity{NativeID: vmID, HypervisorID: c.record.ID, Node: node},
		Name:            st.Name,
		Status:          st.Status,
		Description:     cfg.Description,
		CPUs:            st.CPUs,
		MemoryBytes:     st.MaxMem,
		DiskBytes:       st.MaxDisk,
		Tags:            splitTags(cfg.Tags),
		GuestOS:         cfg.OSType,
		CPUUsage:        min(max(st.CPU, 0), 1),
		MemoryUsedBytes: st.Mem,
		UptimeSeconds:   st.Uptime,
		ToolsStatus:     hypervisor.ToolsDisabled,
	}
	if st.QMPStatus == "paused" || st.QMPStatus == "suspended" {
		d.Status = "suspended"
	}

	if st.Agent == 1 {
		d.ToolsStatus = hypervisor.ToolsNotRunning
		if st.Status == "running" {
			addrs, err := c.agentAddresses(ctx, base)
			if err != nil {
				c.log.V(1).Info("guest agent did not answer", "vmid", vmID, "error", err.Error())
			} else {
				d.ToolsStatus = hypervisor.ToolsRunning
				d.IPAddresses = addrs
			}
		}
	}
	return d, nil
}

func (c *Client) agentAddresses(ctx context.Context, base string) ([]string, error) {
	var ifaces agentInterfaces
	if err := c.Get(ctx, base+"/agent/network-get-interfaces", &ifaces); err != nil {
		return nil, err
	}
	var addrs []string
	for _, iface := range ifaces.Result {
		for _, a := range iface.IPAddresses {
			addrs = append(addrs, a.Address)
		}
	}
	return netutil.GuestAddresses(addrs), nil
}

// splitTags parses the ";"-separated tag list of a VM config.
func splitTags(s string) []string {
	tags := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == ' ' })
	if len(tags) == 0 {
		return nil
	}
	return tags
}
