package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/hvplane/internal/capacity"
	"github.com/imamik/hvplane/internal/hypervisor"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	greenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	redStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	yellowStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

func writeTitle(b *strings.Builder, title string) {
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", len(title))))
	b.WriteString("\n")
}

func writeSection(b *strings.Builder, name string) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  " + name))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 60)))
	b.WriteString("\n")
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(hypervisor.StatusConnected), "running":
		return greenStyle
	case string(hypervisor.StatusError), "stopped":
		return redStyle
	default:
		return yellowStyle
	}
}

// renderHypervisors lists stored records.
func renderHypervisors(views []hypervisorView) string {
	var b strings.Builder
	writeTitle(&b, "hvplane hypervisors")

	if len(views) == 0 {
		b.WriteString(dimStyle.Render("  No hypervisors configured. Add one with 'hvplane hypervisor add'."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, v := range views {
		kind := v.Type
		if v.Subtype != "" {
			kind += "/" + v.Subtype
		}
		fmt.Fprintf(&b, "  %-20s %-16s %-28s %s\n",
			v.Name, kind, v.Host, statusStyle(v.Status).Render(v.Status))
		b.WriteString(dimStyle.Render("    " + v.ID))
		b.WriteString("\n")
	}
	return b.String()
}

// renderPlans lists plans with their dimensions.
func renderPlans(plans []hypervisor.Plan) string {
	var b strings.Builder
	writeTitle(&b, "hvplane plans")
	b.WriteString("\n")

	for _, p := range plans {
		state := greenStyle.Render("active")
		if !p.Active {
			state = dimStyle.Render("inactive")
		}
		fmt.Fprintf(&b, "  %-20s %3d vCPU  %7d MiB  %5d GiB  %s\n", p.Name, p.CPU, p.MemoryMB, p.DiskGB, state)
	}
	return b.String()
}

// renderInventory lists locally recorded VMs.
func renderInventory(vms []hypervisor.ProvisionedVM) string {
	var b strings.Builder
	writeTitle(&b, "hvplane inventory")
	b.WriteString("\n")

	for _, vm := range vms {
		fmt.Fprintf(&b, "  %-24s %-8s %-16s %s\n", vm.Name, vm.NativeID, vm.Node,
			statusStyle(vm.Status).Render(vm.Status))
		b.WriteString(dimStyle.Render(fmt.Sprintf("    %s  %s", vm.HypervisorID, vm.CreatedAt.Format("2006-01-02 15:04"))))
		b.WriteString("\n")
	}
	return b.String()
}

// renderVMDetails prints one VM's configuration and usage.
func renderVMDetails(d *hypervisor.VMDetails) string {
	var b strings.Builder
	writeTitle(&b, "hvplane vm: "+d.Name)

	writeSection(&b, "Placement")
	fmt.Fprintf(&b, "    ID:          %s\n", d.NativeID)
	fmt.Fprintf(&b, "    Hypervisor:  %s\n", d.HypervisorID)
	fmt.Fprintf(&b, "    Node:        %s\n", d.Node)
	fmt.Fprintf(&b, "    Status:      %s\n", statusStyle(d.Status).Render(d.Status))
	if d.Description != "" {
		fmt.Fprintf(&b, "    Description: %s\n", d.Description)
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(&b, "    Tags:        %s\n", strings.Join(d.Tags, ", "))
	}

	writeSection(&b, "Resources")
	fmt.Fprintf(&b, "    CPU:     %d vCPU, %.0f%% busy\n", d.CPUs, d.CPUUsage*100)
	fmt.Fprintf(&b, "    Memory:  %s of %s used\n", formatBytes(d.MemoryUsedBytes), formatBytes(d.MemoryBytes))
	fmt.Fprintf(&b, "    Disk:    %s\n", formatBytes(d.DiskBytes))
	fmt.Fprintf(&b, "    Uptime:  %s\n", time.Duration(d.UptimeSeconds)*time.Second)

	writeSection(&b, "Guest")
	guestOS := d.GuestOS
	if guestOS == "" {
		guestOS = "unknown"
	}
	fmt.Fprintf(&b, "    OS:      %s\n", guestOS)
	fmt.Fprintf(&b, "    Agent:   %s\n", agentStyle(d.ToolsStatus).Render(d.ToolsStatus))
	if len(d.IPAddresses) == 0 {
		b.WriteString(dimStyle.Render("    no guest addresses reported"))
		b.WriteString("\n")
	}
	for _, ip := range d.IPAddresses {
		fmt.Fprintf(&b, "    IP:      %s\n", ip)
	}
	return b.String()
}

func agentStyle(status string) lipgloss.Style {
	switch status {
	case hypervisor.ToolsRunning:
		return greenStyle
	case hypervisor.ToolsNotRunning:
		return yellowStyle
	default:
		return dimStyle
	}
}

// renderCapacity produces a lipgloss-styled capacity report.
func renderCapacity(r *capacity.Report) string {
	var b strings.Builder
	writeTitle(&b, "hvplane capacity: "+r.HypervisorID)

	writeSection(&b, "Nodes")
	for _, n := range r.Nodes {
		state := greenStyle.Render("online")
		if !n.Online {
			state = redStyle.Render("offline")
		}
		fmt.Fprintf(&b, "    %-18s %s  cpu %5.1f/%-3d mem %s/%s  disk %s/%s\n",
			n.Name, state, n.CPUFree, n.Cores,
			formatBytes(n.MemoryFree), formatBytes(n.MemoryTotal),
			formatBytes(n.DiskFree), formatBytes(n.DiskTotal))
	}

	writeSection(&b, "Totals")
	t := r.Totals
	fmt.Fprintf(&b, "    Nodes:   %d (%d online)\n", t.Nodes, t.OnlineNodes)
	fmt.Fprintf(&b, "    CPU:     %.1f of %d cores free\n", t.CPUFree, t.Cores)
	fmt.Fprintf(&b, "    Memory:  %s of %s free\n", formatBytes(t.MemoryFree), formatBytes(t.MemoryTotal))
	fmt.Fprintf(&b, "    Disk:    %s of %s free\n", formatBytes(t.DiskFree), formatBytes(t.DiskTotal))

	if len(r.Estimates) > 0 {
		writeSection(&b, "Plan estimates")
		for _, e := range r.Estimates {
			count := fmt.Sprintf("%d", e.Estimate)
			if e.Estimate == 0 {
				count = redStyle.Render(count)
			} else {
				count = greenStyle.Render(count)
			}
			fmt.Fprintf(&b, "    %-18s %-20s %s\n", e.Node, e.Plan, count)
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  Note: estimates are advisory and are not reserved."))
	b.WriteString("\n")
	return b.String()
}

// renderTemplates lists templates, then ISO images.
func renderTemplates(hypervisorID string, templates []hypervisor.Template) string {
	var b strings.Builder
	writeTitle(&b, "hvplane templates: "+hypervisorID)

	for _, kind := range []hypervisor.TemplateKind{hypervisor.TemplateVM, hypervisor.TemplateISO} {
		title := "VM templates"
		if kind == hypervisor.TemplateISO {
			title = "ISO images"
		}
		writeSection(&b, title)

		n := 0
		for _, t := range templates {
			if t.Kind != kind {
				continue
			}
			n++
			where := t.Node
			if t.Datastore != "" {
				where = t.Datastore
			}
			fmt.Fprintf(&b, "    %-28s %-14s %s\n", t.Name, where, dimStyle.Render(t.Reference))
		}
		if n == 0 {
			b.WriteString(dimStyle.Render("    none"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// formatBytes prints a byte count with a binary unit.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTP"[exp])
}
