// Package hypervisor defines the backend-neutral model shared by every
// component of the control plane: hypervisor records, VM identities, node
// capacity inputs and the Client contract implemented by each backend.
package hypervisor

import (
	"fmt"
	"time"
)

// Type identifies a virtualization backend family.
type Type string

const (
	// TypeProxmox is a Proxmox VE cluster.
	TypeProxmox Type = "proxmox"
	// TypeVSphere is a vCenter or standalone ESXi endpoint.
	TypeVSphere Type = "vsphere"
)

// Subtype distinguishes a full vCenter from a standalone ESXi host.
type Subtype string

const (
	SubtypeVCenter Subtype = "vcenter"
	SubtypeESXi    Subtype = "esxi"
)

// Status is the outcome of the last connection check, not a heartbeat.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// CredentialKind selects the authentication material of a record.
type CredentialKind string

const (
	// CredentialToken is a Proxmox API token (username!tokenName = secret).
	CredentialToken CredentialKind = "token"
	// CredentialPassword is a username/password pair.
	CredentialPassword CredentialKind = "password"
)

// Credentials holds either token or password authentication material.
type Credentials struct {
	Kind      CredentialKind `json:"kind" yaml:"kind"`
	Username  string         `json:"username" yaml:"username"`
	TokenName string         `json:"tokenName,omitempty" yaml:"tokenName,omitempty"`
	Secret    string         `json:"-" yaml:"secret"`
}

// TokenID returns the Proxmox token identifier "username!tokenName".
func (c Credentials) TokenID() string {
	return c.Username + "!" + c.TokenName
}

// Record is a persisted hypervisor connection target.
type Record struct {
	ID          string
	Name        string
	Type        Type
	Subtype     *Subtype
	Host        string
	Credentials Credentials
	// InsecureTLS disables certificate verification for this record's
	// transport only.
	InsecureTLS bool
	Status      Status
	LastSync    *time.Time
}

// SubtypeOrEmpty returns the subtype as a string, or "" when unknown.
func (r *Record) SubtypeOrEmpty() string {
	if r.Subtype == nil {
		return ""
	}
	return string(*r.Subtype)
}

// String implements fmt.Stringer for log output.
func (r *Record) String() string {
	return fmt.Sprintf("%s(%s %s)", r.ID, r.Type, r.Host)
}

// Identity locates a VM on a backend. It is recomputed on every lookup.
type Identity struct {
	NativeID     string `json:"nativeId"`
	HypervisorID string `json:"hypervisorId"`
	Node         string `json:"node"`
}

// VM is a backend VM as reported by a cluster-wide listing.
type VM struct {
	NativeID string `json:"nativeId"`
	Name     string `json:"name"`
	Node     string `json:"node"`
	Status   string `json:"status"`
	Template bool   `json:"template"`
}

// Guest agent states reported in VMDetails.ToolsStatus.
const (
	ToolsRunning      = "running"
	ToolsNotRunning   = "not running"
	ToolsNotInstalled = "not installed"
	ToolsDisabled     = "disabled"
)

// VMDetails is the configuration and current usage of one VM.
type VMDetails struct {
	Identity
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	// CPUs is the number of configured vCPUs.
	CPUs        int      `json:"cpus"`
	MemoryBytes uint64   `json:"memoryBytes"`
	DiskBytes   uint64   `json:"diskBytes"`
	Tags        []string `json:"tags,omitempty"`
	GuestOS     string   `json:"guestOs,omitempty"`
	IPAddresses []string `json:"ipAddresses,omitempty"`
	ToolsStatus string   `json:"toolsStatus,omitempty"`
	// CPUUsage is the busy fraction of the configured vCPUs in [0,1].
	CPUUsage        float64 `json:"cpuUsage"`
	MemoryUsedBytes uint64  `json:"memoryUsedBytes"`
	UptimeSeconds   int64   `json:"uptimeSeconds"`
}

// Node carries the raw capacity inputs of one physical host.
type Node struct {
	Name string `json:"name"`
	// Cores is the number of physical cores (Proxmox cpuinfo.cpus).
	Cores int `json:"cores"`
	// CPUUsage is the busy fraction in [0,1].
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryTotal uint64  `json:"memoryTotal"`
	MemoryFree  uint64  `json:"memoryFree"`
	DiskTotal   uint64  `json:"diskTotal"`
	DiskFree    uint64  `json:"diskFree"`
	Online      bool    `json:"online"`
}

// TemplateKind distinguishes clonable VM templates from bootable ISO images.
type TemplateKind string

const (
	TemplateVM  TemplateKind = "vm"
	TemplateISO TemplateKind = "iso"
)

// Template is a creation source offered by a backend.
type Template struct {
	Kind      TemplateKind `json:"kind"`
	Reference string       `json:"reference"`
	Name      string       `json:"name"`
	Node      string       `json:"node,omitempty"`
	GuestOS   string       `json:"guestOs,omitempty"`
	DiskBytes uint64       `json:"diskBytes,omitempty"`
	Datastore string       `json:"datastore,omitempty"`
}

// TaskHandle is an opaque backend identifier for an asynchronous operation.
// It does not guarantee completion.
type TaskHandle string
