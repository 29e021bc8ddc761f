package hypervisor

import "time"

// Plan is an administrator-defined VM size. It is used for capacity
// estimates only and never enforced.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CPU      int    `json:"cpu"`
	MemoryMB int64  `json:"memoryMB"`
	DiskGB   int64  `json:"diskGB"`
	Active   bool   `json:"active"`
}

// VM inventory states written by the control plane.
const (
	VMStatusCreating = "creating"
)

// ProvisionedVM is the local inventory row written after a backend confirmed
// a creation. It may drift from the backend; nothing reconciles it.
type ProvisionedVM struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	HypervisorID string    `json:"hypervisorId"`
	NativeID     string    `json:"nativeId"`
	Node         string    `json:"node"`
	Status       string    `json:"status"`
	CPU          int       `json:"cpu"`
	MemoryMB     int64     `json:"memoryMB"`
	DiskGB       int64     `json:"diskGB"`
	Task         string    `json:"task,omitempty"`
	TicketID     *string   `json:"ticketId,omitempty"`
	ClientID     *string   `json:"clientId,omitempty"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
