package provisioning

import "github.com/imamik/hvplane/internal/hypervisor"

// Mode is how a VM is created.
type Mode string

const (
	// ModeISO boots a fresh VM from an installation image.
	ModeISO Mode = "iso"
	// ModeClone full-clones a template.
	ModeClone Mode = "clone"
)

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	// Session results
	Hypervisor *hypervisor.Record
	Client     hypervisor.Client

	// Placement and allocation results
	Mode Mode
	Node string
	VMID string // "" when the backend assigns ids

	// Creation results
	Created   hypervisor.Created
	PowerTask hypervisor.TaskHandle
	PoweredOn bool

	// Record results
	Record   *hypervisor.ProvisionedVM
	Warnings []string
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{}
}

// warn records a non-fatal problem.
func (s *State) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}
