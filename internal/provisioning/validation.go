package provisioning

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/imamik/hvplane/internal/apierr"
)

// ValidationError represents a spec validation error or warning.
type ValidationError struct {
	Field    string // Spec field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// dnsName matches names Proxmox accepts for VMs.
var dnsName = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*$`)

// ValidationPhase rejects invalid specs before any backend call.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	var errs []string
	for _, ve := range Validate(ctx.Spec) {
		if ve.IsError() {
			errs = append(errs, ve.Error())
			continue
		}
		LogWarning(ctx.Observer, vp.Name(), ve.Message)
	}

	if len(errs) > 0 {
		return apierr.Validation("provisioning.validate", "invalid VM spec:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Validate checks a spec and returns every error and warning.
func Validate(spec Spec) []ValidationError {
	var errs []ValidationError

	// --- Required fields ---

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:    "Name",
			Message:  "name is required",
			Severity: "error",
		})
	} else if !dnsName.MatchString(spec.Name) {
		errs = append(errs, ValidationError{
			Field:    "Name",
			Message:  fmt.Sprintf("name %q is not a valid DNS name; Proxmox will reject it", spec.Name),
			Severity: "warning",
		})
	}

	if strings.TrimSpace(spec.Hypervisor) == "" {
		errs = append(errs, ValidationError{
			Field:    "Hypervisor",
			Message:  "target hypervisor is required",
			Severity: "error",
		})
	}

	if strings.TrimSpace(spec.Template) == "" {
		errs = append(errs, ValidationError{
			Field:    "Template",
			Message:  "template or ISO reference is required",
			Severity: "error",
		})
	}

	// --- Sizing ---

	if spec.CPU <= 0 {
		errs = append(errs, ValidationError{
			Field:    "CPU",
			Message:  "cpu must be greater than 0",
			Severity: "error",
		})
	}
	if spec.MemoryMB <= 0 {
		errs = append(errs, ValidationError{
			Field:    "MemoryMB",
			Message:  "memory must be greater than 0",
			Severity: "error",
		})
	}
	if spec.DiskGB <= 0 {
		errs = append(errs, ValidationError{
			Field:    "DiskGB",
			Message:  "disk must be greater than 0",
			Severity: "error",
		})
	}

	// --- Hints ---

	if spec.MemoryMB > 0 && spec.MemoryMB < 256 {
		errs = append(errs, ValidationError{
			Field:    "MemoryMB",
			Message:  fmt.Sprintf("memory of %d MB is unlikely to boot a modern guest", spec.MemoryMB),
			Severity: "warning",
		})
	}

	return errs
}

// isISO reports whether a template reference names an installation image.
func isISO(ref string) bool {
	return strings.Contains(ref, ":iso/") || strings.HasSuffix(strings.ToLower(ref), ".iso")
}
