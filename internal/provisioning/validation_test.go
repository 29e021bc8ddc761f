package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Spec{Name: "web01", Hypervisor: "h1", CPU: 1, MemoryMB: 1024, DiskGB: 10, Template: "9000"}

	tests := []struct {
		name         string
		mutate       func(*Spec)
		wantErrors   []string
		wantWarnings []string
	}{
		{"valid", func(*Spec) {}, nil, nil},
		{"blank name", func(s *Spec) { s.Name = "  " }, []string{"Name"}, nil},
		{"non-dns name", func(s *Spec) { s.Name = "web_01" }, nil, []string{"Name"}},
		{"everything missing", func(s *Spec) { *s = Spec{} }, []string{"Name", "Hypervisor", "Template", "CPU", "MemoryMB", "DiskGB"}, nil},
		{"tiny memory", func(s *Spec) { s.MemoryMB = 64 }, nil, []string{"MemoryMB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := valid
			tt.mutate(&spec)

			var errs, warns []string
			for _, ve := range Validate(spec) {
				if ve.IsError() {
					errs = append(errs, ve.Field)
				} else {
					warns = append(warns, ve.Field)
				}
			}
			assert.Equal(t, tt.wantErrors, errs)
			assert.Equal(t, tt.wantWarnings, warns)
		})
	}
}

func TestIsISO(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  string
		want bool
	}{
		{"local:iso/debian-12.iso", true},
		{"cephfs:iso/installer", true},
		{"[datastore1] iso/ubuntu.ISO", true},
		{"9000", false},
		{"vm-42", false},
		{"local:vztmpl/alpine.tar.gz", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isISO(tt.ref), tt.ref)
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	ve := ValidationError{Field: "CPU", Message: "cpu must be greater than 0", Severity: "error"}
	assert.Equal(t, "[error] CPU: cpu must be greater than 0", ve.Error())
	assert.True(t, ve.IsError())
}
