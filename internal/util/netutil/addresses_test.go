package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuestAddresses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"keeps order", []string{"10.0.0.5", "192.168.1.7"}, []string{"10.0.0.5", "192.168.1.7"}},
		{"drops loopback", []string{"127.0.0.1", "::1", "10.0.0.5"}, []string{"10.0.0.5"}},
		{"drops link-local", []string{"fe80::1", "169.254.3.3", "fd00::5"}, []string{"fd00::5"}},
		{"drops garbage and duplicates", []string{"", "eth0", "10.0.0.5", "::ffff:10.0.0.5"}, []string{"10.0.0.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GuestAddresses(tt.in))
		})
	}
}
