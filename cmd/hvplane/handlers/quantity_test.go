package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemoryMB(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"2048", 2048},
		{"4Gi", 4096},
		{"512Mi", 512},
		{"1.5Gi", 1536},
		{"1G", 954},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryMB(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDiskGB(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"32", 32},
		{"32Gi", 32},
		{"1Ti", 1024},
		{"100Mi", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDiskGB(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Errors(t *testing.T) {
	for _, in := range []string{"-1", "-4Gi", "four", "4XB"} {
		t.Run(in, func(t *testing.T) {
			_, err := parseMemoryMB(in)
			assert.Error(t, err)
		})
	}
}
