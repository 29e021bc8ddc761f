package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	mebibyte = 1 << 20
	gibibyte = 1 << 30
)

// parseMemoryMB accepts "2048" (MiB) or a quantity such as "4Gi" or "512Mi".
func parseMemoryMB(s string) (int64, error) {
	return parseSize(s, mebibyte)
}

// parseDiskGB accepts "32" (GiB) or a quantity such as "32Gi" or "1Ti".
func parseDiskGB(s string) (int64, error) {
	return parseSize(s, gibibyte)
}

// parseSize converts s to a count of unit, rounding up. A bare integer is
// already in unit.
func parseSize(s string, unit int64) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("size %q must not be negative", s)
		}
		return n, nil
	}

	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("size %q must not be negative", s)
	}
	bytes := q.Value()
	return (bytes + unit - 1) / unit, nil
}
