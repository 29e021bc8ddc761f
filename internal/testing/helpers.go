package testing

import (
	"context"
	"testing"
	"time"

	"github.com/imamik/hvplane/internal/config"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Timeouts returns short timeouts suitable for httptest backends.
func Timeouts() *config.Timeouts {
	return &config.Timeouts{
		Read:                   2 * time.Second,
		Mutate:                 2 * time.Second,
		Connect:                2 * time.Second,
		StoreRetryMaxAttempts:  1,
		StoreRetryInitialDelay: time.Millisecond,
	}
}
