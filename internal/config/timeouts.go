package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Read    time.Duration // Reads, status and metrics calls
	Mutate  time.Duration // Creation, clone, config and power calls
	Connect time.Duration // Authentication and connection checks

	StoreRetryMaxAttempts  int           // Attempts to reach the relational store at startup
	StoreRetryInitialDelay time.Duration // Initial delay between store connection attempts
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - HVPLANE_TIMEOUT_READ (default: 10s)
//   - HVPLANE_TIMEOUT_MUTATE (default: 30s)
//   - HVPLANE_TIMEOUT_CONNECT (default: 20s)
//   - HVPLANE_STORE_RETRY_MAX_ATTEMPTS (default: 3)
//   - HVPLANE_STORE_RETRY_INITIAL_DELAY (default: 500ms)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Read:                   parseDuration("HVPLANE_TIMEOUT_READ", 10*time.Second),
		Mutate:                 parseDuration("HVPLANE_TIMEOUT_MUTATE", 30*time.Second),
		Connect:                parseDuration("HVPLANE_TIMEOUT_CONNECT", 20*time.Second),
		StoreRetryMaxAttempts:  parseInt("HVPLANE_STORE_RETRY_MAX_ATTEMPTS", 3),
		StoreRetryInitialDelay: parseDuration("HVPLANE_STORE_RETRY_INITIAL_DELAY", 500*time.Millisecond),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
