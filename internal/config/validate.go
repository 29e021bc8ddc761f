package config

import (
	"fmt"
	"strings"
)

// ValidStoreDrivers lists the supported relational store dialects.
var ValidStoreDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

// ValidEnvironments lists the accepted environment names.
var ValidEnvironments = map[string]bool{
	"production":  true,
	"development": true,
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for common errors and returns a detailed error if validation fails.
func (c *Config) Validate() error {
	if !ValidEnvironments[c.Environment] {
		return fmt.Errorf("environment %q is invalid (must be one of: production, development)", c.Environment)
	}

	if !ValidStoreDrivers[c.Store.Driver] {
		return fmt.Errorf("store.driver %q is invalid (must be one of: sqlite, postgres)", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
	}

	if !ValidLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level %q is invalid", c.Logging.Level)
	}

	if c.Locator.CacheTTL < 0 {
		return fmt.Errorf("locator.cacheTTL must not be negative")
	}
	if c.Locator.CacheSize < 0 {
		return fmt.Errorf("locator.cacheSize must not be negative")
	}

	if strings.ContainsAny(c.Provisioning.Storage, " ,") {
		return fmt.Errorf("provisioning.storage %q must be a single storage id", c.Provisioning.Storage)
	}

	return nil
}
