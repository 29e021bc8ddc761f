// Package config loads and validates the hvplane configuration file and the
// environment-driven timeout settings.
package config

import "time"

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "hvplane.yaml"

// Config is the root of hvplane.yaml.
type Config struct {
	// Environment tunes user-facing error suggestions ("production" or "development").
	Environment  string             `yaml:"environment"`
	Store        StoreConfig        `yaml:"store"`
	Logging      LoggingConfig      `yaml:"logging"`
	Locator      LocatorConfig      `yaml:"locator"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// StoreConfig selects the relational store.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures the zap backend behind logr.
type LoggingConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

// LocatorConfig tunes VM discovery across hypervisors.
type LocatorConfig struct {
	// Sequential checks connected hypervisors one at a time instead of in
	// parallel. The result is the same either way.
	Sequential bool `yaml:"sequential"`
	// CacheTTL enables a short-lived VM location cache when > 0.
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	CacheSize int           `yaml:"cacheSize"`
}

// ProvisioningConfig holds backend defaults for VM creation.
type ProvisioningConfig struct {
	// Storage is the pool that receives new disks and full clones.
	Storage string `yaml:"storage"`
	// Bridge is attached to net0 of ISO-booted VMs.
	Bridge string `yaml:"bridge"`
	// Tags are added to every created VM.
	Tags []string `yaml:"tags"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the registry in Prometheus text format on exit.
	Textfile string `yaml:"textfile"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" && c.Store.Driver == "sqlite" {
		c.Store.DSN = "hvplane.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Locator.CacheSize == 0 {
		c.Locator.CacheSize = 1024
	}
	if c.Provisioning.Storage == "" {
		c.Provisioning.Storage = "local-lvm"
	}
	if c.Provisioning.Bridge == "" {
		c.Provisioning.Bridge = "vmbr0"
	}
}
