package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all cloudvm configuration.
type Config struct {
	// MemoryMB is the amount of RAM in megabytes allocated to each VM.
	MemoryMB int `mapstructure:"memory_mb"`

	// CPUs is the number of virtual CPUs allocated to each VM.
	CPUs int `mapstructure:"cpus"`

	// DefaultArch is the architecture used when none is given on the command line.
	DefaultArch string `mapstructure:"default_arch"`

	// SSHPortMin/SSHPortMax bound the range the SSH forwarding port is
	// drawn from at launch.
	SSHPortMin int `mapstructure:"ssh_port_min"`
	SSHPortMax int `mapstructure:"ssh_port_max"`

	// SeedPortMin/SeedPortMax bound the range scanned for a free port
	// for the cloud-init seed server.
	SeedPortMin int `mapstructure:"seed_port_min"`
	SeedPortMax int `mapstructure:"seed_port_max"`

	// GracePeriod is how long rm waits after SIGTERM before escalating.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// MetadataTimeout bounds remote metadata probes during update checks.
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
}

// Global is the loaded configuration. Populated by Load.
var Global *Config

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		MemoryMB:        2048,
		CPUs:            2,
		DefaultArch:     "amd64",
		SSHPortMin:      22222,
		SSHPortMax:      22999,
		SeedPortMin:     8100,
		SeedPortMax:     8199,
		GracePeriod:     5 * time.Second,
		MetadataTimeout: 10 * time.Second,
	}
}

// Load reads config.yaml from the config directory, falling back to
// defaults for anything unset. A missing file is not an error.
func Load() error {
	paths := GetPaths()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(paths.ConfigDir)

	def := DefaultConfig()
	v.SetDefault("memory_mb", def.MemoryMB)
	v.SetDefault("cpus", def.CPUs)
	v.SetDefault("default_arch", def.DefaultArch)
	v.SetDefault("ssh_port_min", def.SSHPortMin)
	v.SetDefault("ssh_port_max", def.SSHPortMax)
	v.SetDefault("seed_port_min", def.SeedPortMin)
	v.SetDefault("seed_port_max", def.SeedPortMax)
	v.SetDefault("grace_period", def.GracePeriod)
	v.SetDefault("metadata_timeout", def.MetadataTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	Global = cfg
	return nil
}

func (c *Config) validate() error {
	if c.MemoryMB < 128 {
		return fmt.Errorf("memory_mb must be at least 128, got %d", c.MemoryMB)
	}
	if c.CPUs < 1 {
		return fmt.Errorf("cpus must be at least 1, got %d", c.CPUs)
	}
	if c.SSHPortMin <= 0 || c.SSHPortMax < c.SSHPortMin {
		return fmt.Errorf("invalid ssh port range %d-%d", c.SSHPortMin, c.SSHPortMax)
	}
	if c.SeedPortMin <= 0 || c.SeedPortMax < c.SeedPortMin {
		return fmt.Errorf("invalid seed port range %d-%d", c.SeedPortMin, c.SeedPortMax)
	}
	return nil
}
