package main

import (
	"fmt"

	"github.com/sievegate/sievegate/consts"
	"github.com/sievegate/sievegate/helpers"
	"github.com/sievegate/sievegate/sieve/limits"
)

// Config holds all configuration for the sievegate ManageSieve server.
type Config struct {
	Debug bool `toml:"debug"`

	Database struct {
		Host     string `toml:"host"`
		Port     string `toml:"port"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Name     string `toml:"name"`
		SSLMode  string `toml:"ssl_mode"`
	} `toml:"database"`

	ManageSieve struct {
		Addr string `toml:"addr"`
	} `toml:"managesieve"`

	Bincache struct {
		Dir       string `toml:"dir"`
		MaxSizeMB int64  `toml:"max_size_mb"`
	} `toml:"bincache"`

	Metrics struct {
		Enable bool   `toml:"enable"`
		Addr   string `toml:"addr"`
	} `toml:"metrics"`

	TLS struct {
		InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
		Enable             bool   `toml:"enable"`
		CertFile           string `toml:"cert_file"`
		KeyFile            string `toml:"key_file"`
	} `toml:"tls"`

	VacationCleanup struct {
		// Interval and Retention are ParseDuration strings, e.g. "1h",
		// "30d" — retention commonly wants days, interval commonly
		// wants a plain Go duration, both go through the same parser.
		Interval  string `toml:"interval"`
		Retention string `toml:"retention"`
	} `toml:"vacation_cleanup"`

	Limits struct {
		// MaxScriptSize and CPUTime accept the same human-readable
		// strings a human operator would type into the config file
		// ("1mb", "30s", "2d" for the vacation cooldown-adjacent
		// values) rather than raw bytes/seconds; resolveLimits parses
		// CPUTime with helpers.ParseDuration, and main.go parses
		// MaxScriptSize with helpers.ParseSize.
		MaxScriptSize   string `toml:"max_script_size"`
		MaxIncludes     int    `toml:"max_includes"`
		MaxNestingDepth int    `toml:"max_nesting_depth"`
		CPUTime         string `toml:"cpu_time"`
	} `toml:"limits"`
}

// resolveLimits parses the Limits section's human-readable CPU-time
// string into a limits.Limits the sieve engine's resource gate
// understands. MaxScriptSize is resolved separately by the caller,
// since it bounds the ManageSieve wire layer rather than the VM.
func (c Config) resolveLimits() (limits.Limits, error) {
	cpuTime, err := helpers.ParseDuration(c.Limits.CPUTime)
	if err != nil {
		return limits.Limits{}, fmt.Errorf("limits.cpu_time: %w", err)
	}
	return limits.Limits{
		MaxInstructions: 1_000_000,
		MaxIncludes:     c.Limits.MaxIncludes,
		MaxNestingDepth: c.Limits.MaxNestingDepth,
		CPUTime:         cpuTime,
	}, nil
}

// newDefaultConfig creates a Config struct with default values.
func newDefaultConfig() Config {
	cfg := Config{}
	cfg.Debug = false
	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.User = "postgres"
	cfg.Database.Password = ""
	cfg.Database.Name = "sievegate"
	cfg.Database.SSLMode = "disable"
	cfg.ManageSieve.Addr = ":4190"
	cfg.Bincache.Dir = "/tmp/sievegate/bincache"
	cfg.Bincache.MaxSizeMB = 256
	cfg.Metrics.Enable = true
	cfg.Metrics.Addr = ":9190"
	cfg.TLS.InsecureSkipVerify = false
	cfg.VacationCleanup.Interval = "1h"
	cfg.VacationCleanup.Retention = "90d"
	cfg.Limits.MaxScriptSize = fmt.Sprintf("%db", consts.DefaultMaxScriptSize)
	cfg.Limits.MaxIncludes = consts.DefaultMaxIncludes
	cfg.Limits.MaxNestingDepth = consts.DefaultMaxNestingDepth
	cfg.Limits.CPUTime = consts.DefaultCPUTimeLimit.String()
	return cfg
}
