// Package config loads broker daemon configuration from environment
// variables, an optional YAML file and built-in defaults via spf13/viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AllocatorKind names one of the three supported allocator backends.
type AllocatorKind string

// Supported allocator kinds.
const (
	AllocatorSSH         AllocatorKind = "ssh"
	AllocatorUNICORE     AllocatorKind = "unicore"
	AllocatorLocalProcess AllocatorKind = "local"
)

// Config holds every broker-wide setting from the Environment section of
// the design spec.
type Config struct {
	// HTTP
	ListenAddr string
	URIPrefix  string

	// Storage
	DatabaseDSN string

	// Allocator selection
	Allocator AllocatorKind

	// SSH-batch allocator
	SSHUser             string
	SSHKeyPath          string
	SSHEntryHosts       []string
	SSHDefaultQueue     string
	SSHDefaultTime      string
	SSHAllocTimeout     time.Duration
	SSHOutLogPrefix     string

	// UNICORE allocator
	UnicoreRegistryURL string
	UnicoreDefaultSite string
	UnicoreBearerToken string
	UnicoreLogCapBytes int64
	UnicoreHTTPTimeout time.Duration

	// Readiness / forwarding
	ReadinessProbeTimeout time.Duration
	ForwardTimeout        time.Duration

	// Keep-alive
	DefaultKeepAlive time.Duration
	SweepInterval    time.Duration
}

// Load reads configuration from environment variables (prefix RRB_),
// an optional config file, and applies defaults. The config file path,
// when non-empty, must point to a YAML file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RRB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:        v.GetString("listen_addr"),
		URIPrefix:         v.GetString("uri_prefix"),
		DatabaseDSN:       v.GetString("database_dsn"),
		Allocator:         AllocatorKind(v.GetString("allocator")),
		SSHUser:           v.GetString("ssh.user"),
		SSHKeyPath:        v.GetString("ssh.key_path"),
		SSHEntryHosts:     v.GetStringSlice("ssh.entry_hosts"),
		SSHDefaultQueue:   v.GetString("ssh.default_queue"),
		SSHDefaultTime:    v.GetString("ssh.default_time"),
		SSHAllocTimeout:   v.GetDuration("ssh.alloc_timeout"),
		SSHOutLogPrefix:   v.GetString("ssh.out_log_prefix"),
		UnicoreRegistryURL: v.GetString("unicore.registry_url"),
		UnicoreDefaultSite: v.GetString("unicore.default_site"),
		UnicoreBearerToken: v.GetString("unicore.bearer_token"),
		UnicoreLogCapBytes: v.GetInt64("unicore.log_cap_bytes"),
		UnicoreHTTPTimeout: v.GetDuration("unicore.http_timeout"),
		ReadinessProbeTimeout: v.GetDuration("readiness_probe_timeout"),
		ForwardTimeout:        v.GetDuration("forward_timeout"),
		DefaultKeepAlive:      v.GetDuration("default_keep_alive"),
		SweepInterval:         v.GetDuration("sweep_interval"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("uri_prefix", "/rrm/v1")
	v.SetDefault("database_dsn", "file:rrbroker.db?_pragma=busy_timeout(5000)")
	v.SetDefault("allocator", string(AllocatorLocalProcess))
	v.SetDefault("ssh.alloc_timeout", 60*time.Second)
	v.SetDefault("ssh.out_log_prefix", "rrb")
	v.SetDefault("unicore.log_cap_bytes", 2*1024*1024)
	v.SetDefault("unicore.http_timeout", 30*time.Second)
	v.SetDefault("readiness_probe_timeout", 5*time.Second)
	v.SetDefault("forward_timeout", 30*time.Second)
	v.SetDefault("default_keep_alive", 10*time.Minute)
	v.SetDefault("sweep_interval", 100*time.Second)
}

func (c *Config) validate() error {
	switch c.Allocator {
	case AllocatorSSH, AllocatorUNICORE, AllocatorLocalProcess:
	default:
		return fmt.Errorf("unknown allocator kind %q", c.Allocator)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn must not be empty")
	}
	if c.Allocator == AllocatorSSH && len(c.SSHEntryHosts) == 0 {
		return fmt.Errorf("ssh allocator requires at least one entry host")
	}
	if c.Allocator == AllocatorUNICORE && c.UnicoreRegistryURL == "" {
		return fmt.Errorf("unicore allocator requires a registry url")
	}
	return nil
}
