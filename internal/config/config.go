// Package config handles loading and validation of aliddns configuration
// from command-line flags, environment variables and an optional config file.
package config

import (
	"time"

	"gitlab.bluewillows.net/root/aliddns/pkg/hostname"
)

// Run modes. In ModeEnv only --mode and --config are read from the command
// line; everything else comes from the environment and the config file.
const (
	ModeCLI = "cli"
	ModeEnv = "env"
)

// Public address discovery methods.
const (
	DiscoveryHTTP = "http"
	DiscoveryDNS  = "dns"
)

// Defaults.
const (
	DefaultMode            = ModeCLI
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultPeriod          = 600 * time.Second
	DefaultTTL             = 600
	DefaultEndpoint        = "https://alidns.aliyuncs.com/"
	DefaultIPv4URL         = "http://ip4.me/api/"
	DefaultIPv6URL         = "http://ip6only.me/api/"
	DefaultIPv6            = true
	DefaultDiscoveryMethod = DiscoveryHTTP
	DefaultDNSResolver     = "resolver1.opendns.com"
	DefaultTimeout         = 30 * time.Second
	DefaultHealthPort      = 8080

	MinPeriod = time.Second
	MinTTL    = 1
	MaxTTL    = 86400
)

// Config holds the application configuration.
type Config struct {
	Mode string

	// Credentials
	AccessKeyID     string
	AccessKeySecret string

	// Domains is the raw comma-separated hostname list; Hostnames is its
	// validated form.
	Domains   []string
	Hostnames hostname.Names

	Period  time.Duration
	TTL     int
	Timeout time.Duration

	// Endpoints
	Endpoint        string
	IPv4URL         string
	IPv6URL         string
	IPv6            bool
	DiscoveryMethod string
	DNSResolver     string

	// Behavior
	DryRun bool
	Once   bool

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// HealthPort is the health/metrics server port. Zero disables it.
	HealthPort int

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Mode:            DefaultMode,
		Period:          DefaultPeriod,
		TTL:             DefaultTTL,
		Timeout:         DefaultTimeout,
		Endpoint:        DefaultEndpoint,
		IPv4URL:         DefaultIPv4URL,
		IPv6URL:         DefaultIPv6URL,
		IPv6:            DefaultIPv6,
		DiscoveryMethod: DefaultDiscoveryMethod,
		DNSResolver:     DefaultDNSResolver,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		HealthPort:      DefaultHealthPort,
	}
}

// HealthEnabled reports whether the health server should run.
func (c *Config) HealthEnabled() bool {
	return c.HealthPort > 0
}
