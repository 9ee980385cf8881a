package config

import (
	"fmt"
	"net/url"
	"strings"

	"gitlab.bluewillows.net/root/aliddns/pkg/hostname"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks cfg and fills in Hostnames. It returns a *ValidationError
// listing every problem found.
func (c *Config) Validate() error {
	if errs := validateConfig(c); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// validateConfig performs validation on the complete configuration and
// splits the domains. Returns a list of validation errors.
func validateConfig(cfg *Config) []string {
	var errs []string

	switch cfg.Mode {
	case ModeCLI, ModeEnv:
	default:
		errs = append(errs, fmt.Sprintf("mode: invalid value %q (must be cli or env)", cfg.Mode))
	}

	if cfg.AccessKeyID == "" {
		errs = append(errs, "access key ID is required")
	}
	if cfg.AccessKeySecret == "" {
		errs = append(errs, "access key secret is required")
	}

	if len(cfg.Domains) == 0 {
		errs = append(errs, "at least one domain is required")
	} else {
		names, err := hostname.SplitAll(cfg.Domains)
		if err != nil {
			errs = append(errs, joinedMessages("domains", err)...)
		} else {
			cfg.Hostnames = names
		}
	}

	if cfg.Period < MinPeriod {
		errs = append(errs, fmt.Sprintf("period: must be at least %s, got %s", MinPeriod, cfg.Period))
	}
	if cfg.TTL < MinTTL || cfg.TTL > MaxTTL {
		errs = append(errs, fmt.Sprintf("ttl: must be between %d and %d, got %d", MinTTL, MaxTTL, cfg.TTL))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("timeout: must be positive, got %s", cfg.Timeout))
	}

	errs = append(errs, validateURL("endpoint", cfg.Endpoint)...)

	switch cfg.DiscoveryMethod {
	case DiscoveryHTTP:
		errs = append(errs, validateURL("ipv4_url", cfg.IPv4URL)...)
		if cfg.IPv6 {
			errs = append(errs, validateURL("ipv6_url", cfg.IPv6URL)...)
		}
	case DiscoveryDNS:
		if cfg.DNSResolver == "" {
			errs = append(errs, "dns_resolver: required when discovery method is dns")
		}
	default:
		errs = append(errs, fmt.Sprintf("discovery_method: invalid value %q (must be http or dns)", cfg.DiscoveryMethod))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log_format: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("health_port: must be between 0 and 65535, got %d", cfg.HealthPort))
	}

	return errs
}

func validateURL(field, raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []string{fmt.Sprintf("%s: must be an http(s) URL, got %q", field, raw)}
	}
	return nil
}

// joinedMessages flattens an errors.Join result into prefixed messages.
func joinedMessages(prefix string, err error) []string {
	var out []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, joinedMessages(prefix, e)...)
		}
		return out
	}
	return []string{prefix + ": " + err.Error()}
}
