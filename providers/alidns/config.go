package alidns

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TTL bounds accepted by the API.
const (
	DefaultTTL = 600
	MinTTL     = 1
	MaxTTL     = 86400
)

// Config holds alidns-specific configuration.
type Config struct {
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string        // Defaults to DefaultEndpoint
	TTL             int           // TTL sent on create and update
	Timeout         time.Duration // Per-request timeout, 0 for the HTTP client default
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.AccessKeyID == "" {
		errs = append(errs, "access key id is required")
	}
	if c.AccessKeySecret == "" {
		errs = append(errs, "access key secret is required")
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoint %q must be an absolute URL", c.Endpoint))
		}
	}
	if c.TTL < MinTTL || c.TTL > MaxTTL {
		errs = append(errs, fmt.Sprintf("TTL must be between %d and %d", MinTTL, MaxTTL))
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("alidns config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
