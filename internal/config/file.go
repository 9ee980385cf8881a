package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure. YAML and TOML
// files share the same layout.
type FileConfig struct {
	Mode string `yaml:"mode,omitempty" toml:"mode"`

	Credentials *FileCredentialsConfig `yaml:"credentials,omitempty" toml:"credentials"`

	// Domains accepts a list or a single comma-separated string.
	Domains StringList `yaml:"domains,omitempty" toml:"domains"`

	Period  string `yaml:"period,omitempty" toml:"period"`   // seconds or Go duration
	TTL     int    `yaml:"ttl,omitempty" toml:"ttl"`         // record TTL in seconds
	Timeout string `yaml:"timeout,omitempty" toml:"timeout"` // per-request timeout
	DryRun  *bool  `yaml:"dry_run,omitempty" toml:"dry_run"` // Pointer to distinguish unset from false
	Once    *bool  `yaml:"once,omitempty" toml:"once"`

	Provider  *FileProviderConfig  `yaml:"provider,omitempty" toml:"provider"`
	Discovery *FileDiscoveryConfig `yaml:"discovery,omitempty" toml:"discovery"`
	Logging   *FileLoggingConfig   `yaml:"logging,omitempty" toml:"logging"`
	Server    *FileServerConfig    `yaml:"server,omitempty" toml:"server"`
}

// FileCredentialsConfig holds the API key pair.
type FileCredentialsConfig struct {
	AccessKeyID         string `yaml:"access_key_id,omitempty" toml:"access_key_id"`
	AccessKeySecret     string `yaml:"access_key_secret,omitempty" toml:"access_key_secret"`
	AccessKeySecretFile string `yaml:"access_key_secret_file,omitempty" toml:"access_key_secret_file"`
}

// FileProviderConfig holds provider endpoint settings.
type FileProviderConfig struct {
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint"`
}

// FileDiscoveryConfig holds public address discovery settings.
type FileDiscoveryConfig struct {
	Method      string `yaml:"method,omitempty" toml:"method"` // http, dns
	IPv4URL     string `yaml:"ipv4_url,omitempty" toml:"ipv4_url"`
	IPv6URL     string `yaml:"ipv6_url,omitempty" toml:"ipv6_url"`
	IPv6        *bool  `yaml:"ipv6,omitempty" toml:"ipv6"`
	DNSResolver string `yaml:"dns_resolver,omitempty" toml:"dns_resolver"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format"` // json, text
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port *int `yaml:"port,omitempty" toml:"port"` // 0 disables the server
}

// StringList decodes from either a sequence or a comma-separated string.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = splitList(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("domains: expected a list or a string")
	}
}

// UnmarshalTOML implements toml.Unmarshaler.
func (l *StringList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*l = splitList(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("domains: expected strings, got %T", item)
			}
			items = append(items, s)
		}
		*l = items
	default:
		return fmt.Errorf("domains: expected a list or a string, got %T", v)
	}
	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadFile reads and parses a configuration file. The format is chosen by
// extension: .toml for TOML, anything else is read as YAML. Environment
// variables in ${VAR} format are interpolated before parsing.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := InterpolateEnvVars(string(data))

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	return &cfg, nil
}

// apply copies the values set in the file onto cfg.
func (f *FileConfig) apply(cfg *Config) []string {
	var errs []string

	if f.Mode != "" {
		cfg.Mode = strings.ToLower(f.Mode)
	}

	if f.Credentials != nil {
		if f.Credentials.AccessKeyID != "" {
			cfg.AccessKeyID = f.Credentials.AccessKeyID
		}
		if f.Credentials.AccessKeySecret != "" {
			cfg.AccessKeySecret = f.Credentials.AccessKeySecret
		}
		if path := f.Credentials.AccessKeySecretFile; path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, fmt.Sprintf("credentials.access_key_secret_file: %v", err))
			} else {
				cfg.AccessKeySecret = strings.TrimSpace(string(content))
			}
		}
	}

	if len(f.Domains) > 0 {
		cfg.Domains = []string(f.Domains)
	}

	if f.Period != "" {
		if d, err := parseDuration(f.Period); err != nil {
			errs = append(errs, "period: "+err.Error())
		} else {
			cfg.Period = d
		}
	}
	if f.TTL != 0 {
		cfg.TTL = f.TTL
	}
	if f.Timeout != "" {
		if d, err := parseDuration(f.Timeout); err != nil {
			errs = append(errs, "timeout: "+err.Error())
		} else {
			cfg.Timeout = d
		}
	}
	if f.DryRun != nil {
		cfg.DryRun = *f.DryRun
	}
	if f.Once != nil {
		cfg.Once = *f.Once
	}

	if f.Provider != nil && f.Provider.Endpoint != "" {
		cfg.Endpoint = f.Provider.Endpoint
	}

	if d := f.Discovery; d != nil {
		if d.Method != "" {
			cfg.DiscoveryMethod = strings.ToLower(d.Method)
		}
		if d.IPv4URL != "" {
			cfg.IPv4URL = d.IPv4URL
		}
		if d.IPv6URL != "" {
			cfg.IPv6URL = d.IPv6URL
		}
		if d.IPv6 != nil {
			cfg.IPv6 = *d.IPv6
		}
		if d.DNSResolver != "" {
			cfg.DNSResolver = d.DNSResolver
		}
	}

	if f.Logging != nil {
		if f.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(f.Logging.Level)
		}
		if f.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(f.Logging.Format)
		}
	}

	if f.Server != nil && f.Server.Port != nil {
		cfg.HealthPort = *f.Server.Port
	}

	return errs
}
