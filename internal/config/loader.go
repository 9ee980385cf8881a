package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

// Load builds the configuration for a command invocation. Layers, highest
// precedence first: flags, environment, config file, defaults. In env mode
// flags other than --mode and --config are ignored.
func Load(c *cli.Context) (*Config, error) {
	cfg := Default()
	var errs []string

	path := c.String(FlagConfig)
	if path == "" {
		path = getEnv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			errs = append(errs, "config file: "+err.Error())
		} else {
			errs = append(errs, fileCfg.apply(cfg)...)
			cfg.ConfigFile = path
			slog.Debug("loaded configuration from file", slog.String("path", path))
		}
	}

	errs = append(errs, applyEnv(cfg)...)

	if c.IsSet(FlagMode) {
		cfg.Mode = strings.ToLower(c.String(FlagMode))
	}

	if cfg.Mode != ModeEnv {
		errs = append(errs, applyFlags(c, cfg)...)
	}

	errs = append(errs, validateConfig(cfg)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return cfg, nil
}

// applyEnv overrides cfg with the environment variables that are set.
func applyEnv(cfg *Config) []string {
	var errs []string

	if v, _ := lookupEnv("MODE"); v != "" {
		cfg.Mode = strings.ToLower(v)
	}

	if v, _ := lookupEnv("ACCESS_KEY_ID", "AKID"); v != "" {
		cfg.AccessKeyID = v
	}

	secret, err := getEnvOrFile(EnvPrefix+"ACCESS_KEY_SECRET", EnvPrefix+"ACCESS_KEY_SECRET_FILE")
	if err != nil {
		errs = append(errs, err.Error())
	}
	if secret == "" {
		secret = getEnv("AKSCT")
	}
	if secret != "" {
		cfg.AccessKeySecret = secret
	}

	if v, _ := lookupEnv("DOMAINS", "DOMAIN"); v != "" {
		cfg.Domains = splitList(v)
	}

	if v, from := lookupEnv("PERIOD", "PERIOD"); v != "" {
		if d, err := parseDuration(v); err != nil {
			errs = append(errs, from+": "+err.Error())
		} else {
			cfg.Period = d
		}
	}

	if v, from := lookupEnv("TTL", "TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", from, v))
		} else {
			cfg.TTL = ttl
		}
	}

	if v, from := lookupEnv("TIMEOUT"); v != "" {
		if d, err := parseDuration(v); err != nil {
			errs = append(errs, from+": "+err.Error())
		} else {
			cfg.Timeout = d
		}
	}

	if v, _ := lookupEnv("ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v, _ := lookupEnv("IPV4_URL"); v != "" {
		cfg.IPv4URL = v
	}
	if v, _ := lookupEnv("IPV6_URL"); v != "" {
		cfg.IPv6URL = v
	}
	if v, _ := lookupEnv("DISCOVERY_METHOD"); v != "" {
		cfg.DiscoveryMethod = strings.ToLower(v)
	}
	if v, _ := lookupEnv("DNS_RESOLVER"); v != "" {
		cfg.DNSResolver = v
	}

	errs = append(errs, envBool("IPV6", &cfg.IPv6)...)
	errs = append(errs, envBool("DRY_RUN", &cfg.DryRun)...)
	errs = append(errs, envBool("ONCE", &cfg.Once)...)

	if v, _ := lookupEnv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, _ := lookupEnv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v, from := lookupEnv("HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", from, v))
		} else {
			cfg.HealthPort = port
		}
	}

	return errs
}

func envBool(key string, dst *bool) []string {
	v, from := lookupEnv(key)
	if v == "" {
		return nil
	}
	b, err := parseBool(v)
	if err != nil {
		return []string{from + ": " + err.Error()}
	}
	*dst = b
	return nil
}
