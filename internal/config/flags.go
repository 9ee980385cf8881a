package config

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// Flag names.
const (
	FlagConfig          = "config"
	FlagMode            = "mode"
	FlagAccessKeyID     = "access-key-id"
	FlagAccessKeySecret = "access-key-secret"
	FlagDomains         = "domains"
	FlagPeriod          = "period"
	FlagTTL             = "ttl"
	FlagTimeout         = "timeout"
	FlagEndpoint        = "endpoint"
	FlagIPv4URL         = "ipv4-url"
	FlagIPv6URL         = "ipv6-url"
	FlagIPv6            = "ipv6"
	FlagDiscovery       = "discovery"
	FlagDNSResolver     = "dns-resolver"
	FlagDryRun          = "dry-run"
	FlagOnce            = "once"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
	FlagVerbose         = "verbose"
	FlagHealthPort      = "health-port"
)

// Flags returns the command-line flags understood by Load. Defaults are
// applied by Load, not by the flags, so that unset flags never shadow the
// environment or the config file.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagConfig,
			Aliases: []string{"c"},
			Usage:   "path to a YAML or TOML config file",
		},
		&cli.StringFlag{
			Name:    FlagMode,
			Aliases: []string{"m"},
			Usage:   "run mode: cli reads flags, env reads only the environment and config file",
		},
		&cli.StringFlag{
			Name:    FlagAccessKeyID,
			Aliases: []string{"akid", "i"},
			Usage:   "Aliyun AccessKey ID",
		},
		&cli.StringFlag{
			Name:    FlagAccessKeySecret,
			Aliases: []string{"aksct", "s"},
			Usage:   "Aliyun AccessKey Secret",
		},
		&cli.StringFlag{
			Name:    FlagDomains,
			Aliases: []string{"domain", "d"},
			Usage:   "comma-separated hostnames to keep updated, e.g. home.example.com",
		},
		&cli.StringFlag{
			Name:    FlagPeriod,
			Aliases: []string{"p"},
			Usage:   "update period in seconds or as a duration (default 600s)",
		},
		&cli.IntFlag{
			Name:    FlagTTL,
			Aliases: []string{"t"},
			Usage:   fmt.Sprintf("record TTL in seconds (default %d)", DefaultTTL),
		},
		&cli.StringFlag{
			Name:  FlagTimeout,
			Usage: "per-request timeout (default 30s)",
		},
		&cli.StringFlag{
			Name:  FlagEndpoint,
			Usage: "alidns API endpoint",
		},
		&cli.StringFlag{
			Name:  FlagIPv4URL,
			Usage: "URL answering with the public IPv4 address",
		},
		&cli.StringFlag{
			Name:  FlagIPv6URL,
			Usage: "URL answering with the public IPv6 address",
		},
		&cli.BoolFlag{
			Name:  FlagIPv6,
			Usage: "discover IPv6 and manage AAAA records (default true)",
		},
		&cli.StringFlag{
			Name:  FlagDiscovery,
			Usage: "public address discovery method: http or dns",
		},
		&cli.StringFlag{
			Name:  FlagDNSResolver,
			Usage: "resolver used by the dns discovery method",
		},
		&cli.BoolFlag{
			Name:  FlagDryRun,
			Usage: "log changes without applying them",
		},
		&cli.BoolFlag{
			Name:  FlagOnce,
			Usage: "run a single cycle and exit",
		},
		&cli.StringFlag{
			Name:  FlagLogLevel,
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  FlagLogFormat,
			Usage: "json or text",
		},
		&cli.BoolFlag{
			Name:    FlagVerbose,
			Aliases: []string{"v"},
			Usage:   "shorthand for --log-level=debug",
		},
		&cli.IntFlag{
			Name:  FlagHealthPort,
			Usage: "health and metrics port, 0 disables (default 8080)",
		},
	}
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(c *cli.Context, cfg *Config) []string {
	var errs []string

	if c.IsSet(FlagAccessKeyID) {
		cfg.AccessKeyID = c.String(FlagAccessKeyID)
	}
	if c.IsSet(FlagAccessKeySecret) {
		cfg.AccessKeySecret = c.String(FlagAccessKeySecret)
	}
	if c.IsSet(FlagDomains) {
		cfg.Domains = splitList(c.String(FlagDomains))
	}
	if c.IsSet(FlagPeriod) {
		if d, err := parseDuration(c.String(FlagPeriod)); err != nil {
			errs = append(errs, "--"+FlagPeriod+": "+err.Error())
		} else {
			cfg.Period = d
		}
	}
	if c.IsSet(FlagTTL) {
		cfg.TTL = c.Int(FlagTTL)
	}
	if c.IsSet(FlagTimeout) {
		if d, err := parseDuration(c.String(FlagTimeout)); err != nil {
			errs = append(errs, "--"+FlagTimeout+": "+err.Error())
		} else {
			cfg.Timeout = d
		}
	}
	if c.IsSet(FlagEndpoint) {
		cfg.Endpoint = c.String(FlagEndpoint)
	}
	if c.IsSet(FlagIPv4URL) {
		cfg.IPv4URL = c.String(FlagIPv4URL)
	}
	if c.IsSet(FlagIPv6URL) {
		cfg.IPv6URL = c.String(FlagIPv6URL)
	}
	if c.IsSet(FlagIPv6) {
		cfg.IPv6 = c.Bool(FlagIPv6)
	}
	if c.IsSet(FlagDiscovery) {
		cfg.DiscoveryMethod = strings.ToLower(c.String(FlagDiscovery))
	}
	if c.IsSet(FlagDNSResolver) {
		cfg.DNSResolver = c.String(FlagDNSResolver)
	}
	if c.IsSet(FlagDryRun) {
		cfg.DryRun = c.Bool(FlagDryRun)
	}
	if c.IsSet(FlagOnce) {
		cfg.Once = c.Bool(FlagOnce)
	}
	if c.IsSet(FlagLogLevel) {
		cfg.LogLevel = strings.ToLower(c.String(FlagLogLevel))
	}
	if c.Bool(FlagVerbose) {
		cfg.LogLevel = "debug"
	}
	if c.IsSet(FlagLogFormat) {
		cfg.LogFormat = strings.ToLower(c.String(FlagLogFormat))
	}
	if c.IsSet(FlagHealthPort) {
		cfg.HealthPort = c.Int(FlagHealthPort)
	}

	return errs
}
