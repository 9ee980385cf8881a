// aliddns keeps Alibaba Cloud DNS address records pointed at the public
// IPv4 and IPv6 addresses of the host it runs on.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"gitlab.bluewillows.net/root/aliddns/internal/config"
	"gitlab.bluewillows.net/root/aliddns/internal/health"
	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
	"gitlab.bluewillows.net/root/aliddns/internal/reconciler"
	"gitlab.bluewillows.net/root/aliddns/internal/scheduler"
	"gitlab.bluewillows.net/root/aliddns/pkg/httputil"
	"gitlab.bluewillows.net/root/aliddns/pkg/publicip"
	"gitlab.bluewillows.net/root/aliddns/providers/alidns"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	// -v is taken by --verbose.
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}

	return &cli.App{
		Name:    "aliddns",
		Usage:   "keep Alibaba Cloud DNS A/AAAA records pointed at this host",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildDate),
		Flags:   config.Flags(),
		Action:  run,
	}
}

func run(c *cli.Context) error {
	// Load configuration first so bad settings fail fast
	cfg, err := config.Load(c)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Set up structured logging
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Set build info metrics
	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("aliddns starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("mode", cfg.Mode),
		slog.Any("hostnames", cfg.Hostnames.FQDNs()),
		slog.Duration("period", cfg.Period),
		slog.Bool("ipv6", cfg.IPv6),
		slog.Bool("dry_run", cfg.DryRun),
	)

	// Cancel on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov, err := alidns.New(alidns.ProviderType, &alidns.Config{
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		Endpoint:        cfg.Endpoint,
		TTL:             cfg.TTL,
		Timeout:         cfg.Timeout,
	}, alidns.WithProviderLogger(logger))
	if err != nil {
		return fmt.Errorf("creating alidns provider: %w", err)
	}

	discoverer, err := newDiscoverer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating address discovery: %w", err)
	}

	rec := reconciler.New(prov, discoverer, cfg.Hostnames,
		reconciler.WithConfig(reconciler.Config{
			DryRun: cfg.DryRun,
			TTL:    cfg.TTL,
		}),
		reconciler.WithLogger(logger),
	)

	sched := scheduler.New(rec, cfg.Period, scheduler.WithLogger(logger))

	if cfg.Once {
		result, err := sched.RunOnce(ctx)
		if result != nil {
			fmt.Fprint(os.Stderr, result.Summary())
		}
		return err
	}

	// Health server with provider and last-cycle checks
	if cfg.HealthEnabled() {
		healthServer := health.New(cfg.HealthPort,
			health.WithLogger(logger),
			health.WithTimeout(cfg.Timeout),
		)
		healthServer.RegisterChecker("provider:"+prov.Name(), health.ProviderChecker(prov))
		healthServer.RegisterDegradedChecker("reconciler", health.DegradedWhenFailing(sched.Check))

		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("starting health server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("aliddns shutdown complete")
	return nil
}

// newDiscoverer builds the public address discovery for the configured method.
func newDiscoverer(cfg *config.Config, logger *slog.Logger) (*publicip.Discoverer, error) {
	var ipv4, ipv6 publicip.Lookup

	switch cfg.DiscoveryMethod {
	case config.DiscoveryDNS:
		ipv4 = publicip.NewDNSLookup(cfg.DNSResolver, publicip.IPv4, publicip.WithDNSLogger(logger))
		if cfg.IPv6 {
			ipv6 = publicip.NewDNSLookup(cfg.DNSResolver, publicip.IPv6, publicip.WithDNSLogger(logger))
		}
	default:
		httpClient := httputil.NewClient(&httputil.ClientConfig{
			Timeout: cfg.Timeout,
			NoCache: true,
			Logger:  logger,
		})

		v4, err := publicip.NewHTTPLookup(cfg.IPv4URL, publicip.IPv4,
			publicip.WithHTTPClient(httpClient),
			publicip.WithHTTPLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		ipv4 = v4

		if cfg.IPv6 {
			v6, err := publicip.NewHTTPLookup(cfg.IPv6URL, publicip.IPv6,
				publicip.WithHTTPClient(httpClient),
				publicip.WithHTTPLogger(logger),
			)
			if err != nil {
				return nil, err
			}
			ipv6 = v6
		}
	}

	return publicip.NewDiscoverer(ipv4, ipv6,
		publicip.WithTimeout(cfg.Timeout),
		publicip.WithLogger(logger),
	)
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
