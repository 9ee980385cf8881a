package publicip

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 15 * time.Second

// Discoverer runs the IPv4 and IPv6 lookups of one cycle.
type Discoverer struct {
	ipv4    Lookup
	ipv6    Lookup
	timeout time.Duration
	logger  *slog.Logger
}

// Option is a functional option for configuring the Discoverer.
type Option func(*Discoverer)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDiscoverer creates a discoverer. ipv4 is required; a nil ipv6 disables
// IPv6 discovery.
func NewDiscoverer(ipv4, ipv6 Lookup, opts ...Option) (*Discoverer, error) {
	if ipv4 == nil {
		return nil, fmt.Errorf("an IPv4 lookup is required")
	}

	d := &Discoverer{
		ipv4:    ipv4,
		ipv6:    ipv6,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// IPv6Enabled reports whether IPv6 discovery is configured.
func (d *Discoverer) IPv6Enabled() bool {
	return d.ipv6 != nil
}

// Discover runs both lookups concurrently and waits for both. A failed IPv4
// lookup fails the discovery; a failed IPv6 lookup is logged and leaves
// Addresses.IPv6 unset.
func (d *Discoverer) Discover(ctx context.Context) (Addresses, error) {
	var (
		v4 netip.Addr
		v6 netip.Addr
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr, err := d.lookup(gctx, d.ipv4)
		if err != nil {
			metrics.DiscoveryFailuresTotal.WithLabelValues(IPv4.String()).Inc()
			return fmt.Errorf("discovering public IPv4 address: %w", err)
		}
		if addr, err = checkFamily(addr, IPv4); err != nil {
			metrics.DiscoveryFailuresTotal.WithLabelValues(IPv4.String()).Inc()
			return fmt.Errorf("discovering public IPv4 address: %w", err)
		}
		v4 = addr
		return nil
	})

	if d.ipv6 != nil {
		g.Go(func() error {
			addr, err := d.lookup(gctx, d.ipv6)
			if err == nil {
				addr, err = checkFamily(addr, IPv6)
			}
			if err != nil {
				metrics.DiscoveryFailuresTotal.WithLabelValues(IPv6.String()).Inc()
				d.logger.Warn("public IPv6 address unavailable, continuing with IPv4 only",
					slog.String("error", err.Error()),
				)
				return nil
			}
			v6 = addr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Addresses{}, err
	}

	addrs := Addresses{IPv4: v4, IPv6: v6}

	metrics.IPv6Available.Set(metrics.BoolToFloat(addrs.HasIPv6()))
	metrics.SetPublicAddress(IPv4.String(), v4.String())
	if addrs.HasIPv6() {
		metrics.SetPublicAddress(IPv6.String(), v6.String())
	} else {
		metrics.SetPublicAddress(IPv6.String(), "")
	}

	d.logger.Debug("discovered public addresses",
		slog.String("ipv4", v4.String()),
		slog.Bool("ipv6_available", addrs.HasIPv6()),
		slog.String("ipv6", addrOrEmpty(v6)),
	)

	return addrs, nil
}

func (d *Discoverer) lookup(ctx context.Context, l Lookup) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return l.Lookup(ctx)
}

func addrOrEmpty(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}
