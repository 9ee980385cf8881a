package publicip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/miekg/dns"
)

// OpenDNS answers queries for myip.opendns.com with the address the query
// came from.
const (
	DefaultDNSName     = "myip.opendns.com"
	DefaultDNSResolver = "resolver1.opendns.com"
)

// DNSLookup learns the public address from a resolver that echoes the
// client address.
type DNSLookup struct {
	name     string
	resolver string
	family   Family
	client   *dns.Client
	logger   *slog.Logger
}

// DNSOption is a functional option for configuring a DNSLookup.
type DNSOption func(*DNSLookup)

// WithDNSName overrides the queried name.
func WithDNSName(name string) DNSOption {
	return func(l *DNSLookup) {
		if name != "" {
			l.name = name
		}
	}
}

// WithDNSNetwork overrides the transport ("udp", "udp4", "udp6", "tcp" ...).
// By default the network is pinned to the lookup family so the resolver sees
// the right source address.
func WithDNSNetwork(network string) DNSOption {
	return func(l *DNSLookup) {
		if network != "" {
			l.client.Net = network
		}
	}
}

// WithDNSLogger sets a custom logger.
func WithDNSLogger(logger *slog.Logger) DNSOption {
	return func(l *DNSLookup) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewDNSLookup creates a lookup against resolver ("host" or "host:port").
func NewDNSLookup(resolver string, family Family, opts ...DNSOption) *DNSLookup {
	if resolver == "" {
		resolver = DefaultDNSResolver
	}
	if _, _, err := net.SplitHostPort(resolver); err != nil {
		resolver = net.JoinHostPort(resolver, "53")
	}

	network := "udp4"
	if family == IPv6 {
		network = "udp6"
	}

	l := &DNSLookup{
		name:     DefaultDNSName,
		resolver: resolver,
		family:   family,
		client:   &dns.Client{Net: network, Timeout: DefaultTimeout},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// String describes the lookup.
func (l *DNSLookup) String() string {
	return "dns://" + l.resolver + "/" + l.name
}

// Lookup implements Lookup.
func (l *DNSLookup) Lookup(ctx context.Context) (netip.Addr, error) {
	qtype := dns.TypeA
	if l.family == IPv6 {
		qtype = dns.TypeAAAA
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(l.name), qtype)

	r, rtt, err := l.client.ExchangeContext(ctx, m, l.resolver)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("querying %s: %w", l.resolver, err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("querying %s: %s", l.resolver, dns.RcodeToString[r.Rcode])
	}

	l.logger.Debug("DNS lookup answered",
		slog.String("resolver", l.resolver),
		slog.String("name", l.name),
		slog.String("family", l.family.String()),
		slog.Duration("rtt", rtt),
	)

	for _, rr := range r.Answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		return checkFamily(addr, l.family)
	}

	return netip.Addr{}, fmt.Errorf("querying %s for %s: %w", l.resolver, l.name, ErrNoAddress)
}
