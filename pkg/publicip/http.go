package publicip

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"gitlab.bluewillows.net/root/aliddns/pkg/httputil"
)

// Default discovery endpoints. Their body looks like
// "IPv4,203.0.113.5,v1.1,,,See http://ip6.me/docs/ for api documentation".
const (
	DefaultIPv4URL = "http://ip4.me/api/"
	DefaultIPv6URL = "http://ip6only.me/api/"

	// DefaultField is the comma-separated field holding the address.
	DefaultField = 1

	// BareBody makes HTTPLookup treat the first body line as the address.
	BareBody = -1

	maxResponseSize = 4 << 10
)

// HTTPLookup asks a web service for the public address.
type HTTPLookup struct {
	url        string
	family     Family
	field      int
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption is a functional option for configuring an HTTPLookup.
type HTTPOption func(*HTTPLookup)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) HTTPOption {
	return func(l *HTTPLookup) {
		if httpClient != nil {
			l.httpClient = httpClient
		}
	}
}

// WithField selects the comma-separated field holding the address.
// BareBody accepts a body that is just the address.
func WithField(field int) HTTPOption {
	return func(l *HTTPLookup) {
		l.field = field
	}
}

// WithHTTPLogger sets a custom logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(l *HTTPLookup) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewHTTPLookup creates a lookup against rawURL that must yield an address
// of the given family.
func NewHTTPLookup(rawURL string, family Family, opts ...HTTPOption) (*HTTPLookup, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL %q must use http or https", rawURL)
	}

	l := &HTTPLookup{
		url:    u.String(),
		family: family,
		field:  DefaultField,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.httpClient == nil {
		l.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout: DefaultTimeout,
			NoCache: true,
			Logger:  l.logger,
		})
	}

	return l, nil
}

// String returns the lookup URL.
func (l *HTTPLookup) String() string {
	return l.url
}

// Lookup implements Lookup.
func (l *HTTPLookup) Lookup(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("requesting %s: %w", l.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("requesting %s: unexpected status %s", l.url, resp.Status)
	}

	line, err := bufio.NewReader(io.LimitReader(resp.Body, maxResponseSize)).ReadString('\n')
	if err != nil && err != io.EOF {
		return netip.Addr{}, fmt.Errorf("reading response from %s: %w", l.url, err)
	}

	raw, err := extractField(line, l.field)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing response from %s: %w", l.url, err)
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing address from %s: %w", l.url, err)
	}

	return checkFamily(addr, l.family)
}

// extractField returns the trimmed field of a comma-separated line.
func extractField(line string, field int) (string, error) {
	line = strings.TrimSpace(line)
	if field == BareBody {
		if line == "" {
			return "", ErrNoAddress
		}
		return line, nil
	}

	fields := strings.Split(line, ",")
	if field < 0 || field >= len(fields) {
		return "", fmt.Errorf("%w: field %d missing in %q", ErrNoAddress, field, line)
	}

	value := strings.TrimSpace(fields[field])
	if value == "" {
		return "", fmt.Errorf("%w: field %d empty in %q", ErrNoAddress, field, line)
	}
	return value, nil
}
