package alidns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"gitlab.bluewillows.net/root/aliddns/pkg/httputil"
	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
)

// ProviderType is the value returned by Provider.Type.
const ProviderType = "alidns"

// Provider implements provider.Provider for Alibaba Cloud DNS.
type Provider struct {
	name       string
	ttl        int
	client     *Client
	httpClient *http.Client
	signer     *Signer
	endpoint   string
	logger     *slog.Logger
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProviderHTTPClient sets the HTTP client used for API calls.
func WithProviderHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithProviderSigner replaces the request signer.
func WithProviderSigner(signer *Signer) ProviderOption {
	return func(p *Provider) {
		p.signer = signer
	}
}

// New creates a new alidns provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:     name,
		ttl:      config.TTL,
		endpoint: config.Endpoint,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.httpClient == nil {
		p.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout:      config.Timeout,
			Logger:       p.logger,
			RedactParams: []string{"Signature", "AccessKeyId", "SignatureNonce"},
		})
	}

	p.client = NewClient(config.AccessKeyID, config.AccessKeySecret,
		WithEndpoint(p.endpoint),
		WithHTTPClient(p.httpClient),
		WithSigner(p.signer),
		WithLogger(p.logger),
	)

	return p, nil
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "alidns".
func (p *Provider) Type() string {
	return ProviderType
}

// Client exposes the underlying API client.
func (p *Provider) Client() *Client {
	return p.client
}

// Ping checks connectivity and credentials.
func (p *Provider) Ping(ctx context.Context) error {
	return provider.WrapError(p.name, provider.OpPing, "", p.client.Ping(ctx))
}

// FindRecords returns the records of zone whose RR is exactly label.
func (p *Provider) FindRecords(ctx context.Context, zone, label string) ([]provider.Record, error) {
	apiRecords, err := p.client.DescribeDomainRecords(ctx, zone, label)
	if err != nil {
		return nil, provider.WrapError(p.name, provider.OpFind, label+"."+zone, err)
	}

	records := make([]provider.Record, 0, len(apiRecords))
	for _, r := range apiRecords {
		// The keyword search is applied server side; this guards against
		// an RR that only matches case-insensitively.
		if !strings.EqualFold(r.RR, label) {
			continue
		}
		recordZone := r.DomainName
		if recordZone == "" {
			recordZone = zone
		}
		records = append(records, provider.Record{
			ID:     r.RecordID,
			Label:  r.RR,
			Zone:   recordZone,
			Type:   provider.RecordType(strings.ToUpper(r.Type)),
			Value:  r.Value,
			TTL:    r.TTL,
			Status: provider.RecordStatus(strings.ToUpper(r.Status)),
			Line:   r.Line,
			Locked: r.Locked,
		})
	}

	return records, nil
}

// CreateRecord adds a record.
func (p *Provider) CreateRecord(ctx context.Context, record provider.Record) error {
	ttl := p.ttlFor(record)

	id, err := p.client.AddDomainRecord(ctx, record.Zone, record.Label, string(record.Type), record.Value, ttl)
	if err != nil {
		return provider.WrapError(p.name, provider.OpCreate, record.Hostname(), err)
	}

	p.logger.Info("created record",
		slog.String("hostname", record.Hostname()),
		slog.String("type", string(record.Type)),
		slog.String("value", record.Value),
		slog.String("record_id", id),
		slog.Int("ttl", ttl),
	)

	return nil
}

// UpdateRecord rewrites the value of an existing record.
func (p *Provider) UpdateRecord(ctx context.Context, record provider.Record) error {
	if record.ID == "" {
		return provider.WrapError(p.name, provider.OpUpdate, record.Hostname(), errors.New("record id is required"))
	}
	if record.Locked {
		p.logger.Warn("record is locked, update will likely be rejected",
			slog.String("hostname", record.Hostname()),
			slog.String("record_id", record.ID),
		)
	}

	ttl := p.ttlFor(record)
	if err := p.client.UpdateDomainRecord(ctx, record.ID, record.Zone, record.Label, string(record.Type), record.Value, ttl); err != nil {
		return provider.WrapError(p.name, provider.OpUpdate, record.Hostname(), err)
	}

	p.logger.Info("updated record",
		slog.String("hostname", record.Hostname()),
		slog.String("type", string(record.Type)),
		slog.String("value", record.Value),
		slog.String("record_id", record.ID),
	)

	return nil
}

// EnableRecord switches a disabled record back on.
func (p *Provider) EnableRecord(ctx context.Context, record provider.Record) error {
	if record.ID == "" {
		return provider.WrapError(p.name, provider.OpEnable, record.Hostname(), errors.New("record id is required"))
	}

	if err := p.client.SetDomainRecordStatus(ctx, record.ID, "Enable"); err != nil {
		return provider.WrapError(p.name, provider.OpEnable, record.Hostname(), err)
	}

	p.logger.Info("enabled record",
		slog.String("hostname", record.Hostname()),
		slog.String("type", string(record.Type)),
		slog.String("record_id", record.ID),
	)

	return nil
}

// ttlFor prefers the TTL carried by the record over the configured one.
func (p *Provider) ttlFor(record provider.Record) int {
	if record.TTL > 0 {
		return record.TTL
	}
	return p.ttl
}

// Ensure Provider implements provider.Provider.
var _ provider.Provider = (*Provider)(nil)
