// Package alidns implements the provider interface for Alibaba Cloud DNS.
package alidns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
	"gitlab.bluewillows.net/root/aliddns/pkg/httputil"
	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
)

// DefaultEndpoint is the public alidns RPC endpoint.
const DefaultEndpoint = "https://alidns.aliyuncs.com/"

const (
	// pageSize is the largest page DescribeDomainRecords accepts.
	pageSize = 100

	// maxPages bounds pagination of a single exact-match search.
	maxPages = 10

	maxBodySize = 1 << 20
)

// API actions.
const (
	ActionDescribeDomainRecords = "DescribeDomainRecords"
	ActionAddDomainRecord       = "AddDomainRecord"
	ActionUpdateDomainRecord    = "UpdateDomainRecord"
	ActionSetDomainRecordStatus = "SetDomainRecordStatus"
	ActionDescribeDomains       = "DescribeDomains"
)

// Record is a resource record as returned by DescribeDomainRecords.
type Record struct {
	RR         string `json:"RR"`
	Line       string `json:"Line"`
	Status     string `json:"Status"`
	Locked     bool   `json:"Locked"`
	Type       string `json:"Type"`
	DomainName string `json:"DomainName"`
	Value      string `json:"Value"`
	RecordID   string `json:"RecordId"`
	TTL        int    `json:"TTL"`
	Weight     int    `json:"Weight"`
}

// DescribeDomainRecordsResponse is the success payload of DescribeDomainRecords.
type DescribeDomainRecordsResponse struct {
	RequestID     string `json:"RequestId"`
	PageNumber    int    `json:"PageNumber"`
	TotalCount    int    `json:"TotalCount"`
	PageSize      int    `json:"PageSize"`
	DomainRecords struct {
		Record []Record `json:"Record"`
	} `json:"DomainRecords"`
}

// RecordResponse is the success payload of AddDomainRecord and UpdateDomainRecord.
type RecordResponse struct {
	RequestID string `json:"RequestId"`
	RecordID  string `json:"RecordId"`
}

// SetDomainRecordStatusResponse is the success payload of SetDomainRecordStatus.
type SetDomainRecordStatusResponse struct {
	RequestID string `json:"RequestId"`
	RecordID  string `json:"RecordId"`
	Status    string `json:"Status"`
}

// Domain is one zone hosted in the account.
type Domain struct {
	DomainID   string `json:"DomainId"`
	DomainName string `json:"DomainName"`
}

// DescribeDomainsResponse is the success payload of DescribeDomains.
type DescribeDomainsResponse struct {
	RequestID  string `json:"RequestId"`
	PageNumber int    `json:"PageNumber"`
	TotalCount int    `json:"TotalCount"`
	PageSize   int    `json:"PageSize"`
	Domains    struct {
		Domain []Domain `json:"Domain"`
	} `json:"Domains"`
}

// APIError is the error envelope returned by the API.
type APIError struct {
	StatusCode int    `json:"-"`
	RequestID  string `json:"RequestId"`
	HostID     string `json:"HostId"`
	Code       string `json:"Code"`
	Message    string `json:"Message"`
	Recommend  string `json:"Recommend"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alidns API error %s: %s (request %s)", e.Code, e.Message, e.RequestID)
}

// Unwrap maps well-known error codes onto the provider sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == "InvalidAccessKeyId.NotFound",
		e.Code == "InvalidAccessKeyId.Inactive",
		e.Code == "SignatureDoesNotMatch",
		e.Code == "IncompleteSignature",
		strings.HasPrefix(e.Code, "Forbidden"):
		return provider.ErrUnauthorized
	case e.Code == "DomainRecordDuplicate":
		return provider.ErrConflict
	case e.Code == "DomainRecordNotBelongToUser",
		e.Code == "InvalidDomainName.NoExist",
		e.Code == "InvalidRR.NoExist":
		return provider.ErrNotFound
	case e.Code == "ServiceUnavailable",
		e.Code == "InternalError",
		strings.HasPrefix(e.Code, "Throttling"):
		return provider.ErrProviderUnavailable
	default:
		return nil
	}
}

// errorProbe holds the fields that tell the two response shapes apart.
type errorProbe struct {
	RequestID string `json:"RequestId"`
	Code      string `json:"Code"`
	Message   string `json:"Message"`
}

// Client is an alidns RPC API client.
type Client struct {
	endpoint        string
	accessKeyID     string
	accessKeySecret string
	signer          *Signer
	httpClient      *http.Client
	logger          *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithSigner replaces the request signer.
func WithSigner(signer *Signer) ClientOption {
	return func(c *Client) {
		if signer != nil {
			c.signer = signer
		}
	}
}

// NewClient creates a new alidns API client.
func NewClient(accessKeyID, accessKeySecret string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:        DefaultEndpoint,
		accessKeyID:     accessKeyID,
		accessKeySecret: accessKeySecret,
		signer:          NewSigner(),
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Logger:       c.logger,
			RedactParams: []string{"Signature", "AccessKeyId", "SignatureNonce"},
		})
	}

	return c
}

// Do signs and executes one API call. The success payload is decoded into
// out, which may be nil. An error envelope is returned as *APIError.
func (c *Client) Do(ctx context.Context, action string, params map[string]string, out any) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ProviderAPIRequestsTotal.WithLabelValues(action, status).Inc()
		metrics.ProviderAPIDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}()

	reqURL, err := c.buildURL(action, params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", action, provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s: reading response body: %w", action, err)
	}

	if err := decodeResponse(resp.StatusCode, body, out); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// buildURL signs the call and returns the request URL. Signature comes
// first, followed by the signed parameters in key order.
func (c *Client) buildURL(action string, params map[string]string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", c.endpoint, err)
	}

	withAction := make(map[string]string, len(params)+1)
	for k, v := range params {
		withAction[k] = v
	}
	withAction["Action"] = action

	signature, signed, err := c.signer.Sign(http.MethodGet, c.accessKeyID, c.accessKeySecret, withAction)
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", action, err)
	}

	var b strings.Builder
	b.WriteString(signatureParam)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(signature))
	for _, k := range sortedKeys(signed) {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(signed[k]))
	}
	u.RawQuery = b.String()

	return u.String(), nil
}

// decodeResponse resolves the body into either the error envelope or the
// success payload.
func decodeResponse(statusCode int, body []byte, out any) error {
	var probe errorProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		if statusCode < 200 || statusCode > 299 {
			return statusError(statusCode, body)
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	if probe.Code != "" && probe.Message != "" {
		apiErr := &APIError{StatusCode: statusCode}
		if err := json.Unmarshal(body, apiErr); err != nil {
			return fmt.Errorf("decoding error response: %w", err)
		}
		return apiErr
	}

	if statusCode < 200 || statusCode > 299 {
		return statusError(statusCode, body)
	}

	if probe.RequestID == "" {
		return errors.New("decoding response: body matches neither success nor error shape")
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	err := fmt.Errorf("unexpected status %d %s: %s", statusCode, http.StatusText(statusCode), msg)
	if statusCode >= 500 {
		return fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	return err
}

// DescribeDomainRecords returns the records of domain whose RR exactly
// matches rr.
func (c *Client) DescribeDomainRecords(ctx context.Context, domain, rr string) ([]Record, error) {
	var records []Record

	for page := 1; page <= maxPages; page++ {
		params := map[string]string{
			"DomainName": domain,
			"KeyWord":    rr,
			"SearchMode": "EXACT",
			"PageSize":   strconv.Itoa(pageSize),
			"PageNumber": strconv.Itoa(page),
		}

		var resp DescribeDomainRecordsResponse
		if err := c.Do(ctx, ActionDescribeDomainRecords, params, &resp); err != nil {
			return nil, fmt.Errorf("describing records for %s.%s: %w", rr, domain, err)
		}

		records = append(records, resp.DomainRecords.Record...)
		if len(resp.DomainRecords.Record) == 0 || len(records) >= resp.TotalCount {
			break
		}
	}

	return records, nil
}

// AddDomainRecord creates a record and returns its id. A ttl of 0 leaves
// the provider default.
func (c *Client) AddDomainRecord(ctx context.Context, domain, rr, recordType, value string, ttl int) (string, error) {
	params := map[string]string{
		"DomainName": domain,
		"RR":         rr,
		"Type":       recordType,
		"Value":      value,
	}
	if ttl > 0 {
		params["TTL"] = strconv.Itoa(ttl)
	}

	var resp RecordResponse
	if err := c.Do(ctx, ActionAddDomainRecord, params, &resp); err != nil {
		return "", fmt.Errorf("adding %s record for %s.%s: %w", recordType, rr, domain, err)
	}

	c.logger.Debug("added record",
		slog.String("domain", domain),
		slog.String("rr", rr),
		slog.String("type", recordType),
		slog.String("record_id", resp.RecordID),
	)

	return resp.RecordID, nil
}

// UpdateDomainRecord rewrites the value of an existing record. The API
// answers DomainRecordDuplicate when the record already holds the value;
// that is reported as success.
func (c *Client) UpdateDomainRecord(ctx context.Context, recordID, domain, rr, recordType, value string, ttl int) error {
	params := map[string]string{
		"RecordId": recordID,
		"RR":       rr,
		"Type":     recordType,
		"Value":    value,
	}
	if domain != "" {
		params["DomainName"] = domain
	}
	if ttl > 0 {
		params["TTL"] = strconv.Itoa(ttl)
	}

	err := c.Do(ctx, ActionUpdateDomainRecord, params, &RecordResponse{})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "DomainRecordDuplicate" {
		c.logger.Debug("record already holds value",
			slog.String("record_id", recordID),
			slog.String("value", value),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("updating record %s: %w", recordID, err)
	}

	return nil
}

// SetDomainRecordStatus switches a record on ("Enable") or off ("Disable").
func (c *Client) SetDomainRecordStatus(ctx context.Context, recordID, status string) error {
	params := map[string]string{
		"RecordId": recordID,
		"Status":   status,
	}

	if err := c.Do(ctx, ActionSetDomainRecordStatus, params, &SetDomainRecordStatusResponse{}); err != nil {
		return fmt.Errorf("setting record %s status to %s: %w", recordID, status, err)
	}
	return nil
}

// DescribeDomains lists the zones in the account.
func (c *Client) DescribeDomains(ctx context.Context, size int) (*DescribeDomainsResponse, error) {
	params := map[string]string{
		"PageSize": strconv.Itoa(size),
	}

	var resp DescribeDomainsResponse
	if err := c.Do(ctx, ActionDescribeDomains, params, &resp); err != nil {
		return nil, fmt.Errorf("describing domains: %w", err)
	}
	return &resp, nil
}

// Ping verifies connectivity and credentials with the cheapest call available.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.DescribeDomains(ctx, 1); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
