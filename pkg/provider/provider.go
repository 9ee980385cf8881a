// Package provider defines the contract between the reconciler and the DNS provider.
package provider

import (
	"context"
	"net/netip"
	"strings"
)

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA    RecordType = "A"
	RecordTypeAAAA RecordType = "AAAA"
)

// RecordStatus is the provider-side enabled/disabled flag of a record.
type RecordStatus string

const (
	StatusEnabled  RecordStatus = "ENABLE"
	StatusDisabled RecordStatus = "DISABLE"
)

// ApexLabel is the label the provider uses for the zone apex.
const ApexLabel = "@"

// Record represents an address record as stored by the provider.
type Record struct {
	ID     string // Provider-specific record identifier
	Label  string // Subdomain part, e.g. "home" for home.example.com
	Zone   string // Registrable domain, e.g. "example.com"
	Type   RecordType
	Value  string // IP literal
	TTL    int
	Status RecordStatus
	Line   string
	Locked bool
}

// Hostname returns the fully-qualified name of the record.
func (r Record) Hostname() string {
	if r.Label == "" || r.Label == ApexLabel {
		return r.Zone
	}
	return r.Label + "." + r.Zone
}

// Disabled reports whether the provider has the record switched off.
func (r Record) Disabled() bool {
	return strings.EqualFold(string(r.Status), string(StatusDisabled))
}

// Provider defines the operations the reconciler needs from a DNS provider.
type Provider interface {
	// Name returns the provider instance name (e.g., "alidns").
	Name() string

	// Type returns the provider type (e.g., "alidns").
	Type() string

	// Ping checks connectivity and credentials.
	Ping(ctx context.Context) error

	// FindRecords returns every record in zone whose label exactly equals label.
	// An empty slice with a nil error means no record exists.
	FindRecords(ctx context.Context, zone, label string) ([]Record, error)

	// CreateRecord adds a new record. ID and Status are ignored.
	CreateRecord(ctx context.Context, record Record) error

	// UpdateRecord rewrites the value of the record identified by record.ID.
	UpdateRecord(ctx context.Context, record Record) error

	// EnableRecord switches a disabled record back on.
	EnableRecord(ctx context.Context, record Record) error
}

// ParseRecordType parses "A" or "AAAA" (case-insensitive).
func ParseRecordType(s string) (RecordType, bool) {
	switch RecordType(strings.ToUpper(strings.TrimSpace(s))) {
	case RecordTypeA:
		return RecordTypeA, true
	case RecordTypeAAAA:
		return RecordTypeAAAA, true
	default:
		return "", false
	}
}

// RecordTypeFor returns the record type that carries addr.
func RecordTypeFor(addr netip.Addr) RecordType {
	if addr.Is4() || addr.Is4In6() {
		return RecordTypeA
	}
	return RecordTypeAAAA
}
