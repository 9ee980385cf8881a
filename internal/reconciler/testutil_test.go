package reconciler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/aliddns/pkg/hostname"
	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
	"gitlab.bluewillows.net/root/aliddns/pkg/publicip"
)

// mockProvider is an in-memory provider.Provider keyed by record ID.
type mockProvider struct {
	mu      sync.Mutex
	records map[string]provider.Record
	nextID  int
	calls   []string

	findErr   map[string]error // by FQDN
	createErr error
	updateErr error
	enableErr error
}

func newMockProvider(records ...provider.Record) *mockProvider {
	m := &mockProvider{
		records: make(map[string]provider.Record),
		findErr: make(map[string]error),
	}
	for _, rec := range records {
		if rec.ID == "" {
			m.nextID++
			rec.ID = fmt.Sprintf("rec-%d", m.nextID)
		}
		if rec.Status == "" {
			rec.Status = provider.StatusEnabled
		}
		m.records[rec.ID] = rec
	}
	return m
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Type() string { return "mock" }

func (m *mockProvider) Ping(ctx context.Context) error { return nil }

func (m *mockProvider) FindRecords(ctx context.Context, zone, label string) ([]provider.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "find "+label+"."+zone)

	if err := m.findErr[label+"."+zone]; err != nil {
		return nil, err
	}

	var out []provider.Record
	for _, rec := range m.records {
		if rec.Zone == zone && strings.EqualFold(rec.Label, label) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockProvider) CreateRecord(ctx context.Context, rec provider.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("create %s %s %s", rec.Hostname(), rec.Type, rec.Value))

	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	rec.ID = fmt.Sprintf("rec-%d", m.nextID)
	rec.Status = provider.StatusEnabled
	m.records[rec.ID] = rec
	return nil
}

func (m *mockProvider) UpdateRecord(ctx context.Context, rec provider.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("update %s %s %s", rec.Hostname(), rec.Type, rec.Value))

	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.records[rec.ID]
	if !ok {
		return provider.ErrNotFound
	}
	stored.Value = rec.Value
	stored.TTL = rec.TTL
	m.records[rec.ID] = stored
	return nil
}

func (m *mockProvider) EnableRecord(ctx context.Context, rec provider.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("enable %s %s", rec.Hostname(), rec.Type))

	if m.enableErr != nil {
		return m.enableErr
	}
	stored := m.records[rec.ID]
	stored.Status = provider.StatusEnabled
	m.records[rec.ID] = stored
	return nil
}

// mutations returns the recorded create/update/enable calls in order.
func (m *mockProvider) mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if !strings.HasPrefix(c, "find ") {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockProvider) byHostname(fqdn string, t provider.RecordType) (provider.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Hostname() == fqdn && rec.Type == t {
			return rec, true
		}
	}
	return provider.Record{}, false
}

var _ provider.Provider = (*mockProvider)(nil)

// staticDiscoverer returns fixed addresses.
type staticDiscoverer struct {
	addrs publicip.Addresses
	err   error
	calls int
}

func (s *staticDiscoverer) Discover(ctx context.Context) (publicip.Addresses, error) {
	s.calls++
	return s.addrs, s.err
}

func v4only(ip string) *staticDiscoverer {
	return &staticDiscoverer{addrs: publicip.Addresses{IPv4: netip.MustParseAddr(ip)}}
}

func dualStack(v4, v6 string) *staticDiscoverer {
	return &staticDiscoverer{addrs: publicip.Addresses{
		IPv4: netip.MustParseAddr(v4),
		IPv6: netip.MustParseAddr(v6),
	}}
}

func mustNames(fqdns ...string) hostname.Names {
	names, err := hostname.SplitAll(fqdns)
	if err != nil {
		panic(err)
	}
	return names
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func aRecord(label, zone, value string) provider.Record {
	return provider.Record{Label: label, Zone: zone, Type: provider.RecordTypeA, Value: value, TTL: 600}
}

func aaaaRecord(label, zone, value string) provider.Record {
	return provider.Record{Label: label, Zone: zone, Type: provider.RecordTypeAAAA, Value: value, TTL: 600}
}
