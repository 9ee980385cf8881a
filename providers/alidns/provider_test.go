package alidns

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
)

func newTestProvider(t *testing.T, serverURL string) *Provider {
	t.Helper()
	cfg := &Config{
		AccessKeyID:     testKeyID,
		AccessKeySecret: testSecret,
		Endpoint:        serverURL + "/",
		TTL:             600,
	}
	p, err := New("alidns", cfg)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("x", nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New("x", &Config{TTL: 600}); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestProvider_NameAndType(t *testing.T) {
	p := newTestProvider(t, "http://localhost")

	if p.Name() != "alidns" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.Type() != ProviderType {
		t.Errorf("Type() = %q", p.Type())
	}
	if p.Client() == nil {
		t.Error("Client() returned nil")
	}
}

func TestProvider_FindRecords(t *testing.T) {
	server := newFakeAPI(t, map[string]apiHandler{
		ActionDescribeDomainRecords: func(t *testing.T, q url.Values) (int, any) {
			return http.StatusOK, map[string]any{
				"RequestId":  "r",
				"TotalCount": 3,
				"DomainRecords": map[string]any{
					"Record": []map[string]any{
						{"RR": "home", "Type": "A", "Value": "1.2.3.4", "RecordId": "1", "Status": "ENABLE", "TTL": 600, "DomainName": "example.com"},
						{"RR": "home", "Type": "aaaa", "Value": "2001:db8::1", "RecordId": "2", "Status": "Disable", "TTL": 600},
						{"RR": "homelab", "Type": "A", "Value": "1.2.3.4", "RecordId": "3", "Status": "ENABLE"},
					},
				},
			}
		},
	})

	records, err := newTestProvider(t, server.URL).FindRecords(context.Background(), "example.com", "home")
	if err != nil {
		t.Fatalf("FindRecords() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (non-matching RR dropped)", len(records))
	}

	aaaa := records[1]
	if aaaa.Type != provider.RecordTypeAAAA {
		t.Errorf("Type = %q, want AAAA", aaaa.Type)
	}
	if !aaaa.Disabled() {
		t.Error("record with status Disable should be disabled")
	}
	if aaaa.Zone != "example.com" {
		t.Errorf("Zone = %q, want fallback to the queried zone", aaaa.Zone)
	}
	if aaaa.Hostname() != "home.example.com" {
		t.Errorf("Hostname() = %q", aaaa.Hostname())
	}
}

func TestProvider_FindRecords_Empty(t *testing.T) {
	server := newFakeAPI(t, map[string]apiHandler{
		ActionDescribeDomainRecords: func(t *testing.T, q url.Values) (int, any) {
			return http.StatusOK, map[string]any{"RequestId": "r", "TotalCount": 0, "DomainRecords": map[string]any{"Record": []any{}}}
		},
	})

	records, err := newTestProvider(t, server.URL).FindRecords(context.Background(), "example.com", "new")
	if err != nil {
		t.Fatalf("FindRecords() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestProvider_FindRecords_ErrorWrapped(t *testing.T) {
	server := newFakeAPI(t, map[string]apiHandler{
		ActionDescribeDomainRecords: func(t *testing.T, q url.Values) (int, any) {
			return http.StatusBadRequest, map[string]string{"RequestId": "r", "Code": "InvalidDomainName.NoExist", "Message": "The domain does not exist."}
		},
	})

	_, err := newTestProvider(t, server.URL).FindRecords(context.Background(), "example.com", "home")

	var pe *provider.ProviderError
	if !errors.As(err, &pe) || pe.Op != provider.OpFind || pe.Target != "home.example.com" {
		t.Fatalf("expected ProviderError for find, got %v", err)
	}
	if !provider.IsNotFound(err) {
		t.Error("unknown domain should classify as not found")
	}
}

func TestProvider_CreateRecord(t *testing.T) {
	var got url.Values
	server := newFakeAPI(t, map[string]apiHandler{
		ActionAddDomainRecord: func(t *testing.T, q url.Values) (int, any) {
			got = q
			return http.StatusOK, map[string]string{"RequestId": "r", "RecordId": "7"}
		},
	})

	err := newTestProvider(t, server.URL).CreateRecord(context.Background(), provider.Record{
		Label: "home", Zone: "example.com", Type: provider.RecordTypeA, Value: "203.0.113.5",
	})
	if err != nil {
		t.Fatalf("CreateRecord() error: %v", err)
	}
	if got.Get("TTL") != "600" {
		t.Errorf("TTL = %q, want configured 600", got.Get("TTL"))
	}
	if got.Get("RR") != "home" || got.Get("DomainName") != "example.com" || got.Get("Type") != "A" {
		t.Errorf("unexpected params: %v", got)
	}
}

func TestProvider_UpdateRecord(t *testing.T) {
	var got url.Values
	server := newFakeAPI(t, map[string]apiHandler{
		ActionUpdateDomainRecord: func(t *testing.T, q url.Values) (int, any) {
			got = q
			return http.StatusOK, map[string]string{"RequestId": "r", "RecordId": "1"}
		},
	})

	p := newTestProvider(t, server.URL)
	err := p.UpdateRecord(context.Background(), provider.Record{
		ID: "1", Label: "home", Zone: "example.com", Type: provider.RecordTypeA, Value: "203.0.113.9", TTL: 120,
	})
	if err != nil {
		t.Fatalf("UpdateRecord() error: %v", err)
	}
	if got.Get("RecordId") != "1" || got.Get("Value") != "203.0.113.9" || got.Get("TTL") != "120" {
		t.Errorf("unexpected params: %v", got)
	}

	if err := p.UpdateRecord(context.Background(), provider.Record{Label: "home"}); err == nil {
		t.Error("expected error for record without id")
	}
}

func TestProvider_EnableRecord(t *testing.T) {
	server := newFakeAPI(t, map[string]apiHandler{
		ActionSetDomainRecordStatus: func(t *testing.T, q url.Values) (int, any) {
			if q.Get("Status") != "Enable" {
				t.Errorf("Status = %q, want Enable", q.Get("Status"))
			}
			return http.StatusOK, map[string]string{"RequestId": "r"}
		},
	})

	p := newTestProvider(t, server.URL)
	if err := p.EnableRecord(context.Background(), provider.Record{ID: "2"}); err != nil {
		t.Errorf("EnableRecord() error: %v", err)
	}
	if err := p.EnableRecord(context.Background(), provider.Record{}); err == nil {
		t.Error("expected error for record without id")
	}
}

func TestProvider_Ping_Unauthorized(t *testing.T) {
	server := newFakeAPI(t, map[string]apiHandler{
		ActionDescribeDomains: func(t *testing.T, q url.Values) (int, any) {
			return http.StatusForbidden, map[string]string{"RequestId": "r", "Code": "InvalidAccessKeyId.NotFound", "Message": "Specified access key is not found."}
		},
	})

	err := newTestProvider(t, server.URL).Ping(context.Background())
	if !provider.IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}
