package reconciler

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
)

func newTestReconciler(p provider.Provider, d Discoverer, fqdns []string, cfg Config) *Reconciler {
	return New(p, d, mustNames(fqdns...), WithLogger(testLogger()), WithConfig(cfg))
}

func TestReconcile_CreatesOnlyAWithoutIPv6(t *testing.T) {
	p := newMockProvider()
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"home.example.com"}, Config{TTL: 600})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	want := []string{"create home.example.com A 203.0.113.5"}
	if got := p.mutations(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
	if result.CreatedCount() != 1 {
		t.Errorf("CreatedCount() = %d, want 1", result.CreatedCount())
	}
	rec, ok := p.byHostname("home.example.com", provider.RecordTypeA)
	if !ok || rec.TTL != 600 {
		t.Errorf("created record = %+v", rec)
	}
	if result.IPv4 != "203.0.113.5" || result.IPv6 != "" {
		t.Errorf("result addresses = %q, %q", result.IPv4, result.IPv6)
	}
}

func TestReconcile_CreatesAAAAThenA(t *testing.T) {
	p := newMockProvider()
	r := newTestReconciler(p, dualStack("203.0.113.5", "2001:db8::5"), []string{"home.example.com"}, Config{})

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	want := []string{
		"create home.example.com AAAA 2001:db8::5",
		"create home.example.com A 203.0.113.5",
	}
	if got := p.mutations(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
}

func TestReconcile_UnchangedMakesNoCalls(t *testing.T) {
	p := newMockProvider(aRecord("home", "example.com", "203.0.113.5"))
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"home.example.com"}, Config{})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	if got := p.mutations(); len(got) != 0 {
		t.Errorf("expected no mutations, got %v", got)
	}
	if result.UpdatedCount() != 0 || result.SkippedCount() != 1 {
		t.Errorf("updated=%d skipped=%d", result.UpdatedCount(), result.SkippedCount())
	}
	if result.Skipped()[0].Reason != ReasonUnchanged {
		t.Errorf("skip reason = %q", result.Skipped()[0].Reason)
	}
}

func TestReconcile_DisabledRecordIsUpdatedAndEnabled(t *testing.T) {
	disabled := aRecord("home", "example.com", "198.51.100.1")
	disabled.Status = provider.StatusDisabled
	p := newMockProvider(disabled)
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"home.example.com"}, Config{})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	want := []string{
		"update home.example.com A 203.0.113.5",
		"enable home.example.com A",
	}
	if got := p.mutations(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
	if result.UpdatedCount() != 1 || result.EnabledCount() != 1 {
		t.Errorf("updated=%d enabled=%d", result.UpdatedCount(), result.EnabledCount())
	}
	if rec, _ := p.byHostname("home.example.com", provider.RecordTypeA); rec.Disabled() {
		t.Error("record still disabled")
	}
	if got := result.Updated()[0].Previous; got != "198.51.100.1" {
		t.Errorf("Previous = %q", got)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	p := newMockProvider(aRecord("old", "example.com", "198.51.100.1"))
	d := dualStack("203.0.113.5", "2001:db8::5")
	r := newTestReconciler(p, d, []string{"old.example.com", "new.example.com"}, Config{})

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("first Reconcile() error: %v", err)
	}
	first := len(p.mutations())
	if first != 3 {
		t.Fatalf("first cycle mutations = %d, want 3: %v", first, p.mutations())
	}

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second Reconcile() error: %v", err)
	}
	if got := len(p.mutations()) - first; got != 0 {
		t.Errorf("second cycle made %d mutations: %v", got, p.mutations()[first:])
	}
	if result.CreatedCount()+result.UpdatedCount() != 0 {
		t.Errorf("second cycle changed records: %s", result.Summary())
	}
}

func TestReconcile_AAAASkippedWithoutIPv6(t *testing.T) {
	p := newMockProvider(
		aRecord("home", "example.com", "198.51.100.1"),
		aaaaRecord("home", "example.com", "2001:db8::1"),
	)
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"home.example.com"}, Config{})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	want := []string{"update home.example.com A 203.0.113.5"}
	if got := p.mutations(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
	aaaa, _ := p.byHostname("home.example.com", provider.RecordTypeAAAA)
	if aaaa.Value != "2001:db8::1" {
		t.Errorf("AAAA value changed to %q", aaaa.Value)
	}

	var sawSkip bool
	for _, a := range result.Skipped() {
		if a.Reason == ReasonIPv6Unavailable {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Error("expected an ipv6_unavailable skip")
	}
}

func TestReconcile_DiscoveryFailureIsFatal(t *testing.T) {
	p := newMockProvider()
	discErr := errors.New("ipv4 lookup failed")
	d := &staticDiscoverer{err: discErr}
	r := newTestReconciler(p, d, []string{"home.example.com"}, Config{})

	before := testutil.ToFloat64(metrics.ReconciliationsTotal.WithLabelValues("error"))

	result, err := r.Reconcile(context.Background())
	if !errors.Is(err, discErr) {
		t.Fatalf("Reconcile() error = %v, want %v", err, discErr)
	}
	if result == nil {
		t.Fatal("expected partial result")
	}
	if got := p.mutations(); len(got) != 0 {
		t.Errorf("expected no mutations, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ReconciliationsTotal.WithLabelValues("error")) - before; got != 1 {
		t.Errorf("error cycles moved by %f, want 1", got)
	}
}

func TestReconcile_LookupFailureSkipsLabel(t *testing.T) {
	p := newMockProvider()
	p.findErr["bad.example.com"] = provider.ErrProviderUnavailable
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"bad.example.com", "good.example.com"}, Config{})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	want := []string{"create good.example.com A 203.0.113.5"}
	if got := p.mutations(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}

	skipped := result.Skipped()
	if len(skipped) != 1 || skipped[0].Reason != ReasonLookupFailed || skipped[0].Hostname != "bad.example.com" {
		t.Errorf("skipped = %+v", skipped)
	}
}

func TestReconcile_UpdateFailureAbortsCycle(t *testing.T) {
	p := newMockProvider(aRecord("a", "example.com", "198.51.100.1"))
	p.updateErr = provider.ErrUnauthorized
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"a.example.com", "b.example.com"}, Config{})

	result, err := r.Reconcile(context.Background())
	if !errors.Is(err, provider.ErrUnauthorized) {
		t.Fatalf("Reconcile() error = %v, want ErrUnauthorized", err)
	}

	for _, m := range p.mutations() {
		if m == "create b.example.com A 203.0.113.5" {
			t.Error("create ran after a failed update")
		}
	}
	if result.FailedCount() != 1 {
		t.Errorf("FailedCount() = %d, want 1", result.FailedCount())
	}

	var aborted int
	for _, a := range result.Skipped() {
		if a.Reason == ReasonAborted {
			aborted++
		}
	}
	if aborted != 1 {
		t.Errorf("aborted = %d, want 1", aborted)
	}
}

func TestReconcile_CreateFailureAbortsRemaining(t *testing.T) {
	p := newMockProvider()
	p.createErr = provider.ErrConflict
	r := newTestReconciler(p, dualStack("203.0.113.5", "2001:db8::5"), []string{"home.example.com"}, Config{})

	_, err := r.Reconcile(context.Background())
	if !errors.Is(err, provider.ErrConflict) {
		t.Fatalf("Reconcile() error = %v, want ErrConflict", err)
	}

	want := []string{"create home.example.com AAAA 2001:db8::5"}
	if got := p.mutations(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
}

func TestReconcile_EnableFailureKeepsUpdate(t *testing.T) {
	disabled := aRecord("home", "example.com", "198.51.100.1")
	disabled.Status = provider.StatusDisabled
	p := newMockProvider(disabled)
	p.enableErr = errors.New("enable rejected")
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"home.example.com"}, Config{})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if result.UpdatedCount() != 1 {
		t.Errorf("UpdatedCount() = %d, want 1", result.UpdatedCount())
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Type != ActionEnable {
		t.Errorf("failed = %+v", failed)
	}
}

func TestReconcile_DryRun(t *testing.T) {
	disabled := aRecord("old", "example.com", "198.51.100.1")
	disabled.Status = provider.StatusDisabled
	p := newMockProvider(disabled)
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"old.example.com", "new.example.com"}, Config{DryRun: true})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	if got := p.mutations(); len(got) != 0 {
		t.Errorf("dry-run made mutations: %v", got)
	}
	if result.CreatedCount() != 1 || result.UpdatedCount() != 1 || result.EnabledCount() != 1 {
		t.Errorf("planned created=%d updated=%d enabled=%d",
			result.CreatedCount(), result.UpdatedCount(), result.EnabledCount())
	}
	for _, a := range result.Actions {
		if !a.DryRun {
			t.Errorf("action %s not marked dry-run", a)
		}
	}
}

func TestReconcile_CancelledContext(t *testing.T) {
	p := newMockProvider()
	p.findErr["home.example.com"] = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"home.example.com"}, Config{})

	if _, err := r.Reconcile(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Reconcile() error = %v, want context.Canceled", err)
	}
}

func TestReconcile_Metrics(t *testing.T) {
	created := metrics.RecordsCreatedTotal.WithLabelValues("A")
	before := testutil.ToFloat64(created)

	p := newMockProvider()
	r := newTestReconciler(p, v4only("203.0.113.5"), []string{"m1.example.com", "m2.example.com"}, Config{})

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	if got := testutil.ToFloat64(created) - before; got != 2 {
		t.Errorf("records_created_total{A} moved by %f, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.HostnamesManaged); got != 2 {
		t.Errorf("hostnames_managed = %f, want 2", got)
	}
}
