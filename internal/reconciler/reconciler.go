package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
	"gitlab.bluewillows.net/root/aliddns/pkg/hostname"
	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
	"gitlab.bluewillows.net/root/aliddns/pkg/publicip"
)

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, logs changes without applying them.
	DryRun bool

	// TTL is sent with every create and update. Zero leaves the choice to
	// the provider.
	TTL int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}

// Discoverer finds the public addresses for one cycle.
type Discoverer interface {
	Discover(ctx context.Context) (publicip.Addresses, error)
}

// Reconciler keeps the provider's address records for a fixed set of
// hostnames pointed at the current public addresses.
//
// Each cycle:
//  1. Looks up the existing records of every configured label
//  2. Discovers the public IPv4 and (optionally) IPv6 address
//  3. Rewrites records whose value differs, re-enabling disabled ones
//  4. Creates AAAA then A records for labels that have none
type Reconciler struct {
	provider   provider.Provider
	discoverer Discoverer
	names      hostname.Names
	config     Config
	logger     *slog.Logger
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// New creates a new Reconciler for the given hostnames.
func New(p provider.Provider, d Discoverer, names hostname.Names, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:   p,
		discoverer: d,
		names:      names,
		config:     DefaultConfig(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Names returns the hostnames the reconciler manages.
func (r *Reconciler) Names() hostname.Names {
	return r.names
}

// Reconcile runs one cycle. On failure the partial Result is returned
// together with the error.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	r.logger.Debug("starting reconciliation",
		slog.Int("hostnames", len(r.names)),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)
	result.Hostnames = len(r.names)

	err := r.reconcile(ctx, result)

	result.Complete()
	r.recordMetrics(result, err)

	if err != nil {
		r.logger.Error("reconciliation failed",
			slog.String("error", err.Error()),
			slog.Int("created", result.CreatedCount()),
			slog.Int("updated", result.UpdatedCount()),
			slog.Duration("duration", result.Duration()),
		)
		return result, err
	}

	r.logger.Info("reconciliation complete",
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("enabled", result.EnabledCount()),
		slog.Int("failed", result.FailedCount()),
		slog.Int("skipped", result.SkippedCount()),
		slog.Duration("duration", result.Duration()),
	)

	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, result *Result) error {
	// Step 1: Look up existing records
	existing, toCreate, err := r.lookupExisting(ctx, result)
	if err != nil {
		return err
	}

	// Step 2: Discover public addresses
	addrs, err := r.discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering public addresses: %w", err)
	}
	result.IPv4 = addrs.IPv4.String()
	if addrs.HasIPv6() {
		result.IPv6 = addrs.IPv6.String()
	}

	outcome := Plan(existing, toCreate, addrs)

	for _, s := range outcome.Skips {
		r.skip(result, s)
	}

	// Step 3: Update existing records
	for i, u := range outcome.Updates {
		if err := r.update(ctx, result, u); err != nil {
			r.abort(result, outcome.Updates[i+1:], outcome.Creates)
			return err
		}
	}

	// Step 4: Create missing records
	for i, c := range outcome.Creates {
		if err := r.create(ctx, result, c); err != nil {
			r.abort(result, nil, outcome.Creates[i+1:])
			return err
		}
	}

	return nil
}

// lookupExisting queries the provider for every configured label. A failed
// lookup drops that label for this cycle.
func (r *Reconciler) lookupExisting(ctx context.Context, result *Result) ([]provider.Record, hostname.Names, error) {
	var (
		existing []provider.Record
		toCreate hostname.Names
	)

	for _, name := range r.names {
		records, err := r.provider.FindRecords(ctx, name.Zone, name.Label)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, fmt.Errorf("looking up %s: %w", name.FQDN, ctxErr)
			}
			r.logger.Error("failed to look up records, skipping hostname this cycle",
				slog.String("hostname", name.FQDN),
				slog.String("provider", r.provider.Name()),
				slog.String("error", err.Error()),
			)
			result.AddAction(Action{
				Type:     ActionSkip,
				Status:   StatusSkipped,
				Hostname: name.FQDN,
				Label:    name.Label,
				Zone:     name.Zone,
				Reason:   ReasonLookupFailed,
				Error:    err.Error(),
			})
			continue
		}

		if len(records) == 0 {
			r.logger.Debug("no existing records",
				slog.String("hostname", name.FQDN),
			)
			toCreate = append(toCreate, name)
			continue
		}

		r.logger.Debug("found existing records",
			slog.String("hostname", name.FQDN),
			slog.Int("count", len(records)),
		)
		existing = append(existing, records...)
	}

	return existing, toCreate, nil
}

func (r *Reconciler) skip(result *Result, s Skip) {
	rec := s.Record
	attrs := []any{
		slog.String("hostname", rec.Hostname()),
		slog.String("type", string(rec.Type)),
		slog.String("value", rec.Value),
	}

	switch s.Reason {
	case ReasonUnchanged:
		r.logger.Info("record unchanged", attrs...)
	case ReasonIPv6Unavailable:
		r.logger.Warn("no public IPv6 address, leaving AAAA record alone", attrs...)
	default:
		r.logger.Debug("skipping record", append(attrs, slog.String("reason", s.Reason))...)
	}

	result.AddAction(Action{
		Type:       ActionSkip,
		Status:     StatusSkipped,
		Hostname:   rec.Hostname(),
		Label:      rec.Label,
		Zone:       rec.Zone,
		RecordType: string(rec.Type),
		RecordID:   rec.ID,
		Value:      rec.Value,
		Reason:     s.Reason,
	})
}

func (r *Reconciler) update(ctx context.Context, result *Result, u Update) error {
	rec := u.Record
	rec.Value = u.Value.String()
	if r.config.TTL > 0 {
		rec.TTL = r.config.TTL
	}

	action := Action{
		Type:       ActionUpdate,
		Hostname:   rec.Hostname(),
		Label:      rec.Label,
		Zone:       rec.Zone,
		RecordType: string(rec.Type),
		RecordID:   rec.ID,
		Value:      rec.Value,
		Previous:   u.Record.Value,
	}

	if r.config.DryRun {
		action.Status = StatusSuccess
		r.logger.Info("would update record (dry-run)",
			slog.String("hostname", action.Hostname),
			slog.String("type", action.RecordType),
			slog.String("from", action.Previous),
			slog.String("to", action.Value),
			slog.Bool("enable", u.Enable),
		)
		result.AddAction(action)
		if u.Enable {
			result.AddAction(enableAction(rec, StatusSuccess, ""))
		}
		return nil
	}

	if err := r.provider.UpdateRecord(ctx, rec); err != nil {
		action.Status = StatusFailed
		action.Error = err.Error()
		result.AddAction(action)
		r.logger.Error("failed to update record",
			slog.String("hostname", action.Hostname),
			slog.String("type", action.RecordType),
			slog.String("provider", r.provider.Name()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating %s record for %s: %w", rec.Type, action.Hostname, err)
	}

	action.Status = StatusSuccess
	result.AddAction(action)
	r.logger.Info("updated record",
		slog.String("hostname", action.Hostname),
		slog.String("type", action.RecordType),
		slog.String("from", action.Previous),
		slog.String("to", action.Value),
	)

	if u.Enable {
		r.enable(ctx, result, rec)
	}

	return nil
}

// enable switches a record back on. Failure is logged and recorded but does
// not undo the preceding update.
func (r *Reconciler) enable(ctx context.Context, result *Result, rec provider.Record) {
	if err := r.provider.EnableRecord(ctx, rec); err != nil {
		result.AddAction(enableAction(rec, StatusFailed, err.Error()))
		r.logger.Error("failed to enable record",
			slog.String("hostname", rec.Hostname()),
			slog.String("type", string(rec.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	result.AddAction(enableAction(rec, StatusSuccess, ""))
	r.logger.Info("enabled record",
		slog.String("hostname", rec.Hostname()),
		slog.String("type", string(rec.Type)),
	)
}

func enableAction(rec provider.Record, status ActionStatus, errMsg string) Action {
	return Action{
		Type:       ActionEnable,
		Status:     status,
		Hostname:   rec.Hostname(),
		Label:      rec.Label,
		Zone:       rec.Zone,
		RecordType: string(rec.Type),
		RecordID:   rec.ID,
		Value:      rec.Value,
		Error:      errMsg,
	}
}

func (r *Reconciler) create(ctx context.Context, result *Result, c Create) error {
	rec := provider.Record{
		Label: c.Name.Label,
		Zone:  c.Name.Zone,
		Type:  c.Type,
		Value: c.Value.String(),
		TTL:   r.config.TTL,
	}

	action := Action{
		Type:       ActionCreate,
		Hostname:   c.Name.FQDN,
		Label:      rec.Label,
		Zone:       rec.Zone,
		RecordType: string(rec.Type),
		Value:      rec.Value,
	}

	if r.config.DryRun {
		action.Status = StatusSuccess
		result.AddAction(action)
		r.logger.Info("would create record (dry-run)",
			slog.String("hostname", action.Hostname),
			slog.String("type", action.RecordType),
			slog.String("value", action.Value),
		)
		return nil
	}

	if err := r.provider.CreateRecord(ctx, rec); err != nil {
		action.Status = StatusFailed
		action.Error = err.Error()
		result.AddAction(action)
		r.logger.Error("failed to create record",
			slog.String("hostname", action.Hostname),
			slog.String("type", action.RecordType),
			slog.String("provider", r.provider.Name()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("creating %s record for %s: %w", rec.Type, action.Hostname, err)
	}

	action.Status = StatusSuccess
	result.AddAction(action)
	r.logger.Info("created record",
		slog.String("hostname", action.Hostname),
		slog.String("type", action.RecordType),
		slog.String("value", action.Value),
	)

	return nil
}

// abort records the changes a failed cycle did not get to.
func (r *Reconciler) abort(result *Result, updates []Update, creates []Create) {
	for _, u := range updates {
		result.AddAction(Action{
			Type:       ActionSkip,
			Status:     StatusSkipped,
			Hostname:   u.Record.Hostname(),
			Label:      u.Record.Label,
			Zone:       u.Record.Zone,
			RecordType: string(u.Record.Type),
			RecordID:   u.Record.ID,
			Value:      u.Value.String(),
			Previous:   u.Record.Value,
			Reason:     ReasonAborted,
		})
	}
	for _, c := range creates {
		result.AddAction(Action{
			Type:       ActionSkip,
			Status:     StatusSkipped,
			Hostname:   c.Name.FQDN,
			Label:      c.Name.Label,
			Zone:       c.Name.Zone,
			RecordType: string(c.Type),
			Value:      c.Value.String(),
			Reason:     ReasonAborted,
		})
	}
	if n := len(updates) + len(creates); n > 0 {
		r.logger.Warn("aborting remaining changes for this cycle",
			slog.Int("pending", n),
		)
	}
}

// recordMetrics updates Prometheus metrics based on the reconciliation result.
func (r *Reconciler) recordMetrics(result *Result, err error) {
	status := "success"
	if err != nil || result.HasErrors() {
		status = "error"
	}
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())
	metrics.HostnamesManaged.Set(float64(result.Hostnames))

	if status == "success" {
		metrics.LastSuccessTimestamp.SetToCurrentTime()
	}

	for _, action := range result.Actions {
		if action.DryRun && action.Type != ActionSkip {
			continue
		}
		switch action.Type {
		case ActionCreate:
			if action.Status == StatusSuccess {
				metrics.RecordsCreatedTotal.WithLabelValues(action.RecordType).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.RecordType, "create").Inc()
			}
		case ActionUpdate:
			if action.Status == StatusSuccess {
				metrics.RecordsUpdatedTotal.WithLabelValues(action.RecordType).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.RecordType, "update").Inc()
			}
		case ActionEnable:
			if action.Status == StatusSuccess {
				metrics.RecordsEnabledTotal.Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.RecordType, "enable").Inc()
			}
		case ActionSkip:
			reason := action.Reason
			if reason == "" {
				reason = "unknown"
			}
			metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
		}
	}
}
