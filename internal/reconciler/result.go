// Package reconciler compares the records the provider holds for the
// configured hostnames with the current public addresses and applies the
// creates, updates and re-enables needed to make them agree.
package reconciler

import (
	"fmt"
	"strings"
	"time"
)

// ActionType represents the type of reconciliation action.
type ActionType string

const (
	// ActionCreate indicates a record will be/was created.
	ActionCreate ActionType = "create"
	// ActionUpdate indicates a record value will be/was rewritten.
	ActionUpdate ActionType = "update"
	// ActionEnable indicates a disabled record will be/was switched back on.
	ActionEnable ActionType = "enable"
	// ActionSkip indicates a record or label was left alone this cycle.
	ActionSkip ActionType = "skip"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	StatusPending ActionStatus = "pending"
	StatusSuccess ActionStatus = "success"
	StatusFailed  ActionStatus = "failed"
	StatusSkipped ActionStatus = "skipped"
)

// Skip reasons.
const (
	ReasonUnchanged       = "unchanged"
	ReasonIPv6Unavailable = "ipv6_unavailable"
	ReasonUnsupportedType = "unsupported_type"
	ReasonLookupFailed    = "lookup_failed"
	ReasonAborted         = "aborted"
)

// Action represents a single reconciliation action on a DNS record.
type Action struct {
	Type   ActionType
	Status ActionStatus

	// Hostname is the fully-qualified name the action concerns.
	Hostname   string
	Label      string
	Zone       string
	RecordType string
	RecordID   string

	// Value is the address written (or that would be written).
	Value string
	// Previous is the value the provider held before an update.
	Previous string

	// Reason explains a skip.
	Reason string

	// Error contains the error message if Status is StatusFailed.
	Error string

	// DryRun indicates this action was not actually executed.
	DryRun bool
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	status := string(a.Status)
	if a.DryRun && a.Status == StatusSuccess {
		status = "dry-run"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s", status, a.Type, a.Hostname)
	if a.RecordType != "" {
		fmt.Fprintf(&sb, " %s", a.RecordType)
	}
	if a.Value != "" {
		if a.Previous != "" && a.Previous != a.Value {
			fmt.Fprintf(&sb, " %s -> %s", a.Previous, a.Value)
		} else {
			fmt.Fprintf(&sb, " %s", a.Value)
		}
	}
	if a.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", a.Reason)
	}
	if a.Error != "" {
		fmt.Fprintf(&sb, ": %s", a.Error)
	}
	return sb.String()
}

// Result holds the complete result of one reconciliation cycle.
type Result struct {
	StartTime time.Time
	EndTime   time.Time

	// Hostnames is the number of configured hostnames.
	Hostnames int

	// IPv4 and IPv6 are the discovered public addresses. IPv6 is empty when
	// it was unavailable or disabled.
	IPv4 string
	IPv6 string

	// Actions contains all actions taken (or planned in dry-run), in order.
	Actions []Action

	// DryRun indicates if this was a dry-run (no changes applied).
	DryRun bool
}

// NewResult creates a new Result with the start time set to now.
func NewResult(dryRun bool) *Result {
	return &Result{
		StartTime: time.Now(),
		Actions:   make([]Action, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total reconciliation duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(action Action) {
	action.DryRun = r.DryRun
	r.Actions = append(r.Actions, action)
}

// Created returns all successful create actions.
func (r *Result) Created() []Action {
	return r.filterActions(ActionCreate, StatusSuccess)
}

// Updated returns all successful update actions.
func (r *Result) Updated() []Action {
	return r.filterActions(ActionUpdate, StatusSuccess)
}

// Enabled returns all successful enable actions.
func (r *Result) Enabled() []Action {
	return r.filterActions(ActionEnable, StatusSuccess)
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	var failed []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

// Skipped returns all skipped actions.
func (r *Result) Skipped() []Action {
	var skipped []Action
	for _, a := range r.Actions {
		if a.Status == StatusSkipped || a.Type == ActionSkip {
			skipped = append(skipped, a)
		}
	}
	return skipped
}

func (r *Result) filterActions(actionType ActionType, status ActionStatus) []Action {
	var filtered []Action
	for _, a := range r.Actions {
		if a.Type == actionType && a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// CreatedCount returns the number of records created (or would be in dry-run).
func (r *Result) CreatedCount() int {
	return len(r.Created())
}

// UpdatedCount returns the number of records updated.
func (r *Result) UpdatedCount() int {
	return len(r.Updated())
}

// EnabledCount returns the number of records re-enabled.
func (r *Result) EnabledCount() int {
	return len(r.Enabled())
}

// SkippedCount returns the number of skipped actions.
func (r *Result) SkippedCount() int {
	return len(r.Skipped())
}

// FailedCount returns the number of failed actions.
func (r *Result) FailedCount() int {
	return len(r.Failed())
}

// HasErrors returns true if any actions failed.
func (r *Result) HasErrors() bool {
	return r.FailedCount() > 0
}

// Summary returns a human-readable summary of the reconciliation.
func (r *Result) Summary() string {
	var sb strings.Builder

	mode := "applied"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(&sb, "Reconciliation complete (%s) in %s\n", mode, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Hostnames: %d\n", r.Hostnames)
	fmt.Fprintf(&sb, "  IPv4: %s\n", orNone(r.IPv4))
	fmt.Fprintf(&sb, "  IPv6: %s\n", orNone(r.IPv6))
	fmt.Fprintf(&sb, "  Records created: %d\n", r.CreatedCount())
	fmt.Fprintf(&sb, "  Records updated: %d\n", r.UpdatedCount())
	fmt.Fprintf(&sb, "  Records enabled: %d\n", r.EnabledCount())
	fmt.Fprintf(&sb, "  Skipped: %d\n", r.SkippedCount())

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed: %d\n", r.FailedCount())
		for _, a := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", a.String())
		}
	}

	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
