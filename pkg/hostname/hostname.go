// Package hostname validates the configured hostnames and splits each one
// into the record label and the zone it lives in.
package hostname

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Limits from RFC 1035/1123.
const (
	MaxHostnameLength = 253
	MaxLabelLength    = 63

	// MinLabels is the minimum number of labels a managed hostname needs:
	// one for the record and two for the zone.
	MinLabels = 3
)

// Validation errors.
var (
	ErrHostnameEmpty     = errors.New("hostname is empty")
	ErrHostnameTooLong   = errors.New("hostname exceeds 253 characters")
	ErrLabelTooLong      = errors.New("hostname label exceeds 63 characters")
	ErrLabelEmpty        = errors.New("hostname contains empty label")
	ErrInvalidCharacters = errors.New("hostname contains invalid characters")
	ErrInvalidLabelStart = errors.New("hostname label must start with alphanumeric character")
	ErrInvalidLabelEnd   = errors.New("hostname label must end with alphanumeric character")
	ErrTooFewLabels      = errors.New("hostname needs a record label and a two-label zone")
)

var labelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// ValidationError describes why a hostname was rejected.
type ValidationError struct {
	Hostname string
	Label    string // offending label, if any
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("invalid hostname %q: label %q: %v", e.Hostname, e.Label, e.Err)
	}
	return fmt.Sprintf("invalid hostname %q: %v", e.Hostname, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks a hostname against RFC 1123. A trailing dot is ignored and
// a "*" wildcard is accepted as the first label only.
func Validate(hostname string) error {
	hostname = strings.TrimSuffix(hostname, ".")

	if hostname == "" {
		return &ValidationError{Hostname: hostname, Err: ErrHostnameEmpty}
	}
	if len(hostname) > MaxHostnameLength {
		return &ValidationError{Hostname: hostname, Err: ErrHostnameTooLong}
	}

	for i, label := range strings.Split(hostname, ".") {
		if label == "" {
			return &ValidationError{Hostname: hostname, Err: ErrLabelEmpty}
		}
		if len(label) > MaxLabelLength {
			return &ValidationError{Hostname: hostname, Label: label, Err: ErrLabelTooLong}
		}
		if i == 0 && label == "*" {
			continue
		}
		if labelRegex.MatchString(label) {
			continue
		}
		switch {
		case !isAlphanumeric(label[0]) && isHostnameByte(label[0]):
			return &ValidationError{Hostname: hostname, Label: label, Err: ErrInvalidLabelStart}
		case !isAlphanumeric(label[len(label)-1]) && isHostnameByte(label[len(label)-1]):
			return &ValidationError{Hostname: hostname, Label: label, Err: ErrInvalidLabelEnd}
		default:
			return &ValidationError{Hostname: hostname, Label: label, Err: ErrInvalidCharacters}
		}
	}

	return nil
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isHostnameByte(b byte) bool {
	return b == '-' || isAlphanumeric(b)
}

// Name is a managed hostname split into the record label and its zone.
//
// "home.example.com" becomes Label "home", Zone "example.com" and
// "a.b.example.com" becomes Label "a.b", Zone "example.com".
type Name struct {
	FQDN  string
	Label string
	Zone  string
}

func (n Name) String() string {
	return n.FQDN
}

// Split validates fqdn and splits it at the last two labels. Hostnames are
// lower-cased and stripped of a trailing dot.
func Split(fqdn string) (Name, error) {
	normalized := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(fqdn), "."))
	if err := Validate(normalized); err != nil {
		return Name{}, err
	}

	labels := strings.Split(normalized, ".")
	if len(labels) < MinLabels {
		return Name{}, &ValidationError{Hostname: normalized, Err: ErrTooFewLabels}
	}

	cut := len(labels) - 2
	return Name{
		FQDN:  normalized,
		Label: strings.Join(labels[:cut], "."),
		Zone:  strings.Join(labels[cut:], "."),
	}, nil
}

// Names is an ordered set of split hostnames.
type Names []Name

// SplitAll splits every hostname, dropping duplicates after normalization.
// All invalid entries are reported together.
func SplitAll(hostnames []string) (Names, error) {
	names := make(Names, 0, len(hostnames))
	seen := make(map[string]struct{}, len(hostnames))
	var errs []error

	for _, h := range hostnames {
		if strings.TrimSpace(h) == "" {
			continue
		}
		n, err := Split(h)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[n.FQDN]; dup {
			continue
		}
		seen[n.FQDN] = struct{}{}
		names = append(names, n)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return names, nil
}

// ParseList splits a comma-separated hostname list.
func ParseList(list string) (Names, error) {
	return SplitAll(strings.Split(list, ","))
}

// FQDNs returns the hostnames in order.
func (ns Names) FQDNs() []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.FQDN
	}
	return out
}

// Zones returns the distinct zones in first-seen order.
func (ns Names) Zones() []string {
	seen := make(map[string]struct{}, len(ns))
	var zones []string
	for _, n := range ns {
		if _, ok := seen[n.Zone]; ok {
			continue
		}
		seen[n.Zone] = struct{}{}
		zones = append(zones, n.Zone)
	}
	return zones
}
