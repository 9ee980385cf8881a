// Package publicip discovers the public IPv4 and IPv6 addresses of the host.
package publicip

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// Family is an address family.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Matches reports whether addr belongs to the family.
func (f Family) Matches(addr netip.Addr) bool {
	switch f {
	case IPv4:
		return addr.Is4()
	case IPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return false
	}
}

var (
	// ErrWrongFamily is returned when a lookup yields an address of the other family.
	ErrWrongFamily = errors.New("address has the wrong family")

	// ErrNoAddress is returned when a lookup answered without an address.
	ErrNoAddress = errors.New("no address in response")
)

// Lookup learns one public address.
type Lookup interface {
	Lookup(ctx context.Context) (netip.Addr, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context) (netip.Addr, error)

// Lookup implements Lookup.
func (f LookupFunc) Lookup(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Addresses is the result of one discovery: an IPv4 address, always set,
// and an IPv6 address that is the zero Addr when unavailable.
type Addresses struct {
	IPv4 netip.Addr
	IPv6 netip.Addr
}

// HasIPv6 reports whether an IPv6 address was discovered.
func (a Addresses) HasIPv6() bool {
	return a.IPv6.IsValid()
}

// For returns the address of the given family.
func (a Addresses) For(f Family) (netip.Addr, bool) {
	switch f {
	case IPv4:
		return a.IPv4, a.IPv4.IsValid()
	case IPv6:
		return a.IPv6, a.IPv6.IsValid()
	default:
		return netip.Addr{}, false
	}
}

func (a Addresses) String() string {
	if !a.HasIPv6() {
		return a.IPv4.String()
	}
	return a.IPv4.String() + "," + a.IPv6.String()
}

// checkFamily normalizes addr and rejects the other family.
func checkFamily(addr netip.Addr, family Family) (netip.Addr, error) {
	addr = addr.Unmap().WithZone("")
	if !family.Matches(addr) {
		return netip.Addr{}, fmt.Errorf("%w: got %s, want %s", ErrWrongFamily, addr, family)
	}
	return addr, nil
}
