package reconciler

import (
	"net/netip"
	"strings"

	"gitlab.bluewillows.net/root/aliddns/pkg/hostname"
	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
	"gitlab.bluewillows.net/root/aliddns/pkg/publicip"
)

// Update rewrites an existing record to Value. Enable is set when the
// provider holds the record disabled.
type Update struct {
	Record provider.Record
	Value  netip.Addr
	Enable bool
}

// Create adds a record for a label that has none.
type Create struct {
	Name  hostname.Name
	Type  provider.RecordType
	Value netip.Addr
}

// Skip is an existing record that needs no call this cycle.
type Skip struct {
	Record provider.Record
	Reason string
}

// Outcome is the set of changes one cycle will apply. A label appears in
// Updates/Skips or in Creates, never both.
type Outcome struct {
	Updates []Update
	Creates []Create
	Skips   []Skip
}

// Empty reports whether the outcome requires no provider call.
func (o Outcome) Empty() bool {
	return len(o.Updates) == 0 && len(o.Creates) == 0
}

// Plan decides what to do with the existing records and the labels that have
// no record yet, given the discovered addresses.
//
// Existing A records follow the IPv4 address and AAAA records follow IPv6.
// A record whose stored value already equals the address is left alone,
// even when disabled. Each missing label gets an AAAA record (when IPv6 is
// known) followed by an A record.
func Plan(existing []provider.Record, toCreate hostname.Names, addrs publicip.Addresses) Outcome {
	var out Outcome

	present := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		present[key(rec.Label, rec.Zone)] = struct{}{}

		var (
			addr netip.Addr
			ok   bool
		)
		switch rec.Type {
		case provider.RecordTypeA:
			addr, ok = addrs.For(publicip.IPv4)
		case provider.RecordTypeAAAA:
			addr, ok = addrs.For(publicip.IPv6)
			if !ok {
				out.Skips = append(out.Skips, Skip{Record: rec, Reason: ReasonIPv6Unavailable})
				continue
			}
		default:
			out.Skips = append(out.Skips, Skip{Record: rec, Reason: ReasonUnsupportedType})
			continue
		}
		if !ok {
			// IPv4 is always present once discovery succeeded.
			continue
		}

		if sameAddr(rec.Value, addr) {
			out.Skips = append(out.Skips, Skip{Record: rec, Reason: ReasonUnchanged})
			continue
		}

		out.Updates = append(out.Updates, Update{
			Record: rec,
			Value:  addr,
			Enable: rec.Disabled(),
		})
	}

	for _, name := range toCreate {
		if _, ok := present[key(name.Label, name.Zone)]; ok {
			continue
		}
		if addrs.HasIPv6() {
			out.Creates = append(out.Creates, Create{Name: name, Type: provider.RecordTypeAAAA, Value: addrs.IPv6})
		}
		if addrs.IPv4.IsValid() {
			out.Creates = append(out.Creates, Create{Name: name, Type: provider.RecordTypeA, Value: addrs.IPv4})
		}
	}

	return out
}

// sameAddr compares a stored record value with an address. Values that do not
// parse never match, so they get rewritten.
func sameAddr(stored string, addr netip.Addr) bool {
	parsed, err := netip.ParseAddr(stored)
	if err != nil {
		return false
	}
	return parsed.Unmap() == addr.Unmap()
}

func key(label, zone string) string {
	if label == "" {
		label = provider.ApexLabel
	}
	return strings.ToLower(label + "." + zone)
}
