// Package ip resolves the host's current public addresses and caches them for a bounded time.
package ip

import (
	"fmt"
	"net/netip"
	"strings"
)

// Family is an IP address family managed by a DNS record.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// Families lists every supported family in canonical order.
var Families = []Family{IPv4, IPv6}

// String returns "ipv4" or "ipv6".
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

// RecordType returns the DNS record type holding addresses of this family.
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

// Contains reports whether addr belongs to the family.
// IPv4-mapped IPv6 addresses count as IPv4.
func (f Family) Contains(addr netip.Addr) bool {
	switch f {
	case IPv4:
		return addr.Unmap().Is4()
	case IPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return false
	}
}

// ParseFamily maps a DNS record type ("A" or "AAAA", any case) to its family.
func ParseFamily(recordType string) (Family, error) {
	switch strings.ToUpper(strings.TrimSpace(recordType)) {
	case "A":
		return IPv4, nil
	case "AAAA":
		return IPv6, nil
	default:
		return 0, fmt.Errorf("invalid record type %q (must be A or AAAA)", recordType)
	}
}

// ParseAddr parses s as a literal address of family f.
func ParseAddr(f Family, s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing address: %w", err)
	}
	if !f.Contains(addr) {
		return netip.Addr{}, &FamilyMismatchError{Want: f, Got: addr}
	}
	return addr.Unmap(), nil
}
