package util

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// IsValidIP checks if a string is a valid IPv4 or IPv6 address
func IsValidIP(ipStr string) bool {
	_, err := netip.ParseAddr(ipStr)
	return err == nil
}

// IsValidCIDR checks if a string is a valid IPv4 or IPv6 prefix in CIDR notation
func IsValidCIDR(cidr string) bool {
	_, err := netip.ParsePrefix(cidr)
	return err == nil
}

// IsIPv6Prefix reports whether cidr is an IPv6 prefix.
// Unparseable input is treated as IPv4, the default address family.
func IsIPv6Prefix(cidr string) bool {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false
	}
	return p.Addr().Is6() && !p.Addr().Is4In6()
}

// AddressFamily returns the FRR address-family keyword ("ipv4" or "ipv6") for a prefix.
func AddressFamily(cidr string) string {
	if IsIPv6Prefix(cidr) {
		return "ipv6"
	}
	return "ipv4"
}

const maxASN = 4294967295 // max uint32, 4-byte ASN range

// ParseASN parses an AS number in asplain ("65000", "4200000000") or
// asdot ("1.10") notation.
func ParseASN(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if hi, lo, ok := strings.Cut(s, "."); ok {
		h, err := strconv.ParseUint(hi, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid asdot AS number: %s", s)
		}
		l, err := strconv.ParseUint(lo, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid asdot AS number: %s", s)
		}
		asn := uint32(h)<<16 | uint32(l)
		if asn == 0 {
			return 0, fmt.Errorf("AS number must be between 1 and %d, got %s", maxASN, s)
		}
		return asn, nil
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid AS number: %s", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("AS number must be between 1 and %d, got %d", maxASN, n)
	}
	return uint32(n), nil
}
