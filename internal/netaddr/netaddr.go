package netaddr

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// IsIPv4 reports whether prefix is an IPv4 network in CIDR notation or a bare
// IPv4 address. Host bits set outside the mask are accepted. Anything that
// fails to parse is reported as not IPv4.
func IsIPv4(prefix string) bool {
	addrPart, maskPart, hasMask := strings.Cut(prefix, "/")
	if !hasMask {
		addr, err := netip.ParseAddr(prefix)
		return err == nil && addr.Is4()
	}

	if p, err := netip.ParsePrefix(prefix); err == nil {
		return p.Addr().Is4()
	}

	addr, err := netip.ParseAddr(addrPart)
	if err != nil || !addr.Is4() {
		return false
	}

	// Decimal lengths ParsePrefix refuses, e.g. 10.0.0.0/08.
	if maskPart != "" && strings.Trim(maskPart, "0123456789") == "" {
		bits, err := strconv.Atoi(maskPart)
		return err == nil && bits <= 32
	}

	// Dotted netmask form, e.g. 10.0.0.0/255.0.0.0.
	mask, err := netip.ParseAddr(maskPart)
	if err != nil || !mask.Is4() {
		return false
	}
	m := mask.As4()
	_, bits := net.IPv4Mask(m[0], m[1], m[2], m[3]).Size()
	return bits == 32
}
