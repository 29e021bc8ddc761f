package netutil

import "net/netip"

// GuestAddresses keeps the addresses a guest can be reached on: loopback,
// link-local and unparsable entries are dropped, as are duplicates. Order
// is preserved.
func GuestAddresses(addrs []string) []string {
	var out []string
	seen := make(map[netip.Addr]bool)
	for _, a := range addrs {
		ip, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		ip = ip.Unmap()
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() || seen[ip] {
			continue
		}
		seen[ip] = true
		out = append(out, ip.String())
	}
	return out
}
