package shared

import (
	"net"
	"strings"
)

// IsPublicCIDR reports whether a CIDR covers non-private address space.
// A bare IP is treated as a /32. Unparseable input counts as public so a
// malformed source range is surfaced rather than hidden.
func IsPublicCIDR(cidr string) bool {
	if cidr == "0.0.0.0/0" || cidr == "::/0" {
		return true
	}
	if !strings.Contains(cidr, "/") {
		cidr += "/32"
	}
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return true
	}
	return !isPrivateNetwork(network)
}

// HasPublicCIDR reports whether any range in the list is public.
func HasPublicCIDR(cidrs []string) bool {
	for _, cidr := range cidrs {
		if IsPublicCIDR(cidr) {
			return true
		}
	}
	return false
}

var privateBlocks = func() []*net.IPNet {
	blocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"fc00::/7",
		"fe80::/10",
	}
	nets := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, n, _ := net.ParseCIDR(b)
		nets = append(nets, n)
	}
	return nets
}()

func isPrivateNetwork(network *net.IPNet) bool {
	for _, block := range privateBlocks {
		if block.Contains(network.IP) {
			return true
		}
	}
	return false
}
