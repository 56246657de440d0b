package peer

import (
	"net"
	"strings"
)

// CGNAT and most consumer overlay VPNs hand out addresses in this block.
var cgnatBlock = mustCIDR("100.64.0.0/10")

// tunnelPrefixes are interface name fragments used by VPN and virtual adapters.
var tunnelPrefixes = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

func mustCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return block
}

// RestrictedNetwork reports whether this host looks like it sits behind a
// VPN tunnel or carrier-grade NAT, where direct media paths rarely work.
func RestrictedNetwork() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if tunnelName(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if inCGNAT(addr) {
				return true
			}
		}
	}
	return false
}

func tunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, p := range tunnelPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func inCGNAT(addr net.Addr) bool {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	return ip != nil && cgnatBlock.Contains(ip)
}
