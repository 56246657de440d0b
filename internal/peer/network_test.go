package peer

import (
	"net"
	"testing"
)

func TestTunnelName(t *testing.T) {
	for name, want := range map[string]bool{
		"wg0":    true,
		"tun0":   true,
		"utun3":  true,
		"warp0":  true,
		"eth0":   false,
		"wlan0":  false,
		"enp3s0": false,
	} {
		if got := tunnelName(name); got != want {
			t.Errorf("tunnelName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInCGNAT(t *testing.T) {
	cases := []struct {
		addr net.Addr
		want bool
	}{
		{&net.IPNet{IP: net.ParseIP("100.64.0.1"), Mask: net.CIDRMask(10, 32)}, true},
		{&net.IPNet{IP: net.ParseIP("100.127.255.254"), Mask: net.CIDRMask(32, 32)}, true},
		{&net.IPAddr{IP: net.ParseIP("100.128.0.1")}, false},
		{&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)}, false},
		{&net.UnixAddr{Name: "/tmp/x"}, false},
	}
	for _, c := range cases {
		if got := inCGNAT(c.addr); got != c.want {
			t.Errorf("inCGNAT(%v) = %v, want %v", c.addr, got, c.want)
		}
	}
}
