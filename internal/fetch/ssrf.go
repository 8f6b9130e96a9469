package fetch

import (
	"context"
	"net"

	"github.com/smith-horn/skillsmith/internal/skill"
)

// blockedRanges are the private, loopback, and link-local CIDR blocks that
// outbound fetch requests must never resolve to.
var blockedRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func isBlockedIP(ip net.IP) bool {
	for _, n := range blockedRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// guardDialContext wraps net.Dialer.DialContext so every outbound
// connection resolves to an address and is checked against the blocked
// ranges before the TCP handshake completes. Both host resolution and the
// eventual connection target are validated, closing the DNS-rebinding gap
// a bare hostname allowlist would leave open.
func guardDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if ip := net.ParseIP(host); ip != nil {
			if isBlockedIP(ip) {
				return nil, skill.NewError(skill.KindBlockedHost, "host resolves to a blocked IP range", "host", host)
			}
			return dialer.DialContext(ctx, network, addr)
		}

		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if isBlockedIP(ip) {
				return nil, skill.NewError(skill.KindBlockedHost, "host resolves to a blocked IP range", "host", host, "ip", ip.String())
			}
		}
		if len(ips) == 0 {
			return nil, skill.NewError(skill.KindBlockedHost, "host did not resolve to any address", "host", host)
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
	}
}
