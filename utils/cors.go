package utils

import (
	"net"
	"net/url"
	"strings"
)

// IsAllowedOrigin checks whether an Origin header value should be trusted.
// It allows localhost, private/RFC1918 IPs, link-local IPs, .local hostnames,
// and single-label hostnames (no dots). Public internet origins are blocked.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	hostname := parsed.Hostname()

	if hostname == "localhost" {
		return true
	}

	// .local mDNS hostnames (e.g. mybox.local)
	if strings.HasSuffix(hostname, ".local") {
		return true
	}

	// Single-label hostnames (no dots = LAN names)
	if !strings.Contains(hostname, ".") {
		return true
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return isPrivateIP(ip)
	}

	return false
}

// isPrivateIP returns true for RFC1918, loopback, and link-local addresses.
func isPrivateIP(ip net.IP) bool {
	privateRanges := []*net.IPNet{
		mustParseCIDR("10.0.0.0/8"),
		mustParseCIDR("172.16.0.0/12"),
		mustParseCIDR("192.168.0.0/16"),
		mustParseCIDR("127.0.0.0/8"),
		mustParseCIDR("169.254.0.0/16"), // link-local IPv4
		mustParseCIDR("::1/128"),        // loopback IPv6
		mustParseCIDR("fe80::/10"),      // link-local IPv6
		mustParseCIDR("fc00::/7"),       // unique local IPv6
	}

	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return network
}
