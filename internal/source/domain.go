package source

import (
	"net"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeHost lowercases a host and strips any port, IPv6 brackets and
// trailing dot.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return strings.TrimSuffix(host, ".")
}

// Host extracts the normalized host from a URL. Scheme-less input such as
// "example.com/rss" is accepted.
func Host(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Host)
}

// RootDomain reduces a host to its registrable domain (eTLD+1). IP literals
// and hosts the public-suffix list cannot reduce are returned normalized.
func RootDomain(domain string) string {
	host := NormalizeHost(domain)
	if host == "" {
		return ""
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return host
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}

// IsIP reports whether the normalized host is an IP literal.
func IsIP(domain string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(NormalizeHost(domain))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
