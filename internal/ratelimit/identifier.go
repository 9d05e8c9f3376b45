package ratelimit

import (
	"net"
	"strings"
)

// Identifier picks the rate-limit key for a request. An API key prefix wins;
// otherwise the first public IP from the forwarded-for chain is used, and the
// transport remote address is the last resort.
func Identifier(apiKeyPrefix, forwardedFor, remoteAddr string) string {
	if prefix := strings.TrimSpace(apiKeyPrefix); prefix != "" {
		return "key:" + prefix
	}
	if ip := firstPublicIP(forwardedFor); ip != "" {
		return "ip:" + ip
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	return "ip:" + strings.TrimSpace(host)
}

// firstPublicIP walks a forwarded-for chain left to right and returns the
// first address that is not loopback, private, or link-local. Proxy-added
// internal hops never become the limiting identity.
func firstPublicIP(chain string) string {
	for _, part := range strings.Split(chain, ",") {
		candidate := strings.TrimSpace(part)
		if candidate == "" {
			continue
		}
		ip := net.ParseIP(candidate)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return candidate
	}
	return ""
}
