// Package netutil normalizes client connection metadata before it is stored
// on sessions and audit events.
package netutil

import (
	"net"
	"net/netip"
	"strings"
	"unicode/utf8"
)

// MaxUserAgentLength bounds the user agent stored per session.
const MaxUserAgentLength = 512

// NormalizeIP canonicalizes an address that may carry a port or an IPv6 zone
// ("192.0.2.4:1234", "[2001:db8::1]:443", "fe80::1%eth0"). The boolean
// reports whether the input parsed as an IP at all; on failure the trimmed
// input is returned as-is so callers can still log it.
func NormalizeIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if addr, ok := parseAddr(raw); ok {
		return addr, true
	}
	// host:port, including "[::1]:port" with a non-numeric port part.
	if host, _, err := net.SplitHostPort(raw); err == nil {
		if addr, ok := parseAddr(host); ok {
			return addr, true
		}
	}
	// net.SplitHostPort rejects a missing port; strip one trailing colon
	// section by hand for inputs like "192.0.2.4:".
	if idx := strings.LastIndex(raw, ":"); idx > 0 {
		if addr, ok := parseAddr(raw[:idx]); ok {
			return addr, true
		}
	}
	return raw, false
}

func parseAddr(s string) (string, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.WithZone("").String(), true
}

// TruncateUserAgent caps a user agent at MaxUserAgentLength runes without
// splitting a multi-byte character.
func TruncateUserAgent(ua string) string {
	if utf8.RuneCountInString(ua) <= MaxUserAgentLength {
		return ua
	}
	runes := 0
	for i := range ua {
		if runes == MaxUserAgentLength {
			return ua[:i]
		}
		runes++
	}
	return ua
}
