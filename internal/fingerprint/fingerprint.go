// Package fingerprint derives correlation identifiers from client-supplied
// connection metadata. Both inputs are spoofable, so the fingerprint is an
// anomaly-detection signal, never a security boundary.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Length of the stored fingerprint in hex characters.
const Length = 16

// Derive hashes the user agent and network address into a fixed-length,
// one-way identifier.
func Derive(userAgent, address string) string {
	sum := sha256.Sum256([]byte(userAgent + ":" + address))
	return hex.EncodeToString(sum[:])[:Length]
}

// DetectBrowserOS extracts a coarse browser and OS name from a user agent.
func DetectBrowserOS(userAgent string) (browser, os string) {
	browser, os = "Unknown", "Unknown"

	switch {
	case strings.Contains(userAgent, "Edg"):
		browser = "Edge"
	case strings.Contains(userAgent, "Opera"), strings.Contains(userAgent, "OPR"):
		browser = "Opera"
	case strings.Contains(userAgent, "Chrome"):
		browser = "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		browser = "Firefox"
	case strings.Contains(userAgent, "Safari"):
		browser = "Safari"
	}

	switch {
	case strings.Contains(userAgent, "Windows"):
		os = "Windows"
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		os = "iOS"
	case strings.Contains(userAgent, "Mac"):
		os = "macOS"
	case strings.Contains(userAgent, "Android"):
		os = "Android"
	case strings.Contains(userAgent, "Linux"):
		os = "Linux"
	}
	return browser, os
}
