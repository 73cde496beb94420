// Package subdomain decides how a request is handled from its Host header.
package subdomain

import (
	"net"
	"strings"
)

type Action int

const (
	// Continue lets the request through unchanged.
	Continue Action = iota
	// RedirectToCanonical sends the same path to the apex host.
	RedirectToCanonical
	// RedirectToApex sends the visitor to the apex root.
	RedirectToApex
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case RedirectToCanonical:
		return "redirect_canonical"
	case RedirectToApex:
		return "redirect_apex"
	}
	return "unknown"
}

type Decision struct {
	Action Action
	// Subdomain is the label left after stripping the base domain, empty
	// on the apex host.
	Subdomain string
	// Location is set for redirects and is relative to the scheme.
	Location string
}

// Route classifies a request by host and path.
func Route(baseDomain, host, path string) Decision {
	sub := Extract(baseDomain, host)
	if sub == "" {
		return Decision{Action: Continue}
	}

	if sub == "www" {
		return Decision{Action: RedirectToApex, Subdomain: sub, Location: "//" + baseDomain + "/"}
	}

	if allowedOnSubdomain(path) {
		return Decision{Action: Continue, Subdomain: sub}
	}

	if path == "" {
		path = "/"
	}
	return Decision{Action: RedirectToCanonical, Subdomain: sub, Location: "//" + baseDomain + path}
}

// Extract strips the port and the base domain suffix from host. The
// result is empty on the apex host and on foreign hosts.
func Extract(baseDomain, host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if baseDomain == "" || host == "" {
		return ""
	}

	suffix := "." + baseDomain
	if len(host) <= len(suffix) || !strings.EqualFold(host[len(host)-len(suffix):], suffix) {
		return ""
	}
	return host[:len(host)-len(suffix)]
}

func allowedOnSubdomain(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return true
	}

	first := trimmed
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		first = trimmed[:i]
	}

	switch first {
	case "api", ".well-known":
		return true
	}
	return isDigits(first)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
