package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds the trusted reverse-proxy ranges for client IP extraction.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges
}

// ExtractClientIP returns the real client IP for a request. Forwarding
// headers are honored only when the direct peer is a trusted proxy, so a
// client cannot spoof its address by setting X-Forwarded-For itself.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote := remoteIP(r)

	if config == nil || !fromTrustedProxy(remote, config.TrustedProxies) {
		return remote
	}

	if ip := firstForwardedIP(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}

	return remote
}

// remoteIP strips the port from RemoteAddr.
func remoteIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// firstForwardedIP returns the first parseable address in an X-Forwarded-For
// chain, which is the originating client when every hop appends honestly.
func firstForwardedIP(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		candidate := strings.TrimSpace(part)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return ""
}

func fromTrustedProxy(ip string, cidrs []string) bool {
	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Misconfigured range; fail closed for this entry
			continue
		}
		if network.Contains(peer) {
			return true
		}
	}
	return false
}
