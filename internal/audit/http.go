package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller address for audit entries. The console sits
// behind a single reverse proxy, so the first X-Forwarded-For hop is the
// client; forged or malformed hops fall through to the socket address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip := firstForwardedHop(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" && net.ParseIP(ip) != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func firstForwardedHop(header string) string {
	if header == "" {
		return ""
	}
	hop := header
	if idx := strings.IndexByte(header, ','); idx >= 0 {
		hop = header[:idx]
	}
	hop = strings.TrimSpace(hop)
	if net.ParseIP(hop) == nil {
		return ""
	}
	return hop
}
