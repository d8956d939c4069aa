package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the till's address. The router runs chi's RealIP first,
// so RemoteAddr already reflects X-Forwarded-For and X-Real-IP from the
// store's proxy. The headers are read only when RemoteAddr is empty, as in
// handlers called directly from tests.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return strings.Trim(addr, "[]")
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}
