// Package netx holds small HTTP request helpers.
package netx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating address of r. The first hop of
// X-Forwarded-For wins over RemoteAddr; the port is dropped when present.
func ClientIP(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); raw != "" {
		first, _, _ := strings.Cut(raw, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
